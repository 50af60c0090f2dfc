// Package layout defines the page, box and word types shared by the
// pipeline, the Extractor interface implemented by the OCR engines, and the
// conversion between the 0-1000 normalized space and page pixels.
package layout

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Extractor produces words and normalized boxes for a page image.
type Extractor interface {
	// Extract runs the engine over page. Words and boxes are index aligned.
	Extract(ctx context.Context, page Page) (Extraction, error)
	// Name returns the engine's registry name
	Name() string
}

// Registry manages the available extractors
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry creates a new extractor registry
func NewRegistry() *Registry {
	return &Registry{
		extractors: make(map[string]Extractor),
	}
}

// Register adds an extractor to the registry
func (r *Registry) Register(extractor Extractor) {
	r.extractors[strings.ToLower(extractor.Name())] = extractor
}

// Get retrieves an extractor by name
func (r *Registry) Get(name string) (Extractor, error) {
	extractor, exists := r.extractors[strings.ToLower(name)]
	if !exists {
		return nil, fmt.Errorf("extractor %s not found", name)
	}
	return extractor, nil
}

// List returns the registered names in sorted order
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.extractors))
	for name := range r.extractors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
