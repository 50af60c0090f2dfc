package cmd

import (
	"errors"
	"io"
	"log/slog"

	"github.com/lehigh-university-libraries/layoutml/internal/config"
	"github.com/lehigh-university-libraries/layoutml/pkg/claude"
	"github.com/lehigh-university-libraries/layoutml/pkg/gemini"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout/azure"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout/gvision"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout/tesseract"
	"github.com/lehigh-university-libraries/layoutml/pkg/ollama"
	"github.com/lehigh-university-libraries/layoutml/pkg/openai"
	"github.com/lehigh-university-libraries/layoutml/pkg/providers"
)

func newExtractorRegistry(cfg config.Config) *layout.Registry {
	registry := layout.NewRegistry()
	registry.Register(tesseract.New(cfg.Languages...))
	registry.Register(gvision.New())
	registry.Register(azure.New())
	return registry
}

func newProviderRegistry() *providers.Registry {
	registry := providers.NewRegistry()
	registry.Register(openai.New())
	registry.Register(claude.New())
	registry.Register(gemini.New())
	registry.Register(ollama.New())
	return registry
}

// newExtractor returns the configured extractor and a func releasing any
// client it holds.
func newExtractor(cfg config.Config) (layout.Extractor, func(), error) {
	extractor, err := newExtractorRegistry(cfg).Get(cfg.Extractor)
	if err != nil {
		return nil, nil, err
	}
	if v, ok := extractor.(interface{ Validate() error }); ok {
		if err := v.Validate(); err != nil {
			return nil, nil, err
		}
	}

	release := func() {}
	if c, ok := extractor.(io.Closer); ok {
		release = func() {
			if err := c.Close(); err != nil {
				slog.Warn("Failed to close extractor", "extractor", extractor.Name(), "err", err)
			}
		}
	}
	return extractor, release, nil
}

var errNoPages = errors.New("document has no pages")
