// Package tesseract extracts words and boxes with the Tesseract OCR engine
// via gosseract. It requires Tesseract and its headers to be installed.
//
// Boxes are normalized to the 0-1000 space and truncated to whole units, the
// same way LayoutLM-family processors post-process Tesseract output.
package tesseract

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"math"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

// Extractor implements layout.Extractor on top of gosseract.
type Extractor struct {
	Languages   []string
	PageSegMode gosseract.PageSegMode

	clientFactory func() *gosseract.Client
}

// New creates a Tesseract extractor. With no languages Tesseract's default
// (eng) is used.
func New(languages ...string) *Extractor {
	return &Extractor{
		Languages:     languages,
		PageSegMode:   gosseract.PSM_AUTO,
		clientFactory: gosseract.NewClient,
	}
}

func (e *Extractor) Name() string { return "tesseract" }

// Extract runs word-level recognition over the page.
func (e *Extractor) Extract(ctx context.Context, page layout.Page) (layout.Extraction, error) {
	if err := ctx.Err(); err != nil {
		return layout.Extraction{}, err
	}

	c := e.clientFactory()
	defer c.Close()

	if err := e.setImage(c, page); err != nil {
		return layout.Extraction{}, err
	}
	if len(e.Languages) > 0 {
		if err := c.SetLanguage(e.Languages...); err != nil {
			return layout.Extraction{}, fmt.Errorf("set languages: %w", err)
		}
	}
	if err := c.SetPageSegMode(e.PageSegMode); err != nil {
		return layout.Extraction{}, fmt.Errorf("set page segmentation mode: %w", err)
	}

	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil {
		return layout.Extraction{}, fmt.Errorf("recognize words: %w", err)
	}
	return fromBoundingBoxes(page.Width, page.Height, boxes), nil
}

func (e *Extractor) setImage(c *gosseract.Client, page layout.Page) error {
	if page.Path != "" {
		if err := c.SetImage(page.Path); err != nil {
			return fmt.Errorf("set image: %w", err)
		}
		return nil
	}
	if page.Image == nil {
		return fmt.Errorf("page has neither a path nor an image")
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, page.Image); err != nil {
		return fmt.Errorf("encode page: %w", err)
	}
	if err := c.SetImageFromBytes(buf.Bytes()); err != nil {
		return fmt.Errorf("set image: %w", err)
	}
	return nil
}

// fromBoundingBoxes drops blank words and normalizes the rest.
func fromBoundingBoxes(width, height int, boxes []gosseract.BoundingBox) layout.Extraction {
	words := make([]string, 0, len(boxes))
	pixels := make([]layout.PixelBox, 0, len(boxes))
	for _, b := range boxes {
		word := strings.TrimSpace(b.Word)
		if word == "" {
			continue
		}
		words = append(words, word)
		pixels = append(pixels, layout.PixelBox{
			float64(b.Box.Min.X), float64(b.Box.Min.Y),
			float64(b.Box.Max.X), float64(b.Box.Max.Y),
		})
	}

	normalized := layout.Normalize(width, height, pixels)
	for i := range normalized {
		for j := range normalized[i] {
			normalized[i][j] = math.Trunc(normalized[i][j])
		}
	}
	return layout.Extraction{Words: words, Boxes: normalized}
}
