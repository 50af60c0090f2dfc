// Package render draws extraction results for visual inspection: box
// outlines over the raw page, and the extracted words laid out on a blank
// canvas at the positions and approximate sizes they were found at.
package render

import (
	"fmt"
	"image"
	"image/color"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"

	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

var (
	BoxColor  = color.RGBA{R: 255, A: 255}
	TextColor = color.Black
)

// Options configures a Renderer.
type Options struct {
	// FontPath is a TrueType/OpenType file. Empty uses Go Regular.
	FontPath    string
	MinFontSize int
	// MaxFontSize caps fitted sizes. Zero or less is uncapped.
	MaxFontSize int
}

// Renderer draws words with a single typeface. It caches faces and is not
// safe for concurrent use.
type Renderer struct {
	fonts *fontSet
	min   int
	max   int
}

// New loads the configured font.
func New(opts Options) (*Renderer, error) {
	fonts, err := loadFont(opts.FontPath)
	if err != nil {
		return nil, err
	}

	r := &Renderer{fonts: fonts, min: opts.MinFontSize, max: opts.MaxFontSize}
	if r.min <= 0 {
		r.min = DefaultMinFontSize
	}
	if r.max < 0 {
		r.max = DefaultMaxFontSize
	}
	if r.max > 0 && r.max < r.min {
		return nil, fmt.Errorf("max font size %d is below min font size %d", r.max, r.min)
	}
	return r, nil
}

// Close releases the cached font faces.
func (r *Renderer) Close() error {
	return r.fonts.close()
}

// FitFontSize returns the font size text is drawn at for a box width wide.
func (r *Renderer) FitFontSize(text string, width float64) (int, error) {
	return r.fonts.fit(text, width, r.min, r.max)
}

// DrawBoxes returns a copy of page with every box outlined in BoxColor.
// page itself is not modified.
func DrawBoxes(page image.Image, boxes []layout.PixelBox) *image.RGBA {
	b := page.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), page, b.Min, draw.Src)

	for _, box := range boxes {
		outline(dst, box.Rect(), BoxColor)
	}
	return dst
}

// RenderText draws each record's word on a white width x height canvas,
// with the word's top-left at its box's top-left and the font sized to the
// box width. Records are drawn in slice order. With showBoxes the boxes are
// outlined as well.
func (r *Renderer) RenderText(width, height int, records []layout.WordRecord, showBoxes bool) (*image.RGBA, error) {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst: dst,
		Src: image.NewUniform(TextColor),
	}

	for _, rec := range records {
		size, err := r.FitFontSize(rec.Text, rec.Box.Width())
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", rec.Index, err)
		}
		face, err := r.fonts.face(size)
		if err != nil {
			return nil, fmt.Errorf("word %d: %w", rec.Index, err)
		}

		d.Face = face
		d.Dot = fixed.Point26_6{
			X: fixed.Int26_6(rec.Box[0] * 64),
			Y: fixed.Int26_6(rec.Box[1]*64) + face.Metrics().Ascent,
		}
		d.DrawString(rec.Text)

		if showBoxes {
			outline(dst, rec.Box.Rect(), BoxColor)
		}
	}
	return dst, nil
}

// outline draws a one pixel rectangle whose corners are r.Min and r.Max,
// both inclusive. Pixels outside dst are skipped.
func outline(dst *image.RGBA, r image.Rectangle, c color.Color) {
	r = r.Canon()
	bounds := dst.Bounds()
	clip := image.Rect(r.Min.X, r.Min.Y, r.Max.X+1, r.Max.Y+1).Intersect(bounds)
	if clip.Empty() {
		return
	}

	for x := clip.Min.X; x < clip.Max.X; x++ {
		dst.Set(x, r.Min.Y, c)
		dst.Set(x, r.Max.Y, c)
	}
	for y := clip.Min.Y; y < clip.Max.Y; y++ {
		dst.Set(r.Min.X, y, c)
		dst.Set(r.Max.X, y, c)
	}
}
