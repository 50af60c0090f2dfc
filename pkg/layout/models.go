package layout

import (
	"errors"
	"fmt"
	"image"
	"math"
)

// Scale is the side of the normalized coordinate space layout models
// report boxes in.
const Scale = 1000

// ErrMisaligned is returned when an extraction has a different number of
// words and boxes.
var ErrMisaligned = errors.New("words and boxes are not index aligned")

// Page is one rendered document page.
type Page struct {
	Width  int
	Height int
	Image  image.Image
	Path   string
}

// NormalizedBox is x1, y1, x2, y2 in the 0-1000 space.
type NormalizedBox [4]float64

// PixelBox is x1, y1, x2, y2 in a page's pixel space.
type PixelBox [4]float64

// Width returns x2 - x1.
func (b PixelBox) Width() float64 {
	return b[2] - b[0]
}

// Height returns y2 - y1.
func (b PixelBox) Height() float64 {
	return b[3] - b[1]
}

// Rect rounds the box to an integer rectangle.
func (b PixelBox) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b[0])), int(math.Round(b[1])),
		int(math.Round(b[2])), int(math.Round(b[3])),
	)
}

// Extraction is what an Extractor returns for a page: words and their
// normalized boxes, index aligned, in the engine's scan order.
type Extraction struct {
	Words []string
	Boxes []NormalizedBox
}

// Validate checks that words and boxes line up.
func (e Extraction) Validate() error {
	if len(e.Words) != len(e.Boxes) {
		return fmt.Errorf("%w: %d words, %d boxes", ErrMisaligned, len(e.Words), len(e.Boxes))
	}
	return nil
}

// WordRecord pairs a word with its pixel box and position in the page's
// word sequence.
type WordRecord struct {
	Index int
	Text  string
	Box   PixelBox
}

// Records zips words and boxes into index-ordered records.
func Records(words []string, boxes []PixelBox) ([]WordRecord, error) {
	if len(words) != len(boxes) {
		return nil, fmt.Errorf("%w: %d words, %d boxes", ErrMisaligned, len(words), len(boxes))
	}
	records := make([]WordRecord, len(words))
	for i, word := range words {
		records[i] = WordRecord{Index: i, Text: word, Box: boxes[i]}
	}
	return records, nil
}
