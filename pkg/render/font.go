package render

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	DefaultMinFontSize = 1
	// DefaultMaxFontSize leaves font sizes uncapped.
	DefaultMaxFontSize = 0

	// growLimit stops the search for an upper bound on text that never
	// gets wider, such as zero-width runes.
	growLimit = 1 << 16
)

// fontSet hands out faces of one typeface at integer point sizes (72 DPI,
// so one point is one pixel). Faces are cached per size.
type fontSet struct {
	font  *opentype.Font
	faces map[int]font.Face
}

// loadFont parses the TrueType/OpenType file at path, or the embedded Go
// Regular face when path is empty.
func loadFont(path string) (*fontSet, error) {
	data := goregular.TTF
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read font file: %w", err)
		}
	}

	f, err := opentype.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse font: %w", err)
	}
	return &fontSet{font: f, faces: make(map[int]font.Face)}, nil
}

func (s *fontSet) face(size int) (font.Face, error) {
	if face, ok := s.faces[size]; ok {
		return face, nil
	}
	face, err := opentype.NewFace(s.font, &opentype.FaceOptions{
		Size:    float64(size),
		DPI:     72,
		Hinting: font.HintingNone,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create face at size %d: %w", size, err)
	}
	s.faces[size] = face
	return face, nil
}

// measure returns the advance width of text in pixels at size.
func (s *fontSet) measure(text string, size int) (float64, error) {
	face, err := s.face(size)
	if err != nil {
		return 0, err
	}
	adv := font.MeasureString(face, text)
	return float64(adv) / 64, nil
}

// fit returns the largest size in [lo, hi] at which text is narrower than
// width. This is the size a grow-until-too-wide-then-step-back loop settles
// on, found by binary search since advance grows with size. A hi of zero or
// less means no upper bound. When nothing fits, or width is not positive, lo
// is returned.
func (s *fontSet) fit(text string, width float64, lo, hi int) (int, error) {
	if width <= 0 || text == "" {
		return lo, nil
	}
	if hi <= 0 {
		var err error
		if hi, err = s.bound(text, width, lo); err != nil {
			return 0, err
		}
	}
	if hi <= lo {
		return lo, nil
	}

	var err error
	n := sort.Search(hi-lo+1, func(i int) bool {
		if err != nil {
			return true
		}
		var w float64
		w, err = s.measure(text, lo+i)
		return w >= width
	})
	if err != nil {
		return 0, err
	}

	size := lo + n - 1
	if size < lo {
		size = lo
	}
	return size, nil
}

// bound doubles from lo until text is at least width wide at the returned
// size, or growLimit is reached.
func (s *fontSet) bound(text string, width float64, lo int) (int, error) {
	hi := max(lo, 1)
	for hi < growLimit {
		w, err := s.measure(text, hi)
		if err != nil {
			return 0, err
		}
		if w >= width {
			return hi, nil
		}
		hi *= 2
	}
	return growLimit, nil
}

func (s *fontSet) close() error {
	var first error
	for size, face := range s.faces {
		if err := face.Close(); err != nil && first == nil {
			first = err
		}
		delete(s.faces, size)
	}
	return first
}
