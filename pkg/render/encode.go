package render

import (
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"

	"github.com/lehigh-university-libraries/layoutml/pkg/fsutil"
)

// Extensions lists the image formats Encode can write.
var Extensions = []string{"png", "jpg", "jpeg", "gif", "bmp", "tif", "tiff"}

// Supported reports whether ext, with or without its dot, is in Extensions.
func Supported(ext string) bool {
	return slices.Contains(Extensions, strings.ToLower(strings.TrimPrefix(ext, ".")))
}

// Encode writes img to w in the format named by ext (png, jpg, jpeg, gif,
// bmp, tif, tiff; the dot is optional).
func Encode(w io.Writer, img image.Image, ext string) error {
	switch strings.ToLower(strings.TrimPrefix(ext, ".")) {
	case "png":
		return png.Encode(w, img)
	case "jpg", "jpeg":
		return jpeg.Encode(w, img, &jpeg.Options{Quality: 95})
	case "gif":
		return gif.Encode(w, img, nil)
	case "bmp":
		return bmp.Encode(w, img)
	case "tif", "tiff":
		return tiff.Encode(w, img, &tiff.Options{Compression: tiff.Deflate})
	}
	return fmt.Errorf("%w: image extension %q", fsutil.ErrUnsupportedFormat, ext)
}

// SaveImage encodes img to path in the format of path's extension. The
// parent directory must exist.
func SaveImage(path string, img image.Image) error {
	ext := filepath.Ext(path)
	if ext == "" {
		return fmt.Errorf("%w: %q", fsutil.ErrInvalidExtension, path)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create image file: %w", err)
	}
	if err := Encode(f, img, ext); err != nil {
		f.Close()
		os.Remove(path)
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	return f.Close()
}
