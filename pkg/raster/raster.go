// Package raster turns PDF documents into one image per page and loads page
// images back for extraction.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"os/exec"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/lehigh-university-libraries/layoutml/pkg/fsutil"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

const DefaultDensity = 200

// Rasterizer renders every page of a document into outDir as
// page-<n>.<ext>, n counting from 0, and returns the written paths in page
// order.
type Rasterizer interface {
	Rasterize(ctx context.Context, docPath, outDir, ext string) ([]string, error)
}

// PagePath is the image path of page n under dir.
func PagePath(dir string, n int, ext string) string {
	return fsutil.JoinPath(ext, dir, fmt.Sprintf("page-%d", n))
}

// Pages returns the page images under dir in page order, stopping at the
// first missing page number.
func Pages(dir, ext string) []string {
	var pages []string
	for n := 0; ; n++ {
		path, exist, _ := fsutil.CheckPath(fsutil.Ignore, "", PagePath(dir, n, ext))
		if !exist {
			return pages
		}
		pages = append(pages, path)
	}
}

// RemovePages deletes the page images Pages would return for dir.
func RemovePages(dir, ext string) error {
	for _, page := range Pages(dir, ext) {
		if err := os.Remove(page); err != nil {
			return fmt.Errorf("failed to remove stale page: %w", err)
		}
	}
	return nil
}

// Magick rasterizes with ImageMagick, which delegates PDF rendering to
// Ghostscript.
type Magick struct {
	Binary  string
	Density int

	run func(ctx context.Context, name string, args ...string) error
}

// NewMagick returns a Magick rasterizer using the magick binary on PATH.
func NewMagick(density int) *Magick {
	if density <= 0 {
		density = DefaultDensity
	}
	return &Magick{Binary: "magick", Density: density, run: runCommand}
}

// Args returns the ImageMagick arguments used to rasterize docPath.
func (m *Magick) Args(docPath, outDir, ext string) []string {
	return []string{
		"-density", fmt.Sprint(m.Density),
		docPath,
		"-background", "white",
		"-alpha", "remove",
		"-alpha", "off",
		"+adjoin",
		fsutil.JoinPath(ext, outDir, "page-%d"),
	}
}

// Rasterize implements Rasterizer. outDir must exist.
func (m *Magick) Rasterize(ctx context.Context, docPath, outDir, ext string) ([]string, error) {
	if _, err := os.Stat(docPath); err != nil {
		return nil, fmt.Errorf("document not readable: %w", err)
	}
	if err := m.run(ctx, m.Binary, m.Args(docPath, outDir, ext)...); err != nil {
		return nil, fmt.Errorf("failed to rasterize %s: %w", docPath, err)
	}

	pages := Pages(outDir, ext)
	if len(pages) == 0 {
		return nil, fmt.Errorf("rasterizing %s produced no pages", docPath)
	}
	return pages, nil
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%w: %s", err, msg)
		}
		return err
	}
	return nil
}

// LoadPage decodes a page image.
func LoadPage(path string) (layout.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return layout.Page{}, fmt.Errorf("failed to open page image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return layout.Page{}, fmt.Errorf("failed to decode page image: %w", err)
	}

	b := img.Bounds()
	return layout.Page{Width: b.Dx(), Height: b.Dy(), Image: img, Path: path}, nil
}
