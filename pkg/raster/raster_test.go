package raster

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.Black)
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestPagesStopsAtGap(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []int{0, 1, 3} {
		writePNG(t, PagePath(dir, n, "png"), 2, 2)
	}

	got := Pages(dir, "png")
	want := []string{filepath.Join(dir, "page-0.png"), filepath.Join(dir, "page-1.png")}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Pages() = %v, want %v", got, want)
	}

	if pages := Pages(filepath.Join(dir, "missing"), "png"); len(pages) != 0 {
		t.Errorf("Pages() on missing dir = %v", pages)
	}
}

func TestRemovePages(t *testing.T) {
	dir := t.TempDir()
	for n := range 3 {
		writePNG(t, PagePath(dir, n, "png"), 2, 2)
	}
	writePNG(t, filepath.Join(dir, "cover.png"), 2, 2)

	if err := RemovePages(dir, "png"); err != nil {
		t.Fatalf("RemovePages() error = %v", err)
	}
	if pages := Pages(dir, "png"); len(pages) != 0 {
		t.Errorf("pages left after RemovePages() = %v", pages)
	}
	if _, err := os.Stat(filepath.Join(dir, "cover.png")); err != nil {
		t.Errorf("other files should be kept: %v", err)
	}
}

func TestMagickArgs(t *testing.T) {
	m := NewMagick(0)
	args := m.Args("in/invoice.pdf", "out", "png")

	if args[0] != "-density" || args[1] != "200" {
		t.Errorf("expected default density 200, got %v", args[:2])
	}
	if args[2] != "in/invoice.pdf" {
		t.Errorf("document should follow density, got %v", args)
	}
	if last := args[len(args)-1]; last != filepath.Join("out", "page-%d.png") {
		t.Errorf("output pattern = %q", last)
	}
}

func TestMagickRasterize(t *testing.T) {
	dir := t.TempDir()
	doc := filepath.Join(dir, "invoice.pdf")
	if err := os.WriteFile(doc, []byte("%PDF-1.4"), 0644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "pages")
	if err := os.Mkdir(out, 0755); err != nil {
		t.Fatal(err)
	}

	var gotName string
	var gotArgs []string
	m := NewMagick(300)
	m.run = func(ctx context.Context, name string, args ...string) error {
		gotName, gotArgs = name, args
		writePNG(t, filepath.Join(out, "page-0.png"), 10, 20)
		writePNG(t, filepath.Join(out, "page-1.png"), 10, 20)
		return nil
	}

	pages, err := m.Rasterize(context.Background(), doc, out, "png")
	if err != nil {
		t.Fatalf("Rasterize() error = %v", err)
	}
	if gotName != "magick" || gotArgs[1] != "300" {
		t.Errorf("ran %s %v", gotName, gotArgs)
	}
	if len(pages) != 2 {
		t.Errorf("Rasterize() returned %d pages, want 2", len(pages))
	}
}

func TestMagickRasterizeErrors(t *testing.T) {
	dir := t.TempDir()
	m := NewMagick(100)
	m.run = func(ctx context.Context, name string, args ...string) error { return nil }

	if _, err := m.Rasterize(context.Background(), filepath.Join(dir, "missing.pdf"), dir, "png"); err == nil {
		t.Error("expected error for missing document")
	}

	doc := filepath.Join(dir, "empty.pdf")
	if err := os.WriteFile(doc, nil, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Rasterize(context.Background(), doc, dir, "png"); err == nil || !strings.Contains(err.Error(), "no pages") {
		t.Errorf("expected no pages error, got %v", err)
	}

	boom := errors.New("gs: unrecoverable error")
	m.run = func(ctx context.Context, name string, args ...string) error { return boom }
	if _, err := m.Rasterize(context.Background(), doc, dir, "png"); !errors.Is(err, boom) {
		t.Errorf("expected wrapped command error, got %v", err)
	}
}

func TestLoadPage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page-0.png")
	writePNG(t, path, 612, 792)

	page, err := LoadPage(path)
	if err != nil {
		t.Fatalf("LoadPage() error = %v", err)
	}
	if page.Width != 612 || page.Height != 792 || page.Path != path || page.Image == nil {
		t.Errorf("LoadPage() = %+v", page)
	}

	if _, err := LoadPage(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("expected error for missing page")
	}
}
