// Package pipeline runs the batch flow over a dataset directory: rasterize
// each PDF, extract words and boxes from every page image, rescale, render
// and export.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/lehigh-university-libraries/layoutml/pkg/export"
	"github.com/lehigh-university-libraries/layoutml/pkg/fsutil"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
	"github.com/lehigh-university-libraries/layoutml/pkg/raster"
	"github.com/lehigh-university-libraries/layoutml/pkg/render"
)

const (
	ImagesDir  = "pdf2img"
	OutputsDir = "layoutml_outputs"

	BoxesName  = "bboxes_on_raw"
	TextName   = "extracted_text"
	RecordName = "extracted_text.json"
)

// DefaultExtensions are the document extensions picked up from the dataset.
var DefaultExtensions = []string{"pdf", "PDF"}

// Options configures a Pipeline.
type Options struct {
	DatasetDir string
	ResultsDir string
	// OutputExt is the image format for page and rendered images.
	OutputExt string
	// Extensions selects documents by case-sensitive extension.
	Extensions []string
	// Overwrite re-rasterizes documents whose page directory exists.
	Overwrite bool
	// ShowBoxes also outlines boxes on the rendered text image.
	ShowBoxes bool
	// FirstPageOnly extracts page 0 only, even for multi-page documents.
	FirstPageOnly bool
}

// Pipeline is the batch runner. It processes documents one at a time.
type Pipeline struct {
	opts       Options
	rasterizer raster.Rasterizer
	extractor  layout.Extractor
	renderer   *render.Renderer
}

// New creates a pipeline.
func New(opts Options, rasterizer raster.Rasterizer, extractor layout.Extractor, renderer *render.Renderer) *Pipeline {
	if opts.OutputExt == "" {
		opts.OutputExt = "png"
	}
	if len(opts.Extensions) == 0 {
		opts.Extensions = DefaultExtensions
	}
	return &Pipeline{opts: opts, rasterizer: rasterizer, extractor: extractor, renderer: renderer}
}

// DocumentError records a document the batch gave up on.
type DocumentError struct {
	Document string
	Err      error
}

func (e *DocumentError) Error() string {
	return fmt.Sprintf("%s: %v", e.Document, e.Err)
}

func (e *DocumentError) Unwrap() error {
	return e.Err
}

// Report summarises a run.
type Report struct {
	Documents []string
	// Reused lists documents whose existing page images were used instead
	// of rasterizing again.
	Reused []string
	Pages  int
	Failed []*DocumentError
}

// ErrDuplicateName marks a document whose base name was already processed
// in the same run. Both would share one page and output directory.
var ErrDuplicateName = errors.New("another document with the same name was already processed")

// Run processes every document under the dataset directory. A failing
// document is logged and recorded in the report and the batch moves on to
// the next one. The returned error is reserved for a missing dataset
// directory and cancellation.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	var report Report

	docs, err := fsutil.WalkPath(fsutil.Raise, p.opts.Extensions, p.opts.DatasetDir)
	if err != nil {
		return report, fmt.Errorf("failed to list dataset: %w", err)
	}
	slog.Info("Found documents", "count", len(docs), "dataset", p.opts.DatasetDir)

	seen := make(map[string]string, len(docs))
	for _, doc := range docs {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		name := fsutil.BaseName(doc)
		if prev, ok := seen[name]; ok {
			slog.Warn("Skipping document with a repeated name", "doc", doc, "previous", prev)
			report.Failed = append(report.Failed, &DocumentError{Document: doc, Err: fmt.Errorf("%w: %s", ErrDuplicateName, prev)})
			continue
		}
		seen[name] = doc

		pages, reused, err := p.ProcessDocument(ctx, doc)
		report.Pages += pages
		if reused {
			report.Reused = append(report.Reused, name)
		}
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return report, err
			}
			slog.Error("Document failed", "doc", name, "err", err)
			report.Failed = append(report.Failed, &DocumentError{Document: doc, Err: err})
			continue
		}
		report.Documents = append(report.Documents, name)
	}

	return report, nil
}

// ProcessDocument rasterizes doc unless its page directory exists and
// Overwrite is off, in which case the page images found on disk are used.
// Overwriting first removes the previous page images, and any outputs for
// pages the new rendering no longer has. It returns the number of pages
// processed and whether rasterization was skipped.
func (p *Pipeline) ProcessDocument(ctx context.Context, doc string) (int, bool, error) {
	name := fsutil.BaseName(doc)

	imgDir, exist, _ := fsutil.CheckPath(fsutil.Ignore, "", p.opts.ResultsDir, ImagesDir, name)
	reused := exist && !p.opts.Overwrite

	var pages []string
	if reused {
		slog.Debug("Page images exist, skipping rasterization", "doc", name, "dir", imgDir)
		pages = raster.Pages(imgDir, p.opts.OutputExt)
	} else {
		if _, err := fsutil.MakePath(imgDir); err != nil {
			return 0, false, err
		}
		if exist {
			if err := raster.RemovePages(imgDir, p.opts.OutputExt); err != nil {
				return 0, false, err
			}
		}
		var err error
		pages, err = p.rasterizer.Rasterize(ctx, doc, imgDir, p.opts.OutputExt)
		if err != nil {
			// an empty page directory would make the next run skip this document
			os.RemoveAll(imgDir)
			return 0, false, err
		}
		slog.Info("Rasterized document", "doc", name, "pages", len(pages))
		if exist {
			if err := p.removeStaleOutputs(name, len(pages)); err != nil {
				return 0, false, err
			}
		}
	}

	if p.opts.FirstPageOnly && len(pages) > 1 {
		pages = pages[:1]
	}

	for n, pagePath := range pages {
		if err := ctx.Err(); err != nil {
			return n, reused, err
		}
		outDir, err := fsutil.MakePath(p.outputDir(name, n))
		if err != nil {
			return n, reused, err
		}
		if err := p.ProcessPage(ctx, pagePath, outDir); err != nil {
			return n, reused, fmt.Errorf("page %d: %w", n, err)
		}
		slog.Info("Processed page", "doc", name, "page", n, "out", outDir)
	}
	return len(pages), reused, nil
}

// removeStaleOutputs deletes the page-<n> output directories from n = from
// onwards, stopping at the first one missing. Page 0 is never removed.
func (p *Pipeline) removeStaleOutputs(name string, from int) error {
	for n := max(from, 1); ; n++ {
		dir, exist, _ := fsutil.CheckPath(fsutil.Ignore, "", p.outputDir(name, n))
		if !exist {
			return nil
		}
		if err := os.RemoveAll(dir); err != nil {
			return fmt.Errorf("failed to remove stale output: %w", err)
		}
		slog.Debug("Removed stale page output", "doc", name, "dir", dir)
	}
}

// outputDir is where page n's results go. Page 0 writes directly into the
// document's directory; later pages get their own page-<n> subdirectory.
func (p *Pipeline) outputDir(name string, n int) string {
	dir := filepath.Join(p.opts.ResultsDir, OutputsDir, name)
	if n == 0 {
		return dir
	}
	return filepath.Join(dir, fmt.Sprintf("page-%d", n))
}

// ProcessPage extracts, rescales, renders and exports one page image into
// outDir, which must exist.
func (p *Pipeline) ProcessPage(ctx context.Context, pagePath, outDir string) error {
	page, err := raster.LoadPage(pagePath)
	if err != nil {
		return err
	}

	extraction, err := p.extractor.Extract(ctx, page)
	if err != nil {
		return fmt.Errorf("%s extraction failed: %w", p.extractor.Name(), err)
	}
	if err := extraction.Validate(); err != nil {
		return err
	}

	boxes := layout.Rescale(page.Width, page.Height, extraction.Boxes)
	records, err := layout.Records(extraction.Words, boxes)
	if err != nil {
		return err
	}
	slog.Debug("Extracted words", "page", pagePath, "words", len(records))

	annotated := render.DrawBoxes(page.Image, boxes)
	if err := render.SaveImage(fsutil.JoinPath(p.opts.OutputExt, outDir, BoxesName), annotated); err != nil {
		return err
	}

	text, err := p.renderer.RenderText(page.Width, page.Height, records, p.opts.ShowBoxes)
	if err != nil {
		return fmt.Errorf("failed to render text: %w", err)
	}
	if err := render.SaveImage(fsutil.JoinPath(p.opts.OutputExt, outDir, TextName), text); err != nil {
		return err
	}

	return export.ExportRecords(records, filepath.Join(outDir, RecordName))
}
