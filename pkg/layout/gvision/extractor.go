// Package gvision extracts words and boxes with Google Cloud Vision
// DOCUMENT_TEXT_DETECTION.
//
// Credentials come from GOOGLE_VISION_API_KEY when set, otherwise from
// Application Default Credentials.
package gvision

import (
	"bytes"
	"context"
	"fmt"
	"image/png"
	"math"
	"os"
	"strings"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"google.golang.org/api/option"

	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

const (
	APIKeyEnv   = "GOOGLE_VISION_API_KEY"
	EndpointEnv = "GOOGLE_VISION_ENDPOINT"
)

type annotateFunc func(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error)

// Extractor implements layout.Extractor. The API client is created on first
// use so that registering the engine needs no credentials.
type Extractor struct {
	// LanguageHints are BCP-47 codes passed to the OCR model.
	LanguageHints []string

	opts     []option.ClientOption
	client   *vision.ImageAnnotatorClient
	annotate annotateFunc
}

// New creates a Cloud Vision extractor. Extra client options are appended to
// the ones derived from the environment.
func New(opts ...option.ClientOption) *Extractor {
	var base []option.ClientOption
	if key := os.Getenv(APIKeyEnv); key != "" {
		base = append(base, option.WithAPIKey(key))
	}
	if endpoint := os.Getenv(EndpointEnv); endpoint != "" {
		base = append(base, option.WithEndpoint(endpoint))
	}
	return &Extractor{opts: append(base, opts...)}
}

func (e *Extractor) Name() string { return "gvision" }

// Close releases the API client, if one was created.
func (e *Extractor) Close() error {
	if e.client == nil {
		return nil
	}
	err := e.client.Close()
	e.client = nil
	e.annotate = nil
	return err
}

func (e *Extractor) annotator(ctx context.Context) (annotateFunc, error) {
	if e.annotate != nil {
		return e.annotate, nil
	}
	client, err := vision.NewImageAnnotatorClient(ctx, e.opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create vision client: %w", err)
	}
	e.client = client
	e.annotate = func(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error) {
		resp, err := client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
			Requests: []*visionpb.AnnotateImageRequest{req},
		})
		if err != nil {
			return nil, err
		}
		if len(resp.GetResponses()) == 0 {
			return nil, fmt.Errorf("empty batch response")
		}
		return resp.GetResponses()[0], nil
	}
	return e.annotate, nil
}

// Extract sends the page as PNG and converts the word-level annotation.
func (e *Extractor) Extract(ctx context.Context, page layout.Page) (layout.Extraction, error) {
	content, err := pageContent(page)
	if err != nil {
		return layout.Extraction{}, err
	}

	annotate, err := e.annotator(ctx)
	if err != nil {
		return layout.Extraction{}, err
	}

	req := &visionpb.AnnotateImageRequest{
		Image:    &visionpb.Image{Content: content},
		Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
	}
	if len(e.LanguageHints) > 0 {
		req.ImageContext = &visionpb.ImageContext{LanguageHints: e.LanguageHints}
	}

	resp, err := annotate(ctx, req)
	if err != nil {
		return layout.Extraction{}, fmt.Errorf("vision annotate failed: %w", err)
	}
	return fromAnnotation(page.Width, page.Height, resp)
}

func pageContent(page layout.Page) ([]byte, error) {
	if page.Path != "" {
		return os.ReadFile(page.Path)
	}
	if page.Image == nil {
		return nil, fmt.Errorf("page has neither a path nor an image")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, page.Image); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	return buf.Bytes(), nil
}

// fromAnnotation walks the first page's blocks, paragraphs and words in
// order. A word's text is the concatenation of its symbols.
func fromAnnotation(width, height int, resp *visionpb.AnnotateImageResponse) (layout.Extraction, error) {
	if s := resp.GetError(); s != nil && s.GetCode() != 0 {
		return layout.Extraction{}, fmt.Errorf("vision error %d: %s", s.GetCode(), s.GetMessage())
	}

	words := []string{}
	boxes := []layout.PixelBox{}

	pages := resp.GetFullTextAnnotation().GetPages()
	if len(pages) == 0 {
		return layout.Extraction{Words: words, Boxes: []layout.NormalizedBox{}}, nil
	}
	p := pages[0]
	if p.GetWidth() > 0 && p.GetHeight() > 0 {
		width, height = int(p.GetWidth()), int(p.GetHeight())
	}

	for _, block := range p.GetBlocks() {
		for _, para := range block.GetParagraphs() {
			for _, word := range para.GetWords() {
				var sb strings.Builder
				for _, sym := range word.GetSymbols() {
					sb.WriteString(sym.GetText())
				}
				text := strings.TrimSpace(sb.String())
				box, ok := vertexBounds(word.GetBoundingBox().GetVertices())
				if text == "" || !ok {
					continue
				}
				words = append(words, text)
				boxes = append(boxes, box)
			}
		}
	}

	return layout.Extraction{Words: words, Boxes: layout.Normalize(width, height, boxes)}, nil
}

func vertexBounds(vertices []*visionpb.Vertex) (layout.PixelBox, bool) {
	if len(vertices) == 0 {
		return layout.PixelBox{}, false
	}
	box := layout.PixelBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for _, v := range vertices {
		x, y := float64(v.GetX()), float64(v.GetY())
		box[0] = math.Min(box[0], x)
		box[1] = math.Min(box[1], y)
		box[2] = math.Max(box[2], x)
		box[3] = math.Max(box[3], y)
	}
	return box, true
}
