package gvision

import (
	"context"
	"errors"
	"image"
	"reflect"
	"testing"

	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

func word(x1, y1, x2, y2 int32, symbols ...string) *visionpb.Word {
	w := &visionpb.Word{
		BoundingBox: &visionpb.BoundingPoly{Vertices: []*visionpb.Vertex{
			{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2},
		}},
	}
	for _, s := range symbols {
		w.Symbols = append(w.Symbols, &visionpb.Symbol{Text: s})
	}
	return w
}

func annotation(width, height int32, words ...*visionpb.Word) *visionpb.AnnotateImageResponse {
	return &visionpb.AnnotateImageResponse{
		FullTextAnnotation: &visionpb.TextAnnotation{
			Pages: []*visionpb.Page{{
				Width:  width,
				Height: height,
				Blocks: []*visionpb.Block{{
					Paragraphs: []*visionpb.Paragraph{{Words: words}},
				}},
			}},
		},
	}
}

func TestFromAnnotation(t *testing.T) {
	resp := annotation(2000, 1000,
		word(100, 100, 300, 150, "T", "o", "t", "a", "l"),
		word(0, 0, 10, 10),
		word(320, 100, 420, 150, "$", "9", "9"),
	)

	got, err := fromAnnotation(0, 0, resp)
	if err != nil {
		t.Fatalf("fromAnnotation() error = %v", err)
	}
	if !reflect.DeepEqual(got.Words, []string{"Total", "$99"}) {
		t.Errorf("Words = %v", got.Words)
	}
	want := []layout.NormalizedBox{{50, 100, 150, 150}, {160, 100, 210, 150}}
	if !reflect.DeepEqual(got.Boxes, want) {
		t.Errorf("Boxes = %v, want %v", got.Boxes, want)
	}
}

func TestFromAnnotationUsesPageSizeWhenMissing(t *testing.T) {
	resp := annotation(0, 0, word(50, 50, 100, 100, "a"))

	got, err := fromAnnotation(500, 500, resp)
	if err != nil {
		t.Fatal(err)
	}
	if got.Boxes[0] != (layout.NormalizedBox{100, 100, 200, 200}) {
		t.Errorf("Boxes = %v", got.Boxes)
	}
}

func TestFromAnnotationEmpty(t *testing.T) {
	got, err := fromAnnotation(100, 100, &visionpb.AnnotateImageResponse{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Words == nil || len(got.Words) != 0 || len(got.Boxes) != 0 {
		t.Errorf("expected empty, non-nil extraction, got %+v", got)
	}
}

func TestExtract(t *testing.T) {
	var gotReq *visionpb.AnnotateImageRequest
	e := New()
	e.LanguageHints = []string{"en"}
	e.annotate = func(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error) {
		gotReq = req
		return annotation(100, 100, word(10, 10, 20, 20, "I", "N", "V")), nil
	}

	page := layout.Page{Width: 100, Height: 100, Image: image.NewGray(image.Rect(0, 0, 100, 100))}
	got, err := e.Extract(context.Background(), page)
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(got.Words) != 1 || got.Words[0] != "INV" {
		t.Errorf("Words = %v", got.Words)
	}
	if len(gotReq.GetImage().GetContent()) == 0 {
		t.Error("expected image content in request")
	}
	if f := gotReq.GetFeatures(); len(f) != 1 || f[0].GetType() != visionpb.Feature_DOCUMENT_TEXT_DETECTION {
		t.Errorf("Features = %v", f)
	}
	if hints := gotReq.GetImageContext().GetLanguageHints(); !reflect.DeepEqual(hints, []string{"en"}) {
		t.Errorf("LanguageHints = %v", hints)
	}
}

func TestExtractErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	e := New()
	e.annotate = func(ctx context.Context, req *visionpb.AnnotateImageRequest) (*visionpb.AnnotateImageResponse, error) {
		return nil, boom
	}

	page := layout.Page{Width: 10, Height: 10, Image: image.NewGray(image.Rect(0, 0, 10, 10))}
	if _, err := e.Extract(context.Background(), page); !errors.Is(err, boom) {
		t.Errorf("Extract() error = %v, want wrapped annotate error", err)
	}
	if _, err := e.Extract(context.Background(), layout.Page{}); err == nil {
		t.Error("expected error for a page without image data")
	}
}

func TestCloseWithoutClient(t *testing.T) {
	if err := New().Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
