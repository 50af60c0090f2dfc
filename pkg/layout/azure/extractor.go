package azure

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/png"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/layoutml/internal/utils"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

const (
	EndpointEnv = "AZURE_OCR_ENDPOINT"
	APIKeyEnv   = "AZURE_OCR_API_KEY"

	maxPolls = 30
)

// Extractor implements layout.Extractor with the Azure Computer Vision Read API
type Extractor struct {
	Endpoint     string
	APIKey       string
	PollInterval time.Duration

	client *http.Client
}

// New creates an Azure extractor configured from the environment
func New() *Extractor {
	return &Extractor{
		Endpoint:     os.Getenv(EndpointEnv),
		APIKey:       os.Getenv(APIKeyEnv),
		PollInterval: time.Second,
		client:       &http.Client{Timeout: 60 * time.Second},
	}
}

// Name returns the extractor name
func (e *Extractor) Name() string {
	return "azure"
}

// Validate checks that the endpoint and key are set
func (e *Extractor) Validate() error {
	if e.Endpoint == "" || e.APIKey == "" {
		return fmt.Errorf("%s and %s environment variables must be set", EndpointEnv, APIKeyEnv)
	}
	return nil
}

// Extract submits the page to the Read API and polls until the analysis
// finishes.
func (e *Extractor) Extract(ctx context.Context, page layout.Page) (layout.Extraction, error) {
	if err := e.Validate(); err != nil {
		return layout.Extraction{}, err
	}

	imageData, err := pageBytes(page)
	if err != nil {
		return layout.Extraction{}, err
	}

	// Read API 3.2 is the most widely available version
	readURL := fmt.Sprintf("%s/vision/v3.2/read/analyze", strings.TrimSuffix(e.Endpoint, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, readURL, bytes.NewReader(imageData))
	if err != nil {
		return layout.Extraction{}, err
	}
	req.Header.Set("Ocp-Apim-Subscription-Key", e.APIKey)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := e.client.Do(req)
	if err != nil {
		return layout.Extraction{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return layout.Extraction{}, fmt.Errorf("azure OCR API error: %d - %s", resp.StatusCode, utils.TruncateBody(body))
	}

	operationURL := resp.Header.Get("Operation-Location")
	if operationURL == "" {
		return layout.Extraction{}, fmt.Errorf("no operation location returned from Azure OCR")
	}

	result, err := e.poll(ctx, operationURL)
	if err != nil {
		return layout.Extraction{}, err
	}
	return toExtraction(page.Width, page.Height, result.AnalyzeResult), nil
}

func (e *Extractor) poll(ctx context.Context, operationURL string) (*readOperation, error) {
	ticker := time.NewTicker(e.PollInterval)
	defer ticker.Stop()

	for attempts := 0; attempts < maxPolls; attempts++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, operationURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Ocp-Apim-Subscription-Key", e.APIKey)

		resp, err := e.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			continue
		}

		var op readOperation
		err = json.NewDecoder(resp.Body).Decode(&op)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("invalid response format from Azure OCR: %w", err)
		}

		switch op.Status {
		case "succeeded":
			return &op, nil
		case "failed":
			return nil, fmt.Errorf("azure OCR analysis failed")
		}
		// notStarted or running
	}

	return nil, fmt.Errorf("azure OCR operation timed out")
}

func pageBytes(page layout.Page) ([]byte, error) {
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

type readOperation struct {
	Status        string        `json:"status"`
	AnalyzeResult analyzeResult `json:"analyzeResult"`
}

// analyzeResult covers the v3.2 readResults layout and the pages layout of
// newer API versions.
type analyzeResult struct {
	ReadResults []readResult `json:"readResults"`
	Pages       []readResult `json:"pages"`
}

type readResult struct {
	Width  float64    `json:"width"`
	Height float64    `json:"height"`
	Unit   string     `json:"unit"`
	Lines  []readLine `json:"lines"`
	Words  []readWord `json:"words"`
}

type readLine struct {
	Text  string     `json:"text"`
	Words []readWord `json:"words"`
}

type readWord struct {
	Text        string    `json:"text"`
	Content     string    `json:"content"`
	BoundingBox []float64 `json:"boundingBox"`
	Polygon     []float64 `json:"polygon"`
}

func (w readWord) value() string {
	if w.Text != "" {
		return w.Text
	}
	return w.Content
}

func (w readWord) polygon() []float64 {
	if len(w.BoundingBox) > 0 {
		return w.BoundingBox
	}
	return w.Polygon
}

// toExtraction takes the words of the first result page. The reported page
// size wins over the image size when the service returns one in pixels.
func toExtraction(width, height int, result analyzeResult) layout.Extraction {
	pages := result.ReadResults
	if len(pages) == 0 {
		pages = result.Pages
	}
	if len(pages) == 0 {
		return layout.Extraction{Words: []string{}, Boxes: []layout.NormalizedBox{}}
	}
	p := pages[0]
	if p.Width > 0 && p.Height > 0 && (p.Unit == "" || p.Unit == "pixel") {
		width, height = int(p.Width), int(p.Height)
	}

	words := p.Words
	for _, line := range p.Lines {
		words = append(words, line.Words...)
	}

	texts := make([]string, 0, len(words))
	boxes := make([]layout.PixelBox, 0, len(words))
	for _, w := range words {
		text := strings.TrimSpace(w.value())
		box, ok := boundingRect(w.polygon())
		if text == "" || !ok {
			continue
		}
		texts = append(texts, text)
		boxes = append(boxes, box)
	}
	return layout.Extraction{Words: texts, Boxes: layout.Normalize(width, height, boxes)}
}

// boundingRect reduces a polygon of x,y pairs to its axis-aligned bounds.
func boundingRect(points []float64) (layout.PixelBox, bool) {
	if len(points) < 4 || len(points)%2 != 0 {
		return layout.PixelBox{}, false
	}
	box := layout.PixelBox{math.Inf(1), math.Inf(1), math.Inf(-1), math.Inf(-1)}
	for i := 0; i < len(points); i += 2 {
		x, y := points[i], points[i+1]
		box[0] = math.Min(box[0], x)
		box[1] = math.Min(box[1], y)
		box[2] = math.Max(box[2], x)
		box[3] = math.Max(box[3], y)
	}
	return box, true
}
