package azure

import (
	"context"
	"image"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
)

func TestExtractor_Name(t *testing.T) {
	e := New()
	if e.Name() != "azure" {
		t.Errorf("Expected name 'azure', got '%s'", e.Name())
	}
}

func TestExtractor_Validate(t *testing.T) {
	tests := []struct {
		name          string
		endpoint      string
		apiKey        string
		expectError   bool
		errorContains string
	}{
		{
			name:        "valid config",
			endpoint:    "https://test.cognitiveservices.azure.com",
			apiKey:      "test-key",
			expectError: false,
		},
		{
			name:          "missing endpoint",
			endpoint:      "",
			apiKey:        "test-key",
			expectError:   true,
			errorContains: EndpointEnv,
		},
		{
			name:          "missing API key",
			endpoint:      "https://test.cognitiveservices.azure.com",
			apiKey:        "",
			expectError:   true,
			errorContains: APIKeyEnv,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EndpointEnv, tt.endpoint)
			t.Setenv(APIKeyEnv, tt.apiKey)

			err := New().Validate()

			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Expected no error but got: %v", err)
			}
			if tt.expectError && err != nil && !strings.Contains(err.Error(), tt.errorContains) {
				t.Errorf("Expected error to contain '%s', got: %v", tt.errorContains, err)
			}
		})
	}
}

const succeededV32 = `{
	"status": "succeeded",
	"analyzeResult": {
		"readResults": [
			{
				"page": 1,
				"width": 2000,
				"height": 1000,
				"unit": "pixel",
				"lines": [
					{
						"text": "Invoice #123",
						"words": [
							{"boundingBox": [100, 100, 300, 100, 300, 150, 100, 150], "text": "Invoice"},
							{"boundingBox": [320, 100, 420, 100, 420, 150, 320, 150], "text": "#123"}
						]
					}
				]
			}
		]
	}
}`

func TestExtractor_Extract(t *testing.T) {
	tests := []struct {
		name              string
		analyzeStatus     int
		analyzeResponse   string
		operationLocation string
		resultStatus      int
		resultResponse    string
		expectedWords     []string
		expectedBoxes     []layout.NormalizedBox
		expectError       bool
		errorContains     string
	}{
		{
			name:              "successful extraction",
			analyzeStatus:     http.StatusAccepted,
			operationLocation: "/operations/test-id",
			resultStatus:      http.StatusOK,
			resultResponse:    succeededV32,
			expectedWords:     []string{"Invoice", "#123"},
			expectedBoxes:     []layout.NormalizedBox{{50, 100, 150, 150}, {160, 100, 210, 150}},
		},
		{
			name:              "pages format response",
			analyzeStatus:     http.StatusAccepted,
			operationLocation: "/operations/test-id",
			resultStatus:      http.StatusOK,
			resultResponse: `{
				"status": "succeeded",
				"analyzeResult": {
					"pages": [
						{
							"width": 1000,
							"height": 1000,
							"words": [
								{"content": "Total", "polygon": [10, 20, 110, 20, 110, 60, 10, 60]}
							]
						}
					]
				}
			}`,
			expectedWords: []string{"Total"},
			expectedBoxes: []layout.NormalizedBox{{10, 20, 110, 60}},
		},
		{
			name:            "analyze request error",
			analyzeStatus:   http.StatusBadRequest,
			analyzeResponse: `{"error": {"code": "InvalidRequest", "message": "Invalid image format"}}`,
			expectError:     true,
			errorContains:   "azure OCR API error",
		},
		{
			name:          "missing operation location",
			analyzeStatus: http.StatusAccepted,
			expectError:   true,
			errorContains: "no operation location",
		},
		{
			name:              "operation failed",
			analyzeStatus:     http.StatusAccepted,
			operationLocation: "/operations/test-id",
			resultStatus:      http.StatusOK,
			resultResponse:    `{"status": "failed"}`,
			expectError:       true,
			errorContains:     "azure OCR analysis failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var analyzeCallCount int
			var serverURL string

			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Header.Get("Ocp-Apim-Subscription-Key") != "test-key" {
					t.Error("Expected Ocp-Apim-Subscription-Key header")
				}

				switch {
				case strings.HasSuffix(r.URL.Path, "/vision/v3.2/read/analyze"):
					analyzeCallCount++
					if r.Method != http.MethodPost {
						t.Errorf("Expected POST request for analyze, got %s", r.Method)
					}
					if r.Header.Get("Content-Type") != "application/octet-stream" {
						t.Errorf("Expected application/octet-stream content type")
					}
					if tt.operationLocation != "" {
						w.Header().Set("Operation-Location", serverURL+tt.operationLocation)
					}
					w.WriteHeader(tt.analyzeStatus)
					if _, err := w.Write([]byte(tt.analyzeResponse)); err != nil {
						t.Errorf("Failed to write analyze response: %v", err)
					}
				case strings.Contains(r.URL.Path, "/operations/"):
					if r.Method != http.MethodGet {
						t.Errorf("Expected GET request for result, got %s", r.Method)
					}
					w.WriteHeader(tt.resultStatus)
					if _, err := w.Write([]byte(tt.resultResponse)); err != nil {
						t.Errorf("Failed to write result response: %v", err)
					}
				default:
					t.Errorf("unexpected request path %s", r.URL.Path)
				}
			}))
			serverURL = server.URL
			defer server.Close()

			e := New()
			e.Endpoint = server.URL + "/"
			e.APIKey = "test-key"
			e.PollInterval = time.Millisecond

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			page := layout.Page{Width: 100, Height: 100, Image: image.NewGray(image.Rect(0, 0, 100, 100))}
			got, err := e.Extract(ctx, page)

			if tt.expectError {
				if err == nil {
					t.Fatal("Expected error but got none")
				}
				if !strings.Contains(err.Error(), tt.errorContains) {
					t.Errorf("Expected error to contain '%s', got: %v", tt.errorContains, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error but got: %v", err)
			}
			if analyzeCallCount != 1 {
				t.Errorf("analyze called %d times, want 1", analyzeCallCount)
			}
			if !reflect.DeepEqual(got.Words, tt.expectedWords) {
				t.Errorf("Words = %v, want %v", got.Words, tt.expectedWords)
			}
			if !reflect.DeepEqual(got.Boxes, tt.expectedBoxes) {
				t.Errorf("Boxes = %v, want %v", got.Boxes, tt.expectedBoxes)
			}
		})
	}
}

func TestExtractor_ExtractCancelledWhilePolling(t *testing.T) {
	var serverURL string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			w.Header().Set("Operation-Location", serverURL+"/operations/slow")
			w.WriteHeader(http.StatusAccepted)
			return
		}
		_, _ = w.Write([]byte(`{"status": "running"}`))
	}))
	serverURL = server.URL
	defer server.Close()

	e := New()
	e.Endpoint = server.URL
	e.APIKey = "test-key"
	e.PollInterval = 50 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	_, err := e.Extract(ctx, layout.Page{Width: 10, Height: 10, Image: image.NewGray(image.Rect(0, 0, 10, 10))})
	if err == nil {
		t.Fatal("Expected error after cancellation")
	}
}

func TestToExtraction(t *testing.T) {
	tests := []struct {
		name          string
		width, height int
		result        analyzeResult
		expectedWords []string
	}{
		{
			name:          "empty result",
			width:         100,
			height:        100,
			result:        analyzeResult{},
			expectedWords: []string{},
		},
		{
			name:   "skips blank words and short polygons",
			width:  100,
			height: 100,
			result: analyzeResult{ReadResults: []readResult{{
				Lines: []readLine{{Words: []readWord{
					{Text: " ", BoundingBox: []float64{0, 0, 1, 0, 1, 1, 0, 1}},
					{Text: "ok", BoundingBox: []float64{0, 0, 1}},
					{Text: "Due", BoundingBox: []float64{0, 0, 10, 0, 10, 5, 0, 5}},
				}}},
			}}},
			expectedWords: []string{"Due"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toExtraction(tt.width, tt.height, tt.result)
			if !reflect.DeepEqual(got.Words, tt.expectedWords) {
				t.Errorf("Words = %v, want %v", got.Words, tt.expectedWords)
			}
			if err := got.Validate(); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestBoundingRectRotated(t *testing.T) {
	box, ok := boundingRect([]float64{50, 10, 60, 20, 50, 30, 40, 20})
	if !ok {
		t.Fatal("expected a box")
	}
	if box != (layout.PixelBox{40, 10, 60, 30}) {
		t.Errorf("boundingRect() = %v", box)
	}
}
