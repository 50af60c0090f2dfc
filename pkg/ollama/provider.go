package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/lehigh-university-libraries/layoutml/internal/utils"
	"github.com/lehigh-university-libraries/layoutml/pkg/providers"
)

const (
	URLEnv = "OLLAMA_URL"

	DefaultURL   = "http://localhost:11434"
	DefaultModel = "llava"
)

// Provider implements the Ollama local provider
type Provider struct{}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Model           string `json:"model"`
	Response        string `json:"response"`
	Done            bool   `json:"done"`
	PromptEvalCount int    `json:"prompt_eval_count"`
	EvalCount       int    `json:"eval_count"`
}

// New creates a new Ollama provider
func New() *Provider {
	return &Provider{}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "ollama"
}

// ValidateConfig validates the Ollama configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	// a local server needs no credentials
	return nil
}

// Ask answers a question about a page image using the Ollama generate API
func (p *Provider) Ask(ctx context.Context, config providers.Config, question, imagePath, imageBase64 string) (string, providers.UsageInfo, error) {
	ollamaURL := os.Getenv(URLEnv)
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	prompt, err := providers.BuildPrompt(config, question)
	if err != nil {
		return "", providers.UsageInfo{}, err
	}

	requestJSON, err := json.Marshal(generateRequest{
		Model:  model,
		Prompt: prompt,
		Images: []string{imageBase64},
		Stream: false,
		Options: map[string]any{
			"temperature": config.Temperature,
		},
	})
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/api/generate", strings.TrimSuffix(ollamaURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(requestJSON))
	if err != nil {
		return "", providers.UsageInfo{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second // local inference is slow
	}
	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", providers.UsageInfo{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", providers.UsageInfo{}, fmt.Errorf("ollama API error: %d - %s", resp.StatusCode, utils.TruncateBody(body))
	}

	var ollamaResp generateResponse
	if err := json.Unmarshal(body, &ollamaResp); err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("failed to parse JSON response: %w - body: %s", err, utils.TruncateBody(body))
	}
	if ollamaResp.Response == "" {
		return "", providers.UsageInfo{}, fmt.Errorf("no response from Ollama")
	}

	usage := providers.UsageInfo{
		InputTokens:  ollamaResp.PromptEvalCount,
		OutputTokens: ollamaResp.EvalCount,
	}

	return providers.ProcessResponse(p, ollamaResp.Response), usage, nil
}
