package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"google.golang.org/genai"

	"github.com/lehigh-university-libraries/layoutml/pkg/providers"
)

const (
	APIKeyEnv  = "GEMINI_API_KEY"
	BaseURLEnv = "GEMINI_BASE_URL"

	DefaultModel = "gemini-2.5-flash"
)

// Provider implements the Google Gemini document question-answering provider
type Provider struct {
	url string
}

// New creates a new Gemini provider
func New() *Provider {
	return &Provider{url: os.Getenv(BaseURLEnv)}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "gemini"
}

// ValidateConfig validates the Gemini configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	if os.Getenv(APIKeyEnv) == "" {
		return fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}
	return nil
}

func (p *Provider) newClient(ctx context.Context, apiKey string, config providers.Config) (*genai.Client, error) {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	cc := &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if p.url != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: p.url}
	}
	return genai.NewClient(ctx, cc)
}

// Ask answers a question about a page image using the Gemini API
func (p *Provider) Ask(ctx context.Context, config providers.Config, question, imagePath, imageBase64 string) (string, providers.UsageInfo, error) {
	apiKey := os.Getenv(APIKeyEnv)
	if apiKey == "" {
		return "", providers.UsageInfo{}, fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}

	prompt, err := providers.BuildPrompt(config, question)
	if err != nil {
		return "", providers.UsageInfo{}, err
	}

	imageData, err := base64.StdEncoding.DecodeString(imageBase64)
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("failed to decode base64 image: %w", err)
	}

	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "image/png"
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	client, err := p.newClient(ctx, apiKey, config)
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		{InlineData: &genai.Blob{MIMEType: mimeType, Data: imageData}},
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	generateConfig := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(config.Temperature)),
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, generateConfig)
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("gemini API error: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", providers.UsageInfo{}, fmt.Errorf("no response from Gemini")
	}

	var usage providers.UsageInfo
	if resp.UsageMetadata != nil {
		usage.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		usage.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return providers.ProcessResponse(p, text), usage, nil
}
