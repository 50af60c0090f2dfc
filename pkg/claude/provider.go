package claude

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/lehigh-university-libraries/layoutml/pkg/providers"
)

const (
	APIKeyEnv  = "ANTHROPIC_API_KEY"
	BaseURLEnv = "ANTHROPIC_BASE_URL"

	DefaultModel = "claude-sonnet-4-5"

	maxTokens = 1024
)

// Provider implements the Anthropic Claude document question-answering provider
type Provider struct {
	url string
}

// New creates a new Claude provider
func New() *Provider {
	return &Provider{url: os.Getenv(BaseURLEnv)}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "claude"
}

// ValidateConfig validates the Claude configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	if os.Getenv(APIKeyEnv) == "" {
		return fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}
	return nil
}

func (p *Provider) options(apiKey string, config providers.Config) []option.RequestOption {
	url := p.url
	if url == "" {
		url = "https://api.anthropic.com/"
	}
	url = strings.TrimRight(url, "/") + "/"

	timeout := config.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return []option.RequestOption{
		option.WithBaseURL(url),
		option.WithHTTPClient(&http.Client{Timeout: timeout}),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
}

// Ask answers a question about a page image using Claude's messages API
func (p *Provider) Ask(ctx context.Context, config providers.Config, question, imagePath, imageBase64 string) (string, providers.UsageInfo, error) {
	apiKey := os.Getenv(APIKeyEnv)
	if apiKey == "" {
		return "", providers.UsageInfo{}, fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}

	prompt, err := providers.BuildPrompt(config, question)
	if err != nil {
		return "", providers.UsageInfo{}, err
	}

	// Claude calls it the media type
	mediaType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mediaType == "" {
		mediaType = "image/png"
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	req := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(
				anthropic.NewImageBlock(anthropic.Base64ImageSourceParam{
					Data:      imageBase64,
					MediaType: anthropic.Base64ImageSourceMediaType(mediaType),
				}),
				anthropic.NewTextBlock(prompt),
			),
		},
	}
	if config.Temperature > 0 {
		req.Temperature = anthropic.Float(config.Temperature)
	}

	client := anthropic.NewClient(p.options(apiKey, config)...)
	message, err := client.Messages.New(ctx, req)
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("claude API error: %w", err)
	}

	// First text content block
	var answer string
	for _, block := range message.Content {
		if block.Type == "text" {
			answer = block.Text
			break
		}
	}
	if answer == "" {
		return "", providers.UsageInfo{}, fmt.Errorf("no text content in Claude response")
	}

	usage := providers.UsageInfo{
		InputTokens:  int(message.Usage.InputTokens),
		OutputTokens: int(message.Usage.OutputTokens),
	}

	return providers.ProcessResponse(p, answer), usage, nil
}
