package openai

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lehigh-university-libraries/layoutml/pkg/providers"
)

const (
	APIKeyEnv  = "OPENAI_API_KEY"
	BaseURLEnv = "OPENAI_BASE_URL"

	DefaultModel = "gpt-4o"
)

// Provider implements the OpenAI document question-answering provider
type Provider struct {
	url string
}

// New creates a new OpenAI provider. OPENAI_BASE_URL points it at any
// OpenAI-compatible endpoint.
func New() *Provider {
	return &Provider{url: os.Getenv(BaseURLEnv)}
}

// Name returns the provider name
func (p *Provider) Name() string {
	return "openai"
}

// ValidateConfig validates the OpenAI configuration
func (p *Provider) ValidateConfig(config providers.Config) error {
	if os.Getenv(APIKeyEnv) == "" {
		return fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}
	return nil
}

func (p *Provider) options(apiKey string, config providers.Config) []option.RequestOption {
	url := p.url
	if url == "" {
		url = "https://api.openai.com/v1/"
	}
	url = strings.TrimRight(url, "/") + "/"

	return []option.RequestOption{
		option.WithBaseURL(url),
		option.WithHTTPClient(&http.Client{Timeout: config.Timeout}),
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
}

// Ask answers a question about a page image using OpenAI's chat completions API
func (p *Provider) Ask(ctx context.Context, config providers.Config, question, imagePath, imageBase64 string) (string, providers.UsageInfo, error) {
	apiKey := os.Getenv(APIKeyEnv)
	if apiKey == "" {
		return "", providers.UsageInfo{}, fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}

	prompt, err := providers.BuildPrompt(config, question)
	if err != nil {
		return "", providers.UsageInfo{}, err
	}

	// Determine image format
	mimeType := mime.TypeByExtension(filepath.Ext(imagePath))
	if mimeType == "" {
		mimeType = "image/png"
	}

	model := config.Model
	if model == "" {
		model = DefaultModel
	}

	req := openai.ChatCompletionNewParams{
		Model: model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage([]openai.ChatCompletionContentPartUnionParam{
				openai.TextContentPart(prompt),
				openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
					URL: "data:" + mimeType + ";base64," + imageBase64,
				}),
			}),
		},
	}
	if config.Temperature > 0 {
		req.Temperature = openai.Float(config.Temperature)
	}

	client := openai.NewClient(p.options(apiKey, config)...)
	completion, err := client.Chat.Completions.New(ctx, req)
	if err != nil {
		return "", providers.UsageInfo{}, fmt.Errorf("openAI API error: %w", err)
	}

	if len(completion.Choices) == 0 {
		return "", providers.UsageInfo{}, fmt.Errorf("no response from OpenAI")
	}

	usage := providers.UsageInfo{
		InputTokens:  int(completion.Usage.PromptTokens),
		OutputTokens: int(completion.Usage.CompletionTokens),
	}

	return providers.ProcessResponse(p, completion.Choices[0].Message.Content), usage, nil
}
