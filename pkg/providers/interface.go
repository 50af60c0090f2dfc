package providers

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"
)

// DefaultPrompt asks for a bare answer so that responses can be compared and
// stored without post-processing.
const DefaultPrompt = `You are reading a scanned business document such as an invoice.
Answer the question using only what is printed in the document image.
Reply with the answer value only, with no explanation.
If the document does not contain the answer, reply with the single word "unknown".

Question: {{.Question}}`

// Config represents the configuration for a provider. Prompt is a
// text/template rendered with the question as .Question.
type Config struct {
	Provider    string
	Model       string
	Prompt      string
	Temperature float64
	Timeout     time.Duration
}

// UsageInfo represents token usage information from a provider
type UsageInfo struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates usage across calls.
func (u *UsageInfo) Add(other UsageInfo) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}

// Provider interface that all document question-answering providers must implement
type Provider interface {
	// Ask answers question about the page image.
	// Returns the answer and usage information (tokens used)
	Ask(ctx context.Context, config Config, question, imagePath, imageBase64 string) (string, UsageInfo, error)
	// Name returns the provider's name
	Name() string
	// ValidateConfig validates the provider-specific configuration
	ValidateConfig(config Config) error
}

type promptData struct {
	Question string
}

// BuildPrompt renders the configured prompt, or DefaultPrompt, for question.
func BuildPrompt(config Config, question string) (string, error) {
	text := config.Prompt
	if text == "" {
		text = DefaultPrompt
	}
	tmpl, err := template.New("prompt").Parse(text)
	if err != nil {
		return "", fmt.Errorf("failed to parse prompt template: %w", err)
	}

	var b strings.Builder
	if err := tmpl.Execute(&b, promptData{Question: question}); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return b.String(), nil
}

// CleanResponseProvider is an optional interface that providers can implement
// to provide custom response cleaning logic
type CleanResponseProvider interface {
	CleanResponse(response string) string
}

var prefixPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^(the\s+)?answer\s+(to\s+the\s+question\s+)?(is|would\s+be):?\s*`),
	regexp.MustCompile(`(?i)^answer:\s*`),
	regexp.MustCompile(`(?i)^(according\s+to|based\s+on)\s+the\s+(document|image|invoice),?\s*(the\s+answer\s+is:?\s*)?`),
	regexp.MustCompile(`(?i)^certainly!?\s+`),
	regexp.MustCompile(`(?i)^here'?s?\s+(is\s+)?the\s+answer:?\s*`),
}

// CleanResponse provides general response cleaning that works for most AI providers
func CleanResponse(response string) string {
	response = strings.TrimSpace(response)

	// Remove markdown code blocks if present
	if strings.HasPrefix(response, "```") && strings.HasSuffix(response, "```") && len(response) >= 6 {
		response = strings.TrimPrefix(response, "```")
		response = strings.TrimSuffix(response, "```")
		response = strings.TrimSpace(response)
	}

	for _, re := range prefixPatterns {
		response = re.ReplaceAllString(response, "")
		response = strings.TrimSpace(response)
	}

	// Remove surrounding quotes and a trailing full stop
	response = strings.Trim(response, `"'`)
	if strings.Count(response, ".") == 1 {
		response = strings.TrimSuffix(response, ".")
	}

	return strings.TrimSpace(response)
}

// ProcessResponse cleans a response using the provider's custom cleaner if available,
// otherwise uses the general CleanResponse function
func ProcessResponse(provider Provider, response string) string {
	if cleaner, ok := provider.(CleanResponseProvider); ok {
		return cleaner.CleanResponse(response)
	}
	return CleanResponse(response)
}
