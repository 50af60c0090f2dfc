package utils

import (
	"log/slog"
	"os"
	"regexp"
	"strings"
)

const masked = "***MASKED***"

// SecretEnvVars are environment variables whose values never appear in logs.
var SecretEnvVars = []string{
	"OPENAI_API_KEY",
	"ANTHROPIC_API_KEY",
	"GEMINI_API_KEY",
	"AZURE_OCR_API_KEY",
	"GOOGLE_VISION_API_KEY",
}

type maskRule struct {
	pattern     *regexp.Regexp
	replacement string
}

var maskRules = []maskRule{
	// key=VALUE, api_key=VALUE, apiKey=VALUE, api-key=VALUE, apikey=VALUE in query strings
	{regexp.MustCompile(`([?&])(api[_\-]?[kK]ey|key)=([^&\s"]+)`), `${1}${2}=` + masked},
	{regexp.MustCompile(`Bearer\s+([A-Za-z0-9_\-\.]+)`), `Bearer ` + masked},
	// Azure
	{regexp.MustCompile(`Ocp-Apim-Subscription-Key:\s*([^\s]+)`), `Ocp-Apim-Subscription-Key: ` + masked},
	// Anthropic
	{regexp.MustCompile(`x-api-key:\s*([^\s]+)`), `x-api-key: ` + masked},
	// Google
	{regexp.MustCompile(`(?i)x-goog-api-key:\s*([^\s]+)`), `x-goog-api-key: ` + masked},
	{regexp.MustCompile(`AIza[0-9A-Za-z_\-]{35}`), masked},
}

// MaskSensitiveData masks API keys and other sensitive information in strings
// This is used to prevent accidental logging of sensitive data in error messages and URLs
func MaskSensitiveData(s string) string {
	if s == "" {
		return s
	}

	for _, rule := range maskRules {
		s = rule.pattern.ReplaceAllString(s, rule.replacement)
	}

	// SDK errors can echo a configured key verbatim
	for _, name := range SecretEnvVars {
		if v := os.Getenv(name); len(v) >= 8 {
			s = strings.ReplaceAll(s, v, masked)
		}
	}

	return s
}

// MaskSensitiveError wraps an error and masks sensitive data when the error is converted to string
func MaskSensitiveError(err error) error {
	if err == nil {
		return nil
	}
	return &maskedError{err: err}
}

type maskedError struct {
	err error
}

func (e *maskedError) Error() string {
	return MaskSensitiveData(e.err.Error())
}

func (e *maskedError) Unwrap() error {
	return e.err
}

// ParseLogLevel maps DEBUG, WARN and ERROR (any case) to their slog level.
// Anything else is INFO.
func ParseLogLevel(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// TruncateBody truncates a response body to a maximum length for error messages.
// This helps keep error logs readable while still providing context.
// Default maxLen is 500 if not specified.
func TruncateBody(body []byte, maxLen ...int) string {
	limit := 500
	if len(maxLen) > 0 && maxLen[0] > 0 {
		limit = maxLen[0]
	}
	s := string(body)
	if len(s) > limit {
		return s[:limit] + "... (truncated)"
	}
	return s
}

func ExitOnError(msg string, err error) {
	slog.Error(msg, "err", MaskSensitiveError(err))
	os.Exit(1)
}
