// Package docqa answers questions about a document by asking a
// vision-language provider about each of its page images in turn.
package docqa

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/time/rate"

	"github.com/lehigh-university-libraries/layoutml/internal/utils"
	"github.com/lehigh-university-libraries/layoutml/pkg/fsutil"
	"github.com/lehigh-university-libraries/layoutml/pkg/providers"
)

// DefaultQuestions are asked when none are given.
var DefaultQuestions = []string{
	"What is the invoice number?",
	"What is the invoice total?",
	"What is the GST amount?",
	"What is the invoice date?",
	"What is the due date?",
	"What is the customer?",
	"Who is the supplier?",
	"What is the trading terms?",
	"What is supplier ABN?",
	"What is supplier address?",
}

// NoPage marks an answer that no page produced.
const NoPage = -1

// Answer is the outcome for one question. Page is the index of the page
// image that produced the answer.
type Answer struct {
	Question string
	Answer   string
	Page     int
	Usage    providers.UsageInfo
	Err      error
}

// Found reports whether a page produced a usable answer.
func (a Answer) Found() bool {
	return a.Page != NoPage
}

// IsUnknown reports whether a provider response means the document does not
// contain the answer.
func IsUnknown(answer string) bool {
	a := strings.ToLower(strings.Trim(strings.TrimSpace(answer), ".\"'"))
	switch a {
	case "", "unknown", "n/a", "none", "not found", "not available":
		return true
	}
	return false
}

// Questions trims, drops empty entries and removes repeats, keeping the
// first occurrence's position.
func Questions(questions []string) []string {
	seen := make(map[string]bool, len(questions))
	out := make([]string, 0, len(questions))
	for _, q := range questions {
		q = strings.TrimSpace(q)
		if q == "" || seen[q] {
			continue
		}
		seen[q] = true
		out = append(out, q)
	}
	return out
}

type Answerer struct {
	provider providers.Provider
	config   providers.Config
	limiter  *rate.Limiter
}

func New(provider providers.Provider, config providers.Config) *Answerer {
	return &Answerer{provider: provider, config: config}
}

// WithRateLimit spaces provider requests to at most perSecond. Zero or less
// removes the limit.
func (a *Answerer) WithRateLimit(perSecond float64) *Answerer {
	if perSecond <= 0 {
		a.limiter = nil
		return a
	}
	a.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	return a
}

type page struct {
	path    string
	encoded string
}

func loadPages(paths []string) ([]page, error) {
	pages := make([]page, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read page image: %w", err)
		}
		pages = append(pages, page{path: p, encoded: base64.StdEncoding.EncodeToString(data)})
	}
	return pages, nil
}

// Ask answers each question in order. Pages are tried in order and the first
// answer that is not unknown wins. A provider error ends that question, is
// recorded masked on its Answer, and the next question is asked. The returned error
// is reserved for bad input, an invalid provider configuration and
// cancellation; answers gathered so far are returned with it.
func (a *Answerer) Ask(ctx context.Context, pagePaths []string, questions []string) ([]Answer, error) {
	if len(pagePaths) == 0 {
		return nil, errors.New("no page images to ask about")
	}
	if err := a.provider.ValidateConfig(a.config); err != nil {
		return nil, err
	}
	pages, err := loadPages(pagePaths)
	if err != nil {
		return nil, err
	}

	questions = Questions(questions)
	if len(questions) == 0 {
		questions = DefaultQuestions
	}

	answers := make([]Answer, 0, len(questions))
	for _, q := range questions {
		answer, err := a.ask(ctx, pages, q)
		if err != nil {
			return answers, err
		}
		answers = append(answers, answer)
	}
	return answers, nil
}

func (a *Answerer) ask(ctx context.Context, pages []page, question string) (Answer, error) {
	answer := Answer{Question: question, Page: NoPage}
	for n, p := range pages {
		if err := ctx.Err(); err != nil {
			return answer, err
		}
		if a.limiter != nil {
			if err := a.limiter.Wait(ctx); err != nil {
				return answer, err
			}
		}

		text, usage, err := a.provider.Ask(ctx, a.config, question, p.path, p.encoded)
		answer.Usage.Add(usage)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return answer, ctxErr
			}
			// provider errors can carry request URLs and keys
			answer.Err = utils.MaskSensitiveError(err)
			slog.Warn("Question failed", "question", question, "page", n, "provider", a.provider.Name(), "err", answer.Err)
			return answer, nil
		}

		slog.Debug("Provider answered", "question", question, "page", n, "answer", text)
		if !IsUnknown(text) {
			answer.Answer = text
			answer.Page = n
			return answer, nil
		}
	}
	return answer, nil
}

type answerRecord struct {
	Question     string `yaml:"question" json:"question"`
	Answer       string `yaml:"answer" json:"answer"`
	Page         int    `yaml:"page" json:"page"`
	InputTokens  int    `yaml:"input_tokens,omitempty" json:"input_tokens,omitempty"`
	OutputTokens int    `yaml:"output_tokens,omitempty" json:"output_tokens,omitempty"`
	Error        string `yaml:"error,omitempty" json:"error,omitempty"`
}

// Save writes answers to path, formatted by its extension (.yaml, .yml,
// .json or .txt). The directory must exist.
func Save(path string, answers []Answer) error {
	records := make([]answerRecord, 0, len(answers))
	for _, a := range answers {
		r := answerRecord{
			Question:     a.Question,
			Answer:       a.Answer,
			Page:         a.Page,
			InputTokens:  a.Usage.InputTokens,
			OutputTokens: a.Usage.OutputTokens,
		}
		if a.Err != nil {
			r.Error = a.Err.Error()
		}
		records = append(records, r)
	}

	var data any = records
	if strings.EqualFold(filepath.Ext(path), ".txt") {
		data = Format(answers)
	}

	_, err := fsutil.Save(fsutil.Raise, filepath.Dir(path), filepath.Base(path), data, 2)
	return err
}

// Format renders answers one per line, each question followed by its answer.
func Format(answers []Answer) string {
	var b strings.Builder
	for _, a := range answers {
		value := a.Answer
		switch {
		case a.Err != nil:
			value = "error: " + a.Err.Error()
		case !a.Found():
			value = "unknown"
		}
		fmt.Fprintf(&b, "%s %s\n", a.Question, value)
	}
	return b.String()
}
