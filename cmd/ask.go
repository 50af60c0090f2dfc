package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/layoutml/internal/config"
	"github.com/lehigh-university-libraries/layoutml/internal/utils"
	"github.com/lehigh-university-libraries/layoutml/pkg/docqa"
	"github.com/lehigh-university-libraries/layoutml/pkg/fsutil"
	"github.com/lehigh-university-libraries/layoutml/pkg/raster"
	"github.com/lehigh-university-libraries/layoutml/pkg/render"
)

var askCmd = &cobra.Command{
	Use:   "ask",
	Short: "Ask a vision-language model questions about a document",
	Long: `Answer questions about a PDF or page image. PDFs are rasterized first and
each question is asked page by page until one page answers it.

Without --question the default invoice questions are asked.`,
	RunE: runAsk,
}

var (
	askDoc         string
	askProvider    string
	askModel       string
	askPrompt      string
	askTemperature float64
	askQuestions   []string
	askOutput      string
)

func init() {
	RootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVar(&askDoc, "doc", "", "Path to a PDF or page image (required)")
	askCmd.Flags().StringVar(&askProvider, "provider", "", "Provider to use: openai, claude, gemini, ollama")
	askCmd.Flags().StringVarP(&askModel, "model", "m", "", "Model to use (uses provider default if not specified)")
	askCmd.Flags().StringVarP(&askPrompt, "prompt", "p", "", "Prompt template, {{.Question}} is replaced by each question")
	askCmd.Flags().Float64VarP(&askTemperature, "temperature", "t", 0.0, "Temperature for the model")
	askCmd.Flags().StringArrayVarP(&askQuestions, "question", "q", nil, "Question to ask, may be repeated")
	askCmd.Flags().StringVarP(&askOutput, "output", "o", "", "Write answers to a .yaml, .json or .txt file instead of stdout")

	if err := askCmd.MarkFlagRequired("doc"); err != nil {
		utils.ExitOnError("Unable to mark doc as required", err)
	}
}

func askConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}

	flags := cmd.Flags()
	if flags.Changed("provider") {
		cfg.QA.Provider = askProvider
	}
	if flags.Changed("model") {
		cfg.QA.Model = askModel
	}
	if flags.Changed("prompt") {
		cfg.QA.Prompt = askPrompt
	}
	if flags.Changed("temperature") {
		cfg.QA.Temperature = askTemperature
	}
	if flags.Changed("question") {
		cfg.QA.Questions = askQuestions
	}
	return cfg, cfg.Validate()
}

// pageImages returns the page images of doc. A PDF is rasterized into a
// temporary directory that the returned func removes.
func pageImages(cmd *cobra.Command, doc string, density int) ([]string, func(), error) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(doc)), ".")
	if render.Supported(ext) {
		return []string{doc}, func() {}, nil
	}
	if ext != "pdf" {
		return nil, nil, fmt.Errorf("unsupported document type %q", filepath.Ext(doc))
	}

	dir, err := os.MkdirTemp("", "layoutml-ask-")
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := os.RemoveAll(dir); err != nil {
			slog.Warn("Failed to remove page images", "dir", dir, "err", err)
		}
	}

	pages, err := raster.NewMagick(density).Rasterize(cmd.Context(), doc, dir, "png")
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	if len(pages) == 0 {
		cleanup()
		return nil, nil, errNoPages
	}
	slog.Debug("Rasterized document", "doc", doc, "pages", len(pages))
	return pages, cleanup, nil
}

func runAsk(cmd *cobra.Command, args []string) error {
	if _, _, err := fsutil.CheckPath(fsutil.Raise, "", askDoc); err != nil {
		return fmt.Errorf("input document does not exist: %w", err)
	}

	cfg, err := askConfig(cmd)
	if err != nil {
		return err
	}

	provider, err := newProviderRegistry().Get(cfg.QA.Provider)
	if err != nil {
		return err
	}

	pages, cleanup, err := pageImages(cmd, askDoc, cfg.Density)
	if err != nil {
		return err
	}
	defer cleanup()

	slog.Info("Asking questions", "doc", askDoc, "pages", len(pages), "provider", provider.Name(), "model", cfg.QA.Model)
	answers, err := docqa.New(provider, cfg.ProviderConfig()).WithRateLimit(cfg.QA.RateLimit).Ask(cmd.Context(), pages, cfg.QA.Questions)
	if err != nil {
		return utils.MaskSensitiveError(err)
	}

	var usage int
	for _, a := range answers {
		usage += a.Usage.InputTokens + a.Usage.OutputTokens
		if a.Err != nil {
			slog.Warn("Question failed", "question", a.Question, "err", a.Err)
		}
	}
	slog.Info("Answered questions", "questions", len(answers), "tokens", usage)

	if askOutput == "" {
		fmt.Fprint(cmd.OutOrStdout(), docqa.Format(answers))
		return nil
	}
	if err := docqa.Save(askOutput, answers); err != nil {
		return err
	}
	slog.Info("Saved answers", "path", askOutput)
	return nil
}
