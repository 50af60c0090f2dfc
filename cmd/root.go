package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/layoutml/internal/config"
	"github.com/lehigh-university-libraries/layoutml/internal/utils"
)

var RootCmd = &cobra.Command{
	Use:   "layoutml",
	Short: "Build LayoutLM inputs from scanned documents",
	Long: `Rasterize PDF documents, extract words and their bounding boxes with an OCR
engine, and write the word records and visual checks a LayoutLM model is
fine-tuned on. Documents can also be queried with a vision-language model.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		ll, err := cmd.Flags().GetString("log-level")
		if err != nil {
			return err
		}

		opts := &slog.HandlerOptions{
			Level: utils.ParseLogLevel(ll),
		}
		handler := slog.New(slog.NewTextHandler(os.Stdout, opts))
		slog.SetDefault(handler)

		return nil
	},
}

func Execute() {
	err := RootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var configPath string

func init() {
	ll := os.Getenv("LOG_LEVEL")
	if ll == "" {
		ll = "INFO"
	}
	RootCmd.PersistentFlags().String("log-level", ll, "The logging level for the command")
	RootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("LAYOUTML_CONFIG"), "Path to a YAML config file")
}

// loadConfig reads --config, or returns the defaults when it is unset.
func loadConfig() (config.Config, error) {
	if configPath == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return cfg, err
	}
	slog.Debug("Loaded config", "path", configPath)
	return cfg, nil
}
