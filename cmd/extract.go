package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/layoutml/internal/utils"
	"github.com/lehigh-university-libraries/layoutml/pkg/export"
	"github.com/lehigh-university-libraries/layoutml/pkg/fsutil"
	"github.com/lehigh-university-libraries/layoutml/pkg/pipeline"
	"github.com/lehigh-university-libraries/layoutml/pkg/render"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract words and boxes from a single page image",
	Long: `Run the OCR engine over one page image and write the same per-page outputs
as the process command into the output directory.`,
	RunE: runExtract,
}

var (
	extractLayout layoutFlags
	extractImage  string
	extractOut    string
	extractVerify bool
)

func init() {
	RootCmd.AddCommand(extractCmd)

	extractLayout.register(extractCmd)
	extractCmd.Flags().StringVar(&extractImage, "image", "", "Path to input page image (required)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", ".", "Output directory, created if missing")
	extractCmd.Flags().BoolVar(&extractVerify, "verify", false, "Read the exported records back and log them")

	if err := extractCmd.MarkFlagRequired("image"); err != nil {
		utils.ExitOnError("Unable to mark image as required", err)
	}
}

func runExtract(cmd *cobra.Command, args []string) error {
	if _, _, err := fsutil.CheckPath(fsutil.Raise, "", extractImage); err != nil {
		return fmt.Errorf("input image file does not exist: %w", err)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	extractLayout.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	extractor, release, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	defer release()

	renderer, err := render.New(cfg.RenderOptions())
	if err != nil {
		return err
	}
	defer renderer.Close()

	outDir, err := fsutil.MakePath(extractOut)
	if err != nil {
		return err
	}

	p := pipeline.New(cfg.PipelineOptions(), nil, extractor, renderer)
	if err := p.ProcessPage(cmd.Context(), extractImage, outDir); err != nil {
		return utils.MaskSensitiveError(err)
	}
	slog.Info("Extracted page", "image", extractImage, "extractor", extractor.Name(), "out", outDir)

	if !extractVerify {
		return nil
	}
	records, err := export.LoadRecords(filepath.Join(outDir, pipeline.RecordName))
	if err != nil {
		return err
	}
	for _, r := range records {
		slog.Info("Word", "key", r.Key, "text", r.Text, "bbox", r.BBox)
	}
	slog.Info("Verified records", "count", len(records))
	return nil
}
