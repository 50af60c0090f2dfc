package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/layoutml/internal/config"
	"github.com/lehigh-university-libraries/layoutml/internal/utils"
	"github.com/lehigh-university-libraries/layoutml/pkg/pipeline"
	"github.com/lehigh-university-libraries/layoutml/pkg/raster"
	"github.com/lehigh-university-libraries/layoutml/pkg/render"
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run the LayoutLM preprocessing pipeline over a dataset directory",
	Long: `Rasterize every PDF under the dataset directory into page images, extract
words and bounding boxes from each page, and write for every page:

  bboxes_on_raw.<ext>      the page with word boxes drawn on it
  extracted_text.<ext>     the words re-typeset at their boxes
  extracted_text.json      the word records

Documents whose page images already exist are not rasterized again unless
--overwrite is set.`,
	RunE: runProcess,
}

var (
	processLayout        layoutFlags
	processDataset       string
	processResults       string
	processDensity       int
	processOverwrite     bool
	processFirstPageOnly bool
)

func init() {
	RootCmd.AddCommand(processCmd)

	processLayout.register(processCmd)
	processCmd.Flags().StringVar(&processDataset, "dataset", "", "Directory searched recursively for PDF documents")
	processCmd.Flags().StringVar(&processResults, "results", "", "Directory for page images and outputs")
	processCmd.Flags().IntVar(&processDensity, "density", 0, "Rasterization density in DPI")
	processCmd.Flags().BoolVar(&processOverwrite, "overwrite", false, "Rasterize documents again even if their page images exist")
	processCmd.Flags().BoolVar(&processFirstPageOnly, "first-page-only", false, "Only extract the first page of each document")
}

func processConfig(cmd *cobra.Command) (config.Config, error) {
	cfg, err := loadConfig()
	if err != nil {
		return cfg, err
	}

	processLayout.apply(cmd, &cfg)
	flags := cmd.Flags()
	if flags.Changed("dataset") {
		cfg.DatasetDir = processDataset
	}
	if flags.Changed("results") {
		cfg.ResultsDir = processResults
	}
	if flags.Changed("density") {
		cfg.Density = processDensity
	}
	if flags.Changed("overwrite") {
		cfg.Overwrite = processOverwrite
	}
	if flags.Changed("first-page-only") {
		cfg.FirstPageOnly = processFirstPageOnly
	}
	return cfg, cfg.Validate()
}

func runProcess(cmd *cobra.Command, args []string) error {
	cfg, err := processConfig(cmd)
	if err != nil {
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

	p := pipeline.New(cfg.PipelineOptions(), raster.NewMagick(cfg.Density), extractor, renderer)
	report, err := p.Run(cmd.Context())
	if err != nil {
		return utils.MaskSensitiveError(err)
	}

	slog.Info("Pipeline finished",
		"extractor", extractor.Name(),
		"documents", len(report.Documents),
		"reused", len(report.Reused),
		"pages", report.Pages,
		"failed", len(report.Failed),
	)
	for _, f := range report.Failed {
		slog.Warn("Document was not processed", "doc", f.Document, "err", utils.MaskSensitiveError(f.Err))
	}
	if len(report.Failed) > 0 {
		return fmt.Errorf("%d of %d documents failed", len(report.Failed), len(report.Failed)+len(report.Documents))
	}
	return nil
}
