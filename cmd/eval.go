package cmd

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/layoutml/internal/utils"
	"github.com/lehigh-university-libraries/layoutml/pkg/fsutil"
	"github.com/lehigh-university-libraries/layoutml/pkg/layout"
	"github.com/lehigh-university-libraries/layoutml/pkg/metrics"
	"github.com/lehigh-university-libraries/layoutml/pkg/raster"
)

type EvalConfig struct {
	Extractor string   `yaml:"extractor"`
	Languages []string `yaml:"languages,omitempty"`
	CSVPath   string   `yaml:"csv_path"`
	TestRows  []int    `yaml:"rows,omitempty"`
	Timestamp string   `yaml:"timestamp"`
}

type EvalResult struct {
	Identifier     string `yaml:"identifier"`
	ImagePath      string `yaml:"image_path"`
	TranscriptPath string `yaml:"transcript_path"`
	Extracted      string `yaml:"extracted"`

	metrics.Result `yaml:",inline"`
}

type EvalSummary struct {
	Config  EvalConfig     `yaml:"config"`
	Average metrics.Result `yaml:"average"`
	Results []EvalResult   `yaml:"results"`
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Evaluate an OCR engine against ground truth transcripts",
	Long: `Run the OCR engine over page images and compare the extracted words with
ground truth transcripts.

The CSV file has 2 columns:
  image,transcript

Where:
  - image: path to a page image
  - transcript: path to the text expected on that page

Results are saved as YAML under the output directory.

Example:
  layoutml eval --csv invoices.csv --dir ./fixtures --extractor tesseract`,
	RunE: runEval,
}

var (
	evalLayout  layoutFlags
	evalCSVPath string
	evalDir     string
	evalOut     string
	evalRows    []int
)

func init() {
	RootCmd.AddCommand(evalCmd)

	evalLayout.register(evalCmd)
	evalCmd.Flags().StringVarP(&evalCSVPath, "csv", "c", "", "Path to CSV file with evaluation data (required)")
	evalCmd.Flags().StringVar(&evalDir, "dir", "./", "Prepend your CSV file paths with a directory")
	evalCmd.Flags().StringVar(&evalOut, "out", "evals", "Directory the evaluation summary is saved in")
	evalCmd.Flags().IntSliceVar(&evalRows, "rows", []int{}, "A list of row numbers to run the test on")

	if err := evalCmd.MarkFlagRequired("csv"); err != nil {
		utils.ExitOnError("Unable to mark csv as required", err)
	}
}

func runEval(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	evalLayout.apply(cmd, &cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	extractor, release, err := newExtractor(cfg)
	if err != nil {
		return err
	}
	defer release()

	rows, err := readEvalCSV(evalCSVPath)
	if err != nil {
		return err
	}

	config := EvalConfig{
		Extractor: extractor.Name(),
		Languages: cfg.Languages,
		CSVPath:   evalCSVPath,
		TestRows:  evalRows,
		Timestamp: time.Now().Format("2006-01-02_15-04-05"),
	}

	results, err := evaluate(cmd.Context(), extractor, rows, evalDir, evalRows)
	if err != nil {
		return fmt.Errorf("evaluation failed: %w", err)
	}

	summary := EvalSummary{
		Config:  config,
		Average: metrics.Average(resultMetrics(results)),
		Results: results,
	}

	outDir, err := fsutil.MakePath(evalOut)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("eval_%s_%s.yaml", config.Extractor, config.Timestamp)
	if _, err := fsutil.Save(fsutil.Raise, outDir, name, summary, 2); err != nil {
		return fmt.Errorf("failed to save results: %w", err)
	}

	fmt.Printf("\nEvaluation completed. Results saved to: %s\n", filepath.Join(outDir, name))
	printSummaryStats(summary)
	return nil
}

// readEvalCSV returns the data rows, dropping a header row that starts
// with "image".
func readEvalCSV(path string) ([][]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("CSV file is empty")
	}

	if strings.EqualFold(strings.TrimSpace(records[0][0]), "image") {
		records = records[1:]
	}
	return records, nil
}

// evaluate scores every selected row, all rows when selected is empty.
// Rows that fail are logged and left out.
func evaluate(ctx context.Context, extractor layout.Extractor, rows [][]string, dir string, selected []int) ([]EvalResult, error) {
	var results []EvalResult
	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		if len(selected) > 0 && !slices.Contains(selected, i) {
			slog.Debug("Skipping row", "row", i+1)
			continue
		}
		if len(row) < 2 {
			slog.Warn("Insufficient columns (expected 2: image, transcript)", "row", i+1, "columns", len(row))
			continue
		}

		result, err := evaluateRow(ctx, extractor, row, dir)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return results, err
			}
			slog.Error("Error processing row", "row", i+1, "err", utils.MaskSensitiveError(err))
			continue
		}

		results = append(results, result)
		printRowResult(result)
	}

	if len(results) == 0 {
		return nil, errors.New("no rows were successfully processed")
	}
	return results, nil
}

func evaluateRow(ctx context.Context, extractor layout.Extractor, row []string, dir string) (EvalResult, error) {
	imagePath := filepath.Join(dir, strings.TrimSpace(row[0]))
	transcriptPath := filepath.Join(dir, strings.TrimSpace(row[1]))

	groundTruth, err := os.ReadFile(transcriptPath)
	if err != nil {
		return EvalResult{}, fmt.Errorf("failed to read transcript: %w", err)
	}

	page, err := raster.LoadPage(imagePath)
	if err != nil {
		return EvalResult{}, err
	}
	extraction, err := extractor.Extract(ctx, page)
	if err != nil {
		return EvalResult{}, fmt.Errorf("%s extraction failed: %w", extractor.Name(), err)
	}

	extracted := strings.Join(extraction.Words, " ")
	return EvalResult{
		Identifier:     filepath.Base(imagePath),
		ImagePath:      imagePath,
		TranscriptPath: transcriptPath,
		Extracted:      extracted,
		Result:         metrics.Calculate(string(groundTruth), extracted),
	}, nil
}

func resultMetrics(results []EvalResult) []metrics.Result {
	out := make([]metrics.Result, len(results))
	for i, r := range results {
		out[i] = r.Result
	}
	return out
}

func printRowResult(result EvalResult) {
	fmt.Printf("\n=== Results for %s ===\n", result.Identifier)
	fmt.Printf("Image: %s\n", result.ImagePath)
	fmt.Printf("Transcript: %s\n", result.TranscriptPath)
	fmt.Printf("Character Similarity: %.3f\n", result.CharacterSimilarity)
	fmt.Printf("Word Similarity: %.3f\n", result.WordSimilarity)
	fmt.Printf("Word Accuracy: %.3f\n", result.WordAccuracy)
	fmt.Printf("Word Error Rate: %.3f\n", result.WordErrorRate)
	fmt.Printf("Correct Words: %d of %d\n", result.CorrectWords, result.TotalWordsOriginal)
}

func printSummaryStats(summary EvalSummary) {
	avg := summary.Average
	fmt.Printf("\n=== SUMMARY STATISTICS (%s) ===\n", summary.Config.Extractor)
	fmt.Printf("Total Evaluations: %d\n", len(summary.Results))
	fmt.Printf("Average Character Similarity: %.3f\n", avg.CharacterSimilarity)
	fmt.Printf("Average Word Similarity: %.3f\n", avg.WordSimilarity)
	fmt.Printf("Average Word Accuracy: %.3f\n", avg.WordAccuracy)
	fmt.Printf("Average Word Error Rate: %.3f\n", avg.WordErrorRate)
}
