package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	yaml "go.yaml.in/yaml/v3"

	"github.com/lehigh-university-libraries/layoutml/pkg/pipeline"
	"github.com/lehigh-university-libraries/layoutml/pkg/providers"
	"github.com/lehigh-university-libraries/layoutml/pkg/raster"
	"github.com/lehigh-university-libraries/layoutml/pkg/render"
)

type Config struct {
	DatasetDir    string   `yaml:"dataset_dir"`
	ResultsDir    string   `yaml:"results_dir"`
	OutputExt     string   `yaml:"output_ext"`
	Overwrite     bool     `yaml:"overwrite"`
	Extractor     string   `yaml:"extractor"`
	Languages     []string `yaml:"languages"`
	Density       int      `yaml:"density"`
	FontPath      string   `yaml:"font_path"`
	MinFontSize   int      `yaml:"min_font_size"`
	MaxFontSize   int      `yaml:"max_font_size"`
	ShowBoxes     bool     `yaml:"show_boxes"`
	FirstPageOnly bool     `yaml:"first_page_only"`

	QA QA `yaml:"qa"`
}

// QA configures the ask command. RateLimit caps provider requests per
// second; zero is unlimited.
type QA struct {
	Provider    string        `yaml:"provider"`
	Model       string        `yaml:"model"`
	Prompt      string        `yaml:"prompt"`
	Temperature float64       `yaml:"temperature"`
	Timeout     time.Duration `yaml:"timeout"`
	Questions   []string      `yaml:"questions"`
	RateLimit   float64       `yaml:"rate_limit"`
}

func Default() Config {
	return Config{
		DatasetDir:  "dataset",
		ResultsDir:  "results",
		OutputExt:   "png",
		Extractor:   "tesseract",
		Density:     raster.DefaultDensity,
		MinFontSize: render.DefaultMinFontSize,
		MaxFontSize: render.DefaultMaxFontSize,
		QA: QA{
			Provider: "ollama",
			Timeout:  2 * time.Minute,
		},
	}
}

// Load reads a YAML file over the defaults. Environment variables in the
// file are expanded and unknown keys are rejected.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return cfg, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	var errs []error
	if c.DatasetDir == "" {
		errs = append(errs, errors.New("dataset_dir is required"))
	}
	if !render.Supported(c.OutputExt) {
		errs = append(errs, fmt.Errorf("output_ext %q is not one of %v", c.OutputExt, render.Extensions))
	}
	if c.Extractor == "" {
		errs = append(errs, errors.New("extractor is required"))
	}
	if c.Density <= 0 {
		errs = append(errs, fmt.Errorf("density must be positive, got %d", c.Density))
	}
	if c.MinFontSize <= 0 {
		errs = append(errs, fmt.Errorf("min_font_size must be positive, got %d", c.MinFontSize))
	}
	if c.MaxFontSize < 0 {
		errs = append(errs, fmt.Errorf("max_font_size must not be negative, got %d", c.MaxFontSize))
	} else if c.MaxFontSize > 0 && c.MaxFontSize < c.MinFontSize {
		errs = append(errs, fmt.Errorf("max_font_size %d is below min_font_size %d", c.MaxFontSize, c.MinFontSize))
	}
	if c.QA.Temperature < 0 {
		errs = append(errs, fmt.Errorf("qa.temperature must not be negative, got %g", c.QA.Temperature))
	}
	if c.QA.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("qa.rate_limit must not be negative, got %g", c.QA.RateLimit))
	}
	return errors.Join(errs...)
}

func (c Config) PipelineOptions() pipeline.Options {
	return pipeline.Options{
		DatasetDir:    c.DatasetDir,
		ResultsDir:    c.ResultsDir,
		OutputExt:     c.OutputExt,
		Overwrite:     c.Overwrite,
		ShowBoxes:     c.ShowBoxes,
		FirstPageOnly: c.FirstPageOnly,
	}
}

func (c Config) RenderOptions() render.Options {
	return render.Options{
		FontPath:    c.FontPath,
		MinFontSize: c.MinFontSize,
		MaxFontSize: c.MaxFontSize,
	}
}

func (c Config) ProviderConfig() providers.Config {
	return providers.Config{
		Provider:    c.QA.Provider,
		Model:       c.QA.Model,
		Prompt:      c.QA.Prompt,
		Temperature: c.QA.Temperature,
		Timeout:     c.QA.Timeout,
	}
}
