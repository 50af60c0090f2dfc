package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lehigh-university-libraries/layoutml/internal/config"
	"github.com/lehigh-university-libraries/layoutml/pkg/render"
)

// layoutFlags are the extraction and rendering flags shared by process and
// extract. Only flags set on the command line override the config file.
type layoutFlags struct {
	ext       string
	extractor string
	languages []string
	font      string
	showBoxes bool
}

func (f *layoutFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ext, "ext", "", "Image format for outputs: "+fmt.Sprint(render.Extensions))
	cmd.Flags().StringVar(&f.extractor, "extractor", "", "OCR engine: tesseract, gvision, azure")
	cmd.Flags().StringSliceVar(&f.languages, "lang", nil, "Tesseract languages, e.g. eng,deu")
	cmd.Flags().StringVar(&f.font, "font", "", "TrueType font used to render text")
	cmd.Flags().BoolVar(&f.showBoxes, "show-boxes", false, "Outline word boxes on the rendered text image")
}

func (f *layoutFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ext") {
		cfg.OutputExt = f.ext
	}
	if flags.Changed("extractor") {
		cfg.Extractor = f.extractor
	}
	if flags.Changed("lang") {
		cfg.Languages = f.languages
	}
	if flags.Changed("font") {
		cfg.FontPath = f.font
	}
	if flags.Changed("show-boxes") {
		cfg.ShowBoxes = f.showBoxes
	}
}
