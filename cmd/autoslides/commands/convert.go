package commands

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/autoslides/cmd/autoslides/ui"
	"github.com/spherical/autoslides/internal/deck"
	"github.com/spherical/autoslides/internal/pdf"
)

var (
	convertOutput string
	convertScale  float64
)

var convertCmd = &cobra.Command{
	Use:   "convert <report.pdf>",
	Short: "Convert a PDF report into a slide deck",
	Long: `Convert rasterizes every page of a PDF and writes one full-bleed picture
slide per page into a 16:9 deck.

Example:
  autoslides convert report.pdf -o report.pptx --scale 1.5`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "deck path (default: input name with .pptx)")
	convertCmd.Flags().Float64Var(&convertScale, "scale", 0, "rasterization scale factor (default from config)")

	rootCmd.AddCommand(convertCmd)
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]
	output := convertOutput
	if output == "" {
		output = strings.TrimSuffix(input, filepath.Ext(input)) + ".pptx"
	}
	scale := appCfg.Pipeline.Scale
	if convertScale != 0 {
		scale = convertScale
	}
	if err := pdf.ValidateScale(scale); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	data, err := pdf.ReadFile(input)
	if err != nil {
		return err
	}

	start := time.Now()
	spin := ui.NewSpinner(fmt.Sprintf("Rasterizing %s...", filepath.Base(input)))
	spin.Start()
	pages, err := pdf.NewRasterizer(pdf.WithLogger(logger)).RenderAll(ctx, data, scale)
	if err != nil {
		spin.Stop()
		return err
	}

	spin.UpdateMessage(fmt.Sprintf("Writing %d slides...", len(pages)))
	path, err := deck.NewBuilder(logger).Build(ctx, pages, output)
	spin.Stop()
	if err != nil {
		return err
	}

	ui.Success("Wrote %s (%d slides) in %s", path, len(pages), ui.FormatDuration(time.Since(start)))
	return nil
}
