package commands

import (
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/spherical/autoslides/cmd/autoslides/ui"
	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/narrative"
)

var (
	summarizeSkip   string
	summarizeMode   string
	summarizePolicy string
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <deck.pptx>",
	Short: "Overlay narrative summaries on an existing deck",
	Long: `Summarize sends each slide image to the configured vision model, carrying
the story of earlier slides forward, and saves the deck with a summary text box
on every slide that is not skipped.

Example:
  autoslides summarize Acme_20250501_20250531.pptx --skip 1,5,8`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().StringVar(&summarizeSkip, "skip", "", "comma separated slide numbers to leave untouched (default from config)")
	summarizeCmd.Flags().StringVar(&summarizeMode, "mode", "", "strict or tolerant (default from config)")
	summarizeCmd.Flags().StringVar(&summarizePolicy, "policy", "", "replace or reject existing summaries (default from config)")

	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	path := args[0]

	opts := summaryOptions(appCfg)
	if cmd.Flags().Changed("skip") {
		skips, err := config.ParseSlideList(summarizeSkip)
		if err != nil {
			return domain.ValidationError("invalid --skip", err)
		}
		opts.Skip = skips
	}
	if summarizeMode != "" {
		opts.Mode = narrative.Mode(summarizeMode)
	}
	if summarizePolicy != "" {
		opts.Policy = narrative.OverlayPolicy(summarizePolicy)
	}

	summarizer, err := newSummarizer(appCfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	spin := ui.NewSpinner(fmt.Sprintf("Summarizing %s...", filepath.Base(path)))
	spin.Start()
	result, err := summarizer.Summarize(ctx, path, opts)
	spin.Stop()
	if err != nil {
		return err
	}

	if ui.Verbose() {
		rows := make([][]string, 0, len(result.Summaries))
		for _, s := range result.Summaries {
			rows = append(rows, []string{strconv.Itoa(s.Slide), ui.Truncate(s.Text, 80)})
		}
		ui.Table([]string{"SLIDE", "SUMMARY"}, rows)
	}
	for _, f := range result.Failures {
		ui.Warning("Slide %d: %v", f.Slide, f.Err)
	}

	ui.Success("Added %d summaries to %s (%d slides)", len(result.Summaries), path, result.Slides)
	return nil
}
