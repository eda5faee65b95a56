package commands

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/autoslides/cmd/autoslides/ui"
	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/cooldown"
	"github.com/spherical/autoslides/internal/deck"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
	"github.com/spherical/autoslides/internal/pdf"
	"github.com/spherical/autoslides/internal/pipeline"
	"github.com/spherical/autoslides/internal/publish"
	"github.com/spherical/autoslides/internal/report"
	"github.com/spherical/autoslides/internal/storage"
)

var (
	runStart       string
	runEnd         string
	runVentures    []string
	runBrands      []string
	runWorkers     int
	runSkip        string
	runNoSummarize bool
	runNoPublish   bool
	runDryRun      bool
	runOutputDir   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Produce decks for every configured brand",
	Long: `Run reads the venture/brand rows from the configuration store, exports the
dashboard for each brand over the given date range, converts the export into a
deck, adds narrative summaries and publishes the decks. A manifest describing
every item is written to the output directory.

Example:
  autoslides run --start 2025-05-01 --end 2025-05-31 --venture SG`,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVar(&runStart, "start", "", "start date (YYYY-MM-DD or YYYYMMDD)")
	runCmd.Flags().StringVar(&runEnd, "end", "", "end date (YYYY-MM-DD or YYYYMMDD)")
	runCmd.Flags().StringSliceVar(&runVentures, "venture", nil, "only process these ventures")
	runCmd.Flags().StringSliceVar(&runBrands, "brand", nil, "only process these brands")
	runCmd.Flags().IntVarP(&runWorkers, "workers", "w", 0, "concurrent work items (default from config)")
	runCmd.Flags().StringVar(&runSkip, "skip", "", "comma separated slide numbers left without a summary")
	runCmd.Flags().BoolVar(&runNoSummarize, "no-summarize", false, "skip narrative summaries")
	runCmd.Flags().BoolVar(&runNoPublish, "no-publish", false, "skip publishing")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "publish to an in-memory store instead of Drive")
	runCmd.Flags().StringVarP(&runOutputDir, "output", "o", "", "output directory (default from config)")

	rootCmd.AddCommand(runCmd)
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg := appCfg
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	runID := pipeline.NewRunID()
	ctx = observability.ContextWithRunID(ctx, runID)
	started := time.Now()

	ui.Section("Deck Run")
	ui.KeyValue("Run", runID)
	ui.KeyValue("Date range", fmt.Sprintf("%s to %s", cfg.Pipeline.DateRange.Start, cfg.Pipeline.DateRange.End))
	ui.KeyValue("Output", cfg.Pipeline.OutputDir)
	fmt.Println()

	items, err := loadWorkItems(ctx, cfg)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		ui.Warning("No ventures matched; nothing to do")
		return nil
	}
	ui.Info("%d work items", len(items))

	orch, closeGate, err := newOrchestrator(cfg)
	if err != nil {
		return err
	}
	defer closeGate()

	events := make(chan domain.Event, len(items)*8+2)
	done := make(chan struct{})
	go showProgress(events, len(items), cfg.Pipeline.Workers, done)

	entries := orch.Run(ctx, items, events)
	close(events)
	<-done

	manifest := &pipeline.Manifest{
		RunID:     runID,
		CreatedAt: started.UTC(),
		DateRange: cfg.Pipeline.DateRange,
		Entries:   entries,
	}

	if cfg.Pipeline.Publish {
		store, err := newObjectStore(ctx, cfg, runDryRun)
		if err != nil {
			ui.Error("Publishing disabled: %v", err)
		} else {
			seedDryRunFolders(store, entries)
			publisher := publish.NewPublisher(store, logger, publish.WithVentureSubfolders(cfg.Drive.VentureSubfolders))
			manifest.Published = publisher.PublishAll(ctx, entries)
		}
	}

	path, err := pipeline.WriteManifest(cfg.Pipeline.OutputDir, manifest)
	if err != nil {
		return err
	}

	printEntries(entries)
	if len(manifest.Published) > 0 {
		printPublished(manifest.Published)
	}

	ok, failed := pipeline.Tally(entries)
	fmt.Println()
	ui.KeyValue("Manifest", path)
	ui.KeyValue("Elapsed", ui.FormatDuration(time.Since(started)))
	if failed > 0 {
		ui.Warning("%d of %d decks failed", failed, ok+failed)
		return fmt.Errorf("%d work items failed", failed)
	}
	ui.Success("All %d decks produced", ok)
	return nil
}

// applyRunFlags folds command line overrides into cfg.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	if runStart != "" {
		cfg.Pipeline.DateRange.Start = runStart
	}
	if runEnd != "" {
		cfg.Pipeline.DateRange.End = runEnd
	}
	if cfg.Pipeline.DateRange.Start == "" || cfg.Pipeline.DateRange.End == "" {
		return domain.ValidationError("a date range is required (--start and --end)", nil)
	}
	if err := cfg.Pipeline.DateRange.Validate(); err != nil {
		return err
	}

	if len(runVentures) > 0 {
		cfg.Database.Ventures = runVentures
	}
	if len(runBrands) > 0 {
		cfg.Database.Brands = runBrands
	}
	if runWorkers > 0 {
		cfg.Pipeline.Workers = runWorkers
	}
	if runOutputDir != "" {
		cfg.Pipeline.OutputDir = runOutputDir
	}
	if cmd.Flags().Changed("skip") {
		skips, err := config.ParseSlideList(runSkip)
		if err != nil {
			return domain.ValidationError("invalid --skip", err)
		}
		cfg.Pipeline.SkipSlides = skips
	}
	if runNoSummarize {
		cfg.Pipeline.Summarize = false
	}
	if runNoPublish {
		cfg.Pipeline.Publish = false
	}
	return nil
}

func loadWorkItems(ctx context.Context, cfg *config.Config) ([]domain.WorkItem, error) {
	repo, db, err := openVentures(cfg, storage.Filter{
		Ventures: cfg.Database.Ventures,
		Brands:   cfg.Database.Brands,
	})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := repo.ListVentures(ctx)
	if err != nil {
		return nil, err
	}
	return domain.WorkItemsFromConfigs(rows, cfg.Pipeline.DateRange), nil
}

func newOrchestrator(cfg *config.Config) (*pipeline.Orchestrator, func(), error) {
	gate, err := cooldown.New(cfg.Cooldown, cfg.Pipeline.Cooldown, logger)
	if err != nil {
		return nil, nil, err
	}
	closeGate := func() {
		if err := gate.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close cooldown gate")
		}
	}

	deps := pipeline.Deps{
		Source:   report.NewClient(cfg.Report, report.WithLogger(logger)),
		Renderer: pdf.NewRasterizer(pdf.WithLogger(logger)),
		Builder:  deck.NewBuilder(logger),
		Gate:     gate,
		Logger:   logger,
	}
	if cfg.Pipeline.Summarize {
		summarizer, err := newSummarizer(cfg)
		if err != nil {
			closeGate()
			return nil, nil, err
		}
		deps.Narrator = summarizer
	}

	return pipeline.New(pipeline.Config{
		OutputDir: cfg.Pipeline.OutputDir,
		Scale:     cfg.Pipeline.Scale,
		Workers:   cfg.Pipeline.Workers,
		Summary:   summaryOptions(cfg),
	}, deps), closeGate, nil
}

// showProgress renders orchestrator events until events is closed. A single
// worker gets one bar; concurrent workers get a line per in-flight item.
func showProgress(events <-chan domain.Event, total, workers int, done chan<- struct{}) {
	defer close(done)
	if workers > 1 {
		showStages(events, ui.NewStageBoard(total))
		return
	}
	bar := ui.NewProgressBar(int64(total), "Starting")
	for ev := range events {
		switch ev.Type {
		case domain.EventItemStage:
			bar.Describe(fmt.Sprintf("%-24s %v", ev.Item.String(), ev.Payload))
		case domain.EventItemComplete, domain.EventError:
			bar.Add(1)
		case domain.EventComplete:
			bar.Finish()
		}
	}
}

func showStages(events <-chan domain.Event, board *ui.StageBoard) {
	defer board.Close()
	for ev := range events {
		switch ev.Type {
		case domain.EventItemStart:
			board.Start(ev.Index, ev.Item.String())
		case domain.EventItemStage:
			board.Stage(ev.Index, ev.Item.String(), fmt.Sprint(ev.Payload))
		case domain.EventItemComplete:
			board.Finish(ev.Index, ev.Entry == nil || ev.Entry.Succeeded())
		case domain.EventError:
			board.Finish(ev.Index, false)
		}
	}
}

func printEntries(entries []domain.ManifestEntry) {
	ui.Section("Decks")
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Item.Venture,
			e.Item.Brand,
			ui.Status(e.Succeeded()),
			strconv.Itoa(e.Slides),
			strconv.Itoa(e.Summaries),
			ui.Truncate(e.Detail, 60),
		})
	}
	ui.Table([]string{"VENTURE", "BRAND", "STATUS", "SLIDES", "SUMMARIES", "DETAIL"}, rows)
}

func printPublished(results []publish.Result) {
	ui.Section("Published")
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.FileName,
			ui.Status(r.OK()),
			r.FileID,
			strconv.Itoa(r.Replaced),
			ui.Truncate(r.Detail, 60),
		})
	}
	ui.Table([]string{"FILE", "STATUS", "FILE ID", "REPLACED", "DETAIL"}, rows)
}
