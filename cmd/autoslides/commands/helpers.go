package commands

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/spherical/autoslides/cmd/autoslides/ui"
	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/drive"
	"github.com/spherical/autoslides/internal/llm"
	"github.com/spherical/autoslides/internal/narrative"
	"github.com/spherical/autoslides/internal/storage"
)

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case <-sigChan:
			ui.Warning("Interrupt received, stopping after the current step...")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigChan)
	}()

	return ctx, cancel
}

// openVentures opens the configuration store with the configured filters.
func openVentures(cfg *config.Config, filter storage.Filter) (*storage.VentureRepository, *sql.DB, error) {
	db, err := storage.Open(cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	repo, err := storage.NewVentureRepository(db, storage.Dialect(cfg.Database.Driver), cfg.Database.Table, filter, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return repo, db, nil
}

// newObjectStore returns the Drive service, or an in-memory store on dry runs.
func newObjectStore(ctx context.Context, cfg *config.Config, dryRun bool) (domain.ObjectStore, error) {
	if dryRun || cfg.Drive.DryRun {
		ui.Info("Dry run: decks are uploaded to an in-memory store")
		return drive.NewMemoryStore(logger), nil
	}
	return drive.NewService(ctx, cfg.Drive.CredentialsFile, logger)
}

// seedDryRunFolders registers the destination folders of entries with an
// in-memory store so dry runs pass the destination check.
func seedDryRunFolders(store domain.ObjectStore, entries []domain.ManifestEntry) {
	ms, ok := store.(*drive.MemoryStore)
	if !ok {
		return
	}
	for _, e := range entries {
		if e.Item.FolderID != "" {
			ms.Seed(e.Item.FolderID, e.Item.Venture)
		}
	}
}

// newSummarizer builds the narrative summarizer for the configured model.
func newSummarizer(cfg *config.Config) (*narrative.Summarizer, error) {
	apiKey, err := cfg.RequireModelAPIKey()
	if err != nil {
		return nil, err
	}
	opts := []llm.Option{llm.WithLogger(logger)}
	if cfg.Model.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.Model.BaseURL))
	}
	model, err := llm.New(cfg.Model.Provider, apiKey, cfg.Model.Name, opts...)
	if err != nil {
		return nil, err
	}
	return narrative.NewSummarizer(model, logger), nil
}

// summaryOptions maps pipeline settings onto summarizer options.
func summaryOptions(cfg *config.Config) narrative.Options {
	return narrative.Options{
		Skip:    cfg.Pipeline.SkipSlides,
		Mode:    narrative.Mode(cfg.Pipeline.SummaryMode),
		Policy:  narrative.OverlayPolicy(cfg.Pipeline.OverlayPolicy),
		Timeout: cfg.Model.Timeout,
	}
}
