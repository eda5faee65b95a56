// Package pipeline drives work items through fetch, conversion and
// summarization and records one manifest entry per item.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spherical/autoslides/internal/cooldown"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/narrative"
	"github.com/spherical/autoslides/internal/observability"
)

// Stage names reported in item_stage events.
const (
	StageFetch     = "fetch"
	StageRasterize = "rasterize"
	StageBuild     = "build"
	StageSummarize = "summarize"
)

// PageRenderer turns document bytes into ordered raster pages.
type PageRenderer interface {
	RenderAll(ctx context.Context, data []byte, scale float64) ([]domain.RasterPage, error)
}

// DeckWriter persists raster pages as a deck and returns its path.
type DeckWriter interface {
	Build(ctx context.Context, pages []domain.RasterPage, path string) (string, error)
}

// Narrator overlays summaries on a saved deck.
type Narrator interface {
	Summarize(ctx context.Context, path string, opts narrative.Options) (narrative.Result, error)
}

// Config holds batch settings.
type Config struct {
	OutputDir string
	Scale     float64
	Workers   int
	Summary   narrative.Options
}

// Deps are the collaborators of an Orchestrator. Narrator may be nil to skip
// summarization; Gate may be nil when no cooldown applies.
type Deps struct {
	Source   domain.ReportSource
	Renderer PageRenderer
	Builder  DeckWriter
	Narrator Narrator
	Gate     cooldown.Gate
	Logger   *observability.Logger
}

// Orchestrator processes work items independently; one item's failure never
// stops the others.
type Orchestrator struct {
	cfg    Config
	deps   Deps
	logger *observability.Logger
}

// New creates an orchestrator.
func New(cfg Config, deps Deps) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Scale <= 0 {
		cfg.Scale = 1.0
	}
	return &Orchestrator{
		cfg:    cfg,
		deps:   deps,
		logger: observability.OrDefault(deps.Logger).WithComponent("orchestrator"),
	}
}

// Run processes items and returns their manifest entries in input order.
// Progress events are sent to events without blocking; events may be nil and
// is not closed.
func (o *Orchestrator) Run(ctx context.Context, items []domain.WorkItem, events chan<- domain.Event) []domain.ManifestEntry {
	entries := make([]domain.ManifestEntry, len(items))
	if len(items) == 0 {
		return entries
	}

	logger := o.logger.WithContext(ctx)
	logger.Info().
		Int("items", len(items)).
		Int("workers", o.cfg.Workers).
		Msg("Batch started")
	o.emit(events, domain.Event{Type: domain.EventStart, Index: -1, Payload: len(items)})

	workChan := make(chan int, len(items))
	for i := range items {
		workChan <- i
	}
	close(workChan)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for w := 0; w < o.cfg.Workers && w < len(items); w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range workChan {
				entry := o.processItem(ctx, idx, items[idx], events)

				mu.Lock()
				entries[idx] = entry
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	ok, failed := Tally(entries)
	logger.Info().
		Int("succeeded", ok).
		Int("failed", failed).
		Msg("Batch finished")
	o.emit(events, domain.Event{Type: domain.EventComplete, Index: -1, Payload: entries})

	return entries
}

func (o *Orchestrator) processItem(ctx context.Context, idx int, item domain.WorkItem, events chan<- domain.Event) domain.ManifestEntry {
	logger := o.logger.WithContext(ctx).WithWorkItem(item.Brand, item.Venture)
	entry := domain.ManifestEntry{Item: item, Status: domain.StatusFailed}
	start := time.Now()

	o.emit(events, domain.Event{Type: domain.EventItemStart, Index: idx, Item: item})

	fail := func(stage string, err error) domain.ManifestEntry {
		entry.Status = domain.StatusFailed
		entry.Detail = fmt.Sprintf("%s: %v", stage, err)
		entry.ErrorType = domain.TypeOf(err)
		logger.Error().
			Str("stage", stage).
			Str("file", item.DeckFileName()).
			Err(err).
			Msg("Work item failed")
		o.emit(events, domain.Event{Type: domain.EventError, Index: idx, Item: item, Entry: &entry})
		return entry
	}
	stage := func(name string) {
		o.emit(events, domain.Event{Type: domain.EventItemStage, Index: idx, Item: item, Payload: name})
	}

	path, err := o.deckPath(item)
	if err != nil {
		return fail(StageBuild, err)
	}

	stage(StageFetch)
	if o.deps.Gate != nil {
		if err := o.deps.Gate.Wait(ctx); err != nil {
			return fail(StageFetch, err)
		}
	}
	data, err := o.deps.Source.Fetch(ctx, item)
	if err == nil && len(data) == 0 {
		err = domain.ReportFetchFailure("report source returned no bytes", nil)
	}
	if err != nil {
		return fail(StageFetch, err)
	}

	stage(StageRasterize)
	pages, err := o.deps.Renderer.RenderAll(ctx, data, o.cfg.Scale)
	if err != nil {
		return fail(StageRasterize, err)
	}

	stage(StageBuild)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fail(StageBuild, domain.IOError("create venture directory", err))
	}
	written, err := o.deps.Builder.Build(ctx, pages, path)
	if err == nil && written == "" {
		err = domain.DeckWriteError("deck builder returned no path", nil)
	}
	if err != nil {
		return fail(StageBuild, err)
	}
	entry.DeckPath = written
	entry.Slides = len(pages)

	if o.deps.Narrator != nil {
		stage(StageSummarize)
		result, err := o.deps.Narrator.Summarize(ctx, written, o.cfg.Summary)
		entry.Summaries = len(result.Summaries)
		if err != nil {
			return fail(StageSummarize, err)
		}
	}

	entry.Status = domain.StatusSuccess
	logger.Info().
		Str("file", filepath.Base(written)).
		Int("slides", entry.Slides).
		Int("summaries", entry.Summaries).
		Dur("elapsed", time.Since(start)).
		Msg("Work item completed")
	o.emit(events, domain.Event{Type: domain.EventItemComplete, Index: idx, Item: item, Entry: &entry})

	return entry
}

// deckPath returns <output>/<venture>/<brand>_<start>_<end>.pptx, refusing
// names that would escape the venture directory.
func (o *Orchestrator) deckPath(item domain.WorkItem) (string, error) {
	name := item.DeckFileName()
	for _, part := range []string{item.Venture, item.Brand} {
		if part == "" || part == "." || part == ".." || strings.ContainsAny(part, `/\`) {
			return "", domain.ValidationError(fmt.Sprintf("unusable path component %q", part), nil)
		}
	}
	return filepath.Join(o.cfg.OutputDir, item.Venture, name), nil
}

func (o *Orchestrator) emit(events chan<- domain.Event, ev domain.Event) {
	if events == nil {
		return
	}
	ev.Timestamp = time.Now()
	if ev.Entry != nil {
		cp := *ev.Entry
		ev.Entry = &cp
	}
	select {
	case events <- ev:
	default:
	}
}

// Tally counts successful and failed entries.
func Tally(entries []domain.ManifestEntry) (ok, failed int) {
	for _, e := range entries {
		if e.Status == domain.StatusSuccess {
			ok++
		} else {
			failed++
		}
	}
	return ok, failed
}
