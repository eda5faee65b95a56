package ui

import (
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// StageBoard shows one line per in-flight work item with its current stage,
// above an overall counter. It is safe for concurrent use.
type StageBoard struct {
	progress *mpb.Progress
	overall  *mpb.Bar

	mu    sync.Mutex
	items map[int]*stageLine
}

type stageLine struct {
	bar   *mpb.Bar
	stage atomic.Value
}

// NewStageBoard creates a board for total items writing to stderr.
func NewStageBoard(total int) *StageBoard {
	return NewStageBoardTo(os.Stderr, total)
}

// NewStageBoardTo creates a board writing to w.
func NewStageBoardTo(w io.Writer, total int) *StageBoard {
	p := mpb.New(mpb.WithOutput(w), mpb.WithWidth(40))
	overall := p.AddBar(int64(total),
		mpb.BarPriority(1<<30),
		mpb.PrependDecorators(
			decor.Name("Decks", decor.WC{W: 7, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
		),
	)
	return &StageBoard{progress: p, overall: overall, items: make(map[int]*stageLine)}
}

// Start adds a line for item idx.
func (b *StageBoard) Start(idx int, label string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.items[idx]; ok {
		return
	}
	line := &stageLine{}
	line.stage.Store("queued")
	line.bar = b.progress.AddBar(0,
		mpb.BarFillerOnComplete("✓"),
		mpb.BarFillerOnAbort("✗"),
		mpb.PrependDecorators(
			decor.Name(label, decor.WC{W: len(label) + 1, C: decor.DSyncSpaceR}),
			decor.OnCompleteOrOnAbort(decor.Spinner(spinnerFrames, decor.WC{W: 1}), " "),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				return line.stage.Load().(string)
			}, decor.WCSyncSpaceR),
		),
	)
	b.items[idx] = line
}

// Stage updates the stage shown for item idx, starting its line if needed.
func (b *StageBoard) Stage(idx int, label, stage string) {
	b.Start(idx, label)
	b.mu.Lock()
	line := b.items[idx]
	b.mu.Unlock()
	line.stage.Store(stage)
}

// Finish marks item idx done and advances the overall counter.
func (b *StageBoard) Finish(idx int, ok bool) {
	b.mu.Lock()
	line, found := b.items[idx]
	delete(b.items, idx)
	b.mu.Unlock()

	if found {
		if ok {
			line.stage.Store("done")
			line.bar.SetTotal(-1, true)
		} else {
			line.stage.Store("failed")
			line.bar.Abort(false)
		}
	}
	b.overall.Increment()
}

// InFlight reports how many items have a line that has not finished.
func (b *StageBoard) InFlight() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}

// Close stops lines that never finished and waits for the final render.
func (b *StageBoard) Close() {
	b.mu.Lock()
	for idx, line := range b.items {
		line.bar.Abort(false)
		delete(b.items, idx)
	}
	b.mu.Unlock()
	if !b.overall.Completed() {
		b.overall.Abort(false)
	}
	b.progress.Wait()
}
