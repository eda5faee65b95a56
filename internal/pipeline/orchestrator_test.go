package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/autoslides/internal/cooldown"
	"github.com/spherical/autoslides/internal/deck"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/narrative"
	"github.com/spherical/autoslides/internal/observability"
	"github.com/spherical/autoslides/internal/pdf"
	"github.com/spherical/autoslides/internal/pdf/pdftest"
	"github.com/spherical/autoslides/internal/pptx"
)

// fakeSource serves a fixed PDF and fails for brands listed in fail.
type fakeSource struct {
	mu    sync.Mutex
	doc   []byte
	fail  map[string]bool
	calls []string
	times []time.Time
}

func (s *fakeSource) Fetch(ctx context.Context, item domain.WorkItem) ([]byte, error) {
	s.mu.Lock()
	s.calls = append(s.calls, item.Brand)
	s.times = append(s.times, time.Now())
	s.mu.Unlock()

	if s.fail[item.Brand] {
		return nil, domain.ReportFetchFailure("export returned status 500", nil)
	}
	return s.doc, nil
}

type echoModel struct{}

func (echoModel) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	var n int
	fmt.Sscanf(prompt, "This is slide %d", &n)
	return fmt.Sprintf("\nSlide %d looks steady.", n), nil
}

func testItems(brands ...string) []domain.WorkItem {
	items := make([]domain.WorkItem, len(brands))
	for i, b := range brands {
		items[i] = domain.WorkItem{
			Brand:   b,
			Venture: "SG",
			Range:   domain.DateRange{Start: "2025-05-01", End: "2025-05-31"},
		}
	}
	return items
}

func newTestOrchestrator(t *testing.T, src domain.ReportSource, narrator Narrator, workers int) (*Orchestrator, string) {
	t.Helper()
	out := t.TempDir()
	return New(Config{
		OutputDir: out,
		Scale:     1.0,
		Workers:   workers,
		Summary:   narrative.Options{Skip: []int{2}},
	}, Deps{
		Source:   src,
		Renderer: pdf.NewRasterizer(),
		Builder:  deck.NewBuilder(observability.Nop()),
		Narrator: narrator,
		Logger:   observability.Nop(),
	}), out
}

func TestRun_EndToEnd(t *testing.T) {
	src := &fakeSource{doc: pdftest.Build([2]int{160, 90}, [2]int{160, 90}, [2]int{160, 90})}
	o, out := newTestOrchestrator(t, src, narrative.NewSummarizer(echoModel{}, nil), 1)

	entries := o.Run(context.Background(), testItems("Acme"), nil)
	require.Len(t, entries, 1)

	e := entries[0]
	require.Equal(t, domain.StatusSuccess, e.Status, e.Detail)
	assert.Equal(t, filepath.Join(out, "SG", "Acme_20250501_20250531.pptx"), e.DeckPath)
	assert.Equal(t, 3, e.Slides)
	assert.Equal(t, 2, e.Summaries)

	pres, err := pptx.Open(e.DeckPath)
	require.NoError(t, err)
	defer pres.Close()
	require.Len(t, pres.Slides, 3)

	for i, wantOverlay := range []int{1, 0, 1} {
		slide := pres.Slides[i]
		assert.Len(t, slide.Pictures(), 1, "slide %d", i+1)
		assert.Equal(t, wantOverlay, slide.CountNamed(narrative.OverlayName), "slide %d", i+1)
	}
	assert.Equal(t, "Slide 3 looks steady.", pres.Slides[2].TextBoxes()[0].Text)
}

func TestRun_FailureIsIsolated(t *testing.T) {
	src := &fakeSource{
		doc:  pdftest.Build([2]int{160, 90}, [2]int{160, 90}),
		fail: map[string]bool{"Bolt": true},
	}
	o, _ := newTestOrchestrator(t, src, nil, 1)

	events := make(chan domain.Event, 64)
	entries := o.Run(context.Background(), testItems("Acme", "Bolt", "Core"), events)
	close(events)

	require.Len(t, entries, 3)
	assert.Equal(t, []string{"Acme", "Bolt", "Core"}, []string{entries[0].Item.Brand, entries[1].Item.Brand, entries[2].Item.Brand})

	assert.Equal(t, domain.StatusSuccess, entries[0].Status)
	assert.Equal(t, domain.StatusFailed, entries[1].Status)
	assert.NotEmpty(t, entries[1].Detail)
	assert.Contains(t, entries[1].Detail, "fetch")
	assert.Equal(t, domain.ErrorTypeReportFetch, entries[1].ErrorType)
	assert.Empty(t, entries[1].DeckPath)
	assert.Equal(t, domain.StatusSuccess, entries[2].Status)

	assert.Equal(t, []string{"Acme", "Bolt", "Core"}, src.calls)

	var types []domain.EventType
	for ev := range events {
		types = append(types, ev.Type)
	}
	assert.Equal(t, domain.EventStart, types[0])
	assert.Equal(t, domain.EventComplete, types[len(types)-1])
	assert.Contains(t, types, domain.EventError)
}

func TestRun_StageFailures(t *testing.T) {
	t.Run("malformed document", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, &fakeSource{doc: []byte("<html>login</html>")}, nil, 1)
		entries := o.Run(context.Background(), testItems("Acme"), nil)
		assert.Equal(t, domain.StatusFailed, entries[0].Status)
		assert.Equal(t, domain.ErrorTypeDocumentDecode, entries[0].ErrorType)
	})

	t.Run("empty bytes", func(t *testing.T) {
		o, _ := newTestOrchestrator(t, &fakeSource{doc: []byte{}}, nil, 1)
		entries := o.Run(context.Background(), testItems("Acme"), nil)
		assert.Equal(t, domain.ErrorTypeReportFetch, entries[0].ErrorType)
	})

	t.Run("model failure", func(t *testing.T) {
		src := &fakeSource{doc: pdftest.Build([2]int{160, 90})}
		o, _ := newTestOrchestrator(t, src, narrative.NewSummarizer(failingModel{}, nil), 1)
		entries := o.Run(context.Background(), testItems("Acme"), nil)
		assert.Equal(t, domain.StatusFailed, entries[0].Status)
		assert.Equal(t, domain.ErrorTypeModelInference, entries[0].ErrorType)
		assert.Contains(t, entries[0].Detail, "summarize")
		assert.FileExists(t, entries[0].DeckPath)
	})

	t.Run("path escape", func(t *testing.T) {
		src := &fakeSource{doc: pdftest.Build([2]int{160, 90})}
		o, _ := newTestOrchestrator(t, src, nil, 1)
		items := testItems("Acme")
		items[0].Venture = "../etc"
		entries := o.Run(context.Background(), items, nil)
		assert.Equal(t, domain.ErrorTypeValidation, entries[0].ErrorType)
		assert.Empty(t, src.calls)
	})
}

type failingModel struct{}

func (failingModel) Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	return "", errors.New("quota exceeded")
}

func TestRun_WorkersKeepOrderAndRespectCooldown(t *testing.T) {
	const interval = 30 * time.Millisecond
	src := &fakeSource{doc: pdftest.Build([2]int{80, 45})}
	out := t.TempDir()

	o := New(Config{OutputDir: out, Workers: 3}, Deps{
		Source:   src,
		Renderer: pdf.NewRasterizer(),
		Builder:  deck.NewBuilder(nil),
		Gate:     cooldown.NewMemoryGate(interval),
		Logger:   observability.Nop(),
	})

	brands := []string{"A", "B", "C", "D", "E"}
	entries := o.Run(context.Background(), testItems(brands...), nil)
	require.Len(t, entries, len(brands))
	for i, e := range entries {
		assert.Equal(t, brands[i], e.Item.Brand)
		assert.Equal(t, domain.StatusSuccess, e.Status, e.Detail)
	}

	require.Len(t, src.times, len(brands))
	first, last := src.times[0], src.times[0]
	for _, ts := range src.times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), time.Duration(len(brands)-1)*interval-5*time.Millisecond)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	src := &fakeSource{doc: pdftest.Build([2]int{80, 45})}
	o, _ := newTestOrchestrator(t, src, nil, 1)
	o.deps.Gate = cooldown.NewMemoryGate(time.Second)

	entries := o.Run(ctx, testItems("Acme", "Bolt"), nil)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, domain.StatusFailed, e.Status)
		assert.True(t, strings.Contains(e.Detail, "canceled"))
	}
	assert.Empty(t, src.calls)
}

func TestManifest_WriteRead(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	m := &Manifest{
		RunID:     NewRunID(),
		CreatedAt: time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC),
		DateRange: domain.DateRange{Start: "20250501", End: "20250531"},
		Entries: []domain.ManifestEntry{
			{Item: testItems("Acme")[0], Status: domain.StatusSuccess, DeckPath: "out/SG/Acme.pptx", Slides: 18},
			{Item: testItems("Bolt")[0], Status: domain.StatusFailed, Detail: "fetch: boom", ErrorType: domain.ErrorTypeReportFetch},
		},
	}

	path, err := WriteManifest(dir, m)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "manifest-"+m.RunID+".json"), path)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

	got, err := ReadManifest(path)
	require.NoError(t, err)
	assert.Equal(t, m.RunID, got.RunID)
	assert.Equal(t, m.Entries, got.Entries)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))

	_, err = WriteManifest(dir, &Manifest{})
	assert.True(t, domain.IsType(err, domain.ErrorTypeValidation))
}

func TestTally(t *testing.T) {
	ok, failed := Tally([]domain.ManifestEntry{
		{Status: domain.StatusSuccess},
		{Status: domain.StatusFailed},
		{Status: domain.StatusSuccess},
	})
	assert.Equal(t, 2, ok)
	assert.Equal(t, 1, failed)
}
