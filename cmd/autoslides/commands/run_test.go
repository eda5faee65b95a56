package commands

import (
	"context"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/autoslides/internal/config"
	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/drive"
	"github.com/spherical/autoslides/internal/observability"
)

func resetRunFlags(t *testing.T) *cobra.Command {
	t.Helper()
	runStart, runEnd, runSkip, runOutputDir = "", "", "", ""
	runVentures, runBrands = nil, nil
	runWorkers = 0
	runNoSummarize, runNoPublish = false, false

	cmd := &cobra.Command{}
	cmd.Flags().StringVar(&runSkip, "skip", "", "")
	return cmd
}

func TestApplyRunFlags(t *testing.T) {
	cmd := resetRunFlags(t)
	require.NoError(t, cmd.Flags().Set("skip", "2,4"))
	runStart, runEnd = "2025-05-01", "2025-05-31"
	runVentures = []string{"SG"}
	runWorkers = 3
	runNoPublish = true

	cfg := config.DefaultConfig()
	require.NoError(t, applyRunFlags(cmd, cfg))

	assert.Equal(t, domain.DateRange{Start: "2025-05-01", End: "2025-05-31"}, cfg.Pipeline.DateRange)
	assert.Equal(t, []string{"SG"}, cfg.Database.Ventures)
	assert.Equal(t, 3, cfg.Pipeline.Workers)
	assert.Equal(t, []int{2, 4}, cfg.Pipeline.SkipSlides)
	assert.False(t, cfg.Pipeline.Publish)
	assert.True(t, cfg.Pipeline.Summarize)
}

func TestApplyRunFlags_KeepsConfigSkips(t *testing.T) {
	cmd := resetRunFlags(t)
	runStart, runEnd = "20250501", "20250531"

	cfg := config.DefaultConfig()
	require.NoError(t, applyRunFlags(cmd, cfg))
	assert.Equal(t, []int{1, 5, 8}, cfg.Pipeline.SkipSlides)
}

func TestApplyRunFlags_Errors(t *testing.T) {
	tests := []struct {
		name       string
		start, end string
		skip       string
	}{
		{name: "missing range"},
		{name: "reversed range", start: "2025-05-31", end: "2025-05-01"},
		{name: "bad skip", start: "2025-05-01", end: "2025-05-31", skip: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := resetRunFlags(t)
			runStart, runEnd = tt.start, tt.end
			if tt.skip != "" {
				require.NoError(t, cmd.Flags().Set("skip", tt.skip))
			}
			err := applyRunFlags(cmd, config.DefaultConfig())
			assert.True(t, domain.IsType(err, domain.ErrorTypeValidation), "got %v", err)
		})
	}
}

func TestSummaryOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Pipeline.SummaryMode = "tolerant"
	opts := summaryOptions(cfg)
	assert.Equal(t, []int{1, 5, 8}, opts.Skip)
	assert.EqualValues(t, "tolerant", opts.Mode)
	assert.EqualValues(t, "replace", opts.Policy)
	assert.Equal(t, cfg.Model.Timeout, opts.Timeout)
}

func TestSeedDryRunFolders(t *testing.T) {
	store := drive.NewMemoryStore(observability.Nop())
	seedDryRunFolders(store, []domain.ManifestEntry{
		{Item: domain.WorkItem{Venture: "SG", Brand: "Acme", FolderID: "1AbCdEfGhIjKlMnOpQrStUvWxYz"}},
		{Item: domain.WorkItem{Venture: "TH", Brand: "Tefal"}},
	})

	obj, err := store.Get(context.Background(), "1AbCdEfGhIjKlMnOpQrStUvWxYz")
	require.NoError(t, err)
	assert.True(t, obj.IsFolder())
	assert.Equal(t, 1, store.Len())
}
