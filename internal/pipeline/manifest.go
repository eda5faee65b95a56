package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/publish"
)

// Manifest is the machine-readable record of one batch run.
type Manifest struct {
	RunID     string                 `json:"run_id"`
	CreatedAt time.Time              `json:"created_at"`
	DateRange domain.DateRange       `json:"date_range"`
	Entries   []domain.ManifestEntry `json:"entries"`
	Published []publish.Result       `json:"published,omitempty"`
}

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// ManifestPath returns where the manifest of runID lives under dir.
func ManifestPath(dir, runID string) string {
	return filepath.Join(dir, fmt.Sprintf("manifest-%s.json", runID))
}

// WriteManifest writes m under dir, replacing any earlier file for the same run.
func WriteManifest(dir string, m *Manifest) (string, error) {
	if m.RunID == "" {
		return "", domain.ValidationError("manifest has no run id", nil)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal manifest: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", domain.IOError("create output directory", err)
	}

	path := ManifestPath(dir, m.RunID)
	tmp, err := os.CreateTemp(dir, ".manifest-*.tmp")
	if err != nil {
		return "", domain.IOError("create manifest", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return "", domain.IOError("write manifest", err)
	}
	if err := tmp.Close(); err != nil {
		return "", domain.IOError("write manifest", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return "", domain.IOError("write manifest", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", domain.IOError("write manifest", err)
	}

	return path, nil
}

// ReadManifest loads a manifest written by WriteManifest.
func ReadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, domain.IOError(fmt.Sprintf("read manifest %s", path), err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, domain.ValidationError(fmt.Sprintf("parse manifest %s", path), err)
	}
	return &m, nil
}
