package domain

import (
	"context"
	"io"
)

// ReportSource fetches the rendered dashboard report for one brand and region.
// A failure is always reported as a ReportFetchFailure; a nil error implies
// non-empty document bytes.
type ReportSource interface {
	Fetch(ctx context.Context, item WorkItem) ([]byte, error)
}

// ConfigStore lists the venture/brand rows that drive a batch run.
type ConfigStore interface {
	ListVentures(ctx context.Context) ([]VentureConfig, error)
}

// VisionModel turns a prompt plus one image into free-form text
type VisionModel interface {
	Generate(ctx context.Context, prompt string, image []byte, mimeType string) (string, error)
}

// ObjectStore is the cloud storage collaborator used for publishing.
type ObjectStore interface {
	// CreateFolder creates a folder and returns its identifier. parentID may be empty.
	CreateFolder(ctx context.Context, name, parentID string) (string, error)

	// Get returns the object with the given identifier.
	Get(ctx context.Context, id string) (RemoteObject, error)

	// Search lists objects matching the query.
	Search(ctx context.Context, q SearchQuery) ([]RemoteObject, error)

	// Delete removes an object by identifier.
	Delete(ctx context.Context, id string) error

	// Upload stores content under name and returns the new object's identifier.
	// fileType is a hint such as "pptx" used to pick the content type.
	Upload(ctx context.Context, content io.Reader, name, parentID, fileType string) (string, error)
}
