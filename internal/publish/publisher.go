// Package publish uploads finished decks to cloud storage with
// replace-by-name semantics.
package publish

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

// Result is the outcome of publishing one manifest entry.
type Result struct {
	Item     domain.WorkItem `json:"item"`
	FileName string          `json:"file_name"`
	FileID   string          `json:"file_id,omitempty"`
	FolderID string          `json:"folder_id,omitempty"`
	Replaced int             `json:"replaced"`
	Err      error           `json:"-"`
	Detail   string          `json:"detail,omitempty"`
}

// OK reports whether the upload succeeded.
func (r Result) OK() bool {
	return r.Err == nil && r.FileID != ""
}

// Publisher uploads decks into per-item destination folders.
type Publisher struct {
	store             domain.ObjectStore
	ventureSubfolders bool
	logger            *observability.Logger
}

// Option configures a Publisher.
type Option func(*Publisher)

// WithVentureSubfolders places each deck in a subfolder named after its
// venture, created on first use.
func WithVentureSubfolders(enabled bool) Option {
	return func(p *Publisher) { p.ventureSubfolders = enabled }
}

// NewPublisher creates a publisher over store.
func NewPublisher(store domain.ObjectStore, logger *observability.Logger, opts ...Option) *Publisher {
	p := &Publisher{
		store:  store,
		logger: observability.OrDefault(logger).WithComponent("publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishAll uploads every successful entry, in order. Failed entries and
// entries without a destination folder are skipped. One upload failing does
// not stop the others.
func (p *Publisher) PublishAll(ctx context.Context, entries []domain.ManifestEntry) []Result {
	var results []Result
	for _, e := range entries {
		if !e.Succeeded() {
			continue
		}
		if e.Item.FolderID == "" {
			p.logger.Warn().
				Str("brand", e.Item.Brand).
				Str("venture", e.Item.Venture).
				Msg("No destination folder, skipping upload")
			continue
		}
		if err := ctx.Err(); err != nil {
			results = append(results, failed(e.Item, filepath.Base(e.DeckPath), err))
			continue
		}
		results = append(results, p.Publish(ctx, e.Item, e.DeckPath))
	}
	return results
}

// Publish checks that the destination folder exists, replaces any object named
// like the deck in it and uploads the deck.
func (p *Publisher) Publish(ctx context.Context, item domain.WorkItem, deckPath string) Result {
	name := filepath.Base(deckPath)
	logger := p.logger.WithWorkItem(item.Brand, item.Venture)

	folderID, err := p.destination(ctx, item)
	if err != nil {
		logger.Error().Err(err).Str("file", name).Msg("Upload failed")
		return failed(item, name, err)
	}

	f, err := os.Open(deckPath)
	if err != nil {
		err = domain.UploadFailure(fmt.Sprintf("open %s", deckPath), err)
		logger.Error().Err(err).Str("file", name).Msg("Upload failed")
		return failed(item, name, err)
	}
	defer f.Close()

	replaced, err := p.deleteExisting(ctx, folderID, name)
	if err != nil {
		logger.Error().Err(err).Str("file", name).Msg("Upload failed")
		return failed(item, name, err)
	}

	id, err := p.store.Upload(ctx, f, name, folderID, "pptx")
	if err != nil {
		logger.Error().Err(err).Str("file", name).Msg("Upload failed")
		return failed(item, name, err)
	}

	logger.Info().
		Str("file", name).
		Str("file_id", id).
		Str("folder_id", folderID).
		Int("replaced", replaced).
		Msg("Deck uploaded")

	return Result{Item: item, FileName: name, FileID: id, FolderID: folderID, Replaced: replaced}
}

func (p *Publisher) destination(ctx context.Context, item domain.WorkItem) (string, error) {
	parent, err := p.store.Get(ctx, item.FolderID)
	if err != nil {
		return "", domain.UploadFailure(fmt.Sprintf("destination folder %s is not accessible", item.FolderID), err)
	}
	if !parent.IsFolder() {
		return "", domain.UploadFailure(fmt.Sprintf("destination %s is not a folder", item.FolderID), nil)
	}

	if !p.ventureSubfolders {
		return item.FolderID, nil
	}

	found, err := p.store.Search(ctx, domain.SearchQuery{
		ParentID: item.FolderID,
		Kind:     domain.KindFolder,
		Name:     item.Venture,
	})
	if err != nil {
		return "", err
	}
	if len(found) > 0 {
		return found[0].ID, nil
	}
	return p.store.CreateFolder(ctx, item.Venture, item.FolderID)
}

// deleteExisting removes every file named name from folderID and returns how
// many were removed.
func (p *Publisher) deleteExisting(ctx context.Context, folderID, name string) (int, error) {
	existing, err := p.store.Search(ctx, domain.SearchQuery{
		ParentID: folderID,
		Kind:     domain.KindFile,
		Name:     name,
	})
	if err != nil {
		return 0, err
	}

	for _, obj := range existing {
		if err := p.store.Delete(ctx, obj.ID); err != nil {
			return 0, err
		}
		p.logger.Debug().Str("file", obj.Name).Str("id", obj.ID).Msg("Deleted existing file")
	}
	return len(existing), nil
}

func failed(item domain.WorkItem, name string, err error) Result {
	return Result{Item: item, FileName: name, Err: err, Detail: err.Error()}
}
