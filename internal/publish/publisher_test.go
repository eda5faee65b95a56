package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/drive"
	"github.com/spherical/autoslides/internal/observability"
)

func writeDeck(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func item(folder string) domain.WorkItem {
	return domain.WorkItem{
		Brand:    "Acme",
		Venture:  "SG",
		Range:    domain.DateRange{Start: "20250501", End: "20250531"},
		FolderID: folder,
	}
}

func TestPublish_ReplacesByName(t *testing.T) {
	ctx := context.Background()
	store := drive.NewMemoryStore(observability.Nop())
	root, err := store.CreateFolder(ctx, "reports", "")
	require.NoError(t, err)

	// An old copy and an unrelated file already live in the folder.
	oldID, err := store.Upload(ctx, strings.NewReader("old"), "Acme_20250501_20250531.pptx", root, "pptx")
	require.NoError(t, err)
	_, err = store.Upload(ctx, strings.NewReader("other"), "Bolt_20250501_20250531.pptx", root, "pptx")
	require.NoError(t, err)

	path := writeDeck(t, t.TempDir(), "Acme_20250501_20250531.pptx", "new")
	res := NewPublisher(store, nil).Publish(ctx, item(root), path)
	require.NoError(t, res.Err)
	assert.True(t, res.OK())
	assert.Equal(t, 1, res.Replaced)

	found, err := store.Search(ctx, domain.SearchQuery{ParentID: root, Name: "Acme_20250501_20250531.pptx"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.NotEqual(t, oldID, found[0].ID)
	assert.Equal(t, domain.PresentationMimeType, found[0].MimeType)

	content, ok := store.Content(found[0].ID)
	require.True(t, ok)
	assert.Equal(t, "new", string(content))

	// Publishing again still leaves exactly one copy.
	res = NewPublisher(store, nil).Publish(ctx, item(root), path)
	require.NoError(t, res.Err)
	found, err = store.Search(ctx, domain.SearchQuery{ParentID: root, Kind: domain.KindFile})
	require.NoError(t, err)
	assert.Len(t, found, 2)
}

func TestPublish_VentureSubfolder(t *testing.T) {
	ctx := context.Background()
	store := drive.NewMemoryStore(observability.Nop())
	root, err := store.CreateFolder(ctx, "reports", "")
	require.NoError(t, err)

	p := NewPublisher(store, nil, WithVentureSubfolders(true))
	dir := t.TempDir()

	first := p.Publish(ctx, item(root), writeDeck(t, dir, "a.pptx", "a"))
	require.NoError(t, first.Err)
	second := p.Publish(ctx, item(root), writeDeck(t, dir, "b.pptx", "b"))
	require.NoError(t, second.Err)

	folders, err := store.Search(ctx, domain.SearchQuery{ParentID: root, Kind: domain.KindFolder})
	require.NoError(t, err)
	require.Len(t, folders, 1)
	assert.Equal(t, "SG", folders[0].Name)
	assert.Equal(t, folders[0].ID, first.FolderID)
	assert.Equal(t, first.FolderID, second.FolderID)
}

func TestPublishAll_SkipsFailedAndContinues(t *testing.T) {
	ctx := context.Background()
	store := &flakyStore{MemoryStore: drive.NewMemoryStore(observability.Nop()), failName: "Bolt.pptx"}
	root, err := store.CreateFolder(ctx, "reports", "")
	require.NoError(t, err)

	dir := t.TempDir()
	entries := []domain.ManifestEntry{
		{Item: item(root), Status: domain.StatusSuccess, DeckPath: writeDeck(t, dir, "Acme.pptx", "a")},
		{Item: item(root), Status: domain.StatusFailed, Detail: "fetch failed"},
		{Item: item(root), Status: domain.StatusSuccess, DeckPath: writeDeck(t, dir, "Bolt.pptx", "b")},
		{Item: item(""), Status: domain.StatusSuccess, DeckPath: writeDeck(t, dir, "Core.pptx", "c")},
		{Item: item(root), Status: domain.StatusSuccess, DeckPath: writeDeck(t, dir, "Dyna.pptx", "d")},
	}

	results := NewPublisher(store, nil).PublishAll(ctx, entries)
	require.Len(t, results, 3)

	assert.True(t, results[0].OK())
	assert.False(t, results[1].OK())
	assert.True(t, domain.IsType(results[1].Err, domain.ErrorTypeUpload))
	assert.Contains(t, results[1].Detail, "quota")
	assert.True(t, results[2].OK())
	assert.Equal(t, "Dyna.pptx", results[2].FileName)
}

func TestPublish_MissingFile(t *testing.T) {
	store := drive.NewMemoryStore(observability.Nop())
	res := NewPublisher(store, nil).Publish(context.Background(), item("folder"), filepath.Join(t.TempDir(), "gone.pptx"))
	require.Error(t, res.Err)
	assert.True(t, domain.IsType(res.Err, domain.ErrorTypeUpload))
	assert.Equal(t, 0, store.Len())
}

func TestPublish_MissingDestinationFolder(t *testing.T) {
	ctx := context.Background()
	store := drive.NewMemoryStore(observability.Nop())
	// A stale copy is filed under a folder id the store does not know.
	_, err := store.Upload(ctx, strings.NewReader("old"), "Acme.pptx", "gone-folder", "pptx")
	require.NoError(t, err)
	deck, err := store.Upload(ctx, strings.NewReader("x"), "not-a-folder.pptx", "", "pptx")
	require.NoError(t, err)

	path := writeDeck(t, t.TempDir(), "Acme.pptx", "new")
	for _, folder := range []string{"gone-folder", deck} {
		res := NewPublisher(store, nil, WithVentureSubfolders(true)).Publish(ctx, item(folder), path)
		require.Error(t, res.Err, folder)
		assert.True(t, domain.IsType(res.Err, domain.ErrorTypeUpload))
		assert.False(t, res.OK())
	}

	// Nothing was deleted, created or uploaded.
	assert.Equal(t, 2, store.Len())
	found, err := store.Search(ctx, domain.SearchQuery{ParentID: "gone-folder", Name: "Acme.pptx"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	content, ok := store.Content(found[0].ID)
	require.True(t, ok)
	assert.Equal(t, "old", string(content))
}

type flakyStore struct {
	*drive.MemoryStore
	failName string
}

func (s *flakyStore) Upload(ctx context.Context, content io.Reader, name, parentID, fileType string) (string, error) {
	if name == s.failName {
		return "", domain.UploadFailure("upload "+name, errors.New("quota exceeded"))
	}
	return s.MemoryStore.Upload(ctx, content, name, parentID, fileType)
}
