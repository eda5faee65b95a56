package drive

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

type memoryObject struct {
	domain.RemoteObject
	parentID string
	content  []byte
	seq      int
}

// MemoryStore is an in-process ObjectStore. Raw Filter clauses are not
// interpreted and are rejected.
type MemoryStore struct {
	mu      sync.Mutex
	objects map[string]*memoryObject
	seq     int
	logger  *observability.Logger
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(logger *observability.Logger) *MemoryStore {
	return &MemoryStore{
		objects: make(map[string]*memoryObject),
		logger:  observability.OrDefault(logger).WithComponent("memory_store"),
	}
}

func (m *MemoryStore) put(name, parentID, mimeType string, content []byte) string {
	m.seq++
	id := uuid.NewString()
	m.objects[id] = &memoryObject{
		RemoteObject: domain.RemoteObject{ID: id, Name: name, MimeType: mimeType},
		parentID:     parentID,
		content:      content,
		seq:          m.seq,
	}
	return id
}

// CreateFolder implements domain.ObjectStore.
func (m *MemoryStore) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.put(name, parentID, domain.FolderMimeType, nil)
	m.logger.Info().Str("folder", name).Str("id", id).Msg("Folder created")
	return id, nil
}

// Seed registers an existing folder under a known identifier, standing in for
// destination folders created outside the store.
func (m *MemoryStore) Seed(id, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[id]; ok {
		return
	}
	m.seq++
	m.objects[id] = &memoryObject{
		RemoteObject: domain.RemoteObject{ID: id, Name: name, MimeType: domain.FolderMimeType},
		seq:          m.seq,
	}
}

// Get implements domain.ObjectStore.
func (m *MemoryStore) Get(ctx context.Context, id string) (domain.RemoteObject, error) {
	if err := ctx.Err(); err != nil {
		return domain.RemoteObject{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.objects[id]
	if !ok {
		return domain.RemoteObject{}, domain.UploadFailure(fmt.Sprintf("object %s not found", id), nil)
	}
	return o.RemoteObject, nil
}

// Search implements domain.ObjectStore. Results are in creation order.
func (m *MemoryStore) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RemoteObject, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if q.Filter != "" {
		return nil, domain.ValidationError("memory store does not support raw filters", nil)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var matches []*memoryObject
	for _, o := range m.objects {
		if q.ParentID != "" && o.parentID != q.ParentID {
			continue
		}
		if q.Name != "" && o.Name != q.Name {
			continue
		}
		switch q.Kind {
		case domain.KindFolder:
			if !o.IsFolder() {
				continue
			}
		case domain.KindFile:
			if o.IsFolder() {
				continue
			}
		}
		matches = append(matches, o)
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].seq < matches[j].seq })

	out := make([]domain.RemoteObject, len(matches))
	for i, o := range matches {
		out[i] = o.RemoteObject
	}
	return out, nil
}

// Delete implements domain.ObjectStore.
func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.objects[id]; !ok {
		return domain.UploadFailure(fmt.Sprintf("delete %s: not found", id), nil)
	}
	delete(m.objects, id)
	return nil
}

// Upload implements domain.ObjectStore.
func (m *MemoryStore) Upload(ctx context.Context, content io.Reader, name, parentID, fileType string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	data, err := io.ReadAll(content)
	if err != nil {
		return "", domain.UploadFailure(fmt.Sprintf("read %q", name), err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.put(name, parentID, domain.MimeTypeFor(fileType), data)
	m.logger.Info().Str("file", name).Str("id", id).Int("bytes", len(data)).Msg("File stored")
	return id, nil
}

// Content returns the bytes stored under id.
func (m *MemoryStore) Content(id string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.objects[id]
	if !ok {
		return nil, false
	}
	return o.content, true
}

// Len returns the number of stored objects, folders included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
