package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	drivev3 "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/spherical/autoslides/internal/domain"
	"github.com/spherical/autoslides/internal/observability"
)

const listFields googleapi.Field = "nextPageToken, files(id, name, mimeType)"

// Service is an ObjectStore backed by the Drive v3 API. It is constructed once
// per run and passed to whoever publishes.
type Service struct {
	files  *drivev3.FilesService
	logger *observability.Logger
}

// NewService authenticates with a service account key file.
func NewService(ctx context.Context, credentialsFile string, logger *observability.Logger) (*Service, error) {
	return NewServiceWithOptions(ctx, logger,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(drivev3.DriveScope),
	)
}

// NewServiceWithOptions builds a Service from raw client options.
func NewServiceWithOptions(ctx context.Context, logger *observability.Logger, opts ...option.ClientOption) (*Service, error) {
	svc, err := drivev3.NewService(ctx, opts...)
	if err != nil {
		return nil, domain.ConfigError("initialize drive service", err)
	}
	return &Service{
		files:  svc.Files,
		logger: observability.OrDefault(logger).WithComponent("drive"),
	}, nil
}

// CreateFolder creates a folder, optionally under parentID.
func (s *Service) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	meta := &drivev3.File{
		Name:     name,
		MimeType: domain.FolderMimeType,
	}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	f, err := s.files.Create(meta).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", domain.UploadFailure(fmt.Sprintf("create folder %q", name), err)
	}

	s.logger.Info().Str("folder", name).Str("id", f.Id).Msg("Folder created")
	return f.Id, nil
}

// Get fetches the metadata of one object. Trashed objects count as missing.
func (s *Service) Get(ctx context.Context, id string) (domain.RemoteObject, error) {
	f, err := s.files.Get(id).
		Fields("id, name, mimeType, trashed").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
			return domain.RemoteObject{}, domain.UploadFailure(fmt.Sprintf("object %s not found", id), err)
		}
		return domain.RemoteObject{}, domain.UploadFailure(fmt.Sprintf("get %s", id), err)
	}
	if f.Trashed {
		return domain.RemoteObject{}, domain.UploadFailure(fmt.Sprintf("object %s is in the trash", id), nil)
	}
	return domain.RemoteObject{ID: f.Id, Name: f.Name, MimeType: f.MimeType}, nil
}

// Search lists every object matching q across all result pages.
func (s *Service) Search(ctx context.Context, q domain.SearchQuery) ([]domain.RemoteObject, error) {
	query := BuildQuery(q)

	var out []domain.RemoteObject
	err := s.files.List().
		Q(query).
		Spaces("drive").
		Fields(listFields).
		IncludeItemsFromAllDrives(true).
		SupportsAllDrives(true).
		Pages(ctx, func(page *drivev3.FileList) error {
			for _, f := range page.Files {
				out = append(out, domain.RemoteObject{ID: f.Id, Name: f.Name, MimeType: f.MimeType})
			}
			return nil
		})
	if err != nil {
		return nil, domain.UploadFailure("search drive", err)
	}

	s.logger.Debug().Str("query", query).Int("results", len(out)).Msg("Drive search")
	return out, nil
}

// Delete removes an object by id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.files.Delete(id).SupportsAllDrives(true).Context(ctx).Do(); err != nil {
		return domain.UploadFailure(fmt.Sprintf("delete %s", id), err)
	}
	return nil
}

// Upload streams content into a new file named name.
func (s *Service) Upload(ctx context.Context, content io.Reader, name, parentID, fileType string) (string, error) {
	mimeType := domain.MimeTypeFor(fileType)

	meta := &drivev3.File{Name: name}
	if parentID != "" {
		meta.Parents = []string{parentID}
	}

	f, err := s.files.Create(meta).
		Media(content, googleapi.ContentType(mimeType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", domain.UploadFailure(fmt.Sprintf("upload %q", name), err)
	}
	if f.Id == "" {
		return "", domain.UploadFailure(fmt.Sprintf("upload %q returned no file id", name), nil)
	}

	s.logger.Info().Str("file", name).Str("id", f.Id).Str("parent", parentID).Msg("File uploaded")
	return f.Id, nil
}
