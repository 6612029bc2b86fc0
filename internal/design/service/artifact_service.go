package service

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"time"

	"github.com/gigfactory/designhub/internal/design/entity"
	"github.com/gigfactory/designhub/internal/shared/storage"
)

const artifactPrefix = "drawings"

// ArtifactService stores uploaded drawing files and hands back references
// that can be attached to versions, comments or RFIs.
type ArtifactService struct {
	store storage.Store
	now   func() time.Time
}

func NewArtifactService(store storage.Store) *ArtifactService {
	return &ArtifactService{store: store, now: time.Now}
}

// Save stores every file under drawings/yyyy/mm/dd. A failure part way leaves
// the earlier objects in place; they are unreferenced until attached.
func (s *ArtifactService) Save(ctx context.Context, files []*multipart.FileHeader) ([]entity.FileRef, error) {
	if s.store == nil {
		return nil, &PersistenceError{Op: "save artifacts", Err: errors.New("artifact storage is not configured")}
	}
	if len(files) == 0 {
		return nil, &ValidationError{Msg: "at least one file is required"}
	}

	refs := make([]entity.FileRef, 0, len(files))
	for _, fh := range files {
		contentType := fh.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}
		name := storage.ObjectName(artifactPrefix, fh.Filename, s.now())

		src, err := fh.Open()
		if err != nil {
			return nil, &PersistenceError{Op: "read upload", Err: err}
		}
		err = s.store.Put(ctx, name, src, fh.Size, contentType)
		src.Close()
		if err != nil {
			return nil, &PersistenceError{Op: "store upload", Err: err}
		}

		refs = append(refs, entity.FileRef{
			Path:        name,
			Name:        fh.Filename,
			Size:        fh.Size,
			ContentType: contentType,
		})
	}
	return refs, nil
}

// Open reads one stored object by path.
func (s *ArtifactService) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	if s.store == nil {
		return nil, &NotFoundError{Resource: "artifact storage"}
	}
	rc, err := s.store.Open(ctx, path)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, &NotFoundError{Resource: "file", ID: path}
		}
		return nil, &PersistenceError{Op: "open artifact", Err: err}
	}
	return rc, nil
}
