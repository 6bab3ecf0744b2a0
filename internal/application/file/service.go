package file

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/emmegi/catalog-api/internal/domain"
	s3infra "github.com/emmegi/catalog-api/internal/infrastructure/s3"
	"github.com/emmegi/catalog-api/internal/pkg/id"
)

const presignTTL = 15 * time.Minute

type Repo interface {
	Put(ctx context.Context, f *domain.File) error
	Get(ctx context.Context, fileID string) (*domain.File, error)
	SoftDelete(ctx context.Context, fileID string) error
}

type ObjectStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

// Service stores product photos in S3 and tracks them in DynamoDB.
type Service struct {
	files  Repo
	store  ObjectStore
	logger *slog.Logger
	now    func() time.Time
}

func NewService(files Repo, store ObjectStore, logger *slog.Logger) *Service {
	return &Service{files: files, store: store, logger: logger, now: time.Now}
}

// Upload streams the file to S3 and records its metadata. Returns the file
// row with a presigned URL for immediate display.
func (s *Service) Upload(ctx context.Context, userID, filename string, size int64, r io.Reader) (*domain.File, error) {
	fileID := id.New()
	key := fmt.Sprintf("products/%s/%s", fileID, filename)
	contentType := s3infra.DetectContentType(filename)

	if _, err := s.store.Upload(ctx, key, r, contentType); err != nil {
		return nil, fmt.Errorf("upload file: %w", err)
	}

	now := s.now()
	f := &domain.File{
		FileID:           fileID,
		Object:           key,
		Size:             size,
		Type:             contentType,
		Name:             filename,
		UploadedByUserID: userID,
		Enable:           true,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.files.Put(ctx, f); err != nil {
		// Orphaned object; best effort cleanup.
		if derr := s.store.Delete(ctx, key); derr != nil {
			s.logger.Error("failed to remove orphaned object", "key", key, "error", derr)
		}
		return nil, fmt.Errorf("store file record: %w", err)
	}

	url, err := s.store.PresignedURL(ctx, key, presignTTL)
	if err == nil {
		f.URL = &url
	}
	s.logger.Info("file uploaded", "file_id", fileID, "size", size)
	return f, nil
}

// Get returns the file record with a fresh presigned URL.
func (s *Service) Get(ctx context.Context, fileID string) (*domain.File, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}
	if !f.Enable {
		return nil, domain.ErrNotFound
	}
	url, err := s.store.PresignedURL(ctx, f.Object, presignTTL)
	if err == nil {
		f.URL = &url
	}
	return f, nil
}

// Delete soft-deletes the record and removes the object from S3.
func (s *Service) Delete(ctx context.Context, fileID string) error {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if err := s.files.SoftDelete(ctx, fileID); err != nil {
		return fmt.Errorf("delete file record: %w", err)
	}
	if err := s.store.Delete(ctx, f.Object); err != nil {
		s.logger.Error("failed to remove object", "key", f.Object, "error", err)
	}
	return nil
}
