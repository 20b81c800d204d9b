package media

import (
	"context"
	"io"
	"mime"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"fnbox/fault"
	"fnbox/store"
)

// Repository is the metadata persistence the media service needs.
type Repository interface {
	CreateMedia(ctx context.Context, m *store.MediaFile) error
	MediaByType(ctx context.Context, dataType string) ([]store.MediaFile, error)
	MediaByTimespan(ctx context.Context, start, end time.Time) ([]store.MediaFile, error)
	ExpiredMedia(ctx context.Context, now time.Time) ([]store.MediaFile, error)
	DeleteMedia(ctx context.Context, id uint) error
}

// Service couples file storage with metadata rows and enforces expiry.
type Service struct {
	repo    Repository
	storage Storage
	log     *zap.Logger
}

func NewService(repo Repository, storage Storage, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, storage: storage, log: log}
}

// UploadRequest carries one file and its required metadata.
type UploadRequest struct {
	SenderName   string
	DataType     string
	Filename     string
	ContentType  string
	DeletionTime time.Time
	Size         int64
	Body         io.Reader
}

// Upload stores the file and records its metadata. The content type falls
// back to a guess from the filename extension when the client sent none.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (*store.MediaFile, error) {
	if req.Filename == "" {
		return nil, fault.New(fault.ParameterValidationFailed, "no file provided")
	}
	if req.SenderName == "" || req.DataType == "" {
		return nil, fault.New(fault.ParameterValidationFailed, "sender_name and data_type are required")
	}
	if req.DeletionTime.IsZero() {
		return nil, fault.New(fault.ParameterValidationFailed, "deletion_time is required")
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(req.Filename))
	}

	path, err := s.storage.Save(ctx, req.Filename, req.Body, req.Size, contentType)
	if err != nil {
		return nil, err
	}

	file := &store.MediaFile{
		SenderName:   req.SenderName,
		DataType:     req.DataType,
		Timestamp:    time.Now().UTC(),
		FilePath:     path,
		DeletionTime: req.DeletionTime,
		ContentType:  contentType,
	}
	if err := s.repo.CreateMedia(ctx, file); err != nil {
		// Orphaned bytes are worse than a lost upload.
		if rerr := s.storage.Remove(ctx, path); rerr != nil {
			s.log.Warn("orphaned upload left behind", zap.String("path", path), zap.Error(rerr))
		}
		return nil, err
	}

	s.log.Info("media uploaded",
		zap.Uint("id", file.ID),
		zap.String("sender", file.SenderName),
		zap.String("type", file.DataType),
		zap.Time("expires", file.DeletionTime))
	return file, nil
}

// ByType lists files of one data type, newest first.
func (s *Service) ByType(ctx context.Context, dataType string) ([]store.MediaFile, error) {
	return s.repo.MediaByType(ctx, dataType)
}

// ByTimespan lists files whose upload timestamp falls inside [start, end].
func (s *Service) ByTimespan(ctx context.Context, start, end time.Time) ([]store.MediaFile, error) {
	if end.Before(start) {
		return nil, fault.New(fault.ParameterValidationFailed, "end must not precede start")
	}
	return s.repo.MediaByTimespan(ctx, start, end)
}

// PurgeExpired deletes every file whose deletion time has passed, bytes
// first and row second. A backend failure keeps the row so the next sweep
// retries; it never aborts the sweep for the remaining files.
func (s *Service) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.repo.ExpiredMedia(ctx, now)
	if err != nil {
		return 0, err
	}

	purged := 0
	for _, file := range expired {
		if err := s.storage.Remove(ctx, file.FilePath); err != nil {
			s.log.Error("expired file removal failed",
				zap.Uint("id", file.ID),
				zap.String("path", file.FilePath),
				zap.Error(err))
			continue
		}
		if err := s.repo.DeleteMedia(ctx, file.ID); err != nil {
			s.log.Error("expired row removal failed", zap.Uint("id", file.ID), zap.Error(err))
			continue
		}
		purged++
	}

	if purged > 0 {
		s.log.Info("expired media purged", zap.Int("count", purged))
	}
	return purged, nil
}
