package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/CutzuDev/itec2025/internal/audit"
	"github.com/CutzuDev/itec2025/internal/domain"
	"github.com/CutzuDev/itec2025/pkg/log"
	"github.com/CutzuDev/itec2025/pkg/storage"
)

var (
	ErrEmptyUpload      = errors.New("uploaded file is empty")
	ErrUploadTooLarge   = errors.New("uploaded file is too large")
	ErrAttachmentAbsent = errors.New("attachment not found")
)

// presignExpiry is the longest lifetime S3 allows for a presigned URL.
const presignExpiry = 7 * 24 * time.Hour

// attachmentServiceImpl implements AttachmentService interface.
type attachmentServiceImpl struct {
	store    storage.Storage
	prefix   string
	maxBytes int64
}

// NewAttachmentService creates a new attachment service. Files are stored
// under prefix; maxBytes of zero means no limit.
func NewAttachmentService(store storage.Storage, prefix string, maxBytes int64) AttachmentService {
	return &attachmentServiceImpl{
		store:    store,
		prefix:   strings.Trim(prefix, "/"),
		maxBytes: maxBytes,
	}
}

// Upload stores a file at {prefix}/{userID}/{uuid}.{ext} and returns its URL.
func (s *attachmentServiceImpl) Upload(ctx context.Context, userID, roomID string, file *domain.Upload) (*domain.AttachmentResponse, error) {
	if file.Size == 0 {
		return nil, ErrEmptyUpload
	}
	if s.maxBytes > 0 && file.Size > s.maxBytes {
		return nil, ErrUploadTooLarge
	}

	ext := strings.ToLower(path.Ext(path.Base(file.Filename)))
	key := path.Join(s.prefix, userID, uuid.New().String()+ext)

	contentType := file.ContentType
	if contentType == "" || contentType == "application/octet-stream" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			contentType = byExt
		}
	}

	ctx = log.WithRoom(ctx, roomID)
	if err := s.store.Write(ctx, key, file.Body, file.Size, contentType); err != nil {
		return nil, fmt.Errorf("%w: upload: %v", domain.ErrPersistence, err)
	}

	url, err := s.store.GetURL(ctx, key, presignExpiry)
	if err != nil {
		return nil, fmt.Errorf("%w: upload: %v", domain.ErrPersistence, err)
	}

	audit.LogWithDetail(ctx, audit.ActionUpload, userID, key, "attachment uploaded")
	return &domain.AttachmentResponse{URL: url, IsImage: domain.IsImage(url)}, nil
}

// Open returns the stored file and its content type.
func (s *attachmentServiceImpl) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	key = strings.TrimPrefix(path.Clean("/"+key), "/")
	if s.prefix != "" && !strings.HasPrefix(key, s.prefix+"/") {
		return nil, "", ErrAttachmentAbsent
	}

	rc, err := s.store.Read(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, "", ErrAttachmentAbsent
		}
		return nil, "", fmt.Errorf("%w: open attachment: %v", domain.ErrPersistence, err)
	}

	contentType := mime.TypeByExtension(path.Ext(key))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return rc, contentType, nil
}
