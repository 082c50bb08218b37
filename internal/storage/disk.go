package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/workorder-service/internal/config"
)

// DiskStore writes attachments to a local directory and serves them under a
// public base URL.
type DiskStore struct {
	dir     string
	baseURL string
	logger  *zap.Logger
}

// NewDiskStore constructs the store, creating the upload directory if needed.
func NewDiskStore(cfg config.StorageConfig, logger *zap.Logger) (*DiskStore, error) {
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, err
	}
	return &DiskStore{
		dir:     cfg.UploadDir,
		baseURL: strings.TrimRight(cfg.PublicBaseURL, "/"),
		logger:  logger,
	}, nil
}

// Save validates and persists the blob under a generated unique name.
func (s *DiskStore) Save(ctx context.Context, data []byte, mimeType, originalName string) (*SavedFile, error) {
	if !AllowedType(mimeType) {
		return nil, ErrInvalidType
	}
	if len(data) > MaxFileSize {
		return nil, ErrTooLarge
	}

	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}

	return &SavedFile{
		URL:  s.baseURL + "/" + name,
		Name: name,
	}, nil
}

// Delete removes a stored blob by name. Failures are logged and swallowed.
func (s *DiskStore) Delete(ctx context.Context, name string) {
	if name == "" {
		return
	}
	path := filepath.Join(s.dir, filepath.Base(name))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.logger.Warn("failed to delete attachment", zap.String("name", name), zap.Error(err))
	}
}
