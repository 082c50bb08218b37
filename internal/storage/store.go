package storage

import (
	"context"
	"errors"
)

// MaxFileSize caps uploaded attachments at 5MB.
const MaxFileSize = 5 * 1024 * 1024

// Errors surfaced by Save. Delete never returns an error: losing an orphaned
// blob is acceptable, blocking the caller on cleanup is not.
var (
	ErrInvalidType = errors.New("invalid file type: only JPEG, PNG, and WebP are allowed")
	ErrTooLarge    = errors.New("file too large: maximum size is 5MB")
)

// SavedFile describes a stored blob.
type SavedFile struct {
	URL  string
	Name string
}

// AttachmentStore is the narrow save/delete contract for order images.
type AttachmentStore interface {
	Save(ctx context.Context, data []byte, mimeType, originalName string) (*SavedFile, error)
	Delete(ctx context.Context, name string)
}

var allowedTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// AllowedType reports whether the mime type may be stored.
func AllowedType(mimeType string) bool {
	_, ok := allowedTypes[mimeType]
	return ok
}
