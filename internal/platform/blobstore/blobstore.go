// Package blobstore stores uploaded medical documents. It defines the Store
// interface, upload validation shared by every backend, and implementations
// for Cloudinary, Firebase Storage and process memory (development).
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
)

var (
	ErrBlobNotFound       = errors.New("blob not found")
	ErrFileTooLarge       = errors.New("file exceeds maximum allowed size")
	ErrInvalidContentType = errors.New("only PDF and image files are allowed")
	ErrMissingFileName    = errors.New("file name is required")
	ErrNotConfigured      = errors.New("storage backend is not configured")
)

// MaxFileSize is the default upload limit (10 MB).
const MaxFileSize = 10 * 1024 * 1024

// DefaultFolder groups medical record uploads inside a bucket or cloud.
const DefaultFolder = "medical-records"

var allowedExtensions = map[string]bool{
	".pdf":  true,
	".jpeg": true,
	".jpg":  true,
	".png":  true,
	".gif":  true,
}

var allowedContentTypes = map[string]bool{
	"application/pdf": true,
	"image/jpeg":      true,
	"image/jpg":       true,
	"image/pjpeg":     true,
	"image/png":       true,
	"image/gif":       true,
}

// BlobMetadata describes an object about to be stored.
type BlobMetadata struct {
	FileName    string
	ContentType string
	Size        int64
	OwnerID     string
	Folder      string
}

// StoredBlob is what a backend reports after a successful upload. Key is the
// backend's handle for Delete.
type StoredBlob struct {
	Provider    string    `json:"provider"`
	Key         string    `json:"key"`
	URL         string    `json:"url"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	Size        int64     `json:"size"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Store is implemented by every blob backend.
type Store interface {
	Name() string
	Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*StoredBlob, error)
	Delete(ctx context.Context, key string) error
}

// ValidateUpload enforces the size limit and requires both the file extension
// and the declared MIME type to be PDF or a common image format.
func ValidateUpload(meta BlobMetadata, maxBytes int64) error {
	if meta.FileName == "" {
		return ErrMissingFileName
	}
	if maxBytes <= 0 {
		maxBytes = MaxFileSize
	}
	if meta.Size > maxBytes {
		return ErrFileTooLarge
	}
	ext := strings.ToLower(filepath.Ext(meta.FileName))
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(meta.ContentType, ";", 2)[0]))
	if !allowedExtensions[ext] || !allowedContentTypes[ct] {
		return ErrInvalidContentType
	}
	return nil
}

// readLimited reads content fully, failing once it exceeds maxBytes.
func readLimited(content io.Reader, maxBytes int64) ([]byte, error) {
	if maxBytes <= 0 {
		maxBytes = MaxFileSize
	}
	data, err := io.ReadAll(io.LimitReader(content, maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading content: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrFileTooLarge
	}
	return data, nil
}

// objectName builds "{folder}/{owner}_{unixMillis}_{file}".
func objectName(meta BlobMetadata, now time.Time) string {
	folder := meta.Folder
	if folder == "" {
		folder = DefaultFolder
	}
	base := filepath.Base(meta.FileName)
	if meta.OwnerID != "" {
		base = fmt.Sprintf("%s_%d_%s", meta.OwnerID, now.UnixMilli(), base)
	} else {
		base = fmt.Sprintf("%d_%s", now.UnixMilli(), base)
	}
	return folder + "/" + base
}
