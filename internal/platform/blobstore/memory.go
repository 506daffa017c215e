package blobstore

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"time"
)

type storedObject struct {
	blob    StoredBlob
	content []byte
}

// InMemoryBlobStore keeps uploads in process memory. Objects are served back
// by Handler under {baseURL}/blobs/{key}.
type InMemoryBlobStore struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]*storedObject
	now     func() time.Time
}

func NewInMemoryBlobStore(baseURL string) *InMemoryBlobStore {
	return &InMemoryBlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]*storedObject),
		now:     time.Now,
	}
}

func (s *InMemoryBlobStore) Name() string { return "memory" }

func (s *InMemoryBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*StoredBlob, error) {
	if meta.FileName == "" {
		return nil, ErrMissingFileName
	}
	data, err := readLimited(content, MaxFileSize)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	key := objectName(meta, now)
	blob := StoredBlob{
		Provider:    s.Name(),
		Key:         key,
		URL:         s.baseURL + "/blobs/" + key,
		FileName:    meta.FileName,
		ContentType: meta.ContentType,
		Size:        int64(len(data)),
		CreatedAt:   now,
	}

	s.mu.Lock()
	s.objects[key] = &storedObject{blob: blob, content: data}
	s.mu.Unlock()

	out := blob
	return &out, nil
}

// Download returns the content and metadata stored under key.
func (s *InMemoryBlobStore) Download(_ context.Context, key string) (io.ReadCloser, *StoredBlob, error) {
	s.mu.RLock()
	obj, ok := s.objects[key]
	s.mu.RUnlock()
	if !ok {
		return nil, nil, ErrBlobNotFound
	}
	blob := obj.blob
	return io.NopCloser(bytes.NewReader(obj.content)), &blob, nil
}

func (s *InMemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.objects[key]; !ok {
		return ErrBlobNotFound
	}
	delete(s.objects, key)
	return nil
}

// Len reports the number of stored objects.
func (s *InMemoryBlobStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.objects)
}
