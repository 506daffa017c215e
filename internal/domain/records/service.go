package records

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/domain/account"
	"github.com/healthvault/vault/internal/platform/apperr"
	"github.com/healthvault/vault/internal/platform/blobstore"
	"github.com/healthvault/vault/pkg/dates"
	"github.com/healthvault/vault/pkg/pagination"
)

var (
	ErrRecordNotFound = apperr.NotFound("Record not found")
	ErrNoFile         = apperr.Validation("No file uploaded")
	ErrFileType       = apperr.Validation("Only PDF and image files are allowed")
)

// UserLookup resolves the caller's account.
type UserLookup interface {
	GetByFirebaseUID(ctx context.Context, uid string) (*account.User, error)
}

type Service struct {
	records  Repository
	users    UserLookup
	blobs    blobstore.Store
	maxBytes int64
	now      func() time.Time
	logger   zerolog.Logger
}

func NewService(records Repository, users UserLookup, blobs blobstore.Store, maxBytes int64, logger zerolog.Logger) *Service {
	if maxBytes <= 0 {
		maxBytes = blobstore.MaxFileSize
	}
	return &Service{
		records:  records,
		users:    users,
		blobs:    blobs,
		maxBytes: maxBytes,
		now:      time.Now,
		logger:   logger.With().Str("component", "records").Logger(),
	}
}

// UploadInput carries the multipart form fields sent with the file.
type UploadInput struct {
	Title        string
	Description  string
	Category     string
	DateOfRecord string
	Tags         string
}

// FileInfo describes the uploaded part.
type FileInfo struct {
	Name        string
	ContentType string
	Size        int64
}

// Upload validates the file, stores it in the blob backend and records it.
func (s *Service) Upload(ctx context.Context, uid string, in UploadInput, file FileInfo, content io.Reader) (*Record, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}

	meta := blobstore.BlobMetadata{
		FileName:    file.Name,
		ContentType: file.ContentType,
		Size:        file.Size,
		OwnerID:     user.ID.String(),
		Folder:      blobstore.DefaultFolder,
	}
	if err := s.validateFile(meta); err != nil {
		return nil, err
	}

	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = defaultCategory
	}
	if !validCategories[category] {
		return nil, apperr.Validation("Invalid category: %s", category)
	}
	dateOfRecord := s.now().UTC()
	if strings.TrimSpace(in.DateOfRecord) != "" {
		dateOfRecord, err = dates.Parse(in.DateOfRecord)
		if err != nil {
			return nil, apperr.Validation("Invalid dateOfRecord")
		}
	}

	stored, err := s.blobs.Upload(ctx, meta, content)
	if err != nil {
		if errors.Is(err, blobstore.ErrFileTooLarge) {
			return nil, s.tooLarge()
		}
		return nil, fmt.Errorf("upload to %s: %w", s.blobs.Name(), err)
	}

	rec := &Record{
		UserID:          user.ID,
		Title:           strings.TrimSpace(in.Title),
		Category:        category,
		FileURL:         stored.URL,
		FileName:        file.Name,
		FileSize:        stored.Size,
		FileType:        file.ContentType,
		StorageProvider: stored.Provider,
		StorageKey:      stored.Key,
		DateOfRecord:    dateOfRecord,
		Tags:            splitTags(in.Tags),
		IsEncrypted:     true,
	}
	if rec.Title == "" {
		rec.Title = file.Name
	}
	if d := strings.TrimSpace(in.Description); d != "" {
		rec.Description = &d
	}

	if err := s.records.Create(ctx, rec); err != nil {
		s.deleteBlob(ctx, stored.Provider, stored.Key)
		return nil, err
	}
	return rec, nil
}

func (s *Service) validateFile(meta blobstore.BlobMetadata) error {
	err := blobstore.ValidateUpload(meta, s.maxBytes)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, blobstore.ErrMissingFileName):
		return ErrNoFile
	case errors.Is(err, blobstore.ErrFileTooLarge):
		return s.tooLarge()
	default:
		return ErrFileType
	}
}

func (s *Service) tooLarge() error {
	return apperr.Validation("File too large. Maximum size is %dMB", s.maxBytes/(1<<20))
}

// ListQuery carries raw query-string filters.
type ListQuery struct {
	Category  string
	StartDate string
	EndDate   string
	Tag       string
}

// List returns one page of the caller's records, newest dateOfRecord first.
func (s *Service) List(ctx context.Context, uid string, q ListQuery, page pagination.Params) ([]*Record, pagination.Info, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, pagination.Info{}, err
	}
	f := Filter{Category: q.Category, Tag: q.Tag}
	if q.StartDate != "" {
		t, err := dates.Parse(q.StartDate)
		if err != nil {
			return nil, pagination.Info{}, apperr.Validation("Invalid startDate")
		}
		f.StartDate = &t
	}
	if q.EndDate != "" {
		t, err := dates.Parse(q.EndDate)
		if err != nil {
			return nil, pagination.Info{}, apperr.Validation("Invalid endDate")
		}
		f.EndDate = &t
	}

	out, total, err := s.records.List(ctx, user.ID, f, page)
	if err != nil {
		return nil, pagination.Info{}, err
	}
	if out == nil {
		out = []*Record{}
	}
	return out, pagination.NewInfo(page, total), nil
}

// UpdateInput is the body of PUT /api/records/:recordId. The file itself
// cannot be replaced.
type UpdateInput struct {
	Title        *string   `json:"title"`
	Description  *string   `json:"description"`
	Category     *string   `json:"category"`
	DateOfRecord *string   `json:"dateOfRecord"`
	Tags         *[]string `json:"tags"`
}

func (s *Service) Update(ctx context.Context, uid string, id uuid.UUID, in UpdateInput) (*Record, error) {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return nil, err
	}
	p := Patch{Title: in.Title, Description: in.Description, Category: in.Category, Tags: in.Tags}
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return nil, apperr.Validation("title must not be empty")
	}
	if p.Category != nil && !validCategories[*p.Category] {
		return nil, apperr.Validation("Invalid category: %s", *p.Category)
	}
	if in.DateOfRecord != nil && strings.TrimSpace(*in.DateOfRecord) != "" {
		t, err := dates.Parse(*in.DateOfRecord)
		if err != nil {
			return nil, apperr.Validation("Invalid dateOfRecord")
		}
		p.DateOfRecord = &t
	}
	if p.Tags != nil {
		tags := splitTags(strings.Join(*p.Tags, ","))
		p.Tags = &tags
	}
	return s.records.Update(ctx, user.ID, id, p, s.now().UTC())
}

// Delete removes the record, then deletes its blob. A blob failure is
// logged; the record stays deleted.
func (s *Service) Delete(ctx context.Context, uid string, id uuid.UUID) error {
	user, err := s.users.GetByFirebaseUID(ctx, uid)
	if err != nil {
		return err
	}
	rec, err := s.records.Delete(ctx, user.ID, id)
	if err != nil {
		return err
	}
	s.deleteBlob(ctx, rec.StorageProvider, rec.StorageKey)
	return nil
}

func (s *Service) deleteBlob(ctx context.Context, provider, key string) {
	if key == "" {
		return
	}
	if provider != s.blobs.Name() {
		s.logger.Warn().Str("provider", provider).Str("key", key).Msg("blob stored with a different backend, not deleted")
		return
	}
	if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Error().Err(err).Str("key", key).Msg("delete blob")
	}
}
