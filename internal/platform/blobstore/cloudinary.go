package blobstore

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"github.com/healthvault/vault/internal/platform/restylog"
)

// CloudinaryConfig holds the account used for signed uploads.
type CloudinaryConfig struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	// BaseURL defaults to https://api.cloudinary.com.
	BaseURL string
	Timeout time.Duration
}

// CloudinaryStore uploads through Cloudinary's REST upload API. Keys have the
// form "{resourceType}:{publicId}" because destroy is addressed by both.
type CloudinaryStore struct {
	http   *resty.Client
	cfg    CloudinaryConfig
	now    func() time.Time
	logger zerolog.Logger
}

type cloudinaryUpload struct {
	PublicID     string `json:"public_id"`
	SecureURL    string `json:"secure_url"`
	ResourceType string `json:"resource_type"`
	Bytes        int64  `json:"bytes"`
	Format       string `json:"format"`
}

type cloudinaryError struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

type cloudinaryDestroy struct {
	Result string `json:"result"`
}

func NewCloudinaryStore(cfg CloudinaryConfig, logger zerolog.Logger) (*CloudinaryStore, error) {
	if cfg.CloudName == "" || cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("%w: cloudinary requires cloud name, api key and api secret", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.cloudinary.com"
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restylog.New(logger))

	return &CloudinaryStore{
		http:   client,
		cfg:    cfg,
		now:    time.Now,
		logger: logger.With().Str("component", "cloudinary").Logger(),
	}, nil
}

func (s *CloudinaryStore) Name() string { return "cloudinary" }

func (s *CloudinaryStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*StoredBlob, error) {
	data, err := readLimited(content, MaxFileSize)
	if err != nil {
		return nil, err
	}

	folder := meta.Folder
	if folder == "" {
		folder = s.cfg.Folder
	}
	params := map[string]string{
		"folder":    folder,
		"timestamp": strconv.FormatInt(s.now().Unix(), 10),
	}
	form := s.signed(params)

	var out cloudinaryUpload
	var apiErr cloudinaryError
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetFileReader("file", meta.FileName, bytes.NewReader(data)).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1_1/" + s.cfg.CloudName + "/auto/upload")
	if err != nil {
		return nil, fmt.Errorf("cloudinary upload: %w", err)
	}
	if resp.IsError() {
		return nil, apiErr.toError(resp.StatusCode())
	}

	s.logger.Debug().Str("public_id", out.PublicID).Int64("bytes", out.Bytes).Msg("uploaded")
	return &StoredBlob{
		Provider:    s.Name(),
		Key:         out.ResourceType + ":" + out.PublicID,
		URL:         out.SecureURL,
		FileName:    meta.FileName,
		ContentType: meta.ContentType,
		Size:        int64(len(data)),
		CreatedAt:   s.now().UTC(),
	}, nil
}

func (s *CloudinaryStore) Delete(ctx context.Context, key string) error {
	resourceType, publicID, ok := strings.Cut(key, ":")
	if !ok || publicID == "" {
		return fmt.Errorf("%w: malformed cloudinary key %q", ErrBlobNotFound, key)
	}

	form := s.signed(map[string]string{
		"public_id": publicID,
		"timestamp": strconv.FormatInt(s.now().Unix(), 10),
	})

	var out cloudinaryDestroy
	var apiErr cloudinaryError
	resp, err := s.http.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&out).
		SetError(&apiErr).
		Post("/v1_1/" + s.cfg.CloudName + "/" + resourceType + "/destroy")
	if err != nil {
		return fmt.Errorf("cloudinary destroy: %w", err)
	}
	if resp.IsError() {
		return apiErr.toError(resp.StatusCode())
	}
	if out.Result == "not found" {
		return ErrBlobNotFound
	}
	return nil
}

// signed returns params plus api_key and signature. The signature is the
// SHA-1 of the params sorted by name, joined as k=v with '&', followed by the
// API secret.
func (s *CloudinaryStore) signed(params map[string]string) map[string]string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+params[k])
	}
	sum := sha1.Sum([]byte(strings.Join(parts, "&") + s.cfg.APISecret))

	form := make(map[string]string, len(params)+2)
	for k, v := range params {
		form[k] = v
	}
	form["api_key"] = s.cfg.APIKey
	form["signature"] = hex.EncodeToString(sum[:])
	return form
}

func (e cloudinaryError) toError(status int) error {
	if e.Error.Message == "" {
		return fmt.Errorf("cloudinary: unexpected status %d", status)
	}
	if status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", ErrBlobNotFound, e.Error.Message)
	}
	return fmt.Errorf("cloudinary: %s (status %d)", e.Error.Message, status)
}
