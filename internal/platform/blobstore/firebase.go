package blobstore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/healthvault/vault/internal/platform/restylog"
)

const storageScope = "https://www.googleapis.com/auth/devstorage.read_write"

// FirebaseConfig points at a Firebase Storage bucket.
type FirebaseConfig struct {
	Bucket string
	Folder string
	// BaseURL defaults to https://firebasestorage.googleapis.com.
	BaseURL string
	// TokenSource defaults to Google application default credentials.
	TokenSource oauth2.TokenSource
	Timeout     time.Duration
}

// FirebaseStore uploads through the Firebase Storage REST API and hands out
// token-bearing download URLs, so objects need no public ACL.
type FirebaseStore struct {
	http   *resty.Client
	cfg    FirebaseConfig
	tokens oauth2.TokenSource
	now    func() time.Time
	logger zerolog.Logger
}

type firebaseObject struct {
	Name           string `json:"name"`
	Bucket         string `json:"bucket"`
	Size           string `json:"size"`
	ContentType    string `json:"contentType"`
	DownloadTokens string `json:"downloadTokens"`
}

type firebaseError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func NewFirebaseStore(ctx context.Context, cfg FirebaseConfig, logger zerolog.Logger) (*FirebaseStore, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("%w: FIREBASE_STORAGE_BUCKET is not set", ErrNotConfigured)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://firebasestorage.googleapis.com"
	}
	if cfg.Folder == "" {
		cfg.Folder = DefaultFolder
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}

	ts := cfg.TokenSource
	if ts == nil {
		var err error
		ts, err = google.DefaultTokenSource(ctx, storageScope)
		if err != nil {
			return nil, fmt.Errorf("firebase storage credentials: %w", err)
		}
	}

	client := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetLogger(restylog.New(logger))

	return &FirebaseStore{
		http:   client,
		cfg:    cfg,
		tokens: oauth2.ReuseTokenSource(nil, ts),
		now:    time.Now,
		logger: logger.With().Str("component", "firebase-storage").Str("bucket", cfg.Bucket).Logger(),
	}, nil
}

func (s *FirebaseStore) Name() string { return "firebase" }

func (s *FirebaseStore) Upload(ctx context.Context, meta BlobMetadata, content io.Reader) (*StoredBlob, error) {
	data, err := readLimited(content, MaxFileSize)
	if err != nil {
		return nil, err
	}
	if meta.Folder == "" {
		meta.Folder = s.cfg.Folder
	}
	name := objectName(meta, s.now())

	req, err := s.request(ctx)
	if err != nil {
		return nil, err
	}

	var obj firebaseObject
	var apiErr firebaseError
	resp, err := req.
		SetQueryParam("name", name).
		SetHeader("Content-Type", meta.ContentType).
		SetBody(data).
		SetResult(&obj).
		SetError(&apiErr).
		Post(s.bucketPath())
	if err != nil {
		return nil, fmt.Errorf("firebase upload: %w", err)
	}
	if resp.IsError() {
		return nil, apiErr.toError(resp.StatusCode())
	}
	if obj.Name == "" {
		obj.Name = name
	}

	s.logger.Debug().Str("object", obj.Name).Msg("uploaded")
	return &StoredBlob{
		Provider:    s.Name(),
		Key:         obj.Name,
		URL:         s.downloadURL(obj),
		FileName:    meta.FileName,
		ContentType: meta.ContentType,
		Size:        int64(len(data)),
		CreatedAt:   s.now().UTC(),
	}, nil
}

func (s *FirebaseStore) Delete(ctx context.Context, key string) error {
	req, err := s.request(ctx)
	if err != nil {
		return err
	}

	var apiErr firebaseError
	resp, err := req.SetError(&apiErr).Delete(s.objectPath(key))
	if err != nil {
		return fmt.Errorf("firebase delete: %w", err)
	}
	if resp.IsError() {
		return apiErr.toError(resp.StatusCode())
	}
	return nil
}

func (s *FirebaseStore) request(ctx context.Context) (*resty.Request, error) {
	tok, err := s.tokens.Token()
	if err != nil {
		return nil, fmt.Errorf("firebase storage token: %w", err)
	}
	return s.http.R().SetContext(ctx).SetAuthToken(tok.AccessToken), nil
}

func (s *FirebaseStore) bucketPath() string {
	return "/v0/b/" + url.PathEscape(s.cfg.Bucket) + "/o"
}

// Object names contain '/', which must be escaped to address a single object.
func (s *FirebaseStore) objectPath(name string) string {
	return s.bucketPath() + "/" + url.PathEscape(name)
}

func (s *FirebaseStore) downloadURL(obj firebaseObject) string {
	u := strings.TrimRight(s.cfg.BaseURL, "/") + s.objectPath(obj.Name) + "?alt=media"
	if token, _, _ := strings.Cut(obj.DownloadTokens, ","); token != "" {
		u += "&token=" + url.QueryEscape(token)
	}
	return u
}

func (e firebaseError) toError(status int) error {
	if status == http.StatusNotFound {
		return ErrBlobNotFound
	}
	if e.Error.Message == "" {
		return fmt.Errorf("firebase storage: unexpected status %d", status)
	}
	return fmt.Errorf("firebase storage: %s (status %d)", e.Error.Message, status)
}
