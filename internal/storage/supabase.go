package storage

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	storage_go "github.com/supabase-community/storage-go"
	"github.com/supabase-community/supabase-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
)

// bucketAPI is the part of Supabase Storage SupabaseStore calls.
type bucketAPI interface {
	Download(bucket, path string) ([]byte, error)
	Upload(bucket, path string, r io.Reader, contentType string) error
	List(bucket, prefix string, limit int) ([]string, error)
	Sign(bucket, path string, expiresIn int) (string, error)
	CreateBucket(bucket string) error
}

// sdkAPI adapts the storage-go client to bucketAPI.
type sdkAPI struct {
	client *storage_go.Client
}

func (a sdkAPI) Download(bucket, path string) ([]byte, error) {
	return a.client.DownloadFile(bucket, path)
}

func (a sdkAPI) Upload(bucket, path string, r io.Reader, contentType string) error {
	upsert := false
	_, err := a.client.UploadFile(bucket, path, r, storage_go.FileOptions{
		ContentType: &contentType,
		Upsert:      &upsert,
	})
	return err
}

func (a sdkAPI) List(bucket, prefix string, limit int) ([]string, error) {
	files, err := a.client.ListFiles(bucket, prefix, storage_go.FileSearchOptions{Limit: limit, Offset: 0})
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(files))
	for _, f := range files {
		names = append(names, f.Name)
	}
	return names, nil
}

func (a sdkAPI) Sign(bucket, path string, expiresIn int) (string, error) {
	resp, err := a.client.CreateSignedUrl(bucket, path, expiresIn)
	if err != nil {
		return "", err
	}
	return resp.SignedURL, nil
}

func (a sdkAPI) CreateBucket(bucket string) error {
	_, err := a.client.CreateBucket(bucket, storage_go.BucketOptions{Public: false})
	return err
}

// SupabaseStore implements ObjectStore over Supabase Storage.
//
// The storage-go client does not take a context; calls are not cancelled
// mid-flight but ctx is checked before each one.
type SupabaseStore struct {
	api    bucketAPI
	logger *zap.Logger
}

// NewSupabaseStore creates a store from cfg. Missing credentials fail with
// config.ErrConfigurationMissing without touching the network.
func NewSupabaseStore(cfg config.SupabaseConfig, logger *zap.Logger) (*SupabaseStore, error) {
	if err := cfg.Require(); err != nil {
		return nil, err
	}

	client, err := supabase.NewClient(cfg.URL, cfg.ServiceRoleKey.Value(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}
	return newSupabaseStore(sdkAPI{client: client.Storage}, logger), nil
}

func newSupabaseStore(api bucketAPI, logger *zap.Logger) *SupabaseStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SupabaseStore{api: api, logger: logger}
}

// Download fetches bucket/path. Failures wrap ErrRemoteFetchFailed.
func (s *SupabaseStore) Download(ctx context.Context, bucket, path string) ([]byte, error) {
	ctx, span := otel.Tracer("ragify/storage").Start(ctx, "storage.Download")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", bucket), attribute.String("path", path))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := s.api.Download(bucket, path)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "download failed")
		s.logger.Warn("download failed", zap.String("bucket", bucket), zap.String("path", path), zap.Error(err))
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrRemoteFetchFailed, bucket, path, err)
	}

	span.SetAttributes(attribute.Int("bytes", len(data)))
	return data, nil
}

// Upload stores r at bucket/path without overwriting an existing object.
func (s *SupabaseStore) Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error {
	ctx, span := otel.Tracer("ragify/storage").Start(ctx, "storage.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", bucket), attribute.String("path", path))

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := s.api.Upload(bucket, path, r, contentType); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return fmt.Errorf("%w: %s/%s: %v", ErrUploadFailed, bucket, path, err)
	}
	return nil
}

// List returns up to limit objects directly under prefix.
func (s *SupabaseStore) List(ctx context.Context, bucket, prefix string, limit int) ([]ObjectInfo, error) {
	ctx, span := otel.Tracer("ragify/storage").Start(ctx, "storage.List")
	defer span.End()
	span.SetAttributes(attribute.String("bucket", bucket), attribute.String("prefix", prefix))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	names, err := s.api.List(bucket, prefix, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list failed")
		return nil, fmt.Errorf("%w: %s/%s: %v", ErrListFailed, bucket, prefix, err)
	}

	dir := strings.TrimSuffix(prefix, "/")
	objects := make([]ObjectInfo, 0, len(names))
	for _, name := range names {
		objects = append(objects, ObjectInfo{Name: name, Path: dir + "/" + name})
	}
	span.SetAttributes(attribute.Int("objects", len(objects)))
	return objects, nil
}

// SignedURL returns a download URL for bucket/path valid for ttl.
func (s *SupabaseStore) SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	url, err := s.api.Sign(bucket, path, int(ttl.Seconds()))
	if err != nil {
		return "", fmt.Errorf("signing %s/%s: %w", bucket, path, err)
	}
	return url, nil
}

// EnsureBucket creates a private bucket. An existing bucket is not an
// error.
func (s *SupabaseStore) EnsureBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.api.CreateBucket(bucket); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("creating bucket %s: %w", bucket, err)
	}
	return nil
}

func isAlreadyExists(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
