// Package storage talks to remote object storage (Supabase Storage).
//
// SupabaseStore implements ObjectStore. Uploader builds on it to store
// user PDFs and list them with signed download URLs.
package storage

import (
	"context"
	"errors"
	"io"
	"time"
)

var (
	// ErrRemoteFetchFailed indicates a remote object could not be
	// downloaded.
	ErrRemoteFetchFailed = errors.New("remote fetch failed")

	// ErrUploadFailed indicates an object could not be stored.
	ErrUploadFailed = errors.New("upload failed")

	// ErrListFailed indicates objects could not be listed.
	ErrListFailed = errors.New("list failed")

	// ErrUnsupportedContentType indicates an upload that is not a PDF.
	ErrUnsupportedContentType = errors.New("unsupported content type")

	// ErrInvalidInput indicates a malformed user id or file name.
	ErrInvalidInput = errors.New("invalid input")
)

// Downloader fetches whole objects.
type Downloader interface {
	Download(ctx context.Context, bucket, path string) ([]byte, error)
}

// ObjectStore is the subset of object storage ragify uses.
type ObjectStore interface {
	Downloader
	Upload(ctx context.Context, bucket, path string, r io.Reader, contentType string) error
	List(ctx context.Context, bucket, prefix string, limit int) ([]ObjectInfo, error)
	SignedURL(ctx context.Context, bucket, path string, ttl time.Duration) (string, error)
	EnsureBucket(ctx context.Context, bucket string) error
}

// ObjectInfo describes a stored object.
type ObjectInfo struct {
	Name      string `json:"name"`
	Path      string `json:"path"`
	SignedURL string `json:"signedUrl,omitempty"`
}

// UploadResult describes a stored upload.
type UploadResult struct {
	Bucket    string `json:"bucket"`
	Path      string `json:"path"`
	Filename  string `json:"filename"`
	SignedURL string `json:"signedUrl,omitempty"`
}
