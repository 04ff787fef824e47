package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
)

const (
	// ContentTypePDF is the only content type accepted for uploads.
	ContentTypePDF = "application/pdf"

	listLimit = 100

	// stampLayout renders month, day, hour and minute as MMDDhhmm.
	stampLayout = "01021504"
)

// Uploader stores user PDFs under <prefix>/<userID>/ in one bucket.
type Uploader struct {
	store  ObjectStore
	bucket string
	prefix string
	ttl    time.Duration
	now    func() time.Time
	logger *zap.Logger
}

// NewUploader creates an Uploader using the bucket, prefix and signed URL
// lifetime from cfg.
func NewUploader(store ObjectStore, cfg config.SupabaseConfig, logger *zap.Logger) *Uploader {
	if logger == nil {
		logger = zap.NewNop()
	}
	u := &Uploader{
		store:  store,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.UploadPrefix, "/"),
		ttl:    cfg.SignedURLTTL.Duration(),
		now:    time.Now,
		logger: logger,
	}
	if u.bucket == "" {
		u.bucket = "pdfs"
	}
	if u.prefix == "" {
		u.prefix = "uploads"
	}
	if u.ttl <= 0 {
		u.ttl = time.Hour
	}
	return u
}

// Bucket returns the bucket uploads are stored in.
func (u *Uploader) Bucket() string {
	return u.bucket
}

// UploadPDF stores a PDF as <prefix>/<userID>/<filename>-MMDDhhmm, or
// <prefix>/<filename>-MMDDhhmm when userID is empty, and returns a signed
// URL for it. A signing failure leaves SignedURL empty.
func (u *Uploader) UploadPDF(ctx context.Context, userID, filename, contentType string, r io.Reader) (UploadResult, error) {
	if contentType != ContentTypePDF {
		return UploadResult{}, fmt.Errorf("%w: only PDF files are allowed, got %q", ErrUnsupportedContentType, contentType)
	}
	if err := validateSegment("user id", userID, true); err != nil {
		return UploadResult{}, err
	}
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	if err := validateSegment("file name", base, false); err != nil {
		return UploadResult{}, err
	}

	name := base + "-" + u.now().Format(stampLayout)
	objectPath := path.Join(u.prefix, name)
	if userID != "" {
		objectPath = path.Join(u.prefix, userID, name)
	}

	if err := u.store.EnsureBucket(ctx, u.bucket); err != nil {
		u.logger.Warn("ensure bucket failed", zap.String("bucket", u.bucket), zap.Error(err))
	}

	if err := u.store.Upload(ctx, u.bucket, objectPath, r, contentType); err != nil {
		return UploadResult{}, err
	}

	result := UploadResult{Bucket: u.bucket, Path: objectPath, Filename: name}
	signed, err := u.store.SignedURL(ctx, u.bucket, objectPath, u.ttl)
	if err != nil {
		u.logger.Warn("signing upload failed", zap.String("path", objectPath), zap.Error(err))
	} else {
		result.SignedURL = signed
	}

	u.logger.Info("pdf uploaded",
		zap.String("bucket", u.bucket),
		zap.String("path", objectPath),
	)
	return result, nil
}

// ListUserFiles lists up to 100 of userID's uploads with signed URLs. An
// empty userID yields an empty list.
func (u *Uploader) ListUserFiles(ctx context.Context, userID string) ([]ObjectInfo, error) {
	if userID == "" {
		return []ObjectInfo{}, nil
	}
	if err := validateSegment("user id", userID, false); err != nil {
		return nil, err
	}

	prefix := path.Join(u.prefix, userID) + "/"
	objects, err := u.store.List(ctx, u.bucket, prefix, listLimit)
	if err != nil {
		return nil, err
	}

	for i := range objects {
		signed, err := u.store.SignedURL(ctx, u.bucket, objects[i].Path, u.ttl)
		if err != nil {
			u.logger.Warn("signing file failed", zap.String("path", objects[i].Path), zap.Error(err))
			continue
		}
		objects[i].SignedURL = signed
	}
	return objects, nil
}

func validateSegment(what, s string, allowEmpty bool) error {
	if s == "" {
		if allowEmpty {
			return nil
		}
		return fmt.Errorf("%w: %s is empty", ErrInvalidInput, what)
	}
	if s == "." || s == ".." || strings.ContainsAny(s, `/\`) {
		return fmt.Errorf("%w: %s %q", ErrInvalidInput, what, s)
	}
	return nil
}
