package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kellywsq03/RAGify/internal/config"
)

type fakeAPI struct {
	objects   map[string][]byte
	buckets   map[string]bool
	failWith  error
	uploadCTs []string
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{objects: map[string][]byte{}, buckets: map[string]bool{}}
}

func (f *fakeAPI) Download(bucket, path string) ([]byte, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	data, ok := f.objects[bucket+"/"+path]
	if !ok {
		return nil, errors.New("Object not found")
	}
	return data, nil
}

func (f *fakeAPI) Upload(bucket, path string, r io.Reader, contentType string) error {
	if f.failWith != nil {
		return f.failWith
	}
	key := bucket + "/" + path
	if _, exists := f.objects[key]; exists {
		return errors.New("The resource already exists")
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	f.objects[key] = data
	f.uploadCTs = append(f.uploadCTs, contentType)
	return nil
}

func (f *fakeAPI) List(bucket, prefix string, limit int) ([]string, error) {
	if f.failWith != nil {
		return nil, f.failWith
	}
	var names []string
	for key := range f.objects {
		full := bucket + "/" + prefix
		if len(key) > len(full) && key[:len(full)] == full {
			names = append(names, key[len(full):])
		}
	}
	if len(names) > limit {
		names = names[:limit]
	}
	return names, nil
}

func (f *fakeAPI) Sign(bucket, path string, expiresIn int) (string, error) {
	return "https://signed.example/" + bucket + "/" + path + "?ttl=" + time.Duration(expiresIn*int(time.Second)).String(), nil
}

func (f *fakeAPI) CreateBucket(bucket string) error {
	if f.buckets[bucket] {
		return errors.New("Bucket already exists")
	}
	f.buckets[bucket] = true
	return nil
}

func TestNewSupabaseStore_MissingCredentials(t *testing.T) {
	_, err := NewSupabaseStore(config.SupabaseConfig{}, nil)
	require.ErrorIs(t, err, config.ErrConfigurationMissing)
	assert.Contains(t, err.Error(), "SUPABASE_URL")
	assert.Contains(t, err.Error(), "SUPABASE_SERVICE_ROLE_KEY")
}

func TestSupabaseStore_Download(t *testing.T) {
	api := newFakeAPI()
	api.objects["pdfs/uploads/a.pdf"] = []byte("%PDF-1.4")
	store := newSupabaseStore(api, nil)

	data, err := store.Download(context.Background(), "pdfs", "uploads/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)

	_, err = store.Download(context.Background(), "pdfs", "missing.pdf")
	require.ErrorIs(t, err, ErrRemoteFetchFailed)
	assert.Contains(t, err.Error(), "pdfs/missing.pdf")
}

func TestSupabaseStore_DownloadCancelled(t *testing.T) {
	store := newSupabaseStore(newFakeAPI(), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Download(ctx, "pdfs", "a.pdf")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSupabaseStore_UploadAndList(t *testing.T) {
	api := newFakeAPI()
	store := newSupabaseStore(api, nil)
	ctx := context.Background()

	require.NoError(t, store.Upload(ctx, "pdfs", "uploads/u1/a.pdf", bytes.NewReader([]byte("a")), ContentTypePDF))
	assert.Equal(t, []string{ContentTypePDF}, api.uploadCTs)

	err := store.Upload(ctx, "pdfs", "uploads/u1/a.pdf", bytes.NewReader([]byte("b")), ContentTypePDF)
	require.ErrorIs(t, err, ErrUploadFailed)

	objects, err := store.List(ctx, "pdfs", "uploads/u1/", 100)
	require.NoError(t, err)
	require.Len(t, objects, 1)
	assert.Equal(t, ObjectInfo{Name: "a.pdf", Path: "uploads/u1/a.pdf"}, objects[0])
}

func TestSupabaseStore_EnsureBucketIdempotent(t *testing.T) {
	store := newSupabaseStore(newFakeAPI(), nil)
	ctx := context.Background()

	require.NoError(t, store.EnsureBucket(ctx, "pdfs"))
	require.NoError(t, store.EnsureBucket(ctx, "pdfs"))
}

func TestSupabaseStore_SignedURL(t *testing.T) {
	store := newSupabaseStore(newFakeAPI(), nil)

	url, err := store.SignedURL(context.Background(), "pdfs", "uploads/a.pdf", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/pdfs/uploads/a.pdf?ttl=1h0m0s", url)
}
