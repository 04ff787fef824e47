package loader

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/storage"
)

type fakeDownloader struct {
	data  []byte
	err   error
	calls int
}

func (f *fakeDownloader) Download(_ context.Context, _, _ string) ([]byte, error) {
	f.calls++
	return f.data, f.err
}

func configuredSupabase() config.SupabaseConfig {
	return config.SupabaseConfig{URL: "https://project.supabase.co", ServiceRoleKey: "service-role"}
}

func writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "doc.pdf")
	require.NoError(t, os.WriteFile(p, MinimalPDF(pages...), 0600))
	return p
}

func TestLoadPDF_OneDocumentPerPage(t *testing.T) {
	p := writePDF(t, "First page text", "Second page text", "Third page text")
	l := New(Config{}, nil, nil)

	docs, err := l.LoadPDF(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, docs, 3)

	for i, doc := range docs {
		assert.Equal(t, i+1, doc.Page())
		assert.Equal(t, 3, doc.Metadata[MetadataTotalPages])
		assert.Equal(t, p, doc.Metadata[MetadataSource])
	}
	assert.Contains(t, docs[0].Text, "First page text")
	assert.Contains(t, docs[2].Text, "Third page text")
}

func TestLoadPDF_NotFound(t *testing.T) {
	l := New(Config{}, nil, nil)
	_, err := l.LoadPDF(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadMarkdown(t *testing.T) {
	p := filepath.Join(t.TempDir(), "alice.md")
	content := "# Alice\n\nAlice was beginning to get very tired of sitting by her sister on the bank."
	require.NoError(t, os.WriteFile(p, []byte(content), 0600))

	l := New(Config{MarkdownPath: p}, nil, nil)
	docs, err := l.Load(context.Background(), Source{})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, content, docs[0].Text)
	assert.Equal(t, p, docs[0].Metadata[MetadataSource])
	assert.Equal(t, 0, docs[0].Page())
}

func TestLoadMarkdown_NotFound(t *testing.T) {
	l := New(Config{MarkdownPath: filepath.Join(t.TempDir(), "nope.md")}, nil, nil)
	_, err := l.Load(context.Background(), Source{})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLoadRemote_MissingCredentialsBeforeNetwork(t *testing.T) {
	remote := &fakeDownloader{}
	l := New(Config{}, remote, nil)

	_, err := l.Load(context.Background(), Source{Bucket: "pdfs", ObjectPath: "uploads/a.pdf"})
	require.ErrorIs(t, err, config.ErrConfigurationMissing)
	assert.Zero(t, remote.calls, "no download may happen without credentials")

	// Without an injected client the Supabase client must not be created either.
	l = New(Config{Supabase: config.SupabaseConfig{URL: "https://project.supabase.co"}}, nil, nil)
	_, err = l.LoadRemote(context.Background(), "pdfs", "uploads/a.pdf")
	require.ErrorIs(t, err, config.ErrConfigurationMissing)
	assert.Contains(t, err.Error(), "SUPABASE_SERVICE_ROLE_KEY")
}

func TestLoadRemote_PDF(t *testing.T) {
	remote := &fakeDownloader{data: MinimalPDF("Remote page one", "Remote page two")}
	l := New(Config{Supabase: configuredSupabase()}, remote, nil)

	docs, err := l.LoadRemote(context.Background(), "pdfs", "uploads/u1/report.pdf-03070905")
	require.NoError(t, err)
	require.Len(t, docs, 2)
	assert.Equal(t, 1, remote.calls)
	assert.Equal(t, "supabase://pdfs/uploads/u1/report.pdf-03070905", docs[0].Metadata[MetadataSource])
	assert.Contains(t, docs[1].Text, "Remote page two")
}

func TestLoadRemote_Markdown(t *testing.T) {
	remote := &fakeDownloader{data: []byte("# Notes\n\nremote markdown body")}
	l := New(Config{Supabase: configuredSupabase()}, remote, nil)

	docs, err := l.LoadRemote(context.Background(), "docs", "notes.md")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Text, "remote markdown body")
}

func TestLoadRemote_RemovesTempFile(t *testing.T) {
	tmpDir := t.TempDir()
	t.Setenv("TMPDIR", tmpDir)

	remote := &fakeDownloader{data: MinimalPDF("page")}
	l := New(Config{Supabase: configuredSupabase()}, remote, nil)
	_, err := l.LoadRemote(context.Background(), "pdfs", "a.pdf")
	require.NoError(t, err)

	// Also on a parse failure.
	remote.data = []byte("not a pdf")
	_, err = l.LoadRemote(context.Background(), "pdfs", "b.pdf")
	require.Error(t, err)

	entries, err := os.ReadDir(tmpDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestLoadRemote_FetchFailure(t *testing.T) {
	fetchErr := errors.Join(storage.ErrRemoteFetchFailed, errors.New("object not found"))
	l := New(Config{Supabase: configuredSupabase()}, &fakeDownloader{err: fetchErr}, nil)

	_, err := l.LoadRemote(context.Background(), "pdfs", "missing.pdf")
	require.ErrorIs(t, err, storage.ErrRemoteFetchFailed)
}

func TestLoadRemote_RequiresBucketAndPath(t *testing.T) {
	l := New(Config{Supabase: configuredSupabase()}, &fakeDownloader{}, nil)
	_, err := l.Load(context.Background(), Source{Bucket: "pdfs"})
	require.Error(t, err)
}

func TestSource_String(t *testing.T) {
	assert.Equal(t, "supabase://b/p.pdf", Source{Bucket: "b", ObjectPath: "p.pdf"}.String())
	assert.Equal(t, "a.pdf", Source{PDFPath: "a.pdf"}.String())
	assert.Equal(t, "default markdown", Source{}.String())
}

func TestPageOf(t *testing.T) {
	tests := []struct {
		in   any
		want int
	}{
		{3, 3},
		{int64(4), 4},
		{float64(5), 5},
		{"6", 6},
		{"x", 0},
		{nil, 0},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageOf(map[string]any{MetadataPage: tt.in}), "%v", tt.in)
	}
}
