package vectorstore

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewChromemStore_Validation(t *testing.T) {
	_, err := NewChromemStore(ChromemConfig{Path: t.TempDir()}, nil, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewChromemStore(ChromemConfig{Path: t.TempDir(), Collection: "Bad-Name"}, &keywordEmbedder{}, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidCollectionName)
}

func TestChromemConfig_ApplyDefaults(t *testing.T) {
	var c ChromemConfig
	c.ApplyDefaults()
	assert.Equal(t, "chroma", c.Path)
	assert.Equal(t, "documents", c.Collection)
}

func TestChromemStore_SearchBeforeRebuild(t *testing.T) {
	store, _ := createTestChromemStore(t, "", "test:model")

	results, err := store.Search(context.Background(), "fox", 3)
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestChromemStore_RebuildAndSearch(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestChromemStore(t, "", "test:model")

	info, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)
	assert.Equal(t, 3, info.Documents)
	assert.Equal(t, "test:model", info.EmbeddingModel)
	assert.Contains(t, info.Collection, "test_docs_")

	results, err := store.Search(ctx, "Where is the dog?", 2)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "dog", results[0].ID)
	assert.Equal(t, "The lazy dog sleeps by the dog house.", results[0].Content)
	assert.Equal(t, "2", results[0].Metadata["page"])
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestChromemStore_SearchClampsK(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestChromemStore(t, "", "test:model")

	_, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)

	results, err := store.Search(ctx, "fox", 10)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "fox", results[0].ID)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}
}

func TestChromemStore_SearchInvalidInput(t *testing.T) {
	store, _ := createTestChromemStore(t, "", "test:model")

	_, err := store.Search(context.Background(), "fox", 0)
	require.Error(t, err)

	_, err = store.Search(context.Background(), "   ", 3)
	require.ErrorIs(t, err, ErrEmptyQuery)
}

func TestChromemStore_EmptyRebuild(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestChromemStore(t, "", "test:model")

	_, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)

	info, err := store.Rebuild(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, info.Documents)

	results, err := store.Search(ctx, "fox", 3)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_RebuildReplacesIndex(t *testing.T) {
	ctx := context.Background()
	store, _ := createTestChromemStore(t, "", "test:model")

	first, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)

	second, err := store.Rebuild(ctx, []Document{
		{ID: "rabbit", Content: "The white rabbit is late."},
	})
	require.NoError(t, err)
	assert.NotEqual(t, first.Collection, second.Collection)

	results, err := store.Search(ctx, "fox", 3)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "rabbit", results[0].ID)

	collections := store.currentDB().ListCollections()
	assert.Len(t, collections, 1)
	assert.Contains(t, collections, second.Collection)
}

func TestChromemStore_FailedRebuildKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	store, embedder := createTestChromemStore(t, "", "test:model")

	before, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)

	embedder.setFailDocs(errEmbedderDown)
	_, err = store.Rebuild(ctx, []Document{{ID: "rabbit", Content: "rabbit"}})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	require.ErrorIs(t, err, errEmbedderDown)

	info, ok, err := store.Info()
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, before.Collection, info.Collection)

	results, err := store.Search(ctx, "cat", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cat", results[0].ID)
}

func TestChromemStore_QueryEmbeddingFailure(t *testing.T) {
	ctx := context.Background()
	store, embedder := createTestChromemStore(t, "", "test:model")

	_, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)

	embedder.failQuery = errEmbedderDown
	_, err = store.Search(ctx, "fox", 3)
	require.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestChromemStore_EmbedderMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, _ := createTestChromemStore(t, dir, "fastembed:small")
	_, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)

	other, _ := createTestChromemStore(t, dir, "google:text-embedding-004")
	_, err = other.Search(ctx, "fox", 3)
	require.ErrorIs(t, err, ErrEmbedderMismatch)
}

func TestChromemStore_SeesRebuildFromAnotherInstance(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	reader, _ := createTestChromemStore(t, dir, "test:model")
	writer, _ := createTestChromemStore(t, dir, "test:model")

	_, err := writer.Rebuild(ctx, animalDocs())
	require.NoError(t, err)

	results, err := reader.Search(ctx, "queen", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "cat", results[0].ID)
}

func TestChromemStore_PersistsAcrossRestart(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, _ := createTestChromemStore(t, dir, "test:model")
	_, err := store.Rebuild(ctx, animalDocs())
	require.NoError(t, err)
	require.NoError(t, store.Close())

	reopened, _ := createTestChromemStore(t, dir, "test:model")
	results, err := reopened.Search(ctx, "fox", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "fox", results[0].ID)
}

func TestManifest_RoundTripAndMissing(t *testing.T) {
	dir := t.TempDir()

	_, ok, err := readManifest(dir)
	require.NoError(t, err)
	assert.False(t, ok)

	want := IndexInfo{Collection: "docs_abc", EmbeddingModel: "m", Documents: 4}
	require.NoError(t, writeManifest(dir, want))

	got, ok, err := readManifest(dir)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, want.Collection, got.Collection)
	assert.Equal(t, want.Documents, got.Documents)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")

	require.NoError(t, os.WriteFile(filepath.Join(dir, manifestFile), []byte("{"), 0o600))
	_, _, err = readManifest(dir)
	require.Error(t, err)
}

func TestExpandPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/index")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "index"), got)

	got, err = expandPath("chroma/../chroma")
	require.NoError(t, err)
	assert.Equal(t, "chroma", got)
}
