package rag

import (
	"context"
	"errors"
	"hash/fnv"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/loader"
	"github.com/kellywsq03/RAGify/internal/logging"
	"github.com/kellywsq03/RAGify/internal/splitter"
	"github.com/kellywsq03/RAGify/internal/telemetry"
	"github.com/kellywsq03/RAGify/internal/vectorstore"
)

const hashDims = 256

// hashEmbedder embeds text as hashed word counts. Texts sharing words end
// up close, which is all retrieval tests need.
type hashEmbedder struct{}

func (hashEmbedder) vector(text string) []float32 {
	v := make([]float32, hashDims+1)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'")
		if word == "" {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(word))
		v[h.Sum32()%hashDims]++
	}
	v[hashDims] = 0.01
	return v
}

func (e hashEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e hashEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	return e.vector(text), nil
}

type fakeGenerator struct {
	answer  string
	err     error
	prompts []string
}

func (g *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.answer, nil
}

type stubStore struct {
	results []vectorstore.SearchResult
	err     error
	lastK   int
	docs    []vectorstore.Document
}

func (s *stubStore) Rebuild(_ context.Context, docs []vectorstore.Document) (vectorstore.IndexInfo, error) {
	s.docs = docs
	return vectorstore.IndexInfo{Documents: len(docs)}, s.err
}

func (s *stubStore) Search(_ context.Context, _ string, k int) ([]vectorstore.SearchResult, error) {
	s.lastK = k
	return s.results, s.err
}

func (s *stubStore) Close() error { return nil }

type testPipeline struct {
	service   *Service
	generator *fakeGenerator
	dir       string
}

func newTestPipeline(t *testing.T, cfg Config) *testPipeline {
	t.Helper()

	dir := t.TempDir()
	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:           filepath.Join(dir, "chroma"),
		EmbeddingModel: "test:hash",
	}, hashEmbedder{}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sp, err := splitter.New(splitter.Config{}, nil)
	require.NoError(t, err)

	gen := &fakeGenerator{answer: "The fox jumps over the lazy dog."}
	ld := loader.New(loader.Config{MarkdownPath: filepath.Join(dir, "doc.md")}, nil, nil)

	svc, err := NewService(cfg, ld, sp, store, gen, zap.NewNop())
	require.NoError(t, err)
	return &testPipeline{service: svc, generator: gen, dir: dir}
}

func (p *testPipeline) writePDF(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(p.dir, "doc.pdf")
	require.NoError(t, os.WriteFile(path, loader.MinimalPDF(pages...), 0600))
	return path
}

func TestService_IndexAndAnswer(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	defer tt.Restore()

	p := newTestPipeline(t, Config{})
	pdf := p.writePDF(t,
		"Alice sat by the river bank.",
		"The quick brown fox jumps over the lazy dog.",
		"The Queen of Hearts shouted loudly.",
	)
	ctx := context.Background()

	res, err := p.service.Index(ctx, loader.Source{PDFPath: pdf})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Documents)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, res.Index.Documents)
	assert.Equal(t, "test:hash", res.Index.EmbeddingModel)

	answer, err := p.service.Answer(ctx, "What does the fox do?")
	require.NoError(t, err)

	assert.False(t, answer.NoResults)
	assert.Equal(t, "The fox jumps over the lazy dog.", answer.Text)
	require.Len(t, answer.Chunks, 3)
	require.Len(t, answer.Pages, 3)
	assert.Contains(t, answer.Chunks[0], "quick brown fox")
	assert.Equal(t, 2, answer.Pages[0])
	assert.ElementsMatch(t, []int{1, 2, 3}, answer.Pages)

	require.Len(t, p.generator.prompts, 1)
	want, err := BuildPrompt("What does the fox do?", answer.Chunks)
	require.NoError(t, err)
	assert.Equal(t, want, p.generator.prompts[0])

	tt.AssertSpanExists(t, "rag.Index")
	tt.AssertSpanAttribute(t, "rag.Index", "chunks", int64(3))
	tt.AssertSpanAttribute(t, "rag.Answer", "results", int64(3))
}

func TestService_AnswerBeforeIndex(t *testing.T) {
	p := newTestPipeline(t, Config{})

	answer, err := p.service.Answer(context.Background(), "What does the fox do?")
	require.NoError(t, err)

	assert.True(t, answer.NoResults)
	assert.Equal(t, NoMatchingResults, answer.Text)
	assert.Empty(t, answer.Chunks)
	assert.NotNil(t, answer.Chunks)
	assert.Empty(t, answer.Pages)
	assert.Empty(t, p.generator.prompts, "generator must not be called without context")
}

func TestService_AnswerAfterEmptyIndex(t *testing.T) {
	p := newTestPipeline(t, Config{})
	md := filepath.Join(p.dir, "doc.md")
	require.NoError(t, os.WriteFile(md, []byte("   \n"), 0600))

	res, err := p.service.Index(context.Background(), loader.Source{})
	require.NoError(t, err)
	assert.Zero(t, res.Chunks)

	answer, err := p.service.Answer(context.Background(), "anything")
	require.NoError(t, err)
	assert.True(t, answer.NoResults)
	assert.Equal(t, NoMatchingResults, answer.Text)
}

func TestService_GeneratorErrorReturnedUnchanged(t *testing.T) {
	tt := telemetry.NewTestTelemetry()
	defer tt.Restore()

	p := newTestPipeline(t, Config{})
	pdf := p.writePDF(t, "The quick brown fox jumps over the lazy dog.")
	_, err := p.service.Index(context.Background(), loader.Source{PDFPath: pdf})
	require.NoError(t, err)

	genErr := errors.New("quota exceeded")
	p.generator.err = genErr

	_, err = p.service.Answer(context.Background(), "fox?")
	require.Error(t, err)
	assert.Same(t, genErr, err)
	tt.AssertSpanError(t, "rag.Answer")
}

func TestService_NilGeneratorNeedsConfiguration(t *testing.T) {
	store := &stubStore{results: []vectorstore.SearchResult{{Content: "fox", Score: 0.9}}}
	svc, err := NewService(Config{}, nil, nil, store, nil, nil)
	require.NoError(t, err)

	_, err = svc.Answer(context.Background(), "fox?")
	require.ErrorIs(t, err, config.ErrConfigurationMissing)

	// The sentinel path never needs a generator.
	store.results = nil
	answer, err := svc.Answer(context.Background(), "fox?")
	require.NoError(t, err)
	assert.True(t, answer.NoResults)
}

func TestService_MinRelevance(t *testing.T) {
	store := &stubStore{results: []vectorstore.SearchResult{
		{Content: "strong", Score: 0.92, Metadata: map[string]any{"page": "4"}},
		{Content: "medium", Score: 0.71},
		{Content: "weak", Score: 0.30},
	}}
	gen := &fakeGenerator{answer: "ok"}

	svc, err := NewService(Config{MinRelevance: 0.7}, nil, nil, store, gen, nil)
	require.NoError(t, err)

	answer, err := svc.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.Equal(t, []string{"strong", "medium"}, answer.Chunks)
	assert.Equal(t, []int{4, 0}, answer.Pages)
	assert.Equal(t, 3, store.lastK)

	svc, err = NewService(Config{MinRelevance: 0.95}, nil, nil, store, gen, nil)
	require.NoError(t, err)
	answer, err = svc.Answer(context.Background(), "q")
	require.NoError(t, err)
	assert.True(t, answer.NoResults)
}

func TestService_SearchErrorWrapped(t *testing.T) {
	store := &stubStore{err: vectorstore.ErrEmbeddingFailed}
	svc, err := NewService(Config{TopK: 5}, nil, nil, store, &fakeGenerator{}, nil)
	require.NoError(t, err)

	_, err = svc.Answer(context.Background(), "q")
	require.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)
	assert.Equal(t, 5, store.lastK)
}

type wordRedactor string

func (w wordRedactor) Redact(content string) (string, int) {
	n := strings.Count(content, string(w))
	return strings.ReplaceAll(content, string(w), "[REDACTED:test]"), n
}

func TestService_IndexRedactsSecrets(t *testing.T) {
	dir := t.TempDir()
	md := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(md, []byte("The admin password is hunter2, do not share hunter2."), 0600))

	sp, err := splitter.New(splitter.Config{}, nil)
	require.NoError(t, err)
	store := &stubStore{}
	logs := logging.NewTestLogger()

	svc, err := NewService(Config{}, loader.New(loader.Config{MarkdownPath: md}, nil, nil), sp, store, nil, logs.Underlying())
	require.NoError(t, err)
	svc.WithRedactor(wordRedactor("hunter2"))

	_, err = svc.Index(context.Background(), loader.Source{})
	require.NoError(t, err)

	require.Len(t, store.docs, 1)
	assert.Equal(t, "The admin password is [REDACTED:test], do not share [REDACTED:test].", store.docs[0].Content)
	logs.AssertField(t, "redacted secrets from source", "secrets", int64(2))
}

func TestService_IndexMissingSource(t *testing.T) {
	p := newTestPipeline(t, Config{})

	_, err := p.service.Index(context.Background(), loader.Source{PDFPath: filepath.Join(p.dir, "nope.pdf")})
	require.ErrorIs(t, err, loader.ErrNotFound)

	_, err = p.service.Index(context.Background(), loader.Source{})
	require.ErrorIs(t, err, loader.ErrNotFound)
}

func TestNewService_Validation(t *testing.T) {
	_, err := NewService(Config{}, nil, nil, nil, nil, nil)
	assert.Error(t, err)

	_, err = NewService(Config{TopK: -1}, nil, nil, &stubStore{}, nil, nil)
	assert.Error(t, err)

	_, err = NewService(Config{MinRelevance: 2}, nil, nil, &stubStore{}, nil, nil)
	assert.Error(t, err)
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt("Who is {Alice}?", []string{"one", "two"})
	require.NoError(t, err)

	assert.Equal(t,
		"Answer the question based only on the following context:\n\none\n\n---\n\ntwo\n\n---\n\nAnswer the question based on the above context: Who is {Alice}?",
		prompt,
	)
}

func TestConfigFrom(t *testing.T) {
	cfg := config.Default()
	cfg.Retrieval.MinRelevance = 0.5

	got := ConfigFrom(cfg)
	assert.Equal(t, 3, got.TopK)
	assert.InDelta(t, 0.5, got.MinRelevance, 1e-9)
}
