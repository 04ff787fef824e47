package vectorstore

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// keywordVocabulary gives each word its own dimension so similarity is
// predictable in tests.
var keywordVocabulary = []string{"fox", "dog", "cat", "rabbit", "queen", "tea"}

// keywordEmbedder embeds text as keyword counts plus a small constant
// dimension that keeps every vector non-zero.
type keywordEmbedder struct {
	mu        sync.Mutex
	failDocs  error
	failQuery error
	docCalls  int
}

func (e *keywordEmbedder) vector(text string) []float32 {
	v := make([]float32, len(keywordVocabulary)+1)
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?")
		for i, kw := range keywordVocabulary {
			if word == kw {
				v[i]++
			}
		}
	}
	v[len(keywordVocabulary)] = 0.1
	return v
}

func (e *keywordEmbedder) EmbedDocuments(_ context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.docCalls++
	if e.failDocs != nil {
		return nil, e.failDocs
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = e.vector(t)
	}
	return out, nil
}

func (e *keywordEmbedder) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failQuery != nil {
		return nil, e.failQuery
	}
	return e.vector(text), nil
}

func (e *keywordEmbedder) setFailDocs(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.failDocs = err
}

var errEmbedderDown = errors.New("embedding backend unavailable")

// createTestChromemStore creates a chromem store in a fresh temp directory.
func createTestChromemStore(t *testing.T, dir, model string) (*ChromemStore, *keywordEmbedder) {
	t.Helper()

	embedder := &keywordEmbedder{}
	if dir == "" {
		dir = t.TempDir()
	}

	store, err := NewChromemStore(ChromemConfig{
		Path:           dir,
		Collection:     "test_docs",
		EmbeddingModel: model,
	}, embedder, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store, embedder
}

func animalDocs() []Document {
	return []Document{
		{ID: "fox", Content: "The quick brown fox jumps.", Metadata: map[string]interface{}{"page": 1}},
		{ID: "dog", Content: "The lazy dog sleeps by the dog house.", Metadata: map[string]interface{}{"page": 2}},
		{ID: "cat", Content: "A cat drinks tea with the queen.", Metadata: map[string]interface{}{"page": 3}},
	}
}
