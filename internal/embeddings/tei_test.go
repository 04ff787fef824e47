package embeddings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/vectorstore"
)

var _ vectorstore.Embedder = (*TEIProvider)(nil)

// newTEIServer fakes /embed, returning [len(text), index] per input.
func newTEIServer(t *testing.T, status int) (*httptest.Server, *[]teiRequest) {
	t.Helper()
	var requests []teiRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/embed", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req teiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		requests = append(requests, req)

		if status != http.StatusOK {
			http.Error(w, "model overloaded", status)
			return
		}

		var inputs []string
		switch in := req.Inputs.(type) {
		case string:
			inputs = []string{in}
		case []interface{}:
			for _, v := range in {
				inputs = append(inputs, v.(string))
			}
		}
		out := make([][]float32, len(inputs))
		for i, text := range inputs {
			out[i] = []float32{float32(len(text)), float32(i)}
		}
		_ = json.NewEncoder(w).Encode(out)
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestNewTEIProvider_Validation(t *testing.T) {
	_, err := NewTEIProvider(TEIConfig{}, zap.NewNop())
	require.ErrorIs(t, err, ErrInvalidConfig)

	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://localhost:8080/", Model: "BAAI/bge-base-en-v1.5"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080", p.config.BaseURL)
	assert.Equal(t, 768, p.Dimension())
	assert.NoError(t, p.Close())
}

func TestTEIProvider_EmbedDocuments(t *testing.T) {
	srv, requests := newTEIServer(t, http.StatusOK)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL, Model: "m"}, zap.NewNop())
	require.NoError(t, err)

	vectors, err := p.EmbedDocuments(context.Background(), []string{"alice", "rabbit hole"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{5, 0}, vectors[0])
	assert.Equal(t, []float32{11, 1}, vectors[1])

	require.Len(t, *requests, 1)
	assert.True(t, (*requests)[0].Truncate)
}

func TestTEIProvider_EmbedQuery(t *testing.T) {
	srv, _ := newTEIServer(t, http.StatusOK)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	vector, err := p.EmbedQuery(context.Background(), "queen")
	require.NoError(t, err)
	assert.Equal(t, []float32{5, 0}, vector)
}

func TestTEIProvider_EmptyInput(t *testing.T) {
	p, err := NewTEIProvider(TEIConfig{BaseURL: "http://127.0.0.1:1"}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), nil)
	assert.ErrorIs(t, err, ErrEmptyInput)

	_, err = p.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyInput)
}

func TestTEIProvider_ServerError(t *testing.T) {
	srv, _ := newTEIServer(t, http.StatusServiceUnavailable)
	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"x"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
	require.ErrorIs(t, err, vectorstore.ErrEmbeddingFailed)
	assert.Contains(t, err.Error(), "status 503")
	assert.Contains(t, err.Error(), "model overloaded")
}

func TestTEIProvider_Unreachable(t *testing.T) {
	srv, _ := newTEIServer(t, http.StatusOK)
	url := srv.URL
	srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: url}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedQuery(context.Background(), "x")
	require.ErrorIs(t, err, ErrEmbeddingFailed)
}

func TestTEIProvider_CountMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`[[1,2]]`))
	}))
	defer srv.Close()

	p, err := NewTEIProvider(TEIConfig{BaseURL: srv.URL}, zap.NewNop())
	require.NoError(t, err)

	_, err = p.EmbedDocuments(context.Background(), []string{"a", "b"})
	require.ErrorIs(t, err, ErrEmbeddingFailed)
}
