package vectorstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"
)

// Sentinel errors for vector store operations.
var (
	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmbeddingFailed indicates the embedding function failed.
	ErrEmbeddingFailed = errors.New("embedding failed")

	// ErrEmbedderMismatch indicates the active index was built with a
	// different embedding model than the one configured.
	ErrEmbedderMismatch = errors.New("index was built with a different embedding model")

	// ErrEmptyQuery indicates a blank search query.
	ErrEmptyQuery = errors.New("query cannot be empty")

	// ErrConnectionFailed indicates the vector database is unreachable.
	ErrConnectionFailed = errors.New("failed to connect to vector database")

	// ErrInvalidCollectionName indicates collection name validation failure.
	ErrInvalidCollectionName = errors.New("invalid collection name")
)

// collectionNamePattern: lowercase letters, numbers, underscores, 1-48
// characters, leaving room for the rebuild suffix.
var collectionNamePattern = regexp.MustCompile(`^[a-z0-9_]{1,48}$`)

// ValidateCollectionName checks a base collection name.
func ValidateCollectionName(name string) error {
	if !collectionNamePattern.MatchString(name) {
		return fmt.Errorf("%w: must match %s, got %q", ErrInvalidCollectionName, collectionNamePattern, name)
	}
	return nil
}

// Embedder generates vector embeddings from text.
type Embedder interface {
	// EmbedDocuments returns one embedding per text, in order.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds a search query. Some models embed queries and
	// passages differently.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Store is a rebuildable vector index.
type Store interface {
	// Rebuild replaces the whole index with docs.
	Rebuild(ctx context.Context, docs []Document) (IndexInfo, error)

	// Search returns up to k documents nearest to query, best first.
	Search(ctx context.Context, query string, k int) ([]SearchResult, error)

	// Close releases the store's resources.
	Close() error
}

// IndexInfo describes the active index.
type IndexInfo struct {
	Collection     string    `json:"collection"`
	EmbeddingModel string    `json:"embedding_model"`
	Documents      int       `json:"documents"`
	BuiltAt        time.Time `json:"built_at"`
}
