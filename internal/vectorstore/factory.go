package vectorstore

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
)

// EmbeddingModelID identifies an embedder in index manifests and payloads.
func EmbeddingModelID(cfg config.EmbeddingsConfig) string {
	return cfg.Provider + ":" + cfg.Model
}

// NewStore creates the Store selected by cfg.VectorStore.Provider.
func NewStore(ctx context.Context, cfg *config.Config, embedder Embedder, logger *zap.Logger) (Store, error) {
	if cfg == nil {
		return nil, fmt.Errorf("%w: config is required", ErrInvalidConfig)
	}
	model := EmbeddingModelID(cfg.Embeddings)

	switch cfg.VectorStore.Provider {
	case "", "chromem":
		return NewChromemStore(ChromemConfig{
			Path:           cfg.Chroma.Path,
			Compress:       cfg.Chroma.Compress,
			Collection:     cfg.Chroma.Collection,
			EmbeddingModel: model,
		}, embedder, logger)

	case "qdrant":
		return NewQdrantStore(ctx, QdrantConfig{
			Host:           cfg.Qdrant.Host,
			Port:           cfg.Qdrant.Port,
			Collection:     cfg.Qdrant.Collection,
			UseTLS:         cfg.Qdrant.UseTLS,
			APIKey:         cfg.Qdrant.APIKey.Value(),
			EmbeddingModel: model,
		}, embedder, logger)

	default:
		return nil, fmt.Errorf("%w: unknown vectorstore provider %q", ErrInvalidConfig, cfg.VectorStore.Provider)
	}
}
