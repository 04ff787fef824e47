package embeddings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/vectorstore"
)

var (
	// ErrEmbeddingFailed indicates embedding generation failure. It is the
	// vector store's sentinel so callers can match either.
	ErrEmbeddingFailed = vectorstore.ErrEmbeddingFailed

	// ErrEmptyInput indicates empty or nil input texts.
	ErrEmptyInput = errors.New("empty or nil input texts")

	// ErrInvalidConfig indicates invalid configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Provider is the interface for embedding providers.
type Provider interface {
	vectorstore.Embedder
	// Dimension returns the embedding dimension for the current model.
	Dimension() int
	// Close releases resources held by the provider.
	Close() error
}

// ProviderConfig holds configuration for creating an embedding provider.
type ProviderConfig struct {
	// Provider is "fastembed", "tei" or "google".
	Provider string
	Model    string

	// BaseURL is the TEI server URL.
	BaseURL string

	// CacheDir is the FastEmbed model cache directory.
	CacheDir string

	// GoogleAPIKey authenticates the google provider.
	GoogleAPIKey string
}

// ProviderConfigFrom builds a ProviderConfig from the application config.
func ProviderConfigFrom(cfg *config.Config) ProviderConfig {
	return ProviderConfig{
		Provider:     cfg.Embeddings.Provider,
		Model:        cfg.Embeddings.Model,
		BaseURL:      cfg.Embeddings.BaseURL,
		CacheDir:     cfg.Embeddings.CacheDir,
		GoogleAPIKey: cfg.Google.APIKey.Value(),
	}
}

// NewProvider creates an embedding provider based on the configuration.
func NewProvider(ctx context.Context, cfg ProviderConfig, logger *zap.Logger) (Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		p   Provider
		err error
	)
	switch cfg.Provider {
	case "fastembed", "":
		p, err = NewFastEmbedProvider(ctx, FastEmbedConfig{
			Model:    cfg.Model,
			CacheDir: cfg.CacheDir,
		}, logger)
	case "tei":
		p, err = NewTEIProvider(TEIConfig{
			BaseURL: cfg.BaseURL,
			Model:   cfg.Model,
		}, logger)
	case "google":
		if cfg.GoogleAPIKey == "" {
			return nil, fmt.Errorf("%w: GOOGLE_API_KEY is not set", config.ErrConfigurationMissing)
		}
		p, err = NewGoogleProvider(ctx, GoogleConfig{
			APIKey: cfg.GoogleAPIKey,
			Model:  cfg.Model,
		}, logger)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("embedding provider ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Int("dimension", p.Dimension()),
	)
	return p, nil
}

// detectDimensionFromModel returns the embedding dimension for a model name.
// Falls back to 384 if model is unknown.
func detectDimensionFromModel(model string) int {
	if dim, ok := fastEmbedModelDimension(model); ok {
		return dim
	}
	if dim, ok := googleModelDimensions[model]; ok {
		return dim
	}
	switch {
	case strings.Contains(model, "base"):
		return 768
	case strings.Contains(model, "large"):
		return 1024
	default:
		return 384
	}
}
