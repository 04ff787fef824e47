package embeddings

import (
	"context"
	"fmt"
	"time"

	lcembeddings "github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/googleai"
	"go.uber.org/zap"
)

// GoogleConfig configures Google Generative AI embeddings.
type GoogleConfig struct {
	APIKey string

	// Model defaults to text-embedding-004.
	Model string
}

// GoogleProvider embeds text with Google's embedding API through langchaingo.
type GoogleProvider struct {
	embedder  lcembeddings.Embedder
	closer    func() error
	model     string
	dimension int
	metrics   *Metrics
}

// NewGoogleProvider creates a Google embedding provider.
func NewGoogleProvider(ctx context.Context, cfg GoogleConfig, logger *zap.Logger) (*GoogleProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key required", ErrInvalidConfig)
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-004"
	}

	client, err := googleai.New(ctx,
		googleai.WithAPIKey(cfg.APIKey),
		googleai.WithDefaultEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: creating Google AI client: %v", ErrEmbeddingFailed, err)
	}

	p, err := newGoogleProvider(client, cfg.Model, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	p.closer = client.Close
	return p, nil
}

func newGoogleProvider(client lcembeddings.EmbedderClient, model string, logger *zap.Logger) (*GoogleProvider, error) {
	embedder, err := lcembeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	return &GoogleProvider{
		embedder:  embedder,
		model:     model,
		dimension: detectDimensionFromModel(model),
		metrics:   NewMetrics(logger),
	}, nil
}

// EmbedDocuments generates embeddings for multiple texts.
func (p *GoogleProvider) EmbedDocuments(ctx context.Context, texts []string) (vectors [][]float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_documents", time.Since(start), len(texts), err)
	}()

	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", ErrEmptyInput)
	}

	// langchaingo strips newlines in place.
	vectors, err = p.embedder.EmbedDocuments(ctx, append([]string(nil), texts...))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vectors, nil
}

// EmbedQuery generates an embedding for a single query.
func (p *GoogleProvider) EmbedQuery(ctx context.Context, text string) (vector []float32, err error) {
	start := time.Now()
	defer func() {
		p.metrics.RecordGeneration(ctx, p.model, "embed_query", time.Since(start), 1, err)
	}()

	if text == "" {
		return nil, fmt.Errorf("%w: text cannot be empty", ErrEmptyInput)
	}

	vector, err = p.embedder.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbeddingFailed, err)
	}
	return vector, nil
}

// Dimension returns the embedding dimension for the configured model.
func (p *GoogleProvider) Dimension() int {
	return p.dimension
}

// Close releases the underlying client.
func (p *GoogleProvider) Close() error {
	if p.closer != nil {
		return p.closer()
	}
	return nil
}
