// Package rag ties loading, splitting, indexing, retrieval and generation
// into the two pipeline operations: Index and Answer.
package rag

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/config"
	"github.com/kellywsq03/RAGify/internal/llm"
	"github.com/kellywsq03/RAGify/internal/loader"
	"github.com/kellywsq03/RAGify/internal/splitter"
	"github.com/kellywsq03/RAGify/internal/vectorstore"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 3

// DocumentLoader loads the documents for a source.
type DocumentLoader interface {
	Load(ctx context.Context, src loader.Source) ([]loader.Document, error)
}

// Chunker splits documents into chunks.
type Chunker interface {
	Split(ctx context.Context, docs []loader.Document) ([]splitter.Chunk, error)
}

// Redactor scrubs sensitive content from chunk text before it is indexed.
type Redactor interface {
	Redact(content string) (string, int)
}

// Config holds retrieval settings.
type Config struct {
	// TopK is the number of chunks retrieved. Default: 3.
	TopK int

	// MinRelevance drops retrieved chunks scoring below it. Zero keeps
	// every result.
	MinRelevance float64
}

// ConfigFrom extracts retrieval settings from the application config.
func ConfigFrom(cfg *config.Config) Config {
	return Config{TopK: cfg.Retrieval.TopK, MinRelevance: cfg.Retrieval.MinRelevance}
}

// Answer is the result of a question.
type Answer struct {
	// Text is the generated answer, or NoMatchingResults.
	Text string

	// Chunks are the retrieved chunk texts, best first.
	Chunks []string

	// Pages holds each chunk's 1-based page number, 0 when unknown.
	Pages []int

	// Scores holds each chunk's similarity.
	Scores []float32

	// NoResults is set when retrieval found nothing and Text is the
	// sentinel.
	NoResults bool
}

// IndexResult summarises an Index call.
type IndexResult struct {
	Source    string
	Documents int
	Chunks    int
	Index     vectorstore.IndexInfo
}

// Service runs the pipeline.
type Service struct {
	config    Config
	loader    DocumentLoader
	splitter  Chunker
	store     vectorstore.Store
	generator llm.Generator
	redactor  Redactor
	logger    *zap.Logger
}

// NewService creates a Service. generator may be nil: Answer then works
// until it needs to generate, where it fails with
// config.ErrConfigurationMissing.
func NewService(cfg Config, ld DocumentLoader, sp Chunker, store vectorstore.Store, generator llm.Generator, logger *zap.Logger) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("vector store is required")
	}
	if cfg.TopK == 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.TopK < 0 {
		return nil, fmt.Errorf("top k must be positive, got %d", cfg.TopK)
	}
	if cfg.MinRelevance < 0 || cfg.MinRelevance > 1 {
		return nil, fmt.Errorf("min relevance must be between 0 and 1, got %f", cfg.MinRelevance)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		config:    cfg,
		loader:    ld,
		splitter:  sp,
		store:     store,
		generator: generator,
		logger:    logger,
	}, nil
}

// WithRedactor makes Index pass every chunk through r before embedding it.
func (s *Service) WithRedactor(r Redactor) *Service {
	s.redactor = r
	return s
}

// Index loads src, splits it and rebuilds the vector index from the chunks.
func (s *Service) Index(ctx context.Context, src loader.Source) (result IndexResult, err error) {
	ctx, span := otel.Tracer("ragify/rag").Start(ctx, "rag.Index")
	defer span.End()
	span.SetAttributes(attribute.String("source", src.String()))

	defer func() {
		if err != nil {
			IndexRunsTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return
		}
		IndexRunsTotal.WithLabelValues("success").Inc()
		IndexedChunks.Set(float64(result.Chunks))
	}()

	if s.loader == nil || s.splitter == nil {
		return IndexResult{}, fmt.Errorf("indexing requires a loader and a splitter")
	}

	start := time.Now()
	docs, err := s.loader.Load(ctx, src)
	if err != nil {
		return IndexResult{}, fmt.Errorf("loading %s: %w", src, err)
	}

	chunks, err := s.splitter.Split(ctx, docs)
	if err != nil {
		return IndexResult{}, fmt.Errorf("splitting %s: %w", src, err)
	}

	redacted := 0
	vdocs := make([]vectorstore.Document, len(chunks))
	for i, c := range chunks {
		text := c.Text
		if s.redactor != nil {
			var n int
			text, n = s.redactor.Redact(text)
			redacted += n
		}
		vdocs[i] = vectorstore.Document{
			ID:       uuid.NewString(),
			Content:  text,
			Metadata: c.Metadata,
		}
	}
	if redacted > 0 {
		s.logger.Warn("redacted secrets from source",
			zap.String("source", src.String()),
			zap.Int("secrets", redacted),
		)
	}

	info, err := s.store.Rebuild(ctx, vdocs)
	if err != nil {
		return IndexResult{}, fmt.Errorf("rebuilding index: %w", err)
	}

	result = IndexResult{
		Source:    src.String(),
		Documents: len(docs),
		Chunks:    len(chunks),
		Index:     info,
	}
	span.SetAttributes(
		attribute.Int("documents", result.Documents),
		attribute.Int("chunks", result.Chunks),
		attribute.Int("secrets_redacted", redacted),
	)
	s.logger.Info("indexed source",
		zap.String("source", result.Source),
		zap.Int("documents", result.Documents),
		zap.Int("chunks", result.Chunks),
		zap.String("collection", info.Collection),
		zap.Duration("duration", time.Since(start)),
	)
	return result, nil
}

// Answer retrieves the chunks closest to question and asks the generator
// to answer from them. An empty retrieval yields the NoMatchingResults
// sentinel without calling the generator. Generator errors are returned
// unchanged.
func (s *Service) Answer(ctx context.Context, question string) (answer Answer, err error) {
	ctx, span := otel.Tracer("ragify/rag").Start(ctx, "rag.Answer")
	defer span.End()
	span.SetAttributes(attribute.Int("top_k", s.config.TopK))

	start := time.Now()
	defer func() {
		AnswerDuration.Observe(time.Since(start).Seconds())
		switch {
		case err != nil:
			AnswersTotal.WithLabelValues("error").Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case answer.NoResults:
			AnswersTotal.WithLabelValues("no_results").Inc()
		default:
			AnswersTotal.WithLabelValues("answered").Inc()
		}
	}()

	results, err := s.store.Search(ctx, question, s.config.TopK)
	if err != nil {
		return Answer{}, fmt.Errorf("searching index: %w", err)
	}
	results = s.relevant(results)
	span.SetAttributes(attribute.Int("results", len(results)))

	if len(results) == 0 {
		s.logger.Info("no matching results", zap.Int("top_k", s.config.TopK))
		return Answer{
			Text:      NoMatchingResults,
			Chunks:    []string{},
			Pages:     []int{},
			Scores:    []float32{},
			NoResults: true,
		}, nil
	}

	answer = Answer{
		Chunks: make([]string, len(results)),
		Pages:  make([]int, len(results)),
		Scores: make([]float32, len(results)),
	}
	for i, r := range results {
		answer.Chunks[i] = r.Content
		answer.Pages[i] = loader.PageOf(r.Metadata)
		answer.Scores[i] = r.Score
	}

	prompt, err := BuildPrompt(question, answer.Chunks)
	if err != nil {
		return Answer{}, fmt.Errorf("building prompt: %w", err)
	}

	if s.generator == nil {
		return Answer{}, fmt.Errorf("%w: GOOGLE_API_KEY is not set", config.ErrConfigurationMissing)
	}

	text, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		return Answer{}, err
	}
	answer.Text = text

	s.logger.Info("answered question",
		zap.Int("chunks", len(answer.Chunks)),
		zap.String("pages", formatPages(answer.Pages)),
		zap.Duration("duration", time.Since(start)),
	)
	return answer, nil
}

// relevant applies the MinRelevance floor. Results arrive best first, so
// the first one below the floor ends the scan.
func (s *Service) relevant(results []vectorstore.SearchResult) []vectorstore.SearchResult {
	if s.config.MinRelevance <= 0 {
		return results
	}
	for i, r := range results {
		if float64(r.Score) < s.config.MinRelevance {
			s.logger.Debug("dropping low-relevance results",
				zap.Int("kept", i),
				zap.Float32("best_dropped", r.Score),
				zap.Float64("min_relevance", s.config.MinRelevance),
			)
			return results[:i]
		}
	}
	return results
}

func formatPages(pages []int) string {
	out := make([]byte, 0, len(pages)*3)
	for i, p := range pages {
		if i > 0 {
			out = append(out, ',')
		}
		out = strconv.AppendInt(out, int64(p), 10)
	}
	return string(out)
}
