// Package splitter cuts documents into overlapping chunks for embedding.
package splitter

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/kellywsq03/RAGify/internal/loader"
)

const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 50

	// MetadataStartIndex is the chunk metadata key holding StartOffset.
	MetadataStartIndex = "start_index"
)

// DefaultSeparators are tried in order; the empty separator splits between
// characters.
var DefaultSeparators = []string{"\n\n", "\n", ". ", "! ", "? ", " ", ""}

// Chunk is a contiguous piece of one document.
type Chunk struct {
	Text string
	// StartOffset is the character index of Text's first character in the
	// source document's text.
	StartOffset int
	// Metadata is the document's metadata plus start_index.
	Metadata map[string]any
}

// Page returns the 1-based page number recorded for the chunk's document,
// or 0 when it has none.
func (c Chunk) Page() int {
	return loader.PageOf(c.Metadata)
}

// Config holds chunking parameters. Sizes are measured in characters.
type Config struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// Splitter splits documents with a recursive character strategy.
type Splitter struct {
	config Config
	split  textsplitter.RecursiveCharacter
	logger *zap.Logger
}

// New creates a Splitter. Zero sizes take the defaults.
func New(cfg Config, logger *zap.Logger) (*Splitter, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.ChunkOverlap == 0 {
		cfg.ChunkOverlap = DefaultChunkOverlap
	}
	if len(cfg.Separators) == 0 {
		cfg.Separators = DefaultSeparators
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", cfg.ChunkSize)
	}
	if cfg.ChunkOverlap < 0 || cfg.ChunkOverlap >= cfg.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", cfg.ChunkSize, cfg.ChunkOverlap)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// Kept separators make every chunk a verbatim substring of its
	// document, which StartOffset relies on.
	split := textsplitter.NewRecursiveCharacter(
		textsplitter.WithChunkSize(cfg.ChunkSize),
		textsplitter.WithChunkOverlap(cfg.ChunkOverlap),
		textsplitter.WithSeparators(cfg.Separators),
		textsplitter.WithKeepSeparator(true),
		textsplitter.WithLenFunc(utf8.RuneCountInString),
	)

	return &Splitter{config: cfg, split: split, logger: logger}, nil
}

// Config returns the effective configuration.
func (s *Splitter) Config() Config {
	return s.config
}

// Split chunks docs in order. Blank documents yield nothing.
func (s *Splitter) Split(ctx context.Context, docs []loader.Document) ([]Chunk, error) {
	_, span := otel.Tracer("ragify/splitter").Start(ctx, "splitter.Split")
	defer span.End()
	span.SetAttributes(
		attribute.Int("documents", len(docs)),
		attribute.Int("chunk_size", s.config.ChunkSize),
		attribute.Int("chunk_overlap", s.config.ChunkOverlap),
	)

	var chunks []Chunk
	for i, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}

		texts, err := s.split.SplitText(doc.Text)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "split failed")
			return nil, fmt.Errorf("splitting document %d: %w", i, err)
		}

		offsets := locate(doc.Text, texts, s.config.ChunkOverlap)
		for j, text := range texts {
			if text == "" {
				continue
			}
			md := make(map[string]any, len(doc.Metadata)+1)
			for k, v := range doc.Metadata {
				md[k] = v
			}
			md[MetadataStartIndex] = offsets[j]
			chunks = append(chunks, Chunk{Text: text, StartOffset: offsets[j], Metadata: md})
		}
	}

	span.SetAttributes(attribute.Int("chunks", len(chunks)))
	s.logger.Debug("documents split",
		zap.Int("documents", len(docs)),
		zap.Int("chunks", len(chunks)),
	)
	return chunks, nil
}

// locate returns the character offset of each chunk within text. Each
// search starts overlap characters before the end of the previous chunk,
// so a repeated phrase resolves to the occurrence that follows it.
func locate(text string, chunks []string, overlap int) []int {
	offsets := make([]int, len(chunks))
	prevStart, prevEnd := -1, 0

	for i, chunk := range chunks {
		from := 0
		if prevStart >= 0 {
			from = backRunes(text, prevEnd, overlap)
			if from <= prevStart {
				from = prevStart + 1
			}
		}

		idx := -1
		if from <= len(text) {
			if rel := strings.Index(text[from:], chunk); rel >= 0 {
				idx = from + rel
			}
		}
		if idx < 0 {
			idx = strings.Index(text, chunk)
		}
		if idx < 0 {
			// Not a verbatim substring; keep the previous position.
			offsets[i] = utf8.RuneCountInString(text[:max(prevStart, 0)])
			continue
		}

		offsets[i] = utf8.RuneCountInString(text[:idx])
		prevStart, prevEnd = idx, idx+len(chunk)
	}
	return offsets
}

// backRunes moves n characters back from byte position pos.
func backRunes(text string, pos, n int) int {
	for n > 0 && pos > 0 {
		_, size := utf8.DecodeLastRuneInString(text[:pos])
		pos -= size
		n--
	}
	return pos
}
