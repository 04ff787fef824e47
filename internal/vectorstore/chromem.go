package vectorstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	chromem "github.com/philippgille/chromem-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

const chromemBackend = "chromem"

// timeNow is a variable for testing purposes.
var timeNow = time.Now

// ChromemConfig holds configuration for the embedded chromem-go database.
type ChromemConfig struct {
	// Path is the directory for persistent storage. Default: "chroma".
	Path string

	// Compress enables gzip compression for stored documents.
	Compress bool

	// Collection is the base collection name; each rebuild appends a
	// unique suffix. Default: "documents".
	Collection string

	// EmbeddingModel identifies the embedder. It is recorded in the
	// manifest on rebuild and checked on search.
	EmbeddingModel string
}

// ApplyDefaults sets default values for unset fields.
func (c *ChromemConfig) ApplyDefaults() {
	if c.Path == "" {
		c.Path = "chroma"
	}
	if c.Collection == "" {
		c.Collection = "documents"
	}
}

// Validate validates the configuration.
func (c *ChromemConfig) Validate() error {
	return ValidateCollectionName(c.Collection)
}

// ChromemStore implements Store using chromem-go persisted under Path.
type ChromemStore struct {
	// rebuildMu serialises rebuilds.
	rebuildMu sync.Mutex

	// dbMu guards db, which is swapped when another process has rebuilt
	// the index.
	dbMu sync.RWMutex
	db   *chromem.DB

	embedder Embedder
	config   ChromemConfig
	path     string
	logger   *zap.Logger
}

// NewChromemStore opens (or creates) the database under config.Path.
func NewChromemStore(config ChromemConfig, embedder Embedder, logger *zap.Logger) (*ChromemStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	path, err := expandPath(config.Path)
	if err != nil {
		return nil, fmt.Errorf("expanding path: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return nil, fmt.Errorf("creating directory %s: %w", path, err)
	}

	db, err := chromem.NewPersistentDB(path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("creating chromem DB: %w", err)
	}

	logger.Info("chromem store initialized",
		zap.String("path", path),
		zap.Bool("compress", config.Compress),
		zap.String("collection", config.Collection),
		zap.String("embedding_model", config.EmbeddingModel),
	)

	return &ChromemStore{
		db:       db,
		embedder: embedder,
		config:   config,
		path:     path,
		logger:   logger,
	}, nil
}

// expandPath expands a leading ~ to the home directory.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}
	return filepath.Clean(path), nil
}

// embeddingFunc lets chromem embed query text itself; Rebuild always
// supplies precomputed embeddings.
func (s *ChromemStore) embeddingFunc() chromem.EmbeddingFunc {
	return func(ctx context.Context, text string) ([]float32, error) {
		return s.embedder.EmbedQuery(ctx, text)
	}
}

func (s *ChromemStore) currentDB() *chromem.DB {
	s.dbMu.RLock()
	defer s.dbMu.RUnlock()
	return s.db
}

// Rebuild embeds docs into a fresh collection, activates it and drops the
// previous one.
func (s *ChromemStore) Rebuild(ctx context.Context, docs []Document) (info IndexInfo, err error) {
	ctx, span := otel.Tracer("ragify/vectorstore").Start(ctx, "ChromemStore.Rebuild")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	start := timeNow()
	defer func() {
		recordRebuild(chromemBackend, time.Since(start).Seconds(), len(docs), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	s.rebuildMu.Lock()
	defer s.rebuildMu.Unlock()

	embedded, err := embedDocuments(ctx, s.embedder, docs)
	if err != nil {
		return IndexInfo{}, err
	}
	chromemDocs := make([]chromem.Document, len(embedded))
	for i, doc := range embedded {
		chromemDocs[i] = chromem.Document{
			ID:        doc.ID,
			Content:   doc.Content,
			Metadata:  doc.Metadata,
			Embedding: doc.Embedding,
		}
	}

	db := s.currentDB()
	name := s.config.Collection + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	span.SetAttributes(attribute.String("collection", name))

	coll, err := db.CreateCollection(name, nil, s.embeddingFunc())
	if err != nil {
		return IndexInfo{}, fmt.Errorf("creating collection %s: %w", name, err)
	}

	if len(chromemDocs) > 0 {
		if err := coll.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
			s.dropCollection(db, name)
			return IndexInfo{}, fmt.Errorf("adding documents to %s: %w", name, err)
		}
	}

	info = IndexInfo{
		Collection:     name,
		EmbeddingModel: s.config.EmbeddingModel,
		Documents:      len(chromemDocs),
		BuiltAt:        timeNow().UTC(),
	}
	if err := writeManifest(s.path, info); err != nil {
		s.dropCollection(db, name)
		return IndexInfo{}, err
	}

	// The new collection is live; everything else under this base name is
	// either the previous index or left over from an interrupted rebuild.
	for existing := range db.ListCollections() {
		if existing != name && s.managed(existing) {
			s.dropCollection(db, existing)
		}
	}

	if len(chromemDocs) == 0 {
		s.logger.Warn("index rebuilt with no documents", zap.String("collection", name))
	}
	s.logger.Info("index rebuilt",
		zap.String("collection", name),
		zap.Int("documents", info.Documents),
		zap.Duration("duration", time.Since(start)),
	)
	return info, nil
}

func (s *ChromemStore) managed(name string) bool {
	return name == s.config.Collection || strings.HasPrefix(name, s.config.Collection+"_")
}

func (s *ChromemStore) dropCollection(db *chromem.DB, name string) {
	if err := db.DeleteCollection(name); err != nil {
		s.logger.Warn("failed to delete collection", zap.String("collection", name), zap.Error(err))
	}
}

// Search returns up to k nearest documents from the active collection.
func (s *ChromemStore) Search(ctx context.Context, query string, k int) (results []SearchResult, err error) {
	ctx, span := otel.Tracer("ragify/vectorstore").Start(ctx, "ChromemStore.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	start := timeNow()
	defer func() {
		recordSearch(chromemBackend, time.Since(start).Seconds(), len(results), err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}

	info, ok, err := readManifest(s.path)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.Debug("search before first rebuild", zap.String("path", s.path))
		return []SearchResult{}, nil
	}
	if err := checkModel(info.EmbeddingModel, s.config.EmbeddingModel); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("collection", info.Collection))

	coll, err := s.activeCollection(info.Collection)
	if err != nil {
		return nil, err
	}
	if coll == nil || coll.Count() == 0 {
		return []SearchResult{}, nil
	}
	// chromem requires nResults <= document count.
	if count := coll.Count(); k > count {
		k = count
	}

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	found, err := coll.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", info.Collection, err)
	}

	results = make([]SearchResult, len(found))
	for i, r := range found {
		results[i] = SearchResult{
			ID:       r.ID,
			Content:  r.Content,
			Score:    r.Similarity,
			Metadata: convertMetadataFromString(r.Metadata),
		}
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	s.logger.Debug("searched chromem collection",
		zap.String("collection", info.Collection),
		zap.Int("k", k),
		zap.Int("results", len(results)),
	)
	return results, nil
}

// activeCollection returns the named collection, reopening the database
// once if it is missing because another process rebuilt the index.
func (s *ChromemStore) activeCollection(name string) (*chromem.Collection, error) {
	if coll := s.currentDB().GetCollection(name, s.embeddingFunc()); coll != nil {
		return coll, nil
	}

	s.dbMu.Lock()
	defer s.dbMu.Unlock()

	if coll := s.db.GetCollection(name, s.embeddingFunc()); coll != nil {
		return coll, nil
	}
	db, err := chromem.NewPersistentDB(s.path, s.config.Compress)
	if err != nil {
		return nil, fmt.Errorf("reopening chromem DB: %w", err)
	}
	s.db = db
	s.logger.Debug("reloaded chromem DB", zap.String("collection", name))
	return db.GetCollection(name, s.embeddingFunc()), nil
}

// Info returns the active index, or ok=false before the first rebuild.
func (s *ChromemStore) Info() (IndexInfo, bool, error) {
	return readManifest(s.path)
}

// Close is a no-op; chromem persists every write immediately.
func (s *ChromemStore) Close() error {
	return nil
}

// embeddedDocument is a Document paired with its vector, with metadata
// already flattened to strings.
type embeddedDocument struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Embedding []float32
}

// embedDocuments embeds docs in one batch and pairs each with its vector.
func embedDocuments(ctx context.Context, embedder Embedder, docs []Document) ([]embeddedDocument, error) {
	if len(docs) == 0 {
		return nil, nil
	}

	texts := make([]string, len(docs))
	for i, doc := range docs {
		texts[i] = doc.Content
	}

	vectors, err := embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(vectors) != len(docs) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d documents", ErrEmbeddingFailed, len(vectors), len(docs))
	}

	out := make([]embeddedDocument, len(docs))
	for i, doc := range docs {
		id := doc.ID
		if id == "" {
			id = uuid.NewString()
		}
		out[i] = embeddedDocument{
			ID:        id,
			Content:   doc.Content,
			Metadata:  convertMetadataToString(doc.Metadata),
			Embedding: vectors[i],
		}
	}
	return out, nil
}

func checkModel(indexed, configured string) error {
	if indexed == "" || configured == "" || indexed == configured {
		return nil
	}
	return fmt.Errorf("%w: index uses %q, configured %q", ErrEmbedderMismatch, indexed, configured)
}
