package vectorstore

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

const (
	qdrantBackend = "qdrant"

	// Payload keys reserved by the store.
	payloadContent = "content"
	payloadID      = "id"
	payloadModel   = "embedding_model"
)

// QdrantConfig holds configuration for the Qdrant gRPC client.
type QdrantConfig struct {
	// Host is the Qdrant server hostname. Default: "localhost".
	Host string

	// Port is the gRPC port. Default: 6334.
	Port int

	// Collection is the alias searches read through. Each rebuild creates a
	// collection named <Collection>_<suffix> and points the alias at it.
	// Default: "ragify_documents".
	Collection string

	UseTLS bool
	APIKey string

	// EmbeddingModel is written into every point's payload and checked on
	// search.
	EmbeddingModel string

	// BatchSize caps points per upsert request. Default: 256.
	BatchSize int

	// MaxMessageSize is the gRPC message limit in bytes. Default: 50MB.
	MaxMessageSize int
}

// ApplyDefaults sets default values for unset fields.
func (c *QdrantConfig) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 6334
	}
	if c.Collection == "" {
		c.Collection = "ragify_documents"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 256
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = 50 * 1024 * 1024
	}
}

// Validate validates the configuration.
func (c QdrantConfig) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("%w: host required", ErrInvalidConfig)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("%w: invalid port %d", ErrInvalidConfig, c.Port)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size must be positive", ErrInvalidConfig)
	}
	return ValidateCollectionName(c.Collection)
}

// qdrantAPI is the subset of *qdrant.Client used by QdrantStore.
type qdrantAPI interface {
	HealthCheck(ctx context.Context) (*qdrant.HealthCheckReply, error)
	CreateCollection(ctx context.Context, request *qdrant.CreateCollection) error
	DeleteCollection(ctx context.Context, collectionName string) error
	ListCollections(ctx context.Context) ([]string, error)
	ListAliases(ctx context.Context) ([]*qdrant.AliasDescription, error)
	UpdateAliases(ctx context.Context, actions []*qdrant.AliasOperations) error
	Upsert(ctx context.Context, request *qdrant.UpsertPoints) (*qdrant.UpdateResult, error)
	Query(ctx context.Context, request *qdrant.QueryPoints) ([]*qdrant.ScoredPoint, error)
	Close() error
}

// QdrantStore implements Store on a Qdrant server reached over gRPC.
type QdrantStore struct {
	client   qdrantAPI
	embedder Embedder
	config   QdrantConfig
	logger   *zap.Logger

	// rebuildMu serialises rebuilds so one cannot drop another's collection.
	rebuildMu sync.Mutex
}

// NewQdrantStore connects to Qdrant and checks it is healthy.
func NewQdrantStore(ctx context.Context, config QdrantConfig, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if !config.UseTLS {
		logger.Warn("qdrant gRPC using plaintext (TLS disabled)", zap.String("host", config.Host))
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   config.Host,
		Port:   config.Port,
		APIKey: config.APIKey,
		UseTLS: config.UseTLS,
		GrpcOptions: []grpc.DialOption{
			grpc.WithDefaultCallOptions(
				grpc.MaxCallRecvMsgSize(config.MaxMessageSize),
				grpc.MaxCallSendMsgSize(config.MaxMessageSize),
			),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	store, err := newQdrantStore(config, client, embedder, logger)
	if err != nil {
		_ = client.Close()
		return nil, err
	}

	hctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := client.HealthCheck(hctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("%w: health check: %v", ErrConnectionFailed, err)
	}

	logger.Info("qdrant store initialized",
		zap.String("host", config.Host),
		zap.Int("port", config.Port),
		zap.String("alias", config.Collection),
	)
	return store, nil
}

func newQdrantStore(config QdrantConfig, client qdrantAPI, embedder Embedder, logger *zap.Logger) (*QdrantStore, error) {
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrInvalidConfig)
	}
	config.ApplyDefaults()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QdrantStore{client: client, embedder: embedder, config: config, logger: logger}, nil
}

// Close closes the gRPC connection.
func (s *QdrantStore) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

// Rebuild embeds docs into a new collection, repoints the alias at it in a
// single alias update, then drops the previous collection.
func (s *QdrantStore) Rebuild(ctx context.Context, docs []Document) (info IndexInfo, err error) {
	ctx, span := otel.Tracer("ragify/vectorstore").Start(ctx, "QdrantStore.Rebuild")
	defer span.End()
	span.SetAttributes(attribute.Int("document_count", len(docs)))

	start := timeNow()
	defer func() {
		recordRebuild(qdrantBackend, time.Since(start).Seconds(), len(docs), err)
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

	dim, err := s.dimension(ctx, embedded)
	if err != nil {
		return IndexInfo{}, err
	}

	alias := s.config.Collection
	name := alias + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	span.SetAttributes(attribute.String("collection", name))

	if err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dim),
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return IndexInfo{}, fmt.Errorf("creating collection %s: %w", name, err)
	}

	if err := s.upsert(ctx, name, embedded); err != nil {
		s.dropCollection(ctx, name)
		return IndexInfo{}, err
	}

	// Qdrant rejects deleting an alias that does not exist yet.
	_, exists, err := s.activeCollection(ctx)
	if err != nil {
		s.dropCollection(ctx, name)
		return IndexInfo{}, err
	}
	var ops []*qdrant.AliasOperations
	if exists {
		ops = append(ops, qdrant.NewAliasDelete(alias))
	}
	ops = append(ops, qdrant.NewAliasCreate(alias, name))

	if err := s.client.UpdateAliases(ctx, ops); err != nil {
		s.dropCollection(ctx, name)
		return IndexInfo{}, fmt.Errorf("switching alias %s to %s: %w", alias, name, err)
	}

	s.dropStale(ctx, name)

	info = IndexInfo{
		Collection:     name,
		EmbeddingModel: s.config.EmbeddingModel,
		Documents:      len(embedded),
		BuiltAt:        timeNow().UTC(),
	}
	s.logger.Info("index rebuilt",
		zap.String("alias", alias),
		zap.String("collection", name),
		zap.Int("documents", info.Documents),
		zap.Duration("duration", time.Since(start)),
	)
	return info, nil
}

// dimension returns the vector size for a new collection. An empty rebuild
// still needs one, so the embedder is probed.
func (s *QdrantStore) dimension(ctx context.Context, embedded []embeddedDocument) (int, error) {
	if len(embedded) > 0 {
		return len(embedded[0].Embedding), nil
	}
	probe, err := s.embedder.EmbedQuery(ctx, "dimension probe")
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}
	if len(probe) == 0 {
		return 0, fmt.Errorf("%w: embedder returned an empty vector", ErrEmbeddingFailed)
	}
	return len(probe), nil
}

func (s *QdrantStore) upsert(ctx context.Context, collection string, docs []embeddedDocument) error {
	for start := 0; start < len(docs); start += s.config.BatchSize {
		end := min(start+s.config.BatchSize, len(docs))

		points := make([]*qdrant.PointStruct, 0, end-start)
		for _, doc := range docs[start:end] {
			payload := make(map[string]any, len(doc.Metadata)+3)
			// Metadata is flattened to strings, which NewValueMap always accepts.
			for k, v := range doc.Metadata {
				payload[k] = v
			}
			payload[payloadContent] = doc.Content
			payload[payloadID] = doc.ID
			payload[payloadModel] = s.config.EmbeddingModel

			points = append(points, &qdrant.PointStruct{
				Id:      qdrant.NewIDUUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(doc.ID)).String()),
				Vectors: qdrant.NewVectors(doc.Embedding...),
				Payload: qdrant.NewValueMap(payload),
			})
		}

		if _, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		}); err != nil {
			return fmt.Errorf("upserting points to collection %s: %w", collection, err)
		}
	}
	return nil
}

// dropStale removes collections under this alias other than keep: the
// previous index and any left by an interrupted rebuild.
func (s *QdrantStore) dropStale(ctx context.Context, keep string) {
	names, err := s.client.ListCollections(ctx)
	if err != nil {
		s.logger.Warn("failed to list collections for cleanup", zap.Error(err))
		return
	}
	prefix := s.config.Collection + "_"
	for _, name := range names {
		if name != keep && strings.HasPrefix(name, prefix) {
			s.dropCollection(ctx, name)
		}
	}
}

func (s *QdrantStore) dropCollection(ctx context.Context, name string) {
	if err := s.client.DeleteCollection(ctx, name); err != nil {
		s.logger.Warn("failed to delete collection", zap.String("collection", name), zap.Error(err))
	}
}

// activeCollection resolves the alias. ok is false before the first rebuild.
func (s *QdrantStore) activeCollection(ctx context.Context) (string, bool, error) {
	aliases, err := s.client.ListAliases(ctx)
	if err != nil {
		return "", false, fmt.Errorf("listing aliases: %w", err)
	}
	for _, a := range aliases {
		if a.GetAliasName() == s.config.Collection {
			return a.GetCollectionName(), true, nil
		}
	}
	return "", false, nil
}

// Search returns up to k nearest points from the collection behind the alias.
func (s *QdrantStore) Search(ctx context.Context, query string, k int) (results []SearchResult, err error) {
	ctx, span := otel.Tracer("ragify/vectorstore").Start(ctx, "QdrantStore.Search")
	defer span.End()
	span.SetAttributes(attribute.Int("k", k))

	start := timeNow()
	defer func() {
		recordSearch(qdrantBackend, time.Since(start).Seconds(), len(results), err)
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

	collection, ok, err := s.activeCollection(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []SearchResult{}, nil
	}
	span.SetAttributes(attribute.String("collection", collection))

	vector, err := s.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEmbeddingFailed, err)
	}

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.config.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("searching collection %s: %w", collection, err)
	}

	results = make([]SearchResult, 0, len(points))
	for _, point := range points {
		result := SearchResult{
			Score:    point.GetScore(),
			Metadata: make(map[string]interface{}, len(point.GetPayload())),
		}
		for key, v := range point.GetPayload() {
			switch key {
			case payloadContent:
				result.Content = v.GetStringValue()
			case payloadID:
				result.ID = v.GetStringValue()
			case payloadModel:
				if err := checkModel(v.GetStringValue(), s.config.EmbeddingModel); err != nil {
					return nil, err
				}
			default:
				result.Metadata[key] = payloadValue(v)
			}
		}
		results = append(results, result)
	}

	span.SetAttributes(attribute.Int("results_count", len(results)))
	return results, nil
}

func payloadValue(v *qdrant.Value) interface{} {
	switch val := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return val.StringValue
	case *qdrant.Value_IntegerValue:
		return val.IntegerValue
	case *qdrant.Value_DoubleValue:
		return val.DoubleValue
	case *qdrant.Value_BoolValue:
		return val.BoolValue
	default:
		return nil
	}
}
