// Package vectorstore persists embedded chunks and answers nearest-neighbour
// queries over them.
//
// Two backends implement Store:
//   - ChromemStore: embedded chromem-go database under a local directory
//     (default).
//   - QdrantStore: external Qdrant server over gRPC.
//
// # Rebuild
//
// An index is only ever replaced wholesale. Rebuild embeds every document,
// writes them into a new collection with a unique suffix, then switches the
// active pointer to it and drops the previous collection. The pointer is
// active.json for chromem and a collection alias for Qdrant. A search that
// runs during a rebuild reads either the old or the new collection. A failed
// rebuild removes its partial collection and leaves the old one active.
//
// # Search
//
// Scores are cosine similarities, higher is better, and results come back
// in non-increasing score order. Searching before any rebuild, or against
// an empty index, returns an empty slice and no error.
//
// The active index records which embedding model produced it. Searching it
// with a differently configured model fails with ErrEmbedderMismatch rather
// than returning meaningless neighbours.
//
// # Usage
//
//	store, err := vectorstore.NewChromemStore(vectorstore.ChromemConfig{
//	    Path:           "chroma",
//	    EmbeddingModel: "BAAI/bge-small-en-v1.5",
//	}, embedder, logger)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	if _, err := store.Rebuild(ctx, docs); err != nil {
//	    return err
//	}
//	results, err := store.Search(ctx, "who is the white rabbit?", 3)
package vectorstore
