// Package embeddings turns text into vectors for the vector store.
//
// Three providers implement Provider:
//   - fastembed: local ONNX models via fastembed-go (requires cgo). The ONNX
//     runtime is downloaded into <cache_dir>/onnxruntime on first use
//     unless ONNX_PATH points at an existing library.
//   - tei: a HuggingFace text-embeddings-inference server over HTTP.
//   - google: Google Generative AI embeddings via langchaingo.
//
// The same provider and model must be used to build an index and to query
// it; the vector store records the model identity and refuses mismatches.
// Every provider failure wraps ErrEmbeddingFailed.
package embeddings
