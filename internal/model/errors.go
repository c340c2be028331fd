package model

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the ingestion and retrieval pipeline. Callers match
// them with errors.Is; the wrapped message carries the detail.
var (
	// ErrConfiguration indicates invalid chunking or retrieval parameters.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrEmbeddingGateway indicates the embeddings call failed.
	ErrEmbeddingGateway = errors.New("embedding gateway failed")

	// ErrEmbeddingMismatch indicates the gateway did not return exactly one
	// vector of the requested size per input. It is also an ErrEmbeddingGateway.
	ErrEmbeddingMismatch = fmt.Errorf("%w: embedding count mismatch", ErrEmbeddingGateway)

	// ErrPersistence indicates a failed write against the vector store.
	ErrPersistence = errors.New("vector store write failed")

	// ErrRetrieval indicates an unknown search mode or a failed similarity query.
	ErrRetrieval = errors.New("retrieval failed")
)
