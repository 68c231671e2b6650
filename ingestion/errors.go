package ingestion

import "errors"

var (
	// ErrRegistryRequired is returned when an extractor registry is not provided.
	ErrRegistryRequired = errors.New("extractor registry required")

	// ErrEmbedderRequired is returned when a chunk embedder is not provided.
	ErrEmbedderRequired = errors.New("chunk embedder required")

	// ErrIndexRequired is returned when a vector index is not provided.
	ErrIndexRequired = errors.New("vector index required")

	// ErrArtifactRequired is returned when Run is called without an artifact.
	ErrArtifactRequired = errors.New("artifact required")
)
