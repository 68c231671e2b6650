package reembed

import "errors"

var (
	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrIndexRequired is returned when no vector index is supplied.
	ErrIndexRequired = errors.New("vector index is required")

	// ErrEmbedderRequired is returned when no embedder is supplied.
	ErrEmbedderRequired = errors.New("embedder is required")

	// ErrInvalidConfig is returned by Config.Validate.
	ErrInvalidConfig = errors.New("invalid reembed config")

	// ErrDimensionMismatch is returned when the new model yields vectors of
	// differing lengths within one run.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)
