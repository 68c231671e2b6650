package storage

import (
	"context"
	"io"

	"github.com/poiesic/docvault/core"
)

// ArtifactRepository is the durable metadata store for artifact records.
// Implementations must be thread-safe and provide read-after-write
// consistency for a single writer per artifact ID.
type ArtifactRepository interface {
	// CreateArtifact inserts a new record. Sets CreatedAt/UpdatedAt.
	// Returns ErrDuplicateKey if the ID already exists.
	CreateArtifact(ctx context.Context, artifact *core.Artifact) error

	// UpdateArtifact replaces an existing record. Updates UpdatedAt.
	// Returns ErrNotFound if the record doesn't exist.
	UpdateArtifact(ctx context.Context, artifact *core.Artifact) error

	// GetArtifact retrieves a record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	GetArtifact(ctx context.Context, id string) (*core.Artifact, error)

	// DeleteArtifact removes a record and its indices.
	// Returns ErrNotFound if the record doesn't exist.
	DeleteArtifact(ctx context.Context, id string) error

	// ListArtifacts returns an owner's records, newest first.
	ListArtifacts(ctx context.Context, owner string) ([]*core.Artifact, error)

	// FindByContentHash returns the owner's record with the given hash.
	// Returns ErrNotFound if there is none.
	FindByContentHash(ctx context.Context, owner, hash string) (*core.Artifact, error)

	// ListUnfinished returns every record whose status is not terminal.
	ListUnfinished(ctx context.Context) ([]*core.Artifact, error)

	// Close releases resources held by the repository.
	Close() error
}

// VectorIndex stores embedded chunks and answers nearest-neighbour queries.
// It performs no authorization; callers filter by owner.
type VectorIndex interface {
	// Insert appends a batch of chunks. All chunks of one artifact in the
	// batch become visible to Search at once. Insert returns only after the
	// batch is durably recorded.
	Insert(ctx context.Context, chunks []*core.ChunkVector) error

	// Search returns at most k hits ordered by descending similarity.
	// Ties are broken by insertion order.
	Search(ctx context.Context, vector []float32, k int) ([]*core.IndexHit, error)

	// DeleteArtifact removes every chunk of the artifact and returns how many were removed.
	DeleteArtifact(ctx context.Context, artifactID string) (int, error)

	// Count returns the number of visible chunks.
	Count(ctx context.Context) (int, error)

	// Scan calls fn with visible chunks in insertion order, batchSize at a time.
	// Iteration stops at the first error from fn.
	Scan(ctx context.Context, batchSize int, fn func([]*core.ChunkVector) error) error

	// UpdateEmbeddings replaces the embeddings of existing chunks, matched by Seq.
	UpdateEmbeddings(ctx context.Context, chunks []*core.ChunkVector) error

	// Close releases resources held by the index.
	Close() error
}

// BlobStore is durable storage for raw artifact bytes keyed by storage location.
type BlobStore interface {
	// Put stores size bytes read from r at location.
	Put(ctx context.Context, location string, r io.Reader, size int64, contentType string) error

	// Open returns a reader for the bytes at location.
	// Returns ErrNotFound if nothing is stored there.
	Open(ctx context.Context, location string) (io.ReadCloser, error)

	// Delete removes the bytes at location. Deleting a missing location is not an error.
	Delete(ctx context.Context, location string) error
}
