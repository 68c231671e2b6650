package reembed

import (
	"context"
	"fmt"
	"time"

	"github.com/poiesic/docvault/ai"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/storage"
)

// BatchProcessor handles embedding generation for batches of indexed chunks.
type BatchProcessor struct {
	index          storage.VectorIndex
	embedder       ai.Embedder
	maxRetries     int
	retryBaseDelay time.Duration
	dim            int
}

// NewBatchProcessor creates a new batch processor.
// maxRetries: maximum number of attempts for embedding API calls
// retryBaseDelay: base delay for exponential backoff
func NewBatchProcessor(index storage.VectorIndex, embedder ai.Embedder, maxRetries int, retryBaseDelay time.Duration) *BatchProcessor {
	return &BatchProcessor{
		index:          index,
		embedder:       embedder,
		maxRetries:     maxRetries,
		retryBaseDelay: retryBaseDelay,
	}
}

// Process generates embeddings for a batch of chunks and writes them back to the index.
// Vectors are normalized after embedding to ensure compatibility with cosine similarity.
// Every vector produced by one processor must have the same length.
func (bp *BatchProcessor) Process(ctx context.Context, chunks []*core.ChunkVector) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	// Generate embeddings with retry
	var embeddings [][]float32
	err := RetryWithBackoff(ctx, func() error {
		var err error
		embeddings, err = bp.embedder.EmbedTexts(ctx, texts)
		return err
	}, bp.maxRetries, bp.retryBaseDelay)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return fmt.Errorf("%w: failed to generate embeddings after %d attempts: %w", core.ErrEmbedding, bp.maxRetries, err)
	}

	if len(embeddings) != len(chunks) {
		return fmt.Errorf("%w: embedding count mismatch: expected %d, got %d", core.ErrEmbedding, len(chunks), len(embeddings))
	}

	for i := range chunks {
		vec := NormalizeVector(embeddings[i])
		if bp.dim == 0 {
			bp.dim = len(vec)
		}
		if len(vec) == 0 || len(vec) != bp.dim {
			return fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(vec), bp.dim)
		}
		chunks[i].Embedding = vec
	}

	if err := bp.index.UpdateEmbeddings(ctx, chunks); err != nil {
		return fmt.Errorf("%w: failed to update chunks: %w", core.ErrStorage, err)
	}
	return nil
}
