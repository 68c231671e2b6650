package chunk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/poiesic/docvault/ai"
	"github.com/poiesic/docvault/core"
	"golang.org/x/sync/errgroup"
)

// Defaults for embedding fan-out.
const (
	DefaultBatchSize   = 16
	DefaultConcurrency = 4
)

// ErrDimensionMismatch indicates the embedder returned vectors of differing length.
var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Embedder turns text into embedded chunk vectors.
type Embedder struct {
	chunker     *Chunker
	embedder    ai.Embedder
	batchSize   int
	concurrency int
	logger      *slog.Logger
}

// EmbedderOption configures an Embedder.
type EmbedderOption func(*Embedder)

// WithBatchSize sets how many chunks go into one embedding call.
func WithBatchSize(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithConcurrency sets how many embedding calls may be in flight at once.
func WithConcurrency(n int) EmbedderOption {
	return func(e *Embedder) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) EmbedderOption {
	return func(e *Embedder) {
		e.logger = logger
	}
}

// NewEmbedder creates an Embedder. A nil chunker uses DefaultChunker.
func NewEmbedder(chunker *Chunker, embedder ai.Embedder, opts ...EmbedderOption) *Embedder {
	if chunker == nil {
		chunker = DefaultChunker()
	}
	e := &Embedder{
		chunker:     chunker,
		embedder:    embedder,
		batchSize:   DefaultBatchSize,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "chunk-embedder")
	return e
}

// Chunker returns the chunker in use.
func (e *Embedder) Chunker() *Chunker {
	return e.chunker
}

// ChunkAndEmbed normalizes text, chunks it and embeds every chunk.
// Any embedding failure aborts the whole call with an error wrapping
// core.ErrEmbedding; no partial result is returned.
func (e *Embedder) ChunkAndEmbed(ctx context.Context, artifact *core.Artifact, text string) ([]*core.ChunkVector, error) {
	var chunks []*core.ChunkVector
	for c := range e.chunker.Chunks(Normalize(text)) {
		chunks = append(chunks, &core.ChunkVector{
			ArtifactID: artifact.ID,
			Owner:      artifact.Owner,
			Index:      c.Index,
			Text:       c.Text,
		})
	}
	if len(chunks) == 0 {
		return nil, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(chunks); start += e.batchSize {
		batch := chunks[start:min(start+e.batchSize, len(chunks))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}
			vectors, err := e.embedder.EmbedTexts(gctx, texts)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
			}
			for i, v := range vectors {
				if len(v) == 0 {
					return fmt.Errorf("empty vector for chunk %d", batch[i].Index)
				}
				batch[i].Embedding = v
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		e.logger.Debug("embedding failed", "artifact", artifact.ID, "chunks", len(chunks), "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}

	dim := len(chunks[0].Embedding)
	for _, c := range chunks[1:] {
		if len(c.Embedding) != dim {
			return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, ErrDimensionMismatch)
		}
	}
	return chunks, nil
}
