package ingestion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/docvault/chunk"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/extract"
	"github.com/poiesic/docvault/storage"
)

// DefaultPreviewLength is the number of runes kept as the text preview.
const DefaultPreviewLength = 500

// Pipeline extracts, chunks, embeds and indexes a single artifact.
// It is safe for concurrent use across different artifacts.
type Pipeline struct {
	extractors    *extract.Registry
	embedder      *chunk.Embedder
	index         storage.VectorIndex
	previewLength int
	logger        *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPreviewLength sets how many runes of text are kept as the preview.
// Default is DefaultPreviewLength.
func WithPreviewLength(n int) Option {
	return func(p *Pipeline) error {
		if n < 1 {
			return fmt.Errorf("preview length must be positive, got %d", n)
		}
		p.previewLength = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(
	extractors *extract.Registry,
	embedder *chunk.Embedder,
	index storage.VectorIndex,
	opts ...Option,
) (*Pipeline, error) {
	if extractors == nil {
		return nil, ErrRegistryRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}

	p := &Pipeline{
		extractors:    extractors,
		embedder:      embedder,
		index:         index,
		previewLength: DefaultPreviewLength,
		logger:        slog.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, err
		}
	}
	p.logger = p.logger.With("component", "ingestion-pipeline")
	return p, nil
}

// Outcome is the result of a successful attempt.
type Outcome struct {
	Preview    string
	Vectorized bool
	ChunkCount int
	Metadata   map[string]string
}

// Run processes artifact once. Progress is reported to sink at 10, 20, 50,
// 70 and 90; the caller records the terminal state. An artifact whose MIME
// type has no extractor, or whose text is empty, succeeds without vectors.
//
// Errors wrap one of core.ErrExtraction, core.ErrEmbedding or
// core.ErrStorage. Context errors are returned unwrapped.
func (p *Pipeline) Run(ctx context.Context, artifact *core.Artifact, sink ProgressSink) (*Outcome, error) {
	if artifact == nil {
		return nil, ErrArtifactRequired
	}
	if sink == nil {
		sink = discardSink{}
	}
	logger := p.logger.With("artifact", artifact.ID)

	if err := p.report(ctx, sink, ProgressStarted, StageStarted); err != nil {
		return nil, err
	}

	outcome := &Outcome{Metadata: map[string]string{}}
	var text string
	if extractor, ok := p.extractors.Lookup(artifact.MimeType); ok {
		if err := p.report(ctx, sink, ProgressExtract, extractor.Stage()); err != nil {
			return nil, err
		}
		extraction, err := p.extractors.Extract(ctx, artifact.StorageLocation, artifact.MimeType)
		if err != nil {
			return nil, err
		}
		text = extraction.Text
		outcome.Metadata = extraction.Metadata
	} else {
		logger.Info("no extractor for type, skipping text extraction", "mime", artifact.MimeType)
	}

	if err := p.report(ctx, sink, ProgressExtracted, StageExtracted); err != nil {
		return nil, err
	}

	normalized := chunk.Normalize(text)
	if normalized != "" {
		if err := p.report(ctx, sink, ProgressEmbedding, StageEmbedding); err != nil {
			return nil, err
		}
		chunks, err := p.embedder.ChunkAndEmbed(ctx, artifact, normalized)
		if err != nil {
			return nil, err
		}
		if err := p.replaceChunks(ctx, artifact.ID, chunks); err != nil {
			return nil, err
		}
		outcome.Vectorized = len(chunks) > 0
		outcome.ChunkCount = len(chunks)
		outcome.Preview = preview(normalized, p.previewLength)
	}

	if err := p.report(ctx, sink, ProgressFinalize, StageFinalize); err != nil {
		return nil, err
	}

	logger.Debug("artifact processed", "chunks", outcome.ChunkCount, "vectorized", outcome.Vectorized)
	return outcome, nil
}

// replaceChunks drops any chunks left by an earlier attempt, then publishes the new batch.
func (p *Pipeline) replaceChunks(ctx context.Context, artifactID string, chunks []*core.ChunkVector) error {
	if _, err := p.index.DeleteArtifact(ctx, artifactID); err != nil {
		return storageError(ctx, err)
	}
	if len(chunks) == 0 {
		return nil
	}
	if err := p.index.Insert(ctx, chunks); err != nil {
		return storageError(ctx, err)
	}
	return nil
}

func (p *Pipeline) report(ctx context.Context, sink ProgressSink, percent int, stage string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := sink.Report(ctx, percent, stage); err != nil {
		return storageError(ctx, err)
	}
	return nil
}

func storageError(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, core.ErrStorage) {
		return err
	}
	return fmt.Errorf("%w: %w", core.ErrStorage, err)
}

func preview(text string, n int) string {
	runes := []rune(text)
	if len(runes) <= n {
		return text
	}
	return strings.TrimSpace(string(runes[:n]))
}
