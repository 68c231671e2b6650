package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/poiesic/docvault/ai"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/storage"
)

const (
	// DefaultOverFetch is the candidate multiplier applied to k.
	DefaultOverFetch = 4

	// DefaultMaxResults is the largest k a query may ask for.
	DefaultMaxResults = 100
)

// Searcher provides owner-scoped semantic search over indexed chunks.
type Searcher struct {
	records    storage.ArtifactRepository
	index      storage.VectorIndex
	embedder   ai.Embedder
	overFetch  int
	maxResults int
	logger     *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithOverFetch sets how many candidates per requested hit are fetched
// before ownership filtering. Default is DefaultOverFetch.
func WithOverFetch(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return fmt.Errorf("over-fetch factor must be positive, got %d", n)
		}
		s.overFetch = n
		return nil
	}
}

// WithMaxResults caps k. Larger requests are served with n hits at most.
// Default is DefaultMaxResults.
func WithMaxResults(n int) Option {
	return func(s *Searcher) error {
		if n < 1 {
			return fmt.Errorf("max results must be positive, got %d", n)
		}
		s.maxResults = n
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher. embedder must be the one used for ingestion.
func NewSearcher(
	records storage.ArtifactRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if records == nil {
		return nil, ErrRepositoryRequired
	}
	if index == nil {
		return nil, ErrIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		records:    records,
		index:      index,
		embedder:   embedder,
		overFetch:  DefaultOverFetch,
		maxResults: DefaultMaxResults,
		logger:     slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "searcher")

	return s, nil
}

// Query returns up to k of owner's chunks most similar to text.
func (s *Searcher) Query(ctx context.Context, owner, text string, k int) ([]*core.SearchHit, error) {
	return s.QueryWithMonitor(ctx, owner, text, k, nil)
}

// QueryWithMonitor is Query with callbacks at each stage.
func (s *Searcher) QueryWithMonitor(ctx context.Context, owner, text string, k int, monitor SearchMonitor) ([]*core.SearchHit, error) {
	if monitor == nil {
		monitor = &noopMonitor{}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrEmptyQuery)
	}
	if k < 1 {
		return nil, fmt.Errorf("%w: %w", core.ErrValidation, ErrInvalidLimit)
	}
	k = min(k, s.maxResults)

	monitor.Start(owner, text)

	// 1. Embed the query in the ingestion embedding space
	embedding, err := s.embedder.EmbedText(ctx, text)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrEmbedding, err)
	}
	monitor.AfterEmbedding(len(embedding))

	// 2. Over-fetch to leave room for ownership filtering
	fetch := k * s.overFetch
	if fetch/s.overFetch != k {
		fetch = math.MaxInt
	}
	candidates, err := s.index.Search(ctx, embedding, fetch)
	if err != nil {
		s.logger.Error("error querying vector index", "err", err)
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	monitor.AfterIndexSearch(candidates)

	// 3. Filter and join to artifact records, preserving index order
	queryWords := tokenizeAndFilter(text)
	records := make(map[string]*core.Artifact)
	results := make([]*core.SearchHit, 0, min(k, len(candidates)))
	for _, hit := range candidates {
		if len(results) == k {
			break
		}
		if hit.Chunk.Owner != owner {
			monitor.OwnerFiltered(hit)
			continue
		}
		record, seen := records[hit.Chunk.ArtifactID]
		if !seen {
			record, err = s.records.GetArtifact(ctx, hit.Chunk.ArtifactID)
			if errors.Is(err, storage.ErrNotFound) {
				record = nil
			} else if err != nil {
				return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
			}
			records[hit.Chunk.ArtifactID] = record
		}
		if record == nil {
			monitor.RecordMissing(hit)
			continue
		}
		if record.Owner != owner {
			monitor.OwnerFiltered(hit)
			continue
		}
		if record.Status != core.StatusSuccess || !record.Vectorized {
			monitor.Unpublished(hit)
			continue
		}
		results = append(results, &core.SearchHit{
			ArtifactID: record.ID,
			Filename:   record.Filename,
			ChunkIndex: hit.Chunk.Index,
			Text:       hit.Chunk.Text,
			Score:      hit.Score,
			Exact:      containsAllWords(hit.Chunk.Text, queryWords),
		})
	}

	s.logger.Debug("search complete", "owner", owner, "candidates", len(candidates), "results", len(results))
	monitor.Finish(results)
	return results, nil
}
