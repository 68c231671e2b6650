package reembed

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docvault/ai/mock"
	"github.com/poiesic/docvault/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(batchSize, reportInterval int) *Config {
	return &Config{
		BatchSize:      batchSize,
		ReportInterval: reportInterval,
		MaxRetries:     3,
		RetryDelay:     time.Millisecond,
	}
}

func TestNewReembedder_Validation(t *testing.T) {
	index := setupTestIndex(t)

	_, err := NewReembedder(nil, &mockEmbedder{}, nil, nil)
	assert.ErrorIs(t, err, ErrIndexRequired)

	_, err = NewReembedder(index, nil, nil, nil)
	assert.ErrorIs(t, err, ErrEmbedderRequired)

	_, err = NewReembedder(index, &mockEmbedder{}, testConfig(0, 1), nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	r, err := NewReembedder(index, &mockEmbedder{}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), r.config)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"batch size", func(c *Config) { c.BatchSize = 0 }},
		{"report interval", func(c *Config) { c.ReportInterval = -1 }},
		{"max retries", func(c *Config) { c.MaxRetries = 0 }},
		{"retry delay", func(c *Config) { c.RetryDelay = -time.Second }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := DefaultConfig()
			tt.mutate(c)
			assert.ErrorIs(t, c.Validate(), ErrInvalidConfig)
		})
	}
}

func TestReembedder_Run(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	seedChunks(t, index, "a1", 6)
	seedChunks(t, index, "a2", 4)

	var buf bytes.Buffer
	r, err := NewReembedder(index, mock.NewMockEmbedder(), testConfig(3, 3), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	chunks := allChunks(t, index)
	require.Len(t, chunks, 10)
	for _, chunk := range chunks {
		assert.Equal(t, NormalizeVector(mock.DeterministicVector(chunk.Text, mock.DefaultDimension)), chunk.Embedding)
	}

	count, err := index.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 10, count)

	output := buf.String()
	assert.Contains(t, output, "Starting reembedding of 10 chunks")
	assert.Contains(t, output, "10/10")
	assert.Contains(t, output, "Reembedding complete")
}

func TestReembedder_SearchFindsNewVectors(t *testing.T) {
	index := setupTestIndex(t)
	ctx := context.Background()
	seedChunks(t, index, "a1", 3)

	r, err := NewReembedder(index, mock.NewMockEmbedder(), testConfig(2, 2), nil)
	require.NoError(t, err)
	require.NoError(t, r.Run(ctx))

	query := mock.DeterministicVector("a1 chunk 1", mock.DefaultDimension)
	hits, err := index.Search(ctx, query, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, 1, hits[0].Chunk.Index)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-4)
}

func TestReembedder_EmptyIndex(t *testing.T) {
	index := setupTestIndex(t)
	var buf bytes.Buffer
	r, err := NewReembedder(index, &mockEmbedder{}, DefaultConfig(), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))
	assert.Contains(t, buf.String(), "0 chunks")
}

func TestReembedder_ContextCancellation(t *testing.T) {
	index := setupTestIndex(t)
	seedChunks(t, index, "a1", 10)
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			calls++
			if calls == 2 {
				cancel()
			}
			result := make([][]float32, len(texts))
			for i := range result {
				result[i] = []float32{1, 0, 0}
			}
			return result, nil
		},
	}

	r, err := NewReembedder(index, embedder, testConfig(3, 3), nil)
	require.NoError(t, err)
	err = r.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, calls)
}

func TestReembedder_EmbeddingError(t *testing.T) {
	index := setupTestIndex(t)
	seedChunks(t, index, "a1", 1)
	embedder := &mockEmbedder{
		embedTextsFunc: func(ctx context.Context, texts []string) ([][]float32, error) {
			return nil, errors.New("persistent error")
		},
	}

	cfg := testConfig(1, 1)
	cfg.MaxRetries = 2
	r, err := NewReembedder(index, embedder, cfg, nil)
	require.NoError(t, err)
	err = r.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, core.ErrEmbedding)
	assert.Contains(t, err.Error(), "persistent error")
}

func TestReembedder_ProgressTracking(t *testing.T) {
	index := setupTestIndex(t)
	seedChunks(t, index, "a1", 25)

	var buf bytes.Buffer
	r, err := NewReembedder(index, &mockEmbedder{}, testConfig(5, 10), &buf)
	require.NoError(t, err)
	require.NoError(t, r.Run(context.Background()))

	output := buf.String()
	assert.Contains(t, output, "Progress:")
	assert.Contains(t, output, "10/25")
	assert.Contains(t, output, "25/25")
}
