package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingEmbedder struct {
	calls int
}

func (c *countingEmbedder) EmbedText(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{1}, nil
}

func (c *countingEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	out := make([][]float32, len(texts))
	for i := range out {
		out[i] = []float32{1}
	}
	return out, nil
}

func TestNewRateLimitedEmbedder_DisabledReturnsNext(t *testing.T) {
	next := &countingEmbedder{}
	assert.Same(t, next, NewRateLimitedEmbedder(next, 0, 1))
}

func TestRateLimitedEmbedder_HonorsContext(t *testing.T) {
	next := &countingEmbedder{}
	limited := NewRateLimitedEmbedder(next, 0.001, 1)

	ctx := context.Background()
	_, err := limited.EmbedText(ctx, "first")
	require.NoError(t, err)

	// The bucket is empty and refills far slower than the deadline
	ctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = limited.EmbedTexts(ctx, []string{"second"})
	assert.Error(t, err)
	assert.Equal(t, 1, next.calls)
}
