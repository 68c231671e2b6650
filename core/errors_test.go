package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{fmt.Errorf("%w: %w", ErrValidation, cause), KindValidation},
		{fmt.Errorf("%w: %w", ErrExtraction, cause), KindExtraction},
		{fmt.Errorf("%w: %w", ErrEmbedding, cause), KindEmbedding},
		{ErrTimeout, KindTimeout},
		{fmt.Errorf("%w: %w", ErrStorage, cause), KindStorage},
		{ErrCancelled, KindCancelled},
		{fmt.Errorf("%w: a1", ErrNotFound), KindNotFound},
		{fmt.Errorf("%w: a1", ErrForbidden), KindForbidden},
		{fmt.Errorf("%w: running", ErrConflict), KindConflict},
		{ErrBusy, KindBusy},
		{cause, KindInternal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, KindOf(tt.err), "KindOf(%v)", tt.err)
	}
}

func TestIsRetryable(t *testing.T) {
	cause := errors.New("boom")
	assert.True(t, IsRetryable(fmt.Errorf("%w: %w", ErrEmbedding, cause)))
	assert.True(t, IsRetryable(fmt.Errorf("%w: %w", ErrStorage, cause)))
	assert.False(t, IsRetryable(fmt.Errorf("%w: %w", ErrExtraction, cause)))
	assert.False(t, IsRetryable(ErrTimeout))
	assert.False(t, IsRetryable(fmt.Errorf("%w: %w", ErrValidation, cause)))
	assert.False(t, IsRetryable(cause))
	// a timeout while storing is still a timeout
	assert.False(t, IsRetryable(fmt.Errorf("%w: %w", ErrStorage, ErrTimeout)))
}

func TestResult(t *testing.T) {
	t.Run("ok", func(t *testing.T) {
		r := Ok(42)
		assert.True(t, r.IsOk())
		assert.NoError(t, r.Err())
		assert.Equal(t, 42, r.Value())

		data, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `{"data":42}`, string(data))
	})

	t.Run("fail", func(t *testing.T) {
		r := Fail[int](fmt.Errorf("%w: bad name", ErrValidation))
		assert.False(t, r.IsOk())
		assert.Zero(t, r.Value())

		data, err := json.Marshal(r)
		require.NoError(t, err)
		assert.JSONEq(t, `{"error":{"kind":"validation","message":"validation error: bad name"}}`, string(data))
	})

	t.Run("fail with nil error stays failed", func(t *testing.T) {
		r := Fail[string](nil)
		assert.False(t, r.IsOk())
	})

	t.Run("of", func(t *testing.T) {
		v, err := Of("x", nil).Unwrap()
		assert.NoError(t, err)
		assert.Equal(t, "x", v)
		assert.False(t, Of("x", ErrNotFound).IsOk())
	})
}
