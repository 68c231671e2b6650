package storage

import (
	"testing"
	"time"

	"github.com/poiesic/docvault/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalID(t *testing.T) {
	tests := []struct {
		name string
		id   core.ID
	}{
		{"zero ID", core.ID(0)},
		{"small ID", core.ID(42)},
		{"large ID", core.ID(18446744073709551615)},
		{"content-based ID", core.IDFromContent("test content")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded, err := UnmarshalID(MarshalID(tt.id))
			require.NoError(t, err)
			assert.Equal(t, tt.id, decoded)
		})
	}
}

func TestMarshalID_SortsNumerically(t *testing.T) {
	a := MarshalID(255)
	b := MarshalID(256)
	assert.Less(t, string(a), string(b), "big-endian encoding must sort like the integers")
}

func TestUnmarshalID_Invalid(t *testing.T) {
	_, err := UnmarshalID([]byte{1, 2, 3})
	assert.ErrorIs(t, err, ErrTruncatedData)
}

func TestArtifactRoundTrip(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Microsecond)
	in := &core.Artifact{
		ID:              "3f0c",
		Owner:           "alice",
		Filename:        "report.pdf",
		StorageLocation: "3f0c.pdf",
		MimeType:        "application/pdf",
		ByteSize:        1024,
		Status:          core.StatusFailure,
		Progress:        50,
		Error:           "timeout",
		ErrorKind:       core.KindTimeout,
		Metadata:        map[string]string{"pages": "3"},
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	data, err := MarshalArtifact(in)
	require.NoError(t, err)

	out, err := UnmarshalArtifact(data)
	require.NoError(t, err)
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Status, out.Status)
	assert.Equal(t, in.Metadata, out.Metadata)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
}

func TestUnmarshalArtifact_Invalid(t *testing.T) {
	_, err := UnmarshalArtifact([]byte{0xc1})
	assert.ErrorIs(t, err, ErrSerializationFailed)
}

func TestChunkRoundTrip(t *testing.T) {
	in := &core.ChunkVector{
		Seq:        7,
		Batch:      3,
		ArtifactID: "a1",
		Owner:      "bob",
		Index:      2,
		Text:       "hello",
		Embedding:  []float32{0.25, -0.5, 1},
	}
	data, err := MarshalChunk(in)
	require.NoError(t, err)

	out, err := UnmarshalChunk(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}
