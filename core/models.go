package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID is a numeric identifier for index entries.
// It is generated from database sequences or content hashing.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Status is the processing state of an artifact.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusStarted  Status = "STARTED"
	StatusProgress Status = "PROGRESS"
	StatusSuccess  Status = "SUCCESS"
	StatusFailure  Status = "FAILURE"
)

// Terminal reports whether no further automatic transition can happen.
func (s Status) Terminal() bool {
	return s == StatusSuccess || s == StatusFailure
}

// rank orders statuses along the forward path of one attempt.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusStarted:
		return 1
	case StatusProgress:
		return 2
	case StatusSuccess, StatusFailure:
		return 3
	}
	return -1
}

// Artifact is the metadata record for one uploaded file.
// It is created at upload time and mutated only by the worker that owns
// the artifact's current job.
type Artifact struct {
	ID              string            `msgpack:"id" json:"id"`
	Owner           string            `msgpack:"owner" json:"owner"`
	Filename        string            `msgpack:"filename" json:"filename"`
	Extension       string            `msgpack:"ext" json:"extension"`
	StorageLocation string            `msgpack:"loc" json:"storageLocation"`
	MimeType        string            `msgpack:"mime" json:"mimeType"`
	ByteSize        int64             `msgpack:"size" json:"byteSize"`
	ContentHash     string            `msgpack:"hash" json:"contentHash"`
	Status          Status            `msgpack:"status" json:"status"`
	Progress        int               `msgpack:"progress" json:"progress"`
	Stage           string            `msgpack:"stage,omitempty" json:"stage,omitempty"`
	Attempt         int               `msgpack:"attempt" json:"attempt"`
	Error           string            `msgpack:"error,omitempty" json:"error,omitempty"`
	ErrorKind       string            `msgpack:"errkind,omitempty" json:"errorKind,omitempty"`
	TextPreview     string            `msgpack:"preview,omitempty" json:"textPreview,omitempty"`
	Vectorized      bool              `msgpack:"vectorized" json:"vectorized"`
	ChunkCount      int               `msgpack:"chunks" json:"chunkCount"`
	Metadata        map[string]string `msgpack:"meta,omitempty" json:"metadata,omitempty"`
	CreatedAt       time.Time         `msgpack:"created" json:"createdAt"`
	UpdatedAt       time.Time         `msgpack:"updated" json:"updatedAt"`
}

// Clone returns a deep copy of the artifact.
func (a *Artifact) Clone() *Artifact {
	if a == nil {
		return nil
	}
	c := *a
	if a.Metadata != nil {
		c.Metadata = make(map[string]string, len(a.Metadata))
		for k, v := range a.Metadata {
			c.Metadata[k] = v
		}
	}
	return &c
}

// ChunkVector is one embedded window of an artifact's text.
type ChunkVector struct {
	Seq        ID        `msgpack:"seq" json:"-"`   // global insertion order, assigned by the index
	Batch      ID        `msgpack:"batch" json:"-"` // insert batch that published this chunk
	ArtifactID string    `msgpack:"artifact" json:"artifactId"`
	Owner      string    `msgpack:"owner" json:"owner"`
	Index      int       `msgpack:"index" json:"index"`
	Text       string    `msgpack:"text" json:"text"`
	Embedding  []float32 `msgpack:"vec" json:"-"`
}

// IndexHit is a raw nearest-neighbour match returned by the vector index.
type IndexHit struct {
	Chunk *ChunkVector
	Score float32
}

// SearchHit is a ranked, ownership-filtered search result.
type SearchHit struct {
	ArtifactID string  `json:"artifactId"`
	Filename   string  `json:"filename,omitempty"`
	ChunkIndex int     `json:"chunkIndex"`
	Text       string  `json:"text"`
	Score      float32 `json:"score"`
	Exact      bool    `json:"exact"` // chunk contains every significant query word
}
