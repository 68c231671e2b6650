package badger

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/poiesic/docvault/core"
)

// Key prefixes for different data types
const (
	artifactPrefix      = "art:"
	artifactOwnerPrefix = "artown:"
	artifactHashPrefix  = "arthash:"
	chunkPrefix         = "vec:"
	batchPrefix         = "vecb:"
	chunkIDSeq          = "vecseq"
	batchIDSeq          = "vecbseq"
)

// separator ends variable-length key components.
const separator = 0x00

// makeArtifactKey generates a key for an artifact record by ID.
func makeArtifactKey(id string) []byte {
	return []byte(artifactPrefix + id)
}

// makePartialOwnerKey generates the prefix shared by an owner's index entries.
// Format: prefix:owner\x00
func makePartialOwnerKey(owner string) []byte {
	buf := make([]byte, 0, len(artifactOwnerPrefix)+len(owner)+1)
	buf = append(buf, artifactOwnerPrefix...)
	buf = append(buf, owner...)
	return append(buf, separator)
}

// makeOwnerKey generates a composite key for the owner index.
// Format: prefix:owner\x00createdAt(8 bytes)id
// BigEndian timestamps keep an owner's entries in creation order.
func makeOwnerKey(owner string, createdAt time.Time, id string) []byte {
	buf := makePartialOwnerKey(owner)
	buf = binary.BigEndian.AppendUint64(buf, uint64(createdAt.UnixMicro()))
	return append(buf, id...)
}

// makeHashKey generates a key for content-hash lookup scoped to an owner.
// Format: prefix:owner\x00hash
func makeHashKey(owner, hash string) []byte {
	buf := make([]byte, 0, len(artifactHashPrefix)+len(owner)+1+len(hash))
	buf = append(buf, artifactHashPrefix...)
	buf = append(buf, owner...)
	buf = append(buf, separator)
	return append(buf, hash...)
}

// makePartialChunkKey generates the prefix shared by an artifact's chunks.
func makePartialChunkKey(artifactID string) []byte {
	buf := make([]byte, 0, len(chunkPrefix)+len(artifactID)+1)
	buf = append(buf, chunkPrefix...)
	buf = append(buf, artifactID...)
	return append(buf, separator)
}

// makeChunkKey generates a key for one chunk.
// Format: prefix:artifactID\x00seq(8 bytes)
func makeChunkKey(artifactID string, seq core.ID) []byte {
	return binary.BigEndian.AppendUint64(makePartialChunkKey(artifactID), uint64(seq))
}

// makePartialBatchKey generates the prefix shared by an artifact's batch markers.
func makePartialBatchKey(artifactID string) []byte {
	buf := make([]byte, 0, len(batchPrefix)+len(artifactID)+1)
	buf = append(buf, batchPrefix...)
	buf = append(buf, artifactID...)
	return append(buf, separator)
}

// makeBatchKey generates the commit marker for one insert batch of an artifact.
// Format: prefix:artifactID\x00batch(8 bytes)
func makeBatchKey(artifactID string, batch core.ID) []byte {
	return binary.BigEndian.AppendUint64(makePartialBatchKey(artifactID), uint64(batch))
}

// batchRef identifies a published batch.
type batchRef struct {
	artifactID string
	batch      core.ID
}

// parseBatchKey splits a batch marker key into its components.
func parseBatchKey(key []byte) (batchRef, bool) {
	rest := key[len(batchPrefix):]
	i := bytes.IndexByte(rest, separator)
	if i < 0 || len(rest)-i-1 != 8 {
		return batchRef{}, false
	}
	return batchRef{
		artifactID: string(rest[:i]),
		batch:      core.ID(binary.BigEndian.Uint64(rest[i+1:])),
	}, true
}
