package badger

import (
	"cmp"
	"context"
	"errors"
	"math"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/storage"
)

// VectorIndex implements storage.VectorIndex for BadgerDB.
//
// Chunks are written in bounded transactions and then published by a
// single transaction that writes one batch marker per artifact. Search
// ignores chunks whose marker is missing, so a batch becomes visible all
// at once or not at all.
type VectorIndex struct {
	backend  *Backend
	chunkSeq *badger.Sequence
	batchSeq *badger.Sequence
}

var _ storage.VectorIndex = (*VectorIndex)(nil)

// NewVectorIndex creates a new VectorIndex.
func NewVectorIndex(backend *Backend) (*VectorIndex, error) {
	chunkSeq, err := backend.GetSequence(chunkIDSeq)
	if err != nil {
		return nil, err
	}
	batchSeq, err := backend.GetSequence(batchIDSeq)
	if err != nil {
		chunkSeq.Release()
		return nil, err
	}
	return &VectorIndex{
		backend:  backend,
		chunkSeq: chunkSeq,
		batchSeq: batchSeq,
	}, nil
}

// Close releases the ID sequences.
func (ix *VectorIndex) Close() error {
	return errors.Join(ix.chunkSeq.Release(), ix.batchSeq.Release())
}

// Insert writes chunks and publishes them as one batch.
func (ix *VectorIndex) Insert(ctx context.Context, chunks []*core.ChunkVector) error {
	if len(chunks) == 0 {
		return nil
	}

	batch, err := nextID(ix.batchSeq)
	if err != nil {
		return err
	}
	artifacts := make([]string, 0, 1)
	for _, chunk := range chunks {
		seq, err := nextID(ix.chunkSeq)
		if err != nil {
			return err
		}
		chunk.Seq = seq
		chunk.Batch = batch
		if !slices.Contains(artifacts, chunk.ArtifactID) {
			artifacts = append(artifacts, chunk.ArtifactID)
		}
	}

	written := make([][]byte, 0, len(chunks))
	for start := 0; start < len(chunks); start += maxWritesPerTxn {
		if err := ctx.Err(); err != nil {
			ix.discard(written)
			return err
		}
		end := min(start+maxWritesPerTxn, len(chunks))
		keys := make([][]byte, 0, end-start)
		err := ix.backend.WithTx(func(tx *badger.Txn) error {
			for _, chunk := range chunks[start:end] {
				value, err := storage.MarshalChunk(chunk)
				if err != nil {
					return err
				}
				key := makeChunkKey(chunk.ArtifactID, chunk.Seq)
				if err := tx.Set(key, value); err != nil {
					return err
				}
				keys = append(keys, key)
			}
			return tx.Commit()
		}, true)
		if err != nil {
			ix.discard(written)
			return err
		}
		written = append(written, keys...)
	}

	// Publish, unless the caller gave up while the chunks were written
	if err := ctx.Err(); err != nil {
		ix.discard(written)
		return err
	}
	err = ix.backend.WithTx(func(tx *badger.Txn) error {
		for _, artifactID := range artifacts {
			if err := tx.Set(makeBatchKey(artifactID, batch), nil); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		ix.discard(written)
		return err
	}
	return nil
}

// discard removes chunks of an unpublished batch.
func (ix *VectorIndex) discard(keys [][]byte) {
	if len(keys) == 0 {
		return
	}
	if err := ix.backend.deleteKeys(context.Background(), keys); err != nil {
		ix.backend.logger.Warn("failed to discard unpublished chunks", "count", len(keys), "err", err)
	}
}

// Search scores every visible chunk against vector by cosine similarity.
func (ix *VectorIndex) Search(ctx context.Context, vector []float32, k int) ([]*core.IndexHit, error) {
	if k <= 0 {
		return nil, storage.ErrInvalidQuery
	}
	if len(vector) == 0 {
		return nil, storage.ErrInvalidQuery
	}

	var hits []*core.IndexHit
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		return ix.eachVisible(ctx, tx, func(chunk *core.ChunkVector) error {
			if len(chunk.Embedding) != len(vector) {
				return nil
			}
			hits = append(hits, &core.IndexHit{
				Chunk: chunk,
				Score: cosineSimilarity(vector, chunk.Embedding),
			})
			return nil
		})
	}, false)
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(hits, func(a, b *core.IndexHit) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Chunk.Seq, b.Chunk.Seq)
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// DeleteArtifact unpublishes and then removes every chunk of the artifact.
func (ix *VectorIndex) DeleteArtifact(ctx context.Context, artifactID string) (int, error) {
	markers, err := ix.backend.collectKeys(makePartialBatchKey(artifactID))
	if err != nil {
		return 0, err
	}
	if err := ix.backend.deleteKeys(ctx, markers); err != nil {
		return 0, err
	}

	keys, err := ix.backend.collectKeys(makePartialChunkKey(artifactID))
	if err != nil {
		return 0, err
	}
	if err := ix.backend.deleteKeys(ctx, keys); err != nil {
		return 0, err
	}
	return len(keys), nil
}

// Count returns the number of visible chunks.
func (ix *VectorIndex) Count(ctx context.Context) (int, error) {
	count := 0
	err := ix.backend.WithTx(func(tx *badger.Txn) error {
		return ix.eachVisible(ctx, tx, func(*core.ChunkVector) error {
			count++
			return nil
		})
	}, false)
	return count, err
}

// Scan calls fn with visible chunks, batchSize at a time, grouped by artifact.
func (ix *VectorIndex) Scan(ctx context.Context, batchSize int, fn func([]*core.ChunkVector) error) error {
	if batchSize <= 0 {
		return storage.ErrInvalidQuery
	}
	return ix.backend.WithTx(func(tx *badger.Txn) error {
		batch := make([]*core.ChunkVector, 0, batchSize)
		err := ix.eachVisible(ctx, tx, func(chunk *core.ChunkVector) error {
			batch = append(batch, chunk)
			if len(batch) < batchSize {
				return nil
			}
			if err := fn(batch); err != nil {
				return err
			}
			batch = make([]*core.ChunkVector, 0, batchSize)
			return nil
		})
		if err != nil {
			return err
		}
		if len(batch) > 0 {
			return fn(batch)
		}
		return nil
	}, false)
}

// UpdateEmbeddings replaces the embeddings of existing chunks.
// Returns ErrNotFound if any chunk no longer exists; earlier transactions stay applied.
func (ix *VectorIndex) UpdateEmbeddings(ctx context.Context, chunks []*core.ChunkVector) error {
	for start := 0; start < len(chunks); start += maxWritesPerTxn {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+maxWritesPerTxn, len(chunks))
		err := ix.backend.WithTx(func(tx *badger.Txn) error {
			for _, update := range chunks[start:end] {
				key := makeChunkKey(update.ArtifactID, update.Seq)
				item, err := tx.Get(key)
				if errors.Is(err, badger.ErrKeyNotFound) {
					return storage.ErrNotFound
				}
				if err != nil {
					return err
				}
				var stored *core.ChunkVector
				if err := item.Value(func(val []byte) error {
					var err error
					stored, err = storage.UnmarshalChunk(val)
					return err
				}); err != nil {
					return err
				}
				stored.Embedding = update.Embedding
				value, err := storage.MarshalChunk(stored)
				if err != nil {
					return err
				}
				if err := tx.Set(key, value); err != nil {
					return err
				}
			}
			return tx.Commit()
		}, true)
		if err != nil {
			return err
		}
	}
	return nil
}

// eachVisible calls fn for every chunk whose batch has been published.
func (ix *VectorIndex) eachVisible(ctx context.Context, tx *badger.Txn, fn func(*core.ChunkVector) error) error {
	published := make(map[batchRef]struct{})
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(batchPrefix)
	opts.PrefetchValues = false
	markers := tx.NewIterator(opts)
	for markers.Rewind(); markers.Valid(); markers.Next() {
		if ref, ok := parseBatchKey(markers.Item().Key()); ok {
			published[ref] = struct{}{}
		}
	}
	markers.Close()

	opts = badger.DefaultIteratorOptions
	opts.Prefix = []byte(chunkPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()
	for iter.Rewind(); iter.Valid(); iter.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		var chunk *core.ChunkVector
		if err := iter.Item().Value(func(val []byte) error {
			var err error
			chunk, err = storage.UnmarshalChunk(val)
			return err
		}); err != nil {
			return err
		}
		if _, ok := published[batchRef{artifactID: chunk.ArtifactID, batch: chunk.Batch}]; !ok {
			continue
		}
		if err := fn(chunk); err != nil {
			return err
		}
	}
	return nil
}

// nextID draws from seq, skipping the zero value Badger may hand out first.
func nextID(seq *badger.Sequence) (core.ID, error) {
	id, err := seq.Next()
	if err != nil {
		return 0, err
	}
	if id == 0 {
		if id, err = seq.Next(); err != nil {
			return 0, err
		}
	}
	return core.ID(id), nil
}

// cosineSimilarity returns the cosine of the angle between a and b,
// or 0 when either has zero magnitude.
func cosineSimilarity(a, b []float32) float32 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / math.Sqrt(normA*normB))
}
