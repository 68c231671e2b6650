package badger

import (
	"context"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/storage"
)

// ArtifactRepository implements storage.ArtifactRepository for BadgerDB.
type ArtifactRepository struct {
	backend *Backend
}

var _ storage.ArtifactRepository = (*ArtifactRepository)(nil)

// NewArtifactRepository creates a new ArtifactRepository.
func NewArtifactRepository(backend *Backend) (*ArtifactRepository, error) {
	return &ArtifactRepository{backend: backend}, nil
}

// Close is a no-op; the backend owns the database handle.
func (r *ArtifactRepository) Close() error {
	return nil
}

// CreateArtifact inserts a new artifact record and its owner and hash indices.
func (r *ArtifactRepository) CreateArtifact(ctx context.Context, artifact *core.Artifact) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		key := makeArtifactKey(artifact.ID)
		if _, err := tx.Get(key); err == nil {
			return storage.ErrDuplicateKey
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		var hashKey []byte
		if artifact.ContentHash != "" {
			hashKey = makeHashKey(artifact.Owner, artifact.ContentHash)
			if _, err := tx.Get(hashKey); err == nil {
				return storage.ErrDuplicateKey
			} else if !errors.Is(err, badger.ErrKeyNotFound) {
				return err
			}
		}

		now := time.Now().UTC()
		if artifact.CreatedAt.IsZero() {
			artifact.CreatedAt = now
		}
		artifact.UpdatedAt = now

		value, err := storage.MarshalArtifact(artifact)
		if err != nil {
			return err
		}
		if err := tx.Set(key, value); err != nil {
			return err
		}
		ownerKey := makeOwnerKey(artifact.Owner, artifact.CreatedAt, artifact.ID)
		if err := tx.Set(ownerKey, []byte(artifact.ID)); err != nil {
			return err
		}
		if hashKey != nil {
			if err := tx.Set(hashKey, []byte(artifact.ID)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// UpdateArtifact replaces an existing artifact record.
// Owner and CreatedAt are carried over from the stored record.
func (r *ArtifactRepository) UpdateArtifact(ctx context.Context, artifact *core.Artifact) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := r.getArtifact(tx, artifact.ID)
		if err != nil {
			return err
		}

		artifact.Owner = existing.Owner
		artifact.CreatedAt = existing.CreatedAt
		artifact.UpdatedAt = time.Now().UTC()

		if existing.ContentHash != artifact.ContentHash {
			if existing.ContentHash != "" {
				if err := tx.Delete(makeHashKey(existing.Owner, existing.ContentHash)); err != nil {
					return err
				}
			}
			if artifact.ContentHash != "" {
				if err := tx.Set(makeHashKey(artifact.Owner, artifact.ContentHash), []byte(artifact.ID)); err != nil {
					return err
				}
			}
		}

		value, err := storage.MarshalArtifact(artifact)
		if err != nil {
			return err
		}
		if err := tx.Set(makeArtifactKey(artifact.ID), value); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// GetArtifact retrieves an artifact record by ID.
func (r *ArtifactRepository) GetArtifact(ctx context.Context, id string) (*core.Artifact, error) {
	var artifact *core.Artifact
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		artifact, err = r.getArtifact(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// DeleteArtifact removes an artifact record and its indices.
func (r *ArtifactRepository) DeleteArtifact(ctx context.Context, id string) error {
	return r.backend.WithTx(func(tx *badger.Txn) error {
		existing, err := r.getArtifact(tx, id)
		if err != nil {
			return err
		}
		if err := tx.Delete(makeArtifactKey(id)); err != nil {
			return err
		}
		if err := tx.Delete(makeOwnerKey(existing.Owner, existing.CreatedAt, id)); err != nil {
			return err
		}
		if existing.ContentHash != "" {
			hashKey := makeHashKey(existing.Owner, existing.ContentHash)
			item, err := tx.Get(hashKey)
			switch {
			case err == nil:
				owned := false
				if err := item.Value(func(val []byte) error {
					owned = string(val) == id
					return nil
				}); err != nil {
					return err
				}
				if owned {
					if err := tx.Delete(hashKey); err != nil {
						return err
					}
				}
			case !errors.Is(err, badger.ErrKeyNotFound):
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// ListArtifacts returns the owner's artifacts, newest first.
func (r *ArtifactRepository) ListArtifacts(ctx context.Context, owner string) ([]*core.Artifact, error) {
	var results []*core.Artifact
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		prefix := makePartialOwnerKey(owner)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		opts.Reverse = true
		iter := tx.NewIterator(opts)
		defer iter.Close()

		// Reverse iteration starts from the largest key under the prefix
		seekKey := append(append([]byte{}, prefix...), 0xFF)
		for iter.Seek(seekKey); iter.ValidForPrefix(prefix); iter.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var id string
			if err := iter.Item().Value(func(val []byte) error {
				id = string(val)
				return nil
			}); err != nil {
				return err
			}
			artifact, err := r.getArtifact(tx, id)
			if errors.Is(err, storage.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			results = append(results, artifact)
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

// FindByContentHash returns the owner's artifact whose content hash matches.
func (r *ArtifactRepository) FindByContentHash(ctx context.Context, owner, hash string) (*core.Artifact, error) {
	var artifact *core.Artifact
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		item, err := tx.Get(makeHashKey(owner, hash))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return storage.ErrNotFound
		}
		if err != nil {
			return err
		}
		var id string
		if err := item.Value(func(val []byte) error {
			id = string(val)
			return nil
		}); err != nil {
			return err
		}
		artifact, err = r.getArtifact(tx, id)
		return err
	}, false)
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// ListUnfinished returns every artifact whose status is not terminal.
func (r *ArtifactRepository) ListUnfinished(ctx context.Context) ([]*core.Artifact, error) {
	var results []*core.Artifact
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(artifactPrefix)
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var artifact *core.Artifact
			if err := iter.Item().Value(func(val []byte) error {
				var err error
				artifact, err = storage.UnmarshalArtifact(val)
				return err
			}); err != nil {
				return err
			}
			if !artifact.Status.Terminal() {
				results = append(results, artifact)
			}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}
	return results, nil
}

func (r *ArtifactRepository) getArtifact(tx *badger.Txn, id string) (*core.Artifact, error) {
	item, err := tx.Get(makeArtifactKey(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var artifact *core.Artifact
	err = item.Value(func(val []byte) error {
		artifact, err = storage.UnmarshalArtifact(val)
		return err
	})
	return artifact, err
}
