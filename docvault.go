// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package docvault ingests uploaded documents and answers semantic searches
// over them, scoped to the uploading owner.
//
// A Vault validates and stores each upload, processes it asynchronously
// (extraction, chunking, embedding, indexing) on a bounded worker pool, and
// tracks progress on the artifact record for callers that poll Status.
package docvault

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/poiesic/docvault/ai"
	"github.com/poiesic/docvault/ai/openai"
	"github.com/poiesic/docvault/chunk"
	"github.com/poiesic/docvault/config"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/extract"
	"github.com/poiesic/docvault/ingestion"
	"github.com/poiesic/docvault/scheduler"
	"github.com/poiesic/docvault/search"
	"github.com/poiesic/docvault/storage"
	"github.com/poiesic/docvault/storage/badger"
	"github.com/poiesic/docvault/storage/blob"
	"github.com/poiesic/docvault/validator"
)

// Vault is the document ingestion and retrieval service.
type Vault struct {
	backend   *badger.Backend
	records   storage.ArtifactRepository
	index     storage.VectorIndex
	blobs     storage.BlobStore
	provider  ai.AIProvider
	validator *validator.Validator
	scheduler *scheduler.Scheduler
	searcher  *search.Searcher
	logger    *slog.Logger
}

// Option configures a Vault.
type Option func(*options)

type options struct {
	cfg      *config.Config
	provider ai.AIProvider
	blobs    storage.BlobStore
	records  storage.ArtifactRepository
	logger   *slog.Logger
	inMemory bool
}

// WithConfig sets the configuration. Default is config.Default().
func WithConfig(cfg *config.Config) Option {
	return func(o *options) {
		o.cfg = cfg
	}
}

// WithAIProvider sets the embedding provider instead of building one from config.
func WithAIProvider(provider ai.AIProvider) Option {
	return func(o *options) {
		o.provider = provider
	}
}

// WithBlobStore sets the raw byte store instead of building one from config.
func WithBlobStore(store storage.BlobStore) Option {
	return func(o *options) {
		o.blobs = store
	}
}

// WithArtifactRepository sets the metadata store. Default is the Badger store
// sharing the vector index database.
func WithArtifactRepository(records storage.ArtifactRepository) Option {
	return func(o *options) {
		o.records = records
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithInMemory keeps the database in memory.
func WithInMemory() Option {
	return func(o *options) {
		o.inMemory = true
	}
}

// Open builds a Vault and starts its workers. Call Recover afterwards to
// resume artifacts left unfinished by a previous process.
func Open(ctx context.Context, opts ...Option) (*Vault, error) {
	o := &options{cfg: config.Default(), logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	cfg := o.cfg
	if o.inMemory {
		cfg.InMemory = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	v := &Vault{logger: o.logger.With("component", "vault")}
	ok := false
	defer func() {
		if !ok {
			v.Close()
		}
	}()

	// Open backend
	dbPath := ""
	if !cfg.InMemory {
		dbPath = filepath.Join(cfg.DataDir, "db")
	}
	backend, err := badger.OpenBackend(dbPath, cfg.InMemory)
	if err != nil {
		return nil, err
	}
	v.backend = backend

	records, index, _, err := badger.NewRepositories(backend)
	if err != nil {
		v.backend = nil
		return nil, err
	}
	v.records, v.index = records, index
	if o.records != nil {
		v.records = o.records
	}

	v.blobs = o.blobs
	if v.blobs == nil {
		if v.blobs, err = openBlobStore(ctx, cfg, o.logger); err != nil {
			return nil, err
		}
	}

	v.provider = o.provider
	if v.provider == nil {
		aiConfig := ai.NewConfig(
			ai.WithEmbeddingHost(cfg.Embedding.Host),
			ai.WithEmbeddingModel(cfg.Embedding.Model),
			ai.WithToken(cfg.Embedding.Token),
			ai.WithRateLimit(cfg.Embedding.RequestsPerSecond, cfg.Embedding.Burst),
		)
		if v.provider, err = openai.NewProvider(aiConfig); err != nil {
			return nil, err
		}
	}

	chunker, err := chunk.NewChunker(cfg.Ingest.ChunkSize, cfg.Ingest.ChunkOverlap, chunk.Strategy(cfg.Ingest.ChunkStrategy))
	if err != nil {
		return nil, err
	}
	embedder := chunk.NewEmbedder(chunker, v.provider.Embedder(),
		chunk.WithBatchSize(cfg.Ingest.EmbedBatchSize),
		chunk.WithConcurrency(cfg.Ingest.EmbedConcurrency),
		chunk.WithLogger(o.logger),
	)
	pipeline, err := ingestion.NewPipeline(
		extract.NewRegistry(v.blobs, extract.WithLogger(o.logger)),
		embedder,
		v.index,
		ingestion.WithPreviewLength(cfg.Ingest.PreviewLength),
		ingestion.WithLogger(o.logger),
	)
	if err != nil {
		return nil, err
	}

	if v.validator, err = validator.New(v.blobs,
		validator.WithMaxBytes(cfg.Ingest.MaxUploadBytes),
		validator.WithLogger(o.logger),
	); err != nil {
		return nil, err
	}

	if v.searcher, err = search.NewSearcher(v.records, v.index, v.provider.Embedder(),
		search.WithOverFetch(cfg.Search.OverFetch),
		search.WithMaxResults(cfg.Search.MaxResults),
		search.WithLogger(o.logger),
	); err != nil {
		return nil, err
	}

	if v.scheduler, err = scheduler.New(v.records, pipeline,
		scheduler.WithWorkers(cfg.Scheduler.Workers),
		scheduler.WithQueueSize(cfg.Scheduler.QueueSize),
		scheduler.WithTimeout(cfg.Scheduler.Timeout),
		scheduler.WithRetryDelay(cfg.Scheduler.RetryDelay),
		scheduler.WithLogger(o.logger),
	); err != nil {
		return nil, err
	}

	ok = true
	return v, nil
}

func openBlobStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (storage.BlobStore, error) {
	if cfg.Storage.Backend == config.BackendS3 {
		s3 := cfg.Storage.S3
		return blob.NewS3Store(ctx, blob.S3Config{
			Region:    s3.Region,
			Bucket:    s3.Bucket,
			AccessKey: s3.AccessKey,
			SecretKey: s3.SecretKey,
			Endpoint:  s3.Endpoint,
			Prefix:    s3.Prefix,
		}, logger)
	}
	return blob.NewLocalStore(cfg.Storage.LocalDir)
}

// Close stops the workers and releases every resource.
func (v *Vault) Close() error {
	var errs []error
	if v.scheduler != nil {
		if err := v.scheduler.Close(); err != nil {
			v.logger.Error("error closing scheduler", "err", err)
			errs = append(errs, err)
		}
	}
	if v.provider != nil {
		if err := v.provider.Close(); err != nil {
			v.logger.Error("error closing AI provider", "err", err)
			errs = append(errs, err)
		}
	}
	if v.backend != nil {
		if err := v.backend.Close(); err != nil {
			v.logger.Error("error closing backend storage", "err", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Recover resumes artifacts left non-terminal by a previous process.
func (v *Vault) Recover(ctx context.Context) (int, error) {
	return v.scheduler.Recover(ctx)
}

// Upload validates and stores the bytes read from r, creates a PENDING record
// and queues it for processing. Uploading content the owner already has
// returns the existing record. A full queue returns core.ErrBusy and leaves
// nothing behind.
func (v *Vault) Upload(ctx context.Context, owner string, r io.Reader, filename string) (*core.Artifact, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", core.ErrValidation)
	}
	accepted, err := v.validator.Validate(ctx, r, filename)
	if err != nil {
		return nil, err
	}

	existing, err := v.records.FindByContentHash(ctx, owner, accepted.ContentHash)
	switch {
	case err == nil:
		v.discardBlob(ctx, accepted.StorageLocation)
		v.logger.Debug("duplicate upload", "owner", owner, "artifact", existing.ID)
		return existing, nil
	case !errors.Is(err, storage.ErrNotFound):
		v.discardBlob(ctx, accepted.StorageLocation)
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	now := time.Now().UTC()
	artifact := &core.Artifact{
		ID:              uuid.NewString(),
		Owner:           owner,
		Filename:        accepted.Filename,
		Extension:       accepted.Extension,
		StorageLocation: accepted.StorageLocation,
		MimeType:        accepted.MimeType,
		ByteSize:        accepted.Size,
		ContentHash:     accepted.ContentHash,
		Status:          core.StatusPending,
		Metadata:        map[string]string{"detected_mime": accepted.DetectedMime},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := core.ValidateArtifact(artifact); err != nil {
		v.discardBlob(ctx, accepted.StorageLocation)
		return nil, err
	}
	if err := v.records.CreateArtifact(ctx, artifact); err != nil {
		v.discardBlob(ctx, accepted.StorageLocation)
		if errors.Is(err, storage.ErrDuplicateKey) {
			// Lost a race with a concurrent upload of the same content
			if existing, findErr := v.records.FindByContentHash(ctx, owner, accepted.ContentHash); findErr == nil {
				return existing, nil
			}
		}
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	if _, err := v.scheduler.Submit(ctx, artifact.ID); err != nil {
		if delErr := v.records.DeleteArtifact(ctx, artifact.ID); delErr != nil {
			v.logger.Error("error removing unqueued artifact", "artifact", artifact.ID, "err", delErr)
		}
		v.discardBlob(ctx, accepted.StorageLocation)
		return nil, err
	}

	v.logger.Info("artifact uploaded", "artifact", artifact.ID, "owner", owner, "mime", artifact.MimeType, "size", artifact.ByteSize)
	return artifact.Clone(), nil
}

func (v *Vault) discardBlob(ctx context.Context, location string) {
	if err := v.blobs.Delete(ctx, location); err != nil {
		v.logger.Warn("error discarding blob", "location", location, "err", err)
	}
}

// Status returns the current record for id.
func (v *Vault) Status(ctx context.Context, id string) (*core.Artifact, error) {
	a, err := v.records.GetArtifact(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return a, nil
}

// Await blocks until id reaches a terminal state and returns the record.
func (v *Vault) Await(ctx context.Context, id string) (*core.Artifact, error) {
	if job, ok := v.scheduler.Job(id); ok {
		if _, err := job.Wait(ctx); err != nil {
			return nil, err
		}
	}
	return v.Status(ctx, id)
}

// List returns the owner's records, newest first.
func (v *Vault) List(ctx context.Context, owner string) ([]*core.Artifact, error) {
	artifacts, err := v.records.ListArtifacts(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return artifacts, nil
}

func (v *Vault) owned(ctx context.Context, id, owner string) (*core.Artifact, error) {
	a, err := v.Status(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.Owner != owner {
		return nil, fmt.Errorf("%w: %s", core.ErrForbidden, id)
	}
	return a, nil
}

// Reprocess re-queues a terminal artifact. The record returns to PENDING
// with its attempt history kept. A non-terminal artifact returns core.ErrConflict.
func (v *Vault) Reprocess(ctx context.Context, id, owner string) (*core.Artifact, error) {
	a, err := v.owned(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if !a.Status.Terminal() || v.scheduler.Active(id) {
		return nil, fmt.Errorf("%w: artifact is %s", core.ErrConflict, a.Status)
	}

	previous := a.Clone()
	a.Status = core.StatusPending
	a.Progress = 0
	a.Stage = ""
	a.Error = ""
	a.ErrorKind = ""
	if err := v.records.UpdateArtifact(ctx, a); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	if _, err := v.scheduler.Submit(ctx, id); err != nil {
		if restoreErr := v.records.UpdateArtifact(ctx, previous); restoreErr != nil {
			v.logger.Error("error restoring artifact after failed resubmit", "artifact", id, "err", restoreErr)
		}
		return nil, err
	}
	v.logger.Info("artifact requeued", "artifact", id, "previous", previous.Status)
	return a, nil
}

// Search returns up to k of the owner's chunks most similar to query.
func (v *Vault) Search(ctx context.Context, owner, query string, k int) ([]*core.SearchHit, error) {
	return v.searcher.Query(ctx, owner, query, k)
}

// Download returns the owner's artifact record and a reader over its
// original bytes. The caller closes the reader.
func (v *Vault) Download(ctx context.Context, id, owner string) (*core.Artifact, io.ReadCloser, error) {
	a, err := v.owned(ctx, id, owner)
	if err != nil {
		return nil, nil, err
	}
	rc, err := v.blobs.Open(ctx, a.StorageLocation)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, nil, fmt.Errorf("%w: %s has no stored content", core.ErrNotFound, id)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return a, rc, nil
}

// Delete removes an artifact's vectors, record and bytes. A queued job is
// cancelled first; a running one returns core.ErrConflict.
func (v *Vault) Delete(ctx context.Context, id, owner string) error {
	a, err := v.owned(ctx, id, owner)
	if err != nil {
		return err
	}
	if v.scheduler.Active(id) {
		err := v.scheduler.Cancel(ctx, id)
		if errors.Is(err, scheduler.ErrNotQueued) && v.scheduler.Active(id) {
			return fmt.Errorf("%w: artifact is being processed", core.ErrConflict)
		}
		if err != nil && !errors.Is(err, scheduler.ErrNotQueued) {
			return err
		}
	}

	removed, err := v.index.DeleteArtifact(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	if err := v.records.DeleteArtifact(ctx, id); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	if err := v.blobs.Delete(ctx, a.StorageLocation); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	v.logger.Info("artifact deleted", "artifact", id, "chunks", removed)
	return nil
}
