// Package storage provides the storage abstraction layer for docvault.
//
// Three interfaces decouple the pipeline from its backends:
//
//   - ArtifactRepository: durable metadata records, one per uploaded file
//   - VectorIndex: embedded chunks with top-K similarity search
//   - BlobStore: raw artifact bytes keyed by storage location
//
// The badger subpackage implements ArtifactRepository and VectorIndex on a
// shared BadgerDB instance. The blob subpackage implements BlobStore on the
// local filesystem and on S3.
//
// Use in tests with in-memory storage:
//
//	artifacts, index, backend, err := badger.NewMemoryRepositories()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer backend.Close()
//
// # Thread Safety
//
// All implementations must be thread-safe and support concurrent access
// from multiple goroutines.
package storage
