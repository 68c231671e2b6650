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


package badger

import "github.com/poiesic/docvault/storage"

// NewMemoryRepositories creates an in-memory artifact repository and vector index for testing.
// Returns artifactRepo, vectorIndex, backend, and error.
// Caller must close both stores and the backend when done.
func NewMemoryRepositories() (storage.ArtifactRepository, storage.VectorIndex, *Backend, error) {
	backend, err := OpenBackend("", true)
	if err != nil {
		return nil, nil, nil, err
	}
	return NewRepositories(backend)
}

// NewRepositories creates the artifact repository and vector index on an open backend.
// On failure the backend is closed.
func NewRepositories(backend *Backend) (storage.ArtifactRepository, storage.VectorIndex, *Backend, error) {
	artifactRepo, err := NewArtifactRepository(backend)
	if err != nil {
		backend.Close()
		return nil, nil, nil, err
	}

	vectorIndex, err := NewVectorIndex(backend)
	if err != nil {
		artifactRepo.Close()
		backend.Close()
		return nil, nil, nil, err
	}

	return artifactRepo, vectorIndex, backend, nil
}
