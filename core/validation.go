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


package core

import (
	"errors"
	"fmt"
)

// ErrInvalidArtifact indicates an Artifact failed validation.
var ErrInvalidArtifact = errors.New("invalid artifact")

// ValidateArtifact validates an Artifact according to domain rules.
//
// Validation rules:
//   - ID and Owner must not be empty
//   - StorageLocation must not be empty
//   - Status must be a known value
//   - Progress must lie in [0,100]
//   - Error is present if and only if Status is FAILURE
//
// NOT validated (populated by the worker):
//   - TextPreview, ChunkCount, Metadata
func ValidateArtifact(a *Artifact) error {
	if a == nil {
		return fmt.Errorf("%w: artifact is nil", ErrInvalidArtifact)
	}
	if a.ID == "" {
		return fmt.Errorf("%w: id is empty", ErrInvalidArtifact)
	}
	if a.Owner == "" {
		return fmt.Errorf("%w: owner is empty", ErrInvalidArtifact)
	}
	if a.StorageLocation == "" {
		return fmt.Errorf("%w: storage location is empty", ErrInvalidArtifact)
	}
	if a.Status.rank() < 0 {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidArtifact, a.Status)
	}
	if a.Progress < 0 || a.Progress > 100 {
		return fmt.Errorf("%w: progress %d out of range", ErrInvalidArtifact, a.Progress)
	}
	if a.Status == StatusFailure && a.Error == "" {
		return fmt.Errorf("%w: failure without error", ErrInvalidArtifact)
	}
	if a.Status != StatusFailure && a.Error != "" {
		return fmt.Errorf("%w: error set on %s record", ErrInvalidArtifact, a.Status)
	}
	return nil
}

// ValidateTransition checks a status/progress change within one attempt.
// Status may only move forward along PENDING -> STARTED -> PROGRESS -> terminal,
// PROGRESS may repeat, and progress may not decrease. Starting a new attempt
// (to STARTED from a terminal state or from any state with a higher attempt
// number) is handled by the caller and is not checked here.
func ValidateTransition(from, to Status, fromProgress, toProgress int) error {
	if from.Terminal() {
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if to.rank() < from.rank() {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if to == from && to != StatusProgress {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	if toProgress < fromProgress {
		return fmt.Errorf("%w: progress %d -> %d", ErrInvalidTransition, fromProgress, toProgress)
	}
	return nil
}
