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

import "errors"

// Pipeline error kinds. Callers wrap a cause with one of these using
// fmt.Errorf("%w: %w", kind, cause) so both remain matchable.
var (
	// ErrValidation indicates bad input. Never retried and never creates a job.
	ErrValidation = errors.New("validation error")

	// ErrExtraction indicates content that is malformed for its declared type.
	ErrExtraction = errors.New("extraction error")

	// ErrEmbedding indicates a failure of the embedding collaborator.
	ErrEmbedding = errors.New("embedding error")

	// ErrTimeout indicates a job attempt exceeded its wall-clock budget.
	ErrTimeout = errors.New("timeout")

	// ErrStorage indicates a durable store I/O failure.
	ErrStorage = errors.New("storage error")
)

// Service errors returned by the exposed operations.
var (
	// ErrNotFound indicates the artifact does not exist.
	ErrNotFound = errors.New("artifact not found")

	// ErrForbidden indicates the caller does not own the artifact.
	ErrForbidden = errors.New("artifact belongs to another owner")

	// ErrConflict indicates the artifact is in a state that forbids the operation.
	ErrConflict = errors.New("artifact state conflict")

	// ErrBusy indicates the job queue is full; the caller should retry later.
	ErrBusy = errors.New("job queue full, retry later")

	// ErrCancelled indicates a queued job was cancelled before it started.
	ErrCancelled = errors.New("job cancelled")

	// ErrInvalidTransition indicates a status change that moves backwards.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Error kinds persisted in Artifact.ErrorKind.
const (
	KindValidation = "validation"
	KindExtraction = "extraction"
	KindEmbedding  = "embedding"
	KindTimeout    = "timeout"
	KindStorage    = "storage"
	KindCancelled  = "cancelled"
	KindInternal   = "internal"

	// Service kinds. These only appear in responses, never on a stored record.
	KindNotFound  = "not_found"
	KindForbidden = "forbidden"
	KindConflict  = "conflict"
	KindBusy      = "busy"
)

// KindOf classifies err into one of the error kinds.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrExtraction):
		return KindExtraction
	case errors.Is(err, ErrEmbedding):
		return KindEmbedding
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrStorage):
		return KindStorage
	case errors.Is(err, ErrCancelled):
		return KindCancelled
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrForbidden):
		return KindForbidden
	case errors.Is(err, ErrConflict):
		return KindConflict
	case errors.Is(err, ErrBusy):
		return KindBusy
	}
	return KindInternal
}

// IsRetryable reports whether a failed attempt may be retried automatically.
// Only embedding and storage failures look transient.
func IsRetryable(err error) bool {
	if errors.Is(err, ErrTimeout) || errors.Is(err, ErrExtraction) || errors.Is(err, ErrValidation) {
		return false
	}
	return errors.Is(err, ErrEmbedding) || errors.Is(err, ErrStorage)
}
