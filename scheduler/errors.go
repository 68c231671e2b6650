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


package scheduler

import (
	"errors"
	"fmt"

	"github.com/poiesic/docvault/core"
)

var (
	// ErrClosed is returned when the scheduler has been shut down.
	ErrClosed = errors.New("scheduler closed")

	// ErrRepositoryRequired is returned when an artifact repository is not provided.
	ErrRepositoryRequired = errors.New("artifact repository required")

	// ErrRunnerRequired is returned when a pipeline runner is not provided.
	ErrRunnerRequired = errors.New("pipeline runner required")

	// ErrNotQueued is returned by Cancel when the artifact has no queued job.
	ErrNotQueued = fmt.Errorf("%w: no queued job", core.ErrConflict)

	// errAbandoned is reported to a pipeline call whose attempt has already ended.
	errAbandoned = errors.New("attempt abandoned")
)
