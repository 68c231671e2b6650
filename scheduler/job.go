package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/poiesic/docvault/core"
)

type jobState int

const (
	jobQueued jobState = iota
	jobRunning
	jobCancelled
	jobFinished
)

// Job is the handle for one queued or running ingestion of an artifact.
type Job struct {
	ID          string
	ArtifactID  string
	SubmittedAt time.Time

	mu     sync.Mutex
	state  jobState
	result core.Result[*core.Artifact]
	done   chan struct{}
}

func newJob(id, artifactID string) *Job {
	return &Job{
		ID:          id,
		ArtifactID:  artifactID,
		SubmittedAt: time.Now().UTC(),
		done:        make(chan struct{}),
	}
}

// Done is closed once the job has reached a terminal state.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Wait blocks until the job is finished and returns the terminal record.
// The record's Status is SUCCESS or FAILURE; an error means the scheduler
// could not bring the job to a terminal state (for example on shutdown).
func (j *Job) Wait(ctx context.Context) (*core.Artifact, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-j.done:
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.result.Unwrap()
}

// claim moves a queued job to running. It fails if the job was cancelled.
func (j *Job) claim() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != jobQueued {
		return false
	}
	j.state = jobRunning
	return true
}

// cancel moves a queued job to cancelled. It fails once the job has started.
func (j *Job) cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state != jobQueued {
		return false
	}
	j.state = jobCancelled
	return true
}

func (j *Job) finish(result core.Result[*core.Artifact]) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.state == jobFinished {
		return
	}
	j.state = jobFinished
	j.result = result
	close(j.done)
}
