package scheduler

import (
	"context"
	"sync"

	"github.com/poiesic/docvault/core"
)

// recordSink persists progress of one attempt to the artifact record.
// Once abandoned it rejects further reports, so a call that outlived its
// attempt cannot overwrite the terminal state.
type recordSink struct {
	s          *Scheduler
	artifactID string
	attempt    int

	mu        sync.Mutex
	abandoned bool
}

func (r *recordSink) Report(ctx context.Context, percent int, stage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.abandoned {
		return errAbandoned
	}
	return r.s.updateRecord(ctx, r.artifactID, func(a *core.Artifact) error {
		if a.Attempt != r.attempt {
			return errAbandoned
		}
		// a retry resumes from the progress the failed attempt reached
		percent = max(percent, a.Progress)
		if err := core.ValidateTransition(a.Status, core.StatusProgress, a.Progress, percent); err != nil {
			return err
		}
		a.Status = core.StatusProgress
		a.Progress = percent
		a.Stage = stage
		return nil
	})
}

// abandon blocks until any in-flight report has finished.
func (r *recordSink) abandon() {
	r.mu.Lock()
	r.abandoned = true
	r.mu.Unlock()
}
