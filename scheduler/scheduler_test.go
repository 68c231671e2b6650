package scheduler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/poiesic/docvault/ai/mock"
	"github.com/poiesic/docvault/chunk"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/extract"
	"github.com/poiesic/docvault/ingestion"
	"github.com/poiesic/docvault/storage"
	"github.com/poiesic/docvault/storage/badger"
	"github.com/poiesic/docvault/storage/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runnerFunc func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error)

func (f runnerFunc) Run(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
	return f(ctx, a, sink)
}

func succeed(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
	for _, p := range []int{10, 20, 50, 90} {
		if err := sink.Report(ctx, p, "step"); err != nil {
			return nil, err
		}
	}
	return &ingestion.Outcome{Preview: "preview", Vectorized: true, ChunkCount: 1}, nil
}

func setupRecords(t *testing.T) storage.ArtifactRepository {
	t.Helper()
	records, _, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	return records
}

func createRecord(t *testing.T, records storage.ArtifactRepository, id string) {
	t.Helper()
	require.NoError(t, records.CreateArtifact(context.Background(), &core.Artifact{
		ID:              id,
		Owner:           "alice",
		StorageLocation: id + ".txt",
		MimeType:        "text/plain",
		ContentHash:     "hash-" + id,
		Status:          core.StatusPending,
	}))
}

func newScheduler(t *testing.T, records storage.ArtifactRepository, runner Runner, opts ...Option) *Scheduler {
	t.Helper()
	opts = append([]Option{WithRetryDelay(10 * time.Millisecond)}, opts...)
	s, err := New(records, runner, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func waitJob(t *testing.T, job *Job) *core.Artifact {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	final, err := job.Wait(ctx)
	require.NoError(t, err)
	return final
}

func TestNew_Validation(t *testing.T) {
	records := setupRecords(t)
	_, err := New(nil, runnerFunc(succeed))
	assert.ErrorIs(t, err, ErrRepositoryRequired)
	_, err = New(records, nil)
	assert.ErrorIs(t, err, ErrRunnerRequired)
	_, err = New(records, runnerFunc(succeed), WithQueueSize(0))
	assert.Error(t, err)
	_, err = New(records, runnerFunc(succeed), WithTimeout(0))
	assert.Error(t, err)
	_, err = New(records, runnerFunc(succeed), WithRetryDelay(-time.Second))
	assert.Error(t, err)
}

func TestSubmit_RunsToSuccess(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	s := newScheduler(t, records, runnerFunc(succeed))

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	final := waitJob(t, job)

	assert.Equal(t, core.StatusSuccess, final.Status)
	assert.Equal(t, 100, final.Progress)
	assert.Equal(t, 1, final.Attempt)
	assert.True(t, final.Vectorized)
	assert.Equal(t, "preview", final.TextPreview)
	assert.Empty(t, final.Error)
	assert.False(t, s.Active("a1"))
}

func TestSubmit_UnknownArtifact(t *testing.T) {
	s := newScheduler(t, setupRecords(t), runnerFunc(succeed))
	_, err := s.Submit(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestSubmit_ProgressIsPersistedInOrder(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")

	var mu sync.Mutex
	var observed []core.Artifact
	runner := runnerFunc(func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
		observing := ingestion.ProgressFunc(func(ctx context.Context, percent int, stage string) error {
			if err := sink.Report(ctx, percent, stage); err != nil {
				return err
			}
			rec, err := records.GetArtifact(ctx, a.ID)
			if err != nil {
				return err
			}
			mu.Lock()
			observed = append(observed, *rec)
			mu.Unlock()
			return nil
		})
		return succeed(ctx, a, observing)
	})
	s := newScheduler(t, records, runner)

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	waitJob(t, job)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, observed, 4)
	last := 0
	for _, rec := range observed {
		assert.Equal(t, core.StatusProgress, rec.Status)
		assert.GreaterOrEqual(t, rec.Progress, last)
		last = rec.Progress
	}
	assert.Equal(t, []int{10, 20, 50, 90}, []int{observed[0].Progress, observed[1].Progress, observed[2].Progress, observed[3].Progress})
}

// gate is a runner that blocks until released and signals when it starts.
type gate struct {
	started chan string
	release chan struct{}
	calls   atomic.Int32
}

func newGate() *gate {
	return &gate{started: make(chan string, 16), release: make(chan struct{})}
}

func (g *gate) Run(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
	g.calls.Add(1)
	g.started <- a.ID
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return succeed(ctx, a, sink)
}

func (g *gate) awaitStart(t *testing.T) string {
	t.Helper()
	select {
	case id := <-g.started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("runner never started")
		return ""
	}
}

func TestSubmit_DeduplicatesActiveJobs(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	g := newGate()
	s := newScheduler(t, records, g)

	first, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	g.awaitStart(t)
	second, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.True(t, s.Active("a1"))

	close(g.release)
	waitJob(t, first)
	assert.Equal(t, int32(1), g.calls.Load())

	third, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	assert.NotSame(t, first, third)
	final := waitJob(t, third)
	assert.Equal(t, 2, final.Attempt)
}

func TestSubmit_FullQueueIsBusy(t *testing.T) {
	records := setupRecords(t)
	for _, id := range []string{"a1", "a2", "a3"} {
		createRecord(t, records, id)
	}
	g := newGate()
	s := newScheduler(t, records, g, WithWorkers(1), WithQueueSize(1))

	_, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	g.awaitStart(t)

	// The dispatcher holds one job while it waits for the busy worker, so
	// up to two more submits may be absorbed before the queue reports busy.
	var busy error
	for _, id := range []string{"a2", "a3"} {
		if _, err := s.Submit(context.Background(), id); err != nil {
			busy = err
		}
	}
	createRecord(t, records, "a4")
	if busy == nil {
		_, busy = s.Submit(context.Background(), "a4")
	}
	assert.ErrorIs(t, busy, core.ErrBusy)
	close(g.release)
}

func TestCancel_QueuedJob(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	createRecord(t, records, "a2")
	g := newGate()
	s := newScheduler(t, records, g, WithWorkers(1))

	running, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	g.awaitStart(t)
	queued, err := s.Submit(context.Background(), "a2")
	require.NoError(t, err)

	require.NoError(t, s.Cancel(context.Background(), "a2"))
	final := waitJob(t, queued)
	assert.Equal(t, core.StatusFailure, final.Status)
	assert.Equal(t, core.KindCancelled, final.ErrorKind)
	assert.NotEmpty(t, final.Error)

	err = s.Cancel(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrNotQueued)
	assert.ErrorIs(t, err, core.ErrConflict)

	close(g.release)
	assert.Equal(t, core.StatusSuccess, waitJob(t, running).Status)
	assert.Equal(t, int32(1), g.calls.Load())

	rec, err := records.GetArtifact(context.Background(), "a2")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailure, rec.Status)
}

func TestAttempt_TimeoutAbandonsCall(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")

	release := make(chan struct{})
	lateReport := make(chan error, 1)
	var calls atomic.Int32
	runner := runnerFunc(func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
		calls.Add(1)
		if err := sink.Report(ctx, 10, "started"); err != nil {
			return nil, err
		}
		<-release // ignores ctx like a stuck parser
		lateReport <- sink.Report(context.Background(), 50, "late")
		return &ingestion.Outcome{}, nil
	})
	s := newScheduler(t, records, runner, WithTimeout(50*time.Millisecond))

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	final := waitJob(t, job)
	assert.Equal(t, core.StatusFailure, final.Status)
	assert.Equal(t, "timeout", final.Error)
	assert.Equal(t, core.KindTimeout, final.ErrorKind)
	assert.Equal(t, 1, final.Attempt)
	assert.Equal(t, int32(1), calls.Load())

	close(release)
	assert.ErrorIs(t, <-lateReport, errAbandoned)

	rec, err := records.GetArtifact(context.Background(), "a1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailure, rec.Status)
	assert.Equal(t, 10, rec.Progress)
}

func TestAttempt_RetriesTransientFailureOnce(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int32
		wantKind  string
	}{
		{"embedding", fmt.Errorf("%w: model offline", core.ErrEmbedding), 2, core.KindEmbedding},
		{"storage", fmt.Errorf("%w: disk full", core.ErrStorage), 2, core.KindStorage},
		{"extraction", fmt.Errorf("%w: bad pdf", core.ErrExtraction), 1, core.KindExtraction},
		{"unclassified", errors.New("boom"), 1, core.KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := setupRecords(t)
			createRecord(t, records, "a1")
			var calls atomic.Int32
			s := newScheduler(t, records, runnerFunc(func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
				calls.Add(1)
				return nil, tt.err
			}))

			job, err := s.Submit(context.Background(), "a1")
			require.NoError(t, err)
			final := waitJob(t, job)

			assert.Equal(t, tt.wantCalls, calls.Load())
			assert.Equal(t, core.StatusFailure, final.Status)
			assert.Equal(t, tt.wantKind, final.ErrorKind)
			assert.Equal(t, tt.err.Error(), final.Error)
			assert.Equal(t, int(tt.wantCalls), final.Attempt)
			assert.False(t, final.Vectorized)
		})
	}
}

func TestAttempt_RetrySucceeds(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	var calls atomic.Int32
	s := newScheduler(t, records, runnerFunc(func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
		if calls.Add(1) == 1 {
			if err := sink.Report(ctx, 10, "started"); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: flaky", core.ErrEmbedding)
		}
		return succeed(ctx, a, sink)
	}))

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	final := waitJob(t, job)
	assert.Equal(t, core.StatusSuccess, final.Status)
	assert.Equal(t, 2, final.Attempt)
	assert.Empty(t, final.Error)
	assert.Empty(t, final.ErrorKind)
}

func TestAttempt_RecordStaysNonTerminalDuringRetry(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	var calls atomic.Int32
	s := newScheduler(t, records, runnerFunc(func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
		if calls.Add(1) == 1 {
			if err := sink.Report(ctx, 20, "embedding"); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("%w: flaky", core.ErrEmbedding)
		}
		if err := sink.Report(ctx, 10, "started"); err != nil {
			return nil, err
		}
		return succeed(ctx, a, sink)
	}), WithRetryDelay(200*time.Millisecond))

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)

	var seen []*core.Artifact
	deadline := time.Now().Add(10 * time.Second)
	for time.Now().Before(deadline) {
		a, err := records.GetArtifact(context.Background(), "a1")
		require.NoError(t, err)
		seen = append(seen, a)
		if a.Status.Terminal() {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	final := waitJob(t, job)
	assert.Equal(t, core.StatusSuccess, final.Status)
	assert.Equal(t, 2, final.Attempt)
	assert.Empty(t, final.Error)

	retrying := false
	progress := 0
	for i, a := range seen {
		if i < len(seen)-1 {
			assert.False(t, a.Status.Terminal(), "record turned %s before the retry finished", a.Status)
		}
		assert.GreaterOrEqual(t, a.Progress, progress)
		progress = a.Progress
		if a.Stage == StageRetrying {
			retrying = true
			assert.Contains(t, a.Error, "flaky")
			assert.Empty(t, a.ErrorKind)
		}
	}
	assert.True(t, retrying, "the backoff should be visible as the retrying stage")
	assert.Equal(t, core.StatusSuccess, seen[len(seen)-1].Status)
}

func TestAttempt_RecoversPanic(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	s := newScheduler(t, records, runnerFunc(func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
		panic("nil map")
	}))

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	final := waitJob(t, job)
	assert.Equal(t, core.StatusFailure, final.Status)
	assert.Equal(t, core.KindInternal, final.ErrorKind)
	assert.Contains(t, final.Error, "nil map")
}

func TestRecover_SubmitsUnfinished(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "pending")
	createRecord(t, records, "started")
	createRecord(t, records, "done")
	ctx := context.Background()

	rec, err := records.GetArtifact(ctx, "started")
	require.NoError(t, err)
	rec.Status, rec.Progress, rec.Attempt = core.StatusProgress, 50, 1
	require.NoError(t, records.UpdateArtifact(ctx, rec))
	rec, err = records.GetArtifact(ctx, "done")
	require.NoError(t, err)
	rec.Status, rec.Progress = core.StatusSuccess, 100
	require.NoError(t, records.UpdateArtifact(ctx, rec))

	var calls atomic.Int32
	s := newScheduler(t, records, runnerFunc(func(ctx context.Context, a *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error) {
		calls.Add(1)
		return succeed(ctx, a, sink)
	}))

	n, err := s.Recover(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.Eventually(t, func() bool {
		for _, id := range []string{"pending", "started"} {
			r, err := records.GetArtifact(ctx, id)
			if err != nil || r.Status != core.StatusSuccess {
				return false
			}
		}
		return true
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(2), calls.Load())

	r, err := records.GetArtifact(ctx, "started")
	require.NoError(t, err)
	assert.Equal(t, 2, r.Attempt)
}

func TestClose_LeavesRunningRecordForRecovery(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	g := newGate()
	s, err := New(records, g)
	require.NoError(t, err)

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	g.awaitStart(t)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	_, err = job.Wait(context.Background())
	assert.ErrorIs(t, err, ErrClosed)

	rec, err := records.GetArtifact(context.Background(), "a1")
	require.NoError(t, err)
	assert.False(t, rec.Status.Terminal())

	_, err = s.Submit(context.Background(), "a1")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestJobWait_ContextExpires(t *testing.T) {
	records := setupRecords(t)
	createRecord(t, records, "a1")
	g := newGate()
	s := newScheduler(t, records, g)

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = job.Wait(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	close(g.release)
	waitJob(t, job)
}

func TestScheduler_WithPipeline(t *testing.T) {
	records, index, backend, err := badger.NewMemoryRepositories()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })
	store, err := blob.NewLocalStore(t.TempDir())
	require.NoError(t, err)

	text := []byte("rivers flow into the sea while mountains stand still")
	require.NoError(t, store.Put(context.Background(), "a1.txt", bytes.NewReader(text), int64(len(text)), "text/plain"))
	createRecord(t, records, "a1")

	pipeline, err := ingestion.NewPipeline(extract.NewRegistry(store), chunk.NewEmbedder(nil, mock.NewMockEmbedder()), index)
	require.NoError(t, err)
	s := newScheduler(t, records, pipeline)

	job, err := s.Submit(context.Background(), "a1")
	require.NoError(t, err)
	final := waitJob(t, job)
	assert.Equal(t, core.StatusSuccess, final.Status)
	assert.True(t, final.Vectorized)
	assert.Equal(t, 1, final.ChunkCount)
	assert.Contains(t, final.TextPreview, "rivers")
	assert.Equal(t, "utf-8", final.Metadata["encoding"])
}
