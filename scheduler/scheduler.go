package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/docvault/core"
	"github.com/poiesic/docvault/ingestion"
	"github.com/poiesic/docvault/storage"
)

// Defaults for a Scheduler.
const (
	DefaultQueueSize  = 64
	DefaultTimeout    = 30 * time.Minute
	DefaultRetryDelay = 5 * time.Second
)

// StageRetrying is the stage shown while a failed attempt waits for its retry.
const StageRetrying = "Retrying"

// one attempt plus at most one automatic retry
const maxAttempts = 2

// Runner executes one processing attempt. *ingestion.Pipeline implements it.
type Runner interface {
	Run(ctx context.Context, artifact *core.Artifact, sink ingestion.ProgressSink) (*ingestion.Outcome, error)
}

// Scheduler dispatches ingestion jobs to a bounded worker pool.
type Scheduler struct {
	records    storage.ArtifactRepository
	runner     Runner
	workers    int
	queueSize  int
	timeout    time.Duration
	retryDelay time.Duration
	logger     *slog.Logger

	pool   *ants.Pool
	queue  chan *Job
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	jobs   map[string]*Job
	closed bool

	running    sync.WaitGroup
	dispatched chan struct{}
}

// Option configures a Scheduler.
type Option func(*Scheduler) error

// WithWorkers sets the worker pool size.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithWorkers(n int) Option {
	return func(s *Scheduler) error {
		if n < 1 {
			n = 1
		}
		s.workers = n
		return nil
	}
}

// WithQueueSize sets how many jobs may wait for a worker before Submit
// returns core.ErrBusy. Default is DefaultQueueSize.
func WithQueueSize(n int) Option {
	return func(s *Scheduler) error {
		if n < 1 {
			return fmt.Errorf("queue size must be positive, got %d", n)
		}
		s.queueSize = n
		return nil
	}
}

// WithTimeout sets the wall-clock limit of one attempt.
func WithTimeout(d time.Duration) Option {
	return func(s *Scheduler) error {
		if d <= 0 {
			return fmt.Errorf("timeout must be positive, got %s", d)
		}
		s.timeout = d
		return nil
	}
}

// WithRetryDelay sets the fixed delay before the automatic retry.
func WithRetryDelay(d time.Duration) Option {
	return func(s *Scheduler) error {
		if d < 0 {
			return fmt.Errorf("retry delay must not be negative, got %s", d)
		}
		s.retryDelay = d
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// New creates a Scheduler and starts its dispatcher.
func New(records storage.ArtifactRepository, runner Runner, opts ...Option) (*Scheduler, error) {
	if records == nil {
		return nil, ErrRepositoryRequired
	}
	if runner == nil {
		return nil, ErrRunnerRequired
	}

	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	s := &Scheduler{
		records:    records,
		runner:     runner,
		workers:    workers,
		queueSize:  DefaultQueueSize,
		timeout:    DefaultTimeout,
		retryDelay: DefaultRetryDelay,
		logger:     slog.Default(),
		jobs:       make(map[string]*Job),
		dispatched: make(chan struct{}),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	s.logger = s.logger.With("component", "scheduler")

	pool, err := ants.NewPool(s.workers)
	if err != nil {
		return nil, err
	}
	s.pool = pool
	s.queue = make(chan *Job, s.queueSize)
	s.ctx, s.cancel = context.WithCancel(context.Background())

	go s.dispatch()
	return s, nil
}

// Submit enqueues a job for artifactID and returns its handle. If the
// artifact already has a queued or running job, that job is returned.
// A full queue returns core.ErrBusy.
func (s *Scheduler) Submit(ctx context.Context, artifactID string) (*Job, error) {
	return s.submit(ctx, artifactID, false)
}

// Recover submits every record left non-terminal, waiting for queue space
// as needed. It returns the number of jobs submitted.
func (s *Scheduler) Recover(ctx context.Context) (int, error) {
	unfinished, err := s.records.ListUnfinished(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	count := 0
	for _, a := range unfinished {
		if _, err := s.submit(ctx, a.ID, true); err != nil {
			return count, err
		}
		count++
	}
	if count > 0 {
		s.logger.Info("recovered unfinished artifacts", "count", count)
	}
	return count, nil
}

func (s *Scheduler) submit(ctx context.Context, artifactID string, wait bool) (*Job, error) {
	if _, err := s.records.GetArtifact(ctx, artifactID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", core.ErrNotFound, artifactID)
		}
		return nil, fmt.Errorf("%w: %w", core.ErrStorage, err)
	}

	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, ErrClosed
		}
		if job, ok := s.jobs[artifactID]; ok {
			s.mu.Unlock()
			return job, nil
		}
		job := newJob(uuid.NewString(), artifactID)
		select {
		case s.queue <- job:
			s.jobs[artifactID] = job
			s.mu.Unlock()
			s.logger.Debug("job queued", "job", job.ID, "artifact", artifactID)
			return job, nil
		default:
		}
		s.mu.Unlock()

		if !wait {
			return nil, core.ErrBusy
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ctx.Done():
			return nil, ErrClosed
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// Cancel removes a queued job before it starts and marks the record FAILURE
// with kind "cancelled". A running job cannot be cancelled.
func (s *Scheduler) Cancel(ctx context.Context, artifactID string) error {
	s.mu.Lock()
	job, ok := s.jobs[artifactID]
	if !ok || !job.cancel() {
		s.mu.Unlock()
		return ErrNotQueued
	}
	delete(s.jobs, artifactID)
	s.mu.Unlock()

	var final *core.Artifact
	err := s.updateRecord(ctx, artifactID, func(a *core.Artifact) error {
		a.Status = core.StatusFailure
		a.Error = core.ErrCancelled.Error()
		a.ErrorKind = core.KindCancelled
		a.Stage = ""
		final = a
		return nil
	})
	job.finish(core.Of(final, err))
	s.logger.Info("job cancelled", "job", job.ID, "artifact", artifactID)
	return err
}

// Job returns the queued or running job for artifactID.
func (s *Scheduler) Job(artifactID string) (*Job, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[artifactID]
	return job, ok
}

// Active reports whether artifactID has a queued or running job.
func (s *Scheduler) Active(artifactID string) bool {
	_, ok := s.Job(artifactID)
	return ok
}

// Close stops accepting jobs, abandons queued and running ones, and releases
// the pool. Abandoned records stay non-terminal for Recover.
func (s *Scheduler) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.cancel()
	<-s.dispatched
	s.running.Wait()
	s.pool.Release()
	return nil
}

func (s *Scheduler) dispatch() {
	defer close(s.dispatched)
	for job := range s.queue {
		if s.ctx.Err() != nil {
			s.complete(job, core.Fail[*core.Artifact](ErrClosed))
			continue
		}
		s.running.Add(1)
		err := s.pool.Submit(func() {
			defer s.running.Done()
			s.execute(job)
		})
		if err != nil {
			s.running.Done()
			s.logger.Error("failed to hand job to pool", "job", job.ID, "err", err)
			s.complete(job, core.Fail[*core.Artifact](err))
		}
	}
}

func (s *Scheduler) execute(job *Job) {
	if !job.claim() {
		return
	}
	logger := s.logger.With("job", job.ID, "artifact", job.ArtifactID)

	attempts := 0
	err := retry.Do(
		func() error {
			attempts++
			return s.attempt(job.ArtifactID, attempts == 1, logger)
		},
		retry.Context(s.ctx),
		retry.Attempts(maxAttempts),
		retry.Delay(s.retryDelay),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(core.IsRetryable),
		retry.OnRetry(func(n uint, err error) {
			logger.Warn("retrying failed attempt", "attempt", n+1, "err", err)
		}),
	)
	if s.ctx.Err() != nil {
		s.complete(job, core.Fail[*core.Artifact](ErrClosed))
		return
	}
	if err != nil {
		logger.Error("job failed", "kind", core.KindOf(err), "err", err)
		if settleErr := s.settle(job.ArtifactID, err); settleErr != nil {
			logger.Warn("failed to record job failure", "err", settleErr)
		}
	}

	final, getErr := s.records.GetArtifact(s.ctx, job.ArtifactID)
	if getErr != nil {
		s.complete(job, core.Fail[*core.Artifact](fmt.Errorf("%w: %w", core.ErrStorage, getErr)))
		return
	}
	s.complete(job, core.Ok(final))
}

// attempt runs the pipeline once. A failure is recorded as FAILURE only
// when no retry follows it; otherwise the record stays non-terminal with
// StageRetrying. A retry keeps the status and progress reached so far.
func (s *Scheduler) attempt(artifactID string, first bool, logger *slog.Logger) error {
	var current *core.Artifact
	err := s.updateRecord(s.ctx, artifactID, func(a *core.Artifact) error {
		a.Attempt++
		if first {
			a.Status = core.StatusStarted
			a.Progress = 0
		}
		a.Stage = ""
		a.Error = ""
		a.ErrorKind = ""
		a.TextPreview = ""
		a.Vectorized = false
		a.ChunkCount = 0
		current = a.Clone()
		return nil
	})
	if err != nil {
		return err
	}
	logger = logger.With("attempt", current.Attempt)
	logger.Debug("attempt started")

	actx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	sink := &recordSink{s: s, artifactID: artifactID, attempt: current.Attempt}
	results := make(chan core.Result[*ingestion.Outcome], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				results <- core.Fail[*ingestion.Outcome](fmt.Errorf("pipeline panic: %v", r))
			}
		}()
		results <- core.Of(s.runner.Run(actx, current, sink))
	}()

	var result core.Result[*ingestion.Outcome]
	select {
	case result = <-results:
		sink.abandon()
	case <-actx.Done():
		sink.abandon()
		if s.ctx.Err() != nil {
			// Shutting down; leave the record for Recover.
			return s.ctx.Err()
		}
		logger.Warn("attempt timed out", "timeout", s.timeout)
		result = core.Fail[*ingestion.Outcome](core.ErrTimeout)
	}

	if s.ctx.Err() != nil {
		return s.ctx.Err()
	}
	if runErr := result.Err(); runErr != nil {
		if errors.Is(runErr, context.DeadlineExceeded) {
			runErr = core.ErrTimeout
		}
		record := s.fail
		if first && core.IsRetryable(runErr) {
			record = s.markRetrying
		}
		if err := record(artifactID, runErr); err != nil {
			return err
		}
		return runErr
	}

	outcome := result.Value()
	return s.updateRecord(s.ctx, artifactID, func(a *core.Artifact) error {
		a.Status = core.StatusSuccess
		a.Progress = 100
		a.Stage = ""
		a.TextPreview = outcome.Preview
		a.Vectorized = outcome.Vectorized
		a.ChunkCount = outcome.ChunkCount
		a.Metadata = outcome.Metadata
		return nil
	})
}

func (s *Scheduler) fail(artifactID string, cause error) error {
	return s.updateRecord(s.ctx, artifactID, func(a *core.Artifact) error {
		a.Status = core.StatusFailure
		a.Error = cause.Error()
		a.ErrorKind = core.KindOf(cause)
		a.Stage = ""
		a.Vectorized = false
		return nil
	})
}

// settle marks the record FAILURE if the job ended without reaching a
// terminal state, as when a retry could not even start.
func (s *Scheduler) settle(artifactID string, cause error) error {
	a, err := s.records.GetArtifact(s.ctx, artifactID)
	if err != nil {
		return err
	}
	if a.Status.Terminal() {
		return nil
	}
	return s.fail(artifactID, cause)
}

// markRetrying keeps the record non-terminal while the retry backs off.
func (s *Scheduler) markRetrying(artifactID string, cause error) error {
	return s.updateRecord(s.ctx, artifactID, func(a *core.Artifact) error {
		a.Stage = StageRetrying
		a.Error = cause.Error()
		a.ErrorKind = ""
		return nil
	})
}

// complete finishes job and frees its artifact for a new submit.
func (s *Scheduler) complete(job *Job, result core.Result[*core.Artifact]) {
	s.mu.Lock()
	if s.jobs[job.ArtifactID] == job {
		delete(s.jobs, job.ArtifactID)
	}
	s.mu.Unlock()
	job.finish(result)
}

// updateRecord applies fn to the current record and stores it.
func (s *Scheduler) updateRecord(ctx context.Context, id string, fn func(*core.Artifact) error) error {
	a, err := s.records.GetArtifact(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	if err := fn(a); err != nil {
		return err
	}
	if err := s.records.UpdateArtifact(ctx, a); err != nil {
		return fmt.Errorf("%w: %w", core.ErrStorage, err)
	}
	return nil
}
