package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/finance-client/internal/jobs"
	"github.com/dvloznov/finance-client/internal/logger"
)

// DefaultWorkerCount is the number of console jobs run at once.
const DefaultWorkerCount = 2

// Queue runs console jobs on a fixed set of goroutines. Publish blocks while
// the buffer is full; Stop unblocks it with jobs.ErrQueueClosed.
type Queue struct {
	pending chan *jobs.Job
	stopped chan struct{}
	store   jobs.JobStore
	workers int

	// RetryDelay returns the wait before the given retry attempt. Nil means
	// one second per attempt.
	RetryDelay func(attempt int) time.Duration

	mu         sync.Mutex
	closed     bool
	publishing sync.WaitGroup
	wg         sync.WaitGroup
}

// NewQueue creates a queue holding up to bufferSize waiting jobs. store may
// be nil when job status is not queried.
func NewQueue(bufferSize, workerCount int, store jobs.JobStore) *Queue {
	if workerCount <= 0 {
		workerCount = DefaultWorkerCount
	}
	return &Queue{
		pending: make(chan *jobs.Job, bufferSize),
		stopped: make(chan struct{}),
		store:   store,
		workers: workerCount,
	}
}

// Publish records job as pending and hands it to a worker.
func (q *Queue) Publish(ctx context.Context, job *jobs.Job) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return jobs.ErrQueueClosed
	}
	q.publishing.Add(1)
	q.mu.Unlock()
	defer q.publishing.Done()

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = jobs.JobStatusPending

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			return fmt.Errorf("Publish: saving job: %w", err)
		}
	}

	return q.enqueue(ctx, job)
}

// enqueue waits for buffer space without holding q.mu, so Stop can always
// proceed. Stop drains the buffer only after every enqueue has returned. A
// job that never made it into the buffer is marked failed.
func (q *Queue) enqueue(ctx context.Context, job *jobs.Job) error {
	var err error
	select {
	case q.pending <- job:
		return nil
	case <-ctx.Done():
		err = ctx.Err()
	case <-q.stopped:
		err = jobs.ErrQueueClosed
	}

	q.finish(context.WithoutCancel(ctx), job, jobs.JobStatusFailed, fmt.Sprintf("not queued: %v", err))
	return err
}

// Start launches the workers. Each job is passed to handler with ctx.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return jobs.ErrQueueClosed
	}

	q.wg.Add(q.workers)
	for range q.workers {
		go q.work(ctx, handler)
	}
	return nil
}

func (q *Queue) work(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-q.stopped:
			return
		case job := <-q.pending:
			q.run(ctx, job, handler)
		}
	}
}

// run executes one attempt of job and records the outcome.
func (q *Queue) run(ctx context.Context, job *jobs.Job, handler jobs.JobHandler) {
	log := logger.FromContext(ctx).With().Str("job_id", job.ID).Str("job_type", string(job.Type)).Logger()

	started := time.Now().UTC()
	job.Status = jobs.JobStatusRunning
	job.StartedAt, job.CompletedAt = &started, nil
	q.save(ctx, log, job)

	err := handler(ctx, job)

	completed := time.Now().UTC()
	job.CompletedAt = &completed

	switch {
	case err == nil:
		job.Status, job.Error = jobs.JobStatusCompleted, ""
		log.Info().Dur("duration", completed.Sub(started)).Msg("Job completed")
		q.save(ctx, log, job)
	case job.RetryCount < job.MaxRetries:
		job.RetryCount++
		job.Status, job.Error = jobs.JobStatusRetrying, err.Error()
		log.Warn().Err(err).Int("retry", job.RetryCount).Int("max_retries", job.MaxRetries).Msg("Job failed, retrying")
		q.save(ctx, log, job)
		q.scheduleRetry(ctx, job)
	default:
		job.Status, job.Error = jobs.JobStatusFailed, err.Error()
		log.Error().Err(err).Msg("Job failed")
		q.save(ctx, log, job)
	}
}

func (q *Queue) scheduleRetry(ctx context.Context, job *jobs.Job) {
	delay := time.Duration(job.RetryCount) * time.Second
	if q.RetryDelay != nil {
		delay = q.RetryDelay(job.RetryCount)
	}

	time.AfterFunc(delay, func() {
		if q.isClosed() {
			q.finish(context.WithoutCancel(ctx), job, jobs.JobStatusFailed, "not retried: "+jobs.ErrQueueClosed.Error())
			return
		}
		job.StartedAt, job.CompletedAt = nil, nil
		if err := q.Publish(ctx, job); err != nil {
			log := logger.FromContext(ctx)
			log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to requeue job")
		}
	})
}

// finish moves job to a terminal status outside of a worker.
func (q *Queue) finish(ctx context.Context, job *jobs.Job, status jobs.JobStatus, msg string) {
	job.Status, job.Error = status, msg
	if q.store == nil {
		return
	}
	if err := q.store.UpdateJobStatus(ctx, job.ID, status, msg); err != nil {
		log := logger.FromContext(ctx)
		log.Error().Err(err).Str("job_id", job.ID).Msg("Failed to record job status")
	}
}

func (q *Queue) save(ctx context.Context, log zerolog.Logger, job *jobs.Job) {
	if q.store == nil {
		return
	}
	if err := q.store.SaveJob(ctx, job); err != nil {
		log.Error().Err(err).Str("status", string(job.Status)).Msg("Failed to record job status")
	}
}

func (q *Queue) isClosed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Stop refuses new jobs, releases blocked publishers and waits for running
// jobs until ctx ends. Jobs still buffered when the workers exit are marked
// failed.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.stopped)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.publishing.Wait()
		q.wg.Wait()
		q.drain()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Queue) drain() {
	for {
		select {
		case job := <-q.pending:
			q.finish(context.Background(), job, jobs.JobStatusFailed, "not run: "+jobs.ErrQueueClosed.Error())
		default:
			return
		}
	}
}

// Close stops the queue without a deadline.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var (
	_ jobs.Publisher = (*Queue)(nil)
	_ jobs.Consumer  = (*Queue)(nil)
)
