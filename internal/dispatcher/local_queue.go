package dispatcher

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blockedby/teamsheet/internal/logger"
)

// LocalQueue is an in-process JobQueue for deployments without NATS.
// Jobs live in memory only and are lost on restart. Jobs already accepted
// are still delivered during shutdown.
type LocalQueue struct {
	jobs       chan DispatchJob
	processor  JobProcessor
	workers    int
	retryDelay time.Duration
	log        *logger.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	closed bool
}

// NewLocalQueue creates a queue with the given capacity and worker count.
func NewLocalQueue(processor JobProcessor, capacity, workers int, log *logger.Logger) *LocalQueue {
	if capacity < 1 {
		capacity = 1
	}
	if workers < 1 {
		workers = 1
	}
	return &LocalQueue{
		jobs:       make(chan DispatchJob, capacity),
		processor:  processor,
		workers:    workers,
		retryDelay: time.Second,
		log:        log,
	}
}

// Enqueue accepts a job without blocking. It returns ErrQueueFull when the
// buffer is full.
func (q *LocalQueue) Enqueue(_ context.Context, job DispatchJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errors.New("dispatch queue is closed")
	}

	select {
	case q.jobs <- job:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the workers. Cancelling ctx stops intake like Close does,
// but the workers keep running until the buffer is drained. Jobs run on a
// context that keeps ctx's values and ignores its cancellation.
func (q *LocalQueue) Start(ctx context.Context) {
	runCtx := context.WithoutCancel(ctx)
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.work(runCtx)
	}

	if done := ctx.Done(); done != nil {
		go func() {
			<-done
			q.stopIntake()
		}()
	}

	q.log.Info().Int("workers", q.workers).Msg("local dispatch queue started")
}

// Close stops accepting jobs and waits for the workers to drain the buffer.
func (q *LocalQueue) Close() {
	q.stopIntake()
	q.wg.Wait()
}

func (q *LocalQueue) stopIntake() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
}

func (q *LocalQueue) work(ctx context.Context) {
	defer q.wg.Done()

	for job := range q.jobs {
		q.run(ctx, job)
	}
}

func (q *LocalQueue) run(ctx context.Context, job DispatchJob) {
	err := q.processor.Process(ctx, job)
	if err == nil {
		return
	}

	log := q.log.WithRequestID(job.RequestID)
	if errors.Is(err, ErrProcessingInFlight) {
		log.Debug().Str("message_id", job.MessageID.String()).Msg("message busy, requeueing job")
		time.AfterFunc(q.retryDelay, func() {
			if err := q.Enqueue(ctx, job); err != nil {
				log.Error().Err(err).Str("message_id", job.MessageID.String()).Msg("failed to requeue job")
			}
		})
		return
	}

	log.Error().Err(err).Str("message_id", job.MessageID.String()).Msg("dispatch job failed")
}
