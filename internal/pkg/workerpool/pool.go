package workerpool

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

var ErrPoolClosed = errors.New("worker pool is shut down")

type Job func(ctx context.Context)

type WorkerPool struct {
	queue chan Job
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewWorkerPool starts workerCount workers. Jobs receive ctx and are expected
// to return early once it is canceled.
func NewWorkerPool(ctx context.Context, workerCount int, queueSize int) *WorkerPool {
	if workerCount < 1 {
		workerCount = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	pool := &WorkerPool{
		queue: make(chan Job, queueSize),
	}

	for i := 0; i < workerCount; i++ {
		go pool.worker(ctx)
	}

	return pool
}

func (p *WorkerPool) worker(ctx context.Context) {
	// drain until Shutdown closes the queue so every submitted job is accounted for
	for job := range p.queue {
		job(ctx)
		p.wg.Done()
	}
}

// Submit queues job, blocking while the queue is full.
func (p *WorkerPool) Submit(ctx context.Context, job Job) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}

	p.wg.Add(1)
	select {
	case p.queue <- job:
		return nil
	case <-ctx.Done():
		p.wg.Done()
		return ctx.Err()
	}
}

// Wait blocks until every submitted job has run.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

func (p *WorkerPool) Shutdown(ctx context.Context) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	done := make(chan struct{})

	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		log.Warn().Msg("worker pool shutdown timed out")
	case <-done:
		log.Debug().Msg("worker pool shutdown complete")
	}
}

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// WithRetry runs job up to retries times, waiting delay between attempts.
// It stops early on success, on a Permanent error, or when ctx is canceled.
func WithRetry(retries int, delay time.Duration, job func(ctx context.Context) error) Job {
	return func(ctx context.Context) {
		for i := 0; i < retries; i++ {
			if ctx.Err() != nil {
				log.Debug().Msg("job canceled before execution")
				return
			}

			err := job(ctx)
			if err == nil {
				return
			}

			var permanent *permanentError
			if errors.As(err, &permanent) {
				log.Debug().Err(err).Msg("job failed permanently")
				return
			}

			log.Warn().Err(err).Int("attempt", i+1).Int("retries", retries).Msg("job failed")

			if i == retries-1 {
				break
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(delay):
			}
		}
		log.Error().Int("retries", retries).Msg("job failed after max retries")
	}
}
