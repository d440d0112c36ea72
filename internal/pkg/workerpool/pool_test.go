package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool_RunsEverySubmittedJob(t *testing.T) {
	ctx := context.Background()
	pool := NewWorkerPool(ctx, 3, 1)

	var ran atomic.Int64
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.Submit(ctx, func(context.Context) { ran.Add(1) }))
	}

	pool.Wait()
	assert.Equal(t, int64(20), ran.Load())

	pool.Shutdown(ctx)
	assert.ErrorIs(t, pool.Submit(ctx, func(context.Context) {}), ErrPoolClosed)
}

func TestWorkerPool_SubmitRespectsContext(t *testing.T) {
	pool := NewWorkerPool(context.Background(), 1, 0)

	block := make(chan struct{})
	require.NoError(t, pool.Submit(context.Background(), func(context.Context) { <-block }))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	// the only worker is busy and there is no queue
	err := pool.Submit(ctx, func(context.Context) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(block)
	pool.Shutdown(context.Background())
}

func TestWithRetry(t *testing.T) {
	transient := errors.New("connection reset")

	tests := []struct {
		name      string
		failures  int
		permanent bool
		wantCalls int
	}{
		{name: "succeeds first time", failures: 0, wantCalls: 1},
		{name: "succeeds after retries", failures: 2, wantCalls: 3},
		{name: "gives up after max retries", failures: 10, wantCalls: 3},
		{name: "stops on permanent error", failures: 10, permanent: true, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			job := WithRetry(3, time.Millisecond, func(context.Context) error {
				calls++
				if calls <= tt.failures {
					if tt.permanent {
						return Permanent(transient)
					}
					return transient
				}
				return nil
			})

			job(context.Background())
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestWithRetry_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	WithRetry(3, time.Millisecond, func(context.Context) error {
		calls++
		return nil
	})(ctx)

	assert.Zero(t, calls)
}

func TestPermanent(t *testing.T) {
	assert.Nil(t, Permanent(nil))

	base := errors.New("not found")
	assert.ErrorIs(t, Permanent(base), base)
}
