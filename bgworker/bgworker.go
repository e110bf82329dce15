// Package bgworker runs flow jobs on a bounded pond pool.
package bgworker

import (
	"context"
	"errors"

	"github.com/alitto/pond/v2"
	"github.com/keyapp-labs/flowkit/envutil"
	"github.com/keyapp-labs/flowkit/logger"
	"github.com/keyapp-labs/flowkit/shutdown"
)

const defaultWorkerCount = 10

// ErrWorkerCount rejects a FLOW_WORKER_COUNT below one.
var ErrWorkerCount = errors.New("worker count must be positive")

// Pool is a fixed-size worker pool.
type Pool struct {
	pool pond.Pool
}

// New returns a pool running at most size jobs at once.
func New(size int) *Pool {
	return &Pool{pool: pond.NewPool(max(size, 1))}
}

// FromEnv sizes a pool with FLOW_WORKER_COUNT and stops it on shutdown.
func FromEnv(ctx context.Context) *Pool {
	count := envutil.Int("FLOW_WORKER_COUNT",
		envutil.Default(defaultWorkerCount),
		envutil.Validate(positive)).ValueOrElse(defaultWorkerCount)

	logger.Get(ctx).Debug("Initializing flow worker pool", "count", count)

	p := New(count)

	shutdown.BeforeShutdown("bgworker", func(ctx context.Context) error {
		logger.Get(ctx).Debug("Stopping flow worker pool")
		p.Stop()

		return nil
	})

	return p
}

// Submit queues job. A job whose ctx ended before it started fails with
// ctx.Err() without running. The returned Task's Wait yields the job's error.
func (p *Pool) Submit(ctx context.Context, job func(ctx context.Context) error) pond.Task { //nolint:ireturn
	return p.pool.SubmitErr(func() error {
		if err := ctx.Err(); err != nil {
			return err
		}

		return job(ctx)
	})
}

// Stop waits for queued jobs and stops the pool. Later submissions fail.
func (p *Pool) Stop() {
	p.pool.StopAndWait()
}

func positive(n int) error {
	if n < 1 {
		return ErrWorkerCount
	}

	return nil
}
