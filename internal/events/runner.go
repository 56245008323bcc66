package events

import (
	"context"
	"sync"
)

// TaskRunner schedules work that must happen after the current unit of work
// has been committed, such as kicking off document analysis once the upload
// transaction is durable.
type TaskRunner interface {
	Go(fn func(ctx context.Context))
}

// AsyncRunner runs tasks on their own goroutines against a base context.
// Wait blocks until all scheduled tasks have returned, for use during
// shutdown.
type AsyncRunner struct {
	base context.Context
	wg   sync.WaitGroup
}

func NewAsyncRunner(base context.Context) *AsyncRunner {
	return &AsyncRunner{base: base}
}

func (r *AsyncRunner) Go(fn func(ctx context.Context)) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(r.base)
	}()
}

func (r *AsyncRunner) Wait() {
	r.wg.Wait()
}

// SyncRunner executes tasks inline. Tests use it to make post-commit work
// deterministic.
type SyncRunner struct {
	Ctx context.Context
}

func (r SyncRunner) Go(fn func(ctx context.Context)) {
	ctx := r.Ctx
	if ctx == nil {
		ctx = context.Background()
	}
	fn(ctx)
}
