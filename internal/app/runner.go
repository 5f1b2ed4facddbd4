package app

import (
	"context"
	"log/slog"
	"sync"
)

// Runner manages background tasks that share one cancellable context.
type Runner struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// OnError is called when a task returns an error. Optional.
	OnError func(task string, err error)
}

// NewRunner creates a Runner whose tasks stop when parent is done or Stop is
// called.
func NewRunner(parent context.Context) *Runner {
	ctx, cancel := context.WithCancel(parent)
	return &Runner{ctx: ctx, cancel: cancel}
}

// Go starts fn in the background. Tasks started after Stop are not run.
func (r *Runner) Go(name string, fn func(ctx context.Context) error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.ctx.Err() != nil {
		slog.Warn("runner stopped, task not started", "task", name)
		return
	}

	ctx := r.ctx
	r.wg.Go(func() {
		slog.Debug("task started", "task", name)
		if err := fn(ctx); err != nil {
			slog.Error("task failed", "task", name, "error", err)
			if r.OnError != nil {
				r.OnError(name, err)
			}
			return
		}
		slog.Debug("task finished", "task", name)
	})
}

// Stop cancels all tasks and waits for them to return. Safe to call twice.
func (r *Runner) Stop() {
	r.mu.Lock()
	r.cancel()
	r.mu.Unlock()

	r.wg.Wait()
}

// Done is closed when the runner is stopped or its parent is done.
func (r *Runner) Done() <-chan struct{} {
	return r.ctx.Done()
}
