// Package poller drives the interval polling of backend jobs: the job list
// refresher, the optimize-completion poller and the active job watcher.
package poller

import (
	"context"
	"sync"
	"time"
)

// TickFunc is one poll. Returning done or an error ends the task.
type TickFunc func(ctx context.Context) (done bool, err error)

// Task is a running scheduled poll. Ticks never overlap: the next tick is
// not started until the previous one has returned.
type Task struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu  sync.Mutex
	err error
}

// Schedule runs fn immediately and then every interval until fn reports
// done, returns an error, ctx ends or Stop is called.
func Schedule(ctx context.Context, interval time.Duration, fn TickFunc) *Task {
	ctx, cancel := context.WithCancel(ctx)
	t := &Task{cancel: cancel, done: make(chan struct{})}

	go func() {
		defer close(t.done)
		defer cancel()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			done, err := fn(ctx)
			if err != nil && ctx.Err() == nil {
				t.mu.Lock()
				t.err = err
				t.mu.Unlock()
				return
			}
			if done || ctx.Err() != nil {
				return
			}

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return t
}

// Stop cancels the task and waits for an in-flight tick to return.
func (t *Task) Stop() {
	t.cancel()
	<-t.done
}

// Done is closed when the task has ended.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task ends and returns the error that ended it, if any.
func (t *Task) Wait() error {
	<-t.done
	return t.Err()
}

// Err returns the error that ended the task, if any.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}
