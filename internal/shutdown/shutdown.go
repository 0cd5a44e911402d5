// Package shutdown coordinates process termination.
//
// [WithSignals] turns SIGINT and SIGTERM into context cancellation. A
// [Coordinator] then runs the registered stop tasks (HTTP server, collector,
// relay) concurrently under one grace period and reports the ones that did
// not finish in time.
package shutdown

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"
)

// ErrGraceExceeded is joined into the result of [Coordinator.Shutdown] when
// at least one task was still running at the end of the grace period.
var ErrGraceExceeded = errors.New("shutdown grace period exceeded")

// Task stops one component. It must return once ctx is done.
type Task func(ctx context.Context) error

// WithSignals returns a context that is cancelled on SIGINT or SIGTERM.
//
// Only a received signal is logged; cancellation through parent or stop is
// silent. The returned stop function releases the signal registration; a
// second signal after stop terminates the process with the default behavior.
func WithSignals(parent context.Context, logger *slog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig.String())
			cancel()
		case <-ctx.Done():
		}
	}()

	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}

type task struct {
	name string
	fn   Task
}

// Coordinator runs named stop tasks within a grace period.
//
// Tasks are registered during startup and run concurrently by
// [Coordinator.Shutdown]. Coordinator is safe for concurrent use.
type Coordinator struct {
	grace  time.Duration
	logger *slog.Logger

	mu    sync.Mutex
	tasks []task
	once  sync.Once
	err   error
}

// NewCoordinator creates a [Coordinator] with the given grace period.
func NewCoordinator(grace time.Duration, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		grace:  grace,
		logger: logger,
	}
}

// Register adds a stop task. Tasks registered after Shutdown started are ignored.
func (c *Coordinator) Register(name string, fn Task) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tasks = append(c.tasks, task{name: name, fn: fn})
}

// Shutdown runs every registered task concurrently and waits until all of
// them return or the grace period (bounded by ctx) ends.
//
// Tasks still running at the deadline are logged and abandoned. The result
// joins every task error, plus [ErrGraceExceeded] if the deadline was hit.
// Only the first call does any work; later calls return the same result.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.run(ctx)
	})
	return c.err
}

func (c *Coordinator) run(ctx context.Context) error {
	c.mu.Lock()
	tasks := make([]task, len(c.tasks))
	copy(tasks, c.tasks)
	c.tasks = nil
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, c.grace)
	defer cancel()

	c.logger.Info("shutting down", "tasks", len(tasks), "grace", c.grace.String())

	type result struct {
		idx int
		err error
	}
	results := make(chan result, len(tasks))

	pending := make(map[int]string, len(tasks))
	for i, t := range tasks {
		i, t := i, t
		pending[i] = t.name
		go func() {
			results <- result{idx: i, err: runSafe(ctx, t.fn)}
		}()
	}

	var errs []error
	for len(pending) > 0 {
		select {
		case r := <-results:
			name := pending[r.idx]
			delete(pending, r.idx)
			if r.err != nil {
				c.logger.Error("shutdown task failed", "task", name, "error", r.err)
				errs = append(errs, fmt.Errorf("%s: %w", name, r.err))
				continue
			}
			c.logger.Debug("shutdown task finished", "task", name)
		case <-ctx.Done():
			for _, name := range pending {
				c.logger.Warn("did not finish in time", "task", name)
			}
			errs = append(errs, ErrGraceExceeded)
			return errors.Join(errs...)
		}
	}

	c.logger.Info("shutdown complete")
	return errors.Join(errs...)
}

// runSafe calls fn with panic recovery.
func runSafe(ctx context.Context, fn Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
