package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/etlive/etlive/internal/cache"
	"github.com/etlive/etlive/internal/gate"
	"github.com/etlive/etlive/internal/metrics"
	"github.com/etlive/etlive/internal/registry"
	"github.com/etlive/etlive/telemetry"
)

// nodePoller performs a single poll. [Client] is the production implementation.
type nodePoller interface {
	Poll(ctx context.Context, node registry.Node, timeout time.Duration) (*telemetry.Measurement, error)
}

// Config holds the scheduler's tuning and collaborators.
type Config struct {
	// Interval is the time between ticks.
	Interval time.Duration

	// Timeout bounds each individual poll.
	Timeout time.Duration

	// Gates admits at most one poll per node. If nil, a table is built
	// from the scheduled nodes.
	Gates *gate.Table

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Logger is required.
	Logger *slog.Logger
}

// Scheduler drives the periodic collection of node measurements.
//
// On every tick, each node whose previous poll has finished gets a new
// poll task; busy nodes are skipped for that tick. A task writes its
// outcome to the cache: the decoded measurement on success, absent
// otherwise. Tasks run independently so a slow node never delays others.
//
// All lifecycle methods (Start, Stop, Drain) are safe for concurrent use.
type Scheduler struct {
	nodes    []registry.Node
	cache    cache.Writer
	gates    *gate.Table
	interval time.Duration
	timeout  time.Duration
	client   nodePoller
	metrics  *metrics.Metrics
	logger   *slog.Logger

	// last known online state per node, used to log transitions only
	online map[string]*atomic.Bool

	cancel context.CancelFunc
	loopWG sync.WaitGroup // tick loop
	pollWG sync.WaitGroup // in-flight poll tasks

	mu      sync.Mutex
	started bool
	stopped bool
}

// NewScheduler creates a new [Scheduler] that writes into w.
//
// The scheduler must be started with [Scheduler.Start] and stopped with
// [Scheduler.Stop] or [Scheduler.Drain].
func NewScheduler(nodes []registry.Node, w cache.Writer, cfg Config) *Scheduler {
	gates := cfg.Gates
	if gates == nil {
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		gates = gate.NewTable(ids)
	}

	online := make(map[string]*atomic.Bool, len(nodes))
	for _, n := range nodes {
		online[n.ID] = &atomic.Bool{}
	}

	return &Scheduler{
		nodes:    nodes,
		cache:    w,
		gates:    gates,
		interval: cfg.Interval,
		timeout:  cfg.Timeout,
		client:   NewClient(),
		metrics:  cfg.Metrics,
		logger:   cfg.Logger,
		online:   online,
	}
}

// Start begins the tick loop in a background goroutine.
//
// The first tick fires immediately, subsequent ones every interval until
// [Scheduler.Stop] is called or ctx is cancelled.
//
// If ctx is nil, context.Background() is used as the parent context.
// Start is idempotent; subsequent calls after the first are no-ops.
// If Stop was called before Start, Start is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.stopped {
		s.mu.Unlock()
		return
	}
	s.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.loopWG.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.loopWG.Done()

		s.tick(loopCtx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-loopCtx.Done():
				return
			case <-ticker.C:
				s.tick(loopCtx)
			}
		}
	}()
}

// Stop halts the tick loop and waits for it to exit.
//
// No new poll starts after Stop returns. Polls already in flight keep
// running until they finish or hit their own timeout; use [Scheduler.Drain]
// to wait for them.
//
// Stop is idempotent and safe to call multiple times. Calling Stop before
// Start is a safe no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.stopped {
		s.stopped = true
		if s.cancel != nil {
			s.cancel()
		}
	}
	s.mu.Unlock()

	s.loopWG.Wait()
}

// Drain stops the scheduler and waits for in-flight polls to finish.
//
// It returns ctx.Err() if ctx ends first; the remaining polls are
// abandoned and complete on their own timeout.
func (s *Scheduler) Drain(ctx context.Context) error {
	s.Stop()

	done := make(chan struct{})
	go func() {
		s.pollWG.Wait()
		if c, ok := s.client.(interface{ Close() }); ok {
			c.Close()
		}
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// tick admits one poll per idle node.
func (s *Scheduler) tick(ctx context.Context) {
	if s.metrics != nil {
		s.metrics.Ticks.Inc()
	}

	for _, node := range s.nodes {
		if ctx.Err() != nil {
			return
		}
		if !s.gates.TryAcquire(node.ID) {
			s.logger.Debug("poll skipped, previous still in flight", "node", node.ID)
			if s.metrics != nil {
				s.metrics.PollsSkipped.WithLabelValues(node.ID).Inc()
			}
			continue
		}

		s.pollWG.Add(1)
		if s.metrics != nil {
			s.metrics.PollsActive.Inc()
		}
		// polls outlive the tick loop; each one is bounded by its own timeout
		go s.pollNode(context.WithoutCancel(ctx), node)
	}
}

// pollNode runs one poll task and records its outcome.
// The node's gate is released on every path, including panics.
func (s *Scheduler) pollNode(ctx context.Context, node registry.Node) {
	start := time.Now()
	outcome := metrics.OutcomeOK

	defer func() {
		if s.metrics != nil {
			s.metrics.PollsActive.Dec()
			s.metrics.ObservePoll(node.ID, outcome, time.Since(start).Seconds())
		}
		s.gates.Release(node.ID)
		s.pollWG.Done()
	}()

	m, err := s.safePoll(ctx, node)
	if err != nil {
		outcome = outcomeOf(err)
		m = nil
	}

	if setErr := s.cache.Set(node.ID, m); setErr != nil {
		s.logger.Error("cache write failed", "node", node.ID, "error", setErr)
		return
	}

	s.logTransition(node, m != nil, err)
}

// safePoll calls the poller with panic recovery.
// A panic is logged with a correlation ID and reported as an error.
func (s *Scheduler) safePoll(ctx context.Context, node registry.Node) (m *telemetry.Measurement, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()

			// log full context server-side for debugging
			s.logger.Error("poll panic",
				"node", node.ID,
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)

			m = nil
			err = &panicError{correlationID: correlationID}
		}
	}()
	return s.client.Poll(ctx, node, s.timeout)
}

func (s *Scheduler) logTransition(node registry.Node, online bool, err error) {
	state := s.online[node.ID]
	if state == nil {
		return
	}
	was := state.Swap(online)

	switch {
	case online && !was:
		s.logger.Info("node online", "node", node.ID, "location", node.Location)
	case !online && was:
		s.logger.Warn("node offline", "node", node.ID, "location", node.Location, "error", err)
	case !online:
		s.logger.Debug("poll failed", "node", node.ID, "error", err)
	}
}

type panicError struct {
	correlationID string
}

func (e *panicError) Error() string {
	return fmt.Sprintf("poll panic (correlation_id: %s)", e.correlationID)
}

// outcomeOf maps a poll error to the metrics outcome label.
func outcomeOf(err error) string {
	var pe *PollError
	if errors.As(err, &pe) {
		return string(pe.Kind)
	}
	var panicErr *panicError
	if errors.As(err, &panicErr) {
		return metrics.OutcomePanic
	}
	return string(KindConnection)
}
