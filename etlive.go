package etlive

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/etlive/etlive/dashboard"
	"github.com/etlive/etlive/internal/cache"
	"github.com/etlive/etlive/internal/gate"
	"github.com/etlive/etlive/internal/metrics"
	"github.com/etlive/etlive/internal/poller"
	"github.com/etlive/etlive/internal/readapi"
	"github.com/etlive/etlive/internal/registry"
	"github.com/etlive/etlive/internal/relay"
	"github.com/etlive/etlive/internal/server"
	"github.com/etlive/etlive/internal/shutdown"
)

const (
	defaultPollInterval    = time.Second
	defaultPollTimeout     = 10 * time.Second
	defaultShutdownTimeout = 5 * time.Second
	defaultPort            = 8080
)

// ErrShutdownTimeout is returned by [Service.Start] when some component did
// not stop within the shutdown timeout. The service has still stopped
// serving; abandoned polls finish on their own poll timeout.
var ErrShutdownTimeout = shutdown.ErrGraceExceeded

// Service polls ET nodes and serves their latest measurements.
//
// Service is created using [New] with functional options and started with
// [Service.Start]. The typical lifecycle is:
//
//	svc, err := etlive.New(etlive.WithNode(node))
//	if err != nil {
//	    slog.Error("failed to create service", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	svc.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Service struct {
	title           string
	nodes           []Node
	registry        *registry.Registry
	port            int
	pollInterval    time.Duration
	pollTimeout     time.Duration
	shutdownTimeout time.Duration
	staticDir       string
	logger          *slog.Logger
	natsURL         string
	natsSubject     string
	updateCallbacks []func(NodeUpdate)
}

// New creates a new [Service] instance with the given options.
//
// At least one node must be configured via [WithNode] or [WithNodes], and
// node ids must be unique (case-insensitive). Other options have defaults:
//   - Poll interval: 1 second
//   - Poll timeout: 10 seconds
//   - Shutdown timeout: 5 seconds
//   - Port: 8080
//
// Example:
//
//	svc, err := etlive.New(
//	    etlive.WithNodes(n1, n2),
//	    etlive.WithPollInterval(2 * time.Second),
//	    etlive.WithPort(9090),
//	)
func New(opts ...Option) (*Service, error) {
	cfg := &serviceConfig{
		nodes:           []Node{},
		pollInterval:    defaultPollInterval,
		pollTimeout:     defaultPollTimeout,
		shutdownTimeout: defaultShutdownTimeout,
		port:            defaultPort,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if len(cfg.nodes) == 0 {
		return nil, errors.New("at least one node is required")
	}

	regNodes := make([]registry.Node, 0, len(cfg.nodes))
	for _, n := range cfg.nodes {
		regNodes = append(regNodes, n.toRegistryNode())
	}
	reg, err := registry.New(regNodes)
	if err != nil {
		return nil, err
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		title:           cfg.title,
		nodes:           cfg.nodes,
		registry:        reg,
		port:            cfg.port,
		pollInterval:    cfg.pollInterval,
		pollTimeout:     cfg.pollTimeout,
		shutdownTimeout: cfg.shutdownTimeout,
		staticDir:       cfg.staticDir,
		logger:          logger,
		natsURL:         cfg.natsURL,
		natsSubject:     cfg.natsSubject,
		updateCallbacks: cfg.updateCallbacks,
	}, nil
}

// Start begins polling nodes and serving the read API.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - Every node is polled immediately, then once per poll interval
//   - The HTTP server serves /api/data/all, /api/data/{node}, /api/sse,
//     /metrics, /healthz and the front end
//   - Node updates are published to NATS when configured
//
// On cancellation the HTTP server and the collector are stopped concurrently
// within the shutdown timeout.
//
// Returns nil on graceful shutdown, an error wrapping [ErrShutdownTimeout]
// if some component did not stop in time, or an error if the HTTP server or
// the NATS connection fails to start.
func (s *Service) Start(ctx context.Context) error {
	s.logger.Info("etlive starting", "node_count", s.registry.Len())
	s.logger.Info("polling configured",
		"interval", s.pollInterval.String(),
		"timeout", s.pollTimeout.String(),
	)

	// check if context already cancelled
	if ctx.Err() != nil {
		return nil
	}

	ids := s.registry.IDs()
	store := cache.NewMemoryCache(ids)
	api := readapi.New(store, s.registry)
	m := metrics.New()
	coord := shutdown.NewCoordinator(s.shutdownTimeout, s.logger)

	// subscribe before polling starts so no update is missed
	updates := store.Subscribe()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for e := range updates {
			s.handleUpdate(api, e)
		}
	}()

	subscriptions := []<-chan cache.Entry{updates}

	// cleanup stops the update consumers once nothing writes anymore
	cleanup := func() {
		for _, ch := range subscriptions {
			store.Unsubscribe(ch)
		}
		wg.Wait()
	}

	if s.natsURL != "" {
		pub, err := relay.Connect(s.natsURL, s.natsSubject, api, s.logger)
		if err != nil {
			cleanup()
			return err
		}
		relayUpdates := store.Subscribe()
		subscriptions = append(subscriptions, relayUpdates)

		relayCtx, cancelRelay := context.WithCancel(context.Background())
		relayDone := make(chan struct{})
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer close(relayDone)
			pub.Run(relayCtx, relayUpdates)
		}()
		coord.Register("relay", func(ctx context.Context) error {
			// queued updates go out before the connection drains
			cancelRelay()
			select {
			case <-relayDone:
			case <-ctx.Done():
				return ctx.Err()
			}
			return pub.Close(ctx)
		})
	}

	httpServer := server.NewServer(api, store, server.Config{
		Port:      s.port,
		StaticDir: s.staticDir,
		Assets:    dashboard.Assets,
		Title:     s.title,
		Metrics:   m.Handler(),
		Logger:    s.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		_ = coord.Shutdown(context.Background())
		cleanup()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	s.logger.Info("http server listening", "url", fmt.Sprintf("http://localhost:%d", s.port))

	scheduler := poller.NewScheduler(s.registry.Nodes(), store, poller.Config{
		Interval: s.pollInterval,
		Timeout:  s.pollTimeout,
		Gates:    gate.NewTable(ids),
		Metrics:  m,
		Logger:   s.logger,
	})
	scheduler.Start(ctx)

	coord.Register("http", httpServer.Shutdown)
	coord.Register("collector", scheduler.Drain)

	<-ctx.Done()

	err := coord.Shutdown(context.Background())
	cleanup()

	if err != nil {
		s.logger.Warn("etlive stopped with errors", "error", err)
		return err
	}
	s.logger.Info("etlive stopped")
	return nil
}

// handleUpdate logs a cache write and runs the update callbacks.
func (s *Service) handleUpdate(api *readapi.API, e cache.Entry) {
	entry := api.Entry(e)
	s.logger.Debug("node updated",
		"node", entry.NodeID,
		"status", string(entry.Status),
		"last_update", entry.LastUpdate,
	)

	if len(s.updateCallbacks) == 0 {
		return
	}

	for _, cb := range s.updateCallbacks {
		// each callback gets its own copy
		update := NodeUpdate{
			NodeID:    entry.NodeID,
			Location:  entry.Location,
			Status:    Status(entry.Status),
			UpdatedAt: e.UpdatedAt,
		}
		if e.Measurement != nil {
			update.Measurement = e.Measurement.Clone()
		}
		invokeCallbackSafe(cb, update, s.logger)
	}
}

// Nodes returns a copy of the configured nodes.
func (s *Service) Nodes() []Node {
	cp := make([]Node, len(s.nodes))
	copy(cp, s.nodes)
	return cp
}

// Port returns the configured HTTP port.
func (s *Service) Port() int {
	return s.port
}

// PollInterval returns the configured time between collection ticks.
func (s *Service) PollInterval() time.Duration {
	return s.pollInterval
}

// PollTimeout returns the configured per-poll timeout.
func (s *Service) PollTimeout() time.Duration {
	return s.pollTimeout
}

// ShutdownTimeout returns the configured shutdown grace period.
func (s *Service) ShutdownTimeout() time.Duration {
	return s.shutdownTimeout
}

// invokeCallbackSafe calls an update callback with panic recovery.
// Panics are logged with a correlation ID but do not propagate.
func invokeCallbackSafe(cb func(NodeUpdate), update NodeUpdate, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("update callback panicked",
				"correlation_id", uuid.NewString(),
				"panic", r,
				"node", update.NodeID,
			)
		}
	}()
	cb(update)
}
