package etlive

import (
	"errors"
	"log/slog"
	"time"
)

// serviceConfig holds mutable state during Service construction.
type serviceConfig struct {
	title           string
	nodes           []Node
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

// Option is a function that configures a [Service] during construction.
//
// Option implements the functional options pattern, allowing optional
// configuration to be passed to [New] in a type-safe, extensible way.
// Options return an error if validation fails.
type Option func(*serviceConfig) error

// WithNode adds a single [Node] to the polling list.
//
// Can be called multiple times. At least one node must be configured for
// [New] to succeed.
func WithNode(n Node) Option {
	return func(cfg *serviceConfig) error {
		cfg.nodes = append(cfg.nodes, n)
		return nil
	}
}

// WithNodes adds multiple [Node] values to the polling list.
//
// Equivalent to calling [WithNode] for each node.
//
// Example:
//
//	svc, err := etlive.New(
//	    etlive.WithNodes(n1, n2, n3),
//	)
func WithNodes(nodes ...Node) Option {
	return func(cfg *serviceConfig) error {
		cfg.nodes = append(cfg.nodes, nodes...)
		return nil
	}
}

// WithPollInterval sets the time between collection ticks.
//
// Every tick starts a poll for each node whose previous poll has finished.
// Defaults to 1 second.
//
// Returns an error if the duration is zero or negative.
func WithPollInterval(d time.Duration) Option {
	return func(cfg *serviceConfig) error {
		if d <= 0 {
			return errors.New("poll interval must be positive")
		}
		cfg.pollInterval = d
		return nil
	}
}

// WithPollTimeout bounds each individual poll. A node that has not answered
// within the timeout is shown offline until its next successful poll.
// Defaults to 10 seconds.
//
// Returns an error if the duration is zero or negative.
func WithPollTimeout(d time.Duration) Option {
	return func(cfg *serviceConfig) error {
		if d <= 0 {
			return errors.New("poll timeout must be positive")
		}
		cfg.pollTimeout = d
		return nil
	}
}

// WithShutdownTimeout sets the grace period given to the HTTP server and
// in-flight polls when the service stops. Defaults to 5 seconds.
//
// Returns an error if the duration is zero or negative.
func WithShutdownTimeout(d time.Duration) Option {
	return func(cfg *serviceConfig) error {
		if d <= 0 {
			return errors.New("shutdown timeout must be positive")
		}
		cfg.shutdownTimeout = d
		return nil
	}
}

// WithPort sets the HTTP port for the API and front end.
// Defaults to 8080.
//
// Returns an error if the port is outside the valid range (1-65535).
func WithPort(port int) Option {
	return func(cfg *serviceConfig) error {
		if port < 1 || port > 65535 {
			return errors.New("port must be between 1 and 65535")
		}
		cfg.port = port
		return nil
	}
}

// WithStaticDir serves a front-end build directory at "/" instead of the
// embedded dashboard.
func WithStaticDir(dir string) Option {
	return func(cfg *serviceConfig) error {
		cfg.staticDir = dir
		return nil
	}
}

// WithTitle sets the embedded dashboard title displayed in the browser tab
// and header. If not specified, defaults to "ET Live".
func WithTitle(title string) Option {
	return func(cfg *serviceConfig) error {
		cfg.title = title
		return nil
	}
}

// WithLogger sets a custom [slog.Logger] for the Service instance.
//
// If not specified, [slog.Default] is used.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
//	svc, err := etlive.New(
//	    etlive.WithNode(n),
//	    etlive.WithLogger(logger),
//	)
//
// Returns an error if the logger is nil.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *serviceConfig) error {
		if logger == nil {
			return errors.New("logger cannot be nil")
		}
		cfg.logger = logger
		return nil
	}
}

// WithNATS publishes every node update to a NATS subject.
//
// An empty subject uses "etlive.measurements". The connection is made when
// the service starts; failing to connect aborts [Service.Start].
//
// Returns an error if url is empty.
func WithNATS(url, subject string) Option {
	return func(cfg *serviceConfig) error {
		if url == "" {
			return errors.New("nats url cannot be empty")
		}
		cfg.natsURL = url
		cfg.natsSubject = subject
		return nil
	}
}

// WithUpdateCallback registers a function called after every cache write.
//
// The callback receives a [NodeUpdate] describing the node's new state:
// online with its measurement, or offline after a failed poll.
//
// Multiple callbacks may be registered; they execute in registration order.
//
// IMPORTANT: Callbacks must be non-blocking. They are invoked synchronously
// from a single goroutine, and updates arriving while that goroutine is busy
// may be dropped. Panics within callbacks are recovered and logged.
//
// Example:
//
//	svc, err := etlive.New(
//	    etlive.WithNode(n),
//	    etlive.WithUpdateCallback(func(u etlive.NodeUpdate) {
//	        if !u.Online() {
//	            log.Printf("ALERT: %s is offline", u.NodeID)
//	        }
//	    }),
//	)
//
// Nil callbacks are silently ignored.
func WithUpdateCallback(cb func(NodeUpdate)) Option {
	return func(cfg *serviceConfig) error {
		if cb == nil {
			return nil // no-op for nil callback (safe to call)
		}
		cfg.updateCallbacks = append(cfg.updateCallbacks, cb)
		return nil
	}
}
