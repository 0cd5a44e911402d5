// Package relay forwards cache updates to NATS.
//
// Every entry written to the cache is published as a JSON node entry on one
// subject, with the node id, status and last update time repeated in message
// headers so subscribers can filter without decoding the body.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/etlive/etlive/internal/cache"
	"github.com/etlive/etlive/internal/readapi"
)

const (
	// DefaultSubject is used when no subject is configured.
	DefaultSubject = "etlive.measurements"

	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout = 10 * time.Second

	// ReconnectWait is the pause between reconnect attempts.
	ReconnectWait = 2 * time.Second
)

// Message headers set on every published update.
const (
	HeaderNodeID     = "x-node-id"
	HeaderStatus     = "x-node-status"
	HeaderLastUpdate = "x-last-update"
)

// conn is the subset of *nats.Conn the publisher needs.
//
// Drain only starts draining; the connection reports completion through
// the closed channel handed to [NewPublisher].
type conn interface {
	PublishMsg(m *nats.Msg) error
	Drain() error
}

// Publisher publishes node entries to a NATS subject.
type Publisher struct {
	conn    conn
	closed  <-chan struct{}
	subject string
	api     *readapi.API
	logger  *slog.Logger
}

// Connect dials the NATS server at url and returns a [Publisher].
//
// The connection reconnects on its own after the first successful dial;
// updates published while disconnected are buffered by the client.
func Connect(url, subject string, api *readapi.API, logger *slog.Logger) (*Publisher, error) {
	closed := make(chan struct{})
	var closeOnce sync.Once

	nc, err := nats.Connect(url,
		nats.Name("etlive"),
		nats.Timeout(ConnectTimeout),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(ReconnectWait),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", "url", c.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			closeOnce.Do(func() { close(closed) })
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}

	logger.Info("nats relay connected", "url", url, "subject", subjectOrDefault(subject))
	return NewPublisher(nc, closed, subject, api, logger), nil
}

// NewPublisher wraps an existing connection. closed must be closed by the
// connection once a drain has finished and the connection is closed.
func NewPublisher(c conn, closed <-chan struct{}, subject string, api *readapi.API, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:    c,
		closed:  closed,
		subject: subjectOrDefault(subject),
		api:     api,
		logger:  logger,
	}
}

// Subject returns the subject updates are published on.
func (p *Publisher) Subject() string {
	return p.subject
}

// Publish sends one cache entry.
func (p *Publisher) Publish(e cache.Entry) error {
	entry := p.api.Entry(e)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal node entry: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(HeaderNodeID, entry.NodeID)
	msg.Header.Set(HeaderStatus, string(entry.Status))
	msg.Header.Set(HeaderLastUpdate, strconv.FormatInt(entry.LastUpdate, 10))

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish update for %s: %w", entry.NodeID, err)
	}
	return nil
}

// Run publishes every update received on updates until ctx is done or the
// channel is closed. The caller owns the subscription, so it can subscribe
// before any update is written. Updates already queued when ctx ends are
// still published. Publish failures are logged and skipped.
func (p *Publisher) Run(ctx context.Context, updates <-chan cache.Entry) {
	for {
		select {
		case <-ctx.Done():
			p.flushQueued(updates)
			return
		case e, ok := <-updates:
			if !ok {
				return
			}
			p.forward(e)
		}
	}
}

func (p *Publisher) flushQueued(updates <-chan cache.Entry) {
	for {
		select {
		case e, ok := <-updates:
			if !ok {
				return
			}
			p.forward(e)
		default:
			return
		}
	}
}

func (p *Publisher) forward(e cache.Entry) {
	if err := p.Publish(e); err != nil {
		p.logger.Warn("relay publish failed", "node", e.NodeID, "error", err)
		return
	}
	p.logger.Debug("relay published", "node", e.NodeID, "subject", p.subject)
}

// Close starts draining the connection and waits until it has flushed
// pending messages and closed, giving up when ctx is done.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.conn.Drain(); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) {
			return nil
		}
		return fmt.Errorf("nats drain: %w", err)
	}

	select {
	case <-p.closed:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("nats drain did not complete: %w", ctx.Err())
	}
}

func subjectOrDefault(s string) string {
	if s == "" {
		return DefaultSubject
	}
	return s
}
