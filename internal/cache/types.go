package cache

import (
	"errors"
	"time"

	"github.com/etlive/etlive/telemetry"
)

// ErrNotFound is returned when a node id is not part of the cache.
var ErrNotFound = errors.New("unknown node")

// Entry is the cached state of a single node.
type Entry struct {
	// NodeID is the normalized node identifier.
	NodeID string

	// Measurement is the latest successful poll result. Nil means absent:
	// the last poll failed, timed out, or none has completed yet.
	// Callers must not modify the pointed-to value.
	Measurement *telemetry.Measurement

	// UpdatedAt is when the entry was last written. Zero until the first
	// poll for this node completes.
	UpdatedAt time.Time
}

// Online reports whether the entry holds a measurement.
func (e Entry) Online() bool {
	return e.Measurement != nil
}

// Store is the read side of the cache.
//
// Store implementations must be safe for concurrent access.
type Store interface {
	// Get returns the entry for id, or ErrNotFound for unknown ids.
	Get(id string) (Entry, error)

	// GetAll returns a snapshot of every entry, ordered by node id.
	GetAll() []Entry

	// Subscribe returns a channel that receives every written entry.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan Entry

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan Entry)
}

// Writer is the write side of the cache.
type Writer interface {
	// Set replaces the value for id. A nil measurement marks the node absent.
	// Returns ErrNotFound for unknown ids.
	Set(id string, m *telemetry.Measurement) error
}
