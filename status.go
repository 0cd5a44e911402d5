package etlive

import (
	"time"

	"github.com/etlive/etlive/telemetry"
)

// Status is the availability of a node as shown by the read API.
type Status string

const (
	// StatusOnline means the node's last poll produced a measurement.
	StatusOnline Status = "online"

	// StatusOffline means the last poll failed or none has completed yet.
	StatusOffline Status = "offline"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// NodeUpdate describes one write of a node's cached state.
//
// NodeUpdate values handed to callbacks are copies; callbacks may keep and
// modify them freely.
type NodeUpdate struct {
	// NodeID is the normalized node identifier.
	NodeID string

	// Location is the configured location of the node.
	Location string

	// Status is [StatusOnline] when Measurement is set.
	Status Status

	// Measurement is the decoded node payload, nil when offline.
	Measurement *telemetry.Measurement

	// UpdatedAt is when the cache entry was written.
	UpdatedAt time.Time
}

// Online reports whether the update carries a measurement.
func (u NodeUpdate) Online() bool {
	return u.Status == StatusOnline
}
