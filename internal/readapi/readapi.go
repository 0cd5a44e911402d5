// Package readapi turns cache state into the public node view.
//
// It joins the cache with the registry (for locations) and applies the
// online/offline derivation. The HTTP layer, SSE stream and NATS relay all
// serialize the [NodeEntry] built here.
package readapi

import (
	"errors"
	"fmt"

	"github.com/etlive/etlive/internal/cache"
	"github.com/etlive/etlive/internal/registry"
	"github.com/etlive/etlive/telemetry"
)

var (
	// ErrUnknownNode is returned by [API.GetOne] for ids not in the registry.
	ErrUnknownNode = errors.New("unknown node")

	// ErrNoData is returned when there is nothing to show: a known node
	// without a current value, or an empty node list.
	ErrNoData = errors.New("no data")
)

// Status is the derived availability of a node.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// NodeEntry is the externally visible state of one node.
type NodeEntry struct {
	NodeID     string                 `json:"node_id"`
	Status     Status                 `json:"status"`
	Location   string                 `json:"location"`
	LastUpdate int64                  `json:"last_update"`
	Data       *telemetry.Measurement `json:"data"`
}

// AllResponse is the body of the all-nodes endpoint.
type AllResponse struct {
	Data []NodeEntry `json:"data"`
}

// API serves read-only views of the cache.
type API struct {
	store    cache.Store
	registry *registry.Registry
}

// New creates an [API] over store. reg supplies node locations.
func New(store cache.Store, reg *registry.Registry) *API {
	return &API{store: store, registry: reg}
}

// GetAll returns one entry per registered node, ordered by node id.
// Offline nodes are included with a nil Data.
func (a *API) GetAll() ([]NodeEntry, error) {
	entries := a.store.GetAll()
	if len(entries) == 0 {
		return nil, ErrNoData
	}

	out := make([]NodeEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, a.Entry(e))
	}
	return out, nil
}

// GetOne returns the entry of a single node. The id is matched
// case-insensitively.
func (a *API) GetOne(id string) (NodeEntry, error) {
	nid := registry.Normalize(id)

	e, err := a.store.Get(nid)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return NodeEntry{}, fmt.Errorf("%w: %q", ErrUnknownNode, nid)
		}
		return NodeEntry{}, err
	}
	if !e.Online() {
		return NodeEntry{}, fmt.Errorf("%w: node %q has no current value", ErrNoData, nid)
	}
	return a.Entry(e), nil
}

// Entry converts a cache entry into its public form.
func (a *API) Entry(e cache.Entry) NodeEntry {
	out := NodeEntry{
		NodeID: e.NodeID,
		Status: StatusOffline,
	}
	if a.registry != nil {
		if n, ok := a.registry.Lookup(e.NodeID); ok {
			out.Location = n.Location
		}
	}
	if e.Online() {
		out.Status = StatusOnline
		out.LastUpdate = e.Measurement.LastUpdate()
		out.Data = e.Measurement
	}
	return out
}
