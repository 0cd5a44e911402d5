package etlive

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/etlive/etlive/internal/registry"
)

// Node describes one ET telemetry source to poll.
//
// Node is immutable after creation via [NewNode]. Getter methods return
// copies of mutable data (maps), so a node cannot be modified after
// construction.
type Node struct {
	id       string
	endpoint string
	location string
	headers  map[string]string
}

// ID returns the node identifier, normalized to upper case.
func (n Node) ID() string {
	return n.id
}

// Endpoint returns the URL polled for the node's latest measurement.
func (n Node) Endpoint() string {
	return n.endpoint
}

// Location returns the human-readable place of the node. May be empty.
func (n Node) Location() string {
	return n.location
}

// Headers returns a copy of the HTTP headers sent with every poll.
// Returns nil if no headers are set.
func (n Node) Headers() map[string]string {
	return copyMap(n.headers)
}

// NewNode creates a [Node] with the given id, endpoint URL and options.
//
// The id is trimmed and upper-cased; lookups through the read API are
// case-insensitive. The endpoint must be an absolute http:// or https:// URL.
//
// Example:
//
//	node, err := etlive.NewNode("et0002", "http://10.0.0.2/api/last",
//	    etlive.WithLocation("Zurich"),
//	    etlive.WithHeaders("Authorization", "Bearer token"),
//	)
func NewNode(id, rawURL string, opts ...NodeOption) (Node, error) {
	nid := registry.Normalize(id)
	if nid == "" {
		return Node{}, errors.New("node id cannot be empty")
	}

	parsed, err := url.Parse(rawURL)
	if err != nil {
		return Node{}, fmt.Errorf("node %s: invalid URL: %w", nid, err)
	}
	switch strings.ToLower(parsed.Scheme) {
	case "http", "https":
	default:
		return Node{}, fmt.Errorf("node %s: URL must have an http:// or https:// scheme", nid)
	}
	if parsed.Host == "" {
		return Node{}, fmt.Errorf("node %s: URL must have a host", nid)
	}

	cfg := &nodeConfig{
		headers: make(map[string]string),
	}
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return Node{}, fmt.Errorf("node %s: %w", nid, err)
		}
	}

	return Node{
		id:       nid,
		endpoint: rawURL,
		location: cfg.location,
		headers:  cfg.headers,
	}, nil
}

// toRegistryNode converts a Node to its internal form.
func (n Node) toRegistryNode() registry.Node {
	return registry.Node{
		ID:       n.id,
		Endpoint: n.endpoint,
		Location: n.location,
		Headers:  copyMap(n.headers),
	}
}

// copyMap returns a shallow copy of the map.
func copyMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
