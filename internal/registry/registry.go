// Package registry holds the immutable set of nodes the collector polls.
//
// A [Registry] is built once at startup from configuration and never
// changes afterward. Node ids are normalized to upper case so lookups by API
// callers are case-insensitive.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNoNodes is returned by [New] when no nodes are configured.
var ErrNoNodes = errors.New("at least one node is required")

// Node describes a single telemetry source.
type Node struct {
	// ID is the normalized (upper-case) node identifier.
	ID string

	// Endpoint is the URL of the node's latest-measurement endpoint.
	Endpoint string

	// Location is a human-readable description of where the node is.
	Location string

	// Headers are sent with every poll request to this node.
	Headers map[string]string
}

// Registry is an immutable, id-ordered set of nodes.
type Registry struct {
	nodes map[string]Node
	ids   []string
}

// Normalize returns the canonical form of a node id.
func Normalize(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// New builds a Registry from the given nodes.
//
// Ids are normalized before validation. Returns an error if the list is
// empty, an id is blank, or two nodes normalize to the same id.
func New(nodes []Node) (*Registry, error) {
	if len(nodes) == 0 {
		return nil, ErrNoNodes
	}

	r := &Registry{
		nodes: make(map[string]Node, len(nodes)),
		ids:   make([]string, 0, len(nodes)),
	}
	for i, n := range nodes {
		id := Normalize(n.ID)
		if id == "" {
			return nil, fmt.Errorf("nodes[%d]: id is required", i)
		}
		if _, exists := r.nodes[id]; exists {
			return nil, fmt.Errorf("nodes[%d]: duplicate node id %q", i, id)
		}
		n.ID = id
		n.Headers = copyMap(n.Headers)
		r.nodes[id] = n
		r.ids = append(r.ids, id)
	}
	sort.Strings(r.ids)

	return r, nil
}

// Lookup returns the node with the given id. The id is normalized first.
func (r *Registry) Lookup(id string) (Node, bool) {
	n, ok := r.nodes[Normalize(id)]
	if !ok {
		return Node{}, false
	}
	n.Headers = copyMap(n.Headers)
	return n, true
}

// IDs returns all node ids in ascending order. The slice is a copy.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.ids...)
}

// Nodes returns all nodes ordered by id.
func (r *Registry) Nodes() []Node {
	out := make([]Node, 0, len(r.ids))
	for _, id := range r.ids {
		n := r.nodes[id]
		n.Headers = copyMap(n.Headers)
		out = append(out, n)
	}
	return out
}

// Len returns the number of nodes.
func (r *Registry) Len() int {
	return len(r.ids)
}

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
