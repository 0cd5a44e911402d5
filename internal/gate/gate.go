// Package gate limits in-flight polls to one per node.
//
// A [Table] holds one weighted semaphore of size 1 per node id, built once
// from the registry. The scheduler calls [Table.TryAcquire] on every tick
// and skips the node when the previous poll still holds its gate, so a slow
// or hanging node never accumulates parallel requests.
package gate

import (
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Table is a fixed set of per-node admission gates.
type Table struct {
	gates    map[string]*semaphore.Weighted
	inFlight atomic.Int64
}

// NewTable creates one gate per id. The set of ids never changes afterward.
func NewTable(ids []string) *Table {
	t := &Table{gates: make(map[string]*semaphore.Weighted, len(ids))}
	for _, id := range ids {
		t.gates[id] = semaphore.NewWeighted(1)
	}
	return t
}

// TryAcquire attempts to take the gate for id without blocking.
//
// It returns false when the gate is already held (the node is busy) or when
// id is unknown. A successful call must be paired with [Table.Release].
func (t *Table) TryAcquire(id string) bool {
	g, ok := t.gates[id]
	if !ok {
		return false
	}
	if !g.TryAcquire(1) {
		return false
	}
	t.inFlight.Add(1)
	return true
}

// Release frees the gate for id. Releasing a gate that is not held panics,
// matching the semantics of the underlying semaphore.
func (t *Table) Release(id string) {
	g, ok := t.gates[id]
	if !ok {
		return
	}
	g.Release(1)
	t.inFlight.Add(-1)
}

// InFlight returns the number of gates currently held.
func (t *Table) InFlight() int {
	return int(t.inFlight.Load())
}
