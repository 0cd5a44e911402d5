package cache

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/etlive/etlive/telemetry"
)

const subscriberBuffer = 100

// slot holds one node's current entry.
type slot struct {
	entry atomic.Pointer[Entry]
}

// MemoryCache is an in-memory implementation of [Store] and [Writer].
//
// The id-to-slot map is built by [NewMemoryCache] and only read afterward,
// so lookups take no lock. Writes swap a freshly built [Entry] into the
// node's slot; readers load the pointer and copy the entry, which can never
// observe a half-written value.
type MemoryCache struct {
	ids   []string
	slots map[string]*slot

	subscribers map[chan Entry]struct{}
	subMu       sync.RWMutex

	now func() time.Time
}

// NewMemoryCache creates a cache holding an absent value for every id.
//
// ids must already be normalized; duplicates are collapsed.
func NewMemoryCache(ids []string) *MemoryCache {
	c := &MemoryCache{
		slots:       make(map[string]*slot, len(ids)),
		subscribers: make(map[chan Entry]struct{}),
		now:         time.Now,
	}
	for _, id := range ids {
		if _, exists := c.slots[id]; exists {
			continue
		}
		s := &slot{}
		s.entry.Store(&Entry{NodeID: id})
		c.slots[id] = s
		c.ids = append(c.ids, id)
	}
	sort.Strings(c.ids)
	return c
}

// Get returns the current entry for id.
func (c *MemoryCache) Get(id string) (Entry, error) {
	s, ok := c.slots[id]
	if !ok {
		return Entry{}, ErrNotFound
	}
	return *s.entry.Load(), nil
}

// GetAll returns a snapshot of every entry ordered by node id.
//
// Each entry is individually consistent; entries for different nodes may
// come from different moments if writes race with the snapshot.
func (c *MemoryCache) GetAll() []Entry {
	out := make([]Entry, 0, len(c.ids))
	for _, id := range c.ids {
		out = append(out, *c.slots[id].entry.Load())
	}
	return out
}

// Set replaces the entry for id and notifies all subscribers.
//
// The measurement is cloned, so the caller may keep using m. Last writer
// wins; the admission gate guarantees one writer per node at a time.
func (c *MemoryCache) Set(id string, m *telemetry.Measurement) error {
	s, ok := c.slots[id]
	if !ok {
		return ErrNotFound
	}

	e := &Entry{
		NodeID:      id,
		Measurement: m.Clone(),
		UpdatedAt:   c.now(),
	}
	s.entry.Store(e)

	c.notifySubscribers(*e)
	return nil
}

// Len returns the number of nodes in the cache.
func (c *MemoryCache) Len() int {
	return len(c.ids)
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 entries. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
func (c *MemoryCache) Subscribe() <-chan Entry {
	ch := make(chan Entry, subscriberBuffer)

	c.subMu.Lock()
	c.subscribers[ch] = struct{}{}
	c.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (c *MemoryCache) Unsubscribe(ch <-chan Entry) {
	c.subMu.Lock()
	defer c.subMu.Unlock()

	for subCh := range c.subscribers {
		if subCh == ch {
			delete(c.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the entry to all active subscribers without blocking.
func (c *MemoryCache) notifySubscribers(e Entry) {
	c.subMu.RLock()
	defer c.subMu.RUnlock()

	for ch := range c.subscribers {
		select {
		case ch <- e:
		default:
			// subscriber is slow, drop the update
		}
	}
}
