// Package cache provides an in-process TTL response cache with LRU
// eviction and LZ4-compressed values.
package cache

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pierrec/lz4/v4"
)

// DefaultMaxEntries bounds the cache when no limit is configured.
const DefaultMaxEntries = 1024

// Key namespaces. Invalidation works on these prefixes.
const (
	NamespaceProjects    = "projects:"
	NamespaceLeaderboard = "leaderboard:"
	NamespaceStats       = "stats:"
	NamespaceDetail      = "detail:"
)

// Stats are cumulative cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Entries   int
}

// HitRate is hits over total lookups, 0 when the cache is cold.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}

// entry is a doubly-linked list node for LRU tracking.
type entry struct {
	key string
	// data is the LZ4 block, or the raw bytes when compression did not
	// shrink the value.
	data       []byte
	rawSize    int
	compressed bool
	expires    time.Time
	prev       *entry
	next       *entry
}

// Cache is a fixed-capacity TTL cache. Safe for concurrent use.
type Cache struct {
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // Most recently used.
	tail       *entry // Least recently used.
	maxEntries int

	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// New creates a cache holding at most maxEntries values.
func New(maxEntries int) *Cache {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}

	return &Cache{
		entries:    make(map[string]*entry),
		maxEntries: maxEntries,
	}
}

// Set stores value under key for ttl. A non-positive ttl is a no-op.
func (c *Cache) Set(key string, value []byte, ttl time.Duration) {
	if ttl <= 0 {
		return
	}

	data, compressed := compress(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.entries[key]; ok {
		c.unlink(old)
		delete(c.entries, key)
	}

	e := &entry{
		key:        key,
		data:       data,
		rawSize:    len(value),
		compressed: compressed,
		expires:    time.Now().Add(ttl),
	}

	c.entries[key] = e
	c.pushFront(e)

	for len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

// Get returns the value stored under key, or false when absent or expired.
func (c *Cache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)

		return nil, false
	}

	if time.Now().After(e.expires) {
		c.unlink(e)
		delete(c.entries, key)
		c.misses.Add(1)

		return nil, false
	}

	c.unlink(e)
	c.pushFront(e)
	c.hits.Add(1)

	return decompress(e), true
}

// Delete removes one key.
func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.unlink(e)
		delete(c.entries, key)
	}
}

// InvalidatePrefix removes every key under the given namespace prefix.
func (c *Cache) InvalidatePrefix(prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.unlink(e)
			delete(c.entries, key)
		}
	}
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	entries := len(c.entries)
	c.mu.Unlock()

	return Stats{
		Hits:      c.hits.Load(),
		Misses:    c.misses.Load(),
		Evictions: c.evictions.Load(),
		Entries:   entries,
	}
}

func (c *Cache) pushFront(e *entry) {
	e.prev = nil
	e.next = c.head

	if c.head != nil {
		c.head.prev = e
	}

	c.head = e

	if c.tail == nil {
		c.tail = e
	}
}

func (c *Cache) unlink(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}

	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}

	e.prev = nil
	e.next = nil
}

func (c *Cache) evictTail() {
	if c.tail == nil {
		return
	}

	victim := c.tail
	c.unlink(victim)
	delete(c.entries, victim.key)
	c.evictions.Add(1)
}

// compress LZ4-compresses value, falling back to the raw bytes when the
// block would not shrink.
func compress(value []byte) ([]byte, bool) {
	if len(value) == 0 {
		return nil, false
	}

	buf := make([]byte, lz4.CompressBlockBound(len(value)))

	written, err := lz4.CompressBlock(value, buf, nil)
	if err != nil || written == 0 || written >= len(value) {
		raw := make([]byte, len(value))
		copy(raw, value)

		return raw, false
	}

	return buf[:written], true
}

func decompress(e *entry) []byte {
	if !e.compressed {
		out := make([]byte, len(e.data))
		copy(out, e.data)

		return out
	}

	out := make([]byte, e.rawSize)

	n, err := lz4.UncompressBlock(e.data, out)
	if err != nil {
		return nil
	}

	return out[:n]
}
