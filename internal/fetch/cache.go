package fetch

import (
	"sync"

	"davslide/internal/exif"
)

// Entry is one fully constructed cached image. The payload is carried as a
// data URI ready for an <img> tag; nothing here resizes or re-encodes.
// Entries are immutable except for the record's location, which the
// geocoder fills in late through its own lock.
type Entry struct {
	Name     string
	MimeType string
	Size     int
	DataURI  string
	Exif     *exif.Record
}

// Key identifies a cache entry. Distinct display sizes are distinct
// entries.
type Key struct {
	Name   string
	Width  int
	Height int
}

// Cache is a bounded, insertion-order FIFO of entries. Eviction is
// oldest-inserted-first, not least-recently-used; a hit does not refresh an
// entry's position.
type Cache struct {
	mu      sync.Mutex
	max     int
	entries map[Key]*Entry
	order   []Key
}

// NewCache creates a cache bounded to max entries.
func NewCache(max int) *Cache {
	if max <= 0 {
		max = 50
	}
	return &Cache{
		max:     max,
		entries: make(map[Key]*Entry, max),
	}
}

// Get returns the entry for k if present.
func (c *Cache) Get(k Key) (*Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[k]
	return e, ok
}

// Add stores e under k, evicting the oldest-inserted entry in the same
// step when the bound would be exceeded. A later Add for an existing key
// overwrites the entry without changing its position; overlapping fetches
// for one key are idempotent, so last write wins.
func (c *Cache) Add(k Key, e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[k]; !exists {
		if len(c.order) >= c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, k)
	}
	c.entries[k] = e
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
