// Package versioned holds the latest result of repeated background refetches.
// Each fetch takes a sequence number before it starts; a result is accepted only
// when no later fetch has already landed, so a slow response never overwrites
// a newer one.
package versioned

import "sync"

// Latest keeps one value and the sequence number it was fetched under.
type Latest[T any] struct {
	mu      sync.Mutex
	issued  uint64
	applied uint64
	value   T
	ok      bool
}

// Issue reserves the sequence number for a fetch about to start.
func (l *Latest[T]) Issue() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.issued++
	return l.issued
}

// Apply stores v if seq is newer than the last applied result.
// It reports whether v was kept.
func (l *Latest[T]) Apply(seq uint64, v T) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if seq <= l.applied {
		return false
	}
	l.applied = seq
	l.value = v
	l.ok = true
	return true
}

// Load returns the current value, its sequence number and whether any result
// has been applied yet.
func (l *Latest[T]) Load() (T, uint64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.value, l.applied, l.ok
}

// Cache is a set of Latest values keyed by string, typically an assembly id.
type Cache[T any] struct {
	mu      sync.Mutex
	entries map[string]*Latest[T]
}

// NewCache returns an empty cache.
func NewCache[T any]() *Cache[T] {
	return &Cache[T]{entries: make(map[string]*Latest[T])}
}

// Entry returns the slot for key, creating it on first use.
func (c *Cache[T]) Entry(key string) *Latest[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		e = &Latest[T]{}
		c.entries[key] = e
	}
	return e
}

// Load returns the value cached for key.
func (c *Cache[T]) Load(key string) (T, bool) {
	c.mu.Lock()
	e, ok := c.entries[key]
	c.mu.Unlock()
	if !ok {
		var zero T
		return zero, false
	}
	v, _, ok := e.Load()
	return v, ok
}

// Forget drops key from the cache.
func (c *Cache[T]) Forget(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// Len returns the number of keys.
func (c *Cache[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
