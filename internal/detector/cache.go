package detector

import (
	"sync"
)

// Key identifies a memoized backend handle.
type Key struct {
	Kind  Kind
	Model string
	Token string
}

// Factory builds a backend for a key.
type Factory func(Key) (Backend, error)

type handle struct {
	once    sync.Once
	backend Backend
	err     error
}

// HandleCache memoizes backend construction per Key.
type HandleCache struct {
	mu      sync.Mutex
	handles map[Key]*handle
}

// NewHandleCache creates an empty cache.
func NewHandleCache() *HandleCache {
	return &HandleCache{handles: make(map[Key]*handle)}
}

// Get returns the backend for key, calling build at most once per key no
// matter how many goroutines ask at the same time.
func (c *HandleCache) Get(key Key, build Factory) (Backend, error) {
	c.mu.Lock()
	h, ok := c.handles[key]
	if !ok {
		h = &handle{}
		c.handles[key] = h
	}
	c.mu.Unlock()

	h.once.Do(func() {
		h.backend, h.err = build(key)
	})
	return h.backend, h.err
}

// Evict closes and forgets one handle. The next Get rebuilds it.
func (c *HandleCache) Evict(key Key) error {
	c.mu.Lock()
	h, ok := c.handles[key]
	delete(c.handles, key)
	c.mu.Unlock()

	if !ok {
		return nil
	}
	return closeHandle(h)
}

// Reset closes and forgets every handle.
func (c *HandleCache) Reset() error {
	c.mu.Lock()
	old := c.handles
	c.handles = make(map[Key]*handle)
	c.mu.Unlock()

	var firstErr error
	for _, h := range old {
		if err := closeHandle(h); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Len reports how many keys are cached, including failed constructions.
func (c *HandleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.handles)
}

func closeHandle(h *handle) error {
	// Wait for an in-flight construction so its backend is not leaked.
	h.once.Do(func() {})
	if h.backend == nil {
		return nil
	}
	return h.backend.Close()
}
