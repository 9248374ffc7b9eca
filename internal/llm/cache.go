package llm

import (
	"sync"

	"golang.org/x/sync/singleflight"
)

// BackendCache memoizes backend clients by a stable name. Concurrent first
// lookups of one name share a single creation.
type BackendCache struct {
	mu      sync.RWMutex
	entries map[string]Completer
	group   singleflight.Group
}

func NewBackendCache() *BackendCache {
	return &BackendCache{entries: map[string]Completer{}}
}

// GetOrCreate returns the cached backend for name, creating it with create on
// first use. Failed creations are not cached.
func (c *BackendCache) GetOrCreate(name string, create func() (Completer, error)) (Completer, error) {
	c.mu.RLock()
	if v, ok := c.entries[name]; ok {
		c.mu.RUnlock()
		return v, nil
	}
	c.mu.RUnlock()

	v, err, _ := c.group.Do(name, func() (any, error) {
		c.mu.RLock()
		existing, ok := c.entries[name]
		c.mu.RUnlock()
		if ok {
			return existing, nil
		}
		created, err := create()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		if c.entries == nil {
			c.entries = map[string]Completer{}
		}
		c.entries[name] = created
		c.mu.Unlock()
		return created, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Completer), nil
}

// Len reports the number of cached backends.
func (c *BackendCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
