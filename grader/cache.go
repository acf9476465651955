package grader

import (
	"sync"

	"github.com/google/uuid"
)

// Cache holds built orchestrators between grading runs so the retrieval pass
// is not repeated per batch. The exam version is the invalidation token: an
// edited exam carries a bumped version and misses the cache. Callers inject
// the cache into the handler; there is no ambient global state.
type Cache interface {
	Get(examID uuid.UUID, version int) (*Orchestrator, bool)
	Put(examID uuid.UUID, version int, o *Orchestrator)
	Invalidate(examID uuid.UUID)
}

type cacheEntry struct {
	version int
	orch    *Orchestrator
}

type MemoryCache struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]cacheEntry
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{
		entries: make(map[uuid.UUID]cacheEntry),
	}
}

func (c *MemoryCache) Get(examID uuid.UUID, version int) (*Orchestrator, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[examID]
	if !ok || entry.version != version {
		return nil, false
	}
	return entry.orch, true
}

func (c *MemoryCache) Put(examID uuid.UUID, version int, o *Orchestrator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[examID] = cacheEntry{version: version, orch: o}
}

func (c *MemoryCache) Invalidate(examID uuid.UUID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, examID)
}
