package grader

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCachePutGet(t *testing.T) {
	cache := NewMemoryCache()
	examID := uuid.New()
	orch := NewOrchestrator(map[string]*Unit{})

	_, ok := cache.Get(examID, 1)
	assert.False(t, ok)

	cache.Put(examID, 1, orch)
	got, ok := cache.Get(examID, 1)
	require.True(t, ok)
	assert.Same(t, orch, got)
}

func TestMemoryCacheVersionMismatch(t *testing.T) {
	cache := NewMemoryCache()
	examID := uuid.New()
	cache.Put(examID, 1, NewOrchestrator(nil))

	// An edited exam carries a bumped version and must miss.
	_, ok := cache.Get(examID, 2)
	assert.False(t, ok)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	cache := NewMemoryCache()
	examID := uuid.New()
	cache.Put(examID, 1, NewOrchestrator(nil))

	cache.Invalidate(examID)
	_, ok := cache.Get(examID, 1)
	assert.False(t, ok)

	// Invalidating an unknown exam is a no-op.
	cache.Invalidate(uuid.New())
}
