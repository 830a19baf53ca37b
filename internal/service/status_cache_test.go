package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

func TestStatusCache(t *testing.T) {
	cache := NewStatusCache(time.Minute)

	_, ok := cache.Get("item-1")
	assert.False(t, ok)

	assert.True(t, cache.Set("item-1", domain.WorkItemInProgress, cache.Epoch()))
	status, ok := cache.Get("item-1")
	assert.True(t, ok)
	assert.Equal(t, domain.WorkItemInProgress, status)

	cache.Invalidate("item-1", "item-2")
	_, ok = cache.Get("item-1")
	assert.False(t, ok)
}

func TestStatusCacheDropsReadsOlderThanInvalidation(t *testing.T) {
	cache := NewStatusCache(time.Minute)

	epoch := cache.Epoch()
	// a command commits and invalidates while the reader is still in the ledger
	cache.Invalidate("item-1")

	assert.False(t, cache.Set("item-1", domain.WorkItemNew, epoch))
	_, ok := cache.Get("item-1")
	assert.False(t, ok)

	assert.True(t, cache.Set("item-1", domain.WorkItemEscalated, cache.Epoch()))
	status, ok := cache.Get("item-1")
	require.True(t, ok)
	assert.Equal(t, domain.WorkItemEscalated, status)
}

func TestStatusCacheDisabled(t *testing.T) {
	cache := NewStatusCache(0)
	assert.Nil(t, cache)

	assert.False(t, cache.Set("item-1", domain.WorkItemNew, cache.Epoch()))
	_, ok := cache.Get("item-1")
	assert.False(t, ok)
	cache.Invalidate("item-1")
}
