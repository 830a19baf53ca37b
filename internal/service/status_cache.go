package service

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/spec-kit/assignment-engine/internal/domain"
)

// StatusCache memoizes derived work item statuses for read paths. Commands
// always derive status from the ledger inside their transaction.
//
// Readers take an Epoch before reading the ledger and hand it back to Set.
// Any invalidation in between bumps the epoch and the write is dropped, so a
// status read before a commit can never outlive that commit's invalidation.
type StatusCache struct {
	mu    sync.Mutex
	epoch uint64
	cache *cache.Cache
}

// NewStatusCache creates the cache. A non-positive ttl disables caching.
func NewStatusCache(ttl time.Duration) *StatusCache {
	if ttl <= 0 {
		return nil
	}
	return &StatusCache{cache: cache.New(ttl, 2*ttl)}
}

func (s *StatusCache) Get(itemID string) (domain.WorkItemStatus, bool) {
	if s == nil {
		return "", false
	}
	v, found := s.cache.Get(itemID)
	if !found {
		return "", false
	}
	return v.(domain.WorkItemStatus), true
}

// Epoch returns the current invalidation epoch.
func (s *StatusCache) Epoch() uint64 {
	if s == nil {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.epoch
}

// Set stores status when nothing was invalidated since epoch was taken and
// reports whether it did.
func (s *StatusCache) Set(itemID string, status domain.WorkItemStatus, epoch uint64) bool {
	if s == nil {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch != epoch {
		return false
	}
	s.cache.Set(itemID, status, cache.DefaultExpiration)
	return true
}

// Invalidate drops cached statuses after their ledger changed.
func (s *StatusCache) Invalidate(itemIDs ...string) {
	if s == nil || len(itemIDs) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.epoch++
	for _, id := range itemIDs {
		s.cache.Delete(id)
	}
}
