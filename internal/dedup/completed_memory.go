package dedup

import (
	"context"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// MemoryStore is the default CompletedStore: an expirable, size-capped
// LRU held entirely in process memory. This is the store used whenever
// REDIS_URL is not configured.
type MemoryStore struct {
	cache *lru.LRU[string, []byte]
}

// NewMemoryStore builds a MemoryStore with the given size cap and TTL.
func NewMemoryStore(maxEntries int, ttl time.Duration) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &MemoryStore{cache: lru.NewLRU[string, []byte](maxEntries, nil, ttl)}
}

// Get implements CompletedStore.
func (s *MemoryStore) Get(_ context.Context, fingerprint string) ([]byte, bool) {
	return s.cache.Get(fingerprint)
}

// Set implements CompletedStore. ttl is accepted for interface
// symmetry with the Redis-backed store; the in-memory LRU uses the
// fixed TTL it was constructed with.
func (s *MemoryStore) Set(_ context.Context, fingerprint string, body []byte, _ time.Duration) {
	s.cache.Add(fingerprint, body)
}
