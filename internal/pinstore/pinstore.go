// Package pinstore implements the session pin store (C4): a small,
// short-lived mapping from (session id, tier profile) to the last model
// that produced a successful upstream response for that pair. Pins are
// scoped by tier profile so switching alias never returns a pin written
// under a different profile (spec.md §3's regression invariant).
package pinstore

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultTTL is the session pin lifetime (spec.md §4.4; the spec leaves
// this unspecified and calls out 10 minutes as a reasonable default —
// see DESIGN.md).
const DefaultTTL = 10 * time.Minute

// DefaultMaxEntries bounds the store's size; eviction beyond this cap is
// oldest-first: Get reads with Peek, so only Set refreshes an entry's
// position in the expirable LRU.
const DefaultMaxEntries = 4096

type key struct {
	sessionID   string
	tierProfile string
}

// Store is a mutex-free-at-the-call-site (the underlying LRU is
// internally synchronized) session pin store.
type Store struct {
	mu    sync.Mutex
	cache *lru.LRU[key, string]
}

// New builds a Store with the given TTL and size cap.
func New(ttl time.Duration, maxEntries int) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &Store{cache: lru.NewLRU[key, string](maxEntries, nil, ttl)}
}

// Get returns the pinned model id for (sessionID, tierProfile), or
// ("", false) if no valid (non-expired) pin exists. Expired entries are
// never returned — the underlying LRU's TTL handles that lazily.
func (s *Store) Get(sessionID, tierProfile string) (string, bool) {
	if sessionID == "" {
		return "", false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Peek(key{sessionID, tierProfile})
}

// Set records modelID as the pin for (sessionID, tierProfile). Callers
// must only invoke this after a confirmed 2xx upstream response —
// pinstore itself does not enforce that; the chat-completions handler in
// internal/httpapi only calls Set for a successful outcome.
func (s *Store) Set(sessionID, tierProfile, modelID string) {
	if sessionID == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Add(key{sessionID, tierProfile}, modelID)
}

// Len reports the current number of entries (for /stats and tests).
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cache.Len()
}
