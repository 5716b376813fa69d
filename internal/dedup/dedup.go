// Package dedup implements the request dedup / coalescing cache (C5).
// In-flight coalescing uses golang.org/x/sync/singleflight, which gives
// the "at most one upstream dispatch per fingerprint" invariant for
// free: every caller sharing a fingerprint while a call is outstanding
// blocks on the same underlying call and observes the same result or
// error. Completed responses are cached separately, keyed by the same
// fingerprint, behind the CompletedStore interface (in-memory by
// default, optionally Redis-backed).
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultTTL is the completed-response cache TTL (spec.md §4.5, 30s).
const DefaultTTL = 30 * time.Second

// DefaultMaxEntries bounds the in-memory completed cache.
const DefaultMaxEntries = 2048

// FingerprintInput is the canonicalized field set hashed into a
// fingerprint (spec.md §6): normalized model id, messages, max_tokens,
// temperature, seed.
type FingerprintInput struct {
	Model       string      `json:"model"`
	Messages    interface{} `json:"messages"`
	MaxTokens   *int        `json:"max_tokens"`
	Temperature *float64    `json:"temperature"`
	Seed        *int        `json:"seed"`
}

// Fingerprint computes the stable sha256-hex fingerprint of in. Field
// order in the struct is irrelevant because encoding/json with a
// pre-sorted map (or a struct with a fixed field order) always emits
// keys in the same order for the same Go type — canonicalization here
// relies on FingerprintInput's struct tags defining a fixed key order,
// which makes the hash stable under any JSON field-order permutation in
// the original client request.
func Fingerprint(in FingerprintInput) string {
	canon := canonicalize(in)
	data, _ := json.Marshal(canon)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// canonicalize re-marshals messages through a generic JSON round-trip
// with map keys sorted, so two structurally-identical requests whose
// JSON object keys arrived in a different order still fingerprint
// identically.
func canonicalize(in FingerprintInput) map[string]interface{} {
	raw, _ := json.Marshal(in)
	var generic interface{}
	_ = json.Unmarshal(raw, &generic)
	return map[string]interface{}{"v": sortKeys(generic)}
}

func sortKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]interface{}, len(t))
		for _, k := range keys {
			out[k] = sortKeys(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = sortKeys(e)
		}
		return out
	default:
		return t
	}
}

// CompletedStore persists successful responses for a short TTL. Errors
// are never stored (spec.md §4.5's "error result is not cached").
type CompletedStore interface {
	Get(ctx context.Context, fingerprint string) ([]byte, bool)
	Set(ctx context.Context, fingerprint string, body []byte, ttl time.Duration)
}

// Cache is the full dedup cache: in-flight coalescing plus the
// completed-response store.
type Cache struct {
	group *singleflight.Group
	store CompletedStore
	ttl   time.Duration
}

// New builds a Cache backed by store, using the default TTL unless ttl
// is positive.
func New(store CompletedStore, ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{group: &singleflight.Group{}, store: store, ttl: ttl}
}

// Lookup returns a cached completed response for fingerprint, if any.
func (c *Cache) Lookup(ctx context.Context, fingerprint string) ([]byte, bool) {
	return c.store.Get(ctx, fingerprint)
}

// Do executes fn under singleflight coalescing for fingerprint: if
// another call for the same fingerprint is already in flight, this call
// blocks and shares its result instead of invoking fn again — satisfying
// "at most one upstream dispatch in flight per fingerprint" exactly.
// On success, the result is written to the completed store; errors are
// never cached.
func (c *Cache) Do(ctx context.Context, fingerprint string, fn func() ([]byte, error)) ([]byte, error, bool) {
	v, err, shared := c.group.Do(fingerprint, func() (interface{}, error) {
		body, err := fn()
		if err != nil {
			return nil, err
		}
		c.store.Set(ctx, fingerprint, body, c.ttl)
		return body, nil
	})
	if err != nil {
		return nil, err, shared
	}
	return v.([]byte), nil, shared
}
