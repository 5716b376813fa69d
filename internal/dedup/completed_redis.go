package dedup

import (
	"context"
	"time"

	"github.com/clawrouter/clawrouter/internal/redisclient"
)

// RedisStore is the optional CompletedStore backing, used when
// REDIS_URL is configured. It is a direct generalization of the
// teacher's internal/gateway/cache package: same sha256-fingerprint key
// scheme, same SET-with-TTL write path, now caching ClawRouter's
// upstream response envelope instead of a single provider's response.
type RedisStore struct {
	client *redisclient.Client
	prefix string
}

// NewRedisStore builds a RedisStore using client, namespacing keys
// under "clawrouter:dedup:".
func NewRedisStore(client *redisclient.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "clawrouter:dedup:"}
}

// Get implements CompletedStore.
func (s *RedisStore) Get(ctx context.Context, fingerprint string) ([]byte, bool) {
	return s.client.Get(ctx, s.prefix+fingerprint)
}

// Set implements CompletedStore.
func (s *RedisStore) Set(ctx context.Context, fingerprint string, body []byte, ttl time.Duration) {
	_ = s.client.SetEX(ctx, s.prefix+fingerprint, body, ttl)
}
