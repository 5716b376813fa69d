// Package redisclient wraps github.com/go-redis/redis/v8 the way the
// teacher's internal/shared/redis package did: a thin Client exposing
// exactly the operations ClawRouter's optional Redis-backed dedup cache
// needs, rather than leaking the full go-redis API into callers.
package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// Client is a narrow wrapper around *redis.Client.
type Client struct {
	rdb *redis.Client
}

// New parses redisURL and pings the server once to fail fast on bad
// configuration, mirroring the teacher's connection-probe pattern.
func New(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

// Close closes the underlying connection pool.
func (c *Client) Close() error { return c.rdb.Close() }

// Get retrieves a raw value by key. ok is false on a cache miss.
func (c *Client) Get(ctx context.Context, key string) ([]byte, bool) {
	val, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// SetEX stores value under key with the given TTL.
func (c *Client) SetEX(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, value, ttl).Err()
}
