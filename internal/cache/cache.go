// Package cache provides an optional redis-backed cache for synthesized
// audio, so repeated identical requests skip model invocation entirely.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// AudioCache stores finished WAV payloads keyed by a request digest. A nil
// *AudioCache is valid and behaves as a cache that never hits, which is how
// the service runs when redis is unreachable at startup.
type AudioCache struct {
	client *redis.Client
	ttl    time.Duration
}

// New creates an AudioCache over client with the given entry TTL.
func New(client *redis.Client, ttl time.Duration) *AudioCache {
	return &AudioCache{client: client, ttl: ttl}
}

// Digest derives a cache key from the endpoint name and the request fields
// that determine its output.
func Digest(endpoint string, parts ...string) string {
	h := sha256.New()
	h.Write([]byte(endpoint))
	for _, p := range parts {
		h.Write([]byte{0})
		h.Write([]byte(p))
	}
	return "ttsd:audio:" + hex.EncodeToString(h.Sum(nil))
}

// Get returns the cached WAV for digest, or ok=false on a miss or any
// redis error. Cache failures never fail a request.
func (c *AudioCache) Get(ctx context.Context, digest string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	val, err := c.client.Get(ctx, digest).Bytes()
	if err != nil {
		return nil, false
	}
	return val, true
}

// Set stores wav under digest, best effort.
func (c *AudioCache) Set(ctx context.Context, digest string, wav []byte) {
	if c == nil {
		return
	}
	c.client.Set(ctx, digest, wav, c.ttl)
}

// Ping reports whether the backing redis is reachable.
func (c *AudioCache) Ping(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}
