package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/cloudprefix/ipranges/pkg/snapshot"
)

// RedisTier persists the snapshot as a JSON value in Redis. It is the durable
// tier of the store: slower than memory, shared across restarts, and allowed
// to be unavailable.
type RedisTier struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

type RedisOption func(*RedisTier)

// WithKeyPrefix overrides the key prefix (default "ipranges").
func WithKeyPrefix(prefix string) RedisOption {
	return func(t *RedisTier) { t.prefix = strings.Trim(prefix, ":") }
}

// WithTTL sets an expiry on the stored snapshot. Zero keeps it forever; the
// store's own max-age still applies on read.
func WithTTL(d time.Duration) RedisOption {
	return func(t *RedisTier) { t.ttl = d }
}

// NewRedisTier wraps an existing Redis client.
func NewRedisTier(rdb *redis.Client, opts ...RedisOption) *RedisTier {
	t := &RedisTier{
		rdb:    rdb,
		prefix: "ipranges",
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *RedisTier) Name() string { return "redis" }

func (t *RedisTier) key() string { return t.prefix + ":snapshot" }

func (t *RedisTier) Get(ctx context.Context) (snapshot.Snapshot, bool, error) {
	raw, err := t.rdb.Get(ctx, t.key()).Bytes()
	if err == redis.Nil {
		return snapshot.Snapshot{}, false, nil
	}
	if err != nil {
		return snapshot.Snapshot{}, false, fmt.Errorf("redis get %s: %w", t.key(), err)
	}
	var snap snapshot.Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		// A corrupt record is the same as no record.
		return snapshot.Snapshot{}, false, nil
	}
	return snap, true, nil
}

func (t *RedisTier) Set(ctx context.Context, snap snapshot.Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	if err := t.rdb.Set(ctx, t.key(), raw, t.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", t.key(), err)
	}
	return nil
}

func (t *RedisTier) Clear(ctx context.Context) error {
	if err := t.rdb.Del(ctx, t.key()).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", t.key(), err)
	}
	return nil
}
