package specs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vkuznet/cevt/internal/ingesterr"
)

// RedisStore shares a pinned Specs across horizontally scaled readers of
// the same remote file, so only one process ever pays the first-pass scan
// cost (spec.md §9 "cache the Specs aggressively"). It implements the same
// Store contract as FileStore; callers choose a backend, the rest of the
// engine doesn't care which.
type RedisStore struct {
	Client         *redis.Client
	Key            string
	TTL            time.Duration
	NaNSentinel    float64
	IdentifierKeys []string
}

// NewRedisStore returns a Store backed by a Redis key. ttl<=0 means the
// cached specs never expire.
func NewRedisStore(client *redis.Client, key string, ttl time.Duration, nanSentinel float64, identifierKeys []string) *RedisStore {
	return &RedisStore{Client: client, Key: key, TTL: ttl, NaNSentinel: nanSentinel, IdentifierKeys: identifierKeys}
}

func (rs *RedisStore) Save(ctx context.Context, s *Specs) error {
	data, err := marshal(s)
	if err != nil {
		return ingesterr.New(ingesterr.SpecsError, rs.Key, err)
	}
	if err := rs.Client.Set(ctx, rs.Key, data, rs.TTL).Err(); err != nil {
		return ingesterr.New(ingesterr.IoError, rs.Key, err)
	}
	return nil
}

func (rs *RedisStore) Load(ctx context.Context) (*Specs, error) {
	data, err := rs.Client.Get(ctx, rs.Key).Bytes()
	if err != nil {
		return nil, ingesterr.New(ingesterr.SpecsError, rs.Key, err)
	}
	return unmarshal(data, rs.NaNSentinel, rs.IdentifierKeys)
}

func (rs *RedisStore) Exists(ctx context.Context) bool {
	n, err := rs.Client.Exists(ctx, rs.Key).Result()
	return err == nil && n > 0
}
