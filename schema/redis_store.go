package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/itsneelabh/nl2sparql/core"
)

// Store persists snapshots outside the process.
type Store interface {
	// Load returns the stored snapshot for endpoint, or false if none.
	Load(ctx context.Context, endpoint string) (*Snapshot, bool)

	// Save overwrites the stored snapshot for its endpoint.
	Save(ctx context.Context, snapshot *Snapshot) error
}

// RedisStore provides Redis-backed snapshot persistence.
// Snapshots are stored as JSON with a TTL, shared across replicas.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string

	// Stats (atomic for thread-safety)
	hits   int64
	misses int64
}

// StoreOption allows customization of the Redis store.
type StoreOption func(*RedisStore)

// WithTTL sets the TTL for snapshots in Redis.
// Default is core.DefaultSchemaCacheTTL (24 hours).
func WithTTL(ttl time.Duration) StoreOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the Redis key prefix.
// Default is core.DefaultRedisPrefix + "schema:".
func WithPrefix(prefix string) StoreOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a Redis-backed snapshot store.
//
//	store := NewRedisStore(redisClient,
//	    WithTTL(6*time.Hour),
//	    WithPrefix("myapp:schema:"),
//	)
func NewRedisStore(redisClient *redis.Client, opts ...StoreOption) *RedisStore {
	s := &RedisStore{
		client: redisClient,
		ttl:    core.DefaultSchemaCacheTTL,
		prefix: core.DefaultRedisPrefix + "schema:",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(endpoint string) string {
	return s.prefix + endpoint
}

// Load retrieves a snapshot from Redis. Redis errors and corrupt payloads
// count as misses.
func (s *RedisStore) Load(ctx context.Context, endpoint string) (*Snapshot, bool) {
	val, err := s.client.Get(ctx, s.key(endpoint)).Result()
	if err != nil {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(val), &snap); err != nil {
		atomic.AddInt64(&s.misses, 1)
		return nil, false
	}

	atomic.AddInt64(&s.hits, 1)
	return &snap, true
}

// Save stores a snapshot in Redis, replacing any previous one.
func (s *RedisStore) Save(ctx context.Context, snapshot *Snapshot) error {
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to marshal schema snapshot: %w", err)
	}

	if err := s.client.Set(ctx, s.key(snapshot.Endpoint), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set schema snapshot in Redis: %w", err)
	}
	return nil
}

// Stats returns store statistics for monitoring.
func (s *RedisStore) Stats() map[string]interface{} {
	hits := atomic.LoadInt64(&s.hits)
	misses := atomic.LoadInt64(&s.misses)
	total := hits + misses

	stats := map[string]interface{}{
		"hits":          hits,
		"misses":        misses,
		"total_lookups": total,
	}
	if total > 0 {
		stats["hit_rate"] = float64(hits) / float64(total)
	}
	return stats
}
