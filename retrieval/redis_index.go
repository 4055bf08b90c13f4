package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/go-redis/redis/v8"
	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/embedding"
)

// RedisIndex persists examples and their vectors in Redis so a seeded store
// survives restarts and is shared between replicas.
//
// Layout:
//
//	<prefix>examples        SET of example IDs
//	<prefix>example:<id>    HASH {example: JSON, vector: JSON}
//
// Query loads every entry and ranks in process; the example store is small.
type RedisIndex struct {
	client *redis.Client
	prefix string
	logger core.Logger
}

// RedisIndexOption customizes a RedisIndex.
type RedisIndexOption func(*RedisIndex)

// WithIndexPrefix sets the key prefix. Default is core.DefaultRedisPrefix.
func WithIndexPrefix(prefix string) RedisIndexOption {
	return func(r *RedisIndex) {
		r.prefix = prefix
	}
}

// WithIndexLogger sets the logger.
func WithIndexLogger(logger core.Logger) RedisIndexOption {
	return func(r *RedisIndex) {
		r.logger = core.ComponentLogger(logger, "framework/retrieval")
	}
}

// NewRedisIndex creates a Redis-backed index.
func NewRedisIndex(client *redis.Client, opts ...RedisIndexOption) *RedisIndex {
	r := &RedisIndex{
		client: client,
		prefix: core.DefaultRedisPrefix,
		logger: &core.NoOpLogger{},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RedisIndex) setKey() string {
	return r.prefix + "examples"
}

func (r *RedisIndex) entryKey(id string) string {
	return r.prefix + "example:" + id
}

// Add writes the entry hash and registers the id in one transaction.
func (r *RedisIndex) Add(ctx context.Context, id string, vector []float32, example QueryExample) error {
	exampleJSON, err := json.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to marshal example: %w", err)
	}
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("failed to marshal vector: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, r.entryKey(id), "example", exampleJSON, "vector", vectorJSON)
		pipe.SAdd(ctx, r.setKey(), id)
		return nil
	})
	if err != nil {
		r.logger.Error("Failed to store example", map[string]interface{}{
			"operation":  "index_add",
			"example_id": id,
			"error":      err,
		})
		return fmt.Errorf("failed to store example in Redis: %w", err)
	}
	return nil
}

// Query loads all entries with a single pipeline and ranks them.
func (r *RedisIndex) Query(ctx context.Context, vector []float32, k int) ([]Match, error) {
	if k <= 0 {
		return []Match{}, nil
	}

	ids, err := r.client.SMembers(ctx, r.setKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list examples: %w", err)
	}
	if len(ids) == 0 {
		return []Match{}, nil
	}
	sort.Strings(ids)

	cmds := make([]*redis.SliceCmd, len(ids))
	_, err = r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HMGet(ctx, r.entryKey(id), "example", "vector")
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to load examples: %w", err)
	}

	matches := make([]Match, 0, len(ids))
	for i, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil || len(vals) != 2 {
			continue
		}
		exampleStr, ok1 := vals[0].(string)
		vectorStr, ok2 := vals[1].(string)
		if !ok1 || !ok2 {
			// Set member without a hash, e.g. expired or deleted by hand.
			r.logger.Warn("Skipping incomplete example entry", map[string]interface{}{
				"operation":  "index_query",
				"example_id": ids[i],
			})
			continue
		}

		var example QueryExample
		var vec []float32
		if err := json.Unmarshal([]byte(exampleStr), &example); err != nil {
			continue
		}
		if err := json.Unmarshal([]byte(vectorStr), &vec); err != nil {
			continue
		}
		matches = append(matches, Match{
			Example:  example,
			Distance: embedding.CosineDistance(vector, vec),
		})
	}

	return topK(matches, k), nil
}

// Contains reports whether id is in the example set.
func (r *RedisIndex) Contains(ctx context.Context, id string) (bool, error) {
	ok, err := r.client.SIsMember(ctx, r.setKey(), id).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check example: %w", err)
	}
	return ok, nil
}

// Len returns the size of the example set.
func (r *RedisIndex) Len(ctx context.Context) (int, error) {
	n, err := r.client.SCard(ctx, r.setKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to count examples: %w", err)
	}
	return int(n), nil
}
