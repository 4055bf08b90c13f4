// Package core provides the Redis client shared by the Redis-backed example
// index and the persistent schema store.
//
// Keys are namespaced with a prefix (DefaultRedisPrefix by default) so the
// pipeline can share a Redis database with other applications:
//   - Examples: "nl2sparql:example:<id>", "nl2sparql:examples"
//   - Schema:   "nl2sparql:schema:<endpoint>"
//
// Usage:
//
//	client, err := NewRedisClient(ctx, RedisClientOptions{
//	    RedisURL:  "redis://localhost:6379",
//	    Namespace: "nl2sparql:",
//	})
package core

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient wraps a go-redis client with a key namespace and logging.
type RedisClient struct {
	client    *redis.Client
	dbID      int
	namespace string
	logger    Logger
}

// RedisClientOptions configures the Redis client
type RedisClientOptions struct {
	RedisURL  string
	DB        int    // Redis DB number override (-1 keeps the URL's DB)
	Namespace string // Key prefix, e.g. "nl2sparql:"
	Logger    Logger // Optional logger
}

// NewRedisClient parses the URL, connects and pings the server.
func NewRedisClient(ctx context.Context, opts RedisClientOptions) (*RedisClient, error) {
	logger := ComponentLogger(opts.Logger, "framework/redis")

	if opts.RedisURL == "" {
		logger.Error("Failed to initialize Redis client", map[string]interface{}{
			"operation":  "redis_connect",
			"error":      "Redis URL is required",
			"error_type": "ErrInvalidConfiguration",
		})
		return nil, fmt.Errorf("redis URL is required: %w", ErrInvalidConfiguration)
	}

	redisOpt, err := redis.ParseURL(opts.RedisURL)
	if err != nil {
		logger.Error("Failed to parse Redis URL", map[string]interface{}{
			"operation":  "redis_connect",
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
		})
		return nil, fmt.Errorf("invalid Redis URL: %w", ErrInvalidConfiguration)
	}
	if opts.DB >= 0 && opts.DB <= 15 && opts.DB != redisOpt.DB {
		redisOpt.DB = opts.DB
	}

	client := redis.NewClient(redisOpt)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		logger.Error("Failed to connect to Redis", map[string]interface{}{
			"operation":  "redis_connect",
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         redisOpt.DB,
			"namespace":  opts.Namespace,
		})
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis DB %d: %v: %w", redisOpt.DB, err, ErrConnectionFailed)
	}

	logger.Info("Redis client connected", map[string]interface{}{
		"operation": "redis_connect",
		"db":        redisOpt.DB,
		"namespace": opts.Namespace,
	})

	return &RedisClient{
		client:    client,
		dbID:      redisOpt.DB,
		namespace: opts.Namespace,
		logger:    logger,
	}, nil
}

// Client returns the underlying go-redis client.
func (r *RedisClient) Client() *redis.Client {
	return r.client
}

// GetDB returns the DB number being used
func (r *RedisClient) GetDB() int {
	return r.dbID
}

// GetNamespace returns the key prefix being used
func (r *RedisClient) GetNamespace() string {
	return r.namespace
}

// HealthCheck verifies Redis connectivity
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	err := r.client.Ping(ctx).Err()
	if err != nil {
		r.logger.Error("Redis health check failed", map[string]interface{}{
			"operation":  "redis_health",
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
			"db":         r.dbID,
		})
		return fmt.Errorf("redis health check: %v: %w", err, ErrConnectionFailed)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	r.logger.Info("Closing Redis client connection", map[string]interface{}{
		"operation": "redis_close",
		"db":        r.dbID,
		"namespace": r.namespace,
	})

	err := r.client.Close()
	if err != nil {
		r.logger.Error("Failed to close Redis client", map[string]interface{}{
			"operation":  "redis_close",
			"error":      err,
			"error_type": fmt.Sprintf("%T", err),
		})
	}
	return err
}
