package embedding

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto/v2"
)

// RistrettoCache is an in-process L1 embedding cache. Entries cost their
// size in bytes (4 per float32).
type RistrettoCache struct {
	c   *ristretto.Cache[string, []float32]
	ttl time.Duration
}

// NewRistrettoCache creates a ristretto-backed cache. maxCostBytes bounds the
// total size of cached vectors; ttl <= 0 keeps entries until evicted.
func NewRistrettoCache(maxCostBytes int64, ttl time.Duration) (*RistrettoCache, error) {
	if maxCostBytes <= 0 {
		maxCostBytes = 64 << 20
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, []float32]{
		NumCounters: maxCostBytes / 1536 * 10, // ~10x expected 384-dim vectors
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &RistrettoCache{c: c, ttl: ttl}, nil
}

// Get retrieves a cached embedding.
func (r *RistrettoCache) Get(_ context.Context, contentHash string) ([]float32, bool) {
	return r.c.Get(contentHash)
}

// Put stores an embedding. Ristretto admits writes asynchronously, so a Get
// immediately after Put may still miss.
func (r *RistrettoCache) Put(_ context.Context, contentHash string, embedding []float32) error {
	cost := int64(len(embedding) * 4)
	if r.ttl > 0 {
		r.c.SetWithTTL(contentHash, embedding, cost, r.ttl)
	} else {
		r.c.Set(contentHash, embedding, cost)
	}
	return nil
}

// Wait blocks until buffered writes are applied.
func (r *RistrettoCache) Wait() {
	r.c.Wait()
}

// Close shuts down the cache and releases resources.
func (r *RistrettoCache) Close() {
	r.c.Close()
}
