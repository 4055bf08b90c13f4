package schema

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itsneelabh/nl2sparql/core"
	"github.com/itsneelabh/nl2sparql/telemetry"
	"golang.org/x/sync/singleflight"
)

// Result is a schema lookup. Stale is set when the snapshot is expired or
// empty because extraction failed.
type Result struct {
	Snapshot *Snapshot
	Stale    bool
}

// Cache serves snapshots per endpoint with a TTL. Reads are lock-free loads
// of an immutable snapshot; concurrent refreshes of one endpoint share a
// single extraction.
type Cache struct {
	extractor Extractor
	store     Store
	ttl       time.Duration
	logger    core.Logger
	now       func() time.Time

	snapshots sync.Map // endpoint -> *atomic.Pointer[Snapshot]
	group     singleflight.Group
}

// CacheOption customizes a Cache.
type CacheOption func(*Cache)

// WithCacheTTL sets how long a snapshot stays fresh.
func WithCacheTTL(ttl time.Duration) CacheOption {
	return func(c *Cache) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithStore persists snapshots across restarts.
func WithStore(store Store) CacheOption {
	return func(c *Cache) {
		c.store = store
	}
}

// WithCacheLogger sets the logger.
func WithCacheLogger(logger core.Logger) CacheOption {
	return func(c *Cache) {
		c.logger = core.ComponentLogger(logger, "framework/schema")
	}
}

// NewCache creates a schema cache backed by extractor.
func NewCache(extractor Extractor, opts ...CacheOption) *Cache {
	c := &Cache{
		extractor: extractor,
		ttl:       core.DefaultSchemaCacheTTL,
		logger:    &core.NoOpLogger{},
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) slot(endpoint string) *atomic.Pointer[Snapshot] {
	if p, ok := c.snapshots.Load(endpoint); ok {
		return p.(*atomic.Pointer[Snapshot])
	}
	p, _ := c.snapshots.LoadOrStore(endpoint, &atomic.Pointer[Snapshot]{})
	return p.(*atomic.Pointer[Snapshot])
}

// GetSchema returns the endpoint's snapshot, refreshing it when expired.
// It never fails: if extraction fails the previous snapshot, or an empty
// one, is returned with Stale set.
func (c *Cache) GetSchema(ctx context.Context, endpoint string) Result {
	if snap := c.slot(endpoint).Load(); snap.Fresh(c.now(), c.ttl) {
		telemetry.Counter(telemetry.MetricSchemaLookups, "result", "hit")
		return Result{Snapshot: snap}
	}

	v, _, _ := c.group.Do(endpoint, func() (interface{}, error) {
		return c.load(ctx, endpoint), nil
	})
	return v.(Result)
}

func (c *Cache) load(ctx context.Context, endpoint string) Result {
	slot := c.slot(endpoint)

	// Another caller may have refreshed while we waited.
	if snap := slot.Load(); snap.Fresh(c.now(), c.ttl) {
		telemetry.Counter(telemetry.MetricSchemaLookups, "result", "hit")
		return Result{Snapshot: snap}
	}

	var stored *Snapshot
	if c.store != nil {
		if snap, ok := c.store.Load(ctx, endpoint); ok {
			stored = snap
			if snap.Fresh(c.now(), c.ttl) {
				slot.Store(snap)
				telemetry.Counter(telemetry.MetricSchemaLookups, "result", "store")
				c.logger.Debug("Schema loaded from store", map[string]interface{}{
					"operation":    "get_schema",
					"endpoint":     endpoint,
					"extracted_at": snap.ExtractedAt,
				})
				return Result{Snapshot: snap}
			}
		}
	}

	snap, err := c.extract(ctx, endpoint)
	if err == nil {
		telemetry.Counter(telemetry.MetricSchemaLookups, "result", "extracted")
		return Result{Snapshot: snap}
	}

	previous := slot.Load()
	if previous == nil {
		previous = stored
	}
	if previous != nil {
		telemetry.Counter(telemetry.MetricSchemaLookups, "result", "stale")
		c.logger.Warn("Schema extraction failed, serving stale snapshot", map[string]interface{}{
			"operation":    "get_schema",
			"endpoint":     endpoint,
			"extracted_at": previous.ExtractedAt,
			"error":        err,
		})
		return Result{Snapshot: previous, Stale: true}
	}

	telemetry.Counter(telemetry.MetricSchemaLookups, "result", "empty")
	c.logger.Warn("Schema extraction failed, no snapshot available", map[string]interface{}{
		"operation": "get_schema",
		"endpoint":  endpoint,
		"error":     err,
	})
	return Result{Snapshot: Empty(endpoint), Stale: true}
}

// Refresh extracts a new snapshot regardless of age and swaps it in.
func (c *Cache) Refresh(ctx context.Context, endpoint string) (*Snapshot, error) {
	v, err, _ := c.group.Do("refresh:"+endpoint, func() (interface{}, error) {
		return c.extract(ctx, endpoint)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Snapshot), nil
}

// extract runs the extractor, publishes the result and persists it.
func (c *Cache) extract(ctx context.Context, endpoint string) (*Snapshot, error) {
	snap, err := c.extractor.Extract(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	c.slot(endpoint).Store(snap)

	if c.store != nil {
		if err := c.store.Save(ctx, snap); err != nil {
			c.logger.Warn("Failed to persist schema snapshot", map[string]interface{}{
				"operation": "save_schema",
				"endpoint":  endpoint,
				"error":     err,
			})
		}
	}
	return snap, nil
}
