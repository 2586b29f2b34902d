package persistence

import (
	"context"
	"encoding/json"
	"time"

	"github.com/lyzr/orchestrator/common/cache"
	"github.com/lyzr/orchestrator/flow"
)

// CachedManager wraps a Manager with a read-through Cache in front of
// LoadSnapshot. A hit avoids the wrapped Manager's own backend entirely,
// which matters most for the Postgres archival path polled repeatedly by
// an execution's status/wait endpoints after it has gone terminal.
// Writes invalidate the cached entry rather than refreshing it in place.
type CachedManager struct {
	Manager
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedManager wraps m with a read-through cache bounded by ttl (0
// defaults to 30s).
func NewCachedManager(m Manager, c cache.Cache, ttl time.Duration) *CachedManager {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CachedManager{Manager: m, cache: c, ttl: ttl}
}

func snapshotCacheKey(executionID string) string {
	return "fec:snapshot-cache:" + executionID
}

func (c *CachedManager) LoadSnapshot(ctx context.Context, executionID string) (*flow.ExecutionState, error) {
	if raw, ok, err := c.cache.Get(ctx, snapshotCacheKey(executionID)); err == nil && ok {
		var snap Snapshot
		if err := json.Unmarshal(raw, &snap); err == nil {
			if es, err := FromSnapshot(&snap); err == nil {
				return es, nil
			}
		}
	}

	es, err := c.Manager.LoadSnapshot(ctx, executionID)
	if err != nil {
		return nil, err
	}

	if snap, err := ToSnapshot(es); err == nil {
		if raw, err := json.Marshal(snap); err == nil {
			_ = c.cache.Set(ctx, snapshotCacheKey(executionID), raw, c.ttl)
		}
	}
	return es, nil
}

func (c *CachedManager) SaveSnapshot(ctx context.Context, es *flow.ExecutionState) error {
	if err := c.Manager.SaveSnapshot(ctx, es); err != nil {
		return err
	}
	_ = c.cache.Delete(ctx, snapshotCacheKey(es.ExecutionID))
	return nil
}

func (c *CachedManager) DeleteSnapshot(ctx context.Context, executionID string) error {
	if err := c.Manager.DeleteSnapshot(ctx, executionID); err != nil {
		return err
	}
	_ = c.cache.Delete(ctx, snapshotCacheKey(executionID))
	return nil
}
