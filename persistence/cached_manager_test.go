package persistence

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/common/cache"
	"github.com/lyzr/orchestrator/common/logger"
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/value"
)

// countingManager wraps a MemoryManager and counts LoadSnapshot calls that
// actually reach it, so tests can tell a cache hit from a cache miss.
type countingManager struct {
	*MemoryManager
	loads int
}

func (m *countingManager) LoadSnapshot(ctx context.Context, executionID string) (*flow.ExecutionState, error) {
	m.loads++
	return m.MemoryManager.LoadSnapshot(ctx, executionID)
}

func TestCachedManagerLoadSnapshotHitsCacheOnSecondRead(t *testing.T) {
	ctx := context.Background()
	inner := &countingManager{MemoryManager: NewMemoryManager()}
	c := cache.NewMemoryCache(logger.New("error", "json"))
	mgr := NewCachedManager(inner, c, 0)

	es := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	es.Status = flow.StatusRunning
	require.NoError(t, mgr.SaveSnapshot(ctx, es))

	first, err := mgr.LoadSnapshot(ctx, es.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, es.ExecutionID, first.ExecutionID)
	assert.Equal(t, 1, inner.loads)

	second, err := mgr.LoadSnapshot(ctx, es.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, es.ExecutionID, second.ExecutionID)
	assert.Equal(t, 1, inner.loads, "second read should be served from cache without reaching the wrapped Manager")
}

func TestCachedManagerSaveSnapshotInvalidatesCache(t *testing.T) {
	ctx := context.Background()
	inner := &countingManager{MemoryManager: NewMemoryManager()}
	c := cache.NewMemoryCache(logger.New("error", "json"))
	mgr := NewCachedManager(inner, c, 0)

	es := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	es.Status = flow.StatusRunning
	require.NoError(t, mgr.SaveSnapshot(ctx, es))

	_, err := mgr.LoadSnapshot(ctx, es.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, 1, inner.loads)

	es.Status = flow.StatusCompleted
	require.NoError(t, mgr.SaveSnapshot(ctx, es))

	loaded, err := mgr.LoadSnapshot(ctx, es.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, flow.StatusCompleted, loaded.Status)
	assert.Equal(t, 2, inner.loads, "save should invalidate the cached entry so the next read reaches the wrapped Manager")
}

func TestCachedManagerListRecoverableDelegatesToWrappedManager(t *testing.T) {
	ctx := context.Background()
	inner := &countingManager{MemoryManager: NewMemoryManager()}
	c := cache.NewMemoryCache(logger.New("error", "json"))
	mgr := NewCachedManager(inner, c, 0)

	es := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	es.Status = flow.StatusRunning
	require.NoError(t, mgr.SaveSnapshot(ctx, es))

	ids, err := mgr.ListRecoverable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{es.ExecutionID}, ids)
}
