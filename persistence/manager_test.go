package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/value"
)

func TestMemoryManagerSaveLoadRoundTrip(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	es := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	es.Status = flow.StatusRunning
	require.NoError(t, m.SaveSnapshot(ctx, es))

	loaded, err := m.LoadSnapshot(ctx, es.ExecutionID)
	require.NoError(t, err)
	assert.Equal(t, es.ExecutionID, loaded.ExecutionID)
	assert.Equal(t, flow.StatusRunning, loaded.Status)
}

func TestMemoryManagerLoadMissingReturnsError(t *testing.T) {
	m := NewMemoryManager()
	_, err := m.LoadSnapshot(context.Background(), "nonexistent")
	assert.Error(t, err)
}

func TestMemoryManagerListRecoverableExcludesTerminal(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	running := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	running.Status = flow.StatusRunning
	require.NoError(t, m.SaveSnapshot(ctx, running))

	done := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	done.Status = flow.StatusCompleted
	require.NoError(t, m.SaveSnapshot(ctx, done))

	recoverable, err := m.ListRecoverable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{running.ExecutionID}, recoverable)
}

func TestMemoryManagerArchiveRemovesHotSnapshot(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	es := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	require.NoError(t, m.SaveSnapshot(ctx, es))
	require.NoError(t, m.Archive(ctx, es))

	_, err := m.LoadSnapshot(ctx, es.ExecutionID)
	assert.Error(t, err, "archiving should remove the hot snapshot")
}

func TestMemoryManagerDeleteSnapshot(t *testing.T) {
	m := NewMemoryManager()
	ctx := context.Background()

	es := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	require.NoError(t, m.SaveSnapshot(ctx, es))
	require.NoError(t, m.DeleteSnapshot(ctx, es.ExecutionID))

	_, err := m.LoadSnapshot(ctx, es.ExecutionID)
	assert.Error(t, err)
}

func TestRunSnapshotLoopSavesEachListedIDPerTick(t *testing.T) {
	var saved []string
	var mu = make(chan struct{}, 1)
	mu <- struct{}{}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Millisecond)
	defer cancel()

	list := func() []string { return []string{"a", "b"} }
	save := func(_ context.Context, id string) error {
		<-mu
		saved = append(saved, id)
		mu <- struct{}{}
		return nil
	}

	RunSnapshotLoop(ctx, 20*time.Millisecond, list, save)

	<-mu
	defer func() { mu <- struct{}{} }()
	assert.NotEmpty(t, saved)
}
