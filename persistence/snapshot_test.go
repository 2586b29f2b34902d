package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/value"
)

func TestSnapshotRoundTripsVarsAndBookkeeping(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("count", value.Number(3))
	ctx.Set("name", value.String("order-1"))

	es := flow.NewExecutionState("flow-1", "tenant-a", ctx)
	es.Status = flow.StatusRunning
	es.Completed["a"] = true
	es.Pending["b"] = true
	es.History = append(es.History, flow.NodeExecutionRecord{
		NodeID: "a",
		State:  flow.NodeRunCompleted,
		Input:  value.Number(1),
		Output: value.String("ok"),
	})

	snap, err := ToSnapshot(es)
	require.NoError(t, err)
	assert.Equal(t, es.ExecutionID, snap.ExecutionID)
	assert.Equal(t, []string{"a"}, snap.Completed)
	assert.Equal(t, []string{"b"}, snap.Pending)

	restored, err := FromSnapshot(snap)
	require.NoError(t, err)
	assert.Equal(t, es.ExecutionID, restored.ExecutionID)
	assert.Equal(t, es.FlowID, restored.FlowID)
	assert.True(t, restored.Completed["a"])
	assert.True(t, restored.Pending["b"])

	count, ok := restored.Context.Get("count")
	require.True(t, ok)
	assert.Equal(t, float64(3), count.Number())
	name, ok := restored.Context.Get("name")
	require.True(t, ok)
	assert.Equal(t, "order-1", name.Str())

	require.Len(t, restored.History, 1)
	assert.Equal(t, "a", restored.History[0].NodeID)
	assert.Equal(t, float64(1), restored.History[0].Input.Number())
	assert.Equal(t, "ok", restored.History[0].Output.Str())
}

func TestSnapshotOmitsUndefinedHistoryFields(t *testing.T) {
	es := flow.NewExecutionState("flow-1", "tenant-a", value.NewRootContext())
	es.History = append(es.History, flow.NodeExecutionRecord{NodeID: "a", State: flow.NodeRunRunning})

	snap, err := ToSnapshot(es)
	require.NoError(t, err)
	require.Len(t, snap.History, 1)
	assert.Nil(t, snap.History[0].Input)
	assert.Nil(t, snap.History[0].Output)
}
