package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/executor"
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/persistence"
)

type noopFlowStore struct{}

func (noopFlowStore) GetFlow(context.Context, string) (*flow.Flow, error) {
	return nil, assertNeverCalledErr
}

var assertNeverCalledErr = &SchedulingError{Message: "flow store should not be consulted in this test"}

func newTestScheduler() *Scheduler {
	eval := gml.NewEvaluator()
	dispatch := executor.NewDispatch(executor.Deps{})
	return New(Config{
		Dispatch:  dispatch,
		Eval:      eval,
		Persist:   persistence.NewMemoryManager(),
		Approvals: NewMemoryApprovalStore(),
		Flows:     noopFlowStore{},
	})
}

func mappingNode(id, with, sets string, next ...string) *flow.Node {
	return &flow.Node{
		ID: id, Kind: flow.KindMapping, Next: next,
		Mapping: &flow.MappingSpec{With: with, Sets: sets},
	}
}

func waitTerminal(t *testing.T, h *Handle, timeout time.Duration) *flow.ExecutionState {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	es, err := h.Wait(ctx)
	require.NoError(t, err)
	return es
}

func TestSchedulerLinearFlowCompletes(t *testing.T) {
	s := newTestScheduler()

	nodes := []*flow.Node{
		mappingNode("a", "1 + 1", "", "b"),
		mappingNode("b", "a * 10", ""),
	}
	f := flow.New(flow.Meta{Name: "linear"}, nodes)
	require.NoError(t, f.Validate())

	h, err := s.Execute(context.Background(), "linear", f, nil, "tenant-1", nil)
	require.NoError(t, err)

	es := waitTerminal(t, h, 2*time.Second)
	assert.Equal(t, flow.StatusCompleted, es.Status)
	assert.True(t, es.Completed["a"])
	assert.True(t, es.Completed["b"])

	v, ok := es.Context.Get("b")
	require.True(t, ok)
	assert.Equal(t, float64(20), v.Number())
}

func TestSchedulerConditionSkipsUnchosenBranch(t *testing.T) {
	s := newTestScheduler()

	nodes := []*flow.Node{
		mappingNode("seed", "10", "score = 10", "cond"),
		{
			ID: "cond", Kind: flow.KindCondition,
			Condition: &flow.ConditionSpec{When: "score > 5", Then: "approve", Else: "reject"},
		},
		mappingNode("approve", "1", ""),
		mappingNode("reject", "0", ""),
	}
	f := flow.New(flow.Meta{Name: "branchy"}, nodes)
	require.NoError(t, f.Validate())

	h, err := s.Execute(context.Background(), "branchy", f, nil, "tenant-1", nil)
	require.NoError(t, err)

	es := waitTerminal(t, h, 2*time.Second)
	require.Equal(t, flow.StatusCompleted, es.Status)
	assert.True(t, es.Completed["approve"])
	assert.True(t, es.Completed["reject"])
	assert.True(t, es.Skipped["reject"])
	assert.False(t, es.Skipped["approve"])
}

func TestSchedulerFailEdgeRoutesToRecoveryNode(t *testing.T) {
	s := newTestScheduler()

	nodes := []*flow.Node{
		{
			ID: "risky", Kind: flow.KindMapping, Next: []string{"happy"}, Fail: "recover",
			Mapping: &flow.MappingSpec{With: "boom()"},
		},
		mappingNode("happy", "1", ""),
		mappingNode("recover", "2", ""),
	}
	f := flow.New(flow.Meta{Name: "failer"}, nodes)
	require.NoError(t, f.Validate())

	h, err := s.Execute(context.Background(), "failer", f, nil, "tenant-1", nil)
	require.NoError(t, err)

	es := waitTerminal(t, h, 2*time.Second)
	require.Equal(t, flow.StatusCompleted, es.Status)
	assert.True(t, es.Completed["risky"])
	assert.True(t, es.Completed["recover"])
	assert.True(t, es.Skipped["happy"])
}

func TestSchedulerApprovalSuspendAndResume(t *testing.T) {
	s := newTestScheduler()

	nodes := []*flow.Node{
		{
			ID: "ask", Kind: flow.KindApproval,
			Approval: &flow.ApprovalSpec{
				Approval: flow.ApprovalDef{
					Title:   "proceed?",
					Options: []flow.ApprovalOption{{ID: "approve"}, {ID: "reject"}},
				},
				Then: "yes",
				Else: "no",
			},
		},
		mappingNode("yes", "1", ""),
		mappingNode("no", "0", ""),
	}
	f := flow.New(flow.Meta{Name: "gated"}, nodes)
	require.NoError(t, f.Validate())

	h, err := s.Execute(context.Background(), "gated", f, nil, "tenant-1", nil)
	require.NoError(t, err)

	deadline := time.After(2 * time.Second)
	for h.State().Status != flow.StatusPaused {
		select {
		case <-deadline:
			t.Fatal("execution never paused for approval")
		case <-time.After(10 * time.Millisecond):
		}
	}

	pending, err := s.cfg.Approvals.Get(context.Background(), h.ExecutionID(), "ask")
	require.NoError(t, err)
	assert.Equal(t, "proceed?", pending.Title)

	resolveCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, h.Resolve(resolveCtx, "ask", Resolution{OptionID: "approve"}))

	es := waitTerminal(t, h, 2*time.Second)
	require.Equal(t, flow.StatusCompleted, es.Status)
	assert.True(t, es.Completed["yes"])
	assert.True(t, es.Skipped["no"])
}

func TestSchedulerCancelDrainsAndMarksCancelled(t *testing.T) {
	s := newTestScheduler()

	nodes := []*flow.Node{
		{ID: "wait", Kind: flow.KindDelay, Delay: &flow.DelaySpec{Wait: "5s"}},
	}
	f := flow.New(flow.Meta{Name: "slow"}, nodes)
	require.NoError(t, f.Validate())

	h, err := s.Execute(context.Background(), "slow", f, nil, "tenant-1", nil)
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	h.Cancel()

	es := waitTerminal(t, h, 2*time.Second)
	assert.Equal(t, flow.StatusCancelled, es.Status)
}

func TestSchedulerSeedInputsRejectsMissingRequired(t *testing.T) {
	s := newTestScheduler()

	f := flow.New(flow.Meta{Name: "needsInput"}, []*flow.Node{
		mappingNode("n", "amount", ""),
	})
	f.ArgsIn = []flow.ParamSpec{{Name: "amount", Type: flow.TypeSpec{Base: flow.TypeInt}}}
	require.NoError(t, f.Validate())

	_, err := s.Execute(context.Background(), "needsInput", f, nil, "tenant-1", nil)
	require.Error(t, err)
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "amount", ve.Field)
}
