package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

func newEvalCtx() (*gml.Evaluator, *value.Context) {
	return gml.NewEvaluator(), value.NewRootContext()
}

func TestMappingExecutorBindsWithAndSets(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("input", value.Number(4))

	node := &flow.Node{ID: "m1", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{
		With: "input * 2",
		Sets: "doubled = input * 2",
	}}

	res, err := (MappingExecutor{}).Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Equal(t, float64(8), res.Value.Number())

	v, ok := ctx.Get("doubled")
	require.True(t, ok)
	assert.Equal(t, float64(8), v.Number())
}

func TestConditionExecutorBranches(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("score", value.Number(10))

	node := &flow.Node{ID: "c1", Kind: flow.KindCondition, Condition: &flow.ConditionSpec{
		When: "score > 5",
		Then: "approve",
		Else: "reject",
	}}

	res, err := (ConditionExecutor{}).Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.True(t, res.Value.Bool())
	assert.Equal(t, []string{"approve"}, res.NextHint)

	ctx.Set("score", value.Number(1))
	res, err = (ConditionExecutor{}).Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.False(t, res.Value.Bool())
	assert.Equal(t, []string{"reject"}, res.NextHint)
}

func TestConditionExecutorNoElseSkipsDownstream(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("score", value.Number(0))

	node := &flow.Node{ID: "c2", Kind: flow.KindCondition, Condition: &flow.ConditionSpec{
		When: "score > 5",
		Then: "approve",
	}}

	res, err := (ConditionExecutor{}).Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Empty(t, res.NextHint)
}

func TestSwitchExecutorFirstMatchWins(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("tier", value.String("gold"))

	node := &flow.Node{ID: "s1", Kind: flow.KindSwitch, Switch: &flow.SwitchSpec{
		Cases: []flow.SwitchCase{
			{When: `tier == "silver"`, Then: "silverPath"},
			{When: `tier == "gold"`, Then: "goldPath"},
			{When: `tier == "gold"`, Then: "neverReached"},
		},
		Else: "defaultPath",
	}}

	res, err := (SwitchExecutor{}).Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Equal(t, []string{"goldPath"}, res.NextHint)
}

func TestSwitchExecutorFallsBackToElse(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("tier", value.String("bronze"))

	node := &flow.Node{ID: "s2", Kind: flow.KindSwitch, Switch: &flow.SwitchSpec{
		Cases: []flow.SwitchCase{{When: `tier == "gold"`, Then: "goldPath"}},
		Else:  "defaultPath",
	}}

	res, err := (SwitchExecutor{}).Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Equal(t, []string{"defaultPath"}, res.NextHint)
}

func TestDelayExecutorWaitsAndReturnsNull(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "d1", Kind: flow.KindDelay, Delay: &flow.DelaySpec{Wait: "20"}}

	start := time.Now()
	res, err := (DelayExecutor{}).Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.True(t, time.Since(start) >= 20*time.Millisecond)
	assert.True(t, res.Value.IsNull())
}

func TestDelayExecutorObservesCancellation(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "d2", Kind: flow.KindDelay, Delay: &flow.DelaySpec{Wait: "5s"}}

	ctx2, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (DelayExecutor{}).Run(ctx2, node, ctx, eval)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestParseWaitUnits(t *testing.T) {
	cases := map[string]time.Duration{
		"500":  500 * time.Millisecond,
		"5s":   5 * time.Second,
		"2m":   2 * time.Minute,
		"1h":   time.Hour,
	}
	for raw, want := range cases {
		d, err := parseWait(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, d, raw)
	}

	_, err := parseWait("5x")
	assert.Error(t, err)
}

// stubSubflowRunner lets Loop/Each tests drive a subflow without a real
// scheduler: it evaluates a fixed GML assignment against the child frame
// it's handed, simulating "the subflow incremented a counter".
type stubSubflowRunner struct {
	eval *gml.Evaluator
	stmt string
}

func (s stubSubflowRunner) RunSubflow(_ context.Context, _ *flow.Subflow, parent *value.Context) (*value.Context, error) {
	child := parent.NewChild()
	if _, err := evalBlock(s.eval, s.stmt, child); err != nil {
		return nil, err
	}
	return child, nil
}

func TestLoopExecutorPropagatesStateAndTerminates(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "l1", Kind: flow.KindLoop, Loop: &flow.LoopSpec{
		Vars:    "i = 0",
		When:    "i < 3",
		With:    "i",
		Subflow: flow.NewSubflow(nil),
	}}

	exec := &LoopExecutor{Deps: Deps{Subflow: stubSubflowRunner{eval: eval, stmt: "i = i + 1"}}}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Equal(t, float64(3), res.Value.Number())
}

func TestLoopExecutorTripsMaxIterations(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "l2", Kind: flow.KindLoop, Loop: &flow.LoopSpec{
		Vars:          "i = 0",
		When:          "true",
		Subflow:       flow.NewSubflow(nil),
		MaxIterations: 5,
	}}

	exec := &LoopExecutor{Deps: Deps{Subflow: stubSubflowRunner{eval: eval, stmt: "i = i + 1"}}}
	_, err := exec.Run(context.Background(), node, ctx, eval)
	require.Error(t, err)
	var bound *LoopBoundExceeded
	assert.ErrorAs(t, err, &bound)
}

func TestEachExecutorSequentialPreservesOrder(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("items", value.Array(value.Number(1), value.Number(2), value.Number(3)))

	node := &flow.Node{ID: "e1", Kind: flow.KindEach, Each: &flow.EachSpec{
		SourceExpr: "items",
		ItemAlias:  "item",
		With:       "item * 10",
		Subflow:    flow.NewSubflow(nil),
		Mode:       "sequential",
	}}

	exec := &EachExecutor{Deps: Deps{Subflow: stubSubflowRunner{eval: eval, stmt: "noop = true"}}}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	require.Equal(t, value.KindArray, res.Value.Kind())
	got := res.Value.Array()
	require.Len(t, got, 3)
	assert.Equal(t, float64(10), got[0].Number())
	assert.Equal(t, float64(20), got[1].Number())
	assert.Equal(t, float64(30), got[2].Number())
}

// mappingSubflowRunner runs a subflow's single mapping node for real,
// binding its result under the node's own id the way
// scheduler.subflowDispatch does, so tests can exercise EachExecutor's
// with-absent terminal-node lookup without a real scheduler.
type mappingSubflowRunner struct {
	eval *gml.Evaluator
}

func (r mappingSubflowRunner) RunSubflow(_ context.Context, sf *flow.Subflow, parent *value.Context) (*value.Context, error) {
	child := parent.NewChild()
	for _, n := range sf.Nodes {
		out, err := evalExpr(r.eval, n.Mapping.With, child)
		if err != nil {
			return nil, err
		}
		child.Set(n.ID, out)
	}
	return child, nil
}

func TestEachExecutorWithAbsentCollectsSubflowTerminalValue(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("items", value.Array(
		value.Object_(value.NewObject().Set("price", value.Number(10))),
		value.Object_(value.NewObject().Set("price", value.Number(20))),
		value.Object_(value.NewObject().Set("price", value.Number(30))),
	))

	mapNode := &flow.Node{ID: "m1", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{With: "it.price"}}
	node := &flow.Node{ID: "e3", Kind: flow.KindEach, Each: &flow.EachSpec{
		SourceExpr: "items",
		ItemAlias:  "it",
		Subflow:    flow.NewSubflow([]*flow.Node{mapNode}),
		Mode:       "sequential",
	}}

	exec := &EachExecutor{Deps: Deps{Subflow: mappingSubflowRunner{eval: eval}}}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	require.Equal(t, value.KindArray, res.Value.Kind())
	got := res.Value.Array()
	require.Len(t, got, 3)
	assert.Equal(t, float64(10), got[0].Number())
	assert.Equal(t, float64(20), got[1].Number())
	assert.Equal(t, float64(30), got[2].Number())
}

func TestEachExecutorParallelPreservesOrder(t *testing.T) {
	eval, ctx := newEvalCtx()
	items := make([]value.Value, 20)
	for i := range items {
		items[i] = value.Number(float64(i))
	}
	ctx.Set("items", value.ArrayFrom(items))

	node := &flow.Node{ID: "e2", Kind: flow.KindEach, Each: &flow.EachSpec{
		SourceExpr: "items",
		ItemAlias:  "item",
		With:       "item",
		Subflow:    flow.NewSubflow(nil),
		Mode:       "parallel",
	}}

	exec := &EachExecutor{Deps: Deps{Subflow: stubSubflowRunner{eval: eval, stmt: "noop = true"}, MaxParallel: 4}}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	got := res.Value.Array()
	require.Len(t, got, 20)
	for i, v := range got {
		assert.Equal(t, float64(i), v.Number())
	}
}

func TestGuardExecutorBlocksOnCustomViolation(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "g1", Kind: flow.KindGuard, Guard: &flow.GuardSpec{
		Guard: flow.GuardDef{
			Types:      []string{"custom"},
			Action:     "block",
			Expression: `$input == "forbidden"`,
		},
		Args: `"forbidden"`,
		Then: "next",
	}}

	exec := &GuardExecutor{}
	_, err := exec.Run(context.Background(), node, ctx, eval)
	require.Error(t, err)
	var blocked *GuardBlockedError
	assert.ErrorAs(t, err, &blocked)
}

func TestGuardExecutorPassesThrough(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "g2", Kind: flow.KindGuard, Guard: &flow.GuardSpec{
		Guard: flow.GuardDef{Types: []string{"pii"}, Action: "block"},
		Args:  `"no sensitive data here"`,
		Then:  "next",
	}}

	exec := &GuardExecutor{}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Equal(t, []string{"next"}, res.NextHint)
}

func TestGuardExecutorRedactsPII(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "g3", Kind: flow.KindGuard, Guard: &flow.GuardSpec{
		Guard: flow.GuardDef{Types: []string{"pii"}, Action: "redact"},
		Args:  `"contact me at jane@example.com"`,
	}}

	exec := &GuardExecutor{}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.NotContains(t, res.Value.Str(), "jane@example.com")
	assert.Contains(t, res.Value.Str(), "[REDACTED]")
}

func TestApprovalExecutorSuspendsThenResumes(t *testing.T) {
	eval, ctx := newEvalCtx()
	node := &flow.Node{ID: "a1", Kind: flow.KindApproval, Approval: &flow.ApprovalSpec{
		Approval: flow.ApprovalDef{
			Options: []flow.ApprovalOption{{ID: "approve", Label: "Approve"}, {ID: "reject", Label: "Reject"}},
		},
		Then: "proceed",
		Else: "stop",
	}}

	exec := ApprovalExecutor{}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	require.NotNil(t, res.Suspend)
	assert.Equal(t, "approval", res.Suspend.Reason)

	ctx.Set(approvalResolutionVar, value.Object_(value.NewObject().Set("optionId", value.String("approve"))))
	res, err = exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Equal(t, []string{"proceed"}, res.NextHint)
}

func TestHandoffExecutorSuspendsThenResumes(t *testing.T) {
	eval, ctx := newEvalCtx()
	ctx.Set("caseId", value.String("abc"))

	node := &flow.Node{ID: "h1", Kind: flow.KindHandoff, Handoff: &flow.HandoffSpec{
		Handoff: flow.HandoffDef{Target: "human-agent", Context: []string{"caseId"}, ResumeOn: "completed"},
	}}

	exec := HandoffExecutor{}
	res, err := exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	require.NotNil(t, res.Suspend)
	assert.Equal(t, "handoff", res.Suspend.Reason)

	ctx.Set(handoffResolutionVar, value.Object_(value.NewObject().Set("status", value.String("completed")).Set("output", value.String("done"))))
	res, err = exec.Run(context.Background(), node, ctx, eval)
	require.NoError(t, err)
	assert.Equal(t, "done", res.Value.Str())
}
