// Package executor implements the twelve node executors: each variant's
// Run(ctx, node, ectx, eval) → NodeResult, dispatched by flow.NodeKind.
package executor

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// NodeResult is what every executor produces. Variable writes (`sets`,
// assignments inside `args`/`with` blocks) already land directly in the
// dispatch frame passed to Run, so the scheduler only needs Value itself
// to bind under the node's id.
type NodeResult struct {
	Value value.Value
	// NextHint overrides the node's static Next/branch edges when set —
	// used by Condition/Switch/Guard/Approval to select a single
	// downstream edge out of several declared ones.
	NextHint []string
	// Suspend signals the scheduler should pause this execution rather
	// than continue (Approval awaiting resolution, Handoff awaiting the
	// target).
	Suspend *Suspension
}

// Suspension describes why and how an execution paused mid-node.
type Suspension struct {
	Reason string // "approval", "handoff"
	Data   value.Value
}

// Executor runs one node to completion (or suspension) against ctx, the
// child frame the scheduler created for this dispatch.
type Executor interface {
	Run(ctx context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error)
}

// Dispatch is the kind → Executor table driving node execution.
type Dispatch map[flow.NodeKind]Executor

// NewDispatch builds the default dispatch table wiring every node kind to
// its executor implementation.
func NewDispatch(deps Deps) Dispatch {
	return Dispatch{
		flow.KindExec:      &ExecExecutor{Deps: deps},
		flow.KindMapping:   &MappingExecutor{},
		flow.KindCondition: &ConditionExecutor{},
		flow.KindSwitch:    &SwitchExecutor{},
		flow.KindDelay:     &DelayExecutor{},
		flow.KindEach:      &EachExecutor{Deps: deps},
		flow.KindLoop:      &LoopExecutor{Deps: deps},
		flow.KindAgent:     &AgentExecutor{Deps: deps},
		flow.KindMcp:       &McpExecutor{Deps: deps},
		flow.KindGuard:     &GuardExecutor{},
		flow.KindApproval:  &ApprovalExecutor{},
		flow.KindHandoff:   &HandoffExecutor{},
	}
}

// evalExpr runs a GML expression block against ectx, returning Undefined
// for an empty source (many node fields are optional GML blocks).
func evalExpr(eval *gml.Evaluator, src string, ectx *value.Context) (value.Value, error) {
	if src == "" {
		return value.Undefined(), nil
	}
	expr, errs := gml.ParseExpr(src)
	if len(errs) > 0 {
		return value.Undefined(), errs[0]
	}
	return eval.Eval(expr, ectx)
}

// evalBlock runs a GML statement block (as used by `sets`/`with` bodies
// that assign multiple variables) against ectx.
func evalBlock(eval *gml.Evaluator, src string, ectx *value.Context) (value.Value, error) {
	if src == "" {
		return value.Undefined(), nil
	}
	block, errs := gml.ParseBlock(src)
	if len(errs) > 0 {
		return value.Undefined(), errs[0]
	}
	return eval.EvalBlock(block, ectx)
}
