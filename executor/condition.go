package executor

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// ConditionExecutor implements the `condition` node kind: evaluate `when`; the only downstream edge taken is `then` on
// a truthy result, `else` otherwise (the non-taken branch's edges are
// reported via NextHint for the scheduler to mark satisfied-as-skipped).
type ConditionExecutor struct{}

func (ConditionExecutor) Run(_ context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Condition

	when, err := evalExpr(eval, spec.When, ectx)
	if err != nil {
		return NodeResult{}, err
	}

	var next []string
	if when.Truthy() {
		next = []string{spec.Then}
	} else if spec.Else != "" {
		next = []string{spec.Else}
	}
	return NodeResult{Value: value.Bool(when.Truthy()), NextHint: next}, nil
}
