package executor

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// SwitchExecutor implements the `switch` node kind:
// evaluate each case's `when` in declaration order, first truthy wins.
type SwitchExecutor struct{}

func (SwitchExecutor) Run(_ context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Switch

	for _, c := range spec.Cases {
		when, err := evalExpr(eval, c.When, ectx)
		if err != nil {
			return NodeResult{}, err
		}
		if when.Truthy() {
			return NodeResult{Value: value.String(c.Then), NextHint: []string{c.Then}}, nil
		}
	}
	if spec.Else != "" {
		return NodeResult{Value: value.String(spec.Else), NextHint: []string{spec.Else}}, nil
	}
	return NodeResult{Value: value.Null()}, nil
}
