package executor

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// MappingExecutor implements the `mapping` node kind:
// evaluate `with`, optionally apply `sets`.
type MappingExecutor struct{}

func (MappingExecutor) Run(_ context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Mapping

	result, err := evalBlock(eval, spec.With, ectx)
	if err != nil {
		return NodeResult{}, err
	}
	if _, err := evalBlock(eval, spec.Sets, ectx); err != nil {
		return NodeResult{}, err
	}
	return NodeResult{Value: result}, nil
}
