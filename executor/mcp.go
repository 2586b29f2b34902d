package executor

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/tools"
	"github.com/lyzr/orchestrator/value"
)

// McpExecutor implements the `mcp` node kind: dispatch to
// the Model Context Protocol client identified by `server`, invoke `tool`
// with `args`, apply `with`.
type McpExecutor struct {
	Deps
}

func (m *McpExecutor) Run(ctx context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Mcp

	args, err := evalArgsBlock(eval, spec.Args, ectx)
	if err != nil {
		return NodeResult{}, err
	}

	handle, err := m.Tools.Resolve(tenantFromContext(ectx), tools.TypeMCP, spec.Mcp.Server)
	if err != nil {
		return NodeResult{}, err
	}
	toolSpec := m.Tools.GetTool(handle, spec.Mcp.Tool)
	deadline := toolSpec.Deadline(m.now())

	raw, err := m.Tools.Invoke(ctx, handle, toolSpec, args, deadline)
	if err != nil {
		return NodeResult{}, err
	}

	shaped, err := shapeResult(eval, spec.With, raw, ectx)
	if err != nil {
		return NodeResult{}, err
	}
	return NodeResult{Value: shaped}, nil
}
