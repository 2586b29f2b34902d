package executor

import (
	"context"
	"time"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/tools"
	"github.com/lyzr/orchestrator/value"
)

// ExecExecutor implements the `exec` node kind: parse the
// tool URI, evaluate args, resolve and invoke the tool through the
// Registry, shape the result with `with`, apply `sets`, retry on
// retriable failures.
type ExecExecutor struct {
	Deps
}

func (x *ExecExecutor) Run(ctx context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Exec

	uri, err := tools.ParseURI(spec.URI)
	if err != nil {
		return NodeResult{}, err
	}

	args, err := evalArgsBlock(eval, spec.Args, ectx)
	if err != nil {
		return NodeResult{}, err
	}

	handle, err := x.Tools.Resolve(tenantFromContext(ectx), uri.Type, uri.Service)
	if err != nil {
		return NodeResult{}, err
	}
	toolSpec := x.Tools.GetTool(handle, uri.Path)

	var raw interface{}
	var invokeErr error
	attempt := 0
	for {
		deadline := toolSpec.Deadline(x.now())
		raw, invokeErr = x.Tools.Invoke(ctx, handle, toolSpec, args, deadline)
		if invokeErr == nil {
			break
		}
		if attempt >= toolSpec.MaxRetries || !retriable(toolSpec, invokeErr) {
			return NodeResult{}, invokeErr
		}
		attempt++
		backoff := time.Duration(toolSpec.BackoffMS) * time.Millisecond * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return NodeResult{}, ctx.Err()
		case <-time.After(backoff):
		}
	}

	shaped, err := shapeResult(eval, spec.With, raw, ectx)
	if err != nil {
		return NodeResult{}, err
	}

	if _, err := evalBlock(eval, spec.Sets, ectx); err != nil {
		return NodeResult{}, err
	}

	return NodeResult{Value: shaped}, nil
}

func retriable(spec tools.ToolSpec, err error) bool {
	if spec.Retriable != nil {
		return spec.Retriable(err)
	}
	return tools.IsRetriable(err)
}

// shapeResult evaluates `with` against {$raw: result, ...ctx}, falling back to the raw tool result converted to a Value when
// `with` is absent.
func shapeResult(eval *gml.Evaluator, with string, raw interface{}, ectx *value.Context) (value.Value, error) {
	rawValue := value.FromAny(raw)
	if with == "" {
		return rawValue, nil
	}
	shapeCtx := ectx.NewChild()
	shapeCtx.Set("$raw", rawValue)
	return evalExpr(eval, with, shapeCtx)
}

// evalArgsBlock evaluates an `args`/`with` GML block in a child frame and
// returns the bindings it produced as a plain args map.
func evalArgsBlock(eval *gml.Evaluator, src string, ectx *value.Context) (map[string]interface{}, error) {
	if src == "" {
		return map[string]interface{}{}, nil
	}
	child := ectx.NewChild()
	result, err := evalBlock(eval, src, child)
	if err != nil {
		return nil, err
	}

	args := map[string]interface{}{}
	parentSnap := ectx.Snapshot()
	for k, v := range child.Snapshot() {
		if pv, ok := parentSnap[k]; ok && value.StrictEquals(pv, v) {
			continue
		}
		args[k] = value.ToAny(v)
	}
	if result.Kind() == value.KindObject {
		result.Object().Range(func(k string, v value.Value) bool {
			args[k] = value.ToAny(v)
			return true
		})
	}
	return args, nil
}

// tenantFromContext resolves the tenant id bound in scope as `$tenantId`
// by the scheduler when it seeds an execution's root context.
func tenantFromContext(ectx *value.Context) string {
	if v, ok := ectx.Get("$tenantId"); ok {
		return v.Str()
	}
	return ""
}
