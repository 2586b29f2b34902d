package executor

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// handoffResolutionVar is the scheduler-bound variable carrying the
// target's outcome once a handoff is no longer pending.
const handoffResolutionVar = "$handoffResolution"

// HandoffExecutor implements the `handoff` node kind:
// bind the target agent, propagate selected context keys, and suspend
// until the target reaches the state named by `resume_on`.
type HandoffExecutor struct{}

func (HandoffExecutor) Run(_ context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Handoff

	resolution, ok := ectx.Get(handoffResolutionVar)
	if !ok {
		args, err := evalBlock(eval, spec.Args, ectx)
		if err != nil {
			return NodeResult{}, err
		}
		propagated := value.NewObject()
		for _, key := range spec.Handoff.Context {
			if v, ok := ectx.Get(key); ok {
				propagated.Set(key, v)
			}
		}
		request := value.NewObject().
			Set("target", value.String(spec.Handoff.Target)).
			Set("resumeOn", value.String(spec.Handoff.ResumeOn)).
			Set("args", args).
			Set("context", value.Object_(propagated))
		return NodeResult{Suspend: &Suspension{Reason: "handoff", Data: value.Object_(request)}}, nil
	}

	status, output := parseHandoffResolution(resolution)
	resumeOn := spec.Handoff.ResumeOn
	if resumeOn == "" {
		resumeOn = "completed"
	}
	if resumeOn != "any" && status != resumeOn {
		return NodeResult{}, fmt.Errorf("executor: handoff node %s target reached %q, awaited %q", node.ID, status, resumeOn)
	}

	result := output
	if spec.With != "" {
		shapeCtx := ectx.NewChild()
		shapeCtx.Set("$raw", output)
		shaped, err := evalExpr(eval, spec.With, shapeCtx)
		if err != nil {
			return NodeResult{}, err
		}
		result = shaped
	}
	return NodeResult{Value: result}, nil
}

func parseHandoffResolution(v value.Value) (status string, output value.Value) {
	if v.Kind() != value.KindObject {
		return "completed", v
	}
	status = "completed"
	if sv, ok := v.Object().Get("status"); ok {
		status = sv.Str()
	}
	output = value.Undefined()
	if ov, ok := v.Object().Get("output"); ok {
		output = ov
	}
	return status, output
}
