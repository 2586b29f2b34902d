package executor

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// approvalResolutionVar is the scheduler-bound variable carrying the
// resolved option once an approval is no longer pending. Its absence is
// what distinguishes a first dispatch (suspend) from a resumed one.
const approvalResolutionVar = "$approvalResolution"

// ApprovalExecutor implements the `approval` node kind: suspend on first dispatch, and on resume compare the
// resolved option against the node's approve-set (by convention, the
// first declared option) to choose `then` or `else`.
type ApprovalExecutor struct{}

func (ApprovalExecutor) Run(_ context.Context, node *flow.Node, ectx *value.Context, _ *gml.Evaluator) (NodeResult, error) {
	spec := node.Approval

	resolution, ok := ectx.Get(approvalResolutionVar)
	if !ok {
		request := value.NewObject().
			Set("title", value.String(spec.Approval.Title)).
			Set("description", value.String(spec.Approval.Description)).
			Set("options", approvalOptionsValue(spec.Approval.Options)).
			Set("timeoutMs", value.Number(float64(spec.Approval.TimeoutMs))).
			Set("timeoutAction", value.String(spec.Approval.TimeoutAction))
		return NodeResult{Suspend: &Suspension{Reason: "approval", Data: value.Object_(request)}}, nil
	}

	optionID, timedOut := parseResolution(resolution)
	if timedOut {
		optionID = spec.Approval.TimeoutAction
	}

	next := spec.Else
	if isApproved(spec.Approval.Options, optionID) {
		next = spec.Then
	}
	var hint []string
	if next != "" {
		hint = []string{next}
	}
	return NodeResult{Value: value.String(optionID), NextHint: hint}, nil
}

func approvalOptionsValue(opts []flow.ApprovalOption) value.Value {
	items := make([]value.Value, len(opts))
	for i, o := range opts {
		items[i] = value.Object_(value.NewObject().Set("id", value.String(o.ID)).Set("label", value.String(o.Label)))
	}
	return value.ArrayFrom(items)
}

func parseResolution(v value.Value) (optionID string, timedOut bool) {
	if v.Kind() != value.KindObject {
		return v.Str(), false
	}
	if idv, ok := v.Object().Get("optionId"); ok {
		optionID = idv.Str()
	}
	if tv, ok := v.Object().Get("timedOut"); ok {
		timedOut = tv.Truthy()
	}
	return optionID, timedOut
}

// isApproved reports whether optionID is the configured approve-set
// member — by convention, the first declared option (see DESIGN.md).
func isApproved(opts []flow.ApprovalOption, optionID string) bool {
	if len(opts) == 0 {
		return optionID == "approve"
	}
	return optionID == opts[0].ID
}
