package scheduler

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/value"
)

// Handle is the caller-facing view of one in-flight execution: a live
// event stream plus the operations an HTTP layer needs to drive it
// (cancel, resolve a suspended approval/handoff, wait for completion).
type Handle struct {
	ex *execution
}

// ExecutionID returns the id assigned when the execution was started.
func (h *Handle) ExecutionID() string {
	return h.ex.es.ExecutionID
}

// Events subscribes to this execution's event stream. The returned
// cancel func must be called once the caller stops reading, to release
// the subscriber's buffer.
func (h *Handle) Events() (<-chan ExecutionEvent, func()) {
	return h.ex.em.subscribe()
}

// Cancel requests cancellation of the execution's orchestrating task.
// It returns immediately; the execution settles to StatusCancelled once
// in-flight node executions drain or CancelDrainTimeout elapses.
func (h *Handle) Cancel() {
	h.ex.cancelFn()
}

// Resolve submits a resolution for a suspended approval or handoff node,
// re-dispatching it with the resolution bound into its frame. It blocks
// until the orchestrating task has accepted (not completed) the resume.
func (h *Handle) Resolve(ctx context.Context, nodeID string, res Resolution) error {
	reply := make(chan error, 1)
	req := resumeRequest{nodeID: nodeID, value: resolutionValue(res), reply: reply}
	select {
	case h.ex.resumeCh <- req:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the execution reaches a terminal status or ctx is
// done, returning the final ExecutionState.
func (h *Handle) Wait(ctx context.Context) (*flow.ExecutionState, error) {
	select {
	case <-h.ex.doneCh2:
		return h.ex.es, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// State returns a snapshot of the live execution's current state. Safe
// to call concurrently with the orchestrating task; fields may be
// observed mid-update since no lock is taken around es itself, which is
// acceptable for a status-polling read.
func (h *Handle) State() *flow.ExecutionState {
	return h.ex.es
}

// resolutionValue adapts a Resolution into the object bound at
// $approvalResolution / $handoffResolution, matching the shape the
// executors read back (`.optionId`, `.timedOut`).
func resolutionValue(res Resolution) value.Value {
	obj := value.NewObject().
		Set("optionId", value.String(res.OptionID)).
		Set("timedOut", value.Bool(res.TimedOut))
	return value.Object_(obj)
}
