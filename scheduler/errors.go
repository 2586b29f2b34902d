package scheduler

import (
	"context"
	"errors"
	"fmt"

	"github.com/lyzr/orchestrator/executor"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/tools"
)

// Kind is one member of the closed error-kind set the scheduler surfaces
// on ExecutionState.Error and in failure events.
type Kind string

const (
	KindParse      Kind = "ParseError"
	KindValidation Kind = "ValidationError"
	KindEval       Kind = "EvalError"
	KindTool       Kind = "ToolError"
	KindNode       Kind = "NodeError"
	KindScheduling Kind = "SchedulingError"
	KindState      Kind = "StateError"
	KindCancelled  Kind = "Cancelled"
)

// ValidationError reports an input that failed `args.in` matching: a
// missing required field, a type mismatch, or a NodeId reference that
// resolves to nothing.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("scheduler: validation: %s: %s", e.Field, e.Message)
}

// NodeError wraps a lower-level failure with the node it occurred on and
// the error kind the failure classifies as.
type NodeError struct {
	NodeID string
	Kind   Kind
	Cause  error
}

func (e *NodeError) Error() string {
	return fmt.Sprintf("scheduler: node %s: %s: %v", e.NodeID, e.Kind, e.Cause)
}

func (e *NodeError) Unwrap() error { return e.Cause }

// SchedulingError reports a failure of the scheduler's own bookkeeping:
// an unbuildable dependency graph, a subflow that stalls or suspends, or a
// recovery whose flow cannot be resolved. A loop exceeding its iteration
// bound surfaces as executor.LoopBoundExceeded, which classify also maps
// to KindScheduling.
type SchedulingError struct {
	Message string
	Cause   error
}

func (e *SchedulingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("scheduler: %s: %v", e.Message, e.Cause)
	}
	return "scheduler: " + e.Message
}

func (e *SchedulingError) Unwrap() error { return e.Cause }

// StateError reports a Persistence Manager failure.
type StateError struct {
	Op    string
	Cause error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("scheduler: persistence %s: %v", e.Op, e.Cause)
}

func (e *StateError) Unwrap() error { return e.Cause }

// ErrCancelled is returned/classified when a node or execution stops
// because its cancellation token fired.
var ErrCancelled = errors.New("scheduler: execution cancelled")

// classify maps an arbitrary node-executor error onto the closed
// error-kind set, for event reporting and ExecutionState.Error.
func classify(err error) Kind {
	if err == nil {
		return ""
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrCancelled) {
		return KindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTool
	}
	var parseErr *gml.ParseError
	if errors.As(err, &parseErr) {
		return KindParse
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return KindValidation
	}
	var loopErr *executor.LoopBoundExceeded
	if errors.As(err, &loopErr) {
		return KindScheduling
	}
	var guardErr *executor.GuardBlockedError
	if errors.As(err, &guardErr) {
		return KindNode
	}
	var timeoutErr *tools.TimeoutError
	if errors.As(err, &timeoutErr) {
		return KindTool
	}
	var httpErr *tools.HTTPStatusError
	if errors.As(err, &httpErr) {
		return KindTool
	}
	var stateErr *StateError
	if errors.As(err, &stateErr) {
		return KindState
	}
	var schedErr *SchedulingError
	if errors.As(err, &schedErr) {
		return KindScheduling
	}
	return KindEval
}

// asNodeError wraps err (classifying it) as a NodeError, unless it is
// already one.
func asNodeError(nodeID string, err error) *NodeError {
	var ne *NodeError
	if errors.As(err, &ne) {
		return ne
	}
	return &NodeError{NodeID: nodeID, Kind: classify(err), Cause: err}
}
