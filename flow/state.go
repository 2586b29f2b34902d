package flow

import (
	"time"

	"github.com/google/uuid"
	"github.com/lyzr/orchestrator/value"
)

// Status is the terminal/non-terminal lifecycle of an ExecutionState.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusPaused    Status = "paused"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is one of the statuses after which no field
// except UpdatedAt may change.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// NodeRunState is the per-node state recorded in history.
type NodeRunState string

const (
	NodeRunPending       NodeRunState = "pending"
	NodeRunRunning       NodeRunState = "running"
	NodeRunCompleted     NodeRunState = "completed"
	NodeRunFailed        NodeRunState = "failed"
	NodeRunFailedHandled NodeRunState = "failed_handled"
	NodeRunSkipped       NodeRunState = "skipped"
)

// NodeExecutionRecord is one entry of ExecutionState.History.
type NodeExecutionRecord struct {
	NodeID    string
	StartedAt time.Time
	EndedAt   time.Time
	State     NodeRunState
	Input     value.Value
	Output    value.Value
	Error     string
}

// ExecutionState is the mutable record of one running or finished
// execution. It is owned exclusively by the orchestrating
// scheduler task.
type ExecutionState struct {
	ExecutionID string
	FlowID      string
	TenantID    string
	Status      Status

	Context *value.Context

	Completed    map[string]bool
	Pending      map[string]bool
	CurrentNodes map[string]bool
	Skipped      map[string]bool

	History []NodeExecutionRecord

	Error     string
	ErrorNode string

	StartedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt time.Time
}

// NewExecutionState seeds a fresh execution state for flowID/tenantID.
func NewExecutionState(flowID, tenantID string, ctx *value.Context) *ExecutionState {
	now := time.Now()
	return &ExecutionState{
		ExecutionID:  uuid.NewString(),
		FlowID:       flowID,
		TenantID:     tenantID,
		Status:       StatusPending,
		Context:      ctx,
		Completed:    make(map[string]bool),
		Pending:      make(map[string]bool),
		CurrentNodes: make(map[string]bool),
		Skipped:      make(map[string]bool),
		StartedAt:    now,
		UpdatedAt:    now,
	}
}

// MarkPending records a node as dispatched-but-not-finished.
func (s *ExecutionState) MarkPending(nodeID string) {
	delete(s.Completed, nodeID)
	s.Pending[nodeID] = true
	s.CurrentNodes[nodeID] = true
	s.UpdatedAt = time.Now()
}

// MarkCompleted moves a node from Pending to Completed and appends its
// history record. rec.State must be Completed, Failed, FailedHandled or
// Skipped — callers choose which via rec.State.
func (s *ExecutionState) MarkCompleted(nodeID string, rec NodeExecutionRecord) {
	delete(s.Pending, nodeID)
	delete(s.CurrentNodes, nodeID)
	if rec.State == NodeRunCompleted || rec.State == NodeRunFailedHandled {
		s.Completed[nodeID] = true
	}
	if rec.State == NodeRunSkipped {
		s.Completed[nodeID] = true
		s.Skipped[nodeID] = true
	}
	s.History = append(s.History, rec)
	s.UpdatedAt = time.Now()
}

// Invariant reports a violation of ExecutionState's consistency rules, for
// tests and defensive checks around snapshot boundaries.
func (s *ExecutionState) Invariant() error {
	for id := range s.Completed {
		if s.Pending[id] {
			return errDisjoint(id)
		}
	}
	return nil
}

type invariantError struct{ nodeID string }

func (e invariantError) Error() string {
	return "flow: node " + e.nodeID + " is in both completed and pending sets"
}

func errDisjoint(nodeID string) error { return invariantError{nodeID: nodeID} }
