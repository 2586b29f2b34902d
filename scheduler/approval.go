package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lyzr/orchestrator/flow"
)

// PendingApproval is the wire/persisted record of one suspended approval
// node, keyed by (executionId, nodeId).
type PendingApproval struct {
	ExecutionID string
	NodeID      string
	Title       string
	Description string
	Options     []flow.ApprovalOption
	Deadline    time.Time // zero if the node declared no timeout
}

// Resolution is what an external actor submits to resolve a pending
// approval or handoff suspension.
type Resolution struct {
	OptionID string
	TimedOut bool
}

// ApprovalStore holds PendingApproval records across the suspend/resume
// boundary. Separate from persistence.Manager because approvals are
// resolved by an out-of-band API call, not by the scheduler's own
// snapshot/recovery cycle, and because every Manager backend
// (memory/redis/postgres) would otherwise need a parallel schema for a
// concern only the HTTP layer touches.
type ApprovalStore interface {
	Put(ctx context.Context, pa *PendingApproval) error
	Get(ctx context.Context, executionID, nodeID string) (*PendingApproval, error)
	Delete(ctx context.Context, executionID, nodeID string) error
	ListByExecution(ctx context.Context, executionID string) ([]*PendingApproval, error)
}

// MemoryApprovalStore is a mutex-guarded in-process ApprovalStore, the
// default for single-node/test deployments.
type MemoryApprovalStore struct {
	mu      sync.RWMutex
	pending map[string]*PendingApproval
}

func NewMemoryApprovalStore() *MemoryApprovalStore {
	return &MemoryApprovalStore{pending: make(map[string]*PendingApproval)}
}

func approvalKey(executionID, nodeID string) string { return executionID + "/" + nodeID }

func (s *MemoryApprovalStore) Put(_ context.Context, pa *PendingApproval) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[approvalKey(pa.ExecutionID, pa.NodeID)] = pa
	return nil
}

func (s *MemoryApprovalStore) Get(_ context.Context, executionID, nodeID string) (*PendingApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pa, ok := s.pending[approvalKey(executionID, nodeID)]
	if !ok {
		return nil, fmt.Errorf("scheduler: no pending approval for execution %s node %s", executionID, nodeID)
	}
	return pa, nil
}

func (s *MemoryApprovalStore) Delete(_ context.Context, executionID, nodeID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, approvalKey(executionID, nodeID))
	return nil
}

func (s *MemoryApprovalStore) ListByExecution(_ context.Context, executionID string) ([]*PendingApproval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*PendingApproval
	for _, pa := range s.pending {
		if pa.ExecutionID == executionID {
			out = append(out, pa)
		}
	}
	return out, nil
}
