package executor

import (
	"context"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/value"
)

// SubflowRunner drives one of a flow.Subflow's self-contained node sets to
// completion. It is
// implemented by the scheduler, which owns the dependency-graph dispatch
// loop that Each/Loop iterations reuse recursively — the executor package
// only describes the contract so it can stay import-free of scheduler.
type SubflowRunner interface {
	// RunSubflow executes sf to completion against a fresh child frame of
	// parent (already seeded with the iteration's bound variables), and
	// returns that frame once every node in sf reaches a terminal state.
	RunSubflow(ctx context.Context, sf *flow.Subflow, parent *value.Context) (*value.Context, error)
}
