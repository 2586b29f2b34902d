package executor

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// defaultMaxLoopIterations is the safety bound applied when a loop node
// leaves MaxIterations unset.
const defaultMaxLoopIterations = 10000

// LoopBoundExceeded reports a loop node exceeding its iteration bound.
type LoopBoundExceeded struct {
	NodeID     string
	Iterations int
}

func (e *LoopBoundExceeded) Error() string {
	return fmt.Sprintf("executor: loop node %s exceeded %d iterations", e.NodeID, e.Iterations)
}

// LoopExecutor implements the `loop` node kind: seed loop
// state, repeatedly evaluate `when` and run the subflow while propagating
// variable writes back into the loop context, until `when` is falsy or the
// iteration bound trips.
type LoopExecutor struct {
	Deps
}

func (l *LoopExecutor) Run(ctx context.Context, node *flow.Node, ectx *value.Context, eval *gml.Evaluator) (NodeResult, error) {
	spec := node.Loop
	if l.Subflow == nil {
		return NodeResult{}, fmt.Errorf("executor: loop node %s has no subflow runner wired", node.ID)
	}

	loopCtx := ectx.NewChild()
	if spec.Vars != "" {
		if _, err := evalBlock(eval, spec.Vars, loopCtx); err != nil {
			return NodeResult{}, err
		}
	}

	maxIter := spec.MaxIterations
	if maxIter <= 0 {
		maxIter = defaultMaxLoopIterations
	}

	iterations := 0
	for {
		when, err := evalExpr(eval, spec.When, loopCtx)
		if err != nil {
			return NodeResult{}, err
		}
		if !when.Truthy() {
			break
		}
		if iterations >= maxIter {
			return NodeResult{}, &LoopBoundExceeded{NodeID: node.ID, Iterations: iterations}
		}

		iterCtx := loopCtx.NewChild()
		finalCtx, err := l.Subflow.RunSubflow(ctx, spec.Subflow, iterCtx)
		if err != nil {
			return NodeResult{}, err
		}
		// propagate variable writes back to the loop context so `when`
		// observes updated state on the next iteration.
		loopCtx.SetAll(finalCtx.Snapshot())

		select {
		case <-ctx.Done():
			return NodeResult{}, ctx.Err()
		default:
		}
		iterations++
	}

	if spec.With != "" {
		out, err := evalExpr(eval, spec.With, loopCtx)
		if err != nil {
			return NodeResult{}, err
		}
		return NodeResult{Value: out}, nil
	}
	return NodeResult{Value: value.Object_(snapshotToObject(loopCtx))}, nil
}
