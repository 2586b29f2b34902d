package scheduler

import (
	"context"
	"fmt"

	"github.com/lyzr/orchestrator/executor"
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/graph"
	"github.com/lyzr/orchestrator/value"
)

// subflowOutcome is what a dispatched subflow node reports back to
// subflowDispatch's loop.
type subflowOutcome struct {
	nodeID string
	ectx   *value.Context
	result executor.NodeResult
	err    error
}

// subflowDispatch runs sf to completion against a fresh child of parent,
// reusing the scheduler's dispatch table and concurrency bound. It is a
// lighter-weight sibling of execution.run: no persistence, no crash
// recovery, and no suspension support — an Approval or Handoff node
// reached inside an Each/Loop body fails the subflow with a
// SchedulingError rather than attempting nested suspend/resume, since a
// paused subflow iteration has nowhere to persist its frame across a
// process restart. Fail-edge routing and fail-guard settlement mirror
// execution.handleFailure/settleFailGuard, scoped to this subflow run.
func (s *Scheduler) subflowDispatch(ctx context.Context, sf *flow.Subflow, parent *value.Context) (*value.Context, error) {
	g, err := graph.BuildSubflow(sf)
	if err != nil {
		return nil, &SchedulingError{Message: "building subflow dependency graph", Cause: err}
	}

	child := parent.NewChild()
	rs := newRunState(g)
	completed := make(map[string]bool, len(g.NodeIDs))
	pending := make(map[string]bool, len(g.NodeIDs))
	doneCh := make(chan subflowOutcome, 8)
	inFlight := 0

	guards := make(map[string]int, len(g.FailTargets))
	for _, n := range sf.Nodes {
		if n.Fail != "" && g.FailTargets[n.Fail] && g.InDegree[n.Fail] == 0 {
			guards[n.Fail]++
		}
	}
	settleGuard := func(target string) {
		if _, ok := guards[target]; !ok {
			return
		}
		guards[target]--
		if guards[target] > 0 || completed[target] || pending[target] {
			return
		}
		completed[target] = true
		rs.onNodeSettled(target, false, nil)
	}

	dispatch := func(node *flow.Node) {
		ectx := child.NewChild()
		inFlight++
		go func() {
			exec := s.cfg.Dispatch[node.Kind]
			if exec == nil {
				doneCh <- subflowOutcome{nodeID: node.ID, err: fmt.Errorf("scheduler: no executor wired for kind %s", node.Kind)}
				return
			}
			if err := s.sem.Acquire(ctx, 1); err != nil {
				doneCh <- subflowOutcome{nodeID: node.ID, err: err}
				return
			}
			defer s.sem.Release(1)
			result, err := exec.Run(ctx, node, ectx, s.cfg.Eval)
			doneCh <- subflowOutcome{nodeID: node.ID, ectx: ectx, result: result, err: err}
		}()
	}

	decidableSkip := func() {
		for progressed := true; progressed; {
			progressed = false
			for _, id := range rs.decidable(&flow.ExecutionState{Completed: completed, Pending: pending}) {
				if completed[id] || pending[id] {
					continue
				}
				if !rs.reachable[id] {
					completed[id] = true
					rs.onNodeSettled(id, false, nil)
					if n := sf.NodesByID[id]; n != nil && n.Fail != "" {
						settleGuard(n.Fail)
					}
					progressed = true
				}
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		decidableSkip()

		var ready []string
		es := &flow.ExecutionState{Completed: completed, Pending: pending}
		for _, id := range rs.decidable(es) {
			if rs.reachable[id] {
				ready = append(ready, id)
			}
		}
		for _, id := range ready {
			pending[id] = true
			dispatch(sf.NodesByID[id])
		}

		if len(ready) == 0 && inFlight == 0 {
			allDone := true
			for _, id := range g.NodeIDs {
				if !completed[id] {
					allDone = false
					break
				}
			}
			if allDone {
				return child, nil
			}
			return nil, &SchedulingError{Message: "subflow stalled: no ready nodes and no in-flight work remain but the subflow did not complete"}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case out := <-doneCh:
			inFlight--
			delete(pending, out.nodeID)
			node := sf.NodesByID[out.nodeID]
			if out.err != nil {
				if node.Fail != "" {
					completed[out.nodeID] = true
					rs.onNodeSettled(out.nodeID, false, nil)
					if target := sf.NodesByID[node.Fail]; target != nil && !completed[node.Fail] && !pending[node.Fail] {
						pending[node.Fail] = true
						dispatch(target)
					}
					continue
				}
				return nil, &NodeError{NodeID: out.nodeID, Kind: classify(out.err), Cause: out.err}
			}
			if out.result.Suspend != nil {
				return nil, &SchedulingError{Message: fmt.Sprintf("node %s suspended (%s) inside a subflow, which is not supported", out.nodeID, out.result.Suspend.Reason)}
			}
			child.SetAll(out.ectx.Snapshot())
			child.Set(out.nodeID, out.result.Value)
			completed[out.nodeID] = true
			rs.onNodeSettled(out.nodeID, true, out.result.NextHint)
			if node.Fail != "" {
				settleGuard(node.Fail)
			}
		}
	}
}
