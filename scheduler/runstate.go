package scheduler

import (
	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/graph"
)

// runState tracks, for one in-progress execution or subflow run, how many
// of each node's incoming edges have been resolved (the source settled,
// whether by completing, failing-handled, or being skipped) and whether
// any resolved edge actually selected that node. It is transient:
// rebuilt from flow.ExecutionState.Completed/Skipped on recovery rather
// than persisted itself, since it is fully re-derivable from the DAG plus
// the completed set.
type runState struct {
	g         *graph.DepGraph
	resolved  map[string]int
	reachable map[string]bool
}

func newRunState(g *graph.DepGraph) *runState {
	rs := &runState{
		g:         g,
		resolved:  make(map[string]int, len(g.NodeIDs)),
		reachable: make(map[string]bool, len(g.NodeIDs)),
	}
	for _, id := range g.Roots {
		rs.reachable[id] = true
	}
	return rs
}

// rebuild re-derives resolved/reachable from an ExecutionState's
// Completed set, used after loading a recovered snapshot. Every
// completed node is treated as having selected all of its outgoing
// edges: precise conditional-branch replay is not preserved across a
// snapshot round-trip, so recovery may over-schedule rather than
// wrongly skip a node — consistent with at-least-once re-execution of
// in-flight work after a crash.
func (rs *runState) rebuild(completed map[string]bool) {
	for id := range completed {
		rs.onNodeSettled(id, true, nil)
	}
}

// onNodeSettled records that nodeID has reached a terminal per-node
// state: reachable tells whether nodeID was itself actually executed (as
// opposed to skipped), and selected (non-nil only for Condition/Switch/
// Guard/Approval nodes) names the specific downstream node IDs the node
// chose — NodeResult.NextHint, already resolved to concrete node IDs by
// the executor. A settled-but-unreachable node (skipped) never selects
// any edge.
func (rs *runState) onNodeSettled(nodeID string, reachable bool, selected []string) {
	selectedSet := make(map[string]bool, len(selected))
	for _, id := range selected {
		selectedSet[id] = true
	}
	for _, e := range rs.g.Forward[nodeID] {
		rs.resolved[e.To]++
		taken := reachable && (len(selected) == 0 || selectedSet[e.To])
		if taken {
			rs.reachable[e.To] = true
		}
	}
}

// decidable returns every node whose incoming edges are all resolved but
// which is not yet completed or in flight — ready to be classified as
// either ready-to-dispatch (reachable) or skip (unreachable). Fail-only
// targets are excluded entirely: they have no ordinary incoming edges to
// resolve and must never be auto-skipped or auto-dispatched by this
// bookkeeping — they are reached exclusively through the fail side
// channel in execution.handleFailure.
func (rs *runState) decidable(es *flow.ExecutionState) []string {
	var out []string
	for _, id := range rs.g.NodeIDs {
		if es.Completed[id] || es.Pending[id] {
			continue
		}
		if rs.g.FailTargets[id] && rs.g.InDegree[id] == 0 {
			continue
		}
		if rs.resolved[id] >= rs.g.InDegree[id] {
			out = append(out, id)
		}
	}
	return out
}
