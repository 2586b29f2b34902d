// Package graph builds the dependency graph a scheduler dispatches against:
// from a flow.Flow (or flow.Subflow), compute a DAG with in-degrees,
// forward/reverse adjacency, convergence points and root nodes, following
// compiler/ir.go's edge-derivation and cycle-detection pass style.
package graph

import (
	"fmt"

	"github.com/lyzr/orchestrator/flow"
)

// Edge is one dependency edge. Conditional edges (Condition/Switch/Guard/
// Approval branch targets) are only "satisfied" at runtime along the
// branch actually taken; Branch names which one ("then", "else", or
// "case<i>").
type Edge struct {
	To          string
	Conditional bool
	Branch      string
}

// DepGraph is the precomputed dependency structure of one flow or subflow.
type DepGraph struct {
	NodeIDs     []string
	Forward     map[string][]Edge // nodeID -> outgoing edges (dependency/next, not fail)
	Reverse     map[string][]Edge // nodeID -> incoming edges
	InDegree    map[string]int
	Roots       []string        // in-degree 0, excluding fail-only targets
	FailTargets map[string]bool // nodeIDs named by some node's `fail`, reached only via that side channel
}

// IsConvergencePoint reports whether nodeID has in-degree >= 2.
func (g *DepGraph) IsConvergencePoint(nodeID string) bool {
	return g.InDegree[nodeID] >= 2
}

// Build validates flow f and computes its DepGraph. Fail edges are
// intentionally excluded from both in-degree and cycle detection: they
// are traversed only on node failure, never contribute to dependency
// ordering.
func Build(f *flow.Flow) (*DepGraph, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(f.Nodes))
	for _, n := range f.Nodes {
		ids = append(ids, n.ID)
	}
	return buildFromEdges(ids, edgesOf(f.Nodes), failTargetsOf(f.Nodes))
}

// BuildSubflow computes the DepGraph of an Each/Loop subflow, whose nodes
// live in their own NodeId namespace.
func BuildSubflow(sf *flow.Subflow) (*DepGraph, error) {
	ids := make([]string, 0, len(sf.Nodes))
	for _, n := range sf.Nodes {
		ids = append(ids, n.ID)
	}
	return buildFromEdges(ids, edgesOf(sf.Nodes), failTargetsOf(sf.Nodes))
}

// failTargetsOf collects every nodeID named by some node's `fail`: these
// are reached only via the scheduler's fail-routing side channel, never
// through ordinary dependency resolution, so they must not be treated as
// graph roots merely for lacking normal incoming edges.
func failTargetsOf(nodes []*flow.Node) map[string]bool {
	out := make(map[string]bool)
	for _, n := range nodes {
		if n.Fail != "" {
			out[n.Fail] = true
		}
	}
	return out
}

func edgesOf(nodes []*flow.Node) map[string][]Edge {
	out := make(map[string][]Edge, len(nodes))
	for _, n := range nodes {
		var edges []Edge
		for _, next := range n.Next {
			if next != "" {
				edges = append(edges, Edge{To: next})
			}
		}
		switch n.Kind {
		case flow.KindCondition:
			if n.Condition.Then != "" {
				edges = append(edges, Edge{To: n.Condition.Then, Conditional: true, Branch: "then"})
			}
			if n.Condition.Else != "" {
				edges = append(edges, Edge{To: n.Condition.Else, Conditional: true, Branch: "else"})
			}
		case flow.KindSwitch:
			for i, c := range n.Switch.Cases {
				if c.Then != "" {
					edges = append(edges, Edge{To: c.Then, Conditional: true, Branch: fmt.Sprintf("case%d", i)})
				}
			}
			if n.Switch.Else != "" {
				edges = append(edges, Edge{To: n.Switch.Else, Conditional: true, Branch: "else"})
			}
		case flow.KindGuard:
			if n.Guard.Then != "" {
				edges = append(edges, Edge{To: n.Guard.Then, Conditional: true, Branch: "then"})
			}
			if n.Guard.Else != "" {
				edges = append(edges, Edge{To: n.Guard.Else, Conditional: true, Branch: "else"})
			}
		case flow.KindApproval:
			if n.Approval.Then != "" {
				edges = append(edges, Edge{To: n.Approval.Then, Conditional: true, Branch: "then"})
			}
			if n.Approval.Else != "" {
				edges = append(edges, Edge{To: n.Approval.Else, Conditional: true, Branch: "else"})
			}
		}
		out[n.ID] = edges
	}
	return out
}

func buildFromEdges(ids []string, forward map[string][]Edge, failTargets map[string]bool) (*DepGraph, error) {
	g := &DepGraph{
		NodeIDs:     ids,
		Forward:     forward,
		Reverse:     make(map[string][]Edge, len(ids)),
		InDegree:    make(map[string]int, len(ids)),
		FailTargets: failTargets,
	}
	for _, id := range ids {
		g.InDegree[id] = 0
	}
	for from, edges := range forward {
		for _, e := range edges {
			g.Reverse[e.To] = append(g.Reverse[e.To], Edge{To: from, Conditional: e.Conditional, Branch: e.Branch})
			g.InDegree[e.To]++
		}
	}
	for _, id := range ids {
		if g.InDegree[id] == 0 && !failTargets[id] {
			g.Roots = append(g.Roots, id)
		}
	}
	if err := detectCycle(ids, forward); err != nil {
		return nil, err
	}
	return g, nil
}

type color int

const (
	white color = iota
	gray
	black
)

// detectCycle runs DFS colouring over the dependency edges. Loop-node back-edges never appear
// here because a Loop's subflow is built and validated as its own
// DepGraph via BuildSubflow, never folded into the parent's edge set.
func detectCycle(ids []string, forward map[string][]Edge) error {
	colors := make(map[string]color, len(ids))
	var visit func(id string, path []string) error
	visit = func(id string, path []string) error {
		colors[id] = gray
		for _, e := range forward[id] {
			switch colors[e.To] {
			case gray:
				return fmt.Errorf("graph: cycle detected involving node %q", e.To)
			case white:
				if err := visit(e.To, append(path, e.To)); err != nil {
					return err
				}
			}
		}
		colors[id] = black
		return nil
	}
	for _, id := range ids {
		if colors[id] == white {
			if err := visit(id, []string{id}); err != nil {
				return err
			}
		}
	}
	return nil
}
