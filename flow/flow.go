package flow

import "fmt"

// Flow is the immutable, typed representation of one flow definition. It
// never mutates after FDL compilation; every execution creates its own
// ExecutionState against the same Flow value.
type Flow struct {
	Meta       Meta
	McpServers []McpServerRef
	ArgsIn     []ParamSpec
	ArgsOut    OutputSpec
	ArgsDefs   map[string]TypeDef
	Vars       string // raw GML, optional
	Nodes      []*Node
	NodesByID  map[string]*Node
}

// New indexes nodes by ID. Callers (the FDL parser, tests) build Nodes in
// declaration order and call New to get a queryable Flow.
func New(meta Meta, nodes []*Node) *Flow {
	f := &Flow{Meta: meta, Nodes: nodes, NodesByID: make(map[string]*Node, len(nodes))}
	for _, n := range nodes {
		f.NodesByID[n.ID] = n
	}
	return f
}

// Validate checks the structural invariants a flow must satisfy before it
// can be scheduled: unique node IDs and that every `next`/branch reference
// names a node that exists in the same namespace.
func (f *Flow) Validate() error {
	seen := make(map[string]bool, len(f.Nodes))
	for _, n := range f.Nodes {
		if seen[n.ID] {
			return fmt.Errorf("flow: duplicate node id %q", n.ID)
		}
		seen[n.ID] = true
	}
	for _, n := range f.Nodes {
		for _, ref := range outgoingRefs(n) {
			if ref == "" {
				continue
			}
			if _, ok := f.NodesByID[ref]; !ok {
				return fmt.Errorf("flow: node %q references unknown node id %q", n.ID, ref)
			}
		}
	}
	return nil
}

// outgoingRefs lists every NodeId a node's fields can name as a successor:
// `next`, `fail`, and the variant-specific branch targets.
func outgoingRefs(n *Node) []string {
	refs := append([]string{}, n.Next...)
	if n.Fail != "" {
		refs = append(refs, n.Fail)
	}
	switch n.Kind {
	case KindCondition:
		refs = append(refs, n.Condition.Then, n.Condition.Else)
	case KindSwitch:
		for _, c := range n.Switch.Cases {
			refs = append(refs, c.Then)
		}
		refs = append(refs, n.Switch.Else)
	case KindGuard:
		refs = append(refs, n.Guard.Then, n.Guard.Else)
	case KindApproval:
		refs = append(refs, n.Approval.Then, n.Approval.Else)
	}
	return refs
}
