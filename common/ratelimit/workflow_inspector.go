package ratelimit

import "github.com/lyzr/orchestrator/flow"

// WorkflowTier represents the rate limit tier based on flow complexity.
type WorkflowTier string

const (
	TierSimple   WorkflowTier = "simple"   // no agent nodes
	TierStandard WorkflowTier = "standard" // 1-2 agent nodes
	TierHeavy    WorkflowTier = "heavy"    // 3+ agent nodes
)

// FlowProfile summarizes the agent-node density of a flow, which is what
// actually drives cost: each agent node is an LLM call, the rest of the
// node kinds (mapping, condition, exec, ...) are cheap in comparison.
type FlowProfile struct {
	Tier          WorkflowTier
	AgentCount    int
	HasAgentNodes bool
	TotalNodes    int
}

// InspectFlow walks f's top-level nodes (and each/loop subflows) counting
// agent nodes to classify the flow into a rate-limit tier.
func InspectFlow(f *flow.Flow) FlowProfile {
	profile := FlowProfile{Tier: TierSimple}
	countNodes(f.Nodes, &profile)
	profile.Tier = determineTier(profile.AgentCount)
	return profile
}

func countNodes(nodes []*flow.Node, profile *FlowProfile) {
	for _, n := range nodes {
		profile.TotalNodes++
		if n.Kind == flow.KindAgent {
			profile.AgentCount++
			profile.HasAgentNodes = true
		}
		if n.Kind == flow.KindEach && n.Each != nil && n.Each.Subflow != nil {
			countNodes(n.Each.Subflow.Nodes, profile)
		}
		if n.Kind == flow.KindLoop && n.Loop != nil && n.Loop.Subflow != nil {
			countNodes(n.Loop.Subflow.Nodes, profile)
		}
	}
}

func determineTier(agentCount int) WorkflowTier {
	switch {
	case agentCount == 0:
		return TierSimple
	case agentCount <= 2:
		return TierStandard
	default:
		return TierHeavy
	}
}

// String returns a human-readable description of the tier.
func (t WorkflowTier) String() string {
	switch t {
	case TierSimple:
		return "simple"
	case TierStandard:
		return "standard"
	case TierHeavy:
		return "heavy"
	default:
		return "unknown"
	}
}
