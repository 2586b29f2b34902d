package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lyzr/orchestrator/flow"
)

func nodeOfKind(id string, kind flow.NodeKind) *flow.Node {
	return &flow.Node{ID: id, Kind: kind}
}

func TestInspectFlowSimpleHasNoAgents(t *testing.T) {
	f := flow.New(flow.Meta{Name: "f"}, []*flow.Node{
		nodeOfKind("a", flow.KindMapping),
		nodeOfKind("b", flow.KindCondition),
	})
	profile := InspectFlow(f)
	assert.Equal(t, TierSimple, profile.Tier)
	assert.False(t, profile.HasAgentNodes)
	assert.Equal(t, 0, profile.AgentCount)
}

func TestInspectFlowStandardTwoAgents(t *testing.T) {
	f := flow.New(flow.Meta{Name: "f"}, []*flow.Node{
		nodeOfKind("a", flow.KindAgent),
		nodeOfKind("b", flow.KindAgent),
		nodeOfKind("c", flow.KindMapping),
	})
	profile := InspectFlow(f)
	assert.Equal(t, TierStandard, profile.Tier)
	assert.Equal(t, 2, profile.AgentCount)
}

func TestInspectFlowHeavyThreeOrMoreAgents(t *testing.T) {
	f := flow.New(flow.Meta{Name: "f"}, []*flow.Node{
		nodeOfKind("a", flow.KindAgent),
		nodeOfKind("b", flow.KindAgent),
		nodeOfKind("c", flow.KindAgent),
	})
	profile := InspectFlow(f)
	assert.Equal(t, TierHeavy, profile.Tier)
}

func TestInspectFlowCountsAgentsInsideEachSubflow(t *testing.T) {
	sub := flow.NewSubflow([]*flow.Node{nodeOfKind("inner", flow.KindAgent)})
	each := &flow.Node{ID: "loop", Kind: flow.KindEach, Each: &flow.EachSpec{
		SourceExpr: "items",
		ItemAlias:  "item",
		Subflow:    sub,
	}}
	f := flow.New(flow.Meta{Name: "f"}, []*flow.Node{each})

	profile := InspectFlow(f)
	assert.Equal(t, 1, profile.AgentCount)
	assert.Equal(t, TierStandard, profile.Tier)
}

func TestGetLimitForTierFallsBackToHeaviestOnUnknownTier(t *testing.T) {
	assert.Equal(t, DefaultTierConfigs[TierHeavy].Limit, GetLimitForTier("bogus"))
}

func TestWorkflowTierStringRoundTrips(t *testing.T) {
	assert.Equal(t, "simple", TierSimple.String())
	assert.Equal(t, "standard", TierStandard.String())
	assert.Equal(t, "heavy", TierHeavy.String())
	assert.Equal(t, "unknown", WorkflowTier("bogus").String())
}
