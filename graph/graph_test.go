package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/flow"
)

func TestBuildLinearFlow(t *testing.T) {
	f := flow.New(flow.Meta{Name: "linear"}, []*flow.Node{
		{ID: "a", Kind: flow.KindMapping, Next: []string{"b"}, Mapping: &flow.MappingSpec{With: "1"}},
		{ID: "b", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{With: "2"}},
	})

	g, err := Build(f)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.Roots)
	assert.Equal(t, 0, g.InDegree["a"])
	assert.Equal(t, 1, g.InDegree["b"])
}

func TestBuildDetectsCycle(t *testing.T) {
	f := flow.New(flow.Meta{Name: "cyclic"}, []*flow.Node{
		{ID: "a", Kind: flow.KindMapping, Next: []string{"b"}, Mapping: &flow.MappingSpec{With: "1"}},
		{ID: "b", Kind: flow.KindMapping, Next: []string{"a"}, Mapping: &flow.MappingSpec{With: "1"}},
	})

	_, err := Build(f)
	assert.Error(t, err)
}

func TestBuildConditionBranchesAreConditionalEdges(t *testing.T) {
	f := flow.New(flow.Meta{Name: "branchy"}, []*flow.Node{
		{ID: "c", Kind: flow.KindCondition, Condition: &flow.ConditionSpec{When: "x", Then: "yes", Else: "no"}},
		{ID: "yes", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{With: "1"}},
		{ID: "no", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{With: "0"}},
	})

	g, err := Build(f)
	require.NoError(t, err)
	assert.Equal(t, 1, g.InDegree["yes"])
	assert.Equal(t, 1, g.InDegree["no"])
	edges := g.Forward["c"]
	require.Len(t, edges, 2)
	for _, e := range edges {
		assert.True(t, e.Conditional)
	}
}

func TestFailOnlyTargetIsExcludedFromRoots(t *testing.T) {
	f := flow.New(flow.Meta{Name: "failer"}, []*flow.Node{
		{ID: "risky", Kind: flow.KindMapping, Fail: "recover", Next: []string{"happy"}, Mapping: &flow.MappingSpec{With: "1"}},
		{ID: "happy", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{With: "1"}},
		{ID: "recover", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{With: "2"}},
	})

	g, err := Build(f)
	require.NoError(t, err)

	assert.Equal(t, 0, g.InDegree["recover"])
	assert.True(t, g.FailTargets["recover"])
	assert.NotContains(t, g.Roots, "recover")
	assert.Contains(t, g.Roots, "risky")

	// risky's `next` edge to happy appears in Forward; its `fail` edge to
	// recover never does.
	require.Len(t, g.Forward["risky"], 1)
	assert.Equal(t, "happy", g.Forward["risky"][0].To)
}

func TestIsConvergencePoint(t *testing.T) {
	f := flow.New(flow.Meta{Name: "converge"}, []*flow.Node{
		{ID: "a", Kind: flow.KindMapping, Next: []string{"c"}, Mapping: &flow.MappingSpec{With: "1"}},
		{ID: "b", Kind: flow.KindMapping, Next: []string{"c"}, Mapping: &flow.MappingSpec{With: "1"}},
		{ID: "c", Kind: flow.KindMapping, Mapping: &flow.MappingSpec{With: "1"}},
	})

	g, err := Build(f)
	require.NoError(t, err)
	assert.True(t, g.IsConvergencePoint("c"))
	assert.False(t, g.IsConvergencePoint("a"))
}
