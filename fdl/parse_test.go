package fdl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/flow"
)

func TestParseLinearMappingFlow(t *testing.T) {
	src := []byte(`
flow:
  name: greet
  desp: says hello
  args:
    in:
      name: string
    out: string
  node:
    a:
      with: '` + "`hello ${name}`" + `'
      sets: greeting
`)
	f, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, "greet", f.Meta.Name)
	require.Len(t, f.ArgsIn, 1)
	assert.Equal(t, "name", f.ArgsIn[0].Name)
	assert.Equal(t, "string", f.ArgsIn[0].Type.Base)
	require.NotNil(t, f.ArgsOut.SingleType)
	assert.Equal(t, "string", f.ArgsOut.SingleType.Base)

	require.Len(t, f.Nodes, 1)
	n := f.Nodes[0]
	assert.Equal(t, flow.KindMapping, n.Kind)
	assert.Equal(t, "greeting", n.Mapping.Sets)
}

func TestParseRejectsMissingName(t *testing.T) {
	_, err := Parse([]byte(`flow: {}`))
	assert.Error(t, err)
}

func TestParseRejectsUnknownNodeReference(t *testing.T) {
	src := []byte(`
flow:
  name: broken
  node:
    a:
      with: "1"
      next: missing
`)
	_, err := Parse(src)
	assert.Error(t, err)
}

func TestParseConditionNode(t *testing.T) {
	src := []byte(`
flow:
  name: branchy
  node:
    c:
      when: "x > 0"
      then: yes
      else: no
    yes:
      with: '"positive"'
    no:
      with: '"non-positive"'
`)
	f, err := Parse(src)
	require.NoError(t, err)
	c := f.NodesByID["c"]
	require.NotNil(t, c)
	assert.Equal(t, flow.KindCondition, c.Kind)
	assert.Equal(t, "yes", c.Condition.Then)
	assert.Equal(t, "no", c.Condition.Else)
}

func TestParseSwitchNode(t *testing.T) {
	src := []byte(`
flow:
  name: switcher
  node:
    s:
      case:
        - when: "status == 'a'"
          then: a
        - when: "status == 'b'"
          then: b
      else: fallback
    a:
      with: '"A"'
    b:
      with: '"B"'
    fallback:
      with: '"?"'
`)
	f, err := Parse(src)
	require.NoError(t, err)
	s := f.NodesByID["s"]
	require.NotNil(t, s)
	assert.Equal(t, flow.KindSwitch, s.Kind)
	require.Len(t, s.Switch.Cases, 2)
	assert.Equal(t, "fallback", s.Switch.Else)
}

func TestParseEachNode(t *testing.T) {
	src := []byte(`
flow:
  name: looper
  node:
    each:
      each: "items => item, idx"
      mode: sequential
      node:
        body:
          with: "item"
`)
	f, err := Parse(src)
	require.NoError(t, err)
	e := f.NodesByID["each"]
	require.NotNil(t, e)
	assert.Equal(t, flow.KindEach, e.Kind)
	assert.Equal(t, "items", e.Each.SourceExpr)
	assert.Equal(t, "item", e.Each.ItemAlias)
	assert.Equal(t, "idx", e.Each.IndexAlias)
	assert.Equal(t, "sequential", e.Each.Mode)
	require.NotNil(t, e.Each.Subflow)
	assert.Contains(t, e.Each.Subflow.NodesByID, "body")
}

func TestParseFailEdge(t *testing.T) {
	src := []byte(`
flow:
  name: recoverable
  node:
    risky:
      with: "1"
      fail: recover
    recover:
      with: '"recovered"'
`)
	f, err := Parse(src)
	require.NoError(t, err)
	risky := f.NodesByID["risky"]
	require.NotNil(t, risky)
	assert.Equal(t, "recover", risky.Fail)
}

func TestParseNextSplitsOnComma(t *testing.T) {
	src := []byte(`
flow:
  name: fanout
  node:
    a:
      with: "1"
      next: "b, c"
    b:
      with: "2"
    c:
      with: "3"
`)
	f, err := Parse(src)
	require.NoError(t, err)
	assert.Equal(t, []string{"b", "c"}, f.NodesByID["a"].Next)
}

func TestParseTypeSpecVariants(t *testing.T) {
	cases := []struct {
		in       string
		wantBase string
		isArray  bool
		nullable bool
	}{
		{"string", "string", false, false},
		{"string[]", "string", true, false},
		{"string?", "string", false, true},
		{"string[]?", "string", true, true},
	}
	for _, tc := range cases {
		spec, err := parseTypeSpec(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.wantBase, spec.Base, tc.in)
		assert.Equal(t, tc.isArray, spec.IsArray, tc.in)
		assert.Equal(t, tc.nullable, spec.Nullable, tc.in)
	}
}

func TestParseTypeSpecRejectsInvalidSuffixOrder(t *testing.T) {
	_, err := parseTypeSpec("string?[]")
	assert.Error(t, err)
}

func TestParseTypeSpecMap(t *testing.T) {
	spec, err := parseTypeSpec("map<int>")
	require.NoError(t, err)
	assert.Equal(t, "map", spec.Base)
	require.NotNil(t, spec.MapValue)
	assert.Equal(t, "int", spec.MapValue.Base)
}

func TestParseParamValueWithDefaultAndDescription(t *testing.T) {
	spec, def, desc, err := parseParamValue(`int = 5 # retry count`)
	require.NoError(t, err)
	assert.Equal(t, "int", spec.Base)
	assert.Equal(t, "5", def)
	assert.Equal(t, "retry count", desc)
}

func TestParseEachExprRequiresArrow(t *testing.T) {
	_, _, _, err := parseEachExpr("items item")
	assert.Error(t, err)
}

func TestParseTimeoutMsAcceptsDurationOrMillis(t *testing.T) {
	assert.Equal(t, int64(5000), parseTimeoutMs("5s"))
	assert.Equal(t, int64(1500), parseTimeoutMs("1500"))
	assert.Equal(t, int64(0), parseTimeoutMs(""))
}
