package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSONPreservesKeyOrder(t *testing.T) {
	v, err := FromJSON([]byte(`{"z":1,"a":2,"m":3}`))
	require.NoError(t, err)
	require.Equal(t, KindObject, v.Kind())
	assert.Equal(t, []string{"z", "a", "m"}, v.Object().Keys())
}

func TestFromJSONRejectsInvalid(t *testing.T) {
	_, err := FromJSON([]byte(`{not json`))
	assert.Error(t, err)
}

func TestFromJSONNestedArray(t *testing.T) {
	v, err := FromJSON([]byte(`[1,"two",[3,4],{"k":true}]`))
	require.NoError(t, err)
	arr := v.Array()
	require.Len(t, arr, 4)
	assert.Equal(t, float64(1), arr[0].Number())
	assert.Equal(t, "two", arr[1].Str())
	assert.Equal(t, float64(3), arr[2].Array()[0].Number())
	k, ok := arr[3].Object().Get("k")
	require.True(t, ok)
	assert.True(t, k.Bool())
}

func TestFromAnyPrimitives(t *testing.T) {
	assert.True(t, FromAny(nil).IsNull())
	assert.Equal(t, KindBool, FromAny(true).Kind())
	assert.Equal(t, float64(3), FromAny(3).Number())
	assert.Equal(t, float64(3), FromAny(int64(3)).Number())
	assert.Equal(t, "hi", FromAny("hi").Str())
}

func TestFromAnyNestedMapsAndSlices(t *testing.T) {
	in := map[string]interface{}{
		"name": "flow",
		"tags": []interface{}{"a", "b"},
		"meta": map[string]interface{}{"n": 1},
	}
	v := FromAny(in)
	require.Equal(t, KindObject, v.Kind())

	name, ok := v.Object().Get("name")
	require.True(t, ok)
	assert.Equal(t, "flow", name.Str())

	tags, ok := v.Object().Get("tags")
	require.True(t, ok)
	assert.Equal(t, 2, len(tags.Array()))

	meta, ok := v.Object().Get("meta")
	require.True(t, ok)
	n, _ := meta.Object().Get("n")
	assert.Equal(t, float64(1), n.Number())
}

func TestFromAnyPassesThroughExistingValue(t *testing.T) {
	orig := String("already a value")
	assert.Equal(t, orig, FromAny(orig))
}

func TestToAnyRoundTripsThroughFromAny(t *testing.T) {
	in := map[string]interface{}{
		"a": float64(1),
		"b": "two",
		"c": []interface{}{float64(1), float64(2)},
	}
	v := FromAny(in)
	out, ok := ToAny(v).(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, in["a"], out["a"])
	assert.Equal(t, in["b"], out["b"])
	assert.Equal(t, in["c"], out["c"])
}

func TestToAnyUndefinedAndNullBecomeNil(t *testing.T) {
	assert.Nil(t, ToAny(Undefined()))
	assert.Nil(t, ToAny(Null()))
}

func TestMarshalJSONPreservesKeyOrderAndEscaping(t *testing.T) {
	o := NewObject().Set("z", Number(1)).Set("a", String("hi\"there"))
	b, err := MarshalJSON(Object_(o))
	require.NoError(t, err)
	assert.Equal(t, `{"z":1,"a":"hi\"there"}`, string(b))
}

func TestMarshalJSONArray(t *testing.T) {
	b, err := MarshalJSON(Array(Number(1), String("x"), Bool(true), Null()))
	require.NoError(t, err)
	assert.Equal(t, `[1,"x",true,null]`, string(b))
}
