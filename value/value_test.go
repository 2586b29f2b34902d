package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruthy(t *testing.T) {
	cases := []struct {
		name string
		v    Value
		want bool
	}{
		{"undefined", Undefined(), false},
		{"null", Null(), false},
		{"false", Bool(false), false},
		{"true", Bool(true), true},
		{"zero", Number(0), false},
		{"nan", Number(nanValue()), false},
		{"nonzero", Number(1), true},
		{"emptyString", String(""), false},
		{"nonEmptyString", String("x"), true},
		{"emptyArray", Array(), false},
		{"nonEmptyArray", Array(Number(1)), true},
		{"emptyObject", Object_(NewObject()), false},
		{"nonEmptyObject", Object_(NewObject().Set("a", Number(1))), true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.v.Truthy())
		})
	}
}

func nanValue() float64 {
	var f float64
	return f / f
}

func TestStrictEquals(t *testing.T) {
	assert.True(t, StrictEquals(Number(1), Number(1)))
	assert.False(t, StrictEquals(Number(1), String("1")))
	assert.True(t, StrictEquals(String("a"), String("a")))
	assert.True(t, StrictEquals(Null(), Null()))
	assert.True(t, StrictEquals(Array(Number(1), Number(2)), Array(Number(1), Number(2))))
	assert.False(t, StrictEquals(Array(Number(1)), Array(Number(1), Number(2))))

	a := Object_(NewObject().Set("x", Number(1)))
	b := Object_(NewObject().Set("x", Number(1)))
	c := Object_(NewObject().Set("x", Number(2)))
	assert.True(t, StrictEquals(a, b))
	assert.False(t, StrictEquals(a, c))
}

func TestLooseEquals(t *testing.T) {
	assert.True(t, LooseEquals(Null(), Undefined()))
	assert.True(t, LooseEquals(Number(1), String("1")))
	assert.True(t, LooseEquals(String("1"), Number(1)))
	assert.True(t, LooseEquals(Bool(true), Number(1)))
	assert.False(t, LooseEquals(Number(1), Number(2)))
	assert.False(t, LooseEquals(Null(), Number(0)))
}

func TestToNumber(t *testing.T) {
	n, ok := ToNumber(String("  42  "))
	assert.True(t, ok)
	assert.Equal(t, float64(42), n)

	n, ok = ToNumber(String(""))
	assert.True(t, ok)
	assert.Equal(t, float64(0), n)

	_, ok = ToNumber(String("nope"))
	assert.False(t, ok)

	n, ok = ToNumber(Bool(true))
	assert.True(t, ok)
	assert.Equal(t, float64(1), n)

	n, ok = ToNumber(Null())
	assert.True(t, ok)
	assert.Equal(t, float64(0), n)
}

func TestToDisplayString(t *testing.T) {
	assert.Equal(t, "", ToDisplayString(Undefined()))
	assert.Equal(t, "", ToDisplayString(Null()))
	assert.Equal(t, "true", ToDisplayString(Bool(true)))
	assert.Equal(t, "false", ToDisplayString(Bool(false)))
	assert.Equal(t, "42", ToDisplayString(Number(42)))
	assert.Equal(t, "1.5", ToDisplayString(Number(1.5)))
	assert.Equal(t, "1,2,3", ToDisplayString(Array(Number(1), Number(2), Number(3))))
	assert.Equal(t, "[function]", ToDisplayString(Func(nil)))
}

func TestKindAccessorsReturnZeroValueForMismatchedKind(t *testing.T) {
	assert.Nil(t, String("x").Object())
	assert.False(t, Number(1).Bool())
	assert.True(t, func() bool { n := String("x").Number(); return n != n }()) // NaN
	assert.Equal(t, "", Number(1).Str())
	assert.Nil(t, String("x").Array())
}

func TestTypeName(t *testing.T) {
	assert.Equal(t, "string", String("x").TypeName())
	assert.Equal(t, "number", Number(1).TypeName())
	assert.Equal(t, "object", Object_(NewObject()).TypeName())
}
