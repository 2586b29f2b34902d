package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestObjectPreservesInsertionOrder(t *testing.T) {
	o := NewObject()
	o.Set("b", Number(2))
	o.Set("a", Number(1))
	o.Set("c", Number(3))
	assert.Equal(t, []string{"b", "a", "c"}, o.Keys())

	o.Set("a", Number(99))
	assert.Equal(t, []string{"b", "a", "c"}, o.Keys(), "re-setting an existing key keeps its position")
}

func TestObjectDeletePreservesRemainingOrder(t *testing.T) {
	o := NewObject()
	o.Set("a", Number(1))
	o.Set("b", Number(2))
	o.Set("c", Number(3))
	o.Delete("b")
	assert.Equal(t, []string{"a", "c"}, o.Keys())
	assert.Equal(t, 2, o.Len())

	_, ok := o.Get("b")
	assert.False(t, ok)
}

func TestObjectGetOnNilReceiver(t *testing.T) {
	var o *Object
	_, ok := o.Get("x")
	assert.False(t, ok)
	assert.Equal(t, 0, o.Len())
	assert.Nil(t, o.Keys())
}

func TestObjectClone(t *testing.T) {
	o := NewObject().Set("a", Number(1))
	clone := o.Clone()
	clone.Set("b", Number(2))

	assert.Equal(t, 1, o.Len())
	assert.Equal(t, 2, clone.Len())
}

func TestMerge(t *testing.T) {
	base := NewObject().Set("a", Number(1)).Set("b", Number(2))
	patch := NewObject().Set("b", Number(20)).Set("c", Number(3))

	merged := Merge(base, patch)
	assert.Equal(t, []string{"a", "b", "c"}, merged.Keys())
	v, _ := merged.Get("b")
	assert.Equal(t, float64(20), v.Number())

	// base is untouched
	v, _ = base.Get("b")
	assert.Equal(t, float64(2), v.Number())
}

func TestFieldList(t *testing.T) {
	assert.Equal(t, []string{"a", "b", "c"}, FieldList(String(" a, b ,c ")))
	assert.Equal(t, []string{"x", "y"}, FieldList(Array(String("x"), String("y"))))
	assert.Nil(t, FieldList(Number(1)))
	assert.Equal(t, []string{}, FieldList(String("")))
}
