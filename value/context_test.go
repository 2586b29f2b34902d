package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextLookupWalksParentChain(t *testing.T) {
	root := NewRootContext()
	root.Set("a", Number(1))

	child := root.NewChild()
	child.Set("b", Number(2))

	v, ok := child.Get("a")
	assert.True(t, ok)
	assert.Equal(t, float64(1), v.Number())

	_, ok = root.Get("b")
	assert.False(t, ok, "writes to a child never leak to its parent")
}

func TestContextSetShadowsParent(t *testing.T) {
	root := NewRootContext()
	root.Set("x", Number(1))

	child := root.NewChild()
	child.Set("x", Number(2))

	v, _ := child.Get("x")
	assert.Equal(t, float64(2), v.Number())

	v, _ = root.Get("x")
	assert.Equal(t, float64(1), v.Number())
}

func TestContextSnapshotFlattensWithInnermostWinning(t *testing.T) {
	root := NewRootContext()
	root.Set("a", Number(1))
	root.Set("b", Number(2))

	child := root.NewChild()
	child.Set("b", Number(20))
	child.Set("c", Number(3))

	snap := child.Snapshot()
	assert.Equal(t, float64(1), snap["a"].Number())
	assert.Equal(t, float64(20), snap["b"].Number())
	assert.Equal(t, float64(3), snap["c"].Number())
}

func TestContextUDFLookupWalksParentChain(t *testing.T) {
	root := NewRootContext()
	root.RegisterUDF("double", fnUDF(func(args []Value) (Value, error) {
		return Number(args[0].Number() * 2), nil
	}))

	child := root.NewChild()
	h, ok := child.LookupUDF("double")
	assert.True(t, ok)
	out, err := h.Call([]Value{Number(21)})
	assert.NoError(t, err)
	assert.Equal(t, float64(42), out.Number())

	_, ok = child.LookupUDF("missing")
	assert.False(t, ok)
}

func TestContextParent(t *testing.T) {
	root := NewRootContext()
	child := root.NewChild()
	assert.Same(t, root, child.Parent())
	assert.Nil(t, root.Parent())
}

type fnUDF func(args []Value) (Value, error)

func (f fnUDF) Call(args []Value) (Value, error) { return f(args) }
