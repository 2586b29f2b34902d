package gml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lyzr/orchestrator/value"
)

func evalExpr(t *testing.T, src string, ctx *value.Context) value.Value {
	t.Helper()
	expr, errs := ParseExpr(src)
	require.Empty(t, errs, "parsing %q", src)
	if ctx == nil {
		ctx = value.NewRootContext()
	}
	v, err := NewEvaluator().Eval(expr, ctx)
	require.NoError(t, err, "evaluating %q", src)
	return v
}

func TestEvalArithmetic(t *testing.T) {
	assert.Equal(t, float64(7), evalExpr(t, "3 + 4", nil).Number())
	assert.Equal(t, float64(12), evalExpr(t, "3 * 4", nil).Number())
	assert.Equal(t, float64(1), evalExpr(t, "7 % 3", nil).Number())
	assert.Equal(t, "ab", evalExpr(t, `"a" + "b"`, nil).Str())
	assert.Equal(t, "a1", evalExpr(t, `"a" + 1`, nil).Str())
}

func TestEvalComparisonAndEquality(t *testing.T) {
	assert.True(t, evalExpr(t, "1 < 2", nil).Bool())
	assert.True(t, evalExpr(t, `"a" < "b"`, nil).Bool())
	assert.True(t, evalExpr(t, "1 == \"1\"", nil).Bool())
	assert.False(t, evalExpr(t, "1 === \"1\"", nil).Bool())
	assert.True(t, evalExpr(t, "null == undefinedVar", nil).Bool())
}

func TestEvalLogicalShortCircuit(t *testing.T) {
	assert.Equal(t, float64(0), evalExpr(t, "0 && boom()", nil).Number())
	assert.True(t, evalExpr(t, "1 || boom()", nil).Truthy())
	assert.Equal(t, float64(5), evalExpr(t, "null ?? 5", nil).Number())
}

func TestEvalTernaryAndCase(t *testing.T) {
	assert.Equal(t, "yes", evalExpr(t, `true ? "yes" : "no"`, nil).Str())

	ctx := value.NewRootContext()
	ctx.Set("n", value.Number(2))
	v := evalExpr(t, `case when n == 1 then "one" when n == 2 then "two" else "other" end`, ctx)
	assert.Equal(t, "two", v.Str())
}

func TestEvalIdentifierAndMember(t *testing.T) {
	ctx := value.NewRootContext()
	obj := value.NewObject().Set("name", value.String("flow"))
	ctx.Set("input", value.Object_(obj))

	assert.Equal(t, "flow", evalExpr(t, "input.name", ctx).Str())
	assert.True(t, evalExpr(t, "input.missing", ctx).IsUndefined())
}

func TestEvalOptionalChaining(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("input", value.Null())
	assert.True(t, evalExpr(t, "input?.name", ctx).IsUndefined())
}

func TestEvalArrayIndexingAndLength(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("items", value.Array(value.Number(10), value.Number(20), value.Number(30)))

	assert.Equal(t, float64(20), evalExpr(t, "items[1]", ctx).Number())
	assert.Equal(t, float64(30), evalExpr(t, "items[-1]", ctx).Number())
	assert.Equal(t, float64(3), evalExpr(t, "items.length", ctx).Number())
}

func TestEvalInExpr(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("status", value.String("active"))
	assert.True(t, evalExpr(t, `status in ["active", "pending"]`, ctx).Bool())
	assert.False(t, evalExpr(t, `status in ["done"]`, ctx).Bool())
}

func TestEvalLikeExpr(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("email", value.String("user@example.com"))
	assert.True(t, evalExpr(t, `email like "%@example.com"`, ctx).Bool())
	assert.False(t, evalExpr(t, `email like "%@other.com"`, ctx).Bool())
}

func TestEvalTemplateLiteral(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("name", value.String("world"))
	v := evalExpr(t, "`hello ${name}!`", ctx)
	assert.Equal(t, "hello world!", v.Str())
}

func TestEvalBuiltinCalls(t *testing.T) {
	v := evalExpr(t, "SUM([1, 2, 3])", nil)
	assert.Equal(t, float64(6), v.Number())

	v = evalExpr(t, "UPPER(\"abc\")", nil)
	assert.Equal(t, "ABC", v.Str())
}

func TestEvalArrayMethodMap(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("items", value.Array(value.Number(1), value.Number(2), value.Number(3)))
	v := evalExpr(t, "items.map(x => x * 2)", ctx)
	require.Equal(t, value.KindArray, v.Kind())
	arr := v.Array()
	require.Len(t, arr, 3)
	assert.Equal(t, float64(2), arr[0].Number())
	assert.Equal(t, float64(6), arr[2].Number())
}

func TestEvalArrayMethodFilter(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("items", value.Array(value.Number(1), value.Number(2), value.Number(3), value.Number(4)))
	v := evalExpr(t, "items.filter(x => x % 2 == 0)", ctx)
	arr := v.Array()
	require.Len(t, arr, 2)
	assert.Equal(t, float64(2), arr[0].Number())
	assert.Equal(t, float64(4), arr[1].Number())
}

func TestEvalObjectLiteralAndSpread(t *testing.T) {
	ctx := value.NewRootContext()
	ctx.Set("base", value.Object_(value.NewObject().Set("a", value.Number(1))))
	v := evalExpr(t, "{ ...base, b: 2 }", ctx)
	require.Equal(t, value.KindObject, v.Kind())
	a, _ := v.Object().Get("a")
	b, _ := v.Object().Get("b")
	assert.Equal(t, float64(1), a.Number())
	assert.Equal(t, float64(2), b.Number())
}

func TestParseBlockEvaluatesAssignmentsInOrder(t *testing.T) {
	block, errs := ParseBlock("a = 1\nb = a + 1\nb * 10")
	require.Empty(t, errs)

	ctx := value.NewRootContext()
	v, err := NewEvaluator().EvalBlock(block, ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(20), v.Number())

	stored, ok := ctx.Get("a")
	require.True(t, ok)
	assert.Equal(t, float64(1), stored.Number())
}

func TestParseExprReportsTrailingInput(t *testing.T) {
	_, errs := ParseExpr("1 + 2 3")
	assert.NotEmpty(t, errs)
}

func TestEvalUnresolvedCallIsAnError(t *testing.T) {
	_, err := NewEvaluator().Eval(Call{Callee: Identifier{Name: "totallyUnknownFn"}}, value.NewRootContext())
	assert.Error(t, err)
}
