package gml

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/lyzr/orchestrator/value"
)

// Evaluator walks a GML AST against a value.Context. It owns the
// built-in function table; UDFs live in the Context's own registry so flows
// can register/shadow them per scope.
type Evaluator struct {
	builtins map[string]BuiltinFunc
}

// NewEvaluator constructs an Evaluator with the standard built-in table.
func NewEvaluator() *Evaluator {
	return &Evaluator{builtins: Builtins()}
}

// Eval evaluates a single expression against ctx.
func (e *Evaluator) Eval(expr Expr, ctx *value.Context) (value.Value, error) {
	switch n := expr.(type) {
	case NumberLit:
		return value.Number(n.Value), nil
	case StringLit:
		return value.String(n.Value), nil
	case BoolLit:
		return value.Bool(n.Value), nil
	case NullLit:
		return value.Null(), nil
	case Identifier:
		return e.evalIdentifier(n, ctx), nil
	case TemplateLit:
		return e.evalTemplate(n, ctx)
	case ArrayLit:
		return e.evalArrayLit(n, ctx)
	case ObjectLit:
		return e.evalObjectLit(n, ctx)
	case Unary:
		return e.evalUnary(n, ctx)
	case Binary:
		return e.evalBinary(n, ctx)
	case Logical:
		return e.evalLogical(n, ctx)
	case Ternary:
		return e.evalTernary(n, ctx)
	case CaseExpr:
		return e.evalCase(n, ctx)
	case InExpr:
		return e.evalIn(n, ctx)
	case LikeExpr:
		return e.evalLike(n, ctx)
	case Member:
		return e.evalMember(n, ctx)
	case Index:
		return e.evalIndex(n, ctx)
	case Call:
		return e.evalCall(n, ctx)
	case ArrowFunc:
		return value.Func(&arrowClosure{eval: e, def: n, defCtx: ctx}), nil
	case Assignment:
		v, err := e.Eval(n.Value, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		ctx.Set(n.Name, v)
		return v, nil
	case *Block:
		return e.EvalBlock(n, ctx)
	case Block:
		return e.EvalBlock(&n, ctx)
	default:
		return value.Undefined(), fmt.Errorf("gml: unhandled expression node %T", expr)
	}
}

// EvalBlock evaluates every statement in order, returning the value of the
// last one. Assignment statements write into ctx.
func (e *Evaluator) EvalBlock(b *Block, ctx *value.Context) (value.Value, error) {
	result := value.Undefined()
	for _, stmt := range b.Statements {
		v, err := e.Eval(stmt, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		result = v
	}
	return result, nil
}

// evalIdentifier resolves a bare read through the context chain, then the
// UDF registry (yielding a callable value); built-ins are resolved only in
// call position by evalCall.
func (e *Evaluator) evalIdentifier(id Identifier, ctx *value.Context) value.Value {
	if v, ok := ctx.Get(id.Name); ok {
		return v
	}
	if h, ok := ctx.LookupUDF(id.Name); ok {
		return value.Func(udfCallable{h})
	}
	return value.Undefined()
}

type udfCallable struct{ h value.UDFHandler }

func (u udfCallable) Call(args []value.Value) (value.Value, error) { return u.h.Call(args) }

func (e *Evaluator) evalTemplate(t TemplateLit, ctx *value.Context) (value.Value, error) {
	var b strings.Builder
	for _, part := range t.Parts {
		if part.Expr == nil {
			b.WriteString(part.Text)
			continue
		}
		v, err := e.Eval(part.Expr, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		b.WriteString(value.ToDisplayString(v))
	}
	return value.String(b.String()), nil
}

func (e *Evaluator) evalArrayLit(a ArrayLit, ctx *value.Context) (value.Value, error) {
	items := make([]value.Value, 0, len(a.Elements))
	for _, el := range a.Elements {
		v, err := e.Eval(el, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		items = append(items, v)
	}
	return value.ArrayFrom(items), nil
}

func (e *Evaluator) evalObjectLit(o ObjectLit, ctx *value.Context) (value.Value, error) {
	obj := value.NewObject()
	for _, entry := range o.Entries {
		if entry.IsSpread {
			sv, err := e.Eval(entry.Spread, ctx)
			if err != nil {
				return value.Undefined(), err
			}
			if sv.Kind() == value.KindObject {
				sv.Object().Range(func(k string, v value.Value) bool {
					obj.Set(k, v)
					return true
				})
			}
			continue
		}
		v, err := e.Eval(entry.Value, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		obj.Set(entry.Key, v)
	}
	return value.Object_(obj), nil
}

func (e *Evaluator) evalUnary(u Unary, ctx *value.Context) (value.Value, error) {
	operand, err := e.Eval(u.Operand, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	switch u.Op {
	case "!", "NOT":
		return value.Bool(!operand.Truthy()), nil
	case "-":
		n, _ := value.ToNumber(operand)
		return value.Number(-n), nil
	case "+":
		n, _ := value.ToNumber(operand)
		return value.Number(n), nil
	default:
		return value.Undefined(), fmt.Errorf("gml: unknown unary operator %q", u.Op)
	}
}

func (e *Evaluator) evalBinary(b Binary, ctx *value.Context) (value.Value, error) {
	left, err := e.Eval(b.Left, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	right, err := e.Eval(b.Right, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	switch b.Op {
	case "+":
		if left.Kind() == value.KindString || right.Kind() == value.KindString {
			return value.String(value.ToDisplayString(left) + value.ToDisplayString(right)), nil
		}
		ln, _ := value.ToNumber(left)
		rn, _ := value.ToNumber(right)
		return value.Number(ln + rn), nil
	case "-":
		ln, _ := value.ToNumber(left)
		rn, _ := value.ToNumber(right)
		return value.Number(ln - rn), nil
	case "*":
		ln, _ := value.ToNumber(left)
		rn, _ := value.ToNumber(right)
		return value.Number(ln * rn), nil
	case "/":
		ln, _ := value.ToNumber(left)
		rn, _ := value.ToNumber(right)
		return value.Number(ln / rn), nil
	case "%":
		ln, _ := value.ToNumber(left)
		rn, _ := value.ToNumber(right)
		return value.Number(mathMod(ln, rn)), nil
	case "==":
		return value.Bool(value.LooseEquals(left, right)), nil
	case "!=":
		return value.Bool(!value.LooseEquals(left, right)), nil
	case "===":
		return value.Bool(value.StrictEquals(left, right)), nil
	case "!==":
		return value.Bool(!value.StrictEquals(left, right)), nil
	case "<", ">", "<=", ">=":
		return compareValues(b.Op, left, right), nil
	default:
		return value.Undefined(), fmt.Errorf("gml: unknown binary operator %q", b.Op)
	}
}

func mathMod(a, b float64) float64 {
	if b == 0 {
		return nan()
	}
	m := a - b*float64(int64(a/b))
	return m
}

func nan() float64 {
	var z float64
	return z / z
}

func compareValues(op string, left, right value.Value) value.Value {
	if left.Kind() == value.KindString && right.Kind() == value.KindString {
		ls, rs := left.Str(), right.Str()
		switch op {
		case "<":
			return value.Bool(ls < rs)
		case ">":
			return value.Bool(ls > rs)
		case "<=":
			return value.Bool(ls <= rs)
		case ">=":
			return value.Bool(ls >= rs)
		}
	}
	ln, _ := value.ToNumber(left)
	rn, _ := value.ToNumber(right)
	switch op {
	case "<":
		return value.Bool(ln < rn)
	case ">":
		return value.Bool(ln > rn)
	case "<=":
		return value.Bool(ln <= rn)
	case ">=":
		return value.Bool(ln >= rn)
	}
	return value.Bool(false)
}

func (e *Evaluator) evalLogical(l Logical, ctx *value.Context) (value.Value, error) {
	left, err := e.Eval(l.Left, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	switch l.Op {
	case "&&":
		if !left.Truthy() {
			return left, nil
		}
		return e.Eval(l.Right, ctx)
	case "||":
		if left.Truthy() {
			return left, nil
		}
		return e.Eval(l.Right, ctx)
	case "??":
		if !left.IsNullish() {
			return left, nil
		}
		return e.Eval(l.Right, ctx)
	default:
		return value.Undefined(), fmt.Errorf("gml: unknown logical operator %q", l.Op)
	}
}

func (e *Evaluator) evalTernary(t Ternary, ctx *value.Context) (value.Value, error) {
	cond, err := e.Eval(t.Cond, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	if cond.Truthy() {
		return e.Eval(t.Then, ctx)
	}
	return e.Eval(t.Else, ctx)
}

func (e *Evaluator) evalCase(c CaseExpr, ctx *value.Context) (value.Value, error) {
	for _, w := range c.Whens {
		cond, err := e.Eval(w.When, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		if cond.Truthy() {
			return e.Eval(w.Then, ctx)
		}
	}
	if c.Else != nil {
		return e.Eval(c.Else, ctx)
	}
	return value.Null(), nil
}

func (e *Evaluator) evalIn(in InExpr, ctx *value.Context) (value.Value, error) {
	left, err := e.Eval(in.Left, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	list, err := e.Eval(in.List, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	if list.Kind() != value.KindArray {
		return value.Bool(false), nil
	}
	for _, item := range list.Array() {
		if value.LooseEquals(left, item) {
			return value.Bool(true), nil
		}
	}
	return value.Bool(false), nil
}

func (e *Evaluator) evalLike(lk LikeExpr, ctx *value.Context) (value.Value, error) {
	left, err := e.Eval(lk.Left, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	pattern, err := e.Eval(lk.Pattern, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	re := likePatternToRegexp(pattern.Str())
	return value.Bool(re.MatchString(value.ToDisplayString(left))), nil
}

// likePatternToRegexp translates a SQL-style LIKE pattern (`%` = any run of
// characters, `_` = any single character) into an anchored, case-insensitive
// regexp.
func likePatternToRegexp(pattern string) *regexp.Regexp {
	var b strings.Builder
	b.WriteString("(?is)^")
	for _, r := range pattern {
		switch r {
		case '%':
			b.WriteString(".*")
		case '_':
			b.WriteString(".")
		default:
			b.WriteString(regexp.QuoteMeta(string(r)))
		}
	}
	b.WriteString("$")
	re, err := regexp.Compile(b.String())
	if err != nil {
		return regexp.MustCompile("(?!)")
	}
	return re
}

func (e *Evaluator) evalMember(m Member, ctx *value.Context) (value.Value, error) {
	obj, err := e.Eval(m.Object, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	if obj.IsNullish() {
		if m.Optional {
			return value.Undefined(), nil
		}
		return value.Undefined(), fmt.Errorf("gml: cannot read property %q of %s", m.Property, obj.TypeName())
	}
	return memberValue(obj, m.Property), nil
}

// memberValue resolves a plain (non-call) property access: object fields,
// and the handful of properties (`length`) that array/string expose without
// call syntax.
func memberValue(obj value.Value, prop string) value.Value {
	switch obj.Kind() {
	case value.KindObject:
		if v, ok := obj.Object().Get(prop); ok {
			return v
		}
		return value.Undefined()
	case value.KindArray:
		if prop == "length" {
			return value.Number(float64(len(obj.Array())))
		}
		return value.Undefined()
	case value.KindString:
		if prop == "length" {
			return value.Number(float64(len([]rune(obj.Str()))))
		}
		return value.Undefined()
	default:
		return value.Undefined()
	}
}

func (e *Evaluator) evalIndex(ix Index, ctx *value.Context) (value.Value, error) {
	obj, err := e.Eval(ix.Object, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	if obj.IsNullish() {
		return value.Undefined(), nil
	}
	idxVal, err := e.Eval(ix.Index, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	switch obj.Kind() {
	case value.KindArray:
		n, ok := value.ToNumber(idxVal)
		if !ok {
			return value.Undefined(), nil
		}
		i := int(n)
		arr := obj.Array()
		if i < 0 {
			i += len(arr)
		}
		if i < 0 || i >= len(arr) {
			return value.Undefined(), nil
		}
		return arr[i], nil
	case value.KindObject:
		return memberValue(obj, value.ToDisplayString(idxVal)), nil
	case value.KindString:
		n, ok := value.ToNumber(idxVal)
		if !ok {
			return value.Undefined(), nil
		}
		runes := []rune(obj.Str())
		i := int(n)
		if i < 0 {
			i += len(runes)
		}
		if i < 0 || i >= len(runes) {
			return value.Undefined(), nil
		}
		return value.String(string(runes[i])), nil
	default:
		return value.Undefined(), nil
	}
}

func (e *Evaluator) evalCall(c Call, ctx *value.Context) (value.Value, error) {
	if m, ok := c.Callee.(Member); ok {
		obj, err := e.Eval(m.Object, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		if obj.IsNullish() {
			if m.Optional || c.Optional {
				return value.Undefined(), nil
			}
			return value.Undefined(), fmt.Errorf("gml: cannot call method %q on %s", m.Property, obj.TypeName())
		}
		args, err := e.evalArgs(c.Args, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		return e.dispatchMethod(obj, m.Property, args)
	}

	if id, ok := c.Callee.(Identifier); ok {
		args, err := e.evalArgs(c.Args, ctx)
		if err != nil {
			return value.Undefined(), err
		}
		if fn, ok := e.builtins[strings.ToUpper(id.Name)]; ok {
			return fn(args)
		}
		if h, ok := ctx.LookupUDF(id.Name); ok {
			return h.Call(args)
		}
		if v, ok := ctx.Get(id.Name); ok && v.Kind() == value.KindFunction {
			return v.Callable().Call(args)
		}
		return value.Undefined(), fmt.Errorf("gml: %q is not a function", id.Name)
	}

	callee, err := e.Eval(c.Callee, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	if callee.IsNullish() && c.Optional {
		return value.Undefined(), nil
	}
	if callee.Kind() != value.KindFunction {
		return value.Undefined(), fmt.Errorf("gml: value of type %s is not callable", callee.TypeName())
	}
	args, err := e.evalArgs(c.Args, ctx)
	if err != nil {
		return value.Undefined(), err
	}
	return callee.Callable().Call(args)
}

func (e *Evaluator) evalArgs(exprs []Expr, ctx *value.Context) ([]value.Value, error) {
	args := make([]value.Value, 0, len(exprs))
	for _, a := range exprs {
		v, err := e.Eval(a, ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

// dispatchMethod resolves a method call by priority order: array methods
// → string methods → object methods → callable property → undefined (no
// throw, matching the rest of GML's forgiving-lookup stance).
func (e *Evaluator) dispatchMethod(recv value.Value, name string, args []value.Value) (value.Value, error) {
	switch recv.Kind() {
	case value.KindArray:
		if v, ok, err := callArrayMethod(e, recv.Array(), name, args); ok {
			return v, err
		}
	case value.KindString:
		if v, ok, err := callStringMethod(recv.Str(), name, args); ok {
			return v, err
		}
	case value.KindObject:
		if v, ok, err := callObjectMethod(recv.Object(), name, args); ok {
			return v, err
		}
	}
	if recv.Kind() == value.KindObject {
		if prop, ok := recv.Object().Get(name); ok && prop.Kind() == value.KindFunction {
			return prop.Callable().Call(args)
		}
	}
	return value.Undefined(), nil
}

// arrowClosure is the Callable backing an evaluated ArrowFunc literal: it
// closes over the defining context and binds params positionally on call,
// leaving unsupplied params Undefined.
type arrowClosure struct {
	eval   *Evaluator
	def    ArrowFunc
	defCtx *value.Context
}

func (a *arrowClosure) Call(args []value.Value) (value.Value, error) {
	child := a.defCtx.NewChild()
	for i, p := range a.def.Params {
		if i < len(args) {
			child.Set(p, args[i])
		} else {
			child.Set(p, value.Undefined())
		}
	}
	return a.eval.Eval(a.def.Body, child)
}
