// Package value implements the universal runtime Value carried by the GML
// evaluator and passed between flow nodes: a JSON-like sum type
// of null, bool, number, string, array and an order-preserving object.
package value

import (
	"math"
	"strconv"
	"strings"
)

// Kind tags which alternative of the Value sum type is populated.
type Kind int

const (
	KindUndefined Kind = iota
	KindNull
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Callable is implemented by anything a Value of KindFunction can invoke:
// arrow-function closures and user-defined functions alike.
type Callable interface {
	Call(args []Value) (Value, error)
}

// Value is an immutable JSON-like runtime value. Zero value is Undefined.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  *Object
	fn   Callable
}

func Undefined() Value               { return Value{kind: KindUndefined} }
func Null() Value                    { return Value{kind: KindNull} }
func Bool(b bool) Value              { return Value{kind: KindBool, b: b} }
func Number(n float64) Value         { return Value{kind: KindNumber, n: n} }
func String(s string) Value          { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value     { return Value{kind: KindArray, arr: items} }
func ArrayFrom(items []Value) Value  { return Value{kind: KindArray, arr: items} }
func Object_(o *Object) Value        { return Value{kind: KindObject, obj: o} }
func Func(c Callable) Value          { return Value{kind: KindFunction, fn: c} }

func (v Value) Kind() Kind    { return v.kind }
func (v Value) IsUndefined() bool { return v.kind == KindUndefined }
func (v Value) IsNull() bool      { return v.kind == KindNull }
func (v Value) IsNullish() bool   { return v.kind == KindUndefined || v.kind == KindNull }

func (v Value) Bool() bool {
	if v.kind == KindBool {
		return v.b
	}
	return false
}

func (v Value) Number() float64 {
	if v.kind == KindNumber {
		return v.n
	}
	return math.NaN()
}

func (v Value) Str() string {
	if v.kind == KindString {
		return v.s
	}
	return ""
}

func (v Value) Array() []Value {
	if v.kind == KindArray {
		return v.arr
	}
	return nil
}

func (v Value) Object() *Object {
	if v.kind == KindObject {
		return v.obj
	}
	return nil
}

func (v Value) Callable() Callable {
	if v.kind == KindFunction {
		return v.fn
	}
	return nil
}

// Truthy implements the truthiness coercion table: false, null, undefined,
// 0, NaN, "", [], {} are falsy; everything else is truthy.
func (v Value) Truthy() bool {
	switch v.kind {
	case KindUndefined, KindNull:
		return false
	case KindBool:
		return v.b
	case KindNumber:
		return v.n != 0 && !math.IsNaN(v.n)
	case KindString:
		return v.s != ""
	case KindArray:
		return len(v.arr) > 0
	case KindObject:
		return v.obj != nil && v.obj.Len() > 0
	case KindFunction:
		return true
	default:
		return false
	}
}

// LooseEquals implements GML `==`: null/undefined are equivalent, number and
// string operands are compared via numeric coercion, everything else
// compares structurally for primitives.
func LooseEquals(a, b Value) bool {
	if a.IsNullish() && b.IsNullish() {
		return true
	}
	if a.IsNullish() != b.IsNullish() {
		return false
	}
	if a.kind == b.kind {
		return StrictEquals(a, b)
	}
	// number <-> string coercion
	if a.kind == KindNumber && b.kind == KindString {
		n, ok := ToNumber(b)
		return ok && n == a.n
	}
	if a.kind == KindString && b.kind == KindNumber {
		n, ok := ToNumber(a)
		return ok && n == b.n
	}
	if a.kind == KindBool || b.kind == KindBool {
		an, _ := ToNumber(a)
		bn, _ := ToNumber(b)
		return an == bn
	}
	return false
}

// StrictEquals implements GML `===`: same Kind required.
func StrictEquals(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case KindUndefined, KindNull:
		return true
	case KindBool:
		return a.b == b.b
	case KindNumber:
		return a.n == b.n
	case KindString:
		return a.s == b.s
	case KindArray:
		if len(a.arr) != len(b.arr) {
			return false
		}
		for i := range a.arr {
			if !StrictEquals(a.arr[i], b.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if a.obj.Len() != b.obj.Len() {
			return false
		}
		for _, k := range a.obj.Keys() {
			bv, ok := b.obj.Get(k)
			if !ok {
				return false
			}
			av, _ := a.obj.Get(k)
			if !StrictEquals(av, bv) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// ToNumber coerces a Value to a float64 the way GML arithmetic does.
func ToNumber(v Value) (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.n, true
	case KindBool:
		if v.b {
			return 1, true
		}
		return 0, true
	case KindNull, KindUndefined:
		return 0, true
	case KindString:
		s := strings.TrimSpace(v.s)
		if s == "" {
			return 0, true
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return math.NaN(), false
		}
		return n, true
	default:
		return math.NaN(), false
	}
}

// ToDisplayString renders a Value the way a GML template interpolation does:
// null/undefined become empty strings, everything else is stringified.
func ToDisplayString(v Value) string {
	switch v.kind {
	case KindUndefined, KindNull:
		return ""
	case KindString:
		return v.s
	case KindBool:
		if v.b {
			return "true"
		}
		return "false"
	case KindNumber:
		return formatNumber(v.n)
	case KindArray:
		parts := make([]string, len(v.arr))
		for i, it := range v.arr {
			parts[i] = ToDisplayString(it)
		}
		return strings.Join(parts, ",")
	case KindObject:
		return toJSONString(v)
	case KindFunction:
		return "[function]"
	default:
		return ""
	}
}

func formatNumber(n float64) string {
	if math.IsNaN(n) {
		return "NaN"
	}
	if math.IsInf(n, 1) {
		return "Infinity"
	}
	if math.IsInf(n, -1) {
		return "-Infinity"
	}
	if n == math.Trunc(n) && math.Abs(n) < 1e15 {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'g', -1, 64)
}

func toJSONString(v Value) string {
	j, err := MarshalJSON(v)
	if err != nil {
		return ""
	}
	return string(j)
}

// TypeName returns the GML-visible type name, used by error messages.
func (v Value) TypeName() string { return v.kind.String() }
