package gml

import (
	"sort"

	"github.com/lyzr/orchestrator/value"
)

// callArrayMethod implements the array method table. ok is false when
// name isn't an array method, letting the caller fall through to
// object-property lookup.
func callArrayMethod(e *Evaluator, arr []value.Value, name string, args []value.Value) (value.Value, bool, error) {
	arg := func(i int) value.Value {
		if i < len(args) {
			return args[i]
		}
		return value.Undefined()
	}
	callFn := func(fn value.Value, callArgs ...value.Value) (value.Value, error) {
		if fn.Kind() != value.KindFunction {
			return value.Undefined(), nil
		}
		return fn.Callable().Call(callArgs)
	}

	switch name {
	case "filter":
		out := make([]value.Value, 0, len(arr))
		for i, item := range arr {
			keep, err := callFn(arg(0), item, value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			if keep.Truthy() {
				out = append(out, item)
			}
		}
		return value.ArrayFrom(out), true, nil

	case "map":
		out := make([]value.Value, len(arr))
		for i, item := range arr {
			v, err := callFn(arg(0), item, value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			out[i] = v
		}
		return value.ArrayFrom(out), true, nil

	case "reduce":
		acc := arg(1)
		start := 0
		if len(args) < 2 {
			if len(arr) == 0 {
				return value.Undefined(), true, nil
			}
			acc = arr[0]
			start = 1
		}
		for i := start; i < len(arr); i++ {
			v, err := callFn(arg(0), acc, arr[i], value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			acc = v
		}
		return acc, true, nil

	case "find":
		for i, item := range arr {
			m, err := callFn(arg(0), item, value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			if m.Truthy() {
				return item, true, nil
			}
		}
		return value.Undefined(), true, nil

	case "findIndex":
		for i, item := range arr {
			m, err := callFn(arg(0), item, value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			if m.Truthy() {
				return value.Number(float64(i)), true, nil
			}
		}
		return value.Number(-1), true, nil

	case "some":
		for i, item := range arr {
			m, err := callFn(arg(0), item, value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			if m.Truthy() {
				return value.Bool(true), true, nil
			}
		}
		return value.Bool(false), true, nil

	case "every":
		for i, item := range arr {
			m, err := callFn(arg(0), item, value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			if !m.Truthy() {
				return value.Bool(false), true, nil
			}
		}
		return value.Bool(true), true, nil

	case "sort":
		out := append([]value.Value(nil), arr...)
		var sortErr error
		sort.SliceStable(out, func(i, j int) bool {
			if sortErr != nil {
				return false
			}
			if len(args) > 0 && args[0].Kind() == value.KindFunction {
				r, err := callFn(args[0], out[i], out[j])
				if err != nil {
					sortErr = err
					return false
				}
				n, _ := value.ToNumber(r)
				return n < 0
			}
			return value.ToDisplayString(out[i]) < value.ToDisplayString(out[j])
		})
		if sortErr != nil {
			return value.Undefined(), true, sortErr
		}
		return value.ArrayFrom(out), true, nil

	case "reverse":
		out := make([]value.Value, len(arr))
		for i, v := range arr {
			out[len(arr)-1-i] = v
		}
		return value.ArrayFrom(out), true, nil

	case "includes":
		for _, item := range arr {
			if value.LooseEquals(item, arg(0)) {
				return value.Bool(true), true, nil
			}
		}
		return value.Bool(false), true, nil

	case "indexOf":
		for i, item := range arr {
			if value.LooseEquals(item, arg(0)) {
				return value.Number(float64(i)), true, nil
			}
		}
		return value.Number(-1), true, nil

	case "slice":
		start, end := sliceBounds(len(arr), arg(0), arg(1), len(args) > 1)
		return value.ArrayFrom(append([]value.Value(nil), arr[start:end]...)), true, nil

	case "concat":
		out := append([]value.Value(nil), arr...)
		for _, a := range args {
			if a.Kind() == value.KindArray {
				out = append(out, a.Array()...)
			} else {
				out = append(out, a)
			}
		}
		return value.ArrayFrom(out), true, nil

	case "join":
		sep := ","
		if len(args) > 0 {
			sep = value.ToDisplayString(args[0])
		}
		var b []byte
		for i, item := range arr {
			if i > 0 {
				b = append(b, sep...)
			}
			b = append(b, value.ToDisplayString(item)...)
		}
		return value.String(string(b)), true, nil

	case "first":
		if len(arr) == 0 {
			return value.Undefined(), true, nil
		}
		return arr[0], true, nil

	case "last":
		if len(arr) == 0 {
			return value.Undefined(), true, nil
		}
		return arr[len(arr)-1], true, nil

	case "take":
		n, _ := value.ToNumber(arg(0))
		k := clampInt(int(n), 0, len(arr))
		return value.ArrayFrom(append([]value.Value(nil), arr[:k]...)), true, nil

	case "skip":
		n, _ := value.ToNumber(arg(0))
		k := clampInt(int(n), 0, len(arr))
		return value.ArrayFrom(append([]value.Value(nil), arr[k:]...)), true, nil

	case "add":
		return value.ArrayFrom(append(append([]value.Value(nil), arr...), arg(0))), true, nil

	case "addAll":
		out := append([]value.Value(nil), arr...)
		if arg(0).Kind() == value.KindArray {
			out = append(out, arg(0).Array()...)
		}
		return value.ArrayFrom(out), true, nil

	case "remove":
		out := make([]value.Value, 0, len(arr))
		removed := false
		for _, item := range arr {
			if !removed && value.LooseEquals(item, arg(0)) {
				removed = true
				continue
			}
			out = append(out, item)
		}
		return value.ArrayFrom(out), true, nil

	case "removeAt":
		n, _ := value.ToNumber(arg(0))
		i := int(n)
		if i < 0 || i >= len(arr) {
			return value.ArrayFrom(append([]value.Value(nil), arr...)), true, nil
		}
		out := append([]value.Value(nil), arr[:i]...)
		out = append(out, arr[i+1:]...)
		return value.ArrayFrom(out), true, nil

	case "distinct":
		out := make([]value.Value, 0, len(arr))
		for _, item := range arr {
			dup := false
			for _, seen := range out {
				if value.StrictEquals(item, seen) {
					dup = true
					break
				}
			}
			if !dup {
				out = append(out, item)
			}
		}
		return value.ArrayFrom(out), true, nil

	case "flatten":
		var out []value.Value
		for _, item := range arr {
			if item.Kind() == value.KindArray {
				out = append(out, item.Array()...)
			} else {
				out = append(out, item)
			}
		}
		return value.ArrayFrom(out), true, nil

	case "sum":
		total := 0.0
		for _, item := range arr {
			n, _ := value.ToNumber(item)
			total += n
		}
		return value.Number(total), true, nil

	case "avg":
		if len(arr) == 0 {
			return value.Number(0), true, nil
		}
		total := 0.0
		for _, item := range arr {
			n, _ := value.ToNumber(item)
			total += n
		}
		return value.Number(total / float64(len(arr))), true, nil

	case "min":
		if len(arr) == 0 {
			return value.Undefined(), true, nil
		}
		m, _ := value.ToNumber(arr[0])
		for _, item := range arr[1:] {
			n, _ := value.ToNumber(item)
			if n < m {
				m = n
			}
		}
		return value.Number(m), true, nil

	case "max":
		if len(arr) == 0 {
			return value.Undefined(), true, nil
		}
		m, _ := value.ToNumber(arr[0])
		for _, item := range arr[1:] {
			n, _ := value.ToNumber(item)
			if n > m {
				m = n
			}
		}
		return value.Number(m), true, nil

	case "count":
		if len(args) == 0 || args[0].Kind() != value.KindFunction {
			return value.Number(float64(len(arr))), true, nil
		}
		n := 0
		for i, item := range arr {
			m, err := callFn(args[0], item, value.Number(float64(i)))
			if err != nil {
				return value.Undefined(), true, err
			}
			if m.Truthy() {
				n++
			}
		}
		return value.Number(float64(n)), true, nil

	case "group", "groupBy":
		groups := value.NewObject()
		for _, item := range arr {
			var key string
			if len(args) > 0 && args[0].Kind() == value.KindFunction {
				k, err := callFn(args[0], item)
				if err != nil {
					return value.Undefined(), true, err
				}
				key = value.ToDisplayString(k)
			} else {
				key = value.ToDisplayString(arg(0))
				if item.Kind() == value.KindObject {
					if fv, ok := item.Object().Get(value.ToDisplayString(arg(0))); ok {
						key = value.ToDisplayString(fv)
					}
				}
			}
			existing, _ := groups.Get(key)
			bucket := append(existing.Array(), item)
			groups.Set(key, value.ArrayFrom(bucket))
		}
		return value.Object_(groups), true, nil

	case "proj", "pick":
		fields := value.FieldList(arg(0))
		out := make([]value.Value, len(arr))
		for i, item := range arr {
			out[i] = projectObject(item, fields, true)
		}
		return value.ArrayFrom(out), true, nil

	case "omit":
		fields := value.FieldList(arg(0))
		out := make([]value.Value, len(arr))
		for i, item := range arr {
			out[i] = projectObject(item, fields, false)
		}
		return value.ArrayFrom(out), true, nil
	}
	return value.Undefined(), false, nil
}

func sliceBounds(n int, startV, endV value.Value, hasEnd bool) (int, int) {
	start, end := 0, n
	if sv, ok := value.ToNumber(startV); ok && !startV.IsUndefined() {
		start = clampIndex(int(sv), n)
	}
	if hasEnd {
		if ev, ok := value.ToNumber(endV); ok {
			end = clampIndex(int(ev), n)
		}
	}
	if end < start {
		end = start
	}
	return start, end
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return clampInt(i, 0, n)
}

func clampInt(i, lo, hi int) int {
	if i < lo {
		return lo
	}
	if i > hi {
		return hi
	}
	return i
}

// projectObject implements array `proj`/`pick`/`omit`: keep (or drop) the
// named fields of an object element, passing non-object elements through
// unchanged.
func projectObject(item value.Value, fields []string, keep bool) value.Value {
	if item.Kind() != value.KindObject {
		return item
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[f] = true
	}
	out := value.NewObject()
	item.Object().Range(func(k string, v value.Value) bool {
		if set[k] == keep {
			out.Set(k, v)
		}
		return true
	})
	return value.Object_(out)
}
