package gml

import "github.com/lyzr/orchestrator/value"

// callObjectMethod implements the object method table.
func callObjectMethod(obj *value.Object, name string, args []value.Value) (value.Value, bool, error) {
	arg := func(i int) value.Value {
		if i < len(args) {
			return args[i]
		}
		return value.Undefined()
	}

	switch name {
	case "keys":
		keys := obj.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			out[i] = value.String(k)
		}
		return value.ArrayFrom(out), true, nil

	case "values":
		keys := obj.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			v, _ := obj.Get(k)
			out[i] = v
		}
		return value.ArrayFrom(out), true, nil

	case "entries":
		keys := obj.Keys()
		out := make([]value.Value, len(keys))
		for i, k := range keys {
			v, _ := obj.Get(k)
			out[i] = value.Array(value.String(k), v)
		}
		return value.ArrayFrom(out), true, nil

	case "pick":
		fields := value.FieldList(arg(0))
		return projectObject(value.Object_(obj), fields, true), true, nil

	case "omit":
		fields := value.FieldList(arg(0))
		return projectObject(value.Object_(obj), fields, false), true, nil

	case "merge":
		srcs := make([]*value.Object, 0, len(args))
		for _, a := range args {
			if a.Kind() == value.KindObject {
				srcs = append(srcs, a.Object())
			}
		}
		return value.Object_(value.Merge(obj, srcs...)), true, nil
	}
	return value.Undefined(), false, nil
}
