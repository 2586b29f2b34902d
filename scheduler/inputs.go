package scheduler

import (
	"fmt"

	"github.com/lyzr/orchestrator/flow"
	"github.com/lyzr/orchestrator/gml"
	"github.com/lyzr/orchestrator/value"
)

// seedInputs matches inputs against f.ArgsIn: required fields must be
// present, missing optional fields fall back to their declared Default
// expression, and every bound value is checked against its declared
// TypeSpec. It writes the result into ctx.
func seedInputs(eval *gml.Evaluator, f *flow.Flow, inputs map[string]interface{}, ctx *value.Context) error {
	for _, p := range f.ArgsIn {
		raw, present := inputs[p.Name]
		var v value.Value
		switch {
		case present:
			v = value.FromAny(raw)
		case p.Default != "":
			dv, err := gml.ParseExpr(p.Default)
			if len(err) > 0 {
				return &ValidationError{Field: p.Name, Message: fmt.Sprintf("default expression: %v", err[0])}
			}
			defaultVal, evalErr := eval.Eval(dv, ctx)
			if evalErr != nil {
				return &ValidationError{Field: p.Name, Message: fmt.Sprintf("evaluating default: %v", evalErr)}
			}
			v = defaultVal
		case p.Type.Nullable:
			v = value.Null()
		default:
			return &ValidationError{Field: p.Name, Message: "required input missing"}
		}
		if !present && p.Default == "" && p.Type.Nullable {
			// v already Null(), no type check needed.
			ctx.Set(p.Name, v)
			continue
		}
		if err := checkType(p, v); err != nil {
			return err
		}
		ctx.Set(p.Name, v)
	}
	return nil
}

// checkType validates v against p's declared TypeSpec: base kind,
// array-ness and nullability. `any` and custom (map<...>-only) types are
// accepted without further structural checking.
func checkType(p flow.ParamSpec, v value.Value) error {
	if v.IsNull() {
		if p.Type.Nullable {
			return nil
		}
		return &ValidationError{Field: p.Name, Message: "value is null but type is not nullable"}
	}
	if p.Type.IsArray {
		if v.Kind() != value.KindArray {
			return &ValidationError{Field: p.Name, Message: fmt.Sprintf("expected array, got %s", v.TypeName())}
		}
		return nil
	}
	switch p.Type.Base {
	case flow.TypeBool:
		if v.Kind() != value.KindBool {
			return &ValidationError{Field: p.Name, Message: "expected bool"}
		}
	case flow.TypeInt, flow.TypeLong, flow.TypeDouble, flow.TypeDecimal:
		if v.Kind() != value.KindNumber {
			return &ValidationError{Field: p.Name, Message: "expected number"}
		}
	case flow.TypeString, flow.TypeDate:
		if v.Kind() != value.KindString {
			return &ValidationError{Field: p.Name, Message: "expected string"}
		}
	case flow.TypeAny:
		// no structural check
	default:
		if v.Kind() != value.KindObject {
			return &ValidationError{Field: p.Name, Message: fmt.Sprintf("expected object of type %s", p.Type.Base)}
		}
	}
	return nil
}
