package value

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// FromJSON decodes raw JSON into a Value, preserving object key order by
// walking the document with gjson rather than round-tripping through
// map[string]interface{} (which Go's encoding/json does not order).
func FromJSON(raw []byte) (Value, error) {
	if !gjson.ValidBytes(raw) {
		return Undefined(), fmt.Errorf("value: invalid JSON")
	}
	return fromGJSON(gjson.ParseBytes(raw)), nil
}

// FromAny converts a generic Go value (as produced by encoding/json into
// interface{}, or hand-built from tool adapters) into a Value. Object key
// order for map[string]interface{} inputs is not guaranteed by Go's map
// iteration; callers that need deterministic order should go through
// FromJSON instead.
func FromAny(in interface{}) Value {
	switch t := in.(type) {
	case nil:
		return Null()
	case Value:
		return t
	case bool:
		return Bool(t)
	case float64:
		return Number(t)
	case int:
		return Number(float64(t))
	case int64:
		return Number(float64(t))
	case string:
		return String(t)
	case []interface{}:
		items := make([]Value, len(t))
		for i, it := range t {
			items[i] = FromAny(it)
		}
		return ArrayFrom(items)
	case map[string]interface{}:
		obj := NewObject()
		for k, v := range t {
			obj.Set(k, FromAny(v))
		}
		return Object_(obj)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return Undefined()
		}
		v, err := FromJSON(b)
		if err != nil {
			return Undefined()
		}
		return v
	}
}

func fromGJSON(r gjson.Result) Value {
	switch r.Type {
	case gjson.Null:
		return Null()
	case gjson.True:
		return Bool(true)
	case gjson.False:
		return Bool(false)
	case gjson.Number:
		return Number(r.Num)
	case gjson.String:
		return String(r.Str)
	case gjson.JSON:
		if r.IsArray() {
			var items []Value
			r.ForEach(func(_, v gjson.Result) bool {
				items = append(items, fromGJSON(v))
				return true
			})
			return ArrayFrom(items)
		}
		obj := NewObject()
		r.ForEach(func(k, v gjson.Result) bool {
			obj.Set(k.Str, fromGJSON(v))
			return true
		})
		return Object_(obj)
	default:
		return Undefined()
	}
}

// ToAny converts a Value back into plain Go data (map[string]interface{},
// []interface{}, etc.) for handing to JSON marshalers or tool adapters that
// expect the stdlib shape.
func ToAny(v Value) interface{} {
	switch v.Kind() {
	case KindUndefined, KindNull:
		return nil
	case KindBool:
		return v.Bool()
	case KindNumber:
		return v.Number()
	case KindString:
		return v.Str()
	case KindArray:
		out := make([]interface{}, len(v.Array()))
		for i, it := range v.Array() {
			out[i] = ToAny(it)
		}
		return out
	case KindObject:
		out := make(map[string]interface{})
		v.Object().Range(func(k string, val Value) bool {
			out[k] = ToAny(val)
			return true
		})
		return out
	default:
		return nil
	}
}

// MarshalJSON serialises a Value to JSON, preserving object key order.
func MarshalJSON(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeJSON(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v Value) error {
	switch v.Kind() {
	case KindUndefined, KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.Bool() {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		b, err := json.Marshal(v.Number())
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindString:
		b, err := json.Marshal(v.Str())
		if err != nil {
			return err
		}
		buf.Write(b)
	case KindArray:
		buf.WriteByte('[')
		for i, it := range v.Array() {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, it); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		first := true
		v.Object().Range(func(k string, val Value) bool {
			if !first {
				buf.WriteByte(',')
			}
			first = false
			kb, _ := json.Marshal(k)
			buf.Write(kb)
			buf.WriteByte(':')
			writeJSON(buf, val)
			return true
		})
		buf.WriteByte('}')
	case KindFunction:
		buf.WriteString("null")
	default:
		buf.WriteString("null")
	}
	return nil
}
