package value

import "strings"

// Object is an insertion-ordered string-keyed map: key iteration order is
// preserved across Set/Delete/Clone.
type Object struct {
	keys []string
	m    map[string]Value
}

// NewObject returns an empty ordered object.
func NewObject() *Object {
	return &Object{m: make(map[string]Value)}
}

// Set inserts or updates a key. Existing keys keep their original position.
func (o *Object) Set(key string, v Value) *Object {
	if _, exists := o.m[key]; !exists {
		o.keys = append(o.keys, key)
	}
	o.m[key] = v
	return o
}

// Get returns the value for key and whether it was present.
func (o *Object) Get(key string) (Value, bool) {
	if o == nil {
		return Undefined(), false
	}
	v, ok := o.m[key]
	return v, ok
}

// Delete removes key, preserving the order of remaining keys.
func (o *Object) Delete(key string) {
	if _, ok := o.m[key]; !ok {
		return
	}
	delete(o.m, key)
	for i, k := range o.keys {
		if k == key {
			o.keys = append(o.keys[:i], o.keys[i+1:]...)
			break
		}
	}
}

// Keys returns keys in insertion order.
func (o *Object) Keys() []string {
	if o == nil {
		return nil
	}
	out := make([]string, len(o.keys))
	copy(out, o.keys)
	return out
}

// Len returns the number of entries.
func (o *Object) Len() int {
	if o == nil {
		return 0
	}
	return len(o.keys)
}

// Range iterates entries in insertion order; stop early by returning false.
func (o *Object) Range(fn func(key string, v Value) bool) {
	if o == nil {
		return
	}
	for _, k := range o.keys {
		if !fn(k, o.m[k]) {
			return
		}
	}
}

// Clone returns a shallow copy with its own key-order slice.
func (o *Object) Clone() *Object {
	clone := NewObject()
	o.Range(func(k string, v Value) bool {
		clone.Set(k, v)
		return true
	})
	return clone
}

// Merge returns a new object with srcs applied in order on top of o,
// mirroring GML's object method `merge(...srcs)`.
func Merge(o *Object, srcs ...*Object) *Object {
	out := o.Clone()
	for _, src := range srcs {
		src.Range(func(k string, v Value) bool {
			out.Set(k, v)
			return true
		})
	}
	return out
}

// FieldList splits a GML `fields` argument, which may be a comma-separated
// string or an array of strings, into a plain slice.
func FieldList(v Value) []string {
	switch v.Kind() {
	case KindString:
		parts := strings.Split(v.Str(), ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				out = append(out, p)
			}
		}
		return out
	case KindArray:
		out := make([]string, 0, len(v.Array()))
		for _, item := range v.Array() {
			out = append(out, ToDisplayString(item))
		}
		return out
	default:
		return nil
	}
}
