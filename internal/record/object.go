// Package record holds the dynamic object model used for query-by-example
// input and for materialized query results.
//
// An Object maps canonical field names to values. Nested to-one and embedded
// values are Objects; to-many values are []Object.
package record

import (
	"strings"
)

// Object is one materialized entity or value object.
type Object map[string]any

// Get returns the value at a dotted path. Traversal stops at the first
// missing or non-object segment.
func (o Object) Get(path string) (any, bool) {
	cur := o
	segs := strings.Split(path, ".")
	for i, seg := range segs {
		v, ok := cur[seg]
		if !ok {
			return nil, false
		}
		if i == len(segs)-1 {
			return v, true
		}
		next, ok := AsObject(v)
		if !ok {
			return nil, false
		}
		cur = next
	}
	return nil, false
}

// Child returns the nested object stored under name, creating it when absent.
// ok is false when name already holds a value that is not an object.
func (o Object) Child(name string) (Object, bool) {
	v, exists := o[name]
	if !exists || v == nil {
		child := Object{}
		o[name] = child
		return child, true
	}
	return AsObject(v)
}

// Collection returns the elements stored under name. ok is false when name
// holds something other than a collection.
func (o Object) Collection(name string) ([]Object, bool) {
	v, exists := o[name]
	if !exists || v == nil {
		return nil, true
	}
	return AsCollection(v)
}

// AsObject converts v to an Object when it is one.
func AsObject(v any) (Object, bool) {
	switch obj := v.(type) {
	case Object:
		return obj, true
	case map[string]any:
		return Object(obj), true
	default:
		return nil, false
	}
}

// AsCollection converts v to a []Object when it is a collection of objects.
func AsCollection(v any) ([]Object, bool) {
	switch c := v.(type) {
	case []Object:
		return c, true
	case []map[string]any:
		out := make([]Object, len(c))
		for i, m := range c {
			out[i] = Object(m)
		}
		return out, true
	case []any:
		out := make([]Object, 0, len(c))
		for _, elem := range c {
			obj, ok := AsObject(elem)
			if !ok {
				return nil, false
			}
			out = append(out, obj)
		}
		return out, true
	default:
		return nil, false
	}
}
