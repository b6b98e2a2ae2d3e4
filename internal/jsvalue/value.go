// Package jsvalue models JavaScript values that crossed the process boundary
// between the host runtime and Go.
//
// The evaluation harness serializes a module namespace into a tagged JSON
// encoding. Plain JSON scalars stand for themselves (null, booleans, numbers,
// strings); everything JSON cannot express directly is an object carrying a
// "$t" tag:
//
//	{"$t":"undefined"}
//	{"$t":"function","name":"handler"}
//	{"$t":"array","items":[...]}
//	{"$t":"object","keys":[["k", <value>], ...]}
//	{"$t":"module","keys":[["default", <value>], ...]}
//	{"$t":"bigint","v":"123"}
//	{"$t":"date","v":"2024-01-01T00:00:00.000Z"}
//	{"$t":"circular"}
//
// Object keys travel as ordered pairs so that property order survives the
// trip, and decode into *Object (an insertion-ordered map).
package jsvalue

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Value is any decoded JavaScript value: nil, bool, float64, string,
// []Value, *Object, *Namespace, Undefined, Function, BigInt, Circular or
// time.Time.
type Value = any

// Object is a plain JavaScript object with its property order preserved.
type Object = orderedmap.OrderedMap[string, Value]

// NewObject returns an empty Object.
func NewObject() *Object {
	return orderedmap.New[string, Value]()
}

// Undefined is the JavaScript undefined value.
type Undefined struct{}

// MarshalJSON renders undefined as null.
func (Undefined) MarshalJSON() ([]byte, error) {
	return []byte("null"), nil
}

// Function stands in for a function value, which cannot be transferred.
type Function struct {
	Name string
}

// MarshalJSON renders the function the way node's inspector labels it.
func (f Function) MarshalJSON() ([]byte, error) {
	name := f.Name
	if name == "" {
		name = "(anonymous)"
	}
	return json.Marshal("[Function: " + name + "]")
}

// BigInt holds the decimal digits of a bigint.
type BigInt struct {
	Digits string
}

// MarshalJSON renders the bigint as its decimal digits in a string.
func (b BigInt) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.Digits)
}

// Circular marks a reference back to an enclosing value.
type Circular struct{}

// MarshalJSON renders the marker as a string.
func (Circular) MarshalJSON() ([]byte, error) {
	return []byte(`"[Circular]"`), nil
}

// Namespace is an ES module namespace object.
type Namespace struct {
	Exports *Object
}

// NewNamespace returns a namespace with no exports.
func NewNamespace() *Namespace {
	return &Namespace{Exports: NewObject()}
}

// Len returns the number of exported bindings.
func (n *Namespace) Len() int {
	return n.Exports.Len()
}

// Default returns the default export and whether the namespace has one.
func (n *Namespace) Default() (Value, bool) {
	return n.Exports.Get("default")
}

// MarshalJSON renders the namespace as an object of its exports.
func (n *Namespace) MarshalJSON() ([]byte, error) {
	return n.Exports.MarshalJSON()
}

// ErrFunction is returned by ToPlain when a function value is encountered.
var ErrFunction = errors.New("function values cannot be transferred")

// Decode parses the tagged JSON encoding produced by the evaluation harness.
func Decode(data []byte) (Value, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse module payload: %w", err)
	}
	return fromTagged(raw)
}

func fromTagged(raw any) (Value, error) {
	switch v := raw.(type) {
	case nil, bool, float64, string:
		return v, nil
	case []any:
		// Bare arrays are not produced by the harness, but accept them.
		return decodeItems(v)
	case map[string]any:
		return decodeTagged(v)
	default:
		return nil, fmt.Errorf("unexpected payload element %T", raw)
	}
}

func decodeTagged(m map[string]any) (Value, error) {
	tag, _ := m["$t"].(string)
	switch tag {
	case "undefined":
		return Undefined{}, nil
	case "circular":
		return Circular{}, nil
	case "function":
		name, _ := m["name"].(string)
		return Function{Name: name}, nil
	case "bigint":
		digits, _ := m["v"].(string)
		return BigInt{Digits: digits}, nil
	case "date":
		s, _ := m["v"].(string)
		t, err := time.Parse(time.RFC3339Nano, s)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q: %w", s, err)
		}
		return t, nil
	case "array":
		items, _ := m["items"].([]any)
		return decodeItems(items)
	case "object":
		return decodePairs(m["keys"])
	case "module":
		obj, err := decodePairs(m["keys"])
		if err != nil {
			return nil, err
		}
		return &Namespace{Exports: obj}, nil
	default:
		return nil, fmt.Errorf("unknown value tag %q", tag)
	}
}

func decodeItems(items []any) ([]Value, error) {
	out := make([]Value, 0, len(items))
	for i, item := range items {
		v, err := fromTagged(item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func decodePairs(raw any) (*Object, error) {
	pairs, _ := raw.([]any)
	obj := NewObject()
	for _, p := range pairs {
		pair, ok := p.([]any)
		if !ok || len(pair) != 2 {
			return nil, fmt.Errorf("malformed object entry %v", p)
		}
		key, ok := pair[0].(string)
		if !ok {
			return nil, fmt.Errorf("non-string object key %v", pair[0])
		}
		v, err := fromTagged(pair[1])
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		obj.Set(key, v)
	}
	return obj, nil
}

// ToPlain converts v into data that can cross a message boundary: module
// namespaces become plain objects and nested values are copied. It fails
// with ErrFunction when v contains a function.
func ToPlain(v Value) (Value, error) {
	switch x := v.(type) {
	case Function:
		return nil, ErrFunction
	case *Namespace:
		return plainObject(x.Exports)
	case *Object:
		return plainObject(x)
	case []Value:
		out := make([]Value, 0, len(x))
		for _, item := range x {
			p, err := ToPlain(item)
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		}
		return out, nil
	default:
		return v, nil
	}
}

func plainObject(obj *Object) (*Object, error) {
	out := NewObject()
	for pair := obj.Oldest(); pair != nil; pair = pair.Next() {
		p, err := ToPlain(pair.Value)
		if err != nil {
			return nil, err
		}
		out.Set(pair.Key, p)
	}
	return out, nil
}

// ContainsFunction reports whether v holds a function anywhere inside it.
func ContainsFunction(v Value) bool {
	_, err := ToPlain(v)
	return errors.Is(err, ErrFunction)
}
