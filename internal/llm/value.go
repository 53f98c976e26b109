package llm

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
)

// Kind identifies the variant held by a Value.
type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Value is the JSON-like structured value used for tool input and output.
// The zero Value is Null.
type Value struct {
	kind Kind
	b    bool
	n    float64
	s    string
	arr  []Value
	obj  map[string]Value
}

func Null() Value { return Value{} }
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func String(s string) Value { return Value{kind: KindString, s: s} }
func Array(items ...Value) Value { return Value{kind: KindArray, arr: append([]Value(nil), items...)} }

// Object builds an object value. The map is copied.
func Object(fields map[string]Value) Value {
	obj := make(map[string]Value, len(fields))
	for k, v := range fields {
		obj[k] = v
	}
	return Value{kind: KindObject, obj: obj}
}

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool { return v.kind == KindNull }
func (v Value) Len() int { return len(v.arr) + len(v.obj) }
func (v Value) Items() []Value { return v.arr }

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KindBool
}

func (v Value) Num() (float64, bool) {
	return v.n, v.kind == KindNumber
}

func (v Value) Str() (string, bool) {
	return v.s, v.kind == KindString
}

// Field returns the named member of an object value.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	f, ok := v.obj[name]
	return f, ok
}

// Keys returns object member names in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.obj))
	for k := range v.obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Equal reports deep equality.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindString:
		return v.s == o.s
	case KindArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(o.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.obj) != len(o.obj) {
			return false
		}
		for k, a := range v.obj {
			b, ok := o.obj[k]
			if !ok || !a.Equal(b) {
				return false
			}
		}
		return true
	}
	return false
}

// Native converts the value into plain Go types: nil, bool, float64, string,
// []any and map[string]any. SDK document encoders consume this form.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindString:
		return v.s
	case KindArray:
		out := make([]any, len(v.arr))
		for i, item := range v.arr {
			out[i] = item.Native()
		}
		return out
	case KindObject:
		out := make(map[string]any, len(v.obj))
		for k, item := range v.obj {
			out[k] = item.Native()
		}
		return out
	default:
		return nil
	}
}

// FromNative converts plain Go values into a Value. Types outside the JSON
// model are round-tripped through encoding/json.
func FromNative(x any) (Value, error) {
	switch t := x.(type) {
	case nil:
		return Null(), nil
	case Value:
		return t, nil
	case bool:
		return Bool(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, &DecodeError{Input: string(t), Err: err}
		}
		return Number(f), nil
	case string:
		return String(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			cv, err := FromNative(item)
			if err != nil {
				return Value{}, err
			}
			items[i] = cv
		}
		return Value{kind: KindArray, arr: items}, nil
	case []string:
		items := make([]Value, len(t))
		for i, item := range t {
			items[i] = String(item)
		}
		return Value{kind: KindArray, arr: items}, nil
	case map[string]any:
		obj := make(map[string]Value, len(t))
		for k, item := range t {
			cv, err := FromNative(item)
			if err != nil {
				return Value{}, err
			}
			obj[k] = cv
		}
		return Value{kind: KindObject, obj: obj}, nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return Value{}, fmt.Errorf("convert %T to value: %w", x, err)
		}
		return ParseValue(data)
	}
}

// ParseValue decodes a complete JSON document. Trailing data is rejected.
func ParseValue(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Value{}, &DecodeError{Input: string(data), Err: err}
	}
	if _, err := dec.Token(); err != io.EOF {
		return Value{}, &DecodeError{Input: string(data), Err: fmt.Errorf("unexpected data after JSON value")}
	}
	return FromNative(raw)
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNumber:
		return []byte(strconv.FormatFloat(v.n, 'f', -1, 64)), nil
	default:
		return json.Marshal(v.Native())
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalYAML renders the value as plain YAML data.
func (v Value) MarshalYAML() (any, error) {
	return v.Native(), nil
}

// String renders the value as compact JSON.
func (v Value) String() string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%s>", v.kind)
	}
	return string(data)
}
