package design

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
)

// ValueKind tags a Value.
type ValueKind int

const (
	ValueNone ValueKind = iota
	ValueString
	ValueNumber
	ValueBool
	ValueObject
	ValueList
)

func (k ValueKind) String() string {
	switch k {
	case ValueString:
		return "string"
	case ValueNumber:
		return "number"
	case ValueBool:
		return "boolean"
	case ValueObject:
		return "object"
	case ValueList:
		return "list"
	default:
		return "none"
	}
}

// Value is an immutable node of a design instance. The zero Value is none,
// which is how an absent optional field reads.
type Value struct {
	kind   ValueKind
	str    string
	num    float64
	b      bool
	keys   []string
	fields map[string]Value
	items  []Value
}

func stringValue(s string) Value  { return Value{kind: ValueString, str: s} }
func numberValue(f float64) Value { return Value{kind: ValueNumber, num: f} }
func boolValue(b bool) Value      { return Value{kind: ValueBool, b: b} }
func listValue(items []Value) Value {
	return Value{kind: ValueList, items: items}
}
func objectValue(keys []string, fields map[string]Value) Value {
	return Value{kind: ValueObject, keys: keys, fields: fields}
}

// Kind returns the value kind.
func (v Value) Kind() ValueKind { return v.kind }

// IsNone reports whether the value is absent.
func (v Value) IsNone() bool { return v.kind == ValueNone }

// Float returns a number value.
func (v Value) Float() (float64, error) {
	if v.kind != ValueNumber {
		return 0, v.kindError(ValueNumber)
	}
	return v.num, nil
}

// Int returns a number value that has no fractional part.
func (v Value) Int() (int64, error) {
	f, err := v.Float()
	if err != nil {
		return 0, err
	}
	if f != math.Trunc(f) {
		return 0, fmt.Errorf("number %v is not an integer", f)
	}
	return int64(f), nil
}

// Text returns a string value.
func (v Value) Text() (string, error) {
	if v.kind != ValueString {
		return "", v.kindError(ValueString)
	}
	return v.str, nil
}

// Bool returns a boolean value.
func (v Value) Bool() (bool, error) {
	if v.kind != ValueBool {
		return false, v.kindError(ValueBool)
	}
	return v.b, nil
}

// Len returns the number of list elements, object fields or string bytes.
func (v Value) Len() (int, error) {
	switch v.kind {
	case ValueList:
		return len(v.items), nil
	case ValueObject:
		return len(v.keys), nil
	case ValueString:
		return len(v.str), nil
	default:
		return 0, fmt.Errorf("cannot take length of %s", v.kind)
	}
}

// Field returns a named field of an object value.
func (v Value) Field(name string) (Value, error) {
	if v.kind != ValueObject {
		return Value{}, v.kindError(ValueObject)
	}
	f, ok := v.fields[name]
	if !ok {
		return Value{}, fmt.Errorf("no field %q", name)
	}
	return f, nil
}

// Index returns a list element.
func (v Value) Index(i int) (Value, error) {
	if v.kind != ValueList {
		return Value{}, v.kindError(ValueList)
	}
	if i < 0 || i >= len(v.items) {
		return Value{}, fmt.Errorf("index %d out of range [0,%d)", i, len(v.items))
	}
	return v.items[i], nil
}

// Items returns a copy of the list elements.
func (v Value) Items() []Value {
	return append([]Value(nil), v.items...)
}

// Keys returns the object keys in declaration order.
func (v Value) Keys() []string {
	return append([]string(nil), v.keys...)
}

// Get resolves a path relative to this value. The path root is ignored.
func (v Value) Get(p Path) (Value, error) {
	cur := v
	for i, part := range p.Parts {
		var err error
		switch {
		case part.Kind == PartAttr:
			cur, err = cur.Field(part.Name)
		case cur.kind == ValueList:
			var idx int
			idx, err = strconv.Atoi(part.Name)
			if err == nil {
				cur, err = cur.Index(idx)
			}
		default:
			cur, err = cur.Field(part.Name)
		}
		if err != nil {
			at := Path{Root: p.Root, Parts: p.Parts[:i+1]}
			return Value{}, fmt.Errorf("%s: %w", at, err)
		}
	}
	return cur, nil
}

// Interface converts the value back into plain Go data: string, float64,
// bool, map[string]any, []any or nil.
func (v Value) Interface() any {
	switch v.kind {
	case ValueString:
		return v.str
	case ValueNumber:
		return v.num
	case ValueBool:
		return v.b
	case ValueList:
		out := make([]any, len(v.items))
		for i, item := range v.items {
			out[i] = item.Interface()
		}
		return out
	case ValueObject:
		out := make(map[string]any, len(v.keys))
		for _, k := range v.keys {
			out[k] = v.fields[k].Interface()
		}
		return out
	default:
		return nil
	}
}

func (v Value) kindError(want ValueKind) error {
	return fmt.Errorf("expected %s, got %s", want, v.kind)
}

// FromGo converts plain Go data into a Value. Maps must have string keys;
// their keys are sorted. Structs are not supported.
func FromGo(x any) (Value, error) {
	if x == nil {
		return Value{}, nil
	}
	if val, ok := x.(Value); ok {
		return val, nil
	}

	rv := reflect.ValueOf(x)
	switch rv.Kind() {
	case reflect.String:
		return stringValue(rv.String()), nil
	case reflect.Bool:
		return boolValue(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return numberValue(float64(rv.Int())), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return numberValue(float64(rv.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return numberValue(rv.Float()), nil
	case reflect.Slice, reflect.Array:
		items := make([]Value, rv.Len())
		for i := range items {
			item, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("[%d]: %w", i, err)
			}
			items[i] = item
		}
		return listValue(items), nil
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Value{}, fmt.Errorf("map key type %s is not string", rv.Type().Key())
		}
		keys := make([]string, 0, rv.Len())
		for _, k := range rv.MapKeys() {
			keys = append(keys, k.String())
		}
		sort.Strings(keys)
		fields := make(map[string]Value, len(keys))
		for _, k := range keys {
			f, err := FromGo(rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface())
			if err != nil {
				return Value{}, fmt.Errorf(".%s: %w", k, err)
			}
			fields[k] = f
		}
		return objectValue(keys, fields), nil
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Value{}, nil
		}
		return FromGo(rv.Elem().Interface())
	default:
		return Value{}, fmt.Errorf("unsupported value type %T", x)
	}
}
