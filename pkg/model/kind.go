package model

import (
	"fmt"
	"strings"
)

// PrimitiveType names the scalar value kinds a design field can hold.
type PrimitiveType string

const (
	TypeString  PrimitiveType = "string"
	TypeNumber  PrimitiveType = "number"
	TypeBoolean PrimitiveType = "boolean"
)

// Kind is the value-kind of a field. It is a closed set: Primitive, Nested,
// Sequence, Optional and Table are the only implementations, and consumers
// switch over them exhaustively.
type Kind interface {
	isKind()
	String() string
}

// Primitive is a scalar leaf.
type Primitive struct {
	Type PrimitiveType
}

// Nested embeds another declared design model by name.
type Nested struct {
	Model string
}

// Sequence is an ordered list of Elem values.
type Sequence struct {
	Elem Kind
}

// Optional wraps a kind that may be absent or null.
type Optional struct {
	Elem Kind
}

// Table is an exhaustive mapping from a closed set of keys to Elem values.
// Every key must be present in an instance.
type Table struct {
	Keys []string
	Elem Kind
}

func (Primitive) isKind() {}
func (Nested) isKind()    {}
func (Sequence) isKind()  {}
func (Optional) isKind()  {}
func (Table) isKind()     {}

func (p Primitive) String() string { return string(p.Type) }
func (n Nested) String() string    { return n.Model }
func (s Sequence) String() string  { return fmt.Sprintf("list<%s>", s.Elem) }
func (o Optional) String() string  { return fmt.Sprintf("optional<%s>", o.Elem) }
func (t Table) String() string {
	return fmt.Sprintf("table<%s, %s>", strings.Join(t.Keys, "|"), t.Elem)
}

// String returns the string primitive kind.
func String() Kind { return Primitive{Type: TypeString} }

// Number returns the number primitive kind.
func Number() Kind { return Primitive{Type: TypeNumber} }

// Boolean returns the boolean primitive kind.
func Boolean() Kind { return Primitive{Type: TypeBoolean} }

// Ref refers to a registered design model.
func Ref(model string) Kind { return Nested{Model: model} }

// ListOf returns a sequence kind.
func ListOf(elem Kind) Kind { return Sequence{Elem: elem} }

// OptionalOf returns an optional kind.
func OptionalOf(elem Kind) Kind { return Optional{Elem: elem} }

// TableOf returns a table kind over the given keys. Keys are copied.
func TableOf(keys []string, elem Kind) Kind {
	return Table{Keys: append([]string(nil), keys...), Elem: elem}
}
