// Package schema derives structural schemas from design model declarations.
//
// A Schema is self-contained: nested models are embedded in full at every
// use site rather than referenced, so a schema can be serialized, compared
// and validated against without access to the registry it came from.
package schema

import (
	"fmt"
	"strings"
)

// NodeKind tags a schema node.
type NodeKind string

const (
	KindString   NodeKind = "string"
	KindNumber   NodeKind = "number"
	KindBoolean  NodeKind = "boolean"
	KindObject   NodeKind = "object"
	KindList     NodeKind = "list"
	KindOptional NodeKind = "optional"
	KindTable    NodeKind = "table"
)

// Schema describes the legal shape of an instance of one design model.
type Schema struct {
	Model  string  `json:"model"`
	Fields []Field `json:"fields"`
}

// Field is a named member of an object schema.
type Field struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Node     Node   `json:"node"`
}

// Node is one position in the schema tree.
//   - string/number/boolean: leaf, no children
//   - object: Object is set
//   - list, optional: Elem is set
//   - table: Keys and Elem are set
type Node struct {
	Kind   NodeKind `json:"kind"`
	Object *Schema  `json:"object,omitempty"`
	Elem   *Node    `json:"elem,omitempty"`
	Keys   []string `json:"keys,omitempty"`
}

// Field looks up a field by name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Equal reports whether two schemas are structurally identical.
func (s *Schema) Equal(o *Schema) bool {
	if s == nil || o == nil {
		return s == o
	}
	if s.Model != o.Model || len(s.Fields) != len(o.Fields) {
		return false
	}
	for i := range s.Fields {
		a, b := s.Fields[i], o.Fields[i]
		if a.Name != b.Name || a.Required != b.Required || !a.Node.Equal(b.Node) {
			return false
		}
	}
	return true
}

// Equal reports whether two nodes are structurally identical.
func (n Node) Equal(o Node) bool {
	if n.Kind != o.Kind || len(n.Keys) != len(o.Keys) {
		return false
	}
	for i := range n.Keys {
		if n.Keys[i] != o.Keys[i] {
			return false
		}
	}
	if (n.Elem == nil) != (o.Elem == nil) {
		return false
	}
	if n.Elem != nil && !n.Elem.Equal(*o.Elem) {
		return false
	}
	if (n.Object == nil) != (o.Object == nil) {
		return false
	}
	return n.Object == nil || n.Object.Equal(o.Object)
}

// String renders the node as a type expression, e.g. "list<CellSpec>".
func (n Node) String() string {
	switch n.Kind {
	case KindObject:
		return n.Object.Model
	case KindList:
		return fmt.Sprintf("list<%s>", n.Elem)
	case KindOptional:
		return fmt.Sprintf("optional<%s>", n.Elem)
	case KindTable:
		return fmt.Sprintf("table<%s, %s>", strings.Join(n.Keys, "|"), n.Elem)
	default:
		return string(n.Kind)
	}
}

// SchemaCycleError is returned when a model contains itself. Path lists the
// model names from the outermost model down to the repeated one.
type SchemaCycleError struct {
	Path []string
}

func (e *SchemaCycleError) Error() string {
	return fmt.Sprintf("schema cycle: %s", strings.Join(e.Path, " -> "))
}
