// Package model declares design model types: named, ordered sets of typed
// fields that describe the shape of an engineering design.
package model

import (
	"fmt"
	"strings"
)

// Field is a single named slot of a design model.
type Field struct {
	Name string
	Kind Kind
}

// Required reports whether an instance must supply the field.
// Only optional fields may be omitted.
func (f Field) Required() bool {
	_, optional := f.Kind.(Optional)
	return !optional
}

// Type is a declared design model. It is immutable once built by NewType.
type Type struct {
	name   string
	fields []Field
}

// NewType declares a design model with fields in declaration order.
func NewType(name string, fields ...Field) (*Type, error) {
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("model name is required")
	}

	seen := make(map[string]bool, len(fields))
	for i, f := range fields {
		if strings.TrimSpace(f.Name) == "" {
			return nil, fmt.Errorf("model %s: field %d: name is required", name, i)
		}
		if f.Kind == nil {
			return nil, fmt.Errorf("model %s: field %s: kind is required", name, f.Name)
		}
		if seen[f.Name] {
			return nil, &DuplicateFieldError{Model: name, Field: f.Name}
		}
		seen[f.Name] = true
	}

	return &Type{
		name:   name,
		fields: append([]Field(nil), fields...),
	}, nil
}

// MustType is like NewType but panics on error. Intended for package-level
// declarations whose shape is fixed at compile time.
func MustType(name string, fields ...Field) *Type {
	t, err := NewType(name, fields...)
	if err != nil {
		panic(err)
	}
	return t
}

// Name returns the model name.
func (t *Type) Name() string { return t.name }

// Fields returns a copy of the fields in declaration order.
func (t *Type) Fields() []Field {
	return append([]Field(nil), t.fields...)
}

// Field looks up a field by name.
func (t *Type) Field(name string) (Field, bool) {
	for _, f := range t.fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// DuplicateFieldError is returned when a model declares the same field twice.
type DuplicateFieldError struct {
	Model string
	Field string
}

func (e *DuplicateFieldError) Error() string {
	return fmt.Sprintf("model %s: duplicate field %q", e.Model, e.Field)
}

// DuplicateModelError is returned when a model name is registered twice.
type DuplicateModelError struct {
	Name string
}

func (e *DuplicateModelError) Error() string {
	return fmt.Sprintf("model already registered: %s", e.Name)
}

// UnknownModelError is returned when a lookup names an unregistered model.
type UnknownModelError struct {
	Name string
}

func (e *UnknownModelError) Error() string {
	return fmt.Sprintf("unknown model: %s", e.Name)
}
