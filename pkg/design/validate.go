package design

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cgast/veriq/pkg/schema"
)

// ViolationKind classifies a validation failure.
type ViolationKind string

const (
	MissingField  ViolationKind = "missing_field"
	TypeMismatch  ViolationKind = "type_mismatch"
	ShapeMismatch ViolationKind = "shape_mismatch"
	UnknownField  ViolationKind = "unknown_field"
)

// Violation is a single place where a design does not conform to its schema.
type Violation struct {
	Path     string        `json:"path"`
	Kind     ViolationKind `json:"kind"`
	Expected string        `json:"expected,omitempty"`
	Actual   string        `json:"actual,omitempty"`
}

func (v Violation) Error() string {
	switch v.Kind {
	case MissingField:
		return fmt.Sprintf("%s: missing required field", v.Path)
	case UnknownField:
		return fmt.Sprintf("%s: unknown field", v.Path)
	default:
		return fmt.Sprintf("%s: %s (expected %s, got %s)", v.Path, v.Kind, v.Expected, v.Actual)
	}
}

// Violations holds every violation found in one validation pass.
type Violations []Violation

// Valid returns true if no violations were found.
func (vs Violations) Valid() bool {
	return len(vs) == 0
}

// Error returns a combined message from all violations.
func (vs Violations) Error() string {
	if vs.Valid() {
		return ""
	}
	msgs := make([]string, len(vs))
	for i, v := range vs {
		msgs[i] = v.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

// Option configures validation.
type Option func(*validator)

// WithAllowUnknown drops fields that the schema does not declare instead of
// reporting them. Table keys are always checked strictly.
func WithAllowUnknown(allow bool) Option {
	return func(v *validator) {
		v.allowUnknown = allow
	}
}

type validator struct {
	allowUnknown bool
	violations   Violations
}

// Validate checks a decoded configuration tree against s. Every violation
// in the tree is collected; an Instance is returned only when there are
// none.
func Validate(tree any, s *schema.Schema, opts ...Option) (*Instance, Violations) {
	v := &validator{}
	for _, opt := range opts {
		opt(v)
	}

	root := RootPath()
	m, ok := tree.(map[string]any)
	if !ok {
		v.add(Violation{Path: root.String(), Kind: ShapeMismatch, Expected: "object", Actual: describe(tree)})
		return nil, v.violations
	}

	value := v.object(root, m, s)
	if !v.violations.Valid() {
		return nil, v.violations
	}
	return &Instance{model: s.Model, root: value}, nil
}

func (v *validator) add(violation Violation) {
	v.violations = append(v.violations, violation)
}

func (v *validator) object(p Path, m map[string]any, s *schema.Schema) Value {
	keys := make([]string, 0, len(s.Fields))
	fields := make(map[string]Value, len(s.Fields))

	for _, f := range s.Fields {
		fp := p.Attr(f.Name)
		raw, present := m[f.Name]
		if !present {
			if f.Required {
				v.add(Violation{Path: fp.String(), Kind: MissingField, Expected: f.Node.String()})
			}
			keys = append(keys, f.Name)
			fields[f.Name] = Value{}
			continue
		}
		keys = append(keys, f.Name)
		fields[f.Name] = v.node(fp, raw, f.Node)
	}

	if !v.allowUnknown {
		for _, k := range unknownKeys(m, func(k string) bool { _, ok := s.Field(k); return ok }) {
			v.add(Violation{Path: p.Attr(k).String(), Kind: UnknownField, Actual: describe(m[k])})
		}
	}
	return objectValue(keys, fields)
}

func (v *validator) node(p Path, raw any, n schema.Node) Value {
	switch n.Kind {
	case schema.KindString:
		if s, ok := raw.(string); ok {
			return stringValue(s)
		}
		v.mismatch(p, raw, n)
	case schema.KindNumber:
		if f, ok := toFloat(raw); ok {
			return numberValue(f)
		}
		v.mismatch(p, raw, n)
	case schema.KindBoolean:
		if b, ok := raw.(bool); ok {
			return boolValue(b)
		}
		v.mismatch(p, raw, n)
	case schema.KindObject:
		if m, ok := raw.(map[string]any); ok {
			return v.object(p, m, n.Object)
		}
		v.mismatch(p, raw, n)
	case schema.KindList:
		if items, ok := raw.([]any); ok {
			out := make([]Value, len(items))
			for i, item := range items {
				out[i] = v.node(p.Index(i), item, *n.Elem)
			}
			return listValue(out)
		}
		v.mismatch(p, raw, n)
	case schema.KindOptional:
		if raw == nil {
			return Value{}
		}
		return v.node(p, raw, *n.Elem)
	case schema.KindTable:
		if m, ok := raw.(map[string]any); ok {
			return v.table(p, m, n)
		}
		v.mismatch(p, raw, n)
	default:
		v.add(Violation{Path: p.String(), Kind: TypeMismatch, Expected: string(n.Kind), Actual: describe(raw)})
	}
	return Value{}
}

func (v *validator) table(p Path, m map[string]any, n schema.Node) Value {
	declared := make(map[string]bool, len(n.Keys))
	fields := make(map[string]Value, len(n.Keys))
	for _, k := range n.Keys {
		declared[k] = true
		kp := p.Item(k)
		raw, present := m[k]
		if !present {
			v.add(Violation{Path: kp.String(), Kind: MissingField, Expected: n.Elem.String()})
			fields[k] = Value{}
			continue
		}
		fields[k] = v.node(kp, raw, *n.Elem)
	}
	for _, k := range unknownKeys(m, func(k string) bool { return declared[k] }) {
		v.add(Violation{Path: p.Item(k).String(), Kind: UnknownField, Actual: describe(m[k])})
	}
	return objectValue(append([]string(nil), n.Keys...), fields)
}

// mismatch records a TypeMismatch when both sides are scalars and a
// ShapeMismatch when either side is a container. Null is always a
// TypeMismatch.
func (v *validator) mismatch(p Path, raw any, n schema.Node) {
	kind := TypeMismatch
	if raw != nil && (isContainer(n.Kind) || isContainerValue(raw)) {
		kind = ShapeMismatch
	}
	v.add(Violation{Path: p.String(), Kind: kind, Expected: n.String(), Actual: describe(raw)})
}

func isContainer(k schema.NodeKind) bool {
	return k == schema.KindObject || k == schema.KindList || k == schema.KindTable
}

func isContainerValue(raw any) bool {
	switch raw.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func unknownKeys(m map[string]any, known func(string) bool) []string {
	var out []string
	for k := range m {
		if !known(k) {
			out = append(out, k)
		}
	}
	sort.Strings(out)
	return out
}

func toFloat(raw any) (float64, bool) {
	switch n := raw.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// describe names the kind of a decoded value for violation messages.
func describe(raw any) string {
	if raw == nil {
		return "null"
	}
	if _, ok := toFloat(raw); ok {
		return "number"
	}
	switch raw.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case map[string]any:
		return "object"
	case []any:
		return "list"
	}
	return fmt.Sprintf("%T", raw)
}
