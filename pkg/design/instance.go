// Package design validates decoded design configuration against a derived
// schema and exposes the result as an immutable, typed design instance.
package design

import (
	"fmt"
	"sort"
)

// Instance is a validated design. It has no mutating methods; verification
// procedures share one instance read-only for the length of a run.
type Instance struct {
	model   string
	root    Value
	derived map[string]Derived
}

// Derived is the outcome of one calculation attached to an instance.
type Derived struct {
	Value any
	Err   error
}

// Model returns the name of the design model the instance conforms to.
func (i *Instance) Model() string { return i.model }

// Root returns the root object value.
func (i *Instance) Root() Value { return i.root }

// WithDerived returns a copy of the instance whose "@name" paths resolve to
// the given calculation outcomes. The receiver is not modified.
func (i *Instance) WithDerived(derived map[string]Derived) *Instance {
	merged := make(map[string]Derived, len(i.derived)+len(derived))
	for k, v := range i.derived {
		merged[k] = v
	}
	for k, v := range derived {
		merged[k] = v
	}
	return &Instance{model: i.model, root: i.root, derived: merged}
}

// DerivedNames returns the attached calculation names, sorted.
func (i *Instance) DerivedNames() []string {
	names := make([]string, 0, len(i.derived))
	for k := range i.derived {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Derived returns a calculation result as a Value. A failed calculation
// returns its error.
func (i *Instance) Derived(name string) (Value, error) {
	d, ok := i.derived[name]
	if !ok {
		return Value{}, fmt.Errorf("unknown calculation %q", name)
	}
	if d.Err != nil {
		return Value{}, fmt.Errorf("calculation %q failed: %w", name, d.Err)
	}
	v, err := FromGo(d.Value)
	if err != nil {
		return Value{}, fmt.Errorf("calculation %q: %w", name, err)
	}
	return v, nil
}

// Fetch resolves a path string such as "$.cells[0].voltage" or "@mass.total".
func (i *Instance) Fetch(path string) (Value, error) {
	p, err := ParsePath(path)
	if err != nil {
		return Value{}, err
	}
	return i.FetchPath(p)
}

// FetchPath resolves a parsed path.
func (i *Instance) FetchPath(p Path) (Value, error) {
	base := i.root
	if p.IsDerived() {
		v, err := i.Derived(p.Calculation())
		if err != nil {
			return Value{}, err
		}
		base = v
	}
	return base.Get(p)
}

// Float fetches a number.
func (i *Instance) Float(path string) (float64, error) {
	v, err := i.Fetch(path)
	if err != nil {
		return 0, err
	}
	f, err := v.Float()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Text fetches a string.
func (i *Instance) Text(path string) (string, error) {
	v, err := i.Fetch(path)
	if err != nil {
		return "", err
	}
	s, err := v.Text()
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	return s, nil
}

// Bool fetches a boolean.
func (i *Instance) Bool(path string) (bool, error) {
	v, err := i.Fetch(path)
	if err != nil {
		return false, err
	}
	b, err := v.Bool()
	if err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return b, nil
}

// Len fetches the length of a list, object or string.
func (i *Instance) Len(path string) (int, error) {
	v, err := i.Fetch(path)
	if err != nil {
		return 0, err
	}
	n, err := v.Len()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}
	return n, nil
}

// Data returns the design model values as plain Go data.
func (i *Instance) Data() map[string]any {
	m, _ := i.root.Interface().(map[string]any)
	return m
}
