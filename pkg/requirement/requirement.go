// Package requirement declares requirements trees: leaves bound to
// verification procedures and aggregators that summarize their children.
package requirement

import (
	"fmt"
	"strings"

	"github.com/cgast/veriq/pkg/design"
)

// Verdict is what a procedure concludes about a requirement.
type Verdict struct {
	Holds   bool   `json:"holds"`
	Message string `json:"message,omitempty"`
}

// Holds returns a passing verdict.
func Holds() Verdict { return Verdict{Holds: true} }

// Fails returns a failing verdict with a diagnostic.
func Fails(msg string) Verdict { return Verdict{Message: msg} }

// Failf returns a failing verdict with a formatted diagnostic.
func Failf(format string, args ...any) Verdict {
	return Verdict{Message: fmt.Sprintf(format, args...)}
}

// Procedure checks one requirement against a design. A returned error means
// the procedure could not reach a verdict.
type Procedure interface {
	Evaluate(inst *design.Instance) (Verdict, error)
}

// ProcedureFunc adapts a function to Procedure.
type ProcedureFunc func(inst *design.Instance) (Verdict, error)

// Evaluate calls f(inst).
func (f ProcedureFunc) Evaluate(inst *design.Instance) (Verdict, error) { return f(inst) }

// Predicate adapts a boolean function to Procedure. A false result fails
// without a message.
func Predicate(f func(inst *design.Instance) bool) Procedure {
	return ProcedureFunc(func(inst *design.Instance) (Verdict, error) {
		return Verdict{Holds: f(inst)}, nil
	})
}

// Node is a requirement. A leaf has a Procedure and no children; an
// aggregator has children and no Procedure.
type Node struct {
	ID          string
	Description string
	Procedure   Procedure
	Children    []*Node
}

// Leaf declares a verifiable requirement.
func Leaf(id, description string, p Procedure) *Node {
	return &Node{ID: id, Description: description, Procedure: p}
}

// Group declares an aggregator over children, kept in declaration order.
func Group(id, description string, children ...*Node) *Node {
	return &Node{ID: id, Description: description, Children: children}
}

// IsLeaf reports whether the node is verified directly.
func (n *Node) IsLeaf() bool { return n.Procedure != nil }

// Tree is a checked requirements hierarchy. Trees are not modified after
// NewTree returns.
type Tree struct {
	root  *Node
	index map[string]*Node
}

// NewTree checks that every node is either a leaf or an aggregator and that
// ids are unique.
func NewTree(root *Node) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("requirements tree has no root")
	}
	t := &Tree{root: root, index: make(map[string]*Node)}
	if err := t.check(root); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tree) check(n *Node) error {
	if n.ID == "" {
		return fmt.Errorf("requirement with empty id (description %q)", n.Description)
	}
	if _, dup := t.index[n.ID]; dup {
		return &DuplicateRequirementError{ID: n.ID}
	}
	t.index[n.ID] = n

	switch {
	case n.Procedure != nil && len(n.Children) > 0:
		return &AmbiguousNodeError{ID: n.ID}
	case n.Procedure == nil && len(n.Children) == 0:
		return &UnverifiableError{ID: n.ID}
	}
	for i, c := range n.Children {
		if c == nil {
			return fmt.Errorf("requirement %q: child %d is nil", n.ID, i)
		}
		if err := t.check(c); err != nil {
			return err
		}
	}
	return nil
}

// Root returns the root requirement.
func (t *Tree) Root() *Node { return t.root }

// Len returns the number of requirements.
func (t *Tree) Len() int { return len(t.index) }

// Find looks a requirement up by id.
func (t *Tree) Find(id string) (*Node, bool) {
	n, ok := t.index[id]
	return n, ok
}

// Walk visits every node depth-first with children before their parent, in
// declaration order. depth is 0 for the root.
func (t *Tree) Walk(fn func(n *Node, depth int) error) error {
	return walk(t.root, 0, fn)
}

func walk(n *Node, depth int, fn func(*Node, int) error) error {
	for _, c := range n.Children {
		if err := walk(c, depth+1, fn); err != nil {
			return err
		}
	}
	return fn(n, depth)
}

// Leaves returns the leaf requirements in execution order.
func (t *Tree) Leaves() []*Node {
	var leaves []*Node
	_ = t.Walk(func(n *Node, _ int) error {
		if n.IsLeaf() {
			leaves = append(leaves, n)
		}
		return nil
	})
	return leaves
}

// DuplicateRequirementError is returned when two requirements share an id.
type DuplicateRequirementError struct {
	ID string
}

func (e *DuplicateRequirementError) Error() string {
	return fmt.Sprintf("duplicate requirement id: %s", e.ID)
}

// UnverifiableError is returned for a node with neither a procedure nor
// children.
type UnverifiableError struct {
	ID string
}

func (e *UnverifiableError) Error() string {
	return fmt.Sprintf("requirement %s has neither a procedure nor children", e.ID)
}

// AmbiguousNodeError is returned for a node with both a procedure and
// children.
type AmbiguousNodeError struct {
	ID string
}

func (e *AmbiguousNodeError) Error() string {
	return fmt.Sprintf("requirement %s has both a procedure and children", e.ID)
}

// All combines procedures into one that holds only if every procedure holds.
// It stops at the first failure or error.
func All(procs ...Procedure) Procedure {
	return allOf(procs)
}

type allOf []Procedure

func (a allOf) Evaluate(inst *design.Instance) (Verdict, error) {
	for _, p := range a {
		v, err := p.Evaluate(inst)
		if err != nil {
			return Verdict{}, err
		}
		if !v.Holds {
			return v, nil
		}
	}
	return Holds(), nil
}

func (a allOf) String() string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = "procedure"
		if s, ok := p.(fmt.Stringer); ok {
			parts[i] = s.String()
		}
	}
	return strings.Join(parts, " && ")
}
