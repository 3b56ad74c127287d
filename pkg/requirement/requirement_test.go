package requirement

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cgast/veriq/pkg/design"
)

var always = Predicate(func(*design.Instance) bool { return true })

func TestNewTreeValid(t *testing.T) {
	tree, err := NewTree(Group("root", "all",
		Group("power", "power budget",
			Leaf("battery_sufficient", "", always),
			Leaf("cells_present", "", always),
		),
		Leaf("mass", "", always),
	))
	require.NoError(t, err)

	if tree.Len() != 5 {
		t.Errorf("Len = %d, want 5", tree.Len())
	}
	n, ok := tree.Find("cells_present")
	if !ok || !n.IsLeaf() {
		t.Errorf("Find(cells_present) = %v, %v", n, ok)
	}
	if _, ok := tree.Find("nope"); ok {
		t.Error("Find should miss unknown ids")
	}

	var order []string
	var depths []int
	require.NoError(t, tree.Walk(func(n *Node, depth int) error {
		order = append(order, n.ID)
		depths = append(depths, depth)
		return nil
	}))
	if diff := cmp.Diff([]string{"battery_sufficient", "cells_present", "power", "mass", "root"}, order); diff != "" {
		t.Errorf("walk order (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{2, 2, 1, 1, 0}, depths); diff != "" {
		t.Errorf("depths (-want +got):\n%s", diff)
	}

	var leaves []string
	for _, l := range tree.Leaves() {
		leaves = append(leaves, l.ID)
	}
	if diff := cmp.Diff([]string{"battery_sufficient", "cells_present", "mass"}, leaves); diff != "" {
		t.Errorf("leaves (-want +got):\n%s", diff)
	}
}

func TestNewTreeDeclarationErrors(t *testing.T) {
	tests := []struct {
		name   string
		root   *Node
		target any
	}{
		{
			name:   "neither procedure nor children",
			root:   Group("root", "", Group("empty", "")),
			target: new(*UnverifiableError),
		},
		{
			name:   "both procedure and children",
			root:   &Node{ID: "root", Procedure: always, Children: []*Node{Leaf("a", "", always)}},
			target: new(*AmbiguousNodeError),
		},
		{
			name:   "duplicate id",
			root:   Group("root", "", Leaf("a", "", always), Leaf("a", "", always)),
			target: new(*DuplicateRequirementError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewTree(tt.root)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.As(err, tt.target) {
				t.Errorf("error %v (%T) is not %T", err, err, tt.target)
			}
		})
	}
}

func TestNewTreeOtherErrors(t *testing.T) {
	if _, err := NewTree(nil); err == nil {
		t.Error("nil root should fail")
	}
	if _, err := NewTree(Leaf("", "nameless", always)); err == nil {
		t.Error("empty id should fail")
	}
	if _, err := NewTree(Group("root", "", nil)); err == nil {
		t.Error("nil child should fail")
	}
}

func TestVerdictHelpers(t *testing.T) {
	if !Holds().Holds {
		t.Error("Holds().Holds = false")
	}
	v := Failf("%d < %d", 70, 80)
	if v.Holds || v.Message != "70 < 80" {
		t.Errorf("Failf = %+v", v)
	}
	if Fails("x").Holds {
		t.Error("Fails().Holds = true")
	}
}

func TestAll(t *testing.T) {
	failing := ProcedureFunc(func(*design.Instance) (Verdict, error) { return Fails("too heavy"), nil })
	broken := ProcedureFunc(func(*design.Instance) (Verdict, error) { return Verdict{}, errors.New("no value") })

	v, err := All(always, always).Evaluate(nil)
	require.NoError(t, err)
	if !v.Holds {
		t.Error("all passing procedures should hold")
	}

	v, err = All(always, failing, broken).Evaluate(nil)
	require.NoError(t, err)
	if v.Holds || v.Message != "too heavy" {
		t.Errorf("verdict = %+v, want first failure", v)
	}

	if _, err := All(broken, failing).Evaluate(nil); err == nil {
		t.Error("expected error from broken procedure")
	}

	checks := DefaultChecks()
	a, err := checks.Compile(Check{Type: "gte", Target: "$.mass_kg", Expected: 10})
	require.NoError(t, err)
	b, err := checks.Compile(Check{Type: "lte", Target: "$.mass_kg", Expected: 100})
	require.NoError(t, err)
	s, ok := All(a, b).(interface{ String() string })
	if !ok || s.String() != "gte($.mass_kg, 10) && lte($.mass_kg, 100)" {
		t.Errorf("String() = %v", s)
	}
}
