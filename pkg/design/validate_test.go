package design

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cgast/veriq/pkg/model"
	"github.com/cgast/veriq/pkg/schema"
)

func batterySchema(t *testing.T) *schema.Schema {
	t.Helper()
	reg := model.NewRegistry()
	require.NoError(t, reg.RegisterAll(
		model.MustType("Battery",
			model.Field{Name: "capacity_wh", Kind: model.Number()},
			model.Field{Name: "cells", Kind: model.ListOf(model.Ref("CellSpec"))},
			model.Field{Name: "label", Kind: model.OptionalOf(model.String())},
		),
		model.MustType("CellSpec",
			model.Field{Name: "voltage", Kind: model.Number()},
			model.Field{Name: "chemistry", Kind: model.OptionalOf(model.String())},
		),
	))
	s, err := schema.Derive(reg, "Battery")
	require.NoError(t, err)
	return s
}

func TestValidateConforming(t *testing.T) {
	s := batterySchema(t)
	tree := map[string]any{
		"capacity_wh": int64(100),
		"cells": []any{
			map[string]any{"voltage": 3.7},
			map[string]any{"voltage": 3.6, "chemistry": "LiFePO4"},
		},
	}

	inst, vs := Validate(tree, s)
	if !vs.Valid() {
		t.Fatalf("unexpected violations: %v", vs)
	}
	if inst.Model() != "Battery" {
		t.Errorf("Model = %q", inst.Model())
	}

	capacity, err := inst.Float("$.capacity_wh")
	require.NoError(t, err)
	if capacity != 100 {
		t.Errorf("capacity_wh = %v", capacity)
	}
	n, err := inst.Len("$.cells")
	require.NoError(t, err)
	if n != 2 {
		t.Errorf("len(cells) = %d", n)
	}
	chem, err := inst.Text("$.cells[1].chemistry")
	require.NoError(t, err)
	if chem != "LiFePO4" {
		t.Errorf("chemistry = %q", chem)
	}
	label, err := inst.Fetch("$.label")
	require.NoError(t, err)
	if !label.IsNone() {
		t.Errorf("absent optional should read as none, got %v", label.Kind())
	}
}

func TestValidateRoundTrip(t *testing.T) {
	s := batterySchema(t)
	tree := map[string]any{
		"capacity_wh": 80.5,
		"cells":       []any{map[string]any{"voltage": 3.2, "chemistry": nil}},
		"label":       "pack-a",
	}

	inst, vs := Validate(tree, s)
	require.True(t, vs.Valid(), "violations: %v", vs)

	again, vs := Validate(inst.Data(), s)
	require.True(t, vs.Valid(), "re-validation violations: %v", vs)
	if diff := cmp.Diff(inst.Data(), again.Data()); diff != "" {
		t.Errorf("round trip changed data (-first +second):\n%s", diff)
	}
}

func TestValidateMissingFieldCollectsOthers(t *testing.T) {
	s := batterySchema(t)
	tree := map[string]any{
		"cells": []any{
			map[string]any{"voltage": "high"},
		},
	}

	inst, vs := Validate(tree, s)
	if inst != nil {
		t.Fatal("instance returned despite violations")
	}

	want := Violations{
		{Path: "$.capacity_wh", Kind: MissingField, Expected: "number"},
		{Path: "$.cells[0].voltage", Kind: TypeMismatch, Expected: "number", Actual: "string"},
	}
	if diff := cmp.Diff(want, vs); diff != "" {
		t.Errorf("violations (-want +got):\n%s", diff)
	}

	missing := 0
	for _, v := range vs {
		if v.Kind == MissingField {
			missing++
		}
	}
	if missing != 1 {
		t.Errorf("MissingField count = %d, want 1", missing)
	}
}

func TestValidateViolationKinds(t *testing.T) {
	s := batterySchema(t)
	tests := []struct {
		name string
		tree map[string]any
		want Violation
	}{
		{
			name: "object where list expected",
			tree: map[string]any{"capacity_wh": 1, "cells": map[string]any{"voltage": 1}},
			want: Violation{Path: "$.cells", Kind: ShapeMismatch, Expected: "list<CellSpec>", Actual: "object"},
		},
		{
			name: "list where object expected",
			tree: map[string]any{"capacity_wh": 1, "cells": []any{[]any{}}},
			want: Violation{Path: "$.cells[0]", Kind: ShapeMismatch, Expected: "CellSpec", Actual: "list"},
		},
		{
			name: "bool is not a number",
			tree: map[string]any{"capacity_wh": true, "cells": []any{}},
			want: Violation{Path: "$.capacity_wh", Kind: TypeMismatch, Expected: "number", Actual: "boolean"},
		},
		{
			name: "null for required field",
			tree: map[string]any{"capacity_wh": nil, "cells": []any{}},
			want: Violation{Path: "$.capacity_wh", Kind: TypeMismatch, Expected: "number", Actual: "null"},
		},
		{
			name: "null for required list",
			tree: map[string]any{"capacity_wh": 1, "cells": nil},
			want: Violation{Path: "$.cells", Kind: TypeMismatch, Expected: "list<CellSpec>", Actual: "null"},
		},
		{
			name: "null for required object",
			tree: map[string]any{"capacity_wh": 1, "cells": []any{nil}},
			want: Violation{Path: "$.cells[0]", Kind: TypeMismatch, Expected: "CellSpec", Actual: "null"},
		},
		{
			name: "unknown field",
			tree: map[string]any{"capacity_wh": 1, "cells": []any{}, "colour": "red"},
			want: Violation{Path: "$.colour", Kind: UnknownField, Actual: "string"},
		},
		{
			name: "optional present with wrong type",
			tree: map[string]any{"capacity_wh": 1, "cells": []any{}, "label": 7},
			want: Violation{Path: "$.label", Kind: TypeMismatch, Expected: "string", Actual: "number"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, vs := Validate(tt.tree, s)
			if diff := cmp.Diff(Violations{tt.want}, vs); diff != "" {
				t.Errorf("violations (-want +got):\n%s", diff)
			}
		})
	}
}

func TestValidateUnknownFieldsSortedAfterDeclared(t *testing.T) {
	s := batterySchema(t)
	tree := map[string]any{
		"zeta":  1,
		"alpha": 2,
		"cells": []any{},
	}
	_, vs := Validate(tree, s)

	var paths []string
	for _, v := range vs {
		paths = append(paths, v.Path)
	}
	want := []string{"$.capacity_wh", "$.alpha", "$.zeta"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("violation order (-want +got):\n%s", diff)
	}
}

func TestValidateAllowUnknown(t *testing.T) {
	s := batterySchema(t)
	tree := map[string]any{"capacity_wh": 1, "cells": []any{}, "notes": "x"}

	inst, vs := Validate(tree, s, WithAllowUnknown(true))
	require.True(t, vs.Valid(), "violations: %v", vs)
	if _, err := inst.Fetch("$.notes"); err == nil {
		t.Error("unknown field should be dropped from the instance")
	}
}

func TestValidateTable(t *testing.T) {
	reg := model.NewRegistry()
	require.NoError(t, reg.Register(model.MustType("Power",
		model.Field{Name: "consumption", Kind: model.TableOf([]string{"nominal", "safe"}, model.Number())},
	)))
	s, err := schema.Derive(reg, "Power")
	require.NoError(t, err)

	inst, vs := Validate(map[string]any{
		"consumption": map[string]any{"nominal": 10, "safe": 2},
	}, s, WithAllowUnknown(true))
	require.True(t, vs.Valid(), "violations: %v", vs)
	safe, err := inst.Float("$.consumption[safe]")
	require.NoError(t, err)
	if safe != 2 {
		t.Errorf("safe = %v", safe)
	}

	_, vs = Validate(map[string]any{
		"consumption": map[string]any{"nominal": 10, "peak": 30},
	}, s, WithAllowUnknown(true))
	want := Violations{
		{Path: "$.consumption[safe]", Kind: MissingField, Expected: "number"},
		{Path: "$.consumption[peak]", Kind: UnknownField, Actual: "number"},
	}
	if diff := cmp.Diff(want, vs); diff != "" {
		t.Errorf("table violations (-want +got):\n%s", diff)
	}
}

func TestValidateTopLevelNotObject(t *testing.T) {
	_, vs := Validate([]any{1}, batterySchema(t))
	if len(vs) != 1 || vs[0].Kind != ShapeMismatch || vs[0].Path != "$" {
		t.Errorf("got %v", vs)
	}
}

func TestViolationsError(t *testing.T) {
	vs := Violations{
		{Path: "$.a", Kind: MissingField},
		{Path: "$.b", Kind: TypeMismatch, Expected: "number", Actual: "string"},
	}
	want := "validation failed: $.a: missing required field; $.b: type_mismatch (expected number, got string)"
	if vs.Error() != want {
		t.Errorf("Error() = %q", vs.Error())
	}
	if (Violations{}).Error() != "" {
		t.Error("empty violations should have empty message")
	}
}
