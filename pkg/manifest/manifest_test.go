package manifest

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/cgast/veriq/pkg/calc"
	"github.com/cgast/veriq/pkg/design"
	"github.com/cgast/veriq/pkg/requirement"
	"github.com/cgast/veriq/pkg/schema"
	"github.com/cgast/veriq/pkg/verify"
)

func loadBattery(t *testing.T, params map[string]string) *Project {
	t.Helper()
	m, err := Load(filepath.Join("testdata", "battery.yaml"), params)
	require.NoError(t, err)
	p, err := Build(m, nil)
	require.NoError(t, err)
	return p
}

func TestLoadBattery(t *testing.T) {
	p := loadBattery(t, nil)

	if p.Manifest.Meta.Name != "battery" {
		t.Errorf("Meta.Name = %q", p.Manifest.Meta.Name)
	}
	if diff := cmp.Diff([]string{"CellSpec", "Battery"}, p.Registry.Names()); diff != "" {
		t.Errorf("models (-want +got):\n%s", diff)
	}
	cells, ok := p.Schema.Field("cells")
	if !ok || cells.Node.String() != "list<CellSpec>" || !cells.Required {
		t.Errorf("cells field = %+v", cells)
	}
	if label, _ := p.Schema.Field("label"); label.Required {
		t.Error("label should be optional")
	}
	if diff := cmp.Diff([]string{"pack_voltage", "cell_count", "mean_cell_voltage"}, p.Calcs.Names()); diff != "" {
		t.Errorf("calculations (-want +got):\n%s", diff)
	}
	if p.Tree.Len() != 4 {
		t.Errorf("tree has %d requirements, want 4", p.Tree.Len())
	}
	check, _ := p.Manifest.Requirements.Children[0].Check.Expected.(string)
	if check != "80" {
		t.Errorf("interpolated expected = %q, want 80", check)
	}
}

func TestBatteryEndToEnd(t *testing.T) {
	p := loadBattery(t, nil)

	raw, err := design.LoadFile(filepath.Join("testdata", "battery.design.toml"))
	require.NoError(t, err)
	inst, violations := p.Instantiate(raw)
	require.True(t, violations.Valid(), violations.Error())

	report, err := verify.NewExecutor(verify.WithCalculations(p.Calcs)).Run(context.Background(), p.Tree, inst)
	require.NoError(t, err)

	if !report.Verified() {
		t.Fatalf("report not verified: %+v", report.Root)
	}
	got := map[string]any{}
	for _, c := range report.Calculations {
		require.Empty(t, c.Error, c.Name)
		got[c.Name] = c.Value
	}
	want := map[string]any{"pack_voltage": 7.3, "cell_count": 2.0, "mean_cell_voltage": 3.65}
	approx := cmp.Comparer(func(a, b float64) bool { d := a - b; return d < 1e-9 && d > -1e-9 })
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("calculations (-want +got):\n%s", diff)
	}

	voltage, ok := report.Find("cell_voltage")
	if !ok || voltage.Procedure != "gte(@mean_cell_voltage, 3) && lte(@mean_cell_voltage, 4.2)" {
		t.Errorf("cell_voltage = %+v", voltage)
	}
}

func TestParamOverride(t *testing.T) {
	p := loadBattery(t, map[string]string{"min_capacity": "150"})

	raw, err := design.LoadFile(filepath.Join("testdata", "battery.design.toml"))
	require.NoError(t, err)
	inst, violations := p.Instantiate(raw)
	require.True(t, violations.Valid())

	report, err := verify.NewExecutor(verify.WithCalculations(p.Calcs)).Run(context.Background(), p.Tree, inst)
	require.NoError(t, err)

	n, ok := report.Find("battery_sufficient")
	require.True(t, ok)
	if n.Status != verify.Failed {
		t.Errorf("battery_sufficient = %s, want failed", n.Status)
	}
	if report.Root.Status != verify.Failed {
		t.Errorf("root = %s, want failed", report.Root.Status)
	}
}

func TestParamEquality(t *testing.T) {
	const src = `
apiVersion: veriq/v1
kind: Project
meta: { name: pack }
params:
  - { name: cells, type: number, default: 2 }
root: Pack
models:
  - name: Pack
    fields:
      - { name: voltages, type: "list<number>" }
calculations:
  - { name: cell_count, op: count, args: ["$.voltages[*]"] }
requirements:
  id: pack
  children:
    - id: count_eq
      check: { type: eq, target: "@cell_count", expected: "{{cells}}" }
    - id: count_allowed
      check: { type: one_of, target: "@cell_count", expected: ["{{cells}}", "8"] }
`
	tests := []struct {
		name    string
		params  map[string]string
		want    verify.Status
		message string
	}{
		{name: "default", want: verify.Passed},
		{name: "override", params: map[string]string{"cells": "3"}, want: verify.Failed, message: "@cell_count = 2, want 3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(src), tt.params)
			require.NoError(t, err)
			p, err := Build(m, nil)
			require.NoError(t, err)
			inst, violations := p.Instantiate(map[string]any{"voltages": []any{3.7, 3.6}})
			require.True(t, violations.Valid(), violations.Error())

			report, err := verify.NewExecutor(verify.WithCalculations(p.Calcs)).Run(context.Background(), p.Tree, inst)
			require.NoError(t, err)
			n, ok := report.Find("count_eq")
			require.True(t, ok)
			if n.Status != tt.want {
				t.Errorf("count_eq = %s (%s), want %s", n.Status, n.Message, tt.want)
			}
			if tt.message != "" && n.Message != tt.message {
				t.Errorf("message = %q, want %q", n.Message, tt.message)
			}
		})
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("apiVersion: veriq/v1\nkind: Project\nbogus: 1\n"), nil)
	if err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("expected error")
	}
}

func TestUnresolved(t *testing.T) {
	got := Unresolved("{{a}} and {{ b }} and {{a}}")
	if diff := cmp.Diff([]string{"a", "b"}, got); diff != "" {
		t.Errorf("Unresolved (-want +got):\n%s", diff)
	}
	if Unresolved("plain") != nil {
		t.Error("expected no placeholders")
	}
}

const validBase = `
apiVersion: veriq/v1
kind: Project
meta:
  name: sat
root: Satellite
models:
  - name: Satellite
    fields:
      - { name: mass_kg, type: number }
requirements:
  id: mass
  check: { type: lte, target: $.mass_kg, expected: 100 }
`

func TestValidate(t *testing.T) {
	tests := []struct {
		name       string
		edit       func(m *Manifest)
		wantFields []string
	}{
		{
			name: "valid",
			edit: func(*Manifest) {},
		},
		{
			name: "header",
			edit: func(m *Manifest) {
				m.APIVersion = "veriq/v0"
				m.Kind = ""
				m.Meta.Name = ""
			},
			wantFields: []string{"apiVersion", "kind", "meta.name"},
		},
		{
			name:       "unknown root",
			edit:       func(m *Manifest) { m.Root = "Rocket" },
			wantFields: []string{"root"},
		},
		{
			name: "bad models",
			edit: func(m *Manifest) {
				m.Models = append(m.Models,
					ModelDef{Name: "Satellite"},
					ModelDef{Name: "Bus", Fields: []FieldDef{
						{Name: "a", Type: "number"},
						{Name: "a", Type: "list<Thing>"},
						{Name: "", Type: "map<x>"},
					}},
				)
			},
			wantFields: []string{
				"models[1].name",
				"models[2].fields[1].name",
				"models[2].fields[1].type",
				"models[2].fields[2].name",
				"models[2].fields[2].type",
			},
		},
		{
			name: "bad calculations",
			edit: func(m *Manifest) {
				m.Calculations = []CalcDef{
					{Name: "a", Op: "sum", Args: []string{"$.mass_kg"}},
					{Name: "a", Op: "sum", Args: []string{"@missing"}},
					{Name: "b", Op: "median", Args: []string{"$.mass_kg"}},
					{Name: "c", Op: "sum"},
				}
			},
			wantFields: []string{
				"calculations[1].name",
				"calculations[1].args",
				"calculations[2]",
				"calculations[3]",
			},
		},
		{
			name: "bad requirements",
			edit: func(m *Manifest) {
				m.Requirements.Children = []RequirementDef{
					{ID: "mass"},
					{ID: ""},
				}
			},
			wantFields: []string{
				"requirements",
				"requirements.children[0].id",
				"requirements.children[0]",
				"requirements.children[1].id",
				"requirements.children[1]",
			},
		},
		{
			name: "bad checks",
			edit: func(m *Manifest) {
				m.Requirements.Check.Target = "@budget.margin"
				m.Requirements.Checks = append(m.Requirements.Checks,
					requirement.Check{Type: "between", Target: "$.mass_kg"},
					requirement.Check{Type: "eq", Target: "$.mass_kg", Expected: "{{limit}}"},
				)
			},
			wantFields: []string{
				"requirements.checks[0].target",
				"requirements.checks[1]",
				"requirements.checks[2].expected",
			},
		},
		{
			name: "duplicate params",
			edit: func(m *Manifest) {
				m.Params = []ParamDef{{Name: "x"}, {Name: "x"}, {}}
			},
			wantFields: []string{"params[1].name", "params[2].name"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse([]byte(validBase), nil)
			require.NoError(t, err)
			tt.edit(m)

			result := Validate(m, nil)
			var fields []string
			for _, e := range result.Errors {
				fields = append(fields, e.Field)
			}
			if diff := cmp.Diff(tt.wantFields, fields); diff != "" {
				t.Errorf("error fields (-want +got):\n%s\n%s", diff, result.Error())
			}
			if result.Valid() != (len(tt.wantFields) == 0) {
				t.Errorf("Valid() = %v", result.Valid())
			}
		})
	}
}

func TestBuildInvalidReturnsValidationResult(t *testing.T) {
	m, err := Parse([]byte(validBase), nil)
	require.NoError(t, err)
	m.Root = ""

	_, err = Build(m, nil)
	var result ValidationResult
	if !errors.As(err, &result) {
		t.Fatalf("expected ValidationResult, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "validation failed: root: required") {
		t.Errorf("error = %v", err)
	}
}

func TestBuildCycles(t *testing.T) {
	t.Run("schema", func(t *testing.T) {
		m, err := Parse([]byte(validBase), nil)
		require.NoError(t, err)
		m.Models[0].Fields = append(m.Models[0].Fields, FieldDef{Name: "spare", Type: "optional<Satellite>"})

		_, err = Build(m, nil)
		var cycle *schema.SchemaCycleError
		if !errors.As(err, &cycle) {
			t.Fatalf("expected SchemaCycleError, got %v", err)
		}
	})

	t.Run("calculations", func(t *testing.T) {
		m, err := Parse([]byte(validBase), nil)
		require.NoError(t, err)
		m.Calculations = []CalcDef{
			{Name: "a", Op: "sum", Args: []string{"@b"}},
			{Name: "b", Op: "sum", Args: []string{"@a"}},
		}

		_, err = Build(m, nil)
		var cycle *calc.CycleError
		if !errors.As(err, &cycle) {
			t.Fatalf("expected calc.CycleError, got %v", err)
		}
	})
}

func TestCalculationOps(t *testing.T) {
	m, err := Parse([]byte(`
apiVersion: veriq/v1
kind: Project
meta: { name: ops }
root: Rig
models:
  - name: Rig
    fields:
      - { name: loads, type: "list<number>" }
      - { name: modes, type: "table<idle|peak, number>" }
      - { name: spare, type: "optional<number>" }
requirements:
  id: r
  check: { type: not_empty, target: $.loads }
`), nil)
	require.NoError(t, err)
	p, err := Build(m, nil)
	require.NoError(t, err)

	inst, violations := p.Instantiate(map[string]any{
		"loads": []any{2.0, 4.0, 6.0},
		"modes": map[string]any{"idle": 5.0, "peak": 20.0},
	})
	require.True(t, violations.Valid(), violations.Error())

	tests := []struct {
		op      string
		args    []string
		want    float64
		wantErr bool
	}{
		{op: "sum", args: []string{"$.loads[*]"}, want: 12},
		{op: "sum", args: []string{"$.loads[*]", "$.modes[peak]"}, want: 32},
		{op: "sum", args: []string{"$.spare"}, want: 0},
		{op: "product", args: []string{"$.loads[*]"}, want: 48},
		{op: "min", args: []string{"$.loads[*]"}, want: 2},
		{op: "max", args: []string{"$.modes[*]"}, want: 20},
		{op: "mean", args: []string{"$.loads[*]"}, want: 4},
		{op: "count", args: []string{"$.loads[*]", "$.modes[*]"}, want: 5},
		{op: "difference", args: []string{"$.modes[peak]", "$.modes[idle]"}, want: 15},
		{op: "ratio", args: []string{"$.modes[peak]", "$.modes[idle]"}, want: 4},
		{op: "ratio", args: []string{"$.loads[0]", "$.spare"}, wantErr: true},
		{op: "difference", args: []string{"$.loads[*]"}, wantErr: true},
		{op: "min", args: []string{"$.spare"}, wantErr: true},
		{op: "sum", args: []string{"$.loads[*].x"}, wantErr: true},
		{op: "sum", args: []string{"$.modes[idle][*]"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.op+" "+strings.Join(tt.args, ","), func(t *testing.T) {
			c, err := compileCalc(CalcDef{Name: "x", Op: tt.op, Args: tt.args})
			require.NoError(t, err)
			got, err := c.Func(inst)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got %v", got)
				}
				return
			}
			require.NoError(t, err)
			if got != tt.want {
				t.Errorf("%s = %v, want %v", tt.op, got, tt.want)
			}
		})
	}
}

func TestOps(t *testing.T) {
	want := []string{"count", "difference", "max", "mean", "min", "product", "ratio", "sum"}
	if diff := cmp.Diff(want, Ops()); diff != "" {
		t.Errorf("Ops (-want +got):\n%s", diff)
	}
}
