package manifest

import (
	"fmt"

	"github.com/cgast/veriq/pkg/calc"
	"github.com/cgast/veriq/pkg/design"
	"github.com/cgast/veriq/pkg/model"
	"github.com/cgast/veriq/pkg/requirement"
	"github.com/cgast/veriq/pkg/schema"
)

// Project is a manifest turned into the pieces a verification run needs.
type Project struct {
	Manifest *Manifest
	Registry *model.Registry
	Schema   *schema.Schema
	Tree     *requirement.Tree
	Calcs    *calc.Set
}

// Build validates m and compiles it. A ValidationResult is returned as the
// error when the manifest is structurally invalid; schema cycles and
// calculation cycles surface as *schema.SchemaCycleError and
// *calc.CycleError.
func Build(m *Manifest, checks *requirement.Checks) (*Project, error) {
	if checks == nil {
		checks = requirement.DefaultChecks()
	}
	if result := Validate(m, checks); !result.Valid() {
		return nil, result
	}

	reg := model.NewRegistry()
	for _, d := range m.Models {
		fields := make([]model.Field, 0, len(d.Fields))
		for _, f := range d.Fields {
			k, err := ParseKind(f.Type)
			if err != nil {
				return nil, fmt.Errorf("model %s: field %s: %w", d.Name, f.Name, err)
			}
			fields = append(fields, model.Field{Name: f.Name, Kind: k})
		}
		t, err := model.NewType(d.Name, fields...)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(t); err != nil {
			return nil, err
		}
	}

	s, err := schema.Derive(reg, m.Root)
	if err != nil {
		return nil, err
	}

	calcs := calc.NewSet()
	for _, d := range m.Calculations {
		c, err := compileCalc(d)
		if err != nil {
			return nil, err
		}
		if err := calcs.Add(c); err != nil {
			return nil, err
		}
	}
	if _, err := calcs.Order(); err != nil {
		return nil, err
	}

	root, err := buildNode(m.Requirements, checks)
	if err != nil {
		return nil, err
	}
	tree, err := requirement.NewTree(root)
	if err != nil {
		return nil, err
	}

	return &Project{
		Manifest: m,
		Registry: reg,
		Schema:   s,
		Tree:     tree,
		Calcs:    calcs,
	}, nil
}

func buildNode(r RequirementDef, checks *requirement.Checks) (*requirement.Node, error) {
	if len(r.Children) > 0 {
		children := make([]*requirement.Node, 0, len(r.Children))
		for _, c := range r.Children {
			n, err := buildNode(c, checks)
			if err != nil {
				return nil, err
			}
			children = append(children, n)
		}
		return requirement.Group(r.ID, r.Description, children...), nil
	}

	all := r.AllChecks()
	procs := make([]requirement.Procedure, 0, len(all))
	for _, c := range all {
		p, err := checks.Compile(c)
		if err != nil {
			return nil, fmt.Errorf("requirement %s: %w", r.ID, err)
		}
		procs = append(procs, p)
	}
	if len(procs) == 1 {
		return requirement.Leaf(r.ID, r.Description, procs[0]), nil
	}
	return requirement.Leaf(r.ID, r.Description, requirement.All(procs...)), nil
}

// Instantiate validates a raw design tree against the project schema.
func (p *Project) Instantiate(tree any, opts ...design.Option) (*design.Instance, design.Violations) {
	return design.Validate(tree, p.Schema, opts...)
}
