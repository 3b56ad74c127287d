package manifest

import (
	"fmt"
	"math"
	"sort"

	"github.com/cgast/veriq/pkg/calc"
	"github.com/cgast/veriq/pkg/design"
)

// wildcard expands every element of a list or every value of an object.
const wildcard = "*"

type reducer struct {
	arity  int // 0 means any number of args
	reduce func(xs []float64) (float64, error)
}

var ops = map[string]reducer{
	"sum": {reduce: func(xs []float64) (float64, error) {
		total := 0.0
		for _, x := range xs {
			total += x
		}
		return total, nil
	}},
	"product": {reduce: func(xs []float64) (float64, error) {
		total := 1.0
		for _, x := range xs {
			total *= x
		}
		return total, nil
	}},
	"min": {reduce: func(xs []float64) (float64, error) {
		if len(xs) == 0 {
			return 0, fmt.Errorf("min of no values")
		}
		m := math.Inf(1)
		for _, x := range xs {
			m = math.Min(m, x)
		}
		return m, nil
	}},
	"max": {reduce: func(xs []float64) (float64, error) {
		if len(xs) == 0 {
			return 0, fmt.Errorf("max of no values")
		}
		m := math.Inf(-1)
		for _, x := range xs {
			m = math.Max(m, x)
		}
		return m, nil
	}},
	"mean": {reduce: func(xs []float64) (float64, error) {
		if len(xs) == 0 {
			return 0, fmt.Errorf("mean of no values")
		}
		total := 0.0
		for _, x := range xs {
			total += x
		}
		return total / float64(len(xs)), nil
	}},
	"difference": {arity: 2, reduce: func(xs []float64) (float64, error) {
		return xs[0] - xs[1], nil
	}},
	"ratio": {arity: 2, reduce: func(xs []float64) (float64, error) {
		if xs[1] == 0 {
			return 0, fmt.Errorf("ratio: division by zero")
		}
		return xs[0] / xs[1], nil
	}},
}

// Ops lists the supported calculation ops, sorted. "count" counts values
// instead of reducing numbers.
func Ops() []string {
	names := []string{"count"}
	for name := range ops {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// compileCalc turns a declarative calculation into a calc.Calculation.
// Its dependencies are the "@name" roots of its args.
func compileCalc(def CalcDef) (*calc.Calculation, error) {
	if len(def.Args) == 0 {
		return nil, fmt.Errorf("calculation %s: args are required", def.Name)
	}
	paths := make([]design.Path, len(def.Args))
	var deps []string
	seen := make(map[string]bool)
	for i, arg := range def.Args {
		p, err := design.ParsePath(arg)
		if err != nil {
			return nil, fmt.Errorf("calculation %s: %w", def.Name, err)
		}
		paths[i] = p
		if p.IsDerived() && !seen[p.Calculation()] {
			seen[p.Calculation()] = true
			deps = append(deps, p.Calculation())
		}
	}

	var fn calc.Func
	if def.Op == "count" {
		fn = func(inst *design.Instance) (any, error) {
			n := 0
			for _, p := range paths {
				vs, err := selectAll(inst, p)
				if err != nil {
					return nil, err
				}
				n += len(vs)
			}
			return float64(n), nil
		}
	} else {
		r, ok := ops[def.Op]
		if !ok {
			return nil, fmt.Errorf("calculation %s: unknown op %q", def.Name, def.Op)
		}
		fn = func(inst *design.Instance) (any, error) {
			var xs []float64
			for _, p := range paths {
				vs, err := selectAll(inst, p)
				if err != nil {
					return nil, err
				}
				for _, v := range vs {
					if v.IsNone() {
						continue
					}
					f, err := v.Float()
					if err != nil {
						return nil, fmt.Errorf("%s: %w", p, err)
					}
					xs = append(xs, f)
				}
			}
			if r.arity > 0 && len(xs) != r.arity {
				return nil, fmt.Errorf("%s takes %d values, got %d", def.Op, r.arity, len(xs))
			}
			return r.reduce(xs)
		}
	}

	return &calc.Calculation{Name: def.Name, Deps: deps, Func: fn}, nil
}

// selectAll resolves a path that may contain "[*]" parts.
func selectAll(inst *design.Instance, p design.Path) ([]design.Value, error) {
	base := inst.Root()
	if p.IsDerived() {
		v, err := inst.Derived(p.Calculation())
		if err != nil {
			return nil, err
		}
		base = v
	}

	current := []design.Value{base}
	for i, part := range p.Parts {
		at := design.Path{Root: p.Root, Parts: p.Parts[:i+1]}
		var next []design.Value
		for _, v := range current {
			if part.Kind == design.PartItem && part.Name == wildcard {
				switch v.Kind() {
				case design.ValueList:
					next = append(next, v.Items()...)
				case design.ValueObject:
					for _, k := range v.Keys() {
						f, _ := v.Field(k)
						next = append(next, f)
					}
				default:
					return nil, fmt.Errorf("%s: cannot expand %s", at, v.Kind())
				}
				continue
			}
			step := design.Path{Parts: []design.Part{part}}
			got, err := v.Get(step)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", at, err)
			}
			next = append(next, got)
		}
		current = next
	}
	return current, nil
}
