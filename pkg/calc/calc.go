// Package calc evaluates named calculations that derive values from a design
// instance and from each other. Results are addressed as "@name" paths.
package calc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cgast/veriq/pkg/design"
)

// Func computes a calculation. The instance it receives already resolves
// the "@dep" paths of every declared dependency.
type Func func(inst *design.Instance) (any, error)

// Calculation is a named derived value.
type Calculation struct {
	Name string
	Deps []string
	Func Func
}

// Set holds calculations in declaration order.
type Set struct {
	calcs  []*Calculation
	byName map[string]*Calculation
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{byName: make(map[string]*Calculation)}
}

// Add declares a calculation.
func (s *Set) Add(c *Calculation) error {
	if c == nil || c.Name == "" {
		return fmt.Errorf("calculation must have a name")
	}
	if c.Func == nil {
		return fmt.Errorf("calculation %s has no function", c.Name)
	}
	if _, dup := s.byName[c.Name]; dup {
		return fmt.Errorf("duplicate calculation: %s", c.Name)
	}
	s.calcs = append(s.calcs, c)
	s.byName[c.Name] = c
	return nil
}

// Len returns the number of calculations.
func (s *Set) Len() int { return len(s.calcs) }

// Names returns calculation names in declaration order.
func (s *Set) Names() []string {
	names := make([]string, len(s.calcs))
	for i, c := range s.calcs {
		names[i] = c.Name
	}
	return names
}

// Order returns an evaluation order in which every calculation follows its
// dependencies. Among ready calculations declaration order wins, so the
// order is deterministic.
func (s *Set) Order() ([]string, error) {
	indegree := make(map[string]int, len(s.calcs))
	dependents := make(map[string][]string, len(s.calcs))
	for _, c := range s.calcs {
		for _, d := range c.Deps {
			if _, ok := s.byName[d]; !ok {
				return nil, fmt.Errorf("calculation %s depends on unknown calculation %s", c.Name, d)
			}
			indegree[c.Name]++
			dependents[d] = append(dependents[d], c.Name)
		}
	}

	done := make(map[string]bool, len(s.calcs))
	order := make([]string, 0, len(s.calcs))
	for len(order) < len(s.calcs) {
		progressed := false
		for _, c := range s.calcs {
			if done[c.Name] || indegree[c.Name] > 0 {
				continue
			}
			done[c.Name] = true
			order = append(order, c.Name)
			for _, dep := range dependents[c.Name] {
				indegree[dep]--
			}
			progressed = true
			break
		}
		if !progressed {
			var stuck []string
			for _, c := range s.calcs {
				if !done[c.Name] {
					stuck = append(stuck, c.Name)
				}
			}
			return nil, &CycleError{Names: stuck}
		}
	}
	return order, nil
}

// Results maps calculation names to their outcomes.
type Results map[string]design.Derived

// Failed returns the names of failed calculations, sorted.
func (r Results) Failed() []string {
	var names []string
	for name, d := range r {
		if d.Err != nil {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Evaluate runs every calculation in dependency order. A calculation that
// fails, or depends on one that failed, is recorded with an error; the
// others still run. The returned error is only for an unorderable set.
func (s *Set) Evaluate(inst *design.Instance) (Results, error) {
	order, err := s.Order()
	if err != nil {
		return nil, err
	}

	results := make(Results, len(order))
	for _, name := range order {
		c := s.byName[name]

		var failedDeps []string
		deps := make(map[string]design.Derived, len(c.Deps))
		for _, d := range c.Deps {
			deps[d] = results[d]
			if results[d].Err != nil {
				failedDeps = append(failedDeps, d)
			}
		}
		if len(failedDeps) > 0 {
			results[name] = design.Derived{Err: fmt.Errorf("depends on failed calculation %s", strings.Join(failedDeps, ", "))}
			continue
		}

		value, err := run(c, inst.WithDerived(deps))
		results[name] = design.Derived{Value: value, Err: err}
	}
	return results, nil
}

func run(c *Calculation, inst *design.Instance) (value any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	value, err = c.Func(inst)
	if err != nil {
		return nil, err
	}
	if _, convErr := design.FromGo(value); convErr != nil {
		return nil, fmt.Errorf("result: %w", convErr)
	}
	return value, nil
}

// CycleError is returned when calculations depend on each other in a loop.
// Names lists every calculation that could not be ordered.
type CycleError struct {
	Names []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("calculation cycle among: %s", strings.Join(e.Names, ", "))
}
