package manifest

import (
	"fmt"
	"strings"

	"github.com/cgast/veriq/pkg/design"
	"github.com/cgast/veriq/pkg/model"
	"github.com/cgast/veriq/pkg/requirement"
)

// ValidationError represents a single validation failure.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationResult holds all validation errors for a manifest.
type ValidationResult struct {
	Errors []ValidationError
}

// Valid returns true if no validation errors were found.
func (r ValidationResult) Valid() bool {
	return len(r.Errors) == 0
}

// Error returns a combined error message from all validation errors.
func (r ValidationResult) Error() string {
	if r.Valid() {
		return ""
	}
	msgs := make([]string, len(r.Errors))
	for i, e := range r.Errors {
		msgs[i] = e.Error()
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(msgs, "; "))
}

func (r *ValidationResult) add(field, format string, args ...any) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks a manifest for required fields and structural correctness.
// Check types are resolved against checks; nil means the default checks.
func Validate(m *Manifest, checks *requirement.Checks) ValidationResult {
	if checks == nil {
		checks = requirement.DefaultChecks()
	}
	var result ValidationResult

	if m.APIVersion == "" {
		result.add("apiVersion", "required")
	} else if m.APIVersion != APIVersion {
		result.add("apiVersion", "unsupported version %q (expected %s)", m.APIVersion, APIVersion)
	}
	if m.Kind == "" {
		result.add("kind", "required")
	} else if m.Kind != Kind {
		result.add("kind", "unsupported kind %q (expected %s)", m.Kind, Kind)
	}
	if m.Meta.Name == "" {
		result.add("meta.name", "required")
	}

	models := validateModels(m.Models, &result)
	if m.Root == "" {
		result.add("root", "required")
	} else if !models[m.Root] {
		result.add("root", "unknown model %q", m.Root)
	}

	calcs := validateCalculations(m.Calculations, &result)
	ids := make(map[string]bool)
	validateRequirement(m.Requirements, "requirements", checks, calcs, ids, &result)

	paramNames := make(map[string]bool)
	for i, p := range m.Params {
		field := fmt.Sprintf("params[%d].name", i)
		switch {
		case p.Name == "":
			result.add(field, "required")
		case paramNames[p.Name]:
			result.add(field, "duplicate param name %q", p.Name)
		default:
			paramNames[p.Name] = true
		}
	}

	return result
}

func validateModels(defs []ModelDef, result *ValidationResult) map[string]bool {
	declared := make(map[string]bool)
	for i, d := range defs {
		field := fmt.Sprintf("models[%d].name", i)
		switch {
		case d.Name == "":
			result.add(field, "required")
		case !isIdent(d.Name):
			result.add(field, "invalid model name %q", d.Name)
		case declared[d.Name]:
			result.add(field, "duplicate model %q", d.Name)
		default:
			declared[d.Name] = true
		}
	}

	for i, d := range defs {
		fields := make(map[string]bool)
		for j, f := range d.Fields {
			prefix := fmt.Sprintf("models[%d].fields[%d]", i, j)
			if f.Name == "" {
				result.add(prefix+".name", "required")
			} else if fields[f.Name] {
				result.add(prefix+".name", "duplicate field %q", f.Name)
			}
			fields[f.Name] = true

			k, err := ParseKind(f.Type)
			if err != nil {
				result.add(prefix+".type", "%v", err)
				continue
			}
			for _, ref := range refs(k) {
				if !declared[ref] {
					result.add(prefix+".type", "unknown model %q", ref)
				}
			}
		}
	}
	return declared
}

// refs returns the model names a kind refers to.
func refs(k model.Kind) []string {
	switch k := k.(type) {
	case model.Nested:
		return []string{k.Model}
	case model.Sequence:
		return refs(k.Elem)
	case model.Optional:
		return refs(k.Elem)
	case model.Table:
		return refs(k.Elem)
	default:
		return nil
	}
}

func validateCalculations(defs []CalcDef, result *ValidationResult) map[string]bool {
	declared := make(map[string]bool)
	for i, d := range defs {
		field := fmt.Sprintf("calculations[%d]", i)
		if d.Name == "" {
			result.add(field+".name", "required")
		} else if declared[d.Name] {
			result.add(field+".name", "duplicate calculation %q", d.Name)
		}
		declared[d.Name] = true
	}

	for i, d := range defs {
		field := fmt.Sprintf("calculations[%d]", i)
		c, err := compileCalc(d)
		if err != nil {
			result.add(field, "%v", err)
			continue
		}
		for _, dep := range c.Deps {
			if !declared[dep] {
				result.add(field+".args", "unknown calculation %q", dep)
			}
		}
	}
	return declared
}

func validateRequirement(r RequirementDef, field string, checks *requirement.Checks, calcs, ids map[string]bool, result *ValidationResult) {
	switch {
	case r.ID == "":
		result.add(field+".id", "required")
	case ids[r.ID]:
		result.add(field+".id", "duplicate requirement id %q", r.ID)
	default:
		ids[r.ID] = true
	}

	all := r.AllChecks()
	switch {
	case len(all) > 0 && len(r.Children) > 0:
		result.add(field, "requirement %q has both checks and children", r.ID)
	case len(all) == 0 && len(r.Children) == 0:
		result.add(field, "requirement %q has neither checks nor children", r.ID)
	}

	for i, c := range all {
		cf := fmt.Sprintf("%s.checks[%d]", field, i)
		if _, err := checks.Compile(c); err != nil {
			result.add(cf, "%v", err)
			continue
		}
		if p, err := design.ParsePath(c.Target); err == nil && p.IsDerived() && !calcs[p.Calculation()] {
			result.add(cf+".target", "unknown calculation %q", p.Calculation())
		}
		if s, ok := c.Expected.(string); ok {
			if names := Unresolved(s); len(names) > 0 {
				result.add(cf+".expected", "unresolved placeholder %s", strings.Join(names, ", "))
			}
		}
	}

	for i, child := range r.Children {
		validateRequirement(child, fmt.Sprintf("%s.children[%d]", field, i), checks, calcs, ids, result)
	}
}
