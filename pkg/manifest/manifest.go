// Package manifest loads veriq project files: YAML documents that declare
// design models, calculations and a requirements tree for the CLI.
package manifest

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cgast/veriq/pkg/requirement"
)

// APIVersion and Kind identify a manifest document.
const (
	APIVersion = "veriq/v1"
	Kind       = "Project"
)

// Manifest is a parsed project file.
type Manifest struct {
	APIVersion   string         `yaml:"apiVersion" json:"apiVersion"`
	Kind         string         `yaml:"kind" json:"kind"`
	Meta         Meta           `yaml:"meta" json:"meta"`
	Root         string         `yaml:"root" json:"root"`
	Models       []ModelDef     `yaml:"models" json:"models"`
	Calculations []CalcDef      `yaml:"calculations" json:"calculations"`
	Requirements RequirementDef `yaml:"requirements" json:"requirements"`
	Params       []ParamDef     `yaml:"params" json:"params"`
}

// Meta contains metadata about the project.
type Meta struct {
	Name        string   `yaml:"name" json:"name"`
	Description string   `yaml:"description" json:"description"`
	Author      string   `yaml:"author" json:"author"`
	Tags        []string `yaml:"tags" json:"tags"`
}

// ModelDef declares a design model type.
type ModelDef struct {
	Name   string     `yaml:"name" json:"name"`
	Fields []FieldDef `yaml:"fields" json:"fields"`
}

// FieldDef declares one field with a type expression such as "number",
// "list<CellSpec>", "optional<string>" or "table<nominal|safe, number>".
type FieldDef struct {
	Name string `yaml:"name" json:"name"`
	Type string `yaml:"type" json:"type"`
}

// CalcDef declares a calculation over design paths and other calculations.
type CalcDef struct {
	Name string   `yaml:"name" json:"name"`
	Op   string   `yaml:"op" json:"op"`     // "sum", "product", "min", "max", "mean", "count", "difference", "ratio"
	Args []string `yaml:"args" json:"args"` // paths; "[*]" expands lists
}

// RequirementDef declares a requirement. A leaf carries Check or Checks; an
// aggregator carries Children.
type RequirementDef struct {
	ID          string              `yaml:"id" json:"id"`
	Description string              `yaml:"description" json:"description"`
	Check       *requirement.Check  `yaml:"check" json:"check,omitempty"`
	Checks      []requirement.Check `yaml:"checks" json:"checks,omitempty"`
	Children    []RequirementDef    `yaml:"children" json:"children,omitempty"`
}

// AllChecks returns Check followed by Checks.
func (r RequirementDef) AllChecks() []requirement.Check {
	var out []requirement.Check
	if r.Check != nil {
		out = append(out, *r.Check)
	}
	return append(out, r.Checks...)
}

// ParamDef defines a parameter substituted into "{{name}}" placeholders.
type ParamDef struct {
	Name        string `yaml:"name" json:"name"`
	Type        string `yaml:"type" json:"type"`
	Default     any    `yaml:"default" json:"default"`
	Description string `yaml:"description" json:"description"`
}

// Load reads a manifest file. Placeholders like {{date}} and {{param}} are
// interpolated from params, falling back to the declared defaults.
func Load(path string, params map[string]string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	m, err := Parse(data, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}

// Parse parses manifest YAML with placeholder interpolation.
func Parse(data []byte, params map[string]string) (*Manifest, error) {
	// First pass: only the param defaults are needed.
	var raw struct {
		Params []ParamDef `yaml:"params"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	vars := buildVarMap(raw.Params, params)
	interpolated := interpolateVars(string(data), vars)

	var m Manifest
	dec := yaml.NewDecoder(strings.NewReader(interpolated))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse interpolated manifest: %w", err)
	}
	return &m, nil
}

// buildVarMap creates a variable map from param defaults and runtime overrides.
// Built-in variables like {{date}} are always available.
func buildVarMap(paramDefs []ParamDef, overrides map[string]string) map[string]string {
	vars := make(map[string]string)

	now := time.Now()
	vars["date"] = now.Format("2006-01-02")
	vars["datetime"] = now.Format("2006-01-02T15:04:05")
	vars["year"] = now.Format("2006")

	for _, p := range paramDefs {
		if p.Default != nil {
			vars[p.Name] = fmt.Sprintf("%v", p.Default)
		}
	}
	for k, v := range overrides {
		vars[k] = v
	}
	return vars
}

// templatePattern matches {{var_name}} patterns.
var templatePattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_]*)\s*\}\}`)

// interpolateVars replaces {{var_name}} patterns with values from the var map.
// Unknown names are left in place.
func interpolateVars(s string, vars map[string]string) string {
	return templatePattern.ReplaceAllStringFunc(s, func(match string) string {
		name := templatePattern.FindStringSubmatch(match)[1]
		if val, ok := vars[name]; ok {
			return val
		}
		return match
	})
}

// Unresolved returns the placeholder names left in s after interpolation.
func Unresolved(s string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range templatePattern.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}
