package manifest

import (
	"fmt"
	"strings"

	"github.com/cgast/veriq/pkg/model"
)

// ParseKind parses a field type expression:
//
//	string | number | boolean
//	list<T> | optional<T> | table<k1|k2, T>
//	ModelName
func ParseKind(expr string) (model.Kind, error) {
	s := strings.TrimSpace(expr)
	switch s {
	case "":
		return nil, fmt.Errorf("empty type")
	case string(model.TypeString):
		return model.String(), nil
	case string(model.TypeNumber):
		return model.Number(), nil
	case string(model.TypeBoolean):
		return model.Boolean(), nil
	}

	if name, inner, ok := generic(s); ok {
		switch name {
		case "list":
			elem, err := ParseKind(inner)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s, err)
			}
			return model.ListOf(elem), nil
		case "optional":
			elem, err := ParseKind(inner)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", s, err)
			}
			if _, nested := elem.(model.Optional); nested {
				return nil, fmt.Errorf("%s: optional of optional", s)
			}
			return model.OptionalOf(elem), nil
		case "table":
			return parseTable(s, inner)
		default:
			return nil, fmt.Errorf("unknown type constructor %q", name)
		}
	}

	if !isIdent(s) {
		return nil, fmt.Errorf("invalid type %q", s)
	}
	return model.Ref(s), nil
}

func parseTable(s, inner string) (model.Kind, error) {
	comma := topLevelComma(inner)
	if comma < 0 {
		return nil, fmt.Errorf("%s: expected table<keys, type>", s)
	}
	var keys []string
	seen := make(map[string]bool)
	for _, k := range strings.Split(inner[:comma], "|") {
		k = strings.TrimSpace(k)
		if !isIdent(k) {
			return nil, fmt.Errorf("%s: invalid table key %q", s, k)
		}
		if seen[k] {
			return nil, fmt.Errorf("%s: duplicate table key %q", s, k)
		}
		seen[k] = true
		keys = append(keys, k)
	}
	elem, err := ParseKind(inner[comma+1:])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s, err)
	}
	return model.TableOf(keys, elem), nil
}

// generic splits "name<inner>".
func generic(s string) (name, inner string, ok bool) {
	open := strings.IndexByte(s, '<')
	if open <= 0 || !strings.HasSuffix(s, ">") {
		return "", "", false
	}
	return strings.TrimSpace(s[:open]), s[open+1 : len(s)-1], true
}

func topLevelComma(s string) int {
	depth := 0
	for i, r := range s {
		switch r {
		case '<':
			depth++
		case '>':
			depth--
		case ',':
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func isIdent(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}
