package design

import (
	"fmt"
	"strconv"
	"strings"
)

// RootModel is the root of paths into the design model. Calculation results
// are addressed with "@name" roots instead.
const RootModel = "$"

// PartKind distinguishes attribute access from item access.
type PartKind int

const (
	PartAttr PartKind = iota // .name
	PartItem                 // [key] or [index]
)

// Part is one step of a Path.
type Part struct {
	Kind PartKind
	Name string
}

// Path addresses a value inside a design instance, e.g. "$.cells[0].voltage"
// or "@bandwidth.peak".
type Path struct {
	Root  string
	Parts []Part
}

// RootPath returns the path of the design model root.
func RootPath() Path { return Path{Root: RootModel} }

// Attr returns a new path extended by an attribute access.
func (p Path) Attr(name string) Path { return p.with(Part{Kind: PartAttr, Name: name}) }

// Item returns a new path extended by a keyed item access.
func (p Path) Item(key string) Path { return p.with(Part{Kind: PartItem, Name: key}) }

// Index returns a new path extended by a list index.
func (p Path) Index(i int) Path { return p.Item(strconv.Itoa(i)) }

func (p Path) with(part Part) Path {
	parts := make([]Part, len(p.Parts), len(p.Parts)+1)
	copy(parts, p.Parts)
	return Path{Root: p.Root, Parts: append(parts, part)}
}

// IsDerived reports whether the path addresses a calculation result.
func (p Path) IsDerived() bool { return strings.HasPrefix(p.Root, "@") }

// Calculation returns the calculation name of a derived path.
func (p Path) Calculation() string { return strings.TrimPrefix(p.Root, "@") }

func (p Path) String() string {
	var b strings.Builder
	b.WriteString(p.Root)
	for _, part := range p.Parts {
		switch part.Kind {
		case PartAttr:
			if quotedAttr(part.Name) {
				b.WriteByte('[')
				b.WriteString(strconv.Quote(part.Name))
				b.WriteByte(']')
				continue
			}
			b.WriteByte('.')
			b.WriteString(part.Name)
		case PartItem:
			b.WriteByte('[')
			b.WriteString(part.Name)
			b.WriteByte(']')
		}
	}
	return b.String()
}

// quotedAttr reports whether an attribute name must be written as ["name"]
// to survive a round trip through ParsePath.
func quotedAttr(name string) bool {
	return name == "" || strings.ContainsAny(name, ".[]\"' \t\r\n")
}

// ParsePath parses "$.a.b[0][key]" or "@calc.field" into a Path. An
// attribute whose name is not a plain word is written ["a.b"].
func ParsePath(s string) (Path, error) {
	s = strings.TrimSpace(s)
	var p Path
	i := 0
	switch {
	case strings.HasPrefix(s, RootModel):
		p.Root = RootModel
		i = 1
	case strings.HasPrefix(s, "@"):
		i = 1
		for i < len(s) && s[i] != '.' && s[i] != '[' {
			i++
		}
		if i == 1 {
			return Path{}, fmt.Errorf("path %q: empty calculation name", s)
		}
		p.Root = s[:i]
	default:
		return Path{}, fmt.Errorf("path %q: must start with '$' or '@'", s)
	}

	for i < len(s) {
		switch s[i] {
		case '.':
			i++
			start := i
			for i < len(s) && s[i] != '.' && s[i] != '[' {
				i++
			}
			if i == start {
				return Path{}, fmt.Errorf("path %q: empty attribute at position %d", s, start)
			}
			p.Parts = append(p.Parts, Part{Kind: PartAttr, Name: s[start:i]})
		case '[':
			i++
			if i < len(s) && s[i] == '"' {
				quoted, err := strconv.QuotedPrefix(s[i:])
				if err != nil {
					return Path{}, fmt.Errorf("path %q: bad quoted attribute at position %d", s, i)
				}
				name, _ := strconv.Unquote(quoted)
				i += len(quoted)
				if i >= len(s) || s[i] != ']' {
					return Path{}, fmt.Errorf("path %q: expected ']' at position %d", s, i)
				}
				p.Parts = append(p.Parts, Part{Kind: PartAttr, Name: name})
				i++
				continue
			}
			start := i
			for i < len(s) && s[i] != ']' {
				i++
			}
			if i >= len(s) {
				return Path{}, fmt.Errorf("path %q: unterminated '['", s)
			}
			key := strings.TrimSpace(s[start:i])
			if key == "" {
				return Path{}, fmt.Errorf("path %q: empty item at position %d", s, start)
			}
			p.Parts = append(p.Parts, Part{Kind: PartItem, Name: key})
			i++
		default:
			return Path{}, fmt.Errorf("path %q: unexpected character %q at position %d", s, s[i], i)
		}
	}
	return p, nil
}

// MustParsePath is like ParsePath but panics on error.
func MustParsePath(s string) Path {
	p, err := ParsePath(s)
	if err != nil {
		panic(err)
	}
	return p
}
