package schema

import (
	"fmt"

	"github.com/cgast/veriq/pkg/model"
)

// Derive builds the schema of the named model by walking its fields depth
// first in declaration order. Nested models are resolved through reg and
// embedded in full. A model that reappears on its own recursion path yields
// a *SchemaCycleError.
func Derive(reg *model.Registry, name string) (*Schema, error) {
	d := &deriver{
		reg:    reg,
		onPath: make(map[string]bool),
	}
	return d.object(name)
}

type deriver struct {
	reg    *model.Registry
	path   []string
	onPath map[string]bool
}

func (d *deriver) object(name string) (*Schema, error) {
	if d.onPath[name] {
		cycle := append(append([]string(nil), d.path...), name)
		return nil, &SchemaCycleError{Path: cycle}
	}

	t, err := d.reg.Lookup(name)
	if err != nil {
		return nil, err
	}

	d.onPath[name] = true
	d.path = append(d.path, name)
	defer func() {
		d.path = d.path[:len(d.path)-1]
		delete(d.onPath, name)
	}()

	fields := t.Fields()
	s := &Schema{
		Model:  name,
		Fields: make([]Field, 0, len(fields)),
	}
	for _, f := range fields {
		node, err := d.node(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("%s.%s: %w", name, f.Name, err)
		}
		s.Fields = append(s.Fields, Field{
			Name:     f.Name,
			Required: f.Required(),
			Node:     node,
		})
	}
	return s, nil
}

func (d *deriver) node(k model.Kind) (Node, error) {
	switch k := k.(type) {
	case model.Primitive:
		switch k.Type {
		case model.TypeString:
			return Node{Kind: KindString}, nil
		case model.TypeNumber:
			return Node{Kind: KindNumber}, nil
		case model.TypeBoolean:
			return Node{Kind: KindBoolean}, nil
		default:
			return Node{}, fmt.Errorf("unsupported primitive type %q", k.Type)
		}
	case model.Nested:
		obj, err := d.object(k.Model)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindObject, Object: obj}, nil
	case model.Sequence:
		elem, err := d.node(k.Elem)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindList, Elem: &elem}, nil
	case model.Optional:
		elem, err := d.node(k.Elem)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindOptional, Elem: &elem}, nil
	case model.Table:
		if len(k.Keys) == 0 {
			return Node{}, fmt.Errorf("table requires at least one key")
		}
		seen := make(map[string]bool, len(k.Keys))
		for _, key := range k.Keys {
			if seen[key] {
				return Node{}, fmt.Errorf("table key %q declared twice", key)
			}
			seen[key] = true
		}
		elem, err := d.node(k.Elem)
		if err != nil {
			return Node{}, err
		}
		return Node{Kind: KindTable, Keys: append([]string(nil), k.Keys...), Elem: &elem}, nil
	default:
		return Node{}, fmt.Errorf("unsupported kind %T", k)
	}
}
