package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// JSONSchemaDialect is the $schema URI written on emitted documents.
const JSONSchemaDialect = "https://json-schema.org/draft/2020-12/schema"

// Document is an ordered JSON object. Keys keep insertion order when
// marshaled to JSON or YAML so emitted schemas list fields in declaration
// order and diff cleanly.
type Document struct {
	members []member
}

type member struct {
	key   string
	value any
}

// Set appends a key. Setting an existing key replaces its value in place.
func (d *Document) Set(key string, value any) {
	for i := range d.members {
		if d.members[i].key == key {
			d.members[i].value = value
			return
		}
	}
	d.members = append(d.members, member{key: key, value: value})
}

// Get returns the value stored under key.
func (d *Document) Get(key string) (any, bool) {
	for _, m := range d.members {
		if m.key == key {
			return m.value, true
		}
	}
	return nil, false
}

// Keys returns the keys in insertion order.
func (d *Document) Keys() []string {
	keys := make([]string, len(d.members))
	for i, m := range d.members {
		keys[i] = m.key
	}
	return keys
}

// MarshalJSON implements json.Marshaler.
func (d *Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range d.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(m.key)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(m.value)
		if err != nil {
			return nil, fmt.Errorf("marshal %q: %w", m.key, err)
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// MarshalYAML implements yaml.Marshaler with an ordered mapping node.
func (d *Document) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, m := range d.members {
		key := &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: m.key}
		val := &yaml.Node{}
		if err := val.Encode(m.value); err != nil {
			return nil, fmt.Errorf("encode %q: %w", m.key, err)
		}
		node.Content = append(node.Content, key, val)
	}
	return node, nil
}

// JSONSchema renders the schema as a JSON Schema document.
func (s *Schema) JSONSchema() *Document {
	doc := &Document{}
	doc.Set("$schema", JSONSchemaDialect)
	for _, m := range objectDocument(s).members {
		doc.Set(m.key, m.value)
	}
	return doc
}

// MarshalIndentJSON is a convenience for writing schema files.
func (s *Schema) MarshalIndentJSON() ([]byte, error) {
	raw, err := json.Marshal(s.JSONSchema())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// MarshalYAMLDocument renders the JSON Schema document as YAML.
func (s *Schema) MarshalYAMLDocument() ([]byte, error) {
	return yaml.Marshal(s.JSONSchema())
}

func objectDocument(s *Schema) *Document {
	doc := &Document{}
	doc.Set("title", s.Model)
	doc.Set("type", "object")

	props := &Document{}
	required := make([]string, 0, len(s.Fields))
	for _, f := range s.Fields {
		props.Set(f.Name, nodeDocument(f.Node))
		if f.Required {
			required = append(required, f.Name)
		}
	}
	doc.Set("properties", props)
	doc.Set("required", required)
	doc.Set("additionalProperties", false)
	return doc
}

func nodeDocument(n Node) *Document {
	switch n.Kind {
	case KindObject:
		return objectDocument(n.Object)
	case KindList:
		doc := &Document{}
		doc.Set("type", "array")
		doc.Set("items", nodeDocument(*n.Elem))
		return doc
	case KindOptional:
		null := &Document{}
		null.Set("type", "null")
		doc := &Document{}
		doc.Set("anyOf", []*Document{nodeDocument(*n.Elem), null})
		return doc
	case KindTable:
		props := &Document{}
		for _, k := range n.Keys {
			props.Set(k, nodeDocument(*n.Elem))
		}
		doc := &Document{}
		doc.Set("type", "object")
		doc.Set("properties", props)
		doc.Set("required", append([]string(nil), n.Keys...))
		doc.Set("additionalProperties", false)
		return doc
	default:
		doc := &Document{}
		doc.Set("type", string(n.Kind))
		return doc
	}
}
