package schema

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Model is the declarative definition of a model: a name plus its fields in
// declaration order.
type Model struct {
	// Name identifies the model (e.g., "user", "article").
	Name string `yaml:"model"`

	// Fields in declaration order. Order drives validation result ordering.
	Fields Fields `yaml:"fields"`

	// Description for documentation.
	Description string `yaml:"description,omitempty"`
}

// NamedField is a field declaration together with its name.
type NamedField struct {
	Name string
	Field
}

// Fields is an ordered list of field declarations.
type Fields []NamedField

// Lookup returns the declaration for name.
func (fs Fields) Lookup(name string) (Field, bool) {
	for _, f := range fs {
		if f.Name == name {
			return f.Field, true
		}
	}
	return Field{}, false
}

// Names returns the field names in declaration order.
func (fs Fields) Names() []string {
	names := make([]string, len(fs))
	for i, f := range fs {
		names[i] = f.Name
	}
	return names
}

// UnmarshalYAML decodes a YAML mapping while keeping key order.
func (fs *Fields) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}

	out := make(Fields, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, val := node.Content[i], node.Content[i+1]

		var f Field
		// Shorthand: "title: string"
		if val.Kind == yaml.ScalarNode {
			f.Type = FieldType(val.Value)
		} else if err := val.Decode(&f); err != nil {
			return fmt.Errorf("field %q: %w", key.Value, err)
		}
		out = append(out, NamedField{Name: key.Value, Field: f})
	}

	*fs = out
	return nil
}

// MarshalYAML encodes the fields as an ordered mapping.
func (fs Fields) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fs {
		var val yaml.Node
		if err := val.Encode(f.Field); err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name, err)
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&val,
		)
	}
	return node, nil
}
