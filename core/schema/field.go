package schema

import "context"

// Field declares one field of a model schema.
//
// The YAML-facing members come from schema files. The function members can only
// be set from Go and override the behavior contributed by the field type.
type Field struct {
	// Type is the field type tag resolved against a field type registry.
	Type FieldType `yaml:"type" json:"type"`

	// Default is the value used when no initial value is supplied.
	Default any `yaml:"default,omitempty" json:"default,omitempty"`

	// Internal fields are excluded from serialized model output.
	Internal bool `yaml:"internal,omitempty" json:"internal,omitempty"`

	// Required fields are invalid when their value is empty.
	Required bool `yaml:"required,omitempty" json:"required,omitempty"`

	// Values lists the accepted values (enum behavior for any type).
	Values []string `yaml:"values,omitempty" json:"values,omitempty"`

	// Description for documentation.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Constraints defines validation rules for this field.
	Constraints []Constraint `yaml:"constraints,omitempty" json:"constraints,omitempty"`

	// DefaultFunc produces the default lazily. Takes precedence over Default.
	DefaultFunc func() any `yaml:"-" json:"-"`

	Parse     ParseFunc     `yaml:"-" json:"-"`
	Validate  ValidateFunc  `yaml:"-" json:"-"`
	Equal     EqualFunc     `yaml:"-" json:"-"`
	Serialize SerializeFunc `yaml:"-" json:"-"`
}

// FieldType is the tag selecting a field type mixin.
type FieldType string

const (
	FieldTypeString FieldType = "string"
	FieldTypeInt    FieldType = "int"
	FieldTypeFloat  FieldType = "float"
	FieldTypeBool   FieldType = "bool"
	FieldTypeID     FieldType = "id"
	FieldTypeUUID   FieldType = "uuid"
)

// ParseFunc converts raw input into a field value.
type ParseFunc func(raw any) (any, error)

// ValidateFunc reports whether a value is valid. It may block; the model runs
// validators of different fields concurrently.
type ValidateFunc func(ctx context.Context, value any) bool

// EqualFunc compares a field value with another value.
type EqualFunc func(value, other any) bool

// SerializeFunc converts a field value into its serializable representation.
type SerializeFunc func(value any) any

// HasDefault reports whether the declaration supplies its own default.
func (f Field) HasDefault() bool {
	return f.DefaultFunc != nil || f.Default != nil
}

// HasRules reports whether the declaration carries validation rules.
func (f Field) HasRules() bool {
	return f.Required || len(f.Values) > 0 || len(f.Constraints) > 0
}
