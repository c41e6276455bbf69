/*
Package schema defines the declarative types for model definitions.

A model is a named, ordered set of fields. Each field names a type tag that is
resolved against a field type registry when the model class is defined; the
declaration's own settings override whatever the field type contributes.

# Model Definition

A minimal model definition in YAML:

	model: article

	fields:
	  title:   { type: string, required: true, constraints: [{ type: max_length, value: 120 }] }
	  status:  { type: string, values: [draft, published], default: draft }
	  views:   { type: int, default: 0 }
	  secret:  { type: string, internal: true }
	  slug:    string

Field order is preserved: it is the order in which the model validates and
reports invalid fields.

# Field Settings

  - type:        Type tag (string, int, float, bool, id, uuid, or any registered tag)
  - default:     Value used when no initial value is supplied
  - internal:    Excluded from serialized output
  - required:    Empty values (nil or "") are invalid
  - values:      Accepted values
  - constraints: Validation rules (see below)

# Constraints

  - min, max:               Numeric bounds
  - min_length, max_length: String length bounds
  - pattern:                Regular expression match
  - not_empty:              Non-blank string
  - one_of:                 Value must be one of a list

Go callers can additionally set DefaultFunc, Parse, Validate, Equal and
Serialize on a Field to override the field type's behavior.
*/
package schema
