package field

import (
	"context"
	"errors"
	"fmt"

	"github.com/artpar/modelkit/core/schema"
)

// ErrParseNotImplemented is returned when no layer supplies a parse rule.
// It signals a misconfigured field type, not bad input.
var ErrParseNotImplemented = errors.New("parse not implemented")

// Behavior is one configuration layer of a field. Nil members leave the
// decision to the layers below.
type Behavior struct {
	// Default is a constant or a func() any producer.
	Default   any
	Parse     schema.ParseFunc
	Validate  schema.ValidateFunc
	Equal     schema.EqualFunc
	Serialize schema.SerializeFunc
}

// Base is the contract every field starts from: always valid, strict
// equality, serialized as its value, and no parse rule.
var Base = Behavior{
	Parse: func(any) (any, error) {
		return nil, ErrParseNotImplemented
	},
	Validate: func(context.Context, any) bool {
		return true
	},
	Equal:     StrictEqual,
	Serialize: func(v any) any { return v },
}

// Compose merges layers from lowest to highest precedence: a member set on a
// later layer replaces the same member of every earlier layer.
func Compose(layers ...Behavior) Behavior {
	var out Behavior
	for _, l := range layers {
		if l.Default != nil {
			out.Default = l.Default
		}
		if l.Parse != nil {
			out.Parse = l.Parse
		}
		if l.Validate != nil {
			out.Validate = l.Validate
		}
		if l.Equal != nil {
			out.Equal = l.Equal
		}
		if l.Serialize != nil {
			out.Serialize = l.Serialize
		}
	}
	return out
}

// FromSchema turns a field declaration into a behavior layer.
func FromSchema(decl schema.Field) Behavior {
	b := Behavior{
		Parse:     decl.Parse,
		Validate:  decl.Validate,
		Equal:     decl.Equal,
		Serialize: decl.Serialize,
	}
	if !decl.HasDefault() {
		return b
	}
	if decl.DefaultFunc != nil {
		b.Default = decl.DefaultFunc
	} else {
		b.Default = decl.Default
	}
	return b
}

// Descriptor is the composed, instantiable definition of one named field.
type Descriptor struct {
	Name     string
	Type     schema.FieldType
	Internal bool
	Behavior

	decl schema.Field
}

// Describe builds the descriptor for a field from the three layers, in
// precedence order schema > mixin > base.
func Describe(name string, base, mixin Behavior, decl schema.Field) *Descriptor {
	return &Descriptor{
		Name:     name,
		Type:     decl.Type,
		Internal: decl.Internal,
		Behavior: Compose(base, mixin, FromSchema(decl)),
		decl:     decl,
	}
}

// Declaration returns the schema declaration the descriptor was built from.
func (d *Descriptor) Declaration() schema.Field {
	return d.decl
}

// DefaultValue resolves the default, calling it when it is a producer.
func (d *Descriptor) DefaultValue() any {
	switch fn := d.Default.(type) {
	case func() any:
		return fn()
	default:
		return d.Default
	}
}

// Check validates value with the composed rule and the declared constraints.
// Declared constraints always apply on top of the composed rule.
func (d *Descriptor) Check(ctx context.Context, value any) bool {
	if d.Validate != nil && !d.Validate(ctx, value) {
		return false
	}
	if d.decl.HasRules() {
		return len(schema.CheckField(d.Name, d.decl, value)) == 0
	}
	return true
}

// Violations lists the declared constraints value breaks.
func (d *Descriptor) Violations(value any) []schema.ConstraintError {
	return schema.CheckField(d.Name, d.decl, value)
}

func (d *Descriptor) parse(raw any) (any, error) {
	if d.Parse == nil {
		return nil, fmt.Errorf("field %q: %w", d.Name, ErrParseNotImplemented)
	}
	v, err := d.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("field %q: %w", d.Name, err)
	}
	return v, nil
}

func (d *Descriptor) equal(a, b any) bool {
	if d.Equal == nil {
		return StrictEqual(a, b)
	}
	return d.Equal(a, b)
}
