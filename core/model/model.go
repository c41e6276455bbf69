// Package model assembles fields into observable records.
//
// A Class is built once from a schema and a field type registry; each field is
// composed from the base field contract, the mixin registered for its type tag
// and the schema declaration, in increasing precedence. Models created from the
// class track changes against a committed baseline, validate all fields
// concurrently and publish debounced change events.
//
// A Model is not safe for concurrent use. Its fields are mutated only through
// the calling goroutine; validators run on their own goroutines against a
// snapshot of the values taken when validation starts.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/artpar/modelkit/core/events"
	"github.com/artpar/modelkit/core/field"
	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/scheduler"
	"github.com/artpar/modelkit/core/schema"
	"github.com/rs/zerolog"
)

// ErrUnknownField is returned when a model is asked for an undeclared field.
var ErrUnknownField = errors.New("unknown field")

// Class is a reusable model definition with every field type resolved.
type Class struct {
	schema schema.Model
	descs  []*field.Descriptor
	opts   []Option
}

// Define resolves the field types of s against types. It fails on the first
// unregistered type tag.
func Define(s schema.Model, types *fieldtype.Registry, opts ...Option) (*Class, error) {
	if types == nil {
		return nil, errors.New("field type registry is required")
	}

	descs := make([]*field.Descriptor, 0, len(s.Fields))
	for _, f := range s.Fields {
		mixin, err := types.Resolve(f.Type)
		if err != nil {
			return nil, fmt.Errorf("model %q: field %q: %w", s.Name, f.Name, err)
		}
		descs = append(descs, field.Describe(f.Name, field.Base, mixin, f.Field))
	}

	return &Class{schema: s, descs: descs, opts: opts}, nil
}

// New defines a class for s and instantiates it with data.
func New(s schema.Model, types *fieldtype.Registry, data map[string]any, opts ...Option) (*Model, error) {
	c, err := Define(s, types, opts...)
	if err != nil {
		return nil, err
	}
	return c.New(data)
}

// Name returns the model name.
func (c *Class) Name() string { return c.schema.Name }

// Schema returns the schema the class was defined from.
func (c *Class) Schema() schema.Model { return c.schema }

// Descriptors returns the composed field definitions in declaration order.
func (c *Class) Descriptors() []*field.Descriptor {
	out := make([]*field.Descriptor, len(c.descs))
	copy(out, c.descs)
	return out
}

// New instantiates the class. Fields present in data start from that value,
// the others from their default; unknown keys are ignored. Instance options
// are applied after the class options.
func (c *Class) New(data map[string]any, opts ...Option) (*Model, error) {
	o := defaultOptions()
	for _, opt := range c.opts {
		opt(&o)
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.sched == nil {
		o.sched = scheduler.NewQueue()
	}

	m := &Model{
		class:    c,
		byName:   make(map[string]*field.Field, len(c.descs)),
		emitter:  events.NewEmitter(o.logger),
		sched:    o.sched,
		logger:   o.logger.With().Str("model", c.schema.Name).Logger(),
		observer: o.observer,
	}

	m.fields = make([]*field.Field, 0, len(c.descs))
	for _, d := range c.descs {
		raw, present := data[d.Name]
		f, err := field.New(d, m, o.sched, raw, present)
		if err != nil {
			return nil, fmt.Errorf("model %q: %w", c.schema.Name, err)
		}
		m.fields = append(m.fields, f)
		m.byName[d.Name] = f
	}

	return m, nil
}

// Model is a record of named fields.
type Model struct {
	class    *Class
	fields   []*field.Field
	byName   map[string]*field.Field
	emitter  *events.Emitter
	sched    scheduler.Scheduler
	logger   zerolog.Logger
	observer Observer
}

// Name returns the model name.
func (m *Model) Name() string { return m.class.schema.Name }

// Class returns the class the model was created from.
func (m *Model) Class() *Class { return m.class }

// Fields returns the fields in declaration order.
func (m *Model) Fields() []*field.Field {
	out := make([]*field.Field, len(m.fields))
	copy(out, m.fields)
	return out
}

// Field returns the named field.
func (m *Model) Field(name string) (*field.Field, bool) {
	f, ok := m.byName[name]
	return f, ok
}

// Get returns the value of the named field.
func (m *Model) Get(name string) (any, error) {
	f, ok := m.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownField, name)
	}
	return f.Get(), nil
}

// MustGet is Get for callers that treat an unknown name as a programming
// error. It panics instead of returning ErrUnknownField.
func (m *Model) MustGet(name string) any {
	v, err := m.Get(name)
	if err != nil {
		panic(err)
	}
	return v
}

// Set assigns value to the named field. It reports false, without error,
// when the model has no such field.
func (m *Model) Set(name string, value any) (bool, error) {
	f, ok := m.byName[name]
	if !ok {
		return false, nil
	}
	return true, f.Set(value)
}

// SetAll assigns every known key of data, in field declaration order. Unknown
// keys are dropped. A parse failure on one field does not stop the others;
// all failures are returned joined.
func (m *Model) SetAll(data map[string]any) error {
	var errs []error
	for _, f := range m.fields {
		v, ok := data[f.Name()]
		if !ok {
			continue
		}
		if err := f.Set(v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsChanged reports whether any field differs from its committed value.
func (m *Model) IsChanged() bool {
	for _, f := range m.fields {
		if f.IsChanged() {
			return true
		}
	}
	return false
}

// Commit makes every current value the new baseline.
func (m *Model) Commit() {
	for _, f := range m.fields {
		f.Commit()
	}
}

// Revert restores every field to its baseline. Each reverted field sends its
// own change notification.
func (m *Model) Revert() {
	for _, f := range m.fields {
		f.Revert()
	}
}

// ToJSON returns the serialized values of all non-internal fields.
func (m *Model) ToJSON() map[string]any {
	out := make(map[string]any, len(m.fields))
	for _, f := range m.fields {
		if f.Internal() {
			continue
		}
		out[f.Name()] = f.ToJSON()
	}
	return out
}

// MarshalJSON encodes ToJSON with keys in declaration order.
func (m *Model) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	for _, f := range m.fields {
		if f.Internal() {
			continue
		}
		key, err := json.Marshal(f.Name())
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.ToJSON())
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", f.Name(), err)
		}
		if !first {
			buf.WriteByte(',')
		}
		first = false
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Baseline returns the serialized committed value of every field, internal
// ones included. It is what a persistence layer stores.
func (m *Model) Baseline() map[string]any {
	return m.serializeAll((*field.Field).Committed)
}

// Values returns the serialized current value of every field, internal ones
// included. It is what Baseline will return after the next Commit.
func (m *Model) Values() map[string]any {
	return m.serializeAll((*field.Field).Get)
}

func (m *Model) serializeAll(value func(*field.Field) any) map[string]any {
	out := make(map[string]any, len(m.fields))
	for _, f := range m.fields {
		v := value(f)
		if s := f.Descriptor().Serialize; s != nil {
			v = s(v)
		}
		out[f.Name()] = v
	}
	return out
}

// Flush drains one quantum of the model's scheduler when it is a queue. A
// queue shared between models is drained for all of them. It returns the
// number of deferred tasks that ran.
func (m *Model) Flush() int {
	if q, ok := m.sched.(interface{ Flush() int }); ok {
		return q.Flush()
	}
	return 0
}

// Dispose cancels pending change notifications.
func (m *Model) Dispose() {
	for _, f := range m.fields {
		f.Dispose()
	}
}
