// Package fieldtype maps field type tags to reusable behavior mixins.
//
// A Registry is an ordinary value created at startup and handed to model
// definitions, so tests and applications can each use their own set of types.
package fieldtype

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/artpar/modelkit/core/field"
	"github.com/artpar/modelkit/core/schema"
)

// ErrUnknownType is returned when a tag has no registered mixin.
var ErrUnknownType = errors.New("unknown field type")

// Mixin is the behavior a field type contributes.
type Mixin = field.Behavior

// Registry manages field type mixins.
type Registry struct {
	mu     sync.RWMutex
	mixins map[schema.FieldType]Mixin
}

// NewRegistry creates a registry holding the string type.
func NewRegistry() *Registry {
	r := &Registry{mixins: make(map[schema.FieldType]Mixin)}
	r.mixins[schema.FieldTypeString] = String
	return r
}

// Register adds a mixin under tag.
// Returns an error if the tag is already taken.
func (r *Registry) Register(tag schema.FieldType, m Mixin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if tag == "" {
		return errors.New("field type tag is required")
	}
	if _, exists := r.mixins[tag]; exists {
		return fmt.Errorf("field type %q already registered", tag)
	}

	r.mixins[tag] = m
	return nil
}

// MustRegister is Register that panics on error, for use during setup.
func (r *Registry) MustRegister(tag schema.FieldType, m Mixin) {
	if err := r.Register(tag, m); err != nil {
		panic(err)
	}
}

// Lookup returns the mixin for tag.
func (r *Registry) Lookup(tag schema.FieldType) (Mixin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.mixins[tag]
	return m, ok
}

// Resolve returns the mixin for tag or ErrUnknownType.
func (r *Registry) Resolve(tag schema.FieldType) (Mixin, error) {
	m, ok := r.Lookup(tag)
	if !ok {
		return Mixin{}, fmt.Errorf("%w %q", ErrUnknownType, tag)
	}
	return m, nil
}

// Tags returns the registered tags, sorted.
func (r *Registry) Tags() []schema.FieldType {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tags := make([]schema.FieldType, 0, len(r.mixins))
	for t := range r.mixins {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}

// Check reports every field of m whose type is not registered.
func (r *Registry) Check(m schema.Model) error {
	var errs []error
	for _, f := range m.Fields {
		if _, ok := r.Lookup(f.Type); !ok {
			errs = append(errs, fmt.Errorf("field %q: %w %q", f.Name, ErrUnknownType, f.Type))
		}
	}
	return errors.Join(errs...)
}
