// Package registry manages the catalog of model classes by name.
// It resolves every schema against one field type registry and rejects
// duplicate model names.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/artpar/modelkit/core/fieldtype"
	"github.com/artpar/modelkit/core/model"
	"github.com/artpar/modelkit/core/schema"
)

// ErrNotRegistered is returned when a model name is unknown.
var ErrNotRegistered = errors.New("model not registered")

// Registry manages registered model classes.
type Registry struct {
	mu sync.RWMutex

	types   *fieldtype.Registry
	opts    []model.Option
	classes map[string]*model.Class
}

// New creates a registry that defines classes against types. The options are
// passed to every class it defines.
func New(types *fieldtype.Registry, opts ...model.Option) *Registry {
	return &Registry{
		types:   types,
		opts:    opts,
		classes: make(map[string]*model.Class),
	}
}

// Types returns the field type registry classes are defined against.
func (r *Registry) Types() *fieldtype.Registry {
	return r.types
}

// Register defines and registers a class for s.
// Returns an error if the name is taken or a field type is unknown.
func (r *Registry) Register(s schema.Model) (*model.Class, error) {
	c, err := model.Define(s, r.types, r.opts...)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[s.Name]; exists {
		return nil, fmt.Errorf("model %q already registered", s.Name)
	}
	r.classes[s.Name] = c
	return c, nil
}

// Replace swaps the whole catalog for classes defined from schemas. Nothing
// changes unless every schema defines cleanly and names are unique. Models
// already created keep the class they were created from.
func (r *Registry) Replace(schemas []schema.Model) error {
	next := make(map[string]*model.Class, len(schemas))
	var dups []string
	var errs []error

	for _, s := range schemas {
		if _, exists := next[s.Name]; exists {
			dups = append(dups, s.Name)
			continue
		}
		c, err := model.Define(s, r.types, r.opts...)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		next[s.Name] = c
	}

	if len(dups) > 0 {
		errs = append(errs, &DuplicateError{Names: dups})
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	r.mu.Lock()
	r.classes = next
	r.mu.Unlock()
	return nil
}

// Unregister removes a class from the registry.
func (r *Registry) Unregister(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.classes[name]; !exists {
		return fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	delete(r.classes, name)
	return nil
}

// Get returns a registered class by name.
func (r *Registry) Get(name string) (*model.Class, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.classes[name]
	return c, ok
}

// Lookup returns a registered class or ErrNotRegistered.
func (r *Registry) Lookup(name string) (*model.Class, error) {
	c, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotRegistered, name)
	}
	return c, nil
}

// List returns all registered classes sorted by name.
func (r *Registry) List() []*model.Class {
	r.mu.RLock()
	defer r.mu.RUnlock()

	classes := make([]*model.Class, 0, len(r.classes))
	for _, c := range r.classes {
		classes = append(classes, c)
	}

	sort.Slice(classes, func(i, j int) bool {
		return classes[i].Name() < classes[j].Name()
	})

	return classes
}

// DuplicateError lists model names declared more than once.
type DuplicateError struct {
	Names []string
}

// Error returns the duplicate error message.
func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate models: %s", strings.Join(e.Names, ", "))
}
