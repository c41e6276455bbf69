// Package field implements a single observable value slot: its current value,
// its committed baseline, validation, and the debounced change notification it
// sends to the model that owns it.
package field

import (
	"context"

	"github.com/artpar/modelkit/core/scheduler"
)

// Owner receives change notifications from its fields.
type Owner interface {
	FieldChanged(f *Field)
}

// Field is an instance of a Descriptor bound to one owner. A Field is not
// safe for concurrent use; its owner serializes access.
type Field struct {
	desc      *Descriptor
	owner     Owner
	sched     scheduler.Scheduler
	value     any
	committed any
	pending   *scheduler.Task
}

// New instantiates d. When present is false the descriptor's default is used
// instead of raw. Either way the initial value goes through the parse rule
// and becomes the committed baseline.
func New(d *Descriptor, owner Owner, sched scheduler.Scheduler, raw any, present bool) (*Field, error) {
	if !present {
		raw = d.DefaultValue()
	}

	v, err := d.parse(raw)
	if err != nil {
		return nil, err
	}

	f := &Field{
		desc:  d,
		owner: owner,
		sched: sched,
		value: v,
	}
	f.Commit()
	return f, nil
}

// Name returns the field name.
func (f *Field) Name() string { return f.desc.Name }

// Descriptor returns the composed definition of the field.
func (f *Field) Descriptor() *Descriptor { return f.desc }

// Internal reports whether the field is excluded from serialized output.
func (f *Field) Internal() bool { return f.desc.Internal }

// Get returns the current value.
func (f *Field) Get() any { return f.value }

// Committed returns the last committed value.
func (f *Field) Committed() any { return f.committed }

// Parse runs the field's parse rule without touching the value.
func (f *Field) Parse(raw any) (any, error) {
	return f.desc.parse(raw)
}

// IsEqual compares value with the current value using the field's equality rule.
func (f *Field) IsEqual(value any) bool {
	return f.desc.equal(f.value, value)
}

// Set replaces the value with the parsed form of value unless value already
// equals the current value. A change schedules one debounced notification.
// On a parse error the value is left untouched.
func (f *Field) Set(value any) error {
	if f.IsEqual(value) {
		return nil
	}

	v, err := f.desc.parse(value)
	if err != nil {
		return err
	}

	f.value = v
	f.scheduleChange()
	return nil
}

// Validate checks the current value.
func (f *Field) Validate(ctx context.Context) bool {
	return f.desc.Check(ctx, f.value)
}

// IsChanged reports whether the value differs from the committed baseline.
func (f *Field) IsChanged() bool {
	return !f.IsEqual(f.committed)
}

// Commit makes the current value the new baseline. It does not notify.
func (f *Field) Commit() {
	f.committed = f.value
}

// Revert restores the committed baseline and notifies if that changed the value.
func (f *Field) Revert() {
	if f.IsEqual(f.committed) {
		return
	}
	f.value = f.committed
	f.scheduleChange()
}

// ToJSON returns the serializable representation of the value.
func (f *Field) ToJSON() any {
	if f.desc.Serialize == nil {
		return f.value
	}
	return f.desc.Serialize(f.value)
}

// Pending reports whether a change notification is waiting to be flushed.
func (f *Field) Pending() bool {
	return f.pending != nil && !f.pending.Canceled()
}

// Dispose cancels a pending notification.
func (f *Field) Dispose() {
	f.pending.Cancel()
	f.pending = nil
}

func (f *Field) scheduleChange() {
	if f.Pending() {
		return
	}
	if f.sched == nil {
		f.emitChange()
		return
	}
	f.pending = f.sched.Defer(f.emitChange)
}

func (f *Field) emitChange() {
	// Cleared first so an owner callback that sets this field again
	// schedules a fresh notification.
	f.pending = nil
	if f.owner != nil {
		f.owner.FieldChanged(f)
	}
}
