package model

import (
	"github.com/artpar/modelkit/core/events"
	"github.com/artpar/modelkit/core/field"
)

// On subscribes h to the unscoped events in the space-separated list evs.
func (m *Model) On(evs string, h events.Handler) events.Subscription {
	return m.emitter.On(events.Keys("", evs), h)
}

// OnField subscribes h to every event in evs scoped to every field in fields,
// both space-separated.
func (m *Model) OnField(fields, evs string, h events.Handler) events.Subscription {
	return m.emitter.On(events.Keys(fields, evs), h)
}

// Un removes a subscription returned by On or OnField.
func (m *Model) Un(sub events.Subscription) {
	m.emitter.Off(sub)
}

// Off removes every handler on the given fields and events. An empty fields
// list addresses the unscoped events.
func (m *Model) Off(fields, evs string) {
	m.emitter.OffKeys(events.Keys(fields, evs))
}

// Trigger emits an unscoped event.
func (m *Model) Trigger(event string, args ...any) {
	m.emitter.Emit(events.Key{Event: event}, args...)
}

// TriggerField emits an event scoped to one field.
func (m *Model) TriggerField(fieldName, event string, args ...any) {
	m.emitter.Emit(events.Key{Event: event, Field: fieldName}, args...)
}

// FieldChanged implements field.Owner: the scoped change event is emitted
// first, then the unscoped one.
func (m *Model) FieldChanged(f *field.Field) {
	if m.observer != nil {
		m.observer.FieldChanged(m.Name(), f.Name())
	}
	m.TriggerField(f.Name(), events.EventChange)
	m.Trigger(events.EventChange)
}
