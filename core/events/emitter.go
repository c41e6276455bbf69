// Package events provides the namespaced publish/subscribe layer between
// fields and the model that owns them. Subscriptions are keyed by an event name
// and an optional field name; "change" and "change on title" are different keys.
package events

import (
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// EventChange is emitted when a field value changes.
const EventChange = "change"

// Key identifies a subscription slot. An empty Field is the unscoped event.
type Key struct {
	Event string
	Field string
}

// String renders the key for logs, e.g. "change:title".
func (k Key) String() string {
	if k.Field == "" {
		return k.Event
	}
	return k.Event + ":" + k.Field
}

// Event is what handlers receive.
type Event struct {
	Key

	// Args are the extra arguments passed to Emit.
	Args []any
}

// Handler processes an event. Errors are logged and do not stop dispatch.
type Handler func(event Event) error

// Subscription identifies the handlers registered by one On call.
type Subscription struct {
	ids []uint64
}

// Len returns the number of keys the subscription covers.
func (s Subscription) Len() int {
	return len(s.ids)
}

type entry struct {
	id      uint64
	handler Handler
}

// Emitter is a typed multimap of handlers.
type Emitter struct {
	mu       sync.RWMutex
	handlers map[Key][]entry
	index    map[uint64]Key
	nextID   uint64
	logger   zerolog.Logger
}

// NewEmitter creates an emitter with no subscriptions.
func NewEmitter(logger zerolog.Logger) *Emitter {
	return &Emitter{
		handlers: make(map[Key][]entry),
		index:    make(map[uint64]Key),
		logger:   logger,
	}
}

// On registers handler for every key.
func (e *Emitter) On(keys []Key, handler Handler) Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()

	sub := Subscription{ids: make([]uint64, 0, len(keys))}
	for _, k := range keys {
		e.nextID++
		e.handlers[k] = append(e.handlers[k], entry{id: e.nextID, handler: handler})
		e.index[e.nextID] = k
		sub.ids = append(sub.ids, e.nextID)
	}
	return sub
}

// Off removes the handlers registered by sub.
func (e *Emitter) Off(sub Subscription) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, id := range sub.ids {
		k, ok := e.index[id]
		if !ok {
			continue
		}
		delete(e.index, id)

		entries := e.handlers[k]
		for i, en := range entries {
			if en.id == id {
				e.handlers[k] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
		if len(e.handlers[k]) == 0 {
			delete(e.handlers, k)
		}
	}
}

// OffKeys removes every handler registered on the given keys.
func (e *Emitter) OffKeys(keys []Key) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, k := range keys {
		for _, en := range e.handlers[k] {
			delete(e.index, en.id)
		}
		delete(e.handlers, k)
	}
}

// Emit calls the handlers registered on key in registration order. The
// handler list is copied first so handlers may subscribe or unsubscribe.
func (e *Emitter) Emit(key Key, args ...any) {
	e.mu.RLock()
	entries := make([]entry, len(e.handlers[key]))
	copy(entries, e.handlers[key])
	e.mu.RUnlock()

	e.logger.Debug().
		Str("event", key.Event).
		Str("field", key.Field).
		Int("handlers", len(entries)).
		Msg("event emitted")

	ev := Event{Key: key, Args: args}
	for _, en := range entries {
		if err := en.handler(ev); err != nil {
			e.logger.Error().
				Err(err).
				Str("event", key.String()).
				Msg("event handler error")
		}
	}
}

// HasSubscribers checks if any handlers are registered for key.
func (e *Emitter) HasSubscribers(key Key) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.handlers[key]) > 0
}

// Keys expands space-separated field and event lists into their cross
// product. An empty fields list yields unscoped keys.
func Keys(fields, events string) []Key {
	evs := strings.Fields(events)
	fs := strings.Fields(fields)

	if len(fs) == 0 {
		keys := make([]Key, len(evs))
		for i, ev := range evs {
			keys[i] = Key{Event: ev}
		}
		return keys
	}

	keys := make([]Key, 0, len(fs)*len(evs))
	for _, f := range fs {
		for _, ev := range evs {
			keys = append(keys, Key{Event: ev, Field: f})
		}
	}
	return keys
}
