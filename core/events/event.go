package events

import "nftstake/core/types"

// Event represents a structured state change emitted by the chain.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is implemented by events that carry a broadcastable attribute map.
type Payload interface {
	EventType() string
	Event() *types.Event
}

// ToTypes converts any event into the wire representation. Events without a
// payload are reduced to their type.
func ToTypes(evt Event) types.Event {
	if evt == nil {
		return types.Event{}
	}
	if p, ok := evt.(Payload); ok {
		if out := p.Event(); out != nil {
			return *out
		}
	}
	return types.Event{Type: evt.EventType(), Attributes: map[string]string{}}
}
