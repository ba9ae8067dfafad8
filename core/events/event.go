package events

import "credchain/core/types"

// Event represents a structured state change emitted by an engine.
type Event interface {
	EventType() string
	Event() *types.Event
}

// Emitter broadcasts events to downstream subscribers (RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events.
// Engines default to it so emission stays optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Recorder accumulates emitted events in order. Used by tests and by the
// node surface to expose the event log through read-only getters.
type Recorder struct {
	events []*types.Event
}

// Emit implements the Emitter interface.
func (r *Recorder) Emit(evt Event) {
	if r == nil || evt == nil {
		return
	}
	payload := evt.Event()
	if payload == nil {
		return
	}
	r.events = append(r.events, payload)
}

// Events returns the recorded payloads in emission order.
func (r *Recorder) Events() []*types.Event {
	if r == nil {
		return nil
	}
	out := make([]*types.Event, len(r.events))
	copy(out, r.events)
	return out
}
