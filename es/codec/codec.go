// Package codec maps domain events to and from their persisted payload
// bytes through an explicit closed registry.
//
// Each event variant registers its stable type tag together with an encode
// and a decode function at startup. Lookup is by tag only; nothing depends
// on runtime type names, so renaming a Go type never breaks stored data.
// Payload encodings are explicit field-level DTOs, so two logically equal
// events serialize to byte-identical output.
package codec

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Event is the store's view of a domain event. Implementations are
// immutable once created; EventID and OccurredAt are fixed at construction.
type Event interface {
	// EventID is the unique identifier of this event occurrence
	EventID() uuid.UUID

	// EventType is the stable type tag, persisted as the record's event_type
	EventType() string

	// OccurredAt is when the event was created
	OccurredAt() time.Time
}

// ErrUnknownEventType indicates a type tag with no registered decoder.
var ErrUnknownEventType = errors.New("codec: unknown event type")

// DecodeError indicates a schema or version mismatch: an unknown type tag or
// a malformed payload. It is non-retriable.
type DecodeError struct {
	// EventType is the type tag that failed to decode
	EventType string

	// Err is the underlying cause
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("codec: decode %q: %v", e.EventType, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// EncodeFunc serializes one event variant to its deterministic plaintext.
type EncodeFunc func(Event) ([]byte, error)

// DecodeFunc rebuilds one event variant from its plaintext payload.
type DecodeFunc func([]byte) (Event, error)

type entry struct {
	encode EncodeFunc
	decode DecodeFunc
}

// Registry is the closed set of event variants the store can persist.
// Populate it once at startup; it is safe for concurrent reads afterwards.
type Registry struct {
	entries map[string]entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds one event variant. Registering an empty tag, a nil codec
// function, or the same tag twice is a wiring error and panics.
func (r *Registry) Register(eventType string, encode EncodeFunc, decode DecodeFunc) {
	if eventType == "" {
		panic("codec: event type must not be empty")
	}
	if encode == nil || decode == nil {
		panic(fmt.Sprintf("codec: nil codec function for event type %q", eventType))
	}
	if _, exists := r.entries[eventType]; exists {
		panic(fmt.Sprintf("codec: event type %q registered twice", eventType))
	}
	r.entries[eventType] = entry{encode: encode, decode: decode}
}

// Contains reports whether a decoder is registered for the given tag.
func (r *Registry) Contains(eventType string) bool {
	_, ok := r.entries[eventType]
	return ok
}

// Marshal serializes an event using the encoder registered for its tag.
func (r *Registry) Marshal(e Event) ([]byte, error) {
	ent, ok := r.entries[e.EventType()]
	if !ok {
		return nil, &DecodeError{EventType: e.EventType(), Err: ErrUnknownEventType}
	}
	data, err := ent.encode(e)
	if err != nil {
		return nil, &DecodeError{EventType: e.EventType(), Err: err}
	}
	return data, nil
}

// Unmarshal rebuilds an event from its payload and type tag. Unknown tags
// and malformed payloads return a *DecodeError.
func (r *Registry) Unmarshal(payload []byte, eventType string) (Event, error) {
	ent, ok := r.entries[eventType]
	if !ok {
		return nil, &DecodeError{EventType: eventType, Err: ErrUnknownEventType}
	}
	e, err := ent.decode(payload)
	if err != nil {
		return nil, &DecodeError{EventType: eventType, Err: err}
	}
	return e, nil
}
