// Package es provides the core types for the sealed event store.
package es

import (
	"time"

	"github.com/google/uuid"
)

// StoredEvent is one persisted record of a stream. The payload is the
// AES-GCM sealed form of the serialized domain event; the chain hash is
// computed over the plaintext, so tampering with either the ciphertext or
// the hash columns is detectable on read.
type StoredEvent struct {
	// OccurredAt is the domain event's creation time, fixed at construction
	OccurredAt time.Time

	// EventType is the stable type tag used to pick the decoder
	EventType string

	// Payload is the encrypted serialized event: nonce || tag || ciphertext
	Payload []byte

	// ChainHash is the 64-byte keyed hash binding this event to its
	// predecessor: HMAC(previous_hash_or_empty || plaintext)
	ChainHash []byte

	// PreviousHash is the predecessor's ChainHash, nil for the genesis event
	PreviousHash []byte

	// Version is the event's position in its stream, contiguous from 0
	Version int64

	// GlobalSequence is assigned by the store upon persistence and is
	// monotonic across all streams
	GlobalSequence int64

	// ID is a unique identifier for this event
	ID uuid.UUID

	// StreamID identifies the aggregate stream this event belongs to
	StreamID uuid.UUID
}

// IsGenesis reports whether this record is the first event of its stream.
func (e StoredEvent) IsGenesis() bool {
	return e.Version == 0
}

// Stream is the totally ordered event history for one aggregate identity.
type Stream struct {
	StreamID uuid.UUID
	Records  []StoredEvent
}

// Version returns the version of the last record, or -1 for an empty stream.
// -1 is the store-wide convention for "stream does not exist".
func (s Stream) Version() int64 {
	if len(s.Records) == 0 {
		return -1
	}
	return s.Records[len(s.Records)-1].Version
}

// IsEmpty reports whether the stream has no records.
func (s Stream) IsEmpty() bool {
	return len(s.Records) == 0
}

// Len returns the number of records in the stream.
func (s Stream) Len() int {
	return len(s.Records)
}

// AppendResult describes the outcome of a successful append.
type AppendResult struct {
	// Records are the persisted records in append order
	Records []StoredEvent

	// GlobalSequences are the store-assigned global sequence numbers,
	// parallel to Records
	GlobalSequences []int64
}

// FirstVersion returns the version of the first appended record,
// or -1 for an empty result.
func (r AppendResult) FirstVersion() int64 {
	if len(r.Records) == 0 {
		return -1
	}
	return r.Records[0].Version
}

// LastVersion returns the version of the last appended record,
// or -1 for an empty result.
func (r AppendResult) LastVersion() int64 {
	if len(r.Records) == 0 {
		return -1
	}
	return r.Records[len(r.Records)-1].Version
}
