// Package store provides the sealed event store and the persistence
// contract its database adapters implement.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es"
)

var (
	// ErrConcurrencyConflict indicates a version conflict during append.
	// It is expected under contention; reload the stream, recompute the
	// pending events and retry. No partial write has happened.
	ErrConcurrencyConflict = errors.New("store: concurrency conflict")

	// ErrNoEvents indicates an attempt to append zero events.
	ErrNoEvents = errors.New("store: no events to append")

	// ErrIntegrity indicates a break in the hash chain or a failed
	// authenticated decryption. It signals tampering or key loss and is
	// fatal: callers must halt rather than retry.
	ErrIntegrity = errors.New("store: integrity violation")

	// ErrRecordNotFound indicates a requested (stream, version) record
	// does not exist.
	ErrRecordNotFound = errors.New("store: record not found")
)

// IntegrityError carries the location and cause of a detected integrity
// violation. It wraps ErrIntegrity so callers can test with errors.Is.
type IntegrityError struct {
	StreamID uuid.UUID
	Version  int64
	Reason   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("store: integrity violation on stream %s at version %d: %s",
		e.StreamID, e.Version, e.Reason)
}

func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}

// Checkpoint is a persisted last-known-good position of a stream's chain.
// Verification can seed from it instead of re-walking the whole stream.
type Checkpoint struct {
	StreamID  uuid.UUID
	Version   int64
	ChainHash []byte
	UpdatedAt time.Time
}

// RecordStore is the persistence contract implemented by the database
// adapters. Implementations map StoredEvent records to rows and translate
// driver errors; they never touch plaintext, keys or hashes.
type RecordStore interface {
	// MaxVersion returns the current maximum version of a stream,
	// or -1 if the stream has no records.
	MaxVersion(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (int64, error)

	// SelectRecord returns the record at exactly (streamID, version),
	// or ErrRecordNotFound.
	SelectRecord(ctx context.Context, tx es.DBTX, streamID uuid.UUID, version int64) (es.StoredEvent, error)

	// SelectRecords returns records with version >= fromVersion ordered by
	// version ascending. An absent stream yields an empty slice.
	SelectRecords(ctx context.Context, tx es.DBTX, streamID uuid.UUID, fromVersion int64) ([]es.StoredEvent, error)

	// InsertRecords persists the records and returns their assigned global
	// sequences, parallel to records. A unique-constraint violation on
	// (stream_id, version) raised by a concurrent writer must be translated
	// to ErrConcurrencyConflict.
	InsertRecords(ctx context.Context, tx es.DBTX, records []es.StoredEvent) ([]int64, error)

	// ListStreams returns the distinct stream identities in the store.
	ListStreams(ctx context.Context, tx es.DBTX) ([]uuid.UUID, error)

	// GetCheckpoint returns the stream's verification checkpoint if one has
	// been saved.
	GetCheckpoint(ctx context.Context, tx es.DBTX, streamID uuid.UUID) (Checkpoint, bool, error)

	// SaveCheckpoint upserts the stream's verification checkpoint.
	SaveCheckpoint(ctx context.Context, tx es.DBTX, cp Checkpoint) error
}
