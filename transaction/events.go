package transaction

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es/codec"
)

// Stable type tags. They are persisted as event_type and must never change
// once events exist; they are deliberately not derived from Go type names.
const (
	EventTypeInitiated  = "transaction.initiated"
	EventTypeAuthorized = "transaction.authorized"
	EventTypeCompleted  = "transaction.completed"
	EventTypeFailed     = "transaction.failed"
	EventTypeReversed   = "transaction.reversed"
	EventTypeDisputed   = "transaction.disputed"
)

// Event is a transaction domain event. Events are immutable once created;
// the event ID and timestamp are fixed at construction.
type Event interface {
	codec.Event
	transactionEvent()
}

// Initiated records the creation of a transaction.
type Initiated struct {
	ID                 uuid.UUID
	TransactionID      uuid.UUID
	SourceAccount      uuid.UUID
	DestinationAccount uuid.UUID
	Amount             Money
	Reference          string
	At                 time.Time
}

func (e Initiated) EventID() uuid.UUID    { return e.ID }
func (e Initiated) EventType() string     { return EventTypeInitiated }
func (e Initiated) OccurredAt() time.Time { return e.At }
func (Initiated) transactionEvent()       {}

// Authorized records a successful authorization.
type Authorized struct {
	ID                uuid.UUID
	TransactionID     uuid.UUID
	AuthorizationCode string
	At                time.Time
}

func (e Authorized) EventID() uuid.UUID    { return e.ID }
func (e Authorized) EventType() string     { return EventTypeAuthorized }
func (e Authorized) OccurredAt() time.Time { return e.At }
func (Authorized) transactionEvent()       {}

// Completed records settlement of the transaction.
type Completed struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	At            time.Time
}

func (e Completed) EventID() uuid.UUID    { return e.ID }
func (e Completed) EventType() string     { return EventTypeCompleted }
func (e Completed) OccurredAt() time.Time { return e.At }
func (Completed) transactionEvent()       {}

// Failed records a terminal failure with a machine-readable code and a
// human-readable reason.
type Failed struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Code          string
	Reason        string
	At            time.Time
}

func (e Failed) EventID() uuid.UUID    { return e.ID }
func (e Failed) EventType() string     { return EventTypeFailed }
func (e Failed) OccurredAt() time.Time { return e.At }
func (Failed) transactionEvent()       {}

// Reversed records a reversal of a completed transaction.
type Reversed struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Reason        string
	At            time.Time
}

func (e Reversed) EventID() uuid.UUID    { return e.ID }
func (e Reversed) EventType() string     { return EventTypeReversed }
func (e Reversed) OccurredAt() time.Time { return e.At }
func (Reversed) transactionEvent()       {}

// Disputed records a dispute opened against a completed transaction.
type Disputed struct {
	ID            uuid.UUID
	TransactionID uuid.UUID
	Reason        string
	At            time.Time
}

func (e Disputed) EventID() uuid.UUID    { return e.ID }
func (e Disputed) EventType() string     { return EventTypeDisputed }
func (e Disputed) OccurredAt() time.Time { return e.At }
func (Disputed) transactionEvent()       {}
