package transaction

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validation failure codes.
const (
	CodeSameAccount       = "same_account"
	CodeInvalidAmount     = "invalid_amount"
	CodeInvalidTransition = "invalid_transition"
	CodeMissingAuthCode   = "missing_authorization_code"
)

// ValidationError reports a business-rule violation: bad input or an
// illegal status transition. It is recoverable and returned as data;
// the aggregate is left unchanged.
type ValidationError struct {
	Code    string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("transaction: %s: %s", e.Code, e.Message)
}

// Transaction is the in-memory aggregate, derived by replaying its event
// stream. It is a plain data structure mutated only through the lifecycle
// operations below; it has no persisted identity beyond its stream.
type Transaction struct {
	id                 uuid.UUID
	sourceAccount      uuid.UUID
	destinationAccount uuid.UUID
	amount             Money
	reference          string
	status             Status
	authorizationCode  string
	failureCode        string
	failureReason      string
	initiatedAt        time.Time
	completedAt        *time.Time

	// version is the position of the last applied event, -1 before any
	version int64

	// pending are events raised since the last save, in order
	pending []Event
}

// New validates the business invariants and returns a transaction in
// Initiated status with one pending Initiated event.
func New(source, destination uuid.UUID, amount Money, reference string) (*Transaction, error) {
	if source == destination {
		return nil, &ValidationError{
			Code:    CodeSameAccount,
			Message: "source and destination accounts must differ",
		}
	}
	if !amount.IsPositive() {
		return nil, &ValidationError{
			Code:    CodeInvalidAmount,
			Message: fmt.Sprintf("amount must be positive, got %s", amount),
		}
	}

	t := &Transaction{version: -1}
	t.raise(Initiated{
		ID:                 uuid.New(),
		TransactionID:      uuid.New(),
		SourceAccount:      source,
		DestinationAccount: destination,
		Amount:             amount,
		Reference:          reference,
		At:                 time.Now().UTC(),
	})
	return t, nil
}

// LoadFromHistory rebuilds a transaction by folding Apply over its ordered
// event history. The resulting version equals len(events)-1. Replay trusts
// that the store's integrity check already ran; it performs no validation.
func LoadFromHistory(events []Event) *Transaction {
	t := &Transaction{version: -1}
	for _, e := range events {
		t.Apply(e)
	}
	return t
}

// Authorize moves the transaction to Authorized and records the code.
func (t *Transaction) Authorize(code string) error {
	if err := t.checkTransition(StatusAuthorized); err != nil {
		return err
	}
	if code == "" {
		return &ValidationError{
			Code:    CodeMissingAuthCode,
			Message: "authorization code must not be empty",
		}
	}
	t.raise(Authorized{
		ID:                uuid.New(),
		TransactionID:     t.id,
		AuthorizationCode: code,
		At:                time.Now().UTC(),
	})
	return nil
}

// Complete settles the transaction.
func (t *Transaction) Complete() error {
	if err := t.checkTransition(StatusCompleted); err != nil {
		return err
	}
	t.raise(Completed{
		ID:            uuid.New(),
		TransactionID: t.id,
		At:            time.Now().UTC(),
	})
	return nil
}

// Fail marks the transaction as failed with a machine-readable code and a
// human-readable reason. Failed is terminal.
func (t *Transaction) Fail(code, reason string) error {
	if err := t.checkTransition(StatusFailed); err != nil {
		return err
	}
	t.raise(Failed{
		ID:            uuid.New(),
		TransactionID: t.id,
		Code:          code,
		Reason:        reason,
		At:            time.Now().UTC(),
	})
	return nil
}

// Reverse reverses a completed or disputed transaction. Reversed is terminal.
func (t *Transaction) Reverse(reason string) error {
	if err := t.checkTransition(StatusReversed); err != nil {
		return err
	}
	t.raise(Reversed{
		ID:            uuid.New(),
		TransactionID: t.id,
		Reason:        reason,
		At:            time.Now().UTC(),
	})
	return nil
}

// Dispute opens a dispute against a completed transaction.
func (t *Transaction) Dispute(reason string) error {
	if err := t.checkTransition(StatusDisputed); err != nil {
		return err
	}
	t.raise(Disputed{
		ID:            uuid.New(),
		TransactionID: t.id,
		Reason:        reason,
		At:            time.Now().UTC(),
	})
	return nil
}

// Apply is the pure replay step: it mutates state for one event and
// increments the version. It performs no validation.
func (t *Transaction) Apply(event Event) {
	switch e := event.(type) {
	case Initiated:
		t.id = e.TransactionID
		t.sourceAccount = e.SourceAccount
		t.destinationAccount = e.DestinationAccount
		t.amount = e.Amount
		t.reference = e.Reference
		t.initiatedAt = e.At
		t.status = StatusInitiated
	case Authorized:
		t.authorizationCode = e.AuthorizationCode
		t.status = StatusAuthorized
	case Completed:
		at := e.At
		t.completedAt = &at
		t.status = StatusCompleted
	case Failed:
		t.failureCode = e.Code
		t.failureReason = e.Reason
		t.status = StatusFailed
	case Reversed:
		t.failureReason = e.Reason
		t.status = StatusReversed
	case Disputed:
		t.failureReason = e.Reason
		t.status = StatusDisputed
	}
	t.version++
}

// MarkCommitted clears the pending events after a successful save.
func (t *Transaction) MarkCommitted() {
	t.pending = nil
}

func (t *Transaction) checkTransition(target Status) error {
	if !t.status.CanTransitionTo(target) {
		return &ValidationError{
			Code:    CodeInvalidTransition,
			Message: fmt.Sprintf("cannot transition from %s to %s", t.status, target),
		}
	}
	return nil
}

func (t *Transaction) raise(event Event) {
	t.Apply(event)
	t.pending = append(t.pending, event)
}

// ID returns the transaction's stream identity.
func (t *Transaction) ID() uuid.UUID { return t.id }

// SourceAccount returns the debited account.
func (t *Transaction) SourceAccount() uuid.UUID { return t.sourceAccount }

// DestinationAccount returns the credited account.
func (t *Transaction) DestinationAccount() uuid.UUID { return t.destinationAccount }

// Amount returns the transaction amount.
func (t *Transaction) Amount() Money { return t.amount }

// Reference returns the caller-supplied reference, if any.
func (t *Transaction) Reference() string { return t.reference }

// Status returns the current lifecycle status.
func (t *Transaction) Status() Status { return t.status }

// AuthorizationCode returns the code recorded by Authorize.
func (t *Transaction) AuthorizationCode() string { return t.authorizationCode }

// FailureCode returns the machine-readable code recorded by Fail.
func (t *Transaction) FailureCode() string { return t.failureCode }

// FailureReason returns the reason recorded by Fail, Reverse or Dispute.
func (t *Transaction) FailureReason() string { return t.failureReason }

// InitiatedAt returns the creation time.
func (t *Transaction) InitiatedAt() time.Time { return t.initiatedAt }

// CompletedAt returns the settlement time, or nil if never completed.
func (t *Transaction) CompletedAt() *time.Time { return t.completedAt }

// Version returns the position of the last applied event, -1 for an empty
// aggregate. Pending events count: the expected stream version for a save
// is Version() minus the number of pending events.
func (t *Transaction) Version() int64 { return t.version }

// PendingEvents returns the events raised since the last save, in order.
func (t *Transaction) PendingEvents() []Event {
	out := make([]Event, len(t.pending))
	copy(out, t.pending)
	return out
}
