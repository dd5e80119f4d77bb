package transaction

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es/codec"
)

// RegisterEvents wires the six transaction event variants into a codec
// registry. Call it once at startup before constructing the store.
func RegisterEvents(r *codec.Registry) {
	r.Register(EventTypeInitiated, encodeInitiated, decodeInitiated)
	r.Register(EventTypeAuthorized, encodeAuthorized, decodeAuthorized)
	r.Register(EventTypeCompleted, encodeCompleted, decodeCompleted)
	r.Register(EventTypeFailed, encodeFailed, decodeFailed)
	r.Register(EventTypeReversed, encodeReversed, decodeReversed)
	r.Register(EventTypeDisputed, encodeDisputed, decodeDisputed)
}

// NewRegistry returns a codec registry with the transaction events
// registered.
func NewRegistry() *codec.Registry {
	r := codec.NewRegistry()
	RegisterEvents(r)
	return r
}

// Payload DTOs use explicit field-level encoding with a fixed field order
// and Unix-nanosecond timestamps, so logically equal events serialize to
// byte-identical output.

type initiatedPayload struct {
	EventID            string `json:"event_id"`
	TransactionID      string `json:"transaction_id"`
	SourceAccount      string `json:"source_account"`
	DestinationAccount string `json:"destination_account"`
	AmountMinor        int64  `json:"amount_minor"`
	Currency           string `json:"currency"`
	Reference          string `json:"reference,omitempty"`
	OccurredAt         int64  `json:"occurred_at"`
}

type authorizedPayload struct {
	EventID           string `json:"event_id"`
	TransactionID     string `json:"transaction_id"`
	AuthorizationCode string `json:"authorization_code"`
	OccurredAt        int64  `json:"occurred_at"`
}

type completedPayload struct {
	EventID       string `json:"event_id"`
	TransactionID string `json:"transaction_id"`
	OccurredAt    int64  `json:"occurred_at"`
}

type failedPayload struct {
	EventID       string `json:"event_id"`
	TransactionID string `json:"transaction_id"`
	Code          string `json:"code"`
	Reason        string `json:"reason"`
	OccurredAt    int64  `json:"occurred_at"`
}

type reasonPayload struct {
	EventID       string `json:"event_id"`
	TransactionID string `json:"transaction_id"`
	Reason        string `json:"reason"`
	OccurredAt    int64  `json:"occurred_at"`
}

func encodeInitiated(e codec.Event) ([]byte, error) {
	evt, ok := e.(Initiated)
	if !ok {
		return nil, fmt.Errorf("expected Initiated, got %q", e.EventType())
	}
	return json.Marshal(initiatedPayload{
		EventID:            evt.ID.String(),
		TransactionID:      evt.TransactionID.String(),
		SourceAccount:      evt.SourceAccount.String(),
		DestinationAccount: evt.DestinationAccount.String(),
		AmountMinor:        evt.Amount.Amount,
		Currency:           string(evt.Amount.Currency),
		Reference:          evt.Reference,
		OccurredAt:         evt.At.UnixNano(),
	})
}

func decodeInitiated(data []byte) (codec.Event, error) {
	var p initiatedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	ids, err := parseIDs(p.EventID, p.TransactionID)
	if err != nil {
		return nil, err
	}
	source, err := uuid.Parse(p.SourceAccount)
	if err != nil {
		return nil, fmt.Errorf("source account: %w", err)
	}
	destination, err := uuid.Parse(p.DestinationAccount)
	if err != nil {
		return nil, fmt.Errorf("destination account: %w", err)
	}
	return Initiated{
		ID:                 ids.eventID,
		TransactionID:      ids.transactionID,
		SourceAccount:      source,
		DestinationAccount: destination,
		Amount:             NewMoney(p.AmountMinor, Currency(p.Currency)),
		Reference:          p.Reference,
		At:                 time.Unix(0, p.OccurredAt).UTC(),
	}, nil
}

func encodeAuthorized(e codec.Event) ([]byte, error) {
	evt, ok := e.(Authorized)
	if !ok {
		return nil, fmt.Errorf("expected Authorized, got %q", e.EventType())
	}
	return json.Marshal(authorizedPayload{
		EventID:           evt.ID.String(),
		TransactionID:     evt.TransactionID.String(),
		AuthorizationCode: evt.AuthorizationCode,
		OccurredAt:        evt.At.UnixNano(),
	})
}

func decodeAuthorized(data []byte) (codec.Event, error) {
	var p authorizedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	ids, err := parseIDs(p.EventID, p.TransactionID)
	if err != nil {
		return nil, err
	}
	return Authorized{
		ID:                ids.eventID,
		TransactionID:     ids.transactionID,
		AuthorizationCode: p.AuthorizationCode,
		At:                time.Unix(0, p.OccurredAt).UTC(),
	}, nil
}

func encodeCompleted(e codec.Event) ([]byte, error) {
	evt, ok := e.(Completed)
	if !ok {
		return nil, fmt.Errorf("expected Completed, got %q", e.EventType())
	}
	return json.Marshal(completedPayload{
		EventID:       evt.ID.String(),
		TransactionID: evt.TransactionID.String(),
		OccurredAt:    evt.At.UnixNano(),
	})
}

func decodeCompleted(data []byte) (codec.Event, error) {
	var p completedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	ids, err := parseIDs(p.EventID, p.TransactionID)
	if err != nil {
		return nil, err
	}
	return Completed{
		ID:            ids.eventID,
		TransactionID: ids.transactionID,
		At:            time.Unix(0, p.OccurredAt).UTC(),
	}, nil
}

func encodeFailed(e codec.Event) ([]byte, error) {
	evt, ok := e.(Failed)
	if !ok {
		return nil, fmt.Errorf("expected Failed, got %q", e.EventType())
	}
	return json.Marshal(failedPayload{
		EventID:       evt.ID.String(),
		TransactionID: evt.TransactionID.String(),
		Code:          evt.Code,
		Reason:        evt.Reason,
		OccurredAt:    evt.At.UnixNano(),
	})
}

func decodeFailed(data []byte) (codec.Event, error) {
	var p failedPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	ids, err := parseIDs(p.EventID, p.TransactionID)
	if err != nil {
		return nil, err
	}
	return Failed{
		ID:            ids.eventID,
		TransactionID: ids.transactionID,
		Code:          p.Code,
		Reason:        p.Reason,
		At:            time.Unix(0, p.OccurredAt).UTC(),
	}, nil
}

func encodeReversed(e codec.Event) ([]byte, error) {
	evt, ok := e.(Reversed)
	if !ok {
		return nil, fmt.Errorf("expected Reversed, got %q", e.EventType())
	}
	return json.Marshal(reasonPayload{
		EventID:       evt.ID.String(),
		TransactionID: evt.TransactionID.String(),
		Reason:        evt.Reason,
		OccurredAt:    evt.At.UnixNano(),
	})
}

func decodeReversed(data []byte) (codec.Event, error) {
	p, ids, err := decodeReasonPayload(data)
	if err != nil {
		return nil, err
	}
	return Reversed{
		ID:            ids.eventID,
		TransactionID: ids.transactionID,
		Reason:        p.Reason,
		At:            time.Unix(0, p.OccurredAt).UTC(),
	}, nil
}

func encodeDisputed(e codec.Event) ([]byte, error) {
	evt, ok := e.(Disputed)
	if !ok {
		return nil, fmt.Errorf("expected Disputed, got %q", e.EventType())
	}
	return json.Marshal(reasonPayload{
		EventID:       evt.ID.String(),
		TransactionID: evt.TransactionID.String(),
		Reason:        evt.Reason,
		OccurredAt:    evt.At.UnixNano(),
	})
}

func decodeDisputed(data []byte) (codec.Event, error) {
	p, ids, err := decodeReasonPayload(data)
	if err != nil {
		return nil, err
	}
	return Disputed{
		ID:            ids.eventID,
		TransactionID: ids.transactionID,
		Reason:        p.Reason,
		At:            time.Unix(0, p.OccurredAt).UTC(),
	}, nil
}

type parsedIDs struct {
	eventID       uuid.UUID
	transactionID uuid.UUID
}

func parseIDs(eventID, transactionID string) (parsedIDs, error) {
	eid, err := uuid.Parse(eventID)
	if err != nil {
		return parsedIDs{}, fmt.Errorf("event id: %w", err)
	}
	tid, err := uuid.Parse(transactionID)
	if err != nil {
		return parsedIDs{}, fmt.Errorf("transaction id: %w", err)
	}
	return parsedIDs{eventID: eid, transactionID: tid}, nil
}

func decodeReasonPayload(data []byte) (reasonPayload, parsedIDs, error) {
	var p reasonPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return reasonPayload{}, parsedIDs{}, err
	}
	ids, err := parseIDs(p.EventID, p.TransactionID)
	if err != nil {
		return reasonPayload{}, parsedIDs{}, err
	}
	return p, ids, nil
}
