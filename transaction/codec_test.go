package transaction

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/es/codec"
)

func fixedTime() time.Time {
	return time.Date(2024, 3, 15, 9, 30, 0, 123456789, time.UTC)
}

func TestNewRegistry_ContainsAllEventTypes(t *testing.T) {
	r := NewRegistry()
	tags := []string{
		EventTypeInitiated, EventTypeAuthorized, EventTypeCompleted,
		EventTypeFailed, EventTypeReversed, EventTypeDisputed,
	}
	for _, tag := range tags {
		if !r.Contains(tag) {
			t.Errorf("registry missing %q", tag)
		}
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	r := NewRegistry()
	transactionID := uuid.New()

	tests := []struct {
		name  string
		event Event
	}{
		{"initiated", Initiated{
			ID:                 uuid.New(),
			TransactionID:      transactionID,
			SourceAccount:      uuid.New(),
			DestinationAccount: uuid.New(),
			Amount:             NewMoney(1050, USD),
			Reference:          "INV-42",
			At:                 fixedTime(),
		}},
		{"initiated without reference", Initiated{
			ID:                 uuid.New(),
			TransactionID:      transactionID,
			SourceAccount:      uuid.New(),
			DestinationAccount: uuid.New(),
			Amount:             NewMoney(99, GBP),
			At:                 fixedTime(),
		}},
		{"authorized", Authorized{
			ID:                uuid.New(),
			TransactionID:     transactionID,
			AuthorizationCode: "AUTH-7",
			At:                fixedTime(),
		}},
		{"completed", Completed{
			ID:            uuid.New(),
			TransactionID: transactionID,
			At:            fixedTime(),
		}},
		{"failed", Failed{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Code:          "insufficient_funds",
			Reason:        "balance too low",
			At:            fixedTime(),
		}},
		{"reversed", Reversed{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Reason:        "operator reversal",
			At:            fixedTime(),
		}},
		{"disputed", Disputed{
			ID:            uuid.New(),
			TransactionID: transactionID,
			Reason:        "chargeback",
			At:            fixedTime(),
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			payload, err := r.Marshal(tt.event)
			if err != nil {
				t.Fatalf("Marshal() failed: %v", err)
			}

			decoded, err := r.Unmarshal(payload, tt.event.EventType())
			if err != nil {
				t.Fatalf("Unmarshal() failed: %v", err)
			}
			if decoded != codec.Event(tt.event) {
				t.Errorf("round trip mismatch:\n got  %#v\n want %#v", decoded, tt.event)
			}
		})
	}
}

func TestCodec_MarshalIsDeterministic(t *testing.T) {
	r := NewRegistry()
	event := Initiated{
		ID:                 uuid.New(),
		TransactionID:      uuid.New(),
		SourceAccount:      uuid.New(),
		DestinationAccount: uuid.New(),
		Amount:             NewMoney(250000, EUR),
		Reference:          "PAYROLL-03",
		At:                 fixedTime(),
	}

	first, err := r.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	second, err := r.Marshal(event)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if !bytes.Equal(first, second) {
		t.Error("Marshal() produced different bytes for the same event")
	}
}

func TestCodec_MalformedPayload(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name      string
		payload   []byte
		eventType string
	}{
		{"invalid json", []byte(`{broken`), EventTypeInitiated},
		{"bad event id", []byte(`{"event_id":"nope","transaction_id":"nope"}`), EventTypeCompleted},
		{"bad account id", []byte(`{"event_id":"` + uuid.New().String() + `","transaction_id":"` + uuid.New().String() + `","source_account":"nope"}`), EventTypeInitiated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Unmarshal(tt.payload, tt.eventType)
			var decodeErr *codec.DecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("Unmarshal() error = %T, want *codec.DecodeError", err)
			}
		})
	}
}

func TestCodec_EncoderRejectsWrongType(t *testing.T) {
	r := NewRegistry()

	// An event whose tag claims Initiated but whose concrete type is not.
	impostor := mistagged{Completed{ID: uuid.New(), TransactionID: uuid.New(), At: fixedTime()}}
	if _, err := r.Marshal(impostor); err == nil {
		t.Error("Marshal() accepted an event with a mismatched concrete type")
	}
}

type mistagged struct {
	Completed
}

func (mistagged) EventType() string { return EventTypeInitiated }
