package transaction

import "testing"

func TestMoney_Predicates(t *testing.T) {
	tests := []struct {
		name         string
		amount       int64
		wantZero     bool
		wantPositive bool
	}{
		{"zero", 0, true, false},
		{"positive", 1050, false, true},
		{"negative", -500, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMoney(tt.amount, USD)
			if got := m.IsZero(); got != tt.wantZero {
				t.Errorf("IsZero() = %v, want %v", got, tt.wantZero)
			}
			if got := m.IsPositive(); got != tt.wantPositive {
				t.Errorf("IsPositive() = %v, want %v", got, tt.wantPositive)
			}
		})
	}
}

func TestMoney_Add(t *testing.T) {
	sum, err := NewMoney(1050, USD).Add(NewMoney(450, USD))
	if err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	if sum.Amount != 1500 || sum.Currency != USD {
		t.Errorf("Add() = %s, want 1500 USD", sum)
	}
}

func TestMoney_AddCurrencyMismatch(t *testing.T) {
	if _, err := NewMoney(1050, USD).Add(NewMoney(450, EUR)); err == nil {
		t.Error("Add() should fail on currency mismatch")
	}
}

func TestMoney_String(t *testing.T) {
	got := NewMoney(1050, GBP).String()
	if got != "1050 GBP" {
		t.Errorf("String() = %q, want %q", got, "1050 GBP")
	}
}
