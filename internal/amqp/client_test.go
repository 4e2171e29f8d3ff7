package amqp

import (
	"testing"
	"time"

	"spendbook/internal/core"
)

func TestNewLedgerEventMessage(t *testing.T) {
	token := core.MonthToken{Year: "2024", Month: "06"}
	msg := NewLedgerEventMessage(42, OpCreated, token)

	if msg.ID != 42 {
		t.Errorf("ID = %v, want 42", msg.ID)
	}
	if msg.Op != OpCreated {
		t.Errorf("Op = %q, want %q", msg.Op, OpCreated)
	}
	if msg.Year != "2024" || msg.Month != "06" {
		t.Errorf("month = %s-%s, want 2024-06", msg.Year, msg.Month)
	}
	if msg.MonthToken() != token {
		t.Errorf("MonthToken() = %v, want %v", msg.MonthToken(), token)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestLedgerEventMessageJSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &LedgerEventMessage{
		ID:        12345,
		Op:        OpDeleted,
		Year:      "2024",
		Month:     "01",
		Timestamp: timestamp,
	}

	jsonBytes, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := LedgerEventMessageFromJSON(jsonBytes)
	if err != nil {
		t.Fatalf("LedgerEventMessageFromJSON() error = %v", err)
	}

	if parsed.ID != msg.ID || parsed.Op != msg.Op {
		t.Errorf("parsed = %+v, want %+v", parsed, msg)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestLedgerEventMessageFromJSONRejectsBadInput(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"malformed json", `{"id": "not_a_number"}`},
		{"unknown op", `{"id": 1, "op": "renamed", "year": "2024", "month": "01"}`},
		{"missing op", `{"id": 1, "year": "2024", "month": "01"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := LedgerEventMessageFromJSON([]byte(tc.data)); err == nil {
				t.Error("expected error")
			}
		})
	}
}
