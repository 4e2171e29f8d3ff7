package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"spendbook/internal/core"
)

// Ledger event operations.
const (
	OpCreated = "created"
	OpUpdated = "updated"
	OpDeleted = "deleted"
)

// LedgerEventMessage announces a mutation of the expense ledger. It carries
// only the expense id, the operation, and the affected month; consumers
// fetch whatever else they need from the store.
type LedgerEventMessage struct {
	ID        int64     `json:"id"`
	Op        string    `json:"op"`
	Year      string    `json:"year"`
	Month     string    `json:"month"`
	Timestamp time.Time `json:"timestamp"`
}

// NewLedgerEventMessage builds an event for an expense id and the month
// token of the date it touches.
func NewLedgerEventMessage(id int64, op string, token core.MonthToken) *LedgerEventMessage {
	return &LedgerEventMessage{
		ID:        id,
		Op:        op,
		Year:      token.Year,
		Month:     token.Month,
		Timestamp: time.Now(),
	}
}

// MonthToken returns the month the event refers to.
func (m *LedgerEventMessage) MonthToken() core.MonthToken {
	return core.MonthToken{Year: m.Year, Month: m.Month}
}

// ToJSON converts the message to JSON bytes.
func (m *LedgerEventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// LedgerEventMessageFromJSON decodes an event message, rejecting unknown
// operations.
func LedgerEventMessageFromJSON(data []byte) (*LedgerEventMessage, error) {
	var msg LedgerEventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	switch msg.Op {
	case OpCreated, OpUpdated, OpDeleted:
		return &msg, nil
	default:
		return nil, fmt.Errorf("unknown ledger event op %q", msg.Op)
	}
}
