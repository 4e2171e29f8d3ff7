package core

import (
	"errors"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical date layout used on the wire and in storage.
const DateFormat = "2006-01-02"

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrAuthFailed   = errors.New("invalid credentials")
)

type (
	// Date is a calendar date with day granularity and no time component.
	Date struct {
		time.Time
	}

	// Expense is a persisted ledger record. Amount is a decimal so currency
	// values never round-trip through binary floats.
	Expense struct {
		ID          int64
		Description string
		Amount      decimal.Decimal
		Date        Date
	}

	// User is read-only for the ledger core; rows are written by cmd/adduser.
	User struct {
		ID           int64
		Username     string
		PasswordHash string
		CreatedAt    time.Time
	}
)

// NewDate creates a Date from year, month, day (normalized, UTC midnight).
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a strict YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, err
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	return d.Format(DateFormat)
}

// DayName returns the short weekday name ("Mon", "Tue", ...) for display.
func (d Date) DayName() string {
	return d.Format("Mon")
}

// ParseExpenseID parses an expense id from its request representation.
// A structurally malformed id is ErrInvalidInput, not a storage lookup.
func ParseExpenseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id < 1 {
		return 0, ErrInvalidInput
	}
	return id, nil
}

// FormatAmount renders a decimal amount with exactly two fraction digits.
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// SumAmounts totals the amounts of the given expenses.
func SumAmounts(expenses []Expense) decimal.Decimal {
	total := decimal.Zero
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}
