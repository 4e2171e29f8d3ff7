package core

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// MaxDescriptionLen is the longest description accepted on an expense form.
const MaxDescriptionLen = 25

// amountPattern accepts non-negative currency values: digits with an
// optional decimal point and at most two fraction digits.
var amountPattern = regexp.MustCompile(`^(\d+(\.\d{1,2})?|\.\d{1,2})$`)

// Flash messages for failed field rules. The presentation layer displays
// them in form-field order, so the wording and order here are a contract.
const (
	MsgDescriptionRequired = "Description is required."
	MsgDescriptionTooLong  = "Description must be 25 characters or fewer."
	MsgAmountRequired      = "Amount is required."
	MsgAmountInvalid       = "Amount must be a non-negative currency value."
	MsgDateRequired        = "Date is required."
	MsgDateInvalid         = "Date must be a valid date in YYYY-MM-DD format."
	MsgDateFuture          = "Date cannot be in a future month."
)

// ValidationError carries the ordered list of failed-rule messages for a
// submitted expense form.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

// ExpenseInput is a normalized, validated expense submission ready for the
// ledger store.
type ExpenseInput struct {
	Description string
	Amount      decimal.Decimal
	Date        Date
}

// ParseExpenseForm validates raw form fields and produces a normalized
// expense input. Each field stops at its first failing rule, but a failure
// on one field does not suppress checks on the others; messages are ordered
// description, amount, date to match the form.
func ParseExpenseForm(description, amount, date string) (ExpenseInput, *ValidationError) {
	var in ExpenseInput
	var msgs []string

	description = strings.TrimSpace(description)
	switch {
	case description == "":
		msgs = append(msgs, MsgDescriptionRequired)
	case len([]rune(description)) > MaxDescriptionLen:
		msgs = append(msgs, MsgDescriptionTooLong)
	default:
		in.Description = description
	}

	amount = strings.TrimSpace(amount)
	switch {
	case amount == "":
		msgs = append(msgs, MsgAmountRequired)
	case !amountPattern.MatchString(amount):
		msgs = append(msgs, MsgAmountInvalid)
	default:
		d, err := decimal.NewFromString(amount)
		if err != nil {
			msgs = append(msgs, MsgAmountInvalid)
		} else {
			in.Amount = d
		}
	}

	date = strings.TrimSpace(date)
	if date == "" {
		msgs = append(msgs, MsgDateRequired)
	} else if d, err := ParseDate(date); err != nil {
		msgs = append(msgs, MsgDateInvalid)
	} else if afterCurrentMonth(d) {
		msgs = append(msgs, MsgDateFuture)
	} else {
		in.Date = d
	}

	if len(msgs) > 0 {
		return ExpenseInput{}, &ValidationError{Messages: msgs}
	}
	return in, nil
}
