package sheets

import (
	"context"

	"spendbook/internal/core"
)

// Ports for outbound statement adapters.
type (
	// StatementWriter replaces a month's statement with the given
	// expenses. Writing the same month twice must be idempotent.
	StatementWriter interface {
		WriteMonthStatement(ctx context.Context, token core.MonthToken, expenses []core.Expense) error
	}
)
