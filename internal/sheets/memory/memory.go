package memory

import (
	"context"
	"sync"

	"spendbook/internal/core"
	ports "spendbook/internal/sheets"
)

// Writer is an in-memory StatementWriter for tests and local runs
// without Google credentials.
type Writer struct {
	mu         sync.Mutex
	statements map[string][]core.Expense
	writes     int
}

var _ ports.StatementWriter = (*Writer)(nil)

func NewWriter() *Writer {
	return &Writer{statements: make(map[string][]core.Expense)}
}

func (w *Writer) WriteMonthStatement(ctx context.Context, token core.MonthToken, expenses []core.Expense) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	snapshot := make([]core.Expense, len(expenses))
	copy(snapshot, expenses)
	w.statements[token.Path()] = snapshot
	w.writes++
	return nil
}

// Statement returns the last statement written for the month, if any.
func (w *Writer) Statement(token core.MonthToken) ([]core.Expense, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	s, ok := w.statements[token.Path()]
	return s, ok
}

// Writes reports how many statements have been written in total.
func (w *Writer) Writes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.writes
}
