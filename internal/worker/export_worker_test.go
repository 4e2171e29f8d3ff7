package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spendbook/internal/amqp"
	"spendbook/internal/core"
	"spendbook/internal/sheets/memory"
)

type fakeReader struct {
	byMonth map[string][]core.Expense
	err     error
}

func (f *fakeReader) LoadMonthExpenses(ctx context.Context, token core.MonthToken) ([]core.Expense, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.byMonth[token.Path()], nil
}

func expense(id int64, description, amount, date string) core.Expense {
	d, _ := core.ParseDate(date)
	a, _ := decimal.NewFromString(amount)
	return core.Expense{ID: id, Description: description, Amount: a, Date: d}
}

func TestHandleEventExportsMonth(t *testing.T) {
	reader := &fakeReader{byMonth: map[string][]core.Expense{
		"/2020/05": {
			expense(1, "groceries", "42.50", "2020-05-10"),
			expense(2, "coffee", "3.00", "2020-05-02"),
		},
	}}
	writer := memory.NewWriter()
	w := NewExportWorker(reader, writer, nil, time.Minute, 2)

	msg := amqp.NewLedgerEventMessage(1, amqp.OpCreated, core.MonthToken{Year: "2020", Month: "05"})
	require.NoError(t, w.HandleEvent(context.Background(), msg))

	statement, ok := writer.Statement(core.MonthToken{Year: "2020", Month: "05"})
	require.True(t, ok)
	assert.Len(t, statement, 2)
	assert.Equal(t, "groceries", statement[0].Description)
}

func TestHandleEventDropsInvalidMonth(t *testing.T) {
	writer := memory.NewWriter()
	w := NewExportWorker(&fakeReader{}, writer, nil, time.Minute, 2)

	msg := amqp.NewLedgerEventMessage(1, amqp.OpCreated, core.MonthToken{Year: "1999", Month: "05"})
	require.NoError(t, w.HandleEvent(context.Background(), msg))
	assert.Zero(t, writer.Writes())
}

func TestHandleEventRequeuesOnStorageError(t *testing.T) {
	reader := &fakeReader{err: errors.New("db locked")}
	w := NewExportWorker(reader, memory.NewWriter(), nil, time.Minute, 2)

	msg := amqp.NewLedgerEventMessage(1, amqp.OpUpdated, core.MonthToken{Year: "2020", Month: "05"})
	assert.Error(t, w.HandleEvent(context.Background(), msg))
}

func TestExportMonthEmptyMonthStillWritten(t *testing.T) {
	writer := memory.NewWriter()
	w := NewExportWorker(&fakeReader{byMonth: map[string][]core.Expense{}}, writer, nil, time.Minute, 2)

	token := core.MonthToken{Year: "2020", Month: "05"}
	require.NoError(t, w.ExportMonth(context.Background(), token))

	statement, ok := writer.Statement(token)
	require.True(t, ok)
	assert.Empty(t, statement)
}

func TestCatchUpExportsRecentMonths(t *testing.T) {
	writer := memory.NewWriter()
	w := NewExportWorker(&fakeReader{}, writer, nil, time.Minute, 2)

	require.NoError(t, w.CatchUp(context.Background(), 2))
	assert.Equal(t, 2, writer.Writes())

	current := core.CurrentMonthToken()
	_, ok := writer.Statement(current)
	assert.True(t, ok)
	_, ok = writer.Statement(current.Prev())
	assert.True(t, ok)
}
