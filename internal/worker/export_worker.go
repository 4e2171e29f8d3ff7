package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"spendbook/internal/amqp"
	"spendbook/internal/core"
	applog "spendbook/internal/log"
	"spendbook/internal/sheets"
)

// ExpenseReader is the slice of the storage layer the worker needs.
type ExpenseReader interface {
	LoadMonthExpenses(ctx context.Context, token core.MonthToken) ([]core.Expense, error)
}

// EventSource delivers ledger change events. *amqp.Client satisfies it.
type EventSource interface {
	ConsumeLedgerEvents(ctx context.Context, handler func(context.Context, *amqp.LedgerEventMessage) error) error
}

// ExportWorker keeps spreadsheet statements in sync with the ledger.
// It re-exports a month whenever a change event for it arrives, and
// additionally runs a periodic catch-up over recent months so missed
// events heal on their own.
type ExportWorker struct {
	storage     ExpenseReader
	writer      sheets.StatementWriter
	events      EventSource
	interval    time.Duration
	concurrency int
	logger      *applog.Logger
}

func NewExportWorker(storage ExpenseReader, writer sheets.StatementWriter, events EventSource, interval time.Duration, concurrency int) *ExportWorker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &ExportWorker{
		storage:     storage,
		writer:      writer,
		events:      events,
		interval:    interval,
		concurrency: concurrency,
		logger:      applog.New(applog.ComponentWorker, slog.LevelInfo),
	}
}

// Run consumes events and drives the periodic catch-up until the
// context is cancelled or one of the loops fails.
func (w *ExportWorker) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if w.events != nil {
		g.Go(func() error {
			return w.events.ConsumeLedgerEvents(ctx, w.HandleEvent)
		})
	}

	g.Go(func() error {
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		// Export once at startup so a fresh worker converges immediately.
		if err := w.CatchUp(ctx, 2); err != nil {
			w.logger.WarnContext(ctx, "Initial catch-up failed", applog.FieldError, err)
		}

		for {
			select {
			case <-ticker.C:
				if err := w.CatchUp(ctx, 2); err != nil {
					w.logger.WarnContext(ctx, "Periodic catch-up failed", applog.FieldError, err)
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	})

	return g.Wait()
}

// HandleEvent re-exports the month a ledger event refers to. Returning
// an error requeues the event.
func (w *ExportWorker) HandleEvent(ctx context.Context, msg *amqp.LedgerEventMessage) error {
	token := msg.MonthToken()
	if !token.IsValid() {
		// Malformed event: drop rather than requeue forever.
		w.logger.WarnContext(ctx, "Dropping event with invalid month",
			applog.FieldExpenseID, msg.ID,
			applog.FieldYear, msg.Year,
			applog.FieldMonth, msg.Month)
		return nil
	}

	w.logger.InfoContext(ctx, "Exporting month for ledger event",
		applog.FieldExpenseID, msg.ID,
		applog.FieldOp, msg.Op,
		applog.FieldYear, token.Year,
		applog.FieldMonth, token.Month)

	return w.ExportMonth(ctx, token)
}

// ExportMonth rewrites one month's statement from the ledger.
func (w *ExportWorker) ExportMonth(ctx context.Context, token core.MonthToken) error {
	expenses, err := w.storage.LoadMonthExpenses(ctx, token)
	if err != nil {
		return fmt.Errorf("load month %s-%s: %w", token.Year, token.Month, err)
	}
	if err := w.writer.WriteMonthStatement(ctx, token, expenses); err != nil {
		return fmt.Errorf("write statement %s-%s: %w", token.Year, token.Month, err)
	}
	return nil
}

// CatchUp re-exports the current month and the previous months-1 ones,
// bounded by the configured concurrency.
func (w *ExportWorker) CatchUp(ctx context.Context, months int) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)

	for _, token := range recentMonths(months) {
		g.Go(func() error {
			return w.ExportMonth(ctx, token)
		})
	}

	return g.Wait()
}

// recentMonths lists the current month and its predecessors, newest first.
func recentMonths(n int) []core.MonthToken {
	tokens := make([]core.MonthToken, 0, n)
	token := core.CurrentMonthToken()
	for i := 0; i < n; i++ {
		tokens = append(tokens, token)
		token = token.Prev()
	}
	return tokens
}
