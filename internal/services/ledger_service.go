package services

import (
	"context"
	"fmt"
	"log/slog"

	"spendbook/internal/amqp"
	"spendbook/internal/core"
	"spendbook/internal/storage"
)

// EventPublisher announces ledger mutations to interested consumers.
// *amqp.Client satisfies it; a nil publisher disables events.
type EventPublisher interface {
	PublishLedgerEvent(ctx context.Context, id int64, op string, token core.MonthToken) error
}

// LedgerService is the seam between the presentation layer and the ledger
// core. It validates submissions, drives the store, and returns typed
// outcomes; it never redirects, renders, or touches sessions.
type LedgerService struct {
	storage *storage.SQLiteRepository
	events  EventPublisher
}

func NewLedgerService(storage *storage.SQLiteRepository, events EventPublisher) *LedgerService {
	return &LedgerService{
		storage: storage,
		events:  events,
	}
}

// MonthExpenses lists the expenses of a month, newest first. An invalid
// token surfaces as core.ErrNotFound; an empty month is an empty slice.
func (s *LedgerService) MonthExpenses(ctx context.Context, token core.MonthToken) ([]core.Expense, error) {
	return s.storage.LoadMonthExpenses(ctx, token)
}

// Expense loads one expense by id.
func (s *LedgerService) Expense(ctx context.Context, id int64) (*core.Expense, error) {
	return s.storage.LoadExpense(ctx, id)
}

// CreateExpense validates the raw form fields and inserts the expense.
// A *core.ValidationError carries the ordered field messages back to the
// boundary; any other error is a storage fault.
func (s *LedgerService) CreateExpense(ctx context.Context, description, amount, date string) (*core.Expense, error) {
	in, verr := core.ParseExpenseForm(description, amount, date)
	if verr != nil {
		return nil, verr
	}

	id, err := s.storage.CreateExpense(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("save expense: %w", err)
	}

	s.publishEvent(ctx, id, amqp.OpCreated, core.TokenForDate(in.Date))

	return &core.Expense{
		ID:          id,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
	}, nil
}

// UpdateExpense validates the raw form fields and replaces the expense's
// mutable fields as a whole. Missing ids are core.ErrNotFound.
func (s *LedgerService) UpdateExpense(ctx context.Context, id int64, description, amount, date string) (*core.Expense, error) {
	in, verr := core.ParseExpenseForm(description, amount, date)
	if verr != nil {
		return nil, verr
	}

	if err := s.storage.UpdateExpense(ctx, id, in); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, id, amqp.OpUpdated, core.TokenForDate(in.Date))

	return &core.Expense{
		ID:          id,
		Description: in.Description,
		Amount:      in.Amount,
		Date:        in.Date,
	}, nil
}

// DeleteExpense removes an expense and returns the month token of its date
// so the boundary can redirect back to the month it lived in. The
// load-before-delete exists only for that redirect target; concurrent
// mutations of the same id remain last-write-wins.
func (s *LedgerService) DeleteExpense(ctx context.Context, id int64) (core.MonthToken, error) {
	expense, err := s.storage.LoadExpense(ctx, id)
	if err != nil {
		return core.MonthToken{}, err
	}
	token := core.TokenForDate(expense.Date)

	if err := s.storage.DeleteExpense(ctx, id); err != nil {
		return core.MonthToken{}, err
	}

	s.publishEvent(ctx, id, amqp.OpDeleted, token)
	return token, nil
}

// publishEvent announces a mutation. Event delivery is best effort: the
// expense is already persisted, so publish failures are logged and dropped.
func (s *LedgerService) publishEvent(ctx context.Context, id int64, op string, token core.MonthToken) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishLedgerEvent(ctx, id, op, token); err != nil {
		slog.ErrorContext(ctx, "Failed to publish ledger event",
			"id", id,
			"op", op,
			"error", err)
	}
}

// Close releases the underlying store.
func (s *LedgerService) Close() error {
	if s.storage != nil {
		if err := s.storage.Close(); err != nil {
			return fmt.Errorf("close ledger storage: %w", err)
		}
	}
	return nil
}
