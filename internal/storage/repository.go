package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"spendbook/internal/core"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"
)

// SQLiteRepository owns all persistence access for the ledger. Every
// operation is a single statement; the engine's per-statement atomicity is
// the only transactional guarantee callers get. Concurrent updates of the
// same expense id are last-write-wins.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(dbPath); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// LoadMonthExpenses returns the expenses dated within the token's month,
// newest first. An invalid token is core.ErrNotFound; a valid month with no
// expenses is an empty slice, not an error.
func (r *SQLiteRepository) LoadMonthExpenses(ctx context.Context, token core.MonthToken) ([]core.Expense, error) {
	if !token.IsValid() {
		return nil, core.ErrNotFound
	}

	start, end := token.Range()
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, description, amount, date FROM expenses
		 WHERE date >= ? AND date < ?
		 ORDER BY date DESC, id DESC`,
		start.String(), end.String())
	if err != nil {
		return nil, fmt.Errorf("query month expenses: %w", err)
	}
	defer rows.Close()

	expenses := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate month expenses: %w", err)
	}
	return expenses, nil
}

// LoadExpense retrieves a single expense by id.
func (r *SQLiteRepository) LoadExpense(ctx context.Context, id int64) (*core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, description, amount, date FROM expenses WHERE id = ?`, id)

	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// CreateExpense inserts one validated expense row and returns its id.
// Callers run core.ParseExpenseForm first; the store does not re-validate.
func (r *SQLiteRepository) CreateExpense(ctx context.Context, in core.ExpenseInput) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (description, amount, date) VALUES (?, ?, ?)`,
		in.Description, core.FormatAmount(in.Amount), in.Date.String())
	if err != nil {
		return 0, fmt.Errorf("create expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("create expense rows: %w", err)
	}
	if n != 1 {
		return 0, fmt.Errorf("create expense: expected 1 row, wrote %d", n)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("create expense id: %w", err)
	}

	slog.InfoContext(ctx, "Expense created",
		"id", id,
		"description", in.Description,
		"amount", core.FormatAmount(in.Amount),
		"date", in.Date.String())
	return id, nil
}

// UpdateExpense replaces the three mutable fields of one expense as a whole.
// Updating an id with no row is core.ErrNotFound, not a silent no-op.
func (r *SQLiteRepository) UpdateExpense(ctx context.Context, id int64, in core.ExpenseInput) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses SET description = ?, amount = ?, date = ? WHERE id = ?`,
		in.Description, core.FormatAmount(in.Amount), in.Date.String(), id)
	if err != nil {
		return fmt.Errorf("update expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update expense rows: %w", err)
	}
	if n != 1 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense updated", "id", id, "date", in.Date.String())
	return nil
}

// DeleteExpense removes one expense row; a missing id is core.ErrNotFound.
func (r *SQLiteRepository) DeleteExpense(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows: %w", err)
	}
	if n != 1 {
		return core.ErrNotFound
	}

	slog.InfoContext(ctx, "Expense deleted", "id", id)
	return nil
}

// ExpenseCount returns the total number of expense rows in the ledger.
func (r *SQLiteRepository) ExpenseCount(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM expenses`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count expenses: %w", err)
	}
	return count, nil
}

// GetUserByUsername reads one user row for credential verification.
func (r *SQLiteRepository) GetUserByUsername(ctx context.Context, username string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`,
		username)

	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

// CreateUser inserts a user with an already-hashed password.
func (r *SQLiteRepository) CreateUser(ctx context.Context, username, passwordHash string) (*core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash) VALUES (?, ?)`,
		username, passwordHash)
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("create user id: %w", err)
	}

	row := r.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, id)
	var u core.User
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt); err != nil {
		return nil, fmt.Errorf("read back user: %w", err)
	}
	return &u, nil
}

// CreateSession stores a login session token for a user.
func (r *SQLiteRepository) CreateSession(ctx context.Context, token string, userID int64, expiresAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (token, user_id, expires_at) VALUES (?, ?, ?)`,
		token, userID, expiresAt.UTC())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UserBySession resolves a session token to its user, rejecting expired
// sessions. Unknown or expired tokens are core.ErrNotFound.
func (r *SQLiteRepository) UserBySession(ctx context.Context, token string) (*core.User, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT u.id, u.username, u.password_hash, u.created_at
		 FROM sessions s JOIN users u ON s.user_id = u.id
		 WHERE s.token = ? AND s.expires_at > ?`,
		token, time.Now().UTC())

	var u core.User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("resolve session: %w", err)
	}
	return &u, nil
}

// DeleteSession removes a session token (logout).
func (r *SQLiteRepository) DeleteSession(ctx context.Context, token string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions sweeps sessions past their expiry.
func (r *SQLiteRepository) DeleteExpiredSessions(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expired session rows: %w", err)
	}
	return n, nil
}

// scanExpense reads one expense row, parsing the stored decimal amount and
// ISO date back into core types.
func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e         core.Expense
		amountStr string
		dateStr   string
	)
	if err := row.Scan(&e.ID, &e.Description, &amountStr, &dateStr); err != nil {
		return core.Expense{}, err
	}

	amount, err := decimal.NewFromString(amountStr)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse stored amount %q: %w", amountStr, err)
	}
	e.Amount = amount

	date, err := core.ParseDate(dateStr)
	if err != nil {
		return core.Expense{}, fmt.Errorf("parse stored date %q: %w", dateStr, err)
	}
	e.Date = date
	return e, nil
}
