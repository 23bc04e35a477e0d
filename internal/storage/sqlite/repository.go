// Package sqlite stores users and expenses in a local SQLite file.
//
// Amounts are kept as integer cents and dates as YYYY-MM-DD text, which
// sorts correctly as a string.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

type Repository struct {
	db     *sql.DB
	logger *log.Logger
	now    func() time.Time
}

// NewRepository opens the database at dbPath, creating the directory and
// running migrations as needed.
func NewRepository(dbPath string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create db directory: %w", err)
		}
	}

	if err := RunMigrations(dbPath); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Repository{
		db:     db,
		logger: logger.WithComponent(log.ComponentStorage).With(log.FieldBackend, "sqlite"),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func (r *Repository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO users (username, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		username, email, passwordHash, r.now().Format(timeLayout))
	if err != nil {
		if isUniqueViolation(err) {
			return core.User{}, ports.ErrConflict
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.User{}, fmt.Errorf("user id: %w", err)
	}
	return core.User{ID: id, Username: username, Email: email}, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (ports.UserRecord, error) {
	var rec ports.UserRecord
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, email, password_hash FROM users WHERE email = ?`, email).
		Scan(&rec.ID, &rec.Username, &rec.Email, &rec.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.UserRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.UserRecord{}, fmt.Errorf("select user: %w", err)
	}
	return rec, nil
}

const expenseColumns = `id, description, amount_cents, category, expense_date, created_at, updated_at`

func (r *Repository) ListExpenses(ctx context.Context, userID int64, q ports.ExpenseQuery) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = ?`
	args := []any{userID}
	if !q.From.IsZero() {
		query += ` AND expense_date >= ?`
		args = append(args, q.From.String())
	}
	if !q.To.IsZero() {
		query += ` AND expense_date <= ?`
		args = append(args, q.To.String())
	}
	query += ` ORDER BY expense_date DESC, created_at DESC, id DESC`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	out := []core.Expense{}
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return out, nil
}

func (r *Repository) GetExpense(ctx context.Context, userID, id int64) (core.Expense, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	e, err := scanExpense(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, ports.ErrNotFound
	}
	return e, err
}

func (r *Repository) CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput) (core.Expense, error) {
	now := r.now().Format(timeLayout)
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO expenses (user_id, description, amount_cents, category, expense_date, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		userID, in.Description, core.Cents(in.Amount), string(in.Category), in.Date.String(), now, now)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense id: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved",
		log.FieldExpenseID, id,
		log.FieldUserID, userID,
		log.FieldAmount, in.Amount.StringFixed(2))
	return r.GetExpense(ctx, userID, id)
}

func (r *Repository) UpdateExpense(ctx context.Context, userID, id int64, in core.ExpenseInput) (core.Expense, error) {
	res, err := r.db.ExecContext(ctx,
		`UPDATE expenses
		    SET description = ?, amount_cents = ?, category = ?, expense_date = ?, updated_at = ?
		  WHERE id = ? AND user_id = ?`,
		in.Description, core.Cents(in.Amount), string(in.Category), in.Date.String(), r.now().Format(timeLayout),
		id, userID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	} else if n == 0 {
		return core.Expense{}, ports.ErrNotFound
	}
	return r.GetExpense(ctx, userID, id)
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id int64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanExpense(s scanner) (core.Expense, error) {
	var (
		e                core.Expense
		cents            int64
		category, date   string
		created, updated string
	)
	if err := s.Scan(&e.ID, &e.Description, &cents, &category, &date, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: bad date %q: %w", e.ID, date, err)
	}
	e.Amount = core.FromCents(cents)
	e.Category = core.Category(category)
	e.Date = d
	e.CreatedAt, _ = time.Parse(timeLayout, created)
	e.UpdatedAt, _ = time.Parse(timeLayout, updated)
	return e, nil
}

func isUniqueViolation(err error) bool {
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

var _ ports.Repository = (*Repository)(nil)
