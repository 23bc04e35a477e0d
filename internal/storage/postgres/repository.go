// Package postgres stores users and expenses in PostgreSQL through pgxpool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

const uniqueViolation = "23505"

type Repository struct {
	pool   *pgxpool.Pool
	logger *log.Logger
}

// NewRepository migrates the database at databaseURL and opens a pool.
func NewRepository(ctx context.Context, databaseURL string, logger *log.Logger) (*Repository, error) {
	if logger == nil {
		logger = log.Discard()
	}
	if err := RunMigrations(databaseURL); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Repository{
		pool:   pool,
		logger: logger.WithComponent(log.ComponentStorage).With(log.FieldBackend, "postgres"),
	}, nil
}

func (r *Repository) Close() error {
	r.pool.Close()
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.pool.Ping(ctx)
}

func (r *Repository) CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error) {
	u := core.User{Username: username, Email: email}
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash) VALUES ($1, $2, $3) RETURNING id`,
		username, email, passwordHash).Scan(&u.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return core.User{}, ports.ErrConflict
		}
		return core.User{}, fmt.Errorf("insert user: %w", err)
	}
	return u, nil
}

func (r *Repository) UserByEmail(ctx context.Context, email string) (ports.UserRecord, error) {
	var rec ports.UserRecord
	err := r.pool.QueryRow(ctx,
		`SELECT id, username, email, password_hash FROM users WHERE lower(email) = lower($1)`, email).
		Scan(&rec.ID, &rec.Username, &rec.Email, &rec.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return ports.UserRecord{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.UserRecord{}, fmt.Errorf("select user: %w", err)
	}
	return rec, nil
}

// amount is read as text so the decimal keeps its exact scale.
const expenseColumns = `id, description, amount::text, category, to_char(expense_date, 'YYYY-MM-DD'), created_at, updated_at`

func (r *Repository) ListExpenses(ctx context.Context, userID int64, q ports.ExpenseQuery) ([]core.Expense, error) {
	query := `SELECT ` + expenseColumns + ` FROM expenses WHERE user_id = $1`
	args := []any{userID}
	if !q.From.IsZero() {
		args = append(args, q.From.String())
		query += fmt.Sprintf(` AND expense_date >= $%d::date`, len(args))
	}
	if !q.To.IsZero() {
		args = append(args, q.To.String())
		query += fmt.Sprintf(` AND expense_date <= $%d::date`, len(args))
	}
	query += ` ORDER BY expense_date DESC, created_at DESC, id DESC`

	rows, err := r.pool.Query(ctx, query, args...)
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
	row := r.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	return scanOne(row)
}

func (r *Repository) CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput) (core.Expense, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO expenses (user_id, description, amount, category, expense_date)
		 VALUES ($1, $2, $3::numeric, $4, $5::date)
		 RETURNING `+expenseColumns,
		userID, in.Description, in.Amount.StringFixed(2), string(in.Category), in.Date.String())
	e, err := scanOne(row)
	if err != nil {
		return core.Expense{}, fmt.Errorf("insert expense: %w", err)
	}

	r.logger.DebugContext(ctx, "Expense saved",
		log.FieldExpenseID, e.ID,
		log.FieldUserID, userID,
		log.FieldAmount, e.Amount.StringFixed(2))
	return e, nil
}

func (r *Repository) UpdateExpense(ctx context.Context, userID, id int64, in core.ExpenseInput) (core.Expense, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE expenses
		    SET description = $1, amount = $2::numeric, category = $3, expense_date = $4::date, updated_at = now()
		  WHERE id = $5 AND user_id = $6
		 RETURNING `+expenseColumns,
		in.Description, in.Amount.StringFixed(2), string(in.Category), in.Date.String(), id, userID)
	return scanOne(row)
}

func (r *Repository) DeleteExpense(ctx context.Context, userID, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM expenses WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ports.ErrNotFound
	}
	return nil
}

func scanOne(row pgx.Row) (core.Expense, error) {
	e, err := scanExpense(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Expense{}, ports.ErrNotFound
	}
	return e, err
}

func scanExpense(row pgx.Row) (core.Expense, error) {
	var (
		e                core.Expense
		amount, category string
		date             string
		created, updated time.Time
	)
	if err := row.Scan(&e.ID, &e.Description, &amount, &category, &date, &created, &updated); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.Expense{}, err
		}
		return core.Expense{}, fmt.Errorf("scan expense: %w", err)
	}

	d, err := core.ParseDate(date)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: bad date %q: %w", e.ID, date, err)
	}
	amt, err := decimal.NewFromString(amount)
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense %d: bad amount %q: %w", e.ID, amount, err)
	}
	e.Amount = amt
	e.Category = core.Category(category)
	e.Date = d
	e.CreatedAt = created.UTC()
	e.UpdatedAt = updated.UTC()
	return e, nil
}

var _ ports.Repository = (*Repository)(nil)
