// Package ports declares the outbound interfaces of the reference backend.
package ports

import (
	"context"
	"errors"
	"time"

	"expensetracker/internal/core"
)

var (
	ErrNotFound = errors.New("not found")
	ErrConflict = errors.New("already exists")
)

type (
	// UserRecord is a stored user with its password hash.
	UserRecord struct {
		core.User
		PasswordHash string
	}

	// ExpenseQuery bounds a listing by expense date. Zero dates are open ends.
	ExpenseQuery struct {
		From core.Date
		To   core.Date
	}

	UserRepository interface {
		// CreateUser returns ErrConflict when the email or username is taken.
		CreateUser(ctx context.Context, username, email, passwordHash string) (core.User, error)
		UserByEmail(ctx context.Context, email string) (UserRecord, error)
	}

	// ExpenseRepository scopes every call to one owner. Expenses owned by
	// someone else behave as missing.
	ExpenseRepository interface {
		ListExpenses(ctx context.Context, userID int64, q ExpenseQuery) ([]core.Expense, error)
		GetExpense(ctx context.Context, userID, id int64) (core.Expense, error)
		CreateExpense(ctx context.Context, userID int64, in core.ExpenseInput) (core.Expense, error)
		UpdateExpense(ctx context.Context, userID, id int64, in core.ExpenseInput) (core.Expense, error)
		DeleteExpense(ctx context.Context, userID, id int64) error
	}

	Repository interface {
		UserRepository
		ExpenseRepository
		Ping(ctx context.Context) error
		Close() error
	}
)

// Expense event kinds.
const (
	EventCreated = "expense.created"
	EventUpdated = "expense.updated"
	EventDeleted = "expense.deleted"
)

type (
	// ExpenseEvent describes a committed expense write.
	ExpenseEvent struct {
		Event      string       `json:"event"`
		UserID     int64        `json:"user_id"`
		Expense    core.Expense `json:"expense"`
		OccurredAt time.Time    `json:"occurred_at"`
	}

	EventPublisher interface {
		PublishExpenseEvent(ctx context.Context, ev ExpenseEvent) error
	}

	// LedgerWriter appends one row per event to an external ledger.
	LedgerWriter interface {
		AppendEvent(ctx context.Context, ev ExpenseEvent) (rowRef string, err error)
	}
)
