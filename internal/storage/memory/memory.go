// Package memory is a process-local repository for development and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
)

type expenseRow struct {
	userID  int64
	expense core.Expense
}

type Store struct {
	mu       sync.Mutex
	users    []ports.UserRecord
	expenses map[int64]expenseRow
	nextUser int64
	nextExp  int64
	now      func() time.Time
}

func New() *Store {
	return &Store{
		expenses: make(map[int64]expenseRow),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) CreateUser(_ context.Context, username, email, passwordHash string) (core.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) || u.Username == username {
			return core.User{}, ports.ErrConflict
		}
	}
	s.nextUser++
	u := core.User{ID: s.nextUser, Username: username, Email: email}
	s.users = append(s.users, ports.UserRecord{User: u, PasswordHash: passwordHash})
	return u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (ports.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return ports.UserRecord{}, ports.ErrNotFound
}

// ListExpenses returns the owner's expenses, newest date first.
func (s *Store) ListExpenses(_ context.Context, userID int64, q ports.ExpenseQuery) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := []core.Expense{}
	for _, row := range s.expenses {
		if row.userID != userID {
			continue
		}
		d := row.expense.Date
		if !q.From.IsZero() && d.Before(q.From.Time) {
			continue
		}
		if !q.To.IsZero() && d.After(q.To.Time) {
			continue
		}
		out = append(out, row.expense)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date.Time) {
			return out[i].Date.After(out[j].Date.Time)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id int64) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.expenses[id]
	if !ok || row.userID != userID {
		return core.Expense{}, ports.ErrNotFound
	}
	return row.expense, nil
}

func (s *Store) CreateExpense(_ context.Context, userID int64, in core.ExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextExp++
	now := s.now()
	e := core.Expense{
		ID:          s.nextExp,
		Description: in.Description,
		Amount:      in.Amount,
		Category:    in.Category,
		Date:        in.Date,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.expenses[e.ID] = expenseRow{userID: userID, expense: e}
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, userID, id int64, in core.ExpenseInput) (core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.expenses[id]
	if !ok || row.userID != userID {
		return core.Expense{}, ports.ErrNotFound
	}
	e := row.expense
	e.Description = in.Description
	e.Amount = in.Amount
	e.Category = in.Category
	e.Date = in.Date
	e.UpdatedAt = s.now()
	s.expenses[id] = expenseRow{userID: userID, expense: e}
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.expenses[id]
	if !ok || row.userID != userID {
		return ports.ErrNotFound
	}
	delete(s.expenses, id)
	return nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }

var _ ports.Repository = (*Store)(nil)
