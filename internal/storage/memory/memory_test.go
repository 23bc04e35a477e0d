package memory

import (
	"context"
	"errors"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
)

func input(desc string, cents int64, day int) core.ExpenseInput {
	return core.ExpenseInput{
		Description: desc,
		Amount:      core.FromCents(cents),
		Category:    core.Groceries,
		Date:        core.NewDate(2025, 3, day),
	}
}

func TestUsers(t *testing.T) {
	s := New()
	ctx := context.Background()

	u, err := s.CreateUser(ctx, "ana", "ana@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if u.ID != 1 {
		t.Errorf("first user id = %d, want 1", u.ID)
	}

	if _, err := s.CreateUser(ctx, "other", "ANA@example.com", "hash"); !errors.Is(err, ports.ErrConflict) {
		t.Errorf("duplicate email error = %v, want ErrConflict", err)
	}
	if _, err := s.CreateUser(ctx, "ana", "new@example.com", "hash"); !errors.Is(err, ports.ErrConflict) {
		t.Errorf("duplicate username error = %v, want ErrConflict", err)
	}

	rec, err := s.UserByEmail(ctx, "ana@example.com")
	if err != nil || rec.PasswordHash != "hash" {
		t.Errorf("UserByEmail() = %+v, %v", rec, err)
	}
	if _, err := s.UserByEmail(ctx, "nobody@example.com"); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("missing user error = %v", err)
	}
}

func TestExpensesOwnershipAndOrder(t *testing.T) {
	s := New()
	ctx := context.Background()

	first, _ := s.CreateExpense(ctx, 1, input("old", 100, 1))
	second, _ := s.CreateExpense(ctx, 1, input("new", 200, 5))
	_, _ = s.CreateExpense(ctx, 2, input("theirs", 300, 3))

	list, err := s.ListExpenses(ctx, 1, ports.ExpenseQuery{})
	if err != nil {
		t.Fatalf("ListExpenses() error = %v", err)
	}
	if len(list) != 2 || list[0].ID != second.ID || list[1].ID != first.ID {
		t.Fatalf("unexpected order: %+v", list)
	}

	windowed, _ := s.ListExpenses(ctx, 1, ports.ExpenseQuery{From: core.NewDate(2025, 3, 2), To: core.NewDate(2025, 3, 31)})
	if len(windowed) != 1 || windowed[0].Description != "new" {
		t.Errorf("window filter = %+v", windowed)
	}

	if _, err := s.UpdateExpense(ctx, 2, first.ID, input("stolen", 1, 1)); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("update by non-owner error = %v", err)
	}
	if err := s.DeleteExpense(ctx, 2, first.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("delete by non-owner error = %v", err)
	}

	updated, err := s.UpdateExpense(ctx, 1, first.ID, input("edited", 150, 2))
	if err != nil || updated.Description != "edited" || updated.CreatedAt != first.CreatedAt {
		t.Errorf("UpdateExpense() = %+v, %v", updated, err)
	}

	if err := s.DeleteExpense(ctx, 1, first.ID); err != nil {
		t.Errorf("DeleteExpense() error = %v", err)
	}
	if _, err := s.GetExpense(ctx, 1, first.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("deleted expense still readable: %v", err)
	}
}
