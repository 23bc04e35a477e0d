package postgres

import (
	"context"
	"errors"
	"os"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
)

func TestMigrateURL(t *testing.T) {
	tests := map[string]string{
		"postgres://u:p@localhost:5432/db?sslmode=disable": "pgx5://u:p@localhost:5432/db?sslmode=disable",
		"postgresql://localhost/db":                        "pgx5://localhost/db",
		"pgx5://localhost/db":                              "pgx5://localhost/db",
	}
	for in, want := range tests {
		if got := MigrateURL(in); got != want {
			t.Errorf("MigrateURL(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestRepositoryIntegration needs a disposable database in
// TEST_DATABASE_URL.
func TestRepositoryIntegration(t *testing.T) {
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	ctx := context.Background()

	repo, err := NewRepository(ctx, url, nil)
	if err != nil {
		t.Fatalf("NewRepository() error = %v", err)
	}
	defer repo.Close()

	if _, err := repo.pool.Exec(ctx, `TRUNCATE expenses, users RESTART IDENTITY CASCADE`); err != nil {
		t.Fatalf("truncate: %v", err)
	}

	u, err := repo.CreateUser(ctx, "ana", "ana@example.com", "hash")
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	if _, err := repo.CreateUser(ctx, "ana2", "ANA@example.com", "hash"); !errors.Is(err, ports.ErrConflict) {
		t.Errorf("duplicate email error = %v", err)
	}

	amount, _ := core.ParseAmount("19.99")
	e, err := repo.CreateExpense(ctx, u.ID, core.ExpenseInput{
		Description: "Shoes", Amount: amount, Category: core.Clothing, Date: core.NewDate(2025, 4, 2),
	})
	if err != nil {
		t.Fatalf("CreateExpense() error = %v", err)
	}
	if e.Amount.StringFixed(2) != "19.99" || e.Date.String() != "2025-04-02" {
		t.Errorf("round trip mismatch: %+v", e)
	}

	if err := repo.DeleteExpense(ctx, u.ID+1, e.ID); !errors.Is(err, ports.ErrNotFound) {
		t.Errorf("foreign delete error = %v", err)
	}
	if err := repo.DeleteExpense(ctx, u.ID, e.ID); err != nil {
		t.Errorf("DeleteExpense() error = %v", err)
	}
}
