package memory

import (
	"context"
	"testing"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
)

func TestLedgerAppendAndRows(t *testing.T) {
	l := New()
	ev := ports.ExpenseEvent{
		Event:   ports.EventDeleted,
		UserID:  1,
		Expense: core.Expense{ID: 5, Description: "t", Amount: core.FromCents(123), Category: core.Others},
	}

	for i, want := range []string{"mem:1", "mem:2"} {
		ref, err := l.AppendEvent(context.Background(), ev)
		if err != nil || ref != want {
			t.Fatalf("append %d: ref=%q err=%v", i, ref, err)
		}
	}

	rows := l.Rows()
	if len(rows) != 2 || rows[0][1] != "expense.deleted" || rows[0][5] != "1.23" {
		t.Fatalf("unexpected rows: %v", rows)
	}

	rows[0][1] = "mutated"
	if l.Rows()[0][1] != "expense.deleted" {
		t.Error("Rows() should return a copy")
	}
}
