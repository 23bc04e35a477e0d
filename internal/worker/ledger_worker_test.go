package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
	"expensetracker/internal/sheets/memory"
)

type failingLedger struct{ err error }

func (f failingLedger) AppendEvent(context.Context, ports.ExpenseEvent) (string, error) {
	return "", f.err
}

// slowLedger blocks until its context ends.
type slowLedger struct{}

func (slowLedger) AppendEvent(ctx context.Context, _ ports.ExpenseEvent) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func event(kind string) ports.ExpenseEvent {
	return ports.ExpenseEvent{
		Event:      kind,
		UserID:     1,
		Expense:    core.Expense{ID: 9, Description: "Rent", Amount: core.FromCents(90000), Category: core.Utilities, Date: core.NewDate(2025, 2, 1)},
		OccurredAt: time.Now(),
	}
}

func TestLedgerWorker_HandleEvent(t *testing.T) {
	ledger := memory.New()
	w := NewLedgerWorker(ledger, nil)

	for _, kind := range []string{ports.EventCreated, ports.EventUpdated, ports.EventDeleted} {
		if err := w.HandleEvent(context.Background(), event(kind)); err != nil {
			t.Fatalf("HandleEvent(%s) error = %v", kind, err)
		}
	}

	rows := ledger.Rows()
	if len(rows) != 3 {
		t.Fatalf("ledger has %d rows, want 3", len(rows))
	}
	if rows[2][1] != ports.EventDeleted {
		t.Errorf("last row event = %s", rows[2][1])
	}
	if got := w.Stats(); got.Appended != 3 || got.Failed != 0 {
		t.Errorf("Stats() = %+v", got)
	}
}

func TestLedgerWorker_Failure(t *testing.T) {
	boom := errors.New("quota exceeded")
	w := NewLedgerWorker(failingLedger{err: boom}, nil)

	err := w.HandleEvent(context.Background(), event(ports.EventCreated))
	if !errors.Is(err, boom) {
		t.Fatalf("HandleEvent() error = %v, want wrapped %v", err, boom)
	}
	if got := w.Stats(); got.Failed != 1 {
		t.Errorf("Stats().Failed = %d, want 1", got.Failed)
	}
}

func TestLedgerWorker_Timeout(t *testing.T) {
	w := NewLedgerWorker(slowLedger{}, nil)
	w.timeout = 10 * time.Millisecond

	err := w.HandleEvent(context.Background(), event(ports.EventCreated))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("HandleEvent() error = %v, want deadline exceeded", err)
	}
}
