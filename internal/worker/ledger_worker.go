// Package worker turns expense events into ledger rows.
package worker

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

const defaultAppendTimeout = 30 * time.Second

// Stats counts handled events since start.
type Stats struct {
	Appended int64
	Failed   int64
}

// LedgerWorker appends each event it is handed to the ledger.
type LedgerWorker struct {
	ledger  ports.LedgerWriter
	timeout time.Duration
	logger  *log.Logger

	appended atomic.Int64
	failed   atomic.Int64
}

func NewLedgerWorker(ledger ports.LedgerWriter, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWorker{
		ledger:  ledger,
		timeout: defaultAppendTimeout,
		logger:  logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent appends ev. A returned error asks the consumer to redeliver.
func (w *LedgerWorker) HandleEvent(ctx context.Context, ev ports.ExpenseEvent) error {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	ref, err := w.ledger.AppendEvent(ctx, ev)
	if err != nil {
		w.failed.Add(1)
		return fmt.Errorf("append %s for expense %d: %w", ev.Event, ev.Expense.ID, err)
	}
	w.appended.Add(1)

	w.logger.InfoContext(ctx, "Recorded expense event",
		log.FieldOperation, log.OpConsume,
		log.FieldEvent, ev.Event,
		log.FieldExpenseID, ev.Expense.ID,
		log.FieldUserID, ev.UserID,
		"row", ref)
	return nil
}

func (w *LedgerWorker) Stats() Stats {
	return Stats{Appended: w.appended.Load(), Failed: w.failed.Load()}
}
