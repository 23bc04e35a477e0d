// Package memory keeps ledger rows in process, for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"

	"expensetracker/internal/ports"
	"expensetracker/internal/sheets"
)

type Ledger struct {
	mu   sync.Mutex
	rows [][]string
}

func New() *Ledger {
	return &Ledger{}
}

// AppendEvent stores the row and returns a synthetic row reference.
func (l *Ledger) AppendEvent(_ context.Context, ev ports.ExpenseEvent) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows = append(l.rows, sheets.Row(ev))
	return fmt.Sprintf("mem:%d", len(l.rows)), nil
}

// Rows returns a copy of every appended row, header excluded.
func (l *Ledger) Rows() [][]string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([][]string, len(l.rows))
	for i, r := range l.rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}

var _ ports.LedgerWriter = (*Ledger)(nil)
