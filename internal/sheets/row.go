// Package sheets defines the ledger row layout shared by the ledger writers.
package sheets

import (
	"strconv"
	"time"

	"expensetracker/internal/ports"
)

// Header is the first row of a ledger sheet.
var Header = []string{"Timestamp", "Event", "Expense ID", "User ID", "Description", "Amount", "Category", "Date"}

// Row renders ev as ledger cells in Header order.
func Row(ev ports.ExpenseEvent) []string {
	return []string{
		ev.OccurredAt.UTC().Format(time.RFC3339),
		ev.Event,
		strconv.FormatInt(ev.Expense.ID, 10),
		strconv.FormatInt(ev.UserID, 10),
		sanitizeCell(ev.Expense.Description),
		ev.Expense.Amount.StringFixed(2),
		string(ev.Expense.Category),
		ev.Expense.Date.String(),
	}
}

// sanitizeCell stops user text from being read as a formula under
// USER_ENTERED input.
func sanitizeCell(s string) string {
	if s == "" {
		return s
	}
	switch s[0] {
	case '=', '+', '-', '@':
		return "'" + s
	}
	return s
}
