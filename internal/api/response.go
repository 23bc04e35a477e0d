package api

import (
	"encoding/json"
	"net/http"
	"time"

	"expensetracker/internal/core"
)

// Envelope builds the {success, message, ...} body every endpoint returns.
type Envelope struct {
	status int
	fields map[string]any
}

// OK starts a successful envelope.
func OK(status int, message string) *Envelope {
	return &Envelope{
		status: status,
		fields: map[string]any{"success": true, "message": message},
	}
}

// Fail starts a failed envelope.
func Fail(status int, message string) *Envelope {
	return &Envelope{
		status: status,
		fields: map[string]any{"success": false, "message": message},
	}
}

// With adds a top-level field next to success and message.
func (e *Envelope) With(key string, value any) *Envelope {
	e.fields[key] = value
	return e
}

// Write sends the envelope as JSON.
func (e *Envelope) Write(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.status)
	_ = json.NewEncoder(w).Encode(e.fields)
}

func BadRequest(message string) *Envelope {
	return Fail(http.StatusBadRequest, message)
}

func Unauthorized() *Envelope {
	return Fail(http.StatusUnauthorized, "Invalid or expired token")
}

func NotFound(message string) *Envelope {
	return Fail(http.StatusNotFound, message)
}

func InternalError(message string) *Envelope {
	return Fail(http.StatusInternalServerError, message)
}

type (
	userView struct {
		ID        int64      `json:"id"`
		Username  string     `json:"username"`
		Email     string     `json:"email"`
		CreatedAt *time.Time `json:"created_at,omitempty"`
	}

	// expenseView renders amounts as JSON numbers with two decimals.
	expenseView struct {
		ID          int64         `json:"id"`
		Description string        `json:"description"`
		Amount      json.Number   `json:"amount"`
		Category    core.Category `json:"category"`
		ExpenseDate core.Date     `json:"expense_date"`
		CreatedAt   time.Time     `json:"created_at"`
		UpdatedAt   time.Time     `json:"updated_at"`
	}
)

func newUserView(u core.User) userView {
	return userView{ID: u.ID, Username: u.Username, Email: u.Email}
}

func newExpenseView(e core.Expense) expenseView {
	return expenseView{
		ID:          e.ID,
		Description: e.Description,
		Amount:      json.Number(e.Amount.StringFixed(2)),
		Category:    e.Category,
		ExpenseDate: e.Date,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
}

func newExpenseViews(es []core.Expense) []expenseView {
	out := make([]expenseView, len(es))
	for i, e := range es {
		out[i] = newExpenseView(e)
	}
	return out
}
