package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/services"
)

type ctxKey struct{}

// Handler serves the /api routes.
type Handler struct {
	users    *services.UserService
	expenses *services.ExpenseService
	logger   *log.Logger
	errors   *log.StructuredLogger
}

func NewHandler(users *services.UserService, expenses *services.ExpenseService, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentAPI)
	return &Handler{
		users:    users,
		expenses: expenses,
		logger:   logger,
		errors:   log.NewStructuredLogger(logger),
	}
}

// Authenticate resolves the bearer token and stores the user on the request.
func (h *Handler) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		raw, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(raw) == "" {
			Unauthorized().Write(w)
			return
		}

		user, err := h.users.Authenticate(strings.TrimSpace(raw))
		if err != nil {
			log.FromContext(r.Context()).DebugContext(r.Context(), "Rejected bearer token", log.FieldError, err)
			Unauthorized().Write(w)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, user)))
	})
}

func currentUser(ctx context.Context) core.User {
	u, _ := ctx.Value(ctxKey{}).(core.User)
	return u
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	body, err := parseBody(r)
	if err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}

	user, err := h.users.Register(r.Context(), body.Get("username"), body.Get("email"), body.Raw("password"))
	if err != nil {
		if services.IsValidation(err) {
			BadRequest(err.Error()).Write(w)
			return
		}
		h.internal(r, err, log.OpRegister)
		InternalError("An error occurred while creating account").Write(w)
		return
	}

	view := newUserView(user)
	created := time.Now().UTC()
	view.CreatedAt = &created
	OK(http.StatusCreated, "Account created successfully").With("user", view).Write(w)
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	body, err := parseBody(r)
	if err != nil {
		BadRequest(err.Error()).Write(w)
		return
	}

	sess, err := h.users.Login(r.Context(), body.Get("email"), body.Raw("password"))
	if err != nil {
		if services.IsValidation(err) {
			BadRequest(err.Error()).Write(w)
			return
		}
		h.internal(r, err, log.OpLogin)
		InternalError("An error occurred during login").Write(w)
		return
	}

	OK(http.StatusOK, "Login successful").
		With("token", sess.Token).
		With("user", newUserView(sess.User)).
		Write(w)
}

func (h *Handler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user := currentUser(r.Context())

	expenses, err := h.expenses.List(r.Context(), user.ID, q.Get("filter"), q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		if services.IsValidation(err) {
			BadRequest(err.Error()).Write(w)
			return
		}
		h.internal(r, err, log.OpList)
		InternalError("An error occurred while retrieving expenses").Write(w)
		return
	}

	OK(http.StatusOK, "Expenses retrieved successfully").
		With("count", len(expenses)).
		With("expenses", newExpenseViews(expenses)).
		Write(w)
}

func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	in, ok := h.readExpense(w, r)
	if !ok {
		return
	}

	e, err := h.expenses.Create(r.Context(), currentUser(r.Context()).ID, in)
	if err != nil {
		h.writeWriteError(w, r, err, log.OpCreate, "An error occurred while creating expense")
		return
	}
	OK(http.StatusCreated, "Expense created successfully").With("expense", newExpenseView(e)).Write(w)
}

func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		BadRequest("Invalid expense id").Write(w)
		return
	}
	in, ok := h.readExpense(w, r)
	if !ok {
		return
	}

	e, err := h.expenses.Update(r.Context(), currentUser(r.Context()).ID, id, in)
	if err != nil {
		h.writeWriteError(w, r, err, log.OpUpdate, "An error occurred while updating expense")
		return
	}
	OK(http.StatusOK, "Expense updated successfully").With("expense", newExpenseView(e)).Write(w)
}

func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		BadRequest("Invalid expense id").Write(w)
		return
	}

	if err := h.expenses.Delete(r.Context(), currentUser(r.Context()).ID, id); err != nil {
		h.writeWriteError(w, r, err, log.OpDelete, "An error occurred while deleting expense")
		return
	}
	OK(http.StatusOK, "Expense deleted successfully").Write(w)
}

func (h *Handler) readExpense(w http.ResponseWriter, r *http.Request) (core.ExpenseInput, bool) {
	body, err := parseBody(r)
	if err != nil {
		BadRequest(err.Error()).Write(w)
		return core.ExpenseInput{}, false
	}
	in, err := body.expenseInput()
	if err != nil {
		BadRequest(err.Error()).Write(w)
		return core.ExpenseInput{}, false
	}
	return in, true
}

func (h *Handler) writeWriteError(w http.ResponseWriter, r *http.Request, err error, op, fallback string) {
	switch {
	case errors.Is(err, services.ErrExpenseNotFound):
		NotFound(err.Error()).Write(w)
	case services.IsValidation(err):
		BadRequest(err.Error()).Write(w)
	default:
		h.internal(r, err, op)
		InternalError(fallback).Write(w)
	}
}

func (h *Handler) internal(r *http.Request, err error, op string) {
	fields := log.NewFields().WithRequestID(requestID(r))
	h.errors.LogError(r.Context(), "Request failed", err, log.ComponentAPI, op, fields)
}
