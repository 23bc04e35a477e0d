package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
)

var (
	ErrCustomRange     = invalid("Start date and end date are required for custom filter")
	ErrBadDate         = invalid("Invalid date format. Use YYYY-MM-DD")
	ErrExpenseNotFound = errors.New("Expense not found or access denied")
)

// ExpenseService applies the user's writes to the repository and announces
// them on the event publisher.
type ExpenseService struct {
	repo      ports.ExpenseRepository
	publisher ports.EventPublisher
	logger    *log.Logger
	audit     *log.StructuredLogger
	now       func() time.Time
}

// NewExpenseService wires the service. publisher may be nil, in which case
// no events are sent.
func NewExpenseService(repo ports.ExpenseRepository, publisher ports.EventPublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentExpenses)
	return &ExpenseService{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		audit:     log.NewStructuredLogger(logger),
		now:       time.Now,
	}
}

// List returns the user's expenses in the window named by filter. Unknown
// filters list everything. custom needs both startDate and endDate.
func (s *ExpenseService) List(ctx context.Context, userID int64, filter, startDate, endDate string) ([]core.Expense, error) {
	var q ports.ExpenseQuery

	f := core.Filter(strings.ToLower(strings.TrimSpace(filter)))
	switch f {
	case core.FilterCustom:
		if strings.TrimSpace(startDate) == "" || strings.TrimSpace(endDate) == "" {
			return nil, ErrCustomRange
		}
		from, err := core.ParseDate(startDate)
		if err != nil {
			return nil, ErrBadDate
		}
		to, err := core.ParseDate(endDate)
		if err != nil {
			return nil, ErrBadDate
		}
		q = ports.ExpenseQuery{From: from, To: to}
	default:
		if from, to, ok := f.Range(core.DateOf(s.now())); ok {
			q = ports.ExpenseQuery{From: from, To: to}
		}
	}

	expenses, err := s.repo.ListExpenses(ctx, userID, q)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	s.logger.DebugContext(ctx, "Listed expenses",
		log.FieldOperation, log.OpList,
		log.FieldUserID, userID,
		log.FieldFilter, string(f),
		log.FieldCount, len(expenses))
	return expenses, nil
}

func (s *ExpenseService) Create(ctx context.Context, userID int64, in core.ExpenseInput) (core.Expense, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Expense{}, invalidErr(err)
	}

	e, err := s.repo.CreateExpense(ctx, userID, in)
	if err != nil {
		return core.Expense{}, fmt.Errorf("save expense: %w", err)
	}

	s.audit.LogExpenseMutation(ctx, log.OpCreate, e.ID, userID, string(e.Category), e.Amount.StringFixed(2))
	s.publish(ctx, ports.EventCreated, userID, e)
	return e, nil
}

// Update replaces the editable fields of an owned expense.
func (s *ExpenseService) Update(ctx context.Context, userID, id int64, in core.ExpenseInput) (core.Expense, error) {
	in = in.Normalize()
	if err := in.Validate(); err != nil {
		return core.Expense{}, invalidErr(err)
	}

	e, err := s.repo.UpdateExpense(ctx, userID, id, in)
	if errors.Is(err, ports.ErrNotFound) {
		return core.Expense{}, ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}

	s.audit.LogExpenseMutation(ctx, log.OpUpdate, e.ID, userID, string(e.Category), e.Amount.StringFixed(2))
	s.publish(ctx, ports.EventUpdated, userID, e)
	return e, nil
}

func (s *ExpenseService) Delete(ctx context.Context, userID, id int64) error {
	// Fetch first so the event carries the removed row.
	e, err := s.repo.GetExpense(ctx, userID, id)
	if errors.Is(err, ports.ErrNotFound) {
		return ErrExpenseNotFound
	}
	if err != nil {
		return fmt.Errorf("load expense: %w", err)
	}

	if err := s.repo.DeleteExpense(ctx, userID, id); err != nil {
		if errors.Is(err, ports.ErrNotFound) {
			return ErrExpenseNotFound
		}
		return fmt.Errorf("delete expense: %w", err)
	}

	s.audit.LogExpenseMutation(ctx, log.OpDelete, e.ID, userID, string(e.Category), e.Amount.StringFixed(2))
	s.publish(ctx, ports.EventDeleted, userID, e)
	return nil
}

// publish never fails the request; the write is already committed.
func (s *ExpenseService) publish(ctx context.Context, kind string, userID int64, e core.Expense) {
	if s.publisher == nil {
		return
	}
	ev := ports.ExpenseEvent{
		Event:      kind,
		UserID:     userID,
		Expense:    e,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.PublishExpenseEvent(ctx, ev); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense event",
			log.FieldOperation, log.OpPublish,
			log.FieldEvent, kind,
			log.FieldExpenseID, e.ID,
			log.FieldError, err)
	}
}
