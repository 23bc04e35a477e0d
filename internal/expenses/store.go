// Package expenses caches the current user's expense list.
//
// The cache is always a full snapshot for the active filter. Every successful
// write is followed by one full reload; nothing is patched locally.
package expenses

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/shopspring/decimal"

	"expensetracker/internal/apiclient"
	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

// TokenSource provides the bearer token for requests. Empty means logged out.
type TokenSource interface {
	Token() string
}

type listResponse struct {
	Success  bool           `json:"success"`
	Count    int            `json:"count"`
	Expenses []core.Expense `json:"expenses"`
}

// Store is the expense container.
type Store struct {
	client *apiclient.Client
	tokens TokenSource
	logger *log.Logger

	mu       sync.RWMutex
	expenses []core.Expense
	loading  bool
	filter   core.Filter
	editing  int64
	hasEdit  bool
}

func NewStore(client *apiclient.Client, tokens TokenSource, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.Discard()
	}
	return &Store{
		client: client,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentExpenses),
		filter: core.FilterAll,
	}
}

// Load fetches the list for the current filter. Without a token it does
// nothing. The cache is replaced only when the server reports success.
func (s *Store) Load(ctx context.Context) error {
	token := s.tokens.Token()
	if token == "" {
		return nil
	}

	s.mu.Lock()
	s.loading = true
	filter := s.filter
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	res, err := s.client.Get(ctx, "/expenses"+filter.Query(), apiclient.WithToken(token))
	if err != nil {
		s.logger.WarnContext(ctx, "Loading expenses failed",
			log.FieldOperation, log.OpList,
			log.FieldFilter, filter.String(),
			log.FieldError, err)
		return fmt.Errorf("load expenses: %w", err)
	}

	var out listResponse
	if err := res.Decode(&out); err != nil {
		return fmt.Errorf("decode expenses: %w", err)
	}
	if !out.Success {
		s.logger.InfoContext(ctx, "Expense list not loaded",
			log.FieldOperation, log.OpList,
			log.FieldStatusCode, res.StatusCode,
			"message", res.Message())
		return nil
	}

	list := out.Expenses
	if list == nil {
		list = []core.Expense{}
	}
	s.mu.Lock()
	s.expenses = list
	s.mu.Unlock()

	s.logger.DebugContext(ctx, "Expenses loaded",
		log.FieldOperation, log.OpList,
		log.FieldFilter, filter.String(),
		log.FieldCount, len(list))
	return nil
}

// Create adds an expense and reloads on success.
func (s *Store) Create(ctx context.Context, in core.ExpenseInput) (*apiclient.Response, error) {
	res, err := s.client.Post(ctx, "/expenses", in, apiclient.WithToken(s.tokens.Token()))
	if err != nil {
		return nil, fmt.Errorf("create expense: %w", err)
	}
	return res, s.afterWrite(ctx, log.OpCreate, 0, res)
}

// Update replaces an expense and reloads on success. A successful update
// also ends edit mode.
func (s *Store) Update(ctx context.Context, id int64, in core.ExpenseInput) (*apiclient.Response, error) {
	res, err := s.client.Put(ctx, expensePath(id), in, apiclient.WithToken(s.tokens.Token()))
	if err != nil {
		return nil, fmt.Errorf("update expense %d: %w", id, err)
	}
	if res.Success() {
		s.CancelEdit()
	}
	return res, s.afterWrite(ctx, log.OpUpdate, id, res)
}

// Delete removes an expense and reloads on success.
func (s *Store) Delete(ctx context.Context, id int64) (*apiclient.Response, error) {
	res, err := s.client.Delete(ctx, expensePath(id), apiclient.WithToken(s.tokens.Token()))
	if err != nil {
		return nil, fmt.Errorf("delete expense %d: %w", id, err)
	}
	return res, s.afterWrite(ctx, log.OpDelete, id, res)
}

func (s *Store) afterWrite(ctx context.Context, op string, id int64, res *apiclient.Response) error {
	if !res.Success() {
		s.logger.InfoContext(ctx, "Expense write rejected",
			log.FieldOperation, op,
			log.FieldExpenseID, id,
			log.FieldStatusCode, res.StatusCode)
		return nil
	}
	return s.Load(ctx)
}

// SetFilter switches the filter and reloads. Setting the current filter again
// is a no-op.
func (s *Store) SetFilter(ctx context.Context, f core.Filter) error {
	parsed, err := core.ParseFilter(string(f))
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.filter == parsed {
		s.mu.Unlock()
		return nil
	}
	s.filter = parsed
	s.mu.Unlock()

	return s.Load(ctx)
}

func (s *Store) StartEdit(id int64) {
	s.mu.Lock()
	s.editing, s.hasEdit = id, true
	s.mu.Unlock()
}

func (s *Store) CancelEdit() {
	s.mu.Lock()
	s.editing, s.hasEdit = 0, false
	s.mu.Unlock()
}

// EditingID returns the expense being edited, if any.
func (s *Store) EditingID() (int64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.editing, s.hasEdit
}

// Find returns a cached expense by id.
func (s *Store) Find(id int64) (core.Expense, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, e := range s.expenses {
		if e.ID == id {
			return e, true
		}
	}
	return core.Expense{}, false
}

// Expenses returns a copy of the cached list.
func (s *Store) Expenses() []core.Expense {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Expense, len(s.expenses))
	copy(out, s.expenses)
	return out
}

func (s *Store) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *Store) Filter() core.Filter {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.filter
}

func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.expenses)
}

// Total sums the cached amounts.
func (s *Store) Total() decimal.Decimal {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Total(s.expenses)
}

// FormattedTotal renders Total with two decimals.
func (s *Store) FormattedTotal() string {
	return core.FormatTotal(s.Total())
}

// Summary groups the cached list by category.
func (s *Store) Summary() []core.CategoryAmount {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.ByCategory(s.expenses)
}

// Reset drops the cached list and edit state. The filter is kept.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expenses = nil
	s.editing, s.hasEdit = 0, false
}

func expensePath(id int64) string {
	return "/expenses/" + strconv.FormatInt(id, 10)
}
