package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"expensetracker/internal/core"
	"expensetracker/internal/services"
)

const maxBodyBytes = 1 << 20

var errBadBody = errors.New("Invalid request body")

// bodyParser reads a JSON object once and hands out loosely typed fields.
// Numbers and numeric strings are both accepted where a number is expected.
type bodyParser struct {
	fields map[string]any
}

func parseBody(r *http.Request) (*bodyParser, error) {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return nil, errBadBody
	}
	p := &bodyParser{fields: map[string]any{}}
	if len(bytes.TrimSpace(raw)) == 0 {
		return p, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&p.fields); err != nil {
		return nil, errBadBody
	}
	return p, nil
}

// Get returns the field as a trimmed, sanitized string.
func (p *bodyParser) Get(key string) string {
	return sanitizeInput(stringValue(p.fields[key]))
}

// Raw returns the field untouched. Passwords are not trimmed.
func (p *bodyParser) Raw(key string) string {
	return stringValue(p.fields[key])
}

func (p *bodyParser) Has(key string) bool {
	v, ok := p.fields[key]
	return ok && v != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput drops control characters other than tab and newlines.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func invalid(msg string) error {
	return &services.ValidationError{Message: msg}
}

// expenseInput reads the create and update payload.
func (p *bodyParser) expenseInput() (core.ExpenseInput, error) {
	in := core.ExpenseInput{Description: p.Get("description")}

	if !p.Has("amount") || p.Get("amount") == "" {
		return in, invalid("Amount is required")
	}
	amount, err := decimal.NewFromString(p.Get("amount"))
	if err != nil {
		return in, invalid("Invalid amount format")
	}
	in.Amount = amount

	category := p.Get("category")
	if category == "" {
		return in, invalid("Category is required")
	}
	if in.Category, err = core.ParseCategory(category); err != nil {
		return in, &services.ValidationError{Message: "Invalid category. Valid categories: " + validCategories(), Err: err}
	}

	if in.Date, err = core.ParseDate(p.Get("expense_date")); err != nil {
		if errors.Is(err, core.ErrMissingDate) {
			return in, &services.ValidationError{Message: "Expense date is required", Err: err}
		}
		return in, &services.ValidationError{Message: "Invalid date format. Use YYYY-MM-DD", Err: err}
	}
	return in, nil
}

func validCategories() string {
	names := make([]string, 0, len(core.Categories()))
	for _, c := range core.Categories() {
		names = append(names, strings.ToUpper(string(c)))
	}
	return strings.Join(names, ", ")
}

// pathID parses a positive integer URL parameter.
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}
