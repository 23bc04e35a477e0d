package core

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	dateLayout = "2006-01-02"

	// MaxDescriptionLength counts characters, not bytes.
	MaxDescriptionLength = 200
)

// Backends without zone information send local timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

type (
	Date struct {
		time.Time
	}

	User struct {
		ID       int64  `json:"id"`
		Username string `json:"username"`
		Email    string `json:"email"`
	}

	// Session pairs a bearer token with the user it was issued for.
	Session struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}

	Expense struct {
		ID          int64           `json:"id"`
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    Category        `json:"category"`
		Date        Date            `json:"expense_date"`
		CreatedAt   time.Time       `json:"created_at,omitempty"`
		UpdatedAt   time.Time       `json:"updated_at,omitempty"`
	}

	// ExpenseInput is the payload of create and update requests.
	ExpenseInput struct {
		Description string          `json:"description"`
		Amount      decimal.Decimal `json:"amount"`
		Category    Category        `json:"category"`
		Date        Date            `json:"expense_date"`
	}
)

var (
	ErrInvalidAmount    = errors.New("amount must be positive")
	ErrEmptyDescription = errors.New("description is required")
	ErrDescriptionLong  = errors.New("description too long (max 200 characters)")
	ErrInvalidDate      = errors.New("invalid date format. Use YYYY-MM-DD")
	ErrMissingDate      = errors.New("expense date is required")
	ErrAmountTooLarge   = errors.New("amount too large (max 9999999999.99)")
)

// Valid reports whether the session carries a token.
func (s Session) Valid() bool {
	return s.Token != ""
}

// NewDate creates a new Date from year, month, day
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar day in UTC.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Date{}, ErrMissingDate
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(dateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Some backends serialize full timestamps for date columns.
	if len(s) > len(dateLayout) {
		s = s[:len(dateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrMissingDate
	}
	return nil
}

func (in ExpenseInput) Validate() error {
	if len(strings.TrimSpace(in.Description)) == 0 {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(in.Description) > MaxDescriptionLength {
		return ErrDescriptionLong
	}
	if !in.Amount.IsPositive() {
		return ErrInvalidAmount
	}
	if in.Amount.GreaterThan(MaxAmount) {
		return ErrAmountTooLarge
	}
	if !in.Category.Valid() {
		return ErrInvalidCategory
	}
	return in.Date.Validate()
}

// Normalize trims the description and rounds the amount to cents.
func (in ExpenseInput) Normalize() ExpenseInput {
	in.Description = strings.TrimSpace(in.Description)
	in.Amount = in.Amount.Round(2)
	return in
}

// Input returns the editable fields of e.
func (e Expense) Input() ExpenseInput {
	return ExpenseInput{
		Description: e.Description,
		Amount:      e.Amount,
		Category:    e.Category,
		Date:        e.Date,
	}
}

// UnmarshalJSON accepts created_at and updated_at with or without a zone
// offset. A timestamp in any other shape is left zero.
func (e *Expense) UnmarshalJSON(b []byte) error {
	type plain Expense
	aux := struct {
		*plain
		CreatedAt json.RawMessage `json:"created_at"`
		UpdatedAt json.RawMessage `json:"updated_at"`
	}{plain: (*plain)(e)}
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	e.CreatedAt = parseTimestamp(aux.CreatedAt)
	e.UpdatedAt = parseTimestamp(aux.UpdatedAt)
	return nil
}

func parseTimestamp(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
