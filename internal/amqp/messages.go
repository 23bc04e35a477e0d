package amqp

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/ports"
)

var ErrInvalidEvent = errors.New("invalid expense event")

// NewExpenseEvent stamps an event for a committed write.
func NewExpenseEvent(kind string, userID int64, e core.Expense) ports.ExpenseEvent {
	return ports.ExpenseEvent{
		Event:      kind,
		UserID:     userID,
		Expense:    e,
		OccurredAt: time.Now().UTC(),
	}
}

// EncodeEvent converts the event to JSON bytes.
func EncodeEvent(ev ports.ExpenseEvent) ([]byte, error) {
	return json.Marshal(ev)
}

// DecodeEvent parses and checks a message body.
func DecodeEvent(data []byte) (ports.ExpenseEvent, error) {
	var ev ports.ExpenseEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return ports.ExpenseEvent{}, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	switch ev.Event {
	case ports.EventCreated, ports.EventUpdated, ports.EventDeleted:
	default:
		return ports.ExpenseEvent{}, fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, ev.Event)
	}
	if ev.Expense.ID <= 0 || ev.UserID <= 0 {
		return ports.ExpenseEvent{}, fmt.Errorf("%w: missing ids", ErrInvalidEvent)
	}
	return ev, nil
}
