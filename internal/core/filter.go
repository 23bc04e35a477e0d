package core

import (
	"errors"
	"net/url"
	"strings"
	"time"
)

// Filter names a time window applied server-side to the expense query.
type Filter string

const (
	FilterAll       Filter = "all"
	FilterWeek      Filter = "week"
	FilterMonth     Filter = "month"
	FilterThreeMths Filter = "3months"
	// FilterCustom takes explicit start and end dates. Only the backend accepts it.
	FilterCustom Filter = "custom"
)

var ErrInvalidFilter = errors.New("invalid filter: must be one of all, week, month, 3months")

// Filters returns the filters a client can select.
func Filters() []Filter {
	return []Filter{FilterAll, FilterWeek, FilterMonth, FilterThreeMths}
}

// ParseFilter accepts the client-selectable filters. Empty means all.
func ParseFilter(s string) (Filter, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return FilterAll, nil
	}
	for _, f := range Filters() {
		if Filter(s) == f {
			return f, nil
		}
	}
	return "", ErrInvalidFilter
}

// Query returns the query string sent with the list request.
func (f Filter) Query() string {
	if f == "" || f == FilterAll {
		return ""
	}
	return "?filter=" + url.QueryEscape(string(f))
}

// Range returns the inclusive window ending today. ok is false for filters
// without a fixed window (all, custom, unknown).
func (f Filter) Range(today Date) (start, end Date, ok bool) {
	end = today
	switch f {
	case FilterWeek:
		start = Date{Time: today.AddDate(0, 0, -7)}
	case FilterMonth:
		start = monthsBack(today, 1)
	case FilterThreeMths:
		start = monthsBack(today, 3)
	default:
		return Date{}, Date{}, false
	}
	return start, end, true
}

func (f Filter) String() string {
	return string(f)
}

// monthsBack steps back n calendar months, clamping to the last day of the
// target month (31 March minus one month is 28 February, not 3 March).
func monthsBack(d Date, n int) Date {
	y, m, day := d.Date()
	first := time.Date(y, m-time.Month(n), 1, 0, 0, 0, 0, time.UTC)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return NewDate(first.Year(), int(first.Month()), day)
}
