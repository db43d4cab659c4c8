package util

import (
	"errors"
	"strings"
	"time"
)

// TimeWindow is a half-open [From, To) filter window. A date-only upper
// bound covers the whole day.
type TimeWindow struct {
	From    time.Time
	To      time.Time
	HasFrom bool
	HasTo   bool
}

var ErrInvalidDate = errors.New("invalid date format (use YYYY-MM-DD or RFC3339)")

func parseBound(raw *string) (t time.Time, ok bool, dateOnly bool, err error) {
	if raw == nil {
		return time.Time{}, false, false, nil
	}
	s := strings.TrimSpace(*raw)
	if s == "" {
		return time.Time{}, false, false, nil
	}
	if tt, e := time.Parse(time.RFC3339, s); e == nil {
		return tt, true, false, nil
	}
	if tt, e := time.Parse("2006-01-02", s); e == nil {
		return tt, true, true, nil
	}
	return time.Time{}, false, false, ErrInvalidDate
}

// ParseTimeWindow parses optional start/end filter strings. Reversed bounds
// are swapped; whether the end is date-only follows the end input.
func ParseTimeWindow(start, end *string) (TimeWindow, error) {
	from, hasFrom, _, err := parseBound(start)
	if err != nil {
		return TimeWindow{}, err
	}
	to, hasTo, endDateOnly, err := parseBound(end)
	if err != nil {
		return TimeWindow{}, err
	}

	if hasFrom && hasTo && to.Before(from) {
		from, to = to, from
	}
	if hasTo && endDateOnly {
		to = to.AddDate(0, 0, 1)
	}

	return TimeWindow{From: from, To: to, HasFrom: hasFrom, HasTo: hasTo}, nil
}
