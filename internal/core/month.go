package core

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// Month is a calendar month token such as 2024-03.
type Month struct {
	Year  int
	Month time.Month
}

// ParseMonth parses a strict YYYY-MM token.
func ParseMonth(s string) (Month, error) {
	if len(s) != len(monthLayout) {
		return Month{}, ErrInvalidMonth
	}
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, ErrInvalidMonth
	}
	return Month{Year: t.Year(), Month: t.Month()}, nil
}

// CurrentMonth is the default selection derived from the given wall-clock time.
func CurrentMonth(now time.Time) Month {
	now = now.UTC()
	return Month{Year: now.Year(), Month: now.Month()}
}

// MonthOf returns the month containing t, evaluated in UTC.
func MonthOf(t time.Time) Month {
	return CurrentMonth(t)
}

// Start is UTC midnight on the first day of the month.
func (m Month) Start() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// Window returns the half-open interval [start, end) covered by the month.
func (m Month) Window() (start, end time.Time) {
	start = m.Start()
	return start, start.AddDate(0, 1, 0)
}

// Contains reports whether t falls inside the month window.
func (m Month) Contains(t time.Time) bool {
	start, end := m.Window()
	return !t.Before(start) && t.Before(end)
}

func (m Month) Next() Month {
	return MonthOf(m.Start().AddDate(0, 1, 0))
}

func (m Month) Prev() Month {
	return MonthOf(m.Start().AddDate(0, -1, 0))
}

func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Month) UnmarshalText(b []byte) error {
	parsed, err := ParseMonth(string(b))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
