package core

import (
	"fmt"
	"time"
)

const monthLayout = "2006-01"

// Month is a coordinate on a period's timeline, written YYYY-MM.
// The zero value is not a valid month.
type Month struct {
	year  int
	month time.Month
}

// Clock returns the current wall-clock time.
type Clock func() time.Time

// SystemClock is the default Clock.
func SystemClock() time.Time { return time.Now() }

// NewMonth normalizes out-of-range month numbers, so NewMonth(2025, 13)
// is 2026-01.
func NewMonth(year, month int) Month {
	idx := year*12 + (month - 1)
	y, m := idx/12, idx%12
	if m < 0 {
		y--
		m += 12
	}
	return Month{year: y, month: time.Month(m + 1)}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{year: t.Year(), month: t.Month()}
}

// ParseMonth parses a YYYY-MM string.
func ParseMonth(s string) (Month, error) {
	t, err := time.Parse(monthLayout, s)
	if err != nil {
		return Month{}, Invalid("month", fmt.Errorf("%w: %q must be YYYY-MM", ErrInvalidMonth, s))
	}
	return MonthOf(t), nil
}

// MustMonth is ParseMonth for literals known to be valid.
func MustMonth(s string) Month {
	m, err := ParseMonth(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Month) Year() int { return m.year }

// Number returns the month number, 1-12.
func (m Month) Number() int { return int(m.month) }

func (m Month) IsZero() bool { return m.month == 0 }

func (m Month) String() string {
	if m.IsZero() {
		return ""
	}
	return fmt.Sprintf("%04d-%02d", m.year, int(m.month))
}

// Compare returns -1, 0 or +1 ordering by (year, month).
func (m Month) Compare(o Month) int {
	switch {
	case m.year < o.year:
		return -1
	case m.year > o.year:
		return 1
	case m.month < o.month:
		return -1
	case m.month > o.month:
		return 1
	}
	return 0
}

func (m Month) Before(o Month) bool { return m.Compare(o) < 0 }

func (m Month) After(o Month) bool { return m.Compare(o) > 0 }

// Next returns the following month; December wraps to January of the next year.
func (m Month) Next() Month {
	year, month := m.year, int(m.month)+1
	if month == 13 {
		month = 1
		year++
	}
	return Month{year: year, month: time.Month(month)}
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

// MonthsFromStart lists every month from start through the calendar month
// of now, inclusive and ascending. A start after now yields an empty slice.
func MonthsFromStart(start Month, now time.Time) []Month {
	end := MonthOf(now)
	var out []Month
	for m := start; !m.After(end); m = m.Next() {
		out = append(out, m)
	}
	return out
}

// AppendMonth extends seq by the month after its last element.
// An empty sequence stays empty: there is nothing to extend.
func AppendMonth(seq []Month) []Month {
	if len(seq) == 0 {
		return seq
	}
	out := make([]Month, len(seq), len(seq)+1)
	copy(out, seq)
	return append(out, seq[len(seq)-1].Next())
}

// DeriveMonths returns the enabled months of p. An uninitialized period
// yields an empty slice, which callers treat as "ledger not initialized".
func DeriveMonths(p Period, now time.Time) []Month {
	if p.StartMonth == nil {
		return nil
	}
	seq := MonthsFromStart(*p.StartMonth, now)
	if p.HorizonEnd == nil || p.HorizonEnd.Before(*p.StartMonth) {
		return seq
	}
	if len(seq) == 0 {
		seq = []Month{*p.StartMonth}
	}
	for seq[len(seq)-1].Before(*p.HorizonEnd) {
		seq = AppendMonth(seq)
	}
	return seq
}
