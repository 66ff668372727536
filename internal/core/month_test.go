package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 12, 0, 0, 0, time.UTC)
}

func monthStrings(ms []Month) []string {
	out := make([]string, len(ms))
	for i, m := range ms {
		out[i] = m.String()
	}
	return out
}

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2025-07")
	require.NoError(t, err)
	assert.Equal(t, 2025, m.Year())
	assert.Equal(t, 7, m.Number())
	assert.Equal(t, "2025-07", m.String())

	for _, bad := range []string{"", "2025", "2025-13", "2025-00", "25-01", "2025/01", "2025-1"} {
		_, err := ParseMonth(bad)
		var ve *ValidationError
		assert.ErrorAs(t, err, &ve, "input %q", bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, "input %q", bad)
	}
}

func TestNewMonthRollsOver(t *testing.T) {
	assert.Equal(t, MustMonth("2026-01"), NewMonth(2025, 13))
	assert.Equal(t, MustMonth("2024-12"), NewMonth(2025, 0))
	assert.Equal(t, MustMonth("2025-06"), NewMonth(2025, 6))
}

func TestNextMonth(t *testing.T) {
	assert.Equal(t, "2026-01", MustMonth("2025-12").Next().String())
	assert.Equal(t, "2025-07", MustMonth("2025-06").Next().String())
	assert.Equal(t, "2025-02", MustMonth("2025-01").Next().String())
}

func TestMonthCompare(t *testing.T) {
	a, b := MustMonth("2024-12"), MustMonth("2025-01")
	assert.True(t, a.Before(b))
	assert.True(t, b.After(a))
	assert.Equal(t, 0, a.Compare(MustMonth("2024-12")))
	assert.False(t, a.After(a))
}

func TestMonthsFromStart(t *testing.T) {
	got := MonthsFromStart(MustMonth("2025-01"), at(2025, time.April, 10))
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03", "2025-04"}, monthStrings(got))
}

func TestMonthsFromStart_CurrentMonthIsSingle(t *testing.T) {
	got := MonthsFromStart(MustMonth("2025-04"), at(2025, time.April, 30))
	assert.Equal(t, []string{"2025-04"}, monthStrings(got))
}

func TestMonthsFromStart_FutureStartIsEmpty(t *testing.T) {
	assert.Empty(t, MonthsFromStart(MustMonth("2025-05"), at(2025, time.April, 1)))
}

func TestMonthsFromStart_AscendingNoGapsBoundedByNow(t *testing.T) {
	now := at(2026, time.March, 3)
	for _, start := range []string{"2023-11", "2024-12", "2025-01", "2026-03"} {
		seq := MonthsFromStart(MustMonth(start), now)
		require.NotEmpty(t, seq, start)
		assert.Equal(t, start, seq[0].String())
		for i := 1; i < len(seq); i++ {
			assert.Equal(t, seq[i-1].Next(), seq[i], "gap after %s", seq[i-1])
			assert.True(t, seq[i-1].Before(seq[i]))
		}
		last := seq[len(seq)-1]
		assert.False(t, last.After(MonthOf(now)))
		assert.Equal(t, MonthOf(now), last)
	}
}

func TestAppendMonth(t *testing.T) {
	seq := []Month{MustMonth("2025-11"), MustMonth("2025-12")}
	got := AppendMonth(seq)
	assert.Equal(t, []string{"2025-11", "2025-12", "2026-01"}, monthStrings(got))
	assert.Len(t, seq, 2, "input must not be modified")
	assert.Empty(t, AppendMonth(nil))
}

func TestDeriveMonths(t *testing.T) {
	now := at(2025, time.April, 15)

	assert.Empty(t, DeriveMonths(Period{Year: 2025}, now), "uninitialized period")

	start := MustMonth("2025-01")
	p := Period{Year: 2025, StartMonth: &start}
	assert.Equal(t, []string{"2025-01", "2025-02", "2025-03", "2025-04"}, monthStrings(DeriveMonths(p, now)))

	horizon := MustMonth("2025-06")
	p.HorizonEnd = &horizon
	assert.Equal(t,
		[]string{"2025-01", "2025-02", "2025-03", "2025-04", "2025-05", "2025-06"},
		monthStrings(DeriveMonths(p, now)))

	stale := MustMonth("2025-02")
	p.HorizonEnd = &stale
	assert.Len(t, DeriveMonths(p, now), 4, "horizon behind the wall clock changes nothing")
}

func TestDeriveMonths_HorizonBeyondFutureStart(t *testing.T) {
	start, horizon := MustMonth("2025-06"), MustMonth("2025-07")
	p := Period{Year: 2025, StartMonth: &start, HorizonEnd: &horizon}
	got := DeriveMonths(p, at(2025, time.April, 1))
	assert.Equal(t, []string{"2025-06", "2025-07"}, monthStrings(got))
}

func TestMonthTextRoundTrip(t *testing.T) {
	var m Month
	require.NoError(t, m.UnmarshalText([]byte("2025-09")))
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2025-09", string(b))
	assert.Error(t, m.UnmarshalText([]byte("September")))
}
