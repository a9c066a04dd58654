package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	m, err := ParseMonth("2024-03")
	require.NoError(t, err)
	assert.Equal(t, Month{Year: 2024, Month: time.March}, m)
	assert.Equal(t, "2024-03", m.String())

	for _, bad := range []string{"", "2024-3", "2024-13", "2024-00", "24-03", "2024-03x", "2024/03", "march"} {
		_, err := ParseMonth(bad)
		assert.ErrorIs(t, err, ErrInvalidMonth, bad)
		assert.True(t, IsValidationError(err), bad)
	}
}

func TestMonthWindow(t *testing.T) {
	cases := []struct {
		token      string
		start, end time.Time
	}{
		{"2024-12", time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)},
		{"2024-02", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"2023-01", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		m, err := ParseMonth(tc.token)
		require.NoError(t, err)
		start, end := m.Window()
		assert.True(t, tc.start.Equal(start), tc.token)
		assert.True(t, tc.end.Equal(end), tc.token)
	}
}

func TestMonthContains(t *testing.T) {
	m := Month{Year: 2024, Month: time.December}
	assert.True(t, m.Contains(time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)))
	assert.True(t, m.Contains(time.Date(2024, 12, 31, 23, 59, 59, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	assert.False(t, m.Contains(time.Date(2024, 11, 30, 23, 59, 59, 0, time.UTC)))
}

func TestMonthNavigation(t *testing.T) {
	dec := Month{Year: 2024, Month: time.December}
	assert.Equal(t, Month{Year: 2025, Month: time.January}, dec.Next())
	assert.Equal(t, Month{Year: 2024, Month: time.November}, dec.Prev())
	assert.Equal(t, Month{Year: 2023, Month: time.December}, Month{Year: 2024, Month: time.January}.Prev())
}

func TestCurrentMonthUsesUTC(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	now := time.Date(2024, 4, 1, 1, 0, 0, 0, loc)
	assert.Equal(t, Month{Year: 2024, Month: time.March}, CurrentMonth(now))
}

func TestMonthText(t *testing.T) {
	var m Month
	require.NoError(t, m.UnmarshalText([]byte("2021-07")))
	b, err := m.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2021-07", string(b))
	assert.Error(t, m.UnmarshalText([]byte("2021-7")))
}
