package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func moscow(t *testing.T, value string) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	ts, err := time.ParseInLocation("2006-01-02 15:04", value, loc)
	require.NoError(t, err)
	return ts
}

func TestInQuietHours_WrappingWindow(t *testing.T) {
	// 23:00–08:00 wraps midnight.
	cases := []struct {
		clock string
		want  bool
	}{
		{"2024-03-10 00:30", true},
		{"2024-03-10 07:59", true},
		{"2024-03-10 08:00", false},
		{"2024-03-10 22:59", false},
		{"2024-03-10 23:00", true},
	}
	for _, tc := range cases {
		got := InQuietHours(moscow(t, tc.clock), "Europe/Moscow", 23, 8)
		assert.Equal(t, tc.want, got, tc.clock)
	}
}

func TestInQuietHours_PlainWindow(t *testing.T) {
	assert.True(t, InQuietHours(moscow(t, "2024-03-10 03:00"), "Europe/Moscow", 1, 6))
	assert.False(t, InQuietHours(moscow(t, "2024-03-10 06:00"), "Europe/Moscow", 1, 6))
	assert.False(t, InQuietHours(moscow(t, "2024-03-10 12:00"), "Europe/Moscow", 12, 12))
}

func TestSameTenantDay_AcrossUTCBoundary(t *testing.T) {
	// 23:30 UTC and 00:30 UTC next day are both the same Moscow day
	// (02:30 and 03:30 local).
	a := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	b := time.Date(2024, 3, 11, 0, 30, 0, 0, time.UTC)
	assert.True(t, SameTenantDay(a, b, "Europe/Moscow"))

	// 20:30 UTC and 21:30 UTC straddle Moscow midnight.
	c := time.Date(2024, 3, 10, 20, 30, 0, 0, time.UTC)
	d := time.Date(2024, 3, 10, 21, 30, 0, 0, time.UTC)
	assert.False(t, SameTenantDay(c, d, "Europe/Moscow"))
}

func TestParseSchedule_Formats(t *testing.T) {
	now := moscow(t, "2024-03-10 12:00")

	full, err := ParseSchedule("15.04.2024 09:30", "Europe/Moscow", now)
	require.NoError(t, err)
	assert.Equal(t, moscow(t, "2024-04-15 09:30").UTC(), full)

	dayMonth, err := ParseSchedule("20.03 18:00", "Europe/Moscow", now)
	require.NoError(t, err)
	assert.Equal(t, moscow(t, "2024-03-20 18:00").UTC(), dayMonth)

	// Bare clock later today stays today.
	today, err := ParseSchedule("18:00", "Europe/Moscow", now)
	require.NoError(t, err)
	assert.Equal(t, moscow(t, "2024-03-10 18:00").UTC(), today)

	// Bare clock already past rolls to tomorrow.
	tomorrow, err := ParseSchedule("09:00", "Europe/Moscow", now)
	require.NoError(t, err)
	assert.Equal(t, moscow(t, "2024-03-11 09:00").UTC(), tomorrow)

	_, err = ParseSchedule("not a time", "Europe/Moscow", now)
	assert.Error(t, err)
}

func TestMatchesClock(t *testing.T) {
	now := moscow(t, "2024-03-10 09:05")
	assert.True(t, MatchesClock(now, "Europe/Moscow", "09:05"))
	assert.False(t, MatchesClock(now, "Europe/Moscow", "09:06"))
	assert.False(t, MatchesClock(now, "Europe/Moscow", "garbage"))
}

func TestNextPeriod(t *testing.T) {
	at := time.Date(2024, 3, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, at.AddDate(0, 0, 1), NextPeriod(at, "daily"))
	assert.Equal(t, at.AddDate(0, 0, 7), NextPeriod(at, "weekly"))
}

func TestLocation_FallsBack(t *testing.T) {
	loc := Location("Not/AZone")
	assert.Equal(t, "Europe/Moscow", loc.String())
}
