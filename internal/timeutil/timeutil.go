// Package timeutil holds the tenant-local time arithmetic every worker
// depends on: quiet-hour windows, midnight comparisons for daily
// counters, and the human schedule formats the chat UI writes.
package timeutil

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const DefaultTimezone = "Europe/Moscow"

// Location resolves a tenant timezone, falling back to the default on
// unknown names so a bad settings row never stalls a worker.
func Location(tz string) *time.Location {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc, _ = time.LoadLocation(DefaultTimezone)
	}
	return loc
}

// TenantNow returns the current wall clock in the tenant's timezone.
func TenantNow(now time.Time, tz string) time.Time {
	return now.In(Location(tz))
}

// SameTenantDay reports whether a and b fall on the same calendar day in
// the tenant's timezone. Used for the once-per-day warmup guard.
func SameTenantDay(a, b time.Time, tz string) bool {
	loc := Location(tz)
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

// InQuietHours reports whether the tenant-local hour of now falls inside
// [start, end). A window with start > end wraps midnight:
// [start, 24) ∪ [0, end). start == end means no quiet hours.
func InQuietHours(now time.Time, tz string, start, end int) bool {
	if start == end {
		return false
	}
	hour := now.In(Location(tz)).Hour()
	if start < end {
		return hour >= start && hour < end
	}
	return hour >= start || hour < end
}

// ParseSchedule accepts the formats the chat UI produces:
//
//	HH:MM            next occurrence today or tomorrow, tenant time
//	DD.MM HH:MM      that date in the current year
//	DD.MM.YYYY HH:MM full timestamp
//
// The result is returned in UTC.
func ParseSchedule(s string, tz string, now time.Time) (time.Time, error) {
	loc := Location(tz)
	local := now.In(loc)
	s = strings.TrimSpace(s)

	if t, err := time.ParseInLocation("02.01.2006 15:04", s, loc); err == nil {
		return t.UTC(), nil
	}

	if t, err := time.ParseInLocation("02.01 15:04", s, loc); err == nil {
		t = time.Date(local.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, loc)
		return t.UTC(), nil
	}

	hh, mm, err := parseClock(s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized schedule %q: %w", s, err)
	}
	t := time.Date(local.Year(), local.Month(), local.Day(), hh, mm, 0, 0, loc)
	if !t.After(local) {
		t = t.AddDate(0, 0, 1)
	}
	return t.UTC(), nil
}

// MatchesClock reports whether the tenant-local time of now matches the
// HH:MM value to the minute. Template schedules fire on this.
func MatchesClock(now time.Time, tz string, clock string) bool {
	hh, mm, err := parseClock(clock)
	if err != nil {
		return false
	}
	local := now.In(Location(tz))
	return local.Hour() == hh && local.Minute() == mm
}

func parseClock(s string) (int, int, error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("expected HH:MM")
	}
	hh, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || hh < 0 || hh > 23 {
		return 0, 0, fmt.Errorf("bad hour %q", parts[0])
	}
	mm, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil || mm < 0 || mm > 59 {
		return 0, 0, fmt.Errorf("bad minute %q", parts[1])
	}
	return hh, mm, nil
}

// NextPeriod advances a scheduled_at by the repeat mode's period.
func NextPeriod(scheduledAt time.Time, repeatMode string) time.Time {
	switch repeatMode {
	case "weekly":
		return scheduledAt.AddDate(0, 0, 7)
	default: // daily
		return scheduledAt.AddDate(0, 0, 1)
	}
}
