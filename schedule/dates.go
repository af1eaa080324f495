package schedule

import "time"

// DateLayout is the wire format for calendar dates. The model is a fixed
// local-date/local-time one; no timezone conversions happen anywhere.
const DateLayout = "2006-01-02"

const timeOfDayLayout = "15:04"

// ParseDate parses an item date into local midnight. ok is false for empty
// or malformed values; callers drop such items from date-indexed views
// instead of failing.
func ParseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(DateLayout, value, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func parseTimeOfDay(value string) (time.Time, bool) {
	t, err := time.Parse(timeOfDayLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Weeks start on Sunday, matching the calendar grid.
func startOfWeek(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, -int(t.Weekday()))
}

func endOfWeek(t time.Time) time.Time {
	return startOfWeek(t).AddDate(0, 0, 6)
}

func startOfMonth(t time.Time) time.Time {
	y, m, _ := t.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	return startOfMonth(t).AddDate(0, 1, -1)
}
