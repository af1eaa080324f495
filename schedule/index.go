package schedule

import (
	"time"

	"schedule-api/domain"
)

// Calendar view kinds.
const (
	ViewDay   = "day"
	ViewWeek  = "week"
	ViewMonth = "month"
)

// DayBucket pairs one calendar day with the items scheduled on it.
type DayBucket struct {
	Date  time.Time
	Items []domain.ScheduledItem
}

// ItemsOnDate returns the items whose date matches the given calendar day,
// preserving arrival order. Items with unparseable dates are skipped.
func ItemsOnDate(items []domain.ScheduledItem, date time.Time) []domain.ScheduledItem {
	out := []domain.ScheduledItem{}
	for _, it := range items {
		d, ok := ParseDate(it.Date)
		if !ok {
			continue
		}
		if sameDay(d, date) {
			out = append(out, it)
		}
	}
	return out
}

// ItemsInRange returns the items dated inside [start, end], both ends
// inclusive, preserving arrival order.
func ItemsInRange(items []domain.ScheduledItem, start, end time.Time) []domain.ScheduledItem {
	lo, hi := startOfDay(start), startOfDay(end)
	out := []domain.ScheduledItem{}
	for _, it := range items {
		d, ok := ParseDate(it.Date)
		if !ok {
			continue
		}
		if !d.Before(lo) && !d.After(hi) {
			out = append(out, it)
		}
	}
	return out
}

// BucketByDay groups items into one bucket per calendar day across
// [rangeStart, rangeEnd]. Empty days produce empty buckets because the
// calendar grid renders every cell.
func BucketByDay(items []domain.ScheduledItem, rangeStart, rangeEnd time.Time) []DayBucket {
	lo, hi := startOfDay(rangeStart), startOfDay(rangeEnd)
	if hi.Before(lo) {
		return []DayBucket{}
	}

	buckets := []DayBucket{}
	index := map[string]int{}
	for day := lo; !day.After(hi); day = day.AddDate(0, 0, 1) {
		index[day.Format(DateLayout)] = len(buckets)
		buckets = append(buckets, DayBucket{Date: day, Items: []domain.ScheduledItem{}})
	}
	for _, it := range items {
		if _, ok := ParseDate(it.Date); !ok {
			continue
		}
		if i, ok := index[it.Date]; ok {
			buckets[i].Items = append(buckets[i].Items, it)
		}
	}
	return buckets
}

// CalendarWindow resolves the day span one rendered view covers around the
// anchor date. The month grid always runs from the Sunday on or before the
// 1st to the Saturday on or after the month's last day.
func CalendarWindow(view string, anchor time.Time) (start, end time.Time) {
	switch view {
	case ViewDay:
		return startOfDay(anchor), startOfDay(anchor)
	case ViewWeek:
		return startOfWeek(anchor), endOfWeek(anchor)
	default:
		return startOfWeek(startOfMonth(anchor)), endOfWeek(endOfMonth(anchor))
	}
}

// BucketForCalendar buckets items for one rendered view around the anchor
// date.
func BucketForCalendar(items []domain.ScheduledItem, view string, anchor time.Time) []DayBucket {
	start, end := CalendarWindow(view, anchor)
	return BucketByDay(items, start, end)
}
