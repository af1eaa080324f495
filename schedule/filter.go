package schedule

import (
	"sort"
	"strings"
	"time"

	"schedule-api/domain"
)

// Time-range filters.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeAll   = "all"
)

// Sort orders. Items with a missing or unparseable date sort last for both
// date directions.
const (
	SortDateAsc  = "date-asc"
	SortDateDesc = "date-desc"
	SortTitle    = "title-asc"
	SortKind     = "type"
)

// FilterAll is the pass-through value for the kind and customer filters.
const FilterAll = "all"

// Query is the composable filter set applied to a raw collection before it
// reaches the calendar index or a flat list render.
type Query struct {
	TimeRange      string
	Kind           string
	LinkedCustomer string
	Search         string
	ShowCompleted  bool
	SortBy         string
}

// Apply runs the pipeline stages in their fixed order: time range, kind,
// linked customer, free-text search, completion visibility, sort. The input
// slice is never mutated, so one raw collection can back several views at
// once.
func Apply(items []domain.ScheduledItem, q Query, r Resolver, overlay Overlay, now time.Time) []domain.ScheduledItem {
	result := make([]domain.ScheduledItem, len(items))
	copy(result, items)

	if start, end, bounded := RangeWindow(q.TimeRange, now); bounded {
		result = ItemsInRange(result, start, end)
	}

	if q.Kind != "" && q.Kind != FilterAll {
		result = keep(result, func(it domain.ScheduledItem) bool {
			return it.Kind == q.Kind
		})
	}

	if q.LinkedCustomer != "" && q.LinkedCustomer != FilterAll {
		result = keep(result, func(it domain.ScheduledItem) bool {
			return it.LinkedCustomerName == q.LinkedCustomer
		})
	}

	if q.Search != "" {
		needle := strings.ToLower(q.Search)
		result = keep(result, func(it domain.ScheduledItem) bool {
			return strings.Contains(strings.ToLower(it.Title), needle) ||
				strings.Contains(strings.ToLower(it.Notes), needle) ||
				strings.Contains(strings.ToLower(it.LinkedCustomerName), needle)
		})
	}

	if !q.ShowCompleted {
		result = keep(result, func(it domain.ScheduledItem) bool {
			return !r.IsDone(it, overlay)
		})
	}

	sortItems(result, q.SortBy)
	return result
}

func keep(items []domain.ScheduledItem, pred func(domain.ScheduledItem) bool) []domain.ScheduledItem {
	out := items[:0:0]
	for _, it := range items {
		if pred(it) {
			out = append(out, it)
		}
	}
	return out
}

// RangeWindow resolves a time-range filter to inclusive day bounds. bounded
// is false for "all" and unknown values.
func RangeWindow(timeRange string, now time.Time) (start, end time.Time, bounded bool) {
	switch timeRange {
	case RangeToday:
		d := startOfDay(now)
		return d, d, true
	case RangeWeek:
		return startOfWeek(now), endOfWeek(now), true
	case RangeMonth:
		return startOfMonth(now), endOfMonth(now), true
	default:
		return time.Time{}, time.Time{}, false
	}
}

func sortItems(items []domain.ScheduledItem, sortBy string) {
	switch sortBy {
	case SortDateDesc:
		sort.SliceStable(items, func(i, j int) bool {
			di, iok := ParseDate(items[i].Date)
			dj, jok := ParseDate(items[j].Date)
			if !iok || !jok {
				return iok
			}
			return dj.Before(di)
		})
	case SortTitle:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Title < items[j].Title
		})
	case SortKind:
		sort.SliceStable(items, func(i, j int) bool {
			return items[i].Kind < items[j].Kind
		})
	case SortDateAsc, "":
		sort.SliceStable(items, func(i, j int) bool {
			di, iok := ParseDate(items[i].Date)
			dj, jok := ParseDate(items[j].Date)
			if !iok || !jok {
				return iok
			}
			return di.Before(dj)
		})
	}
}

// IsOverdue reports whether a task slipped past its date: tasks only, not
// done, dated strictly before today.
func IsOverdue(item domain.ScheduledItem, done bool, now time.Time) bool {
	if item.Kind != domain.KindTask || done {
		return false
	}
	d, ok := ParseDate(item.Date)
	if !ok {
		return false
	}
	return d.Before(startOfDay(now))
}
