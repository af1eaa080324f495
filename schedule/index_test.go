package schedule

import (
	"testing"
	"time"

	"schedule-api/domain"
)

func day(value string) time.Time {
	d, ok := ParseDate(value)
	if !ok {
		panic("bad test date: " + value)
	}
	return d
}

func TestItemsOnDateMatchesCalendarDayOnly(t *testing.T) {
	items := []domain.ScheduledItem{
		{ID: "a", Date: "2024-03-05", Time: "09:00"},
		{ID: "b", Date: "2024-03-05"},
		{ID: "c", Date: "2024-03-06"},
		{ID: "broken", Date: "05/03/2024"},
		{ID: "empty"},
	}

	got := ItemsOnDate(items, day("2024-03-05"))
	if len(got) != 2 || got[0].ID != "a" || got[1].ID != "b" {
		t.Fatalf("unexpected result: %#v", got)
	}
}

func TestItemsInRangeInclusiveBounds(t *testing.T) {
	items := []domain.ScheduledItem{
		{ID: "before", Date: "2024-03-02"},
		{ID: "start", Date: "2024-03-03"},
		{ID: "mid", Date: "2024-03-06"},
		{ID: "end", Date: "2024-03-09"},
		{ID: "after", Date: "2024-03-10"},
	}

	got := ItemsInRange(items, day("2024-03-03"), day("2024-03-09"))
	if len(got) != 3 {
		t.Fatalf("expected 3 items, got %d: %#v", len(got), got)
	}
	if got[0].ID != "start" || got[2].ID != "end" {
		t.Fatalf("range bounds must be inclusive, got %#v", got)
	}
}

func TestBucketByDayIncludesEmptyDays(t *testing.T) {
	items := []domain.ScheduledItem{
		{ID: "b", Date: "2024-03-04"},
		{ID: "a", Date: "2024-03-04"},
		{ID: "broken", Date: "not-a-date"},
	}

	buckets := BucketByDay(items, day("2024-03-03"), day("2024-03-05"))
	if len(buckets) != 3 {
		t.Fatalf("expected a bucket per day, got %d", len(buckets))
	}
	if len(buckets[0].Items) != 0 || len(buckets[2].Items) != 0 {
		t.Fatalf("empty days must produce empty buckets")
	}
	mid := buckets[1]
	if !sameDay(mid.Date, day("2024-03-04")) || len(mid.Items) != 2 {
		t.Fatalf("unexpected middle bucket: %#v", mid)
	}
	if mid.Items[0].ID != "b" || mid.Items[1].ID != "a" {
		t.Fatalf("arrival order must be preserved inside a bucket")
	}
}

func TestMonthGridStartsSundayEndsSaturday(t *testing.T) {
	// March 2024 starts on a Friday and ends on a Sunday.
	buckets := BucketForCalendar(nil, ViewMonth, day("2024-03-15"))

	if len(buckets) == 0 || len(buckets) > 42 {
		t.Fatalf("unexpected grid size: %d", len(buckets))
	}
	if buckets[0].Date.Weekday() != time.Sunday {
		t.Fatalf("grid must start on Sunday, got %v", buckets[0].Date.Weekday())
	}
	if buckets[len(buckets)-1].Date.Weekday() != time.Saturday {
		t.Fatalf("grid must end on Saturday, got %v", buckets[len(buckets)-1].Date.Weekday())
	}
	if !sameDay(buckets[0].Date, day("2024-02-25")) {
		t.Fatalf("unexpected grid start: %v", buckets[0].Date)
	}
	if !sameDay(buckets[len(buckets)-1].Date, day("2024-04-06")) {
		t.Fatalf("unexpected grid end: %v", buckets[len(buckets)-1].Date)
	}

	seen := map[string]bool{}
	prev := buckets[0].Date.AddDate(0, 0, -1)
	coversMonth := 0
	for _, b := range buckets {
		key := b.Date.Format(DateLayout)
		if seen[key] {
			t.Fatalf("duplicate day %s in grid", key)
		}
		seen[key] = true
		if !sameDay(b.Date, prev.AddDate(0, 0, 1)) {
			t.Fatalf("gap before %s", key)
		}
		prev = b.Date
		if b.Date.Month() == time.March {
			coversMonth++
		}
	}
	if coversMonth != 31 {
		t.Fatalf("grid covers %d days of March, want 31", coversMonth)
	}
}

func TestBucketForCalendarWeekAndDay(t *testing.T) {
	week := BucketForCalendar(nil, ViewWeek, day("2024-03-05"))
	if len(week) != 7 {
		t.Fatalf("expected 7 week buckets, got %d", len(week))
	}
	if !sameDay(week[0].Date, day("2024-03-03")) || !sameDay(week[6].Date, day("2024-03-09")) {
		t.Fatalf("unexpected week window: %v .. %v", week[0].Date, week[6].Date)
	}

	single := BucketForCalendar(nil, ViewDay, day("2024-03-05"))
	if len(single) != 1 || !sameDay(single[0].Date, day("2024-03-05")) {
		t.Fatalf("unexpected day view: %#v", single)
	}
}
