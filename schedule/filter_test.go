package schedule

import (
	"testing"
	"time"

	"schedule-api/domain"
)

// Tuesday 2024-03-05; its Sunday-start week is 2024-03-03 .. 2024-03-09.
var filterNow = time.Date(2024, 3, 5, 10, 30, 0, 0, time.Local)

func fixtureItems() []domain.ScheduledItem {
	return []domain.ScheduledItem{
		{ID: "today", Title: "Call Alice", Kind: domain.KindTask, Date: "2024-03-05", LinkedCustomerName: "Alice Tan"},
		{ID: "week", Title: "Review portfolio", Kind: domain.KindAppointment, Date: "2024-03-08", Notes: "bring PROPOSAL"},
		{ID: "month", Title: "Plan outreach", Kind: domain.KindTask, Date: "2024-03-28"},
		{ID: "far", Title: "Annual review", Kind: domain.KindAppointment, Date: "2024-06-01", LinkedCustomerName: "Bob Lee"},
		{ID: "undated", Title: "Someday", Kind: domain.KindTask},
	}
}

func TestApplyTimeRangeStages(t *testing.T) {
	testCases := map[string]struct {
		timeRange string
		want      []string
	}{
		"today": {RangeToday, []string{"today"}},
		"week":  {RangeWeek, []string{"today", "week"}},
		"month": {RangeMonth, []string{"today", "week", "month"}},
		"all":   {RangeAll, []string{"today", "week", "month", "far", "undated"}},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := Apply(fixtureItems(), Query{TimeRange: tc.timeRange, ShowCompleted: true, SortBy: ""}, Resolver{}, nil, filterNow)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d items, want %d: %#v", len(got), len(tc.want), got)
			}
			for i, id := range tc.want {
				if got[i].ID != id {
					t.Fatalf("position %d: got %q want %q", i, got[i].ID, id)
				}
			}
		})
	}
}

func TestApplyKindAndCustomerFilters(t *testing.T) {
	got := Apply(fixtureItems(), Query{TimeRange: RangeAll, Kind: domain.KindAppointment, ShowCompleted: true}, Resolver{}, nil, filterNow)
	if len(got) != 2 || got[0].ID != "week" || got[1].ID != "far" {
		t.Fatalf("kind filter failed: %#v", got)
	}

	got = Apply(fixtureItems(), Query{TimeRange: RangeAll, LinkedCustomer: "Alice Tan", ShowCompleted: true}, Resolver{}, nil, filterNow)
	if len(got) != 1 || got[0].ID != "today" {
		t.Fatalf("customer filter failed: %#v", got)
	}
}

func TestApplySearchMatchesAnyField(t *testing.T) {
	testCases := map[string]string{
		"title":    "portfolio",
		"notes":    "proposal",
		"customer": "bob",
	}
	for name, needle := range testCases {
		t.Run(name, func(t *testing.T) {
			got := Apply(fixtureItems(), Query{TimeRange: RangeAll, Search: needle, ShowCompleted: true}, Resolver{}, nil, filterNow)
			if len(got) != 1 {
				t.Fatalf("search %q matched %d items: %#v", needle, len(got), got)
			}
		})
	}
}

func TestApplyHidesCompleted(t *testing.T) {
	items := fixtureItems()
	overlay := Overlay{"today": true}
	r := NewResolver(items)

	got := Apply(items, Query{TimeRange: RangeAll, ShowCompleted: false}, r, overlay, filterNow)
	for _, it := range got {
		if it.ID == "today" {
			t.Fatalf("completed item leaked through visibility filter")
		}
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 surviving items, got %d", len(got))
	}
}

func TestApplySortOrders(t *testing.T) {
	testCases := map[string]struct {
		sortBy string
		first  string
		last   string
	}{
		"date_asc":  {SortDateAsc, "today", "undated"},
		"date_desc": {SortDateDesc, "far", "undated"},
		"title":     {SortTitle, "far", "undated"},
		"kind":      {SortKind, "week", "undated"},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			got := Apply(fixtureItems(), Query{TimeRange: RangeAll, ShowCompleted: true, SortBy: tc.sortBy}, Resolver{}, nil, filterNow)
			if got[0].ID != tc.first {
				t.Fatalf("first = %q, want %q", got[0].ID, tc.first)
			}
			if tc.sortBy == SortDateAsc || tc.sortBy == SortDateDesc {
				if got[len(got)-1].ID != tc.last {
					t.Fatalf("items without a date must sort last, got %q", got[len(got)-1].ID)
				}
			}
		})
	}
}

func TestApplyDoesNotMutateInput(t *testing.T) {
	items := fixtureItems()
	Apply(items, Query{TimeRange: RangeAll, ShowCompleted: true, SortBy: SortTitle}, Resolver{}, nil, filterNow)

	for i, want := range []string{"today", "week", "month", "far", "undated"} {
		if items[i].ID != want {
			t.Fatalf("input slice reordered at %d: %q", i, items[i].ID)
		}
	}
}

func TestTimeRangeNeverChangesSurvivorOrder(t *testing.T) {
	// Sort runs last, so narrowing the window must keep the relative order
	// of whatever survives.
	wide := Apply(fixtureItems(), Query{TimeRange: RangeAll, ShowCompleted: true, SortBy: SortDateAsc}, Resolver{}, nil, filterNow)
	narrow := Apply(fixtureItems(), Query{TimeRange: RangeWeek, ShowCompleted: true, SortBy: SortDateAsc}, Resolver{}, nil, filterNow)

	pos := map[string]int{}
	for i, it := range wide {
		pos[it.ID] = i
	}
	for i := 1; i < len(narrow); i++ {
		if pos[narrow[i-1].ID] > pos[narrow[i].ID] {
			t.Fatalf("relative order changed between windows: %q before %q", narrow[i-1].ID, narrow[i].ID)
		}
	}
}

func TestIsOverdue(t *testing.T) {
	testCases := map[string]struct {
		item domain.ScheduledItem
		done bool
		want bool
	}{
		"past_task":        {domain.ScheduledItem{Kind: domain.KindTask, Date: "2024-03-01"}, false, true},
		"past_done":        {domain.ScheduledItem{Kind: domain.KindTask, Date: "2024-03-01"}, true, false},
		"past_appointment": {domain.ScheduledItem{Kind: domain.KindAppointment, Date: "2024-03-01"}, false, false},
		"today":            {domain.ScheduledItem{Kind: domain.KindTask, Date: "2024-03-05"}, false, false},
		"future":           {domain.ScheduledItem{Kind: domain.KindTask, Date: "2024-03-09"}, false, false},
		"undated":          {domain.ScheduledItem{Kind: domain.KindTask}, false, false},
	}
	for name, tc := range testCases {
		t.Run(name, func(t *testing.T) {
			if got := IsOverdue(tc.item, tc.done, filterNow); got != tc.want {
				t.Fatalf("IsOverdue = %v, want %v", got, tc.want)
			}
		})
	}
}
