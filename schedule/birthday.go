package schedule

import (
	"fmt"
	"time"

	"schedule-api/domain"
)

// BirthdayWindow resolves the active time-range filter to the window used
// for birthday synthesis. "all" falls back to the current calendar month so
// an unbounded list view does not project birthdays years ahead.
func BirthdayWindow(timeRange string, now time.Time) (start, end time.Time) {
	switch timeRange {
	case RangeToday:
		d := startOfDay(now)
		return d, d
	case RangeWeek:
		return startOfWeek(now), endOfWeek(now)
	default:
		return startOfMonth(now), endOfMonth(now)
	}
}

// SynthesizeBirthdays derives one non-persisted task per customer whose
// birthday (month/day of birth) falls inside [start, end]. Windows that
// cross a year boundary also consider the occurrence in the following year.
// Customers without a name or a parseable date of birth are skipped.
//
// The derived id is namespaced (birthday:<customerId>:<date>) so it can
// never collide with a store-assigned id, and the items are regenerated
// fresh on every call.
func SynthesizeBirthdays(customers []domain.Customer, start, end time.Time) []domain.ScheduledItem {
	lo, hi := startOfDay(start), startOfDay(end)
	items := []domain.ScheduledItem{}
	for _, c := range customers {
		if c.Name == "" {
			continue
		}
		dob, ok := ParseDate(c.DateOfBirth)
		if !ok {
			continue
		}
		occurrence := time.Date(lo.Year(), dob.Month(), dob.Day(), 0, 0, 0, 0, lo.Location())
		candidates := []time.Time{occurrence}
		if occurrence.Before(lo) {
			candidates = append(candidates, occurrence.AddDate(1, 0, 0))
		}
		for _, day := range candidates {
			if day.Before(lo) || day.After(hi) {
				continue
			}
			date := day.Format(DateLayout)
			items = append(items, domain.ScheduledItem{
				ID:                 fmt.Sprintf("birthday:%s:%s", c.ID, date),
				Title:              "Birthday: " + c.Name,
				Kind:               domain.KindTask,
				Date:               date,
				LinkedCustomerID:   c.ID,
				LinkedCustomerName: c.Name,
				Notes:              "Wish customer happy birthday",
				Synthetic:          domain.SyntheticBirthday,
			})
			break
		}
	}
	return items
}
