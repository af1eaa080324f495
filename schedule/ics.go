package schedule

import (
	"strings"
	"time"

	"schedule-api/domain"
)

const (
	icsProdID  = "-//AdvisorHub//Calendar Export//EN"
	icsCalName = "AdvisorHub Tasks & Appointments"
	icsDomain  = "advisorhub.app"

	icsStampLayout    = "20060102T150405Z"
	icsFloatingLayout = "20060102T150405"
)

// Export defaults applied only at serialization time; the stored records
// stay sparse.
const (
	defaultAppointmentMinutes = 60
	defaultTaskMinutes        = 30
)

// RFC 5545 text escaping. A single simultaneous pass keeps the backslash
// rule from re-escaping the characters the later rules introduce.
var icsEscaper = strings.NewReplacer(
	"\\", "\\\\",
	";", "\\;",
	",", "\\,",
	"\n", "\\n",
)

// EncodeICS renders the given items as one RFC 5545 VCALENDAR payload with
// CRLF line endings. It is a pure function of its inputs: two calls with
// the same items and clock value produce identical bytes. Items whose date
// or time cannot be parsed are skipped, and missing times and durations
// take their documented defaults silently.
func EncodeICS(items []domain.ScheduledItem, r Resolver, overlay Overlay, now time.Time) string {
	stamp := now.UTC().Format(icsStampLayout)

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + icsProdID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + icsCalName,
	}

	for _, it := range items {
		start, ok := eventStart(it)
		if !ok {
			continue
		}
		end := start.Add(time.Duration(exportDuration(it)) * time.Minute)

		status := "CONFIRMED"
		if r.IsDone(it, overlay) {
			status = "COMPLETED"
		}

		lines = append(lines,
			"BEGIN:VEVENT",
			"UID:"+it.ID+"@"+icsDomain,
			"DTSTAMP:"+stamp,
			"DTSTART:"+start.Format(icsFloatingLayout),
			"DTEND:"+end.Format(icsFloatingLayout),
			"SUMMARY:"+icsEscaper.Replace(it.Title),
			"DESCRIPTION:"+icsEscaper.Replace(it.Notes),
			"STATUS:"+status,
			"CATEGORIES:"+it.Kind,
		)
		if it.LinkedCustomerName != "" {
			lines = append(lines, "ATTENDEE;CN="+icsEscaper.Replace(it.LinkedCustomerName)+":MAILTO:customer@example.com")
		}
		lines = append(lines, "END:VEVENT")
	}

	lines = append(lines, "END:VCALENDAR", "")
	return strings.Join(lines, "\r\n")
}

// eventStart combines date and optional time into the floating local start.
// Items without a time start at midnight.
func eventStart(it domain.ScheduledItem) (time.Time, bool) {
	day, ok := ParseDate(it.Date)
	if !ok {
		return time.Time{}, false
	}
	if it.Time == "" {
		return day, true
	}
	tod, ok := parseTimeOfDay(it.Time)
	if !ok {
		return time.Time{}, false
	}
	return day.Add(time.Duration(tod.Hour())*time.Hour + time.Duration(tod.Minute())*time.Minute), true
}

func exportDuration(it domain.ScheduledItem) int {
	if it.DurationMinutes > 0 {
		return it.DurationMinutes
	}
	if it.Kind == domain.KindAppointment {
		return defaultAppointmentMinutes
	}
	return defaultTaskMinutes
}
