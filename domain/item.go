package domain

// Item kinds. Kind drives the default export duration and the icon/color
// semantics owned by the client.
const (
	KindAppointment = "Appointment"
	KindTask        = "Task"
)

// SyntheticBirthday tags items derived from the customer directory. Synthetic
// items are regenerated on every query and never hit the backing store.
const SyntheticBirthday = "birthday"

// ScheduledItem represents a single schedulable entry in the read model.
// Dates are local calendar dates (YYYY-MM-DD) and times are local HH:MM;
// there is no timezone component. Completed is a pointer because the
// presence of the column on the fetched collection is itself a signal
// (see schedule.NewResolver).
type ScheduledItem struct {
	ID                 string `json:"id"`
	Title              string `json:"title"`
	Kind               string `json:"kind"`
	Date               string `json:"date"`
	Time               string `json:"time,omitempty"`
	DurationMinutes    int    `json:"durationMinutes,omitempty"`
	LinkedCustomerID   string `json:"linkedCustomerId,omitempty"`
	LinkedCustomerName string `json:"linkedCustomerName,omitempty"`
	Notes              string `json:"notes,omitempty"`
	Completed          *bool  `json:"completed,omitempty"`
	Synthetic          string `json:"synthetic,omitempty"`
}

// HasCompletedField reports whether the record carries the completed column.
func (s ScheduledItem) HasCompletedField() bool {
	return s.Completed != nil
}

// IsSynthetic reports whether the item is derived rather than persisted.
func (s ScheduledItem) IsSynthetic() bool {
	return s.Synthetic != ""
}
