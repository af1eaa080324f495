package domain

// Preferences represents per-user view options persisted between sessions.
type Preferences struct {
	ViewMode       string `json:"viewMode"`
	TimeRange      string `json:"timeRange"`
	EventKind      string `json:"eventKind"`
	LinkedCustomer string `json:"linkedCustomer"`
	SortBy         string `json:"sortBy"`
	ShowBirthdays  bool   `json:"showBirthdays"`
	ShowCompleted  bool   `json:"showCompleted"`
}

// DefaultPreferences returns the view options applied before a user has
// saved any.
func DefaultPreferences() Preferences {
	return Preferences{
		ViewMode:       "list",
		TimeRange:      "all",
		EventKind:      "all",
		LinkedCustomer: "all",
		SortBy:         "date-asc",
		ShowBirthdays:  false,
		ShowCompleted:  true,
	}
}
