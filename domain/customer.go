package domain

// Customer is the slice of the directory record the scheduler needs. The
// directory is read-only here; it exists solely to label linked items and
// to derive synthetic birthday entries.
type Customer struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DateOfBirth string `json:"dateOfBirth,omitempty"`
}
