package api

import (
	"time"

	"schedule-api/domain"
)

const taskBodyMaxSize = 64 * 1024 // 64 KiB

// scheduleItem is a ScheduledItem annotated with state only the service can
// resolve: effective completion and overdue.
type scheduleItem struct {
	domain.ScheduledItem
	Done    bool `json:"done"`
	Overdue bool `json:"overdue,omitempty"`
}

// GET /api/schedule response body
type scheduleResponse struct {
	Items []scheduleItem `json:"items"`
}

// GET /api/tasks response body
type tasksResponse struct {
	Tasks []domain.ScheduledItem `json:"tasks"`
}

type calendarDay struct {
	Date  string         `json:"date"`
	Items []scheduleItem `json:"items"`
}

// GET /api/schedule/calendar response body
type calendarResponse struct {
	View  string        `json:"view"`
	Start string        `json:"start"`
	End   string        `json:"end"`
	Days  []calendarDay `json:"days"`
}

// POST /api/schedule/:id/toggle response body
type toggleResponse struct {
	ID   string `json:"id"`
	Done bool   `json:"done"`
	Mode string `json:"mode"`
}

// POST /api/schedule/:id/reschedule request body
type rescheduleRequest struct {
	OldDate string `json:"oldDate"`
	NewDate string `json:"newDate"`
}

// POST /api/schedule/:id/reschedule response body
type rescheduleResponse struct {
	ID            string    `json:"id"`
	Date          string    `json:"date"`
	UndoExpiresAt time.Time `json:"undoExpiresAt"`
}

// POST /api/schedule/undo response body
type undoResponse struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}
