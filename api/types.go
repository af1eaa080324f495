package api

import (
	"context"

	"schedule-api/domain"
)

// Storage abstracts persistence for handlers.
type Storage interface {
	ListTasks(ctx context.Context, userID string) ([]domain.ScheduledItem, error)
	ListCustomers(ctx context.Context, userID string) ([]domain.Customer, error)
	CreateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error)
	UpdateTask(ctx context.Context, userID string, item domain.ScheduledItem) (domain.ScheduledItem, error)
	PatchTaskDate(ctx context.Context, userID, id, date string) error
	PatchTaskCompletion(ctx context.Context, userID, id string, completed bool) error
	DeleteTask(ctx context.Context, userID, id string) error
	EnqueueSyncEvents(ctx context.Context, userID string, events []domain.SyncEvent) error
}

// StateStore holds per-user session state: the completion overlay and the
// schedule view preferences.
type StateStore interface {
	Overlay(ctx context.Context, userID string) (map[string]bool, error)
	SetOverlayEntry(ctx context.Context, userID, itemID string, done bool) error
	DeleteOverlayEntry(ctx context.Context, userID, itemID string) error
	Preferences(ctx context.Context, userID string) (domain.Preferences, error)
	SavePreferences(ctx context.Context, userID string, prefs domain.Preferences) error
}

// NotFoundError is implemented by storage errors for items that do not exist.
type NotFoundError interface {
	error
	NotFound()
}

// Authenticator is implemented by types able to extract user IDs from headers.
type Authenticator interface {
	UserIDFromAuthHeader(string) (string, error)
}
