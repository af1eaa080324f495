package domain

import "github.com/bytedance/sonic"

// Sync event types forwarded to the calendar sync queue.
const (
	SyncItemCreated     = "item-created"
	SyncItemUpdated     = "item-updated"
	SyncItemDeleted     = "item-deleted"
	SyncItemRescheduled = "item-rescheduled"
	SyncItemCompleted   = "item-completed"
)

// SyncEvent describes a schedule mutation for downstream calendar sync.
type SyncEvent struct {
	ID        string                 `json:"id,omitempty"`
	Type      string                 `json:"type"`
	ItemID    string                 `json:"itemId"`
	Data      sonic.NoCopyRawMessage `json:"data,omitempty"`
	Timestamp int64                  `json:"timestamp"`
}

// SyncEnvelope wraps an event with the user performing it.
type SyncEnvelope struct {
	UserID string    `json:"userId"`
	Event  SyncEvent `json:"event"`
}
