package schedule

import "schedule-api/domain"

// Overlay is the client-local completion map used for synthetic items and
// for collections whose schema has no completed column. Keys are item ids;
// ids no longer present in the source collection are simply ignored.
type Overlay map[string]bool

// Resolver answers "is this item done" for one fetched collection. Whether
// the collection tracks completion natively is decided once per fetch, not
// per item, so the decision cannot oscillate inside a query session.
type Resolver struct {
	native bool
}

// NewResolver inspects a freshly fetched collection and records whether any
// item carries the completed column.
func NewResolver(items []domain.ScheduledItem) Resolver {
	for _, it := range items {
		if it.HasCompletedField() {
			return Resolver{native: true}
		}
	}
	return Resolver{}
}

// HasNativeCompletionField reports whether completion is server-authoritative
// for the owning collection.
func (r Resolver) HasNativeCompletionField() bool {
	return r.native
}

// IsDone resolves completion for one item. Synthetic items always read the
// overlay; persisted items read the native field when the collection has
// one and the overlay otherwise. Absent state means not done.
func (r Resolver) IsDone(item domain.ScheduledItem, overlay Overlay) bool {
	if item.IsSynthetic() {
		return overlay[item.ID]
	}
	if r.native {
		return item.Completed != nil && *item.Completed
	}
	return overlay[item.ID]
}

// Toggle modes.
const (
	ToggleRemote = "remote"
	ToggleLocal  = "local"
)

// CompletionRequest is the persistence mutation produced by a remote toggle.
type CompletionRequest struct {
	ID        string `json:"id"`
	Completed bool   `json:"completed"`
}

// ToggleAction describes the single effect of a completion toggle: either a
// store mutation (Request set) or a local overlay write (ItemID/Done set).
// Exactly one of the two applies, never both.
type ToggleAction struct {
	Mode    string
	Request *CompletionRequest
	ItemID  string
	Done    bool
}

// Toggle flips completion for an item. It does not mutate the overlay; the
// caller applies overlay[ItemID] = Done for local actions, which keeps the
// resolver re-entrant across concurrent views.
func (r Resolver) Toggle(item domain.ScheduledItem, overlay Overlay) ToggleAction {
	if !item.IsSynthetic() && r.native {
		return ToggleAction{
			Mode:    ToggleRemote,
			Request: &CompletionRequest{ID: item.ID, Completed: !r.IsDone(item, overlay)},
		}
	}
	return ToggleAction{
		Mode:   ToggleLocal,
		ItemID: item.ID,
		Done:   !r.IsDone(item, overlay),
	}
}
