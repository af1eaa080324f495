package schedule

import (
	"sync"
	"time"
)

// Move controller states.
const (
	StateIdle            = "idle"
	StatePendingMutation = "pending"
	StateUndoWindowOpen  = "undo-open"
)

// DefaultUndoWindow bounds how long a confirmed move stays undoable.
const DefaultUndoWindow = 5 * time.Second

// DateRequest is the persistence mutation produced by a move or an undo.
type DateRequest struct {
	ID   string `json:"id"`
	Date string `json:"date"`
}

// LastMove is the single retained reschedule eligible for undo. A new move
// overwrites it; there is no stack.
type LastMove struct {
	ItemID    string    `json:"itemId"`
	OldDate   string    `json:"oldDate"`
	NewDate   string    `json:"newDate"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// MoveController models drag-to-reschedule as an optimistic mutation plus a
// one-slot, time-boxed undo buffer. The zero number of retained moves is
// one: Begin overwrites, Fail discards, Undo or expiry clears.
type MoveController struct {
	clock  Clock
	window time.Duration

	mu    sync.Mutex
	state string
	last  LastMove
}

// NewMoveController creates a controller in the Idle state. A non-positive
// window falls back to DefaultUndoWindow.
func NewMoveController(clock Clock, window time.Duration) *MoveController {
	if clock == nil {
		clock = RealClock{}
	}
	if window <= 0 {
		window = DefaultUndoWindow
	}
	return &MoveController{clock: clock, window: window, state: StateIdle}
}

// Begin starts a move. Dropping an item on its own date is a no-op and
// ok is false; otherwise the controller records the move, enters
// PendingMutation and returns the optimistic persistence update the caller
// must issue.
func (c *MoveController) Begin(itemID, oldDate, newDate string) (DateRequest, bool) {
	if itemID == "" || oldDate == newDate {
		return DateRequest{}, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StatePendingMutation
	c.last = LastMove{ItemID: itemID, OldDate: oldDate, NewDate: newDate}
	return DateRequest{ID: itemID, Date: newDate}, true
}

// Confirm reports mutation success and opens the undo window.
func (c *MoveController) Confirm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePendingMutation {
		return
	}
	c.state = StateUndoWindowOpen
	c.last.ExpiresAt = c.clock.Now().Add(c.window)
}

// Fail reports mutation failure. The pending move is discarded; the caller
// reverts any speculative date it showed.
func (c *MoveController) Fail() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePendingMutation {
		return
	}
	c.state = StateIdle
	c.last = LastMove{}
}

// Undo inverts the most recent confirmed move. It returns the restoring
// persistence update, or ok false when there is nothing to undo or the
// window has expired; both cases are silent no-ops.
func (c *MoveController) Undo() (DateRequest, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUndoWindowOpen || c.clock.Now().After(c.last.ExpiresAt) {
		if c.state == StateUndoWindowOpen {
			c.state = StateIdle
			c.last = LastMove{}
		}
		return DateRequest{}, false
	}
	req := DateRequest{ID: c.last.ItemID, Date: c.last.OldDate}
	c.state = StateIdle
	c.last = LastMove{}
	return req, true
}

// Reinstate puts a consumed move back into its undo window after the
// restoring mutation failed, so the undo stays retryable until it expires.
// It is a no-op once a new move is in flight or the window has passed.
func (c *MoveController) Reinstate(move LastMove) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateIdle || c.clock.Now().After(move.ExpiresAt) {
		return
	}
	c.state = StateUndoWindowOpen
	c.last = move
}

// Last exposes the current undoable move while its window is open.
func (c *MoveController) Last() (LastMove, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateUndoWindowOpen || c.clock.Now().After(c.last.ExpiresAt) {
		return LastMove{}, false
	}
	return c.last, true
}

// State returns the controller state, folding an expired undo window back
// to Idle.
func (c *MoveController) State() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateUndoWindowOpen && c.clock.Now().After(c.last.ExpiresAt) {
		return StateIdle
	}
	return c.state
}
