package api

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"schedule-api/domain"
	"schedule-api/schedule"
)

// Register wires up all API routes on the provided Echo instance and starts
// the calendar sync sender. The returned sender should be shut down when the
// process exits.
func Register(e *echo.Echo, store Storage, state StateStore, auth Authenticator, logger *log.Logger, undoWindow time.Duration) *SyncSender {
	sender := NewSyncSender(store, logger)
	moves := newMoveRegistry(schedule.RealClock{}, undoWindow)

	e.GET("/api/schedule", getSchedule(store, state, auth, logger))
	e.GET("/api/schedule/calendar", getCalendar(store, state, auth))
	e.GET("/api/schedule/export.ics", exportICS(store, state, auth))
	e.POST("/api/schedule/:id/toggle", postToggle(store, state, auth, sender))
	e.POST("/api/schedule/:id/reschedule", postReschedule(store, auth, moves, sender))
	e.POST("/api/schedule/undo", postUndo(store, auth, moves, sender))
	e.GET("/api/preferences", getPreferences(state, auth))
	e.PUT("/api/preferences", putPreferences(state, auth))
	e.GET("/api/tasks", getTasks(store, auth))
	e.POST("/api/tasks", postTask(store, auth, sender))
	e.PUT("/api/tasks/:id", putTask(store, auth, sender))
	e.DELETE("/api/tasks/:id", deleteTask(store, state, auth, sender))
	e.GET("/healthz", healthz())

	return sender
}

// moveRegistry holds one reschedule controller per user. Undo state is
// instance-local: the window is seconds wide, so it survives exactly as long
// as it would have in the client that initiated the move.
type moveRegistry struct {
	clock  schedule.Clock
	window time.Duration

	mu     sync.Mutex
	byUser map[string]*schedule.MoveController
}

func newMoveRegistry(clock schedule.Clock, window time.Duration) *moveRegistry {
	return &moveRegistry{
		clock:  clock,
		window: window,
		byUser: map[string]*schedule.MoveController{},
	}
}

func (r *moveRegistry) get(userID string) *schedule.MoveController {
	r.mu.Lock()
	defer r.mu.Unlock()
	ctrl, ok := r.byUser[userID]
	if !ok {
		ctrl = schedule.NewMoveController(r.clock, r.window)
		r.byUser[userID] = ctrl
	}
	return ctrl
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// scheduleQuery builds the pipeline query from the stored preferences, with
// any provided query parameter overriding its stored counterpart.
func scheduleQuery(c echo.Context, prefs domain.Preferences) schedule.Query {
	q := schedule.Query{
		TimeRange:      prefs.TimeRange,
		Kind:           prefs.EventKind,
		LinkedCustomer: prefs.LinkedCustomer,
		SortBy:         prefs.SortBy,
		ShowCompleted:  prefs.ShowCompleted,
	}
	if v := c.QueryParam("range"); v != "" {
		q.TimeRange = v
	}
	if v := c.QueryParam("kind"); v != "" {
		q.Kind = v
	}
	if v := c.QueryParam("customer"); v != "" {
		q.LinkedCustomer = v
	}
	if v := c.QueryParam("sort"); v != "" {
		q.SortBy = v
	}
	if v := c.QueryParam("completed"); v != "" {
		q.ShowCompleted = boolParam(v)
	}
	q.Search = c.QueryParam("q")
	return q
}

func boolParam(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		return true
	default:
		return false
	}
}

func annotate(items []domain.ScheduledItem, r schedule.Resolver, overlay schedule.Overlay, now time.Time) []scheduleItem {
	out := make([]scheduleItem, 0, len(items))
	for _, it := range items {
		done := r.IsDone(it, overlay)
		out = append(out, scheduleItem{
			ScheduledItem: it,
			Done:          done,
			Overdue:       schedule.IsOverdue(it, done, now),
		})
	}
	return out
}

// loadOverlay degrades to an empty overlay on state-store failure: a pure
// read must not 500 because redis is away.
func loadOverlay(c echo.Context, state StateStore, userID string) (schedule.Overlay, bool) {
	raw, err := state.Overlay(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Warnf("overlay unavailable, serving without: %v", err)
		return schedule.Overlay{}, false
	}
	return schedule.Overlay(raw), true
}

func loadPreferences(c echo.Context, state StateStore, userID string) domain.Preferences {
	prefs, err := state.Preferences(c.Request().Context(), userID)
	if err != nil {
		c.Logger().Warnf("preferences unavailable, using defaults: %v", err)
		return domain.DefaultPreferences()
	}
	return prefs
}

func storageErrStatus(err error) int {
	var nf NotFoundError
	if errors.As(err, &nf) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

func newSyncEvent(eventType, itemID string, payload any) domain.SyncEvent {
	ev := domain.SyncEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		ItemID:    itemID,
		Timestamp: nextTimestamp(),
	}
	if payload != nil {
		if data, err := sonic.Marshal(payload); err == nil {
			ev.Data = sonic.NoCopyRawMessage(data)
		}
	}
	return ev
}

func getSchedule(store Storage, state StateStore, auth Authenticator, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		ctx := c.Request().Context()
		metrics, spanCtx := newScheduleRequestMetrics(ctx, logger)
		if spanCtx != nil {
			req := c.Request().WithContext(spanCtx)
			c.SetRequest(req)
			ctx = spanCtx
		}
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		authStart := time.Now()
		userID, authErr := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		metrics.ObserveAuth(time.Since(authStart))
		if authErr != nil {
			metrics.SetErrorStage("auth")
			err = c.String(http.StatusUnauthorized, authErr.Error())
			return err
		}

		now := time.Now()
		prefs := loadPreferences(c, state, userID)
		q := scheduleQuery(c, prefs)
		showBirthdays := prefs.ShowBirthdays
		if v := c.QueryParam("birthdays"); v != "" {
			showBirthdays = boolParam(v)
		}

		fetchStart := time.Now()
		items, fetchErr := store.ListTasks(ctx, userID)
		metrics.ObserveFetch(time.Since(fetchStart))
		if fetchErr != nil {
			metrics.SetErrorStage("storage")
			c.Logger().Error(fetchErr)
			err = c.String(http.StatusInternalServerError, fetchErr.Error())
			return err
		}

		// Capability detection runs over the persisted collection, before
		// synthetic items join it.
		resolver := schedule.NewResolver(items)

		overlay, overlayOK := loadOverlay(c, state, userID)
		metrics.SetOverlayApplied(overlayOK)

		if showBirthdays {
			customers, custErr := store.ListCustomers(ctx, userID)
			if custErr != nil {
				// Birthdays are decorative; the schedule itself still renders.
				c.Logger().Warnf("customer directory unavailable, skipping birthdays: %v", custErr)
			} else {
				start, end := schedule.BirthdayWindow(q.TimeRange, now)
				birthdays := schedule.SynthesizeBirthdays(customers, start, end)
				metrics.SetBirthdaysInjected(len(birthdays))
				items = append(items, birthdays...)
			}
		}

		filtered := schedule.Apply(items, q, resolver, overlay, now)
		metrics.SetItemsReturned(len(filtered))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, scheduleResponse{Items: annotate(filtered, resolver, overlay, now)})
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func getCalendar(store Storage, state StateStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		now := time.Now()
		view := c.QueryParam("view")
		if view == "" {
			view = schedule.ViewMonth
		}
		anchor := now
		if v := c.QueryParam("anchor"); v != "" {
			parsed, ok := schedule.ParseDate(v)
			if !ok {
				return c.String(http.StatusBadRequest, "invalid anchor date")
			}
			anchor = parsed
		}

		prefs := loadPreferences(c, state, userID)
		q := scheduleQuery(c, prefs)
		// The grid bounds the dates; the range stage would double-filter.
		q.TimeRange = schedule.RangeAll
		showBirthdays := prefs.ShowBirthdays
		if v := c.QueryParam("birthdays"); v != "" {
			showBirthdays = boolParam(v)
		}

		items, err := store.ListTasks(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		resolver := schedule.NewResolver(items)
		overlay, _ := loadOverlay(c, state, userID)

		start, end := schedule.CalendarWindow(view, anchor)
		if showBirthdays {
			customers, custErr := store.ListCustomers(ctx, userID)
			if custErr != nil {
				c.Logger().Warnf("customer directory unavailable, skipping birthdays: %v", custErr)
			} else {
				items = append(items, schedule.SynthesizeBirthdays(customers, start, end)...)
			}
		}

		filtered := schedule.Apply(items, q, resolver, overlay, now)
		buckets := schedule.BucketForCalendar(filtered, view, anchor)

		resp := calendarResponse{
			View:  view,
			Start: start.Format(schedule.DateLayout),
			End:   end.Format(schedule.DateLayout),
			Days:  make([]calendarDay, 0, len(buckets)),
		}
		for _, b := range buckets {
			resp.Days = append(resp.Days, calendarDay{
				Date:  b.Date.Format(schedule.DateLayout),
				Items: annotate(b.Items, resolver, overlay, now),
			})
		}
		return c.JSON(http.StatusOK, resp)
	}
}

func postToggle(store Storage, state StateStore, auth Authenticator, sender *SyncSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := c.Param("id")

		items, err := store.ListTasks(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		resolver := schedule.NewResolver(items)

		// Toggling writes overlay state, so unlike reads this needs the
		// real overlay to flip from the right side.
		rawOverlay, err := state.Overlay(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "completion state unavailable")
		}
		overlay := schedule.Overlay(rawOverlay)

		var item domain.ScheduledItem
		if strings.HasPrefix(id, "birthday:") {
			item = domain.ScheduledItem{ID: id, Kind: domain.KindTask, Synthetic: domain.SyntheticBirthday}
		} else {
			found := false
			for _, it := range items {
				if it.ID == id {
					item = it
					found = true
					break
				}
			}
			if !found {
				return c.String(http.StatusNotFound, "item not found")
			}
		}

		action := resolver.Toggle(item, overlay)
		var done bool
		switch action.Mode {
		case schedule.ToggleRemote:
			if err := store.PatchTaskCompletion(ctx, userID, action.Request.ID, action.Request.Completed); err != nil {
				c.Logger().Error(err)
				return c.String(storageErrStatus(err), err.Error())
			}
			done = action.Request.Completed
		default:
			if err := state.SetOverlayEntry(ctx, userID, action.ItemID, action.Done); err != nil {
				c.Logger().Error(err)
				return c.String(http.StatusInternalServerError, "completion state unavailable")
			}
			done = action.Done
		}

		if !item.IsSynthetic() {
			sender.Dispatch(userID, []domain.SyncEvent{
				newSyncEvent(domain.SyncItemCompleted, id, toggleResponse{ID: id, Done: done, Mode: action.Mode}),
			})
		}
		return c.JSON(http.StatusOK, toggleResponse{ID: id, Done: done, Mode: action.Mode})
	}
}

func postReschedule(store Storage, auth Authenticator, moves *moveRegistry, sender *SyncSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := c.Param("id")

		lr := io.LimitReader(c.Request().Body, taskBodyMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()
		var body rescheduleRequest
		if err := dec.Decode(&body); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if _, ok := schedule.ParseDate(body.NewDate); !ok {
			return c.String(http.StatusBadRequest, "invalid date")
		}
		if _, ok := schedule.ParseDate(body.OldDate); !ok {
			return c.String(http.StatusBadRequest, "invalid date")
		}

		ctrl := moves.get(userID)
		req, ok := ctrl.Begin(id, body.OldDate, body.NewDate)
		if !ok {
			// Dropping an item on its own date changes nothing.
			return c.NoContent(http.StatusNoContent)
		}

		if err := store.PatchTaskDate(ctx, userID, req.ID, req.Date); err != nil {
			ctrl.Fail()
			c.Logger().Error(err)
			return c.String(storageErrStatus(err), err.Error())
		}
		ctrl.Confirm()
		last, _ := ctrl.Last()

		sender.Dispatch(userID, []domain.SyncEvent{
			newSyncEvent(domain.SyncItemRescheduled, id, body),
		})
		return c.JSON(http.StatusOK, rescheduleResponse{
			ID:            req.ID,
			Date:          req.Date,
			UndoExpiresAt: last.ExpiresAt,
		})
	}
}

func postUndo(store Storage, auth Authenticator, moves *moveRegistry, sender *SyncSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		ctrl := moves.get(userID)
		move, ok := ctrl.Last()
		if !ok {
			return c.NoContent(http.StatusNoContent)
		}
		req, ok := ctrl.Undo()
		if !ok {
			return c.NoContent(http.StatusNoContent)
		}

		if err := store.PatchTaskDate(ctx, userID, req.ID, req.Date); err != nil {
			// Keep the move undoable; the client may retry inside the window.
			ctrl.Reinstate(move)
			c.Logger().Error(err)
			return c.String(storageErrStatus(err), err.Error())
		}

		sender.Dispatch(userID, []domain.SyncEvent{
			newSyncEvent(domain.SyncItemRescheduled, req.ID, req),
		})
		return c.JSON(http.StatusOK, undoResponse{ID: req.ID, Date: req.Date})
	}
}

func exportICS(store Storage, state StateStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		now := time.Now()
		items, err := store.ListTasks(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		resolver := schedule.NewResolver(items)
		overlay, _ := loadOverlay(c, state, userID)

		window := c.QueryParam("window")
		var windowStart, windowEnd time.Time
		windowBounded := false
		switch window {
		case "", "all":
			// Unbounded export.
		case "custom":
			start, startOK := schedule.ParseDate(c.QueryParam("start"))
			end, endOK := schedule.ParseDate(c.QueryParam("end"))
			if !startOK || !endOK || end.Before(start) {
				return c.String(http.StatusBadRequest, "invalid export window")
			}
			windowStart, windowEnd, windowBounded = start, end, true
		default:
			start, end, bounded := schedule.RangeWindow(window, now)
			if !bounded {
				return c.String(http.StatusBadRequest, "invalid export window")
			}
			windowStart, windowEnd, windowBounded = start, end, true
		}
		if windowBounded {
			items = schedule.ItemsInRange(items, windowStart, windowEnd)
		}

		if boolParam(c.QueryParam("birthdays")) {
			customers, custErr := store.ListCustomers(ctx, userID)
			if custErr != nil {
				c.Logger().Warnf("customer directory unavailable, skipping birthdays: %v", custErr)
			} else {
				// Birthdays come from the export window itself so every
				// synthesized date lands inside it; only an unbounded export
				// needs the fallback window.
				if !windowBounded {
					windowStart, windowEnd = schedule.BirthdayWindow(window, now)
				}
				items = append(items, schedule.SynthesizeBirthdays(customers, windowStart, windowEnd)...)
			}
		}

		payload := schedule.EncodeICS(items, resolver, overlay, now)
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="advisorhub-schedule.ics"`)
		return c.Blob(http.StatusOK, "text/calendar; charset=utf-8", []byte(payload))
	}
}

func getPreferences(state StateStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		return c.JSON(http.StatusOK, loadPreferences(c, state, userID))
	}
}

func putPreferences(state StateStore, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		lr := io.LimitReader(c.Request().Body, taskBodyMaxSize)
		dec := sonic.ConfigStd.NewDecoder(lr)
		dec.DisallowUnknownFields()
		var prefs domain.Preferences
		if err := dec.Decode(&prefs); err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := state.SavePreferences(ctx, userID, prefs); err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, "failed to save preferences")
		}
		return c.JSON(http.StatusOK, prefs)
	}
}

func getTasks(store Storage, auth Authenticator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		items, err := store.ListTasks(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		return c.JSON(http.StatusOK, tasksResponse{Tasks: items})
	}
}

func decodeTaskBody(c echo.Context) (domain.ScheduledItem, error) {
	lr := io.LimitReader(c.Request().Body, taskBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	var item domain.ScheduledItem
	if err := dec.Decode(&item); err != nil {
		return domain.ScheduledItem{}, err
	}
	return item, nil
}

func validateTask(item domain.ScheduledItem) error {
	if strings.TrimSpace(item.Title) == "" {
		return errors.New("title is required")
	}
	if item.Kind != domain.KindAppointment && item.Kind != domain.KindTask {
		return errors.New("kind must be Appointment or Task")
	}
	if _, ok := schedule.ParseDate(item.Date); !ok {
		return errors.New("date must be YYYY-MM-DD")
	}
	return nil
}

func postTask(store Storage, auth Authenticator, sender *SyncSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		item, err := decodeTaskBody(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		if err := validateTask(item); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}
		item.Synthetic = ""

		existing, err := store.ListTasks(ctx, userID)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}
		// New rows get the completed column only when the collection already
		// carries it; a legacy collection stays overlay-driven.
		if schedule.NewResolver(existing).HasNativeCompletionField() && item.Completed == nil {
			f := false
			item.Completed = &f
		}

		created, err := store.CreateTask(ctx, userID, item)
		if err != nil {
			c.Logger().Error(err)
			return c.String(http.StatusInternalServerError, err.Error())
		}

		sender.Dispatch(userID, []domain.SyncEvent{
			newSyncEvent(domain.SyncItemCreated, created.ID, created),
		})
		return c.JSON(http.StatusCreated, created)
	}
}

func putTask(store Storage, auth Authenticator, sender *SyncSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}

		item, err := decodeTaskBody(c)
		if err != nil {
			return c.String(http.StatusBadRequest, "invalid body")
		}
		item.ID = c.Param("id")
		item.Synthetic = ""
		if err := validateTask(item); err != nil {
			return c.String(http.StatusBadRequest, err.Error())
		}

		updated, err := store.UpdateTask(ctx, userID, item)
		if err != nil {
			c.Logger().Error(err)
			return c.String(storageErrStatus(err), err.Error())
		}

		sender.Dispatch(userID, []domain.SyncEvent{
			newSyncEvent(domain.SyncItemUpdated, updated.ID, updated),
		})
		return c.JSON(http.StatusOK, updated)
	}
}

func deleteTask(store Storage, state StateStore, auth Authenticator, sender *SyncSender) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		userID, err := auth.UserIDFromAuthHeader(c.Request().Header.Get("Authorization"))
		if err != nil {
			return c.String(http.StatusUnauthorized, err.Error())
		}
		id := c.Param("id")

		if err := store.DeleteTask(ctx, userID, id); err != nil {
			c.Logger().Error(err)
			return c.String(storageErrStatus(err), err.Error())
		}
		if err := state.DeleteOverlayEntry(ctx, userID, id); err != nil {
			c.Logger().Warnf("overlay cleanup failed for %s: %v", id, err)
		}

		sender.Dispatch(userID, []domain.SyncEvent{
			newSyncEvent(domain.SyncItemDeleted, id, nil),
		})
		return c.NoContent(http.StatusNoContent)
	}
}
