package storage

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"

	"schedule-api/domain"
)

// State persists per-user session state that has no home in the task table:
// the completion overlay used when the task schema carries no completed
// column, and the schedule view preferences.
type State struct {
	redis *redis.Client
}

// NewState creates a Redis-backed session state store.
func NewState(client *redis.Client) *State {
	if client == nil {
		panic("storage.NewState: redis client is nil")
	}
	return &State{redis: client}
}

// Overlay loads the user's completion overlay. A missing hash is an empty
// overlay, not an error.
func (s *State) Overlay(ctx context.Context, userID string) (map[string]bool, error) {
	raw, err := s.redis.HGetAll(ctx, overlayKey(userID)).Result()
	if err != nil {
		return nil, err
	}
	overlay := make(map[string]bool, len(raw))
	for id, v := range raw {
		overlay[id] = v == "1"
	}
	return overlay, nil
}

// SetOverlayEntry records the done state for one item in the overlay.
func (s *State) SetOverlayEntry(ctx context.Context, userID, itemID string, done bool) error {
	v := "0"
	if done {
		v = "1"
	}
	return s.redis.HSet(ctx, overlayKey(userID), itemID, v).Err()
}

// DeleteOverlayEntry drops an item's overlay entry, typically after the item
// itself is deleted.
func (s *State) DeleteOverlayEntry(ctx context.Context, userID, itemID string) error {
	return s.redis.HDel(ctx, overlayKey(userID), itemID).Err()
}

// Preferences loads the user's schedule view preferences, falling back to
// defaults when none were ever saved.
func (s *State) Preferences(ctx context.Context, userID string) (domain.Preferences, error) {
	data, err := s.redis.Get(ctx, prefsKey(userID)).Bytes()
	if err == redis.Nil {
		return domain.DefaultPreferences(), nil
	}
	if err != nil {
		return domain.Preferences{}, err
	}
	var prefs domain.Preferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		// A corrupt blob should not lock the user out of their schedule.
		_ = s.redis.Del(ctx, prefsKey(userID)).Err()
		return domain.DefaultPreferences(), nil
	}
	return prefs, nil
}

// SavePreferences stores the user's schedule view preferences.
func (s *State) SavePreferences(ctx context.Context, userID string, prefs domain.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return err
	}
	return s.redis.Set(ctx, prefsKey(userID), data, 0).Err()
}

func overlayKey(userID string) string {
	return "overlay:" + userID
}

func prefsKey(userID string) string {
	return "prefs:" + userID
}
