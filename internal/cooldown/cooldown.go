// Package cooldown tracks per-actor rate limits for the timed reward
// actions. The atomic check-and-stamp lives in storage; this package
// names the actions and their windows.
package cooldown

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/storage"
)

// Action is one rate-limited reward action.
type Action string

const (
	ActionDaily        Action = "daily"
	ActionClaim        Action = "claim"
	ActionLeveledClaim Action = "leveled_claim"
)

// Windows holds the cooldown duration of each action.
type Windows struct {
	Daily        time.Duration
	Claim        time.Duration
	LeveledClaim time.Duration
}

// DefaultWindows returns the stock reward cadence.
func DefaultWindows() Windows {
	return Windows{
		Daily:        24 * time.Hour,
		Claim:        time.Hour,
		LeveledClaim: 12 * time.Hour,
	}
}

// For returns the window of one action, or zero for an unknown action.
func (w Windows) For(action Action) time.Duration {
	switch action {
	case ActionDaily:
		return w.Daily
	case ActionClaim:
		return w.Claim
	case ActionLeveledClaim:
		return w.LeveledClaim
	}
	return 0
}

// Tracker reserves and inspects cooldown windows.
type Tracker struct {
	store storage.CooldownStore
	clock func() time.Time
}

// NewTracker wires a tracker. A nil clock falls back to wall-clock
// time.
func NewTracker(store storage.CooldownStore, clock func() time.Time) (*Tracker, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if clock == nil {
		clock = time.Now
	}
	return &Tracker{store: store, clock: clock}, nil
}

// Reserve stamps the action for the actor, or fails with
// ErrCooldownActive carrying the remaining wait. A reservation is not
// refunded if the action later fails.
func (t *Tracker) Reserve(ctx context.Context, actorID string, action Action, window time.Duration) (storage.Cooldown, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Cooldown{}, fmt.Errorf("actor id is required")
	}
	if window <= 0 {
		return storage.Cooldown{}, fmt.Errorf("window must be positive")
	}
	return t.store.CheckAndSetCooldown(ctx, storage.CooldownParams{
		ActorID: actorID,
		Action:  string(action),
		Window:  window,
		Now:     t.clock(),
	})
}

// Remaining reports how long until the action reopens, clamped at
// zero. An action never used reads as ready.
func (t *Tracker) Remaining(ctx context.Context, actorID string, action Action, window time.Duration) (time.Duration, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return 0, fmt.Errorf("actor id is required")
	}
	cd, err := t.store.GetCooldown(ctx, actorID, string(action))
	if err != nil {
		return 0, err
	}
	if cd.LastUsedAt.IsZero() {
		return 0, nil
	}
	remaining := cd.LastUsedAt.Add(window).Sub(t.clock())
	if remaining < 0 {
		remaining = 0
	}
	return remaining, nil
}
