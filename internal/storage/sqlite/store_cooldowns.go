package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
)

// CheckAndSetCooldown stamps the action timestamp when the window has
// elapsed. A single conditional upsert arbitrates concurrent callers,
// so exactly one of them wins a contested window.
func (s *Store) CheckAndSetCooldown(ctx context.Context, p storage.CooldownParams) (storage.Cooldown, error) {
	if err := ctx.Err(); err != nil {
		return storage.Cooldown{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Cooldown{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Cooldown{}, fmt.Errorf("actor id is required")
	}
	action := strings.TrimSpace(p.Action)
	if action == "" {
		return storage.Cooldown{}, fmt.Errorf("action is required")
	}
	if p.Window <= 0 {
		return storage.Cooldown{}, fmt.Errorf("window must be positive")
	}
	if p.Now.IsZero() {
		return storage.Cooldown{}, fmt.Errorf("now is required")
	}

	nowMillis := toMillis(p.Now)
	readyBefore := nowMillis - p.Window.Milliseconds()
	res, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO cooldowns (actor_id, action, last_used_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT(actor_id, action) DO UPDATE SET
		   last_used_at = excluded.last_used_at
		 WHERE cooldowns.last_used_at <= ?`,
		actorID,
		action,
		nowMillis,
		readyBefore,
	)
	if err != nil {
		return storage.Cooldown{}, fmt.Errorf("set cooldown: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.Cooldown{}, fmt.Errorf("set cooldown rows: %w", err)
	}
	if affected > 0 {
		return storage.Cooldown{ActorID: actorID, Action: action, LastUsedAt: p.Now}, nil
	}

	var lastUsedAt int64
	err = s.sqlDB.QueryRowContext(
		ctx,
		`SELECT last_used_at FROM cooldowns WHERE actor_id = ? AND action = ?`,
		actorID,
		action,
	).Scan(&lastUsedAt)
	if err != nil {
		return storage.Cooldown{}, fmt.Errorf("get cooldown: %w", err)
	}
	remaining := fromMillis(lastUsedAt).Add(p.Window).Sub(p.Now)
	if remaining < 0 {
		remaining = 0
	}
	return storage.Cooldown{}, apperrors.Retryable(apperrors.CodeCooldownActive, "action is still on cooldown", remaining, map[string]string{
		"Remaining": remaining.Round(time.Second).String(),
	})
}

// GetCooldown reads the action timestamp without stamping it. A missing
// row reads as never used.
func (s *Store) GetCooldown(ctx context.Context, actorID, action string) (storage.Cooldown, error) {
	if err := ctx.Err(); err != nil {
		return storage.Cooldown{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Cooldown{}, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Cooldown{}, fmt.Errorf("actor id is required")
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return storage.Cooldown{}, fmt.Errorf("action is required")
	}

	var lastUsedAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT last_used_at FROM cooldowns WHERE actor_id = ? AND action = ?`,
		actorID,
		action,
	).Scan(&lastUsedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Cooldown{ActorID: actorID, Action: action}, nil
	}
	if err != nil {
		return storage.Cooldown{}, fmt.Errorf("get cooldown: %w", err)
	}
	return storage.Cooldown{
		ActorID:    actorID,
		Action:     action,
		LastUsedAt: fromMillis(lastUsedAt),
	}, nil
}
