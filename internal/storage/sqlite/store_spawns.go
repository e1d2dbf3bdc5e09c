package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/storage"
)

const spawnColumns = "channel_id, item_kind, item_id, state, spawned_at, expires_at, claimed_by, claimed_at"

func scanSpawn(scan func(dest ...any) error) (storage.Spawn, error) {
	var sp storage.Spawn
	var itemKind, state string
	var spawnedAt, expiresAt, claimedAt int64
	if err := scan(
		&sp.ChannelID,
		&itemKind,
		&sp.Item.ID,
		&state,
		&spawnedAt,
		&expiresAt,
		&sp.ClaimedBy,
		&claimedAt,
	); err != nil {
		return storage.Spawn{}, err
	}
	sp.Item.Kind = catalog.ItemKind(itemKind)
	sp.State = storage.SpawnState(state)
	sp.SpawnedAt = fromMillis(spawnedAt)
	sp.ExpiresAt = fromMillis(expiresAt)
	if claimedAt > 0 {
		sp.ClaimedAt = fromMillis(claimedAt)
	}
	return sp, nil
}

// PutSpawnChannel persists one channel configuration record.
func (s *Store) PutSpawnChannel(ctx context.Context, ch storage.SpawnChannel) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	channelID := strings.TrimSpace(ch.ChannelID)
	if channelID == "" {
		return fmt.Errorf("channel id is required")
	}
	if ch.CreatedAt.IsZero() || ch.UpdatedAt.IsZero() {
		return fmt.Errorf("channel timestamps are required")
	}

	enabled := 0
	if ch.Enabled {
		enabled = 1
	}
	lastSpawnAt := int64(0)
	if !ch.LastSpawnAt.IsZero() {
		lastSpawnAt = toMillis(ch.LastSpawnAt)
	}
	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO spawn_channels (channel_id, enabled, last_spawn_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
		   enabled = excluded.enabled,
		   last_spawn_at = excluded.last_spawn_at,
		   updated_at = excluded.updated_at`,
		channelID,
		enabled,
		lastSpawnAt,
		toMillis(ch.CreatedAt),
		toMillis(ch.UpdatedAt),
	); err != nil {
		return fmt.Errorf("put spawn channel: %w", err)
	}
	return nil
}

// GetSpawnChannel returns one channel configuration record.
func (s *Store) GetSpawnChannel(ctx context.Context, channelID string) (storage.SpawnChannel, error) {
	if err := ctx.Err(); err != nil {
		return storage.SpawnChannel{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SpawnChannel{}, fmt.Errorf("storage is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return storage.SpawnChannel{}, fmt.Errorf("channel id is required")
	}

	ch, err := scanSpawnChannelRow(s.sqlDB.QueryRowContext(
		ctx,
		`SELECT channel_id, enabled, last_spawn_at, created_at, updated_at FROM spawn_channels WHERE channel_id = ?`,
		channelID,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return storage.SpawnChannel{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.SpawnChannel{}, fmt.Errorf("get spawn channel: %w", err)
	}
	return ch, nil
}

func scanSpawnChannelRow(row *sql.Row) (storage.SpawnChannel, error) {
	var ch storage.SpawnChannel
	var enabled int
	var lastSpawnAt, createdAt, updatedAt int64
	if err := row.Scan(&ch.ChannelID, &enabled, &lastSpawnAt, &createdAt, &updatedAt); err != nil {
		return storage.SpawnChannel{}, err
	}
	ch.Enabled = enabled != 0
	if lastSpawnAt > 0 {
		ch.LastSpawnAt = fromMillis(lastSpawnAt)
	}
	ch.CreatedAt = fromMillis(createdAt)
	ch.UpdatedAt = fromMillis(updatedAt)
	return ch, nil
}

// ListSpawnChannels returns every channel configuration record.
func (s *Store) ListSpawnChannels(ctx context.Context) ([]storage.SpawnChannel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT channel_id, enabled, last_spawn_at, created_at, updated_at FROM spawn_channels ORDER BY channel_id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list spawn channels: %w", err)
	}
	defer rows.Close()

	var channels []storage.SpawnChannel
	for rows.Next() {
		var ch storage.SpawnChannel
		var enabled int
		var lastSpawnAt, createdAt, updatedAt int64
		if err := rows.Scan(&ch.ChannelID, &enabled, &lastSpawnAt, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan spawn channel: %w", err)
		}
		ch.Enabled = enabled != 0
		if lastSpawnAt > 0 {
			ch.LastSpawnAt = fromMillis(lastSpawnAt)
		}
		ch.CreatedAt = fromMillis(createdAt)
		ch.UpdatedAt = fromMillis(updatedAt)
		channels = append(channels, ch)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate spawn channels: %w", err)
	}
	return channels, nil
}

// GetSpawn returns the channel's current spawn event.
func (s *Store) GetSpawn(ctx context.Context, channelID string) (storage.Spawn, error) {
	if err := ctx.Err(); err != nil {
		return storage.Spawn{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Spawn{}, fmt.Errorf("storage is not configured")
	}
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return storage.Spawn{}, fmt.Errorf("channel id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+spawnColumns+` FROM spawns WHERE channel_id = ?`,
		channelID,
	)
	sp, err := scanSpawn(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Spawn{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Spawn{}, fmt.Errorf("get spawn: %w", err)
	}
	return sp, nil
}

// OpenSpawn opens a pending claim window on a channel. The window
// replaces a settled or lapsed event; an unexpired pending event wins
// and the open fails.
func (s *Store) OpenSpawn(ctx context.Context, p storage.OpenSpawnParams) (storage.Spawn, error) {
	if err := ctx.Err(); err != nil {
		return storage.Spawn{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Spawn{}, fmt.Errorf("storage is not configured")
	}
	channelID := strings.TrimSpace(p.ChannelID)
	if channelID == "" {
		return storage.Spawn{}, fmt.Errorf("channel id is required")
	}
	if !p.Item.Kind.Valid() || p.Item.ID == "" {
		return storage.Spawn{}, fmt.Errorf("item reference is required")
	}
	if p.Now.IsZero() {
		return storage.Spawn{}, fmt.Errorf("now is required")
	}
	if !p.ExpiresAt.After(p.Now) {
		return storage.Spawn{}, fmt.Errorf("expiry must be after now")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Spawn{}, fmt.Errorf("begin open spawn: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// The conditional upsert keeps at most one live pending window per
	// channel: the write applies only when no unexpired pending event
	// holds the slot.
	res, err := tx.ExecContext(
		ctx,
		`INSERT INTO spawns (channel_id, item_kind, item_id, state, spawned_at, expires_at, claimed_by, claimed_at)
		 VALUES (?, ?, ?, ?, ?, ?, '', 0)
		 ON CONFLICT(channel_id) DO UPDATE SET
		   item_kind = excluded.item_kind,
		   item_id = excluded.item_id,
		   state = excluded.state,
		   spawned_at = excluded.spawned_at,
		   expires_at = excluded.expires_at,
		   claimed_by = '',
		   claimed_at = 0
		 WHERE spawns.state != ? OR spawns.expires_at <= excluded.spawned_at`,
		channelID,
		string(p.Item.Kind),
		p.Item.ID,
		string(storage.SpawnPending),
		toMillis(p.Now),
		toMillis(p.ExpiresAt),
		string(storage.SpawnPending),
	)
	if err != nil {
		return storage.Spawn{}, fmt.Errorf("open spawn: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.Spawn{}, fmt.Errorf("open spawn rows: %w", err)
	}
	if affected == 0 {
		return storage.Spawn{}, storage.ErrSpawnPending
	}

	if _, err := tx.ExecContext(
		ctx,
		`UPDATE spawn_channels SET last_spawn_at = ?, updated_at = ? WHERE channel_id = ?`,
		toMillis(p.Now),
		toMillis(p.Now),
		channelID,
	); err != nil {
		return storage.Spawn{}, fmt.Errorf("touch spawn channel: %w", err)
	}

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+spawnColumns+` FROM spawns WHERE channel_id = ?`,
		channelID,
	)
	sp, err := scanSpawn(row.Scan)
	if err != nil {
		return storage.Spawn{}, fmt.Errorf("get spawn: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return storage.Spawn{}, fmt.Errorf("commit open spawn: %w", err)
	}
	return sp, nil
}

// ClaimSpawn performs the pending-to-claimed transition and credits the
// reward in the same transaction. The transition is a conditional
// update keyed on the pending state, so exactly one concurrent caller
// wins. A reward failure rolls the transition back.
func (s *Store) ClaimSpawn(ctx context.Context, p storage.ClaimSpawnParams) (storage.SpawnClaim, error) {
	if err := ctx.Err(); err != nil {
		return storage.SpawnClaim{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.SpawnClaim{}, fmt.Errorf("storage is not configured")
	}
	channelID := strings.TrimSpace(p.ChannelID)
	if channelID == "" {
		return storage.SpawnClaim{}, fmt.Errorf("channel id is required")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.SpawnClaim{}, fmt.Errorf("actor id is required")
	}
	if p.Coins < 0 || p.XP < 0 || p.NewItemCoins < 0 || p.NewItemXP < 0 {
		return storage.SpawnClaim{}, fmt.Errorf("claim amounts must be non-negative")
	}
	if p.Now.IsZero() {
		return storage.SpawnClaim{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.SpawnClaim{}, fmt.Errorf("begin claim: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(
		ctx,
		`UPDATE spawns SET state = ?, claimed_by = ?, claimed_at = ?
		  WHERE channel_id = ? AND state = ? AND expires_at > ?`,
		string(storage.SpawnClaimed),
		actorID,
		toMillis(p.Now),
		channelID,
		string(storage.SpawnPending),
		toMillis(p.Now),
	)
	if err != nil {
		return storage.SpawnClaim{}, fmt.Errorf("claim spawn: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.SpawnClaim{}, fmt.Errorf("claim spawn rows: %w", err)
	}
	if affected == 0 {
		return storage.SpawnClaim{}, claimLossTx(ctx, tx, channelID, p.Now)
	}

	row := tx.QueryRowContext(
		ctx,
		`SELECT `+spawnColumns+` FROM spawns WHERE channel_id = ?`,
		channelID,
	)
	sp, err := scanSpawn(row.Scan)
	if err != nil {
		return storage.SpawnClaim{}, fmt.Errorf("get spawn: %w", err)
	}

	grant, err := grantDrawTx(ctx, tx, storage.GrantDrawParams{
		ActorID:      actorID,
		Item:         sp.Item,
		Coins:        p.Coins,
		XP:           p.XP,
		NewItemCoins: p.NewItemCoins,
		NewItemXP:    p.NewItemXP,
		Kind:         storage.LedgerCatch,
		Ref:          channelID,
		Now:          p.Now,
	})
	if err != nil {
		return storage.SpawnClaim{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.SpawnClaim{}, fmt.Errorf("commit claim: %w", err)
	}
	return storage.SpawnClaim{Spawn: sp, Grant: grant}, nil
}

// claimLossTx diagnoses why the claim transition matched no row.
func claimLossTx(ctx context.Context, tx *sql.Tx, channelID string, now time.Time) error {
	var state string
	var expiresAt int64
	err := tx.QueryRowContext(
		ctx,
		`SELECT state, expires_at FROM spawns WHERE channel_id = ?`,
		channelID,
	).Scan(&state, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("inspect spawn: %w", err)
	}
	switch storage.SpawnState(state) {
	case storage.SpawnClaimed:
		return storage.ErrSpawnClaimed
	case storage.SpawnPending, storage.SpawnExpired:
		return storage.ErrSpawnExpired
	default:
		return fmt.Errorf("unknown spawn state %q", state)
	}
}

// ExpireSpawns marks every lapsed pending event expired and reports how
// many changed.
func (s *Store) ExpireSpawns(ctx context.Context, now time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if s == nil || s.sqlDB == nil {
		return 0, fmt.Errorf("storage is not configured")
	}
	if now.IsZero() {
		return 0, fmt.Errorf("now is required")
	}

	res, err := s.sqlDB.ExecContext(
		ctx,
		`UPDATE spawns SET state = ? WHERE state = ? AND expires_at <= ?`,
		string(storage.SpawnExpired),
		string(storage.SpawnPending),
		toMillis(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expire spawns: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire spawns rows: %w", err)
	}
	return affected, nil
}
