package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
)

const actorColumns = "id, balance, experience, packs_opened, created_at, updated_at"

func scanActor(scan func(dest ...any) error) (storage.Actor, error) {
	var a storage.Actor
	var createdAt, updatedAt int64
	if err := scan(&a.ID, &a.Balance, &a.Experience, &a.PacksOpened, &createdAt, &updatedAt); err != nil {
		return storage.Actor{}, err
	}
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return a, nil
}

func errActorNotFound(actorID string) error {
	return apperrors.WithMetadata(apperrors.CodeNotFound, "actor not found", map[string]string{
		"Actor": actorID,
	})
}

// EnsureActor returns the actor record, creating a zeroed one first if
// none exists.
func (s *Store) EnsureActor(ctx context.Context, actorID string, now time.Time) (storage.Actor, error) {
	if err := ctx.Err(); err != nil {
		return storage.Actor{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Actor{}, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Actor{}, fmt.Errorf("actor id is required")
	}
	if now.IsZero() {
		return storage.Actor{}, fmt.Errorf("now is required")
	}

	if _, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO actors (id, balance, experience, packs_opened, created_at, updated_at)
		 VALUES (?, 0, 0, 0, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		actorID,
		toMillis(now),
		toMillis(now),
	); err != nil {
		return storage.Actor{}, fmt.Errorf("ensure actor: %w", err)
	}

	return s.GetActor(ctx, actorID)
}

// GetActor returns one actor record.
func (s *Store) GetActor(ctx context.Context, actorID string) (storage.Actor, error) {
	if err := ctx.Err(); err != nil {
		return storage.Actor{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Actor{}, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Actor{}, fmt.Errorf("actor id is required")
	}

	row := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT `+actorColumns+` FROM actors WHERE id = ?`,
		actorID,
	)
	actor, err := scanActor(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Actor{}, errActorNotFound(actorID)
	}
	if err != nil {
		return storage.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	return actor, nil
}

// CreditActor adds coins and experience to an actor and journals the
// change in the same transaction.
func (s *Store) CreditActor(ctx context.Context, p storage.CreditParams) (storage.Actor, error) {
	if err := ctx.Err(); err != nil {
		return storage.Actor{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Actor{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Actor{}, fmt.Errorf("actor id is required")
	}
	if p.Coins < 0 || p.XP < 0 {
		return storage.Actor{}, fmt.Errorf("credit deltas must be non-negative")
	}
	if p.Kind == "" {
		return storage.Actor{}, fmt.Errorf("ledger kind is required")
	}
	if p.Now.IsZero() {
		return storage.Actor{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Actor{}, fmt.Errorf("begin credit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	actor, err := creditActorTx(ctx, tx, actorID, p.Coins, p.XP, p.Now)
	if err != nil {
		return storage.Actor{}, err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp: p.Now,
		ActorID:   actorID,
		Kind:      p.Kind,
		CoinDelta: p.Coins,
		XPDelta:   p.XP,
		Ref:       p.Ref,
	}); err != nil {
		return storage.Actor{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.Actor{}, fmt.Errorf("commit credit: %w", err)
	}
	return actor, nil
}

// DebitActor removes coins from an actor. The balance check and the
// write are one conditional update, so concurrent debits cannot
// overdraw.
func (s *Store) DebitActor(ctx context.Context, p storage.DebitParams) (storage.Actor, error) {
	if err := ctx.Err(); err != nil {
		return storage.Actor{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Actor{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Actor{}, fmt.Errorf("actor id is required")
	}
	if p.Coins <= 0 {
		return storage.Actor{}, fmt.Errorf("debit amount must be positive")
	}
	if p.Kind == "" {
		return storage.Actor{}, fmt.Errorf("ledger kind is required")
	}
	if p.Now.IsZero() {
		return storage.Actor{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Actor{}, fmt.Errorf("begin debit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := debitActorTx(ctx, tx, actorID, p.Coins, p.Now); err != nil {
		return storage.Actor{}, err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp: p.Now,
		ActorID:   actorID,
		Kind:      p.Kind,
		CoinDelta: -p.Coins,
		Ref:       p.Ref,
	}); err != nil {
		return storage.Actor{}, err
	}
	actor, err := getActorTx(ctx, tx, actorID)
	if err != nil {
		return storage.Actor{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.Actor{}, fmt.Errorf("commit debit: %w", err)
	}
	return actor, nil
}

// Leaderboard returns the top actors by the requested order.
func (s *Store) Leaderboard(ctx context.Context, order storage.LeaderboardOrder, limit int) ([]storage.Actor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	var column string
	switch order {
	case storage.LeaderboardByBalance:
		column = "balance"
	case storage.LeaderboardByExperience:
		column = "experience"
	default:
		return nil, fmt.Errorf("unknown leaderboard order %q", order)
	}
	if limit <= 0 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT `+actorColumns+` FROM actors ORDER BY `+column+` DESC, id ASC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	actors := make([]storage.Actor, 0, limit)
	for rows.Next() {
		actor, err := scanActor(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		actors = append(actors, actor)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return actors, nil
}

func getActorTx(ctx context.Context, tx *sql.Tx, actorID string) (storage.Actor, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT `+actorColumns+` FROM actors WHERE id = ?`,
		actorID,
	)
	actor, err := scanActor(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Actor{}, errActorNotFound(actorID)
	}
	if err != nil {
		return storage.Actor{}, fmt.Errorf("get actor: %w", err)
	}
	return actor, nil
}

// creditActorTx adds coins and experience inside tx and returns the
// updated row.
func creditActorTx(ctx context.Context, tx *sql.Tx, actorID string, coins, xp int64, now time.Time) (storage.Actor, error) {
	res, err := tx.ExecContext(
		ctx,
		`UPDATE actors SET balance = balance + ?, experience = experience + ?, updated_at = ? WHERE id = ?`,
		coins,
		xp,
		toMillis(now),
		actorID,
	)
	if err != nil {
		return storage.Actor{}, fmt.Errorf("credit actor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return storage.Actor{}, fmt.Errorf("credit actor rows: %w", err)
	}
	if affected == 0 {
		return storage.Actor{}, errActorNotFound(actorID)
	}
	return getActorTx(ctx, tx, actorID)
}

// debitActorTx removes coins inside tx, distinguishing a missing actor
// from an insufficient balance.
func debitActorTx(ctx context.Context, tx *sql.Tx, actorID string, coins int64, now time.Time) error {
	res, err := tx.ExecContext(
		ctx,
		`UPDATE actors SET balance = balance - ?, updated_at = ? WHERE id = ? AND balance >= ?`,
		coins,
		toMillis(now),
		actorID,
		coins,
	)
	if err != nil {
		return fmt.Errorf("debit actor: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("debit actor rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	var balance int64
	err = tx.QueryRowContext(ctx, `SELECT balance FROM actors WHERE id = ?`, actorID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return errActorNotFound(actorID)
	}
	if err != nil {
		return fmt.Errorf("inspect balance: %w", err)
	}
	return apperrors.WithMetadata(apperrors.CodeInsufficientFunds, "balance too low", map[string]string{
		"Balance":  strconv.FormatInt(balance, 10),
		"Required": strconv.FormatInt(coins, 10),
	})
}
