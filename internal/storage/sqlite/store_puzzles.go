package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/storage"
)

// CompletePuzzle consumes one piece of every slot and increments the
// actor's completion counter in a single transaction. A missing slot
// rolls back every consumed piece.
func (s *Store) CompletePuzzle(ctx context.Context, p storage.CompletePuzzleParams) (storage.PuzzleCompletion, error) {
	if err := ctx.Err(); err != nil {
		return storage.PuzzleCompletion{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PuzzleCompletion{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.PuzzleCompletion{}, fmt.Errorf("actor id is required")
	}
	puzzleID := strings.TrimSpace(p.PuzzleID)
	if puzzleID == "" {
		return storage.PuzzleCompletion{}, fmt.Errorf("puzzle id is required")
	}
	if p.Slots <= 0 {
		return storage.PuzzleCompletion{}, fmt.Errorf("slot count must be positive")
	}
	if p.XP < 0 {
		return storage.PuzzleCompletion{}, fmt.Errorf("puzzle experience must be non-negative")
	}
	if p.Now.IsZero() {
		return storage.PuzzleCompletion{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.PuzzleCompletion{}, fmt.Errorf("begin puzzle completion: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for slot := 1; slot <= p.Slots; slot++ {
		item := catalog.PieceItem(catalog.PieceRef{Puzzle: puzzleID, Slot: slot})
		if err := decrementStackTx(ctx, tx, actorID, item, 1, p.Now); err != nil {
			return storage.PuzzleCompletion{}, err
		}
		if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
			Timestamp:     p.Now,
			ActorID:       actorID,
			Kind:          storage.LedgerPuzzle,
			Item:          item,
			QuantityDelta: -1,
			Ref:           puzzleID,
		}); err != nil {
			return storage.PuzzleCompletion{}, err
		}
	}

	if _, err := tx.ExecContext(
		ctx,
		`INSERT INTO puzzle_completions (actor_id, puzzle_id, times_completed, last_completed_at)
		 VALUES (?, ?, 1, ?)
		 ON CONFLICT(actor_id, puzzle_id) DO UPDATE SET
		   times_completed = times_completed + 1,
		   last_completed_at = excluded.last_completed_at`,
		actorID,
		puzzleID,
		toMillis(p.Now),
	); err != nil {
		if isForeignKeyViolation(err) {
			return storage.PuzzleCompletion{}, errActorNotFound(actorID)
		}
		return storage.PuzzleCompletion{}, fmt.Errorf("record puzzle completion: %w", err)
	}

	if _, err := creditActorTx(ctx, tx, actorID, 0, p.XP, p.Now); err != nil {
		return storage.PuzzleCompletion{}, err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp: p.Now,
		ActorID:   actorID,
		Kind:      storage.LedgerPuzzle,
		XPDelta:   p.XP,
		Ref:       puzzleID,
	}); err != nil {
		return storage.PuzzleCompletion{}, err
	}

	completion := storage.PuzzleCompletion{ActorID: actorID, PuzzleID: puzzleID}
	var lastCompletedAt int64
	if err := tx.QueryRowContext(
		ctx,
		`SELECT times_completed, last_completed_at FROM puzzle_completions WHERE actor_id = ? AND puzzle_id = ?`,
		actorID,
		puzzleID,
	).Scan(&completion.TimesCompleted, &lastCompletedAt); err != nil {
		return storage.PuzzleCompletion{}, fmt.Errorf("get puzzle completion: %w", err)
	}
	completion.LastCompletedAt = fromMillis(lastCompletedAt)

	if err := tx.Commit(); err != nil {
		return storage.PuzzleCompletion{}, fmt.Errorf("commit puzzle completion: %w", err)
	}
	return completion, nil
}

// GetPuzzleCompletion returns one actor's completion record. A missing
// row reads as zero completions.
func (s *Store) GetPuzzleCompletion(ctx context.Context, actorID, puzzleID string) (storage.PuzzleCompletion, error) {
	if err := ctx.Err(); err != nil {
		return storage.PuzzleCompletion{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.PuzzleCompletion{}, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.PuzzleCompletion{}, fmt.Errorf("actor id is required")
	}
	puzzleID = strings.TrimSpace(puzzleID)
	if puzzleID == "" {
		return storage.PuzzleCompletion{}, fmt.Errorf("puzzle id is required")
	}

	completion := storage.PuzzleCompletion{ActorID: actorID, PuzzleID: puzzleID}
	var lastCompletedAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT times_completed, last_completed_at FROM puzzle_completions WHERE actor_id = ? AND puzzle_id = ?`,
		actorID,
		puzzleID,
	).Scan(&completion.TimesCompleted, &lastCompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return completion, nil
	}
	if err != nil {
		return storage.PuzzleCompletion{}, fmt.Errorf("get puzzle completion: %w", err)
	}
	completion.LastCompletedAt = fromMillis(lastCompletedAt)
	return completion, nil
}

// ListPuzzleCompletions returns the actor's completion records ordered
// by puzzle.
func (s *Store) ListPuzzleCompletions(ctx context.Context, actorID string) ([]storage.PuzzleCompletion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("actor id is required")
	}

	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT puzzle_id, times_completed, last_completed_at
		   FROM puzzle_completions
		  WHERE actor_id = ?
		  ORDER BY puzzle_id ASC`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list puzzle completions: %w", err)
	}
	defer rows.Close()

	var completions []storage.PuzzleCompletion
	for rows.Next() {
		completion := storage.PuzzleCompletion{ActorID: actorID}
		var lastCompletedAt int64
		if err := rows.Scan(&completion.PuzzleID, &completion.TimesCompleted, &lastCompletedAt); err != nil {
			return nil, fmt.Errorf("scan puzzle completion: %w", err)
		}
		completion.LastCompletedAt = fromMillis(lastCompletedAt)
		completions = append(completions, completion)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate puzzle completions: %w", err)
	}
	return completions, nil
}
