package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
)

func errInsufficientItems(item catalog.ItemRef, have, need int64) error {
	return apperrors.WithMetadata(apperrors.CodeInsufficientInventory, "stack too small", map[string]string{
		"Item": item.ID,
		"Have": strconv.FormatInt(have, 10),
		"Need": strconv.FormatInt(need, 10),
	})
}

// GetStack returns the actor's stack for one item. A missing row reads
// as quantity zero.
func (s *Store) GetStack(ctx context.Context, actorID string, item catalog.ItemRef) (storage.Stack, error) {
	if err := ctx.Err(); err != nil {
		return storage.Stack{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Stack{}, fmt.Errorf("storage is not configured")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Stack{}, fmt.Errorf("actor id is required")
	}
	if !item.Kind.Valid() || item.ID == "" {
		return storage.Stack{}, fmt.Errorf("item reference is required")
	}

	var stack storage.Stack
	var createdAt, updatedAt int64
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT quantity, created_at, updated_at FROM stacks WHERE actor_id = ? AND item_kind = ? AND item_id = ?`,
		actorID,
		string(item.Kind),
		item.ID,
	).Scan(&stack.Quantity, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Stack{ActorID: actorID, Item: item}, nil
	}
	if err != nil {
		return storage.Stack{}, fmt.Errorf("get stack: %w", err)
	}
	stack.ActorID = actorID
	stack.Item = item
	stack.CreatedAt = fromMillis(createdAt)
	stack.UpdatedAt = fromMillis(updatedAt)
	return stack, nil
}

// ListStacks returns the actor's held stacks, positive quantities only,
// ordered by item.
func (s *Store) ListStacks(ctx context.Context, actorID string) ([]storage.Stack, error) {
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
		`SELECT item_kind, item_id, quantity, created_at, updated_at
		   FROM stacks
		  WHERE actor_id = ? AND quantity > 0
		  ORDER BY item_kind ASC, item_id ASC`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("list stacks: %w", err)
	}
	defer rows.Close()

	var stacks []storage.Stack
	for rows.Next() {
		var stack storage.Stack
		var kind string
		var createdAt, updatedAt int64
		if err := rows.Scan(&kind, &stack.Item.ID, &stack.Quantity, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan stack: %w", err)
		}
		stack.ActorID = actorID
		stack.Item.Kind = catalog.ItemKind(kind)
		stack.CreatedAt = fromMillis(createdAt)
		stack.UpdatedAt = fromMillis(updatedAt)
		stacks = append(stacks, stack)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stacks: %w", err)
	}
	return stacks, nil
}

// AdjustStack applies one quantity delta and journals it. Negative
// deltas are conditional updates, so concurrent spends cannot overdraw.
func (s *Store) AdjustStack(ctx context.Context, p storage.AdjustStackParams) (storage.Stack, error) {
	if err := ctx.Err(); err != nil {
		return storage.Stack{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Stack{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Stack{}, fmt.Errorf("actor id is required")
	}
	if !p.Item.Kind.Valid() || p.Item.ID == "" {
		return storage.Stack{}, fmt.Errorf("item reference is required")
	}
	if p.Delta == 0 {
		return storage.Stack{}, fmt.Errorf("delta must be non-zero")
	}
	if p.Kind == "" {
		return storage.Stack{}, fmt.Errorf("ledger kind is required")
	}
	if p.Now.IsZero() {
		return storage.Stack{}, fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Stack{}, fmt.Errorf("begin adjust stack: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if p.Delta > 0 {
		err = upsertStackTx(ctx, tx, actorID, p.Item, p.Delta, p.Now)
	} else {
		err = decrementStackTx(ctx, tx, actorID, p.Item, -p.Delta, p.Now)
	}
	if err != nil {
		return storage.Stack{}, err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp:     p.Now,
		ActorID:       actorID,
		Kind:          p.Kind,
		Item:          p.Item,
		QuantityDelta: p.Delta,
		Ref:           p.Ref,
	}); err != nil {
		return storage.Stack{}, err
	}
	stack, err := getStackTx(ctx, tx, actorID, p.Item)
	if err != nil {
		return storage.Stack{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.Stack{}, fmt.Errorf("commit adjust stack: %w", err)
	}
	return stack, nil
}

func getStackTx(ctx context.Context, tx *sql.Tx, actorID string, item catalog.ItemRef) (storage.Stack, error) {
	var stack storage.Stack
	var createdAt, updatedAt int64
	err := tx.QueryRowContext(
		ctx,
		`SELECT quantity, created_at, updated_at FROM stacks WHERE actor_id = ? AND item_kind = ? AND item_id = ?`,
		actorID,
		string(item.Kind),
		item.ID,
	).Scan(&stack.Quantity, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Stack{ActorID: actorID, Item: item}, nil
	}
	if err != nil {
		return storage.Stack{}, fmt.Errorf("get stack: %w", err)
	}
	stack.ActorID = actorID
	stack.Item = item
	stack.CreatedAt = fromMillis(createdAt)
	stack.UpdatedAt = fromMillis(updatedAt)
	return stack, nil
}

// stackQuantityTx reads one stack quantity inside tx, zero when the row
// is missing.
func stackQuantityTx(ctx context.Context, tx *sql.Tx, actorID string, item catalog.ItemRef) (int64, error) {
	var quantity int64
	err := tx.QueryRowContext(
		ctx,
		`SELECT quantity FROM stacks WHERE actor_id = ? AND item_kind = ? AND item_id = ?`,
		actorID,
		string(item.Kind),
		item.ID,
	).Scan(&quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get stack quantity: %w", err)
	}
	return quantity, nil
}

// upsertStackTx adds a positive delta inside tx, creating the row when
// needed. A missing actor surfaces as a not-found error via the foreign
// key on stacks.
func upsertStackTx(ctx context.Context, tx *sql.Tx, actorID string, item catalog.ItemRef, delta int64, now time.Time) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO stacks (actor_id, item_kind, item_id, quantity, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(actor_id, item_kind, item_id) DO UPDATE SET
		   quantity = quantity + excluded.quantity,
		   updated_at = excluded.updated_at`,
		actorID,
		string(item.Kind),
		item.ID,
		delta,
		toMillis(now),
		toMillis(now),
	)
	if isForeignKeyViolation(err) {
		return errActorNotFound(actorID)
	}
	if err != nil {
		return fmt.Errorf("upsert stack: %w", err)
	}
	return nil
}

// decrementStackTx removes need copies inside tx, failing without
// writing when the stack cannot cover it.
func decrementStackTx(ctx context.Context, tx *sql.Tx, actorID string, item catalog.ItemRef, need int64, now time.Time) error {
	res, err := tx.ExecContext(
		ctx,
		`UPDATE stacks SET quantity = quantity - ?, updated_at = ?
		  WHERE actor_id = ? AND item_kind = ? AND item_id = ? AND quantity >= ?`,
		need,
		toMillis(now),
		actorID,
		string(item.Kind),
		item.ID,
		need,
	)
	if err != nil {
		return fmt.Errorf("decrement stack: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement stack rows: %w", err)
	}
	if affected == 1 {
		return nil
	}

	have, err := stackQuantityTx(ctx, tx, actorID, item)
	if err != nil {
		return err
	}
	return errInsufficientItems(item, have, need)
}
