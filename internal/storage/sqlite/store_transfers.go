package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/carddex/internal/storage"
)

// TransferCoins moves coins between two actors. The payer balance is
// re-validated inside the transaction, so a concurrent spend cannot
// push it negative.
func (s *Store) TransferCoins(ctx context.Context, p storage.TransferCoinsParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	fromID := strings.TrimSpace(p.FromID)
	toID := strings.TrimSpace(p.ToID)
	if fromID == "" || toID == "" {
		return fmt.Errorf("both actor ids are required")
	}
	if fromID == toID {
		return fmt.Errorf("cannot transfer to self")
	}
	if p.Amount <= 0 {
		return fmt.Errorf("transfer amount must be positive")
	}
	if p.Now.IsZero() {
		return fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := debitActorTx(ctx, tx, fromID, p.Amount, p.Now); err != nil {
		return err
	}
	if _, err := creditActorTx(ctx, tx, toID, p.Amount, 0, p.Now); err != nil {
		return err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp: p.Now,
		ActorID:   fromID,
		Kind:      storage.LedgerTransfer,
		CoinDelta: -p.Amount,
		Ref:       p.Ref,
	}); err != nil {
		return err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp: p.Now,
		ActorID:   toID,
		Kind:      storage.LedgerTransfer,
		CoinDelta: p.Amount,
		Ref:       p.Ref,
	}); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}

// TransferItems moves item stacks between two actors all-or-nothing.
// The first shortfall rolls back every movement.
func (s *Store) TransferItems(ctx context.Context, p storage.TransferItemsParams) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("storage is not configured")
	}
	fromID := strings.TrimSpace(p.FromID)
	toID := strings.TrimSpace(p.ToID)
	if fromID == "" || toID == "" {
		return fmt.Errorf("both actor ids are required")
	}
	if fromID == toID {
		return fmt.Errorf("cannot transfer to self")
	}
	if len(p.Items) == 0 {
		return fmt.Errorf("transfer items are required")
	}
	for _, item := range p.Items {
		if !item.Item.Kind.Valid() || item.Item.ID == "" {
			return fmt.Errorf("item reference is required")
		}
		if item.Quantity <= 0 {
			return fmt.Errorf("item quantities must be positive")
		}
	}
	if p.Now.IsZero() {
		return fmt.Errorf("now is required")
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transfer: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, item := range p.Items {
		if err := decrementStackTx(ctx, tx, fromID, item.Item, item.Quantity, p.Now); err != nil {
			return err
		}
		if err := upsertStackTx(ctx, tx, toID, item.Item, item.Quantity, p.Now); err != nil {
			return err
		}
		if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
			Timestamp:     p.Now,
			ActorID:       fromID,
			Kind:          storage.LedgerTransfer,
			Item:          item.Item,
			QuantityDelta: -item.Quantity,
			Ref:           p.Ref,
		}); err != nil {
			return err
		}
		if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
			Timestamp:     p.Now,
			ActorID:       toID,
			Kind:          storage.LedgerTransfer,
			Item:          item.Item,
			QuantityDelta: item.Quantity,
			Ref:           p.Ref,
		}); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transfer: %w", err)
	}
	return nil
}
