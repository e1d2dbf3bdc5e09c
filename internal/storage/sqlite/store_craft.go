package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/storage"
)

// CraftCard consumes cost copies of one card and produces one copy of
// another. The consumption is a conditional decrement, so two
// concurrent crafts cannot spend the same copies.
func (s *Store) CraftCard(ctx context.Context, p storage.CraftParams) (storage.Craft, error) {
	if err := ctx.Err(); err != nil {
		return storage.Craft{}, err
	}
	if s == nil || s.sqlDB == nil {
		return storage.Craft{}, fmt.Errorf("storage is not configured")
	}
	actorID := strings.TrimSpace(p.ActorID)
	if actorID == "" {
		return storage.Craft{}, fmt.Errorf("actor id is required")
	}
	if p.From == (catalog.CardID{}) || p.To == (catalog.CardID{}) {
		return storage.Craft{}, fmt.Errorf("both card ids are required")
	}
	if p.From == p.To {
		return storage.Craft{}, fmt.Errorf("cannot craft a card into itself")
	}
	if p.Cost <= 0 {
		return storage.Craft{}, fmt.Errorf("craft cost must be positive")
	}
	if p.XP < 0 {
		return storage.Craft{}, fmt.Errorf("craft experience must be non-negative")
	}
	if p.Now.IsZero() {
		return storage.Craft{}, fmt.Errorf("now is required")
	}

	fromItem := catalog.CardItem(p.From)
	toItem := catalog.CardItem(p.To)

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return storage.Craft{}, fmt.Errorf("begin craft: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := decrementStackTx(ctx, tx, actorID, fromItem, p.Cost, p.Now); err != nil {
		return storage.Craft{}, err
	}
	if err := upsertStackTx(ctx, tx, actorID, toItem, 1, p.Now); err != nil {
		return storage.Craft{}, err
	}
	actor, err := creditActorTx(ctx, tx, actorID, 0, p.XP, p.Now)
	if err != nil {
		return storage.Craft{}, err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp:     p.Now,
		ActorID:       actorID,
		Kind:          storage.LedgerCraft,
		Item:          fromItem,
		QuantityDelta: -p.Cost,
	}); err != nil {
		return storage.Craft{}, err
	}
	if err := appendLedgerTx(ctx, tx, storage.LedgerEntry{
		Timestamp:     p.Now,
		ActorID:       actorID,
		Kind:          storage.LedgerCraft,
		Item:          toItem,
		XPDelta:       p.XP,
		QuantityDelta: 1,
	}); err != nil {
		return storage.Craft{}, err
	}
	fromStack, err := getStackTx(ctx, tx, actorID, fromItem)
	if err != nil {
		return storage.Craft{}, err
	}
	toStack, err := getStackTx(ctx, tx, actorID, toItem)
	if err != nil {
		return storage.Craft{}, err
	}

	if err := tx.Commit(); err != nil {
		return storage.Craft{}, fmt.Errorf("commit craft: %w", err)
	}
	return storage.Craft{
		Actor:     actor,
		FromStack: fromStack,
		ToStack:   toStack,
	}, nil
}
