// Package craft converts duplicate copies of a card into its B
// variant.
package craft

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/platform/keylock"
	"github.com/louisbranch/carddex/internal/storage"
)

// craftXP is the experience awarded per successful conversion.
const craftXP = 100

// Store is the persistence the craft service depends on.
type Store interface {
	storage.ActorStore
	storage.StackStore
	CraftCard(ctx context.Context, p storage.CraftParams) (storage.Craft, error)
}

// Service turns spare A-variant copies into B variants at the cost set
// by each series.
type Service struct {
	store Store
	cat   *catalog.Catalog
	locks *keylock.Locker
	clock func() time.Time
}

// NewService wires a craft service. A nil locker or clock falls back
// to a fresh locker and wall-clock time.
func NewService(store Store, cat *catalog.Catalog, locks *keylock.Locker, clock func() time.Time) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if locks == nil {
		locks = keylock.New()
	}
	if clock == nil {
		clock = time.Now
	}
	return &Service{store: store, cat: cat, locks: locks, clock: clock}, nil
}

// Result reports one applied conversion.
type Result struct {
	Actor     storage.Actor
	From      storage.Stack
	To        storage.Stack
	Cost      int64
	XPAwarded int64
}

// Craft consumes the series' craft cost in A-variant copies of card
// and mints one B variant. Series without B variants cannot craft.
func (s *Service) Craft(ctx context.Context, actorID string, card catalog.CardID) (Result, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Result{}, fmt.Errorf("actor id is required")
	}

	from := card.Base()
	series, ok := s.cat.CardSeries(from)
	if !ok {
		return Result{}, errors.WithMetadata(errors.CodeNotFound, "card not found", map[string]string{
			"Item": card.String(),
		})
	}
	if series.NoBVariants {
		return Result{}, errors.WithMetadata(errors.CodeInvalidArgument, "series has no B variants to craft", map[string]string{
			"Item": from.String(),
		})
	}
	to := from.WithVariant(catalog.VariantB)
	now := s.clock()

	unlock := s.locks.Lock("actor/" + actorID)
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, actorID, now); err != nil {
		return Result{}, err
	}
	craft, err := s.store.CraftCard(ctx, storage.CraftParams{
		ActorID: actorID,
		From:    from,
		To:      to,
		Cost:    series.CraftCost,
		XP:      craftXP,
		Now:     now,
	})
	if err != nil {
		return Result{}, err
	}
	return Result{
		Actor:     craft.Actor,
		From:      craft.FromStack,
		To:        craft.ToStack,
		Cost:      series.CraftCost,
		XPAwarded: craftXP,
	}, nil
}

// Cost reports the series craft cost of one card without crafting.
func (s *Service) Cost(card catalog.CardID) (int64, error) {
	series, ok := s.cat.CardSeries(card.Base())
	if !ok {
		return 0, errors.WithMetadata(errors.CodeNotFound, "card not found", map[string]string{
			"Item": card.String(),
		})
	}
	if series.NoBVariants {
		return 0, errors.WithMetadata(errors.CodeInvalidArgument, "series has no B variants to craft", map[string]string{
			"Item": card.Base().String(),
		})
	}
	return series.CraftCost, nil
}
