// Package rewards orchestrates the timed reward flows: the daily
// stipend, the hourly and leveled claims, and pack openings. Cooldowns
// are reserved before any draw and are not refunded if the flow fails
// afterward.
package rewards

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/cooldown"
	"github.com/louisbranch/carddex/internal/draw"
	"github.com/louisbranch/carddex/internal/economy"
	"github.com/louisbranch/carddex/internal/platform/keylock"
	"github.com/louisbranch/carddex/internal/storage"
)

// Store is the persistence the rewards service depends on.
type Store interface {
	storage.ActorStore
	storage.GrantStore
}

// Service composes cooldowns, the draw engine, and the store into the
// player-facing reward flows.
type Service struct {
	store     Store
	cat       *catalog.Catalog
	eng       *draw.Engine
	cooldowns *cooldown.Tracker
	locks     *keylock.Locker
	clock     func() time.Time
	windows   cooldown.Windows
}

// NewService wires a rewards service. A nil locker or clock falls back
// to a fresh locker and wall-clock time; zero windows fall back to the
// stock cadence.
func NewService(store Store, cat *catalog.Catalog, eng *draw.Engine, cooldowns *cooldown.Tracker, locks *keylock.Locker, clock func() time.Time, windows cooldown.Windows) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("draw engine is required")
	}
	if cooldowns == nil {
		return nil, fmt.Errorf("cooldown tracker is required")
	}
	if locks == nil {
		locks = keylock.New()
	}
	if clock == nil {
		clock = time.Now
	}
	if windows == (cooldown.Windows{}) {
		windows = cooldown.DefaultWindows()
	}
	return &Service{
		store:     store,
		cat:       cat,
		eng:       eng,
		cooldowns: cooldowns,
		locks:     locks,
		clock:     clock,
		windows:   windows,
	}, nil
}

// DailyReward reports one applied daily stipend.
type DailyReward struct {
	Actor     storage.Actor
	Coins     int64
	XP        int64
	Level     int64
	LeveledUp bool
}

// Daily pays the level-scaled stipend once per daily window.
func (s *Service) Daily(ctx context.Context, actorID string) (DailyReward, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return DailyReward{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("actor/" + actorID)
	defer unlock()

	actor, err := s.store.EnsureActor(ctx, actorID, now)
	if err != nil {
		return DailyReward{}, err
	}
	level := economy.Level(actor.Experience)

	if _, err := s.cooldowns.Reserve(ctx, actorID, cooldown.ActionDaily, s.windows.Daily); err != nil {
		return DailyReward{}, err
	}

	coins := DailyCoins(level)
	after, err := s.store.CreditActor(ctx, storage.CreditParams{
		ActorID: actorID,
		Coins:   coins,
		XP:      DailyXP,
		Kind:    storage.LedgerDaily,
		Now:     now,
	})
	if err != nil {
		return DailyReward{}, err
	}
	newLevel := economy.Level(after.Experience)
	return DailyReward{
		Actor:     after,
		Coins:     coins,
		XP:        DailyXP,
		Level:     newLevel,
		LeveledUp: newLevel > level,
	}, nil
}

// ClaimReward reports one applied claim draw.
type ClaimReward struct {
	Actor     storage.Actor
	Item      catalog.ItemRef
	WasNew    bool
	Coins     int64
	XP        int64
	Level     int64
	LeveledUp bool
}

// Claim draws a free item once per claim window: a puzzle piece at the
// flat chance, otherwise a card at tier odds.
func (s *Service) Claim(ctx context.Context, actorID string) (ClaimReward, error) {
	return s.claim(ctx, actorID, cooldown.ActionClaim, s.windows.Claim, false)
}

// LeveledClaim draws once per leveled window with the piece and
// B-variant chances boosted by actor level.
func (s *Service) LeveledClaim(ctx context.Context, actorID string) (ClaimReward, error) {
	return s.claim(ctx, actorID, cooldown.ActionLeveledClaim, s.windows.LeveledClaim, true)
}

func (s *Service) claim(ctx context.Context, actorID string, action cooldown.Action, window time.Duration, leveled bool) (ClaimReward, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return ClaimReward{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("actor/" + actorID)
	defer unlock()

	actor, err := s.store.EnsureActor(ctx, actorID, now)
	if err != nil {
		return ClaimReward{}, err
	}
	level := economy.Level(actor.Experience)

	if _, err := s.cooldowns.Reserve(ctx, actorID, action, window); err != nil {
		return ClaimReward{}, err
	}

	pieceChance := ClaimPieceChance
	kind := storage.LedgerClaim
	if leveled {
		pieceChance = draw.LeveledChance(level)
		kind = storage.LedgerLeveledClaim
	}

	var item catalog.ItemRef
	if s.eng.Bool(pieceChance) {
		if piece, ok := s.eng.Piece(); ok {
			item = catalog.PieceItem(piece)
		}
	}
	if item == (catalog.ItemRef{}) {
		var card catalog.CardID
		if leveled {
			card = s.eng.CardWithBChance(draw.LeveledChance(level))
		} else {
			card = s.eng.Card()
		}
		item = catalog.CardItem(card)
	}

	params, err := s.drawParams(actorID, item, level, kind, now)
	if err != nil {
		return ClaimReward{}, err
	}
	grant, err := s.store.GrantDraw(ctx, params)
	if err != nil {
		return ClaimReward{}, err
	}
	newLevel := economy.Level(grant.Actor.Experience)
	return ClaimReward{
		Actor:     grant.Actor,
		Item:      item,
		WasNew:    grant.WasNew,
		Coins:     grant.CoinsAwarded,
		XP:        grant.XPAwarded,
		Level:     newLevel,
		LeveledUp: newLevel > level,
	}, nil
}

// drawParams prices a claimed item. Claim pieces award experience
// only; cards use the catch formula with new-card bonuses.
func (s *Service) drawParams(actorID string, item catalog.ItemRef, level int64, kind storage.LedgerKind, now time.Time) (storage.GrantDrawParams, error) {
	p := storage.GrantDrawParams{ActorID: actorID, Item: item, Kind: kind, Now: now}
	switch item.Kind {
	case catalog.ItemPiece:
		p.XP = PieceXP
	case catalog.ItemCard:
		card, err := item.Card()
		if err != nil {
			return p, err
		}
		_, traits, ok := s.cat.CardTier(card)
		if !ok {
			return p, fmt.Errorf("card %s has no tier", card)
		}
		p.Coins = CardCoins(level, traits.CoinMultiplier, card.Variant == catalog.VariantB)
		p.XP = CardXP
		p.NewItemCoins = NewCardCoins
		p.NewItemXP = NewCardXP
	default:
		return p, fmt.Errorf("unknown item kind %q", item.Kind)
	}
	return p, nil
}

// PackReward reports one opened pack.
type PackReward struct {
	Actor     storage.Actor
	Cards     []storage.PackCard
	Piece     catalog.PieceRef
	HasPiece  bool
	Cost      int64
	XPAwarded int64
	Level     int64
	LeveledUp bool
}

// OpenPack debits the pack cost and grants four cards plus at most one
// puzzle piece, all in one transaction. Packs have no cooldown.
func (s *Service) OpenPack(ctx context.Context, actorID string) (PackReward, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return PackReward{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("actor/" + actorID)
	defer unlock()

	actor, err := s.store.EnsureActor(ctx, actorID, now)
	if err != nil {
		return PackReward{}, err
	}
	level := economy.Level(actor.Experience)

	pack := s.eng.OpenPack()
	grant, err := s.store.OpenPack(ctx, storage.OpenPackParams{
		ActorID:   actorID,
		Cost:      PackCost,
		Cards:     pack.Cards,
		Piece:     pack.Piece,
		HasPiece:  pack.HasPiece,
		PackXP:    PackXP,
		NewCardXP: NewCardXP,
		PieceXP:   PieceXP,
		Now:       now,
	})
	if err != nil {
		return PackReward{}, err
	}
	newLevel := economy.Level(grant.Actor.Experience)
	return PackReward{
		Actor:     grant.Actor,
		Cards:     grant.Cards,
		Piece:     grant.Piece,
		HasPiece:  grant.HasPiece,
		Cost:      PackCost,
		XPAwarded: grant.XPAwarded,
		Level:     newLevel,
		LeveledUp: newLevel > level,
	}, nil
}

// Remaining reports how long until an action reopens for the actor.
func (s *Service) Remaining(ctx context.Context, actorID string, action cooldown.Action) (time.Duration, error) {
	return s.cooldowns.Remaining(ctx, actorID, action, s.windows.For(action))
}
