// Package spawn runs the channel spawn lifecycle: drawing payloads,
// opening pending claim windows, and arbitrating catches so exactly
// one claimant wins each window.
package spawn

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/draw"
	"github.com/louisbranch/carddex/internal/economy"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/platform/keylock"
	"github.com/louisbranch/carddex/internal/rewards"
	"github.com/louisbranch/carddex/internal/storage"
)

// DefaultClaimWindow is how long a pending spawn stays claimable.
const DefaultClaimWindow = 10 * time.Minute

// pieceSpawnChance is the chance a drawn payload is a puzzle piece
// rather than a card.
const pieceSpawnChance = 0.05

// Store is the persistence the spawn service depends on.
type Store interface {
	storage.ActorStore
	storage.SpawnStore
}

// Service opens and settles spawn events. Channel and actor flows are
// serialized through keyed locks; the storage transition stays the
// authority on who wins a claim.
type Service struct {
	store       Store
	cat         *catalog.Catalog
	eng         *draw.Engine
	locks       *keylock.Locker
	clock       func() time.Time
	claimWindow time.Duration
}

// NewService wires a spawn service. A nil locker or clock falls back
// to a fresh locker and wall-clock time; a non-positive claim window
// falls back to DefaultClaimWindow.
func NewService(store Store, cat *catalog.Catalog, eng *draw.Engine, locks *keylock.Locker, clock func() time.Time, claimWindow time.Duration) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cat == nil {
		return nil, fmt.Errorf("catalog is required")
	}
	if eng == nil {
		return nil, fmt.Errorf("draw engine is required")
	}
	if locks == nil {
		locks = keylock.New()
	}
	if clock == nil {
		clock = time.Now
	}
	if claimWindow <= 0 {
		claimWindow = DefaultClaimWindow
	}
	return &Service{
		store:       store,
		cat:         cat,
		eng:         eng,
		locks:       locks,
		clock:       clock,
		claimWindow: claimWindow,
	}, nil
}

// RequestInput opens a spawn on one channel.
type RequestInput struct {
	ChannelID string
	// Item forces the payload; the zero value draws one.
	Item catalog.ItemRef
}

// Request opens a pending claim window on an enabled channel. The
// payload is drawn unless supplied: a puzzle piece at a small chance,
// otherwise a weighted card. A live pending window rejects the open.
func (s *Service) Request(ctx context.Context, in RequestInput) (storage.Spawn, error) {
	channelID := strings.TrimSpace(in.ChannelID)
	if channelID == "" {
		return storage.Spawn{}, fmt.Errorf("channel id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("channel/" + channelID)
	defer unlock()

	ch, err := s.store.GetSpawnChannel(ctx, channelID)
	if err != nil {
		return storage.Spawn{}, err
	}
	if !ch.Enabled {
		return storage.Spawn{}, apperrors.New(apperrors.CodeNotFound, "channel is not enabled for spawning")
	}

	item := in.Item
	if item == (catalog.ItemRef{}) {
		item = s.drawPayload()
	} else if !s.cat.ItemExists(item) {
		return storage.Spawn{}, apperrors.WithMetadata(apperrors.CodeInvalidArgument, "unknown spawn item", map[string]string{
			"Item": item.ID,
		})
	}

	return s.store.OpenSpawn(ctx, storage.OpenSpawnParams{
		ChannelID: channelID,
		Item:      item,
		Now:       now,
		ExpiresAt: now.Add(s.claimWindow),
	})
}

func (s *Service) drawPayload() catalog.ItemRef {
	if s.eng.Bool(pieceSpawnChance) {
		if piece, ok := s.eng.Piece(); ok {
			return catalog.PieceItem(piece)
		}
	}
	return catalog.CardItem(s.eng.Card())
}

// CatchResult reports one won claim.
type CatchResult struct {
	Spawn     storage.Spawn
	Actor     storage.Actor
	Item      catalog.ItemRef
	WasNew    bool
	Coins     int64
	XP        int64
	Level     int64
	LeveledUp bool
}

// Catch attempts to claim the channel's pending spawn for the actor.
// The state transition and the full reward commit in one storage
// transaction; losers of the race get AlreadyClaimed and late callers
// get SpawnExpired.
func (s *Service) Catch(ctx context.Context, channelID, actorID string) (CatchResult, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return CatchResult{}, fmt.Errorf("channel id is required")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return CatchResult{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("channel/"+channelID, "actor/"+actorID)
	defer unlock()

	actor, err := s.store.EnsureActor(ctx, actorID, now)
	if err != nil {
		return CatchResult{}, err
	}
	level := economy.Level(actor.Experience)

	spawn, err := s.store.GetSpawn(ctx, channelID)
	if err != nil {
		return CatchResult{}, err
	}
	params, err := s.claimParams(channelID, actorID, spawn.Item, level, now)
	if err != nil {
		return CatchResult{}, err
	}

	claim, err := s.store.ClaimSpawn(ctx, params)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrSpawnExpired):
			// Mark the lapsed window so the next request reopens cleanly.
			_, _ = s.store.ExpireSpawns(ctx, now)
			return CatchResult{}, err
		case errors.Is(err, storage.ErrSpawnClaimed), errors.Is(err, storage.ErrNotFound):
			return CatchResult{}, err
		default:
			log.Printf("catch rolled back channel=%s actor=%s invariant=claim_with_reward err=%v", channelID, actorID, err)
			return CatchResult{}, apperrors.Wrap(apperrors.CodeInternal, "claim could not be settled", err)
		}
	}

	newLevel := economy.Level(claim.Grant.Actor.Experience)
	return CatchResult{
		Spawn:     claim.Spawn,
		Actor:     claim.Grant.Actor,
		Item:      claim.Spawn.Item,
		WasNew:    claim.Grant.WasNew,
		Coins:     claim.Grant.CoinsAwarded,
		XP:        claim.Grant.XPAwarded,
		Level:     newLevel,
		LeveledUp: newLevel > level,
	}, nil
}

// claimParams prices the pending payload for the claiming actor.
// Caught pieces pay level coins without tier multipliers; cards use
// the catch formula with new-card bonuses.
func (s *Service) claimParams(channelID, actorID string, item catalog.ItemRef, level int64, now time.Time) (storage.ClaimSpawnParams, error) {
	p := storage.ClaimSpawnParams{ChannelID: channelID, ActorID: actorID, Now: now}
	switch item.Kind {
	case catalog.ItemPiece:
		p.Coins = rewards.PieceCoins(level)
		p.XP = rewards.PieceXP
	case catalog.ItemCard:
		card, err := item.Card()
		if err != nil {
			return p, err
		}
		_, traits, ok := s.cat.CardTier(card)
		if !ok {
			return p, fmt.Errorf("card %s has no tier", card)
		}
		p.Coins = rewards.CardCoins(level, traits.CoinMultiplier, card.Variant == catalog.VariantB)
		p.XP = rewards.CardXP
		p.NewItemCoins = rewards.NewCardCoins
		p.NewItemXP = rewards.NewCardXP
	default:
		return p, fmt.Errorf("unknown item kind %q", item.Kind)
	}
	return p, nil
}

// ExpireDue sweeps overdue pending events and reports how many were
// marked expired.
func (s *Service) ExpireDue(ctx context.Context) (int64, error) {
	return s.store.ExpireSpawns(ctx, s.clock())
}

// SetChannelConfig registers or updates a channel for spawning,
// preserving its spawn history.
func (s *Service) SetChannelConfig(ctx context.Context, channelID string, enabled bool) (storage.SpawnChannel, error) {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return storage.SpawnChannel{}, fmt.Errorf("channel id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("channel/" + channelID)
	defer unlock()

	existing, err := s.store.GetSpawnChannel(ctx, channelID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return storage.SpawnChannel{}, err
	}

	ch := storage.SpawnChannel{
		ChannelID:   channelID,
		Enabled:     enabled,
		LastSpawnAt: existing.LastSpawnAt,
		CreatedAt:   existing.CreatedAt,
		UpdatedAt:   now,
	}
	if ch.CreatedAt.IsZero() {
		ch.CreatedAt = now
	}
	if err := s.store.PutSpawnChannel(ctx, ch); err != nil {
		return storage.SpawnChannel{}, err
	}
	return ch, nil
}

// ChannelConfig reads one channel's spawn configuration.
func (s *Service) ChannelConfig(ctx context.Context, channelID string) (storage.SpawnChannel, error) {
	return s.store.GetSpawnChannel(ctx, channelID)
}

// Channels lists every registered spawn channel.
func (s *Service) Channels(ctx context.Context) ([]storage.SpawnChannel, error) {
	return s.store.ListSpawnChannels(ctx)
}

// Event reads the channel's current spawn event in any state.
func (s *Service) Event(ctx context.Context, channelID string) (storage.Spawn, error) {
	return s.store.GetSpawn(ctx, channelID)
}
