// Package trade runs two-party trade sessions: negotiation, double
// confirmation, and all-or-nothing settlement. The storage layer keeps
// settlement atomic; this package serializes sessions through keyed
// locks and expires idle ones lazily.
package trade

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/platform/id"
	"github.com/louisbranch/carddex/internal/platform/keylock"
	"github.com/louisbranch/carddex/internal/storage"
)

// DefaultIdleWindow is how long a session survives without activity.
const DefaultIdleWindow = 30 * time.Minute

// Store is the persistence the trade service depends on.
type Store interface {
	storage.ActorStore
	storage.StackStore
	storage.TradeStore
}

// Service manages trade sessions.
type Service struct {
	store      Store
	cat        *catalog.Catalog
	locks      *keylock.Locker
	clock      func() time.Time
	newID      func() (string, error)
	idleWindow time.Duration
}

// NewService wires a trade service. A nil locker, clock, or id source
// falls back to defaults; a non-positive idle window falls back to
// DefaultIdleWindow.
func NewService(store Store, cat *catalog.Catalog, locks *keylock.Locker, clock func() time.Time, newID func() (string, error), idleWindow time.Duration) (*Service, error) {
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
	if newID == nil {
		newID = id.NewID
	}
	return &Service{
		store:      store,
		cat:        cat,
		locks:      locks,
		clock:      clock,
		newID:      newID,
		idleWindow: defaultWindow(idleWindow),
	}, nil
}

func defaultWindow(w time.Duration) time.Duration {
	if w <= 0 {
		return DefaultIdleWindow
	}
	return w
}

// Open starts a session between two actors in the negotiating state.
// Either party already holding a live session rejects the open.
func (s *Service) Open(ctx context.Context, actorA, actorB string) (storage.Trade, error) {
	actorA = strings.TrimSpace(actorA)
	actorB = strings.TrimSpace(actorB)
	if actorA == "" || actorB == "" {
		return storage.Trade{}, fmt.Errorf("both actor ids are required")
	}
	if actorA == actorB {
		return storage.Trade{}, fmt.Errorf("cannot trade with self")
	}
	now := s.clock()

	unlock := s.locks.Lock("actor/"+actorA, "actor/"+actorB)
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, actorA, now); err != nil {
		return storage.Trade{}, err
	}
	if _, err := s.store.EnsureActor(ctx, actorB, now); err != nil {
		return storage.Trade{}, err
	}

	tradeID, err := s.newID()
	if err != nil {
		return storage.Trade{}, fmt.Errorf("mint trade id: %w", err)
	}
	return s.store.CreateTrade(ctx, storage.CreateTradeParams{
		ID:         tradeID,
		ActorA:     actorA,
		ActorB:     actorB,
		Now:        now,
		IdleCutoff: now.Add(-s.idleWindow),
	})
}

// Get reads one session with its offers.
func (s *Service) Get(ctx context.Context, tradeID string) (storage.Trade, error) {
	return s.store.GetTrade(ctx, tradeID)
}

// ActiveFor returns the actor's live session, if any.
func (s *Service) ActiveFor(ctx context.Context, actorID string) (storage.Trade, error) {
	return s.store.ActiveTradeForActor(ctx, actorID, s.clock().Add(-s.idleWindow))
}

// AddItem sets the actor's offer of one item. Ownership is checked as
// an advisory courtesy; settlement re-validates authoritatively. Any
// offer change rewinds confirmations.
func (s *Service) AddItem(ctx context.Context, tradeID, actorID string, item catalog.ItemRef, quantity int64) (storage.Trade, error) {
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}
	if quantity <= 0 {
		return storage.Trade{}, fmt.Errorf("quantity must be positive")
	}
	if !s.cat.ItemExists(item) {
		return storage.Trade{}, apperrors.WithMetadata(apperrors.CodeNotFound, "item not found", map[string]string{
			"Item": item.ID,
		})
	}
	now := s.clock()

	unlock := s.locks.Lock("trade/" + tradeID)
	defer unlock()

	if _, err := s.liveTrade(ctx, tradeID, now); err != nil {
		return storage.Trade{}, err
	}

	stack, err := s.store.GetStack(ctx, actorID, item)
	if err != nil {
		return storage.Trade{}, err
	}
	if stack.Quantity < quantity {
		return storage.Trade{}, apperrors.WithMetadata(apperrors.CodeInsufficientInventory, "not enough copies to offer", map[string]string{
			"Item": item.ID,
			"Have": strconv.FormatInt(stack.Quantity, 10),
			"Need": strconv.FormatInt(quantity, 10),
		})
	}

	return s.store.PutTradeOffer(ctx, storage.TradeOfferParams{
		TradeID:  tradeID,
		ActorID:  actorID,
		Item:     item,
		Quantity: quantity,
		Now:      now,
	})
}

// RemoveItem clears the actor's offer of one item.
func (s *Service) RemoveItem(ctx context.Context, tradeID, actorID string, item catalog.ItemRef) (storage.Trade, error) {
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("trade/" + tradeID)
	defer unlock()

	if _, err := s.liveTrade(ctx, tradeID, now); err != nil {
		return storage.Trade{}, err
	}
	return s.store.PutTradeOffer(ctx, storage.TradeOfferParams{
		TradeID:  tradeID,
		ActorID:  actorID,
		Item:     item,
		Quantity: 0,
		Now:      now,
	})
}

// Confirm records the caller's confirmation. When both parties have
// confirmed, settlement runs immediately: every offer is re-validated
// against current stacks and all items move both directions in one
// transaction, or the session rewinds to negotiating with StaleOffer.
func (s *Service) Confirm(ctx context.Context, tradeID, actorID string) (storage.Trade, error) {
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}

	// Read the parties first so settlement can hold both actor locks
	// alongside the session lock.
	peek, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	if !peek.Party(actorID) {
		return storage.Trade{}, fmt.Errorf("actor is not a trade participant")
	}
	now := s.clock()

	unlock := s.locks.Lock("trade/"+tradeID, "actor/"+peek.ActorA, "actor/"+peek.ActorB)
	defer unlock()

	if _, err := s.liveTrade(ctx, tradeID, now); err != nil {
		return storage.Trade{}, err
	}

	trade, err := s.store.ConfirmTrade(ctx, storage.ConfirmTradeParams{
		TradeID: tradeID,
		ActorID: actorID,
		Now:     now,
	})
	if err != nil {
		return storage.Trade{}, err
	}
	if trade.State != storage.TradeAwaiting {
		return trade, nil
	}
	return s.store.SettleTrade(ctx, storage.SettleTradeParams{
		TradeID: tradeID,
		Now:     now,
	})
}

// Cancel ends a session from any non-terminal state.
func (s *Service) Cancel(ctx context.Context, tradeID, actorID string) (storage.Trade, error) {
	tradeID = strings.TrimSpace(tradeID)
	if tradeID == "" {
		return storage.Trade{}, fmt.Errorf("trade id is required")
	}
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.Trade{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock("trade/" + tradeID)
	defer unlock()

	if _, err := s.liveTrade(ctx, tradeID, now); err != nil {
		return storage.Trade{}, err
	}
	return s.store.CancelTrade(ctx, storage.CancelTradeParams{
		TradeID: tradeID,
		ActorID: actorID,
		Now:     now,
	})
}

// ExpireIdle sweeps sessions idle past the window and reports how many
// were marked expired.
func (s *Service) ExpireIdle(ctx context.Context) (int64, error) {
	return s.store.ExpireTrades(ctx, s.clock().Add(-s.idleWindow))
}

// liveTrade loads a session and lazily expires it when it has idled
// past the window, so a dead session rejects mutation with its real
// state instead of acting live.
func (s *Service) liveTrade(ctx context.Context, tradeID string, now time.Time) (storage.Trade, error) {
	trade, err := s.store.GetTrade(ctx, tradeID)
	if err != nil {
		return storage.Trade{}, err
	}
	cutoff := now.Add(-s.idleWindow)
	if !trade.State.Terminal() && !trade.LastActivityAt.After(cutoff) {
		if _, err := s.store.ExpireTrades(ctx, cutoff); err != nil {
			return storage.Trade{}, err
		}
		return s.store.GetTrade(ctx, tradeID)
	}
	return trade, nil
}
