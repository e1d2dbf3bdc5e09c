// Package economy is the ledgered heart of the game state: coin and
// experience accounting, item stacks, two-party transfers, and puzzle
// completion. Every mutation lands in the append-only ledger inside the
// transaction that applies it.
package economy

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/platform/keylock"
	"github.com/louisbranch/carddex/internal/storage"
)

// puzzleXP is the experience awarded for assembling a full puzzle.
const puzzleXP = 200

// Store is the persistence the economy service depends on.
type Store interface {
	storage.ActorStore
	storage.StackStore
	storage.TransferStore
	storage.PuzzleStore
	storage.LedgerStore
}

// Service serializes per-actor flows with keyed locks and translates
// between catalog identities and stored state.
type Service struct {
	store Store
	cat   *catalog.Catalog
	locks *keylock.Locker
	clock func() time.Time
}

// NewService wires an economy service. A nil locker or clock falls back
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

func actorKey(actorID string) string {
	return "actor/" + actorID
}

// ActorState is an actor snapshot with its derived level.
type ActorState struct {
	Actor     storage.Actor
	Level     int64
	LeveledUp bool
}

// CreditInput adds coins and experience to one actor.
type CreditInput struct {
	ActorID string
	Coins   int64
	XP      int64
	Kind    storage.LedgerKind
	Ref     string
}

// Credit adds coins and experience, creating the actor on first touch.
// The returned state reports whether the credit crossed a level
// threshold.
func (s *Service) Credit(ctx context.Context, in CreditInput) (ActorState, error) {
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return ActorState{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock(actorKey(actorID))
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, actorID, now); err != nil {
		return ActorState{}, err
	}
	actor, err := s.store.CreditActor(ctx, storage.CreditParams{
		ActorID: actorID,
		Coins:   in.Coins,
		XP:      in.XP,
		Kind:    in.Kind,
		Ref:     in.Ref,
		Now:     now,
	})
	if err != nil {
		return ActorState{}, err
	}
	return stateAfterXPGain(actor, in.XP), nil
}

// AddExperience awards experience alone and reports level progression.
func (s *Service) AddExperience(ctx context.Context, actorID string, xp int64, kind storage.LedgerKind, ref string) (ActorState, error) {
	return s.Credit(ctx, CreditInput{ActorID: actorID, XP: xp, Kind: kind, Ref: ref})
}

// DebitInput removes coins from one actor.
type DebitInput struct {
	ActorID string
	Coins   int64
	Kind    storage.LedgerKind
	Ref     string
}

// Debit removes coins, failing with InsufficientFunds on a shortfall.
func (s *Service) Debit(ctx context.Context, in DebitInput) (ActorState, error) {
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return ActorState{}, fmt.Errorf("actor id is required")
	}
	now := s.clock()

	unlock := s.locks.Lock(actorKey(actorID))
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, actorID, now); err != nil {
		return ActorState{}, err
	}
	actor, err := s.store.DebitActor(ctx, storage.DebitParams{
		ActorID: actorID,
		Coins:   in.Coins,
		Kind:    in.Kind,
		Ref:     in.Ref,
		Now:     now,
	})
	if err != nil {
		return ActorState{}, err
	}
	return ActorState{Actor: actor, Level: Level(actor.Experience)}, nil
}

// AdjustStackInput changes one stack quantity.
type AdjustStackInput struct {
	ActorID string
	Item    catalog.ItemRef
	Delta   int64
	Kind    storage.LedgerKind
	Ref     string
}

// AdjustStack adds or removes copies of an item. Negative deltas fail
// with InsufficientInventory rather than going below zero.
func (s *Service) AdjustStack(ctx context.Context, in AdjustStackInput) (storage.Stack, error) {
	actorID := strings.TrimSpace(in.ActorID)
	if actorID == "" {
		return storage.Stack{}, fmt.Errorf("actor id is required")
	}
	if !s.cat.ItemExists(in.Item) {
		return storage.Stack{}, errUnknownItem(in.Item)
	}
	now := s.clock()

	unlock := s.locks.Lock(actorKey(actorID))
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, actorID, now); err != nil {
		return storage.Stack{}, err
	}
	return s.store.AdjustStack(ctx, storage.AdjustStackParams{
		ActorID: actorID,
		Item:    in.Item,
		Delta:   in.Delta,
		Kind:    in.Kind,
		Ref:     in.Ref,
		Now:     now,
	})
}

// TransferCoins moves coins between two actors, all or nothing.
func (s *Service) TransferCoins(ctx context.Context, fromID, toID string, amount int64) error {
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if fromID == "" || toID == "" {
		return fmt.Errorf("both actor ids are required")
	}
	if fromID == toID {
		return fmt.Errorf("cannot transfer to self")
	}
	now := s.clock()

	unlock := s.locks.Lock(actorKey(fromID), actorKey(toID))
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, fromID, now); err != nil {
		return err
	}
	if _, err := s.store.EnsureActor(ctx, toID, now); err != nil {
		return err
	}
	return s.store.TransferCoins(ctx, storage.TransferCoinsParams{
		FromID: fromID,
		ToID:   toID,
		Amount: amount,
		Now:    now,
	})
}

// TransferItems moves item stacks between two actors, all or nothing.
func (s *Service) TransferItems(ctx context.Context, fromID, toID string, items []storage.ItemQuantity) error {
	fromID = strings.TrimSpace(fromID)
	toID = strings.TrimSpace(toID)
	if fromID == "" || toID == "" {
		return fmt.Errorf("both actor ids are required")
	}
	if fromID == toID {
		return fmt.Errorf("cannot transfer to self")
	}
	for _, item := range items {
		if !s.cat.ItemExists(item.Item) {
			return errUnknownItem(item.Item)
		}
	}
	now := s.clock()

	unlock := s.locks.Lock(actorKey(fromID), actorKey(toID))
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, fromID, now); err != nil {
		return err
	}
	if _, err := s.store.EnsureActor(ctx, toID, now); err != nil {
		return err
	}
	return s.store.TransferItems(ctx, storage.TransferItemsParams{
		FromID: fromID,
		ToID:   toID,
		Items:  items,
		Now:    now,
	})
}

// CompletePuzzle consumes one piece of every slot of a puzzle and
// awards its experience. The shortfall error names every missing slot,
// not just the first.
func (s *Service) CompletePuzzle(ctx context.Context, actorID, puzzleID string) (storage.PuzzleCompletion, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return storage.PuzzleCompletion{}, fmt.Errorf("actor id is required")
	}
	puzzle, ok := s.cat.Puzzle(strings.TrimSpace(puzzleID))
	if !ok {
		return storage.PuzzleCompletion{}, errors.WithMetadata(errors.CodeNotFound, "puzzle not found", map[string]string{
			"Item": puzzleID,
		})
	}
	now := s.clock()

	unlock := s.locks.Lock(actorKey(actorID))
	defer unlock()

	if _, err := s.store.EnsureActor(ctx, actorID, now); err != nil {
		return storage.PuzzleCompletion{}, err
	}

	missing, err := s.missingSlots(ctx, actorID, puzzle.ID)
	if err != nil {
		return storage.PuzzleCompletion{}, err
	}
	if len(missing) > 0 {
		return storage.PuzzleCompletion{}, errors.WithMetadata(errors.CodeInsufficientInventory, "puzzle is missing pieces", map[string]string{
			"Item":  puzzle.ID,
			"Items": missingSlotLabels(puzzle.ID, missing),
			"Have":  strconv.Itoa(catalog.PieceSlots - len(missing)),
			"Need":  strconv.Itoa(catalog.PieceSlots),
		})
	}

	return s.store.CompletePuzzle(ctx, storage.CompletePuzzleParams{
		ActorID:  actorID,
		PuzzleID: puzzle.ID,
		Slots:    catalog.PieceSlots,
		XP:       puzzleXP,
		Now:      now,
	})
}

func (s *Service) missingSlots(ctx context.Context, actorID, puzzleID string) ([]int, error) {
	owned, err := s.ownedSlots(ctx, actorID)
	if err != nil {
		return nil, err
	}
	var missing []int
	for slot := 1; slot <= catalog.PieceSlots; slot++ {
		if !owned[puzzleID][slot] {
			missing = append(missing, slot)
		}
	}
	return missing, nil
}

func stateAfterXPGain(actor storage.Actor, xpGained int64) ActorState {
	level := Level(actor.Experience)
	return ActorState{
		Actor:     actor,
		Level:     level,
		LeveledUp: xpGained > 0 && level > Level(actor.Experience-xpGained),
	}
}

func errUnknownItem(item catalog.ItemRef) error {
	return errors.WithMetadata(errors.CodeNotFound, "item not found", map[string]string{
		"Item": item.ID,
	})
}
