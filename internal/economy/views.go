package economy

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/filter"
	"github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
)

// Summary is a one-look profile of an actor: wallet, progression, and
// how much of the catalog they have touched.
type Summary struct {
	Actor          storage.Actor
	Level          int64
	NextLevelAt    int64
	DistinctCards  int
	DistinctPieces int
	CatalogCards   int
}

// Summary loads an actor profile, creating the actor on first touch so
// a brand-new participant sees zeroes instead of an error.
func (s *Service) Summary(ctx context.Context, actorID string) (Summary, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return Summary{}, fmt.Errorf("actor id is required")
	}

	actor, err := s.store.EnsureActor(ctx, actorID, s.clock())
	if err != nil {
		return Summary{}, err
	}
	stacks, err := s.store.ListStacks(ctx, actorID)
	if err != nil {
		return Summary{}, err
	}

	var cards, pieces int
	for _, stack := range stacks {
		switch stack.Item.Kind {
		case catalog.ItemCard:
			cards++
		case catalog.ItemPiece:
			pieces++
		}
	}

	level := Level(actor.Experience)
	return Summary{
		Actor:          actor,
		Level:          level,
		NextLevelAt:    LevelThreshold(level + 1),
		DistinctCards:  cards,
		DistinctPieces: pieces,
		CatalogCards:   s.cat.TotalCards(),
	}, nil
}

// Stacks lists every non-empty stack an actor holds.
func (s *Service) Stacks(ctx context.Context, actorID string) ([]storage.Stack, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("actor id is required")
	}
	return s.store.ListStacks(ctx, actorID)
}

// PuzzleProgress is one puzzle's assembly state for an actor.
type PuzzleProgress struct {
	Puzzle         catalog.Puzzle
	OwnedSlots     []int
	TimesCompleted int64
}

// PuzzleProgress reports owned slots and completion counts for every
// catalog puzzle, including ones the actor has not started.
func (s *Service) PuzzleProgress(ctx context.Context, actorID string) ([]PuzzleProgress, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("actor id is required")
	}

	owned, err := s.ownedSlots(ctx, actorID)
	if err != nil {
		return nil, err
	}
	completions, err := s.store.ListPuzzleCompletions(ctx, actorID)
	if err != nil {
		return nil, err
	}
	completed := make(map[string]int64, len(completions))
	for _, c := range completions {
		completed[c.PuzzleID] = c.TimesCompleted
	}

	puzzles := s.cat.Puzzles()
	out := make([]PuzzleProgress, 0, len(puzzles))
	for _, puzzle := range puzzles {
		var slots []int
		for slot := 1; slot <= catalog.PieceSlots; slot++ {
			if owned[puzzle.ID][slot] {
				slots = append(slots, slot)
			}
		}
		out = append(out, PuzzleProgress{
			Puzzle:         puzzle,
			OwnedSlots:     slots,
			TimesCompleted: completed[puzzle.ID],
		})
	}
	return out, nil
}

// SeriesProgress is one series' collection state for an actor.
type SeriesProgress struct {
	Series catalog.Series
	Owned  int
	Total  int
}

// CollectionProgress reports distinct cards owned per catalog series.
func (s *Service) CollectionProgress(ctx context.Context, actorID string) ([]SeriesProgress, error) {
	actorID = strings.TrimSpace(actorID)
	if actorID == "" {
		return nil, fmt.Errorf("actor id is required")
	}

	stacks, err := s.store.ListStacks(ctx, actorID)
	if err != nil {
		return nil, err
	}
	ownedBySeries := make(map[string]int)
	for _, stack := range stacks {
		card, err := stack.Item.Card()
		if err != nil {
			continue
		}
		ownedBySeries[card.Series]++
	}

	series := s.cat.SeriesList()
	out := make([]SeriesProgress, 0, len(series))
	for _, sr := range series {
		out = append(out, SeriesProgress{
			Series: sr,
			Owned:  ownedBySeries[sr.ID],
			Total:  sr.CardCount(),
		})
	}
	return out, nil
}

// Standing is one leaderboard row with the actor's derived level.
type Standing struct {
	Actor storage.Actor
	Level int64
}

// Leaderboard ranks actors by balance or experience.
func (s *Service) Leaderboard(ctx context.Context, order storage.LeaderboardOrder, limit int) ([]Standing, error) {
	actors, err := s.store.Leaderboard(ctx, order, limit)
	if err != nil {
		return nil, err
	}
	out := make([]Standing, 0, len(actors))
	for _, actor := range actors {
		out = append(out, Standing{Actor: actor, Level: Level(actor.Experience)})
	}
	return out, nil
}

// HistoryInput selects a page of ledger history.
type HistoryInput struct {
	// Filter is an optional AIP-160 expression over ledger fields such
	// as actor_id, kind, item_id, or coin_delta.
	Filter    string
	PageSize  int
	PageToken string
}

// History pages through the ledger, newest first.
func (s *Service) History(ctx context.Context, in HistoryInput) (storage.LedgerPage, error) {
	cond, err := filter.ParseLedgerFilter(in.Filter)
	if err != nil {
		return storage.LedgerPage{}, errors.Wrap(errors.CodeInvalidArgument, "invalid history filter", err)
	}
	return s.store.ListLedger(ctx, storage.LedgerQuery{
		Condition: cond,
		PageSize:  in.PageSize,
		PageToken: in.PageToken,
	})
}

// ownedSlots indexes an actor's piece stacks as puzzle id to owned
// slot numbers.
func (s *Service) ownedSlots(ctx context.Context, actorID string) (map[string]map[int]bool, error) {
	stacks, err := s.store.ListStacks(ctx, actorID)
	if err != nil {
		return nil, err
	}
	owned := make(map[string]map[int]bool)
	for _, stack := range stacks {
		piece, err := stack.Item.Piece()
		if err != nil {
			continue
		}
		if owned[piece.Puzzle] == nil {
			owned[piece.Puzzle] = make(map[int]bool)
		}
		owned[piece.Puzzle][piece.Slot] = true
	}
	return owned, nil
}

// missingSlotLabels renders missing slots as "puzzle/slot" references
// for shortfall messages.
func missingSlotLabels(puzzleID string, missing []int) string {
	labels := make([]string, 0, len(missing))
	for _, slot := range missing {
		labels = append(labels, catalog.PieceRef{Puzzle: puzzleID, Slot: slot}.String())
	}
	return strings.Join(labels, ", ")
}
