package economy

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
	"github.com/louisbranch/carddex/internal/storage/sqlite"
)

func newTestService(t *testing.T) (*Service, *sqlite.Store) {
	t.Helper()
	store, err := sqlite.Open(filepath.Join(t.TempDir(), "dex.sqlite"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	now := time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC)
	svc, err := NewService(store, catalog.Default(), nil, func() time.Time { return now })
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, store
}

func mustItem(t *testing.T, kind catalog.ItemKind, raw string) catalog.ItemRef {
	t.Helper()
	item, err := catalog.ParseItemRef(kind, raw)
	if err != nil {
		t.Fatalf("parse item %s: %v", raw, err)
	}
	return item
}

func giveSlots(t *testing.T, svc *Service, actorID, puzzleID string, slots ...int) {
	t.Helper()
	ctx := context.Background()
	for _, slot := range slots {
		ref := catalog.PieceRef{Puzzle: puzzleID, Slot: slot}
		_, err := svc.AdjustStack(ctx, AdjustStackInput{
			ActorID: actorID,
			Item:    catalog.PieceItem(ref),
			Delta:   1,
			Kind:    storage.LedgerAdjust,
		})
		if err != nil {
			t.Fatalf("give slot %d: %v", slot, err)
		}
	}
}

func TestCreditReportsLevelUp(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	state, err := svc.Credit(ctx, CreditInput{ActorID: "alice", Coins: 500, XP: 100, Kind: storage.LedgerAdjust})
	if err != nil {
		t.Fatalf("credit actor: %v", err)
	}
	if state.Actor.Balance != 500 || state.Actor.Experience != 100 {
		t.Fatalf("actor = %+v, want balance 500 experience 100", state.Actor)
	}
	if state.Level != 2 || !state.LeveledUp {
		t.Fatalf("level = %d leveled up = %t, want 2 true", state.Level, state.LeveledUp)
	}

	state, err = svc.Credit(ctx, CreditInput{ActorID: "alice", XP: 50, Kind: storage.LedgerAdjust})
	if err != nil {
		t.Fatalf("credit again: %v", err)
	}
	if state.Level != 2 || state.LeveledUp {
		t.Fatalf("level = %d leveled up = %t, want 2 false", state.Level, state.LeveledUp)
	}
}

func TestDebitInsufficientFunds(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, CreditInput{ActorID: "bob", Coins: 100, Kind: storage.LedgerAdjust}); err != nil {
		t.Fatalf("fund actor: %v", err)
	}
	if _, err := svc.Debit(ctx, DebitInput{ActorID: "bob", Coins: 150, Kind: storage.LedgerAdjust}); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("debit error = %v, want insufficient funds", err)
	}

	state, err := svc.Debit(ctx, DebitInput{ActorID: "bob", Coins: 60, Kind: storage.LedgerAdjust})
	if err != nil {
		t.Fatalf("debit actor: %v", err)
	}
	if state.Actor.Balance != 40 {
		t.Fatalf("balance = %d, want 40", state.Actor.Balance)
	}
}

func TestAdjustStackUnknownItem(t *testing.T) {
	svc, _ := newTestService(t)

	item := catalog.ItemRef{Kind: catalog.ItemCard, ID: "zz9-999a"}
	_, err := svc.AdjustStack(context.Background(), AdjustStackInput{
		ActorID: "alice",
		Item:    item,
		Delta:   1,
		Kind:    storage.LedgerAdjust,
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("adjust error = %v, want not found", err)
	}
}

func TestTransferCoinsBetweenActors(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, CreditInput{ActorID: "alice", Coins: 500, Kind: storage.LedgerAdjust}); err != nil {
		t.Fatalf("fund actor: %v", err)
	}
	if err := svc.TransferCoins(ctx, "alice", "bob", 200); err != nil {
		t.Fatalf("transfer coins: %v", err)
	}

	bob, err := store.GetActor(ctx, "bob")
	if err != nil {
		t.Fatalf("get actor: %v", err)
	}
	if bob.Balance != 200 {
		t.Fatalf("balance = %d, want 200", bob.Balance)
	}

	if err := svc.TransferCoins(ctx, "alice", "alice", 10); err == nil {
		t.Fatal("expected self transfer to fail")
	}
}

func TestTransferItemsUnknownItem(t *testing.T) {
	svc, _ := newTestService(t)

	err := svc.TransferItems(context.Background(), "alice", "bob", []storage.ItemQuantity{
		{Item: catalog.ItemRef{Kind: catalog.ItemCard, ID: "zz9-1a"}, Quantity: 1},
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("transfer error = %v, want not found", err)
	}
}

func TestCompletePuzzleAwardsExperience(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	giveSlots(t, svc, "alice", "os1_puzzle", 1, 2, 3, 4, 5, 6, 7, 8, 9)

	completion, err := svc.CompletePuzzle(ctx, "alice", "os1_puzzle")
	if err != nil {
		t.Fatalf("complete puzzle: %v", err)
	}
	if completion.TimesCompleted != 1 {
		t.Fatalf("times completed = %d, want 1", completion.TimesCompleted)
	}

	actor, err := store.GetActor(ctx, "alice")
	if err != nil {
		t.Fatalf("get actor: %v", err)
	}
	if actor.Experience != 200 {
		t.Fatalf("experience = %d, want 200", actor.Experience)
	}
}

func TestCompletePuzzleNamesMissingSlots(t *testing.T) {
	svc, _ := newTestService(t)

	giveSlots(t, svc, "alice", "os1_puzzle", 1, 2, 3, 4, 5, 6, 7)

	_, err := svc.CompletePuzzle(context.Background(), "alice", "os1_puzzle")
	if !errors.Is(err, storage.ErrInsufficientInventory) {
		t.Fatalf("complete error = %v, want insufficient inventory", err)
	}
	var appErr *apperrors.Error
	if !errors.As(err, &appErr) {
		t.Fatalf("expected app error, got %v", err)
	}
	if appErr.Metadata["Items"] != "os1_puzzle/8, os1_puzzle/9" {
		t.Fatalf("missing slots = %q, want os1_puzzle/8, os1_puzzle/9", appErr.Metadata["Items"])
	}
	if appErr.Metadata["Have"] != "7" || appErr.Metadata["Need"] != "9" {
		t.Fatalf("metadata = %v, want have 7 need 9", appErr.Metadata)
	}
}

func TestCompletePuzzleUnknownPuzzle(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.CompletePuzzle(context.Background(), "alice", "zz_puzzle")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("complete error = %v, want not found", err)
	}
}

func TestSummaryNewActor(t *testing.T) {
	svc, _ := newTestService(t)

	sum, err := svc.Summary(context.Background(), "fresh")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.Level != 1 || sum.NextLevelAt != 100 {
		t.Fatalf("level = %d next at %d, want 1 and 100", sum.Level, sum.NextLevelAt)
	}
	if sum.DistinctCards != 0 || sum.DistinctPieces != 0 {
		t.Fatalf("counts = %d cards %d pieces, want zeroes", sum.DistinctCards, sum.DistinctPieces)
	}
	if sum.CatalogCards != catalog.Default().TotalCards() {
		t.Fatalf("catalog cards = %d, want %d", sum.CatalogCards, catalog.Default().TotalCards())
	}
}

func TestSummaryCountsDistinctItems(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []string{"os1-1a", "os1-1b", "os2-50a"} {
		item := mustItem(t, catalog.ItemCard, raw)
		if _, err := svc.AdjustStack(ctx, AdjustStackInput{ActorID: "alice", Item: item, Delta: 2, Kind: storage.LedgerAdjust}); err != nil {
			t.Fatalf("give card %s: %v", raw, err)
		}
	}
	giveSlots(t, svc, "alice", "os1_puzzle", 3, 4)

	sum, err := svc.Summary(ctx, "alice")
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if sum.DistinctCards != 3 || sum.DistinctPieces != 2 {
		t.Fatalf("counts = %d cards %d pieces, want 3 and 2", sum.DistinctCards, sum.DistinctPieces)
	}
}

func TestPuzzleProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	giveSlots(t, svc, "alice", "os2_puzzle", 2, 5, 9)

	progress, err := svc.PuzzleProgress(ctx, "alice")
	if err != nil {
		t.Fatalf("puzzle progress: %v", err)
	}
	if len(progress) != len(catalog.Default().Puzzles()) {
		t.Fatalf("puzzles = %d, want %d", len(progress), len(catalog.Default().Puzzles()))
	}
	var os2 PuzzleProgress
	for _, p := range progress {
		if p.Puzzle.ID == "os2_puzzle" {
			os2 = p
		}
	}
	if len(os2.OwnedSlots) != 3 || os2.OwnedSlots[0] != 2 || os2.OwnedSlots[2] != 9 {
		t.Fatalf("owned slots = %v, want [2 5 9]", os2.OwnedSlots)
	}
	if os2.TimesCompleted != 0 {
		t.Fatalf("times completed = %d, want 0", os2.TimesCompleted)
	}
}

func TestCollectionProgress(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	for _, raw := range []string{"os1-1a", "os1-2a", "os2-50a"} {
		item := mustItem(t, catalog.ItemCard, raw)
		if _, err := svc.AdjustStack(ctx, AdjustStackInput{ActorID: "alice", Item: item, Delta: 1, Kind: storage.LedgerAdjust}); err != nil {
			t.Fatalf("give card %s: %v", raw, err)
		}
	}

	progress, err := svc.CollectionProgress(ctx, "alice")
	if err != nil {
		t.Fatalf("collection progress: %v", err)
	}
	bySeries := make(map[string]SeriesProgress, len(progress))
	for _, p := range progress {
		bySeries[p.Series.ID] = p
	}
	if got := bySeries["os1"]; got.Owned != 2 || got.Total != 82 {
		t.Fatalf("os1 progress = %d/%d, want 2/82", got.Owned, got.Total)
	}
	if got := bySeries["os2"]; got.Owned != 1 {
		t.Fatalf("os2 owned = %d, want 1", got.Owned)
	}
}

func TestLeaderboardAnnotatesLevel(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, CreditInput{ActorID: "rich", Coins: 900, XP: 250, Kind: storage.LedgerAdjust}); err != nil {
		t.Fatalf("fund actor: %v", err)
	}
	if _, err := svc.Credit(ctx, CreditInput{ActorID: "poor", Coins: 10, Kind: storage.LedgerAdjust}); err != nil {
		t.Fatalf("fund actor: %v", err)
	}

	standings, err := svc.Leaderboard(ctx, storage.LeaderboardByBalance, 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(standings) != 2 || standings[0].Actor.ID != "rich" {
		t.Fatalf("standings = %+v, want rich first", standings)
	}
	if standings[0].Level != 3 {
		t.Fatalf("level = %d, want 3", standings[0].Level)
	}
}

func TestHistoryFilters(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	if _, err := svc.Credit(ctx, CreditInput{ActorID: "alice", Coins: 100, Kind: storage.LedgerAdjust}); err != nil {
		t.Fatalf("credit actor: %v", err)
	}
	if _, err := svc.Credit(ctx, CreditInput{ActorID: "bob", Coins: 200, Kind: storage.LedgerAdjust}); err != nil {
		t.Fatalf("credit actor: %v", err)
	}

	page, err := svc.History(ctx, HistoryInput{Filter: `actor_id = "alice"`, PageSize: 10})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(page.Entries) != 1 || page.Entries[0].ActorID != "alice" {
		t.Fatalf("entries = %+v, want one alice entry", page.Entries)
	}

	if _, err := svc.History(ctx, HistoryInput{Filter: "kind ~~ nonsense"}); apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("history error = %v, want invalid argument", err)
	}
}
