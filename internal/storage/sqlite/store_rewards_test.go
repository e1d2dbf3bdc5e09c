package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/storage"
)

func TestGrantDrawFirstCopyBonus(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	seedActor(t, store, "actor-1", now)
	item := cardItem(t, "os1-7a")

	params := storage.GrantDrawParams{
		ActorID:      "actor-1",
		Item:         item,
		Coins:        100,
		XP:           10,
		NewItemCoins: 200,
		NewItemXP:    20,
		Kind:         storage.LedgerCatch,
		Ref:          "channel-1",
		Now:          now,
	}

	first, err := store.GrantDraw(context.Background(), params)
	if err != nil {
		t.Fatalf("grant draw: %v", err)
	}
	if !first.WasNew {
		t.Fatal("expected first copy to be new")
	}
	if first.CoinsAwarded != 300 || first.XPAwarded != 30 {
		t.Fatalf("expected 300 coins and 30 xp with first-copy bonus, got %d and %d", first.CoinsAwarded, first.XPAwarded)
	}
	if first.Actor.Balance != 300 || first.Actor.Experience != 30 {
		t.Fatalf("expected actor balance 300 xp 30, got %d and %d", first.Actor.Balance, first.Actor.Experience)
	}
	if first.Stack.Quantity != 1 {
		t.Fatalf("expected stack quantity 1, got %d", first.Stack.Quantity)
	}

	params.Now = now.Add(time.Minute)
	second, err := store.GrantDraw(context.Background(), params)
	if err != nil {
		t.Fatalf("grant draw again: %v", err)
	}
	if second.WasNew {
		t.Fatal("expected second copy to not be new")
	}
	if second.CoinsAwarded != 100 || second.XPAwarded != 10 {
		t.Fatalf("expected base reward only, got %d coins and %d xp", second.CoinsAwarded, second.XPAwarded)
	}
	if second.Stack.Quantity != 2 {
		t.Fatalf("expected stack quantity 2, got %d", second.Stack.Quantity)
	}
}

func TestGrantDrawWritesOneLedgerEntry(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	seedActor(t, store, "actor-1", now)

	if _, err := store.GrantDraw(context.Background(), storage.GrantDrawParams{
		ActorID:      "actor-1",
		Item:         pieceItem(t, "os1_puzzle/4"),
		Coins:        60,
		XP:           5,
		NewItemCoins: 0,
		NewItemXP:    0,
		Kind:         storage.LedgerCatch,
		Ref:          "channel-9",
		Now:          now,
	}); err != nil {
		t.Fatalf("grant draw: %v", err)
	}

	page, err := store.ListLedger(context.Background(), storage.LedgerQuery{})
	if err != nil {
		t.Fatalf("list ledger: %v", err)
	}
	if len(page.Entries) != 1 {
		t.Fatalf("expected 1 ledger entry, got %d", len(page.Entries))
	}
	entry := page.Entries[0]
	if entry.Kind != storage.LedgerCatch || entry.CoinDelta != 60 || entry.XPDelta != 5 || entry.QuantityDelta != 1 {
		t.Fatalf("unexpected ledger entry: %+v", entry)
	}
	if entry.Ref != "channel-9" {
		t.Fatalf("expected ref channel-9, got %q", entry.Ref)
	}
}

func TestOpenPackChargesAndGrants(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	seedActor(t, store, "actor-1", now)
	fundActor(t, store, "actor-1", 6000, now)

	dupe := catalog.CardID{Series: "os1", Number: 3, Variant: catalog.VariantA}
	cards := []catalog.CardID{
		dupe,
		{Series: "os1", Number: 9, Variant: catalog.VariantB},
		dupe,
		{Series: "os2", Number: 14, Variant: catalog.VariantA},
	}

	grant, err := store.OpenPack(context.Background(), storage.OpenPackParams{
		ActorID:   "actor-1",
		Cost:      5000,
		Cards:     cards,
		Piece:     catalog.PieceRef{Puzzle: "os2_puzzle", Slot: 6},
		HasPiece:  true,
		PackXP:    25,
		NewCardXP: 20,
		PieceXP:   5,
		Ref:       "pack-1",
		Now:       now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("open pack: %v", err)
	}

	if grant.Actor.Balance != 1000 {
		t.Fatalf("expected balance 1000 after pack, got %d", grant.Actor.Balance)
	}
	if grant.Actor.PacksOpened != 1 {
		t.Fatalf("expected packs opened 1, got %d", grant.Actor.PacksOpened)
	}

	// Three distinct new cards plus a piece: 25 + 3*20 + 5.
	if grant.Actor.Experience != 90 {
		t.Fatalf("expected 90 xp, got %d", grant.Actor.Experience)
	}

	if len(grant.Cards) != 4 {
		t.Fatalf("expected 4 cards, got %d", len(grant.Cards))
	}
	if !grant.Cards[0].WasNew {
		t.Fatal("expected first copy of dupe to be new")
	}
	if grant.Cards[2].WasNew {
		t.Fatal("expected second copy of dupe in the same pack to not be new")
	}
	if !grant.HasPiece || grant.Piece.Puzzle != "os2_puzzle" {
		t.Fatalf("expected piece os2_puzzle/6, got %+v", grant.Piece)
	}

	if got := stackQuantity(t, store, "actor-1", catalog.CardItem(dupe)); got != 2 {
		t.Fatalf("expected 2 copies of dupe, got %d", got)
	}
	if got := stackQuantity(t, store, "actor-1", pieceItem(t, "os2_puzzle/6")); got != 1 {
		t.Fatalf("expected 1 piece, got %d", got)
	}
}

func TestOpenPackInsufficientFunds(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 3, 8, 0, 0, 0, time.UTC)
	seedActor(t, store, "actor-1", now)
	fundActor(t, store, "actor-1", 4999, now)

	card := catalog.CardID{Series: "os1", Number: 1, Variant: catalog.VariantA}
	_, err := store.OpenPack(context.Background(), storage.OpenPackParams{
		ActorID: "actor-1",
		Cost:    5000,
		Cards:   []catalog.CardID{card},
		PackXP:  25,
		Ref:     "pack-1",
		Now:     now.Add(time.Minute),
	})
	if err == nil || !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	if got := actorBalance(t, store, "actor-1"); got != 4999 {
		t.Fatalf("expected failed pack to leave balance 4999, got %d", got)
	}
	if got := stackQuantity(t, store, "actor-1", catalog.CardItem(card)); got != 0 {
		t.Fatalf("expected no cards granted, got %d", got)
	}
}
