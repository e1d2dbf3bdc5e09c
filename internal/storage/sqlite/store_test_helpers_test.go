package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/louisbranch/carddex/internal/catalog"
	"github.com/louisbranch/carddex/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "dex.sqlite")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func seedActor(t *testing.T, store *Store, actorID string, now time.Time) storage.Actor {
	t.Helper()
	actor, err := store.EnsureActor(context.Background(), actorID, now)
	if err != nil {
		t.Fatalf("seed actor %s: %v", actorID, err)
	}
	return actor
}

func fundActor(t *testing.T, store *Store, actorID string, coins int64, now time.Time) storage.Actor {
	t.Helper()
	actor, err := store.CreditActor(context.Background(), storage.CreditParams{
		ActorID: actorID,
		Coins:   coins,
		Kind:    storage.LedgerAdjust,
		Now:     now,
	})
	if err != nil {
		t.Fatalf("fund actor %s: %v", actorID, err)
	}
	return actor
}

func cardItem(t *testing.T, raw string) catalog.ItemRef {
	t.Helper()
	id, err := catalog.ParseCardID(raw)
	if err != nil {
		t.Fatalf("parse card id %s: %v", raw, err)
	}
	return catalog.CardItem(id)
}

func pieceItem(t *testing.T, raw string) catalog.ItemRef {
	t.Helper()
	ref, err := catalog.ParsePieceRef(raw)
	if err != nil {
		t.Fatalf("parse piece ref %s: %v", raw, err)
	}
	return catalog.PieceItem(ref)
}

func giveItem(t *testing.T, store *Store, actorID string, item catalog.ItemRef, qty int64, now time.Time) {
	t.Helper()
	if _, err := store.AdjustStack(context.Background(), storage.AdjustStackParams{
		ActorID: actorID,
		Item:    item,
		Delta:   qty,
		Kind:    storage.LedgerAdjust,
		Now:     now,
	}); err != nil {
		t.Fatalf("give %s %d of %s: %v", actorID, qty, item, err)
	}
}

func stackQuantity(t *testing.T, store *Store, actorID string, item catalog.ItemRef) int64 {
	t.Helper()
	stack, err := store.GetStack(context.Background(), actorID, item)
	if err != nil {
		t.Fatalf("get stack %s/%s: %v", actorID, item, err)
	}
	return stack.Quantity
}

func actorBalance(t *testing.T, store *Store, actorID string) int64 {
	t.Helper()
	actor, err := store.GetActor(context.Background(), actorID)
	if err != nil {
		t.Fatalf("get actor %s: %v", actorID, err)
	}
	return actor.Balance
}
