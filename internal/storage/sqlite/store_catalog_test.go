package sqlite

import (
	"context"
	"testing"

	"github.com/louisbranch/carddex/internal/storage"
)

func TestPutCardDefinitionsUpserts(t *testing.T) {
	store := openTestStore(t)

	defs := []storage.CardDefinition{
		{ID: "os1-1a", Series: "os1", Number: 1, Variant: "a", Tier: "common", DisplayName: "Adam Bomb"},
		{ID: "os1-1b", Series: "os1", Number: 1, Variant: "b", Tier: "common", DisplayName: "Blasted Billy"},
	}
	if err := store.PutCardDefinitions(context.Background(), defs); err != nil {
		t.Fatalf("put card definitions: %v", err)
	}

	count, err := store.CountCardDefinitions(context.Background())
	if err != nil {
		t.Fatalf("count card definitions: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 definitions, got %d", count)
	}

	// Re-seeding the same ids overwrites rather than duplicates.
	defs[0].DisplayName = "Adam Bomb (Reprint)"
	if err := store.PutCardDefinitions(context.Background(), defs); err != nil {
		t.Fatalf("re-seed card definitions: %v", err)
	}
	count, err = store.CountCardDefinitions(context.Background())
	if err != nil {
		t.Fatalf("recount card definitions: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 definitions after re-seed, got %d", count)
	}
}

func TestPutPuzzleDefinitions(t *testing.T) {
	store := openTestStore(t)

	defs := []storage.PuzzleDefinition{
		{ID: "os1_puzzle", Series: "os1", DisplayName: "Original Series 1", Slots: 9},
	}
	if err := store.PutPuzzleDefinitions(context.Background(), defs); err != nil {
		t.Fatalf("put puzzle definitions: %v", err)
	}

	if err := store.PutPuzzleDefinitions(context.Background(), nil); err == nil {
		t.Fatal("expected empty definitions to fail")
	}
}
