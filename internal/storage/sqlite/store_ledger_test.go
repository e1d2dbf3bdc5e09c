package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/louisbranch/carddex/internal/filter"
	apperrors "github.com/louisbranch/carddex/internal/platform/errors"
	"github.com/louisbranch/carddex/internal/storage"
)

func seedLedgerEntries(t *testing.T, store *Store, actorID string, kinds []storage.LedgerKind, now time.Time) {
	t.Helper()
	seedActor(t, store, actorID, now)
	for i, kind := range kinds {
		if _, err := store.CreditActor(context.Background(), storage.CreditParams{
			ActorID: actorID,
			Coins:   int64(10 * (i + 1)),
			Kind:    kind,
			Now:     now.Add(time.Duration(i) * time.Minute),
		}); err != nil {
			t.Fatalf("seed ledger entry %d: %v", i, err)
		}
	}
}

func TestListLedgerPagesNewestFirst(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLedgerEntries(t, store, "actor-1", []storage.LedgerKind{
		storage.LedgerDaily,
		storage.LedgerCatch,
		storage.LedgerDaily,
		storage.LedgerPack,
		storage.LedgerDaily,
	}, now)

	first, err := store.ListLedger(context.Background(), storage.LedgerQuery{PageSize: 2})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if len(first.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first.Entries))
	}
	if first.Entries[0].Seq <= first.Entries[1].Seq {
		t.Fatalf("expected descending seq, got %d then %d", first.Entries[0].Seq, first.Entries[1].Seq)
	}
	if first.Entries[0].CoinDelta != 50 {
		t.Fatalf("expected newest entry first, got coin delta %d", first.Entries[0].CoinDelta)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected next page token")
	}

	second, err := store.ListLedger(context.Background(), storage.LedgerQuery{
		PageSize:  2,
		PageToken: first.NextPageToken,
	})
	if err != nil {
		t.Fatalf("list second page: %v", err)
	}
	if len(second.Entries) != 2 {
		t.Fatalf("expected 2 entries on second page, got %d", len(second.Entries))
	}
	if second.Entries[0].Seq >= first.Entries[1].Seq {
		t.Fatalf("expected second page below first, got seq %d", second.Entries[0].Seq)
	}

	third, err := store.ListLedger(context.Background(), storage.LedgerQuery{
		PageSize:  2,
		PageToken: second.NextPageToken,
	})
	if err != nil {
		t.Fatalf("list third page: %v", err)
	}
	if len(third.Entries) != 1 || third.NextPageToken != "" {
		t.Fatalf("expected final page with 1 entry and no token, got %d entries token %q", len(third.Entries), third.NextPageToken)
	}
}

func TestListLedgerFilterByKind(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLedgerEntries(t, store, "actor-1", []storage.LedgerKind{
		storage.LedgerDaily,
		storage.LedgerCatch,
		storage.LedgerDaily,
	}, now)

	condition, err := filter.ParseLedgerFilter(`kind = "daily"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}

	page, err := store.ListLedger(context.Background(), storage.LedgerQuery{Condition: condition})
	if err != nil {
		t.Fatalf("list filtered ledger: %v", err)
	}
	if len(page.Entries) != 2 {
		t.Fatalf("expected 2 daily entries, got %d", len(page.Entries))
	}
	for _, entry := range page.Entries {
		if entry.Kind != storage.LedgerDaily {
			t.Fatalf("expected only daily entries, got %s", entry.Kind)
		}
	}
}

func TestListLedgerTokenRejectsFilterChange(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLedgerEntries(t, store, "actor-1", []storage.LedgerKind{
		storage.LedgerDaily,
		storage.LedgerDaily,
		storage.LedgerDaily,
	}, now)

	first, err := store.ListLedger(context.Background(), storage.LedgerQuery{PageSize: 1})
	if err != nil {
		t.Fatalf("list first page: %v", err)
	}
	if first.NextPageToken == "" {
		t.Fatal("expected next page token")
	}

	condition, err := filter.ParseLedgerFilter(`kind = "daily"`)
	if err != nil {
		t.Fatalf("parse filter: %v", err)
	}
	_, err = store.ListLedger(context.Background(), storage.LedgerQuery{
		Condition: condition,
		PageSize:  1,
		PageToken: first.NextPageToken,
	})
	if err == nil {
		t.Fatal("expected token minted under a different filter to fail")
	}
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestListLedgerBadToken(t *testing.T) {
	store := openTestStore(t)

	_, err := store.ListLedger(context.Background(), storage.LedgerQuery{PageToken: "not-a-token"})
	if err == nil {
		t.Fatal("expected malformed token to fail")
	}
	if apperrors.CodeOf(err) != apperrors.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestStreamLedgerSinceSeq(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLedgerEntries(t, store, "actor-1", []storage.LedgerKind{
		storage.LedgerDaily,
		storage.LedgerCatch,
		storage.LedgerPack,
		storage.LedgerDaily,
	}, now)

	var seqs []int64
	err := store.StreamLedger(context.Background(), 2, func(entry storage.LedgerEntry) error {
		seqs = append(seqs, entry.Seq)
		return nil
	})
	if err != nil {
		t.Fatalf("stream ledger: %v", err)
	}
	if len(seqs) != 2 {
		t.Fatalf("expected 2 entries after seq 2, got %d", len(seqs))
	}
	if seqs[0] != 3 || seqs[1] != 4 {
		t.Fatalf("expected ascending seqs 3, 4, got %v", seqs)
	}
}

func TestStreamLedgerCallbackErrorStops(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	seedLedgerEntries(t, store, "actor-1", []storage.LedgerKind{
		storage.LedgerDaily,
		storage.LedgerDaily,
		storage.LedgerDaily,
	}, now)

	boom := errors.New("stop here")
	var seen int
	err := store.StreamLedger(context.Background(), 0, func(storage.LedgerEntry) error {
		seen++
		if seen == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if seen != 2 {
		t.Fatalf("expected stream to stop at 2, got %d", seen)
	}
}
