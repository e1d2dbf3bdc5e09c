package sqlite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/carddex/internal/storage"
)

func seedSpawnChannel(t *testing.T, store *Store, channelID string, now time.Time) {
	t.Helper()
	if err := store.PutSpawnChannel(context.Background(), storage.SpawnChannel{
		ChannelID: channelID,
		Enabled:   true,
		CreatedAt: now,
		UpdatedAt: now,
	}); err != nil {
		t.Fatalf("seed spawn channel %s: %v", channelID, err)
	}
}

func TestOpenSpawnSecondPendingRejected(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	seedSpawnChannel(t, store, "channel-1", now)

	spawn, err := store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
		ChannelID: "channel-1",
		Item:      cardItem(t, "os1-2a"),
		Now:       now,
		ExpiresAt: now.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("open spawn: %v", err)
	}
	if spawn.State != storage.SpawnPending {
		t.Fatalf("expected pending spawn, got %s", spawn.State)
	}

	_, err = store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
		ChannelID: "channel-1",
		Item:      cardItem(t, "os1-3a"),
		Now:       now.Add(time.Minute),
		ExpiresAt: now.Add(time.Hour),
	})
	if err == nil || !errors.Is(err, storage.ErrSpawnPending) {
		t.Fatalf("expected ErrSpawnPending, got %v", err)
	}

	// The losing open left the original payload in place.
	got, err := store.GetSpawn(context.Background(), "channel-1")
	if err != nil {
		t.Fatalf("get spawn: %v", err)
	}
	if got.Item != cardItem(t, "os1-2a") {
		t.Fatalf("expected original item, got %+v", got.Item)
	}
}

func TestOpenSpawnReplacesLapsedWindow(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	seedSpawnChannel(t, store, "channel-1", now)

	if _, err := store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
		ChannelID: "channel-1",
		Item:      cardItem(t, "os1-2a"),
		Now:       now,
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("open spawn: %v", err)
	}

	// A pending window whose expiry already passed no longer blocks.
	later := now.Add(2 * time.Hour)
	spawn, err := store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
		ChannelID: "channel-1",
		Item:      cardItem(t, "os1-3a"),
		Now:       later,
		ExpiresAt: later.Add(time.Hour),
	})
	if err != nil {
		t.Fatalf("open replacement spawn: %v", err)
	}
	if spawn.Item != cardItem(t, "os1-3a") || spawn.State != storage.SpawnPending {
		t.Fatalf("unexpected replacement spawn: %+v", spawn)
	}

	channel, err := store.GetSpawnChannel(context.Background(), "channel-1")
	if err != nil {
		t.Fatalf("get spawn channel: %v", err)
	}
	if !channel.LastSpawnAt.Equal(later) {
		t.Fatalf("expected last spawn at %v, got %v", later, channel.LastSpawnAt)
	}
}

func TestClaimSpawnRewardsClaimer(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	seedSpawnChannel(t, store, "channel-1", now)
	seedActor(t, store, "actor-1", now)

	item := cardItem(t, "os3-4b")
	if _, err := store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
		ChannelID: "channel-1",
		Item:      item,
		Now:       now,
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("open spawn: %v", err)
	}

	claim, err := store.ClaimSpawn(context.Background(), storage.ClaimSpawnParams{
		ChannelID:    "channel-1",
		ActorID:      "actor-1",
		Coins:        120,
		XP:           10,
		NewItemCoins: 200,
		NewItemXP:    20,
		Now:          now.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("claim spawn: %v", err)
	}
	if claim.Spawn.State != storage.SpawnClaimed || claim.Spawn.ClaimedBy != "actor-1" {
		t.Fatalf("unexpected claimed spawn: %+v", claim.Spawn)
	}
	if !claim.Grant.WasNew || claim.Grant.CoinsAwarded != 320 || claim.Grant.XPAwarded != 30 {
		t.Fatalf("unexpected grant: %+v", claim.Grant)
	}
	if got := stackQuantity(t, store, "actor-1", item); got != 1 {
		t.Fatalf("expected 1 claimed item, got %d", got)
	}

	_, err = store.ClaimSpawn(context.Background(), storage.ClaimSpawnParams{
		ChannelID: "channel-1",
		ActorID:   "actor-1",
		Now:       now.Add(2 * time.Minute),
	})
	if err == nil || !errors.Is(err, storage.ErrSpawnClaimed) {
		t.Fatalf("expected ErrSpawnClaimed, got %v", err)
	}
}

func TestClaimSpawnLapsedWindow(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	seedSpawnChannel(t, store, "channel-1", now)
	seedActor(t, store, "actor-1", now)

	if _, err := store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
		ChannelID: "channel-1",
		Item:      cardItem(t, "os1-2a"),
		Now:       now,
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("open spawn: %v", err)
	}

	_, err := store.ClaimSpawn(context.Background(), storage.ClaimSpawnParams{
		ChannelID: "channel-1",
		ActorID:   "actor-1",
		Coins:     50,
		Now:       now.Add(2 * time.Hour),
	})
	if err == nil || !errors.Is(err, storage.ErrSpawnExpired) {
		t.Fatalf("expected ErrSpawnExpired, got %v", err)
	}

	if got := actorBalance(t, store, "actor-1"); got != 0 {
		t.Fatalf("expected no reward on lapsed claim, got %d", got)
	}
}

func TestClaimSpawnMissingChannel(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	seedActor(t, store, "actor-1", now)

	_, err := store.ClaimSpawn(context.Background(), storage.ClaimSpawnParams{
		ChannelID: "channel-none",
		ActorID:   "actor-1",
		Now:       now,
	})
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestClaimSpawnConcurrentSingleWinner(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	seedSpawnChannel(t, store, "channel-1", now)

	const claimers = 8
	for i := range claimers {
		seedActor(t, store, fmt.Sprintf("actor-%d", i), now)
	}

	item := cardItem(t, "os2-11a")
	if _, err := store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
		ChannelID: "channel-1",
		Item:      item,
		Now:       now,
		ExpiresAt: now.Add(time.Hour),
	}); err != nil {
		t.Fatalf("open spawn: %v", err)
	}

	type claimResult struct {
		actorID string
		err     error
	}
	results := make(chan claimResult, claimers)
	var wg sync.WaitGroup
	wg.Add(claimers)
	for i := range claimers {
		go func() {
			defer wg.Done()
			actorID := fmt.Sprintf("actor-%d", i)
			_, err := store.ClaimSpawn(context.Background(), storage.ClaimSpawnParams{
				ChannelID: "channel-1",
				ActorID:   actorID,
				Coins:     100,
				XP:        10,
				Now:       now.Add(time.Minute),
			})
			results <- claimResult{actorID: actorID, err: err}
		}()
	}
	wg.Wait()
	close(results)

	var winner string
	var losses int
	for res := range results {
		if res.err == nil {
			if winner != "" {
				t.Fatalf("expected a single winner, got %s and %s", winner, res.actorID)
			}
			winner = res.actorID
			continue
		}
		if !errors.Is(res.err, storage.ErrSpawnClaimed) {
			t.Fatalf("expected losers to see ErrSpawnClaimed, got %v", res.err)
		}
		losses++
	}
	if winner == "" {
		t.Fatal("expected one claim to win")
	}
	if losses != claimers-1 {
		t.Fatalf("expected %d losses, got %d", claimers-1, losses)
	}

	// Only the winner holds the item and the reward.
	for i := range claimers {
		actorID := fmt.Sprintf("actor-%d", i)
		qty := stackQuantity(t, store, actorID, item)
		balance := actorBalance(t, store, actorID)
		if actorID == winner {
			if qty != 1 || balance == 0 {
				t.Fatalf("expected winner %s to hold reward, got qty %d balance %d", actorID, qty, balance)
			}
			continue
		}
		if qty != 0 || balance != 0 {
			t.Fatalf("expected loser %s untouched, got qty %d balance %d", actorID, qty, balance)
		}
	}
}

func TestExpireSpawns(t *testing.T) {
	store := openTestStore(t)
	now := time.Date(2026, 3, 7, 16, 0, 0, 0, time.UTC)
	seedSpawnChannel(t, store, "channel-1", now)
	seedSpawnChannel(t, store, "channel-2", now)

	for _, channelID := range []string{"channel-1", "channel-2"} {
		if _, err := store.OpenSpawn(context.Background(), storage.OpenSpawnParams{
			ChannelID: channelID,
			Item:      cardItem(t, "os1-2a"),
			Now:       now,
			ExpiresAt: now.Add(time.Hour),
		}); err != nil {
			t.Fatalf("open spawn on %s: %v", channelID, err)
		}
	}

	expired, err := store.ExpireSpawns(context.Background(), now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("expire spawns: %v", err)
	}
	if expired != 2 {
		t.Fatalf("expected 2 expired spawns, got %d", expired)
	}

	spawn, err := store.GetSpawn(context.Background(), "channel-1")
	if err != nil {
		t.Fatalf("get spawn: %v", err)
	}
	if spawn.State != storage.SpawnExpired {
		t.Fatalf("expected expired state, got %s", spawn.State)
	}

	// A second sweep finds nothing left to expire.
	expired, err = store.ExpireSpawns(context.Background(), now.Add(3*time.Hour))
	if err != nil {
		t.Fatalf("expire spawns again: %v", err)
	}
	if expired != 0 {
		t.Fatalf("expected no further expiries, got %d", expired)
	}
}
