package keylock

import (
	"sync"
	"testing"
	"time"
)

func TestLockSerializesSameKey(t *testing.T) {
	t.Parallel()

	locker := New()
	const workers = 16
	const iterations = 50

	var counter int
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			for j := 0; j < iterations; j++ {
				unlock := locker.Lock("actor/alice")
				counter++
				unlock()
			}
		}()
	}
	wg.Wait()

	if counter != workers*iterations {
		t.Fatalf("counter = %d, want %d", counter, workers*iterations)
	}
}

func TestLockDistinctKeysDoNotBlock(t *testing.T) {
	t.Parallel()

	locker := New()
	unlockA := locker.Lock("actor/alice")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := locker.Lock("actor/bob")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("lock on a distinct key blocked")
	}
}

func TestLockMultiKeyOppositeOrders(t *testing.T) {
	t.Parallel()

	locker := New()
	var wg sync.WaitGroup
	wg.Add(2)

	// Opposite declaration orders must not deadlock: acquisition is canonical.
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			unlock := locker.Lock("actor/a", "actor/b")
			unlock()
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			unlock := locker.Lock("actor/b", "actor/a")
			unlock()
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("opposite-order multi-key locking deadlocked")
	}
}

func TestLockDuplicateKeysCollapse(t *testing.T) {
	t.Parallel()

	locker := New()
	unlock := locker.Lock("trade/x", "trade/x")
	unlock()

	// A second acquisition proves the duplicate did not self-deadlock or
	// leave the key held.
	unlock = locker.Lock("trade/x")
	unlock()
}

func TestLockReleasesEntries(t *testing.T) {
	t.Parallel()

	locker := New()
	unlock := locker.Lock("channel/1", "channel/2")
	unlock()

	locker.mu.Lock()
	defer locker.mu.Unlock()
	if len(locker.entries) != 0 {
		t.Fatalf("expected no retained entries, got %d", len(locker.entries))
	}
}

func TestLockNoKeysIsNoOp(t *testing.T) {
	t.Parallel()

	locker := New()
	unlock := locker.Lock()
	unlock()
}
