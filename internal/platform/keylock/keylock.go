// Package keylock provides mutual exclusion scoped to string keys.
//
// Locks for distinct keys are independent: an operation blocks only while
// another holder owns one of the same keys. Multi-key acquisition sorts keys
// into a canonical order, so callers locking overlapping key sets cannot
// deadlock against each other.
package keylock

import (
	"sort"
	"sync"
)

// Locker hands out per-key locks on demand. Entries are created on first
// use and dropped once no holder or waiter remains.
type Locker struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	sem  chan struct{}
	refs int
}

// New returns an empty Locker.
func New() *Locker {
	return &Locker{entries: make(map[string]*lockEntry)}
}

// Lock acquires every given key in canonical order and returns the function
// releasing them. Duplicate keys are collapsed. Lock with no keys is a no-op.
func (l *Locker) Lock(keys ...string) (unlock func()) {
	ordered := normalizeKeys(keys)
	for _, key := range ordered {
		l.acquire(key)
	}
	return func() {
		for i := len(ordered) - 1; i >= 0; i-- {
			l.release(ordered[i])
		}
	}
}

func (l *Locker) acquire(key string) {
	l.mu.Lock()
	entry, ok := l.entries[key]
	if !ok {
		entry = &lockEntry{sem: make(chan struct{}, 1)}
		l.entries[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.sem <- struct{}{}
}

func (l *Locker) release(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := l.entries[key]
	<-entry.sem
	entry.refs--
	if entry.refs == 0 {
		delete(l.entries, key)
	}
}

// normalizeKeys sorts and deduplicates without touching the caller's slice.
func normalizeKeys(keys []string) []string {
	if len(keys) == 0 {
		return nil
	}
	ordered := make([]string, 0, len(keys))
	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if seen[key] {
			continue
		}
		seen[key] = true
		ordered = append(ordered, key)
	}
	sort.Strings(ordered)
	return ordered
}
