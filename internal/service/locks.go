package service

import (
	"strings"
	"sync"
)

// keyedLocks serializes revision operations that touch the same belief slot
// or the same fact. Disjoint keys proceed in parallel. Entries are
// refcounted so the map does not grow with the number of slots ever seen.
type keyedLocks struct {
	mu      sync.Mutex
	entries map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedLocks() *keyedLocks {
	return &keyedLocks{entries: make(map[string]*lockEntry)}
}

// acquire blocks until the key's lock is held and returns the release func.
func (k *keyedLocks) acquire(key string) func() {
	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &lockEntry{}
		k.entries[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()

	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.entries, key)
		}
		k.mu.Unlock()
	}
}

// slotKey identifies one belief slot within a memory space. Predicate is
// normalized the same way slot matching normalizes it.
func slotKey(memorySpaceID, subject, predicate string) string {
	return memorySpaceID + "\x00" + subject + "\x00" + strings.ToLower(strings.TrimSpace(predicate))
}

// factKey identifies one fact for manual supersession locking.
func factKey(memorySpaceID, factID string) string {
	return memorySpaceID + "\x00fact\x00" + factID
}
