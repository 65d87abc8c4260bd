// Package decisioning holds the per-item submission lock and the candidate
// selection rules used when committing a search batch.
package decisioning

import (
	"sync"
)

// GrabLock provides per-catalog-item locking so a scheduled search batch and
// a manually triggered one never submit the same item twice.
type GrabLock struct {
	mu    sync.Mutex
	locks map[string]struct{}
}

// NewGrabLock creates a new GrabLock.
func NewGrabLock() *GrabLock {
	return &GrabLock{
		locks: make(map[string]struct{}),
	}
}

// TryAcquire attempts to acquire the lock for an item.
// Returns true if the lock was acquired, false if already held.
func (g *GrabLock) TryAcquire(itemID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, held := g.locks[itemID]; held {
		return false
	}
	g.locks[itemID] = struct{}{}
	return true
}

// Release releases the lock for an item.
func (g *GrabLock) Release(itemID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.locks, itemID)
}
