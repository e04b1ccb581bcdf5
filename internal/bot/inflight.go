package bot

import (
	"sync"
	"time"
)

// defaultStaleAfter is how long an acquisition may be held before a new
// TryAcquire reclaims it. A handler that crashed without releasing must not
// wedge its user forever.
const defaultStaleAfter = 5 * time.Minute

// Gate limits each submitting user to one in-flight submission. A second
// submission while the first is running is rejected, not queued.
type Gate struct {
	mu         sync.Mutex
	inFlight   map[int64]time.Time
	staleAfter time.Duration
	now        func() time.Time
}

// NewGate creates a Gate with the default stale timeout.
func NewGate() *Gate {
	return &Gate{
		inFlight:   make(map[int64]time.Time),
		staleAfter: defaultStaleAfter,
		now:        time.Now,
	}
}

// TryAcquire marks the user as in flight. It reports false while the user
// already holds a fresh acquisition; stale holds are reclaimed.
func (g *Gate) TryAcquire(userID int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if acquired, ok := g.inFlight[userID]; ok && now.Sub(acquired) < g.staleAfter {
		return false
	}
	g.inFlight[userID] = now
	return true
}

// Release clears the user's in-flight mark.
func (g *Gate) Release(userID int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.inFlight, userID)
}
