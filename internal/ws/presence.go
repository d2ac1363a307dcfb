package ws

import (
	"fmt"
	"sync"
	"time"
)

// Transition is an online/offline edge for one user. LastSeenAt is only
// meaningful on offline transitions.
type Transition struct {
	UserID     string
	Online     bool
	LastSeenAt time.Time
}

type presenceRecord struct {
	connections int
	lastSeenAt  time.Time
}

// PresenceTracker derives each user's online state from their count of live
// connections. Transitions are strictly ordered per user because they come
// from a counter mutated under one lock.
type PresenceTracker struct {
	mu      sync.RWMutex
	records map[string]*presenceRecord

	// now is swappable in tests.
	now func() time.Time
}

func NewPresenceTracker() *PresenceTracker {
	return &PresenceTracker{
		records: make(map[string]*presenceRecord),
		now:     time.Now,
	}
}

// Connect increments the user's connection count. A transition is returned
// only on the 0 -> 1 edge.
func (p *PresenceTracker) Connect(userID string) (Transition, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.records[userID]
	if rec == nil {
		rec = &presenceRecord{}
		p.records[userID] = rec
	}
	rec.connections++
	if rec.connections == 1 {
		return Transition{UserID: userID, Online: true}, true
	}
	return Transition{}, false
}

// Disconnect decrements the count; on reaching zero it stamps lastSeenAt and
// returns an offline transition. Decrementing below zero is a programming
// error: the operation is aborted and an error returned for the caller to
// log, never surfaced to a client.
func (p *PresenceTracker) Disconnect(userID string) (Transition, bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	rec := p.records[userID]
	if rec == nil || rec.connections == 0 {
		return Transition{}, false, fmt.Errorf("presence count for user %s would go negative", userID)
	}
	rec.connections--
	if rec.connections == 0 {
		rec.lastSeenAt = p.now()
		return Transition{UserID: userID, Online: false, LastSeenAt: rec.lastSeenAt}, true, nil
	}
	return Transition{}, false, nil
}

// Status answers the online-status query. lastSeenAt is the zero time for
// users never seen.
func (p *PresenceTracker) Status(userID string) (online bool, lastSeenAt time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	rec := p.records[userID]
	if rec == nil {
		return false, time.Time{}
	}
	return rec.connections > 0, rec.lastSeenAt
}
