package ws

import "sync"

// RoomRegistry tracks which connections are subscribed to which
// conversation. A connection occupies at most one room at a time (the UI
// views one conversation at a time); joining a new room leaves the previous
// one first. Rooms are created lazily and dropped once empty.
//
// Authorization is the router's job; the registry trusts its callers.
type RoomRegistry struct {
	mu     sync.RWMutex
	rooms  map[string]map[string]struct{}
	byConn map[string]string
}

func NewRoomRegistry() *RoomRegistry {
	return &RoomRegistry{
		rooms:  make(map[string]map[string]struct{}),
		byConn: make(map[string]string),
	}
}

// Join subscribes the connection to the conversation's room and returns the
// resulting member count. Idempotent.
func (r *RoomRegistry) Join(connID, conversationID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byConn[connID]; ok {
		if current == conversationID {
			return len(r.rooms[conversationID])
		}
		r.removeLocked(connID, current)
	}

	if r.rooms[conversationID] == nil {
		r.rooms[conversationID] = make(map[string]struct{})
	}
	r.rooms[conversationID][connID] = struct{}{}
	r.byConn[connID] = conversationID
	return len(r.rooms[conversationID])
}

// Leave removes the connection from the room; no-op if absent.
func (r *RoomRegistry) Leave(connID, conversationID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.byConn[connID] == conversationID {
		r.removeLocked(connID, conversationID)
	}
}

// LeaveAll removes the connection from whichever room it occupies. Used on
// disconnect.
func (r *RoomRegistry) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.byConn[connID]; ok {
		r.removeLocked(connID, current)
	}
}

// Members returns the connections currently in the room. Empty rooms are
// legal; broadcasting to one is a no-op.
func (r *RoomRegistry) Members(conversationID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]string, 0, len(r.rooms[conversationID]))
	for connID := range r.rooms[conversationID] {
		members = append(members, connID)
	}
	return members
}

// RoomOf returns the room the connection is in, if any.
func (r *RoomRegistry) RoomOf(connID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	conversationID, ok := r.byConn[connID]
	return conversationID, ok
}

func (r *RoomRegistry) removeLocked(connID, conversationID string) {
	if members := r.rooms[conversationID]; members != nil {
		delete(members, connID)
		if len(members) == 0 {
			delete(r.rooms, conversationID)
		}
	}
	delete(r.byConn, connID)
}
