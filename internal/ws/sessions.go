package ws

import (
	"context"
	"fmt"
	"sync"
)

// IdentityResolver turns a bearer token into a stable user ID. The auth
// service is the production implementation.
type IdentityResolver interface {
	Verify(ctx context.Context, token string) (string, error)
}

// SessionRegistry maps connection IDs to authenticated user IDs, plus the
// inverse so a user's simultaneous connections (tabs, devices) can all be
// reached. It is the root table the other registries consult.
type SessionRegistry struct {
	mu     sync.RWMutex
	byConn map[string]string
	byUser map[string]map[string]struct{}
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		byConn: make(map[string]string),
		byUser: make(map[string]map[string]struct{}),
	}
}

// Authenticate verifies the token through the resolver and, on success,
// records connID -> userID. The resolver call happens before any lock is
// taken; the mapping is applied atomically afterwards.
func (s *SessionRegistry) Authenticate(ctx context.Context, resolver IdentityResolver, connID, token string) (string, error) {
	userID, err := resolver.Verify(ctx, token)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byConn[connID]; ok {
		return "", fmt.Errorf("connection %s already bound to user %s", connID, existing)
	}
	s.byConn[connID] = userID
	if s.byUser[userID] == nil {
		s.byUser[userID] = make(map[string]struct{})
	}
	s.byUser[userID][connID] = struct{}{}
	return userID, nil
}

// Resolve returns the user bound to the connection.
func (s *SessionRegistry) Resolve(connID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byConn[connID]
	if !ok {
		return "", ErrNotAuthenticated
	}
	return userID, nil
}

// Forget drops the connection's mapping and returns the now-orphaned user ID
// so the caller can update presence. ok is false for connections that never
// authenticated.
func (s *SessionRegistry) Forget(connID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	userID, ok := s.byConn[connID]
	if !ok {
		return "", false
	}
	delete(s.byConn, connID)
	if conns := s.byUser[userID]; conns != nil {
		delete(conns, connID)
		if len(conns) == 0 {
			delete(s.byUser, userID)
		}
	}
	return userID, true
}

// ConnectionsOf returns every live connection for the user. Empty means the
// user is not connected here.
func (s *SessionRegistry) ConnectionsOf(userID string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conns := make([]string, 0, len(s.byUser[userID]))
	for connID := range s.byUser[userID] {
		conns = append(conns, connID)
	}
	return conns
}
