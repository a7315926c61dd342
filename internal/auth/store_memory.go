package auth

import (
	"context"
	"sync"
	"time"

	"kyc-core/pkg/platform/sentinel"
)

type sessionEntry struct {
	session   Session
	expiresAt time.Time
}

// InMemorySessionStore keeps admin sessions in process memory with lazy and
// periodic expiry.
type InMemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]sessionEntry
	ttl      time.Duration
}

func NewMemorySessions(ttl time.Duration) *InMemorySessionStore {
	return &InMemorySessionStore{
		sessions: make(map[string]sessionEntry),
		ttl:      ttl,
	}
}

func (s *InMemorySessionStore) Save(_ context.Context, session *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.Token] = sessionEntry{
		session:   *session,
		expiresAt: time.Now().Add(s.ttl),
	}
	return nil
}

func (s *InMemorySessionStore) ByToken(_ context.Context, token string) (*Session, error) {
	s.mu.RLock()
	entry, exists := s.sessions[token]
	s.mu.RUnlock()

	if !exists {
		return nil, sentinel.ErrNotFound
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.sessions, token)
		s.mu.Unlock()
		return nil, sentinel.ErrNotFound
	}
	session := entry.session
	return &session, nil
}

func (s *InMemorySessionStore) Revoke(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, token)
	return nil
}

// StartCleanup sweeps expired sessions until the context ends.
func (s *InMemorySessionStore) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.cleanup()
			}
		}
	}()
}

func (s *InMemorySessionStore) cleanup() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	for token, entry := range s.sessions {
		if now.After(entry.expiresAt) {
			delete(s.sessions, token)
		}
	}
}
