package auth

import (
	"context"
	"sync"

	"safeskin/internal/domain"
)

// Session is the application's view of the current authenticated user. It is
// constructed once at startup, subscribes to the client's auth-state pushes
// on Start and unsubscribes on Close; there is no polling. Loading stays true
// only until the first notification arrives.
type Session struct {
	client *Client

	mu          sync.Mutex
	user        *domain.User
	loading     bool
	unsubscribe func()
}

func NewSession(client *Client) *Session {
	return &Session{client: client, loading: true}
}

// Start establishes the auth-state subscription. Calling Start twice is a
// no-op.
func (s *Session) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		return
	}
	s.unsubscribe = s.client.OnAuthStateChanged(func(user *domain.User) {
		s.mu.Lock()
		s.user = user
		s.loading = false
		s.mu.Unlock()
	})
}

// Close tears the subscription down.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unsubscribe != nil {
		s.unsubscribe()
		s.unsubscribe = nil
	}
}

// User returns the current user, or nil when signed out.
func (s *Session) User() *domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user
}

// Loading reports whether the first auth-state notification is still pending.
func (s *Session) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Logout delegates to the provider; local state changes only through the
// resulting auth-state notification.
func (s *Session) Logout(ctx context.Context) error {
	return s.client.SignOut(ctx)
}
