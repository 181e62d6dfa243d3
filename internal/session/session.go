// Package session holds the per-connection state of an MCP client.
package session

import (
	"context"
	"sync"

	"github.com/BetselotB/idea-plate/internal/identity"
)

// Session holds the signed-in caller for an MCP session.
type Session struct {
	mu     sync.Mutex
	caller *identity.Caller
}

// New creates a session. caller may be nil for an anonymous session.
func New(caller *identity.Caller) *Session {
	return &Session{caller: caller}
}

// SignIn resolves token and makes the result the session's caller. A failed
// sign-in leaves the previous caller in place.
func (s *Session) SignIn(ctx context.Context, auth identity.Authenticator, token string) (*identity.Caller, error) {
	caller, err := auth.Authenticate(ctx, token)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.caller = caller
	s.mu.Unlock()
	return caller, nil
}

// Caller returns the signed-in caller, or nil.
func (s *Session) Caller() *identity.Caller {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caller
}

// Require returns the caller or an auth error when nobody is signed in.
func (s *Session) Require() (*identity.Caller, error) {
	c := s.Caller()
	if err := identity.Require(c); err != nil {
		return nil, err
	}
	return c, nil
}

// Clear signs the caller out.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caller = nil
}
