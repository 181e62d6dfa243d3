// Package identity resolves bearer tokens to callers. The hosted identity
// provider is modeled by the Authenticator interface.
package identity

import (
	"context"
	"strings"

	"github.com/BetselotB/idea-plate/internal/apperr"
	"github.com/BetselotB/idea-plate/internal/config"
)

// Caller is an authenticated identity.
type Caller struct {
	UID           string `json:"uid"`
	Email         string `json:"email"`
	DisplayName   string `json:"display_name"`
	EmailVerified bool   `json:"email_verified"`
}

// Authenticator maps a bearer token to a caller.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*Caller, error)
}

type callerCtxKey struct{}

// WithCaller stores the caller in the context.
func WithCaller(ctx context.Context, c *Caller) context.Context {
	return context.WithValue(ctx, callerCtxKey{}, c)
}

// FromContext returns the caller, or nil when the request is anonymous.
func FromContext(ctx context.Context) *Caller {
	c, _ := ctx.Value(callerCtxKey{}).(*Caller)
	return c
}

// Require returns the caller or an auth error when there is none.
func Require(c *Caller) error {
	if c == nil || c.UID == "" {
		return apperr.Auth("sign-in required")
	}
	return nil
}

// ParseBearer extracts the token from an Authorization header value.
func ParseBearer(header string) (string, bool) {
	const prefix = "bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}

// TokenTable is a static token-to-identity table loaded from config.
type TokenTable struct {
	callers map[string]Caller
}

// NewTokenTable builds a table from configured tokens.
func NewTokenTable(tokens []config.TokenConfig) *TokenTable {
	t := &TokenTable{callers: make(map[string]Caller, len(tokens))}
	for _, tok := range tokens {
		t.callers[tok.Token.Value()] = Caller{
			UID:           tok.UID,
			Email:         tok.Email,
			DisplayName:   tok.DisplayName,
			EmailVerified: tok.EmailVerified,
		}
	}
	return t
}

// Authenticate implements Authenticator.
func (t *TokenTable) Authenticate(_ context.Context, token string) (*Caller, error) {
	c, ok := t.callers[token]
	if !ok || token == "" {
		return nil, apperr.Auth("invalid token")
	}
	return &c, nil
}

// Len returns the number of configured tokens.
func (t *TokenTable) Len() int {
	return len(t.callers)
}
