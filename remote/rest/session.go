package rest

import (
	"context"
	"fmt"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
)

// RefreshFunc obtains a fresh access token, typically by exchanging a
// refresh token with the auth service.
type RefreshFunc func(ctx context.Context) (string, error)

// Session hands out bearer tokens for the REST client and refreshes them
// before they expire. Token expiry is read from the token's own claims
// without verifying the signature: the client is not the token's audience,
// the backend is, so verification happens server-side.
type Session struct {
	mu      sync.Mutex
	token   string
	expires time.Time
	refresh RefreshFunc
	leeway  time.Duration

	now func() time.Time
}

// NewSession creates a session starting with token. refresh may be nil,
// in which case the initial token is used until it expires and calls then
// fail.
func NewSession(token string, refresh RefreshFunc) *Session {
	s := &Session{
		refresh: refresh,
		leeway:  30 * time.Second,
		now:     time.Now,
	}
	s.setToken(token)
	return s
}

// Token returns a bearer token valid for at least the leeway window,
// refreshing if needed.
func (s *Session) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.token != "" && (s.expires.IsZero() || s.now().Add(s.leeway).Before(s.expires)) {
		return s.token, nil
	}

	if s.refresh == nil {
		return "", fmt.Errorf("rest: session token expired and no refresh func configured")
	}

	token, err := s.refresh(ctx)
	if err != nil {
		return "", fmt.Errorf("rest: refresh session: %w", err)
	}
	s.setTokenLocked(token)
	return s.token, nil
}

func (s *Session) setToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setTokenLocked(token)
}

func (s *Session) setTokenLocked(token string) {
	s.token = token
	s.expires = time.Time{}

	if token == "" {
		return
	}

	parser := gojwt.NewParser()
	parsed, _, err := parser.ParseUnverified(token, gojwt.MapClaims{})
	if err != nil {
		return
	}
	if exp, err := parsed.Claims.GetExpirationTime(); err == nil && exp != nil {
		s.expires = exp.Time
	}
}
