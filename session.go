package blinkchat

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// identityResolver is the slice of the REST client the session depends on.
type identityResolver interface {
	Me(ctx context.Context) (*Identity, error)
}

// Session resolves and holds the current user's identity. It is resolved once
// per application session; message traffic never re-triggers resolution. A
// failed or unauthenticated lookup leaves the identity nil, which downgrades
// every ownership check to "not mine" instead of surfacing an error.
type Session struct {
	resolver identityResolver
	log      zerolog.Logger

	mu       sync.RWMutex
	resolved bool
	identity *Identity
}

// NewSession creates an unresolved session backed by the given resolver
// (normally the *Client).
func NewSession(resolver identityResolver, log zerolog.Logger) *Session {
	return &Session{resolver: resolver, log: log}
}

// Resolve performs the identity lookup if it has not happened yet and returns
// the result. Lookup failure resolves to nil rather than an error; callers
// that need to distinguish can call Refresh after fixing their credentials.
func (s *Session) Resolve(ctx context.Context) *Identity {
	s.mu.RLock()
	if s.resolved {
		id := s.identity
		s.mu.RUnlock()
		return id
	}
	s.mu.RUnlock()
	return s.Refresh(ctx)
}

// Refresh forces a fresh identity lookup, e.g. after a login flow.
func (s *Session) Refresh(ctx context.Context) *Identity {
	id, err := s.resolver.Me(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("identity lookup failed; session unresolved")
		id = nil
	}

	s.mu.Lock()
	s.resolved = true
	s.identity = id
	s.mu.Unlock()
	return id
}

// Current returns the resolved identity, or nil while unresolved or
// unauthenticated.
func (s *Session) Current() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity
}

// IsMine reports whether msg was authored by the session's user. A nil
// identity always yields false.
func (s *Session) IsMine(msg Message) bool {
	id := s.Current()
	return id != nil && id.ID == msg.AuthorID
}
