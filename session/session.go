package session

import (
	"context"
	"strings"
	"time"

	"taskboard/domain"
)

// Session is the persisted login state: the bearer token and the user it
// belongs to.
type Session struct {
	Token     string      `yaml:"token" json:"token"`
	TokenType string      `yaml:"token_type,omitempty" json:"token_type,omitempty"`
	User      domain.User `yaml:"user" json:"user"`
	ExpiresAt time.Time   `yaml:"expires_at,omitempty" json:"expires_at,omitempty"`
}

// FromLogin builds a session from a login response.
func FromLogin(l domain.Login) Session {
	return Session{
		Token:     l.AccessToken,
		TokenType: l.TokenType,
		User:      l.User,
		ExpiresAt: tokenExpiry(l.AccessToken),
	}
}

// Expired reports whether the token is known to be past its expiry.
func (s Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Store persists a single session.
type Store interface {
	// Load returns domain.ErrNoSession when nothing is stored.
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// Source hands out the stored token to the API client.
type Source struct {
	Store Store
	Now   func() time.Time
}

// NewSource returns a token source reading from store.
func NewSource(store Store) *Source {
	return &Source{Store: store, Now: time.Now}
}

// Token returns the current bearer token.
func (s *Source) Token(ctx context.Context) (string, error) {
	sess, err := s.Store.Load(ctx)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(sess.Token) == "" {
		return "", domain.ErrNoSession
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	if sess.Expired(now()) {
		return "", domain.ErrSessionExpired
	}
	return sess.Token, nil
}
