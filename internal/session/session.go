// Package session holds the authenticated state of the client: the bearer
// token, the current user and the server's auth cookies. It is created on
// login, torn down on logout or when the token can no longer be refreshed,
// and passed explicitly to whatever needs it.
package session

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/vedran77/pulse-messenger/internal/domain"
)

// UserIDCookie is set by the server next to the refresh cookie.
const UserIDCookie = "UserId"

// claim names the server may use for the user id, in lookup order.
var userIDClaims = []string{
	"sub",
	"nameid",
	"userId",
	"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/nameidentifier",
}

type State struct {
	AccessToken string         `json:"access_token"`
	UserID      uuid.UUID      `json:"user_id"`
	Cookies     []*http.Cookie `json:"cookies,omitempty"`
}

// Store persists State between runs.
type Store interface {
	Load(ctx context.Context) (*State, error)
	Save(ctx context.Context, st State) error
	Clear(ctx context.Context) error
}

type Session struct {
	mu        sync.RWMutex
	state     State
	expiresAt time.Time
	active    bool
	store     Store

	onTeardown []func()
}

// New returns an inactive session. store may be nil.
func New(store Store) *Session {
	return &Session{store: store}
}

// Restore loads a persisted session, if any. It reports whether one was found.
func (s *Session) Restore(ctx context.Context) (bool, error) {
	if s.store == nil {
		return false, nil
	}
	st, err := s.store.Load(ctx)
	if err != nil {
		return false, err
	}
	if st == nil || st.AccessToken == "" {
		return false, nil
	}

	s.mu.Lock()
	s.state = *st
	_, s.expiresAt = parseToken(st.AccessToken)
	s.active = true
	s.mu.Unlock()
	return true, nil
}

// Init starts a session from a freshly issued token.
func (s *Session) Init(ctx context.Context, token string, cookies []*http.Cookie) error {
	if token == "" {
		return domain.ErrNotAuthenticated
	}

	userID, exp := parseToken(token)
	if id, ok := userIDFromCookies(cookies); ok {
		userID = id
	}

	s.mu.Lock()
	s.state = State{AccessToken: token, UserID: userID, Cookies: cookies}
	s.expiresAt = exp
	s.active = true
	st := s.state
	s.mu.Unlock()

	return s.save(ctx, st)
}

// Rotate replaces the token after a refresh, keeping the user.
func (s *Session) Rotate(ctx context.Context, token string, cookies []*http.Cookie) error {
	if token == "" {
		return domain.ErrNotAuthenticated
	}

	userID, exp := parseToken(token)

	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	s.state.AccessToken = token
	if userID != uuid.Nil && s.state.UserID == uuid.Nil {
		s.state.UserID = userID
	}
	if len(cookies) > 0 {
		s.state.Cookies = cookies
	}
	s.expiresAt = exp
	st := s.state
	s.mu.Unlock()

	return s.save(ctx, st)
}

// SetUserID fills in the user when neither the token nor the cookies named
// one.
func (s *Session) SetUserID(ctx context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return domain.ErrNotAuthenticated
	}
	s.state.UserID = userID
	st := s.state
	s.mu.Unlock()

	return s.save(ctx, st)
}

// Teardown discards all session state, persisted copy included, and runs the
// registered teardown hooks. Calling it on an inactive session is a no-op.
func (s *Session) Teardown(ctx context.Context) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return nil
	}
	s.state = State{}
	s.expiresAt = time.Time{}
	s.active = false
	hooks := append([]func(){}, s.onTeardown...)
	s.mu.Unlock()

	for _, fn := range hooks {
		fn()
	}

	if s.store == nil {
		return nil
	}
	return s.store.Clear(ctx)
}

// OnTeardown registers fn to run after the session is torn down.
func (s *Session) OnTeardown(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onTeardown = append(s.onTeardown, fn)
}

func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.AccessToken
}

func (s *Session) UserID() uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state.UserID
}

func (s *Session) Cookies() []*http.Cookie {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]*http.Cookie(nil), s.state.Cookies...)
}

// ExpiresAt is the token's exp claim, zero when the token carries none.
func (s *Session) ExpiresAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

func (s *Session) save(ctx context.Context, st State) error {
	if s.store == nil {
		return nil
	}
	return s.store.Save(ctx, st)
}

// parseToken reads the user id and expiry from the token without verifying
// it; the signature is the server's business.
func parseToken(token string) (uuid.UUID, time.Time) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return uuid.Nil, time.Time{}
	}

	var exp time.Time
	if t, err := claims.GetExpirationTime(); err == nil && t != nil {
		exp = t.Time
	}

	for _, name := range userIDClaims {
		if v, ok := claims[name].(string); ok {
			if id, err := uuid.Parse(v); err == nil {
				return id, exp
			}
		}
	}
	return uuid.Nil, exp
}

func userIDFromCookies(cookies []*http.Cookie) (uuid.UUID, bool) {
	for _, c := range cookies {
		if c.Name == UserIDCookie {
			if id, err := uuid.Parse(c.Value); err == nil {
				return id, true
			}
		}
	}
	return uuid.Nil, false
}
