// Package session holds the signed-in user's application context.
//
// A Session is created once with Open, which restores any persisted login,
// and is passed explicitly to whatever needs the current user or token.
// Logout clears both memory and the persisted keys.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/logging"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("not logged in")

// Authenticator is the subset of the API client used for sign-in.
type Authenticator interface {
	Login(ctx context.Context, creds api.Credentials) (*api.AuthResponse, error)
	Register(ctx context.Context, reg api.Registration) (*api.User, error)
}

// Session is the explicitly scoped auth context. It is safe for concurrent use.
type Session struct {
	store  Store
	logger *logging.Logger
	now    func() time.Time

	mu            sync.RWMutex
	user          *api.User
	accessToken   string
	refreshToken  string
	authenticated bool
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// WithClock overrides the clock used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Open restores the persisted session from store.
// A corrupt persisted user is discarded rather than failing startup.
func Open(store Store, opts ...Option) (*Session, error) {
	if store == nil {
		return nil, errors.New("session store is required")
	}
	s := &Session{store: store, logger: logging.NewNop(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.load()
	return s, nil
}

// load reads persisted keys into memory.
func (s *Session) load() {
	access, _ := s.store.Get(KeyAccessToken)
	refresh, _ := s.store.Get(KeyRefreshToken)
	flag, _ := s.store.Get(KeyIsAuthenticated)

	var user *api.User
	if raw, ok := s.store.Get(KeyUser); ok && raw != "" {
		var u api.User
		if err := json.Unmarshal([]byte(raw), &u); err != nil {
			s.logger.Warn(context.Background(), "discarding unreadable persisted user", zap.Error(err))
		} else {
			user = &u
		}
	}

	s.mu.Lock()
	s.accessToken = access
	s.refreshToken = refresh
	s.authenticated = flag == "true"
	s.user = user
	s.mu.Unlock()
}

// Login signs in and persists tokens and user.
func (s *Session) Login(ctx context.Context, auth Authenticator, creds api.Credentials) (*api.User, error) {
	resp, err := auth.Login(ctx, creds)
	if err != nil {
		return nil, err
	}

	userJSON, err := json.Marshal(resp.User)
	if err != nil {
		return nil, fmt.Errorf("encoding user: %w", err)
	}
	if err := s.store.SetMany(map[string]string{
		KeyAccessToken:     resp.Access,
		KeyRefreshToken:    resp.Refresh,
		KeyUser:            string(userJSON),
		KeyIsAuthenticated: "true",
	}); err != nil {
		return nil, fmt.Errorf("persisting session: %w", err)
	}

	user := resp.User
	s.mu.Lock()
	s.accessToken = resp.Access
	s.refreshToken = resp.Refresh
	s.user = &user
	s.authenticated = true
	s.mu.Unlock()

	ctx = logging.WithUserID(ctx, fmt.Sprint(user.ID))
	s.logger.Info(ctx, "logged in", zap.String("username", user.Username))
	return &user, nil
}

// Signup registers an account without signing in.
func (s *Session) Signup(ctx context.Context, auth Authenticator, reg api.Registration) (*api.User, error) {
	user, err := auth.Register(ctx, reg)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "account created", zap.String("username", user.Username))
	return user, nil
}

// Logout clears the session in memory and on disk.
func (s *Session) Logout() error {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.user = nil
	s.authenticated = false
	s.mu.Unlock()

	if err := s.store.Remove(KeyAccessToken, KeyRefreshToken, KeyUser, KeyIsAuthenticated); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// UpdateUser replaces the cached user, e.g. after a profile edit.
func (s *Session) UpdateUser(u api.User) error {
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	if err := s.store.Set(KeyUser, string(data)); err != nil {
		return fmt.Errorf("persisting user: %w", err)
	}
	s.mu.Lock()
	s.user = &u
	s.mu.Unlock()
	return nil
}

// User returns a copy of the current user, or nil.
func (s *Session) User() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

// AccessToken implements api.TokenSource.
func (s *Session) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken
}

// RefreshToken returns the stored refresh token.
func (s *Session) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.refreshToken
}

// IsAuthenticated reports whether a token is held, the persisted flag is set,
// and the token has not expired.
func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	token, flag := s.accessToken, s.authenticated
	s.mu.RUnlock()

	if token == "" || !flag {
		return false
	}
	if exp, ok := tokenExpiry(token); ok && !s.now().Before(exp) {
		return false
	}
	return true
}

// TokenExpiry returns the access token's exp claim. The signature is not
// verified; the server remains the authority.
func (s *Session) TokenExpiry() (time.Time, bool) {
	return tokenExpiry(s.AccessToken())
}

func tokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
