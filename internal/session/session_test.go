package session

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/connectify/internal/api"
)

type fakeAuth struct {
	resp    *api.AuthResponse
	err     error
	regUser *api.User
	calls   int
}

func (f *fakeAuth) Login(_ context.Context, _ api.Credentials) (*api.AuthResponse, error) {
	f.calls++
	return f.resp, f.err
}

func (f *fakeAuth) Register(_ context.Context, reg api.Registration) (*api.User, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &api.User{ID: 99, Username: reg.Username, Email: reg.Email}, nil
}

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func TestOpen_EmptyStore(t *testing.T) {
	s, err := Open(NewMemoryStore())
	require.NoError(t, err)

	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
	assert.Empty(t, s.AccessToken())
}

func TestOpen_RequiresStore(t *testing.T) {
	_, err := Open(nil)
	assert.Error(t, err)
}

func TestLogin_PersistsAndRestores(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := OpenFileStore(path)
	require.NoError(t, err)

	token := signToken(t, time.Now().Add(time.Hour))
	auth := &fakeAuth{resp: &api.AuthResponse{
		Access:  token,
		Refresh: "refresh-1",
		User:    api.User{ID: 1, Username: "ada", Email: "ada@example.com"},
	}}

	s, err := Open(store)
	require.NoError(t, err)
	user, err := s.Login(context.Background(), auth, api.Credentials{Email: "ada@example.com", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "ada", user.Username)
	assert.True(t, s.IsAuthenticated())
	assert.Equal(t, "refresh-1", s.RefreshToken())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	// A fresh process restores the same session.
	store2, err := OpenFileStore(path)
	require.NoError(t, err)
	restored, err := Open(store2)
	require.NoError(t, err)
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, token, restored.AccessToken())
	require.NotNil(t, restored.User())
	assert.Equal(t, "ada@example.com", restored.User().Email)

	flag, ok := store2.Get(KeyIsAuthenticated)
	assert.True(t, ok)
	assert.Equal(t, "true", flag)
}

func TestLogin_FailureLeavesSessionEmpty(t *testing.T) {
	s, err := Open(NewMemoryStore())
	require.NoError(t, err)

	wantErr := &api.Error{Kind: api.KindUnauthorized, Status: 401, Message: "Invalid email or password."}
	_, err = s.Login(context.Background(), &fakeAuth{err: wantErr}, api.Credentials{})
	assert.ErrorIs(t, err, api.KindUnauthorized)
	assert.False(t, s.IsAuthenticated())
}

func TestLogout_ClearsPersistedKeys(t *testing.T) {
	store := NewMemoryStore()
	s, err := Open(store)
	require.NoError(t, err)

	_, err = s.Login(context.Background(), &fakeAuth{resp: &api.AuthResponse{Access: "a", Refresh: "r", User: api.User{ID: 1}}}, api.Credentials{})
	require.NoError(t, err)
	require.NoError(t, store.Set("connectify_recent_locations", "[]"))

	require.NoError(t, s.Logout())
	assert.False(t, s.IsAuthenticated())
	assert.Nil(t, s.User())
	for _, k := range []string{KeyAccessToken, KeyRefreshToken, KeyUser, KeyIsAuthenticated} {
		_, ok := store.Get(k)
		assert.False(t, ok, k)
	}
	_, ok := store.Get("connectify_recent_locations")
	assert.True(t, ok, "logout keeps unrelated keys")
}

func TestSignup_DoesNotLogIn(t *testing.T) {
	s, err := Open(NewMemoryStore())
	require.NoError(t, err)

	u, err := s.Signup(context.Background(), &fakeAuth{}, api.Registration{Username: "grace", Email: "g@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "grace", u.Username)
	assert.False(t, s.IsAuthenticated())
}

func TestUpdateUser(t *testing.T) {
	store := NewMemoryStore()
	s, err := Open(store)
	require.NoError(t, err)

	require.NoError(t, s.UpdateUser(api.User{ID: 2, Bio: "new bio"}))
	assert.Equal(t, "new bio", s.User().Bio)

	raw, ok := store.Get(KeyUser)
	require.True(t, ok)
	assert.Contains(t, raw, "new bio")
}

func TestIsAuthenticated_ExpiredToken(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemoryStore()
	require.NoError(t, store.SetMany(map[string]string{
		KeyAccessToken:     signToken(t, now.Add(-time.Minute)),
		KeyIsAuthenticated: "true",
	}))

	s, err := Open(store, WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())

	exp, ok := s.TokenExpiry()
	require.True(t, ok)
	assert.Equal(t, now.Add(-time.Minute).Unix(), exp.Unix())
}

func TestIsAuthenticated_OpaqueTokenTrusted(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.SetMany(map[string]string{
		KeyAccessToken:     "opaque",
		KeyIsAuthenticated: "true",
	}))
	s, err := Open(store)
	require.NoError(t, err)

	assert.True(t, s.IsAuthenticated())
	_, ok := s.TokenExpiry()
	assert.False(t, ok)
}

func TestIsAuthenticated_RequiresFlag(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeyAccessToken, "opaque"))
	s, err := Open(store)
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())
}

func TestOpen_CorruptUserIgnored(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeyUser, "{not json"))
	s, err := Open(store)
	require.NoError(t, err)
	assert.Nil(t, s.User())
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	require.NoError(t, os.WriteFile(path, []byte("{"), 0600))
	_, err := OpenFileStore(path)
	assert.ErrorContains(t, err, "parsing session file")
}

func TestWatch_ReloadsOnExternalChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := OpenFileStore(path)
	require.NoError(t, err)
	s, err := Open(store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan struct{}, 4)
	done := make(chan error, 1)
	go func() { done <- s.Watch(ctx, func() { changed <- struct{}{} }) }()

	// Another process logs in.
	other, err := OpenFileStore(path)
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		_ = other.SetMany(map[string]string{KeyAccessToken: "external", KeyIsAuthenticated: "true"})
		select {
		case <-changed:
			return true
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, "external", s.AccessToken())
	assert.True(t, s.IsAuthenticated())

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not return after cancel")
	}
}

func TestWatch_MemoryStoreNotWatchable(t *testing.T) {
	s, err := Open(NewMemoryStore())
	require.NoError(t, err)
	err = s.Watch(context.Background(), nil)
	assert.True(t, errors.Is(err, ErrNotWatchable))
}
