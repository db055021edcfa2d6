package location

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/connectify/internal/session"
)

func TestRecent_MostRecentFirstAndUnique(t *testing.T) {
	r := LoadRecent(session.NewMemoryStore(), 5)

	require.NoError(t, r.Add(Place{ID: "a"}))
	require.NoError(t, r.Add(Place{ID: "b"}))
	require.NoError(t, r.Add(Place{ID: "a", Name: "again"}))

	list := r.List()
	require.Len(t, list, 2)
	assert.Equal(t, "a", list[0].ID)
	assert.Equal(t, "again", list[0].Name)
	assert.Equal(t, "b", list[1].ID)
}

func TestRecent_TrimsToMax(t *testing.T) {
	r := LoadRecent(session.NewMemoryStore(), 0)

	for i := 0; i < 8; i++ {
		require.NoError(t, r.Add(Place{ID: fmt.Sprintf("p%d", i)}))
	}

	list := r.List()
	require.Len(t, list, DefaultRecentMax)
	assert.Equal(t, "p7", list[0].ID)
	assert.Equal(t, "p3", list[4].ID)
}

func TestRecent_PersistsAcrossLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session.json")
	store, err := session.OpenFileStore(path)
	require.NoError(t, err)

	r := LoadRecent(store, 5)
	require.NoError(t, r.Add(Place{ID: "home", Name: "Home", ShortName: "Home", Lat: 1, Lon: 2, Type: "house"}))

	reopened, err := session.OpenFileStore(path)
	require.NoError(t, err)
	list := LoadRecent(reopened, 5).List()
	require.Len(t, list, 1)
	assert.Equal(t, "Home", list[0].ShortName)
	assert.Equal(t, 2.0, list[0].Lon)
}

func TestRecent_CorruptValueIsEmpty(t *testing.T) {
	store := session.NewMemoryStore()
	require.NoError(t, store.Set(RecentKey, "{broken"))

	assert.Empty(t, LoadRecent(store, 5).List())
}

type failingStore struct{}

func (failingStore) Get(string) (string, bool) { return "", false }
func (failingStore) Set(string, string) error { return errors.New("disk full") }

func TestRecent_SaveFailureKeepsList(t *testing.T) {
	r := LoadRecent(failingStore{}, 5)

	err := r.Add(Place{ID: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Empty(t, r.List())
}
