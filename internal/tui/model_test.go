package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/feed"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

var testNow = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

type pagedSource struct {
	mu    sync.Mutex
	pages map[int]*api.Page
	errs  map[int]error
}

func (s *pagedSource) ListPosts(_ context.Context, page, _ int) (*api.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.errs[page]; err != nil {
		return nil, err
	}
	if p, ok := s.pages[page]; ok {
		return p, nil
	}
	return &api.Page{}, nil
}

func (s *pagedSource) setErr(page int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs[page] = err
}

type recordingAPI struct {
	mu    sync.Mutex
	likes []int
	views []int
	fail  bool
}

func (r *recordingAPI) Like(_ context.Context, id int) (*api.LikeState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes = append(r.likes, id)
	if r.fail {
		return nil, errors.New("boom")
	}
	return &api.LikeState{IsLiked: true, LikeCount: 42}, nil
}

func (r *recordingAPI) Unlike(_ context.Context, id int) (*api.LikeState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.likes = append(r.likes, -id)
	return &api.LikeState{IsLiked: false, LikeCount: 41}, nil
}

func (r *recordingAPI) RecordView(_ context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views = append(r.views, id)
	return nil
}

func testPost(id int, name string) post.Post {
	return post.Post{
		ID:        id,
		Author:    post.Author{ID: id, Username: strings.ToLower(name), FirstName: name},
		Caption:   fmt.Sprintf("caption %d", id),
		LikeCount: id,
		CreatedAt: testNow.Add(-time.Duration(id) * time.Hour),
	}
}

func next(s string) *string { return &s }

func newTestModel(src *pagedSource, rec *recordingAPI) Model {
	fc := feed.NewController(src, feed.WithPageSize(2))
	return NewModel(fc, Options{
		Likes:     feed.NewLikeSync(fc, rec, nil),
		Viewer:    rec,
		MediaBase: "http://media.test",
		Now:       func() time.Time { return testNow },
	})
}

func twoPages() *pagedSource {
	return &pagedSource{
		pages: map[int]*api.Page{
			1: {Results: []post.Post{testPost(1, "Ada"), testPost(2, "Grace")}, Count: 3, Next: next("page=2")},
			2: {Results: []post.Post{testPost(3, "Linus")}, Count: 3},
		},
		errs: map[int]error{},
	}
}

// drain runs cmd and every command it produces, feeding messages back into
// the model. Spinner ticks are dropped so the loop terminates.
func drain(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := []tea.Cmd{cmd}
	for steps := 0; len(queue) > 0; steps++ {
		require.Less(t, steps, 100, "command loop did not settle")
		c := queue[0]
		queue = queue[1:]
		if c == nil {
			continue
		}
		switch msg := c().(type) {
		case nil, spinner.TickMsg, tea.QuitMsg:
		case tea.BatchMsg:
			queue = append(queue, msg...)
		default:
			updated, more := m.Update(msg)
			m = updated.(Model)
			queue = append(queue, more)
		}
	}
	return m
}

func press(t *testing.T, m Model, key string) Model {
	t.Helper()
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(key)})
	return drain(t, updated.(Model), cmd)
}

func TestNewModel_ShowsSkeleton(t *testing.T) {
	m := newTestModel(twoPages(), &recordingAPI{})

	assert.True(t, m.fetching)
	view := m.View()
	assert.Contains(t, view, "Loading feed")
	assert.Contains(t, view, "░")
}

func TestModel_InitLoadsFirstPage(t *testing.T) {
	rec := &recordingAPI{}
	m := newTestModel(twoPages(), rec)
	m = drain(t, m, m.Init())

	require.Len(t, m.state.Posts, 2)
	assert.False(t, m.fetching)

	view := m.View()
	assert.Contains(t, view, "Ada")
	assert.Contains(t, view, "caption 1")
	assert.Contains(t, view, "2/3")
	assert.NotContains(t, view, "Loading feed")

	// The selected post is counted as viewed once.
	assert.Equal(t, []int{1}, rec.views)
}

func TestModel_CursorRecordsViewsAndLoadsMore(t *testing.T) {
	rec := &recordingAPI{}
	m := newTestModel(twoPages(), rec)
	m = drain(t, m, m.Init())

	m = press(t, m, "j")
	assert.Equal(t, 1, m.cursor)
	// Reaching the last loaded post pulls the next page.
	require.Len(t, m.state.Posts, 3)
	assert.False(t, m.state.HasMore)

	m = press(t, m, "k")
	m = press(t, m, "j")
	assert.Equal(t, []int{1, 2}, rec.views)

	m = press(t, m, "j")
	assert.Contains(t, m.View(), "You're all caught up")
}

func TestModel_FirstLoadFailureShowsRetryPanel(t *testing.T) {
	src := twoPages()
	src.setErr(1, errors.New("connection refused"))
	m := newTestModel(src, &recordingAPI{})
	m = drain(t, m, m.Init())

	view := m.View()
	assert.Contains(t, view, "Failed to load posts")
	assert.Contains(t, view, "try again")

	src.setErr(1, nil)
	m = press(t, m, "r")
	assert.Len(t, m.state.Posts, 2)
	assert.NotContains(t, m.View(), "Failed to load posts")
}

func TestModel_LoadMoreFailureKeepsPosts(t *testing.T) {
	src := twoPages()
	src.setErr(2, errors.New("timeout"))
	m := newTestModel(src, &recordingAPI{})
	m = drain(t, m, m.Init())

	m = press(t, m, "j")
	require.Len(t, m.state.Posts, 2)
	view := m.View()
	assert.Contains(t, view, "Ada")
	assert.Contains(t, view, "Failed to load posts")
	assert.Contains(t, view, "retry")

	src.setErr(2, nil)
	m = press(t, m, "n")
	assert.Len(t, m.state.Posts, 3)
	assert.Empty(t, m.state.Error)
}

func TestModel_LikeTogglesSelectedPost(t *testing.T) {
	rec := &recordingAPI{}
	m := newTestModel(twoPages(), rec)
	m = drain(t, m, m.Init())

	m = press(t, m, "l")
	assert.Equal(t, []int{1}, rec.likes)
	assert.True(t, m.state.Posts[0].IsLiked)
	assert.Equal(t, 42, m.state.Posts[0].LikeCount)
	assert.Contains(t, m.View(), "♥")

	m = press(t, m, "l")
	assert.Equal(t, []int{1, -1}, rec.likes)
	assert.False(t, m.state.Posts[0].IsLiked)
}

func TestModel_LikeFailureReverts(t *testing.T) {
	rec := &recordingAPI{fail: true}
	m := newTestModel(twoPages(), rec)
	m = drain(t, m, m.Init())

	m = press(t, m, "l")
	assert.False(t, m.state.Posts[0].IsLiked)
	assert.Equal(t, 1, m.state.Posts[0].LikeCount)
	assert.Empty(t, m.state.Posts[0].Pending)
}

func TestModel_EmptyFeed(t *testing.T) {
	src := &pagedSource{pages: map[int]*api.Page{}, errs: map[int]error{}}
	m := newTestModel(src, &recordingAPI{})
	m = drain(t, m, m.Init())

	assert.Contains(t, m.View(), "No posts yet")
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(twoPages(), &recordingAPI{})

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	assert.True(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
	assert.Empty(t, updated.(Model).View())
}

func TestModel_WindowSize(t *testing.T) {
	m := newTestModel(twoPages(), &recordingAPI{})
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 50, Height: 20})
	assert.Equal(t, 50, updated.(Model).cardWidth())
}

func TestModel_SessionChangedRefreshes(t *testing.T) {
	src := twoPages()
	m := newTestModel(src, &recordingAPI{})
	m = drain(t, m, m.Init())
	m = press(t, m, "j")
	require.Len(t, m.state.Posts, 3)

	updated, cmd := m.Update(SessionChangedMsg{})
	m = drain(t, updated.(Model), cmd)
	assert.Equal(t, 0, m.cursor)
	assert.Len(t, m.state.Posts, 2)
}

func TestModel_LikeWhileSignedOutSetsError(t *testing.T) {
	rec := &recordingAPI{}
	src := twoPages()
	fc := feed.NewController(src, feed.WithPageSize(2))
	m := NewModel(fc, Options{
		Likes:   feed.NewLikeSync(fc, rec, nil),
		Viewer:  rec,
		Now:     func() time.Time { return testNow },
		CanLike: func() bool { return false },
	})
	m = drain(t, m, m.Init())

	m = press(t, m, "l")
	assert.Empty(t, rec.likes, "no like request while signed out")
	assert.False(t, m.state.Posts[0].IsLiked)
	assert.Equal(t, "You must be logged in to like posts.", fc.State().Error)
	assert.Contains(t, m.View(), "You must be logged in to like posts.")
}
