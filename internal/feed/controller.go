// Package feed owns the paginated post list shown to the user.
//
// The Controller holds posts in server order, tracks pagination and
// loading/error state, and applies optimistic like and view mutations.
// Its lock is never held across a network call.
package feed

import (
	"context"
	"errors"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/logging"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

const (
	instrumentationName = "github.com/fyrsmithlabs/connectify/internal/feed"

	// DefaultPageSize is the number of posts requested per page.
	DefaultPageSize = 10

	fallbackError = "Failed to load posts"
)

// ErrPostNotFound is returned when a mutation targets a post not in the feed.
var ErrPostNotFound = errors.New("post not in feed")

// Source fetches pages of posts.
type Source interface {
	ListPosts(ctx context.Context, page, limit int) (*api.Page, error)
}

// State is a snapshot of the feed.
type State struct {
	Posts       []post.Post
	CurrentPage int
	HasMore     bool
	TotalCount  int
	Loading     bool
	Error       string
}

// IsEmpty reports no posts and nothing loading.
func (s State) IsEmpty() bool {
	return len(s.Posts) == 0 && !s.Loading
}

// IsFirstLoad reports a load in progress with nothing to show yet.
func (s State) IsFirstLoad() bool {
	return s.Loading && len(s.Posts) == 0
}

// Controller manages feed state. It is safe for concurrent use.
type Controller struct {
	src      Source
	pageSize int
	logger   *logging.Logger
	tracer   trace.Tracer

	mu       sync.Mutex
	state    State
	inflight int
	// gen increments on every replace-mode fetch; a response whose
	// generation is no longer current is discarded.
	gen uint64
}

// Option configures a Controller.
type Option func(*Controller)

// WithPageSize sets the page size.
func WithPageSize(n int) Option {
	return func(c *Controller) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTracerProvider sets the provider for fetch spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracer = tp.Tracer(instrumentationName) }
}

// NewController creates an empty feed backed by src. The state reports a
// first load until the first fetch settles.
func NewController(src Source, opts ...Option) *Controller {
	c := &Controller{
		src:      src,
		pageSize: DefaultPageSize,
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
		state:    State{HasMore: true, Loading: true},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() State {
	s := c.state
	s.Posts = make([]post.Post, len(c.state.Posts))
	for i, p := range c.state.Posts {
		s.Posts[i] = p.Clone()
	}
	return s
}

// Fetch loads page. With appendMode false the posts are replaced by the
// page's results; otherwise results are appended, skipping ids already
// present. On failure the error string is set and posts are left intact.
//
// The returned error is the API error, if any; state is updated either way.
func (c *Controller) Fetch(ctx context.Context, page int, appendMode bool) error {
	if page < 1 {
		page = 1
	}
	c.mu.Lock()
	gen := c.beginLocked(page, appendMode)
	c.mu.Unlock()
	return c.run(ctx, page, appendMode, gen)
}

// LoadMore fetches the next page in append mode. It is a no-op when there is
// no next page or a fetch is in flight.
func (c *Controller) LoadMore(ctx context.Context) error {
	c.mu.Lock()
	if !c.state.HasMore || c.inflight > 0 {
		c.mu.Unlock()
		return nil
	}
	next := c.state.CurrentPage + 1
	gen := c.beginLocked(next, true)
	c.mu.Unlock()
	return c.run(ctx, next, true, gen)
}

// beginLocked reserves an in-flight slot and returns the fetch generation.
func (c *Controller) beginLocked(page int, appendMode bool) uint64 {
	if page == 1 {
		c.state.Loading = true
	}
	c.state.Error = ""
	c.inflight++
	if !appendMode {
		c.gen++
	}
	return c.gen
}

// run requests page and applies the result unless gen was superseded.
func (c *Controller) run(ctx context.Context, page int, appendMode bool, gen uint64) error {
	ctx, span := c.tracer.Start(ctx, "feed.fetch", trace.WithAttributes(
		attribute.Int("feed.page", page),
		attribute.Bool("feed.append", appendMode),
	))
	defer span.End()

	result, err := c.src.ListPosts(ctx, page, c.pageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight--

	if gen != c.gen {
		span.SetAttributes(attribute.Bool("feed.stale", true))
		c.logger.Debug(ctx, "discarding superseded feed page", zap.Int("page", page))
		return err
	}
	c.state.Loading = false

	if err != nil {
		c.state.Error = api.Message(err, fallbackError)
		span.RecordError(err)
		span.SetStatus(codes.Error, c.state.Error)
		c.logger.Warn(ctx, "feed fetch failed", zap.Int("page", page), zap.Error(err))
		return err
	}

	if appendMode {
		seen := make(map[int]struct{}, len(c.state.Posts))
		for _, p := range c.state.Posts {
			seen[p.ID] = struct{}{}
		}
		for _, p := range result.Results {
			if _, dup := seen[p.ID]; dup {
				continue
			}
			seen[p.ID] = struct{}{}
			c.state.Posts = append(c.state.Posts, p.Clone())
		}
	} else {
		c.state.Posts = make([]post.Post, len(result.Results))
		for i, p := range result.Results {
			c.state.Posts[i] = p.Clone()
		}
	}
	c.state.TotalCount = result.Count
	c.state.HasMore = result.HasMore()
	c.state.CurrentPage = page

	span.SetAttributes(attribute.Int("feed.results", len(result.Results)))
	return nil
}

// Refresh reloads the first page in replace mode.
func (c *Controller) Refresh(ctx context.Context) error {
	c.mu.Lock()
	c.state.CurrentPage = 1
	c.mu.Unlock()
	return c.Fetch(ctx, 1, false)
}

// AddNewPost prepends a freshly created post.
func (c *Controller) AddNewPost(p post.Post) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.indexLocked(p.ID) >= 0 {
		return
	}
	c.state.Posts = append([]post.Post{p.Clone()}, c.state.Posts...)
	c.state.TotalCount++
}

// UpdatePost merges patch into the cached post.
func (c *Controller) UpdatePost(id int, patch post.Patch) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return ErrPostNotFound
	}
	patch.Apply(&c.state.Posts[i])
	return nil
}

// RemovePost drops a post from the feed.
func (c *Controller) RemovePost(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return ErrPostNotFound
	}
	c.state.Posts = append(c.state.Posts[:i], c.state.Posts[i+1:]...)
	if c.state.TotalCount > 0 {
		c.state.TotalCount--
	}
	return nil
}

// IncrementViewCount bumps the local view counter. There is no confirmation.
func (c *Controller) IncrementViewCount(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.indexLocked(id)
	if i < 0 {
		return ErrPostNotFound
	}
	c.state.Posts[i].ViewCount++
	return nil
}

// SetError records a user-facing error without touching posts.
func (c *Controller) SetError(msg string) {
	c.mu.Lock()
	c.state.Error = msg
	c.mu.Unlock()
}

func (c *Controller) indexLocked(id int) int {
	for i := range c.state.Posts {
		if c.state.Posts[i].ID == id {
			return i
		}
	}
	return -1
}
