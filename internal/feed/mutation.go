package feed

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/logging"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

const likeFailedMessage = "Failed to update like. Please try again."

// Mutation is an optimistic like toggle awaiting backend confirmation.
// While unsettled, the post's Pending field holds the mutation ID.
type Mutation struct {
	ID     string
	PostID int
	// Liked is the state the mutation applied.
	Liked bool
}

// ToggleLike flips the liked flag and adjusts the like count by one,
// tagging the post as pending. It does not call the API; pass the returned
// mutation to Settle once the backend answers.
func (c *Controller) ToggleLike(id int) (*Mutation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(id)
	if i < 0 {
		return nil, ErrPostNotFound
	}
	p := &c.state.Posts[i]
	m := &Mutation{ID: uuid.NewString(), PostID: id, Liked: !p.IsLiked}
	applyLike(p, m.Liked)
	p.Pending = m.ID
	return m, nil
}

// Settle resolves m. A nil err clears the pending marker. A non-nil err
// reverts the mutation and sets the feed error.
//
// A mutation superseded by a later toggle of the same post is not reverted;
// the later mutation owns the post's state.
func (c *Controller) Settle(m *Mutation, err error) {
	if m == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.state.Error = api.Message(err, likeFailedMessage)
	}
	i := c.indexLocked(m.PostID)
	if i < 0 {
		return
	}
	p := &c.state.Posts[i]
	if p.Pending != m.ID {
		return
	}
	if err != nil {
		applyLike(p, !m.Liked)
	}
	p.Pending = ""
}

// confirm settles m with the server's view of the like state.
func (c *Controller) confirm(m *Mutation, st *api.LikeState) {
	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexLocked(m.PostID)
	if i < 0 {
		return
	}
	p := &c.state.Posts[i]
	if p.Pending != m.ID {
		return
	}
	p.IsLiked = st.IsLiked
	p.LikeCount = st.LikeCount
	p.Pending = ""
}

func applyLike(p *post.Post, liked bool) {
	if p.IsLiked == liked {
		return
	}
	p.IsLiked = liked
	if liked {
		p.LikeCount++
	} else {
		p.LikeCount--
	}
}

// Liker is the like/unlike subset of the API client.
type Liker interface {
	Like(ctx context.Context, postID int) (*api.LikeState, error)
	Unlike(ctx context.Context, postID int) (*api.LikeState, error)
}

// Viewer records post views.
type Viewer interface {
	RecordView(ctx context.Context, postID int) error
}

// LikeSync pairs optimistic toggles with the like endpoints.
type LikeSync struct {
	feed   *Controller
	liker  Liker
	logger *logging.Logger
}

// NewLikeSync wires feed toggles to liker.
func NewLikeSync(feed *Controller, liker Liker, logger *logging.Logger) *LikeSync {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LikeSync{feed: feed, liker: liker, logger: logger}
}

// Toggle applies an optimistic like toggle, calls the backend, and settles
// the mutation. On success the post takes the server's like count.
func (s *LikeSync) Toggle(ctx context.Context, postID int) (*Mutation, error) {
	m, err := s.feed.ToggleLike(postID)
	if err != nil {
		return nil, err
	}

	var st *api.LikeState
	if m.Liked {
		st, err = s.liker.Like(ctx, postID)
	} else {
		st, err = s.liker.Unlike(ctx, postID)
	}
	if err != nil {
		s.logger.Warn(ctx, "like toggle rejected, reverting",
			zap.Int("post_id", postID),
			zap.Bool("liked", m.Liked),
			zap.Error(err),
		)
		s.feed.Settle(m, err)
		return m, err
	}
	if st != nil {
		s.feed.confirm(m, st)
	} else {
		s.feed.Settle(m, nil)
	}
	return m, nil
}

// View increments the local view count and reports the view to v.
// Backend failures are logged and otherwise ignored.
func (c *Controller) View(ctx context.Context, v Viewer, postID int) {
	if err := c.IncrementViewCount(postID); err != nil {
		return
	}
	if v == nil {
		return
	}
	if err := v.RecordView(ctx, postID); err != nil {
		c.logger.Debug(ctx, "recording view failed", zap.Int("post_id", postID), zap.Error(err))
	}
}
