package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fyrsmithlabs/connectify/internal/post"
)

// ListPosts fetches one page of the feed.
func (c *Client) ListPosts(ctx context.Context, page, limit int) (*Page, error) {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	var out Page
	err := c.do(ctx, &request{method: http.MethodGet, path: "/posts/", query: q, msgs: listPostsMessages}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePost uploads a new post. Empty caption and location are omitted from
// the form. progress, if non-nil, receives upload percentages.
func (c *Client) CreatePost(ctx context.Context, np NewPost, progress ProgressFunc) (*post.Post, error) {
	f := newForm()
	fail := func(err error) (*post.Post, error) {
		return nil, &Error{Kind: KindUnexpected, Message: createPostMessages.Default, Err: err}
	}

	if np.Caption != "" {
		if err := f.field("caption", np.Caption); err != nil {
			return fail(err)
		}
	}
	if np.Location != "" {
		if err := f.field("location", np.Location); err != nil {
			return fail(err)
		}
	}
	visibility := np.Visibility
	if visibility == "" {
		visibility = post.Public
	}
	if err := f.field("visibility", string(visibility)); err != nil {
		return fail(err)
	}
	for _, u := range np.Files {
		if err := f.file("files", u); err != nil {
			return fail(err)
		}
		if err := f.field("types", string(u.Type)); err != nil {
			return fail(err)
		}
	}

	body, contentType, length, err := f.close()
	if err != nil {
		return fail(err)
	}
	pr := newProgressReader(body, length, progress)

	var out post.Post
	err = c.do(ctx, &request{
		method:      http.MethodPost,
		path:        "/posts/",
		body:        pr,
		length:      length,
		contentType: contentType,
		msgs:        createPostMessages,
	}, &out)
	c.metrics.addUploadBytes(pr.bytesRead())
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Like marks a post as liked by the current user.
func (c *Client) Like(ctx context.Context, postID int) (*LikeState, error) {
	return c.like(ctx, http.MethodPost, postID)
}

// Unlike removes the current user's like.
func (c *Client) Unlike(ctx context.Context, postID int) (*LikeState, error) {
	return c.like(ctx, http.MethodDelete, postID)
}

func (c *Client) like(ctx context.Context, method string, postID int) (*LikeState, error) {
	var out LikeState
	err := c.do(ctx, &request{method: method, path: fmt.Sprintf("/posts/%d/like/", postID), msgs: likeMessages}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordView registers a view of the post.
func (c *Client) RecordView(ctx context.Context, postID int) error {
	return c.do(ctx, &request{method: http.MethodPost, path: fmt.Sprintf("/posts/%d/view/", postID), msgs: viewMessages}, nil)
}
