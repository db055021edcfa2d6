// Package post defines the post model shared by the API client, the feed
// controller, and the presentation layer.
package post

import (
	"fmt"
	"strings"
	"time"
)

// Visibility controls who can see a post.
type Visibility string

const (
	Public    Visibility = "public"
	Followers Visibility = "followers"
	Private   Visibility = "private"
)

// ParseVisibility validates a visibility string.
func ParseVisibility(s string) (Visibility, error) {
	switch v := Visibility(strings.ToLower(strings.TrimSpace(s))); v {
	case Public, Followers, Private:
		return v, nil
	default:
		return "", fmt.Errorf("invalid visibility %q: must be public, followers or private", s)
	}
}

// MediaType tags an attachment as an image or a video.
type MediaType string

const (
	Image MediaType = "image"
	Video MediaType = "video"
)

// Author is the public profile reference embedded in a post.
type Author struct {
	ID             int    `json:"id"`
	Username       string `json:"username"`
	FirstName      string `json:"first_name,omitempty"`
	LastName       string `json:"last_name,omitempty"`
	ProfilePicture string `json:"profile_picture,omitempty"`
}

// DisplayName returns "First Last", falling back to the username.
func (a Author) DisplayName() string {
	name := strings.TrimSpace(a.FirstName + " " + a.LastName)
	if name == "" {
		return a.Username
	}
	return name
}

// Initials returns up to two uppercase initials for avatar placeholders.
func (a Author) Initials() string {
	var b strings.Builder
	for _, part := range []string{a.FirstName, a.LastName} {
		if part != "" {
			b.WriteString(strings.ToUpper(part[:1]))
		}
	}
	if b.Len() == 0 && a.Username != "" {
		b.WriteString(strings.ToUpper(a.Username[:1]))
	}
	return b.String()
}

// Media is one attachment of a post.
type Media struct {
	ID        int       `json:"id"`
	File      string    `json:"file"`
	MediaType MediaType `json:"media_type"`
	Order     int       `json:"order"`
}

// Post is the client-side cache entry for a backend post.
type Post struct {
	ID           int        `json:"id"`
	Author       Author     `json:"author"`
	Caption      string     `json:"caption"`
	Media        []Media    `json:"media"`
	Location     string     `json:"location"`
	Visibility   Visibility `json:"visibility"`
	LikeCount    int        `json:"like_count"`
	CommentCount int        `json:"comment_count"`
	ViewCount    int        `json:"view_count"`
	IsLiked      bool       `json:"is_liked"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	// Pending is the id of an unconfirmed local mutation, empty once settled.
	Pending string `json:"-"`
}

// Clone returns a deep copy of p.
func (p Post) Clone() Post {
	if p.Media != nil {
		p.Media = append([]Media(nil), p.Media...)
	}
	return p
}

// Edited reports whether the post was updated after creation.
func (p Post) Edited() bool {
	return !p.UpdatedAt.IsZero() && p.UpdatedAt.Sub(p.CreatedAt) > time.Second
}

// Patch holds optional field updates for a cached post. Nil fields are left alone.
type Patch struct {
	Caption      *string
	Location     *string
	Visibility   *Visibility
	LikeCount    *int
	CommentCount *int
	ViewCount    *int
	IsLiked      *bool
	Media        []Media
}

// Apply merges the patch into p.
func (pt Patch) Apply(p *Post) {
	if pt.Caption != nil {
		p.Caption = *pt.Caption
	}
	if pt.Location != nil {
		p.Location = *pt.Location
	}
	if pt.Visibility != nil {
		p.Visibility = *pt.Visibility
	}
	if pt.LikeCount != nil {
		p.LikeCount = *pt.LikeCount
	}
	if pt.CommentCount != nil {
		p.CommentCount = *pt.CommentCount
	}
	if pt.ViewCount != nil {
		p.ViewCount = *pt.ViewCount
	}
	if pt.IsLiked != nil {
		p.IsLiked = *pt.IsLiked
	}
	if pt.Media != nil {
		p.Media = append([]Media(nil), pt.Media...)
	}
}
