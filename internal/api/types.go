package api

import (
	"io"
	"time"

	"github.com/fyrsmithlabs/connectify/internal/config"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

// User is the authenticated user's profile.
type User struct {
	ID             int       `json:"id"`
	Email          string    `json:"email"`
	Username       string    `json:"username"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Bio            string    `json:"bio"`
	ProfilePicture string    `json:"profile_picture"`
	DateJoined     time.Time `json:"date_joined"`
}

// Author converts the profile into a post author reference.
func (u User) Author() post.Author {
	return post.Author{
		ID:             u.ID,
		Username:       u.Username,
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	}
}

// Credentials are the login form fields.
type Credentials struct {
	Email    string
	Password config.Secret
}

// AuthResponse is returned by the login endpoint.
type AuthResponse struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
	User    User   `json:"user"`
}

// Registration holds the signup form.
type Registration struct {
	Email          string
	Username       string
	Password       config.Secret
	FirstName      string
	LastName       string
	Bio            string
	ProfilePicture *Upload
}

// ProfileUpdate holds optional profile changes. Nil fields are not sent.
type ProfileUpdate struct {
	FirstName *string `json:"first_name,omitempty"`
	LastName  *string `json:"last_name,omitempty"`
	Bio       *string `json:"bio,omitempty"`
}

// Page is one page of the post list.
type Page struct {
	Results  []post.Post `json:"results"`
	Count    int         `json:"count"`
	Next     *string     `json:"next"`
	Previous *string     `json:"previous"`
}

// HasMore reports whether the server advertised a next page.
func (p *Page) HasMore() bool {
	return p.Next != nil && *p.Next != ""
}

// Upload is one file attached to a multipart request.
type Upload struct {
	Name        string
	ContentType string
	Type        post.MediaType
	Content     io.Reader
}

// NewPost holds the create-post form.
type NewPost struct {
	Caption    string
	Location   string
	Visibility post.Visibility
	Files      []Upload
}

// LikeState is the server's view of a post's like status.
type LikeState struct {
	IsLiked   bool `json:"is_liked"`
	LikeCount int  `json:"like_count"`
}

// ProgressFunc receives upload progress as a percentage in 0..100.
type ProgressFunc func(percent int)
