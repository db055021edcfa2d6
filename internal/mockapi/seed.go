package mockapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/fyrsmithlabs/connectify/internal/post"
)

// Demo account created by Seed.
const (
	DemoEmail    = "demo@connectify.dev"
	DemoPassword = "connectify-demo"
)

// SeedOptions controls generated content.
type SeedOptions struct {
	Seed    int64
	Authors int
	Posts   int
}

// Seed fills the store with a demo account, fake authors, and posts.
// The same seed always produces the same content.
func Seed(s *Store, opts SeedOptions) error {
	if opts.Authors < 1 {
		opts.Authors = 5
	}
	if opts.Posts < 0 {
		opts.Posts = 0
	}
	f := gofakeit.New(opts.Seed)

	demo, err := s.CreateUser(Registration{
		Email:     DemoEmail,
		Username:  "demo",
		Password:  DemoPassword,
		FirstName: "Demo",
		LastName:  "User",
		Bio:       "Kicking the tyres.",
	})
	if err != nil {
		return fmt.Errorf("creating demo user: %w", err)
	}

	authors := []int{demo.ID}
	for i := 0; i < opts.Authors; i++ {
		first, last := f.FirstName(), f.LastName()
		u, err := s.CreateUser(Registration{
			Email:     fmt.Sprintf("%s.%s.%d@example.com", strings.ToLower(first), strings.ToLower(last), i),
			Username:  fmt.Sprintf("%s%d", strings.ToLower(f.Username()), i),
			Password:  f.Password(true, true, true, false, false, 12),
			FirstName: first,
			LastName:  last,
			Bio:       f.Sentence(8),
		})
		if err != nil {
			return fmt.Errorf("creating author %d: %w", i, err)
		}
		authors = append(authors, u.ID)
	}

	now := s.now().UTC()
	created := now
	for i := 0; i < opts.Posts; i++ {
		created = created.Add(-time.Duration(f.Number(5, 240)) * time.Minute)
		author, err := s.User(authors[f.Number(0, len(authors)-1)])
		if err != nil {
			return err
		}

		p := post.Post{
			Author:       author.Author(),
			Caption:      f.Sentence(f.Number(3, 24)),
			Visibility:   post.Public,
			LikeCount:    f.Number(0, 250),
			CommentCount: f.Number(0, 40),
			ViewCount:    f.Number(0, 2000),
			CreatedAt:    created,
			UpdatedAt:    created,
		}
		if f.Number(0, 9) < 2 {
			p.Visibility = post.Followers
		}
		if f.Bool() {
			p.Location = f.City() + ", " + f.Country()
		}
		attachments := f.Number(0, 3)
		for m := 0; m < attachments; m++ {
			p.Media = append(p.Media, post.Media{
				File:      fmt.Sprintf("https://picsum.photos/seed/connectify-%d-%d/800/600", i, m),
				MediaType: post.Image,
			})
		}
		if f.Number(0, 9) == 0 {
			p.UpdatedAt = created.Add(time.Duration(f.Number(2, 60)) * time.Minute)
		}
		s.insertSeeded(p)
	}
	return nil
}
