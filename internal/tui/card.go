package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/fyrsmithlabs/connectify/internal/post"
)

const (
	defaultCardWidth = 72
	minCardWidth     = 30
)

// CardOptions controls how a post card is rendered.
type CardOptions struct {
	MediaBase string
	Now       time.Time
	Width     int
	Selected  bool
}

// RenderCard renders one post: author line, caption, location, media links,
// and engagement counters.
func RenderCard(p post.Post, opts CardOptions) string {
	width := opts.Width
	if width <= 0 {
		width = defaultCardWidth
	}
	width = max(width, minCardWidth)
	inner := width - 4 // border and padding
	if opts.Now.IsZero() {
		opts.Now = time.Now()
	}

	var b strings.Builder

	initials := p.Author.Initials()
	if initials == "" {
		initials = "?"
	}
	b.WriteString(avatarStyle.Render(initials) + " ")
	b.WriteString(nameStyle.Render(p.Author.DisplayName()))
	b.WriteString(dimStyle.Render(" @" + p.Author.Username + " · " + post.FormatDate(p.CreatedAt, opts.Now)))
	if p.Edited() {
		b.WriteString(dimStyle.Render(" (edited)"))
	}
	if p.Visibility != "" && p.Visibility != post.Public {
		b.WriteString(dimStyle.Render(" [" + string(p.Visibility) + "]"))
	}
	b.WriteString("\n")

	if p.Location != "" {
		b.WriteString(labelStyle.Render("📍 "+p.Location) + "\n")
	}
	if caption := strings.TrimSpace(p.Caption); caption != "" {
		b.WriteString(lipgloss.NewStyle().Width(inner).Render(caption) + "\n")
	}
	for _, m := range p.Media {
		icon := "🖼"
		if m.MediaType == post.Video {
			icon = "🎞"
		}
		b.WriteString(dimStyle.Render(fmt.Sprintf("%s  %s", icon, post.MediaURL(opts.MediaBase, m.File))) + "\n")
	}

	heart := dimStyle.Render("♡ " + post.FormatCount(p.LikeCount))
	if p.IsLiked {
		heart = likedStyle.Render("♥ " + post.FormatCount(p.LikeCount))
	}
	counters := heart +
		dimStyle.Render("   💬 "+post.FormatCount(p.CommentCount)) +
		dimStyle.Render("   👁 "+post.FormatCount(p.ViewCount))
	if p.Pending != "" {
		counters += dimStyle.Render("   syncing…")
	}
	b.WriteString(counters)

	style := cardStyle
	if opts.Selected {
		style = selectedCardStyle
	}
	return style.Width(width - 2).Render(b.String())
}

// RenderSkeleton renders n placeholder cards for the first load.
func RenderSkeleton(n, width int) string {
	if width <= 0 {
		width = defaultCardWidth
	}
	width = max(width, minCardWidth)
	inner := width - 4

	bar := func(frac float64) string {
		return skeletonStyle.Render(strings.Repeat("░", max(1, int(float64(inner)*frac))))
	}
	cards := make([]string, 0, n)
	for i := 0; i < n; i++ {
		body := bar(0.35) + "\n" + bar(0.9) + "\n" + bar(0.6) + "\n" + bar(0.25)
		cards = append(cards, cardStyle.Width(width-2).Render(body))
	}
	return strings.Join(cards, "\n")
}
