package post

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVisibility(t *testing.T) {
	for _, in := range []string{"public", "Followers", " private "} {
		_, err := ParseVisibility(in)
		assert.NoError(t, err, in)
	}
	_, err := ParseVisibility("friends")
	assert.ErrorContains(t, err, "invalid visibility")
}

func TestPost_DecodesBackendPayload(t *testing.T) {
	raw := `{
		"id": 7,
		"author": {"id": 3, "username": "ada", "first_name": "Ada", "last_name": "Lovelace"},
		"caption": "engines",
		"media": [{"id": 1, "file": "/media/a.png", "media_type": "image", "order": 0}],
		"location": "London",
		"visibility": "followers",
		"like_count": 4,
		"comment_count": 1,
		"view_count": 10,
		"is_liked": true,
		"created_at": "2024-03-01T10:00:00Z",
		"updated_at": "2024-03-01T10:00:00Z"
	}`

	var p Post
	require.NoError(t, json.Unmarshal([]byte(raw), &p))
	assert.Equal(t, 7, p.ID)
	assert.Equal(t, "Ada Lovelace", p.Author.DisplayName())
	assert.Equal(t, "AL", p.Author.Initials())
	assert.Equal(t, Followers, p.Visibility)
	assert.Equal(t, Image, p.Media[0].MediaType)
	assert.True(t, p.IsLiked)
	assert.False(t, p.Edited())
	assert.Empty(t, p.Pending)
}

func TestAuthor_FallsBackToUsername(t *testing.T) {
	a := Author{Username: "grace"}
	assert.Equal(t, "grace", a.DisplayName())
	assert.Equal(t, "G", a.Initials())
}

func TestClone_CopiesMedia(t *testing.T) {
	p := Post{ID: 1, Media: []Media{{ID: 1, File: "a"}}}
	c := p.Clone()
	c.Media[0].File = "b"
	assert.Equal(t, "a", p.Media[0].File)
}

func TestPatch_Apply(t *testing.T) {
	p := Post{ID: 1, Caption: "old", LikeCount: 2}
	caption := "new"
	liked := true
	Patch{Caption: &caption, IsLiked: &liked}.Apply(&p)

	assert.Equal(t, "new", p.Caption)
	assert.True(t, p.IsLiked)
	assert.Equal(t, 2, p.LikeCount)
}

func TestFormatDate(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		at   time.Time
		want string
	}{
		{now.Add(-30 * time.Second), "Just now"},
		{now.Add(-5 * time.Minute), "5m ago"},
		{now.Add(-3 * time.Hour), "3h ago"},
		{now.Add(-2 * 24 * time.Hour), "2d ago"},
		{time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC), "Jan 2"},
		{time.Date(2023, 12, 25, 9, 0, 0, 0, time.UTC), "Dec 25, 2023"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatDate(tt.at, now))
	}
}

func TestMediaURL(t *testing.T) {
	assert.Equal(t, "https://cdn.test/x.png", MediaURL("http://api.test", "https://cdn.test/x.png"))
	assert.Equal(t, "http://api.test/media/x.png", MediaURL("http://api.test/", "/media/x.png"))
	assert.Equal(t, "http://api.test/media/x.png", MediaURL("http://api.test", "media/x.png"))
	assert.Equal(t, "", MediaURL("http://api.test", ""))
}

func TestFormatCount(t *testing.T) {
	assert.Equal(t, "999", FormatCount(999))
	assert.Equal(t, "1K", FormatCount(1000))
	assert.Equal(t, "1.5K", FormatCount(1500))
	assert.Equal(t, "2.3M", FormatCount(2_300_000))
}
