package composer

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/config"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

// pngHeader is enough of a PNG for content sniffing.
var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00\x1f\x15\xc4\x89")

type fakeCreator struct {
	mu      sync.Mutex
	calls   int
	got     api.NewPost
	bodies  []string
	err     error
	gate    chan struct{}
	started chan struct{}
}

func (f *fakeCreator) CreatePost(ctx context.Context, np api.NewPost, progress api.ProgressFunc) (*post.Post, error) {
	f.mu.Lock()
	f.calls++
	f.got = np
	for _, u := range np.Files {
		data, _ := io.ReadAll(u.Content)
		f.bodies = append(f.bodies, string(data))
	}
	gate, started := f.gate, f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	if progress != nil {
		progress(40)
		progress(100)
	}
	if f.err != nil {
		return nil, f.err
	}
	return &post.Post{ID: 77, Caption: np.Caption, Visibility: np.Visibility}, nil
}

func image(name string, size int64) File {
	return File{Name: name, Size: size, ContentType: "image/png", Data: []byte("img")}
}

func TestAddFiles_Valid(t *testing.T) {
	c := NewController(&fakeCreator{})

	res := c.AddFiles([]File{
		image("a.png", 1024),
		{Name: "b.mp4", Size: 2048, ContentType: "video/mp4", Data: []byte("vid")},
	})
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.Added)
	assert.Empty(t, res.Errors)

	d := c.Draft()
	assert.True(t, d.HasFiles())
	assert.Equal(t, []post.MediaType{post.Image, post.Video}, d.Types)
	assert.Len(t, d.Files, len(d.Types))
	assert.Len(t, d.Previews, 2)
	assert.Equal(t, 2, c.Previews().Len())
	assert.True(t, c.CanAddMoreFiles())
}

func TestAddFiles_SixImagesRejectedAsBatch(t *testing.T) {
	c := NewController(&fakeCreator{})

	batch := make([]File, 6)
	for i := range batch {
		batch[i] = image("img.png", 100)
	}
	res := c.AddFiles(batch)

	assert.False(t, res.Success)
	assert.Zero(t, res.Added)
	assert.Contains(t, res.Errors, "Maximum 5 files allowed per post")
	assert.Empty(t, c.Draft().Files)
	assert.Zero(t, c.Previews().Len())
}

func TestAddFiles_ExceedingLimitAcrossBatches(t *testing.T) {
	c := NewController(&fakeCreator{})
	require.True(t, c.AddFiles([]File{image("1.png", 1), image("2.png", 1), image("3.png", 1)}).Success)

	res := c.AddFiles([]File{image("4.png", 1), image("5.png", 1), image("6.png", 1)})
	assert.False(t, res.Success)
	assert.Len(t, c.Draft().Files, 3)

	res = c.AddFiles([]File{image("4.png", 1), image("5.png", 1)})
	assert.True(t, res.Success)
	assert.False(t, c.CanAddMoreFiles())
}

func TestAddFiles_OversizeRejected(t *testing.T) {
	c := NewController(&fakeCreator{})

	res := c.AddFiles([]File{image("huge.png", 11*1024*1024)})
	assert.False(t, res.Success)
	assert.Zero(t, res.Added)
	assert.Equal(t, []string{`File "huge.png" exceeds 10MB limit`}, res.Errors)
	assert.Empty(t, c.Draft().Files)
}

func TestAddFiles_UnsupportedTypeSkipped(t *testing.T) {
	c := NewController(&fakeCreator{})

	res := c.AddFiles([]File{
		{Name: "notes.txt", Size: 10, ContentType: "text/plain", Data: []byte("hello")},
		image("ok.png", 10),
	})
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.Added)
	assert.Equal(t, []string{`File "notes.txt" is not a supported image or video format`}, res.Errors)
}

func TestAddFiles_SniffsUndeclaredType(t *testing.T) {
	c := NewController(&fakeCreator{})

	res := c.AddFiles([]File{FileFromBytes("photo", "", pngHeader)})
	require.True(t, res.Success, res.Errors)
	d := c.Draft()
	assert.Equal(t, post.Image, d.Types[0])
	assert.Equal(t, "image/png", d.Files[0].ContentType)
}

func TestFileFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.bin")
	require.NoError(t, os.WriteFile(path, pngHeader, 0600))

	f, err := FileFromPath(path)
	require.NoError(t, err)
	assert.Equal(t, "pic.bin", f.Name)
	assert.Equal(t, int64(len(pngHeader)), f.Size)
	assert.Equal(t, "image/png", f.ContentType)

	_, err = FileFromPath(filepath.Dir(path))
	assert.Error(t, err)
}

func TestMediaType_Aliases(t *testing.T) {
	for _, ct := range []string{"image/jpeg", "image/svg+xml", "IMAGE/PNG; charset=binary"} {
		mt, ok := mediaType(ct)
		assert.True(t, ok, ct)
		assert.Equal(t, post.Image, mt)
	}
	for _, ct := range []string{"video/mov", "video/quicktime", "video/x-matroska", "video/webm"} {
		mt, ok := mediaType(ct)
		assert.True(t, ok, ct)
		assert.Equal(t, post.Video, mt)
	}
	_, ok := mediaType("application/pdf")
	assert.False(t, ok)
}

func TestRemoveFile_ReleasesPreview(t *testing.T) {
	c := NewController(&fakeCreator{})
	c.AddFiles([]File{image("a.png", 1), image("b.png", 1), image("c.png", 1)})
	before := c.Draft()

	require.NoError(t, c.RemoveFile(1))
	d := c.Draft()
	assert.Equal(t, []string{"a.png", "c.png"}, []string{d.Files[0].Name, d.Files[1].Name})
	assert.Len(t, d.Types, 2)
	assert.Equal(t, []string{before.Previews[0], before.Previews[2]}, d.Previews)
	_, live := c.Previews().Get(before.Previews[1])
	assert.False(t, live)
	assert.Equal(t, 2, c.Previews().Len())

	assert.Error(t, c.RemoveFile(5))
	assert.Error(t, c.RemoveFile(-1))
}

func TestUpdateField_ClearsFieldError(t *testing.T) {
	c := NewController(&fakeCreator{}, WithLimits(Limits{MaxFiles: 5, MaxFileSize: 1 << 20, CaptionMax: 5, LocationMax: 3}))
	require.NoError(t, c.UpdateField(FieldCaption, "far too long"))
	require.NoError(t, c.UpdateField(FieldLocation, "Paris"))

	_, err := c.SubmitPost(context.Background())
	require.ErrorIs(t, err, ErrInvalidDraft)
	d := c.Draft()
	assert.Equal(t, "Caption must be less than 5 characters", d.Errors[FieldCaption])
	assert.Equal(t, "Location must be less than 3 characters", d.Errors[FieldLocation])
	assert.False(t, d.IsFormValid())

	require.NoError(t, c.UpdateField(FieldCaption, "ok"))
	d = c.Draft()
	assert.NotContains(t, d.Errors, FieldCaption)
	assert.Contains(t, d.Errors, FieldLocation)
}

func TestUpdateField_Rejects(t *testing.T) {
	c := NewController(&fakeCreator{})
	assert.Error(t, c.UpdateField("title", "x"))
	assert.Error(t, c.UpdateField(FieldVisibility, "everyone"))

	require.NoError(t, c.UpdateField(FieldVisibility, "private"))
	assert.Equal(t, post.Private, c.Draft().Visibility)
}

func TestSubmitPost_EmptyDraftNoNetworkCall(t *testing.T) {
	creator := &fakeCreator{}
	c := NewController(creator)
	require.NoError(t, c.UpdateField(FieldCaption, "   "))

	_, err := c.SubmitPost(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDraft)
	assert.Equal(t, "Please fix the errors above", err.Error())
	assert.Equal(t, "Please add a caption or select files to share", c.Draft().Errors[FieldGeneral])
	assert.Zero(t, creator.calls)
}

func TestSubmitPost_CaptionLimitCountsCharacters(t *testing.T) {
	c := NewController(&fakeCreator{})
	require.NoError(t, c.UpdateField(FieldCaption, strings.Repeat("é", 2000)))
	_, err := c.SubmitPost(context.Background())
	require.NoError(t, err)

	require.NoError(t, c.UpdateField(FieldCaption, strings.Repeat("a", 2001)))
	_, err = c.SubmitPost(context.Background())
	assert.ErrorIs(t, err, ErrInvalidDraft)
	assert.Equal(t, "Caption must be less than 2000 characters", c.Draft().Errors[FieldCaption])
}

func TestSubmitPost_Success(t *testing.T) {
	creator := &fakeCreator{}
	var progress []int
	c := NewController(creator, WithProgressListener(func(p int) { progress = append(progress, p) }))
	c.Open()

	require.NoError(t, c.UpdateField(FieldCaption, "  sunset  "))
	require.NoError(t, c.UpdateField(FieldLocation, "Lisbon"))
	require.NoError(t, c.UpdateField(FieldVisibility, "followers"))
	require.True(t, c.AddFiles([]File{{Name: "a.png", Size: 3, ContentType: "image/png", Data: []byte("abc")}}).Success)

	p, err := c.SubmitPost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 77, p.ID)

	assert.Equal(t, "sunset", creator.got.Caption)
	assert.Equal(t, "Lisbon", creator.got.Location)
	assert.Equal(t, post.Followers, creator.got.Visibility)
	require.Len(t, creator.got.Files, 1)
	assert.Equal(t, post.Image, creator.got.Files[0].Type)
	assert.Equal(t, []string{"abc"}, creator.bodies)
	assert.Equal(t, []int{40, 100}, progress)

	d := c.Draft()
	assert.False(t, d.Open)
	assert.False(t, d.Submitting)
	assert.Empty(t, d.Caption)
	assert.Empty(t, d.Files)
	assert.Equal(t, post.Public, d.Visibility)
	assert.Zero(t, c.Previews().Len())
}

func TestSubmitPost_ReadsFilesFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.png")
	require.NoError(t, os.WriteFile(path, pngHeader, 0600))
	f, err := FileFromPath(path)
	require.NoError(t, err)

	creator := &fakeCreator{}
	c := NewController(creator)
	require.True(t, c.AddFiles([]File{f}).Success)

	_, err = c.SubmitPost(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{string(pngHeader)}, creator.bodies)
}

func TestSubmitPost_FailureKeepsDraft(t *testing.T) {
	creator := &fakeCreator{err: &api.Error{Kind: api.KindPayloadTooLarge, Status: 413, Message: "File size too large. Maximum 10MB per file allowed."}}
	c := NewController(creator)
	c.Open()
	require.NoError(t, c.UpdateField(FieldCaption, "hello"))

	_, err := c.SubmitPost(context.Background())
	assert.ErrorIs(t, err, api.KindPayloadTooLarge)

	d := c.Draft()
	assert.Equal(t, "File size too large. Maximum 10MB per file allowed.", d.Errors[FieldGeneral])
	assert.Equal(t, "hello", d.Caption)
	assert.True(t, d.Open)
	assert.False(t, d.Submitting)
}

func TestSubmitPost_RejectsConcurrentSubmit(t *testing.T) {
	creator := &fakeCreator{gate: make(chan struct{}), started: make(chan struct{})}
	c := NewController(creator)
	require.NoError(t, c.UpdateField(FieldCaption, "once"))

	done := make(chan error)
	go func() {
		_, err := c.SubmitPost(context.Background())
		done <- err
	}()

	select {
	case <-creator.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first submit never reached the API")
	}
	assert.True(t, c.Draft().Submitting)

	_, err := c.SubmitPost(context.Background())
	assert.ErrorIs(t, err, ErrSubmitting)

	close(creator.gate)
	require.NoError(t, <-done)
	assert.Equal(t, 1, creator.calls)
}

func TestCloseClearsDraft(t *testing.T) {
	c := NewController(&fakeCreator{})
	c.Open()
	require.NoError(t, c.UpdateField(FieldCaption, "draft"))
	c.AddFiles([]File{image("a.png", 1)})

	c.Close()
	d := c.Draft()
	assert.False(t, d.Open)
	assert.Empty(t, d.Caption)
	assert.Empty(t, d.Files)
	assert.Zero(t, c.Previews().Len())
}

func TestLimitsFromConfig(t *testing.T) {
	l := LimitsFromConfig(config.ComposerConfig{MaxFiles: 3, MaxFileSizeMB: 2, CaptionMax: 100, LocationMax: 50})
	assert.Equal(t, Limits{MaxFiles: 3, MaxFileSize: 2 << 20, CaptionMax: 100, LocationMax: 50}, l)

	c := NewController(&fakeCreator{}, WithLimits(l))
	res := c.AddFiles([]File{{Name: "big.png", Size: 3 << 20, ContentType: "image/png", Data: bytes.Repeat([]byte{1}, 4)}})
	assert.Equal(t, []string{`File "big.png" exceeds 2MB limit`}, res.Errors)
}
