// Package composer holds the state of a post being authored: caption,
// location, visibility, attached files, validation errors and upload
// progress, plus the submission lifecycle.
package composer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/config"
	"github.com/fyrsmithlabs/connectify/internal/logging"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

const instrumentationName = "github.com/fyrsmithlabs/connectify/internal/composer"

// Field names accepted by UpdateField and used as error keys.
const (
	FieldCaption    = "caption"
	FieldLocation   = "location"
	FieldVisibility = "visibility"
	FieldGeneral    = "general"
)

const (
	msgFixErrors    = "Please fix the errors above"
	msgEmptyPost    = "Please add a caption or select files to share"
	msgSubmitFailed = "Failed to create post. Please try again."
)

var (
	// ErrSubmitting is returned when a submit is attempted while one is in flight.
	ErrSubmitting = errors.New("a post is already being submitted")

	// ErrInvalidDraft is returned by SubmitPost when local validation fails.
	// The per-field messages are in Draft().Errors.
	ErrInvalidDraft = errors.New(msgFixErrors)
)

// Creator is the create-post subset of the API client.
type Creator interface {
	CreatePost(ctx context.Context, np api.NewPost, progress api.ProgressFunc) (*post.Post, error)
}

// Limits bounds the draft.
type Limits struct {
	MaxFiles    int
	MaxFileSize int64
	CaptionMax  int
	LocationMax int
}

// DefaultLimits returns 5 files of at most 10MB, a 2000 character caption
// and a 255 character location.
func DefaultLimits() Limits {
	return Limits{MaxFiles: 5, MaxFileSize: 10 * 1024 * 1024, CaptionMax: 2000, LocationMax: 255}
}

// LimitsFromConfig converts the composer config section.
func LimitsFromConfig(cfg config.ComposerConfig) Limits {
	return Limits{
		MaxFiles:    cfg.MaxFiles,
		MaxFileSize: cfg.MaxFileSizeBytes(),
		CaptionMax:  cfg.CaptionMax,
		LocationMax: cfg.LocationMax,
	}
}

// Draft is a snapshot of the composer. Files, Types and Previews are index aligned.
type Draft struct {
	Caption        string
	Location       string
	Visibility     post.Visibility
	Files          []File
	Types          []post.MediaType
	Previews       []string
	Submitting     bool
	UploadProgress int
	Errors         map[string]string
	Open           bool
}

// HasFiles reports at least one attachment.
func (d Draft) HasFiles() bool { return len(d.Files) > 0 }

// IsFormValid reports no stored validation errors.
func (d Draft) IsFormValid() bool { return len(d.Errors) == 0 }

// AddResult reports the outcome of AddFiles.
type AddResult struct {
	Success bool
	Added   int
	Errors  []string
}

// Controller manages one draft. It is safe for concurrent use.
type Controller struct {
	creator  Creator
	limits   Limits
	previews *PreviewRegistry
	logger   *logging.Logger
	tracer   trace.Tracer
	progress api.ProgressFunc

	mu    sync.Mutex
	draft Draft
}

// Option configures a Controller.
type Option func(*Controller)

// WithLimits overrides DefaultLimits.
func WithLimits(l Limits) Option {
	return func(c *Controller) { c.limits = l }
}

// WithPreviewRegistry shares a preview registry.
func WithPreviewRegistry(r *PreviewRegistry) Option {
	return func(c *Controller) { c.previews = r }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithTracerProvider sets the provider for submit spans.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Controller) { c.tracer = tp.Tracer(instrumentationName) }
}

// WithProgressListener receives every upload progress update.
func WithProgressListener(fn api.ProgressFunc) Option {
	return func(c *Controller) { c.progress = fn }
}

// NewController returns a controller with an empty draft.
func NewController(creator Creator, opts ...Option) *Controller {
	c := &Controller{
		creator:  creator,
		limits:   DefaultLimits(),
		previews: NewPreviewRegistry(),
		logger:   logging.NewNop(),
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.draft = emptyDraft()
	return c
}

func emptyDraft() Draft {
	return Draft{Visibility: post.Public, Errors: map[string]string{}}
}

// Draft returns a copy of the current draft.
func (c *Controller) Draft() Draft {
	c.mu.Lock()
	defer c.mu.Unlock()
	d := c.draft
	d.Files = append([]File(nil), c.draft.Files...)
	d.Types = append([]post.MediaType(nil), c.draft.Types...)
	d.Previews = append([]string(nil), c.draft.Previews...)
	d.Errors = make(map[string]string, len(c.draft.Errors))
	for k, v := range c.draft.Errors {
		d.Errors[k] = v
	}
	return d
}

// Previews returns the registry holding preview handles.
func (c *Controller) Previews() *PreviewRegistry {
	return c.previews
}

// CanAddMoreFiles reports room for another attachment.
func (c *Controller) CanAddMoreFiles() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.draft.Files) < c.limits.MaxFiles
}

// UpdateField sets caption, location or visibility and clears that field's error.
func (c *Controller) UpdateField(name, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch name {
	case FieldCaption:
		c.draft.Caption = value
	case FieldLocation:
		c.draft.Location = value
	case FieldVisibility:
		v, err := post.ParseVisibility(value)
		if err != nil {
			return err
		}
		c.draft.Visibility = v
	default:
		return fmt.Errorf("unknown field %q", name)
	}
	delete(c.draft.Errors, name)
	return nil
}

// AddFiles validates and attaches files. Invalid files are reported in
// Errors and skipped. If the valid files would push the draft past the file
// limit, nothing is added.
func (c *Controller) AddFiles(files []File) AddResult {
	var (
		valid  []File
		types  []post.MediaType
		errMsg []string
	)
	for _, f := range files {
		mt, err := validateFile(f, c.limits.MaxFileSize)
		if err != nil {
			errMsg = append(errMsg, err.Error())
			continue
		}
		valid = append(valid, f)
		types = append(types, mt)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.draft.Files)+len(valid) > c.limits.MaxFiles {
		errMsg = append(errMsg, fmt.Sprintf("Maximum %d files allowed per post", c.limits.MaxFiles))
		return AddResult{Success: false, Errors: errMsg}
	}

	for i, f := range valid {
		c.draft.Files = append(c.draft.Files, f)
		c.draft.Types = append(c.draft.Types, types[i])
		c.draft.Previews = append(c.draft.Previews, c.previews.Create(f))
	}
	return AddResult{Success: len(valid) > 0, Added: len(valid), Errors: errMsg}
}

// RemoveFile detaches the file at index and releases its preview.
func (c *Controller) RemoveFile(index int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if index < 0 || index >= len(c.draft.Files) {
		return fmt.Errorf("no file at index %d", index)
	}
	c.previews.Release(c.draft.Previews[index])
	c.draft.Files = append(c.draft.Files[:index], c.draft.Files[index+1:]...)
	c.draft.Types = append(c.draft.Types[:index], c.draft.Types[index+1:]...)
	c.draft.Previews = append(c.draft.Previews[:index], c.draft.Previews[index+1:]...)
	return nil
}

// Clear releases every preview and resets the draft. The open flag is kept.
func (c *Controller) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.clearLocked()
}

func (c *Controller) clearLocked() {
	for _, h := range c.draft.Previews {
		c.previews.Release(h)
	}
	open, submitting := c.draft.Open, c.draft.Submitting
	c.draft = emptyDraft()
	c.draft.Open = open
	c.draft.Submitting = submitting
}

// Open marks the composer as shown.
func (c *Controller) Open() {
	c.mu.Lock()
	c.draft.Open = true
	c.mu.Unlock()
}

// Close hides the composer and clears the draft.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Open = false
	c.clearLocked()
}

// validateLocked checks the draft and stores the field errors.
func (c *Controller) validateLocked() bool {
	errs := map[string]string{}
	caption := strings.TrimSpace(c.draft.Caption)
	location := strings.TrimSpace(c.draft.Location)

	if utf8.RuneCountInString(caption) > c.limits.CaptionMax {
		errs[FieldCaption] = fmt.Sprintf("Caption must be less than %d characters", c.limits.CaptionMax)
	}
	if utf8.RuneCountInString(location) > c.limits.LocationMax {
		errs[FieldLocation] = fmt.Sprintf("Location must be less than %d characters", c.limits.LocationMax)
	}
	if caption == "" && len(c.draft.Files) == 0 {
		errs[FieldGeneral] = msgEmptyPost
	}
	c.draft.Errors = errs
	return len(errs) == 0
}

// SubmitPost validates the draft and uploads it. Invalid drafts return
// ErrInvalidDraft without any network call. On success the draft is
// cleared, the composer closed, and the created post returned. On failure
// the general error is set and the draft kept.
func (c *Controller) SubmitPost(ctx context.Context) (*post.Post, error) {
	c.mu.Lock()
	if c.draft.Submitting {
		c.mu.Unlock()
		return nil, ErrSubmitting
	}
	if !c.validateLocked() {
		c.mu.Unlock()
		return nil, ErrInvalidDraft
	}
	c.draft.Submitting = true
	c.draft.UploadProgress = 0
	c.draft.Errors = map[string]string{}
	np := api.NewPost{
		Caption:    strings.TrimSpace(c.draft.Caption),
		Location:   strings.TrimSpace(c.draft.Location),
		Visibility: c.draft.Visibility,
	}
	files := append([]File(nil), c.draft.Files...)
	types := append([]post.MediaType(nil), c.draft.Types...)
	c.mu.Unlock()

	ctx, span := c.tracer.Start(ctx, "composer.submit", trace.WithAttributes(
		attribute.Int("composer.files", len(files)),
		attribute.String("composer.visibility", string(np.Visibility)),
	))
	defer span.End()

	created, err := c.upload(ctx, np, files, types)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft.Submitting = false

	if err != nil {
		msg := api.Message(err, msgSubmitFailed)
		c.draft.Errors = map[string]string{FieldGeneral: msg}
		span.RecordError(err)
		span.SetStatus(codes.Error, msg)
		c.logger.Warn(ctx, "post submission failed", zap.Error(err))
		return nil, err
	}

	c.draft.Open = false
	c.clearLocked()
	c.draft.UploadProgress = 0
	c.logger.Info(ctx, "post created", zap.Int("post_id", created.ID), zap.Int("files", len(files)))
	return created, nil
}

func (c *Controller) upload(ctx context.Context, np api.NewPost, files []File, types []post.MediaType) (*post.Post, error) {
	closers := make([]io.Closer, 0, len(files))
	defer func() {
		for _, cl := range closers {
			_ = cl.Close()
		}
	}()

	for i, f := range files {
		rc, err := f.open()
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", f.Name, err)
		}
		closers = append(closers, rc)
		np.Files = append(np.Files, api.Upload{
			Name:        f.Name,
			ContentType: f.ContentType,
			Type:        types[i],
			Content:     rc,
		})
	}

	return c.creator.CreatePost(ctx, np, c.setProgress)
}

func (c *Controller) setProgress(pct int) {
	c.mu.Lock()
	c.draft.UploadProgress = pct
	c.mu.Unlock()
	if c.progress != nil {
		c.progress(pct)
	}
}
