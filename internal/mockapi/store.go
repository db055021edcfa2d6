package mockapi

import (
	"errors"
	"fmt"
	"net/mail"
	"path"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

const (
	minPasswordLen = 8
	captionMax     = 2000
	locationMax    = 255
)

var (
	// ErrNotFound is returned for unknown users, posts, and media.
	ErrNotFound = errors.New("not found")

	// ErrBadCredentials is returned when email and password do not match.
	ErrBadCredentials = errors.New("bad credentials")
)

// ValidationError carries per-field messages, rendered as a 400 body.
type ValidationError map[string][]string

func (v ValidationError) Error() string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (v ValidationError) add(field, msg string) {
	v[field] = append(v[field], msg)
}

// Registration is the signup form accepted by the store.
type Registration struct {
	Email          string
	Username       string
	Password       string
	FirstName      string
	LastName       string
	Bio            string
	ProfilePicture string
}

// NewPost is a validated create-post request.
type NewPost struct {
	Caption    string
	Location   string
	Visibility post.Visibility
	Media      []MediaUpload
}

// MediaUpload is one stored attachment.
type MediaUpload struct {
	Path string
	Type post.MediaType
}

// Blob is an uploaded file served under /media/.
type Blob struct {
	ContentType string
	Data        []byte
}

type account struct {
	user api.User
	hash []byte
}

// Store is the in-memory backend state. It is safe for concurrent use.
type Store struct {
	mu         sync.RWMutex
	hashCost   int
	now        func() time.Time
	nextUser   int
	nextPost   int
	nextMedia  int
	accounts   map[int]*account
	byEmail    map[string]int
	byUsername map[string]int
	posts      []*post.Post // newest first
	likes      map[int]map[int]bool
	blobs      map[string]Blob
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithHashCost sets the bcrypt cost used for passwords.
func WithHashCost(cost int) StoreOption {
	return func(s *Store) { s.hashCost = cost }
}

// WithClock overrides the time source for timestamps.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore returns an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		hashCost:   bcrypt.DefaultCost,
		now:        time.Now,
		accounts:   map[int]*account{},
		byEmail:    map[string]int{},
		byUsername: map[string]int{},
		likes:      map[int]map[int]bool{},
		blobs:      map[string]Blob{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateUser registers an account.
func (s *Store) CreateUser(reg Registration) (api.User, error) {
	email := strings.ToLower(strings.TrimSpace(reg.Email))
	username := strings.TrimSpace(reg.Username)

	verr := ValidationError{}
	if email == "" {
		verr.add("email", "This field is required.")
	} else if _, err := mail.ParseAddress(email); err != nil {
		verr.add("email", "Enter a valid email address.")
	}
	if username == "" {
		verr.add("username", "This field is required.")
	}
	if reg.Password == "" {
		verr.add("password", "This field is required.")
	} else if utf8.RuneCountInString(reg.Password) < minPasswordLen {
		verr.add("password", fmt.Sprintf("This password is too short. It must contain at least %d characters.", minPasswordLen))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byEmail[email]; ok && email != "" {
		verr.add("email", "A user with that email already exists.")
	}
	if _, ok := s.byUsername[strings.ToLower(username)]; ok && username != "" {
		verr.add("username", "A user with that username already exists.")
	}
	if len(verr) > 0 {
		return api.User{}, verr
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.hashCost)
	if err != nil {
		return api.User{}, fmt.Errorf("hashing password: %w", err)
	}

	s.nextUser++
	u := api.User{
		ID:             s.nextUser,
		Email:          email,
		Username:       username,
		FirstName:      strings.TrimSpace(reg.FirstName),
		LastName:       strings.TrimSpace(reg.LastName),
		Bio:            reg.Bio,
		ProfilePicture: reg.ProfilePicture,
		DateJoined:     s.now().UTC(),
	}
	s.accounts[u.ID] = &account{user: u, hash: hash}
	s.byEmail[email] = u.ID
	s.byUsername[strings.ToLower(username)] = u.ID
	return u, nil
}

// Authenticate checks email and password.
func (s *Store) Authenticate(email, password string) (api.User, error) {
	s.mu.RLock()
	id, ok := s.byEmail[strings.ToLower(strings.TrimSpace(email))]
	var acct account
	if ok {
		acct = *s.accounts[id]
	}
	s.mu.RUnlock()

	if !ok {
		return api.User{}, ErrBadCredentials
	}
	if err := bcrypt.CompareHashAndPassword(acct.hash, []byte(password)); err != nil {
		return api.User{}, ErrBadCredentials
	}
	return acct.user, nil
}

// User returns the account with id.
func (s *Store) User(id int) (api.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	acct, ok := s.accounts[id]
	if !ok {
		return api.User{}, ErrNotFound
	}
	return acct.user, nil
}

// UpdateUser applies a profile update. Author references on existing posts
// follow the new names.
func (s *Store) UpdateUser(id int, upd api.ProfileUpdate) (api.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[id]
	if !ok {
		return api.User{}, ErrNotFound
	}
	if upd.FirstName != nil {
		acct.user.FirstName = strings.TrimSpace(*upd.FirstName)
	}
	if upd.LastName != nil {
		acct.user.LastName = strings.TrimSpace(*upd.LastName)
	}
	if upd.Bio != nil {
		acct.user.Bio = *upd.Bio
	}
	author := acct.user.Author()
	for _, p := range s.posts {
		if p.Author.ID == id {
			p.Author = author
		}
	}
	return acct.user, nil
}

// CreatePost stores a post authored by authorID and returns it.
func (s *Store) CreatePost(authorID int, np NewPost) (post.Post, error) {
	verr := ValidationError{}
	if strings.TrimSpace(np.Caption) == "" && len(np.Media) == 0 {
		verr.add("non_field_errors", "Post must have a caption or at least one media file.")
	}
	if utf8.RuneCountInString(np.Caption) > captionMax {
		verr.add("caption", fmt.Sprintf("Ensure this field has no more than %d characters.", captionMax))
	}
	if utf8.RuneCountInString(np.Location) > locationMax {
		verr.add("location", fmt.Sprintf("Ensure this field has no more than %d characters.", locationMax))
	}
	if len(verr) > 0 {
		return post.Post{}, verr
	}
	if np.Visibility == "" {
		np.Visibility = post.Public
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	acct, ok := s.accounts[authorID]
	if !ok {
		return post.Post{}, ErrNotFound
	}

	now := s.now().UTC()
	s.nextPost++
	p := &post.Post{
		ID:         s.nextPost,
		Author:     acct.user.Author(),
		Caption:    np.Caption,
		Location:   np.Location,
		Visibility: np.Visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
		Media:      make([]post.Media, 0, len(np.Media)),
	}
	for i, m := range np.Media {
		s.nextMedia++
		p.Media = append(p.Media, post.Media{ID: s.nextMedia, File: m.Path, MediaType: m.Type, Order: i})
	}
	s.posts = append([]*post.Post{p}, s.posts...)
	return p.Clone(), nil
}

// insertSeeded adds a prebuilt post keeping newest-first order.
func (s *Store) insertSeeded(p post.Post) post.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextPost++
	p.ID = s.nextPost
	for i := range p.Media {
		s.nextMedia++
		p.Media[i].ID = s.nextMedia
		p.Media[i].Order = i
	}
	stored := p.Clone()
	idx := sort.Search(len(s.posts), func(i int) bool {
		return s.posts[i].CreatedAt.Before(stored.CreatedAt)
	})
	s.posts = append(s.posts, nil)
	copy(s.posts[idx+1:], s.posts[idx:])
	s.posts[idx] = &stored
	return stored.Clone()
}

func visibleTo(p *post.Post, viewer int) bool {
	switch p.Visibility {
	case post.Private:
		return p.Author.ID == viewer
	case post.Followers:
		return viewer != 0
	default:
		return true
	}
}

// ListPosts returns one page of the posts viewer may see, newest first, with
// is_liked computed for viewer. Viewer 0 is anonymous.
func (s *Store) ListPosts(viewer, page, limit int) ([]post.Post, int) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	visible := make([]*post.Post, 0, len(s.posts))
	for _, p := range s.posts {
		if visibleTo(p, viewer) {
			visible = append(visible, p)
		}
	}

	start := (page - 1) * limit
	if start >= len(visible) || start < 0 {
		return []post.Post{}, len(visible)
	}
	end := min(start+limit, len(visible))

	out := make([]post.Post, 0, end-start)
	for _, p := range visible[start:end] {
		cp := p.Clone()
		cp.IsLiked = s.likes[p.ID][viewer]
		out = append(out, cp)
	}
	return out, len(visible)
}

func (s *Store) findLocked(id, viewer int) (*post.Post, error) {
	for _, p := range s.posts {
		if p.ID == id {
			if !visibleTo(p, viewer) {
				return nil, ErrNotFound
			}
			return p, nil
		}
	}
	return nil, ErrNotFound
}

// SetLike likes or unlikes a post for viewer. Repeating the current state is
// a no-op.
func (s *Store) SetLike(postID, viewer int, liked bool) (api.LikeState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.findLocked(postID, viewer)
	if err != nil {
		return api.LikeState{}, err
	}
	likers := s.likes[postID]
	if likers == nil {
		likers = map[int]bool{}
		s.likes[postID] = likers
	}
	switch {
	case liked && !likers[viewer]:
		likers[viewer] = true
		p.LikeCount++
	case !liked && likers[viewer]:
		delete(likers, viewer)
		p.LikeCount--
	}
	return api.LikeState{IsLiked: likers[viewer], LikeCount: p.LikeCount}, nil
}

// RecordView increments the view count and returns the new value.
func (s *Store) RecordView(postID, viewer int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.findLocked(postID, viewer)
	if err != nil {
		return 0, err
	}
	p.ViewCount++
	return p.ViewCount, nil
}

// PutMedia stores an upload and returns its relative URL path.
func (s *Store) PutMedia(dir, filename string, b Blob) string {
	p := path.Join("/media", dir, uuid.NewString()+strings.ToLower(path.Ext(filename)))
	s.mu.Lock()
	s.blobs[p] = b
	s.mu.Unlock()
	return p
}

// Media returns a stored upload.
func (s *Store) Media(p string) (Blob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.blobs[path.Clean(p)]
	if !ok {
		return Blob{}, ErrNotFound
	}
	return b, nil
}

// Stats reports how many users and posts the store holds.
func (s *Store) Stats() (users, posts int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.accounts), len(s.posts)
}
