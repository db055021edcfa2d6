package mockapi

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/post"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status string `json:"status"`
	Users  int    `json:"users"`
	Posts  int    `json:"posts"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type viewResponse struct {
	ViewCount int `json:"view_count"`
}

func (s *Server) handleHealth(c echo.Context) error {
	users, posts := s.store.Stats()
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Users: users, Posts: posts})
}

func (s *Server) handleMedia(c echo.Context) error {
	b, err := s.store.Media("/media/" + c.Param("*"))
	if err != nil {
		return err
	}
	return c.Blob(http.StatusOK, b.ContentType, b.Data)
}

func (s *Server) handleLogin(c echo.Context) error {
	var req loginRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body.")
	}

	verr := ValidationError{}
	if strings.TrimSpace(req.Email) == "" {
		verr.add("email", "This field is required.")
	}
	if req.Password == "" {
		verr.add("password", "This field is required.")
	}
	if len(verr) > 0 {
		return verr
	}

	u, err := s.store.Authenticate(req.Email, req.Password)
	if err != nil {
		return echo.NewHTTPError(http.StatusUnauthorized, "No active account found with the given credentials")
	}
	access, err := s.tokens.issue(u.ID, tokenAccess)
	if err != nil {
		return err
	}
	refresh, err := s.tokens.issue(u.ID, tokenRefresh)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, api.AuthResponse{Access: access, Refresh: refresh, User: u})
}

func (s *Server) handleRegister(c echo.Context) error {
	reg := Registration{
		Email:     c.FormValue("email"),
		Username:  c.FormValue("username"),
		Password:  c.FormValue("password"),
		FirstName: c.FormValue("first_name"),
		LastName:  c.FormValue("last_name"),
		Bio:       c.FormValue("bio"),
	}

	if fh, err := c.FormFile("profile_picture"); err == nil {
		blob, err := s.readUpload(fh)
		if err != nil {
			return err
		}
		if !strings.HasPrefix(blob.ContentType, "image/") {
			return ValidationError{"profile_picture": {"Upload a valid image."}}
		}
		reg.ProfilePicture = s.store.PutMedia("profiles", fh.Filename, blob)
	} else if !errors.Is(err, http.ErrMissingFile) {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed multipart body.")
	}

	u, err := s.store.CreateUser(reg)
	if err != nil {
		return err
	}
	s.logger.Debug("registered user", zap.Int("user_id", u.ID))
	return c.JSON(http.StatusCreated, u)
}

func (s *Server) handleMe(c echo.Context) error {
	u, err := s.store.User(viewerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleUpdateMe(c echo.Context) error {
	var upd api.ProfileUpdate
	if err := c.Bind(&upd); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed request body.")
	}
	u, err := s.store.UpdateUser(viewerID(c), upd)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, u)
}

func (s *Server) handleListPosts(c echo.Context) error {
	page, err := queryInt(c, "page", 1)
	if err != nil || page < 1 {
		return echo.NewHTTPError(http.StatusNotFound, "Invalid page.")
	}
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit < 1 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	results, total := s.store.ListPosts(viewerID(c), page, limit)
	if len(results) == 0 && page > 1 {
		return echo.NewHTTPError(http.StatusNotFound, "Invalid page.")
	}

	out := api.Page{Results: results, Count: total}
	if page*limit < total {
		next := pageURL(c, page+1, limit)
		out.Next = &next
	}
	if page > 1 {
		prev := pageURL(c, page-1, limit)
		out.Previous = &prev
	}
	return c.JSON(http.StatusOK, out)
}

func (s *Server) handleCreatePost(c echo.Context) error {
	form, err := c.MultipartForm()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Malformed multipart body.")
	}

	np := NewPost{
		Caption:  strings.TrimSpace(first(form.Value["caption"])),
		Location: strings.TrimSpace(first(form.Value["location"])),
	}
	if v := first(form.Value["visibility"]); v != "" {
		vis, err := post.ParseVisibility(v)
		if err != nil {
			return ValidationError{"visibility": {fmt.Sprintf("%q is not a valid choice.", v)}}
		}
		np.Visibility = vis
	}

	files := form.File["files"]
	types := form.Value["types"]
	if len(files) > s.config.MaxFiles {
		return ValidationError{"files": {fmt.Sprintf("Maximum %d files allowed per post.", s.config.MaxFiles)}}
	}
	if len(types) > 0 && len(types) != len(files) {
		return ValidationError{"types": {"Provide one type per file."}}
	}

	for i, fh := range files {
		blob, err := s.readUpload(fh)
		if err != nil {
			return err
		}
		mt, err := uploadType(blob.ContentType, types, i)
		if err != nil {
			return ValidationError{"files": {fmt.Sprintf("File %q: %v", fh.Filename, err)}}
		}
		np.Media = append(np.Media, MediaUpload{
			Path: s.store.PutMedia("posts", fh.Filename, blob),
			Type: mt,
		})
	}

	p, err := s.store.CreatePost(viewerID(c), np)
	if err != nil {
		return err
	}
	s.logger.Debug("created post", zap.Int("post_id", p.ID), zap.Int("media", len(p.Media)))
	return c.JSON(http.StatusCreated, p)
}

func (s *Server) handleLike(c echo.Context) error {
	return s.setLike(c, true)
}

func (s *Server) handleUnlike(c echo.Context) error {
	return s.setLike(c, false)
}

func (s *Server) setLike(c echo.Context, liked bool) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	state, err := s.store.SetLike(id, viewerID(c), liked)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) handleView(c echo.Context) error {
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	n, err := s.store.RecordView(id, viewerID(c))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, viewResponse{ViewCount: n})
}

// readUpload loads a multipart file, enforcing the per-file size limit and
// sniffing the content type.
func (s *Server) readUpload(fh *multipart.FileHeader) (Blob, error) {
	if fh.Size > s.config.MaxUploadBytes {
		return Blob{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File %q exceeds the %d byte limit.", fh.Filename, s.config.MaxUploadBytes))
	}
	f, err := fh.Open()
	if err != nil {
		return Blob{}, err
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.config.MaxUploadBytes+1))
	if err != nil {
		return Blob{}, err
	}
	if int64(len(data)) > s.config.MaxUploadBytes {
		return Blob{}, echo.NewHTTPError(http.StatusRequestEntityTooLarge,
			fmt.Sprintf("File %q exceeds the %d byte limit.", fh.Filename, s.config.MaxUploadBytes))
	}

	ct := mimetype.Detect(data).String()
	if declared := fh.Header.Get(echo.HeaderContentType); declared != "" && ct == "application/octet-stream" {
		ct = declared
	}
	return Blob{ContentType: ct, Data: data}, nil
}

// uploadType resolves the media type of file i from the declared types or,
// when none were sent, from the content type.
func uploadType(contentType string, types []string, i int) (post.MediaType, error) {
	base, _, _ := strings.Cut(contentType, ";")
	if i < len(types) {
		switch mt := post.MediaType(types[i]); mt {
		case post.Image, post.Video:
			return mt, nil
		default:
			return "", fmt.Errorf("unknown media type %q", types[i])
		}
	}
	switch {
	case strings.HasPrefix(base, "image/"):
		return post.Image, nil
	case strings.HasPrefix(base, "video/"):
		return post.Video, nil
	default:
		return "", fmt.Errorf("unsupported content type %q", base)
	}
}

func queryInt(c echo.Context, name string, def int) (int, error) {
	raw := c.QueryParam(name)
	if raw == "" {
		return def, nil
	}
	return strconv.Atoi(raw)
}

func pageURL(c echo.Context, page, limit int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return fmt.Sprintf("%s://%s%s?%s", c.Scheme(), c.Request().Host, c.Request().URL.Path, q.Encode())
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}
