package mockapi

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

const (
	tokenAccess  = "access"
	tokenRefresh = "refresh"

	userIDKey = "user_id"
)

// tokenIssuer signs and verifies HS256 tokens carrying the user id.
type tokenIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func (t *tokenIssuer) issue(userID int, kind string) (string, error) {
	ttl := t.accessTTL
	if kind == tokenRefresh {
		ttl = t.refreshTTL
	}
	now := t.now()
	claims := jwt.MapClaims{
		"token_type": kind,
		"user_id":    userID,
		"jti":        uuid.NewString(),
		"iat":        now.Unix(),
		"exp":        now.Add(ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// verify returns the user id of a valid access token.
func (t *tokenIssuer) verify(raw string) (int, error) {
	tok, err := jwt.Parse(raw, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return 0, err
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return 0, errors.New("unexpected claims")
	}
	if kind, _ := claims["token_type"].(string); kind != tokenAccess {
		return 0, fmt.Errorf("token type %q cannot authenticate", kind)
	}
	// JSON numbers decode as float64.
	id, ok := claims["user_id"].(float64)
	if !ok || id <= 0 {
		return 0, errors.New("missing user_id claim")
	}
	return int(id), nil
}

// authenticate resolves the bearer token into a user id. With required set,
// requests without a valid token are rejected; otherwise they proceed as
// anonymous.
func (s *Server) authenticate(required bool) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			if header == "" {
				if required {
					return echo.NewHTTPError(http.StatusUnauthorized, "Authentication credentials were not provided.")
				}
				return next(c)
			}

			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok {
				return echo.NewHTTPError(http.StatusUnauthorized, "Authorization header must contain a bearer token.")
			}
			id, err := s.tokens.verify(strings.TrimSpace(raw))
			if err != nil {
				s.logger.Debug("rejected token", zap.Error(err))
				return echo.NewHTTPError(http.StatusUnauthorized, "Given token not valid for any token type")
			}
			if _, err := s.store.User(id); err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "User not found")
			}
			c.Set(userIDKey, id)
			return next(c)
		}
	}
}

// viewerID returns the authenticated user id, or 0 for anonymous requests.
func viewerID(c echo.Context) int {
	id, _ := c.Get(userIDKey).(int)
	return id
}

// parseID reads a numeric path parameter.
func parseID(c echo.Context, name string) (int, error) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, echo.NewHTTPError(http.StatusNotFound, "Not found.")
	}
	return id, nil
}
