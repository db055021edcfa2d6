// Package mockapi is an in-memory Connectify backend. It serves the REST
// surface the client consumes and backs both the client tests and the
// dev-server command.
package mockapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Server serves the Connectify REST API from a Store.
type Server struct {
	echo    *echo.Echo
	store   *Store
	tokens  *tokenIssuer
	logger  *zap.Logger
	config  *Config
	metrics *httpMetrics
}

// Config holds dev server configuration.
type Config struct {
	Host           string
	Port           int
	Secret         []byte
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	MaxFiles       int
	MaxUploadBytes int64

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// DefaultConfig returns settings matching the client defaults.
func DefaultConfig() *Config {
	return &Config{
		Host:           "127.0.0.1",
		Port:           7000,
		Secret:         []byte("connectify-dev-secret"),
		AccessTTL:      time.Hour,
		RefreshTTL:     7 * 24 * time.Hour,
		MaxFiles:       5,
		MaxUploadBytes: 10 * 1024 * 1024,
	}
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// NewServer creates a server over store.
func NewServer(store *Store, logger *zap.Logger, cfg *Config) (*Server, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required for request tracking and debugging")
	}
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if len(cfg.Secret) == 0 {
		return nil, fmt.Errorf("token secret cannot be empty")
	}
	if cfg.MaxFiles < 1 || cfg.MaxUploadBytes < 1 {
		return nil, fmt.Errorf("upload limits must be positive")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = errorHandler(logger)

	s := &Server{
		echo:   e,
		store:  store,
		logger: logger,
		config: cfg,
		tokens: &tokenIssuer{
			secret:     cfg.Secret,
			accessTTL:  cfg.AccessTTL,
			refreshTTL: cfg.RefreshTTL,
			now:        store.now,
		},
		metrics: newHTTPMetrics(cfg.MeterProvider, logger),
	}

	// Middleware
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if cfg.TracerProvider != nil {
		e.Use(echo.WrapMiddleware(otelhttp.NewMiddleware("connectify-dev-server",
			otelhttp.WithTracerProvider(cfg.TracerProvider),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}),
		)))
	}
	e.Use(s.metrics.middleware())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			if err := next(c); err != nil {
				c.Error(err)
			}

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)
			return nil
		}
	})

	s.registerRoutes()
	return s, nil
}

// registerRoutes sets up the HTTP endpoints.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/media/*", s.handleMedia)

	users := s.echo.Group("/users")
	users.POST("/login/", s.handleLogin)
	users.POST("/register/", s.handleRegister, middleware.BodyLimit(bodyLimit(s.config.MaxUploadBytes+1<<20)))
	users.GET("/me/", s.handleMe, s.authenticate(true))
	users.PATCH("/me/", s.handleUpdateMe, s.authenticate(true))

	posts := s.echo.Group("/posts")
	posts.GET("/", s.handleListPosts, s.authenticate(false))
	posts.POST("/", s.handleCreatePost, s.authenticate(true),
		middleware.BodyLimit(bodyLimit(int64(s.config.MaxFiles)*s.config.MaxUploadBytes+1<<20)))
	posts.POST("/:id/like/", s.handleLike, s.authenticate(true))
	posts.DELETE("/:id/like/", s.handleUnlike, s.authenticate(true))
	posts.POST("/:id/view/", s.handleView, s.authenticate(false))
}

// bodyLimit renders a byte count in the unit syntax BodyLimit expects.
func bodyLimit(n int64) string {
	return strconv.FormatInt(n/1024+1, 10) + "K"
}

// errorHandler renders every error as {"detail": "..."} so the client sees
// the same shape for framework and handler errors.
func errorHandler(logger *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		var verr ValidationError
		if errors.As(err, &verr) {
			_ = c.JSON(http.StatusBadRequest, verr)
			return
		}

		status := http.StatusInternalServerError
		detail := "A server error occurred."
		var he *echo.HTTPError
		switch {
		case errors.As(err, &he):
			status = he.Code
			detail = fmt.Sprint(he.Message)
		case errors.Is(err, ErrNotFound):
			status = http.StatusNotFound
			detail = "Not found."
		default:
			logger.Error("unhandled error", zap.Error(err))
		}

		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = c.JSON(status, map[string]string{"detail": detail})
	}
}

// Handler returns the HTTP handler, for mounting in tests.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Start starts the HTTP server. It blocks until Shutdown.
func (s *Server) Start() error {
	addr := s.config.Addr()
	s.logger.Info("starting dev server", zap.String("addr", addr))
	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dev server")
	return s.echo.Shutdown(ctx)
}
