package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/connectify/internal/api"
	"github.com/fyrsmithlabs/connectify/internal/config"
	"github.com/fyrsmithlabs/connectify/internal/feed"
	"github.com/fyrsmithlabs/connectify/internal/location"
	"github.com/fyrsmithlabs/connectify/internal/logging"
	"github.com/fyrsmithlabs/connectify/internal/session"
	"github.com/fyrsmithlabs/connectify/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// app is the wiring shared by every command of one invocation.
type app struct {
	cfg     *config.Config
	logger  *logging.Logger
	tel     *telemetry.Telemetry
	metrics *api.Metrics
	store   *session.FileStore
	session *session.Session
	client  *api.Client
}

// setup loads configuration and builds logging, telemetry, the session, and
// the API client.
func (o *rootOptions) setup(ctx context.Context, stderr io.Writer) (*app, error) {
	if o.envFile != "" {
		// Existing environment variables win over the file.
		if err := godotenv.Load(o.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", o.envFile, err)
		}
	}

	cfg, err := config.LoadWithFile(o.configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if o.server != "" {
		if cfg.API.MediaBaseURL == cfg.API.BaseURL {
			cfg.API.MediaBaseURL = o.server
		}
		cfg.API.BaseURL = o.server
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.metricsFile != "" {
		cfg.Metrics.TextfilePath = o.metricsFile
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logCfg, err := logging.FromAppConfig(cfg.Logging)
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewLoggerTo(logCfg, stderr, nil)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	tel, err := telemetry.New(ctx, telemetry.FromAppConfig(cfg.Telemetry, version))
	if err != nil {
		return nil, fmt.Errorf("initializing telemetry: %w", err)
	}
	if degraded, terr := tel.Degraded(); degraded {
		logger.Warn(ctx, "telemetry export unavailable, continuing without it", zap.Error(terr))
	}

	metrics := api.NewMetrics(tel.Meter("github.com/fyrsmithlabs/connectify/cmd/connectify"), logger.Underlying())

	store, err := session.OpenFileStore(cfg.Session.Path)
	if err != nil {
		return nil, fmt.Errorf("opening session: %w", err)
	}
	sess, err := session.Open(store, session.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	client, err := api.NewFromConfig(cfg.API,
		api.WithTokenSource(api.TokenFunc(sess.AccessToken)),
		api.WithLogger(logger),
		api.WithMetrics(metrics),
		api.WithTelemetry(tel.TracerProvider(), tel.MeterProvider()),
	)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	return &app{
		cfg:     cfg,
		logger:  logger,
		tel:     tel,
		metrics: metrics,
		store:   store,
		session: sess,
		client:  client,
	}, nil
}

// close flushes metrics, telemetry, and logs.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if path := a.cfg.Metrics.TextfilePath; path != "" {
		if err := a.metrics.WriteTextfile(path); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics textfile: %w", err))
		}
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := a.tel.Shutdown(ctx); err != nil {
		a.logger.Debug(ctx, "telemetry shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
	return errors.Join(errs...)
}

// requireLogin fails unless a live session exists.
func (a *app) requireLogin() error {
	if !a.session.IsAuthenticated() {
		return fmt.Errorf("%w: run 'connectify login' first", session.ErrNotAuthenticated)
	}
	return nil
}

// newFeed builds a feed controller over the API client.
func (a *app) newFeed() *feed.Controller {
	return feed.NewController(a.client,
		feed.WithPageSize(a.cfg.Feed.PageSize),
		feed.WithLogger(a.logger.Named("feed")),
		feed.WithTracerProvider(a.tel.TracerProvider()),
	)
}

// newGeocoder builds a geocoder from the location settings.
func (a *app) newGeocoder() (*location.Geocoder, error) {
	ua := a.cfg.API.UserAgent
	if ua == "" {
		ua = "connectify-cli/" + version
	}
	return location.NewGeocoder(a.cfg.Location.GeocoderURL,
		location.WithUserAgent(ua),
		location.WithLogger(a.logger.Named("location")),
		location.WithTracerProvider(a.tel.TracerProvider()),
	)
}
