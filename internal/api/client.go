// Package api is the HTTP client for the Connectify backend REST API.
//
// Every method returns *Error on failure, classified by Kind and carrying a
// user-facing message chosen per endpoint.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/connectify/internal/config"
	"github.com/fyrsmithlabs/connectify/internal/logging"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "connectify-cli"

	// maxResponseBytes bounds how much of a response body is read.
	maxResponseBytes = 8 << 20
)

// TokenSource supplies the bearer token for authenticated requests.
// An empty token sends no Authorization header.
type TokenSource interface {
	AccessToken() string
}

// TokenFunc adapts a function to TokenSource.
type TokenFunc func() string

// AccessToken implements TokenSource.
func (f TokenFunc) AccessToken() string { return f() }

// Client talks to the backend API. It is safe for concurrent use.
type Client struct {
	baseURL   string
	userAgent string
	timeout   time.Duration
	http      *http.Client
	transport http.RoundTripper
	limiter   *rate.Limiter
	tokens    TokenSource
	logger    *logging.Logger
	metrics   *Metrics

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
}

// Option configures a Client.
type Option func(*Client)

// WithTokenSource sets where bearer tokens come from.
func WithTokenSource(ts TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithLogger sets the request logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithTransport sets the base transport wrapped by the instrumentation.
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.transport = rt }
}

// WithTimeout sets the per-request timeout, including upload time.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithRateLimit throttles outgoing requests. A zero limit disables throttling.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithTelemetry sets the providers used for request spans and metrics.
func WithTelemetry(tp trace.TracerProvider, mp metric.MeterProvider) Option {
	return func(c *Client) {
		c.tracerProvider = tp
		c.meterProvider = mp
	}
}

// New creates a client for the API rooted at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid API base URL %q", baseURL)
	}

	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: defaultUserAgent,
		timeout:   defaultTimeout,
		transport: http.DefaultTransport,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tracerProvider == nil {
		c.tracerProvider = otel.GetTracerProvider()
	}
	if c.meterProvider == nil {
		c.meterProvider = otel.GetMeterProvider()
	}

	c.http = &http.Client{
		Timeout: c.timeout,
		Transport: otelhttp.NewTransport(c.transport,
			otelhttp.WithTracerProvider(c.tracerProvider),
			otelhttp.WithMeterProvider(c.meterProvider),
			otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
				return r.Method + " " + normalizeRoute(r.URL.Path)
			}),
		),
	}
	return c, nil
}

// NewFromConfig creates a client from the api config section.
func NewFromConfig(cfg config.APIConfig, opts ...Option) (*Client, error) {
	base := []Option{
		WithTimeout(cfg.Timeout),
		WithRateLimit(cfg.RateLimit, cfg.RateBurst),
	}
	if cfg.UserAgent != "" {
		base = append(base, WithUserAgent(cfg.UserAgent))
	}
	return New(cfg.BaseURL, append(base, opts...)...)
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// request is one API call.
type request struct {
	method      string
	path        string
	query       url.Values
	body        io.Reader
	length      int64
	contentType string
	msgs        messages
}

func jsonRequest(method, path string, payload any, msgs messages) (*request, error) {
	r := &request{method: method, path: path, msgs: msgs}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		r.body = bytes.NewReader(data)
		r.length = int64(len(data))
		r.contentType = "application/json"
	}
	return r, nil
}

// do executes r and decodes a JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, r *request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return networkError(fmt.Errorf("rate limiter: %w", err))
		}
	}

	target := c.baseURL + r.path
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, r.method, target, r.body)
	if err != nil {
		return &Error{Kind: KindUnexpected, Message: r.msgs.Default, Err: err}
	}
	if r.body != nil {
		req.ContentLength = r.length
		req.Header.Set("Content-Type", r.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.tokens != nil {
		if tok := c.tokens.AccessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	route := normalizeRoute(r.path)
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.observe(ctx, r.method, route, 0, time.Since(start))
		c.logger.Debug(ctx, "api request failed",
			zap.String("method", r.method),
			zap.String("route", route),
			zap.Error(err),
		)
		return networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	elapsed := time.Since(start)
	c.metrics.observe(ctx, r.method, route, resp.StatusCode, elapsed)
	c.logger.Debug(ctx, "api request",
		zap.String("method", r.method),
		zap.String("route", route),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", elapsed),
	)
	if err != nil {
		return networkError(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := statusError(resp.StatusCode, data, r.msgs)
		c.logger.Info(ctx, "api error response",
			zap.String("route", route),
			zap.Int("status", resp.StatusCode),
			zap.String("kind", apiErr.Kind.String()),
		)
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return decodeError(err, r.msgs)
	}
	return nil
}
