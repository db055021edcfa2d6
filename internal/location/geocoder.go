package location

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/connectify/internal/logging"
)

const (
	// DefaultGeocoderURL is the public OpenStreetMap Nominatim endpoint.
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org"

	searchLimit = 5
)

var (
	// ErrSearchFailed wraps forward geocoding failures.
	ErrSearchFailed = errors.New("Failed to search locations")

	// ErrReverseFailed wraps reverse geocoding failures.
	ErrReverseFailed = errors.New("Failed to get location details")
)

// Geocoder resolves place names and coordinates against a Nominatim server.
type Geocoder struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	logger    *logging.Logger
	now       func() time.Time
}

// GeocoderOption configures a Geocoder.
type GeocoderOption func(*Geocoder)

// WithUserAgent sets the User-Agent; Nominatim's usage policy requires one.
func WithUserAgent(ua string) GeocoderOption {
	return func(g *Geocoder) { g.userAgent = ua }
}

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) GeocoderOption {
	return func(g *Geocoder) { g.logger = l }
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(c *http.Client) GeocoderOption {
	return func(g *Geocoder) { g.http = c }
}

// WithTracerProvider instruments requests with tp.
func WithTracerProvider(tp trace.TracerProvider) GeocoderOption {
	return func(g *Geocoder) {
		g.http = &http.Client{
			Timeout:   g.http.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(tp)),
		}
	}
}

// WithRequestRate caps lookups per second. Zero disables the cap.
func WithRequestRate(perSecond float64) GeocoderOption {
	return func(g *Geocoder) {
		if perSecond <= 0 {
			g.limiter = nil
			return
		}
		g.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
	}
}

// NewGeocoder creates a geocoder for baseURL. Requests are limited to one
// per second, the public Nominatim policy.
func NewGeocoder(baseURL string, opts ...GeocoderOption) (*Geocoder, error) {
	if baseURL == "" {
		baseURL = DefaultGeocoderURL
	}
	u, err := url.Parse(baseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("invalid geocoder URL %q", baseURL)
	}

	g := &Geocoder{
		baseURL:   strings.TrimRight(baseURL, "/"),
		userAgent: "connectify-cli",
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport, otelhttp.WithTracerProvider(otel.GetTracerProvider())),
		},
		limiter: rate.NewLimiter(rate.Limit(1), 1),
		logger:  logging.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

type nominatimResult struct {
	PlaceID     json.Number `json:"place_id"`
	DisplayName string      `json:"display_name"`
	Lat         string      `json:"lat"`
	Lon         string      `json:"lon"`
	Type        string      `json:"type"`
	Address     Address     `json:"address"`
}

// Search returns up to five places matching query. A blank query returns no
// results without a request.
func (g *Geocoder) Search(ctx context.Context, query string) ([]Place, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("q", query)
	q.Set("limit", strconv.Itoa(searchLimit))
	q.Set("addressdetails", "1")

	var results []nominatimResult
	if err := g.get(ctx, "/search", q, &results); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSearchFailed, err)
	}

	places := make([]Place, 0, len(results))
	for _, r := range results {
		typ := r.Type
		if typ == "" {
			typ = "location"
		}
		places = append(places, Place{
			ID:        r.PlaceID.String(),
			Name:      r.DisplayName,
			ShortName: ShortName(r.Address, r.DisplayName),
			Lat:       parseCoord(r.Lat),
			Lon:       parseCoord(r.Lon),
			Type:      typ,
		})
	}
	return places, nil
}

// Reverse names the place at lat/lon and marks it as the current location.
func (g *Geocoder) Reverse(ctx context.Context, lat, lon float64) (*Place, error) {
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return nil, fmt.Errorf("%w: coordinates out of range", ErrReverseFailed)
	}

	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("addressdetails", "1")

	var r nominatimResult
	if err := g.get(ctx, "/reverse", q, &r); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrReverseFailed, err)
	}

	name := ShortName(r.Address, r.DisplayName)
	return &Place{
		ID:        fmt.Sprintf("current_%d", g.now().UnixMilli()),
		Name:      name,
		ShortName: name,
		Lat:       lat,
		Lon:       lon,
		Type:      "current",
		IsCurrent: true,
	}, nil
}

func (g *Geocoder) get(ctx context.Context, path string, q url.Values, out any) error {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path+"?"+q.Encode(), nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		g.logger.Debug(ctx, "geocoder error response", zap.String("path", path), zap.Int("status", resp.StatusCode))
		return fmt.Errorf("geocoder returned %s", resp.Status)
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(out); err != nil {
		return fmt.Errorf("decoding geocoder response: %w", err)
	}
	return nil
}

func parseCoord(s string) float64 {
	f, _ := strconv.ParseFloat(s, 64)
	return f
}
