package location

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyrsmithlabs/connectify/internal/telemetry"
)

const searchBody = `[
  {
    "place_id": 12345,
    "display_name": "Golden Gate Park, San Francisco, California, USA",
    "lat": "37.7694",
    "lon": "-122.4862",
    "type": "park",
    "address": {"tourism": "Golden Gate Park", "city": "San Francisco", "state": "California", "country": "USA"}
  },
  {
    "place_id": 678,
    "display_name": "Nowhere",
    "lat": "1.5",
    "lon": "2.5"
  }
]`

func newTestGeocoder(t *testing.T, h http.HandlerFunc, opts ...GeocoderOption) *Geocoder {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	opts = append([]GeocoderOption{WithRequestRate(0), WithHTTPClient(srv.Client())}, opts...)
	g, err := NewGeocoder(srv.URL, opts...)
	require.NoError(t, err)
	return g
}

func TestGeocoder_Search(t *testing.T) {
	var gotPath, gotUA string
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotUA = r.Header.Get("User-Agent")
		q := r.URL.Query()
		assert.Equal(t, "json", q.Get("format"))
		assert.Equal(t, "golden gate", q.Get("q"))
		assert.Equal(t, "5", q.Get("limit"))
		assert.Equal(t, "1", q.Get("addressdetails"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(searchBody))
	}, WithUserAgent("connectify-test/1.0"))

	places, err := g.Search(context.Background(), "  golden gate ")
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "/search", gotPath)
	assert.Equal(t, "connectify-test/1.0", gotUA)

	assert.Equal(t, "12345", places[0].ID)
	assert.Equal(t, "Golden Gate Park, San Francisco, California", places[0].ShortName)
	assert.Equal(t, "park", places[0].Type)
	assert.InDelta(t, 37.7694, places[0].Lat, 1e-9)
	assert.InDelta(t, -122.4862, places[0].Lon, 1e-9)
	assert.False(t, places[0].IsCurrent)

	assert.Equal(t, "location", places[1].Type)
	assert.Equal(t, "Nowhere", places[1].ShortName)
}

func TestGeocoder_SearchBlankSkipsRequest(t *testing.T) {
	called := false
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	places, err := g.Search(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, places)
	assert.False(t, called)
}

func TestGeocoder_SearchFailure(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	})

	_, err := g.Search(context.Background(), "paris")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSearchFailed)
	assert.True(t, strings.HasPrefix(err.Error(), "Failed to search locations"))
}

func TestGeocoder_Reverse(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "48.8584", r.URL.Query().Get("lat"))
		assert.Equal(t, "2.2945", r.URL.Query().Get("lon"))
		_, _ = w.Write([]byte(`{"place_id": 1, "display_name": "Tour Eiffel, Paris, France",
			"address": {"tourism": "Tour Eiffel", "road": "Avenue Gustave Eiffel", "city": "Paris", "country": "France"}}`))
	})
	g.now = func() time.Time { return time.UnixMilli(1700000000123) }

	p, err := g.Reverse(context.Background(), 48.8584, 2.2945)
	require.NoError(t, err)
	assert.Equal(t, "current_1700000000123", p.ID)
	assert.Equal(t, "Tour Eiffel, Avenue Gustave Eiffel, Paris", p.Name)
	assert.Equal(t, p.Name, p.ShortName)
	assert.Equal(t, "current", p.Type)
	assert.True(t, p.IsCurrent)
	assert.InDelta(t, 48.8584, p.Lat, 1e-9)
}

func TestGeocoder_ReverseFailure(t *testing.T) {
	g := newTestGeocoder(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	})

	_, err := g.Reverse(context.Background(), 10, 10)
	assert.ErrorIs(t, err, ErrReverseFailed)

	_, err = g.Reverse(context.Background(), 91, 0)
	assert.ErrorIs(t, err, ErrReverseFailed)
}

func TestGeocoder_InvalidURL(t *testing.T) {
	_, err := NewGeocoder("nominatim.local")
	assert.Error(t, err)

	g, err := NewGeocoder("")
	require.NoError(t, err)
	assert.Equal(t, DefaultGeocoderURL, g.baseURL)
}

func TestGeocoder_TracesRequests(t *testing.T) {
	tel := telemetry.NewTestTelemetry()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}))
	t.Cleanup(srv.Close)

	g, err := NewGeocoder(srv.URL, WithRequestRate(0), WithTracerProvider(tel.TracerProvider()))
	require.NoError(t, err)

	_, err = g.Search(context.Background(), "anywhere")
	require.NoError(t, err)
	assert.NotEmpty(t, tel.Spans())
}
