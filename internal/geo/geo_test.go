package geo

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jpalmerr/disasterboard/internal/observability"
)

type stubGeocoder struct {
	calls atomic.Int32
	addr  string
	err   error
}

func (s *stubGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	s.calls.Add(1)
	return s.addr, s.err
}

type failingLocator struct{ err error }

func (f failingLocator) Locate(context.Context) (float64, float64, error) { return 0, 0, f.err }

// blockingLocator waits for the context to expire.
type blockingLocator struct{}

func (blockingLocator) Locate(ctx context.Context) (float64, float64, error) {
	<-ctx.Done()
	return 0, 0, ctx.Err()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestResolve_Success(t *testing.T) {
	g := &stubGeocoder{addr: "Mumbai, Maharashtra, India"}

	pos, err := Resolve(context.Background(), StaticLocator{Lat: 19.076, Lng: 72.8777}, g)
	require.NoError(t, err)

	assert.Equal(t, Position{Latitude: 19.076, Longitude: 72.8777, Address: "Mumbai, Maharashtra, India"}, pos)
}

func TestResolve_WithoutGeocoder(t *testing.T) {
	pos, err := Resolve(context.Background(), StaticLocator{Lat: 1, Lng: 2}, nil)
	require.NoError(t, err)
	assert.Empty(t, pos.Address)
}

func TestResolve_Errors(t *testing.T) {
	tests := []struct {
		name     string
		locator  Locator
		geocoder Geocoder
		want     Code
	}{
		{"unsupported", nil, nil, Unsupported},
		{"denied", DeniedLocator{}, nil, PermissionDenied},
		{"unavailable", failingLocator{err: errors.New("no fix")}, nil, PositionUnavailable},
		{"out of range", StaticLocator{Lat: 95}, nil, PositionUnavailable},
		{"timeout wrapped", failingLocator{err: context.DeadlineExceeded}, nil, Timeout},
		{"address lookup", StaticLocator{Lat: 1, Lng: 1}, &stubGeocoder{err: errors.New("503")}, AddressLookup},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(context.Background(), tt.locator, tt.geocoder)
			require.Error(t, err)

			var gerr *GeolocationError
			require.ErrorAs(t, err, &gerr)
			assert.Equal(t, tt.want, gerr.Code)
			assert.ErrorIs(t, err, &GeolocationError{Code: tt.want})
			assert.Equal(t, tt.want.Message(), err.Error())
		})
	}
}

func TestResolve_TimeoutFromContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Resolve(ctx, blockingLocator{}, nil)

	var gerr *GeolocationError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, Timeout, gerr.Code)
}

func TestCode_DistinctMessages(t *testing.T) {
	seen := map[string]Code{}
	for _, c := range []Code{PermissionDenied, PositionUnavailable, Timeout, Unsupported, AddressLookup} {
		msg := c.Message()
		prev, dup := seen[msg]
		assert.False(t, dup, "%v and %v share message %q", c, prev, msg)
		seen[msg] = c
	}
	assert.Equal(t, "Failed to get location. Please try again.", Code(0).Message())
}

func TestNominatim_Reverse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/reverse", r.URL.Path)
		assert.Equal(t, "jsonv2", r.URL.Query().Get("format"))
		assert.Equal(t, "19.076", r.URL.Query().Get("lat"))
		assert.Equal(t, "72.8777", r.URL.Query().Get("lon"))
		assert.NotEmpty(t, r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"place_id":1,"display_name":"Mumbai, Maharashtra, India"}`)
	}))
	defer srv.Close()

	c := NewNominatimClient(srv.URL, 2*time.Second, discardLogger())
	addr, err := c.Reverse(context.Background(), 19.076, 72.8777)

	require.NoError(t, err)
	assert.Equal(t, "Mumbai, Maharashtra, India", addr)
}

func TestNominatim_Failures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{"server error", http.StatusInternalServerError, "boom"},
		{"api error", http.StatusOK, `{"error":"Unable to geocode"}`},
		{"empty name", http.StatusOK, `{}`},
		{"bad json", http.StatusOK, `{`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = io.WriteString(w, tt.body)
			}))
			defer srv.Close()

			c := NewNominatimClient(srv.URL, 2*time.Second, discardLogger())
			_, err := c.Reverse(context.Background(), 0, 0)
			assert.Error(t, err)
		})
	}
}

func TestCachedGeocoder_HitsAndMisses(t *testing.T) {
	inner := &stubGeocoder{addr: "Pune, Maharashtra, India"}
	m := observability.NewMetricsForTesting()

	c, err := NewCachedGeocoder(inner, 8, m)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		addr, err := c.Reverse(context.Background(), 18.5204, 73.8567)
		require.NoError(t, err)
		assert.Equal(t, "Pune, Maharashtra, India", addr)
	}

	assert.Equal(t, int32(1), inner.calls.Load())
	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GeocodeCache.WithLabelValues("miss")))
}

func TestCachedGeocoder_ErrorsNotCached(t *testing.T) {
	inner := &stubGeocoder{err: errors.New("rate limited")}
	c, err := NewCachedGeocoder(inner, 0, nil)
	require.NoError(t, err)

	_, err = c.Reverse(context.Background(), 1, 1)
	require.Error(t, err)
	_, err = c.Reverse(context.Background(), 1, 1)
	require.Error(t, err)

	assert.Equal(t, int32(2), inner.calls.Load())
	assert.Zero(t, c.Len())
}

func TestCachedGeocoder_Evicts(t *testing.T) {
	inner := &stubGeocoder{addr: "x"}
	c, err := NewCachedGeocoder(inner, 2, nil)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err := c.Reverse(context.Background(), float64(i), 0)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, c.Len())
}
