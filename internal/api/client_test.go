package api

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

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

const twoEvents = `{"success":true,"count":2,"data":[
	{"id":"gdacs-1","type":"Red","severity":"High","title":"Cyclone","description":"d","location":"India","coordinates":{"lat":19.07,"lng":72.87},"timestamp":"2025-06-01T10:00:00","source":"GDACS"},
	{"id":"reliefweb-9","type":"Flood","severity":"Medium","title":"Floods","description":"d","location":"Assam","timestamp":"2025-06-01T09:00:00","source":"ReliefWeb","url":"https://reliefweb.int/x"}
]}`

func testClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	c, err := NewClient(baseURL,
		WithTimeout(2*time.Second),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)
	t.Cleanup(c.Close)
	return c
}

// apiServer serves body with status for every path in routes, 404 otherwise.
func apiServer(t *testing.T, routes map[string]func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	for path, h := range routes {
		mux.HandleFunc("/api"+path, h)
	}
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func respond(status int, body string) func(http.ResponseWriter, *http.Request) {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	for _, raw := range []string{"", "localhost:5000", "ftp://host/api", "http://"} {
		_, err := NewClient(raw)
		assert.Error(t, err, "base URL %q", raw)
	}
}

func TestNewClient_RejectsNonPositiveTimeout(t *testing.T) {
	_, err := NewClient("http://localhost:5000/api", WithTimeout(0))
	assert.Error(t, err)
}

func TestProbeHealth(t *testing.T) {
	tests := []struct {
		name   string
		status int
		want   bool
	}{
		{"ok", http.StatusOK, true},
		{"no content", http.StatusNoContent, true},
		{"server error", http.StatusInternalServerError, false},
		{"unavailable", http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
				PathHealth: respond(tt.status, `{"status":"healthy"}`),
			})
			c := testClient(t, srv.URL+"/api")
			assert.Equal(t, tt.want, c.ProbeHealth(context.Background()))
		})
	}
}

func TestProbeHealth_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	c := testClient(t, base)
	assert.False(t, c.ProbeHealth(context.Background()))
}

func TestProbeHealth_Timeout(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathHealth: func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
		},
	})
	c, err := NewClient(srv.URL+"/api", WithTimeout(50*time.Millisecond),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	require.NoError(t, err)

	assert.False(t, c.ProbeHealth(context.Background()))
}

func TestDisasters_Success(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathDisasters: func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodGet, r.Method)
			assert.Equal(t, contentTypeJSON, r.Header.Get(headerContentType))
			_, err := uuid.Parse(r.Header.Get("X-Request-ID"))
			assert.NoError(t, err, "X-Request-ID should be a uuid")
			respond(http.StatusOK, twoEvents)(w, r)
		},
	})
	c := testClient(t, srv.URL+"/api/")

	events, err := c.Disasters(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)

	assert.Equal(t, "gdacs-1", events[0].ID)
	assert.Equal(t, "gdacs-1", events[0].Key())
	require.NotNil(t, events[0].Coordinates)
	assert.InDelta(t, 19.07, events[0].Coordinates.Lat, 1e-9)
	assert.Nil(t, events[1].Coordinates)
	assert.Equal(t, "https://reliefweb.int/x", events[1].URL)
}

func TestDisasters_EmptyList(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathDisasters: respond(http.StatusOK, `{"success":true,"data":[],"count":0}`),
	})
	c := testClient(t, srv.URL+"/api")

	events, err := c.Disasters(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestFetch_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		sentinel error
		contains string
	}{
		{"http status", http.StatusInternalServerError, `{}`, ErrAPI, "HTTP error! status: 500"},
		{"success false with message", http.StatusOK, `{"success":false,"error":"upstream down"}`, ErrAPI, "upstream down"},
		{"success false default message", http.StatusOK, `{"success":false}`, ErrAPI, defaultAPIMessage},
		{"not json", http.StatusOK, `<html>`, ErrAPI, "invalid response body"},
		{"missing data", http.StatusOK, `{"success":true}`, ErrAPI, "no data"},
		{"missing id", http.StatusOK, `{"success":true,"data":[{"title":"x"}]}`, ErrAPI, "missing id"},
		{"missing title", http.StatusOK, `{"success":true,"data":[{"id":"a"}]}`, ErrAPI, "missing title"},
		{"bad coordinates", http.StatusOK, `{"success":true,"data":[{"id":"a","title":"t","coordinates":{"lat":120,"lng":0}}]}`, ErrAPI, "latitude"},
		{"wrong shape", http.StatusOK, `{"success":true,"data":{"id":"a"}}`, ErrAPI, "invalid data"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
				PathGDACS: respond(tt.status, tt.body),
			})
			c := testClient(t, srv.URL+"/api")

			events, err := c.GDACS(context.Background())
			require.Error(t, err)
			assert.Nil(t, events)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.NotErrorIs(t, err, ErrNetwork)
			assert.Contains(t, err.Error(), tt.contains)

			var fe *FetchError
			require.True(t, errors.As(err, &fe))
			assert.Equal(t, PathGDACS, fe.Endpoint)
		})
	}
}

func TestFetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL + "/api"
	srv.Close()

	c := testClient(t, base)
	_, err := c.ReliefWeb(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), "request failed")
}

func TestFetch_BodyLimit(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathDisasters: func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"success":true,"data":[`)
			pad := make([]byte, maxResponseBodySize)
			for i := range pad {
				pad[i] = ' '
			}
			_, _ = w.Write(pad)
			_, _ = io.WriteString(w, `]}`)
		},
	})
	c := testClient(t, srv.URL+"/api")

	_, err := c.Disasters(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAPI, "truncated body must be rejected as malformed")
}

func TestWeather_QueryParameters(t *testing.T) {
	var gotQuery atomic.Value
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathWeather: func(w http.ResponseWriter, r *http.Request) {
			gotQuery.Store(r.URL.RawQuery)
			respond(http.StatusOK, `{"success":true,"data":{"temperature":31.5,"humidity":70,"windSpeed":12,"conditions":"Humid","pressure":1008}}`)(w, r)
		},
	})
	c := testClient(t, srv.URL+"/api")

	lat, lng := 19.076, 72.8777
	w, err := c.Weather(context.Background(), &lat, &lng)
	require.NoError(t, err)
	assert.Equal(t, "lat=19.076&lng=72.8777", gotQuery.Load())
	assert.Equal(t, "Humid", w.Conditions)
	assert.InDelta(t, 31.5, w.Temperature, 1e-9)
	require.NotNil(t, w.Pressure)
	assert.Nil(t, w.Visibility)

	_, err = c.Weather(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "", gotQuery.Load())
}

func TestWeather_MissingConditions(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathWeather: respond(http.StatusOK, `{"success":true,"data":{"temperature":20}}`),
	})
	c := testClient(t, srv.URL+"/api")

	_, err := c.Weather(context.Background(), nil, nil)
	assert.ErrorIs(t, err, ErrAPI)
}

func TestStatus_Success(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathStatus: respond(http.StatusOK, `{"success":true,"status":"operational","data":{
			"gdacs_alert_count":4,"reliefweb_disaster_count":6,"total_disasters":10,
			"weather_available":true,"last_updated":"2025-06-01T10:30:00.123456","last_weather_updated":null}}`),
	})
	c := testClient(t, srv.URL+"/api")

	s, err := c.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, s.GDACSAlertCount)
	assert.Equal(t, 6, s.ReliefWebDisasterCount)
	assert.Equal(t, 10, s.TotalDisasters)
	assert.True(t, s.WeatherAvailable)
	require.NotNil(t, s.LastUpdated)
	assert.Equal(t, time.Date(2025, 6, 1, 10, 30, 0, 123456000, time.UTC), *s.LastUpdated)
	assert.Nil(t, s.LastWeatherUpdated)
}

func TestStatus_BadTimestamp(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathStatus: respond(http.StatusOK, `{"success":true,"data":{"last_updated":"yesterday"}}`),
	})
	c := testClient(t, srv.URL+"/api")

	_, err := c.Status(context.Background())
	assert.ErrorIs(t, err, ErrAPI)
}

func TestAllDisasters_Primary(t *testing.T) {
	var fallbackCalls atomic.Int32
	fallback := func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls.Add(1)
		respond(http.StatusOK, `{"success":true,"data":[]}`)(w, r)
	}
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathDisasters: respond(http.StatusOK, twoEvents),
		PathGDACS:     fallback,
		PathReliefWeb: fallback,
	})
	c := testClient(t, srv.URL+"/api")

	events, err := c.AllDisasters(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Zero(t, fallbackCalls.Load())
}

func TestAllDisasters_Fallback(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathDisasters: respond(http.StatusInternalServerError, `{}`),
		PathGDACS:     respond(http.StatusOK, `{"success":true,"data":[{"id":"gdacs-1","title":"Quake"}]}`),
		PathReliefWeb: respond(http.StatusOK, `{"success":true,"data":[{"id":"reliefweb-1","title":"Flood"},{"id":"reliefweb-2","title":"Storm"}]}`),
	})
	c := testClient(t, srv.URL+"/api")

	events, err := c.AllDisasters(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, "gdacs-1", events[0].ID)
	assert.Equal(t, "reliefweb-1", events[1].ID)
	assert.Equal(t, "reliefweb-2", events[2].ID)
}

func TestAllDisasters_PartialFallback(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathDisasters: respond(http.StatusOK, `{"success":false}`),
		PathGDACS:     respond(http.StatusBadGateway, `{}`),
		PathReliefWeb: respond(http.StatusOK, `{"success":true,"data":[{"id":"reliefweb-1","title":"Flood"}]}`),
	})
	c := testClient(t, srv.URL+"/api")

	events, err := c.AllDisasters(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "reliefweb-1", events[0].ID)
}

func TestAllDisasters_EverythingFails(t *testing.T) {
	srv := apiServer(t, map[string]func(http.ResponseWriter, *http.Request){
		PathDisasters: respond(http.StatusInternalServerError, `{}`),
		PathGDACS:     respond(http.StatusInternalServerError, `{}`),
		PathReliefWeb: respond(http.StatusInternalServerError, `{}`),
	})
	c := testClient(t, srv.URL+"/api")

	events, err := c.AllDisasters(context.Background())
	require.Error(t, err)
	assert.Nil(t, events)
	assert.ErrorIs(t, err, ErrAPI)
	assert.Contains(t, err.Error(), PathReliefWeb)
}

func TestFetchError_Format(t *testing.T) {
	cause := errors.New("connection refused")
	err := networkError(PathStatus, cause)

	assert.Equal(t, "/status: request failed: connection refused", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "network", err.Kind.String())
	assert.Equal(t, "api", KindAPI.String())
}
