// Package mockapi serves a stand-in for the disaster REST API: the /api
// envelope over sample GDACS and ReliefWeb events, weather and system
// status. It backs the example, the standalone mock binary and tests.
package mockapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/rand"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jpalmerr/disasterboard/internal/api"
)

// Backend is a controllable mock of the disaster API. Its handler serves
// the routes under /api.
type Backend struct {
	mu       sync.Mutex
	healthy  bool
	failing  map[string]bool
	requests map[string]int
	gdacs    []api.DisasterEvent
	relief   []api.DisasterEvent
	logger   *slog.Logger
}

// New returns a healthy backend with the sample events loaded.
func New(logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		healthy:  true,
		failing:  map[string]bool{},
		requests: map[string]int{},
		gdacs:    sampleGDACS(),
		relief:   sampleReliefWeb(),
		logger:   logger,
	}
}

// SetHealthy switches the /api/health answer between 200 and 503.
func (b *Backend) SetHealthy(healthy bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.healthy = healthy
}

// Fail makes the endpoint at path (e.g. api.PathDisasters) answer with a
// 500 failure envelope until called again with fail false.
func (b *Backend) Fail(path string, fail bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failing[path] = fail
}

// Requests returns how many requests path has received.
func (b *Backend) Requests(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.requests[path]
}

// Flap toggles health at random intervals between minGap and maxGap until
// ctx is done, so a dashboard shows outages and recoveries.
func (b *Backend) Flap(ctx context.Context, minGap, maxGap time.Duration) {
	for {
		gap := minGap
		if maxGap > minGap {
			gap += time.Duration(rand.Int63n(int64(maxGap - minGap)))
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(gap):
		}

		b.mu.Lock()
		b.healthy = !b.healthy
		healthy := b.healthy
		b.mu.Unlock()
		b.logger.Info("mock backend health change", "healthy", healthy)
	}
}

// Handler returns the /api routes.
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api"+api.PathHealth, b.handleHealth)
	mux.HandleFunc("GET /api"+api.PathDisasters, b.serve(api.PathDisasters, func(*http.Request) (any, int) {
		all := b.allEvents()
		return all, len(all)
	}))
	mux.HandleFunc("GET /api"+api.PathGDACS, b.serve(api.PathGDACS, func(*http.Request) (any, int) {
		return b.gdacs, len(b.gdacs)
	}))
	mux.HandleFunc("GET /api"+api.PathReliefWeb, b.serve(api.PathReliefWeb, func(*http.Request) (any, int) {
		return b.relief, len(b.relief)
	}))
	mux.HandleFunc("GET /api"+api.PathWeather, b.serve(api.PathWeather, func(r *http.Request) (any, int) {
		return weatherAt(r), 1
	}))
	mux.HandleFunc("GET /api"+api.PathStatus, b.serve(api.PathStatus, func(*http.Request) (any, int) {
		now := time.Now().UTC().Format("2006-01-02T15:04:05.999999")
		return map[string]any{
			"gdacs_alert_count":        len(b.gdacs),
			"reliefweb_disaster_count": len(b.relief),
			"total_disasters":          len(b.gdacs) + len(b.relief),
			"weather_available":        true,
			"last_updated":             now,
			"last_weather_updated":     now,
		}, 1
	}))
	return mux
}

func (b *Backend) handleHealth(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.requests[api.PathHealth]++
	healthy := b.healthy
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "unhealthy"})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// serve wraps a data producer in the API envelope.
func (b *Backend) serve(path string, produce func(*http.Request) (any, int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.requests[path]++
		failing := b.failing[path] || !b.healthy
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if failing {
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "upstream feed unavailable"})
			return
		}

		data, count := produce(r)
		resp := map[string]any{
			"success":      true,
			"data":         data,
			"count":        count,
			"last_updated": time.Now().UTC().Format(time.RFC3339),
		}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			b.logger.Error("failed to write response", "path", path, "error", err)
		}
	}
}

func (b *Backend) allEvents() []api.DisasterEvent {
	all := make([]api.DisasterEvent, 0, len(b.gdacs)+len(b.relief))
	all = append(all, b.gdacs...)
	return append(all, b.relief...)
}

// weatherAt derives stable sample weather from the requested coordinates.
func weatherAt(r *http.Request) api.Weather {
	lat, _ := strconv.ParseFloat(r.URL.Query().Get("lat"), 64)
	pressure := 1008.0
	visibility := 8.5
	conditions := "Partly Cloudy"
	if lat > 23 {
		conditions = "Haze"
	}
	return api.Weather{
		Temperature: 31 - lat/10,
		Humidity:    74,
		WindSpeed:   14.5,
		Conditions:  conditions,
		Pressure:    &pressure,
		Visibility:  &visibility,
	}
}

func sampleGDACS() []api.DisasterEvent {
	now := time.Now().UTC()
	return []api.DisasterEvent{
		{
			ID:          "gdacs-1001",
			Type:        "cyclone",
			Severity:    "high",
			Title:       "Tropical Cyclone BIPARJOY",
			Description: "Severe cyclonic storm over the Arabian Sea moving towards the Gujarat coast.",
			Location:    "Gujarat, India",
			Coordinates: &api.Coordinates{Lat: 22.3, Lng: 68.9},
			Timestamp:   now.Add(-3 * time.Hour).Format(time.RFC3339),
			Source:      "GDACS",
			URL:         "https://www.gdacs.org/report.aspx?eventid=1001",
		},
		{
			ID:          "gdacs-1002",
			Type:        "flood",
			Severity:    "medium",
			Title:       "Flood alert in Assam",
			Description: "Brahmaputra above danger mark in several districts.",
			Location:    "Assam, India",
			Coordinates: &api.Coordinates{Lat: 26.2, Lng: 92.9},
			Timestamp:   now.Add(-7 * time.Hour).Format(time.RFC3339),
			Source:      "GDACS",
		},
		{
			ID:          "gdacs-1003",
			Type:        "earthquake",
			Severity:    "low",
			Title:       "M 4.6 earthquake near Uttarkashi",
			Description: "Shallow earthquake, no damage reported.",
			Location:    "Uttarakhand, India",
			Coordinates: &api.Coordinates{Lat: 30.7, Lng: 78.4},
			Timestamp:   now.Add(-20 * time.Hour).Format(time.RFC3339),
			Source:      "GDACS",
		},
	}
}

func sampleReliefWeb() []api.DisasterEvent {
	now := time.Now().UTC()
	return []api.DisasterEvent{
		{
			ID:          "reliefweb-5001",
			Type:        "flood",
			Severity:    "high",
			Title:       "India: Monsoon Floods - Jul 2025",
			Description: "Heavy monsoon rainfall has caused flooding and landslides across several states.",
			Location:    "India",
			Timestamp:   now.Add(-26 * time.Hour).Format(time.RFC3339),
			Source:      "ReliefWeb",
			URL:         "https://reliefweb.int/disaster/fl-2025-000001-ind",
		},
		{
			ID:          "reliefweb-5002",
			Type:        "heatwave",
			Severity:    "medium",
			Title:       "India: Heat Wave - May 2025",
			Description: "Temperatures above 45°C recorded in northern and central India.",
			Location:    "Delhi, India",
			Coordinates: &api.Coordinates{Lat: 28.6, Lng: 77.2},
			Timestamp:   now.Add(-50 * time.Hour).Format(time.RFC3339),
			Source:      "ReliefWeb",
		},
	}
}
