package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

func (c Coordinates) validate() error {
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("latitude %v out of range", c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("longitude %v out of range", c.Lng)
	}
	return nil
}

// DisasterEvent is one alert published by GDACS, ReliefWeb or the combined
// feed.
type DisasterEvent struct {
	ID          string       `json:"id"`
	Type        string       `json:"type"`
	Severity    string       `json:"severity"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
	Location    string       `json:"location"`
	Coordinates *Coordinates `json:"coordinates,omitempty"`
	Timestamp   string       `json:"timestamp"`
	Source      string       `json:"source"`
	URL         string       `json:"url,omitempty"`
}

// Key returns the event ID.
func (e DisasterEvent) Key() string { return e.ID }

// Validate reports whether the event carries the fields the dashboard needs.
func (e DisasterEvent) Validate() error {
	if e.ID == "" {
		return errors.New("missing id")
	}
	if e.Title == "" {
		return fmt.Errorf("event %s: missing title", e.ID)
	}
	if e.Coordinates != nil {
		if err := e.Coordinates.validate(); err != nil {
			return fmt.Errorf("event %s: %w", e.ID, err)
		}
	}
	return nil
}

// Weather is the current conditions at a location.
type Weather struct {
	Temperature float64  `json:"temperature"`
	Humidity    float64  `json:"humidity"`
	WindSpeed   float64  `json:"windSpeed"`
	Conditions  string   `json:"conditions"`
	Pressure    *float64 `json:"pressure,omitempty"`
	Visibility  *float64 `json:"visibility,omitempty"`
}

// Key is constant: a location has one weather reading.
func (w Weather) Key() string { return "weather" }

// Validate requires a conditions summary.
func (w Weather) Validate() error {
	if w.Conditions == "" {
		return errors.New("weather: missing conditions")
	}
	return nil
}

// SystemStatus summarizes what the backend currently holds.
type SystemStatus struct {
	GDACSAlertCount        int        `json:"gdacs_alert_count"`
	ReliefWebDisasterCount int        `json:"reliefweb_disaster_count"`
	TotalDisasters         int        `json:"total_disasters"`
	WeatherAvailable       bool       `json:"weather_available"`
	LastUpdated            *time.Time `json:"last_updated"`
	LastWeatherUpdated     *time.Time `json:"last_weather_updated"`
}

// Key is constant: there is a single status record.
func (s SystemStatus) Key() string { return "status" }

// Validate rejects negative counts.
func (s SystemStatus) Validate() error {
	if s.GDACSAlertCount < 0 || s.ReliefWebDisasterCount < 0 || s.TotalDisasters < 0 {
		return errors.New("status: negative count")
	}
	return nil
}

// envelope is the wrapper every /api endpoint responds with.
type envelope struct {
	Success     bool            `json:"success"`
	Data        json.RawMessage `json:"data"`
	Count       *int            `json:"count,omitempty"`
	LastUpdated *string         `json:"last_updated,omitempty"`
	Error       string          `json:"error,omitempty"`
}

// UnmarshalJSON accepts the backend's naive ISO timestamps (no zone) as UTC.
func (s *SystemStatus) UnmarshalJSON(b []byte) error {
	type alias SystemStatus
	var raw struct {
		alias
		LastUpdated        *string `json:"last_updated"`
		LastWeatherUpdated *string `json:"last_weather_updated"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*s = SystemStatus(raw.alias)

	var err error
	if s.LastUpdated, err = parseTimestamp(raw.LastUpdated); err != nil {
		return fmt.Errorf("last_updated: %w", err)
	}
	if s.LastWeatherUpdated, err = parseTimestamp(raw.LastWeatherUpdated); err != nil {
		return fmt.Errorf("last_weather_updated: %w", err)
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
}

func parseTimestamp(v *string) (*time.Time, error) {
	if v == nil || *v == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, *v); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unrecognized timestamp %q", *v)
}
