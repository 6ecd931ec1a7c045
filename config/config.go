// Package config provides YAML configuration parsing for disasterboard.
//
// This package enables running the dashboard as a standalone binary with a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	api_url: ${DISASTER_API_URL:-http://localhost:5000/api}
//	port: 8080
//	request_timeout: 10s
//
//	location:
//	  address: Mumbai, Maharashtra
//
//	views:
//	  - name: alerts
//	    interval: 2m
//	    max_retries: 3
//	  - name: social
//	    disabled: true
//
//	kafka:
//	  brokers: [localhost:9092]
//	  topic: disaster-alerts
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/disasterboard"
)

// minInterval is the shortest polling interval a config file may request.
// This keeps a typo from hammering the backend.
const minInterval = 5 * time.Second

// Config is the root configuration structure for the dashboard.
//
// It maps directly to the YAML configuration file structure.
// Use [Load] or [Parse] to create a Config from YAML.
type Config struct {
	// APIURL is the base URL of the disaster REST API, including the /api
	// prefix. Supports environment variable substitution.
	APIURL string `yaml:"api_url"`

	// Title is the dashboard title. Defaults to "Disaster Dashboard" if not set.
	Title string `yaml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port"`

	// RequestTimeout bounds each API request. Defaults to the client's 10s.
	RequestTimeout Duration `yaml:"request_timeout"`

	// Location is the initial location. Without it the location-dependent
	// views wait for one to be selected in the dashboard.
	Location *LocationConfig `yaml:"location"`

	// Views overrides the built-in views by name.
	Views []ViewConfig `yaml:"views"`

	// Retry configures the delay between retries.
	Retry RetryConfig `yaml:"retry"`

	// Geocoder enables reverse geocoding of device coordinates.
	Geocoder *GeocoderConfig `yaml:"geocoder"`

	// Kafka enables forwarding of new alerts to a Kafka topic.
	Kafka *KafkaConfig `yaml:"kafka"`
}

// LocationConfig names a location by address, coordinates, or both.
//
// An address without coordinates is looked up in the built-in city catalog.
type LocationConfig struct {
	Address   string   `yaml:"address"`
	Latitude  *float64 `yaml:"lat"`
	Longitude *float64 `yaml:"lng"`
}

// ViewConfig overrides the settings of one built-in view.
type ViewConfig struct {
	// Name is one of the built-in view names (alerts, status, map, news, social).
	Name string `yaml:"name"`

	// Interval replaces the view's polling interval. "0s" disables
	// periodic polling.
	Interval *Duration `yaml:"interval"`

	// MaxRetries replaces the view's retry budget.
	MaxRetries *int `yaml:"max_retries"`

	// Disabled removes the view from the dashboard.
	Disabled bool `yaml:"disabled"`
}

// RetryConfig configures the linear retry schedule.
type RetryConfig struct {
	// BaseDelay is the delay before the first retry; the nth retry waits
	// n times as long. Defaults to 5s.
	BaseDelay Duration `yaml:"base_delay"`
}

// GeocoderConfig configures the Nominatim reverse geocoder.
type GeocoderConfig struct {
	// URL is the Nominatim base URL. Defaults to the public instance.
	URL string `yaml:"url"`

	// CacheSize is the number of cached addresses. Defaults to 256.
	CacheSize int `yaml:"cache_size"`
}

// KafkaConfig configures the alert sink.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// Duration wraps time.Duration for YAML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}

	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} patterns.
// Group 1: variable name
// Group 2: the ":-default" part (if present, indicates a default was specified)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a YAML configuration file.
//
// Environment variables in the file are expanded before parsing.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses YAML configuration data.
//
// Environment variables are expanded in the API URL, the location address,
// the geocoder URL, the Kafka brokers and the Kafka topic.
// Defaults are applied for Port (8080) and Retry.BaseDelay (5s).
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = Duration(5 * time.Second)
	}
	if cfg.Geocoder != nil && cfg.Geocoder.CacheSize == 0 {
		cfg.Geocoder.CacheSize = 256
	}

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.APIURL != "" {
		expanded, err := expandEnvVars(c.APIURL)
		if err != nil {
			return fmt.Errorf("api_url: %w", err)
		}
		c.APIURL = expanded
		if err := validateHTTPURL(c.APIURL); err != nil {
			return fmt.Errorf("api_url: %w", err)
		}
	}

	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if c.RequestTimeout != 0 && c.RequestTimeout.Duration() < time.Second {
		return fmt.Errorf("request_timeout must be at least 1s if specified, got %s", c.RequestTimeout.Duration())
	}

	if c.Retry.BaseDelay.Duration() < 0 {
		return fmt.Errorf("retry.base_delay cannot be negative, got %s", c.Retry.BaseDelay.Duration())
	}

	if err := c.validateLocation(); err != nil {
		return err
	}

	if err := c.validateViews(); err != nil {
		return err
	}

	if c.Geocoder != nil {
		expanded, err := expandEnvVars(c.Geocoder.URL)
		if err != nil {
			return fmt.Errorf("geocoder.url: %w", err)
		}
		c.Geocoder.URL = expanded
		if c.Geocoder.URL != "" {
			if err := validateHTTPURL(c.Geocoder.URL); err != nil {
				return fmt.Errorf("geocoder.url: %w", err)
			}
		}
		if c.Geocoder.CacheSize < 0 {
			return fmt.Errorf("geocoder.cache_size cannot be negative, got %d", c.Geocoder.CacheSize)
		}
	}

	if c.Kafka != nil {
		if len(c.Kafka.Brokers) == 0 {
			return errors.New("kafka: at least one broker is required")
		}
		for i, b := range c.Kafka.Brokers {
			expanded, err := expandEnvVars(b)
			if err != nil {
				return fmt.Errorf("kafka.brokers[%d]: %w", i, err)
			}
			if strings.TrimSpace(expanded) == "" {
				return fmt.Errorf("kafka.brokers[%d]: broker address is empty", i)
			}
			c.Kafka.Brokers[i] = expanded
		}
		expanded, err := expandEnvVars(c.Kafka.Topic)
		if err != nil {
			return fmt.Errorf("kafka.topic: %w", err)
		}
		c.Kafka.Topic = expanded
		if strings.TrimSpace(c.Kafka.Topic) == "" {
			return errors.New("kafka: topic is required")
		}
	}

	return nil
}

func (c *Config) validateLocation() error {
	loc := c.Location
	if loc == nil {
		return nil
	}

	expanded, err := expandEnvVars(loc.Address)
	if err != nil {
		return fmt.Errorf("location.address: %w", err)
	}
	loc.Address = strings.TrimSpace(expanded)

	if (loc.Latitude == nil) != (loc.Longitude == nil) {
		return errors.New("location: lat and lng must be set together")
	}
	if loc.Latitude == nil && loc.Address == "" {
		return errors.New("location: address or lat/lng is required")
	}
	if loc.Latitude != nil {
		if *loc.Latitude < -90 || *loc.Latitude > 90 {
			return fmt.Errorf("location: lat must be between -90 and 90, got %v", *loc.Latitude)
		}
		if *loc.Longitude < -180 || *loc.Longitude > 180 {
			return fmt.Errorf("location: lng must be between -180 and 180, got %v", *loc.Longitude)
		}
	}
	return nil
}

func (c *Config) validateViews() error {
	known := disasterboard.ViewNames()
	seen := make(map[string]struct{}, len(c.Views))
	disabled := 0

	for i := range c.Views {
		v := &c.Views[i]
		v.Name = strings.ToLower(strings.TrimSpace(v.Name))

		if v.Name == "" {
			return fmt.Errorf("views[%d]: name is required", i)
		}
		if !slices.Contains(known, v.Name) {
			return fmt.Errorf("views[%d]: unknown view %q (known: %s)", i, v.Name, strings.Join(known, ", "))
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("views[%d] (%s): view configured more than once", i, v.Name)
		}
		seen[v.Name] = struct{}{}

		if v.Interval != nil {
			d := v.Interval.Duration()
			if d < 0 {
				return fmt.Errorf("views[%d] (%s): interval cannot be negative, got %s", i, v.Name, d)
			}
			if d != 0 && d < minInterval {
				return fmt.Errorf("views[%d] (%s): interval must be at least %s, got %s", i, v.Name, minInterval, d)
			}
			if d > 24*time.Hour {
				return fmt.Errorf("views[%d] (%s): interval must not exceed 24h, got %s", i, v.Name, d)
			}
		}
		if v.MaxRetries != nil && *v.MaxRetries < 0 {
			return fmt.Errorf("views[%d] (%s): max_retries cannot be negative, got %d", i, v.Name, *v.MaxRetries)
		}
		if v.Disabled {
			disabled++
		}
	}

	if disabled == len(known) {
		return errors.New("at least one view must be enabled")
	}
	return nil
}

func validateHTTPURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme == "" {
		return errors.New("url must have a scheme (http:// or https://)")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("url must have a host")
	}
	return nil
}
