package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/net/http2"
	"golang.org/x/sync/errgroup"
)

const maxResponseBodySize = 1 << 20 // 1MB

// DefaultTimeout bounds every request, including the health probe.
const DefaultTimeout = 10 * time.Second

// connection pooling limits; every view polls the same host
const (
	defaultMaxIdleConns        = 100
	defaultMaxIdleConnsPerHost = 10
	defaultMaxConnsPerHost     = 10
	defaultIdleConnTimeout     = 60 * time.Second
)

// Endpoint paths relative to the base URL.
const (
	PathHealth    = "/health"
	PathDisasters = "/disasters"
	PathGDACS     = "/gdacs"
	PathReliefWeb = "/reliefweb"
	PathWeather   = "/weather"
	PathStatus    = "/status"
)

// Client talks to the disaster REST API rooted at a base URL such as
// http://localhost:5000/api.
//
// Timeouts are applied per request via context. Response bodies are limited
// to 1MB. Client keeps no cache; every call hits the network.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     *slog.Logger
}

// Option configures a [Client].
type Option func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithHTTPClient replaces the pooled HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a [Client] for baseURL.
//
// The default transport pools connections (100 idle total, 10 per host) and
// negotiates HTTP/2 when the server offers it.
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}

	if c.httpClient == nil {
		transport := &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConns:        defaultMaxIdleConns,
			MaxIdleConnsPerHost: defaultMaxIdleConnsPerHost,
			MaxConnsPerHost:     defaultMaxConnsPerHost,
			IdleConnTimeout:     defaultIdleConnTimeout,
		}
		if err := http2.ConfigureTransport(transport); err != nil {
			return nil, fmt.Errorf("configure http2: %w", err)
		}
		c.httpClient = &http.Client{Transport: transport}
	}
	return c, nil
}

// BaseURL returns the API root the client was created with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ProbeHealth reports whether GET /health answers with a 2xx status.
// It never fails: network errors and timeouts yield false.
func (c *Client) ProbeHealth(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, PathHealth, nil)
	if err != nil {
		c.logger.Error("health check failed", "error", err.Error())
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("health check failed", "error", err.Error())
		return false
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBodySize))

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// Disasters fetches the combined feed from /disasters.
func (c *Client) Disasters(ctx context.Context) ([]DisasterEvent, error) {
	return c.events(ctx, PathDisasters)
}

// GDACS fetches alerts from /gdacs.
func (c *Client) GDACS(ctx context.Context) ([]DisasterEvent, error) {
	return c.events(ctx, PathGDACS)
}

// ReliefWeb fetches disasters from /reliefweb.
func (c *Client) ReliefWeb(ctx context.Context) ([]DisasterEvent, error) {
	return c.events(ctx, PathReliefWeb)
}

// AllDisasters fetches /disasters and, if that fails, combines GDACS and
// ReliefWeb fetched concurrently. It fails only when every source fails.
func (c *Client) AllDisasters(ctx context.Context) ([]DisasterEvent, error) {
	events, err := c.Disasters(ctx)
	if err == nil {
		return events, nil
	}
	c.logger.Warn("combined feed failed, falling back to individual sources", "error", err.Error())

	var (
		g                   errgroup.Group
		gdacs, reliefweb    []DisasterEvent
		gdacsErr, reliefErr error
	)
	g.Go(func() error {
		gdacs, gdacsErr = c.GDACS(ctx)
		return nil
	})
	g.Go(func() error {
		reliefweb, reliefErr = c.ReliefWeb(ctx)
		return nil
	})
	_ = g.Wait()

	if gdacsErr != nil && reliefErr != nil {
		return nil, errors.Join(err, gdacsErr, reliefErr)
	}
	if gdacsErr != nil {
		c.logger.Warn("fallback source failed", "endpoint", PathGDACS, "error", gdacsErr.Error())
	}
	if reliefErr != nil {
		c.logger.Warn("fallback source failed", "endpoint", PathReliefWeb, "error", reliefErr.Error())
	}

	combined := make([]DisasterEvent, 0, len(gdacs)+len(reliefweb))
	combined = append(combined, gdacs...)
	combined = append(combined, reliefweb...)
	c.logger.Info("combined disasters from individual sources", "count", len(combined))
	return combined, nil
}

// Weather fetches current conditions. The coordinates are sent only when
// both are given.
func (c *Client) Weather(ctx context.Context, lat, lng *float64) (Weather, error) {
	var query url.Values
	if lat != nil && lng != nil {
		query = url.Values{
			"lat": {strconv.FormatFloat(*lat, 'f', -1, 64)},
			"lng": {strconv.FormatFloat(*lng, 'f', -1, 64)},
		}
	}

	data, err := c.get(ctx, PathWeather, query)
	if err != nil {
		return Weather{}, err
	}
	return decode(PathWeather, data, Weather.Validate)
}

// Status fetches backend counters from /status.
func (c *Client) Status(ctx context.Context) (SystemStatus, error) {
	data, err := c.get(ctx, PathStatus, nil)
	if err != nil {
		return SystemStatus{}, err
	}
	return decode(PathStatus, data, SystemStatus.Validate)
}

func (c *Client) events(ctx context.Context, endpoint string) ([]DisasterEvent, error) {
	data, err := c.get(ctx, endpoint, nil)
	if err != nil {
		return nil, err
	}
	events, err := decode(endpoint, data, validateEvents)
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []DisasterEvent{}
	}
	c.logger.Debug("disasters fetched", "endpoint", endpoint, "count", len(events))
	return events, nil
}

func validateEvents(events []DisasterEvent) error {
	for i := range events {
		if err := events[i].Validate(); err != nil {
			return fmt.Errorf("item %d: %w", i, err)
		}
	}
	return nil
}

// get performs a GET against endpoint and returns the envelope's data
// member.
func (c *Client) get(ctx context.Context, endpoint string, query url.Values) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := c.newRequest(ctx, endpoint, query)
	if err != nil {
		return nil, networkError(endpoint, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(endpoint, err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, networkError(endpoint, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiError(endpoint, resp.StatusCode, "", nil)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, apiError(endpoint, resp.StatusCode, "invalid response body", err)
	}
	if !env.Success {
		msg := env.Error
		if msg == "" {
			msg = defaultAPIMessage
		}
		return nil, apiError(endpoint, resp.StatusCode, msg, nil)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil, apiError(endpoint, resp.StatusCode, "response has no data", nil)
	}
	return env.Data, nil
}

func (c *Client) newRequest(ctx context.Context, endpoint string, query url.Values) (*http.Request, error) {
	target := c.baseURL + endpoint
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// decode unmarshals data into T and runs validate on the result.
func decode[T any](endpoint string, data json.RawMessage, validate func(T) error) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, apiError(endpoint, 0, "invalid data", err)
	}
	if err := validate(v); err != nil {
		var zero T
		return zero, apiError(endpoint, 0, "invalid data", err)
	}
	return v, nil
}

// Close releases idle pooled connections. The client stays usable.
func (c *Client) Close() {
	if c == nil || c.httpClient == nil {
		return
	}
	c.httpClient.CloseIdleConnections()
}
