package geo

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
)

// DefaultNominatimURL is the public OpenStreetMap instance.
const DefaultNominatimURL = "https://nominatim.openstreetmap.org"

const userAgent = "disasterboard/1.0"

// NominatimClient implements [Geocoder] with the Nominatim reverse API.
type NominatimClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewNominatimClient creates a reverse geocoding client. An empty baseURL
// selects [DefaultNominatimURL].
func NewNominatimClient(baseURL string, timeout time.Duration, logger *slog.Logger) *NominatimClient {
	if baseURL == "" {
		baseURL = DefaultNominatimURL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &NominatimClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

// Reverse returns the display name for the coordinates.
func (c *NominatimClient) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	params := url.Values{
		"format": {"jsonv2"},
		"lat":    {strconv.FormatFloat(lat, 'f', -1, 64)},
		"lon":    {strconv.FormatFloat(lng, 'f', -1, 64)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/reverse?"+params.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("reverse geocode request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("nominatim error: status %d: %s", resp.StatusCode, body)
	}

	var r reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if r.Error != "" {
		return "", fmt.Errorf("nominatim error: %s", r.Error)
	}
	if r.DisplayName == "" {
		return "", errors.New("nominatim returned no display_name")
	}

	c.logger.Debug("reverse geocoded", "lat", lat, "lng", lng, "address", r.DisplayName)
	return r.DisplayName, nil
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}
