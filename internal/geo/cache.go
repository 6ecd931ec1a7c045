package geo

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/jpalmerr/disasterboard/internal/observability"
)

// DefaultCacheSize is the number of addresses kept by [CachedGeocoder].
const DefaultCacheSize = 256

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache keyed by
// coordinates rounded to six decimals. Failures are not cached.
type CachedGeocoder struct {
	inner   Geocoder
	cache   *lru.Cache[string, string]
	metrics *observability.Metrics
}

// NewCachedGeocoder creates a cache decorator around inner. metrics may be
// nil.
func NewCachedGeocoder(inner Geocoder, size int, metrics *observability.Metrics) (*CachedGeocoder, error) {
	if size <= 0 {
		size = DefaultCacheSize
	}
	cache, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("create geocode cache: %w", err)
	}
	return &CachedGeocoder{inner: inner, cache: cache, metrics: metrics}, nil
}

// Reverse returns a cached address or asks the wrapped geocoder.
func (c *CachedGeocoder) Reverse(ctx context.Context, lat, lng float64) (string, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lng)
	if addr, ok := c.cache.Get(key); ok {
		c.metrics.ObserveGeocodeCache(true)
		return addr, nil
	}
	c.metrics.ObserveGeocodeCache(false)

	addr, err := c.inner.Reverse(ctx, lat, lng)
	if err != nil {
		return "", err
	}
	c.cache.Add(key, addr)
	return addr, nil
}

// Len returns the number of cached addresses.
func (c *CachedGeocoder) Len() int {
	return c.cache.Len()
}
