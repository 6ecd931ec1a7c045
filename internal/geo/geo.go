// Package geo resolves the user's position into coordinates plus a
// human-readable address.
package geo

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ResolveTimeout bounds a full [Resolve] call.
const ResolveTimeout = 10 * time.Second

// Position is a resolved location.
type Position struct {
	Latitude  float64 `json:"lat"`
	Longitude float64 `json:"lng"`
	Address   string  `json:"address"`
}

// Locator reports the device's current coordinates.
//
// Implementations should return a [*GeolocationError] when they can classify
// the failure; other errors are treated as [PositionUnavailable].
type Locator interface {
	Locate(ctx context.Context) (lat, lng float64, err error)
}

// Geocoder converts coordinates to an address.
type Geocoder interface {
	Reverse(ctx context.Context, lat, lng float64) (string, error)
}

// StaticLocator always reports the same coordinates. It backs configured
// locations and tests.
type StaticLocator struct {
	Lat, Lng float64
}

// Locate returns the fixed coordinates.
func (s StaticLocator) Locate(context.Context) (float64, float64, error) {
	return s.Lat, s.Lng, nil
}

// DeniedLocator always fails with [PermissionDenied].
type DeniedLocator struct{}

// Locate returns a permission error.
func (DeniedLocator) Locate(context.Context) (float64, float64, error) {
	return 0, 0, &GeolocationError{Code: PermissionDenied}
}

// Resolve locates the device and reverse-geocodes the result within
// [ResolveTimeout]. A nil locator means geolocation is unsupported.
// Every failure is a [*GeolocationError].
func Resolve(ctx context.Context, locator Locator, geocoder Geocoder) (Position, error) {
	if locator == nil {
		return Position{}, &GeolocationError{Code: Unsupported}
	}
	ctx, cancel := context.WithTimeout(ctx, ResolveTimeout)
	defer cancel()

	lat, lng, err := locator.Locate(ctx)
	if err != nil {
		return Position{}, classify(err, PositionUnavailable)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Position{}, &GeolocationError{
			Code: PositionUnavailable,
			Err:  fmt.Errorf("coordinates out of range: %v,%v", lat, lng),
		}
	}

	pos := Position{Latitude: lat, Longitude: lng}
	if geocoder == nil {
		return pos, nil
	}

	addr, err := geocoder.Reverse(ctx, lat, lng)
	if err != nil {
		return Position{}, classify(err, AddressLookup)
	}
	pos.Address = addr
	return pos, nil
}

// classify keeps an existing GeolocationError, maps deadline expiry to
// Timeout and everything else to fallback.
func classify(err error, fallback Code) error {
	var gerr *GeolocationError
	if errors.As(err, &gerr) {
		return gerr
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GeolocationError{Code: Timeout, Err: err}
	}
	return &GeolocationError{Code: fallback, Err: err}
}
