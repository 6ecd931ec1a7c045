package geo

// Code classifies a geolocation failure.
type Code int

const (
	PermissionDenied Code = iota + 1
	PositionUnavailable
	Timeout
	Unsupported
	AddressLookup
)

var codeMessages = map[Code]string{
	PermissionDenied:    "Location access denied. Please enable it in your browser settings.",
	PositionUnavailable: "Location information unavailable. Please try again later.",
	Timeout:             "Location request timed out. Please try again.",
	Unsupported:         "Geolocation is not supported by your browser.",
	AddressLookup:       "Failed to fetch address. Please try again.",
}

// Message returns the user-facing text for the code.
func (c Code) Message() string {
	if m, ok := codeMessages[c]; ok {
		return m
	}
	return "Failed to get location. Please try again."
}

func (c Code) String() string {
	switch c {
	case PermissionDenied:
		return "permission_denied"
	case PositionUnavailable:
		return "position_unavailable"
	case Timeout:
		return "timeout"
	case Unsupported:
		return "unsupported"
	case AddressLookup:
		return "address_lookup"
	default:
		return "unknown"
	}
}

// GeolocationError is returned by [Resolve].
type GeolocationError struct {
	Code Code
	Err  error
}

// Error returns the user-facing message; the cause is available via Unwrap.
func (e *GeolocationError) Error() string {
	return e.Code.Message()
}

func (e *GeolocationError) Unwrap() error { return e.Err }

// Is reports whether target is a GeolocationError with the same code.
func (e *GeolocationError) Is(target error) bool {
	t, ok := target.(*GeolocationError)
	return ok && t.Code == e.Code
}
