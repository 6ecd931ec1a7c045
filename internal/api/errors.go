package api

import (
	"errors"
	"fmt"
)

// Sentinels for errors.Is against a [*FetchError].
var (
	// ErrNetwork matches failures where no usable HTTP response arrived.
	ErrNetwork = errors.New("network error")

	// ErrAPI matches non-success statuses, success=false envelopes and
	// malformed payloads.
	ErrAPI = errors.New("api error")
)

// Kind classifies a [FetchError].
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindAPI
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

// defaultAPIMessage is used when a failed envelope carries no error text.
const defaultAPIMessage = "API request failed"

// FetchError describes a failed request to one endpoint.
type FetchError struct {
	Endpoint   string
	Kind       Kind
	StatusCode int    // zero for network errors
	Message    string // envelope error text or a short reason
	Err        error  // underlying cause, may be nil
}

func (e *FetchError) Error() string {
	switch {
	case e.Kind == KindNetwork:
		return fmt.Sprintf("%s: request failed: %v", e.Endpoint, e.Err)
	case e.StatusCode != 0 && e.Message == "":
		return fmt.Sprintf("%s: HTTP error! status: %d", e.Endpoint, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Endpoint, e.Message, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Endpoint, e.Message)
	}
}

func (e *FetchError) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrAPI:
		return e.Kind == KindAPI
	}
	return false
}

func networkError(endpoint string, err error) *FetchError {
	return &FetchError{Endpoint: endpoint, Kind: KindNetwork, Err: err}
}

func apiError(endpoint string, status int, msg string, err error) *FetchError {
	return &FetchError{Endpoint: endpoint, Kind: KindAPI, StatusCode: status, Message: msg, Err: err}
}
