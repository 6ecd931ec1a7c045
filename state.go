package disasterboard

import (
	"time"

	"github.com/jpalmerr/disasterboard/internal/geo"
	"github.com/jpalmerr/disasterboard/internal/poller"
)

// Phase is the position of a view in its fetch cycle.
//
// Phase is a string type so it serializes and logs readably. It holds one
// of [PhaseIdle], [PhaseLoading], [PhaseSuccess] or [PhaseFailed].
type Phase string

const (
	// PhaseIdle is the state of a view that has not fetched yet.
	PhaseIdle Phase = "idle"

	// PhaseLoading indicates a fetch cycle is in flight.
	PhaseLoading Phase = "loading"

	// PhaseSuccess indicates the last cycle completed.
	PhaseSuccess Phase = "success"

	// PhaseFailed indicates the last cycle failed. Items are empty and the
	// view reports itself disconnected.
	PhaseFailed Phase = "failed"
)

// String returns the string representation of the phase.
func (p Phase) String() string {
	return string(p)
}

// Location is a selected position with its human-readable address.
type Location = geo.Position

// GeolocationError reports why the device location could not be
// resolved. Its message is meant to be shown to the user.
type GeolocationError = geo.GeolocationError

// ViewState is the observable state of one view after a transition.
//
// ViewState is a copy; callers may keep and modify it freely.
type ViewState struct {
	// View is the view name.
	View string

	// Phase is the view's position in its fetch cycle.
	Phase Phase

	// Items holds the records of the last successful cycle: disaster
	// events, the weather snapshot, the system status, news articles or
	// social posts depending on the view. Empty after a failure.
	Items []any

	// IsLoading is true while a cycle is in flight.
	IsLoading bool

	// IsConnected is false once a cycle failed, until one succeeds again.
	IsConnected bool

	// LastUpdated is the completion time of the last successful cycle.
	// nil until the first success.
	LastUpdated *time.Time

	// RetryCount is the number of retries made since the last success or
	// natural tick.
	RetryCount int

	// LastError describes the most recent failure; empty after a success.
	LastError string

	// Interval is the view's regular polling interval.
	Interval time.Duration

	// UpdatedAt is when the transition happened.
	UpdatedAt time.Time
}

// toViewState converts a poller snapshot to the public type, copying
// mutable fields.
func toViewState(snap poller.Snapshot, interval time.Duration) ViewState {
	items := make([]any, len(snap.State.Items))
	for i, it := range snap.State.Items {
		items[i] = it
	}

	var lastUpdated *time.Time
	if snap.State.LastUpdated != nil {
		t := *snap.State.LastUpdated
		lastUpdated = &t
	}

	return ViewState{
		View:        snap.View,
		Phase:       Phase(snap.State.Phase),
		Items:       items,
		IsLoading:   snap.State.IsLoading,
		IsConnected: snap.State.IsConnected,
		LastUpdated: lastUpdated,
		RetryCount:  snap.State.RetryCount,
		LastError:   snap.State.LastError,
		Interval:    interval,
		UpdatedAt:   snap.At,
	}
}
