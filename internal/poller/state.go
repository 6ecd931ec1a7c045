package poller

import (
	"errors"
	"time"
)

// ErrBackendUnavailable is the failure recorded when the health probe
// reports the backend as down and the data call is skipped.
var ErrBackendUnavailable = errors.New("backend API is not responding")

// Item is a single record produced by a [Source].
//
// The payload shape is source-specific (disaster event, weather snapshot,
// news article, social post). Key returns the stable identifier used as a
// rendering key.
type Item interface {
	Key() string
}

// Phase is the position of a view in its fetch cycle.
type Phase string

const (
	PhaseIdle    Phase = "idle"
	PhaseLoading Phase = "loading"
	PhaseSuccess Phase = "success"
	PhaseFailed  Phase = "failed"
)

// FetchState is the observable result of the last completed or in-flight
// fetch cycle for one view.
//
// A FetchState is owned by exactly one [Poller] and is only ever replaced by
// the transition functions below, which take the current state and return
// the next one without side effects.
type FetchState struct {
	Items       []Item
	Phase       Phase
	IsLoading   bool
	IsConnected bool
	LastUpdated *time.Time
	RetryCount  int
	LastError   string
}

// InitialState is the state of a view before its first cycle. Views start
// optimistic about connectivity until the first cycle says otherwise.
func InitialState() FetchState {
	return FetchState{
		Items:       []Item{},
		Phase:       PhaseIdle,
		IsConnected: true,
	}
}

// OnStart marks the first cycle after mount as loading.
func OnStart(s FetchState) FetchState {
	s.Phase = PhaseLoading
	s.IsLoading = true
	return s
}

// OnTick starts a fresh cycle from the regular interval. The retry budget
// is restored, so a view that exhausted its retries tries again.
func OnTick(s FetchState) FetchState {
	s.Phase = PhaseLoading
	s.IsLoading = true
	s.RetryCount = 0
	return s
}

// OnRetry starts a cycle scheduled by the retry controller.
func OnRetry(s FetchState) FetchState {
	s.Phase = PhaseLoading
	s.IsLoading = true
	s.RetryCount++
	return s
}

// OnSuccess records a completed fetch. The retry counter always resets,
// whatever failures came before.
func OnSuccess(s FetchState, items []Item, now time.Time) FetchState {
	if items == nil {
		items = []Item{}
	}
	s.Items = items
	s.Phase = PhaseSuccess
	s.IsLoading = false
	s.IsConnected = true
	s.LastUpdated = &now
	s.RetryCount = 0
	s.LastError = ""
	return s
}

// OnFailure records a failed fetch. Failures surface as an empty result
// plus the disconnected flag; LastUpdated keeps the last success time.
func OnFailure(s FetchState, err error) FetchState {
	s.Items = []Item{}
	s.Phase = PhaseFailed
	s.IsLoading = false
	s.IsConnected = false
	if err != nil {
		s.LastError = err.Error()
	}
	return s
}

// clone returns a copy whose slices and pointers are not shared with s.
func (s FetchState) clone() FetchState {
	cp := s
	cp.Items = append([]Item(nil), s.Items...)
	if s.LastUpdated != nil {
		t := *s.LastUpdated
		cp.LastUpdated = &t
	}
	return cp
}
