package store

import "time"

// ViewState is the published state of one dashboard view.
//
// ViewState is the storage representation of a poller's FetchState,
// shaped for JSON (REST API and SSE). It is decoupled from the poller's
// types so the wire format can evolve independently.
type ViewState struct {
	// View is the view name, e.g. "alerts" or "status".
	View string `json:"view"`

	// Phase is one of "idle", "loading", "success", "failed".
	Phase string `json:"phase"`

	// Items holds the view's records; empty after a failure.
	Items []any `json:"items"`

	IsLoading   bool `json:"is_loading"`
	IsConnected bool `json:"is_connected"`

	// LastUpdated is the completion time of the last successful cycle.
	LastUpdated *time.Time `json:"last_updated"`

	RetryCount int `json:"retry_count"`

	// IntervalMs is the regular polling interval; zero for mount-only views.
	IntervalMs int64 `json:"interval_ms"`

	// UpdatedAt is when this state was published.
	UpdatedAt time.Time `json:"updated_at"`

	// Error contains the last cycle's failure, nil after a success.
	Error *string `json:"error"`
}

// Store defines the interface for storing and subscribing to view states.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a new state and notifies all subscribers.
	// States are keyed by View, so subsequent updates replace previous values.
	Update(state ViewState)

	// Get returns the state of one view.
	Get(view string) (ViewState, bool)

	// GetAll returns all stored states sorted by view name.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []ViewState

	// Subscribe returns a channel that receives state updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan ViewState

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan ViewState)
}
