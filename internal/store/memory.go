package store

import (
	"slices"
	"strings"
	"sync"
)

// subscriberBuffer is the per-subscriber channel capacity.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// Subscribers receive updates via buffered channels. Updates are sent
// non-blocking; if a subscriber's buffer is full, the update is dropped for
// that subscriber so one slow SSE client cannot stall the pollers.
type MemoryStore struct {
	mu    sync.RWMutex
	views map[string]ViewState

	subMu       sync.RWMutex
	subscribers map[chan ViewState]struct{}
}

// NewMemoryStore creates a new in-memory [Store].
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		views:       make(map[string]ViewState),
		subscribers: make(map[chan ViewState]struct{}),
	}
}

// Update stores state under its view name and notifies all subscribers.
func (m *MemoryStore) Update(state ViewState) {
	m.mu.Lock()
	m.views[state.View] = state
	m.mu.Unlock()

	m.notifySubscribers(state)
}

// Get returns the stored state of view.
func (m *MemoryStore) Get(view string) (ViewState, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.views[view]
	return s, ok
}

// GetAll returns a snapshot of all stored states, sorted by view name.
func (m *MemoryStore) GetAll() []ViewState {
	m.mu.RLock()
	states := make([]ViewState, 0, len(m.views))
	for _, s := range m.views {
		states = append(states, s)
	}
	m.mu.RUnlock()

	slices.SortFunc(states, func(a, b ViewState) int {
		return strings.Compare(a.View, b.View)
	})
	return states
}

// Subscribe creates a new subscription. Caller must call
// [MemoryStore.Unsubscribe] when done.
func (m *MemoryStore) Subscribe() <-chan ViewState {
	ch := make(chan ViewState, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel. Safe to call
// multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan ViewState) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

func (m *MemoryStore) notifySubscribers(state ViewState) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- state:
		default:
			// slow subscriber, drop
		}
	}
}
