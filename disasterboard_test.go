package disasterboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/jpalmerr/disasterboard/internal/api"
	"github.com/jpalmerr/disasterboard/internal/feed"
	"github.com/jpalmerr/disasterboard/internal/geo"
	"github.com/jpalmerr/disasterboard/internal/mockapi"
	"github.com/jpalmerr/disasterboard/internal/poller"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newBackend starts a mock disaster API and returns its /api base URL.
func newBackend(t *testing.T) (*mockapi.Backend, string) {
	t.Helper()
	b := mockapi.New(testLogger())
	ts := httptest.NewServer(b.Handler())
	t.Cleanup(ts.Close)
	return b, ts.URL + "/api"
}

// stateRecorder is a state callback that forwards states to a channel
// without ever blocking the poller.
func stateRecorder() (func(ViewState), <-chan ViewState) {
	ch := make(chan ViewState, 256)
	return func(s ViewState) {
		select {
		case ch <- s:
		default:
		}
	}, ch
}

func waitForState(t *testing.T, ch <-chan ViewState, what string, match func(ViewState) bool) ViewState {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case s := <-ch:
			if match(s) {
				return s
			}
		case <-timeout:
			t.Fatalf("timeout waiting for %s", what)
			return ViewState{}
		}
	}
}

// runBoard starts b in the background and stops it when the test ends.
func runBoard(t *testing.T, b *Board) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- b.Start(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("Start() returned error: %v", err)
			}
		case <-time.After(5 * time.Second):
			t.Error("Start() did not return after context cancellation")
		}
	})
}

func viewPhase(view string, ph Phase) func(ViewState) bool {
	return func(s ViewState) bool { return s.View == view && s.Phase == ph }
}

func TestBoard_AlertsViewPopulated(t *testing.T) {
	_, url := newBackend(t)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19301),
		WithLogger(testLogger()),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	s := waitForState(t, states, "alerts success", viewPhase(ViewAlerts, PhaseSuccess))
	if len(s.Items) != 5 {
		t.Errorf("len(Items) = %d, want 5", len(s.Items))
	}
	if !s.IsConnected || s.RetryCount != 0 || s.LastUpdated == nil {
		t.Errorf("state = %+v, want connected with last_updated", s)
	}
	if _, ok := s.Items[0].(api.DisasterEvent); !ok {
		t.Errorf("Items[0] is %T, want api.DisasterEvent", s.Items[0])
	}

	status := waitForState(t, states, "status success", viewPhase(ViewStatus, PhaseSuccess))
	if status.Interval != 30*time.Second {
		t.Errorf("status Interval = %v, want 30s", status.Interval)
	}

	stored, ok := b.State(ViewAlerts)
	if !ok {
		t.Fatal("State(alerts) ok = false")
	}
	if stored.Phase != PhaseSuccess || len(stored.Items) != 5 {
		t.Errorf("State(alerts) = %v with %d items, want success with 5", stored.Phase, len(stored.Items))
	}
}

func TestBoard_UnhealthyBackendExhaustsRetries(t *testing.T) {
	backend, url := newBackend(t)
	backend.SetHealthy(false)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19302),
		WithLogger(testLogger()),
		WithRetryDelay(10*time.Millisecond),
		WithoutView(ViewStatus),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	s := waitForState(t, states, "retries exhausted", func(s ViewState) bool {
		return s.View == ViewAlerts && s.Phase == PhaseFailed && s.RetryCount == 3
	})
	if s.IsConnected {
		t.Error("IsConnected = true, want false")
	}
	if len(s.Items) != 0 {
		t.Errorf("len(Items) = %d, want 0 after failure", len(s.Items))
	}
	if s.LastError != poller.ErrBackendUnavailable.Error() {
		t.Errorf("LastError = %q, want %q", s.LastError, poller.ErrBackendUnavailable.Error())
	}

	// the health gate keeps every data call from reaching the backend
	if got := backend.Requests(api.PathDisasters); got != 0 {
		t.Errorf("disasters requests = %d, want 0", got)
	}
	if got := backend.Requests(api.PathHealth); got != 4 {
		t.Errorf("health probes = %d, want 4 (initial + 3 retries)", got)
	}
}

func TestBoard_RecoversAfterOutage(t *testing.T) {
	backend, url := newBackend(t)
	backend.SetHealthy(false)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19303),
		WithLogger(testLogger()),
		WithRetryDelay(50*time.Millisecond),
		WithoutView(ViewStatus),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	waitForState(t, states, "first failure", viewPhase(ViewAlerts, PhaseFailed))
	backend.SetHealthy(true)

	s := waitForState(t, states, "recovery", viewPhase(ViewAlerts, PhaseSuccess))
	if !s.IsConnected || s.RetryCount != 0 {
		t.Errorf("state = connected %v retry %d, want connected with retry 0", s.IsConnected, s.RetryCount)
	}
	if s.LastError != "" {
		t.Errorf("LastError = %q, want empty", s.LastError)
	}
}

func TestBoard_LocationViewsWaitForLocation(t *testing.T) {
	_, url := newBackend(t)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19304),
		WithLogger(testLogger()),
		WithoutView(ViewNews),
		WithoutView(ViewSocial),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	waitForState(t, states, "alerts success", viewPhase(ViewAlerts, PhaseSuccess))

	if s, _ := b.State(ViewMap); s.Phase != PhaseIdle {
		t.Errorf("map phase = %v before a location is selected, want idle", s.Phase)
	}
	if err := b.Refresh(ViewMap); !errors.Is(err, ErrViewInactive) {
		t.Errorf("Refresh(map) error = %v, want ErrViewInactive", err)
	}

	b.SetLocation(Location{Latitude: 19.076, Longitude: 72.8777, Address: "Mumbai, Maharashtra"})

	s := waitForState(t, states, "map success", viewPhase(ViewMap, PhaseSuccess))
	if len(s.Items) != 6 {
		t.Fatalf("len(map Items) = %d, want 5 disasters + weather", len(s.Items))
	}
	if _, ok := s.Items[5].(api.Weather); !ok {
		t.Errorf("last map item is %T, want api.Weather", s.Items[5])
	}

	if err := b.Refresh(ViewMap); err != nil {
		t.Errorf("Refresh(map) after mount error = %v", err)
	}
	waitForState(t, states, "map refresh", viewPhase(ViewMap, PhaseSuccess))
}

func TestBoard_MapWithoutWeather(t *testing.T) {
	backend, url := newBackend(t)
	backend.Fail(api.PathWeather, true)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19308),
		WithLogger(testLogger()),
		WithoutView(ViewNews),
		WithoutView(ViewSocial),
		WithLocation(Location{Latitude: 28.6139, Longitude: 77.209, Address: "New Delhi, Delhi"}),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	s := waitForState(t, states, "map settled", func(s ViewState) bool {
		return s.View == ViewMap && (s.Phase == PhaseSuccess || s.Phase == PhaseFailed)
	})
	if s.Phase != PhaseSuccess || !s.IsConnected {
		t.Fatalf("map = %v connected=%v err=%q, want success despite weather outage", s.Phase, s.IsConnected, s.LastError)
	}
	if len(s.Items) != 5 {
		t.Errorf("len(map Items) = %d, want 5 disasters", len(s.Items))
	}
	for _, it := range s.Items {
		if _, ok := it.(api.Weather); ok {
			t.Error("map items contain weather after a failed lookup")
		}
	}
	if got := backend.Requests(api.PathWeather); got == 0 {
		t.Error("weather was never requested")
	}
}

func TestBoard_LocationChangeRefreshesFeeds(t *testing.T) {
	_, url := newBackend(t)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19305),
		WithLogger(testLogger()),
		WithoutView(ViewAlerts),
		WithoutView(ViewStatus),
		WithoutView(ViewMap),
		WithoutView(ViewNews),
		WithLocation(Location{Latitude: 28.7041, Longitude: 77.1025, Address: "Delhi, India"}),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	first := waitForState(t, states, "social success", viewPhase(ViewSocial, PhaseSuccess))
	if !strings.Contains(contentOf(first), "Delhi, India") {
		t.Errorf("first post = %q, want it to mention Delhi", contentOf(first))
	}

	b.SetLocation(Location{Latitude: 13.0827, Longitude: 80.2707, Address: "Chennai, India"})

	next := waitForState(t, states, "social refresh", func(s ViewState) bool {
		return s.View == ViewSocial && s.Phase == PhaseSuccess && strings.Contains(contentOf(s), "Chennai")
	})
	if next.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", next.RetryCount)
	}
}

// contentOf returns the first social post's content.
func contentOf(s ViewState) string {
	if len(s.Items) == 0 {
		return ""
	}
	post, ok := s.Items[0].(feed.SocialPost)
	if !ok {
		return ""
	}
	return post.Content
}

func TestBoard_RefreshUnknownView(t *testing.T) {
	b, err := New(WithoutView(ViewNews), WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := b.Refresh(ViewNews); !errors.Is(err, ErrUnknownView) {
		t.Errorf("Refresh(disabled) error = %v, want ErrUnknownView", err)
	}
	if err := b.Refresh("weather"); !errors.Is(err, ErrUnknownView) {
		t.Errorf("Refresh(unknown) error = %v, want ErrUnknownView", err)
	}
	if err := b.Refresh(ViewAlerts); !errors.Is(err, ErrViewInactive) {
		t.Errorf("Refresh() before Start error = %v, want ErrViewInactive", err)
	}
}

type fakeGeocoder struct {
	address string
	err     error
}

func (g fakeGeocoder) Reverse(context.Context, float64, float64) (string, error) {
	return g.address, g.err
}

func TestBoard_Locate(t *testing.T) {
	b, err := New(
		WithLogger(testLogger()),
		WithLocator(geo.StaticLocator{Lat: 12.9716, Lng: 77.5946}),
		WithGeocoder(fakeGeocoder{address: "Bengaluru, Karnataka, India"}),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	pos, err := b.Locate(context.Background())
	if err != nil {
		t.Fatalf("Locate() error = %v", err)
	}
	if pos.Address != "Bengaluru, Karnataka, India" {
		t.Errorf("Address = %q, want Bengaluru", pos.Address)
	}
	if !b.HasLocation() || b.Location() != pos {
		t.Errorf("Location() = %+v, want %+v", b.Location(), pos)
	}
}

func TestBoard_LocateErrors(t *testing.T) {
	b, err := New(WithLogger(testLogger()))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, err := b.Locate(context.Background()); !errors.Is(err, ErrNoLocator) {
		t.Errorf("Locate() error = %v, want ErrNoLocator", err)
	}

	b, err = New(WithLogger(testLogger()), WithLocator(geo.DeniedLocator{}))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	_, err = b.Locate(context.Background())
	var gerr *GeolocationError
	if !errors.As(err, &gerr) {
		t.Fatalf("Locate() error = %v, want *GeolocationError", err)
	}
	if gerr.Code != geo.PermissionDenied {
		t.Errorf("Code = %v, want permission_denied", gerr.Code)
	}
	if b.HasLocation() {
		t.Error("HasLocation() = true after failed Locate")
	}
}

func TestBoard_StartLocatesDevice(t *testing.T) {
	_, url := newBackend(t)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19306),
		WithLogger(testLogger()),
		WithoutView(ViewNews),
		WithoutView(ViewSocial),
		WithLocator(geo.StaticLocator{Lat: 22.5726, Lng: 88.3639}),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	waitForState(t, states, "map success", viewPhase(ViewMap, PhaseSuccess))
	if got := b.Location(); got.Latitude != 22.5726 {
		t.Errorf("Location() = %+v, want the located position", got)
	}
}

func TestBoard_CallbackPanicRecovered(t *testing.T) {
	_, url := newBackend(t)
	cb, states := stateRecorder()

	b, err := New(
		WithAPIURL(url),
		WithPort(19307),
		WithLogger(testLogger()),
		WithoutView(ViewStatus),
		WithStateCallback(func(ViewState) { panic("callback bug") }),
		WithStateCallback(cb),
	)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	runBoard(t, b)

	// the second callback still sees every transition
	waitForState(t, states, "alerts success", viewPhase(ViewAlerts, PhaseSuccess))
}

func TestToViewState_CopiesMutableFields(t *testing.T) {
	now := time.Now()
	lastUpdated := now
	snap := poller.Snapshot{
		View: ViewAlerts,
		State: poller.FetchState{
			Items:       []poller.Item{api.DisasterEvent{ID: "gdacs-1", Title: "Flood"}},
			Phase:       poller.PhaseSuccess,
			IsConnected: true,
			LastUpdated: &lastUpdated,
		},
		At: now,
	}

	s := toViewState(snap, time.Minute)
	later := now.Add(time.Hour)
	*snap.State.LastUpdated = later
	snap.State.Items[0] = api.DisasterEvent{ID: "other"}

	if !s.LastUpdated.Equal(now) {
		t.Errorf("LastUpdated = %v, mutation of snapshot leaked", s.LastUpdated)
	}
	if s.Items[0].(api.DisasterEvent).ID != "gdacs-1" {
		t.Errorf("Items[0] = %+v, mutation of snapshot leaked", s.Items[0])
	}
	if s.Phase != PhaseSuccess || s.Interval != time.Minute {
		t.Errorf("state = %+v, want success with 1m interval", s)
	}
}

func TestStoreStateRoundTrip(t *testing.T) {
	now := time.Now()
	in := ViewState{
		View:        ViewStatus,
		Phase:       PhaseFailed,
		Items:       []any{},
		LastUpdated: &now,
		RetryCount:  2,
		LastError:   "backend API is not responding",
		Interval:    30 * time.Second,
		UpdatedAt:   now,
	}

	st := toStoreState(in)
	if st.Error == nil || *st.Error != in.LastError {
		t.Errorf("store Error = %v, want %q", st.Error, in.LastError)
	}
	if st.IntervalMs != 30000 {
		t.Errorf("IntervalMs = %d, want 30000", st.IntervalMs)
	}

	out := fromStoreState(st)
	if out.LastError != in.LastError || out.Interval != in.Interval || out.Phase != in.Phase {
		t.Errorf("round trip = %+v, want %+v", out, in)
	}

	if st := toStoreState(ViewState{View: ViewAlerts}); st.Error != nil {
		t.Errorf("store Error = %q for a state without error, want nil", *st.Error)
	}
}
