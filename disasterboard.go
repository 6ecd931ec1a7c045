package disasterboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/jpalmerr/disasterboard/dashboard"
	"github.com/jpalmerr/disasterboard/internal/api"
	"github.com/jpalmerr/disasterboard/internal/feed"
	"github.com/jpalmerr/disasterboard/internal/geo"
	"github.com/jpalmerr/disasterboard/internal/observability"
	"github.com/jpalmerr/disasterboard/internal/poller"
	"github.com/jpalmerr/disasterboard/internal/server"
	"github.com/jpalmerr/disasterboard/internal/sink"
	"github.com/jpalmerr/disasterboard/internal/store"
)

const (
	defaultAPIURL       = "http://localhost:5000/api"
	defaultPort         = 8080
	defaultNominatimURL = geo.DefaultNominatimURL
)

var (
	// ErrUnknownView is returned by [Board.Refresh] for a view that does
	// not exist or is disabled.
	ErrUnknownView = server.ErrUnknownView

	// ErrViewInactive is returned by [Board.Refresh] for a view that is not
	// polling: the board has not started, has stopped, or the view waits
	// for a location to be selected.
	ErrViewInactive = server.ErrViewInactive

	// ErrNoLocator is returned by [Board.Locate] when no [Locator] is
	// configured.
	ErrNoLocator = errors.New("no locator configured")
)

// Locator reports the device's current coordinates. Implementations
// should return a [*GeolocationError] when they can classify the failure.
type Locator = geo.Locator

// Geocoder converts coordinates to a human-readable address.
type Geocoder = geo.Geocoder

// Board is the main orchestrator for view polling and dashboard serving.
//
// Board runs one poller per enabled view against the disaster API, keeps
// each view's latest state, and serves it via HTTP as a dashboard page,
// JSON, Server-Sent Events and Prometheus metrics. It is created using
// [New] with functional options and started with [Board.Start].
//
// The typical lifecycle is:
//
//	b, err := disasterboard.New(disasterboard.WithAPIURL("http://localhost:5000/api"))
//	if err != nil {
//	    slog.Error("failed to create board", "error", err)
//	    os.Exit(1)
//	}
//
//	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
//	defer cancel()
//
//	b.Start(ctx) // blocks until context cancelled
//
// The caller controls the lifecycle via the context. Cancel the context to
// trigger graceful shutdown.
type Board struct {
	title          string
	port           int
	views          []View
	logger         *slog.Logger
	clock          clockwork.Clock
	client         *api.Client
	registry       *prometheus.Registry
	store          *store.MemoryStore
	pollers        map[string]*poller.Poller
	locator        Locator
	geocoder       Geocoder
	forwarder      *sink.Forwarder
	stateCallbacks []func(ViewState)

	mu          sync.RWMutex
	location    Location
	hasLocation bool
	started     bool
	stopped     bool
	runCtx      context.Context
	mounted     map[string]bool
}

// New creates a new [Board] instance with the given options.
//
// All five views are enabled by default:
//   - alerts: every 60 seconds, health-gated, 3 retries
//   - status: every 30 seconds, health-gated, no retries
//   - map: on location change only
//   - news: every 10 minutes
//   - social: every 5 minutes
//
// Other defaults: API at http://localhost:5000/api, port 8080, 10 second
// request timeout, 5 second base retry delay.
//
// Returns an error if any option is invalid, the API URL is malformed, or
// every view is disabled.
func New(opts ...Option) (*Board, error) {
	cfg := &boardConfig{
		apiURL:         defaultAPIURL,
		requestTimeout: api.DefaultTimeout,
		port:           defaultPort,
		views:          defaultViews(),
		disabled:       map[string]bool{},
		retryDelay:     poller.DefaultRetryDelay,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	views := make([]View, 0, len(cfg.views))
	for _, v := range cfg.views {
		if !cfg.disabled[v.name] {
			views = append(views, v)
		}
	}
	if len(views) == 0 {
		return nil, errors.New("at least one view must be enabled")
	}

	if cfg.port < 1 || cfg.port > 65535 {
		return nil, fmt.Errorf("port must be between 1 and 65535, got %d", cfg.port)
	}

	// default to slog.Default() if no logger provided
	logger := cfg.logger
	if logger == nil {
		logger = slog.Default()
	}
	clock := cfg.clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}

	client, err := api.NewClient(cfg.apiURL,
		api.WithTimeout(cfg.requestTimeout),
		api.WithLogger(logger),
	)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	geocoder := cfg.geocoder
	if geocoder == nil && cfg.nominatimURL != "" {
		size := cfg.geocodeCache
		if size == 0 {
			size = geo.DefaultCacheSize
		}
		nominatim := geo.NewNominatimClient(cfg.nominatimURL, cfg.requestTimeout, logger)
		cached, err := geo.NewCachedGeocoder(nominatim, size, metrics)
		if err != nil {
			return nil, err
		}
		geocoder = cached
	}

	b := &Board{
		title:          cfg.title,
		port:           cfg.port,
		views:          views,
		logger:         logger,
		clock:          clock,
		client:         client,
		registry:       registry,
		store:          store.NewMemoryStore(),
		pollers:        make(map[string]*poller.Poller, len(views)),
		locator:        cfg.locator,
		geocoder:       geocoder,
		stateCallbacks: cfg.stateCallbacks,
		mounted:        make(map[string]bool, len(views)),
	}
	if cfg.location != nil {
		b.location = *cfg.location
		b.hasLocation = true
	}

	if len(cfg.kafkaBrokers) > 0 {
		fwd, err := sink.NewForwarder(sink.NewKafkaWriter(cfg.kafkaBrokers, cfg.kafkaTopic), sink.Config{
			Clock:   clock,
			Logger:  logger,
			Metrics: metrics,
		})
		if err != nil {
			return nil, err
		}
		b.forwarder = fwd
	}

	for _, v := range views {
		pc := poller.Config{
			Name:     v.name,
			Interval: v.interval,
			Source:   b.sourceFor(v.name),
			Retry:    poller.RetryPolicy{MaxRetries: v.maxRetries, BaseDelay: cfg.retryDelay},
			Clock:    clock,
			Logger:   logger,
			Metrics:  metrics,
			Observer: b.observer(v),
		}
		if v.healthGated {
			pc.Health = client
		}
		p, err := poller.New(pc)
		if err != nil {
			return nil, err
		}
		b.pollers[v.name] = p
		b.store.Update(toStoreState(toViewState(poller.Snapshot{
			View:  v.name,
			State: poller.InitialState(),
			At:    clock.Now(),
		}, v.interval)))
	}

	return b, nil
}

func (b *Board) sourceFor(name string) poller.Source {
	switch name {
	case ViewAlerts:
		return alertsSource(b.client)
	case ViewStatus:
		return statusSource(b.client)
	case ViewMap:
		return mapSource(b.client, b.Location, b.logger)
	case ViewNews:
		return newsSource(feed.NewNewsSource(b.clock), b.Location)
	case ViewSocial:
		return socialSource(feed.NewSocialSource(b.clock), b.Location)
	}
	return nil
}

// Start begins polling and serving the dashboard.
//
// Start is a blocking call that runs until the provided context is cancelled.
// During execution:
//
//   - Views that do not depend on the location start polling immediately
//   - If a [Locator] is configured and no location was given, the device is
//     located first
//   - Location-dependent views start once a location is selected
//   - The HTTP server starts on the configured port
//
// Returns nil on graceful shutdown. Returns an error if the HTTP server
// fails to start or the board was already started.
func (b *Board) Start(ctx context.Context) error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return errors.New("board already started")
	}
	b.started = true
	b.mu.Unlock()

	b.logger.Info("disasterboard starting", "api_url", b.client.BaseURL(), "view_count", len(b.views))
	// check if context already cancelled
	if ctx.Err() != nil {
		b.stop()
		return nil
	}

	if b.locator != nil && !b.HasLocation() {
		if _, err := b.Locate(ctx); err != nil {
			b.logger.Warn("device location unavailable", "error", err.Error())
		}
	}

	if b.forwarder != nil {
		b.forwarder.Start(ctx)
	}

	b.mu.Lock()
	b.runCtx = ctx
	for _, v := range b.views {
		if !v.followsLocation || b.hasLocation {
			b.mountLocked(v.name)
		}
	}
	b.mu.Unlock()

	httpServer := server.NewServer(server.Config{
		Store:      b.store,
		Controller: b,
		Port:       b.port,
		Assets:     dashboard.Assets,
		Title:      b.title,
		Gatherer:   b.registry,
		Logger:     b.logger,
	})
	if err := httpServer.Start(ctx); err != nil {
		b.stop()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}
	b.logger.Info("dashboard available", "url", fmt.Sprintf("http://localhost:%d", b.port))

	<-ctx.Done()
	b.stop()
	b.logger.Info("disasterboard stopped")
	return nil
}

// mountLocked starts the poller of view. b.mu must be held.
func (b *Board) mountLocked(view string) {
	if b.mounted[view] {
		return
	}
	b.mounted[view] = true
	b.pollers[view].Start(b.runCtx)
	b.logger.Debug("view mounted", "view", view)
}

// stop halts all pollers and waits for them, then closes the sink.
func (b *Board) stop() {
	b.mu.Lock()
	b.stopped = true
	b.mu.Unlock()

	var wg sync.WaitGroup
	for _, p := range b.pollers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.Stop()
		}()
	}
	wg.Wait()

	if b.forwarder != nil {
		if err := b.forwarder.Close(); err != nil {
			b.logger.Warn("closing alert sink", "error", err.Error())
		}
	}
	b.client.Close()
}

// Refresh requests an immediate fetch cycle of view. A pending retry is
// replaced by the fresh cycle.
//
// Returns [ErrUnknownView] for a view that is not enabled and
// [ErrViewInactive] for one that is not polling.
func (b *Board) Refresh(view string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	p, ok := b.pollers[view]
	if !ok {
		return fmt.Errorf("refresh %q: %w", view, ErrUnknownView)
	}
	if !b.mounted[view] || b.stopped {
		return fmt.Errorf("refresh %q: %w", view, ErrViewInactive)
	}
	p.Refresh()
	return nil
}

// Location returns the selected location, or the zero Location when none
// is selected.
func (b *Board) Location() Location {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.location
}

// HasLocation reports whether a location has been selected.
func (b *Board) HasLocation() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.hasLocation
}

// SetLocation selects loc. On a running board the location-dependent views
// mount on the first selection; on every later one they refresh and their
// interval starts over.
func (b *Board) SetLocation(loc Location) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.location = loc
	b.hasLocation = true
	if b.runCtx == nil || b.stopped {
		return
	}
	for _, v := range b.views {
		if !v.followsLocation {
			continue
		}
		if b.mounted[v.name] {
			b.pollers[v.name].Rearm()
		} else {
			b.mountLocked(v.name)
		}
	}
}

// Locate resolves the device position with the configured [Locator] and
// [Geocoder] and selects it, as [Board.SetLocation] does.
//
// Failures are returned as [*GeolocationError] whose message can be shown
// to the user. Returns [ErrNoLocator] when no locator is configured.
func (b *Board) Locate(ctx context.Context) (Location, error) {
	if b.locator == nil {
		return Location{}, ErrNoLocator
	}
	pos, err := geo.Resolve(ctx, b.locator, b.geocoder)
	if err != nil {
		return Location{}, err
	}
	b.SetLocation(pos)
	b.logger.Info("device located", "address", pos.Address, "lat", pos.Latitude, "lng", pos.Longitude)
	return pos, nil
}

// State returns the latest state of view.
func (b *Board) State(view string) (ViewState, bool) {
	s, ok := b.store.Get(view)
	if !ok {
		return ViewState{}, false
	}
	return fromStoreState(s), true
}

// Views returns a copy of the enabled views in display order.
func (b *Board) Views() []View {
	cp := make([]View, len(b.views))
	copy(cp, b.views)
	return cp
}

// Port returns the configured HTTP port for the dashboard server.
func (b *Board) Port() int {
	return b.port
}

// Gatherer exposes the board's Prometheus registry, for embedding the
// metrics in another server.
func (b *Board) Gatherer() prometheus.Gatherer {
	return b.registry
}

// observer returns the snapshot handler of view: store update first, then
// alert forwarding, then callbacks.
func (b *Board) observer(v View) func(poller.Snapshot) {
	return func(snap poller.Snapshot) {
		state := toViewState(snap, v.interval)
		b.store.Update(toStoreState(state))

		if b.forwarder != nil && v.name == ViewAlerts && state.Phase == PhaseSuccess {
			b.forwarder.Submit(v.name, disasterEvents(snap.State.Items))
		}

		for _, cb := range b.stateCallbacks {
			invokeCallbackSafe(cb, state, b.logger)
		}

		logAttrs := []any{
			"view", state.View,
			"phase", state.Phase.String(),
			"items", len(state.Items),
			"retry_count", state.RetryCount,
		}
		if state.Phase == PhaseFailed {
			b.logger.Debug("view failed", append(logAttrs, "error", state.LastError)...)
		} else {
			b.logger.Debug("view updated", logAttrs...)
		}
	}
}

func disasterEvents(items []poller.Item) []api.DisasterEvent {
	events := make([]api.DisasterEvent, 0, len(items))
	for _, it := range items {
		if e, ok := it.(api.DisasterEvent); ok {
			events = append(events, e)
		}
	}
	return events
}

func toStoreState(s ViewState) store.ViewState {
	var errStr *string
	if s.LastError != "" {
		e := s.LastError
		errStr = &e
	}
	return store.ViewState{
		View:        s.View,
		Phase:       s.Phase.String(),
		Items:       s.Items,
		IsLoading:   s.IsLoading,
		IsConnected: s.IsConnected,
		LastUpdated: s.LastUpdated,
		RetryCount:  s.RetryCount,
		IntervalMs:  s.Interval.Milliseconds(),
		UpdatedAt:   s.UpdatedAt,
		Error:       errStr,
	}
}

func fromStoreState(s store.ViewState) ViewState {
	var lastError string
	if s.Error != nil {
		lastError = *s.Error
	}
	return ViewState{
		View:        s.View,
		Phase:       Phase(s.Phase),
		Items:       append([]any(nil), s.Items...),
		IsLoading:   s.IsLoading,
		IsConnected: s.IsConnected,
		LastUpdated: s.LastUpdated,
		RetryCount:  s.RetryCount,
		LastError:   lastError,
		Interval:    time.Duration(s.IntervalMs) * time.Millisecond,
		UpdatedAt:   s.UpdatedAt,
	}
}

// invokeCallbackSafe calls a state callback with panic recovery.
// Panics are logged but do not propagate.
func invokeCallbackSafe(cb func(ViewState), state ViewState, logger *slog.Logger) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("state callback panicked",
				"panic", r,
				"view", state.View,
			)
		}
	}()
	cb(state)
}
