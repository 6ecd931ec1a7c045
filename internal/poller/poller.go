package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jpalmerr/disasterboard/internal/observability"
)

// Source performs one data fetch for a view.
//
// Any failure (network error, non-success status, application-level failure
// flag) is returned as an error; the poller converts it into an empty result
// plus the disconnected flag.
type Source interface {
	Fetch(ctx context.Context) ([]Item, error)
}

// SourceFunc adapts a plain function to [Source].
type SourceFunc func(ctx context.Context) ([]Item, error)

// Fetch calls f(ctx).
func (f SourceFunc) Fetch(ctx context.Context) ([]Item, error) {
	return f(ctx)
}

// HealthChecker gates a fetch cycle on backend health.
//
// ProbeHealth never fails; it reports false when the backend cannot be
// reached or answers with a non-success status.
type HealthChecker interface {
	ProbeHealth(ctx context.Context) bool
}

// Snapshot is a copy of a view's state published after every transition.
type Snapshot struct {
	View  string
	State FetchState
	At    time.Time
}

// Config describes one polled view.
type Config struct {
	// Name identifies the view in logs, metrics and snapshots.
	Name string

	// Interval is the time between regular cycles. Zero means the view
	// fetches once on start and afterwards only on [Poller.Refresh].
	Interval time.Duration

	// Source produces the view's items. Required.
	Source Source

	// Health, if set, is probed before every data fetch.
	Health HealthChecker

	// Retry bounds retries after a failed cycle.
	Retry RetryPolicy

	// Clock drives the ticker, retry tasks and timestamps. Defaults to the
	// real clock.
	Clock clockwork.Clock

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Metrics may be nil.
	Metrics *observability.Metrics

	// Observer receives a snapshot after each state transition. It is
	// called from the poller's loop goroutine and must not block for long.
	Observer func(Snapshot)
}

type cycleResult struct {
	items []Item
	err   error
}

// Poller owns the repeating-timer lifecycle of one view.
//
// All state transitions happen on a single loop goroutine, so the retry
// counter and connectivity flag written by one cycle are always what the
// next tick or retry observes. Fetch cycles are serialized: a tick that
// fires while a cycle is in flight is skipped, and a tick or refresh that
// fires while a retry is pending replaces the retry with a fresh cycle.
//
// Start and Stop are safe for concurrent use and idempotent.
type Poller struct {
	name     string
	interval time.Duration
	source   Source
	health   HealthChecker
	retry    RetryPolicy
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
	observer func(Snapshot)

	refresh chan struct{}
	rearm   chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	stateMu sync.RWMutex
	state   FetchState
}

// New creates a [Poller] from cfg. The poller does nothing until
// [Poller.Start] is called.
func New(cfg Config) (*Poller, error) {
	if cfg.Name == "" {
		return nil, errors.New("poller name cannot be empty")
	}
	if cfg.Source == nil {
		return nil, fmt.Errorf("poller %q: source is required", cfg.Name)
	}
	if cfg.Interval < 0 {
		return nil, fmt.Errorf("poller %q: interval cannot be negative", cfg.Name)
	}
	if cfg.Retry.MaxRetries < 0 {
		return nil, fmt.Errorf("poller %q: max retries cannot be negative", cfg.Name)
	}
	if cfg.Retry.MaxRetries > 0 && cfg.Retry.BaseDelay <= 0 {
		return nil, fmt.Errorf("poller %q: retry delay must be positive", cfg.Name)
	}

	clock := cfg.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Poller{
		name:     cfg.Name,
		interval: cfg.Interval,
		source:   cfg.Source,
		health:   cfg.Health,
		retry:    cfg.Retry,
		clock:    clock,
		logger:   logger.With("view", cfg.Name),
		metrics:  cfg.Metrics,
		observer: cfg.Observer,
		refresh:  make(chan struct{}, 1),
		rearm:    make(chan struct{}, 1),
		state:    InitialState(),
	}, nil
}

// Name returns the view name.
func (p *Poller) Name() string {
	return p.name
}

// Interval returns the regular polling interval.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// State returns a copy of the current state.
func (p *Poller) State() FetchState {
	p.stateMu.RLock()
	defer p.stateMu.RUnlock()
	return p.state.clone()
}

// Start triggers one fetch cycle immediately and then arms the repeating
// timer. It is non-blocking.
//
// If ctx is nil, context.Background() is used. Subsequent calls are no-ops,
// as is a call after [Poller.Stop].
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.started = true

	if ctx == nil {
		ctx = context.Background()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.wg.Add(1)
	p.mu.Unlock()

	go p.run(loopCtx)
}

// Stop cancels the timer, any pending retry and the in-flight fetch, then
// waits for the loop to exit. Results that arrive afterwards are discarded.
//
// Stop is idempotent. Calling Stop before Start is a safe no-op.
func (p *Poller) Stop() {
	p.mu.Lock()
	if !p.stopped {
		p.stopped = true
		if p.cancel != nil {
			p.cancel()
		}
	}
	p.mu.Unlock()

	p.wg.Wait()
}

// Refresh requests an immediate cycle. A request made while a cycle is in
// flight runs once that cycle completes; repeated requests coalesce.
func (p *Poller) Refresh() {
	select {
	case p.refresh <- struct{}{}:
	default:
	}
}

// Rearm is [Poller.Refresh] that also restarts the interval, so the next
// regular cycle comes a full interval after this one.
func (p *Poller) Rearm() {
	select {
	case p.rearm <- struct{}{}:
	default:
	}
}

func (p *Poller) run(ctx context.Context) {
	defer p.wg.Done()

	var (
		ticker clockwork.Ticker
		tickC  <-chan time.Time
	)
	if p.interval > 0 {
		ticker = p.clock.NewTicker(p.interval)
		defer ticker.Stop()
		tickC = ticker.Chan()
	}

	results := make(chan cycleResult, 1)
	var pending *Task
	defer func() { pending.Cancel() }()

	p.apply(OnStart)
	inFlight := true
	refreshQueued := false
	p.launch(ctx, results)

	for {
		select {
		case <-ctx.Done():
			return

		case <-tickC:
			if inFlight {
				p.logger.Debug("tick skipped, cycle in flight")
				continue
			}
			if pending.Cancel() {
				p.logger.Debug("tick replaces pending retry")
			}
			pending = nil
			p.apply(OnTick)
			inFlight = true
			p.launch(ctx, results)

		case <-pending.C():
			pending = nil
			if inFlight {
				continue
			}
			p.apply(OnRetry)
			inFlight = true
			p.launch(ctx, results)

		case <-p.rearm:
			if ticker != nil {
				ticker.Reset(p.interval)
			}
			if inFlight {
				refreshQueued = true
				continue
			}
			pending.Cancel()
			pending = nil
			p.apply(OnTick)
			inFlight = true
			p.launch(ctx, results)

		case <-p.refresh:
			if inFlight {
				refreshQueued = true
				continue
			}
			pending.Cancel()
			pending = nil
			p.apply(OnTick)
			inFlight = true
			p.launch(ctx, results)

		case res := <-results:
			if ctx.Err() != nil {
				return
			}
			inFlight = false
			pending = p.complete(res)
			if refreshQueued {
				refreshQueued = false
				pending.Cancel()
				pending = nil
				p.apply(OnTick)
				inFlight = true
				p.launch(ctx, results)
			}
		}
	}
}

// complete applies a cycle's outcome and returns the retry task it
// scheduled, if any.
func (p *Poller) complete(res cycleResult) *Task {
	if res.err == nil {
		now := p.clock.Now()
		p.apply(func(s FetchState) FetchState { return OnSuccess(s, res.items, now) })
		p.metrics.SetConnected(p.name, true)
		p.logger.Debug("fetch succeeded", "items", len(res.items))
		return nil
	}

	p.apply(func(s FetchState) FetchState { return OnFailure(s, res.err) })
	p.metrics.SetConnected(p.name, false)

	retryCount := p.State().RetryCount
	delay, ok := p.retry.Next(retryCount)
	if !ok {
		if p.retry.MaxRetries > 0 {
			p.metrics.RetryExhausted(p.name)
			p.logger.Warn("max retries reached, waiting for next interval",
				"error", res.err.Error(),
				"retry_count", retryCount,
			)
		} else {
			p.logger.Warn("fetch failed", "error", res.err.Error())
		}
		return nil
	}

	p.metrics.RetryScheduled(p.name)
	p.logger.Info("fetch failed, retry scheduled",
		"error", res.err.Error(),
		"retry_count", retryCount,
		"delay", delay.String(),
	)
	return After(p.clock, delay)
}

// launch runs one cycle in the background and posts its result to results
// unless the loop has been cancelled meanwhile.
func (p *Poller) launch(ctx context.Context, results chan<- cycleResult) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		start := p.clock.Now()
		items, err := p.cycle(ctx)
		outcome := "success"
		if err != nil {
			outcome = "failure"
		}
		p.metrics.ObserveFetch(p.name, outcome, p.clock.Since(start))

		select {
		case results <- cycleResult{items: items, err: err}:
		case <-ctx.Done():
		}
	}()
}

// cycle probes health (when configured) and then fetches. A panicking
// source is recovered and reported as a failure with a correlation ID.
func (p *Poller) cycle(ctx context.Context) (items []Item, err error) {
	defer func() {
		if r := recover(); r != nil {
			correlationID := uuid.NewString()
			p.logger.Error("source panic",
				"correlation_id", correlationID,
				"panic", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()),
			)
			items = nil
			err = fmt.Errorf("source panic (correlation_id: %s)", correlationID)
		}
	}()

	if p.health != nil {
		healthy := p.health.ProbeHealth(ctx)
		p.metrics.ObserveHealth(healthy)
		if !healthy {
			return nil, ErrBackendUnavailable
		}
	}
	return p.source.Fetch(ctx)
}

func (p *Poller) apply(transition func(FetchState) FetchState) {
	p.stateMu.Lock()
	p.state = transition(p.state)
	snap := Snapshot{View: p.name, State: p.state.clone(), At: p.clock.Now()}
	p.stateMu.Unlock()

	if p.observer != nil {
		p.observer(snap)
	}
}
