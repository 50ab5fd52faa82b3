package rotor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/zoobzio/capitan"
	"github.com/zoobzio/clockz"
	"github.com/zoobzio/pipz"
)

// DefaultDebounce is the default debounce duration for reload processing.
// Editors that save in multiple steps produce bursts of filesystem events;
// a burst within this window triggers at most one reload.
const DefaultDebounce = 100 * time.Millisecond

// Coordinator watches a reminder source for changes, loads and validates the
// payload, and reconciles the result into its Rotor. A bad edit never blanks
// the display: the previous set is retained and the Coordinator degrades
// until a valid payload arrives.
type Coordinator struct {
	watcher        Watcher
	source         *Source
	rotor          *Rotor
	pipeline       pipz.Chainable[*Reload]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	clock          clockz.Clock
	metrics        MetricsProvider
	onStop         func(State)
	onReload       func(*Reload)

	state      atomic.Int32
	current    atomic.Pointer[Set]
	defects    atomic.Pointer[[]Defect]
	lastError  atomic.Pointer[error]
	lastReload atomic.Pointer[time.Time]
	failures   *failureLog

	mu      sync.Mutex
	started bool

	// For sync mode: channel to receive changes
	changes <-chan []byte
}

// NewCoordinator creates a Coordinator that watches a source for reminder
// list changes and drives the rotation state of its Rotor.
//
// The watcher emits raw bytes when the source changes. Bytes are loaded with
// the configured codec, entries are validated individually, and the
// resulting Set is reconciled into the Rotor through the pipeline.
//
// Pipeline options (With*) configure the processing pipeline. Instance
// configuration uses chainable methods before calling Start().
//
// Example:
//
//	coord := rotor.NewCoordinator(
//	    rotor.NewFileWatcher("reminders.json"),
//	    rotor.WithRetry(3),
//	).Debounce(200 * time.Millisecond)
func NewCoordinator(watcher Watcher, opts ...Option) *Coordinator {
	c := &Coordinator{
		watcher:  watcher,
		source:   NewSource(),
		rotor:    NewRotor(),
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
	}
	terminal := pipz.Effect(applyID, func(ctx context.Context, rel *Reload) error {
		return c.apply(ctx, rel)
	})
	c.pipeline = buildPipeline(terminal, opts)
	c.state.Store(int32(StateLoading))

	return c
}

// -----------------------------------------------------------------------------
// Chainable Instance Configuration
// -----------------------------------------------------------------------------

// Debounce sets the debounce duration for reload processing.
// Changes arriving within this duration are coalesced into a single reload.
// Default: 100ms. Must be called before Start().
func (c *Coordinator) Debounce(d time.Duration) *Coordinator {
	c.debounce = d
	return c
}

// RotationInterval sets the Rotor's rotation interval.
// Default: 30s. Must be called before Start().
func (c *Coordinator) RotationInterval(d time.Duration) *Coordinator {
	c.rotor.Interval(d)
	return c
}

// SyncMode enables synchronous processing for testing.
// In sync mode, changes are processed immediately without debouncing
// or async goroutines, making tests deterministic. Must be called before Start().
func (c *Coordinator) SyncMode() *Coordinator {
	c.syncMode = true
	return c
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic debounce and rotation
// testing. Must be called before Start().
func (c *Coordinator) Clock(clock clockz.Clock) *Coordinator {
	c.clock = clock
	return c
}

// Codec sets the codec for deserializing reminder payloads.
// Default: JSONCodec. Must be called before Start().
func (c *Coordinator) Codec(codec Codec) *Coordinator {
	c.source.Codec(codec)
	return c
}

// StartupTimeout sets the maximum duration to wait for the initial payload
// from the watcher. If the watcher fails to emit within this duration,
// Start() returns an error.
// Default: no timeout (wait indefinitely). Must be called before Start().
func (c *Coordinator) StartupTimeout(d time.Duration) *Coordinator {
	c.startupTimeout = d
	return c
}

// Metrics sets a metrics provider for observability integration.
// The provider receives callbacks on state changes, reload success/failure,
// change events, and rotation advances. Must be called before Start().
func (c *Coordinator) Metrics(provider MetricsProvider) *Coordinator {
	c.metrics = provider
	c.rotor.Metrics(provider)
	return c
}

// OnStop sets a callback that is invoked when the coordinator stops
// watching. The callback receives the final state. Must be called before
// Start().
func (c *Coordinator) OnStop(fn func(State)) *Coordinator {
	c.onStop = fn
	return c
}

// OnReload sets a callback invoked after each successfully applied reload,
// so a presentation layer can refresh a "last updated" indicator. Not
// required for correctness. Must be called before Start().
func (c *Coordinator) OnReload(fn func(*Reload)) *Coordinator {
	c.onReload = fn
	return c
}

// FailureHistorySize sets the number of recent load failures to retain.
// When set, FailureHistory() returns up to this many recent failures.
// Use 0 (default) to only retain the most recent error via LastError().
// Must be called before Start().
func (c *Coordinator) FailureHistorySize(n int) *Coordinator {
	c.failures = newFailureLog(n)
	return c
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// State returns the current state of the Coordinator.
func (c *Coordinator) State() State {
	return State(c.state.Load())
}

// Rotor returns the rotation engine fed by this Coordinator. The tick driver
// and the presentation layer read the current reminder, position, and
// countdown from here.
func (c *Coordinator) Rotor() *Rotor {
	return c.rotor
}

// CurrentSet returns the current valid reminder set and true, or nil and
// false if no valid set has been applied.
func (c *Coordinator) CurrentSet() (*Set, bool) {
	ptr := c.current.Load()
	if ptr == nil {
		return nil, false
	}
	return ptr, true
}

// Defects returns the per-entry defects recorded by the last successful
// load, for on-screen status. Nil when the last load was clean.
func (c *Coordinator) Defects() []Defect {
	ptr := c.defects.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// LastError returns the last error encountered, or nil if no error occurred.
func (c *Coordinator) LastError() error {
	ptr := c.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// FailureHistory returns the recent load failures, oldest first.
// Returns nil if failure history is not enabled (see FailureHistorySize).
func (c *Coordinator) FailureHistory() []LoadFailure {
	return c.failures.all()
}

// LastReload returns when the last successful reload was applied, and false
// if none has been.
func (c *Coordinator) LastReload() (time.Time, bool) {
	ptr := c.lastReload.Load()
	if ptr == nil {
		return time.Time{}, false
	}
	return *ptr, true
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start begins watching for changes. It blocks until the first payload is
// processed (success or failure), then continues watching asynchronously.
//
// If the initial load fails, Start returns the error but continues watching
// in the background for valid updates; the caller decides whether an empty
// display is acceptable.
//
// In sync mode, Start only processes the initial value. Use Process() to
// manually trigger processing of subsequent values.
//
// Start can only be called once. Subsequent calls return an error.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	c.started = true
	c.mu.Unlock()

	capitan.Emit(ctx, CoordinatorStarted,
		KeyDebounce.Field(c.debounce),
		KeyInterval.Field(c.rotor.interval),
	)

	changes, err := c.watcher.Watch(ctx)
	if err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	// Wait for first value and process synchronously
	var initialErr error

	// Wrap context with startup timeout if configured
	startupCtx := ctx
	if c.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = c.clock.WithTimeout(ctx, c.startupTimeout)
		defer cancel()
	}

	select {
	case <-startupCtx.Done():
		if c.startupTimeout > 0 && startupCtx.Err() == context.DeadlineExceeded {
			return fmt.Errorf("startup timeout: watcher did not emit initial payload within %v", c.startupTimeout)
		}
		return startupCtx.Err()
	case raw, ok := <-changes:
		if !ok {
			return fmt.Errorf("watcher closed before emitting initial payload")
		}
		capitan.Emit(ctx, ReloadReceived)
		if c.metrics != nil {
			c.metrics.OnChangeReceived()
		}
		initialErr = c.process(ctx, raw)
	}

	if c.syncMode {
		// In sync mode, store channel for manual processing
		c.changes = changes
		return initialErr
	}

	// Continue watching asynchronously
	go c.watch(ctx, changes)

	return initialErr
}

// Process reads and processes the next payload from the watcher.
// This is only available in sync mode and is used for deterministic testing.
// Returns false if no value is available or the channel is closed.
func (c *Coordinator) Process(ctx context.Context) bool {
	if !c.syncMode {
		return false
	}

	select {
	case raw, ok := <-c.changes:
		if !ok {
			return false
		}
		capitan.Emit(ctx, ReloadReceived)
		if c.metrics != nil {
			c.metrics.OnChangeReceived()
		}
		_ = c.process(ctx, raw) //nolint:errcheck // Errors stored via setError
		return true
	default:
		return false
	}
}

// Run drives the Rotor at the given cadence until the context is canceled.
// Sub-second cadence is fine; the observable rotation granularity is the
// rotation interval. Run is a convenience for callers without their own
// periodic driver.
func (c *Coordinator) Run(ctx context.Context, cadence time.Duration) {
	timer := c.clock.NewTimer(cadence)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C():
			c.rotor.Tick(ctx, c.clock.Now())
			timer.Reset(cadence)
		}
	}
}

// -----------------------------------------------------------------------------
// Processing
// -----------------------------------------------------------------------------

// apply is the pipeline terminal: it reconciles the loaded set into the
// rotor and fires the reload notification.
func (c *Coordinator) apply(ctx context.Context, rel *Reload) error {
	c.rotor.Recompute(ctx, rel.Current, c.clock.Now())
	if c.onReload != nil {
		c.onReload(rel)
	}
	return nil
}

// process loads, reconciles, and stores a single payload.
func (c *Coordinator) process(ctx context.Context, raw []byte) error {
	start := c.clock.Now()
	oldState := c.State()

	set, defects, err := c.source.Load(raw)
	if err != nil {
		c.setError(err)
		c.transitionState(ctx, oldState, c.failureState())
		capitan.Emit(ctx, ReloadLoadFailed,
			KeyError.Field(err.Error()),
		)
		if c.metrics != nil {
			c.metrics.OnReloadFailure("load", c.clock.Since(start))
		}
		return fmt.Errorf("load failed: %w", err)
	}

	if len(defects) > 0 {
		capitan.Emit(ctx, ReloadEntriesRejected,
			KeyDefects.Field(len(defects)),
			KeyGeneration.Field(int(set.Generation())),
		)
	}

	rel := &Reload{Previous: c.current.Load(), Current: set, Defects: defects, Raw: raw}
	processed, err := c.pipeline.Process(ctx, rel)
	if err != nil {
		c.setError(err)
		c.transitionState(ctx, oldState, c.failureState())
		capitan.Emit(ctx, ReloadApplyFailed,
			KeyError.Field(err.Error()),
		)
		if c.metrics != nil {
			c.metrics.OnReloadFailure("apply", c.clock.Since(start))
		}
		return fmt.Errorf("apply failed: %w", err)
	}

	// Success - store snapshot and clear the failure streak
	c.current.Store(processed.Current)
	d := processed.Defects
	c.defects.Store(&d)
	now := c.clock.Now()
	c.lastReload.Store(&now)
	c.lastError.Store(nil)
	c.failures.clear()
	c.transitionState(ctx, oldState, StateHealthy)

	eligible, total := c.rotor.Counts()
	capitan.Emit(ctx, ReloadApplied,
		KeyGeneration.Field(int(processed.Current.Generation())),
		KeyFingerprint.Field(processed.Current.Fingerprint()),
		KeyEligible.Field(eligible),
		KeyTotal.Field(total),
	)
	if c.metrics != nil {
		c.metrics.OnReloadSuccess(c.clock.Since(start))
	}

	return nil
}

// failureState returns the appropriate failure state based on whether a
// valid set has ever been applied.
func (c *Coordinator) failureState() State {
	if c.current.Load() == nil {
		return StateEmpty
	}
	return StateDegraded
}

// transitionState updates the state and emits a state change event if changed.
func (c *Coordinator) transitionState(ctx context.Context, oldState, newState State) {
	if oldState == newState {
		return
	}
	c.state.Store(int32(newState))
	capitan.Emit(ctx, CoordinatorStateChanged,
		KeyOldState.Field(oldState.String()),
		KeyNewState.Field(newState.String()),
	)
	if c.metrics != nil {
		c.metrics.OnStateChange(oldState, newState)
	}
}

// setError stores an error atomically and records it in the failure log.
func (c *Coordinator) setError(err error) {
	e := err
	c.lastError.Store(&e)
	c.failures.push(c.clock.Now(), err)
}

// watch processes changes from the watcher channel with debouncing.
func (c *Coordinator) watch(ctx context.Context, changes <-chan []byte) {
	defer func() {
		finalState := c.State()
		capitan.Emit(ctx, CoordinatorStopped,
			KeyState.Field(finalState.String()),
		)
		if c.onStop != nil {
			c.onStop(finalState)
		}
	}()

	var (
		timer      clockz.Timer
		pending    []byte
		hasPending bool
	)

	for {
		// Get timer channel or nil if no timer
		var timerC <-chan time.Time
		if timer != nil {
			timerC = timer.C()
		}

		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return

		case raw, ok := <-changes:
			if !ok {
				// Channel closed, process any pending change
				if hasPending {
					_ = c.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				}
				return
			}

			capitan.Emit(ctx, ReloadReceived)
			if c.metrics != nil {
				c.metrics.OnChangeReceived()
			}
			pending = raw
			hasPending = true

			// Reset or start debounce timer
			if timer == nil {
				timer = c.clock.NewTimer(c.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C():
					default:
					}
				}
				timer.Reset(c.debounce)
			}

		case <-timerC:
			if hasPending {
				_ = c.process(ctx, pending) //nolint:errcheck // Errors stored via setError
				hasPending = false
			}
		}
	}
}
