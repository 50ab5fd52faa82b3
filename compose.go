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

// SourceError records a structural failure from a specific source in a
// CompositeCoordinator.
type SourceError struct {
	Index int
	Error error
}

// CompositeCoordinator watches multiple reminder sources, loads and
// validates each, and merges the lists with a Reducer before reconciling the
// merged set into a single Rotor. Use it to rotate one display over several
// independently edited lists, such as a shared team list plus a personal
// one.
type CompositeCoordinator struct {
	sources        []Watcher
	reducer        Reducer
	codec          Codec
	rotor          *Rotor
	pipeline       pipz.Chainable[*Reload]
	debounce       time.Duration
	startupTimeout time.Duration
	syncMode       bool
	clock          clockz.Clock
	metrics        MetricsProvider
	onStop         func(State)
	onReload       func(*Reload)

	gen          atomic.Uint64
	state        atomic.Int32
	current      atomic.Pointer[Set]
	defects      atomic.Pointer[[]Defect]
	lastError    atomic.Pointer[error]
	lastReload   atomic.Pointer[time.Time]
	failures     *failureLog
	sourceErrors atomic.Pointer[[]SourceError]
	latestParsed atomic.Pointer[[]*Set]

	mu      sync.Mutex
	started bool

	// For sync mode
	sourceChans []<-chan []byte
	latest      [][]byte
	ready       []bool
}

// Compose creates a CompositeCoordinator over multiple sources.
//
// Each source emits raw payload bytes when it changes. Every payload is
// loaded and validated independently; when all sources are ready, the
// reducer receives the previous and new per-source snapshots in source order
// and returns the merged reminder list. A nil reducer concatenates the lists
// in source order.
//
// Example:
//
//	coord := rotor.Compose(nil, []rotor.Watcher{
//	    rotor.NewFileWatcher("team.json"),
//	    rotor.NewFileWatcher("personal.json"),
//	})
func Compose(reducer Reducer, sources []Watcher, opts ...Option) *CompositeCoordinator {
	if reducer == nil {
		reducer = ConcatReducer
	}

	c := &CompositeCoordinator{
		sources:  sources,
		reducer:  reducer,
		codec:    JSONCodec{},
		rotor:    NewRotor(),
		debounce: DefaultDebounce,
		clock:    clockz.RealClock,
		latest:   make([][]byte, len(sources)),
		ready:    make([]bool, len(sources)),
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
func (c *CompositeCoordinator) Debounce(d time.Duration) *CompositeCoordinator {
	c.debounce = d
	return c
}

// RotationInterval sets the Rotor's rotation interval.
// Default: 30s. Must be called before Start().
func (c *CompositeCoordinator) RotationInterval(d time.Duration) *CompositeCoordinator {
	c.rotor.Interval(d)
	return c
}

// SyncMode enables synchronous processing for testing.
// In sync mode, changes are processed immediately without debouncing
// or async goroutines, making tests deterministic. Must be called before Start().
func (c *CompositeCoordinator) SyncMode() *CompositeCoordinator {
	c.syncMode = true
	return c
}

// Clock sets a custom clock for time operations.
// Use this with clockz.FakeClock for deterministic testing.
// Must be called before Start().
func (c *CompositeCoordinator) Clock(clock clockz.Clock) *CompositeCoordinator {
	c.clock = clock
	return c
}

// Codec sets the codec for deserializing payloads from every source.
// Default: JSONCodec. Must be called before Start().
func (c *CompositeCoordinator) Codec(codec Codec) *CompositeCoordinator {
	c.codec = codec
	return c
}

// StartupTimeout sets the maximum duration to wait for the initial payload
// from each source. If any source fails to emit within this duration,
// Start() returns an error.
// Default: no timeout (wait indefinitely). Must be called before Start().
func (c *CompositeCoordinator) StartupTimeout(d time.Duration) *CompositeCoordinator {
	c.startupTimeout = d
	return c
}

// Metrics sets a metrics provider for observability integration.
// Must be called before Start().
func (c *CompositeCoordinator) Metrics(provider MetricsProvider) *CompositeCoordinator {
	c.metrics = provider
	c.rotor.Metrics(provider)
	return c
}

// OnStop sets a callback that is invoked when the coordinator stops
// watching. Must be called before Start().
func (c *CompositeCoordinator) OnStop(fn func(State)) *CompositeCoordinator {
	c.onStop = fn
	return c
}

// OnReload sets a callback invoked after each successfully applied reload.
// Must be called before Start().
func (c *CompositeCoordinator) OnReload(fn func(*Reload)) *CompositeCoordinator {
	c.onReload = fn
	return c
}

// FailureHistorySize sets the number of recent load failures to retain.
// Must be called before Start().
func (c *CompositeCoordinator) FailureHistorySize(n int) *CompositeCoordinator {
	c.failures = newFailureLog(n)
	return c
}

// -----------------------------------------------------------------------------
// Queries
// -----------------------------------------------------------------------------

// State returns the current state of the CompositeCoordinator.
func (c *CompositeCoordinator) State() State {
	return State(c.state.Load())
}

// Rotor returns the rotation engine fed by this coordinator.
func (c *CompositeCoordinator) Rotor() *Rotor {
	return c.rotor
}

// CurrentSet returns the merged reminder set and true, or nil and false if
// no valid merge has been applied.
func (c *CompositeCoordinator) CurrentSet() (*Set, bool) {
	ptr := c.current.Load()
	if ptr == nil {
		return nil, false
	}
	return ptr, true
}

// Defects returns the per-entry defects recorded by the last successful
// reload across all sources.
func (c *CompositeCoordinator) Defects() []Defect {
	ptr := c.defects.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// LastError returns the last error encountered.
func (c *CompositeCoordinator) LastError() error {
	ptr := c.lastError.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// FailureHistory returns the recent load failures, oldest first.
// Returns nil if failure history is not enabled (see FailureHistorySize).
func (c *CompositeCoordinator) FailureHistory() []LoadFailure {
	return c.failures.all()
}

// LastReload returns when the last successful reload was applied, and false
// if none has been.
func (c *CompositeCoordinator) LastReload() (time.Time, bool) {
	ptr := c.lastReload.Load()
	if ptr == nil {
		return time.Time{}, false
	}
	return *ptr, true
}

// SourceErrors returns structural errors from individual sources, if any.
// This identifies which list is failing when the display goes stale.
func (c *CompositeCoordinator) SourceErrors() []SourceError {
	ptr := c.sourceErrors.Load()
	if ptr == nil {
		return nil
	}
	return *ptr
}

// -----------------------------------------------------------------------------
// Lifecycle
// -----------------------------------------------------------------------------

// Start begins watching all sources. It blocks until every source has
// emitted its initial payload and the first merge is processed, then
// continues watching asynchronously.
func (c *CompositeCoordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return fmt.Errorf("coordinator already started")
	}
	c.started = true
	c.mu.Unlock()

	if len(c.sources) == 0 {
		return fmt.Errorf("compose requires at least one source")
	}

	capitan.Emit(ctx, CoordinatorStarted,
		KeyDebounce.Field(c.debounce),
		KeyInterval.Field(c.rotor.interval),
	)

	// Start all source watchers
	c.sourceChans = make([]<-chan []byte, len(c.sources))
	for i, src := range c.sources {
		ch, err := src.Watch(ctx)
		if err != nil {
			return fmt.Errorf("failed to start source %d: %w", i, err)
		}
		c.sourceChans[i] = ch
	}

	// Wait for initial payload from each source
	// Wrap context with startup timeout if configured
	startupCtx := ctx
	if c.startupTimeout > 0 {
		var cancel context.CancelFunc
		startupCtx, cancel = c.clock.WithTimeout(ctx, c.startupTimeout)
		defer cancel()
	}

	for i, ch := range c.sourceChans {
		select {
		case <-startupCtx.Done():
			if c.startupTimeout > 0 && startupCtx.Err() == context.DeadlineExceeded {
				return fmt.Errorf("startup timeout: source %d did not emit initial payload within %v", i, c.startupTimeout)
			}
			return startupCtx.Err()
		case raw, ok := <-ch:
			if !ok {
				return fmt.Errorf("source %d closed before emitting initial payload", i)
			}
			c.latest[i] = raw
			c.ready[i] = true
		}
	}

	capitan.Emit(ctx, ReloadReceived)
	if c.metrics != nil {
		c.metrics.OnChangeReceived()
	}

	// Process initial merged value
	initialErr := c.process(ctx)

	if c.syncMode {
		return initialErr
	}

	// Continue watching asynchronously
	go c.watch(ctx)

	return initialErr
}

// Process manually processes pending changes in sync mode.
func (c *CompositeCoordinator) Process(ctx context.Context) bool {
	if !c.syncMode {
		return false
	}

	// Check each source for new payload (non-blocking)
	changed := false
	for i, ch := range c.sourceChans {
		select {
		case raw, ok := <-ch:
			if !ok {
				continue
			}
			c.latest[i] = raw
			changed = true
		default:
		}
	}

	if changed {
		capitan.Emit(ctx, ReloadReceived)
		if c.metrics != nil {
			c.metrics.OnChangeReceived()
		}
		_ = c.process(ctx) //nolint:errcheck // Errors stored via setError
		return true
	}
	return false
}

// Run drives the Rotor at the given cadence until the context is canceled.
func (c *CompositeCoordinator) Run(ctx context.Context, cadence time.Duration) {
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

// apply is the pipeline terminal: it reconciles the merged set into the
// rotor and fires the reload notification.
func (c *CompositeCoordinator) apply(ctx context.Context, rel *Reload) error {
	c.rotor.Recompute(ctx, rel.Current, c.clock.Now())
	if c.onReload != nil {
		c.onReload(rel)
	}
	return nil
}

// process loads each source, merges through the reducer, and reconciles the
// result. A structural failure in any source rejects the whole reload and
// retains the previous merged set.
func (c *CompositeCoordinator) process(ctx context.Context) error {
	start := c.clock.Now()
	oldState := c.State()

	sets := make([]*Set, len(c.latest))
	var allDefects []Defect
	var sourceErrs []SourceError

	for i, raw := range c.latest {
		reminders, defects, err := parseReminders(c.codec, raw)
		if err != nil {
			sourceErrs = append(sourceErrs, SourceError{Index: i, Error: err})
			c.setError(err)
			c.sourceErrors.Store(&sourceErrs)
			c.transitionState(ctx, oldState, c.failureState())
			capitan.Emit(ctx, ReloadLoadFailed,
				KeySource.Field(i),
				KeyError.Field(err.Error()),
			)
			if c.metrics != nil {
				c.metrics.OnReloadFailure("load", c.clock.Since(start))
			}
			return fmt.Errorf("load source %d failed: %w", i, err)
		}

		for _, d := range defects {
			d.Detail = fmt.Sprintf("source %d: %s", i, d.Detail)
			allDefects = append(allDefects, d)
		}
		// Per-source snapshots carry no generation of their own; the merged
		// set owns the counter.
		sets[i] = newSet(0, raw, reminders)
	}

	// Get previous per-source snapshots for the reducer (nil on first call)
	var prev []*Set
	if ptr := c.latestParsed.Load(); ptr != nil {
		prev = *ptr
	}

	merged, err := c.reducer(ctx, prev, sets)
	if err != nil {
		c.setError(err)
		c.transitionState(ctx, oldState, c.failureState())
		capitan.Emit(ctx, ReloadApplyFailed,
			KeyError.Field(err.Error()),
		)
		if c.metrics != nil {
			c.metrics.OnReloadFailure("apply", c.clock.Since(start))
		}
		return fmt.Errorf("reducer failed: %w", err)
	}

	mergedSet := newSet(c.gen.Add(1), joinPayloads(c.latest), merged)

	if len(allDefects) > 0 {
		capitan.Emit(ctx, ReloadEntriesRejected,
			KeyDefects.Field(len(allDefects)),
			KeyGeneration.Field(int(mergedSet.Generation())),
		)
	}

	rel := &Reload{Previous: c.current.Load(), Current: mergedSet, Defects: allDefects}
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

	// Success - store merged snapshot and clear the failure streak
	c.current.Store(processed.Current)
	c.latestParsed.Store(&sets)
	d := processed.Defects
	c.defects.Store(&d)
	now := c.clock.Now()
	c.lastReload.Store(&now)
	c.lastError.Store(nil)
	c.failures.clear()
	c.sourceErrors.Store(nil)
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

// joinPayloads concatenates raw payloads for the merged fingerprint.
func joinPayloads(raws [][]byte) []byte {
	var joined []byte
	for _, raw := range raws {
		joined = append(joined, raw...)
		joined = append(joined, 0)
	}
	return joined
}

func (c *CompositeCoordinator) failureState() State {
	if c.current.Load() == nil {
		return StateEmpty
	}
	return StateDegraded
}

func (c *CompositeCoordinator) transitionState(ctx context.Context, oldState, newState State) {
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

func (c *CompositeCoordinator) setError(err error) {
	e := err
	c.lastError.Store(&e)
	c.failures.push(c.clock.Now(), err)
}

// sourceUpdate carries a payload from a source goroutine to the debounce
// goroutine, which is the only writer of latest after Start.
type sourceUpdate struct {
	idx int
	raw []byte
}

// watch processes changes from all sources with debouncing.
func (c *CompositeCoordinator) watch(ctx context.Context) {
	defer func() {
		finalState := c.State()
		capitan.Emit(ctx, CoordinatorStopped,
			KeyState.Field(finalState.String()),
		)
		if c.onStop != nil {
			c.onStop(finalState)
		}
	}()

	// Fan-in channel: source goroutines hand their payloads to the debounce
	// goroutine rather than writing latest themselves, keeping latest
	// single-writer while reloads read all of it.
	changed := make(chan sourceUpdate, len(c.sourceChans))

	// Start a goroutine for each source
	var wg sync.WaitGroup
	wg.Add(len(c.sourceChans))

	for i, ch := range c.sourceChans {
		go func(idx int, ch <-chan []byte) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case raw, ok := <-ch:
					if !ok {
						return
					}
					select {
					case changed <- sourceUpdate{idx: idx, raw: raw}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(i, ch)
	}

	// Single goroutine handles debouncing and processing
	go func() {
		var (
			timer      clockz.Timer
			timerC     <-chan time.Time
			hasPending bool
		)

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return

			case upd, ok := <-changed:
				if !ok {
					// All sources closed; process any pending change
					if timer != nil {
						timer.Stop()
					}
					if hasPending {
						_ = c.process(ctx) //nolint:errcheck // Errors stored via setError
					}
					return
				}

				c.latest[upd.idx] = upd.raw
				capitan.Emit(ctx, ReloadReceived)
				if c.metrics != nil {
					c.metrics.OnChangeReceived()
				}
				hasPending = true

				// Reset or start debounce timer
				if timer == nil {
					timer = c.clock.NewTimer(c.debounce)
					timerC = timer.C()
				} else {
					if !timer.Stop() {
						select {
						case <-timerC:
						default:
						}
					}
					timer.Reset(c.debounce)
				}

			case <-timerC:
				if hasPending {
					_ = c.process(ctx) //nolint:errcheck // Errors stored via setError
					hasPending = false
				}
			}
		}
	}()

	wg.Wait()
	close(changed)
}
