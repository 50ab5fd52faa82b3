package rotor

import (
	"context"
	"sync"
	"time"

	"github.com/zoobzio/capitan"
)

// DefaultRotationInterval is the duration between automatic advances of the
// displayed reminder.
const DefaultRotationInterval = 30 * time.Second

// Rotor owns the rotation state: the eligible subset of the current reminder
// set, the active position within it, and the per-tick timing.
//
// All time flows in through method arguments, so a Rotor is fully
// deterministic under test. Operations are serialized by an internal mutex;
// there is exactly one logical writer (the tick driver and the reload path
// both funnel through it), and ticking twice with the same instant never
// advances twice.
type Rotor struct {
	mu       sync.Mutex
	interval time.Duration
	metrics  MetricsProvider

	set          *Set
	eligible     []int
	position     int    // index into eligible, -1 when nothing eligible
	currentID    string // identity of the displayed reminder, "" when none
	lastRotation time.Time
	generation   uint64
}

// NewRotor creates a Rotor with the default 30 second rotation interval.
func NewRotor() *Rotor {
	return &Rotor{
		interval: DefaultRotationInterval,
		position: -1,
	}
}

// Interval sets the rotation interval. Default: 30s.
func (r *Rotor) Interval(d time.Duration) *Rotor {
	r.interval = d
	return r
}

// Metrics sets a metrics provider notified on rotation advances.
func (r *Rotor) Metrics(provider MetricsProvider) *Rotor {
	r.metrics = provider
	return r
}

// Recompute reconciles the rotation state against a reminder set at the
// given instant.
//
// Eligibility is recomputed for every definition. If the reminder currently
// on display is still eligible in the new set it keeps the selection, matched
// by content identity rather than list index, so edits to unrelated entries
// never move the display. If it is no longer eligible, the position resets to
// the first eligible entry and the rotation timer restarts. If nothing is
// eligible, the selection becomes empty until a definition becomes eligible
// again.
func (r *Rotor) Recompute(ctx context.Context, set *Set, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.recomputeLocked(ctx, set, now)
}

func (r *Rotor) recomputeLocked(ctx context.Context, set *Set, now time.Time) {
	if set == nil {
		return
	}
	reconciled := set != r.set

	r.set = set
	r.generation = set.generation
	r.eligible = set.EligibleIndices(now)

	switch {
	case len(r.eligible) == 0:
		r.position = -1
		r.currentID = ""

	default:
		kept := false
		if r.currentID != "" {
			for i, idx := range r.eligible {
				if set.reminders[idx].Identity() == r.currentID {
					r.position = i
					kept = true
					break
				}
			}
		}
		if !kept {
			wasDisplaying := r.currentID != ""
			r.position = 0
			r.currentID = set.reminders[r.eligible[0]].Identity()
			r.lastRotation = now
			if wasDisplaying {
				capitan.Emit(ctx, SelectionReset,
					KeyEligible.Field(len(r.eligible)),
					KeyTotal.Field(set.Len()),
				)
			}
		}
	}

	if reconciled {
		capitan.Emit(ctx, SetReconciled,
			KeyGeneration.Field(int(set.generation)),
			KeyEligible.Field(len(r.eligible)),
			KeyTotal.Field(set.Len()),
		)
	}
}

// Tick drives the rotation at the given instant. It first recomputes
// eligibility against the latest known set (day and time boundaries can be
// crossed at any second, not only at rotation boundaries), then advances the
// position once the rotation interval has elapsed since the last advance.
//
// Tick is idempotent per instant: calling it twice with the same now
// produces no additional advance.
func (r *Rotor) Tick(ctx context.Context, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.set == nil {
		return
	}
	r.recomputeLocked(ctx, r.set, now)

	if r.position < 0 {
		return
	}
	if now.Sub(r.lastRotation) < r.interval {
		return
	}

	r.position = (r.position + 1) % len(r.eligible)
	r.currentID = r.set.reminders[r.eligible[r.position]].Identity()
	r.lastRotation = now

	capitan.Emit(ctx, RotationAdvanced,
		KeyPosition.Field(r.position),
		KeyEligible.Field(len(r.eligible)),
	)
	if r.metrics != nil {
		r.metrics.OnRotation(r.position, len(r.eligible))
	}
}

// Current returns the reminder currently selected for display, or false if
// nothing is eligible. The presentation layer should render a placeholder in
// the empty case rather than treat it as an error.
func (r *Rotor) Current() (Reminder, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.position < 0 {
		return Reminder{}, false
	}
	return r.set.reminders[r.eligible[r.position]], true
}

// TimeUntilNextRotation returns how long until the next automatic advance,
// for countdown display. Pure query; returns 0 when nothing is eligible or
// an advance is due.
func (r *Rotor) TimeUntilNextRotation(now time.Time) time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.position < 0 {
		return 0
	}
	elapsed := now.Sub(r.lastRotation)
	if elapsed >= r.interval {
		return 0
	}
	return r.interval - elapsed
}

// Position returns the 1-based ordinal of the displayed reminder within the
// eligible subset and the subset size, for "reminder 2 of 5" progress
// display. Returns (0, 0) when nothing is eligible.
func (r *Rotor) Position() (ordinal, eligible int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.position < 0 {
		return 0, 0
	}
	return r.position + 1, len(r.eligible)
}

// Counts returns the number of currently eligible reminders and the total
// number in the set.
func (r *Rotor) Counts() (eligible, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.eligible), r.set.Len()
}

// Generation returns the set generation the rotation state was last
// reconciled against.
func (r *Rotor) Generation() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.generation
}
