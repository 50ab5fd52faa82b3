package rotor

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/zoobzio/clockz"
)

func newSyncComposite(t *testing.T, payloads ...string) (*CompositeCoordinator, []chan []byte) {
	t.Helper()
	chans := make([]chan []byte, len(payloads))
	watchers := make([]Watcher, len(payloads))
	for i, p := range payloads {
		chans[i] = make(chan []byte, 10)
		chans[i] <- []byte(p)
		watchers[i] = NewSyncChannelWatcher(chans[i])
	}
	return Compose(nil, watchers).SyncMode(), chans
}

func TestCompose_ConcatMerge(t *testing.T) {
	coord, _ := newSyncComposite(t,
		`[{"text": "team standup"}, {"text": "team retro"}]`,
		`[{"text": "personal stretch"}]`,
	)
	ctx := context.Background()

	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if coord.State() != StateHealthy {
		t.Errorf("expected StateHealthy, got %v", coord.State())
	}
	set, ok := coord.CurrentSet()
	if !ok || set.Len() != 3 {
		t.Fatalf("expected merged set of 3, got %v, %v", set, ok)
	}
	// Concatenation preserves source order.
	if set.Reminder(0).Text != "team standup" || set.Reminder(2).Text != "personal stretch" {
		t.Errorf("unexpected merge order: %v", set.Reminders())
	}
	if set.Generation() != 1 {
		t.Errorf("expected merged generation 1, got %d", set.Generation())
	}
	if rem, _ := coord.Rotor().Current(); rem.Text != "team standup" {
		t.Errorf("expected first merged reminder on display, got %s", rem.Text)
	}
}

func TestCompose_SourceFailureRetainsPreviousMerge(t *testing.T) {
	coord, chans := newSyncComposite(t,
		`[{"text": "alpha"}]`,
		`[{"text": "beta"}]`,
	)
	ctx := context.Background()

	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	prev, _ := coord.CurrentSet()

	chans[1] <- []byte(`{broken`)
	if !coord.Process(ctx) {
		t.Fatal("expected Process to consume the bad payload")
	}

	if coord.State() != StateDegraded {
		t.Errorf("expected StateDegraded, got %v", coord.State())
	}
	set, _ := coord.CurrentSet()
	if set != prev {
		t.Error("expected previous merged set to be retained")
	}
	srcErrs := coord.SourceErrors()
	if len(srcErrs) != 1 || srcErrs[0].Index != 1 {
		t.Fatalf("expected failure attributed to source 1, got %v", srcErrs)
	}
	if coord.LastError() == nil {
		t.Error("expected LastError after source failure")
	}

	chans[1] <- []byte(`[{"text": "beta fixed"}]`)
	if !coord.Process(ctx) {
		t.Fatal("expected Process to consume the recovery payload")
	}
	if coord.State() != StateHealthy {
		t.Errorf("expected StateHealthy after recovery, got %v", coord.State())
	}
	if coord.SourceErrors() != nil {
		t.Errorf("expected source errors cleared, got %v", coord.SourceErrors())
	}
	set, _ = coord.CurrentSet()
	if set.Len() != 2 || set.Reminder(1).Text != "beta fixed" {
		t.Errorf("unexpected recovered merge: %v", set.Reminders())
	}
}

func TestCompose_DefectDetailNamesSource(t *testing.T) {
	coord, _ := newSyncComposite(t,
		`[{"text": "fine"}]`,
		`[{"text": "also fine"}, {"priority": "high"}]`,
	)
	ctx := context.Background()

	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	defects := coord.Defects()
	if len(defects) != 1 {
		t.Fatalf("expected 1 defect, got %d", len(defects))
	}
	if defects[0].Kind != DefectMissingText {
		t.Errorf("unexpected defect kind: %v", defects[0].Kind)
	}
	if !strings.HasPrefix(defects[0].Detail, "source 1: ") {
		t.Errorf("expected defect detail to name the source, got %q", defects[0].Detail)
	}
}

func TestCompose_CustomReducer(t *testing.T) {
	highOnly := func(_ context.Context, _, curr []*Set) ([]Reminder, error) {
		var out []Reminder
		for _, set := range curr {
			for _, rem := range set.Reminders() {
				if rem.Priority == PriorityHigh {
					out = append(out, rem)
				}
			}
		}
		return out, nil
	}

	ch1 := make(chan []byte, 1)
	ch1 <- []byte(`[{"text": "urgent fix", "priority": "urgent"}, {"text": "someday"}]`)
	ch2 := make(chan []byte, 1)
	ch2 <- []byte(`[{"text": "ship it", "priority": "high"}]`)

	coord := Compose(highOnly, []Watcher{
		NewSyncChannelWatcher(ch1),
		NewSyncChannelWatcher(ch2),
	}).SyncMode()

	if err := coord.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	set, _ := coord.CurrentSet()
	if set.Len() != 2 {
		t.Fatalf("expected 2 high priority reminders, got %d", set.Len())
	}
	for _, rem := range set.Reminders() {
		if rem.Priority != PriorityHigh {
			t.Errorf("reducer let through %v priority: %s", rem.Priority, rem.Text)
		}
	}
}

func TestCompose_ReducerErrorRejectsReload(t *testing.T) {
	failing := func(_ context.Context, _, _ []*Set) ([]Reminder, error) {
		return nil, errors.New("merge conflict")
	}
	ch := make(chan []byte, 1)
	ch <- []byte(`[{"text": "a"}]`)

	coord := Compose(failing, []Watcher{NewSyncChannelWatcher(ch)}).SyncMode()

	err := coord.Start(context.Background())
	if err == nil {
		t.Fatal("expected reducer error to fail the initial load")
	}
	if coord.State() != StateEmpty {
		t.Errorf("expected StateEmpty, got %v", coord.State())
	}
	if _, ok := coord.CurrentSet(); ok {
		t.Error("expected no merged set")
	}
}

func TestCompose_GenerationIncrementsPerMerge(t *testing.T) {
	coord, chans := newSyncComposite(t, `[{"text": "a"}]`, `[{"text": "b"}]`)
	ctx := context.Background()

	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	chans[0] <- []byte(`[{"text": "a2"}]`)
	coord.Process(ctx)

	set, _ := coord.CurrentSet()
	if set.Generation() != 2 {
		t.Errorf("expected generation 2 after second merge, got %d", set.Generation())
	}
	if coord.Rotor().Generation() != 2 {
		t.Errorf("expected rotor reconciled to generation 2, got %d", coord.Rotor().Generation())
	}
}

func TestCompose_Debounce_CoalescesUpdatesAcrossSources(t *testing.T) {
	clock := clockz.NewFakeClock()
	ch1 := make(chan []byte, 10)
	ch1 <- []byte(`[{"text": "team v1"}]`)
	ch2 := make(chan []byte, 10)
	ch2 <- []byte(`[{"text": "personal v1"}]`)

	var applies atomic.Int32
	coord := Compose(nil, []Watcher{
		NewChannelWatcher(ch1),
		NewChannelWatcher(ch2),
	}).Debounce(100 * time.Millisecond).
		Clock(clock).
		OnReload(func(_ *Reload) { applies.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if applies.Load() != 1 {
		t.Errorf("expected 1 apply after start, got %d", applies.Load())
	}

	// Both sources update inside one debounce window.
	ch1 <- []byte(`[{"text": "team v2"}]`)
	ch2 <- []byte(`[{"text": "personal v2"}]`)

	// Allow goroutines to forward the updates
	time.Sleep(10 * time.Millisecond)

	if applies.Load() != 1 {
		t.Errorf("expected still 1 apply while debouncing, got %d", applies.Load())
	}

	clock.Advance(150 * time.Millisecond)
	clock.BlockUntilReady()
	time.Sleep(10 * time.Millisecond)

	// One reload carries both updated lists.
	if applies.Load() != 2 {
		t.Errorf("expected 2 applies after debounce, got %d", applies.Load())
	}
	set, _ := coord.CurrentSet()
	if set.Len() != 2 || set.Reminder(0).Text != "team v2" || set.Reminder(1).Text != "personal v2" {
		t.Errorf("expected both updates merged, got %v", set.Reminders())
	}
}

func TestCompose_Debounce_ProcessesPendingOnClose(t *testing.T) {
	clock := clockz.NewFakeClock()
	ch1 := make(chan []byte, 10)
	ch1 <- []byte(`[{"text": "first"}]`)
	ch2 := make(chan []byte, 10)
	ch2 <- []byte(`[{"text": "second"}]`)

	var applies atomic.Int32
	coord := Compose(nil, []Watcher{
		NewChannelWatcher(ch1),
		NewChannelWatcher(ch2),
	}).Debounce(100 * time.Millisecond).
		Clock(clock).
		OnReload(func(_ *Reload) { applies.Add(1) })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := coord.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	ch1 <- []byte(`[{"text": "first updated"}]`)
	time.Sleep(10 * time.Millisecond)

	// Close both sources before the debounce fires.
	close(ch1)
	close(ch2)
	time.Sleep(10 * time.Millisecond)

	if applies.Load() != 2 {
		t.Errorf("expected pending update processed on close, got %d applies", applies.Load())
	}
	set, _ := coord.CurrentSet()
	if set.Reminder(0).Text != "first updated" {
		t.Errorf("expected pending update applied, got %v", set.Reminders())
	}
}

func TestCompose_RequiresSources(t *testing.T) {
	coord := Compose(nil, nil).SyncMode()
	if err := coord.Start(context.Background()); err == nil {
		t.Fatal("expected error with no sources")
	}
}
