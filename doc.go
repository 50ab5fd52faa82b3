// Package rotor provides reactive reminder rotation primitives.
//
// The core type is Coordinator, which watches an external reminder list for
// changes, parses and validates the entries, and feeds generation-tagged
// snapshots into a Rotor that rotates visible attention among the currently
// eligible reminders on a fixed cadence.
//
// # Rotor
//
// A Rotor owns the rotation state: the subset of reminders whose day and
// time-of-day constraints currently hold, the active position within that
// subset, and the timestamp of the last advance. Ticking the Rotor first
// recomputes eligibility (day and time boundaries can be crossed at any
// second) and then advances the position once per rotation interval.
//
// Reconciliation across reloads is identity-based: if the reminder currently
// on display survives a configuration edit, the position follows it rather
// than resetting, so live edits never cause visual jumping.
//
// # Coordinator
//
// A Coordinator monitors a source and processes changes through a pipeline:
//
//	Source → Load → Validate entries → Pipeline → Rotor
//
// A structurally invalid payload never blanks the display: the previous
// snapshot is retained and the Coordinator enters a degraded state while
// continuing to watch for valid updates. Individually malformed entries are
// excluded and surfaced as defects without failing the load.
//
// # State Machine
//
// Coordinator maintains one of four states:
//
//   - Loading: Initial state, no reminder set yet
//   - Healthy: Valid reminder set applied
//   - Degraded: Last reload failed, previous set still active
//   - Empty: Initial load failed, no valid set ever obtained
//
// # Watchers
//
// The Watcher interface abstracts change sources. FileWatcher observes a
// reminder file via fsnotify; ChannelWatcher wraps a byte channel for tests
// and custom sources. Compose merges several watched lists (for example a
// work list and a personal list) into a single rotation.
//
// # Example
//
//	coord := rotor.NewCoordinator(rotor.NewFileWatcher("reminders.json"))
//
//	if err := coord.Start(ctx); err != nil {
//	    log.Printf("initial load failed: %v", err)
//	}
//	go coord.Run(ctx, time.Second)
//
//	if r, ok := coord.Rotor().Current(); ok {
//	    fmt.Println(r.Text)
//	}
package rotor
