package rotor

import "github.com/zoobzio/capitan"

// Coordinator lifecycle signals.
var (
	// CoordinatorStarted is emitted when a Coordinator begins watching.
	CoordinatorStarted = capitan.NewSignal(
		"rotor.coordinator.started",
		"Coordinator watching started",
	)

	// CoordinatorStopped is emitted when a Coordinator stops watching.
	CoordinatorStopped = capitan.NewSignal(
		"rotor.coordinator.stopped",
		"Coordinator watching stopped",
	)

	// CoordinatorStateChanged is emitted when a Coordinator transitions
	// between states.
	CoordinatorStateChanged = capitan.NewSignal(
		"rotor.coordinator.state.changed",
		"Coordinator state transition",
	)
)

// Reload processing signals.
var (
	// ReloadReceived is emitted when raw payload bytes arrive from the watcher.
	ReloadReceived = capitan.NewSignal(
		"rotor.reload.received",
		"Raw payload received from watcher",
	)

	// ReloadLoadFailed is emitted when a payload is structurally invalid and
	// the whole load is rejected.
	ReloadLoadFailed = capitan.NewSignal(
		"rotor.reload.load.failed",
		"Payload rejected, previous set retained",
	)

	// ReloadEntriesRejected is emitted when a load succeeds but individual
	// entries were excluded or defaulted.
	ReloadEntriesRejected = capitan.NewSignal(
		"rotor.reload.entries.rejected",
		"Entries excluded or defaulted during load",
	)

	// ReloadApplyFailed is emitted when the reload pipeline fails.
	ReloadApplyFailed = capitan.NewSignal(
		"rotor.reload.apply.failed",
		"Reload pipeline failed",
	)

	// ReloadApplied is emitted when a reminder set is successfully applied.
	ReloadApplied = capitan.NewSignal(
		"rotor.reload.applied",
		"Reminder set applied",
	)
)

// Rotation signals.
var (
	// RotationAdvanced is emitted when the Rotor advances to the next
	// eligible reminder.
	RotationAdvanced = capitan.NewSignal(
		"rotor.rotation.advanced",
		"Rotation advanced to next eligible reminder",
	)

	// SelectionReset is emitted when the displayed reminder became
	// ineligible or disappeared and the position reset to the first
	// eligible entry.
	SelectionReset = capitan.NewSignal(
		"rotor.selection.reset",
		"Selection reset to first eligible reminder",
	)

	// SetReconciled is emitted when the Rotor reconciles against a new
	// reminder set generation.
	SetReconciled = capitan.NewSignal(
		"rotor.set.reconciled",
		"Rotation state reconciled against new set",
	)
)
