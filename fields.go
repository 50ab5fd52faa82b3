package rotor

import "github.com/zoobzio/capitan"

// Field keys for Coordinator and Rotor events.
var (
	// KeyState is the current state of the Coordinator.
	KeyState = capitan.NewStringKey("state")

	// KeyOldState is the previous state before a transition.
	KeyOldState = capitan.NewStringKey("old_state")

	// KeyNewState is the new state after a transition.
	KeyNewState = capitan.NewStringKey("new_state")

	// KeyError is the error message when an operation fails.
	KeyError = capitan.NewStringKey("error")

	// KeyDebounce is the configured debounce duration.
	KeyDebounce = capitan.NewDurationKey("debounce")

	// KeyInterval is the configured rotation interval.
	KeyInterval = capitan.NewDurationKey("interval")

	// KeyGeneration is the reminder set generation.
	KeyGeneration = capitan.NewIntKey("generation")

	// KeyFingerprint is the content fingerprint of the reminder set.
	KeyFingerprint = capitan.NewStringKey("fingerprint")

	// KeyDefects is the number of entry defects recorded by a load.
	KeyDefects = capitan.NewIntKey("defects")

	// KeyEligible is the number of currently eligible reminders.
	KeyEligible = capitan.NewIntKey("eligible")

	// KeyTotal is the total number of reminders in the set.
	KeyTotal = capitan.NewIntKey("total")

	// KeyPosition is the current position within the eligible subset.
	KeyPosition = capitan.NewIntKey("position")

	// KeySource is the index of a source in a composite coordinator.
	KeySource = capitan.NewIntKey("source")
)
