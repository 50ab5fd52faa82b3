package rotor

import "time"

// MetricsProvider allows integration with metrics systems like Prometheus, StatsD, etc.
// Implement this interface to receive callbacks on key coordinator and rotor events.
type MetricsProvider interface {
	// OnStateChange is called when the coordinator transitions between states.
	OnStateChange(from, to State)

	// OnReloadSuccess is called when a payload is successfully loaded and
	// applied. Duration is the time taken to load, validate, and reconcile.
	OnReloadSuccess(duration time.Duration)

	// OnReloadFailure is called when a reload fails at any stage.
	// Stage indicates where the failure occurred: "load" or "apply".
	OnReloadFailure(stage string, duration time.Duration)

	// OnChangeReceived is called when raw bytes are received from the watcher.
	OnChangeReceived()

	// OnRotation is called when the rotor advances to the next eligible
	// reminder. Position is the new zero-based position, eligible the size
	// of the eligible subset.
	OnRotation(position, eligible int)
}

// NoOpMetricsProvider is a no-op implementation of MetricsProvider.
// Use this as an embedded type to implement only the methods you need.
type NoOpMetricsProvider struct{}

func (NoOpMetricsProvider) OnStateChange(_, _ State)                  {}
func (NoOpMetricsProvider) OnReloadSuccess(_ time.Duration)           {}
func (NoOpMetricsProvider) OnReloadFailure(_ string, _ time.Duration) {}
func (NoOpMetricsProvider) OnChangeReceived()                         {}
func (NoOpMetricsProvider) OnRotation(_, _ int)                       {}
