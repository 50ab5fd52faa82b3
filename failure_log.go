package rotor

import (
	"sync"
	"time"
)

// LoadFailure records one failed reload attempt.
type LoadFailure struct {
	// At is when the failure was observed, per the Coordinator's clock.
	At time.Time

	// Err is the structural or pipeline error that rejected the payload.
	Err error
}

// failureLog is a thread-safe ring buffer of recent load failures. It backs
// the Coordinator's FailureHistory() so a status display can show why the
// list on screen is stale.
type failureLog struct {
	mu       sync.RWMutex
	failures []LoadFailure
	size     int
	head     int
	count    int
}

// newFailureLog creates a failure log with the given capacity.
// If size is 0, the log is disabled and only LastError() is tracked.
func newFailureLog(size int) *failureLog {
	if size <= 0 {
		return nil
	}
	return &failureLog{
		failures: make([]LoadFailure, size),
		size:     size,
	}
}

// push records a failed reload, evicting the oldest record when full.
func (l *failureLog) push(at time.Time, err error) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	l.failures[l.head] = LoadFailure{At: at, Err: err}
	l.head = (l.head + 1) % l.size
	if l.count < l.size {
		l.count++
	}
}

// clear discards all recorded failures. Called after a successful reload so
// the history only describes the current bad streak.
func (l *failureLog) clear() {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.failures {
		l.failures[i] = LoadFailure{}
	}
	l.head = 0
	l.count = 0
}

// all returns the recorded failures, oldest first.
func (l *failureLog) all() []LoadFailure {
	if l == nil {
		return nil
	}
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.count == 0 {
		return nil
	}

	result := make([]LoadFailure, l.count)
	start := (l.head - l.count + l.size) % l.size
	for i := 0; i < l.count; i++ {
		result[i] = l.failures[(start+i)%l.size]
	}
	return result
}
