package rotor

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// Set is an ordered, immutable snapshot of reminder definitions tagged with
// a generation counter and a content fingerprint of the payload it was built
// from. A superseded Set is discarded once the Rotor has reconciled against
// its successor.
type Set struct {
	generation  uint64
	fingerprint string
	reminders   []Reminder
}

// newSet builds a snapshot over the given reminders. The reminders slice is
// owned by the Set after the call.
func newSet(generation uint64, raw []byte, reminders []Reminder) *Set {
	sum := sha256.Sum256(raw)
	return &Set{
		generation:  generation,
		fingerprint: hex.EncodeToString(sum[:]),
		reminders:   reminders,
	}
}

// Generation returns the monotonically increasing counter identifying this
// snapshot within its Source.
func (s *Set) Generation() uint64 {
	return s.generation
}

// Fingerprint returns the hex content hash of the payload the Set was built
// from. Two loads of identical bytes share a fingerprint.
func (s *Set) Fingerprint() string {
	return s.fingerprint
}

// Len returns the number of reminders in the snapshot.
func (s *Set) Len() int {
	if s == nil {
		return 0
	}
	return len(s.reminders)
}

// Reminder returns the definition at the given index in source order.
func (s *Set) Reminder(i int) Reminder {
	return s.reminders[i]
}

// Reminders returns a copy of the definitions in source order.
func (s *Set) Reminders() []Reminder {
	out := make([]Reminder, len(s.reminders))
	copy(out, s.reminders)
	return out
}

// EligibleIndices returns the indices of reminders eligible at the given
// instant, in source order.
func (s *Set) EligibleIndices(now time.Time) []int {
	if s == nil {
		return nil
	}
	var out []int
	for i, r := range s.reminders {
		if r.EligibleAt(now) {
			out = append(out, i)
		}
	}
	return out
}
