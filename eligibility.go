package rotor

import "time"

// EligibleAt reports whether the reminder may be displayed at the given
// instant. The check is pure: it reads only the definition and the supplied
// time, never a wall clock.
//
// A reminder is eligible iff its day constraint and its time constraint both
// hold; an absent constraint always holds. A reminder with neither constraint
// is eligible at every instant.
func (r Reminder) EligibleAt(now time.Time) bool {
	if r.Days != nil && !r.Days.Contains(now.Weekday()) {
		return false
	}
	if r.Window != nil && !r.Window.Contains(now) {
		return false
	}
	return true
}

// Contains reports whether the instant's time of day falls within the window.
//
// The window is half-open: the start minute is in, the end minute is out, so
// "09:00-17:00" covers 09:00 through 16:59. When End < Start the window wraps
// past midnight and covers [Start, 24:00) plus [00:00, End). When Start == End
// the window is empty and matches nothing.
func (w TimeWindow) Contains(now time.Time) bool {
	t := now.Hour()*60 + now.Minute()
	if w.Start <= w.End {
		return t >= w.Start && t < w.End
	}
	return t >= w.Start || t < w.End
}
