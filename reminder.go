package rotor

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Priority indicates how prominently a reminder should be rendered.
type Priority int

const (
	// PriorityLow is the default for entries that omit a priority.
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns the wire representation of the priority.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	case PriorityLow:
		return "low"
	default:
		return "unknown"
	}
}

// parsePriority maps a wire lexeme to a Priority. The aliases "urgent",
// "important" and "info" are accepted alongside the canonical names.
// Unrecognized lexemes report ok=false and default to PriorityLow.
func parsePriority(s string) (Priority, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high", "urgent":
		return PriorityHigh, true
	case "medium", "important":
		return PriorityMedium, true
	case "low", "info":
		return PriorityLow, true
	default:
		return PriorityLow, false
	}
}

// DaySet is a set of weekdays, one bit per time.Weekday.
type DaySet uint8

// NewDaySet builds a DaySet containing the given weekdays.
func NewDaySet(days ...time.Weekday) DaySet {
	var s DaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Contains reports whether the set includes the given weekday.
func (s DaySet) Contains(d time.Weekday) bool {
	return s&(1<<uint(d)) != 0
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// TimeWindow is a half-open daily time window [Start, End) expressed in
// minutes since midnight. End < Start denotes an overnight window that wraps
// past midnight. Start == End is an empty window that matches nothing.
type TimeWindow struct {
	Start int
	End   int
}

// Named windows accepted as sugar for common ranges.
var namedWindows = map[string]TimeWindow{
	"morning":   {Start: 6 * 60, End: 12 * 60},
	"afternoon": {Start: 12 * 60, End: 17 * 60},
	"evening":   {Start: 17 * 60, End: 22 * 60},
}

// ParseTimeWindow parses a "HH:MM-HH:MM" lexeme, or one of the named windows
// "morning" (06:00-12:00), "afternoon" (12:00-17:00), "evening" (17:00-22:00).
func ParseTimeWindow(s string) (TimeWindow, error) {
	lexeme := strings.ToLower(strings.TrimSpace(s))
	if w, ok := namedWindows[lexeme]; ok {
		return w, nil
	}

	startStr, endStr, ok := strings.Cut(lexeme, "-")
	if !ok {
		return TimeWindow{}, fmt.Errorf("time range %q: want \"HH:MM-HH:MM\"", s)
	}

	start, err := parseMinuteOfDay(startStr)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("time range %q: %w", s, err)
	}
	end, err := parseMinuteOfDay(endStr)
	if err != nil {
		return TimeWindow{}, fmt.Errorf("time range %q: %w", s, err)
	}

	return TimeWindow{Start: start, End: end}, nil
}

// parseMinuteOfDay parses "HH:MM" into minutes since midnight, with both
// components range-checked.
func parseMinuteOfDay(s string) (int, error) {
	hh, mm, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return 0, fmt.Errorf("component %q: want \"HH:MM\"", s)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("component %q: bad hour", s)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("component %q: bad minute", s)
	}
	if h < 0 || h > 23 {
		return 0, fmt.Errorf("component %q: hour out of range", s)
	}
	if m < 0 || m > 59 {
		return 0, fmt.Errorf("component %q: minute out of range", s)
	}
	return h*60 + m, nil
}

// String returns the "HH:MM-HH:MM" form of the window.
func (w TimeWindow) String() string {
	return fmt.Sprintf("%02d:%02d-%02d:%02d", w.Start/60, w.Start%60, w.End/60, w.End%60)
}

// Reminder is a single validated reminder definition. Reminders are immutable
// once loaded; a configuration edit produces a new Set rather than mutating
// entries in place.
type Reminder struct {
	// Text is the display string. Never empty for loaded reminders.
	Text string

	// Category is an optional grouping label. Empty means uncategorized.
	Category string

	// Priority controls presentation emphasis. Defaults to PriorityLow.
	Priority Priority

	// Window restricts display to a daily time window. Nil means all day.
	Window *TimeWindow

	// Days restricts display to certain weekdays. Nil means every day.
	// A non-nil empty set matches no day.
	Days *DaySet
}

// Identity returns a content hash of the definition. Reconciliation after a
// reload matches the reminder on display by identity rather than by list
// index, so reordering or editing unrelated entries does not move the
// selection.
func (r Reminder) Identity() string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%d\x00", r.Text, r.Category, r.Priority)
	if r.Window != nil {
		fmt.Fprintf(h, "%d-%d", r.Window.Start, r.Window.End)
	}
	h.Write([]byte{0})
	if r.Days != nil {
		fmt.Fprintf(h, "%d", *r.Days)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:12])
}
