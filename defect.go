package rotor

import "fmt"

// DefectKind classifies a per-entry validation defect.
type DefectKind int

const (
	// DefectMalformedEntry means the entry was not an object of the expected
	// shape. The entry is excluded.
	DefectMalformedEntry DefectKind = iota

	// DefectMissingText means the required text field was absent or empty.
	// The entry is excluded.
	DefectMissingText

	// DefectBadDay means a days value was not a known weekday name.
	// The entry is excluded.
	DefectBadDay

	// DefectBadTimeRange means the time_range lexeme did not parse or a
	// component was out of range. The entry is excluded.
	DefectBadTimeRange

	// DefectUnknownPriority means the priority lexeme was not recognized.
	// The entry is kept with PriorityLow.
	DefectUnknownPriority
)

// String returns the defect kind name.
func (k DefectKind) String() string {
	switch k {
	case DefectMalformedEntry:
		return "malformed_entry"
	case DefectMissingText:
		return "missing_text"
	case DefectBadDay:
		return "bad_day"
	case DefectBadTimeRange:
		return "bad_time_range"
	case DefectUnknownPriority:
		return "unknown_priority"
	default:
		return "unknown"
	}
}

// Defect records a problem with a single entry in a loaded payload. Defects
// are surfaced for observability (status bars, logs); they never abort the
// load of the remaining entries.
type Defect struct {
	// Index is the entry's position in the source payload.
	Index int

	// Kind classifies the defect.
	Kind DefectKind

	// Detail is a human-readable description.
	Detail string
}

// Excluded reports whether the defect caused the entry to be dropped from
// the loaded set. Unknown priorities are defaulted rather than dropped.
func (d Defect) Excluded() bool {
	return d.Kind != DefectUnknownPriority
}

// Error implements the error interface so defects can flow through error
// channels and handlers.
func (d Defect) Error() string {
	return fmt.Sprintf("entry %d: %s: %s", d.Index, d.Kind, d.Detail)
}
