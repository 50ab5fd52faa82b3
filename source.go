package rotor

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/go-playground/validator/v10"
)

// validate is the shared validator instance.
var validate = validator.New()

// entry is the wire shape of a single reminder in the payload.
type entry struct {
	Text      string   `json:"text" validate:"required"`
	Category  string   `json:"category,omitempty"`
	Priority  string   `json:"priority,omitempty"`
	TimeRange *string  `json:"time_range,omitempty"`
	Days      []string `json:"days,omitempty" validate:"omitempty,dive,oneof=sunday monday tuesday wednesday thursday friday saturday"`
}

// Source parses reminder payloads into generation-tagged snapshots.
// Each successful Load increments the generation, regardless of whether the
// content actually changed; callers that want change detection compare
// fingerprints.
type Source struct {
	codec Codec
	gen   atomic.Uint64
}

// NewSource creates a Source using JSONCodec.
func NewSource() *Source {
	return &Source{codec: JSONCodec{}}
}

// Codec sets the codec for deserializing payloads. Default: JSONCodec.
func (s *Source) Codec(codec Codec) *Source {
	s.codec = codec
	return s
}

// Load parses a payload into a Set.
//
// A payload whose top-level structure is not a sequence fails the whole load
// and returns an error; no Set is produced. A malformed individual entry is
// recorded as a Defect and excluded (or, for unknown priorities, defaulted)
// without failing the load, so one bad edit cannot blank the display. The
// returned defect list is always complete even when it is non-empty and the
// load succeeds.
func (s *Source) Load(raw []byte) (*Set, []Defect, error) {
	reminders, defects, err := parseReminders(s.codec, raw)
	if err != nil {
		return nil, nil, err
	}
	return newSet(s.gen.Add(1), raw, reminders), defects, nil
}

// parseReminders decodes and validates a payload into reminders plus the
// defects recorded along the way.
func parseReminders(codec Codec, raw []byte) ([]Reminder, []Defect, error) {
	items, err := decodeSequence(codec, raw)
	if err != nil {
		return nil, nil, err
	}

	reminders := make([]Reminder, 0, len(items))
	var defects []Defect

	for i, item := range items {
		r, entryDefects := buildReminder(i, item)
		defects = append(defects, entryDefects...)
		if excluded(entryDefects) {
			continue
		}
		reminders = append(reminders, r)
	}

	return reminders, defects, nil
}

// decodeSequence decodes the payload's top-level sequence. Failure here is
// structural: the whole load is rejected.
func decodeSequence(codec Codec, raw []byte) ([]any, error) {
	var items []any
	if err := codec.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("payload is not a sequence: %w", err)
	}
	// A null or empty document decodes to nil without error. Only an
	// explicit sequence counts; an empty list must be spelled [].
	if items == nil {
		return nil, fmt.Errorf("payload is not a sequence")
	}
	return items, nil
}

// excluded reports whether any defect drops the entry from the set.
func excluded(defects []Defect) bool {
	for _, d := range defects {
		if d.Excluded() {
			return true
		}
	}
	return false
}

// buildReminder converts one decoded sequence element into a Reminder,
// collecting defects along the way. The returned Reminder is only meaningful
// when no returned defect is excluding.
func buildReminder(index int, item any) (Reminder, []Defect) {
	obj, ok := item.(map[string]any)
	if !ok {
		return Reminder{}, []Defect{{
			Index:  index,
			Kind:   DefectMalformedEntry,
			Detail: fmt.Sprintf("expected an object, got %T", item),
		}}
	}

	// Round-trip through JSON to get typed fields with per-entry leniency:
	// a type mismatch here taints only this entry, not the whole payload.
	var e entry
	data, err := json.Marshal(obj)
	if err == nil {
		err = json.Unmarshal(data, &e)
	}
	if err != nil {
		return Reminder{}, []Defect{{
			Index:  index,
			Kind:   DefectMalformedEntry,
			Detail: err.Error(),
		}}
	}

	for i, d := range e.Days {
		e.Days[i] = strings.ToLower(strings.TrimSpace(d))
	}

	var defects []Defect
	if err := validate.Struct(e); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return Reminder{}, []Defect{{Index: index, Kind: DefectMalformedEntry, Detail: err.Error()}}
		}
		for _, fe := range verrs {
			switch {
			case fe.StructField() == "Text":
				defects = append(defects, Defect{Index: index, Kind: DefectMissingText, Detail: "text is required"})
			case strings.HasPrefix(fe.StructField(), "Days"):
				defects = append(defects, Defect{
					Index:  index,
					Kind:   DefectBadDay,
					Detail: fmt.Sprintf("unknown weekday %q", fe.Value()),
				})
			default:
				defects = append(defects, Defect{Index: index, Kind: DefectMalformedEntry, Detail: fe.Error()})
			}
		}
		return Reminder{}, defects
	}
	if strings.TrimSpace(e.Text) == "" {
		return Reminder{}, []Defect{{Index: index, Kind: DefectMissingText, Detail: "text is required"}}
	}

	r := Reminder{
		Text:     e.Text,
		Category: e.Category,
	}

	if p := strings.TrimSpace(e.Priority); p != "" {
		priority, known := parsePriority(p)
		r.Priority = priority
		if !known {
			defects = append(defects, Defect{
				Index:  index,
				Kind:   DefectUnknownPriority,
				Detail: fmt.Sprintf("unknown priority %q, defaulting to low", e.Priority),
			})
		}
	}

	if e.TimeRange != nil && strings.TrimSpace(*e.TimeRange) != "" {
		w, err := ParseTimeWindow(*e.TimeRange)
		if err != nil {
			defects = append(defects, Defect{Index: index, Kind: DefectBadTimeRange, Detail: err.Error()})
			return Reminder{}, defects
		}
		r.Window = &w
	}

	if e.Days != nil {
		days := NewDaySet()
		for _, name := range e.Days {
			days |= NewDaySet(weekdayNames[name])
		}
		r.Days = &days
	}

	return r, defects
}

// DefaultPayload returns a starter reminder payload in JSON form. Callers
// bootstrapping a missing reminder file can write these bytes; the core
// itself never touches the filesystem except through watchers.
func DefaultPayload() []byte {
	weekdays := []string{"monday", "tuesday", "wednesday", "thursday", "friday"}
	seed := []entry{
		{Text: "Check your monitoring dashboards", Category: "DevOps", Priority: "high", TimeRange: ptr("09:00-17:00"), Days: weekdays},
		{Text: "Review and respond to alerts", Category: "DevOps", Priority: "high", TimeRange: ptr("09:00-17:00"), Days: weekdays},
		{Text: "Take a 5-minute break and stretch", Category: "Health", Priority: "medium"},
		{Text: "Check backup status and logs", Category: "DevOps", Priority: "medium", TimeRange: ptr("morning"), Days: []string{"monday", "wednesday", "friday"}},
		{Text: "Review security alerts and patches", Category: "Security", Priority: "high", TimeRange: ptr("morning"), Days: []string{"monday", "thursday"}},
	}
	data, _ := json.MarshalIndent(seed, "", "  ") //nolint:errcheck // Static value always marshals
	return data
}

func ptr(s string) *string {
	return &s
}
