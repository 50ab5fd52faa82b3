package rotor

import (
	"testing"
	"time"
)

func TestSource_LoadValid(t *testing.T) {
	payload := `[
		{"text": "Check dashboards", "category": "DevOps", "priority": "high", "time_range": "09:00-17:00", "days": ["monday", "friday"]},
		{"text": "Stretch", "priority": "urgent"},
		{"text": "Stand up", "priority": "important", "time_range": "morning"},
		{"text": "Plain"}
	]`

	set, defects, err := NewSource().Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(defects) != 0 {
		t.Fatalf("expected no defects, got %v", defects)
	}
	if set.Len() != 4 {
		t.Fatalf("expected 4 reminders, got %d", set.Len())
	}

	first := set.Reminder(0)
	if first.Text != "Check dashboards" || first.Category != "DevOps" {
		t.Errorf("unexpected first reminder: %+v", first)
	}
	if first.Priority != PriorityHigh {
		t.Errorf("expected high priority, got %v", first.Priority)
	}
	if first.Window == nil || first.Window.Start != 9*60 || first.Window.End != 17*60 {
		t.Errorf("unexpected window: %+v", first.Window)
	}
	if first.Days == nil || !first.Days.Contains(time.Monday) || !first.Days.Contains(time.Friday) || first.Days.Contains(time.Tuesday) {
		t.Errorf("unexpected days: %+v", first.Days)
	}

	if set.Reminder(1).Priority != PriorityHigh {
		t.Errorf("alias urgent should map to high, got %v", set.Reminder(1).Priority)
	}
	if set.Reminder(2).Priority != PriorityMedium {
		t.Errorf("alias important should map to medium, got %v", set.Reminder(2).Priority)
	}
	if w := set.Reminder(2).Window; w == nil || w.Start != 6*60 || w.End != 12*60 {
		t.Errorf("named range morning not applied: %+v", w)
	}

	plain := set.Reminder(3)
	if plain.Priority != PriorityLow {
		t.Errorf("absent priority should default to low, got %v", plain.Priority)
	}
	if plain.Window != nil || plain.Days != nil {
		t.Errorf("expected unconstrained reminder, got %+v", plain)
	}
}

func TestSource_MalformedEntryResilience(t *testing.T) {
	payload := `[
		{"text": "one"},
		{"text": "two"},
		{"text": "three"},
		{"category": "orphan"},
		{"text": "four"},
		{"text": "five"}
	]`

	set, defects, err := NewSource().Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 5 {
		t.Errorf("expected 5 reminders loaded, got %d", set.Len())
	}
	if len(defects) != 1 {
		t.Fatalf("expected 1 defect, got %d", len(defects))
	}
	if defects[0].Index != 3 || defects[0].Kind != DefectMissingText {
		t.Errorf("unexpected defect: %+v", defects[0])
	}
	if !defects[0].Excluded() {
		t.Error("missing text defect should exclude the entry")
	}
}

func TestSource_StructuralFailure(t *testing.T) {
	for _, payload := range []string{
		`{"text": "not a sequence"}`,
		`not parseable at all`,
		`42`,
	} {
		if _, _, err := NewSource().Load([]byte(payload)); err == nil {
			t.Errorf("expected structural error for %q", payload)
		}
	}
}

func TestSource_NullAndEmptyPayloadsRejected(t *testing.T) {
	jsonSrc := NewSource()
	for _, payload := range []string{`null`, ``} {
		if _, _, err := jsonSrc.Load([]byte(payload)); err == nil {
			t.Errorf("expected structural error for JSON payload %q", payload)
		}
	}

	yamlSrc := NewSource().Codec(YAMLCodec{})
	for _, payload := range []string{``, `null`, "# only a comment\n"} {
		if _, _, err := yamlSrc.Load([]byte(payload)); err == nil {
			t.Errorf("expected structural error for YAML payload %q", payload)
		}
	}
}

func TestSource_ExplicitEmptyListIsValid(t *testing.T) {
	set, defects, err := NewSource().Load([]byte(`[]`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(defects) != 0 {
		t.Errorf("expected no defects, got %v", defects)
	}
	if set.Len() != 0 {
		t.Errorf("expected empty set, got %d reminders", set.Len())
	}

	set, _, err = NewSource().Codec(YAMLCodec{}).Load([]byte(`[]`))
	if err != nil {
		t.Fatalf("YAML Load failed: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("expected empty set from YAML, got %d reminders", set.Len())
	}
}

func TestSource_NonObjectElement(t *testing.T) {
	payload := `[{"text": "keep"}, 17, {"text": "also keep"}]`

	set, defects, err := NewSource().Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 2 {
		t.Errorf("expected 2 reminders, got %d", set.Len())
	}
	if len(defects) != 1 || defects[0].Kind != DefectMalformedEntry || defects[0].Index != 1 {
		t.Errorf("unexpected defects: %+v", defects)
	}
}

func TestSource_BadTimeRangeExcluded(t *testing.T) {
	payload := `[{"text": "ok"}, {"text": "bad window", "time_range": "9am-5pm"}]`

	set, defects, err := NewSource().Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 1 {
		t.Errorf("expected entry with bad time range excluded, got %d reminders", set.Len())
	}
	if len(defects) != 1 || defects[0].Kind != DefectBadTimeRange {
		t.Errorf("unexpected defects: %+v", defects)
	}
}

func TestSource_BadDayExcluded(t *testing.T) {
	payload := `[{"text": "bad day", "days": ["monday", "funday"]}]`

	set, defects, err := NewSource().Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 0 {
		t.Errorf("expected entry excluded, got %d reminders", set.Len())
	}
	if len(defects) != 1 || defects[0].Kind != DefectBadDay {
		t.Errorf("unexpected defects: %+v", defects)
	}
}

func TestSource_UnknownPriorityDefaulted(t *testing.T) {
	payload := `[{"text": "odd", "priority": "extreme"}]`

	set, defects, err := NewSource().Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Len() != 1 {
		t.Fatalf("entry with unknown priority should be kept, got %d reminders", set.Len())
	}
	if set.Reminder(0).Priority != PriorityLow {
		t.Errorf("expected low priority default, got %v", set.Reminder(0).Priority)
	}
	if len(defects) != 1 || defects[0].Kind != DefectUnknownPriority {
		t.Fatalf("unexpected defects: %+v", defects)
	}
	if defects[0].Excluded() {
		t.Error("unknown priority should not exclude the entry")
	}
}

func TestSource_CaseInsensitiveDays(t *testing.T) {
	payload := `[{"text": "mixed case", "days": ["Monday", " FRIDAY "]}]`

	set, defects, err := NewSource().Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(defects) != 0 {
		t.Fatalf("expected no defects, got %v", defects)
	}
	days := set.Reminder(0).Days
	if days == nil || !days.Contains(time.Monday) || !days.Contains(time.Friday) {
		t.Errorf("unexpected days: %+v", days)
	}
}

func TestSource_GenerationAndFingerprint(t *testing.T) {
	src := NewSource()

	a, _, err := src.Load([]byte(`[{"text": "a"}]`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	b, _, err := src.Load([]byte(`[{"text": "a"}]`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	c, _, err := src.Load([]byte(`[{"text": "changed"}]`))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if a.Generation() != 1 || b.Generation() != 2 || c.Generation() != 3 {
		t.Errorf("generations not monotonic: %d %d %d", a.Generation(), b.Generation(), c.Generation())
	}
	if a.Fingerprint() != b.Fingerprint() {
		t.Error("identical payloads should share a fingerprint")
	}
	if a.Fingerprint() == c.Fingerprint() {
		t.Error("different payloads should not share a fingerprint")
	}
}

func TestSource_YAMLCodec(t *testing.T) {
	payload := `
- text: Review alerts
  priority: high
  time_range: "09:00-17:00"
  days: [monday, tuesday]
- text: Hydrate
`

	set, defects, err := NewSource().Codec(YAMLCodec{}).Load([]byte(payload))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(defects) != 0 {
		t.Fatalf("expected no defects, got %v", defects)
	}
	if set.Len() != 2 {
		t.Fatalf("expected 2 reminders, got %d", set.Len())
	}
	if set.Reminder(0).Priority != PriorityHigh {
		t.Errorf("expected high priority, got %v", set.Reminder(0).Priority)
	}
}

func TestDefaultPayload_LoadsClean(t *testing.T) {
	set, defects, err := NewSource().Load(DefaultPayload())
	if err != nil {
		t.Fatalf("default payload failed to load: %v", err)
	}
	if len(defects) != 0 {
		t.Fatalf("default payload has defects: %v", defects)
	}
	if set.Len() != 5 {
		t.Errorf("expected 5 seed reminders, got %d", set.Len())
	}
}

func TestReminder_IdentityTracksContent(t *testing.T) {
	a := Reminder{Text: "same", Category: "x"}
	b := Reminder{Text: "same", Category: "x"}
	c := Reminder{Text: "same", Category: "y"}

	if a.Identity() != b.Identity() {
		t.Error("identical definitions should share identity")
	}
	if a.Identity() == c.Identity() {
		t.Error("differing definitions should not share identity")
	}

	w := TimeWindow{Start: 60, End: 120}
	d := Reminder{Text: "same", Category: "x", Window: &w}
	if a.Identity() == d.Identity() {
		t.Error("window should participate in identity")
	}
}
