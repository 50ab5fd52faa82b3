package rotor

import "context"

// Reload carries a parsed reminder set through the processing pipeline.
// It provides access to both the previous and new snapshots, allowing
// pipeline stages to make decisions based on what changed.
type Reload struct {
	// Previous is the last successfully applied set.
	// On initial load, this is nil.
	Previous *Set

	// Current is the newly parsed snapshot. Pipeline stages may replace
	// this value before it is reconciled and stored.
	Current *Set

	// Defects are the per-entry problems recorded while loading Current.
	Defects []Defect

	// Raw contains the original payload bytes received from the watcher.
	// This is useful for debugging or logging purposes.
	Raw []byte
}

// Reducer merges the reminder lists of multiple sources into a single list.
// It receives the previous per-source snapshots (nil on first call) and the
// current ones, in the same order as the sources were provided.
type Reducer func(ctx context.Context, prev, curr []*Set) ([]Reminder, error)

// ConcatReducer is the default Reducer: it concatenates the source lists in
// source order, so earlier sources rotate first.
func ConcatReducer(_ context.Context, _, curr []*Set) ([]Reminder, error) {
	var merged []Reminder
	for _, s := range curr {
		merged = append(merged, s.Reminders()...)
	}
	return merged, nil
}
