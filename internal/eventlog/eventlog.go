// Package eventlog holds the immutable, timestamp-ordered telemetry log that
// the replay engine walks.
package eventlog

import (
	"slices"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// Log is a timestamp-sorted, read-only sequence of events.
type Log struct {
	events []model.Event
}

// New copies events and sorts the copy ascending by timestamp. The sort is
// stable: events sharing a timestamp keep their arrival order.
func New(events []model.Event) *Log {
	sorted := slices.Clone(events)
	slices.SortStableFunc(sorted, func(a, b model.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
	return &Log{events: sorted}
}

// FromSorted wraps events that are already in log order, such as a log
// restored from a checkpoint. The slice is copied.
func FromSorted(events []model.Event) *Log {
	return &Log{events: slices.Clone(events)}
}

// Len returns the number of events in the log.
func (l *Log) Len() int {
	return len(l.events)
}

// At returns the event at index i.
func (l *Log) At(i int) model.Event {
	return l.events[i]
}

// Events returns a copy of the full log.
func (l *Log) Events() []model.Event {
	return slices.Clone(l.events)
}

// Start returns the timestamp of the first event, or fallback for an empty log.
func (l *Log) Start(fallback time.Time) time.Time {
	if len(l.events) == 0 {
		return fallback
	}
	return l.events[0].Timestamp
}

// IsSorted reports whether the log is non-decreasing by timestamp.
func IsSorted(events []model.Event) bool {
	return slices.IsSortedFunc(events, func(a, b model.Event) int {
		return a.Timestamp.Compare(b.Timestamp)
	})
}
