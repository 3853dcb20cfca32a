// Package replay advances a session's cursor through its sorted event log and
// applies each due event to the matching trip.
package replay

import (
	"log/slog"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// Engine applies due events to a session. It holds no session state of its
// own besides a trip-id index, rebuilt whenever the session's trip slice is
// replaced.
type Engine struct {
	logger *slog.Logger

	index     map[string]int
	indexedAt *model.Trip
	indexedN  int
}

// NewEngine creates an Engine. A nil logger falls back to slog.Default().
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{logger: logger}
}

// AdvanceTo applies, in log order, every event from the session cursor whose
// timestamp is at or before at. The scan stops at the first later event.
// Events that reference no known trip are consumed without effect. The newly
// consumed events are appended to s.AppliedEvents and returned.
func (e *Engine) AdvanceTo(s *model.Session, at time.Time) []model.Event {
	start := s.CursorIndex
	log := s.FullEventLog

	for s.CursorIndex < len(log) && !log[s.CursorIndex].Timestamp.After(at) {
		e.apply(s, log[s.CursorIndex])
		s.CursorIndex++
	}
	if s.CursorIndex == start {
		return nil
	}

	batch := log[start:s.CursorIndex:s.CursorIndex]
	s.AppliedEvents = append(s.AppliedEvents, batch...)
	return batch
}

func (e *Engine) apply(s *model.Session, ev model.Event) {
	if ev.TripID == "" {
		e.logger.Warn("skipping event without trip id", "type", ev.Type, "timestamp", ev.Timestamp)
		return
	}
	i, ok := e.lookup(s.Trips, ev.TripID)
	if !ok {
		e.logger.Warn("skipping event for unknown trip", "trip_id", ev.TripID, "type", ev.Type)
		return
	}
	if !Apply(&s.Trips[i], ev) {
		e.logger.Debug("ignoring unrecognized event type", "trip_id", ev.TripID, "type", ev.Type)
	}
}

func (e *Engine) lookup(trips []model.Trip, id string) (int, bool) {
	var head *model.Trip
	if len(trips) > 0 {
		head = &trips[0]
	}
	if e.index == nil || head != e.indexedAt || len(trips) != e.indexedN {
		e.index = make(map[string]int, len(trips))
		for i, t := range trips {
			if _, dup := e.index[t.ID]; !dup {
				e.index[t.ID] = i
			}
		}
		e.indexedAt = head
		e.indexedN = len(trips)
	}
	i, ok := e.index[id]
	return i, ok
}
