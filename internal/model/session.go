package model

import "time"

// DefaultEpoch is the virtual clock used when a session has an empty log.
var DefaultEpoch = time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

// Session is the unit of persistence: everything needed to resume a replay
// exactly where it left off.
type Session struct {
	ID            string    `json:"id,omitempty"`
	Trips         []Trip    `json:"trips"`
	AppliedEvents []Event   `json:"applied_events"`
	FullEventLog  []Event   `json:"full_event_log"`
	CursorIndex   int       `json:"cursor_index"`
	VirtualClock  time.Time `json:"virtual_clock"`
	Speed         float64   `json:"speed"`
	IsPlaying     bool      `json:"is_playing"`
}

// Exhausted reports whether every event in the log has been applied.
func (s *Session) Exhausted() bool {
	return s.CursorIndex >= len(s.FullEventLog)
}

// Clone returns a deep copy of the session's mutable parts. Events are
// immutable and shared.
func (s *Session) Clone() *Session {
	c := *s
	c.Trips = make([]Trip, len(s.Trips))
	for i, t := range s.Trips {
		c.Trips[i] = t.Clone()
	}
	c.AppliedEvents = append([]Event(nil), s.AppliedEvents...)
	c.FullEventLog = append([]Event(nil), s.FullEventLog...)
	return &c
}

// Dataset is the initial document delivered by a data source.
type Dataset struct {
	Trips  []Trip  `json:"trips"`
	Events []Event `json:"events"`
}
