package session

import (
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// State is a read-only copy of the session for the presentation layer.
type State struct {
	SessionID     string             `json:"session_id"`
	Trips         []model.Trip       `json:"trips"`
	AppliedEvents []model.Event      `json:"applied_events,omitempty"`
	CurrentTime   time.Time          `json:"current_time"`
	IsPlaying     bool               `json:"is_playing"`
	Speed         float64            `json:"speed"`
	CursorIndex   int                `json:"cursor_index"`
	LogLength     int                `json:"log_length"`
	Finished      bool               `json:"finished"`
	Metrics       model.FleetMetrics `json:"metrics"`
}

// WithoutEvents returns a copy of st without the applied event list.
func (st State) WithoutEvents() State {
	st.AppliedEvents = nil
	return st
}

// Snapshot returns a deep copy of the current session.
func (m *Manager) Snapshot() (*State, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrNotStarted
	}
	c := m.session.Clone()
	return &State{
		SessionID:     c.ID,
		Trips:         c.Trips,
		AppliedEvents: c.AppliedEvents,
		CurrentTime:   c.VirtualClock,
		IsPlaying:     c.IsPlaying,
		Speed:         c.Speed,
		CursorIndex:   c.CursorIndex,
		LogLength:     len(c.FullEventLog),
		Finished:      c.Exhausted(),
		Metrics:       model.ComputeFleetMetrics(c.Trips),
	}, nil
}

// Trip returns a copy of one trip.
func (m *Manager) Trip(id string) (model.Trip, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return model.Trip{}, false, ErrNotStarted
	}
	for _, t := range m.session.Trips {
		if t.ID == id {
			return t.Clone(), true, nil
		}
	}
	return model.Trip{}, false, nil
}

// RecentEvents returns up to limit of the most recently applied events,
// oldest first. A non-positive limit returns them all.
func (m *Manager) RecentEvents(limit int) ([]model.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrNotStarted
	}
	applied := m.session.AppliedEvents
	if limit > 0 && len(applied) > limit {
		applied = applied[len(applied)-limit:]
	}
	return append([]model.Event{}, applied...), nil
}

// Metrics computes the fleet summary over the current trips.
func (m *Manager) Metrics() (model.FleetMetrics, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return model.FleetMetrics{}, ErrNotStarted
	}
	return model.ComputeFleetMetrics(m.session.Trips), nil
}

// Export returns a deep copy of the raw session, for archiving.
func (m *Manager) Export() (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return nil, ErrNotStarted
	}
	return m.session.Clone(), nil
}
