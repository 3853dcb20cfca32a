// Package playback drives a session forward in virtual time at a fixed
// wall-clock cadence.
package playback

import (
	"math"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/replay"
)

// Defaults for the tick cadence: every second of wall time advances the
// virtual clock by one minute at 1x speed.
const (
	DefaultInterval = time.Second
	DefaultStep     = time.Minute
)

// MaxClock is the latest virtual time a tick moves to; later times have no
// RFC 3339 encoding.
var MaxClock = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// Step performs one tick against s: it advances the virtual clock by
// step x speed, applies every event now due, and stops playback once the log
// is exhausted. It returns the applied batch and whether playback finished.
func Step(e *replay.Engine, s *model.Session, step time.Duration) ([]model.Event, bool) {
	next := s.VirtualClock.Add(advance(step, s.Speed))
	if next.After(MaxClock) && !s.VirtualClock.After(MaxClock) {
		next = MaxClock
	}
	s.VirtualClock = next
	applied := e.AdvanceTo(s, s.VirtualClock)
	if s.Exhausted() {
		s.IsPlaying = false
		return applied, true
	}
	return applied, false
}

// advance returns step x speed, saturating instead of wrapping when the
// product does not fit in a Duration.
func advance(step time.Duration, speed float64) time.Duration {
	d := float64(step) * speed
	switch {
	case math.IsNaN(d) || d <= 0:
		return 0
	case d >= math.MaxInt64:
		return math.MaxInt64
	}
	return time.Duration(d)
}
