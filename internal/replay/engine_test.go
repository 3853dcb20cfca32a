package replay

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

var t0 = time.Date(2025, 11, 3, 10, 0, 0, 0, time.UTC)

func at(minutes int) time.Time {
	return t0.Add(time.Duration(minutes) * time.Minute)
}

func ev(minutes int, trip string, payload model.Payload, typ model.EventType) model.Event {
	return model.Event{TripID: trip, Timestamp: at(minutes), Type: typ, Payload: payload}
}

// newSession builds a session with two trips and a representative log.
func newSession() *model.Session {
	return &model.Session{
		Trips: []model.Trip{
			{ID: "A", TotalDistance: 100, Status: model.StatusScheduled, Alerts: []model.Alert{}},
			{ID: "B", TotalDistance: 200, Status: model.StatusScheduled, Alerts: []model.Alert{}},
		},
		FullEventLog: []model.Event{
			ev(0, "A", model.TripStarted{}, model.EventTripStarted),
			ev(0, "B", model.TripStarted{}, model.EventTripStarted),
			ev(5, "A", model.Telemetry{Distance: model.Float(50), Speed: model.Float(60)}, model.EventLocationPing),
			ev(7, "B", model.VehicleStopped{}, model.EventVehicleStopped),
			ev(9, "X", model.SignalLost{}, model.EventSignalLost),
			ev(10, "B", model.VehicleMoving{Speed: model.Float(45)}, model.EventVehicleMoving),
			ev(12, "A", model.SignalLost{}, model.EventSignalLost),
			ev(15, "A", model.SignalRecovered{}, model.EventSignalRecovered),
			ev(20, "B", model.Telemetry{Distance: model.Float(120), Fuel: model.Float(30)}, model.EventVehicleTelemetry),
			ev(25, "A", model.TripCompleted{}, model.EventTripCompleted),
			ev(30, "B", model.TripCancelled{DistanceCompleted: model.Float(130)}, model.EventTripCancelled),
		},
		VirtualClock: t0,
		Speed:        1,
	}
}

func quietEngine() *Engine {
	return NewEngine(slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func TestAdvanceTo_SortedPrefix(t *testing.T) {
	for _, minutes := range []int{-1, 0, 4, 5, 9, 17, 30, 90} {
		s := newSession()
		e := quietEngine()
		e.AdvanceTo(s, at(minutes))

		var want []model.Event
		for _, x := range s.FullEventLog {
			if !x.Timestamp.After(at(minutes)) {
				want = append(want, x)
			}
		}
		if len(s.AppliedEvents) != len(want) || s.CursorIndex != len(want) {
			t.Fatalf("T=+%dm: applied %d events (cursor %d), want %d", minutes, len(s.AppliedEvents), s.CursorIndex, len(want))
		}
		if len(want) > 0 && !reflect.DeepEqual(s.AppliedEvents, want) {
			t.Fatalf("T=+%dm: applied events differ from log prefix", minutes)
		}
	}
}

func TestAdvanceTo_ReturnsNewBatchOnly(t *testing.T) {
	s := newSession()
	e := quietEngine()

	first := e.AdvanceTo(s, at(0))
	if len(first) != 2 {
		t.Fatalf("first batch = %d events, want 2", len(first))
	}
	second := e.AdvanceTo(s, at(10))
	if len(second) != 4 {
		t.Fatalf("second batch = %d events, want 4", len(second))
	}
	if second[0].Timestamp != at(5) {
		t.Fatalf("second batch starts at %v, want %v", second[0].Timestamp, at(5))
	}
}

func TestAdvanceTo_Monotonic(t *testing.T) {
	s := newSession()
	e := quietEngine()
	prev := 0
	for m := 0; m <= 40; m += 3 {
		e.AdvanceTo(s, at(m))
		if s.CursorIndex < prev {
			t.Fatalf("cursor decreased from %d to %d", prev, s.CursorIndex)
		}
		prev = s.CursorIndex
	}
	// An earlier target never rewinds.
	e.AdvanceTo(s, at(0))
	if s.CursorIndex != prev {
		t.Fatalf("cursor moved on earlier target: %d -> %d", prev, s.CursorIndex)
	}
}

func TestAdvanceTo_DeterministicAcrossGranularity(t *testing.T) {
	big := newSession()
	quietEngine().AdvanceTo(big, at(30))

	small := newSession()
	e := quietEngine()
	for s := 0; s <= 30*60; s += 7 {
		e.AdvanceTo(small, t0.Add(time.Duration(s)*time.Second))
	}
	e.AdvanceTo(small, at(30))

	if !reflect.DeepEqual(big.Trips, small.Trips) {
		t.Fatalf("trips differ:\n big   %+v\n small %+v", big.Trips, small.Trips)
	}
	if big.CursorIndex != small.CursorIndex {
		t.Fatalf("cursor differ: %d vs %d", big.CursorIndex, small.CursorIndex)
	}
}

func TestAdvanceTo_IdempotentNoOp(t *testing.T) {
	s := newSession()
	e := quietEngine()
	e.AdvanceTo(s, at(12))
	cursor := s.CursorIndex
	trips := s.Clone().Trips

	if batch := e.AdvanceTo(s, at(12)); len(batch) != 0 {
		t.Fatalf("second advance applied %d events", len(batch))
	}
	if s.CursorIndex != cursor || !reflect.DeepEqual(s.Trips, trips) {
		t.Fatal("second advance changed state")
	}
}

func TestAdvanceTo_UnmatchedEventConsumedWithWarning(t *testing.T) {
	var buf bytes.Buffer
	e := NewEngine(slog.New(slog.NewTextHandler(&buf, nil)))
	s := newSession()

	e.AdvanceTo(s, at(9))
	if s.CursorIndex != 5 {
		t.Fatalf("cursor = %d, want 5", s.CursorIndex)
	}
	if !strings.Contains(buf.String(), "unknown trip") || !strings.Contains(buf.String(), "trip_id=X") {
		t.Fatalf("expected unknown trip warning, got %q", buf.String())
	}
	for _, trip := range s.Trips {
		for _, a := range trip.Alerts {
			if a.Message == MsgSignalLost {
				t.Fatalf("unmatched event mutated trip %s", trip.ID)
			}
		}
	}
}

func TestAdvanceTo_EmptyTripIDConsumed(t *testing.T) {
	s := &model.Session{
		Trips:        []model.Trip{{ID: "A", TotalDistance: 10}},
		FullEventLog: []model.Event{ev(0, "", model.TripStarted{}, model.EventTripStarted)},
	}
	quietEngine().AdvanceTo(s, at(0))
	if s.CursorIndex != 1 || s.Trips[0].Status != "" {
		t.Fatalf("cursor = %d status = %q", s.CursorIndex, s.Trips[0].Status)
	}
}

func TestAdvanceTo_UnknownTypeIgnored(t *testing.T) {
	s := &model.Session{
		Trips: []model.Trip{{ID: "A", TotalDistance: 10, Status: model.StatusInProgress, Alerts: []model.Alert{}}},
		FullEventLog: []model.Event{{
			TripID: "A", Timestamp: at(0), Type: "engine_overheat",
			Payload: model.Unrecognized{Raw: []byte(`{"event_type":"engine_overheat"}`)},
		}},
	}
	want := s.Trips[0].Clone()
	quietEngine().AdvanceTo(s, at(0))
	if s.CursorIndex != 1 {
		t.Fatalf("cursor = %d, want 1", s.CursorIndex)
	}
	if !reflect.DeepEqual(s.Trips[0], want) {
		t.Fatalf("unknown event changed trip: %+v", s.Trips[0])
	}
}

func TestAdvanceTo_ExampleScenario(t *testing.T) {
	s := &model.Session{
		Trips: []model.Trip{{ID: "A", TotalDistance: 100, Status: model.StatusScheduled, Alerts: []model.Alert{}}},
		FullEventLog: []model.Event{
			ev(0, "A", model.TripStarted{}, model.EventTripStarted),
			ev(5, "A", model.Telemetry{Distance: model.Float(50)}, model.EventLocationPing),
		},
	}
	e := quietEngine()

	e.AdvanceTo(s, at(0))
	if s.Trips[0].Status != model.StatusInProgress || s.Trips[0].Progress != 0 {
		t.Fatalf("after 10:00: %+v", s.Trips[0])
	}
	e.AdvanceTo(s, at(5))
	if s.Trips[0].CompletedDistance != 50 || s.Trips[0].Progress != 50.0 {
		t.Fatalf("after 10:05: %+v", s.Trips[0])
	}
}

func TestAdvanceTo_FullLogOutcome(t *testing.T) {
	s := newSession()
	quietEngine().AdvanceTo(s, at(60))

	a, b := s.Trips[0], s.Trips[1]
	if a.Status != model.StatusCompleted || a.Progress != 100 || len(a.Alerts) != 0 || a.CompletedDistance != 100 {
		t.Fatalf("trip A = %+v", a)
	}
	if b.Status != model.StatusCancelled || b.CompletedDistance != 130 || b.Progress != 65 || b.CurrentSpeed != 0 {
		t.Fatalf("trip B = %+v", b)
	}
	if b.FuelLevel == nil || *b.FuelLevel != 30 {
		t.Fatalf("trip B fuel = %v", b.FuelLevel)
	}
	if !s.Exhausted() {
		t.Fatal("expected exhausted session")
	}
}

func TestAdvanceTo_ReindexesReplacedTrips(t *testing.T) {
	e := quietEngine()
	s := newSession()
	e.AdvanceTo(s, at(0))

	fresh := newSession()
	fresh.Trips = []model.Trip{{ID: "B", TotalDistance: 10, Alerts: []model.Alert{}}}
	e.AdvanceTo(fresh, at(0))
	if fresh.Trips[0].Status != model.StatusInProgress {
		t.Fatalf("status = %q, want in_progress", fresh.Trips[0].Status)
	}
}
