package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// EventType identifies the kind of telemetry event.
type EventType string

const (
	EventTripStarted        EventType = "trip_started"
	EventLocationPing       EventType = "location_ping"
	EventVehicleTelemetry   EventType = "vehicle_telemetry"
	EventVehicleStopped     EventType = "vehicle_stopped"
	EventVehicleMoving      EventType = "vehicle_moving"
	EventSpeedViolation     EventType = "speed_violation"
	EventSignalLost         EventType = "signal_lost"
	EventSignalRecovered    EventType = "signal_recovered"
	EventFuelLevelLow       EventType = "fuel_level_low"
	EventRefuelingStarted   EventType = "refueling_started"
	EventRefuelingCompleted EventType = "refueling_completed"
	EventDeviceError        EventType = "device_error"
	EventTripCancelled      EventType = "trip_cancelled"
	EventTripCompleted      EventType = "trip_completed"
)

// String returns the string representation of the event type.
func (t EventType) String() string {
	return string(t)
}

// IsKnown reports whether the replay engine has a transition for this type.
func (t EventType) IsKnown() bool {
	switch t {
	case EventTripStarted, EventLocationPing, EventVehicleTelemetry,
		EventVehicleStopped, EventVehicleMoving, EventSpeedViolation,
		EventSignalLost, EventSignalRecovered, EventFuelLevelLow,
		EventRefuelingStarted, EventRefuelingCompleted, EventDeviceError,
		EventTripCancelled, EventTripCompleted:
		return true
	}
	return false
}

// Payload is the type-specific body of an Event. Each implementation
// carries only the optional fields relevant to its event type.
type Payload interface {
	isPayload()
}

type TripStarted struct{}

// Telemetry is the payload of location_ping and vehicle_telemetry events.
type Telemetry struct {
	Distance *float64
	Speed    *float64
	Location *Location
	Fuel     *float64
}

type VehicleStopped struct{}

type VehicleMoving struct {
	Speed *float64
}

type SpeedViolation struct {
	Speed    *float64
	Limit    *float64
	Distance *float64
}

type SignalLost struct{}

type SignalRecovered struct{}

type FuelLevelLow struct {
	Fuel *float64
}

type RefuelingStarted struct{}

type RefuelingCompleted struct {
	FuelAfter *float64
}

type DeviceError struct {
	ErrorType string
}

type TripCancelled struct {
	DistanceCompleted *float64
}

type TripCompleted struct {
	TotalDistance *float64
}

// Unrecognized holds an event whose type has no transition. The raw document
// is retained so it survives a checkpoint round-trip unchanged.
type Unrecognized struct {
	Raw json.RawMessage
}

func (TripStarted) isPayload()        {}
func (Telemetry) isPayload()          {}
func (VehicleStopped) isPayload()     {}
func (VehicleMoving) isPayload()      {}
func (SpeedViolation) isPayload()     {}
func (SignalLost) isPayload()         {}
func (SignalRecovered) isPayload()    {}
func (FuelLevelLow) isPayload()       {}
func (RefuelingStarted) isPayload()   {}
func (RefuelingCompleted) isPayload() {}
func (DeviceError) isPayload()        {}
func (TripCancelled) isPayload()      {}
func (TripCompleted) isPayload()      {}
func (Unrecognized) isPayload()       {}

// Event is one immutable entry of the telemetry log.
type Event struct {
	ID        string
	TripID    string
	Timestamp time.Time
	Type      EventType
	Payload   Payload
}

// wireEvent is the flat JSON shape of an event as delivered by the data
// source and stored in checkpoints.
type wireEvent struct {
	ID                   string     `json:"event_id,omitempty"`
	TripID               string     `json:"trip_id"`
	Timestamp            time.Time  `json:"timestamp"`
	Type                 EventType  `json:"event_type"`
	DistanceTravelledKm  *float64   `json:"distance_travelled_km,omitempty"`
	Movement             *movement  `json:"movement,omitempty"`
	Location             *Location  `json:"location,omitempty"`
	Telemetry            *telemetry `json:"telemetry,omitempty"`
	SpeedLimitKmh        *float64   `json:"speed_limit_kmh,omitempty"`
	FuelLevelPercent     *float64   `json:"fuel_level_percent,omitempty"`
	FuelLevelAfterRefuel *float64   `json:"fuel_level_after_refuel,omitempty"`
	ErrorType            string     `json:"error_type,omitempty"`
	DistanceCompletedKm  *float64   `json:"distance_completed_km,omitempty"`
	TotalDistanceKm      *float64   `json:"total_distance_km,omitempty"`
}

type movement struct {
	SpeedKmh *float64 `json:"speed_kmh,omitempty"`
}

type telemetry struct {
	FuelLevelPercent *float64 `json:"fuel_level_percent,omitempty"`
}

// UnmarshalJSON decodes the flat wire document and selects the payload
// variant from event_type.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("decode event: %w", err)
	}
	e.ID = w.ID
	e.TripID = w.TripID
	e.Timestamp = w.Timestamp
	e.Type = w.Type

	var speed *float64
	if w.Movement != nil {
		speed = w.Movement.SpeedKmh
	}

	switch w.Type {
	case EventTripStarted:
		e.Payload = TripStarted{}
	case EventLocationPing, EventVehicleTelemetry:
		p := Telemetry{Distance: w.DistanceTravelledKm, Speed: speed, Location: w.Location}
		if w.Telemetry != nil {
			p.Fuel = w.Telemetry.FuelLevelPercent
		}
		e.Payload = p
	case EventVehicleStopped:
		e.Payload = VehicleStopped{}
	case EventVehicleMoving:
		e.Payload = VehicleMoving{Speed: speed}
	case EventSpeedViolation:
		e.Payload = SpeedViolation{Speed: speed, Limit: w.SpeedLimitKmh, Distance: w.DistanceTravelledKm}
	case EventSignalLost:
		e.Payload = SignalLost{}
	case EventSignalRecovered:
		e.Payload = SignalRecovered{}
	case EventFuelLevelLow:
		e.Payload = FuelLevelLow{Fuel: w.FuelLevelPercent}
	case EventRefuelingStarted:
		e.Payload = RefuelingStarted{}
	case EventRefuelingCompleted:
		e.Payload = RefuelingCompleted{FuelAfter: w.FuelLevelAfterRefuel}
	case EventDeviceError:
		e.Payload = DeviceError{ErrorType: w.ErrorType}
	case EventTripCancelled:
		e.Payload = TripCancelled{DistanceCompleted: w.DistanceCompletedKm}
	case EventTripCompleted:
		e.Payload = TripCompleted{TotalDistance: w.TotalDistanceKm}
	default:
		var buf bytes.Buffer
		if err := json.Compact(&buf, data); err != nil {
			return fmt.Errorf("compact event: %w", err)
		}
		e.Payload = Unrecognized{Raw: json.RawMessage(buf.Bytes())}
	}
	return nil
}

// MarshalJSON encodes the event back into its flat wire shape.
func (e Event) MarshalJSON() ([]byte, error) {
	if u, ok := e.Payload.(Unrecognized); ok && len(u.Raw) > 0 {
		return u.Raw, nil
	}

	w := wireEvent{
		ID:        e.ID,
		TripID:    e.TripID,
		Timestamp: e.Timestamp,
		Type:      e.Type,
	}
	withSpeed := func(s *float64) {
		if s != nil {
			w.Movement = &movement{SpeedKmh: s}
		}
	}

	switch p := e.Payload.(type) {
	case Telemetry:
		w.DistanceTravelledKm = p.Distance
		withSpeed(p.Speed)
		w.Location = p.Location
		if p.Fuel != nil {
			w.Telemetry = &telemetry{FuelLevelPercent: p.Fuel}
		}
	case VehicleMoving:
		withSpeed(p.Speed)
	case SpeedViolation:
		withSpeed(p.Speed)
		w.SpeedLimitKmh = p.Limit
		w.DistanceTravelledKm = p.Distance
	case FuelLevelLow:
		w.FuelLevelPercent = p.Fuel
	case RefuelingCompleted:
		w.FuelLevelAfterRefuel = p.FuelAfter
	case DeviceError:
		w.ErrorType = p.ErrorType
	case TripCancelled:
		w.DistanceCompletedKm = p.DistanceCompleted
	case TripCompleted:
		w.TotalDistanceKm = p.TotalDistance
	}
	return json.Marshal(w)
}

// Float returns a pointer to v, for building optional payload fields.
func Float(v float64) *float64 {
	return &v
}

// ZeroPayload returns the empty payload variant for an event type, used when
// an event was built without a body.
func ZeroPayload(t EventType) Payload {
	switch t {
	case EventTripStarted:
		return TripStarted{}
	case EventLocationPing, EventVehicleTelemetry:
		return Telemetry{}
	case EventVehicleStopped:
		return VehicleStopped{}
	case EventVehicleMoving:
		return VehicleMoving{}
	case EventSpeedViolation:
		return SpeedViolation{}
	case EventSignalLost:
		return SignalLost{}
	case EventSignalRecovered:
		return SignalRecovered{}
	case EventFuelLevelLow:
		return FuelLevelLow{}
	case EventRefuelingStarted:
		return RefuelingStarted{}
	case EventRefuelingCompleted:
		return RefuelingCompleted{}
	case EventDeviceError:
		return DeviceError{}
	case EventTripCancelled:
		return TripCancelled{}
	case EventTripCompleted:
		return TripCompleted{}
	}
	return Unrecognized{}
}
