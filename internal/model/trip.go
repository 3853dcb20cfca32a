package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// TripStatus represents the lifecycle state of a trip.
type TripStatus string

const (
	StatusScheduled  TripStatus = "scheduled"
	StatusInProgress TripStatus = "in_progress"
	StatusCompleted  TripStatus = "completed"
	StatusCancelled  TripStatus = "cancelled"
)

// String returns the string representation of the status.
func (s TripStatus) String() string {
	return string(s)
}

// IsValid checks whether the status is a known value.
func (s TripStatus) IsValid() bool {
	switch s {
	case StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal reports whether no further lifecycle transitions are expected.
func (s TripStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AlertType is the severity of a trip alert.
type AlertType string

const (
	AlertInfo    AlertType = "info"
	AlertWarning AlertType = "warning"
	AlertError   AlertType = "error"
)

// Alert is a single active alert on a trip.
type Alert struct {
	Type    AlertType `json:"type"`
	Message string    `json:"message"`
}

// Location is a GPS fix.
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Trip is the mutable per-trip state driven by the replay engine.
type Trip struct {
	ID                string     `json:"id"`
	Name              string     `json:"name,omitempty"`
	VehicleID         string     `json:"vehicle_id,omitempty"`
	Driver            string     `json:"driver,omitempty"`
	TotalDistance     float64    `json:"total_distance"`
	CompletedDistance float64    `json:"completed_distance"`
	Progress          float64    `json:"progress"`
	Status            TripStatus `json:"status"`
	CurrentSpeed      float64    `json:"current_speed"`
	FuelLevel         *float64   `json:"fuel_level,omitempty"`
	LastLocation      *Location  `json:"last_location,omitempty"`
	Alerts            []Alert    `json:"alerts"`
}

// tripKeys also accepts the camelCase trip keys some datasets use.
type tripKeys struct {
	tripFields
	VehicleIDAlt         *string   `json:"vehicleId"`
	TotalDistanceAlt     *float64  `json:"totalDistance"`
	CompletedDistanceAlt *float64  `json:"completedDistance"`
	CurrentSpeedAlt      *float64  `json:"currentSpeed"`
	FuelLevelAlt         *float64  `json:"fuelLevel"`
	LastLocationAlt      *Location `json:"lastLocation"`
}

type tripFields Trip

// UnmarshalJSON decodes a trip written with either snake_case or camelCase
// keys. Where both spellings are present the snake_case value wins.
func (t *Trip) UnmarshalJSON(data []byte) error {
	var k tripKeys
	if err := json.Unmarshal(data, &k); err != nil {
		return fmt.Errorf("decode trip: %w", err)
	}
	*t = Trip(k.tripFields)
	if t.VehicleID == "" && k.VehicleIDAlt != nil {
		t.VehicleID = *k.VehicleIDAlt
	}
	if t.TotalDistance == 0 && k.TotalDistanceAlt != nil {
		t.TotalDistance = *k.TotalDistanceAlt
	}
	if t.CompletedDistance == 0 && k.CompletedDistanceAlt != nil {
		t.CompletedDistance = *k.CompletedDistanceAlt
	}
	if t.CurrentSpeed == 0 && k.CurrentSpeedAlt != nil {
		t.CurrentSpeed = *k.CurrentSpeedAlt
	}
	if t.FuelLevel == nil {
		t.FuelLevel = k.FuelLevelAlt
	}
	if t.LastLocation == nil {
		t.LastLocation = k.LastLocationAlt
	}
	return nil
}

// Clone returns a deep copy of the trip.
func (t Trip) Clone() Trip {
	c := t
	if t.FuelLevel != nil {
		v := *t.FuelLevel
		c.FuelLevel = &v
	}
	if t.LastLocation != nil {
		loc := *t.LastLocation
		c.LastLocation = &loc
	}
	c.Alerts = make([]Alert, len(t.Alerts))
	copy(c.Alerts, t.Alerts)
	return c
}

// SetCompletedDistance records distance and recomputes progress from it.
// Progress is deliberately not clamped to 0..100.
func (t *Trip) SetCompletedDistance(distance float64) {
	t.CompletedDistance = distance
	t.Progress = ProgressOf(distance, t.TotalDistance)
}

// AddAlert appends an alert. Duplicate messages are kept.
func (t *Trip) AddAlert(typ AlertType, message string) {
	t.Alerts = append(t.Alerts, Alert{Type: typ, Message: message})
}

// RemoveAlerts drops every alert for which match returns true.
func (t *Trip) RemoveAlerts(match func(Alert) bool) {
	kept := make([]Alert, 0, len(t.Alerts))
	for _, a := range t.Alerts {
		if !match(a) {
			kept = append(kept, a)
		}
	}
	t.Alerts = kept
}

// ProgressOf returns distance as a percentage of total, rounded to one decimal.
func ProgressOf(distance, total float64) float64 {
	if total == 0 {
		return 0
	}
	return Round1(distance / total * 100)
}

// Round1 rounds the exact binary value of v to one decimal place, with exact
// halves going away from zero.
func Round1(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	// v is an exact half at one decimal only when 4v is an odd integer.
	if q := v * 4; q == math.Trunc(q) && math.Mod(q, 2) != 0 {
		return math.Round(v*10) / 10
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 1, 64), 64)
	if err != nil {
		return math.Round(v*10) / 10
	}
	return r
}
