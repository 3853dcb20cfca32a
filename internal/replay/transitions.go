package replay

import (
	"strconv"
	"strings"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// Alert messages produced and cleared by the transition table.
const (
	MsgVehicleStopped = "Vehicle stopped"
	MsgSignalLost     = "GPS signal lost"
	MsgLowFuel        = "Low fuel level"
	MsgRefueling      = "Refueling in progress"
)

// Apply runs the transition for ev against trip and reports whether the
// event type has a transition. Unrecognized events leave the trip untouched.
func Apply(trip *model.Trip, ev model.Event) bool {
	payload := ev.Payload
	if payload == nil {
		payload = model.ZeroPayload(ev.Type)
	}

	switch p := payload.(type) {
	case model.TripStarted:
		trip.Status = model.StatusInProgress

	case model.Telemetry:
		if p.Distance != nil {
			trip.SetCompletedDistance(*p.Distance)
		}
		if p.Speed != nil {
			trip.CurrentSpeed = *p.Speed
		}
		if p.Location != nil {
			loc := *p.Location
			trip.LastLocation = &loc
		}
		if p.Fuel != nil {
			trip.FuelLevel = model.Float(*p.Fuel)
		}

	case model.VehicleStopped:
		trip.CurrentSpeed = 0
		trip.AddAlert(model.AlertInfo, MsgVehicleStopped)

	case model.VehicleMoving:
		trip.RemoveAlerts(messageIs(MsgVehicleStopped))
		if p.Speed != nil {
			trip.CurrentSpeed = *p.Speed
		}

	case model.SpeedViolation:
		trip.AddAlert(model.AlertWarning, "Speed violation: "+formatNum(p.Speed)+" km/h (limit "+formatNum(p.Limit)+")")
		if p.Distance != nil {
			trip.SetCompletedDistance(*p.Distance)
		}

	case model.SignalLost:
		trip.AddAlert(model.AlertError, MsgSignalLost)

	case model.SignalRecovered:
		trip.RemoveAlerts(messageIs(MsgSignalLost))

	case model.FuelLevelLow:
		if p.Fuel != nil {
			trip.FuelLevel = model.Float(*p.Fuel)
		}
		trip.AddAlert(model.AlertWarning, MsgLowFuel)

	case model.RefuelingStarted:
		trip.AddAlert(model.AlertInfo, MsgRefueling)

	case model.RefuelingCompleted:
		if p.FuelAfter != nil {
			trip.FuelLevel = model.Float(*p.FuelAfter)
		}
		trip.RemoveAlerts(func(a model.Alert) bool {
			return strings.Contains(strings.ToLower(a.Message), "fuel") || a.Message == MsgRefueling
		})

	case model.DeviceError:
		trip.AddAlert(model.AlertError, "Device error: "+p.ErrorType)

	case model.TripCancelled:
		trip.Status = model.StatusCancelled
		distance := trip.CompletedDistance
		if p.DistanceCompleted != nil {
			distance = *p.DistanceCompleted
		}
		trip.SetCompletedDistance(distance)
		trip.CurrentSpeed = 0

	case model.TripCompleted:
		trip.Status = model.StatusCompleted
		trip.CompletedDistance = trip.TotalDistance
		if p.TotalDistance != nil {
			trip.CompletedDistance = *p.TotalDistance
		}
		// Completion forces exactly 100 regardless of the reported distance.
		trip.Progress = 100
		trip.CurrentSpeed = 0
		trip.Alerts = []model.Alert{}

	default:
		return false
	}
	return true
}

func messageIs(msg string) func(model.Alert) bool {
	return func(a model.Alert) bool { return a.Message == msg }
}

func formatNum(v *float64) string {
	if v == nil {
		return "unknown"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
