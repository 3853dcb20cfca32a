package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/session"
	"github.com/alfredjeanlab/fleetreplay/internal/ui"
)

const clockLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}

// printState renders the playback header and fleet summary.
func printState(w io.Writer, st *session.State) {
	fmt.Fprintf(w, "Session:   %s\n", st.SessionID)
	fmt.Fprintf(w, "Clock:     %s\n", formatClock(st.CurrentTime))
	fmt.Fprintf(w, "Playback:  %s at %gx\n", ui.RenderPlaying(st.IsPlaying), st.Speed)
	progress := fmt.Sprintf("%d/%d events", st.CursorIndex, st.LogLength)
	if st.Finished {
		progress += " " + ui.RenderMuted("(finished)")
	}
	fmt.Fprintf(w, "Progress:  %s\n", progress)
	fmt.Fprintln(w)
	printMetrics(w, st.Metrics)
}

func printMetrics(w io.Writer, m model.FleetMetrics) {
	fmt.Fprintf(w, "Trips:     %d total, %d active, %d completed\n", m.Total, m.Active, m.Completed)
	fmt.Fprintf(w, "Avg:       %d%% progress (%d over 50%%, %d over 80%%)\n", m.AvgProgress, m.ProgressOver50, m.ProgressOver80)
	fmt.Fprintf(w, "Alerts:    %d\n", m.TotalAlerts)
}

func printTripTable(w io.Writer, trips []model.Trip) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tSPEED\tFUEL\tALERTS\tNAME")
	for _, t := range trips {
		name := t.Name
		if len(name) > 40 {
			name = name[:37] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%.1f%%\t%s\t%s\t%d\t%s\n",
			t.ID,
			ui.RenderStatus(t.Status),
			t.Progress,
			formatSpeed(t.CurrentSpeed),
			formatFuel(t.FuelLevel),
			len(t.Alerts),
			name,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d trips\n", len(trips))
}

func printTrip(w io.Writer, t *model.Trip) {
	fmt.Fprintf(w, "ID:        %s\n", t.ID)
	if t.Name != "" {
		fmt.Fprintf(w, "Name:      %s\n", t.Name)
	}
	if t.VehicleID != "" {
		fmt.Fprintf(w, "Vehicle:   %s\n", t.VehicleID)
	}
	if t.Driver != "" {
		fmt.Fprintf(w, "Driver:    %s\n", t.Driver)
	}
	fmt.Fprintf(w, "Status:    %s\n", ui.RenderStatus(t.Status))
	fmt.Fprintf(w, "Distance:  %.1f / %.1f km (%.1f%%)\n", t.CompletedDistance, t.TotalDistance, t.Progress)
	fmt.Fprintf(w, "Speed:     %s\n", formatSpeed(t.CurrentSpeed))
	fmt.Fprintf(w, "Fuel:      %s\n", formatFuel(t.FuelLevel))
	if t.LastLocation != nil {
		fmt.Fprintf(w, "Location:  %.5f, %.5f\n", t.LastLocation.Lat, t.LastLocation.Lng)
	}
	if len(t.Alerts) > 0 {
		fmt.Fprintln(w, "Alerts:")
		for _, a := range t.Alerts {
			fmt.Fprintf(w, "  - %s\n", ui.RenderAlert(a))
		}
	}
}

func printEvents(w io.Writer, evts []model.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tTRIP\tEVENT\tDETAIL")
	for _, e := range evts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			formatClock(e.Timestamp),
			e.TripID,
			e.Type,
			describeEvent(e),
		)
	}
	tw.Flush()
}

// describeEvent summarizes the payload fields of an event in one line.
func describeEvent(e model.Event) string {
	var parts []string
	add := func(format string, v *float64) {
		if v != nil {
			parts = append(parts, fmt.Sprintf(format, *v))
		}
	}
	switch p := e.Payload.(type) {
	case model.Telemetry:
		add("%.1f km", p.Distance)
		add("%.0f km/h", p.Speed)
		add("fuel %.0f%%", p.Fuel)
	case model.VehicleMoving:
		add("%.0f km/h", p.Speed)
	case model.SpeedViolation:
		add("%.0f km/h", p.Speed)
		add("limit %.0f", p.Limit)
	case model.FuelLevelLow:
		add("fuel %.0f%%", p.Fuel)
	case model.RefuelingCompleted:
		add("fuel %.0f%%", p.FuelAfter)
	case model.DeviceError:
		if p.ErrorType != "" {
			parts = append(parts, p.ErrorType)
		}
	case model.TripCancelled:
		add("at %.1f km", p.DistanceCompleted)
	case model.TripCompleted:
		add("%.1f km", p.TotalDistance)
	case model.Unrecognized:
		parts = append(parts, ui.RenderMuted("unrecognized"))
	}
	return strings.Join(parts, ", ")
}

func formatSpeed(kmh float64) string {
	if kmh == 0 {
		return "-"
	}
	return fmt.Sprintf("%.0f km/h", kmh)
}

func formatFuel(level *float64) string {
	if level == nil {
		return "-"
	}
	return fmt.Sprintf("%.0f%%", *level)
}

// formatClock renders a virtual timestamp for watch lines.
func formatClock(t time.Time) string {
	return t.UTC().Format(clockLayout)
}
