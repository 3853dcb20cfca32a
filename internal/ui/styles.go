package ui

import (
	"fmt"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// ANSI256 color codes matching the Ayu palette.
const (
	colorAccent = 74  // blue
	colorCmd    = 250 // light gray
	colorMuted  = 245 // medium gray
	colorGreen  = 114
	colorRed    = 203
	colorYellow = 221
)

var noColor bool

func paint(code int, s string) string {
	if noColor {
		return s
	}
	return fmt.Sprintf("\x1b[38;5;%dm%s\x1b[0m", code, s)
}

// RenderAccent returns s in the accent (blue) color.
func RenderAccent(s string) string {
	return paint(colorAccent, s)
}

// RenderMuted returns s in the muted (gray) color.
func RenderMuted(s string) string {
	return paint(colorMuted, s)
}

// RenderCommand returns s styled as a command name (light gray).
func RenderCommand(s string) string {
	return paint(colorCmd, s)
}

// StatusLabel returns the display label for a trip status.
func StatusLabel(s model.TripStatus) string {
	switch s {
	case model.StatusInProgress:
		return "In Progress"
	case model.StatusCompleted:
		return "Completed"
	case model.StatusCancelled:
		return "Cancelled"
	case model.StatusScheduled:
		return "Scheduled"
	}
	return string(s)
}

// RenderStatus returns the status label colored by lifecycle state.
func RenderStatus(s model.TripStatus) string {
	switch s {
	case model.StatusInProgress:
		return paint(colorAccent, StatusLabel(s))
	case model.StatusCompleted:
		return paint(colorGreen, StatusLabel(s))
	case model.StatusCancelled:
		return paint(colorRed, StatusLabel(s))
	case model.StatusScheduled:
		return paint(colorYellow, StatusLabel(s))
	}
	return paint(colorMuted, StatusLabel(s))
}

// RenderAlert returns an alert message colored by severity.
func RenderAlert(a model.Alert) string {
	switch a.Type {
	case model.AlertError:
		return paint(colorRed, a.Message)
	case model.AlertWarning:
		return paint(colorYellow, a.Message)
	case model.AlertInfo:
		return paint(colorAccent, a.Message)
	}
	return a.Message
}

// RenderPlaying renders the playback state.
func RenderPlaying(playing bool) string {
	if playing {
		return paint(colorGreen, "playing")
	}
	return paint(colorMuted, "paused")
}

// ForceNoColor disables color output globally.
func ForceNoColor() {
	noColor = true
}
