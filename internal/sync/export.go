package sync

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// header is the first JSONL record written by ExportJSONL.
type header struct {
	Version      string    `json:"version"`
	Type         string    `json:"type"`
	Timestamp    time.Time `json:"timestamp"`
	SessionID    string    `json:"session_id"`
	VirtualClock time.Time `json:"virtual_clock"`
	CursorIndex  int       `json:"cursor_index"`
	LogLength    int       `json:"log_length"`
	Speed        float64   `json:"speed"`
	IsPlaying    bool      `json:"is_playing"`
	TripCount    int       `json:"trip_count"`
	EventCount   int       `json:"event_count"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportJSONL writes the session as JSONL to w: a header, one "trip" record
// per trip in session order, then one "event" record per applied event in
// log order.
func ExportJSONL(s *model.Session, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(header{
		Version:      "1",
		Type:         "header",
		Timestamp:    time.Now().UTC(),
		SessionID:    s.ID,
		VirtualClock: s.VirtualClock,
		CursorIndex:  s.CursorIndex,
		LogLength:    len(s.FullEventLog),
		Speed:        s.Speed,
		IsPlaying:    s.IsPlaying,
		TripCount:    len(s.Trips),
		EventCount:   len(s.AppliedEvents),
	}); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}

	for _, t := range s.Trips {
		if err := enc.Encode(record{Type: "trip", Data: t}); err != nil {
			return fmt.Errorf("encode trip %s: %w", t.ID, err)
		}
	}
	for i, ev := range s.AppliedEvents {
		if err := enc.Encode(record{Type: "event", Data: ev}); err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
	}
	return nil
}
