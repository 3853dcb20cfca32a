package events

import (
	"context"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

// Event topic constants
const (
	TopicReplayTick = "fleet.replay.tick"

	// Playback lifecycle events
	TopicPlaybackStarted  = "fleet.playback.started"
	TopicPlaybackPaused   = "fleet.playback.paused"
	TopicPlaybackFinished = "fleet.playback.finished"
	TopicPlaybackReset    = "fleet.playback.reset"
	TopicPlaybackSpeed    = "fleet.playback.speed"
)

// Topics lists every topic the session publishes on.
var Topics = []string{
	TopicReplayTick,
	TopicPlaybackStarted,
	TopicPlaybackPaused,
	TopicPlaybackFinished,
	TopicPlaybackReset,
	TopicPlaybackSpeed,
}

// Event types

// Tick is published after every playback tick.
type Tick struct {
	SessionID    string        `json:"session_id"`
	VirtualClock time.Time     `json:"virtual_clock"`
	CursorIndex  int           `json:"cursor_index"`
	LogLength    int           `json:"log_length"`
	Applied      []model.Event `json:"applied"`
}

// PlaybackChanged is published whenever playback starts, pauses, finishes,
// resets or changes speed.
type PlaybackChanged struct {
	SessionID    string    `json:"session_id"`
	IsPlaying    bool      `json:"is_playing"`
	Speed        float64   `json:"speed"`
	VirtualClock time.Time `json:"virtual_clock"`
	CursorIndex  int       `json:"cursor_index"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
