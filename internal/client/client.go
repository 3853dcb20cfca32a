// Package client provides a transport-agnostic interface to the fleetreplay
// service, with HTTP/JSON and gRPC implementations.
package client

import (
	"context"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/session"
)

// PlaybackClient is the interface that all fr CLI commands use to talk to
// the replay server. It is implemented by HTTPClient (default) and
// GRPCClient.
type PlaybackClient interface {
	// Queries
	State(ctx context.Context) (*session.State, error)
	ListTrips(ctx context.Context, status string) ([]model.Trip, error)
	GetTrip(ctx context.Context, id string) (*model.Trip, error)
	ListEvents(ctx context.Context, limit int) ([]model.Event, error) // limit 0 = all
	Metrics(ctx context.Context) (*model.FleetMetrics, error)

	// Playback controls
	Play(ctx context.Context) (*session.State, error)
	Pause(ctx context.Context) (*session.State, error)
	Toggle(ctx context.Context) (*session.State, error)
	Reset(ctx context.Context) (*session.State, error)
	SetSpeed(ctx context.Context, factor float64) (*session.State, error)

	// Health
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// tripList is the response body of a trip listing.
type tripList struct {
	Trips []model.Trip `json:"trips"`
	Total int          `json:"total"`
}

// eventList is the response body of an event listing.
type eventList struct {
	Events []model.Event `json:"events"`
	Total  int           `json:"total"`
}
