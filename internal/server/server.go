// Package server exposes the replay session over HTTP (JSON + SSE) and gRPC.
package server

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/session"
	"github.com/alfredjeanlab/fleetreplay/internal/source"
)

// Session is the part of session.Manager the transports need.
type Session interface {
	Snapshot() (*session.State, error)
	Trip(id string) (model.Trip, bool, error)
	RecentEvents(limit int) ([]model.Event, error)
	Metrics() (model.FleetMetrics, error)

	Play(ctx context.Context) (*session.State, error)
	Pause(ctx context.Context) (*session.State, error)
	Toggle(ctx context.Context) (*session.State, error)
	Reset(ctx context.Context) (*session.State, error)
	SetSpeed(ctx context.Context, factor float64) (*session.State, error)
}

var _ Session = (*session.Manager)(nil)

// PlaybackServer serves read-only views of the session and its playback
// controls. Both the HTTP handler and the gRPC service delegate to it.
type PlaybackServer struct {
	session Session
	hub     *Hub
	logger  *slog.Logger
}

// NewPlaybackServer returns a PlaybackServer. hub may be nil, in which case
// the SSE endpoint has nothing to stream.
func NewPlaybackServer(s Session, hub *Hub, logger *slog.Logger) *PlaybackServer {
	if hub == nil {
		hub = NewHub(logger)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PlaybackServer{session: s, hub: hub, logger: logger}
}

// Hub returns the SSE hub that the session should publish to.
func (s *PlaybackServer) Hub() *Hub { return s.hub }

// inputError indicates invalid user input.
// Transport layers map this to 400 / InvalidArgument.
type inputError string

func (e inputError) Error() string { return string(e) }

// errTripNotFound is returned when a trip id has no match.
var errTripNotFound = errors.New("trip not found")

func (s *PlaybackServer) state() (*session.State, error) {
	st, err := s.session.Snapshot()
	if err != nil {
		return nil, err
	}
	out := st.WithoutEvents()
	return &out, nil
}

func (s *PlaybackServer) trips(statusFilter string) ([]model.Trip, error) {
	var want model.TripStatus
	if statusFilter != "" {
		want = model.TripStatus(statusFilter)
		if !want.IsValid() {
			return nil, inputError("invalid status " + statusFilter)
		}
	}
	st, err := s.session.Snapshot()
	if err != nil {
		return nil, err
	}
	trips := make([]model.Trip, 0, len(st.Trips))
	for _, t := range st.Trips {
		if want == "" || t.Status == want {
			trips = append(trips, t)
		}
	}
	return trips, nil
}

func (s *PlaybackServer) trip(id string) (model.Trip, error) {
	if id == "" {
		return model.Trip{}, inputError("trip id is required")
	}
	t, ok, err := s.session.Trip(id)
	if err != nil {
		return model.Trip{}, err
	}
	if !ok {
		return model.Trip{}, errTripNotFound
	}
	return t, nil
}

func (s *PlaybackServer) events(limit int) ([]model.Event, error) {
	if limit < 0 {
		return nil, inputError("limit must not be negative")
	}
	return s.session.RecentEvents(limit)
}

// control runs a playback control and returns the resulting state without
// its event list.
func (s *PlaybackServer) control(ctx context.Context, op func(context.Context) (*session.State, error)) (*session.State, error) {
	st, err := op(ctx)
	if err != nil {
		return nil, err
	}
	out := st.WithoutEvents()
	return &out, nil
}

func (s *PlaybackServer) setSpeed(ctx context.Context, factor float64) (*session.State, error) {
	return s.control(ctx, func(ctx context.Context) (*session.State, error) {
		return s.session.SetSpeed(ctx, factor)
	})
}

// grpcError maps a domain error to a gRPC status.
func grpcError(err error) error {
	var in inputError
	switch {
	case errors.As(err, &in), errors.Is(err, session.ErrInvalidSpeed):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, errTripNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, session.ErrNotStarted):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, source.ErrFetch):
		return status.Error(codes.Unavailable, err.Error())
	default:
		return status.Errorf(codes.Internal, "%v", err)
	}
}
