package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/alfredjeanlab/fleetreplay/internal/session"
	"github.com/alfredjeanlab/fleetreplay/internal/source"
)

// defaultEventLimit caps GET /v1/events when no limit is given.
const defaultEventLimit = 50

// NewHTTPHandler returns an http.Handler with all routes registered.
// When authToken is non-empty, requests (except GET /v1/health) must include
// a valid Authorization: Bearer <token> header.
func (s *PlaybackServer) NewHTTPHandler(authToken string) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", s.handleHealth)
	mux.HandleFunc("GET /v1/state", s.handleGetState)
	mux.HandleFunc("GET /v1/trips", s.handleListTrips)
	mux.HandleFunc("GET /v1/trips/{id}", s.handleGetTrip)
	mux.HandleFunc("GET /v1/events", s.handleListEvents)
	mux.HandleFunc("GET /v1/events/stream", s.handleEventStream)
	mux.HandleFunc("GET /v1/metrics", s.handleGetMetrics)
	mux.HandleFunc("POST /v1/playback/play", s.handleControl((Session).Play))
	mux.HandleFunc("POST /v1/playback/pause", s.handleControl((Session).Pause))
	mux.HandleFunc("POST /v1/playback/toggle", s.handleControl((Session).Toggle))
	mux.HandleFunc("POST /v1/playback/reset", s.handleControl((Session).Reset))
	mux.HandleFunc("PUT /v1/playback/speed", s.handleSetSpeed)
	return AuthMiddleware(authToken, s.logRequests(mux))
}

// handleHealth handles GET /v1/health.
func (s *PlaybackServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleGetState handles GET /v1/state.
func (s *PlaybackServer) handleGetState(w http.ResponseWriter, _ *http.Request) {
	st, err := s.state()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleListTrips handles GET /v1/trips?status=.
func (s *PlaybackServer) handleListTrips(w http.ResponseWriter, r *http.Request) {
	trips, err := s.trips(r.URL.Query().Get("status"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"trips": trips, "total": len(trips)})
}

// handleGetTrip handles GET /v1/trips/{id}.
func (s *PlaybackServer) handleGetTrip(w http.ResponseWriter, r *http.Request) {
	t, err := s.trip(r.PathValue("id"))
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// handleListEvents handles GET /v1/events?limit=. Events are oldest first.
func (s *PlaybackServer) handleListEvents(w http.ResponseWriter, r *http.Request) {
	limit := defaultEventLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	evts, err := s.events(limit)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"events": evts, "total": len(evts)})
}

// handleGetMetrics handles GET /v1/metrics.
func (s *PlaybackServer) handleGetMetrics(w http.ResponseWriter, _ *http.Request) {
	m, err := s.session.Metrics()
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// handleControl returns a handler for one of the POST /v1/playback/* controls.
func (s *PlaybackServer) handleControl(op func(Session, context.Context) (*session.State, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := s.control(r.Context(), func(ctx context.Context) (*session.State, error) {
			return op(s.session, ctx)
		})
		if err != nil {
			s.writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// setSpeedRequest is the JSON body for PUT /v1/playback/speed.
type setSpeedRequest struct {
	Speed *float64 `json:"speed"`
}

// handleSetSpeed handles PUT /v1/playback/speed.
func (s *PlaybackServer) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var req setSpeedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Speed == nil {
		writeError(w, http.StatusBadRequest, "speed is required")
		return
	}
	st, err := s.setSpeed(r.Context(), *req.Speed)
	if err != nil {
		s.writeErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// writeErr maps a domain error to an HTTP status and writes it.
func (s *PlaybackServer) writeErr(w http.ResponseWriter, err error) {
	var in inputError
	switch {
	case errors.As(err, &in), errors.Is(err, session.ErrInvalidSpeed):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, errTripNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, session.ErrNotStarted):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.Is(err, source.ErrFetch):
		s.logger.Error("data source unavailable", "err", err)
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
