// Package session owns the live replay session: it restores or builds it,
// drives it through the playback controller, and persists and announces every
// change.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/alfredjeanlab/fleetreplay/internal/checkpoint"
	"github.com/alfredjeanlab/fleetreplay/internal/eventlog"
	"github.com/alfredjeanlab/fleetreplay/internal/events"
	"github.com/alfredjeanlab/fleetreplay/internal/idgen"
	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/playback"
	"github.com/alfredjeanlab/fleetreplay/internal/replay"
	"github.com/alfredjeanlab/fleetreplay/internal/source"
)

var (
	// ErrNotStarted is returned by operations called before Start succeeded.
	ErrNotStarted = errors.New("session not started")
	// ErrInvalidSpeed is returned by SetSpeed for non-positive or non-finite factors.
	ErrInvalidSpeed = errors.New("speed must be a positive number")
)

// Options configures a Manager.
type Options struct {
	Source      source.Source
	Checkpoints *checkpoint.Manager
	Publisher   events.Publisher // optional
	Logger      *slog.Logger     // optional

	TickInterval time.Duration // wall-clock period between ticks
	TickStep     time.Duration // virtual time per tick at 1x
}

// Manager holds the only mutable reference to the session. The playback
// controller's tick is its sole mutator while playing; readers get deep copies.
type Manager struct {
	source      source.Source
	checkpoints *checkpoint.Manager
	publisher   events.Publisher
	logger      *slog.Logger
	step        time.Duration
	engine      *replay.Engine
	controller  *playback.Controller
	tracer      trace.Tracer

	// ctl serializes control operations so controller start/stop and session
	// replacement never interleave.
	ctl sync.Mutex

	// saveMu orders checkpoint writes so a later state is never overwritten
	// by an earlier one.
	saveMu sync.Mutex

	mu      sync.RWMutex
	session *model.Session
}

// New creates a Manager. Start must be called before any other operation.
func New(opts Options) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := opts.Publisher
	if pub == nil {
		pub = events.Discard
	}
	step := opts.TickStep
	if step <= 0 {
		step = playback.DefaultStep
	}

	m := &Manager{
		source:      opts.Source,
		checkpoints: opts.Checkpoints,
		publisher:   pub,
		logger:      logger,
		step:        step,
		engine:      replay.NewEngine(logger),
		tracer:      otel.Tracer("github.com/alfredjeanlab/fleetreplay/internal/session"),
	}
	m.controller = playback.NewController(opts.TickInterval, m.Tick, logger)
	return m
}

// Start restores the checkpointed session if one is usable, and otherwise
// builds a fresh session from the data source. A restored session that was
// playing resumes playback. Only a data source failure is returned.
func (m *Manager) Start(ctx context.Context) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	ctx, span := m.tracer.Start(ctx, "session.start")
	defer span.End()

	s, err := m.checkpoints.Load(ctx)
	restored := err == nil
	if restored {
		m.logger.Info("restored session from checkpoint",
			"session", s.ID, "cursor", s.CursorIndex, "events", len(s.FullEventLog), "playing", s.IsPlaying)
	} else {
		m.logger.Debug("no usable checkpoint", "err", err)
		s, err = m.fresh(ctx)
		if err != nil {
			span.RecordError(err)
			return err
		}
	}
	if s.ID == "" {
		s.ID = newSessionID()
	}
	span.SetAttributes(attribute.Bool("restored", restored), sessionAttrs(s)...)

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	if !restored {
		m.checkpoints.Save(ctx, s.Clone())
	}
	if s.IsPlaying {
		if s.Exhausted() {
			m.setPlaying(false)
			m.checkpoints.Save(ctx, s.Clone())
		} else {
			m.controller.Start()
		}
	}
	return nil
}

// fresh fetches the dataset and primes a new session at the first event's
// timestamp, applying every event that shares it.
func (m *Manager) fresh(ctx context.Context) (*model.Session, error) {
	d, err := m.source.Fetch(ctx)
	if err != nil {
		return nil, fmt.Errorf("load initial dataset: %w", err)
	}
	log := eventlog.New(d.Events)

	s := &model.Session{
		ID:            newSessionID(),
		Trips:         model.NormalizeTrips(d.Trips),
		AppliedEvents: []model.Event{},
		FullEventLog:  log.Events(),
		VirtualClock:  log.Start(model.DefaultEpoch),
		Speed:         1,
	}
	m.engine.AdvanceTo(s, s.VirtualClock)
	m.logger.Info("loaded fresh session",
		"session", s.ID, "trips", len(s.Trips), "events", len(s.FullEventLog), "clock", s.VirtualClock)
	return s, nil
}

// Reset stops playback, clears the checkpoint and rebuilds the session from
// the data source, ignoring any checkpoint. If the fetch fails the previous
// session is kept, paused.
func (m *Manager) Reset(ctx context.Context) (*State, error) {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	if err := m.requireStarted(); err != nil {
		return nil, err
	}

	ctx, span := m.tracer.Start(ctx, "session.reset")
	defer span.End()

	m.controller.Stop()
	m.checkpoints.Clear(ctx)

	s, err := m.fresh(ctx)
	if err != nil {
		span.RecordError(err)
		m.setPlaying(false)
		return nil, err
	}
	span.SetAttributes(sessionAttrs(s)...)

	m.mu.Lock()
	m.session = s
	m.mu.Unlock()

	m.checkpoints.Save(ctx, s.Clone())
	m.publishPlayback(ctx, events.TopicPlaybackReset)
	return m.Snapshot()
}

// Play starts playback. Playing an exhausted log is a no-op.
func (m *Manager) Play(ctx context.Context) (*State, error) {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	if err := m.requireStarted(); err != nil {
		return nil, err
	}
	return m.play(ctx)
}

func (m *Manager) play(ctx context.Context) (*State, error) {
	m.mu.RLock()
	skip := m.session.IsPlaying || m.session.Exhausted()
	m.mu.RUnlock()
	if skip {
		return m.Snapshot()
	}

	m.commit(ctx, func(s *model.Session) { s.IsPlaying = true })
	m.controller.Start()
	m.publishPlayback(ctx, events.TopicPlaybackStarted)
	return m.Snapshot()
}

// Pause stops playback and persists the session.
func (m *Manager) Pause(ctx context.Context) (*State, error) {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	if err := m.requireStarted(); err != nil {
		return nil, err
	}
	return m.pause(ctx)
}

func (m *Manager) pause(ctx context.Context) (*State, error) {
	m.controller.Stop()

	m.mu.Lock()
	wasPlaying := m.session.IsPlaying
	m.session.IsPlaying = false
	saved := m.session.Clone()
	m.mu.Unlock()

	m.checkpoints.Save(ctx, saved)
	if wasPlaying {
		m.publishPlayback(ctx, events.TopicPlaybackPaused)
	}
	return m.Snapshot()
}

// Toggle pauses a playing session and plays a paused one.
func (m *Manager) Toggle(ctx context.Context) (*State, error) {
	m.ctl.Lock()
	defer m.ctl.Unlock()
	if err := m.requireStarted(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	playing := m.session.IsPlaying
	m.mu.RUnlock()
	if playing {
		return m.pause(ctx)
	}
	return m.play(ctx)
}

// SetSpeed changes the playback multiplier. It affects only future ticks.
func (m *Manager) SetSpeed(ctx context.Context, factor float64) (*State, error) {
	if factor <= 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSpeed, factor)
	}
	m.ctl.Lock()
	defer m.ctl.Unlock()
	if err := m.requireStarted(); err != nil {
		return nil, err
	}

	m.commit(ctx, func(s *model.Session) { s.Speed = factor })
	m.publishPlayback(ctx, events.TopicPlaybackSpeed)
	return m.Snapshot()
}

// Tick advances the session by one playback step, persists it and announces
// the applied batch. It reports true when playback has finished or the
// session is no longer playing.
func (m *Manager) Tick(ctx context.Context) bool {
	m.saveMu.Lock()
	m.mu.Lock()
	s := m.session
	if s == nil || !s.IsPlaying {
		m.mu.Unlock()
		m.saveMu.Unlock()
		return true
	}
	applied, finished := playback.Step(m.engine, s, m.step)
	saved := s.Clone()
	m.mu.Unlock()
	m.checkpoints.Save(ctx, saved)
	m.saveMu.Unlock()

	trace.SpanFromContext(ctx).SetAttributes(
		append(sessionAttrs(saved), attribute.Int("applied", len(applied)))...)

	m.publish(ctx, events.TopicReplayTick, events.Tick{
		SessionID:    saved.ID,
		VirtualClock: saved.VirtualClock,
		CursorIndex:  saved.CursorIndex,
		LogLength:    len(saved.FullEventLog),
		Applied:      applied,
	})
	if finished {
		m.logger.Info("replay reached end of log", "session", saved.ID, "clock", saved.VirtualClock)
		m.publish(ctx, events.TopicPlaybackFinished, playbackChanged(saved))
	}
	return finished
}

// Close stops playback and persists the session as it stands, so a playing
// session resumes playing after restart.
func (m *Manager) Close(ctx context.Context) error {
	m.ctl.Lock()
	defer m.ctl.Unlock()

	m.controller.Stop()

	m.mu.RLock()
	s := m.session
	var saved *model.Session
	if s != nil {
		saved = s.Clone()
	}
	m.mu.RUnlock()

	if saved != nil {
		m.checkpoints.Save(ctx, saved)
	}
	return nil
}

// Playing reports whether the tick loop is active.
func (m *Manager) Playing() bool {
	return m.controller.Running()
}

func (m *Manager) requireStarted() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.session == nil {
		return ErrNotStarted
	}
	return nil
}

// commit applies change to the session and checkpoints the result.
func (m *Manager) commit(ctx context.Context, change func(*model.Session)) {
	m.saveMu.Lock()
	defer m.saveMu.Unlock()
	m.mu.Lock()
	change(m.session)
	saved := m.session.Clone()
	m.mu.Unlock()
	m.checkpoints.Save(ctx, saved)
}

func (m *Manager) setPlaying(playing bool) {
	m.mu.Lock()
	if m.session != nil {
		m.session.IsPlaying = playing
	}
	m.mu.Unlock()
}

func (m *Manager) publishPlayback(ctx context.Context, topic string) {
	m.mu.RLock()
	evt := playbackChanged(m.session)
	m.mu.RUnlock()
	m.publish(ctx, topic, evt)
}

func (m *Manager) publish(ctx context.Context, topic string, evt any) {
	if err := m.publisher.Publish(ctx, topic, evt); err != nil {
		m.logger.Warn("publish failed", "topic", topic, "err", err)
	}
}

func playbackChanged(s *model.Session) events.PlaybackChanged {
	return events.PlaybackChanged{
		SessionID:    s.ID,
		IsPlaying:    s.IsPlaying,
		Speed:        s.Speed,
		VirtualClock: s.VirtualClock,
		CursorIndex:  s.CursorIndex,
	}
}

func sessionAttrs(s *model.Session) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("session.id", s.ID),
		attribute.String("virtual_clock", s.VirtualClock.Format(time.RFC3339)),
		attribute.Int("cursor_index", s.CursorIndex),
		attribute.Int("log_length", len(s.FullEventLog)),
	}
}

func newSessionID() string {
	return idgen.NewOrClock(time.Now())
}
