// Package checkpoint saves and restores whole replay sessions through a
// store.Store under a single fixed key.
package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/store"
)

// DefaultKey is the store key sessions are saved under.
const DefaultKey = "fleetTrackingState"

// ErrNoCheckpoint means no usable checkpoint exists: the key is absent, or the
// stored document is empty, unparsable, or incomplete.
var ErrNoCheckpoint = errors.New("no checkpoint")

// Manager reads and writes the session checkpoint.
type Manager struct {
	store  store.Store
	key    string
	logger *slog.Logger
}

// New creates a Manager. An empty key uses DefaultKey.
func New(s store.Store, key string, logger *slog.Logger) *Manager {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{store: s, key: key, logger: logger}
}

// Key returns the store key in use.
func (m *Manager) Key() string {
	return m.key
}

// Save serializes the full session. Failures are logged and swallowed.
func (m *Manager) Save(ctx context.Context, s *model.Session) {
	data, err := json.Marshal(s)
	if err != nil {
		m.logger.Warn("checkpoint encode failed", "key", m.key, "err", err)
		return
	}
	if err := m.store.Set(ctx, m.key, string(data)); err != nil {
		m.logger.Warn("checkpoint save failed", "key", m.key, "err", err)
	}
}

// Clear removes the stored checkpoint. Failures are logged and swallowed.
func (m *Manager) Clear(ctx context.Context) {
	if err := m.store.Remove(ctx, m.key); err != nil {
		m.logger.Warn("checkpoint clear failed", "key", m.key, "err", err)
	}
}

// Load restores the saved session. Any problem reading or decoding it yields
// ErrNoCheckpoint, wrapped with the reason.
func (m *Manager) Load(ctx context.Context) (*model.Session, error) {
	raw, err := m.store.Get(ctx, m.key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			m.logger.Warn("checkpoint read failed", "key", m.key, "err", err)
		}
		return nil, fmt.Errorf("%w: %v", ErrNoCheckpoint, err)
	}
	return Decode(raw)
}

// Decode parses a checkpoint document. It rejects documents that lack trips
// or the full event log, and cursors that fall outside the log.
func Decode(raw string) (*model.Session, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: empty document", ErrNoCheckpoint)
	}

	var keys struct {
		Trips *json.RawMessage `json:"trips"`
		Log   *json.RawMessage `json:"full_event_log"`
	}
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCheckpoint, err)
	}
	if keys.Trips == nil {
		return nil, fmt.Errorf("%w: missing trips", ErrNoCheckpoint)
	}
	if keys.Log == nil {
		return nil, fmt.Errorf("%w: missing full_event_log", ErrNoCheckpoint)
	}

	var s model.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNoCheckpoint, err)
	}
	if s.CursorIndex < 0 || s.CursorIndex > len(s.FullEventLog) {
		return nil, fmt.Errorf("%w: cursor %d outside log of %d events", ErrNoCheckpoint, s.CursorIndex, len(s.FullEventLog))
	}
	// Applied events are always the log prefix up to the cursor; the stored
	// copy is ignored.
	s.AppliedEvents = make([]model.Event, s.CursorIndex)
	copy(s.AppliedEvents, s.FullEventLog)
	if s.Speed <= 0 {
		s.Speed = 1
	}
	return &s, nil
}
