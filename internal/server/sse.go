package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/events"
)

const (
	// historySize bounds how far back a reconnecting stream can resume.
	historySize = 1000

	keepaliveEvery = 15 * time.Second

	listenerBuffer = 64
)

// streamEvent is one notification as sent on the wire.
type streamEvent struct {
	ID    uint64
	Topic string
	Data  []byte
}

func (e streamEvent) writeTo(w io.Writer) {
	fmt.Fprintf(w, "id:%d\nevent:%s\ndata:%s\n\n", e.ID, e.Topic, e.Data)
}

// history is a fixed-size ring of the most recent events.
type history struct {
	buf   []streamEvent
	start int
	n     int
}

func newHistory(size int) *history {
	return &history{buf: make([]streamEvent, size)}
}

func (h *history) add(e streamEvent) {
	i := (h.start + h.n) % len(h.buf)
	h.buf[i] = e
	if h.n < len(h.buf) {
		h.n++
	} else {
		h.start = (h.start + 1) % len(h.buf)
	}
}

// since returns retained events with ID greater than after, oldest first.
func (h *history) since(after uint64) []streamEvent {
	var out []streamEvent
	for i := range h.n {
		e := h.buf[(h.start+i)%len(h.buf)]
		if e.ID > after {
			out = append(out, e)
		}
	}
	return out
}

// topicFilter is a set of NATS-style subject patterns. Empty matches all.
type topicFilter []string

func (f topicFilter) match(topic string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if topicMatches(p, topic) {
			return true
		}
	}
	return false
}

// topicMatches matches a dot-separated topic where "*" stands for exactly
// one segment and a trailing ">" for one or more.
func topicMatches(pattern, topic string) bool {
	for {
		pHead, pRest, pMore := strings.Cut(pattern, ".")
		tHead, tRest, tMore := strings.Cut(topic, ".")
		switch {
		case pHead == ">":
			return tHead != ""
		case pHead != "*" && pHead != tHead:
			return false
		case !pMore || !tMore:
			return pMore == tMore
		}
		pattern, topic = pRest, tRest
	}
}

// splitTopics parses the comma-separated ?topics= value.
func splitTopics(q string) topicFilter {
	var f topicFilter
	for _, t := range strings.Split(q, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f = append(f, t)
		}
	}
	return f
}

// listener is one open event stream.
type listener struct {
	filter topicFilter
	ch     chan streamEvent
}

// Hub fans session notifications out to open event streams. It is an
// events.Publisher, so the session publishes to it next to NATS.
type Hub struct {
	logger *slog.Logger

	mu        sync.Mutex
	seq       uint64
	past      *history
	listeners map[*listener]struct{}
}

var _ events.Publisher = (*Hub)(nil)

func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		logger:    logger,
		past:      newHistory(historySize),
		listeners: make(map[*listener]struct{}),
	}
}

// Publish encodes event as JSON and sends it under topic.
func (h *Hub) Publish(_ context.Context, topic string, event any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", topic, err)
	}
	h.send(topic, data)
	return nil
}

// Close is a no-op; streams end with their requests.
func (h *Hub) Close() error { return nil }

// send numbers the event, records it and offers it to every matching
// listener. A listener whose buffer is full misses the event.
func (h *Hub) send(topic string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.seq++
	e := streamEvent{ID: h.seq, Topic: topic, Data: data}
	h.past.add(e)
	for l := range h.listeners {
		if !l.filter.match(topic) {
			continue
		}
		select {
		case l.ch <- e:
		default:
			h.logger.Debug("event stream lagging, dropped event", "topic", topic, "id", e.ID)
		}
	}
}

// join registers a listener and returns it with the retained events after
// lastID that it should replay first. Both are taken under one lock so no
// event is missed or repeated.
func (h *Hub) join(filter topicFilter, lastID uint64, resume bool) (*listener, []streamEvent) {
	l := &listener{filter: filter, ch: make(chan streamEvent, listenerBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[l] = struct{}{}
	if !resume {
		return l, nil
	}
	var backlog []streamEvent
	for _, e := range h.past.since(lastID) {
		if filter.match(e.Topic) {
			backlog = append(backlog, e)
		}
	}
	return l, backlog
}

func (h *Hub) leave(l *listener) {
	h.mu.Lock()
	delete(h.listeners, l)
	h.mu.Unlock()
}

func (h *Hub) listenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// handleEventStream handles GET /v1/events/stream.
func (s *PlaybackServer) handleEventStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	lastID, err := strconv.ParseUint(r.Header.Get("Last-Event-ID"), 10, 64)
	l, backlog := s.hub.join(splitTopics(r.URL.Query().Get("topics")), lastID, err == nil)
	defer s.hub.leave(l)

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	for _, e := range backlog {
		e.writeTo(w)
	}
	flusher.Flush()

	keepalive := time.NewTicker(keepaliveEvery)
	defer keepalive.Stop()
	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-l.ch:
			e.writeTo(w)
		case <-keepalive.C:
			io.WriteString(w, ":keepalive\n\n")
		}
		flusher.Flush()
	}
}
