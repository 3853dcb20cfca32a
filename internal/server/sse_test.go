package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alfredjeanlab/fleetreplay/internal/events"
)

func TestHub_SendAndReceive(t *testing.T) {
	hub := NewHub(quietLogger())

	client, _ := hub.join(nil, 0, false)
	defer hub.leave(client)

	hub.send(events.TopicPlaybackStarted, []byte(`{"speed":1}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicPlaybackStarted || string(evt.Data) != `{"speed":1}` || evt.ID != 1 {
			t.Fatalf("unexpected event: %+v", evt)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestHub_PublishEncodesJSON(t *testing.T) {
	hub := NewHub(quietLogger())
	client, _ := hub.join([]string{"fleet.replay.*"}, 0, false)
	defer hub.leave(client)

	err := hub.Publish(context.Background(), events.TopicReplayTick, events.Tick{SessionID: "fr-1", CursorIndex: 3, LogLength: 9})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}

	select {
	case evt := <-client.ch:
		var tick events.Tick
		if err := json.Unmarshal(evt.Data, &tick); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if tick.SessionID != "fr-1" || tick.CursorIndex != 3 {
			t.Fatalf("tick = %+v", tick)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	if err := hub.Publish(context.Background(), "x", make(chan int)); err == nil {
		t.Fatal("expected marshal error")
	}
}

func TestHub_TopicFiltering(t *testing.T) {
	hub := NewHub(quietLogger())

	client, _ := hub.join([]string{"fleet.playback.*"}, 0, false)
	defer hub.leave(client)

	hub.send(events.TopicReplayTick, []byte(`{}`))
	hub.send(events.TopicPlaybackPaused, []byte(`{}`))

	select {
	case evt := <-client.ch:
		if evt.Topic != events.TopicPlaybackPaused {
			t.Fatalf("expected topic=%q, got %q", events.TopicPlaybackPaused, evt.Topic)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}

	select {
	case evt := <-client.ch:
		t.Fatalf("unexpected event: topic=%q", evt.Topic)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_Leave(t *testing.T) {
	hub := NewHub(quietLogger())

	client, _ := hub.join(nil, 0, false)
	hub.leave(client)
	if hub.listenerCount() != 0 {
		t.Fatalf("clients = %d", hub.listenerCount())
	}

	hub.send(events.TopicReplayTick, []byte(`{}`))

	select {
	case <-client.ch:
		t.Fatal("should not receive events after leave")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHub_LaggingListenerDoesNotBlock(t *testing.T) {
	hub := NewHub(quietLogger())
	client, _ := hub.join(nil, 0, false)
	defer hub.leave(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range cap(client.ch) + 10 {
			hub.send(events.TopicReplayTick, []byte(`{}`))
		}
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("send blocked on a full listener")
	}
	if len(client.ch) != cap(client.ch) {
		t.Fatalf("buffered %d, want %d", len(client.ch), cap(client.ch))
	}
}

func TestHistory(t *testing.T) {
	h := newHistory(3)
	if got := h.since(0); len(got) != 0 {
		t.Fatalf("empty history returned %d events", len(got))
	}
	for id := uint64(1); id <= 5; id++ {
		h.add(streamEvent{ID: id})
	}
	got := h.since(0)
	if len(got) != 3 || got[0].ID != 3 || got[2].ID != 5 {
		t.Fatalf("since(0) = %+v, want ids 3..5", got)
	}
	if got := h.since(4); len(got) != 1 || got[0].ID != 5 {
		t.Fatalf("since(4) = %+v", got)
	}
}

func TestHub_HistoryWraps(t *testing.T) {
	hub := NewHub(quietLogger())
	for range historySize + 100 {
		hub.send(events.TopicReplayTick, []byte(`{}`))
	}

	_, backlog := hub.join(nil, 0, true)
	if len(backlog) != historySize {
		t.Fatalf("expected %d events, got %d", historySize, len(backlog))
	}
	if backlog[0].ID != 101 {
		t.Fatalf("expected oldest event ID=101, got %d", backlog[0].ID)
	}
}

func TestHub_JoinBacklog(t *testing.T) {
	hub := NewHub(quietLogger())
	hub.send(events.TopicReplayTick, []byte(`1`))
	hub.send(events.TopicPlaybackPaused, []byte(`2`))
	hub.send(events.TopicReplayTick, []byte(`3`))

	tests := []struct {
		name   string
		filter topicFilter
		lastID uint64
		resume bool
		want   []uint64
	}{
		{"fresh stream", nil, 0, false, nil},
		{"resume all", nil, 1, true, []uint64{2, 3}},
		{"resume filtered", topicFilter{"fleet.replay.*"}, 0, true, []uint64{1, 3}},
		{"up to date", nil, 3, true, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			l, backlog := hub.join(tc.filter, tc.lastID, tc.resume)
			defer hub.leave(l)
			var ids []uint64
			for _, e := range backlog {
				ids = append(ids, e.ID)
			}
			if len(ids) != len(tc.want) {
				t.Fatalf("backlog ids = %v, want %v", ids, tc.want)
			}
			for i := range ids {
				if ids[i] != tc.want[i] {
					t.Fatalf("backlog ids = %v, want %v", ids, tc.want)
				}
			}
		})
	}
}

func TestTopicMatches(t *testing.T) {
	for _, tc := range []struct {
		pattern string
		topic   string
		want    bool
	}{
		{"fleet.replay.tick", "fleet.replay.tick", true},
		{"fleet.playback.paused", "fleet.playback.started", false},
		{"fleet.playback.*", "fleet.playback.reset", true},
		{"fleet.playback.*", "fleet.replay.tick", false},
		{"fleet.>", "fleet.replay.tick", true},
		{"fleet.>", "fleet", false},
		{"fleet.>", "other.topic", false},
		{"*.*.*", "fleet.playback.speed", true},
		{"*.*.*", "fleet.playback", false},
		{"fleet.playback", "fleet.playback.speed", false},
		{">", "fleet", true},
	} {
		t.Run(tc.pattern+"_"+tc.topic, func(t *testing.T) {
			if got := topicMatches(tc.pattern, tc.topic); got != tc.want {
				t.Fatalf("topicMatches(%q, %q) = %v, want %v", tc.pattern, tc.topic, got, tc.want)
			}
		})
	}
}

func TestSplitTopics(t *testing.T) {
	got := splitTopics(" fleet.playback.* ,, fleet.replay.tick")
	if len(got) != 2 || got[0] != "fleet.playback.*" || got[1] != "fleet.replay.tick" {
		t.Fatalf("splitTopics = %q", got)
	}
	if splitTopics("") != nil {
		t.Fatal("expected nil for empty query")
	}
}

// streamFor runs the SSE handler for req until fn returns, then cancels it
// and returns the body written.
func streamFor(t *testing.T, handler http.Handler, req *http.Request, fn func()) string {
	t.Helper()
	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(rec, req)
	}()

	// Give the handler time to register the subscription.
	time.Sleep(50 * time.Millisecond)
	fn()
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected Content-Type=text/event-stream, got %q", ct)
	}
	return rec.Body.String()
}

func TestHandleEventStream_PlaybackEvents(t *testing.T) {
	_, m, handler := newTestServer(t)
	req := httptest.NewRequest("GET", "/v1/events/stream", nil)

	body := streamFor(t, handler, req, func() {
		ctx := context.Background()
		if _, err := m.Play(ctx); err != nil {
			t.Errorf("play: %v", err)
		}
		m.Tick(ctx)
		if _, err := m.Pause(ctx); err != nil {
			t.Errorf("pause: %v", err)
		}
	})

	for _, topic := range []string{events.TopicPlaybackStarted, events.TopicReplayTick, events.TopicPlaybackPaused} {
		if !strings.Contains(body, "event:"+topic) {
			t.Fatalf("expected event:%s in body, got:\n%s", topic, body)
		}
	}
}

func TestHandleEventStream_TopicFilter(t *testing.T) {
	s, _, handler := newTestServer(t)
	req := httptest.NewRequest("GET", "/v1/events/stream?topics=fleet.playback.*", nil)

	body := streamFor(t, handler, req, func() {
		s.Hub().send(events.TopicReplayTick, []byte(`{"cursor_index":3}`))
		s.Hub().send(events.TopicPlaybackSpeed, []byte(`{"speed":4}`))
	})

	if strings.Contains(body, events.TopicReplayTick) {
		t.Fatalf("expected tick to be filtered out, got:\n%s", body)
	}
	if !strings.Contains(body, events.TopicPlaybackSpeed) {
		t.Fatalf("expected speed event in body, got:\n%s", body)
	}
}

func TestHandleEventStream_LastEventID(t *testing.T) {
	s, _, handler := newTestServer(t)

	s.Hub().send(events.TopicReplayTick, []byte(`{"n":1}`))
	s.Hub().send(events.TopicReplayTick, []byte(`{"n":2}`))
	s.Hub().send(events.TopicPlaybackFinished, []byte(`{"n":3}`))

	req := httptest.NewRequest("GET", "/v1/events/stream", nil)
	req.Header.Set("Last-Event-ID", "1")
	body := streamFor(t, handler, req, func() {})

	if strings.Contains(body, `data:{"n":1}`) {
		t.Fatalf("expected event 1 to be skipped, got:\n%s", body)
	}
	if !strings.Contains(body, `data:{"n":2}`) || !strings.Contains(body, `data:{"n":3}`) {
		t.Fatalf("expected events 2 and 3 in body, got:\n%s", body)
	}
}

func TestSSEEventFormat(t *testing.T) {
	s, _, handler := newTestServer(t)
	req := httptest.NewRequest("GET", "/v1/events/stream", nil)

	body := streamFor(t, handler, req, func() {
		s.Hub().send(events.TopicPlaybackReset, []byte(`{"session_id":"fr-fmt"}`))
	})

	scanner := bufio.NewScanner(strings.NewReader(body))
	var id, event, data string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "id:"):
			id = strings.TrimPrefix(line, "id:")
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimPrefix(line, "event:")
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimPrefix(line, "data:")
		}
	}

	if id == "" {
		t.Fatal("expected non-empty id field")
	}
	if event != events.TopicPlaybackReset {
		t.Fatalf("expected event=%s, got %q", events.TopicPlaybackReset, event)
	}
	if data != `{"session_id":"fr-fmt"}` {
		t.Fatalf("expected data=%q, got %q", `{"session_id":"fr-fmt"}`, data)
	}
}
