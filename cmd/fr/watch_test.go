package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	natsserver "github.com/nats-io/nats-server/v2/server"

	"github.com/alfredjeanlab/fleetreplay/internal/client"
	"github.com/alfredjeanlab/fleetreplay/internal/events"
	"github.com/alfredjeanlab/fleetreplay/internal/model"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	return data
}

func TestFormatWatchLine_Tick(t *testing.T) {
	tick := events.Tick{
		SessionID:    "fr-1",
		VirtualClock: t0.Add(time.Minute),
		CursorIndex:  4,
		LogLength:    9,
		Applied: []model.Event{
			{TripID: "A", Timestamp: t0.Add(time.Minute), Type: model.EventFuelLevelLow, Payload: model.FuelLevelLow{Fuel: model.Float(8)}},
			{TripID: "B", Timestamp: t0.Add(time.Minute), Type: model.EventSignalLost, Payload: model.SignalLost{}},
		},
	}
	line, err := formatWatchLine(events.TopicReplayTick, mustJSON(t, tick))
	if err != nil {
		t.Fatalf("formatWatchLine: %v", err)
	}
	want := "2025-11-03 10:01:00  tick  4/9 events\n    A fuel_level_low (fuel 8%)\n    B signal_lost"
	if line != want {
		t.Errorf("line =\n%s\nwant\n%s", line, want)
	}
}

func TestFormatWatchLine_Playback(t *testing.T) {
	pc := events.PlaybackChanged{SessionID: "fr-1", IsPlaying: true, Speed: 4, VirtualClock: t0, CursorIndex: 2}
	line, err := formatWatchLine(events.TopicPlaybackSpeed, mustJSON(t, pc))
	if err != nil {
		t.Fatalf("formatWatchLine: %v", err)
	}
	if line != "2025-11-03 10:00:00  speed  playing at 4x, cursor 2" {
		t.Errorf("line = %q", line)
	}
}

func TestFormatWatchLine_BadPayload(t *testing.T) {
	if _, err := formatWatchLine(events.TopicReplayTick, []byte("not json")); err == nil {
		t.Error("expected error for malformed tick")
	}
	if _, err := formatWatchLine(events.TopicPlaybackPaused, []byte("[")); err == nil {
		t.Error("expected error for malformed playback change")
	}
}

func TestWatchNATS(t *testing.T) {
	srv, err := natsserver.NewServer(&natsserver.Options{Host: "127.0.0.1", Port: -1})
	if err != nil {
		t.Fatalf("starting embedded NATS: %v", err)
	}
	srv.Start()
	t.Cleanup(srv.Shutdown)
	if !srv.ReadyForConnections(5 * time.Second) {
		t.Fatal("embedded NATS not ready")
	}

	ch, closeWatch, err := watchNATS(srv.ClientURL(), []string{"fleet.playback.*"})
	if err != nil {
		t.Fatalf("watchNATS: %v", err)
	}
	defer closeWatch()

	pub, err := events.NewNATSPublisher(srv.ClientURL())
	if err != nil {
		t.Fatalf("creating publisher: %v", err)
	}
	defer pub.Close()

	ctx := context.Background()
	if err := pub.Publish(ctx, events.TopicReplayTick, events.Tick{}); err != nil {
		t.Fatal(err)
	}
	if err := pub.Publish(ctx, events.TopicPlaybackPaused, events.PlaybackChanged{Speed: 1}); err != nil {
		t.Fatal(err)
	}

	select {
	case evt := <-ch:
		if evt.Topic != events.TopicPlaybackPaused {
			t.Fatalf("got topic %q, want %q", evt.Topic, events.TopicPlaybackPaused)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for paused event")
	}

	closeWatch()
	if _, ok := <-ch; ok {
		t.Error("channel still open after close")
	}
}

func TestPrintStream(t *testing.T) {
	ch := make(chan client.StreamEvent, 3)
	ch <- client.StreamEvent{Topic: events.TopicPlaybackPaused, Data: mustJSON(t, events.PlaybackChanged{Speed: 1, VirtualClock: t0})}
	ch <- client.StreamEvent{Topic: events.TopicReplayTick, Data: []byte("garbage")}
	ch <- client.StreamEvent{Topic: events.TopicPlaybackStarted, Data: mustJSON(t, events.PlaybackChanged{IsPlaying: true, Speed: 2, VirtualClock: t0})}
	close(ch)

	var buf bytes.Buffer
	if err := printStream(context.Background(), &buf, ch); err != nil {
		t.Fatalf("printStream: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected the malformed event to be skipped, got:\n%s", buf.String())
	}
	if !strings.Contains(lines[0], "paused") || !strings.Contains(lines[1], "playing at 2x") {
		t.Errorf("output:\n%s", buf.String())
	}
}

func TestPrintStream_JSON(t *testing.T) {
	jsonOutput = true
	t.Cleanup(func() { jsonOutput = false })

	ch := make(chan client.StreamEvent, 1)
	ch <- client.StreamEvent{Topic: events.TopicPlaybackReset, Data: []byte(`{"cursor_index":0}`)}
	close(ch)

	var buf bytes.Buffer
	if err := printStream(context.Background(), &buf, ch); err != nil {
		t.Fatalf("printStream: %v", err)
	}
	var got struct {
		Topic string          `json:"topic"`
		Data  json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, buf.String())
	}
	if got.Topic != events.TopicPlaybackReset || string(got.Data) != `{"cursor_index":0}` {
		t.Errorf("got %+v", got)
	}
}
