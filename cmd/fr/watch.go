package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/fleetreplay/internal/client"
	"github.com/alfredjeanlab/fleetreplay/internal/events"
	"github.com/alfredjeanlab/fleetreplay/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:     "watch",
	Short:   "Follow playback ticks and control changes as they happen",
	GroupID: "views",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics, _ := cmd.Flags().GetStringSlice("topics")
		natsURL, _ := cmd.Flags().GetString("nats")
		if natsURL == "" {
			natsURL = os.Getenv("FLEETREPLAY_NATS_URL")
		}
		if natsURL == "" {
			natsURL = currentRemote().NATSURL
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var (
			ch  <-chan client.StreamEvent
			err error
		)
		if natsURL != "" {
			var closeSub func()
			ch, closeSub, err = watchNATS(natsURL, topics)
			if err != nil {
				return err
			}
			defer closeSub()
		} else {
			hc, ok := frClient.(*client.HTTPClient)
			if !ok {
				return fmt.Errorf("watch needs the http transport or a NATS URL (--nats)")
			}
			ch, err = hc.Stream(ctx, topics, "")
			if err != nil {
				return fmt.Errorf("opening event stream: %w", err)
			}
		}
		return printStream(ctx, cmd.OutOrStdout(), ch)
	},
}

// watchNATS subscribes to each pattern (all session topics when none are
// given) and merges the messages into one channel. The returned func
// unsubscribes and closes the connection.
func watchNATS(url string, patterns []string) (<-chan client.StreamEvent, func(), error) {
	if len(patterns) == 0 {
		patterns = []string{"fleet.>"}
	}
	sub, err := events.NewNATSSubscriber(url,
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Printf("nats: disconnected: %v", err)
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			log.Printf("nats: reconnected")
		}),
	)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan client.StreamEvent, 64)
	var (
		wg    sync.WaitGroup
		stops []func()
	)
	stopAll := func() {
		for _, stop := range stops {
			stop()
		}
		wg.Wait()
		sub.Close()
	}

	for _, pattern := range patterns {
		ch, stop, err := sub.Subscribe(pattern)
		if err != nil {
			stopAll()
			return nil, nil, err
		}
		stops = append(stops, stop)
		wg.Add(1)
		go func() {
			defer wg.Done()
			for msg := range ch {
				select {
				case out <- client.StreamEvent{Topic: msg.Topic, Data: msg.Data}:
				default:
				}
			}
		}()
	}

	var once sync.Once
	return out, func() {
		once.Do(func() {
			stopAll()
			close(out)
		})
	}, nil
}

func printStream(ctx context.Context, w io.Writer, ch <-chan client.StreamEvent) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-ch:
			if !ok {
				return nil
			}
			if jsonOutput {
				fmt.Fprintf(w, "{\"topic\":%q,\"data\":%s}\n", evt.Topic, evt.Data)
				continue
			}
			line, err := formatWatchLine(evt.Topic, evt.Data)
			if err != nil {
				fmt.Fprintf(os.Stderr, "skipping %s: %v\n", evt.Topic, err)
				continue
			}
			fmt.Fprintln(w, line)
		}
	}
}

// formatWatchLine renders one notification for the terminal.
func formatWatchLine(topic string, data []byte) (string, error) {
	if topic == events.TopicReplayTick {
		var tick events.Tick
		if err := json.Unmarshal(data, &tick); err != nil {
			return "", fmt.Errorf("decoding tick: %w", err)
		}
		line := fmt.Sprintf("%s  %s  %d/%d events",
			formatClock(tick.VirtualClock), ui.RenderMuted("tick"), tick.CursorIndex, tick.LogLength)
		for _, e := range tick.Applied {
			detail := describeEvent(e)
			if detail != "" {
				detail = " (" + detail + ")"
			}
			line += fmt.Sprintf("\n    %s %s%s", e.TripID, e.Type, detail)
		}
		return line, nil
	}

	var pc events.PlaybackChanged
	if err := json.Unmarshal(data, &pc); err != nil {
		return "", fmt.Errorf("decoding playback change: %w", err)
	}
	action := strings.TrimPrefix(topic, "fleet.playback.")
	return fmt.Sprintf("%s  %s  %s at %gx, cursor %d",
		formatClock(pc.VirtualClock), ui.RenderAccent(action), ui.RenderPlaying(pc.IsPlaying), pc.Speed, pc.CursorIndex), nil
}

func init() {
	watchCmd.Flags().StringSlice("topics", nil, "topic patterns to follow, e.g. fleet.playback.* (default all)")
	watchCmd.Flags().String("nats", "", "read events from NATS instead of the server's SSE stream")
}
