package client

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// StreamEvent is one server-sent event from GET /v1/events/stream.
type StreamEvent struct {
	ID    string
	Topic string
	Data  []byte
}

// Stream opens the SSE endpoint and delivers events on the returned channel
// until ctx is cancelled or the server closes the connection. topics are
// NATS-style patterns; an empty list receives everything. A non-empty
// lastEventID replays buffered events newer than it.
func (c *HTTPClient) Stream(ctx context.Context, topics []string, lastEventID string) (<-chan StreamEvent, error) {
	path := "/v1/events/stream"
	if len(topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(topics, ",")}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/event-stream")
	if lastEventID != "" {
		req.Header.Set("Last-Event-ID", lastEventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("performing request: %w", err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, apiError(resp.StatusCode, body)
	}

	ch := make(chan StreamEvent, 16)
	go func() {
		defer close(ch)
		defer resp.Body.Close()
		readStream(ctx, bufio.NewScanner(resp.Body), ch)
	}()
	return ch, nil
}

// readStream parses "field:value" lines into events. A blank line ends an
// event; lines starting with ':' are comments (keepalives).
func readStream(ctx context.Context, sc *bufio.Scanner, ch chan<- StreamEvent) {
	var cur StreamEvent
	for sc.Scan() {
		line := sc.Text()
		if line == "" {
			if cur.Topic != "" || cur.Data != nil {
				select {
				case ch <- cur:
				case <-ctx.Done():
					return
				}
			}
			cur = StreamEvent{}
			continue
		}
		if strings.HasPrefix(line, ":") {
			continue
		}
		field, value, _ := strings.Cut(line, ":")
		value = strings.TrimPrefix(value, " ")
		switch field {
		case "id":
			cur.ID = value
		case "event":
			cur.Topic = value
		case "data":
			if cur.Data != nil {
				cur.Data = append(cur.Data, '\n')
			}
			cur.Data = append(cur.Data, value...)
		}
	}
}
