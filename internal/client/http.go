package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/fleetreplay/internal/model"
	"github.com/alfredjeanlab/fleetreplay/internal/session"
)

// HTTPClient talks to the server's /v1 JSON API.
type HTTPClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var _ PlaybackClient = (*HTTPClient)(nil)

// NewHTTPClient returns a client for the server at baseURL, e.g.
// "http://localhost:8080". A non-empty token is sent as a Bearer credential.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		token:      token,
		httpClient: http.DefaultClient,
	}
}

func (c *HTTPClient) Close() error { return nil }

func (c *HTTPClient) State(ctx context.Context) (*session.State, error) {
	return call[session.State](ctx, c, http.MethodGet, "/v1/state", nil)
}

func (c *HTTPClient) ListTrips(ctx context.Context, status string) ([]model.Trip, error) {
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	out, err := call[tripList](ctx, c, http.MethodGet, withQuery("/v1/trips", q), nil)
	if err != nil {
		return nil, err
	}
	return out.Trips, nil
}

func (c *HTTPClient) GetTrip(ctx context.Context, id string) (*model.Trip, error) {
	return call[model.Trip](ctx, c, http.MethodGet, "/v1/trips/"+url.PathEscape(id), nil)
}

// ListEvents always sends limit so that 0 means "all" rather than the
// server's default page.
func (c *HTTPClient) ListEvents(ctx context.Context, limit int) ([]model.Event, error) {
	q := url.Values{"limit": {strconv.Itoa(limit)}}
	out, err := call[eventList](ctx, c, http.MethodGet, withQuery("/v1/events", q), nil)
	if err != nil {
		return nil, err
	}
	return out.Events, nil
}

func (c *HTTPClient) Metrics(ctx context.Context) (*model.FleetMetrics, error) {
	return call[model.FleetMetrics](ctx, c, http.MethodGet, "/v1/metrics", nil)
}

func (c *HTTPClient) Play(ctx context.Context) (*session.State, error) {
	return c.control(ctx, "play")
}

func (c *HTTPClient) Pause(ctx context.Context) (*session.State, error) {
	return c.control(ctx, "pause")
}

func (c *HTTPClient) Toggle(ctx context.Context) (*session.State, error) {
	return c.control(ctx, "toggle")
}

func (c *HTTPClient) Reset(ctx context.Context) (*session.State, error) {
	return c.control(ctx, "reset")
}

func (c *HTTPClient) SetSpeed(ctx context.Context, factor float64) (*session.State, error) {
	body := struct {
		Speed float64 `json:"speed"`
	}{factor}
	return call[session.State](ctx, c, http.MethodPut, "/v1/playback/speed", body)
}

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	out, err := call[struct {
		Status string `json:"status"`
	}](ctx, c, http.MethodGet, "/v1/health", nil)
	if err != nil {
		return "", err
	}
	return out.Status, nil
}

func (c *HTTPClient) control(ctx context.Context, action string) (*session.State, error) {
	return call[session.State](ctx, c, http.MethodPost, "/v1/playback/"+action, nil)
}

func withQuery(path string, q url.Values) string {
	if len(q) == 0 {
		return path
	}
	return path + "?" + q.Encode()
}

// APIError is a non-2xx answer from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// newRequest builds a request against the base URL, with credentials.
func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// call sends body (if any) as JSON and decodes the response into a T.
func call[T any](ctx context.Context, c *HTTPClient, method, path string, body any) (*T, error) {
	var payload io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		payload = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, apiError(resp.StatusCode, data)
	}
	out := new(T)
	if len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return nil, fmt.Errorf("decoding %s response: %w", path, err)
		}
	}
	return out, nil
}

// apiError prefers the server's {"error": ...} message over the raw body.
func apiError(code int, body []byte) *APIError {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return &APIError{StatusCode: code, Message: e.Error}
	}
	return &APIError{StatusCode: code, Message: strings.TrimSpace(string(body))}
}
