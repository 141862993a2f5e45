// Package client reads the appointment endpoints over HTTP
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"

	"github.com/schengenwatch/visadash/internal/model"
)

const maxErrorBody = 512

// StatusError is returned for non-2xx responses
type StatusError struct {
	Endpoint string
	Code     int
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Endpoint, e.Code, e.Body)
}

// Client talks to one backend. It records the outcome of the latest call so
// the UI can show whether the backend is reachable.
type Client struct {
	baseURL string
	client  *http.Client
	mu      sync.Mutex

	connected bool
	lastError error
	lastSeen  time.Time
}

// New creates a client for baseURL. A zero timeout leaves the transport
// default in place.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// Status returns the current connection status
func (c *Client) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	errStr := ""
	if c.lastError != nil {
		errStr = c.lastError.Error()
	}

	return ConnectionStatus{
		BaseURL:   c.baseURL,
		Connected: c.connected,
		LastError: errStr,
		LastSeen:  c.lastSeen,
	}
}

// FilteredAppointments fetches the appointments matching q
func (c *Client) FilteredAppointments(ctx context.Context, q model.FilterQuery) ([]model.Appointment, error) {
	var out []model.Appointment
	if err := c.getJSON(ctx, "/get_filtered_appointments", q.Values(), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FilterOptions fetches the known values of one filter column
func (c *Client) FilterOptions(ctx context.Context, column string) ([]string, error) {
	var out []string
	if err := c.getJSON(ctx, "/get_filter_options", url.Values{"column": {column}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// LogsModal fetches the rendered detail fragment of one appointment
func (c *Client) LogsModal(ctx context.Context, appointmentID int64) (string, error) {
	body, err := c.get(ctx, "/logs_modal", url.Values{"appointment_id": {strconv.FormatInt(appointmentID, 10)}})
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RecentAppointments fetches the recent appointment feed
func (c *Client) RecentAppointments(ctx context.Context) ([]model.LogEntry, error) {
	var out []model.LogEntry
	if err := c.getJSON(ctx, "/get_recent_appointments", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Responses fetches the stored response changes
func (c *Client) Responses(ctx context.Context) ([]model.ResponseChange, error) {
	var out []model.ResponseChange
	if err := c.getJSON(ctx, "/get_responses", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Logs fetches the general check log
func (c *Client) Logs(ctx context.Context) ([]model.LogEntry, error) {
	var out []model.LogEntry
	if err := c.getJSON(ctx, "/get_logs", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint string, params url.Values, out any) error {
	body, err := c.get(ctx, endpoint, params)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		err = errors.Wrapf(err, "decode %s", endpoint)
		c.setError(err)
		return err
	}
	return nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	u := c.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build %s request", endpoint)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		err = errors.Wrapf(err, "get %s", endpoint)
		c.setError(err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		err := &StatusError{Endpoint: endpoint, Code: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		c.setError(err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		err = errors.Wrapf(err, "read %s", endpoint)
		c.setError(err)
		return nil, err
	}

	c.mu.Lock()
	c.connected = true
	c.lastError = nil
	c.lastSeen = time.Now()
	c.mu.Unlock()

	return body, nil
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.connected = false
	c.lastError = err
	c.mu.Unlock()
}
