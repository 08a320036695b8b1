// Package client is a typed HTTP client for the mirage-sim server.
package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mirage-os/mirage-sim/server"
	"github.com/mirage-os/mirage-sim/sim"
	"github.com/mirage-os/mirage-sim/sim/memory"
)

// DefaultTimeout bounds every non-streaming request.
const DefaultTimeout = 30 * time.Second

// StatusError is returned when the server answers with a non-200 status.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Client talks to a running mirage-sim server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a client for the server at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
	}
}

type algorithmBody struct {
	Success   bool   `json:"success,omitempty"`
	Algorithm string `json:"algorithm"`
}

type quantumBody struct {
	Success     bool  `json:"success,omitempty"`
	TimeQuantum int64 `json:"timeQuantum"`
}

type statusBody struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// State fetches the scheduler state.
func (c *Client) State(ctx context.Context) (sim.SystemState, error) {
	var st sim.SystemState
	err := c.do(ctx, http.MethodGet, "/api/processes", nil, &st)
	return st, err
}

// AddProcess admits a process and returns it as assigned by the server.
func (c *Client) AddProcess(ctx context.Context, spec sim.ProcessSpec) (sim.Process, error) {
	var resp struct {
		Success bool        `json:"success"`
		Process sim.Process `json:"process"`
	}
	err := c.do(ctx, http.MethodPost, "/api/processes", spec, &resp)
	return resp.Process, err
}

// Process fetches a single process by id. An unknown id is a *StatusError with code 404.
func (c *Client) Process(ctx context.Context, id int64) (sim.Process, error) {
	var p sim.Process
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/processes/%d", id), nil, &p)
	return p, err
}

// RemoveProcess deletes a process. Unknown ids are not an error.
func (c *Client) RemoveProcess(ctx context.Context, id int64) error {
	var resp statusBody
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/processes/%d", id), nil, &resp)
}

// Step executes one scheduler tick.
func (c *Client) Step(ctx context.Context) (sim.SystemState, error) {
	var st sim.SystemState
	err := c.do(ctx, http.MethodPost, "/api/processes/step", nil, &st)
	return st, err
}

// SetSchedulingAlgorithm switches the scheduling policy and returns the policy the server resolved.
func (c *Client) SetSchedulingAlgorithm(ctx context.Context, name string) (sim.SchedulingPolicy, error) {
	var resp algorithmBody
	err := c.do(ctx, http.MethodPost, "/api/processes/algorithm", algorithmBody{Algorithm: name}, &resp)
	return sim.SchedulingPolicy(resp.Algorithm), err
}

// SetTimeQuantum sets the round-robin quantum and returns the value applied.
func (c *Client) SetTimeQuantum(ctx context.Context, n int64) (int64, error) {
	var resp quantumBody
	err := c.do(ctx, http.MethodPost, "/api/processes/quantum", quantumBody{TimeQuantum: n}, &resp)
	return resp.TimeQuantum, err
}

// Reset rewinds the scheduler, keeping its processes.
func (c *Client) Reset(ctx context.Context) (sim.SystemState, error) {
	var st sim.SystemState
	err := c.do(ctx, http.MethodPost, "/api/processes/reset", nil, &st)
	return st, err
}

// Memory fetches the allocator state.
func (c *Client) Memory(ctx context.Context) (memory.MemoryState, error) {
	var st memory.MemoryState
	err := c.do(ctx, http.MethodGet, "/api/memory", nil, &st)
	return st, err
}

// Allocate requests size bytes for processID. An engine-level refusal is reported in
// the result with Success false, not as an error.
func (c *Client) Allocate(ctx context.Context, processID string, size int64) (memory.AllocationResult, error) {
	var res memory.AllocationResult
	body := struct {
		ProcessID string `json:"processId"`
		Size      int64  `json:"size"`
	}{processID, size}
	err := c.do(ctx, http.MethodPost, "/api/memory/allocate", body, &res)
	return res, err
}

// Deallocate frees the memory held by processID.
func (c *Client) Deallocate(ctx context.Context, processID string) (memory.DeallocationResult, error) {
	var res memory.DeallocationResult
	body := struct {
		ProcessID string `json:"processId"`
	}{processID}
	err := c.do(ctx, http.MethodPost, "/api/memory/deallocate", body, &res)
	return res, err
}

// SetAllocationAlgorithm switches the placement policy and returns the policy the server resolved.
func (c *Client) SetAllocationAlgorithm(ctx context.Context, name string) (memory.PlacementPolicy, error) {
	var resp algorithmBody
	err := c.do(ctx, http.MethodPost, "/api/memory/algorithm", algorithmBody{Algorithm: name}, &resp)
	return memory.PlacementPolicy(resp.Algorithm), err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s %s request: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("creating %s %s request: %w", method, path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading %s %s response: %w", method, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return statusError(resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func statusError(code int, data []byte) error {
	var sb statusBody
	if err := json.Unmarshal(data, &sb); err == nil && sb.Message != "" {
		return &StatusError{StatusCode: code, Message: sb.Message}
	}
	return &StatusError{StatusCode: code, Message: strings.TrimSpace(string(data))}
}

// Subscribe streams server events to fn until ctx is cancelled, the server closes the
// stream, or fn returns an error. A closed stream is not retried; call Subscribe again.
func (c *Client) Subscribe(ctx context.Context, fn func(eventType string, snap server.Snapshot) error) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/events", nil)
	if err != nil {
		return fmt.Errorf("creating subscribe request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	// streaming responses outlive the request timeout
	stream := &http.Client{Transport: c.httpClient.Transport}
	resp, err := stream.Do(req)
	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return statusError(resp.StatusCode, data)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var eventType string
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			eventType = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			var snap server.Snapshot
			if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &snap); err != nil {
				logrus.Warnf("skipping malformed %s event: %v", eventType, err)
				continue
			}
			if err := fn(eventType, snap); err != nil {
				return err
			}
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, context.Canceled) && ctx.Err() == nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}
