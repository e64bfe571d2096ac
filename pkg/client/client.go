// Package client talks to the attendly organizer API. It is what an out-of-process host
// uses to claim the lease, rotate tokens and poll the event.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the attendly API client.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a new API client authenticated with an organizer bearer token.
func New(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Lease is the answer to a claim or renewal.
type Lease struct {
	Held         bool       `json:"held"`
	ExpiresAt    *time.Time `json:"expires_at"`
	LeaseSeconds int        `json:"lease_seconds"`
}

// Rotation is the answer to a rotate request.
type Rotation struct {
	Rotated   bool      `json:"rotated"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// State is the polled view of an event.
type State struct {
	Active                  bool       `json:"active"`
	RotationEnabled         bool       `json:"rotation_enabled"`
	RotationIntervalSeconds int        `json:"rotation_interval_seconds"`
	Token                   string     `json:"token"`
	TokenExpiresAt          *time.Time `json:"token_expires_at"`
	HostID                  string     `json:"host_id"`
	HostLeaseExpiresAt      *time.Time `json:"host_lease_expires_at"`
}

// EventState is a State plus the scan URL to display and the server's lease length.
type EventState struct {
	State        State     `json:"state"`
	ScanURL      string    `json:"scan_url"`
	ServerTime   time.Time `json:"server_time"`
	LeaseSeconds int       `json:"lease_seconds"`
}

type holderReq struct {
	HolderID string `json:"holder_id"`
	Stop     bool   `json:"stop,omitempty"`
}

func eventPath(eventID, suffix string) string {
	return "/api/events/" + url.PathEscape(eventID) + suffix
}

// Me returns the organizer id the token belongs to.
func (c *Client) Me(ctx context.Context) (string, error) {
	var out struct {
		Organizer struct {
			ID string `json:"id"`
		} `json:"organizer"`
	}
	if err := c.get(ctx, "/api/me", &out); err != nil {
		return "", fmt.Errorf("client.Me: %w", err)
	}
	return out.Organizer.ID, nil
}

// Claim tries to take the host lease of an event.
func (c *Client) Claim(ctx context.Context, eventID, holderID string) (*Lease, error) {
	var out struct {
		Lease Lease `json:"lease"`
	}
	if err := c.post(ctx, eventPath(eventID, "/lease/claim"), holderReq{HolderID: holderID}, &out); err != nil {
		return nil, fmt.Errorf("client.Claim: %w", err)
	}
	return &out.Lease, nil
}

// Renew extends a held lease.
func (c *Client) Renew(ctx context.Context, eventID, holderID string) (*Lease, error) {
	var out struct {
		Lease Lease `json:"lease"`
	}
	if err := c.post(ctx, eventPath(eventID, "/lease/renew"), holderReq{HolderID: holderID}, &out); err != nil {
		return nil, fmt.Errorf("client.Renew: %w", err)
	}
	return &out.Lease, nil
}

// Release hands the lease back; stop also deactivates the event.
func (c *Client) Release(ctx context.Context, eventID, holderID string, stop bool) (bool, error) {
	var out struct {
		Released bool `json:"released"`
	}
	if err := c.post(ctx, eventPath(eventID, "/lease/release"), holderReq{HolderID: holderID, Stop: stop}, &out); err != nil {
		return false, fmt.Errorf("client.Release: %w", err)
	}
	return out.Released, nil
}

// Rotate publishes a new token as the lease holder.
func (c *Client) Rotate(ctx context.Context, eventID, holderID string) (*Rotation, error) {
	var out Rotation
	if err := c.post(ctx, eventPath(eventID, "/rotate"), holderReq{HolderID: holderID}, &out); err != nil {
		return nil, fmt.Errorf("client.Rotate: %w", err)
	}
	return &out, nil
}

// State polls the event.
func (c *Client) State(ctx context.Context, eventID string) (*EventState, error) {
	var out EventState
	if err := c.get(ctx, eventPath(eventID, "/state"), &out); err != nil {
		return nil, fmt.Errorf("client.State: %w", err)
	}
	return &out, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	return c.doRequest(ctx, http.MethodPost, path, body, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.doRequest(ctx, http.MethodGet, path, nil, out)
}

// envelope is the organizer API response shape.
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	decodeErr := json.Unmarshal(respBody, &env)

	if resp.StatusCode >= 400 {
		if decodeErr == nil && env.Message != "" {
			return &HTTPError{StatusCode: resp.StatusCode, Code: env.Code, Message: env.Message}
		}
		return &HTTPError{StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	if decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return fmt.Errorf("decode data: %w", err)
		}
	}
	return nil
}
