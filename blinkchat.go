// Package blinkchat provides the Go client SDK for the BlinkChat backend.
//
// It covers the REST snapshot API, the realtime push channel, and the
// reconciliation layer that merges both into one consistent local view of
// "which rooms am I in, and what is the message log of the room I am viewing."
//
// Example:
//
//	client := blinkchat.NewClient(token)
//	channel := blinkchat.NewChannelClient(client.ChannelURL(token), nil)
//	engine := blinkchat.NewEngine(client, channel, nil)
//
//	engine.Start(ctx)
//	engine.OpenRoom(ctx, "room-1")
//	engine.SendMessage(ctx, "room-1", "hello")
package blinkchat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	DefaultBaseURL = "http://localhost:4000"
	DefaultTimeout = 30 * time.Second
)

// ============================================================================
// Client
// ============================================================================

// Client is the BlinkChat REST API client. It implements the snapshot side of
// the reconciliation layer: joined-room directory fetches, message history
// fetches, and identity resolution.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger
}

type ClientOption func(*Client)

func WithBaseURL(url string) ClientOption {
	return func(c *Client) { c.baseURL = strings.TrimRight(url, "/") }
}

func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) { c.httpClient.Timeout = timeout }
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) { c.httpClient = client }
}

func WithLogger(log zerolog.Logger) ClientOption {
	return func(c *Client) { c.log = log }
}

// NewClient creates a new BlinkChat client.
// token is the session token issued at login; pass "" for anonymous access
// (identity resolution will report unauthenticated).
func NewClient(token string, opts ...ClientOption) *Client {
	c := &Client{
		token:   token,
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		log: zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetToken sets or updates the session token, e.g. after a login flow.
func (c *Client) SetToken(token string) {
	c.token = token
}

// ChannelURL returns the push-channel endpoint for this client's base URL.
func (c *Client) ChannelURL(token string) string {
	base := strings.Replace(c.baseURL, "https://", "wss://", 1)
	base = strings.Replace(base, "http://", "ws://", 1)
	if token != "" {
		return base + "/ws?token=" + url.QueryEscape(token)
	}
	return base + "/ws"
}

// ============================================================================
// Internal request helper
// ============================================================================

func (c *Client) doRequest(ctx context.Context, method, path string, body interface{}, query map[string]string) ([]byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		params := url.Values{}
		for k, v := range query {
			params.Set(k, v)
		}
		u += "?" + params.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode, Code: strconv.Itoa(resp.StatusCode)}
		if json.Unmarshal(respBody, apiErr) != nil || apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode)
		}
		return nil, apiErr
	}

	return respBody, nil
}

func decodeJSON[T any](data []byte) (*T, error) {
	var result T
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

// ============================================================================
// Identity
// ============================================================================

// Me resolves the current user's identity from the session token.
// An unauthenticated session yields (nil, nil): callers treat a nil identity
// as "no message can be classified as mine", not as a failure.
func (c *Client) Me(ctx context.Context) (*Identity, error) {
	data, err := c.doRequest(ctx, "GET", "/api/user/me", nil, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
			return nil, nil
		}
		return nil, err
	}
	return decodeJSON[Identity](data)
}

// ============================================================================
// Rooms
// ============================================================================

// JoinedRooms fetches the directory snapshot. The server's order is the
// initial directory order; live reordering takes over from there.
func (c *Client) JoinedRooms(ctx context.Context) ([]Room, error) {
	data, err := c.doRequest(ctx, "GET", "/api/room/joined", nil, nil)
	if err != nil {
		return nil, err
	}
	var rooms []Room
	if err := json.Unmarshal(data, &rooms); err != nil {
		return nil, fmt.Errorf("failed to unmarshal rooms: %w", err)
	}
	return rooms, nil
}

// RoomDetails fetches the full room record, including members.
func (c *Client) RoomDetails(ctx context.Context, roomID string) (*RoomDetails, error) {
	data, err := c.doRequest(ctx, "GET", "/api/room/"+roomID, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[RoomDetails](data)
}

// RoomMessages fetches a room's message history snapshot, normalized to
// oldest-first. The backend returns newest-first; the reversal here is the
// single place that ordering is adapted, so the message store can trust its
// input order.
func (c *Client) RoomMessages(ctx context.Context, roomID string, limit int) ([]Message, error) {
	query := map[string]string{}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}
	data, err := c.doRequest(ctx, "GET", "/api/room/"+roomID+"/messages", nil, query)
	if err != nil {
		return nil, err
	}
	var msgs []Message
	if err := json.Unmarshal(data, &msgs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal messages: %w", err)
	}
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
	return msgs, nil
}

// RoomUpdate is a partial room-metadata update. Nil fields are left untouched.
type RoomUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Photo       *string `json:"photo,omitempty"`
}

// UpdateRoom edits room metadata. Callers that share a directory with a
// running engine should publish on the invalidation bridge afterwards so the
// directory refetches.
func (c *Client) UpdateRoom(ctx context.Context, roomID string, update RoomUpdate) error {
	_, err := c.doRequest(ctx, "PUT", "/api/room/"+roomID+"/update", update, nil)
	return err
}

// CreateRoom creates a room and joins the caller to it.
func (c *Client) CreateRoom(ctx context.Context, name, description string) (*Room, error) {
	payload := map[string]string{"name": name}
	if description != "" {
		payload["description"] = description
	}
	data, err := c.doRequest(ctx, "POST", "/api/room", payload, nil)
	if err != nil {
		return nil, err
	}
	return decodeJSON[Room](data)
}

// LeaveRoom removes the caller from a room's membership.
func (c *Client) LeaveRoom(ctx context.Context, roomID string) error {
	_, err := c.doRequest(ctx, "POST", "/api/room/"+roomID+"/leave", struct{}{}, nil)
	return err
}
