// Package client provides an HTTP client for the user directory API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"userdir/pkg/domain"
)

// Client talks to a user directory server over HTTP/JSON.
type Client struct {
	http    *http.Client
	baseURL string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithHTTPClient replaces the underlying *http.Client entirely.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// New creates a directory client for the given base URL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:    &http.Client{Timeout: 30 * time.Second},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RemoteError reports a non-success API response.
type RemoteError struct {
	Status  int    // HTTP status code, 0 when the request never completed
	Message string // server-provided error message or transport description
	Err     error  // underlying transport error, if any
}

func (e *RemoteError) Error() string { return e.Message }

// Unwrap exposes the transport error for errors.Is/As.
func (e *RemoteError) Unwrap() error { return e.Err }

// IsNotFound reports whether the error is a 404 from the server.
func (e *RemoteError) IsNotFound() bool { return e.Status == http.StatusNotFound }

type usersResponse struct {
	Users []domain.User `json:"users"`
}

type deleteResponse struct {
	Message string      `json:"message"`
	User    domain.User `json:"user"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// ListUsers fetches all directory entries.
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var resp usersResponse
	if err := c.do(ctx, http.MethodGet, "/api/users", nil, http.StatusOK, &resp); err != nil {
		return nil, err
	}
	return resp.Users, nil
}

// CreateUser submits a draft and returns the stored entry with its id.
func (c *Client) CreateUser(ctx context.Context, draft domain.UserDraft) (domain.User, error) {
	var created domain.User
	if err := c.do(ctx, http.MethodPost, "/api/users", draft, http.StatusCreated, &created); err != nil {
		return domain.User{}, err
	}
	return created, nil
}

// UpdateUser overwrites the entry with the draft values.
func (c *Client) UpdateUser(ctx context.Context, id string, draft domain.UserDraft) (domain.User, error) {
	var updated domain.User
	if err := c.do(ctx, http.MethodPut, "/api/users/"+id, draft, http.StatusOK, &updated); err != nil {
		return domain.User{}, err
	}
	return updated, nil
}

// DeleteUser removes the entry and returns the server's copy of it.
func (c *Client) DeleteUser(ctx context.Context, id string) (domain.User, error) {
	var resp deleteResponse
	if err := c.do(ctx, http.MethodDelete, "/api/users/"+id, nil, http.StatusOK, &resp); err != nil {
		return domain.User{}, err
	}
	return resp.User, nil
}

// Health checks server liveness.
func (c *Client) Health(ctx context.Context) error {
	var resp healthResponse
	return c.do(ctx, http.MethodGet, "/api/health", nil, http.StatusOK, &resp)
}

func (c *Client) do(ctx context.Context, method, path string, body any, wantStatus int, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("client: encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("client: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RemoteError{Message: "network error", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RemoteError{Status: resp.StatusCode, Message: "invalid server response", Err: err}
	}
	return nil
}

// decodeError extracts the server's structured error message; an absent or
// unparsable body maps to the generic transport-failure message.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(resp.Body)
	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		return &RemoteError{Status: resp.StatusCode, Message: body.Error}
	}
	return &RemoteError{Status: resp.StatusCode, Message: "network error"}
}
