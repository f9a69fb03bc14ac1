// Package sdkclient talks to the small HTTP server each coding session
// embeds, the way internal/github's PRClient wraps a JSON HTTP API with
// an explicit readiness/backoff loop and context-scoped requests.
package sdkclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrServerNotReady is returned by WaitForServer when the deadline
// elapses without a successful probe.
var ErrServerNotReady = errors.New("server not ready")

// ErrSendFailed wraps any failure to deliver a prompt.
var ErrSendFailed = errors.New("failed to send prompt")

// Client is bound to a single session's local HTTP server.
type Client struct {
	baseURL    string
	password   string
	httpClient *http.Client
}

// CreateJobClient constructs a Client bound to http://127.0.0.1:<port>.
// When password is non-empty, every request carries HTTP Basic auth with
// username "opencode".
func CreateJobClient(port int, password string) *Client {
	return &Client{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", port),
		password:   password,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) authHeader() string {
	if c.password == "" {
		return ""
	}
	raw := "opencode:" + c.password
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(raw))
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth := c.authHeader(); auth != "" {
		req.Header.Set("Authorization", auth)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(data))
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// WaitForServerOptions configures WaitForServer.
type WaitForServerOptions struct {
	TimeoutMs int // default 60000
	Password  string
}

// WaitForServer polls session.list with exponential backoff (100ms start,
// factor 1.5, capped at 5s) until it succeeds or the timeout elapses.
func WaitForServer(ctx context.Context, port int, opts WaitForServerOptions) (*Client, error) {
	timeout := time.Duration(opts.TimeoutMs) * time.Millisecond
	if opts.TimeoutMs <= 0 {
		timeout = 60 * time.Second
	}

	client := CreateJobClient(port, opts.Password)
	deadline := time.Now().Add(timeout)
	backoff := 100 * time.Millisecond
	const maxBackoff = 5 * time.Second

	for {
		probeCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.do(probeCtx, http.MethodGet, "/session.list", nil, nil)
		cancel()
		if err == nil {
			return client, nil
		}

		if time.Now().Add(backoff).After(deadline) {
			return nil, ErrServerNotReady
		}

		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		backoff = time.Duration(float64(backoff) * 1.5)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// sessionCreateResponse is the subset of session.create's response body
// this client needs.
type sessionCreateResponse struct {
	ID string `json:"id"`
}

type promptRequest struct {
	SessionID string `json:"sessionId"`
	Text      string `json:"text"`
	Agent     string `json:"agent,omitempty"`
	Model     string `json:"model,omitempty"`
}

// SendPrompt fires an asynchronous prompt into sessionId, returning as
// soon as the server accepts it.
func (c *Client) SendPrompt(ctx context.Context, sessionID, text, agent, model string) error {
	body := promptRequest{SessionID: sessionID, Text: text, Agent: agent, Model: model}
	if err := c.do(ctx, http.MethodPost, "/session.promptAsync", body, nil); err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	return nil
}

// CreateSessionAndPrompt creates a new session, then sends it a prompt,
// returning the new session's id.
func (c *Client) CreateSessionAndPrompt(ctx context.Context, text, agent, model string) (string, error) {
	var resp sessionCreateResponse
	if err := c.do(ctx, http.MethodPost, "/session.create", nil, &resp); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	if err := c.SendPrompt(ctx, resp.ID, text, agent, model); err != nil {
		return "", err
	}
	return resp.ID, nil
}
