package client

import (
	"bytes"
	"chatroulette/backend/internal/chathub"
	"chatroulette/backend/internal/models"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrRateLimited  = errors.New("rate limited")
)

// APIError is a non-2xx reply decoded from the response envelope.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

func (e *APIError) Is(target error) bool {
	switch target {
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	case ErrForbidden:
		return e.StatusCode == http.StatusForbidden
	case ErrRateLimited:
		return e.StatusCode == http.StatusTooManyRequests
	}
	return false
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Client talks to the chat HTTP API on behalf of one anonymous identity.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu     sync.RWMutex
	token  string
	userID string
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// UserID returns the identity obtained by Register, or "".
func (c *Client) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// SetToken reuses a previously issued token.
func (c *Client) SetToken(token, userID string) {
	c.mu.Lock()
	c.token, c.userID = token, userID
	c.mu.Unlock()
}

// Register obtains a fresh anonymous identity and keeps its token.
func (c *Client) Register(ctx context.Context) (string, error) {
	var out struct {
		Token  string `json:"token"`
		AnonID string `json:"anon_id"`
	}
	if err := c.do(ctx, http.MethodPost, "/anonid", nil, &out); err != nil {
		return "", err
	}
	c.SetToken(out.Token, out.AnonID)
	return out.AnonID, nil
}

func (c *Client) Join(ctx context.Context, wantsVideo bool) (chathub.JoinResult, error) {
	var res chathub.JoinResult
	body := map[string]bool{"wants_video": wantsVideo}
	err := c.do(ctx, http.MethodPost, "/api/queue/join", body, &res)
	return res, err
}

func (c *Client) IsWaiting(ctx context.Context) (bool, error) {
	var out struct {
		Waiting bool `json:"waiting"`
	}
	err := c.do(ctx, http.MethodGet, "/api/queue/waiting", nil, &out)
	return out.Waiting, err
}

// CurrentSession returns nil when the caller has no active session.
func (c *Client) CurrentSession(ctx context.Context) (*models.ChatSession, error) {
	var session *models.ChatSession
	if err := c.do(ctx, http.MethodGet, "/api/sessions/current", nil, &session); err != nil {
		return nil, err
	}
	return session, nil
}

func (c *Client) Leave(ctx context.Context, sessionID string) error {
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "leave"), nil, nil)
}

func (c *Client) SendMessage(ctx context.Context, sessionID, content string) (*models.Message, error) {
	var msg models.Message
	body := map[string]string{"content": content}
	if err := c.do(ctx, http.MethodPost, sessionPath(sessionID, "messages"), body, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func (c *Client) Messages(ctx context.Context, sessionID string) ([]models.Message, error) {
	msgs := []models.Message{}
	err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "messages"), nil, &msgs)
	return msgs, err
}

func (c *Client) SendSignal(ctx context.Context, sessionID, toUserID string, typ models.SignalType, payload string) error {
	body := map[string]string{"to_user_id": toUserID, "type": string(typ), "payload": payload}
	return c.do(ctx, http.MethodPost, sessionPath(sessionID, "signals"), body, nil)
}

func (c *Client) Signals(ctx context.Context, sessionID string) ([]models.SignalingMessage, error) {
	sigs := []models.SignalingMessage{}
	err := c.do(ctx, http.MethodGet, sessionPath(sessionID, "signals"), nil, &sigs)
	return sigs, err
}

func (c *Client) DebugState(ctx context.Context) (*models.DebugState, error) {
	var state models.DebugState
	if err := c.do(ctx, http.MethodGet, "/api/debug", nil, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (c *Client) ICEServers(ctx context.Context) ([]webrtc.ICEServer, error) {
	var servers []webrtc.ICEServer
	err := c.do(ctx, http.MethodGet, "/api/ice-servers", nil, &servers)
	return servers, err
}

func sessionPath(sessionID, action string) string {
	return "/api/sessions/" + url.PathEscape(sessionID) + "/" + action
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.mu.RLock()
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	c.mu.RUnlock()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response (status %d): %w", resp.StatusCode, err)
	}

	if resp.StatusCode >= 300 || !env.Success {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if env.Error != nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
