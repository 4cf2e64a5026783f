// Package api is the REST client for the garage backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"garage-client/internal/apierr"
	"garage-client/internal/model"
	"github.com/google/uuid"
)

const (
	defaultTimeout  = 15 * time.Second
	maxResponseBody = 1 << 20
)

// Credentials supplies the bearer token and receives authorization-loss
// signals for responses that rejected it.
type Credentials interface {
	Token() string
	AuthorizationLost(token string)
}

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *slog.Logger
}

type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger

	mu    sync.RWMutex
	creds Credentials
}

func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    opts.HTTPClient,
		logger:  opts.Logger,
	}
}

// SetCredentials binds the session. Until then requests go out anonymous.
func (c *Client) SetCredentials(creds Credentials) {
	c.mu.Lock()
	c.creds = creds
	c.mu.Unlock()
}

func (c *Client) credentials() Credentials {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.creds
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login exchanges credentials for a token. A rejection is a validation
// failure, never an authorization loss.
func (c *Client) Login(ctx context.Context, email, password string) (model.LoginResult, error) {
	var out model.LoginResult
	if err := c.do(ctx, http.MethodPost, "/auth/login", loginBody{Email: email, Password: password}, &out, false); err != nil {
		return model.LoginResult{}, err
	}
	if out.Token == "" {
		return model.LoginResult{}, apierr.Validation("login response carried no access token")
	}
	out.User.Role = model.ParseRole(string(out.User.Role))
	return out, nil
}

type envelope[T any] struct {
	Data T `json:"data"`
}

func (c *Client) GetProfile(ctx context.Context) (model.UserProfile, error) {
	var out envelope[model.UserProfile]
	if err := c.do(ctx, http.MethodGet, "/users/me", nil, &out, true); err != nil {
		return model.UserProfile{}, err
	}
	out.Data.Role = model.ParseRole(string(out.Data.Role))
	return out.Data, nil
}

func (c *Client) GetUnreadNotifications(ctx context.Context) ([]model.Notification, error) {
	return c.listNotifications(ctx, "/notifications/unread")
}

func (c *Client) GetAllNotifications(ctx context.Context) ([]model.Notification, error) {
	return c.listNotifications(ctx, "/notifications")
}

func (c *Client) listNotifications(ctx context.Context, path string) ([]model.Notification, error) {
	var out envelope[[]model.Notification]
	if err := c.do(ctx, http.MethodGet, path, nil, &out, true); err != nil {
		return nil, err
	}
	if out.Data == nil {
		return []model.Notification{}, nil
	}
	return out.Data, nil
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPatch, "/notifications/"+strconv.FormatInt(id, 10)+"/read", nil, nil, true)
}

func (c *Client) DeleteNotification(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, "/notifications/"+strconv.FormatInt(id, 10), nil, nil, true)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any, authenticated bool) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return apierr.Internal("encode request", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return apierr.Internal("build request", err)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	var token string
	creds := c.credentials()
	if authenticated && creds != nil {
		token = creds.Token()
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return apierr.Transport(method+" "+path+" cancelled", ctxErr)
		}
		return apierr.Transport(method+" "+path+" failed", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return apierr.Transport("read response", err)
	}

	c.logger.Debug("api call", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil || len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		if err := json.Unmarshal(data, out); err != nil {
			return apierr.Internal("decode response", err)
		}
		return nil
	}

	message := errorMessage(data, resp.StatusCode)
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		if !authenticated {
			return &apierr.Error{Kind: apierr.KindValidation, Status: resp.StatusCode, Message: message}
		}
		if creds != nil && token != "" {
			c.logger.Warn("authorization lost", "method", method, "path", path, "status", resp.StatusCode, "request_id", requestID)
			creds.AuthorizationLost(token)
		}
		return apierr.AuthorizationLost(resp.StatusCode, message)
	case resp.StatusCode == http.StatusNotFound:
		return &apierr.Error{Kind: apierr.KindNotFound, Status: resp.StatusCode, Message: message}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &apierr.Error{Kind: apierr.KindValidation, Status: resp.StatusCode, Message: message}
	default:
		return &apierr.Error{Kind: apierr.KindTransport, Status: resp.StatusCode, Message: message}
	}
}

// errorMessage extracts {"message": ...} where message may be a string or a
// list of strings, falling back to the status text.
func errorMessage(data []byte, status int) string {
	var body struct {
		Message json.RawMessage `json:"message"`
		Error   string          `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err == nil {
		var single string
		if err := json.Unmarshal(body.Message, &single); err == nil && single != "" {
			return single
		}
		var many []string
		if err := json.Unmarshal(body.Message, &many); err == nil && len(many) > 0 {
			return strings.Join(many, "; ")
		}
		if body.Error != "" {
			return body.Error
		}
	}
	if text := http.StatusText(status); text != "" {
		return text
	}
	return fmt.Sprintf("status %d", status)
}
