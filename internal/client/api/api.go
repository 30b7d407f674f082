// Package api is the HTTP client of the directory API used by the command line tools.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/bizdir/bizdir/internal/auth"
)

const (
	loginPath  = "/auth/login"
	verifyPath = "/auth/verify"
	mePath     = "/auth/me"
	logoutPath = "/auth/logout"

	// DefaultTimeout bounds a request when the client is created without one.
	DefaultTimeout = 10 * time.Second
)

var (
	// ErrRejected marks a definitive rejection: the server answered 401.
	ErrRejected = errors.New("rejected by server")

	// ErrUnreachable marks a transport failure. The server gave no verdict.
	ErrUnreachable = errors.New("server unreachable")

	// ErrEmptyBaseURL is returned by New without a base URL.
	ErrEmptyBaseURL = errors.New("api: base url is empty")
)

// Error is a failure response of the server. Message is meant for the user as is.
type Error struct {
	Status  int
	Code    string
	Message string
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}

	return fmt.Sprintf("request failed with status %d", e.Status)
}

// Unwrap makes errors.Is(err, ErrRejected) hold for 401 answers.
func (e *Error) Unwrap() error {
	if e.Status == fiber.StatusUnauthorized {
		return ErrRejected
	}

	return nil
}

// User is the user as the server presents it.
type User struct {
	ID           uint64            `json:"id"`
	Username     string            `json:"username"`
	Role         string            `json:"role"`
	Permissions  []string          `json:"permissions"`
	Active       bool              `json:"isActive"`
	Capabilities auth.Capabilities `json:"capabilities"`
}

// LoginResult is a successful login.
type LoginResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to one directory server.
type Client struct {
	baseURL string
	timeout time.Duration
}

// New creates a client for baseURL. A non-positive timeout means DefaultTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}

	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{baseURL: baseURL, timeout: timeout}, nil
}

// Login exchanges credentials for a token.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	agent := fiber.Post(c.baseURL + loginPath).JSON(map[string]string{
		"username": username,
		"password": password,
	})

	var res LoginResult
	if err := c.do(ctx, agent, &res); err != nil {
		return nil, err
	}

	return &res, nil
}

// Verify asks the server whether token is still good. It returns nil, an error wrapping
// ErrRejected for a definitive no, ErrUnreachable for transport failures, or an *Error
// for any other answer.
func (c *Client) Verify(ctx context.Context, token string) error {
	return c.do(ctx, bearer(fiber.Get(c.baseURL+verifyPath), token), nil)
}

// Me returns the user the token belongs to.
func (c *Client) Me(ctx context.Context, token string) (*User, error) {
	var u User
	if err := c.do(ctx, bearer(fiber.Get(c.baseURL+mePath), token), &u); err != nil {
		return nil, err
	}

	return &u, nil
}

// Logout tells the server the token is discarded. The server keeps no state, so this is
// informational.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, bearer(fiber.Post(c.baseURL+logoutPath), token), nil)
}

func bearer(agent *fiber.Agent, token string) *fiber.Agent {
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}

	return agent
}

type result struct {
	code int
	body []byte
	errs []error
}

// do sends the request and decodes the envelope into out. The agent has no context
// support, so the request runs in its own goroutine bounded by the client timeout.
// The agent is released on every path and must not be used afterwards.
func (c *Client) do(ctx context.Context, agent *fiber.Agent, out any) error {
	if err := ctx.Err(); err != nil {
		fiber.ReleaseAgent(agent)

		return err //nolint:wrapcheck
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent.Timeout(timeout)

	done := make(chan result, 1)

	go func() {
		if err := agent.Parse(); err != nil {
			// Bytes releases the agent, so the early return has to do it here
			fiber.ReleaseAgent(agent)
			done <- result{errs: []error{err}}

			return
		}

		code, body, errs := agent.Bytes()
		done <- result{code: code, body: body, errs: errs}
	}()

	var r result

	select {
	case <-ctx.Done():
		return ctx.Err() //nolint:wrapcheck
	case r = <-done:
	}

	if len(r.errs) > 0 {
		return fmt.Errorf("%w: %w", ErrUnreachable, errors.Join(r.errs...))
	}

	var env envelope
	if err := json.Unmarshal(r.body, &env); err != nil {
		if r.code >= fiber.StatusBadRequest {
			return &Error{Status: r.code}
		}

		return fmt.Errorf("failed to decode response: %w", err)
	}

	if r.code < fiber.StatusOK || r.code >= fiber.StatusMultipleChoices || !env.Success {
		return &Error{Status: r.code, Code: env.Error, Message: env.Message}
	}

	if out == nil || len(env.Data) == 0 {
		return nil
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}

	return nil
}
