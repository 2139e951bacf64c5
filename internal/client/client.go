// Package client follows a live room over the websocket API and re-joins
// after connection drops.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
)

// ErrDone is returned by a Handler to stop following the room. Run then
// returns nil.
var ErrDone = errors.New("done")

// ErrRemoved is returned when the host removed this client from the room.
var ErrRemoved = errors.New("removed from room by host")

// ServerError is an error message sent by the server in reply to a join.
type ServerError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Message is one server message.
type Message struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Handler receives every message after a successful join, including the
// join-success itself.
type Handler func(Message) error

type Config struct {
	URL      string // e.g. ws://localhost:8080/ws
	RoomCode string
	Name     string
	Email    string
	Role     string
	HostKey  string

	// MaxRetries bounds consecutive failed attempts; a successful join resets
	// the count.
	MaxRetries      uint64
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

type Client struct {
	cfg    Config
	dialer *websocket.Dialer
	logger *slog.Logger
}

func New(cfg Config) *Client {
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = 5
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = 500 * time.Millisecond
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = 30 * time.Second
	}
	return &Client{
		cfg:    cfg,
		dialer: websocket.DefaultDialer,
		logger: slog.Default().With("component", "client", "room", cfg.RoomCode),
	}
}

// Run joins the room and feeds messages to handle until the handler returns
// ErrDone, a permanent failure occurs, ctx ends, or MaxRetries consecutive
// attempts fail.
func (c *Client) Run(ctx context.Context, handle Handler) error {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.cfg.InitialInterval
	exp.MaxInterval = c.cfg.MaxInterval
	exp.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(exp, c.cfg.MaxRetries), ctx)

	attempt := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		return c.session(ctx, handle, b.Reset)
	}
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("room connection lost, retrying", "error", err, "wait", wait)
	}

	err := backoff.RetryNotify(attempt, b, notify)
	if errors.Is(err, ErrDone) {
		return nil
	}
	return err
}

// session runs one connection. Errors it returns are retried unless wrapped
// with backoff.Permanent.
func (c *Client) session(ctx context.Context, handle Handler, joined func()) error {
	conn, _, err := c.dialer.DialContext(ctx, c.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	join := map[string]any{
		"type": "join-room",
		"payload": map[string]string{
			"roomCode": c.cfg.RoomCode,
			"name":     c.cfg.Name,
			"email":    c.cfg.Email,
			"role":     c.cfg.Role,
			"hostKey":  c.cfg.HostKey,
		},
	}
	if err := conn.WriteJSON(join); err != nil {
		return fmt.Errorf("send join: %w", err)
	}

	var msg Message
	if err := conn.ReadJSON(&msg); err != nil {
		return fmt.Errorf("read join reply: %w", err)
	}
	if msg.Type == "error" {
		var serr ServerError
		_ = json.Unmarshal(msg.Payload, &serr)
		// A rejected join will be rejected again.
		return backoff.Permanent(&serr)
	}
	joined()
	c.logger.Info("joined room")
	if err := handle(msg); err != nil {
		return backoff.Permanent(err)
	}

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
				return backoff.Permanent(ErrRemoved)
			}
			return fmt.Errorf("read: %w", err)
		}
		if err := handle(msg); err != nil {
			return backoff.Permanent(err)
		}
	}
}
