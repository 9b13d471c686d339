// Package discord publishes presence as Discord rich presence over the
// local IPC socket.
package discord

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/llehouerou/presence/internal/presence"
)

// Client keeps one IPC connection and the last activity it was asked to
// show. It implements sink.Blocking and sink.Heartbeater.
type Client struct {
	clientID string
	dirs     []string
	log      *zap.Logger

	mu      sync.Mutex
	conn    net.Conn
	desired *activity
	dirty   bool
}

// Option configures a Client.
type Option func(*Client)

// WithSocketDirs overrides the directories searched for discord-ipc-N.
func WithSocketDirs(dirs ...string) Option {
	return func(c *Client) { c.dirs = dirs }
}

// WithLogger sets the logger.
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) {
		if log != nil {
			c.log = log
		}
	}
}

// New creates a client for the given application id. It connects lazily.
func New(clientID string, opts ...Option) *Client {
	c := &Client{clientID: clientID, log: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.dirs == nil {
		c.dirs = socketDirs()
	}
	return c
}

// Update shows s as the current activity.
func (c *Client) Update(ctx context.Context, s presence.Snapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.desired = newActivity(s)
	c.dirty = true
	return c.flushLocked(ctx)
}

// Clear removes the activity.
func (c *Client) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.desired = nil
	c.dirty = true
	return c.flushLocked(ctx)
}

// Heartbeat reconnects a dropped connection and resends the last activity,
// or pings a live one.
func (c *Client) Heartbeat(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.dirty {
		if err := c.flushLocked(ctx); err != nil {
			c.log.Debug("discord heartbeat failed", zap.Error(err))
		}
		return
	}
	if err := c.pingLocked(ctx); err != nil {
		c.log.Info("discord connection lost", zap.Error(err))
		c.dropLocked()
	}
}

// Connected reports whether an IPC connection is open.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil
	}
	_ = writeFrame(c.conn, opClose, map[string]any{})
	err := c.conn.Close()
	c.conn = nil
	return err
}

// flushLocked sends the desired activity if it has not been acknowledged.
// A missing Discord client is not an error; the heartbeat retries.
func (c *Client) flushLocked(ctx context.Context) error {
	if !c.dirty {
		return nil
	}
	if c.conn == nil {
		if err := c.connectLocked(ctx); err != nil {
			if errors.Is(err, ErrNoSocket) {
				c.log.Debug("discord not running")
				return nil
			}
			return err
		}
	}
	if err := c.setActivityLocked(ctx); err != nil {
		c.dropLocked()
		return err
	}
	c.dirty = false
	return nil
}

func (c *Client) connectLocked(ctx context.Context) error {
	conn, err := dialSocket(c.dirs)
	if err != nil {
		return err
	}
	setDeadline(ctx, conn)

	if err := writeFrame(conn, opHandshake, handshake{V: 1, ClientID: c.clientID}); err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	op, body, err := readFrame(conn)
	if err != nil {
		conn.Close()
		return fmt.Errorf("handshake: %w", err)
	}
	if op == opClose {
		conn.Close()
		return fmt.Errorf("handshake rejected: %s", closeReason(body))
	}

	var resp response
	if err := json.Unmarshal(body, &resp); err != nil || resp.Evt != "READY" {
		conn.Close()
		return fmt.Errorf("handshake: unexpected reply %q", body)
	}
	var ready readyData
	_ = json.Unmarshal(resp.Data, &ready)
	c.log.Info("discord ready", zap.String("user", ready.User.Username))

	c.conn = conn
	return nil
}

func (c *Client) setActivityLocked(ctx context.Context) error {
	setDeadline(ctx, c.conn)
	nonce := uuid.NewString()
	cmd := command{
		Cmd:   "SET_ACTIVITY",
		Args:  setActivityArgs{PID: os.Getpid(), Activity: c.desired},
		Nonce: nonce,
	}
	if err := writeFrame(c.conn, opFrame, cmd); err != nil {
		return err
	}

	for {
		op, body, err := readFrame(c.conn)
		if err != nil {
			return err
		}
		switch op {
		case opClose:
			return fmt.Errorf("discord closed connection: %s", closeReason(body))
		case opPing:
			if err := writeFrame(c.conn, opPong, json.RawMessage(body)); err != nil {
				return err
			}
			continue
		case opFrame:
		default:
			continue
		}

		var resp response
		if err := json.Unmarshal(body, &resp); err != nil {
			return fmt.Errorf("decode reply: %w", err)
		}
		if resp.Nonce != nonce {
			continue
		}
		if resp.Evt == "ERROR" {
			var e errorData
			_ = json.Unmarshal(resp.Data, &e)
			return fmt.Errorf("set activity: %s (code %d)", e.Message, e.Code)
		}
		return nil
	}
}

func (c *Client) pingLocked(ctx context.Context) error {
	setDeadline(ctx, c.conn)
	nonce := uuid.NewString()
	if err := writeFrame(c.conn, opPing, map[string]string{"nonce": nonce}); err != nil {
		return err
	}
	for {
		op, body, err := readFrame(c.conn)
		if err != nil {
			return err
		}
		switch op {
		case opPong:
			return nil
		case opClose:
			return fmt.Errorf("discord closed connection: %s", closeReason(body))
		}
	}
}

// dropLocked closes a broken connection and marks the activity for resend.
func (c *Client) dropLocked() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
	c.dirty = true
}

func setDeadline(ctx context.Context, conn net.Conn) {
	deadline := time.Now().Add(ioTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	_ = conn.SetDeadline(deadline)
}

func closeReason(body []byte) string {
	var e errorData
	if err := json.Unmarshal(body, &e); err != nil || e.Message == "" {
		return string(body)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}
