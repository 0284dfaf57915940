// Package openwake scores audio frames against an openWakeWord-style
// scoring server over a websocket. Raw 16-bit PCM frames go out, JSON
// per-label scores come back, one reply per frame.
package openwake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/lkovac/narrator/core/wakeword"
)

const (
	DefaultEndpoint = "ws://localhost:9002/ws"

	scoreTimeout = 2 * time.Second
)

type Client struct {
	endpoint string

	connMu sync.Mutex
	conn   *websocket.Conn
}

var _ wakeword.Scorer = (*Client)(nil)

type ClientOption func(*Client)

func WithEndpoint(endpoint string) ClientOption {
	return func(c *Client) {
		if endpoint != "" {
			c.endpoint = endpoint
		}
	}
}

func NewClient(opts ...ClientOption) *Client {
	client := &Client{endpoint: DefaultEndpoint}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Score sends one frame and waits for the server's score map. The
// connection is dialed lazily and redialed after a failure.
func (c *Client) Score(ctx context.Context, frame []byte) (map[string]float64, error) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to open socket connection to wake scorer: %w", err)
		}
		c.conn = conn
	}

	if err := c.conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		c.dropConn()
		return nil, fmt.Errorf("failed to write to wake scorer: %w", err)
	}

	deadline := time.Now().Add(scoreTimeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = c.conn.SetReadDeadline(deadline)

	_, msg, err := c.conn.ReadMessage()
	if err != nil {
		c.dropConn()
		return nil, fmt.Errorf("failed to read wake scores: %w", err)
	}

	var scores map[string]float64
	if err := json.Unmarshal(msg, &scores); err != nil {
		return nil, fmt.Errorf("failed to unmarshal wake scores: %w", err)
	}
	return scores, nil
}

func (c *Client) dropConn() {
	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}

// Close tears down the connection. A later Score redials.
func (c *Client) Close() error {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}
