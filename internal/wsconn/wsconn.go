// Package wsconn provides a WebSocket client with automatic
// reconnection and exponential backoff.
package wsconn

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
)

// ErrNotConnected is returned by Send when no connection is live.
var ErrNotConnected = errors.New("wsconn: not connected")

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL            string
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxReconnects  int // 0 = infinite
	PingInterval   time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(url string) Config {
	return Config{
		URL:            url,
		InitialBackoff: 1 * time.Second,
		MaxBackoff:     30 * time.Second,
		MaxReconnects:  0, // infinite
		PingInterval:   30 * time.Second,
	}
}

// OnConnectFunc runs after each successful (re)connect, before reads
// start. Used to replay subscriptions.
type OnConnectFunc func(ctx context.Context, send func(ctx context.Context, msg []byte) error) error

// Client is a reconnecting WebSocket client. Received messages are
// delivered on Messages; the channel closes when the client stops.
type Client struct {
	config    Config
	onConnect OnConnectFunc

	mu    sync.RWMutex
	state State
	conn  *websocket.Conn

	messages chan []byte
	done     chan struct{}
	once     sync.Once
}

// New creates a new WebSocket client.
func New(config Config) *Client {
	return &Client{
		config:   config,
		state:    StateDisconnected,
		messages: make(chan []byte, 100),
		done:     make(chan struct{}),
	}
}

// OnConnect registers a callback invoked after every (re)connect.
// Must be called before Run.
func (c *Client) OnConnect(fn OnConnectFunc) {
	c.onConnect = fn
}

// Run connects and keeps the connection alive until ctx is cancelled
// or the reconnect budget is exhausted. It blocks.
func (c *Client) Run(ctx context.Context) error {
	defer close(c.messages)
	defer c.setState(StateDisconnected)

	backoff := c.config.InitialBackoff
	reconnects := 0

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		default:
		}

		if reconnects == 0 {
			c.setState(StateConnecting)
		} else {
			c.setState(StateReconnecting)
		}

		err := c.connectAndRead(ctx)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}

		reconnects++
		if c.config.MaxReconnects > 0 && reconnects >= c.config.MaxReconnects {
			return err
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case <-time.After(backoff):
		}

		backoff *= 2
		if backoff > c.config.MaxBackoff {
			backoff = c.config.MaxBackoff
		}
	}
}

func (c *Client) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, _, err := websocket.Dial(dialCtx, c.config.URL, nil)
	cancel()
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()

	defer func() {
		conn.Close(websocket.StatusNormalClosure, "closing")
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
	}()

	if c.onConnect != nil {
		if err := c.onConnect(ctx, c.Send); err != nil {
			return err
		}
	}

	readCtx, stopPing := context.WithCancel(ctx)
	defer stopPing()
	if c.config.PingInterval > 0 {
		go c.pingLoop(readCtx, conn)
	}

	for {
		_, data, err := conn.Read(readCtx)
		if err != nil {
			return err
		}

		select {
		case c.messages <- data:
		case <-readCtx.Done():
			return readCtx.Err()
		case <-c.done:
			return nil
		}
	}
}

func (c *Client) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			_ = conn.Ping(pingCtx)
			cancel()
		}
	}
}

// Send writes a text message on the current connection.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return ErrNotConnected
	}
	return conn.Write(ctx, websocket.MessageText, msg)
}

// Messages returns the channel for receiving messages.
func (c *Client) Messages() <-chan []byte {
	return c.messages
}

// State returns the current connection state.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Close stops the client. Safe to call more than once.
func (c *Client) Close() error {
	c.once.Do(func() { close(c.done) })
	return nil
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}
