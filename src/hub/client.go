package hub

import (
	"sync"
	"time"

	"github.com/orchestra-mcp/chat/src/types"
	"github.com/rs/zerolog"
)

// DefaultSendBuffer is the per-client outbound queue length.
const DefaultSendBuffer = 256

// Client is the registry entry for one authenticated connection.
// It owns the underlying conn exclusively.
type Client struct {
	Handle   types.Handle
	Identity types.Identity

	conn        types.Conn
	send        chan any
	connectedAt time.Time

	mu     sync.Mutex
	done   chan struct{}
	closed bool
}

// NewClient wraps conn for the given identity.
func NewClient(h types.Handle, id types.Identity, conn types.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		Handle:      h,
		Identity:    id,
		conn:        conn,
		send:        make(chan any, buffer),
		connectedAt: time.Now(),
		done:        make(chan struct{}),
	}
}

// Deliver queues a frame without blocking. It returns false when the client
// is closed or its buffer is full.
func (c *Client) Deliver(frame any) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// WritePump drains the send queue to the socket and pings the peer every
// pingInterval. It returns when the client is closed or a write fails.
func (c *Client) WritePump(pingInterval time.Duration, logger zerolog.Logger) {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case frame := <-c.send:
			if err := c.conn.WriteJSON(frame); err != nil {
				logger.Debug().Err(err).Str("handle", string(c.Handle)).Msg("write failed")
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(); err != nil {
				logger.Debug().Err(err).Str("handle", string(c.Handle)).Msg("ping failed")
				return
			}
		case <-c.done:
			return
		}
	}
}

// Close stops the write pump and closes the connection. Safe to call twice.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.done)
	c.conn.Close()
}

// ConnectedAt returns when the client was created.
func (c *Client) ConnectedAt() time.Time {
	return c.connectedAt
}
