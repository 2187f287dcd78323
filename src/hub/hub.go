package hub

import (
	"context"
	"errors"
	"sync"

	"github.com/orchestra-mcp/chat/src/types"
	"github.com/rs/zerolog"
)

// ErrUnknownConnection is returned for operations on a handle that is not
// registered.
var ErrUnknownConnection = errors.New("connection not registered")

// ErrHubStopped is returned by Register once the hub has shut down.
var ErrHubStopped = errors.New("hub stopped")

// Hub owns the connection registry and the subscription router. Every
// mutation of either goes through the hub's lock, so join, leave and
// disconnect are atomic with respect to subscriber snapshots.
type Hub struct {
	registry *Registry
	router   *Router

	broadcast chan broadcastMsg

	onConnect []func(*Client)
	onDisconn []func(*Client, []string)

	mu     sync.RWMutex
	logger zerolog.Logger
	done   chan struct{}
	once   sync.Once
}

type broadcastMsg struct {
	room  string
	frame any
}

// New creates a new Hub instance.
func New(logger zerolog.Logger) *Hub {
	return &Hub{
		registry:  NewRegistry(),
		router:    NewRouter(),
		broadcast: make(chan broadcastMsg, 256),
		logger:    logger.With().Str("component", "hub").Logger(),
		done:      make(chan struct{}),
	}
}

// Run fans out published frames until ctx is cancelled or Stop is called,
// then closes every client. Call in a goroutine.
func (h *Hub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case bm := <-h.broadcast:
			h.fanOut(bm.room, bm.frame)
		case <-ctx.Done():
			h.Stop()
			return
		case <-h.done:
			return
		}
	}
}

// Stop halts the event loop.
func (h *Hub) Stop() {
	h.once.Do(func() { close(h.done) })
}

// Register adds c to the registry with no rooms joined. It fails with
// ErrHubStopped after Stop, leaving c unregistered.
func (h *Hub) Register(c *Client) error {
	h.mu.Lock()
	select {
	case <-h.done:
		h.mu.Unlock()
		return ErrHubStopped
	default:
	}
	err := h.registry.Register(c)
	cbs := h.onConnect
	h.mu.Unlock()

	if err != nil {
		h.logger.Error().Err(err).Str("handle", string(c.Handle)).Msg("duplicate handle, entry overwritten")
	}
	h.logger.Info().
		Str("handle", string(c.Handle)).
		Str("user_id", c.Identity.UserID).
		Msg("client registered")

	for _, cb := range cbs {
		cb(c)
	}
	return nil
}

// Unregister removes the client and all of its subscriptions in one step,
// then closes it. Unknown handles are ignored.
func (h *Hub) Unregister(handle types.Handle) {
	h.mu.Lock()
	c, ok := h.registry.Unregister(handle)
	var rooms []string
	if ok {
		rooms = h.router.RemoveAllFor(handle)
	}
	cbs := h.onDisconn
	h.mu.Unlock()

	if !ok {
		return
	}
	c.Close()
	h.logger.Info().
		Str("handle", string(handle)).
		Str("user_id", c.Identity.UserID).
		Strs("rooms", rooms).
		Msg("client unregistered")

	for _, cb := range cbs {
		cb(c, rooms)
	}
}

// Join subscribes a registered connection to room. Joining twice is a no-op.
func (h *Hub) Join(room string, handle types.Handle) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.registry.Lookup(handle); !ok {
		return ErrUnknownConnection
	}
	if h.router.Join(room, handle) {
		h.logger.Debug().Str("handle", string(handle)).Str("room", room).Msg("joined")
	}
	return nil
}

// Leave unsubscribes handle from room. Leaving a room not joined is a no-op.
func (h *Hub) Leave(room string, handle types.Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.router.Leave(room, handle) {
		h.logger.Debug().Str("handle", string(handle)).Str("room", room).Msg("left")
	}
}

// IsJoined reports whether handle is currently subscribed to room.
func (h *Hub) IsJoined(room string, handle types.Handle) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.router.IsJoined(room, handle)
}

// Subscribers resolves the clients subscribed to room at this instant.
func (h *Hub) Subscribers(room string) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var out []*Client
	for handle := range h.router.SubscribersOf(room) {
		if c, ok := h.registry.Lookup(handle); ok {
			out = append(out, c)
		}
	}
	return out
}

// Publish queues frame for every subscriber of room. It does not block once
// the hub has stopped.
func (h *Hub) Publish(room string, frame any) {
	select {
	case h.broadcast <- broadcastMsg{room: room, frame: frame}:
	case <-h.done:
		h.logger.Warn().Str("room", room).Msg("hub stopped, dropping broadcast")
	}
}

// OnConnection registers a callback run after a client is registered.
func (h *Hub) OnConnection(cb func(*Client)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onConnect = append(h.onConnect, cb)
}

// OnDisconnection registers a callback run after a client is removed, with
// the rooms it had joined.
func (h *Hub) OnDisconnection(cb func(*Client, []string)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onDisconn = append(h.onDisconn, cb)
}

func (h *Hub) fanOut(room string, frame any) {
	// Snapshot under the lock, deliver outside it.
	for _, c := range h.Subscribers(room) {
		if !c.Deliver(frame) {
			h.logger.Warn().
				Str("handle", string(c.Handle)).
				Str("room", room).
				Msg("send buffer full or client closed, dropping")
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	clients := make([]*Client, 0, h.registry.Len())
	for _, handle := range h.registry.Handles() {
		c, _ := h.registry.Unregister(handle)
		h.router.RemoveAllFor(handle)
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		c.Close()
	}
	h.logger.Info().Int("clients", len(clients)).Msg("hub stopped")
}
