package hub

import (
	"github.com/orchestra-mcp/chat/src/types"
)

// ConnectedClients returns the handles of all connected clients.
func (h *Hub) ConnectedClients() []types.Handle {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.Handles()
}

// ClientInfo returns info for a connected client, or nil.
func (h *Hub) ClientInfo(handle types.Handle) *types.ClientInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.registry.Lookup(handle)
	if !ok {
		return nil
	}
	return &types.ClientInfo{
		Handle:      c.Handle,
		UserID:      c.Identity.UserID,
		ConnectedAt: c.ConnectedAt(),
		Rooms:       h.router.RoomsOf(handle),
	}
}

// Rooms returns active rooms with their subscriber counts.
func (h *Hub) Rooms() map[string]int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.router.Rooms()
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.registry.Len()
}
