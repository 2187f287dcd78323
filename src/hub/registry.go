package hub

import (
	"errors"

	"github.com/orchestra-mcp/chat/src/types"
)

// ErrDuplicateConnection is returned when a handle is registered twice.
// The newer entry wins.
var ErrDuplicateConnection = errors.New("connection handle already registered")

// Registry maps live connection handles to their clients.
// It is not safe for concurrent use; Hub serialises access.
type Registry struct {
	entries map[types.Handle]*Client
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[types.Handle]*Client)}
}

// Register inserts c. A duplicate handle is overwritten and reported.
func (r *Registry) Register(c *Client) error {
	_, dup := r.entries[c.Handle]
	r.entries[c.Handle] = c
	if dup {
		return ErrDuplicateConnection
	}
	return nil
}

// Unregister removes the entry for h. Unknown handles are a no-op.
func (r *Registry) Unregister(h types.Handle) (*Client, bool) {
	c, ok := r.entries[h]
	if ok {
		delete(r.entries, h)
	}
	return c, ok
}

// Lookup returns the client registered under h.
func (r *Registry) Lookup(h types.Handle) (*Client, bool) {
	c, ok := r.entries[h]
	return c, ok
}

// Len returns the number of registered connections.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Handles returns every registered handle.
func (r *Registry) Handles() []types.Handle {
	out := make([]types.Handle, 0, len(r.entries))
	for h := range r.entries {
		out = append(out, h)
	}
	return out
}
