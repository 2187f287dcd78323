package hub

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/orchestra-mcp/chat/src/hub/hubtest"
	"github.com/orchestra-mcp/chat/src/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestHub creates a hub and starts its event loop in a goroutine.
func newTestHub(t *testing.T) *Hub {
	t.Helper()
	h := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h
}

// registerClient creates, registers, and starts a mock client.
func registerClient(t *testing.T, h *Hub, handle, userID string) (*Client, *hubtest.MockConn) {
	t.Helper()
	conn := hubtest.NewMockConn()
	c := NewClient(types.Handle(handle), types.Identity{UserID: userID}, conn, 16)
	require.NoError(t, h.Register(c))
	go c.WritePump(time.Minute, zerolog.Nop())
	return c, conn
}

func TestHubRegisterAndUnregister(t *testing.T) {
	h := newTestHub(t)

	registerClient(t, h, "c1", "u1")
	_, conn2 := registerClient(t, h, "c2", "u2")
	assert.Equal(t, 2, h.ClientCount())

	h.Unregister("c2")
	assert.Equal(t, 1, h.ClientCount())
	assert.Nil(t, h.ClientInfo("c2"))
	assert.True(t, conn2.Closed())

	// Unknown handles are a no-op.
	h.Unregister("c2")
	h.Unregister("ghost")
	assert.Equal(t, 1, h.ClientCount())
}

func TestHubRegisterAfterStop(t *testing.T) {
	h := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	conn := hubtest.NewMockConn()
	c := NewClient("late", types.Identity{UserID: "u1"}, conn, 4)
	assert.ErrorIs(t, h.Register(c), ErrHubStopped)
	assert.Zero(t, h.ClientCount())
	assert.Nil(t, h.ClientInfo("late"))
	assert.False(t, conn.Closed())
}

func TestHubDuplicateRegisterOverwrites(t *testing.T) {
	h := newTestHub(t)
	registerClient(t, h, "dup", "u1")
	registerClient(t, h, "dup", "u2")

	assert.Equal(t, 1, h.ClientCount())
	info := h.ClientInfo("dup")
	require.NotNil(t, info)
	assert.Equal(t, "u2", info.UserID)
}

func TestHubJoinRequiresRegistration(t *testing.T) {
	h := newTestHub(t)
	assert.ErrorIs(t, h.Join("r1", "nobody"), ErrUnknownConnection)
	assert.Empty(t, h.Rooms())
}

func TestHubJoinLeave(t *testing.T) {
	h := newTestHub(t)
	registerClient(t, h, "c1", "u1")

	require.NoError(t, h.Join("r1", "c1"))
	require.NoError(t, h.Join("r1", "c1"))
	assert.Equal(t, map[string]int{"r1": 1}, h.Rooms())
	assert.True(t, h.IsJoined("r1", "c1"))

	h.Leave("r1", "c1")
	h.Leave("r1", "c1")
	assert.False(t, h.IsJoined("r1", "c1"))
	assert.Empty(t, h.Rooms())
}

func TestHubUnregisterRemovesAllSubscriptions(t *testing.T) {
	h := newTestHub(t)
	registerClient(t, h, "c1", "u1")
	registerClient(t, h, "c2", "u2")
	require.NoError(t, h.Join("r1", "c1"))
	require.NoError(t, h.Join("r2", "c1"))
	require.NoError(t, h.Join("r2", "c2"))

	var mu sync.Mutex
	var leftRooms []string
	h.OnDisconnection(func(_ *Client, rooms []string) {
		mu.Lock()
		defer mu.Unlock()
		leftRooms = rooms
	})

	h.Unregister("c1")

	assert.Empty(t, h.Subscribers("r1"))
	subs := h.Subscribers("r2")
	require.Len(t, subs, 1)
	assert.Equal(t, types.Handle("c2"), subs[0].Handle)
	assert.Equal(t, map[string]int{"r2": 1}, h.Rooms())

	mu.Lock()
	assert.ElementsMatch(t, []string{"r1", "r2"}, leftRooms)
	mu.Unlock()
}

func TestPublishToRoom(t *testing.T) {
	h := newTestHub(t)
	_, conn1 := registerClient(t, h, "c1", "u1")
	_, conn2 := registerClient(t, h, "c2", "u2")
	_, conn3 := registerClient(t, h, "c3", "u3")
	require.NoError(t, h.Join("updates", "c1"))
	require.NoError(t, h.Join("updates", "c2"))

	h.Publish("updates", types.ChatFrame{Type: types.FrameChat, RoomID: "updates", Message: "hi", UserID: "u1"})

	for _, conn := range []*hubtest.MockConn{conn1, conn2} {
		frame := conn.Next(time.Second)
		require.NotNil(t, frame)
		assert.Equal(t, "hi", frame["message"])
	}
	assert.Nil(t, conn3.Next(50*time.Millisecond))
}

func TestPublishSkipsLeftClient(t *testing.T) {
	h := newTestHub(t)
	_, conn1 := registerClient(t, h, "c1", "u1")
	_, conn2 := registerClient(t, h, "c2", "u2")
	require.NoError(t, h.Join("r1", "c1"))
	require.NoError(t, h.Join("r1", "c2"))
	h.Leave("r1", "c1")

	h.Publish("r1", types.ChatFrame{Type: types.FrameChat, RoomID: "r1", Message: "after leave"})

	require.NotNil(t, conn2.Next(time.Second))
	assert.Nil(t, conn1.Next(50*time.Millisecond))
}

func TestDeliverDropsWhenBufferFull(t *testing.T) {
	c := NewClient("c1", types.Identity{UserID: "u1"}, hubtest.NewMockConn(), 1)
	assert.True(t, c.Deliver("first"))
	assert.False(t, c.Deliver("second"))

	c.Close()
	c.Close()
	assert.False(t, c.Deliver("third"))
}

func TestConnectionCallbacks(t *testing.T) {
	h := newTestHub(t)

	var mu sync.Mutex
	var connected, disconnected types.Handle
	h.OnConnection(func(c *Client) {
		mu.Lock()
		defer mu.Unlock()
		connected = c.Handle
	})
	h.OnDisconnection(func(c *Client, _ []string) {
		mu.Lock()
		defer mu.Unlock()
		disconnected = c.Handle
	})

	registerClient(t, h, "cb-client", "u1")
	h.Unregister("cb-client")

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, types.Handle("cb-client"), connected)
	assert.Equal(t, types.Handle("cb-client"), disconnected)
}

func TestClientInfo(t *testing.T) {
	h := newTestHub(t)
	registerClient(t, h, "info-client", "u9")
	require.NoError(t, h.Join("ch-b", "info-client"))
	require.NoError(t, h.Join("ch-a", "info-client"))

	info := h.ClientInfo("info-client")
	require.NotNil(t, info)
	assert.Equal(t, types.Handle("info-client"), info.Handle)
	assert.Equal(t, "u9", info.UserID)
	assert.Equal(t, []string{"ch-a", "ch-b"}, info.Rooms)
	assert.Len(t, h.ConnectedClients(), 1)
}

func TestRunClosesClientsOnCancel(t *testing.T) {
	h := New(zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		h.Run(ctx)
		close(stopped)
	}()

	_, conn := registerClient(t, h, "c1", "u1")
	require.NoError(t, h.Join("r1", "c1"))

	cancel()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("hub did not stop")
	}

	assert.True(t, conn.Closed())
	assert.Equal(t, 0, h.ClientCount())
	assert.Empty(t, h.Rooms())

	// Publishing after stop must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 300; i++ {
			h.Publish("r1", "late")
		}
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Publish blocked after stop")
	}
}
