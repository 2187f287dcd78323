package types

import "time"

// Handle identifies one live WebSocket connection.
type Handle string

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID string `json:"userId"`
}

// Frame types exchanged over the socket.
const (
	FrameJoinRoom  = "join_room"
	FrameLeaveRoom = "leave_room"
	FrameChat      = "chat"
	FrameError     = "error"
)

// InboundFrame is a client-to-server frame.
type InboundFrame struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId,omitempty"`
	Message string `json:"message,omitempty"`
}

// ChatFrame is the broadcast form of a persisted chat message.
// Timestamp is milliseconds since the Unix epoch.
type ChatFrame struct {
	Type      string `json:"type"`
	RoomID    string `json:"roomId"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
	Timestamp int64  `json:"timestamp"`
}

// ErrorFrame reports a rejected frame back to its sender.
type ErrorFrame struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	RoomID  string `json:"roomId,omitempty"`
}

// ChatMessage is a persisted chat line.
type ChatMessage struct {
	ID        uint      `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewChatFrame builds the outbound frame for a stored message.
func NewChatFrame(m *ChatMessage) ChatFrame {
	return ChatFrame{
		Type:      FrameChat,
		RoomID:    m.RoomID,
		Message:   m.Message,
		UserID:    m.UserID,
		Timestamp: m.CreatedAt.UnixMilli(),
	}
}

// ClientInfo holds metadata about a connected WebSocket client.
type ClientInfo struct {
	Handle      Handle    `json:"handle"`
	UserID      string    `json:"userId"`
	ConnectedAt time.Time `json:"connectedAt"`
	Rooms       []string  `json:"rooms"`
}

// Conn abstracts a WebSocket connection for testability.
type Conn interface {
	// ReadMessage blocks for the next text frame.
	ReadMessage() ([]byte, error)
	WriteJSON(v any) error
	Ping() error
	Close() error
}
