package gateway

import (
	"errors"
	"fmt"

	"github.com/orchestra-mcp/chat/src/token"
)

var (
	// ErrRoomNotFound rejects a join for a room the directory does not know.
	ErrRoomNotFound = errors.New("room not found")
	// ErrNotJoined rejects a chat for a room the sender has not joined.
	ErrNotJoined = errors.New("not joined to room")
	// ErrPersistence reports a storage failure; nothing was broadcast.
	ErrPersistence = errors.New("message could not be saved")
	// ErrRateLimited rejects a chat sent faster than the configured rate.
	ErrRateLimited = errors.New("rate limit exceeded")
)

// ProtocolError is a malformed or unsupported frame. The frame is dropped
// and the connection stays open.
type ProtocolError struct {
	Reason string
}

func (e *ProtocolError) Error() string {
	return "protocol error: " + e.Reason
}

func protocolErrorf(format string, args ...any) error {
	return &ProtocolError{Reason: fmt.Sprintf(format, args...)}
}

// Error codes sent in error frames.
const (
	CodeProtocol     = "protocol_error"
	CodeRoomNotFound = "room_not_found"
	CodeNotJoined    = "not_joined"
	CodePersistence  = "persistence_error"
	CodeRateLimited  = "rate_limited"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal_error"
)

// classify maps an error to the code and client-facing text of its frame.
func classify(err error) (code, message string) {
	var pe *ProtocolError
	switch {
	case errors.As(err, &pe):
		return CodeProtocol, pe.Reason
	case errors.Is(err, ErrRoomNotFound):
		return CodeRoomNotFound, ErrRoomNotFound.Error()
	case errors.Is(err, ErrNotJoined):
		return CodeNotJoined, ErrNotJoined.Error()
	case errors.Is(err, ErrPersistence):
		return CodePersistence, ErrPersistence.Error()
	case errors.Is(err, ErrRateLimited):
		return CodeRateLimited, ErrRateLimited.Error()
	case errors.Is(err, token.ErrAuth):
		return CodeUnauthorized, token.ErrAuth.Error()
	default:
		return CodeInternal, "internal error"
	}
}
