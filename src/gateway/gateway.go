// Package gateway runs the per-connection chat protocol: it authenticates
// the socket, applies join, leave and chat frames in arrival order, persists
// chat messages and hands them to the hub for fan-out.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/orchestra-mcp/chat/src/hub"
	"github.com/orchestra-mcp/chat/src/types"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Verifier turns a token into an identity.
type Verifier interface {
	Verify(token string) (types.Identity, error)
}

// Directory persists chat messages.
type Directory interface {
	AppendMessage(ctx context.Context, roomID, userID, message string) (*types.ChatMessage, error)
}

// RoomChecker answers whether a room id exists.
type RoomChecker interface {
	RoomExists(ctx context.Context, roomID string) (bool, error)
}

// Config tunes the gateway.
type Config struct {
	// MaxMessageLength caps chat text in runes.
	MaxMessageLength int
	PersistTimeout   time.Duration
	PingInterval     time.Duration
	SendBuffer       int
	// RatePerSecond and RateBurst bound chat frames per connection.
	// A zero rate disables limiting.
	RatePerSecond float64
	RateBurst     int
}

// DefaultConfig returns the gateway defaults.
func DefaultConfig() Config {
	return Config{
		MaxMessageLength: 2000,
		PersistTimeout:   5 * time.Second,
		PingInterval:     30 * time.Second,
		SendBuffer:       hub.DefaultSendBuffer,
		RatePerSecond:    5,
		RateBurst:        10,
	}
}

// Gateway serves authenticated chat connections.
type Gateway struct {
	hub      *hub.Hub
	verifier Verifier
	dir      Directory
	rooms    RoomChecker
	cfg      Config
	logger   zerolog.Logger

	newHandle func() types.Handle
}

// New creates a gateway. rooms may be nil to accept joins for any room id.
func New(h *hub.Hub, v Verifier, dir Directory, rooms RoomChecker, cfg Config, logger zerolog.Logger) *Gateway {
	return &Gateway{
		hub:       h,
		verifier:  v,
		dir:       dir,
		rooms:     rooms,
		cfg:       cfg,
		logger:    logger.With().Str("component", "gateway").Logger(),
		newHandle: func() types.Handle { return types.Handle(uuid.NewString()) },
	}
}

// Authenticate verifies the handshake token. A failure means the
// connection must be refused before anything is registered.
func (g *Gateway) Authenticate(token string) (types.Identity, error) {
	id, err := g.verifier.Verify(token)
	if err != nil {
		g.logger.Warn().Err(err).Msg("handshake rejected")
		return types.Identity{}, err
	}
	return id, nil
}

// Serve registers conn for id and processes its frames until the peer goes
// away, ctx is cancelled or the hub shuts down. The connection is always
// unregistered and closed on return.
func (g *Gateway) Serve(ctx context.Context, conn types.Conn, id types.Identity) {
	if ctx.Err() != nil {
		conn.Close()
		return
	}
	c := hub.NewClient(g.newHandle(), id, conn, g.cfg.SendBuffer)
	if err := g.hub.Register(c); err != nil {
		g.logger.Warn().Err(err).Str("user_id", id.UserID).Msg("connection refused")
		c.Close()
		return
	}
	defer g.hub.Unregister(c.Handle)
	stop := context.AfterFunc(ctx, func() { g.hub.Unregister(c.Handle) })
	defer stop()

	go c.WritePump(g.cfg.PingInterval, g.logger)

	s := &session{gw: g, client: c}
	if g.cfg.RatePerSecond > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(g.cfg.RatePerSecond), max(g.cfg.RateBurst, 1))
	}

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			g.logger.Debug().Err(err).Str("handle", string(c.Handle)).Msg("read loop finished")
			return
		}
		s.handle(ctx, data)
	}
}

// session is the state of one authenticated connection.
type session struct {
	gw      *Gateway
	client  *hub.Client
	limiter *rate.Limiter
}

func (s *session) handle(ctx context.Context, data []byte) {
	var f types.InboundFrame
	err := json.Unmarshal(data, &f)
	if err != nil {
		err = protocolErrorf("malformed frame")
	} else {
		err = s.dispatch(ctx, f)
	}
	if err != nil {
		s.reject(f.RoomID, err)
	}
}

func (s *session) dispatch(ctx context.Context, f types.InboundFrame) error {
	switch f.Type {
	case types.FrameJoinRoom, types.FrameLeaveRoom, types.FrameChat:
	case "":
		return protocolErrorf("frame type is required")
	default:
		return protocolErrorf("unknown frame type %q", f.Type)
	}
	if f.RoomID == "" {
		return protocolErrorf("roomId is required")
	}

	switch f.Type {
	case types.FrameJoinRoom:
		return s.join(ctx, f.RoomID)
	case types.FrameLeaveRoom:
		s.gw.hub.Leave(f.RoomID, s.client.Handle)
		return nil
	default:
		return s.chat(ctx, f.RoomID, f.Message)
	}
}

func (s *session) join(ctx context.Context, roomID string) error {
	if s.gw.rooms != nil {
		ok, err := s.gw.rooms.RoomExists(ctx, roomID)
		if err != nil {
			s.gw.logger.Error().Err(err).Str("room", roomID).Msg("room lookup failed")
			return fmt.Errorf("%w: %w", ErrPersistence, err)
		}
		if !ok {
			return ErrRoomNotFound
		}
	}
	return s.gw.hub.Join(roomID, s.client.Handle)
}

func (s *session) chat(ctx context.Context, roomID, message string) error {
	if strings.TrimSpace(message) == "" {
		return protocolErrorf("message is required")
	}
	if limit := s.gw.cfg.MaxMessageLength; limit > 0 && utf8.RuneCountInString(message) > limit {
		return protocolErrorf("message exceeds %d characters", limit)
	}
	if !s.gw.hub.IsJoined(roomID, s.client.Handle) {
		return ErrNotJoined
	}
	if s.limiter != nil && !s.limiter.Allow() {
		return ErrRateLimited
	}

	// Detached so a disconnect mid-write still lets the message land.
	pctx := context.WithoutCancel(ctx)
	if s.gw.cfg.PersistTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(pctx, s.gw.cfg.PersistTimeout)
		defer cancel()
	}

	userID := s.client.Identity.UserID
	msg, err := s.gw.dir.AppendMessage(pctx, roomID, userID, message)
	if err != nil {
		s.gw.logger.Error().Err(err).
			Str("room", roomID).
			Str("user_id", userID).
			Msg("persist chat failed, not broadcasting")
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.gw.hub.Publish(roomID, types.NewChatFrame(msg))
	return nil
}

func (s *session) reject(roomID string, err error) {
	code, text := classify(err)
	s.gw.logger.Debug().
		Str("handle", string(s.client.Handle)).
		Str("code", code).
		Err(err).
		Msg("frame rejected")

	frame := types.ErrorFrame{Type: types.FrameError, Code: code, Message: text, RoomID: roomID}
	if !s.client.Deliver(frame) {
		s.gw.logger.Warn().Str("handle", string(s.client.Handle)).Msg("could not deliver error frame")
	}
}
