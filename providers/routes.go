package providers

import (
	"encoding/json"
	"errors"
	"strconv"
	"strings"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/chat/src/service"
	"github.com/orchestra-mcp/chat/src/store"
	"github.com/orchestra-mcp/chat/src/token"
	"github.com/valyala/fasthttp"
)

// RegisterRoutes registers the HTTP API via Fiber.
// The WebSocket upgrade uses FastHTTPHandler, dispatched by Handler,
// since Fiber v3 does not expose *fasthttp.RequestCtx to route handlers.
func (p *ChatServer) RegisterRoutes(group fiber.Router) {
	group.Get("/health", p.handleHealth)
	group.Get("/ws/info", p.handleInfo)
	group.Post("/signup", p.handleSignup)
	group.Post("/signin", p.handleSignin)

	group.Post("/room", p.handleCreateRoom, p.requireAuth)
	group.Get("/room/:slug", p.handleGetRoom, p.requireAuth)
	group.Get("/chats/:roomId", p.handleListChats, p.requireAuth)
}

func (p *ChatServer) handleHealth(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

func (p *ChatServer) handleInfo(c fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"server":           p.Name(),
		"version":          p.Version(),
		"websocket":        true,
		"endpoint":         "/ws",
		"clients":          p.hub.ClientCount(),
		"rooms":            len(p.hub.Rooms()),
		"totalConnections": p.served.Load(),
		"cache":            p.rooms.Stats(),
	})
}

func (p *ChatServer) handleSignup(c fiber.Ctx) error {
	var in service.SignupInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	res, err := p.service.Signup(c.Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(res)
}

func (p *ChatServer) handleSignin(c fiber.Ctx) error {
	var in service.SigninInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	tok, err := p.service.Signin(c.Context(), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"token": tok})
}

func (p *ChatServer) handleCreateRoom(c fiber.Ctx) error {
	var in service.CreateRoomInput
	if err := decodeBody(c, &in); err != nil {
		return err
	}
	room, err := p.service.CreateRoom(c.Context(), userID(c), in)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"roomId": room.ID, "slug": room.Slug})
}

func (p *ChatServer) handleGetRoom(c fiber.Ctx) error {
	room, err := p.service.GetRoomBySlug(c.Context(), c.Params("slug"))
	if err != nil {
		return err
	}
	return c.JSON(room)
}

func (p *ChatServer) handleListChats(c fiber.Ctx) error {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return fiber.NewError(fiber.StatusBadRequest, "limit must be a positive integer")
		}
		limit = n
	}
	msgs, err := p.service.ListRecentMessages(c.Context(), c.Params("roomId"), limit)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": msgs})
}

func decodeBody(c fiber.Ctx, dst any) error {
	if err := json.Unmarshal(c.Body(), dst); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "request body must be valid JSON")
	}
	return nil
}

// handleError maps domain errors to status codes.
func (p *ChatServer) handleError(c fiber.Ctx, err error) error {
	status, code := fiber.StatusInternalServerError, "internal_error"
	msg := "internal server error"

	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		status, code, msg = fe.Code, "request_error", fe.Message
	case errors.Is(err, service.ErrValidation):
		status, code, msg = fiber.StatusBadRequest, "validation_error", err.Error()
	case errors.Is(err, store.ErrUserExists):
		status, code, msg = fiber.StatusConflict, "user_exists", err.Error()
	case errors.Is(err, service.ErrInvalidCredentials):
		status, code, msg = fiber.StatusForbidden, "invalid_credentials", err.Error()
	case errors.Is(err, store.ErrNotFound):
		status, code, msg = fiber.StatusNotFound, "not_found", err.Error()
	case errors.Is(err, token.ErrAuth):
		status, code, msg = fiber.StatusUnauthorized, "unauthorized", err.Error()
	default:
		p.logger.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": code, "message": msg})
}

// FastHTTPHandler returns a raw fasthttp handler for WebSocket upgrades.
// The token is checked before the upgrade so a bad handshake never reaches
// the hub.
func (p *ChatServer) FastHTTPHandler() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		upgrade := string(ctx.Request.Header.Peek("Upgrade"))
		if !strings.EqualFold(upgrade, "websocket") {
			writeJSONError(ctx, fasthttp.StatusUpgradeRequired, "upgrade_required", "WebSocket upgrade required")
			return
		}
		if p.cfg.MaxConnections > 0 && p.hub.ClientCount() >= p.cfg.MaxConnections {
			writeJSONError(ctx, fasthttp.StatusServiceUnavailable, "too_many_connections", "connection limit reached")
			return
		}

		tok := string(ctx.QueryArgs().Peek("token"))
		if tok == "" {
			tok = bearerToken(string(ctx.Request.Header.Peek(fasthttp.HeaderAuthorization)))
		}
		id, err := p.gateway.Authenticate(tok)
		if err != nil {
			writeJSONError(ctx, fasthttp.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		serveCtx := p.ctx
		err = p.upgrader.Upgrade(ctx, func(conn *websocket.Conn) {
			wrapped := newFasthttpConn(conn, p.cfg.MaxFrameBytes, p.cfg.PingInterval, p.cfg.WriteTimeout)
			p.gateway.Serve(serveCtx, wrapped, id)
		})
		if err != nil {
			p.logger.Error().Err(err).Msg("websocket upgrade failed")
		}
	}
}

func (p *ChatServer) checkOrigin(ctx *fasthttp.RequestCtx) bool {
	if len(p.cfg.AllowedOrigins) == 0 {
		return true
	}
	origin := string(ctx.Request.Header.Peek("Origin"))
	for _, allowed := range p.cfg.AllowedOrigins {
		if allowed == "*" || strings.EqualFold(allowed, origin) {
			return true
		}
	}
	p.logger.Warn().Str("origin", origin).Msg("websocket origin rejected")
	return false
}

func writeJSONError(ctx *fasthttp.RequestCtx, status int, code, msg string) {
	body, _ := json.Marshal(map[string]string{"error": code, "message": msg})
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	ctx.SetBody(body)
}
