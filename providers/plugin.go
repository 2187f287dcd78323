package providers

import (
	"context"
	"sync/atomic"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v3"
	"github.com/orchestra-mcp/chat/config"
	"github.com/orchestra-mcp/chat/src/cache"
	"github.com/orchestra-mcp/chat/src/gateway"
	"github.com/orchestra-mcp/chat/src/hub"
	"github.com/orchestra-mcp/chat/src/service"
	"github.com/orchestra-mcp/chat/src/store"
	"github.com/orchestra-mcp/chat/src/token"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/valyala/fasthttp"
)

// ChatServer wires the hub, gateway and account API behind one fasthttp
// handler.
type ChatServer struct {
	active bool
	cfg    *config.ChatConfig
	logger zerolog.Logger

	hub      *hub.Hub
	gateway  *gateway.Gateway
	service  *service.Service
	tokens   *token.Codec
	rooms    *cache.Rooms
	app      *fiber.App
	upgrader websocket.FastHTTPUpgrader

	ctx    context.Context
	cancel context.CancelFunc
	served atomic.Int64
}

// NewChatServer builds a server on st. redisClient may be nil to run
// without the room cache.
func NewChatServer(cfg *config.ChatConfig, st *store.Store, redisClient *redis.Client, redisCfg *cache.RedisConfig, logger zerolog.Logger) *ChatServer {
	p := &ChatServer{
		cfg:    cfg,
		logger: logger,
		hub:    hub.New(logger),
		tokens: token.NewCodec(token.Config{
			Secret: cfg.JWTSecret,
			Issuer: cfg.JWTIssuer,
			TTL:    cfg.TokenTTL,
		}),
	}
	if redisCfg == nil {
		redisCfg = cache.DefaultRedisConfig()
	}
	p.rooms = cache.NewRooms(redisClient, st, redisCfg.Prefix, redisCfg.TTL, logger)
	p.service = service.New(st, p.rooms, p.tokens, service.NewPasswordHasher(cfg.BcryptCost), logger)

	var checker gateway.RoomChecker
	if cfg.ValidateRooms {
		checker = p.rooms
	}
	p.gateway = gateway.New(p.hub, p.tokens, st, checker, gateway.Config{
		MaxMessageLength: cfg.MaxMessageLength,
		PersistTimeout:   cfg.PersistTimeout,
		PingInterval:     cfg.PingInterval,
		SendBuffer:       cfg.SendBuffer,
		RatePerSecond:    cfg.RatePerSecond,
		RateBurst:        cfg.RateBurst,
	}, logger)

	p.upgrader = websocket.FastHTTPUpgrader{
		ReadBufferSize:  cfg.ReadBufferSize,
		WriteBufferSize: cfg.WriteBufferSize,
		CheckOrigin:     p.checkOrigin,
	}

	p.hub.OnConnection(func(*hub.Client) { p.served.Add(1) })
	p.hub.OnDisconnection(func(c *hub.Client, rooms []string) {
		p.logger.Debug().
			Str("user_id", c.Identity.UserID).
			Int("rooms", len(rooms)).
			Msg("connection closed")
	})

	p.app = fiber.New(fiber.Config{ErrorHandler: p.handleError})
	p.RegisterRoutes(p.app)
	p.ctx, p.cancel = context.WithCancel(context.Background())
	return p
}

func (p *ChatServer) ID() string      { return "orchestra/chat" }
func (p *ChatServer) Name() string    { return "Chat" }
func (p *ChatServer) Version() string { return "0.1.0" }
func (p *ChatServer) IsActive() bool  { return p.active }

// Hub returns the connection hub.
func (p *ChatServer) Hub() *hub.Hub { return p.hub }

// Service returns the account and room API.
func (p *ChatServer) Service() *service.Service { return p.service }

// Activate starts the hub event loop. It stops when ctx is cancelled or
// Deactivate is called.
func (p *ChatServer) Activate(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)
	go p.hub.Run(p.ctx)

	p.active = true
	p.logger.Info().Str("server", p.ID()).Msg("chat server activated")
	return nil
}

// Deactivate stops the hub, closing every connection.
func (p *ChatServer) Deactivate() error {
	if p.cancel != nil {
		p.cancel()
	}
	p.hub.Stop()
	p.active = false
	return nil
}

// Handler routes WebSocket upgrades on /ws to the gateway and everything
// else to the Fiber app.
func (p *ChatServer) Handler() fasthttp.RequestHandler {
	ws := p.FastHTTPHandler()
	app := p.app.Handler()
	return func(ctx *fasthttp.RequestCtx) {
		if string(ctx.Path()) == "/ws" {
			ws(ctx)
			return
		}
		app(ctx)
	}
}
