package bootstrap

import (
	"context"
	"time"

	"notechat-be/internal/config"
	"notechat-be/internal/handler"
	"notechat-be/internal/pkg/logger"
	"notechat-be/internal/pkg/serverutils"
	"notechat-be/internal/repository/cache"
	"notechat-be/internal/repository/implementation"
	"notechat-be/internal/service"
	"notechat-be/internal/websocket"
	pktNats "notechat-be/pkg/nats"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const historyCacheTTL = 24 * time.Hour

type Container struct {
	Logger     logger.ILogger
	ChatLogger logger.ILogger

	Verifier *serverutils.TokenVerifier

	// WebSockets & Chat
	ChatHandler  *handler.ChatHandler
	WebSocketHub *websocket.Hub

	redis     *redis.Client
	publisher *pktNats.Publisher
}

func NewContainer(db *gorm.DB, cfg *config.Config) *Container {
	// 1. Core Facades
	sysLogger := logger.NewZapLogger(cfg.App.LogFilePath, cfg.IsProduction())
	chatLogger := logger.NewIsolatedLogger(cfg.App.ChatLogFilePath)
	verifier := serverutils.NewTokenVerifier(cfg.Auth.JWTSecret)

	// 2. Infrastructure (optional; the chat runs on the database alone)
	var messageOpts []service.MessageServiceOption

	natsPub := connectNats(cfg.App.NatsURL, sysLogger)
	if natsPub != nil {
		messageOpts = append(messageOpts, service.WithEventPublisher(natsPub))
	}

	rdb := connectRedis(cfg.App.RedisURL, sysLogger)
	if rdb != nil {
		messageOpts = append(messageOpts, service.WithHistoryCache(
			cache.NewHistoryCache(rdb, websocket.HistoryLimit, historyCacheTTL),
		))
	}

	// 3. Services
	messageRepo := implementation.NewChatMessageRepository(db)
	userRepo := implementation.NewUserRepository(db)

	messageService := service.NewMessageService(messageRepo, chatLogger, messageOpts...)
	userService := service.NewUserService(userRepo, cfg.Auth.UserCacheTTL)

	// 4. WebSocket Hub
	wsHub := websocket.NewHub(messageService, chatLogger, websocket.WithPersistTimeout(cfg.Chat.PersistTimeout))
	go wsHub.Run()

	// 5. Handlers
	chatHandler := handler.NewChatHandler(
		wsHub,
		userService,
		verifier,
		websocket.ClientOptions{
			MaxMessageSize: cfg.Chat.MaxMessageSize,
			SendBuffer:     cfg.Chat.SendBuffer,
		},
		chatLogger,
	)

	return &Container{
		Logger:       sysLogger,
		ChatLogger:   chatLogger,
		Verifier:     verifier,
		ChatHandler:  chatHandler,
		WebSocketHub: wsHub,
		redis:        rdb,
		publisher:    natsPub,
	}
}

func connectNats(url string, log logger.ILogger) *pktNats.Publisher {
	if url == "" {
		log.Info("Bootstrap", "NATS_URL not set, chat events disabled", nil)
		return nil
	}
	pub, err := pktNats.NewPublisher(url)
	if err != nil {
		log.Warn("Bootstrap", "Failed to connect to NATS, chat events disabled", map[string]interface{}{"error": err.Error()})
		return nil
	}
	return pub
}

func connectRedis(url string, log logger.ILogger) *redis.Client {
	if url == "" {
		log.Info("Bootstrap", "REDIS_URL not set, history cache disabled", nil)
		return nil
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		log.Warn("Bootstrap", "Failed to parse Redis URL, using direct Addr", map[string]interface{}{"error": err.Error()})
		opt = &redis.Options{Addr: url}
	}
	rdb := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Warn("Bootstrap", "Failed to connect to Redis, history cache disabled", map[string]interface{}{"error": err.Error()})
		_ = rdb.Close()
		return nil
	}
	return rdb
}

// Close shuts the hub down and releases infrastructure clients.
func (c *Container) Close(timeout time.Duration) {
	if err := c.WebSocketHub.Shutdown(timeout); err != nil {
		c.Logger.Warn("Bootstrap", "Hub shutdown incomplete", map[string]interface{}{"error": err.Error()})
	}
	if c.publisher != nil {
		c.publisher.Close()
	}
	if c.redis != nil {
		_ = c.redis.Close()
	}
	_ = c.ChatLogger.Sync()
	_ = c.Logger.Sync()
}
