package handler

import (
	"context"
	"errors"

	"notechat-be/internal/pkg/logger"
	"notechat-be/internal/pkg/serverutils"
	"notechat-be/internal/service"
	internalWS "notechat-be/internal/websocket"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// ChatHub is the part of *websocket.Hub the handler talks to.
type ChatHub interface {
	internalWS.Broker
	Stats() internalWS.Stats
}

// UserDirectory confirms that a token's subject is a live account.
type UserDirectory interface {
	EnsureExists(ctx context.Context, userID int64) error
}

type ChatHandler struct {
	hub      ChatHub
	users    UserDirectory
	verifier *serverutils.TokenVerifier
	opts     internalWS.ClientOptions
	logger   logger.ILogger
}

func NewChatHandler(hub ChatHub, users UserDirectory, verifier *serverutils.TokenVerifier, opts internalWS.ClientOptions, log logger.ILogger) *ChatHandler {
	return &ChatHandler{
		hub:      hub,
		users:    users,
		verifier: verifier,
		opts:     opts,
		logger:   log,
	}
}

// ServeWs authenticates the handshake and hands the upgraded connection to
// the hub.
func (h *ChatHandler) ServeWs(c *fiber.Ctx) error {
	// Query param first (browsers cannot set headers on a websocket handshake).
	tokenStr := c.Query("token")
	if tokenStr == "" {
		tokenStr = serverutils.BearerToken(c)
	}
	if tokenStr == "" {
		return unauthorized(c, "Missing token")
	}

	userID, err := h.verifier.Verify(tokenStr)
	if err != nil {
		h.logger.Warn("ChatHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return unauthorized(c, "Invalid token")
	}

	if err := h.users.EnsureExists(c.UserContext(), userID); err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			h.logger.Warn("ChatHandler", "Token subject has no account", map[string]interface{}{"user_id": userID})
			return unauthorized(c, "User not found")
		}
		h.logger.Error("ChatHandler", "User lookup failed", map[string]interface{}{"user_id": userID, "error": err.Error()})
		return unauthorized(c, "Unable to verify user")
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("ChatHandler", "Starting WebSocket session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID, h.opts, h.logger)
		h.logger.Info("ChatHandler", "WebSocket session ended", map[string]interface{}{"user_id": userID})
	})(c)
}

// GetStats reports online sessions and room sizes.
func (h *ChatHandler) GetStats(c *fiber.Ctx) error {
	return c.JSON(serverutils.SuccessResponse("Chat stats", h.hub.Stats()))
}

func (h *ChatHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)

	chat := router.Group("/api/chat")
	chat.Use(serverutils.JwtMiddleware(h.verifier))
	chat.Get("/stats", h.GetStats)
}

func unauthorized(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(serverutils.ErrorResponse(fiber.StatusUnauthorized, message))
}
