package realtime

import (
	"encoding/json"
	"time"

	"go-hrms/internal/config"
	"go-hrms/internal/middleware"
	"go-hrms/pkg/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// connRoleKey holds the role a socket is filed under, chosen before the upgrade.
const connRoleKey = "connRole"

type WebSocketController struct {
	registry     *Registry
	sendBuffer   int
	writeTimeout time.Duration
	logger       *zap.Logger
}

func NewWebSocketController(registry *Registry, cfg *config.Config, logger *zap.Logger) *WebSocketController {
	return &WebSocketController{
		registry:     registry,
		sendBuffer:   cfg.SendBuffer,
		writeTimeout: cfg.WriteTimeout,
		logger:       logger.With(zap.String("component", "realtime")),
	}
}

// Upgrade rejects plain HTTP requests and resolves the connection role from the caller's claims.
func (h *WebSocketController) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	claims, ok := middleware.ClaimsFrom(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	role, err := claims.PrimaryRole(c.Query("role"))
	if err != nil {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": err.Error()})
	}

	c.Locals(connRoleKey, role)
	return c.Next()
}

// HandleWebSocket owns the socket for its whole life: it registers the
// connection, treats every client frame as activity and releases the
// registry entry once the read side fails.
func (h *WebSocketController) HandleWebSocket(c *websocket.Conn) {
	userID, _ := c.Locals(utils.UserIDKey).(string)
	role, _ := c.Locals(connRoleKey).(string)

	t := NewSocketTransport(c, h.sendBuffer, h.writeTimeout)
	defer t.Wait()

	release, ok := h.registry.Connect(userID, role, t)
	if !ok {
		_ = t.Close()
		return
	}
	defer release()

	for {
		_, msg, err := c.ReadMessage()
		if err != nil {
			return
		}
		h.registry.Touch(userID)

		var frame ClientFrame
		if err := json.Unmarshal(msg, &frame); err != nil || !frame.IsKeepAlive() {
			h.logger.Debug("Ignoring client frame", zap.String("user_id", userID))
		}
	}
}

// Stats godoc
func (h *WebSocketController) Stats(c *fiber.Ctx) error {
	return c.JSON(h.registry.Stats())
}
