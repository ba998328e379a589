package realtime

import (
	"go-hrms/internal/common/api"
	"go-hrms/internal/config"
	"go-hrms/internal/middleware"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

type RealtimeApi struct {
	controller *WebSocketController
	config     *config.Config
}

func NewRealtimeApi(controller *WebSocketController, config *config.Config) api.Route {
	return &RealtimeApi{
		controller: controller,
		config:     config,
	}
}

func (h *RealtimeApi) Setup(app *fiber.App) {
	ws := app.Group("/api/ws", middleware.AuthMiddleware(h.config.SkipAuth), h.controller.Upgrade)
	ws.Get("/notifications", websocket.New(h.controller.HandleWebSocket))

	app.Get("/api/realtime/stats",
		middleware.AuthMiddleware(h.config.SkipAuth),
		middleware.RequireRole("admin", "hr"),
		h.controller.Stats,
	)
}
