package notification

import (
	"go-hrms/internal/common/api"
	"go-hrms/internal/config"
	"go-hrms/internal/middleware"

	"github.com/gofiber/fiber/v2"
)

type NotificationApi struct {
	controller *NotificationController
	config     *config.Config
}

func NewNotificationApi(controller *NotificationController, config *config.Config) api.Route {
	return &NotificationApi{
		controller: controller,
		config:     config,
	}
}

func (h *NotificationApi) Setup(app *fiber.App) {
	group := app.Group("/api/notifications", middleware.AuthMiddleware(h.config.SkipAuth))

	group.Get("/", h.controller.List)
	group.Get("/unread-count", h.controller.GetUnreadCount)
	group.Post("/read", h.controller.MarkManyAsRead)
	group.Post("/mark-all-read", h.controller.MarkAllAsRead)

	admin := middleware.RequireRole("admin", "hr")
	group.Post("/dispatch", admin, h.controller.Dispatch)
	group.Delete("/cleanup", middleware.RequireRole("admin"), h.controller.Cleanup)

	group.Put("/:id/read", h.controller.MarkAsRead)
	group.Delete("/:id", h.controller.Delete)
}
