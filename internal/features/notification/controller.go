package notification

import (
	"strconv"

	"go-hrms/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type NotificationController struct {
	service NotificationService
	logger  *zap.Logger
}

func NewNotificationController(service NotificationService, logger *zap.Logger) *NotificationController {
	return &NotificationController{
		service: service,
		logger:  logger,
	}
}

type MarkManyReadRequest struct {
	IDs []string `json:"ids"`
}

func currentUser(c *fiber.Ctx) (string, bool) {
	userID, ok := c.Locals(utils.UserIDKey).(string)
	return userID, ok && userID != ""
}

func unauthorized(c *fiber.Ctx) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid user ID"})
}

// List godoc
// @Summary      List notifications
// @Tags         notifications
// @Param        page query int false "Page number" default(1)
// @Param        pageSize query int false "Items per page" default(20)
// @Param        isRead query bool false "Filter by read state"
// @Param        category query string false "Filter by category"
// @Param        type query string false "Filter by type"
// @Router       /notifications [get]
func (ctrl *NotificationController) List(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	page, _ := strconv.ParseInt(c.Query("page", "1"), 10, 64)
	pageSize, _ := strconv.ParseInt(c.Query("pageSize", strconv.Itoa(DefaultPageSize)), 10, 64)

	filter := ListFilter{
		Page:     page,
		PageSize: pageSize,
		Category: c.Query("category"),
		Type:     NotificationType(c.Query("type")),
	}
	if raw := c.Query("isRead"); raw != "" {
		isRead, err := strconv.ParseBool(raw)
		if err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "isRead must be true or false"})
		}
		filter.IsRead = &isRead
	}

	result, err := ctrl.service.ListForUser(c.Context(), userID, filter)
	if err != nil {
		ctrl.logger.Error("Failed to list notifications", zap.String("user_id", userID), zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to fetch notifications"})
	}

	return c.JSON(result)
}

// GetUnreadCount godoc
func (ctrl *NotificationController) GetUnreadCount(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	count, err := ctrl.service.UnreadCount(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to count notifications"})
	}

	return c.JSON(fiber.Map{"count": count})
}

// MarkAsRead godoc
func (ctrl *NotificationController) MarkAsRead(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	updated, err := ctrl.service.MarkRead(c.Context(), c.Params("id"), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notification"})
	}
	if !updated {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found or already read"})
	}

	return c.JSON(fiber.Map{"status": "success"})
}

// MarkManyAsRead godoc
func (ctrl *NotificationController) MarkManyAsRead(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req MarkManyReadRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	changed, err := ctrl.service.MarkManyRead(c.Context(), req.IDs, userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notifications"})
	}

	return c.JSON(fiber.Map{"modifiedCount": changed})
}

// MarkAllAsRead godoc
func (ctrl *NotificationController) MarkAllAsRead(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	changed, err := ctrl.service.MarkAllRead(c.Context(), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update notifications"})
	}

	return c.JSON(fiber.Map{"modifiedCount": changed})
}

// Delete godoc
func (ctrl *NotificationController) Delete(c *fiber.Ctx) error {
	userID, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	deleted, err := ctrl.service.Delete(c.Context(), c.Params("id"), userID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete notification"})
	}
	if !deleted {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "Notification not found"})
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Dispatch godoc
// @Summary      Send a notification to a user, one or more roles, or everyone online
// @Tags         notifications
// @Router       /notifications/dispatch [post]
func (ctrl *NotificationController) Dispatch(c *fiber.Ctx) error {
	var req Event
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	result, err := Route(c.Context(), ctrl.service, req)
	if err != nil {
		if IsRejected(err) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
		}
		ctrl.logger.Error("Failed to dispatch notification", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to dispatch notification"})
	}

	return c.Status(fiber.StatusCreated).JSON(result)
}

// Cleanup godoc
func (ctrl *NotificationController) Cleanup(c *fiber.Ctx) error {
	days, err := strconv.Atoi(c.Query("days", strconv.Itoa(DefaultRetentionDays)))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "days must be a number"})
	}

	result, err := ctrl.service.Cleanup(c.Context(), days)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to clean up notifications"})
	}

	return c.JSON(result)
}
