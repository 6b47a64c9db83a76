package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deskrelay/deskrelay/internal/relay"
)

const notificationMaxBodyBytes int64 = 1 << 20 // 1 MiB

// notificationBatch is the envelope the notification provider posts.
type notificationBatch struct {
	Value []relay.Notification `json:"value"`
}

// NotificationsHandler receives change-notification webhook deliveries.
type NotificationsHandler struct {
	router *relay.Router
	logger *slog.Logger
}

// NewNotificationsHandler creates a NotificationsHandler.
func NewNotificationsHandler(log *slog.Logger, router *relay.Router) *NotificationsHandler {
	return &NotificationsHandler{
		router: router,
		logger: log.With(slog.String("handler", "notifications")),
	}
}

// Register registers the webhook route.
func (h *NotificationsHandler) Register(e *echo.Echo) {
	e.POST("/api/notifications", h.Handle)
}

// Handle processes one webhook delivery. A validation challenge is echoed
// back verbatim as plain text; the provider deactivates the subscription on
// anything but an exact echo. Every other delivery is acknowledged with 202
// once all entries were attempted, whatever their individual outcomes.
func (h *NotificationsHandler) Handle(c echo.Context) error {
	if token := c.QueryParam("validationToken"); token != "" {
		return c.String(http.StatusOK, token)
	}

	payload, err := io.ReadAll(io.LimitReader(c.Request().Body, notificationMaxBodyBytes))
	if err != nil {
		h.logger.Warn("webhook body read failed", slog.Any("error", err))
		return c.JSON(http.StatusAccepted, map[string]any{})
	}

	var batch notificationBatch
	if err := json.Unmarshal(payload, &batch); err != nil {
		h.logger.Warn("webhook body decode failed", slog.Any("error", err))
		return c.JSON(http.StatusAccepted, map[string]any{})
	}

	h.router.HandleBatch(c.Request().Context(), batch.Value)

	return c.JSON(http.StatusAccepted, map[string]any{})
}
