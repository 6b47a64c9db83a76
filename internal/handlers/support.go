package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/deskrelay/deskrelay/internal/relay"
)

// SubmitSupportRequest is the body of POST /api/support.
type SubmitSupportRequest struct {
	Message     string `json:"message" validate:"required"`
	UserName    string `json:"userName"`
	UserEmail   string `json:"userEmail" validate:"omitempty,email"`
	ChatHistory string `json:"chatHistory"`
}

// SubmitSupportResponse is the body returned by POST /api/support.
type SubmitSupportResponse struct {
	Success   bool   `json:"success"`
	RequestID string `json:"requestId"`
	Message   string `json:"message"`
}

// FollowUpRequest is the body of POST /api/message.
type FollowUpRequest struct {
	RequestID string `json:"requestId" validate:"required"`
	Message   string `json:"message" validate:"required"`
}

// StatusResponse is the generic success/failure body.
type StatusResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// SupportHandler exposes the widget-facing submission endpoints.
type SupportHandler struct {
	service *relay.Service
	logger  *slog.Logger
}

// NewSupportHandler creates a SupportHandler.
func NewSupportHandler(log *slog.Logger, service *relay.Service) *SupportHandler {
	return &SupportHandler{
		service: service,
		logger:  log.With(slog.String("handler", "support")),
	}
}

// Register registers the submission routes.
func (h *SupportHandler) Register(e *echo.Echo) {
	e.POST("/api/support", h.Submit)
	e.POST("/api/message", h.FollowUp)
}

// Submit accepts a new support request. Gateway trouble never fails this
// endpoint; the fallback responder keeps the user-facing contract uniform.
func (h *SupportHandler) Submit(c echo.Context) error {
	var req SubmitSupportRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	requestID := h.service.Submit(c.Request().Context(), relay.SubmitRequest{
		Message:     req.Message,
		UserName:    req.UserName,
		UserEmail:   req.UserEmail,
		ChatHistory: req.ChatHistory,
	})

	return c.JSON(http.StatusOK, SubmitSupportResponse{
		Success:   true,
		RequestID: requestID,
		Message:   "Support request submitted",
	})
}

// FollowUp relays an additional message into an existing conversation.
func (h *SupportHandler) FollowUp(c echo.Context) error {
	var req FollowUpRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.RequestID == "" || req.Message == "" {
		return c.JSON(http.StatusBadRequest, StatusResponse{
			Success: false,
			Message: "Missing requestId or message",
		})
	}

	err := h.service.SendFollowUp(c.Request().Context(), req.RequestID, req.Message)
	switch {
	case err == nil:
		return c.JSON(http.StatusOK, StatusResponse{
			Success: true,
			Message: "Message sent successfully",
		})
	case errors.Is(err, relay.ErrUnknownRequest):
		return c.JSON(http.StatusNotFound, StatusResponse{
			Success: false,
			Message: "Unknown request ID",
		})
	case errors.Is(err, relay.ErrNoConversation):
		return c.JSON(http.StatusBadRequest, StatusResponse{
			Success: false,
			Message: "No conversation associated with this request",
		})
	default:
		return c.JSON(http.StatusInternalServerError, StatusResponse{
			Success: false,
			Message: "Failed to relay message",
		})
	}
}
