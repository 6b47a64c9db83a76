package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// PingHandler answers liveness probes for the relay.
type PingHandler struct {
	logger  *slog.Logger
	started time.Time
}

func NewPingHandler(log *slog.Logger) *PingHandler {
	return &PingHandler{
		logger:  log.With(slog.String("handler", "ping")),
		started: time.Now().UTC(),
	}
}

func (h *PingHandler) Register(e *echo.Echo) {
	e.GET("/ping", h.Ping)
	e.HEAD("/health", h.PingHead)
}

func (h *PingHandler) Ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        "deskrelay",
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

func (h *PingHandler) PingHead(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}
