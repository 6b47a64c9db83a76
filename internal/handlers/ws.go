package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/deskrelay/deskrelay/internal/hub"
)

// wsSubscription is the data of a register/unregister frame, and the
// minimum shape of a user_message_echo frame.
type wsSubscription struct {
	RequestID string `json:"requestId"`
}

// WSHandler upgrades widget connections and feeds their frames to the hub.
type WSHandler struct {
	hub      *hub.Hub
	logger   *slog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a WSHandler.
func NewWSHandler(log *slog.Logger, h *hub.Hub) *WSHandler {
	return &WSHandler{
		hub:    h,
		logger: log.With(slog.String("handler", "ws")),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// The widget is served from arbitrary customer origins.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Register registers the websocket route.
func (h *WSHandler) Register(e *echo.Echo) {
	e.GET("/ws", h.Handle)
}

// Handle upgrades the connection and runs its read loop until the peer
// disconnects.
func (h *WSHandler) Handle(c echo.Context) error {
	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	conn := hub.NewConn(h.logger, ws)
	h.logger.Debug("client connected")
	defer func() {
		h.hub.Drop(conn)
		conn.Close()
		h.logger.Debug("client disconnected")
	}()

	for {
		frame, err := conn.ReadFrame()
		if err != nil {
			return nil
		}
		h.dispatch(conn, frame)
	}
}

func (h *WSHandler) dispatch(conn *hub.Conn, frame hub.Frame) {
	switch frame.Event {
	case "register":
		sub, ok := h.subscription(conn, frame)
		if !ok {
			return
		}
		h.hub.Register(conn, sub.RequestID)
	case "unregister":
		sub, ok := h.subscription(conn, frame)
		if !ok {
			return
		}
		h.hub.Unregister(conn, sub.RequestID)
	case hub.EventUserMessageEcho:
		sub, ok := h.subscription(conn, frame)
		if !ok {
			return
		}
		h.hub.RelayEcho(conn, sub.RequestID, json.RawMessage(frame.Data))
	default:
		h.logger.Debug("ignoring unknown event", slog.String("event", frame.Event))
	}
}

func (h *WSHandler) subscription(conn *hub.Conn, frame hub.Frame) (wsSubscription, bool) {
	var sub wsSubscription
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &sub); err != nil {
			conn.Send(hub.EventError, hub.ErrorEvent{Message: "Malformed event payload"})
			return wsSubscription{}, false
		}
	}
	if sub.RequestID == "" {
		conn.Send(hub.EventError, hub.ErrorEvent{Message: "No request ID provided"})
		return wsSubscription{}, false
	}
	return sub, true
}
