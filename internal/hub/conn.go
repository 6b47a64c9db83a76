package hub

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	sendBufferSize = 16
)

// Frame is the wire envelope for every event in both directions.
type Frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Conn wraps a websocket connection with a buffered outbound queue. Writes
// go through the queue and a single write pump, so event delivery never
// blocks on a slow peer; when the queue is full the frame is dropped. Send
// stays safe after Close: the hub snapshots subscribers outside its lock,
// so a broadcast can race connection teardown.
type Conn struct {
	ws     *websocket.Conn
	logger *slog.Logger

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

// NewConn wraps an upgraded websocket connection and starts its write pump.
func NewConn(log *slog.Logger, ws *websocket.Conn) *Conn {
	if log == nil {
		log = slog.Default()
	}
	c := &Conn{
		ws:     ws,
		send:   make(chan []byte, sendBufferSize),
		logger: log.With(slog.String("component", "ws_conn")),
	}
	go c.writePump()
	return c
}

// Send queues an event frame for delivery. Best-effort: a full queue or a
// closed connection drops the frame rather than stall or panic the caller.
func (c *Conn) Send(event string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		c.logger.Error("encode event payload", slog.String("event", event), slog.Any("error", err))
		return
	}
	raw, err := json.Marshal(Frame{Event: event, Data: data})
	if err != nil {
		c.logger.Error("encode event frame", slog.String("event", event), slog.Any("error", err))
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.send <- raw:
	default:
		c.logger.Warn("outbound queue full, dropping event", slog.String("event", event))
	}
}

// ReadFrame blocks until the next inbound frame arrives.
func (c *Conn) ReadFrame() (Frame, error) {
	var frame Frame
	_, raw, err := c.ws.ReadMessage()
	if err != nil {
		return Frame{}, err
	}
	if err := json.Unmarshal(raw, &frame); err != nil {
		return Frame{}, err
	}
	return frame, nil
}

// Close shuts the outbound queue and, through the write pump, the
// underlying connection. Idempotent.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
				_ = c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, raw); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
