// Package hub fans support-request events out to live widget connections.
// Delivery is at-most-once and best-effort: events for requests with no
// current subscriber are dropped, never queued.
package hub

import (
	"log/slog"
	"sync"
	"time"

	"github.com/deskrelay/deskrelay/internal/request"
)

// Event names on the websocket transport.
const (
	EventSupportResponse   = "support_response"
	EventUserMessageEcho   = "user_message_echo"
	EventUnregisterSuccess = "unregister_success"
	EventError             = "error"
)

// ResponseEvent is the payload of a support_response frame.
type ResponseEvent struct {
	RequestID     string `json:"requestId"`
	Message       string `json:"message"`
	ResponderName string `json:"responderName"`
	Timestamp     string `json:"timestamp"`
}

// AckEvent is the payload of an unregister_success frame.
type AckEvent struct {
	RequestID string `json:"requestId"`
}

// ErrorEvent is the payload of an error frame.
type ErrorEvent struct {
	Message string `json:"message"`
}

// Subscriber receives events for the requests it registered for. Conn is
// the production implementation.
type Subscriber interface {
	Send(event string, payload any)
}

// requestState is the slice of the request store the hub needs.
type requestState interface {
	Get(id string) (request.SupportRequest, bool)
	UpdateStatus(id string, status request.Status) bool
}

// Hub tracks per-request subscriber groups.
type Hub struct {
	logger *slog.Logger
	store  requestState

	mu    sync.Mutex
	rooms map[string]map[Subscriber]struct{}
}

// NewHub creates a Hub backed by the given request store.
func NewHub(log *slog.Logger, store requestState) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		logger: log.With(slog.String("component", "hub")),
		store:  store,
		rooms:  map[string]map[Subscriber]struct{}{},
	}
}

// Register adds the subscriber to the request's group. If the request has
// already been responded to, the subscriber alone receives an immediate
// notice so a late-joining client is not left waiting for an event that
// already fired.
func (h *Hub) Register(sub Subscriber, requestID string) {
	h.mu.Lock()
	room, ok := h.rooms[requestID]
	if !ok {
		room = map[Subscriber]struct{}{}
		h.rooms[requestID] = room
	}
	room[sub] = struct{}{}
	h.mu.Unlock()

	h.logger.Debug("subscriber registered", slog.String("request_id", requestID))

	if req, ok := h.store.Get(requestID); ok && req.Status == request.StatusResponded {
		sub.Send(EventSupportResponse, ResponseEvent{
			RequestID:     requestID,
			Message:       "A response has already been provided. Please check your history.",
			ResponderName: "System",
			Timestamp:     time.Now().UTC().Format(time.RFC3339),
		})
	}
}

// Unregister removes the subscriber from the group, acknowledges, and marks
// the request aborted: the user has explicitly ended the conversation.
func (h *Hub) Unregister(sub Subscriber, requestID string) {
	h.mu.Lock()
	if room, ok := h.rooms[requestID]; ok {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, requestID)
		}
	}
	h.mu.Unlock()

	sub.Send(EventUnregisterSuccess, AckEvent{RequestID: requestID})
	h.store.UpdateStatus(requestID, request.StatusAborted)
	h.logger.Debug("subscriber unregistered", slog.String("request_id", requestID))
}

// Drop removes a closed connection from every group. Unlike Unregister it
// does not abort anything; the client may reconnect and register again.
func (h *Hub) Drop(sub Subscriber) {
	h.mu.Lock()
	for requestID, room := range h.rooms {
		delete(room, sub)
		if len(room) == 0 {
			delete(h.rooms, requestID)
		}
	}
	h.mu.Unlock()
}

// Broadcast delivers the event to every current subscriber of the request.
func (h *Hub) Broadcast(requestID, event string, payload any) {
	for _, sub := range h.subscribers(requestID) {
		sub.Send(event, payload)
	}
}

// RelayEcho mirrors a client-originated frame to the other subscribers of
// the same request. Pure UI mirroring, no state change.
func (h *Hub) RelayEcho(sender Subscriber, requestID string, payload any) {
	for _, sub := range h.subscribers(requestID) {
		if sub == sender {
			continue
		}
		sub.Send(EventUserMessageEcho, payload)
	}
}

func (h *Hub) subscribers(requestID string) []Subscriber {
	h.mu.Lock()
	defer h.mu.Unlock()
	room := h.rooms[requestID]
	subs := make([]Subscriber, 0, len(room))
	for sub := range room {
		subs = append(subs, sub)
	}
	return subs
}
