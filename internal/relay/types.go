// Package relay is the correlation engine between the widget-facing HTTP
// surface, the external conversation platform, and the realtime hub.
package relay

import (
	"context"
	"errors"
	"time"

	"github.com/deskrelay/deskrelay/internal/graph"
)

// Sentinel errors the follow-up path reports to the HTTP layer.
var (
	ErrUnknownRequest = errors.New("relay: unknown request id")
	ErrNoConversation = errors.New("relay: no conversation associated with request")
	ErrRelayFailed    = errors.New("relay: message relay failed")
)

// Gateway is the external-platform capability the relay consumes. The graph
// client is the production implementation.
type Gateway interface {
	CreateChat(ctx context.Context, memberIDs []string, topic string) (graph.Chat, error)
	SendMessage(ctx context.Context, chatID string, body graph.ItemBody) (string, error)
	GetMessage(ctx context.Context, chatID, messageID string) (graph.ChatMessage, error)
	CreateSubscription(ctx context.Context, chatID, notificationURL, clientState string, ttl time.Duration) (string, error)
}

// Broadcaster delivers an event to every live subscriber of a request.
type Broadcaster interface {
	Broadcast(requestID, event string, payload any)
}

// SubmitRequest is a new support submission.
type SubmitRequest struct {
	Message     string
	UserName    string
	UserEmail   string
	ChatHistory string
}

// Notification is one entry of an inbound change-notification batch. The
// clientState value is the correlation token supplied at subscription
// creation, here always a request id.
type Notification struct {
	ClientState  string       `json:"clientState"`
	Resource     string       `json:"resource,omitempty"`
	ResourceData ResourceData `json:"resourceData"`
}

// ResourceData identifies the resource the notification refers to.
type ResourceData struct {
	ID string `json:"id"`
}
