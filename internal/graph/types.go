// Package graph is a minimal Microsoft Graph REST client covering the chat,
// message, subscription, and user-lookup operations the relay consumes.
package graph

import "time"

// ItemBody is a Graph message body.
type ItemBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Chat is the subset of a Graph chat resource the relay uses.
type Chat struct {
	ID     string `json:"id"`
	WebURL string `json:"webUrl"`
}

// ChatMessage is the subset of a Graph chatMessage resource the relay uses.
type ChatMessage struct {
	ID   string          `json:"id"`
	Body ItemBody        `json:"body"`
	From ChatMessageFrom `json:"from"`
}

// ChatMessageFrom identifies the message sender.
type ChatMessageFrom struct {
	User ChatMessageUser `json:"user"`
}

// ChatMessageUser carries the sender display name.
type ChatMessageUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// SenderName returns the sender display name with the conventional default.
func (m ChatMessage) SenderName() string {
	if m.From.User.DisplayName == "" {
		return "Support Agent"
	}
	return m.From.User.DisplayName
}

type conversationMember struct {
	ODataType string   `json:"@odata.type"`
	Roles     []string `json:"roles"`
	UserBind  string   `json:"user@odata.bind"`
}

type createChatRequest struct {
	ChatType string               `json:"chatType"`
	Topic    string               `json:"topic"`
	Members  []conversationMember `json:"members"`
}

type sendMessageRequest struct {
	Body ItemBody `json:"body"`
}

type subscriptionRequest struct {
	ChangeType         string `json:"changeType"`
	NotificationURL    string `json:"notificationUrl"`
	Resource           string `json:"resource"`
	ExpirationDateTime string `json:"expirationDateTime"`
	ClientState        string `json:"clientState,omitempty"`
}

type subscriptionRenewRequest struct {
	ExpirationDateTime string `json:"expirationDateTime"`
}

type subscriptionResponse struct {
	ID string `json:"id"`
}

type userResponse struct {
	ID string `json:"id"`
}

func expirationString(ttl time.Duration) string {
	return time.Now().UTC().Add(ttl).Format(time.RFC3339)
}
