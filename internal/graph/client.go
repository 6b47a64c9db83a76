package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/deskrelay/deskrelay/internal/config"
)

var (
	// ErrAuth marks token-acquisition failures.
	ErrAuth = errors.New("graph: token acquisition failed")
	// ErrGateway marks failed Graph API calls.
	ErrGateway = errors.New("graph: request failed")
)

const responseBodyLimit = 1 << 20 // 1 MiB

// Client talks to the Microsoft Graph REST API using the application
// client-credentials flow. Calls are stateless; the underlying transport
// caches and refreshes the token.
type Client struct {
	logger     *slog.Logger
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a Client from the application registration config.
func NewClient(log *slog.Logger, cfg config.GraphConfig) *Client {
	if log == nil {
		log = slog.Default()
	}
	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", strings.TrimRight(cfg.LoginBaseURL, "/"), cfg.TenantID),
		Scopes:       []string{cfg.Scope},
	}
	return &Client{
		logger:     log.With(slog.String("component", "graph")),
		httpClient: creds.Client(context.Background()),
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// NewClientWithHTTP creates a Client bound to a custom base URL and HTTP
// client, bypassing token acquisition. Used by tests.
func NewClientWithHTTP(log *slog.Logger, baseURL string, httpClient *http.Client) *Client {
	if log == nil {
		log = slog.Default()
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		logger:     log.With(slog.String("component", "graph")),
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// CreateChat creates a group chat owned by the given directory users.
func (c *Client) CreateChat(ctx context.Context, memberIDs []string, topic string) (Chat, error) {
	members := make([]conversationMember, 0, len(memberIDs))
	for _, id := range memberIDs {
		if strings.TrimSpace(id) == "" {
			continue
		}
		members = append(members, conversationMember{
			ODataType: "#microsoft.graph.aadUserConversationMember",
			Roles:     []string{"owner"},
			UserBind:  fmt.Sprintf("https://graph.microsoft.com/v1.0/users('%s')", id),
		})
	}
	var chat Chat
	err := c.do(ctx, http.MethodPost, "/chats", createChatRequest{
		ChatType: "group",
		Topic:    topic,
		Members:  members,
	}, &chat)
	if err != nil {
		return Chat{}, err
	}
	return chat, nil
}

// SendMessage posts a message into a chat and returns the new message id.
func (c *Client) SendMessage(ctx context.Context, chatID string, body ItemBody) (string, error) {
	var msg ChatMessage
	path := fmt.Sprintf("/chats/%s/messages", url.PathEscape(chatID))
	if err := c.do(ctx, http.MethodPost, path, sendMessageRequest{Body: body}, &msg); err != nil {
		return "", err
	}
	return msg.ID, nil
}

// GetMessage fetches a single chat message.
func (c *Client) GetMessage(ctx context.Context, chatID, messageID string) (ChatMessage, error) {
	var msg ChatMessage
	path := fmt.Sprintf("/chats/%s/messages/%s", url.PathEscape(chatID), url.PathEscape(messageID))
	if err := c.do(ctx, http.MethodGet, path, nil, &msg); err != nil {
		return ChatMessage{}, err
	}
	return msg, nil
}

// CreateSubscription registers a change-notification subscription for new
// messages in the chat. clientState is echoed back in every notification and
// is how inbound events are correlated to a request.
func (c *Client) CreateSubscription(ctx context.Context, chatID, notificationURL, clientState string, ttl time.Duration) (string, error) {
	var sub subscriptionResponse
	err := c.do(ctx, http.MethodPost, "/subscriptions", subscriptionRequest{
		ChangeType:         "created",
		NotificationURL:    notificationURL,
		Resource:           fmt.Sprintf("/chats/%s/messages", chatID),
		ExpirationDateTime: expirationString(ttl),
		ClientState:        clientState,
	}, &sub)
	if err != nil {
		return "", err
	}
	return sub.ID, nil
}

// RenewSubscription extends an existing subscription by ttl from now.
func (c *Client) RenewSubscription(ctx context.Context, subscriptionID string, ttl time.Duration) error {
	path := fmt.Sprintf("/subscriptions/%s", url.PathEscape(subscriptionID))
	return c.do(ctx, http.MethodPatch, path, subscriptionRenewRequest{
		ExpirationDateTime: expirationString(ttl),
	}, nil)
}

// ResolveUserID looks up a directory user id by email or principal name.
func (c *Client) ResolveUserID(ctx context.Context, email string) (string, error) {
	var user userResponse
	path := fmt.Sprintf("/users/%s", url.PathEscape(email))
	if err := c.do(ctx, http.MethodGet, path, nil, &user); err != nil {
		return "", err
	}
	return user.ID, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%w: encode %s %s: %v", ErrGateway, method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("%w: build %s %s: %v", ErrGateway, method, path, err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isAuthError(err) {
			return fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return fmt.Errorf("%w: %s %s: %v", ErrGateway, method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, responseBodyLimit))
	if err != nil {
		return fmt.Errorf("%w: read %s %s: %v", ErrGateway, method, path, err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		c.logger.Warn("graph call failed",
			slog.String("method", method),
			slog.String("path", path),
			slog.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: %s %s: status %d", ErrGateway, method, path, resp.StatusCode)
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: decode %s %s: %v", ErrGateway, method, path, err)
	}
	return nil
}

func isAuthError(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	return errors.As(err, &retrieveErr)
}
