package relay

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/deskrelay/deskrelay/internal/graph"
	"github.com/deskrelay/deskrelay/internal/request"
)

const anonymousUserName = "Anonymous User"

// Service orchestrates the submission path: record creation, conversation
// setup on the external platform, and the fallback to a synthetic reply when
// any of that is unreachable. Gateway trouble never surfaces to the
// submitting client.
type Service struct {
	logger          *slog.Logger
	store           *request.Store
	gateway         Gateway
	fallback        *Responder
	teamMemberIDs   []string
	notificationURL string
	subscriptionTTL time.Duration
}

// NewService creates the orchestration service. A nil gateway puts every
// submission in fallback mode.
func NewService(log *slog.Logger, store *request.Store, gateway Gateway, fallback *Responder, teamMemberIDs []string, notificationURL string, subscriptionTTL time.Duration) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		logger:          log.With(slog.String("component", "relay")),
		store:           store,
		gateway:         gateway,
		fallback:        fallback,
		teamMemberIDs:   teamMemberIDs,
		notificationURL: notificationURL,
		subscriptionTTL: subscriptionTTL,
	}
}

// Submit registers a new support request and opens a conversation with the
// support team. It always returns a request id; on any gateway failure the
// fallback responder takes over instead of an error.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) string {
	userName := strings.TrimSpace(req.UserName)
	if userName == "" {
		userName = anonymousUserName
	}

	id := s.store.Create(userName, req.UserEmail, req.Message)
	s.logger.Info("support request received",
		slog.String("request_id", id),
		slog.String("user", userName))

	if s.gateway == nil {
		s.logger.Warn("gateway not configured, entering fallback mode", slog.String("request_id", id))
		s.fallback.Schedule(id, req.Message)
		return id
	}

	chat, err := s.gateway.CreateChat(ctx, s.teamMemberIDs, fmt.Sprintf("Support Request from %s - %s", userName, shortID(id)))
	if err != nil {
		s.logger.Error("conversation creation failed, entering fallback mode",
			slog.String("request_id", id),
			slog.Any("error", err))
		s.fallback.Schedule(id, req.Message)
		return id
	}
	s.store.SetConversationID(id, chat.ID)

	record, _ := s.store.Get(id)
	body := graph.ItemBody{
		ContentType: "html",
		Content:     initialMessageBody(id, userName, req.UserEmail, req.Message, req.ChatHistory, record.CreatedAt.Format(time.RFC3339)),
	}
	messageID, err := s.gateway.SendMessage(ctx, chat.ID, body)
	if err != nil {
		// The conversation exists; keep going and leave the team a link.
		s.logger.Warn("initial message send failed",
			slog.String("request_id", id),
			slog.Any("error", err))
		if chat.WebURL != "" {
			s.store.SetFallbackChatLink(id, chat.WebURL)
		}
	} else {
		s.store.SetInitialMessageID(id, messageID)
	}

	subID, err := s.gateway.CreateSubscription(ctx, chat.ID, s.notificationURL, id, s.subscriptionTTL)
	if err != nil {
		// Best-effort: without a subscription, replies just never push.
		s.logger.Warn("subscription creation failed",
			slog.String("request_id", id),
			slog.Any("error", err))
	} else {
		s.store.SetSubscriptionID(id, subID)
	}

	return id
}

// SendFollowUp relays an additional user message into the existing
// conversation. The hub is not involved: the client already renders its own
// message locally.
func (s *Service) SendFollowUp(ctx context.Context, requestID, message string) error {
	req, ok := s.store.Get(requestID)
	if !ok {
		return ErrUnknownRequest
	}
	if req.ConversationID == "" || s.gateway == nil {
		return ErrNoConversation
	}

	body := graph.ItemBody{
		ContentType: "html",
		Content:     followUpMessageBody(req.UserName, message),
	}
	if _, err := s.gateway.SendMessage(ctx, req.ConversationID, body); err != nil {
		s.logger.Error("follow-up relay failed",
			slog.String("request_id", requestID),
			slog.Any("error", err))
		return fmt.Errorf("%w: %v", ErrRelayFailed, err)
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
