package relay

import (
	"context"
	"log/slog"
	"time"

	"github.com/deskrelay/deskrelay/internal/hub"
	"github.com/deskrelay/deskrelay/internal/request"
)

// Outcome classifies what the router did with one notification entry.
type Outcome string

const (
	OutcomeRelayed            Outcome = "relayed"
	OutcomeSuppressedSelfEcho Outcome = "suppressed_self_echo"
	OutcomeSuppressedUserEcho Outcome = "suppressed_user_echo"
	OutcomeDuplicate          Outcome = "duplicate"
	OutcomeUnknownCorrelation Outcome = "unknown_correlation"
	OutcomeFetchFailed        Outcome = "fetch_failed"
)

// EntryResult is the per-entry record of a batch run.
type EntryResult struct {
	RequestID string
	MessageID string
	Outcome   Outcome
	Err       error
}

// Summary aggregates a batch run for observability. A webhook delivery is
// acknowledged regardless of its summary; failures never bubble to the
// notification provider.
type Summary struct {
	Results []EntryResult
}

// Count returns how many entries ended with the given outcome.
func (s Summary) Count(outcome Outcome) int {
	n := 0
	for _, r := range s.Results {
		if r.Outcome == outcome {
			n++
		}
	}
	return n
}

// fallbackCanceller stops a pending synthetic reply.
type fallbackCanceller interface {
	Cancel(requestID string)
}

// Router correlates inbound change notifications to support requests,
// deduplicates them, and relays genuine agent replies to the hub.
type Router struct {
	logger      *slog.Logger
	store       *request.Store
	gateway     Gateway
	broadcaster Broadcaster
	fallback    fallbackCanceller
}

// NewRouter creates a Router.
func NewRouter(log *slog.Logger, store *request.Store, gateway Gateway, broadcaster Broadcaster, fallback fallbackCanceller) *Router {
	if log == nil {
		log = slog.Default()
	}
	return &Router{
		logger:      log.With(slog.String("component", "router")),
		store:       store,
		gateway:     gateway,
		broadcaster: broadcaster,
		fallback:    fallback,
	}
}

// HandleBatch processes every entry of a webhook delivery independently. A
// failing entry never aborts the rest of the batch.
func (r *Router) HandleBatch(ctx context.Context, notifications []Notification) Summary {
	summary := Summary{Results: make([]EntryResult, 0, len(notifications))}
	for _, n := range notifications {
		result := r.processEntry(ctx, n)
		summary.Results = append(summary.Results, result)
	}
	r.logger.Info("notification batch processed",
		slog.Int("entries", len(summary.Results)),
		slog.Int("relayed", summary.Count(OutcomeRelayed)),
		slog.Int("suppressed", summary.Count(OutcomeSuppressedSelfEcho)+summary.Count(OutcomeSuppressedUserEcho)),
		slog.Int("duplicates", summary.Count(OutcomeDuplicate)),
		slog.Int("unknown", summary.Count(OutcomeUnknownCorrelation)),
		slog.Int("failed", summary.Count(OutcomeFetchFailed)))
	return summary
}

func (r *Router) processEntry(ctx context.Context, n Notification) EntryResult {
	requestID := n.ClientState
	messageID := n.ResourceData.ID
	result := EntryResult{RequestID: requestID, MessageID: messageID}

	req, ok := r.store.Get(requestID)
	if !ok {
		// Stale or unrelated subscription. Not an error.
		result.Outcome = OutcomeUnknownCorrelation
		return result
	}

	if messageID != "" && messageID == req.InitialMessageID {
		// Our own opening message coming back around.
		r.store.MarkProcessed(requestID, messageID)
		result.Outcome = OutcomeSuppressedSelfEcho
		return result
	}

	if !r.store.MarkProcessed(requestID, messageID) {
		result.Outcome = OutcomeDuplicate
		return result
	}

	msg, err := r.gateway.GetMessage(ctx, req.ConversationID, messageID)
	if err != nil {
		r.logger.Warn("message fetch failed",
			slog.String("request_id", requestID),
			slog.String("message_id", messageID),
			slog.Any("error", err))
		result.Outcome = OutcomeFetchFailed
		result.Err = err
		return result
	}

	content := msg.Body.Content
	if msg.Body.ContentType == "html" {
		if isForwardedUserMessage(content) {
			// The user already sees this message locally.
			result.Outcome = OutcomeSuppressedUserEcho
			return result
		}
		content = htmlToPlainText(content)
	}

	if r.fallback != nil {
		r.fallback.Cancel(requestID)
	}
	r.store.UpdateStatus(requestID, request.StatusResponded)
	r.broadcaster.Broadcast(requestID, hub.EventSupportResponse, hub.ResponseEvent{
		RequestID:     requestID,
		Message:       content,
		ResponderName: msg.SenderName(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
	r.logger.Info("agent reply relayed",
		slog.String("request_id", requestID),
		slog.String("responder", msg.SenderName()))
	result.Outcome = OutcomeRelayed
	return result
}
