// Package request holds the in-memory registry of support requests. The
// store is the single owner of every record; handlers, the notification
// router, and timers mutate records only through its methods.
package request

import "time"

// Status is the lifecycle state of a support request.
type Status string

const (
	StatusPending   Status = "pending"
	StatusResponded Status = "responded"
	StatusAborted   Status = "aborted"
)

// SupportRequest is one user-initiated support conversation. ID and the
// user fields are set at creation and never change. ConversationID,
// SubscriptionID, and InitialMessageID are set at most once when the
// corresponding gateway call succeeds; an empty ConversationID signals
// fallback mode.
type SupportRequest struct {
	ID              string
	UserName        string
	UserEmail       string
	OriginalMessage string
	CreatedAt       time.Time

	Status           Status
	ConversationID   string
	SubscriptionID   string
	InitialMessageID string
	FallbackChatLink string

	// ProcessedMessageIDs is the append-only set of external message IDs
	// already relayed or deliberately suppressed.
	ProcessedMessageIDs map[string]struct{}
}

// Processed reports whether the given message id has been recorded.
func (r SupportRequest) Processed(messageID string) bool {
	_, ok := r.ProcessedMessageIDs[messageID]
	return ok
}
