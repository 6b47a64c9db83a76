package request

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store is a concurrency-safe registry of support requests. The outer lock
// guards the map; each entry carries its own mutex so unrelated records can
// be mutated concurrently while all mutations of a single record serialize.
// Records are never deleted and the registry is unbounded for the process
// lifetime.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

type entry struct {
	mu  sync.Mutex
	req SupportRequest
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entries: map[string]*entry{},
	}
}

// Create allocates a unique request id, inserts a pending record, and
// returns the id.
func (s *Store) Create(userName, userEmail, message string) string {
	id := uuid.NewString()
	e := &entry{
		req: SupportRequest{
			ID:                  id,
			UserName:            userName,
			UserEmail:           userEmail,
			OriginalMessage:     message,
			CreatedAt:           time.Now().UTC(),
			Status:              StatusPending,
			ProcessedMessageIDs: map[string]struct{}{},
		},
	}
	s.mu.Lock()
	s.entries[id] = e
	s.mu.Unlock()
	return id
}

// Get returns a snapshot of the record. The snapshot owns a copy of the
// processed-message set, so callers never alias store-internal state.
func (s *Store) Get(id string) (SupportRequest, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return SupportRequest{}, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return snapshot(e.req), true
}

// SetConversationID records the external conversation id. Later calls
// overwrite, which only happens if conversation creation is retried.
func (s *Store) SetConversationID(id, conversationID string) bool {
	return s.update(id, func(r *SupportRequest) {
		r.ConversationID = conversationID
	})
}

// SetSubscriptionID records the notification subscription id.
func (s *Store) SetSubscriptionID(id, subscriptionID string) bool {
	return s.update(id, func(r *SupportRequest) {
		r.SubscriptionID = subscriptionID
	})
}

// SetInitialMessageID records the id of the first message this process sent
// into the conversation. Set at most once; later calls are no-ops.
func (s *Store) SetInitialMessageID(id, messageID string) bool {
	return s.update(id, func(r *SupportRequest) {
		if r.InitialMessageID == "" {
			r.InitialMessageID = messageID
		}
	})
}

// SetFallbackChatLink records a human-readable conversation link for the
// case where the structured send path failed.
func (s *Store) SetFallbackChatLink(id, link string) bool {
	return s.update(id, func(r *SupportRequest) {
		r.FallbackChatLink = link
	})
}

// MarkProcessed records the message id and reports whether it is newly
// recorded. This return value is the dedup primitive: under concurrent
// deliveries of the same id exactly one caller sees true.
func (s *Store) MarkProcessed(id, messageID string) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, seen := e.req.ProcessedMessageIDs[messageID]; seen {
		return false
	}
	e.req.ProcessedMessageIDs[messageID] = struct{}{}
	return true
}

// List returns a snapshot of every record.
func (s *Store) List() []SupportRequest {
	s.mu.RLock()
	entries := make([]*entry, 0, len(s.entries))
	for _, e := range s.entries {
		entries = append(entries, e)
	}
	s.mu.RUnlock()

	out := make([]SupportRequest, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		out = append(out, snapshot(e.req))
		e.mu.Unlock()
	}
	return out
}

// UpdateStatus advances the lifecycle state. Transitions only move forward:
// pending may become responded or aborted, responded may become aborted,
// and aborted is terminal.
func (s *Store) UpdateStatus(id string, status Status) bool {
	changed := false
	ok := s.update(id, func(r *SupportRequest) {
		if !allowedTransition(r.Status, status) {
			return
		}
		r.Status = status
		changed = true
	})
	return ok && changed
}

func allowedTransition(from, to Status) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusPending:
		return to == StatusResponded || to == StatusAborted
	case StatusResponded:
		return to == StatusAborted
	default:
		return false
	}
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.entries[id]
	s.mu.RUnlock()
	return e, ok
}

func (s *Store) update(id string, fn func(*SupportRequest)) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(&e.req)
	return true
}

func snapshot(r SupportRequest) SupportRequest {
	out := r
	out.ProcessedMessageIDs = make(map[string]struct{}, len(r.ProcessedMessageIDs))
	for id := range r.ProcessedMessageIDs {
		out.ProcessedMessageIDs[id] = struct{}{}
	}
	return out
}
