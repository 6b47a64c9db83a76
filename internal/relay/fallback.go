package relay

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/deskrelay/deskrelay/internal/hub"
	"github.com/deskrelay/deskrelay/internal/request"
)

// requestStatus is the read slice of the request store the responder needs.
type requestStatus interface {
	Get(id string) (request.SupportRequest, bool)
}

// Responder synthesizes a canned reply when the gateway path is unavailable,
// so a submission never hard-fails from the user's point of view. Each
// scheduled task is cancellable: a genuine relay for the same request must
// stop the synthetic one before the user sees both. Stop cannot retract a
// fire that already left the timer queue, so fire re-checks the request
// status and stands down once a genuine reply has landed.
type Responder struct {
	logger        *slog.Logger
	broadcaster   Broadcaster
	state         requestStatus
	delay         time.Duration
	responderName string

	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewResponder creates a Responder emitting through the given broadcaster
// after the fixed delay. state may be nil, which disables the pre-fire
// status check.
func NewResponder(log *slog.Logger, broadcaster Broadcaster, state requestStatus, delay time.Duration, responderName string) *Responder {
	if log == nil {
		log = slog.Default()
	}
	if delay <= 0 {
		delay = 2 * time.Second
	}
	if responderName == "" {
		responderName = "Test Support Agent"
	}
	return &Responder{
		logger:        log.With(slog.String("component", "fallback")),
		broadcaster:   broadcaster,
		state:         state,
		delay:         delay,
		responderName: responderName,
		timers:        map[string]*time.Timer{},
	}
}

// Schedule arms a delayed synthetic reply for the request. Scheduling again
// replaces any pending task for the same id.
func (r *Responder) Schedule(requestID, originalMessage string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.timers[requestID]; ok {
		prev.Stop()
	}
	r.timers[requestID] = time.AfterFunc(r.delay, func() {
		r.fire(requestID, originalMessage)
	})
	r.logger.Info("fallback reply scheduled", slog.String("request_id", requestID), slog.Duration("delay", r.delay))
}

// Cancel stops a pending synthetic reply, if any. Called the moment a
// genuine relay occurs for the request.
func (r *Responder) Cancel(requestID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if timer, ok := r.timers[requestID]; ok {
		timer.Stop()
		delete(r.timers, requestID)
		r.logger.Debug("fallback reply cancelled", slog.String("request_id", requestID))
	}
}

func (r *Responder) fire(requestID, originalMessage string) {
	r.mu.Lock()
	delete(r.timers, requestID)
	r.mu.Unlock()

	// Cancel cannot stop a fire already dequeued, so the lifecycle state is
	// the final word: only still-pending requests get the synthetic reply.
	if r.state != nil {
		if req, ok := r.state.Get(requestID); ok && req.Status != request.StatusPending {
			r.logger.Debug("fallback reply stood down", slog.String("request_id", requestID), slog.String("status", string(req.Status)))
			return
		}
	}

	r.broadcaster.Broadcast(requestID, hub.EventSupportResponse, hub.ResponseEvent{
		RequestID:     requestID,
		Message:       fmt.Sprintf("This is a test response to: %s", originalMessage),
		ResponderName: r.responderName,
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	})
	r.logger.Info("fallback reply delivered", slog.String("request_id", requestID))
}
