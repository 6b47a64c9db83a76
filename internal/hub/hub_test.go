package hub

import (
	"sync"
	"testing"

	"github.com/deskrelay/deskrelay/internal/request"
)

type fakeSubscriber struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	event   string
	payload any
}

func (f *fakeSubscriber) Send(event string, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, recordedEvent{event: event, payload: payload})
}

func (f *fakeSubscriber) recorded() []recordedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]recordedEvent, len(f.events))
	copy(out, f.events)
	return out
}

func TestBroadcastReachesAllSubscribers(t *testing.T) {
	t.Parallel()

	store := request.NewStore()
	id := store.Create("Ana", "", "Help")
	h := NewHub(nil, store)

	a, b := &fakeSubscriber{}, &fakeSubscriber{}
	h.Register(a, id)
	h.Register(b, id)

	h.Broadcast(id, EventSupportResponse, ResponseEvent{RequestID: id, Message: "hello"})

	for _, sub := range []*fakeSubscriber{a, b} {
		events := sub.recorded()
		if len(events) != 1 || events[0].event != EventSupportResponse {
			t.Fatalf("unexpected events: %+v", events)
		}
	}
}

func TestBroadcastWithNoSubscribersIsDropped(t *testing.T) {
	t.Parallel()

	store := request.NewStore()
	id := store.Create("Ana", "", "Help")
	h := NewHub(nil, store)

	// Must not panic or queue anything.
	h.Broadcast(id, EventSupportResponse, ResponseEvent{RequestID: id})

	late := &fakeSubscriber{}
	h.Register(late, id)
	if events := late.recorded(); len(events) != 0 {
		t.Fatalf("late subscriber must not receive dropped events, got %+v", events)
	}
}

func TestRegisterOnRespondedRequestDeliversNoticeToThatConnectionOnly(t *testing.T) {
	t.Parallel()

	store := request.NewStore()
	id := store.Create("Ana", "", "Help")
	store.UpdateStatus(id, request.StatusResponded)
	h := NewHub(nil, store)

	early := &fakeSubscriber{}
	h.Register(early, id)
	earlyBefore := len(early.recorded())

	late := &fakeSubscriber{}
	h.Register(late, id)

	events := late.recorded()
	if len(events) != 1 {
		t.Fatalf("expected exactly one notice, got %d", len(events))
	}
	notice, ok := events[0].payload.(ResponseEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", events[0].payload)
	}
	if notice.ResponderName != "System" {
		t.Fatalf("notice responder = %q, want System", notice.ResponderName)
	}
	if len(early.recorded()) != earlyBefore {
		t.Fatalf("notice leaked to other subscribers")
	}
}

func TestUnregisterAbortsAndAcknowledges(t *testing.T) {
	t.Parallel()

	store := request.NewStore()
	id := store.Create("Ana", "", "Help")
	h := NewHub(nil, store)

	sub := &fakeSubscriber{}
	h.Register(sub, id)
	h.Unregister(sub, id)

	events := sub.recorded()
	if len(events) != 1 || events[0].event != EventUnregisterSuccess {
		t.Fatalf("unexpected events: %+v", events)
	}
	req, _ := store.Get(id)
	if req.Status != request.StatusAborted {
		t.Fatalf("status = %q, want aborted", req.Status)
	}

	h.Broadcast(id, EventSupportResponse, ResponseEvent{RequestID: id})
	if len(sub.recorded()) != 1 {
		t.Fatalf("unregistered subscriber still receives broadcasts")
	}
}

func TestRelayEchoSkipsSender(t *testing.T) {
	t.Parallel()

	store := request.NewStore()
	id := store.Create("Ana", "", "Help")
	h := NewHub(nil, store)

	sender, other := &fakeSubscriber{}, &fakeSubscriber{}
	h.Register(sender, id)
	h.Register(other, id)

	h.RelayEcho(sender, id, map[string]string{"requestId": id, "message": "hi"})

	if len(sender.recorded()) != 0 {
		t.Fatalf("echo must not return to the sender")
	}
	events := other.recorded()
	if len(events) != 1 || events[0].event != EventUserMessageEcho {
		t.Fatalf("unexpected events: %+v", events)
	}
}

func TestDropRemovesFromAllRoomsWithoutAborting(t *testing.T) {
	t.Parallel()

	store := request.NewStore()
	id := store.Create("Ana", "", "Help")
	h := NewHub(nil, store)

	sub := &fakeSubscriber{}
	h.Register(sub, id)
	h.Drop(sub)

	h.Broadcast(id, EventSupportResponse, ResponseEvent{RequestID: id})
	if len(sub.recorded()) != 0 {
		t.Fatalf("dropped subscriber still receives broadcasts")
	}
	req, _ := store.Get(id)
	if req.Status != request.StatusPending {
		t.Fatalf("drop must not change status, got %q", req.Status)
	}
}
