package subscription

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/deskrelay/deskrelay/internal/request"
)

type recordingGateway struct {
	mu      sync.Mutex
	renewed []string
	err     error
}

func (g *recordingGateway) RenewSubscription(_ context.Context, subscriptionID string, _ time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return g.err
	}
	g.renewed = append(g.renewed, subscriptionID)
	return nil
}

func (g *recordingGateway) seen() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.renewed))
	copy(out, g.renewed)
	return out
}

func TestRenewAllSkipsAbortedAndUnsubscribed(t *testing.T) {
	t.Parallel()

	store := request.NewStore()

	live := store.Create("Ana", "", "Help")
	store.SetSubscriptionID(live, "sub-live")

	aborted := store.Create("Ben", "", "Help")
	store.SetSubscriptionID(aborted, "sub-aborted")
	store.UpdateStatus(aborted, request.StatusAborted)

	store.Create("Cleo", "", "Help") // fallback mode, no subscription

	gateway := &recordingGateway{}
	r := NewRenewer(nil, store, gateway, 50*time.Minute, time.Minute)
	r.renewAll()

	seen := gateway.seen()
	if len(seen) != 1 || seen[0] != "sub-live" {
		t.Fatalf("renewed %v, want only sub-live", seen)
	}
}

func TestRenewAllToleratesGatewayErrors(t *testing.T) {
	t.Parallel()

	store := request.NewStore()
	id := store.Create("Ana", "", "Help")
	store.SetSubscriptionID(id, "sub-1")

	gateway := &recordingGateway{err: errors.New("boom")}
	r := NewRenewer(nil, store, gateway, 50*time.Minute, time.Minute)
	// Must not panic or abort the pass.
	r.renewAll()
}
