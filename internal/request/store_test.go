package request

import (
	"sync"
	"testing"
)

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := store.Create("Ana", "ana@example.com", "Help")
	if id == "" {
		t.Fatalf("expected non-empty id")
	}

	req, ok := store.Get(id)
	if !ok {
		t.Fatalf("record not found")
	}
	if req.Status != StatusPending {
		t.Fatalf("new record status = %q, want pending", req.Status)
	}
	if req.UserName != "Ana" || req.OriginalMessage != "Help" {
		t.Fatalf("unexpected record: %+v", req)
	}
	if req.CreatedAt.IsZero() {
		t.Fatalf("created at not set")
	}
}

func TestGetUnknown(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if _, ok := store.Get("missing"); ok {
		t.Fatalf("expected not-found")
	}
}

func TestGetReturnsSnapshot(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := store.Create("Ana", "", "Help")
	store.MarkProcessed(id, "m1")

	req, _ := store.Get(id)
	req.ProcessedMessageIDs["m2"] = struct{}{}

	again, _ := store.Get(id)
	if again.Processed("m2") {
		t.Fatalf("mutating a snapshot leaked into the store")
	}
}

func TestSetInitialMessageIDIsOneShot(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := store.Create("Ana", "", "Help")
	store.SetInitialMessageID(id, "first")
	store.SetInitialMessageID(id, "second")

	req, _ := store.Get(id)
	if req.InitialMessageID != "first" {
		t.Fatalf("initial message id = %q, want first", req.InitialMessageID)
	}
}

func TestMarkProcessedReturnsTrueExactlyOnce(t *testing.T) {
	t.Parallel()

	store := NewStore()
	id := store.Create("Ana", "", "Help")

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- store.MarkProcessed(id, "msg-1")
		}()
	}
	wg.Wait()
	close(results)

	var fresh int
	for r := range results {
		if r {
			fresh++
		}
	}
	if fresh != 1 {
		t.Fatalf("MarkProcessed returned true %d times, want exactly 1", fresh)
	}
}

func TestStatusTransitions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		from Status
		to   Status
		want bool
	}{
		{"pending to responded", StatusPending, StatusResponded, true},
		{"pending to aborted", StatusPending, StatusAborted, true},
		{"responded to aborted", StatusResponded, StatusAborted, true},
		{"responded to pending", StatusResponded, StatusPending, false},
		{"aborted to responded", StatusAborted, StatusResponded, false},
		{"aborted to pending", StatusAborted, StatusPending, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			store := NewStore()
			id := store.Create("Ana", "", "Help")
			// Walk the record into the starting state.
			switch tc.from {
			case StatusResponded:
				store.UpdateStatus(id, StatusResponded)
			case StatusAborted:
				store.UpdateStatus(id, StatusAborted)
			}
			got := store.UpdateStatus(id, tc.to)
			if got != tc.want {
				t.Fatalf("UpdateStatus(%s -> %s) = %v, want %v", tc.from, tc.to, got, tc.want)
			}
			req, _ := store.Get(id)
			if tc.want && req.Status != tc.to {
				t.Fatalf("status = %q, want %q", req.Status, tc.to)
			}
			if !tc.want && req.Status != tc.from {
				t.Fatalf("status = %q, want unchanged %q", req.Status, tc.from)
			}
		})
	}
}

func TestUpdateStatusUnknownID(t *testing.T) {
	t.Parallel()

	store := NewStore()
	if store.UpdateStatus("missing", StatusResponded) {
		t.Fatalf("expected false for unknown id")
	}
}

func TestConcurrentMutationOfDistinctRecords(t *testing.T) {
	t.Parallel()

	store := NewStore()
	ids := make([]string, 8)
	for i := range ids {
		ids[i] = store.Create("user", "", "msg")
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				store.MarkProcessed(id, "m")
				store.Get(id)
			}
			store.UpdateStatus(id, StatusResponded)
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		req, _ := store.Get(id)
		if req.Status != StatusResponded {
			t.Fatalf("record %s status = %q, want responded", id, req.Status)
		}
		if !req.Processed("m") {
			t.Fatalf("record %s missing processed id", id)
		}
	}
}
