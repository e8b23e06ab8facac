package journal

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"loopkit/internal/eventbus"
	"loopkit/internal/loop"
	logx "loopkit/pkg/logx"
)

type captureStore struct {
	mu      sync.Mutex
	entries []Entry
	fail    error
}

func (c *captureStore) AppendRun(_ context.Context, e Entry) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return c.fail
	}
	c.entries = append(c.entries, e)
	return nil
}

func (c *captureStore) Close() error { return nil }

func (c *captureStore) snapshot() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

func TestWriterMapsRunEvents(t *testing.T) {
	store := &captureStore{}
	w := NewWriter(store, eventbus.New(), logx.Nop())

	started := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	w.consume(eventbus.Event{
		Type: eventbus.TypeTaskCompleted,
		Task: "heartbeat",
		Data: loop.RunEvent{Task: "heartbeat", Seq: 41, Started: started, Duration: 12 * time.Millisecond},
	})
	w.consume(eventbus.Event{
		Type: eventbus.TypeTaskFailed,
		Task: "backup",
		Data: loop.RunEvent{Task: "backup", Seq: 42, Started: started, Duration: 2 * time.Second, Error: "exit status 1"},
	})

	got := store.snapshot()
	if len(got) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(got))
	}
	if !got[0].OK || got[0].Task != "heartbeat" || got[0].Seq != 41 || got[0].TookMS != 12 {
		t.Fatalf("unexpected completed entry: %+v", got[0])
	}
	if got[1].OK || got[1].Error != "exit status 1" || got[1].TookMS != 2000 {
		t.Fatalf("unexpected failed entry: %+v", got[1])
	}
}

func TestWriterIgnoresUnrelatedEvents(t *testing.T) {
	store := &captureStore{}
	w := NewWriter(store, eventbus.New(), logx.Nop())

	w.consume(eventbus.Event{Type: eventbus.TypeLoopOverrun, Data: loop.RunEvent{Task: "x"}})
	w.consume(eventbus.Event{Type: eventbus.TypeTaskCompleted, Data: "not a run event"})

	if got := store.snapshot(); len(got) != 0 {
		t.Fatalf("expected no entries, got %+v", got)
	}
}

func TestWriterSwallowsStoreErrors(t *testing.T) {
	store := &captureStore{fail: errors.New("disk full")}
	w := NewWriter(store, eventbus.New(), logx.Nop())

	// Must not panic or propagate.
	w.consume(eventbus.Event{
		Type: eventbus.TypeTaskCompleted,
		Data: loop.RunEvent{Task: "heartbeat", Started: time.Now()},
	})
}

func TestWriterDrainsBus(t *testing.T) {
	store := &captureStore{}
	bus := eventbus.New()
	w := NewWriter(store, bus, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Subscription happens inside Run; give it a moment before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for {
		bus.Publish(eventbus.Event{
			Type: eventbus.TypeTaskCompleted,
			Time: time.Now(),
			Task: "heartbeat",
			Data: loop.RunEvent{Task: "heartbeat", Seq: 1, Started: time.Now(), Duration: time.Millisecond},
		})
		if len(store.snapshot()) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("writer never persisted a run")
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("writer did not stop after cancel")
	}
}
