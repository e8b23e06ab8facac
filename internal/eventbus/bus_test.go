package eventbus

import (
	"testing"
	"time"
)

func TestPublishReachesSubscribers(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(4)
	defer unsub()

	b.Publish(Event{Type: TypeTaskCompleted, Task: "heartbeat"})

	select {
	case e := <-ch:
		if e.Type != TypeTaskCompleted || e.Task != "heartbeat" {
			t.Fatalf("got event %+v", e)
		}
		if e.Time.IsZero() {
			t.Fatal("Publish did not stamp the event time")
		}
	case <-time.After(time.Second):
		t.Fatal("event not delivered")
	}
}

func TestPublishDropsWhenSubscriberFull(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	defer unsub()

	b.Publish(Event{Type: TypeTaskCompleted})
	b.Publish(Event{Type: TypeTaskFailed}) // buffer full, must not block

	if got := b.Dropped(); got != 1 {
		t.Fatalf("Dropped() = %d, want 1", got)
	}
	if e := <-ch; e.Type != TypeTaskCompleted {
		t.Fatalf("kept event = %+v, want the first one", e)
	}
}

func TestUnsubscribeStopsDeliveryAndIsIdempotent(t *testing.T) {
	t.Parallel()

	b := New()
	ch, unsub := b.Subscribe(1)
	unsub()
	unsub()

	// The channel is closed; publishing afterwards must not panic.
	b.Publish(Event{Type: TypeLoopOverrun})

	if _, ok := <-ch; ok {
		t.Fatal("read a value from an unsubscribed channel")
	}
}
