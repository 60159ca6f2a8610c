package stream

import (
	"testing"
	"time"

	"github.com/rouletteengine/core/internal/round"
)

func TestNewHub(t *testing.T) {
	h := NewHub(8)
	if h == nil {
		t.Fatal("NewHub() returned nil")
	}
	if h.Count() != 0 {
		t.Errorf("Count() = %d, want 0", h.Count())
	}
}

func TestHub_SubscribeAndPublish(t *testing.T) {
	h := NewHub(8)
	sub := h.Subscribe()
	defer h.Unsubscribe(sub)

	if h.Count() != 1 {
		t.Fatalf("Count() = %d, want 1", h.Count())
	}

	h.Publish(round.Event{Type: round.EventRoundStarted})

	select {
	case ev := <-sub.Events():
		if ev.Type != round.EventRoundStarted {
			t.Errorf("event type = %v, want %v", ev.Type, round.EventRoundStarted)
		}
	case <-time.After(time.Second):
		t.Fatal("did not receive published event")
	}
}

func TestHub_Unsubscribe(t *testing.T) {
	h := NewHub(8)
	sub := h.Subscribe()
	h.Unsubscribe(sub)

	if h.Count() != 0 {
		t.Errorf("Count() after Unsubscribe = %d, want 0", h.Count())
	}

	select {
	case <-sub.Done():
	default:
		t.Error("Done() should be closed after Unsubscribe")
	}
}

func TestHub_OverflowDisconnects(t *testing.T) {
	h := NewHub(1)
	sub := h.Subscribe()

	// Fill the queue, then overflow it.
	h.Publish(round.Event{Type: round.EventPhaseChanged})
	h.Publish(round.Event{Type: round.EventPhaseChanged})

	select {
	case <-sub.Done():
	case <-time.After(time.Second):
		t.Fatal("overflowed subscriber was not disconnected")
	}

	if h.Count() != 0 {
		t.Errorf("Count() after overflow = %d, want 0", h.Count())
	}
}

func TestHub_PublishFansOutToAllSubscribers(t *testing.T) {
	h := NewHub(8)
	a := h.Subscribe()
	b := h.Subscribe()
	defer h.Unsubscribe(a)
	defer h.Unsubscribe(b)

	h.Publish(round.Event{Type: round.EventRoundEnded})

	for _, sub := range []*Subscriber{a, b} {
		select {
		case ev := <-sub.Events():
			if ev.Type != round.EventRoundEnded {
				t.Errorf("event type = %v, want %v", ev.Type, round.EventRoundEnded)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the fanned-out event")
		}
	}
}
