package eventbus

import (
	"context"
	"testing"
	"time"
)

type planEvent struct{ id string }
type failEvent struct{ reason string }

func TestSubscribeToFiltersByType(t *testing.T) {
	b := New()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	plans := SubscribeTo[planEvent](ctx, b)
	b.Publish(failEvent{reason: "ignored"})
	b.Publish(planEvent{id: "p1"})

	select {
	case e := <-plans:
		if e.id != "p1" {
			t.Fatalf("unexpected event %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("no plan event received")
	}
}

func TestSubscribeToClosesOnCancel(t *testing.T) {
	b := New()
	defer b.Close()
	ctx, cancel := context.WithCancel(context.Background())

	plans := SubscribeTo[planEvent](ctx, b)
	cancel()

	select {
	case _, ok := <-plans:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
}

func TestSubscribeToClosesWithBus(t *testing.T) {
	b := New()
	plans := SubscribeTo[planEvent](context.Background(), b)
	b.Close()

	select {
	case _, ok := <-plans:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after bus close")
	}
}
