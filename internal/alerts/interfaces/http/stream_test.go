package http

import (
	"context"
	"sync"
	"testing"

	alertapp "occupancy-cloud/internal/alerts/application"
)

func TestBrokerDeliversToSubscriber(t *testing.T) {
	broker := NewSSEBroker()
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	broker.Notify(context.Background(), alertapp.AlertEvent{Type: "fired"})

	select {
	case payload := <-ch:
		if len(payload) == 0 {
			t.Fatal("empty payload delivered")
		}
	default:
		t.Fatal("subscriber did not receive the event")
	}
}

func TestBrokerUnsubscribeDuringBroadcast(t *testing.T) {
	// Disconnecting a client while the scanner broadcasts must not panic
	// or race on the client channel.
	broker := NewSSEBroker()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			broker.Notify(context.Background(), alertapp.AlertEvent{Type: "fired"})
		}
	}()

	for i := 0; i < 100; i++ {
		ch := broker.Subscribe()
		broker.Unsubscribe(ch)
	}
	wg.Wait()

	// A removed channel receives nothing from later broadcasts.
	ch := broker.Subscribe()
	broker.Unsubscribe(ch)
	broker.Notify(context.Background(), alertapp.AlertEvent{Type: "cleared"})
	select {
	case <-ch:
		t.Fatal("unsubscribed channel still receives events")
	default:
	}
}
