package hub_test

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/hub"
	"mozo-cocina/internal/logger"
)

func newHub() *hub.Hub {
	return hub.New(logger.New("hub-test"))
}

func recv(t *testing.T, sub *hub.Subscription) domain.Event {
	t.Helper()
	select {
	case ev, ok := <-sub.Events():
		require.True(t, ok, "subscription closed unexpectedly")
		return ev
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return domain.Event{}
	}
}

func TestPublishReachesEverySubscriber(t *testing.T) {
	h := newHub()
	a := h.Subscribe("kitchen")
	b := h.Subscribe("kitchen")

	h.Publish("kitchen", domain.Event{Type: domain.EventNewOrder, OrderID: 7})

	for _, sub := range []*hub.Subscription{a, b} {
		ev := recv(t, sub)
		assert.Equal(t, domain.EventNewOrder, ev.Type)
		assert.Equal(t, int64(7), ev.OrderID)
	}
}

func TestPublishToEmptyChannelIsNoop(t *testing.T) {
	h := newHub()
	h.Publish("kitchen", domain.Event{Type: domain.EventNewOrder})
	assert.Equal(t, 0, h.Subscribers("kitchen"))
}

func TestChannelsAreIsolated(t *testing.T) {
	h := newHub()
	kitchen := h.Subscribe("kitchen")
	bar := h.Subscribe("bar")

	h.Publish("kitchen", domain.Event{Type: domain.EventNewOrder, OrderID: 1})

	recv(t, kitchen)
	select {
	case ev := <-bar.Events():
		t.Fatalf("bar received kitchen event %v", ev)
	default:
	}
}

func TestSubscriberSeesEventsInPublishOrder(t *testing.T) {
	h := newHub()
	sub := h.Subscribe("kitchen")

	for i := int64(1); i <= 10; i++ {
		h.Publish("kitchen", domain.Event{Type: domain.EventOrderUpdated, OrderID: i})
	}
	for i := int64(1); i <= 10; i++ {
		assert.Equal(t, i, recv(t, sub).OrderID)
	}
}

func TestStalledSubscriberIsDropped(t *testing.T) {
	h := newHub()
	live := h.Subscribe("kitchen")
	stalled := h.Subscribe("kitchen")
	require.Equal(t, 2, h.Subscribers("kitchen"))

	// Fill the stalled subscriber's buffer while the live one keeps draining.
	for i := 0; i < 16; i++ {
		h.Publish("kitchen", domain.Event{Type: domain.EventNewOrder, OrderID: int64(i)})
		recv(t, live)
	}
	require.Equal(t, 2, h.Subscribers("kitchen"))

	// One more publish overflows the stalled buffer: it gets dropped and its
	// channel closed, the live subscriber still receives the event.
	h.Publish("kitchen", domain.Event{Type: domain.EventNewOrder, OrderID: 99})
	assert.Equal(t, int64(99), recv(t, live).OrderID)
	assert.Equal(t, 1, h.Subscribers("kitchen"))

	// Drain the buffered backlog, then observe the close.
	for i := 0; i < 16; i++ {
		<-stalled.Events()
	}
	_, ok := <-stalled.Events()
	assert.False(t, ok, "dropped subscription's channel must be closed")
}

func TestUnsubscribeClosesAndIsIdempotent(t *testing.T) {
	h := newHub()
	sub := h.Subscribe("kitchen")

	h.Unsubscribe(sub)
	_, ok := <-sub.Events()
	assert.False(t, ok)
	assert.Equal(t, 0, h.Subscribers("kitchen"))

	// A second call must not panic on the already-closed channel.
	h.Unsubscribe(sub)
}

func TestPublishAfterUnsubscribeDropsEvent(t *testing.T) {
	h := newHub()
	sub := h.Subscribe("kitchen")
	h.Unsubscribe(sub)

	h.Publish("kitchen", domain.Event{Type: domain.EventNewOrder, OrderID: 1})
	_, ok := <-sub.Events()
	assert.False(t, ok)
}

func TestConcurrentPublishSubscribe(t *testing.T) {
	h := newHub()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		channel := fmt.Sprintf("room-%d", i%2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := h.Subscribe(channel)
			for j := 0; j < 5; j++ {
				select {
				case _, ok := <-sub.Events():
					if !ok {
						return
					}
				case <-time.After(50 * time.Millisecond):
				}
			}
			h.Unsubscribe(sub)
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.Publish(channel, domain.Event{Type: domain.EventOrderUpdated, OrderID: int64(j)})
			}
		}()
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("hub deadlocked under concurrent use")
	}
}
