// Package hub fans structured events out to every subscriber of a named
// channel. Subscribers that stop draining are dropped rather than allowed to
// stall a publish.
package hub

import (
	"sync"

	"mozo-cocina/internal/domain"
	"mozo-cocina/internal/logger"
)

const subscriberBuffer = 16

type Hub struct {
	mu    sync.Mutex
	rooms map[string]map[*Subscription]struct{}
	lg    *logger.Logger
}

// Subscription is one live receiver on one channel. Events arrive on a
// buffered FIFO channel, so a single subscriber sees publishes in order.
type Subscription struct {
	channel string
	events  chan domain.Event
	closed  bool
}

// Events is closed when the subscription is removed from the hub.
func (s *Subscription) Events() <-chan domain.Event { return s.events }

// Channel returns the channel name the subscription was opened on.
func (s *Subscription) Channel() string { return s.channel }

func New(lg *logger.Logger) *Hub {
	return &Hub{rooms: make(map[string]map[*Subscription]struct{}), lg: lg}
}

// Subscribe registers a new receiver under channel, creating the channel
// lazily on first use.
func (h *Hub) Subscribe(channel string) *Subscription {
	sub := &Subscription{channel: channel, events: make(chan domain.Event, subscriberBuffer)}
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[channel]
	if !ok {
		room = make(map[*Subscription]struct{})
		h.rooms[channel] = room
	}
	room[sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its event channel. Safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.remove(sub)
}

// Publish delivers ev to every current subscriber of channel. Each delivery
// is attempted independently: a subscriber whose buffer is full (broken or
// stalled consumer) is dropped, the rest still receive the event, and the
// caller never sees an error.
func (h *Hub) Publish(channel string, ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for sub := range h.rooms[channel] {
		select {
		case sub.events <- ev:
		default:
			h.lg.Warn("subscriber_dropped", nil, map[string]any{
				"channel": channel, "event_type": string(ev.Type),
			})
			h.remove(sub)
		}
	}
}

// Subscribers reports the current size of a channel's subscriber set.
func (h *Hub) Subscribers(channel string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[channel])
}

// remove must be called with h.mu held.
func (h *Hub) remove(sub *Subscription) {
	room, ok := h.rooms[sub.channel]
	if !ok {
		return
	}
	if _, ok := room[sub]; !ok {
		return
	}
	delete(room, sub)
	if !sub.closed {
		sub.closed = true
		close(sub.events)
	}
	if len(room) == 0 {
		delete(h.rooms, sub.channel)
	}
}
