package indexer

import (
	"sync"

	"media-curator/internal/logging"
)

// Hub fans the controller's events out to any number of subscribers.
//
// Progress and Paused events are dropped for a subscriber whose buffer is
// full. Ready and terminal events are always delivered unless the subscriber
// unsubscribes first.
type Hub struct {
	mu     sync.RWMutex
	subs   map[*subscription]struct{}
	closed bool
}

type subscription struct {
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[*subscription]struct{})}
}

// Subscribe registers a subscriber with the given buffer size. The returned
// channel is closed when the hub's source is exhausted or cancel is called.
func (h *Hub) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	sub := &subscription{
		ch:   make(chan Event, buffer),
		done: make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(sub.ch)
		return sub.ch, func() {}
	}
	h.subs[sub] = struct{}{}
	h.mu.Unlock()

	cancel := func() {
		sub.once.Do(func() {
			close(sub.done)
			h.mu.Lock()
			if _, ok := h.subs[sub]; ok {
				delete(h.subs, sub)
				close(sub.ch)
			}
			h.mu.Unlock()
		})
	}
	return sub.ch, cancel
}

// Subscribers returns the number of registered subscribers.
func (h *Hub) Subscribers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Run forwards events until the source channel is closed, then closes every
// subscriber channel.
func (h *Hub) Run(events <-chan Event) {
	for ev := range events {
		h.publish(ev)
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for sub := range h.subs {
		delete(h.subs, sub)
		close(sub.ch)
	}
}

func (h *Hub) publish(ev Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	lossy := false
	switch ev.(type) {
	case Progress, Paused:
		lossy = true
	}

	for sub := range h.subs {
		if lossy {
			select {
			case sub.ch <- ev:
			default:
				logging.Debug("Dropping %s event for slow subscriber", ev.Type())
			}
			continue
		}
		select {
		case sub.ch <- ev:
		case <-sub.done:
		}
	}
}
