package api

import (
	"sync"

	"github.com/bryanchriswhite/camcorder/internal/camcorder"
	"github.com/bryanchriswhite/camcorder/internal/logger"
)

// Hub fans engine messages out to websocket subscribers. Slow subscribers
// miss messages instead of stalling the engine.
type Hub struct {
	mu     sync.Mutex
	subs   map[chan camcorder.Message]struct{}
	closed bool
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{subs: make(map[chan camcorder.Message]struct{})}
}

// Publish delivers msg to every subscriber; pass it to SetMessageCallback
func (h *Hub) Publish(msg camcorder.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- msg:
		default:
			logger.WithComponent("api").Debug().Str("kind", msg.Kind.String()).Msg("Subscriber too slow, message dropped")
		}
	}
}

// Subscribe returns a channel receiving every later message
func (h *Hub) Subscribe() chan camcorder.Message {
	ch := make(chan camcorder.Message, 64)
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		close(ch)
		return ch
	}
	h.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe drops ch
func (h *Hub) Unsubscribe(ch chan camcorder.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
}

// Close ends every subscription
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for ch := range h.subs {
		close(ch)
	}
	h.subs = make(map[chan camcorder.Message]struct{})
}
