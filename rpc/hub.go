package rpc

import (
	"sync"

	"margincore/core/events"
	"margincore/core/types"
)

const backlogLimit = 256

// Hub fans settlement events out to websocket subscribers. It implements
// events.Emitter so it can sit directly behind the engine, and keeps a
// bounded backlog so a new subscriber sees recent history.
type Hub struct {
	mu      sync.Mutex
	backlog []*types.Event
	subs    map[chan *types.Event]struct{}
}

func NewHub() *Hub {
	return &Hub{subs: make(map[chan *types.Event]struct{})}
}

type eventCarrier interface {
	Event() *types.Event
}

func (h *Hub) Emit(evt events.Event) {
	carrier, ok := evt.(eventCarrier)
	if !ok || carrier.Event() == nil {
		return
	}
	payload := carrier.Event()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.backlog = append(h.backlog, payload)
	if len(h.backlog) > backlogLimit {
		h.backlog = h.backlog[len(h.backlog)-backlogLimit:]
	}
	for sub := range h.subs {
		select {
		case sub <- payload:
		default:
			// Slow subscriber: drop rather than block settlement.
		}
	}
}

// Subscribe returns the backlog plus a channel of future events and a cancel
// func that must be called when the subscriber goes away.
func (h *Hub) Subscribe() ([]*types.Event, <-chan *types.Event, func()) {
	ch := make(chan *types.Event, 64)
	h.mu.Lock()
	backlog := make([]*types.Event, len(h.backlog))
	copy(backlog, h.backlog)
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	cancel := func() {
		h.mu.Lock()
		delete(h.subs, ch)
		h.mu.Unlock()
	}
	return backlog, ch, cancel
}
