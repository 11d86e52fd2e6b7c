// Package stream fans venue pulse updates out to websocket subscribers.
package stream

import (
	"encoding/json"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

type Update struct {
	VenueID string
	Payload []byte
}

// Hub delivers updates per venue. Publish never blocks: a slow subscriber
// misses updates instead of stalling the refresh job.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[uint64]chan Update
	nextID uint64

	logger  *zap.Logger
	dropped uint64
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		subs:   map[string]map[uint64]chan Update{},
		logger: logger,
	}
}

// Subscribe returns the update channel and a cancel func that closes it.
func (h *Hub) Subscribe(venueID string, buf int) (<-chan Update, func()) {
	if buf <= 0 {
		buf = 8
	}
	ch := make(chan Update, buf)
	h.mu.Lock()
	h.nextID++
	id := h.nextID
	if h.subs[venueID] == nil {
		h.subs[venueID] = map[uint64]chan Update{}
	}
	h.subs[venueID][id] = ch
	h.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			if m, ok := h.subs[venueID]; ok {
				delete(m, id)
				if len(m) == 0 {
					delete(h.subs, venueID)
				}
			}
			close(ch)
		})
	}
}

// Publish encodes v and fans it out to the venue's subscribers.
func (h *Hub) Publish(venueID string, v any) error {
	if h == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.fanout(Update{VenueID: venueID, Payload: b})
	return nil
}

func (h *Hub) fanout(u Update) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs[u.VenueID] {
		select {
		case ch <- u:
		default:
			n := atomic.AddUint64(&h.dropped, 1)
			if h.logger != nil {
				h.logger.Debug("stream: dropped update for slow subscriber",
					zap.String("venue_id", u.VenueID),
					zap.Uint64("dropped_total", n),
				)
			}
		}
	}
}

func (h *Hub) Subscribers(venueID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[venueID])
}

func (h *Hub) Dropped() uint64 { return atomic.LoadUint64(&h.dropped) }
