package events

import (
	"sync"
	"time"

	"github.com/kode4food/caravan"
	"github.com/kode4food/caravan/message"
	"github.com/kode4food/caravan/topic"

	"github.com/kimalale/tactical-workflow-manager/pkg/api"
)

type (
	// Hub fans live engine events out to any number of consumers, such as
	// WebSocket clients. Publishing never waits on a slow consumer's reads
	Hub struct {
		topic topic.Topic[*api.Event]
		prod  topic.Producer[*api.Event]
		now   func() time.Time
		mu    sync.RWMutex
		done  bool
	}

	// Consumer receives events published after it was created
	Consumer = topic.Consumer[*api.Event]

	// Filter selects events for a consumer
	Filter func(*api.Event) bool
)

// NewHub creates an event hub backed by a caravan topic
func NewHub() *Hub {
	t := caravan.NewTopic[*api.Event]()
	return &Hub{
		topic: t,
		prod:  t.NewProducer(),
		now:   time.Now,
	}
}

// Publish stamps and sends an event. Events published after Close are
// dropped
func (h *Hub) Publish(ev *api.Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.done {
		return
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = h.now()
	}
	message.Send(h.prod, ev)
}

// NewConsumer creates a consumer of subsequently published events
func (h *Hub) NewConsumer() Consumer {
	return h.topic.NewConsumer()
}

// Close stops accepting events
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return
	}
	h.done = true
	h.prod.Close()
}

// MatchAll returns a filter accepting every event
func MatchAll() Filter {
	return func(*api.Event) bool { return true }
}

// Subscription builds the filter a WebSocket client asked for. Empty
// fields match every event
func Subscription(sub *api.ClientSubscription) Filter {
	if sub == nil {
		return MatchAll()
	}
	types := map[api.EventType]bool{}
	for _, t := range sub.EventTypes {
		types[t] = true
	}
	return func(ev *api.Event) bool {
		if len(types) > 0 && !types[ev.Type] {
			return false
		}
		return sub.RunID == "" || sub.RunID == ev.RunID
	}
}
