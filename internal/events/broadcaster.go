// Package events fans analysis events out to live subscribers.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies an event
type EventType string

const (
	Connected    EventType = "CONNECTED"
	Heartbeat    EventType = "HEARTBEAT"
	RunCompleted EventType = "RUN_COMPLETED"
	RunFailed    EventType = "RUN_FAILED"
)

// subscriberBuffer is the per-subscriber backlog; events beyond it are dropped
const subscriberBuffer = 32

// Event is one message on the stream
type Event struct {
	Type        EventType              `json:"type"`
	PortfolioID string                 `json:"portfolio_id,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
	Data        map[string]interface{} `json:"data,omitempty"`
}

// Broadcaster manages subscriptions and publishes events to them
type Broadcaster struct {
	subscribers map[chan Event]string // channel -> portfolio filter
	mu          sync.RWMutex
	log         zerolog.Logger
}

// NewBroadcaster creates a new broadcaster
func NewBroadcaster(log zerolog.Logger) *Broadcaster {
	return &Broadcaster{
		subscribers: make(map[chan Event]string),
		log:         log.With().Str("component", "event_broadcaster").Logger(),
	}
}

// Subscribe adds a subscriber. An empty portfolioID receives every event.
func (b *Broadcaster) Subscribe(portfolioID string) chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, subscriberBuffer)
	b.subscribers[ch] = portfolioID

	b.log.Debug().
		Str("portfolio_id", portfolioID).
		Int("total_subscribers", len(b.subscribers)).
		Msg("Subscriber added")
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subscribers[ch]; !ok {
		return
	}
	delete(b.subscribers, ch)
	close(ch)

	b.log.Debug().Int("total_subscribers", len(b.subscribers)).Msg("Subscriber removed")
}

// SubscriberCount returns the number of live subscribers
func (b *Broadcaster) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

// Publish sends an event to every matching subscriber without blocking.
// A subscriber whose buffer is full misses the event.
func (b *Broadcaster) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch, filter := range b.subscribers {
		if filter != "" && event.PortfolioID != "" && filter != event.PortfolioID {
			continue
		}
		select {
		case ch <- event:
		default:
			b.log.Warn().
				Str("event_type", string(event.Type)).
				Str("portfolio_id", filter).
				Msg("Subscriber channel full, event dropped")
		}
	}
}
