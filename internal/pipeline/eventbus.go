package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/isaomisk/HoroloGen/pkg/logging"
)

// EventHandler consumes one generation event.
type EventHandler func(ctx context.Context, event *GenerationEvent) error

// Subscription ties a handler to a set of event types.
type Subscription struct {
	ID         string
	EventTypes []EventType
	Handler    EventHandler
}

// EventBusStats tracks delivery counters for monitoring.
type EventBusStats struct {
	EventsPublished   int64 `json:"events_published"`
	EventsDelivered   int64 `json:"events_delivered"`
	EventsFailed      int64 `json:"events_failed"`
	ActiveSubscribers int64 `json:"active_subscribers"`
	EventsInBuffer    int64 `json:"events_in_buffer"`
}

// EventBus fans generation lifecycle events out to subscribers. It is
// fire-and-forget from the pipeline's point of view: a full buffer
// drops the event rather than blocking a generation in flight.
type EventBus struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	eventBuffer   chan *GenerationEvent
	ctx           context.Context
	cancel        context.CancelFunc
	wg            sync.WaitGroup
	logger        zerolog.Logger

	statsMu sync.Mutex
	stats   EventBusStats
}

// NewEventBus starts the bus with the given buffer and worker count.
func NewEventBus(bufferSize, workers int) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())
	eb := &EventBus{
		subscriptions: make(map[string]*Subscription),
		eventBuffer:   make(chan *GenerationEvent, bufferSize),
		ctx:           ctx,
		cancel:        cancel,
		logger:        logging.GetLogger("events"),
	}

	for i := 0; i < workers; i++ {
		eb.wg.Add(1)
		go eb.worker()
	}

	eb.logger.Debug().
		Int("buffer_size", bufferSize).
		Int("workers", workers).
		Msg("event bus started")
	return eb
}

// Publish queues an event for delivery. A full buffer is an error the
// caller may ignore; generation never waits on observers.
func (eb *EventBus) Publish(event *GenerationEvent) error {
	select {
	case eb.eventBuffer <- event:
		eb.statsMu.Lock()
		eb.stats.EventsPublished++
		eb.statsMu.Unlock()
		return nil
	case <-eb.ctx.Done():
		return fmt.Errorf("event bus is shutting down")
	default:
		eb.logger.Warn().
			Str("event_id", event.ID).
			Str("event_type", string(event.Type)).
			Msg("event dropped, buffer full")
		return fmt.Errorf("event buffer is full")
	}
}

// Subscribe registers a handler for the given event types.
func (eb *EventBus) Subscribe(eventTypes []EventType, handler EventHandler) *Subscription {
	sub := &Subscription{
		ID:         "sub_" + uuid.New().String(),
		EventTypes: eventTypes,
		Handler:    handler,
	}

	eb.mu.Lock()
	eb.subscriptions[sub.ID] = sub
	eb.mu.Unlock()

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers++
	eb.statsMu.Unlock()
	return sub
}

// Unsubscribe removes a subscription.
func (eb *EventBus) Unsubscribe(subscriptionID string) error {
	eb.mu.Lock()
	_, exists := eb.subscriptions[subscriptionID]
	if exists {
		delete(eb.subscriptions, subscriptionID)
	}
	eb.mu.Unlock()

	if !exists {
		return fmt.Errorf("subscription not found: %s", subscriptionID)
	}

	eb.statsMu.Lock()
	eb.stats.ActiveSubscribers--
	eb.statsMu.Unlock()
	return nil
}

// Close drains the workers and stops delivery.
func (eb *EventBus) Close() {
	eb.cancel()
	eb.wg.Wait()
}

// GetStats returns a snapshot of the delivery counters.
func (eb *EventBus) GetStats() EventBusStats {
	eb.statsMu.Lock()
	defer eb.statsMu.Unlock()
	stats := eb.stats
	stats.EventsInBuffer = int64(len(eb.eventBuffer))
	return stats
}

func (eb *EventBus) worker() {
	defer eb.wg.Done()
	for {
		select {
		case event := <-eb.eventBuffer:
			eb.deliver(event)
		case <-eb.ctx.Done():
			return
		}
	}
}

func (eb *EventBus) deliver(event *GenerationEvent) {
	eb.mu.RLock()
	var matching []*Subscription
	for _, sub := range eb.subscriptions {
		if matchesTypes(event.Type, sub.EventTypes) {
			matching = append(matching, sub)
		}
	}
	eb.mu.RUnlock()

	for _, sub := range matching {
		ctx, cancel := context.WithTimeout(eb.ctx, 5*time.Second)
		err := sub.Handler(ctx, event)
		cancel()

		eb.statsMu.Lock()
		if err != nil {
			eb.stats.EventsFailed++
		} else {
			eb.stats.EventsDelivered++
		}
		eb.statsMu.Unlock()

		if err != nil {
			eb.logger.Error().
				Err(err).
				Str("subscription_id", sub.ID).
				Str("event_id", event.ID).
				Msg("event handler failed")
		}
	}
}

func matchesTypes(t EventType, types []EventType) bool {
	for _, et := range types {
		if et == t {
			return true
		}
	}
	return false
}
