package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a lifecycle event of the resolver.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// PassID is the associated pass, if applicable.
	PassID string `json:"pass_id,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// Event types.
const (
	EventTypePassStarted     = "pass.started"
	EventTypePassCompleted   = "pass.completed"
	EventTypePassFailed      = "pass.failed"
	EventTypePassDiscarded   = "pass.discarded"
	EventTypeConfigRecovered = "config.recovered"
	EventTypeRestartRequired = "config.restart_required"
)

// Event levels.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be delivered.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	ctx, cancel := context.WithCancel(context.Background())
	ep := &EventPublisher{
		config: cfg,
		ctx:    ctx,
		cancel: cancel,
	}
	if cfg.Enabled && cfg.EnableAsync {
		ep.buffer = make(chan Event, cfg.BufferSize)
		ep.wg.Add(1)
		go ep.processEvents()
	}
	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if ep.buffer != nil {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	ep.deliverEvent(event)
	return nil
}

// PublishPassStarted publishes a pass started event.
func (ep *EventPublisher) PublishPassStarted(passID string) error {
	return ep.Publish(Event{
		Type:    EventTypePassStarted,
		PassID:  passID,
		Message: fmt.Sprintf("Pass %s started", passID),
		Level:   EventLevelInfo,
	})
}

// PublishPassCompleted publishes a pass completed event.
func (ep *EventPublisher) PublishPassCompleted(passID string, pages, warnings int, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypePassCompleted,
		PassID:  passID,
		Message: fmt.Sprintf("Pass %s resolved %d pages", passID, pages),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"pages":    pages,
			"warnings": warnings,
			"duration": duration.Seconds(),
		},
	})
}

// PublishPassFailed publishes a pass failed event.
func (ep *EventPublisher) PublishPassFailed(passID, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePassFailed,
		PassID:  passID,
		Message: fmt.Sprintf("Pass %s failed: %s", passID, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishPassDiscarded publishes an event for a superseded pass.
func (ep *EventPublisher) PublishPassDiscarded(passID string) error {
	return ep.Publish(Event{
		Type:    EventTypePassDiscarded,
		PassID:  passID,
		Message: fmt.Sprintf("Pass %s superseded by a newer pass", passID),
		Level:   EventLevelInfo,
	})
}

// PublishConfigRecovered publishes the recovery notification.
func (ep *EventPublisher) PublishConfigRecovered(passID string) error {
	return ep.Publish(Event{
		Type:    EventTypeConfigRecovered,
		PassID:  passID,
		Message: "configuration is valid again",
		Level:   EventLevelInfo,
	})
}

// PublishRestartRequired publishes the restart notification.
func (ep *EventPublisher) PublishRestartRequired(passID string) error {
	return ep.Publish(Event{
		Type:    EventTypeRestartRequired,
		PassID:  passID,
		Message: "configuration was invalid while not tolerated, restart required",
		Level:   EventLevelWarning,
	})
}

// Subscribe adds a new event subscriber. A nil filter accepts every event.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()
	for {
		select {
		case event := <-ep.buffer:
			ep.deliverEvent(event)
		case <-ep.ctx.Done():
			for {
				select {
				case event := <-ep.buffer:
					ep.deliverEvent(event)
				default:
					return
				}
			}
		}
	}
}

// deliverEvent calls subscribers synchronously in subscription order.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	defer ep.mu.RUnlock()

	for _, entry := range ep.subscribers {
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown drains pending events and stops the publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	ep.cancel()

	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}

// FilterByPassID creates a filter that only allows events of one pass.
func FilterByPassID(passID string) EventFilter {
	return func(event Event) bool {
		return event.PassID == passID
	}
}
