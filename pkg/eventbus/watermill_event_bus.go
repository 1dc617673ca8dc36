package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/dataindex/pkg/events"
)

type WatermillEventBus struct {
	logger        *slog.Logger
	publisher     message.Publisher
	subscriber    message.Subscriber
	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
	wg            sync.WaitGroup
}

func NewWatermillEventBus(logger *slog.Logger, pub message.Publisher, sub message.Subscriber) *WatermillEventBus {
	return &WatermillEventBus{
		logger:        logger.With("component", "eventbus"),
		publisher:     pub,
		subscriber:    sub,
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.SetContext(ctx)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))

	err = eb.publisher.Publish(events.Topic, msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.GetType(), err)
	}

	return nil
}

// Subscribe starts consuming the topic in the background until ctx is done
// or the subscriber is closed. Messages of types without a handler are acked
// and skipped. Payloads that fail schema validation or decoding can never
// succeed, so they are logged and acked too; only handler errors nack.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	messages, err := eb.subscriber.Subscribe(ctx, events.Topic)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", events.Topic, err)
	}

	eb.wg.Add(1)

	go func() {
		defer eb.wg.Done()

		for msg := range messages {
			eb.dispatch(ctx, msg)
		}
	}()

	return nil
}

func (eb *WatermillEventBus) dispatch(ctx context.Context, msg *message.Message) {
	eventType := events.EventType(msg.Metadata.Get(events.EventTypeMetadataKey))
	logger := eb.logger.With("message_id", msg.UUID, "event_type", eventType)

	eb.mu.RLock()
	handler, exists := eb.subscriptions[eventType]
	eb.mu.RUnlock()

	if !exists {
		msg.Ack()

		return
	}

	var event any

	switch eventType {
	case events.ProcessDefinitionRegisteredEvent:
		event = &events.ProcessDefinitionRegistered{}
	case events.ProcessDefinitionRemovedEvent:
		event = &events.ProcessDefinitionRemoved{}
	default:
		logger.WarnContext(ctx, "Dropping message of unsupported event type")
		msg.Ack()

		return
	}

	err := events.ValidatePayload(eventType, msg.Payload)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping invalid event", "error", err)
		msg.Ack()

		return
	}

	err = json.Unmarshal(msg.Payload, event)
	if err != nil {
		logger.ErrorContext(ctx, "Dropping undecodable event", "error", err)
		msg.Ack()

		return
	}

	err = handler(ctx, event)
	if err != nil {
		logger.ErrorContext(ctx, "Event handler failed", "error", err)
		msg.Nack()

		return
	}

	msg.Ack()
}

func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if _, exists := eb.subscriptions[eventType]; exists {
		return fmt.Errorf("handler for %s already registered", eventType)
	}

	eb.subscriptions[eventType] = handler

	return nil
}

// Close closes the publisher and the subscriber, then waits for the message
// loop to drain.
func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return fmt.Errorf("failed to close publisher: %w", err)
	}

	err = eb.subscriber.Close()
	if err != nil {
		return fmt.Errorf("failed to close subscriber: %w", err)
	}

	eb.wg.Wait()

	return nil
}
