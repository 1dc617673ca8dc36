// Package indexer consumes process definition events and keeps the
// persistence layer in sync with what process runtimes have deployed.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/dataindex/pkg/eventbus"
	"github.com/dukex/dataindex/pkg/events"
	"github.com/dukex/dataindex/pkg/otelhelper"
	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/dukex/dataindex/pkg/session"
	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrInvalidEvent marks events that can never be applied. They are logged
// and dropped instead of being redelivered.
var ErrInvalidEvent = errors.New("invalid event")

type Indexer struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	subscriber  eventbus.EventSubscriber
	tracer      trace.Tracer
	validate    *validator.Validate
}

func New(
	logger *slog.Logger,
	p persistence.Persistence,
	subscriber eventbus.EventSubscriber,
	tracer trace.Tracer,
) *Indexer {
	return &Indexer{
		logger:      logger.With("module", "indexer"),
		persistence: p,
		subscriber:  subscriber,
		tracer:      tracer,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Start registers the event handlers and subscribes. Events are consumed in
// the background until ctx is cancelled or the subscriber is closed.
func (ix *Indexer) Start(ctx context.Context) error {
	err := ix.subscriber.Handle(events.ProcessDefinitionRegisteredEvent, ix.dispatch)
	if err != nil {
		return fmt.Errorf("failed to register handler: %w", err)
	}

	err = ix.subscriber.Handle(events.ProcessDefinitionRemovedEvent, ix.dispatch)
	if err != nil {
		return fmt.Errorf("failed to register handler: %w", err)
	}

	err = ix.subscriber.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	ix.logger.InfoContext(ctx, "Indexer subscribed", "topic", events.Topic)

	return nil
}

func (ix *Indexer) dispatch(ctx context.Context, event any) error {
	var err error

	switch e := event.(type) {
	case *events.ProcessDefinitionRegistered:
		err = ix.HandleRegistered(ctx, e)
	case *events.ProcessDefinitionRemoved:
		err = ix.HandleRemoved(ctx, e)
	default:
		err = fmt.Errorf("%w: unexpected %T", ErrInvalidEvent, event)
	}

	if errors.Is(err, ErrInvalidEvent) || persistence.IsInvalidKey(err) {
		ix.logger.ErrorContext(ctx, "Dropping event", "error", err)

		return nil
	}

	return err
}

// HandleRegistered stores the definition carried by event, replacing the
// stored version with the same key and its nodes.
func (ix *Indexer) HandleRegistered(ctx context.Context, event *events.ProcessDefinitionRegistered) error {
	key := event.Key()

	ctx, span := otelhelper.StartSpan(ctx, ix.tracer, "indexer.register",
		append(otelhelper.ProcessAttributes(key),
			attribute.String(otelhelper.EventIDKey, event.ID),
			attribute.String(otelhelper.EventTypeKey, string(event.GetType())),
		)...)
	defer span.End()

	logger := ix.logger.With("event_id", event.ID, "process", key.String())

	if event.Definition == nil {
		err := fmt.Errorf("%w: missing definition", ErrInvalidEvent)
		otelhelper.SetError(span, err)

		return err
	}

	err := ix.validate.Struct(event.Definition)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrInvalidEvent, err)
		otelhelper.SetError(span, err)

		return err
	}

	span.SetAttributes(attribute.Int(otelhelper.NodeCountKey, len(event.Definition.Nodes)))

	// The session rewires the nodes of what it tracks; keep the event intact.
	definition := event.Definition.Clone()

	s := session.New(ix.logger, ix.persistence)

	err = s.Register(definition)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	err = s.Commit(ctx)
	if err != nil {
		s.Rollback()
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to index process definition", "error", err)

		return fmt.Errorf("failed to index process definition %s: %w", key, err)
	}

	for _, nodeKey := range definition.NodeKeys() {
		span.AddEvent("node_indexed", trace.WithAttributes(otelhelper.NodeAttributes(nodeKey)...))
	}

	logger.InfoContext(ctx, "Indexed process definition", "nodes", len(definition.Nodes))

	return nil
}

// HandleRemoved deletes the definition named by event together with its
// nodes. Removing a definition that was never indexed succeeds.
func (ix *Indexer) HandleRemoved(ctx context.Context, event *events.ProcessDefinitionRemoved) error {
	key := event.Key()

	ctx, span := otelhelper.StartSpan(ctx, ix.tracer, "indexer.remove",
		append(otelhelper.ProcessAttributes(key),
			attribute.String(otelhelper.EventIDKey, event.ID),
			attribute.String(otelhelper.EventTypeKey, string(event.GetType())),
		)...)
	defer span.End()

	logger := ix.logger.With("event_id", event.ID, "process", key.String())

	s := session.New(ix.logger, ix.persistence)

	err := s.Remove(key)
	if err != nil {
		otelhelper.SetError(span, err)

		return err
	}

	err = s.Commit(ctx)
	if err != nil {
		s.Rollback()
		otelhelper.SetError(span, err)
		logger.ErrorContext(ctx, "Failed to remove process definition", "error", err)

		return fmt.Errorf("failed to remove process definition %s: %w", key, err)
	}

	logger.InfoContext(ctx, "Removed process definition")

	return nil
}
