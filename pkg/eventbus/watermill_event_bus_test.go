package eventbus_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/dataindex/pkg/channels/gochannel"
	"github.com/dukex/dataindex/pkg/eventbus"
	"github.com/dukex/dataindex/pkg/events"
	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus(t *testing.T) (*eventbus.WatermillEventBus, message.Publisher) {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(slog.New(slog.DiscardHandler), pub, sub)

	t.Cleanup(func() {
		assert.NoError(t, bus.Close())
	})

	return bus, pub
}

func TestWatermillEventBus_PublishAndHandle(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(t)
	ctx := t.Context()

	var (
		registered *events.ProcessDefinitionRegistered
		removed    *events.ProcessDefinitionRemoved
	)

	require.NoError(t, bus.Handle(events.ProcessDefinitionRegisteredEvent, func(_ context.Context, event any) error {
		registered = event.(*events.ProcessDefinitionRegistered)

		return nil
	}))
	require.NoError(t, bus.Handle(events.ProcessDefinitionRemovedEvent, func(_ context.Context, event any) error {
		removed = event.(*events.ProcessDefinitionRemoved)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	definition := testutil.CreateTestProcessDefinition()

	err := bus.Publish(ctx, events.MessageKey(definition.Key()), events.NewProcessDefinitionRegistered("test", definition))
	require.NoError(t, err)

	require.NotNil(t, registered)
	assert.True(t, registered.Key().Equal(definition.Key()))
	assert.Equal(t, definition.NodeKeys(), registered.Definition.NodeKeys())

	err = bus.Publish(ctx, events.MessageKey(definition.Key()), events.NewProcessDefinitionRemoved("test", definition.Key()))
	require.NoError(t, err)

	require.NotNil(t, removed)
	assert.True(t, removed.Key().Equal(definition.Key()))
}

func TestWatermillEventBus_HandleTwice(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(t)
	noop := func(context.Context, any) error { return nil }

	require.NoError(t, bus.Handle(events.ProcessDefinitionRemovedEvent, noop))
	assert.Error(t, bus.Handle(events.ProcessDefinitionRemovedEvent, noop))
}

func TestWatermillEventBus_HandlerErrorRedelivers(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(t)
	ctx := t.Context()

	var attempts atomic.Int32

	require.NoError(t, bus.Handle(events.ProcessDefinitionRemovedEvent, func(context.Context, any) error {
		if attempts.Add(1) == 1 {
			return errors.New("storage unavailable")
		}

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	key := models.NewProcessDefinitionKey("travels", "1.0")
	require.NoError(t, bus.Publish(ctx, events.MessageKey(key), events.NewProcessDefinitionRemoved("test", key)))

	assert.Equal(t, int32(2), attempts.Load())
}

func TestWatermillEventBus_DropsInvalidPayloads(t *testing.T) {
	t.Parallel()

	bus, pub := newTestBus(t)
	ctx := t.Context()

	var calls atomic.Int32

	require.NoError(t, bus.Handle(events.ProcessDefinitionRemovedEvent, func(context.Context, any) error {
		calls.Add(1)

		return nil
	}))
	require.NoError(t, bus.Handle(events.ProcessDefinitionRegisteredEvent, func(context.Context, any) error {
		calls.Add(1)

		return nil
	}))
	require.NoError(t, bus.Subscribe(ctx))

	testCases := []struct {
		name      string
		eventType events.EventType
		payload   string
	}{
		{
			name:      "missing version",
			eventType: events.ProcessDefinitionRemovedEvent,
			payload:   `{"id":"1","type":"process.definition.removed","timestamp":"2024-01-01T00:00:00Z","process_id":"travels"}`,
		},
		{
			name:      "not json",
			eventType: events.ProcessDefinitionRegisteredEvent,
			payload:   `definition`,
		},
		{
			name:      "unknown type",
			eventType: events.EventType("process.definition.renamed"),
			payload:   `{}`,
		},
	}

	for _, tc := range testCases {
		msg := message.NewMessage(watermill.NewUUID(), []byte(tc.payload))
		msg.Metadata.Set(events.EventTypeMetadataKey, string(tc.eventType))

		require.NoError(t, pub.Publish(events.Topic, msg), tc.name)
	}

	assert.Zero(t, calls.Load())

	key := models.NewProcessDefinitionKey("travels", "1.0")
	require.NoError(t, bus.Publish(ctx, events.MessageKey(key), events.NewProcessDefinitionRemoved("test", key)))

	assert.Equal(t, int32(1), calls.Load())
}

func TestWatermillEventBus_GenerateID(t *testing.T) {
	t.Parallel()

	bus, _ := newTestBus(t)

	a := bus.GenerateID()
	b := bus.GenerateID()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
