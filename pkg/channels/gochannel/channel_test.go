package gochannel

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const topic = "process.definition.registered"

func TestCreateTestChannel_LateSubscriberReceivesEvent(t *testing.T) {
	pub, sub, err := CreateTestChannel(nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	msg := message.NewMessage(watermill.NewULID(), []byte(`{"id":"order"}`))
	published := make(chan error, 1)
	go func() { published <- pub.Publish(topic, msg) }()

	messages, err := sub.Subscribe(t.Context(), topic)
	require.NoError(t, err)

	select {
	case received := <-messages:
		assert.Equal(t, msg.UUID, received.UUID)
		assert.JSONEq(t, `{"id":"order"}`, string(received.Payload))
		received.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered to the late subscriber")
	}

	select {
	case err := <-published:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("publish did not return after ack")
	}
}

func TestCreateChannel_SharesPublisherAndSubscriber(t *testing.T) {
	pub, sub, err := CreateChannel(watermill.NopLogger{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })

	assert.Same(t, pub, sub)

	messages, err := sub.Subscribe(t.Context(), topic)
	require.NoError(t, err)

	msg := message.NewMessage(watermill.NewULID(), []byte(`{}`))
	require.NoError(t, pub.Publish(topic, msg))

	select {
	case received := <-messages:
		assert.Equal(t, msg.UUID, received.UUID)
		received.Ack()
	case <-time.After(5 * time.Second):
		t.Fatal("event was not delivered")
	}
}
