package kafka

import (
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/dataindex/pkg/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBrokers(t *testing.T) {
	t.Parallel()

	assert.Empty(t, ParseBrokers(""))
	assert.Empty(t, ParseBrokers(" , "))
	assert.Equal(t, []string{"localhost:9092"}, ParseBrokers("localhost:9092"))
	assert.Equal(t, []string{"a:9092", "b:9092"}, ParseBrokers("a:9092, b:9092,"))
}

func TestConsumerGroup(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "cg-dataindex", ConsumerGroup("dataindex"))
}

func TestCreateChannel_RequiresBrokers(t *testing.T) {
	t.Parallel()

	pub, sub, err := CreateChannel(watermill.NopLogger{}, "dataindex", nil)
	require.ErrorIs(t, err, ErrNoBrokers)
	assert.Nil(t, pub)
	assert.Nil(t, sub)
}

func TestPartitionKey_UsesProcessKey(t *testing.T) {
	t.Parallel()

	msg := message.NewMessage("1", []byte("{}"))
	msg.Metadata.Set(events.EventMetadataKey, "travels")

	key, err := partitionKey(events.Topic, msg)
	require.NoError(t, err)
	assert.Equal(t, "travels", key)
}
