// Package gochannel provides the in-memory transport for process definition
// events. It backs `--event-bus gochannel`, where the indexer and the CLI
// share one process, and the event bus and indexer tests.
package gochannel

import (
	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const (
	// EventBuffer bounds the definition events queued per subscriber.
	EventBuffer = 1000

	// TestEventBuffer is small because test publishes block on the ack.
	TestEventBuffer = 10
)

// CreateChannel returns one GoChannel serving as both publisher and
// subscriber. Definition events are not persisted, so an indexer must be
// subscribed before registrations are published or they are lost.
func CreateChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return newChannel(logger, gochannel.Config{
		OutputChannelBuffer: EventBuffer,
	})
}

// CreateTestChannel keeps published events for late subscribers and blocks
// each publish until the indexer acks, so stored definitions can be read back
// as soon as Publish returns. A nacked event is redelivered before Publish
// returns.
func CreateTestChannel(logger watermill.LoggerAdapter) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	return newChannel(logger, gochannel.Config{
		OutputChannelBuffer:            TestEventBuffer,
		Persistent:                     true,
		BlockPublishUntilSubscriberAck: true,
	})
}

func newChannel(logger watermill.LoggerAdapter, config gochannel.Config) (*gochannel.GoChannel, *gochannel.GoChannel, error) {
	if logger == nil {
		logger = watermill.NopLogger{}
	}

	pubSub := gochannel.NewGoChannel(config, logger)

	return pubSub, pubSub, nil
}
