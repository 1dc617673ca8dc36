package kafka

import (
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/dataindex/pkg/events"
)

// partitionKey routes every event of a process to the same partition so
// registrations and removals of one process are consumed in order.
func partitionKey(_ string, msg *message.Message) (string, error) {
	return msg.Metadata.Get(events.EventMetadataKey), nil
}
