// Package events defines the events through which process runtimes announce
// deployed and undeployed process definitions.
package events

import (
	"time"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Kafka topics.
const Topic = "dataindex.process.definitions"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	ProcessDefinitionRegisteredEvent EventType = "process.definition.registered"
	ProcessDefinitionRemovedEvent    EventType = "process.definition.removed"
)

type BaseEvent struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Source    string         `json:"source,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// ProcessDefinitionRegistered carries a full definition, nodes included. It
// replaces whatever is stored for the same (id, version).
type ProcessDefinitionRegistered struct {
	BaseEvent

	Definition *models.ProcessDefinition `json:"definition" validate:"required"`
}

func (e ProcessDefinitionRegistered) GetType() EventType {
	return ProcessDefinitionRegisteredEvent
}

// Key returns the definition key, or the zero key when no definition is set.
func (e ProcessDefinitionRegistered) Key() models.ProcessDefinitionKey {
	if e.Definition == nil {
		return models.ProcessDefinitionKey{}
	}

	return e.Definition.Key()
}

// ProcessDefinitionRemoved announces that a definition version was undeployed.
type ProcessDefinitionRemoved struct {
	BaseEvent

	ProcessID string `json:"process_id" validate:"required"`
	Version   string `json:"version"    validate:"required"`
}

func (e ProcessDefinitionRemoved) GetType() EventType {
	return ProcessDefinitionRemovedEvent
}

func (e ProcessDefinitionRemoved) Key() models.ProcessDefinitionKey {
	return models.NewProcessDefinitionKey(e.ProcessID, e.Version)
}

func NewBaseEvent(eventType EventType, source string) BaseEvent {
	return BaseEvent{
		ID:        uuid.New().String(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    source,
		Metadata:  make(map[string]any),
	}
}

// NewProcessDefinitionRegistered builds a registered event for definition.
func NewProcessDefinitionRegistered(source string, definition *models.ProcessDefinition) *ProcessDefinitionRegistered {
	return &ProcessDefinitionRegistered{
		BaseEvent:  NewBaseEvent(ProcessDefinitionRegisteredEvent, source),
		Definition: definition,
	}
}

// NewProcessDefinitionRemoved builds a removed event for key.
func NewProcessDefinitionRemoved(source string, key models.ProcessDefinitionKey) *ProcessDefinitionRemoved {
	return &ProcessDefinitionRemoved{
		BaseEvent: NewBaseEvent(ProcessDefinitionRemovedEvent, source),
		ProcessID: key.ID(),
		Version:   key.Version(),
	}
}

// MessageKey is the partition key used when publishing an event about
// process. All versions of one process land on the same partition.
func MessageKey(process models.ProcessDefinitionKey) string {
	return process.ID()
}
