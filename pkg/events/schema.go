package events

import (
	"embed"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var (
	// ErrUnknownEventType is returned for payloads of an event type without a schema.
	ErrUnknownEventType = errors.New("unknown event type")

	// ErrInvalidPayload is returned when a payload does not match its event schema.
	ErrInvalidPayload = errors.New("invalid event payload")
)

var schemaFileNames = map[EventType]string{
	ProcessDefinitionRegisteredEvent: "schemas/process_definition_registered.json",
	ProcessDefinitionRemovedEvent:    "schemas/process_definition_removed.json",
}

var (
	schemasOnce sync.Once
	schemas     map[EventType]*gojsonschema.Schema
	schemasErr  error
)

func loadSchemas() (map[EventType]*gojsonschema.Schema, error) {
	schemasOnce.Do(func() {
		schemas = make(map[EventType]*gojsonschema.Schema, len(schemaFileNames))

		for eventType, name := range schemaFileNames {
			body, err := schemaFiles.ReadFile(name)
			if err != nil {
				schemasErr = fmt.Errorf("failed to read schema %s: %w", name, err)

				return
			}

			schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(body))
			if err != nil {
				schemasErr = fmt.Errorf("failed to compile schema %s: %w", name, err)

				return
			}

			schemas[eventType] = schema
		}
	})

	return schemas, schemasErr
}

// ValidatePayload checks a JSON payload against the schema of eventType.
func ValidatePayload(eventType EventType, payload []byte) error {
	all, err := loadSchemas()
	if err != nil {
		return err
	}

	schema, ok := all[eventType]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEventType, eventType)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if !result.Valid() {
		messages := make([]string, 0, len(result.Errors()))
		for _, resultErr := range result.Errors() {
			messages = append(messages, resultErr.String())
		}

		return fmt.Errorf("%w: %s", ErrInvalidPayload, strings.Join(messages, "; "))
	}

	return nil
}
