package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dukex/dataindex/pkg/eventbus"
	"github.com/dukex/dataindex/pkg/events"
	"github.com/dukex/dataindex/pkg/models"
	cli "github.com/urfave/cli/v3"
)

func sourceFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "source",
		Usage:   "Source reported in published events",
		Value:   "dataindex-cli",
		Sources: cli.EnvVars("EVENT_SOURCE"),
	}
}

func NewRegisterCommand() *cli.Command {
	return &cli.Command{
		Name:  "register",
		Usage: "Publish a process definition read from a JSON file",
		Flags: withFlags(logFlags(), eventBusFlags(), []cli.Flag{
			&cli.StringFlag{
				Name:     "file",
				Aliases:  []string{"f"},
				Usage:    "Path of the process definition JSON document",
				Required: true,
			},
			sourceFlag(),
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := setupLogger(command, "dataindex-register")

			definition, err := readDefinition(command.String("file"))
			if err != nil {
				return err
			}

			event := events.NewProcessDefinitionRegistered(command.String("source"), definition)

			err = validateEvent(event)
			if err != nil {
				return err
			}

			bus, err := openEventBus(logger, command)
			if err != nil {
				return err
			}
			defer closeEventBus(ctx, logger, bus)

			err = bus.Publish(ctx, events.MessageKey(definition.Key()), event)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Published process definition", "process", definition.Key().String(), "event_id", event.ID)

			return nil
		},
	}
}

func NewRemoveCommand() *cli.Command {
	return &cli.Command{
		Name:  "remove",
		Usage: "Publish the removal of a process definition version",
		Flags: withFlags(logFlags(), eventBusFlags(), keyFlags(), []cli.Flag{sourceFlag()}),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := setupLogger(command, "dataindex-remove")

			key := processKey(command)
			event := events.NewProcessDefinitionRemoved(command.String("source"), key)

			err := validateEvent(event)
			if err != nil {
				return err
			}

			bus, err := openEventBus(logger, command)
			if err != nil {
				return err
			}
			defer closeEventBus(ctx, logger, bus)

			err = bus.Publish(ctx, events.MessageKey(key), event)
			if err != nil {
				return err
			}

			logger.InfoContext(ctx, "Published process definition removal", "process", key.String(), "event_id", event.ID)

			return nil
		},
	}
}

// validateEvent checks event against the schema consumers apply, so the CLI
// never publishes what the indexer would drop.
func validateEvent(event eventbus.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	return events.ValidatePayload(event.GetType(), payload)
}

func readDefinition(path string) (*models.ProcessDefinition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var definition models.ProcessDefinition

	err = json.Unmarshal(data, &definition)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}

	return &definition, nil
}
