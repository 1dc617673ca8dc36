package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dukex/dataindex/pkg/models"
	"github.com/dukex/dataindex/pkg/persistence"
	"github.com/dukex/dataindex/pkg/session"
	cli "github.com/urfave/cli/v3"
)

func keyFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "process-id",
			Usage:    "Process definition id",
			Required: true,
		},
		&cli.StringFlag{
			Name:     "version",
			Usage:    "Process definition version",
			Required: true,
		},
	}
}

func processKey(command *cli.Command) models.ProcessDefinitionKey {
	return models.NewProcessDefinitionKey(command.String("process-id"), command.String("version"))
}

// query opens the persistence named by the command flags, runs fn and prints
// its result as indented JSON. Single-row lookups go through a read-only
// session so they resolve identities the same way the indexer does.
func query(ctx context.Context, command *cli.Command, fn func(ctx context.Context, p persistence.Persistence, s *session.Session) (any, error)) error {
	logger := setupLogger(command, "dataindex-query")

	p, err := openPersistence(ctx, logger, command)
	if err != nil {
		return err
	}
	defer closePersistence(ctx, logger, p)

	result, err := fn(ctx, p, session.New(logger, p))
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(command.Root().Writer)
	encoder.SetIndent("", "  ")

	err = encoder.Encode(result)
	if err != nil {
		return fmt.Errorf("failed to write result: %w", err)
	}

	return nil
}

func NewDefinitionsCommand() *cli.Command {
	return &cli.Command{
		Name:    "definitions",
		Aliases: []string{"defs"},
		Usage:   "Query indexed process definitions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List process definitions, optionally the versions of one process",
				Flags: withFlags(logFlags(), persistenceFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:  "process-id",
						Usage: "Only list versions of this process",
					},
				}),
				Action: func(ctx context.Context, command *cli.Command) error {
					return query(ctx, command, func(ctx context.Context, p persistence.Persistence, _ *session.Session) (any, error) {
						processID := command.String("process-id")
						if processID != "" {
							return p.ProcessDefinitionRepository().GetVersions(ctx, processID)
						}

						return p.ProcessDefinitionRepository().GetAll(ctx)
					})
				},
			},
			{
				Name:  "get",
				Usage: "Show one process definition version",
				Flags: withFlags(logFlags(), persistenceFlags(), keyFlags()),
				Action: func(ctx context.Context, command *cli.Command) error {
					return query(ctx, command, func(ctx context.Context, _ persistence.Persistence, s *session.Session) (any, error) {
						return s.Definition(ctx, processKey(command))
					})
				},
			},
		},
	}
}

func NewNodesCommand() *cli.Command {
	return &cli.Command{
		Name:  "nodes",
		Usage: "Query the nodes of indexed process definitions",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the nodes of a process definition version",
				Flags: withFlags(logFlags(), persistenceFlags(), keyFlags()),
				Action: func(ctx context.Context, command *cli.Command) error {
					return query(ctx, command, func(ctx context.Context, p persistence.Persistence, _ *session.Session) (any, error) {
						return p.NodeRepository().GetByProcess(ctx, processKey(command))
					})
				},
			},
			{
				Name:  "get",
				Usage: "Show one node of a process definition version",
				Flags: withFlags(logFlags(), persistenceFlags(), keyFlags(), []cli.Flag{
					&cli.StringFlag{
						Name:     "node-id",
						Usage:    "Node id, unique inside its process definition",
						Required: true,
					},
				}),
				Action: func(ctx context.Context, command *cli.Command) error {
					return query(ctx, command, func(ctx context.Context, _ persistence.Persistence, s *session.Session) (any, error) {
						return s.Node(ctx, models.NewNodeKey(command.String("node-id"), processKey(command)))
					})
				},
			},
		},
	}
}
