package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/dukex/dataindex/pkg/channels/kafka"
	"github.com/dukex/dataindex/pkg/cmd"
	"github.com/dukex/dataindex/pkg/eventbus"
	"github.com/dukex/dataindex/pkg/log"
	"github.com/dukex/dataindex/pkg/persistence"
	cli "github.com/urfave/cli/v3"
)

func logFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "Log level (debug, info, warn, error)",
			Value:   "info",
			Sources: cli.EnvVars("LOG_LEVEL"),
		},
	}
}

func persistenceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "database-url",
			Usage:    "Persistence URL (postgres://, bolt://, file:// or a directory)",
			Required: true,
			Sources:  cli.EnvVars("DATABASE_URL"),
		},
		&cli.StringFlag{
			Name:    "cache-url",
			Usage:   "Redis URL of the read-through cache (disabled when empty)",
			Sources: cli.EnvVars("CACHE_URL"),
		},
		&cli.DurationFlag{
			Name:    "cache-ttl",
			Usage:   "Lifetime of cached entries",
			Value:   10 * time.Minute,
			Sources: cli.EnvVars("CACHE_TTL"),
		},
	}
}

func eventBusFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "event-bus",
			Usage:   "Event bus type (kafka, gochannel)",
			Value:   "kafka",
			Sources: cli.EnvVars("EVENT_BUS_TYPE"),
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "Comma separated Kafka brokers",
			Sources: cli.EnvVars("KAFKA_BROKERS"),
		},
	}
}

func withFlags(groups ...[]cli.Flag) []cli.Flag {
	var flags []cli.Flag
	for _, group := range groups {
		flags = append(flags, group...)
	}

	return flags
}

func setupLogger(command *cli.Command, module string) *slog.Logger {
	log.Setup(command.String("log-level"))

	return log.WithModule(module)
}

func openPersistence(ctx context.Context, logger *slog.Logger, command *cli.Command) (persistence.Persistence, error) {
	return cmd.NewPersistence(ctx, logger, cmd.PersistenceConfig{
		DatabaseURL: command.String("database-url"),
		CacheURL:    command.String("cache-url"),
		CacheTTL:    command.Duration("cache-ttl"),
	})
}

func openEventBus(logger *slog.Logger, command *cli.Command) (eventbus.EventBus, error) {
	return cmd.NewEventBus(command.String("event-bus"), logger, kafka.ParseBrokers(command.String("kafka-brokers")))
}

func closePersistence(ctx context.Context, logger *slog.Logger, p persistence.Persistence) {
	err := p.Close(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
	}
}

func closeEventBus(ctx context.Context, logger *slog.Logger, bus eventbus.EventBus) {
	err := bus.Close()
	if err != nil {
		logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
	}
}
