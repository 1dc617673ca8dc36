package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/dukex/dataindex/pkg/cmd"
	"github.com/dukex/dataindex/pkg/indexer"
	"github.com/dukex/dataindex/pkg/otelhelper"
	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel"
)

func NewRunCommand() *cli.Command {
	return &cli.Command{
		Name:    "run",
		Aliases: []string{"r"},
		Usage:   "Consume process definition events and index them",
		Flags: withFlags(logFlags(), persistenceFlags(), eventBusFlags(), []cli.Flag{
			&cli.BoolFlag{
				Name:    "otel-enabled",
				Usage:   "Export traces over OTLP/HTTP",
				Sources: cli.EnvVars("OTEL_ENABLED"),
			},
		}),
		Action: func(ctx context.Context, command *cli.Command) error {
			logger := setupLogger(command, "dataindex")

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			tracer := otel.Tracer(cmd.ServiceName)

			if command.Bool("otel-enabled") {
				var (
					shutdown otelhelper.ShutdownFunc
					err      error
				)

				tracer, shutdown, err = otelhelper.NewTracer(ctx, cmd.ServiceName)
				if err != nil {
					return fmt.Errorf("failed to initialize tracer: %w", err)
				}

				defer func() {
					err := shutdown(context.WithoutCancel(ctx))
					if err != nil {
						logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
					}
				}()
			}

			p, err := openPersistence(ctx, logger, command)
			if err != nil {
				return err
			}
			defer closePersistence(context.WithoutCancel(ctx), logger, p)

			err = p.HealthCheck(ctx)
			if err != nil {
				return fmt.Errorf("persistence is not healthy: %w", err)
			}

			bus, err := openEventBus(logger, command)
			if err != nil {
				return err
			}
			defer closeEventBus(ctx, logger, bus)

			err = indexer.New(logger, p, bus, tracer).Start(ctx)
			if err != nil {
				return err
			}

			<-ctx.Done()
			logger.Info("Shutting down indexer")

			return nil
		},
	}
}
