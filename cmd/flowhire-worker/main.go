package main

import (
	"context"
	"os"

	"github.com/flowhire/flowhire/pkg/cmd"
	"github.com/flowhire/flowhire/pkg/engine"
	"github.com/flowhire/flowhire/pkg/ledger"
	"github.com/flowhire/flowhire/pkg/log"
	"github.com/flowhire/flowhire/pkg/otelhelper"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowhire-worker",
		EnableShellCompletion: true,
		Usage:                 "Start a worker that executes workflow runs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
				Value:   "",
				Sources: cli.EnvVars("WORKER_ID"),
			},
			&cli.StringFlag{
				Name:     "database-url",
				Usage:    "Database connection URL for persistence",
				Required: true,
				Sources:  cli.EnvVars("DATABASE_URL"),
			},
			&cli.StringFlag{
				Name:     "event-bus",
				Usage:    "Event bus type (kafka, gochannel)",
				Required: true,
				Sources:  cli.EnvVars("EVENT_BUS_TYPE"),
			},
			&cli.StringFlag{
				Name:    "action-provider",
				Usage:   "Action provider dispatching effectful steps (devlog)",
				Value:   "devlog",
				Sources: cli.EnvVars("ACTION_PROVIDER"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "Log level (debug, info, warn, error)",
				Value:   "info",
				Sources: cli.EnvVars("LOG_LEVEL"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			log.Setup(command.String("log-level"))

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.New().String()[:8]
			}

			logger := log.WithModule("flowhire-worker").With("worker_id", workerID)

			logger.InfoContext(ctx, "Initializing worker")

			tracer, err := otelhelper.NewTracer(ctx, "flowhire-worker")
			if err != nil {
				return err
			}

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowhire-worker", logger)
			defer func() {
				if err := eventBus.Close(); err != nil {
					logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
				}
			}()

			persistence := cmd.NewPersistence(command.String("database-url"))
			defer func() {
				if err := persistence.Close(ctx); err != nil {
					logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
				}
			}()

			runLedger := ledger.NewLedger(persistence, logger)
			executor := engine.NewExecutor(
				workerID,
				persistence,
				runLedger,
				cmd.NewProvider(command.String("action-provider"), logger),
				eventBus,
				clockwork.NewRealClock(),
				tracer,
				logger,
			)

			worker := NewWorker(workerID, executor, eventBus, logger)

			return worker.Start(ctx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
