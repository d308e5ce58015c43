package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flowhire/flowhire/pkg/cmd"
	"github.com/flowhire/flowhire/pkg/log"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/scheduler"
	"github.com/flowhire/flowhire/pkg/sources/queue"
	"github.com/flowhire/flowhire/pkg/trigger"
	"github.com/jonboulle/clockwork"
	cli "github.com/urfave/cli/v3"
)

func main() {
	command := &cli.Command{
		Name:                  "flowhire-scheduler",
		EnableShellCompletion: true,
		Usage:                 "Fire due workflow schedules, resume paused runs and consume message sources",
		Flags: []cli.Flag{
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
			&cli.DurationFlag{
				Name:    "tick-interval",
				Usage:   "Period of the scheduler tick loop",
				Value:   scheduler.DefaultTickInterval,
				Sources: cli.EnvVars("TICK_INTERVAL"),
			},
			&cli.StringFlag{
				Name:    "message-stream-addr",
				Usage:   "Redis address of the messenger stream (disabled if empty)",
				Value:   "",
				Sources: cli.EnvVars("MESSAGE_STREAM_ADDR"),
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

			logger := log.WithModule("flowhire-scheduler")
			logger.InfoContext(ctx, "Initializing scheduler")

			eventBus := cmd.NewEventBus(command.String("event-bus"), "flowhire-scheduler", logger)
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

			matcher := trigger.NewMatcher(persistence, eventBus, logger)

			sched := scheduler.NewScheduler(
				persistence,
				matcher,
				eventBus,
				clockwork.NewRealClock(),
				command.Duration("tick-interval"),
				logger,
			)

			if err := sched.Start(ctx); err != nil {
				return err
			}

			if addr := command.String("message-stream-addr"); addr != "" {
				source := queue.NewSource(map[string]string{"addr": addr}, logger)

				err := source.Start(ctx, func(ctx context.Context, event *models.SourceEvent) error {
					_, err := matcher.Match(ctx, event)

					return err
				})
				if err != nil {
					return err
				}

				defer func() {
					if err := source.Stop(ctx); err != nil {
						logger.ErrorContext(ctx, "Failed to stop queue source", "error", err)
					}
				}()
			}

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

			select {
			case <-sigChan:
			case <-ctx.Done():
			}

			logger.InfoContext(ctx, "Shutting down scheduler")

			stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			return sched.Stop(stopCtx)
		},
	}

	if err := command.Run(context.Background(), os.Args); err != nil {
		panic(err)
	}
}
