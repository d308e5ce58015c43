package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/flowhire/flowhire/pkg/engine"
	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/events"
)

// Worker subscribes to run hand-off events and drives run execution. Each
// event is executed on its own goroutine so one slow run never delays the
// subscription loop or other runs.
type Worker struct {
	id       string
	executor *engine.Executor
	eventBus eventbus.EventBus
	logger   *slog.Logger
}

func NewWorker(id string, executor *engine.Executor, eventBus eventbus.EventBus, logger *slog.Logger) *Worker {
	return &Worker{
		id:       id,
		executor: executor,
		eventBus: eventBus,
		logger:   logger,
	}
}

func (w *Worker) Start(ctx context.Context) error {
	if err := w.eventBus.Handle(events.RunQueuedEvent, w.handleRunQueued); err != nil {
		return err
	}

	if err := w.eventBus.Handle(events.RunResumeDueEvent, w.handleRunResumeDue); err != nil {
		return err
	}

	if err := w.eventBus.Subscribe(ctx); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "Worker started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
	case <-ctx.Done():
	}

	w.logger.InfoContext(ctx, "Shutting down worker")

	return nil
}

func (w *Worker) handleRunQueued(ctx context.Context, event any) error {
	queued, ok := event.(*events.RunQueued)
	if !ok {
		w.logger.Error("Invalid event payload for run queued event")

		return nil
	}

	go func() {
		if err := w.executor.ExecuteQueued(ctx, queued.RunID); err != nil {
			w.logger.Error("Run execution failed",
				"run_id", queued.RunID,
				"workflow_id", queued.WorkflowID,
				"error", err)
		}
	}()

	return nil
}

func (w *Worker) handleRunResumeDue(ctx context.Context, event any) error {
	resume, ok := event.(*events.RunResumeDue)
	if !ok {
		w.logger.Error("Invalid event payload for run resume event")

		return nil
	}

	go func() {
		if err := w.executor.ExecuteResumed(ctx, resume.RunID, resume.ClaimToken); err != nil {
			w.logger.Error("Run resumption failed",
				"run_id", resume.RunID,
				"error", err)
		}
	}()

	return nil
}
