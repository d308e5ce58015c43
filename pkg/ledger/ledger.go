// Package ledger is the durable, append-only record of workflow run state.
// All run mutation flows through it: per-step results, status transitions and
// history reads. It enforces the two run invariants the executor relies on:
// a step index executes at most once, and the program counter only moves
// forward.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
)

type Ledger struct {
	persistence persistence.Persistence
	logger      *slog.Logger
}

func NewLedger(p persistence.Persistence, logger *slog.Logger) *Ledger {
	return &Ledger{
		persistence: p,
		logger:      logger.With("module", "run_ledger"),
	}
}

// RecordStep appends the result of the step at the run's current program
// counter and advances the counter to nextIndex, in one persisted write.
// A result behind the persisted counter is a replay and is rejected, so a
// crash between steps never re-executes a completed step. nextIndex must be
// strictly ahead of the recorded step: the counter never moves backward.
func (l *Ledger) RecordStep(ctx context.Context, runID string, result models.StepResult, nextIndex int) (*models.WorkflowRun, error) {
	run, err := l.persistence.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if result.Index < run.CurrentStepIndex {
		return nil, persistence.NewRunError("RecordStep", runID,
			fmt.Errorf("%w: index %d, current %d", persistence.ErrStaleStepIndex, result.Index, run.CurrentStepIndex))
	}

	for _, recorded := range run.StepResults {
		if recorded.Index == result.Index {
			return nil, persistence.NewRunError("RecordStep", runID,
				fmt.Errorf("%w: index %d already recorded", persistence.ErrStaleStepIndex, result.Index))
		}
	}

	if nextIndex <= result.Index {
		return nil, persistence.NewRunError("RecordStep", runID,
			fmt.Errorf("%w: next index %d does not advance past %d", persistence.ErrStaleStepIndex, nextIndex, result.Index))
	}

	if result.Timestamp.IsZero() {
		result.Timestamp = time.Now().UTC()
	}

	run.StepResults = append(run.StepResults, result)
	run.CurrentStepIndex = nextIndex

	if err := l.persistence.SaveRun(ctx, run); err != nil {
		return nil, persistence.NewRunError("RecordStep", runID, err)
	}

	l.logger.Debug("Recorded step result",
		"run_id", runID,
		"step_index", result.Index,
		"success", result.Success,
		"next_index", nextIndex)

	return run, nil
}

// TransitionOptions carries the optional fields a status change may set.
type TransitionOptions struct {
	ErrorMessage string
	ResumeAt     *time.Time     // Delay pauses; approval pauses leave it nil
	Variables    map[string]any // Merged into run variables (approval resolution)
}

// Transition moves the run to a new status under the run state machine.
// Pausing and terminal transitions release the worker's claim; entering
// running clears any pending resume timer.
func (l *Ledger) Transition(ctx context.Context, runID string, to models.RunStatus, opts TransitionOptions) (*models.WorkflowRun, error) {
	run, err := l.persistence.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if !run.Status.CanTransition(to) {
		return nil, persistence.NewRunError("Transition", runID,
			fmt.Errorf("%w: %s -> %s", persistence.ErrInvalidTransition, run.Status, to))
	}

	from := run.Status
	run.Status = to

	if opts.ErrorMessage != "" {
		run.ErrorMessage = opts.ErrorMessage
	}

	for key, value := range opts.Variables {
		if run.Variables == nil {
			run.Variables = make(map[string]any)
		}

		run.Variables[key] = value
	}

	switch to {
	case models.RunStatusRunning:
		run.ResumeAt = nil

		if run.CurrentStepIndex < 0 {
			run.CurrentStepIndex = 0
		}
	case models.RunStatusPaused:
		run.ResumeAt = opts.ResumeAt
		run.ClaimToken = ""
	case models.RunStatusCompleted, models.RunStatusFailed:
		now := time.Now().UTC()
		run.CompletedAt = &now
		run.ClaimToken = ""
	}

	if err := l.persistence.SaveRun(ctx, run); err != nil {
		return nil, persistence.NewRunError("Transition", runID, err)
	}

	l.logger.Info("Run status transition",
		"run_id", runID,
		"workflow_id", run.WorkflowID,
		"from", from,
		"to", to)

	return run, nil
}

// MergeVariables writes variables into the run without a status change.
// Used by approval resolution to record the decision before re-enqueueing.
func (l *Ledger) MergeVariables(ctx context.Context, runID string, variables map[string]any) (*models.WorkflowRun, error) {
	run, err := l.persistence.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.Variables == nil {
		run.Variables = make(map[string]any, len(variables))
	}

	for key, value := range variables {
		run.Variables[key] = value
	}

	if err := l.persistence.SaveRun(ctx, run); err != nil {
		return nil, persistence.NewRunError("MergeVariables", runID, err)
	}

	return run, nil
}

// History returns the run history for a workflow, newest first.
func (l *Ledger) History(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowRun, error) {
	return l.persistence.RunsByWorkflow(ctx, workflowID, limit)
}
