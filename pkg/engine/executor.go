// Package engine executes workflow run programs. The executor advances an
// explicit program counter one step per tick, persists every tick through the
// run ledger, and suspends instead of blocking on delay and approval steps,
// which makes resumption after a pause or a process crash trivial: evaluation
// restarts exactly at the persisted counter.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowhire/flowhire/pkg/conditions"
	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/events"
	"github.com/flowhire/flowhire/pkg/ledger"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/otelhelper"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/flowhire/flowhire/pkg/template"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Outcome reports where a single executor tick left the run.
type Outcome string

const (
	OutcomeContinue  Outcome = "continue"
	OutcomeCompleted Outcome = "completed"
	OutcomeFailed    Outcome = "failed"
	OutcomePaused    Outcome = "paused"
)

type Executor struct {
	workerID    string
	persistence persistence.Persistence
	ledger      *ledger.Ledger
	conditions  *conditions.Evaluator
	provider    ActionProvider
	publisher   eventbus.EventPublisher
	clock       clockwork.Clock
	tracer      trace.Tracer
	logger      *slog.Logger
}

func NewExecutor(
	workerID string,
	p persistence.Persistence,
	runLedger *ledger.Ledger,
	provider ActionProvider,
	publisher eventbus.EventPublisher,
	clock clockwork.Clock,
	tracer trace.Tracer,
	logger *slog.Logger,
) *Executor {
	return &Executor{
		workerID:    workerID,
		persistence: p,
		ledger:      runLedger,
		conditions:  conditions.NewEvaluator(logger),
		provider:    provider,
		publisher:   publisher,
		clock:       clock,
		tracer:      tracer,
		logger:      logger.With("module", "executor", "worker_id", workerID),
	}
}

// ExecuteQueued claims a pending run and drives it until it pauses or
// reaches a terminal status. Losing the claim is not an error; another
// worker got there first.
func (e *Executor) ExecuteQueued(ctx context.Context, runID string) error {
	_, err := e.persistence.ClaimRun(ctx, runID, models.RunStatusPending, e.workerID)
	if err != nil {
		if persistence.IsClaimConflict(err) {
			e.logger.Debug("Run already claimed by another worker", "run_id", runID)

			return nil
		}

		return err
	}

	run, err := e.ledger.Transition(ctx, runID, models.RunStatusRunning, ledger.TransitionOptions{})
	if err != nil {
		return err
	}

	return e.drive(ctx, run)
}

// ExecuteResumed continues a paused run whose claim was taken by the
// scheduler (delay timers) or the approval service. A stale or mismatched
// claim token means the event was replayed; it is dropped silently.
func (e *Executor) ExecuteResumed(ctx context.Context, runID, claimToken string) error {
	run, err := e.persistence.RunByID(ctx, runID)
	if err != nil {
		return err
	}

	if run.Status != models.RunStatusPaused || run.ClaimToken != claimToken {
		e.logger.Debug("Ignoring stale resume event",
			"run_id", runID,
			"status", run.Status)

		return nil
	}

	run, err = e.ledger.Transition(ctx, runID, models.RunStatusRunning, ledger.TransitionOptions{})
	if err != nil {
		return err
	}

	return e.drive(ctx, run)
}

func (e *Executor) drive(ctx context.Context, run *models.WorkflowRun) error {
	def, err := e.persistence.DefinitionByID(ctx, run.WorkflowID)
	if err != nil {
		return err
	}

	if def.Version != run.WorkflowVersion {
		e.logger.Warn("Definition changed since the run was triggered",
			"run_id", run.ID,
			"run_version", run.WorkflowVersion,
			"definition_version", def.Version)
	}

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "run.execute",
		attribute.String(otelhelper.RunIDKey, run.ID),
		attribute.String(otelhelper.WorkflowIDKey, run.WorkflowID),
		attribute.Int(otelhelper.WorkflowVerKey, run.WorkflowVersion),
		attribute.String(otelhelper.WorkerIDKey, e.workerID),
	)
	defer span.End()

	for {
		outcome, updated, err := e.Step(ctx, run, def)
		if err != nil {
			otelhelper.SetError(span, err)

			return err
		}

		run = updated

		if outcome != OutcomeContinue {
			span.SetAttributes(attribute.String("flowhire.run.outcome", string(outcome)))

			return nil
		}
	}
}

// Step advances the run by exactly one program counter tick: it evaluates the
// step at CurrentStepIndex, records the result and the new counter in a
// single ledger write, and reports where that left the run.
func (e *Executor) Step(ctx context.Context, run *models.WorkflowRun, def *models.WorkflowDefinition) (Outcome, *models.WorkflowRun, error) {
	index := run.CurrentStepIndex

	if index < 0 || index >= len(def.Actions) {
		return e.complete(ctx, run)
	}

	step := def.Actions[index]
	logger := e.logger.With(
		"run_id", run.ID,
		"workflow_id", run.WorkflowID,
		"step_index", index,
		"action_type", step.Type,
	)

	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "run.step",
		attribute.Int(otelhelper.StepIndexKey, index),
		attribute.String(otelhelper.ActionTypeKey, string(step.Type)),
	)
	defer span.End()

	switch step.Type {
	case models.ActionTypeCondition:
		return e.stepCondition(ctx, logger, run, step, index)
	case models.ActionTypeDelay:
		return e.stepDelay(ctx, logger, run, step, index)
	default:
		return e.stepEffectful(ctx, logger, span, run, def, step, index)
	}
}

// stepCondition evaluates the step's condition list and either falls through
// to the next step or jumps the program counter over skipActions steps. The
// jump is an explicit counter move, never recursion, so a crash mid-skip
// resumes at the right place for free.
func (e *Executor) stepCondition(ctx context.Context, logger *slog.Logger, run *models.WorkflowRun, step *models.ActionStep, index int) (Outcome, *models.WorkflowRun, error) {
	nodes, skip := parseConditionConfig(step.Config)
	pass := e.conditions.Evaluate(nodes, run.Context())

	next := index + 1
	if !pass {
		next = index + 1 + skip
	}

	logger.Debug("Condition step evaluated", "result", pass, "next_index", next)

	run, err := e.ledger.RecordStep(ctx, run.ID, models.StepResult{
		Index:   index,
		Success: true,
		Output:  map[string]any{"result": pass, "next_index": next},
	}, next)
	if err != nil {
		return "", nil, err
	}

	return OutcomeContinue, run, nil
}

// stepDelay parks the run instead of blocking a goroutine: the counter moves
// past the delay step, the run pauses with a resume time, and the scheduler
// picks it back up once the timer is due.
func (e *Executor) stepDelay(ctx context.Context, logger *slog.Logger, run *models.WorkflowRun, step *models.ActionStep, index int) (Outcome, *models.WorkflowRun, error) {
	seconds, ok := asNumber(step.Config["seconds"])
	if !ok {
		// Validation rejects this at save time; a legacy row gets a zero delay.
		seconds = 0
	}

	resumeAt := e.clock.Now().UTC().Add(time.Duration(seconds * float64(time.Second)))

	run, err := e.ledger.RecordStep(ctx, run.ID, models.StepResult{
		Index:   index,
		Success: true,
		Output:  map[string]any{"resume_at": resumeAt.Format(time.RFC3339)},
	}, index+1)
	if err != nil {
		return "", nil, err
	}

	run, err = e.ledger.Transition(ctx, run.ID, models.RunStatusPaused, ledger.TransitionOptions{
		ResumeAt: &resumeAt,
	})
	if err != nil {
		return "", nil, err
	}

	logger.Info("Run paused on delay", "resume_at", resumeAt)
	e.publishPaused(ctx, run)

	return OutcomePaused, run, nil
}

func (e *Executor) stepEffectful(ctx context.Context, logger *slog.Logger, span trace.Span, run *models.WorkflowRun, def *models.WorkflowDefinition, step *models.ActionStep, index int) (Outcome, *models.WorkflowRun, error) {
	resolved := template.ResolveConfig(run.Context(), step.Config)

	output, actionErr := dispatch(ctx, e.provider, step.Type, resolved)
	if actionErr != nil {
		logger.Error("Action provider failed", "error", actionErr)
		otelhelper.SetError(span, actionErr)

		run, err := e.ledger.RecordStep(ctx, run.ID, models.StepResult{
			Index:   index,
			Success: false,
			Output:  map[string]any{"error": actionErr.Error()},
		}, index+1)
		if err != nil {
			return "", nil, err
		}

		run, err = e.ledger.Transition(ctx, run.ID, models.RunStatusFailed, ledger.TransitionOptions{
			ErrorMessage: actionErr.Error(),
		})
		if err != nil {
			return "", nil, err
		}

		e.publishFailed(ctx, run, actionErr)

		return OutcomeFailed, run, nil
	}

	run, err := e.ledger.RecordStep(ctx, run.ID, models.StepResult{
		Index:   index,
		Success: true,
		Output:  output,
	}, index+1)
	if err != nil {
		return "", nil, err
	}

	logger.Debug("Action dispatched", "output", output)

	// approval_request dispatches the request, then parks the run with no
	// resume timer; only an explicit approval resolution un-pauses it.
	if step.Type == models.ActionTypeApprovalRequest {
		run, err = e.ledger.Transition(ctx, run.ID, models.RunStatusPaused, ledger.TransitionOptions{})
		if err != nil {
			return "", nil, err
		}

		logger.Info("Run paused awaiting approval")
		e.publishPaused(ctx, run)

		return OutcomePaused, run, nil
	}

	if run.CurrentStepIndex >= len(def.Actions) {
		return e.complete(ctx, run)
	}

	return OutcomeContinue, run, nil
}

func (e *Executor) complete(ctx context.Context, run *models.WorkflowRun) (Outcome, *models.WorkflowRun, error) {
	run, err := e.ledger.Transition(ctx, run.ID, models.RunStatusCompleted, ledger.TransitionOptions{})
	if err != nil {
		return "", nil, err
	}

	e.logger.Info("Run completed",
		"run_id", run.ID,
		"workflow_id", run.WorkflowID,
		"steps_executed", len(run.StepResults))

	e.publishCompleted(ctx, run)

	return OutcomeCompleted, run, nil
}

func (e *Executor) publishCompleted(ctx context.Context, run *models.WorkflowRun) {
	if e.publisher == nil {
		return
	}

	event := events.RunCompleted{
		BaseEvent: e.baseEvent(events.RunCompletedEvent, run),
		RunID:     run.ID,
		Duration:  e.clock.Now().UTC().Sub(run.StartedAt),
	}

	if err := e.publisher.Publish(ctx, run.WorkflowID, event); err != nil {
		e.logger.Error("Failed to publish run completion", "run_id", run.ID, "error", err)
	}
}

func (e *Executor) publishFailed(ctx context.Context, run *models.WorkflowRun, cause error) {
	if e.publisher == nil {
		return
	}

	event := events.RunFailed{
		BaseEvent: e.baseEvent(events.RunFailedEvent, run),
		RunID:     run.ID,
		Error:     cause.Error(),
		Duration:  e.clock.Now().UTC().Sub(run.StartedAt),
	}

	if err := e.publisher.Publish(ctx, run.WorkflowID, event); err != nil {
		e.logger.Error("Failed to publish run failure", "run_id", run.ID, "error", err)
	}
}

func (e *Executor) publishPaused(ctx context.Context, run *models.WorkflowRun) {
	if e.publisher == nil {
		return
	}

	event := events.RunPaused{
		BaseEvent: e.baseEvent(events.RunPausedEvent, run),
		RunID:     run.ID,
		ResumeAt:  run.ResumeAt,
	}

	if err := e.publisher.Publish(ctx, run.WorkflowID, event); err != nil {
		e.logger.Error("Failed to publish run pause", "run_id", run.ID, "error", err)
	}
}

func (e *Executor) baseEvent(eventType events.EventType, run *models.WorkflowRun) events.BaseEvent {
	return events.BaseEvent{
		ID:         fmt.Sprintf("evt-%s-%s", eventType, run.ID),
		Type:       eventType,
		Timestamp:  e.clock.Now().UTC(),
		WorkflowID: run.WorkflowID,
		WorkerID:   e.workerID,
	}
}

// parseConditionConfig extracts the condition list and skip count from a
// condition step's config. Malformed entries evaluate fail-closed downstream.
func parseConditionConfig(config map[string]any) ([]models.ConditionNode, int) {
	var nodes []models.ConditionNode

	if raw, ok := config["conditions"]; ok {
		encoded, err := json.Marshal(raw)
		if err == nil {
			_ = json.Unmarshal(encoded, &nodes)
		}
	}

	skip := 0
	if n, ok := asNumber(config["skipActions"]); ok && n > 0 {
		skip = int(n)
	}

	return nodes, skip
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	default:
		return 0, false
	}
}
