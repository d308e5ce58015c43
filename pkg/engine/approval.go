package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/events"
	"github.com/flowhire/flowhire/pkg/ledger"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/google/uuid"
)

var ErrNotAwaitingApproval = errors.New("run is not awaiting approval")

// ApprovalService is the un-pause primitive for approval_request steps. A
// run parked by approval_request has no resume timer; only an explicit
// resolution moves it forward. There is no expiry: an unresolved approval
// pauses the run indefinitely.
type ApprovalService struct {
	persistence persistence.Persistence
	ledger      *ledger.Ledger
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewApprovalService(p persistence.Persistence, runLedger *ledger.Ledger, publisher eventbus.EventPublisher, logger *slog.Logger) *ApprovalService {
	return &ApprovalService{
		persistence: p,
		ledger:      runLedger,
		publisher:   publisher,
		logger:      logger.With("module", "approval"),
	}
}

// Resolve records the approval decision in the run's variables and hands the
// run back to a worker. Delay pauses (which carry a resume timer) and runs in
// any other state are rejected with ErrNotAwaitingApproval. The decision
// string lands in variables.approval_status; downstream condition steps
// branch on it.
func (s *ApprovalService) Resolve(ctx context.Context, runID, status string) (*models.WorkflowRun, error) {
	run, err := s.persistence.RunByID(ctx, runID)
	if err != nil {
		return nil, err
	}

	if run.Status != models.RunStatusPaused || run.ResumeAt != nil {
		return nil, fmt.Errorf("%w: run %s is %s", ErrNotAwaitingApproval, runID, run.Status)
	}

	token := uuid.NewString()

	if _, err := s.persistence.ClaimRun(ctx, runID, models.RunStatusPaused, token); err != nil {
		return nil, err
	}

	run, err = s.ledger.MergeVariables(ctx, runID, map[string]any{
		"approval_status":      status,
		"approval_resolved_at": time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Approval resolved",
		"run_id", runID,
		"workflow_id", run.WorkflowID,
		"approval_status", status)

	event := events.RunResumeDue{
		BaseEvent: events.BaseEvent{
			ID:         uuid.NewString(),
			Type:       events.RunResumeDueEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: run.WorkflowID,
		},
		RunID:      runID,
		ClaimToken: token,
	}

	if err := s.publisher.Publish(ctx, run.WorkflowID, event); err != nil {
		return nil, fmt.Errorf("failed to re-enqueue approved run %s: %w", runID, err)
	}

	return run, nil
}
