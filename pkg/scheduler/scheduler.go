// Package scheduler drives the two time-based scans of the engine: firing due
// workflow schedules and resuming delay-paused runs. One cooperative tick loop
// discovers due items; execution itself happens on the workers, so a slow run
// never blocks tick progress.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/events"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/flowhire/flowhire/pkg/trigger"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

const DefaultTickInterval = 5 * time.Second

type Scheduler struct {
	persistence  persistence.Persistence
	matcher      *trigger.Matcher
	publisher    eventbus.EventPublisher
	clock        clockwork.Clock
	tickInterval time.Duration
	logger       *slog.Logger

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

func NewScheduler(
	p persistence.Persistence,
	matcher *trigger.Matcher,
	publisher eventbus.EventPublisher,
	clock clockwork.Clock,
	tickInterval time.Duration,
	logger *slog.Logger,
) *Scheduler {
	if tickInterval <= 0 {
		tickInterval = DefaultTickInterval
	}

	return &Scheduler{
		persistence:  p,
		matcher:      matcher,
		publisher:    publisher,
		clock:        clock,
		tickInterval: tickInterval,
		logger:       logger.With("module", "scheduler"),
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	s.running = true
	s.done = make(chan struct{})

	go s.loop(ctx)

	s.logger.Info("Scheduler started", "tick_interval", s.tickInterval)

	return nil
}

func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.running = false
	close(s.done)

	s.logger.Info("Scheduler stopped")

	return nil
}

func (s *Scheduler) loop(ctx context.Context) {
	ticker := s.clock.NewTicker(s.tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			s.Tick(ctx)
		}
	}
}

// Tick runs one scan of due schedules and due resumptions. Overdue items left
// over from a crash fire on the first tick after start, each exactly once.
// Every item is isolated: one failure is logged and never stops the scan.
func (s *Scheduler) Tick(ctx context.Context) {
	now := s.clock.Now().UTC()

	s.fireDueSchedules(ctx, now)
	s.resumeDueRuns(ctx, now)
}

func (s *Scheduler) fireDueSchedules(ctx context.Context, now time.Time) {
	schedules, err := s.persistence.DueSchedules(ctx, now)
	if err != nil {
		s.logger.Error("Failed to scan due schedules", "error", err)

		return
	}

	for _, schedule := range schedules {
		if _, err := s.matcher.TriggerScheduled(ctx, schedule.WorkflowID, now); err != nil {
			// The schedule still advances below, so an inactive workflow does
			// not make its schedule refire every tick.
			s.logger.Warn("Schedule fire did not start a run",
				"schedule_id", schedule.ID,
				"workflow_id", schedule.WorkflowID,
				"error", err)
		} else {
			s.logger.Info("Schedule fired",
				"schedule_id", schedule.ID,
				"workflow_id", schedule.WorkflowID,
				"schedule_type", schedule.ScheduleType)
		}

		if err := schedule.Reschedule(now); err != nil {
			s.logger.Error("Deactivating schedule with invalid cron expression",
				"schedule_id", schedule.ID,
				"cron_expression", schedule.CronExpression,
				"error", err)

			schedule.IsActive = false
		}

		if err := s.persistence.SaveSchedule(ctx, schedule); err != nil {
			s.logger.Error("Failed to persist rescheduled schedule",
				"schedule_id", schedule.ID,
				"error", err)
		}
	}
}

// resumeDueRuns claims each delay-paused run whose timer is due and hands it
// to a worker. Approval pauses carry no resume time and are never scanned.
// The claim is atomic: with several scheduler instances only one wins a run.
func (s *Scheduler) resumeDueRuns(ctx context.Context, now time.Time) {
	runs, err := s.persistence.PausedRunsDue(ctx, now)
	if err != nil {
		s.logger.Error("Failed to scan due resumptions", "error", err)

		return
	}

	for _, run := range runs {
		token := uuid.NewString()

		if _, err := s.persistence.ClaimRun(ctx, run.ID, models.RunStatusPaused, token); err != nil {
			if persistence.IsClaimConflict(err) {
				s.logger.Debug("Run resumption already claimed", "run_id", run.ID)

				continue
			}

			s.logger.Error("Failed to claim paused run", "run_id", run.ID, "error", err)

			continue
		}

		event := events.RunResumeDue{
			BaseEvent: events.BaseEvent{
				ID:         uuid.NewString(),
				Type:       events.RunResumeDueEvent,
				Timestamp:  now,
				WorkflowID: run.WorkflowID,
			},
			RunID:      run.ID,
			ClaimToken: token,
		}

		if err := s.publisher.Publish(ctx, run.WorkflowID, event); err != nil {
			s.logger.Error("Failed to enqueue run resumption", "run_id", run.ID, "error", err)

			continue
		}

		s.logger.Info("Paused run due for resumption",
			"run_id", run.ID,
			"workflow_id", run.WorkflowID,
			"resume_at", run.ResumeAt)
	}
}
