package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// ScheduleType determines how a schedule's next run time is recomputed after
// it fires.
type ScheduleType string

const (
	ScheduleTypeOnce      ScheduleType = "once"
	ScheduleTypeRecurring ScheduleType = "recurring"
	ScheduleTypeInterval  ScheduleType = "interval"
)

var (
	// ErrInvalidSchedule is returned when schedule validation fails.
	ErrInvalidSchedule = errors.New("invalid schedule configuration")
)

// cronParser accepts the standard 5-field format (minute hour dom month dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// WorkflowSchedule is a timer definition that periodically fires a workflow.
// NextRunAt is precomputed so the scheduler can discover due schedules with a
// single range query instead of per-schedule timers.
type WorkflowSchedule struct {
	ID             string       `json:"id"              validate:"required"`
	WorkflowID     string       `json:"workflow_id"     validate:"required"`
	ScheduleType   ScheduleType `json:"schedule_type"   validate:"required"`
	CronExpression string       `json:"cron_expression,omitempty"`
	IntervalSecs   int64        `json:"interval_seconds,omitempty"`
	NextRunAt      time.Time    `json:"next_run_at"`
	Timezone       string       `json:"timezone,omitempty"`
	IsActive       bool         `json:"is_active"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// NewWorkflowSchedule creates a schedule with its first run time computed.
// For once-type schedules nextRunAt must be supplied by the caller.
func NewWorkflowSchedule(id, workflowID string, scheduleType ScheduleType, cronExpression string, intervalSecs int64, timezone string, nextRunAt time.Time) (*WorkflowSchedule, error) {
	now := time.Now().UTC()
	schedule := &WorkflowSchedule{
		ID:             id,
		WorkflowID:     workflowID,
		ScheduleType:   scheduleType,
		CronExpression: cronExpression,
		IntervalSecs:   intervalSecs,
		Timezone:       timezone,
		NextRunAt:      nextRunAt,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	switch scheduleType {
	case ScheduleTypeRecurring:
		next, err := schedule.cronNext(now)
		if err != nil {
			return nil, err
		}

		schedule.NextRunAt = next
	case ScheduleTypeInterval:
		schedule.NextRunAt = now.Add(time.Duration(intervalSecs) * time.Second)
	case ScheduleTypeOnce:
		if nextRunAt.IsZero() {
			return nil, fmt.Errorf("%w: once schedule requires next_run_at", ErrInvalidSchedule)
		}
	}

	return schedule, nil
}

// IsDue checks if this schedule is due for firing at the given time.
func (s *WorkflowSchedule) IsDue(now time.Time) bool {
	return s.IsActive && !s.NextRunAt.After(now)
}

// Reschedule recomputes NextRunAt to a future instant immediately after a
// fire. A once schedule deactivates instead. An interval schedule catches up
// by advancing whole intervals past now, so an overdue schedule fires once
// per tick rather than once per missed interval.
func (s *WorkflowSchedule) Reschedule(now time.Time) error {
	s.UpdatedAt = time.Now().UTC()

	switch s.ScheduleType {
	case ScheduleTypeOnce:
		s.IsActive = false

		return nil
	case ScheduleTypeInterval:
		interval := time.Duration(s.IntervalSecs) * time.Second
		for !s.NextRunAt.After(now) {
			s.NextRunAt = s.NextRunAt.Add(interval)
		}

		return nil
	case ScheduleTypeRecurring:
		next, err := s.cronNext(now)
		if err != nil {
			return err
		}

		s.NextRunAt = next

		return nil
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, s.ScheduleType)
	}
}

// Validate performs validation on the schedule fields.
func (s *WorkflowSchedule) Validate() error {
	if s.ID == "" || s.WorkflowID == "" {
		return ErrInvalidSchedule
	}

	switch s.ScheduleType {
	case ScheduleTypeRecurring:
		if _, err := cronParser.Parse(s.CronExpression); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
	case ScheduleTypeInterval:
		if s.IntervalSecs <= 0 {
			return fmt.Errorf("%w: interval schedule requires positive interval_seconds", ErrInvalidSchedule)
		}
	case ScheduleTypeOnce:
	default:
		return fmt.Errorf("%w: unknown schedule type %q", ErrInvalidSchedule, s.ScheduleType)
	}

	if s.Timezone != "" {
		if _, err := time.LoadLocation(s.Timezone); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
	}

	return nil
}

// cronNext evaluates the cron expression in the schedule's timezone and
// returns the next firing after the reference time.
func (s *WorkflowSchedule) cronNext(after time.Time) (time.Time, error) {
	cronSchedule, err := cronParser.Parse(s.CronExpression)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
	}

	loc := time.UTC

	if s.Timezone != "" {
		loc, err = time.LoadLocation(s.Timezone)
		if err != nil {
			return time.Time{}, fmt.Errorf("%w: %w", ErrInvalidSchedule, err)
		}
	}

	return cronSchedule.Next(after.In(loc)).UTC(), nil
}
