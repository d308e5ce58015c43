// Package events defines the event types published on the engine bus for run
// lifecycle notifications and execution hand-off.
package events

import (
	"time"
)

type EventType string

// Bus topics.
const Topic = "flowhire.runs" // Run lifecycle and execution hand-off

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// RunQueuedEvent hands a freshly created pending run to a worker.
	RunQueuedEvent EventType = "run.queued"

	// RunResumeDueEvent hands a claimed, resumable paused run to a worker.
	RunResumeDueEvent EventType = "run.resume_due"

	// Run lifecycle notifications for external observers.
	RunCompletedEvent EventType = "run.completed"
	RunFailedEvent    EventType = "run.failed"
	RunPausedEvent    EventType = "run.paused"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	WorkerID   string         `json:"worker_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// RunQueued is published by the trigger matcher (and the manual-trigger API)
// when a new pending run is ready for execution.
type RunQueued struct {
	BaseEvent

	RunID           string      `json:"run_id"`
	WorkflowVersion int         `json:"workflow_version"`
	TriggerType     string      `json:"trigger_type"`
	TriggerData     map[string]any `json:"trigger_data,omitempty"`
}

func (e RunQueued) GetType() EventType {
	return RunQueuedEvent
}

// RunResumeDue is published by the scheduler when a paused run's timer is due
// and the scheduler has claimed it for resumption.
type RunResumeDue struct {
	BaseEvent

	RunID      string `json:"run_id"`
	ClaimToken string `json:"claim_token"`
}

func (e RunResumeDue) GetType() EventType {
	return RunResumeDueEvent
}

type RunCompleted struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Duration time.Duration `json:"duration"`
}

func (e RunCompleted) GetType() EventType {
	return RunCompletedEvent
}

type RunFailed struct {
	BaseEvent

	RunID    string        `json:"run_id"`
	Error    string        `json:"error"`
	Duration time.Duration `json:"duration"`
}

func (e RunFailed) GetType() EventType {
	return RunFailedEvent
}

type RunPaused struct {
	BaseEvent

	RunID    string     `json:"run_id"`
	ResumeAt *time.Time `json:"resume_at,omitempty"` // Nil for approval pauses
}

func (e RunPaused) GetType() EventType {
	return RunPausedEvent
}
