package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the state-machine state of a workflow run.
//
// pending -> running -> completed
// running -> failed
// running -> paused -> running
//
// completed and failed are terminal; there is no cancellation transition.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

var runTransitions = map[RunStatus][]RunStatus{
	RunStatusPending: {RunStatusRunning},
	RunStatusRunning: {RunStatusCompleted, RunStatusFailed, RunStatusPaused},
	RunStatusPaused:  {RunStatusRunning},
}

// CanTransition reports whether the state machine allows moving from one
// run status to another.
func (s RunStatus) CanTransition(to RunStatus) bool {
	for _, allowed := range runTransitions[s] {
		if allowed == to {
			return true
		}
	}

	return false
}

// IsTerminal reports whether the status ends the run for good.
func (s RunStatus) IsTerminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed
}

// StepResult is the recorded outcome of one executed action step.
type StepResult struct {
	Index     int            `json:"index"`
	Success   bool           `json:"success"`
	Output    map[string]any `json:"output,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// WorkflowRun is one execution instance of a workflow definition with durable
// per-step state. Runs are created by the trigger matcher or the scheduler,
// mutated only through the run ledger, and never deleted.
type WorkflowRun struct {
	ID               string         `json:"id"`
	WorkflowID       string         `json:"workflow_id"`
	WorkflowVersion  int            `json:"workflow_version"` // Definition version snapshot at trigger time
	Status           RunStatus      `json:"status"`
	TriggerData      map[string]any `json:"trigger_data,omitempty"`
	Variables        map[string]any `json:"variables,omitempty"`
	CurrentStepIndex int            `json:"current_step_index"`
	StepResults      []StepResult   `json:"step_results"`
	ResumeAt         *time.Time     `json:"resume_at,omitempty"` // Set by delay pauses only
	ErrorMessage     string         `json:"error_message,omitempty"`
	ClaimToken       string         `json:"claim_token,omitempty"` // Exclusive worker ownership
	StartedAt        time.Time      `json:"started_at"`
	CompletedAt      *time.Time     `json:"completed_at,omitempty"`
}

// NewWorkflowRun creates a pending run for the given definition, snapshotting
// its version and variables. CurrentStepIndex starts at -1: no step has
// executed yet.
func NewWorkflowRun(def *WorkflowDefinition, triggerData map[string]any) *WorkflowRun {
	variables := make(map[string]any, len(def.Variables))
	for k, v := range def.Variables {
		variables[k] = v
	}

	return &WorkflowRun{
		ID:               uuid.New().String(),
		WorkflowID:       def.ID,
		WorkflowVersion:  def.Version,
		Status:           RunStatusPending,
		TriggerData:      triggerData,
		Variables:        variables,
		CurrentStepIndex: -1,
		StepResults:      []StepResult{},
		StartedAt:        time.Now().UTC(),
	}
}

// Context assembles the value-resolution context for condition evaluation and
// config templating: trigger data, the entity the trigger carried, run
// variables and prior step outputs, addressed by dotted paths.
func (r *WorkflowRun) Context() map[string]any {
	steps := make(map[string]any, len(r.StepResults))
	for _, sr := range r.StepResults {
		steps[stepKey(sr.Index)] = sr.Output
	}

	entity, _ := r.TriggerData["entity"].(map[string]any)

	return map[string]any{
		"trigger":   r.TriggerData,
		"entity":    entity,
		"variables": r.Variables,
		"steps":     steps,
	}
}

// stepKey addresses step outputs as steps.<index>, e.g. {{steps.0.message_id}}.
func stepKey(index int) string {
	return strconv.Itoa(index)
}
