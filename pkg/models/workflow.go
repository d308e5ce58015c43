// Package models defines the core domain models for workflow automation.
package models

import "time"

// WorkflowStatus represents the lifecycle state of a workflow definition.
type WorkflowStatus string

const (
	WorkflowStatusDraft    WorkflowStatus = "draft"    // Editable, not executable
	WorkflowStatusActive   WorkflowStatus = "active"   // Eligible for automatic and manual execution
	WorkflowStatusInactive WorkflowStatus = "inactive" // Kept, not executable
	WorkflowStatusArchived WorkflowStatus = "archived" // Historical, not editable
)

// TriggerType identifies the class of event that can start a run.
type TriggerType string

const (
	TriggerTypeMessage        TriggerType = "message"
	TriggerTypeSchedule       TriggerType = "schedule"
	TriggerTypeEvent          TriggerType = "event"
	TriggerTypeWebhook        TriggerType = "webhook"
	TriggerTypeManual         TriggerType = "manual"
	TriggerTypeFormSubmission TriggerType = "form_submission"
)

// WorkflowDefinition is the saved rule: trigger plus an ordered action program.
type WorkflowDefinition struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"           validate:"required,min=3"`
	Description   string         `json:"description"`
	Status        WorkflowStatus `json:"status"         validate:"required"`
	Version       int            `json:"version"` // Monotonic, bumped on action/trigger changes
	TriggerType   TriggerType    `json:"trigger_type"   validate:"required"`
	TriggerConfig map[string]any `json:"trigger_config"`
	Actions       []*ActionStep  `json:"actions"`
	Variables     map[string]any `json:"variables"`
	Owner         string         `json:"owner"`
	WorkspaceID   string         `json:"workspace_id"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// IsExecutable reports whether the definition may produce runs, automatically
// or via the manual trigger endpoint.
func (w *WorkflowDefinition) IsExecutable() bool {
	return w.Status == WorkflowStatusActive
}

// BumpVersion increments the definition version. Callers invoke it whenever
// Actions or TriggerConfig change; metadata-only edits keep the version.
func (w *WorkflowDefinition) BumpVersion() {
	w.Version++
	w.UpdatedAt = time.Now().UTC()
}
