// Package web provides the HTTP handlers and request types for workflow
// management, run history, schedules, templates and the public webhook
// endpoint.
package web

import "time"

// ActionStepRequest is one step of a workflow's action program as submitted
// over the API.
type ActionStepRequest struct {
	Type   string         `json:"type"   validate:"required"`
	Config map[string]any `json:"config"`
}

type CreateWorkflowRequest struct {
	Name          string              `json:"name"           validate:"required,min=3"`
	Description   string              `json:"description"`
	TriggerType   string              `json:"trigger_type"   validate:"required,oneof=message schedule event webhook manual form_submission"`
	TriggerConfig map[string]any      `json:"trigger_config"`
	Actions       []ActionStepRequest `json:"actions"`
	Variables     map[string]any      `json:"variables"`
	Owner         string              `json:"owner"          validate:"required"`
	WorkspaceID   string              `json:"workspace_id"`
}

// UpdateWorkflowRequest supports partial updates. Changing actions or the
// trigger config bumps the definition version; metadata-only edits keep it.
type UpdateWorkflowRequest struct {
	Name          *string              `json:"name,omitempty"        validate:"omitempty,min=3"`
	Description   *string              `json:"description,omitempty"`
	Status        *string              `json:"status,omitempty"      validate:"omitempty,oneof=draft active inactive archived"`
	TriggerConfig map[string]any       `json:"trigger_config,omitempty"`
	Actions       *[]ActionStepRequest `json:"actions,omitempty"`
	Variables     map[string]any       `json:"variables,omitempty"`
}

type TriggerRunRequest struct {
	Data map[string]any `json:"data"`
}

type ApprovalResolutionRequest struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
}

type CreateScheduleRequest struct {
	WorkflowID      string     `json:"workflow_id"      validate:"required"`
	ScheduleType    string     `json:"schedule_type"    validate:"required,oneof=once recurring interval"`
	CronExpression  string     `json:"cron_expression,omitempty"`
	IntervalSeconds int64      `json:"interval_seconds,omitempty"`
	NextRunAt       *time.Time `json:"next_run_at,omitempty"`
	Timezone        string     `json:"timezone,omitempty"`
}

type InstantiateTemplateRequest struct {
	Name        string `json:"name,omitempty" validate:"omitempty,min=3"`
	Owner       string `json:"owner"          validate:"required"`
	WorkspaceID string `json:"workspace_id"`
}
