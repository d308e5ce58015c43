package models

import (
	"time"

	"github.com/google/uuid"
)

// WorkflowTemplate is a reusable blueprint copied into a new definition on
// instantiation.
type WorkflowTemplate struct {
	ID            string         `json:"id"`
	Name          string         `json:"name"           validate:"required,min=3"`
	Description   string         `json:"description"`
	TriggerType   TriggerType    `json:"trigger_type"   validate:"required"`
	TriggerConfig map[string]any `json:"trigger_config"`
	Actions       []*ActionStep  `json:"actions"`
	Variables     map[string]any `json:"variables"`
	UsageCount    int            `json:"usage_count"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Instantiate copies the blueprint into a fresh draft definition. The caller
// persists the definition and the template's incremented UsageCount.
func (t *WorkflowTemplate) Instantiate(name, owner, workspaceID string) *WorkflowDefinition {
	if name == "" {
		name = t.Name
	}

	actions := make([]*ActionStep, len(t.Actions))
	for i, step := range t.Actions {
		copied := &ActionStep{Type: step.Type, Config: copyMap(step.Config)}
		actions[i] = copied
	}

	now := time.Now().UTC()
	t.UsageCount++
	t.UpdatedAt = now

	return &WorkflowDefinition{
		ID:            uuid.New().String(),
		Name:          name,
		Description:   t.Description,
		Status:        WorkflowStatusDraft,
		Version:       1,
		TriggerType:   t.TriggerType,
		TriggerConfig: copyMap(t.TriggerConfig),
		Actions:       actions,
		Variables:     copyMap(t.Variables),
		Owner:         owner,
		WorkspaceID:   workspaceID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}

	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
