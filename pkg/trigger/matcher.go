// Package trigger maps inbound source events to active workflow definitions
// and turns every match into a pending run handed off to the workers.
package trigger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/events"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/google/uuid"
)

var ErrWorkflowNotExecutable = errors.New("workflow is not active")

type Matcher struct {
	persistence persistence.Persistence
	publisher   eventbus.EventPublisher
	logger      *slog.Logger
}

func NewMatcher(p persistence.Persistence, publisher eventbus.EventPublisher, logger *slog.Logger) *Matcher {
	return &Matcher{
		persistence: p,
		publisher:   publisher,
		logger:      logger.With("module", "trigger_matcher"),
	}
}

// Match finds every active definition the event triggers and creates one
// pending run per match. An event matching nothing is dropped with a debug
// log, never an error. Multiple matches spawn independent runs.
func (m *Matcher) Match(ctx context.Context, event *models.SourceEvent) ([]*models.WorkflowRun, error) {
	if event.TriggerType == models.TriggerTypeManual {
		run, err := m.TriggerManual(ctx, event.WorkflowID, event.Data)
		if err != nil {
			if errors.Is(err, ErrWorkflowNotExecutable) || persistence.IsDefinitionNotFound(err) {
				m.logger.Debug("Manual trigger matched nothing",
					"workflow_id", event.WorkflowID, "error", err)

				return nil, nil
			}

			return nil, err
		}

		return []*models.WorkflowRun{run}, nil
	}

	definitions, err := m.persistence.ActiveDefinitionsByTriggerType(ctx, event.TriggerType)
	if err != nil {
		return nil, fmt.Errorf("failed to load definitions for trigger type %s: %w", event.TriggerType, err)
	}

	var runs []*models.WorkflowRun

	for _, def := range definitions {
		if !m.matches(def, event) {
			continue
		}

		run, err := m.createRun(ctx, def, triggerData(event))
		if err != nil {
			m.logger.Error("Failed to create run for matched definition",
				"workflow_id", def.ID,
				"trigger_type", event.TriggerType,
				"error", err)

			continue
		}

		runs = append(runs, run)
	}

	if len(runs) == 0 {
		m.logger.Debug("Event matched no workflow",
			"event_id", event.ID,
			"trigger_type", event.TriggerType)
	}

	return runs, nil
}

// TriggerManual runs one definition by explicit ID. Only active definitions
// are executable; anything else is rejected so drafts never run by accident.
func (m *Matcher) TriggerManual(ctx context.Context, workflowID string, data map[string]any) (*models.WorkflowRun, error) {
	def, err := m.persistence.DefinitionByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !def.IsExecutable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowNotExecutable, workflowID, def.Status)
	}

	return m.createRun(ctx, def, data)
}

// TriggerScheduled fires one definition on behalf of the scheduler with the
// firing instant as trigger data.
func (m *Matcher) TriggerScheduled(ctx context.Context, workflowID string, scheduledAt time.Time) (*models.WorkflowRun, error) {
	def, err := m.persistence.DefinitionByID(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if !def.IsExecutable() {
		return nil, fmt.Errorf("%w: %s is %s", ErrWorkflowNotExecutable, workflowID, def.Status)
	}

	return m.createRun(ctx, def, map[string]any{
		"scheduledAt": scheduledAt.UTC().Format(time.RFC3339),
	})
}

func (m *Matcher) matches(def *models.WorkflowDefinition, event *models.SourceEvent) bool {
	switch event.TriggerType {
	case models.TriggerTypeEvent:
		eventType, _ := def.TriggerConfig["eventType"].(string)

		return eventType != "" && eventType == event.EventType
	case models.TriggerTypeMessage:
		return matchesMessage(def.TriggerConfig, event)
	case models.TriggerTypeWebhook:
		webhookID, _ := def.TriggerConfig["webhookId"].(string)

		return webhookID != "" && webhookID == event.WebhookID
	case models.TriggerTypeFormSubmission:
		formID, _ := def.TriggerConfig["formId"].(string)

		return formID == "" || formID == event.EventType
	default:
		// schedule is owned by the scheduler; manual is handled above.
		return false
	}
}

// matchesMessage applies case-insensitive keyword substring matching,
// optionally scoped to a single channel.
func matchesMessage(config map[string]any, event *models.SourceEvent) bool {
	if channelID, ok := config["channelId"].(string); ok && channelID != "" && channelID != event.ChannelID {
		return false
	}

	keyword, _ := config["keyword"].(string)
	if keyword == "" {
		return false
	}

	return strings.Contains(strings.ToLower(event.Text), strings.ToLower(keyword))
}

func (m *Matcher) createRun(ctx context.Context, def *models.WorkflowDefinition, data map[string]any) (*models.WorkflowRun, error) {
	run := models.NewWorkflowRun(def, data)

	if err := m.persistence.SaveRun(ctx, run); err != nil {
		return nil, persistence.NewRunError("CreateRun", run.ID, err)
	}

	m.logger.Info("Run created",
		"run_id", run.ID,
		"workflow_id", def.ID,
		"workflow_version", def.Version,
		"trigger_type", def.TriggerType)

	event := events.RunQueued{
		BaseEvent: events.BaseEvent{
			ID:         uuid.NewString(),
			Type:       events.RunQueuedEvent,
			Timestamp:  time.Now().UTC(),
			WorkflowID: def.ID,
		},
		RunID:           run.ID,
		WorkflowVersion: def.Version,
		TriggerType:     string(def.TriggerType),
		TriggerData:     data,
	}

	if err := m.publisher.Publish(ctx, def.ID, event); err != nil {
		return nil, fmt.Errorf("failed to enqueue run %s: %w", run.ID, err)
	}

	return run, nil
}

func triggerData(event *models.SourceEvent) map[string]any {
	data := make(map[string]any, len(event.Data)+2)
	for k, v := range event.Data {
		data[k] = v
	}

	switch event.TriggerType {
	case models.TriggerTypeEvent, models.TriggerTypeFormSubmission:
		data["eventType"] = event.EventType
	case models.TriggerTypeMessage:
		data["text"] = event.Text

		if event.ChannelID != "" {
			data["channelId"] = event.ChannelID
		}
	}

	return data
}
