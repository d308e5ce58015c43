// Package webhook routes public webhook deliveries to workflow definitions.
// It is a thin lookup layer: payloads pass through to the trigger matcher
// unvalidated.
package webhook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/flowhire/flowhire/pkg/trigger"
)

var ErrNoWebhookRoute = errors.New("no active workflow for webhook id")

type Dispatcher struct {
	persistence persistence.Persistence
	matcher     *trigger.Matcher
	logger      *slog.Logger
}

func NewDispatcher(p persistence.Persistence, matcher *trigger.Matcher, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		persistence: p,
		matcher:     matcher,
		logger:      logger.With("module", "webhook_dispatcher"),
	}
}

// Receive looks up the active definition registered for the webhook id and
// runs it with the raw payload as trigger data. An unknown id yields
// ErrNoWebhookRoute. Several definitions sharing one id is a configuration
// smell: the oldest wins and the collision is logged.
func (d *Dispatcher) Receive(ctx context.Context, webhookID string, payload map[string]any) (*models.WorkflowRun, error) {
	definitions, err := d.persistence.ActiveDefinitionsByTriggerType(ctx, models.TriggerTypeWebhook)
	if err != nil {
		return nil, fmt.Errorf("failed to load webhook definitions: %w", err)
	}

	var matched []*models.WorkflowDefinition

	for _, def := range definitions {
		id, _ := def.TriggerConfig["webhookId"].(string)
		if id != "" && id == webhookID {
			matched = append(matched, def)
		}
	}

	if len(matched) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoWebhookRoute, webhookID)
	}

	// Definitions come back ordered by creation time, so the oldest wins.
	target := matched[0]

	if len(matched) > 1 {
		d.logger.Warn("Multiple active workflows share a webhook id, using the oldest",
			"webhook_id", webhookID,
			"matched", len(matched),
			"workflow_id", target.ID)
	}

	d.logger.Debug("Webhook delivery routed",
		"webhook_id", webhookID,
		"workflow_id", target.ID)

	return d.matcher.TriggerManual(ctx, target.ID, payload)
}
