package webhook

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence/memory"
	"github.com/flowhire/flowhire/pkg/trigger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopPublisher struct {
	mu    sync.Mutex
	count int
}

func (p *noopPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.count++

	return nil
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	matcher := trigger.NewMatcher(store, &noopPublisher{}, logger)

	return NewDispatcher(store, matcher, logger), store
}

func saveWebhookWorkflow(t *testing.T, store *memory.Persistence, id, webhookID string, createdAt time.Time) {
	t.Helper()

	require.NoError(t, store.SaveDefinition(context.Background(), &models.WorkflowDefinition{
		ID:            id,
		Name:          "Webhook workflow " + id,
		Status:        models.WorkflowStatusActive,
		Version:       1,
		TriggerType:   models.TriggerTypeWebhook,
		TriggerConfig: map[string]any{"webhookId": webhookID},
		CreatedAt:     createdAt,
	}))
}

func TestReceive_RoutesToRegisteredWorkflow(t *testing.T) {
	ctx := context.Background()
	dispatcher, store := newTestDispatcher(t)

	saveWebhookWorkflow(t, store, "wf-hook", "hook-1", time.Now().UTC())

	payload := map[string]any{"source": "indeed", "candidate": map[string]any{"name": "Ada"}}

	run, err := dispatcher.Receive(ctx, "hook-1", payload)
	require.NoError(t, err)

	assert.Equal(t, "wf-hook", run.WorkflowID)
	assert.Equal(t, models.RunStatusPending, run.Status)

	// The raw payload passes through unvalidated as trigger data.
	assert.Equal(t, "indeed", run.TriggerData["source"])
	assert.Equal(t, "Ada", run.TriggerData["candidate"].(map[string]any)["name"])
}

func TestReceive_UnknownIDHasNoRoute(t *testing.T) {
	ctx := context.Background()
	dispatcher, _ := newTestDispatcher(t)

	_, err := dispatcher.Receive(ctx, "hook-missing", map[string]any{})
	assert.ErrorIs(t, err, ErrNoWebhookRoute)
}

func TestReceive_InactiveWorkflowHasNoRoute(t *testing.T) {
	ctx := context.Background()
	dispatcher, store := newTestDispatcher(t)

	require.NoError(t, store.SaveDefinition(ctx, &models.WorkflowDefinition{
		ID:            "wf-off",
		Name:          "Disabled webhook workflow",
		Status:        models.WorkflowStatusInactive,
		Version:       1,
		TriggerType:   models.TriggerTypeWebhook,
		TriggerConfig: map[string]any{"webhookId": "hook-off"},
	}))

	_, err := dispatcher.Receive(ctx, "hook-off", map[string]any{})
	assert.ErrorIs(t, err, ErrNoWebhookRoute)
}

func TestReceive_SharedIDGoesToOldestDefinition(t *testing.T) {
	ctx := context.Background()
	dispatcher, store := newTestDispatcher(t)
	now := time.Now().UTC()

	saveWebhookWorkflow(t, store, "wf-newer", "hook-shared", now.Add(time.Hour))
	saveWebhookWorkflow(t, store, "wf-older", "hook-shared", now)

	run, err := dispatcher.Receive(ctx, "hook-shared", map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "wf-older", run.WorkflowID)
}
