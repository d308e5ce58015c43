package web_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/flowhire/flowhire/pkg/engine"
	"github.com/flowhire/flowhire/pkg/eventbus"
	"github.com/flowhire/flowhire/pkg/ledger"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence/memory"
	"github.com/flowhire/flowhire/pkg/trigger"
	"github.com/flowhire/flowhire/pkg/web"
	"github.com/flowhire/flowhire/pkg/webhook"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noopPublisher struct{}

func (p *noopPublisher) Publish(_ context.Context, _ string, _ eventbus.Event) error {
	return nil
}

func setupTestApp(t *testing.T) (*fiber.App, *memory.Persistence) {
	t.Helper()

	store := memory.NewPersistence()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	publisher := &noopPublisher{}

	runLedger := ledger.NewLedger(store, logger)
	matcher := trigger.NewMatcher(store, publisher, logger)
	approvals := engine.NewApprovalService(store, runLedger, publisher, logger)
	dispatcher := webhook.NewDispatcher(store, matcher, logger)
	validate := validator.New(validator.WithRequiredStructEnabled())

	handlers := web.NewAPIHandlers(store, runLedger, matcher, approvals, dispatcher, validate, logger)

	app := fiber.New()

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Post("/:id/run", handlers.TriggerWorkflow)
	w.Get("/:id/runs", handlers.GetWorkflowRuns)

	r := app.Group("/runs")
	r.Get("/:id", handlers.GetRun)
	r.Post("/:id/approval", handlers.ResolveApproval)

	s := app.Group("/schedules")
	s.Get("/", handlers.GetSchedules)
	s.Post("/", handlers.CreateSchedule)
	s.Get("/:id", handlers.GetSchedule)
	s.Delete("/:id", handlers.DeleteSchedule)

	tpl := app.Group("/templates")
	tpl.Get("/", handlers.GetTemplates)
	tpl.Post("/:id/instantiate", handlers.InstantiateTemplate)

	app.Post("/webhook/:webhookId", handlers.ReceiveWebhook)
	app.Get("/health", handlers.HealthCheck)

	return app, store
}

func doJSON(t *testing.T, app *fiber.App, method, target string, requestBody any) (*http.Response, []byte) {
	t.Helper()

	var body []byte

	switch v := requestBody.(type) {
	case nil:
	case string:
		body = []byte(v)
	default:
		marshaled, err := json.Marshal(v)
		require.NoError(t, err)

		body = marshaled
	}

	req := httptest.NewRequest(method, target, bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)

	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	return resp, respBody
}

func saveActiveDefinition(t *testing.T, store *memory.Persistence, id string, triggerType models.TriggerType, config map[string]any) {
	t.Helper()

	require.NoError(t, store.SaveDefinition(context.Background(), &models.WorkflowDefinition{
		ID:            id,
		Name:          "Definition " + id,
		Status:        models.WorkflowStatusActive,
		Version:       1,
		TriggerType:   triggerType,
		TriggerConfig: config,
		Owner:         "test-user",
	}))
}

func TestAPIHandlers_CreateWorkflow(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		requestBody    any
		expectedStatus int
		validateResult func(t *testing.T, body []byte)
	}{
		{
			name: "successful creation",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Interview follow-up",
				Description: "Sends a follow-up after every interview",
				TriggerType: "event",
				TriggerConfig: map[string]any{
					"eventType": "interview_completed",
				},
				Actions: []web.ActionStepRequest{
					{Type: "send_email", Config: map[string]any{"to": "{{trigger.entity.email}}"}},
				},
				Owner: "test-user",
			},
			expectedStatus: http.StatusCreated,
			validateResult: func(t *testing.T, body []byte) {
				t.Helper()

				var def models.WorkflowDefinition

				require.NoError(t, json.Unmarshal(body, &def))
				assert.NotEmpty(t, def.ID)
				assert.Equal(t, models.WorkflowStatusDraft, def.Status)
				assert.Equal(t, 1, def.Version)
				assert.Equal(t, models.TriggerTypeEvent, def.TriggerType)
				assert.Len(t, def.Actions, 1)
			},
		},
		{
			name: "validation error - name too short",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Hi",
				TriggerType: "manual",
				Owner:       "test-user",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - missing owner",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Interview follow-up",
				TriggerType: "manual",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "validation error - unknown trigger type",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Interview follow-up",
				TriggerType: "telepathy",
				Owner:       "test-user",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "webhook trigger requires webhookId",
			requestBody: web.CreateWorkflowRequest{
				Name:          "Inbound applications",
				TriggerType:   "webhook",
				TriggerConfig: map[string]any{},
				Owner:         "test-user",
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "unknown action type",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Interview follow-up",
				TriggerType: "manual",
				Owner:       "test-user",
				Actions: []web.ActionStepRequest{
					{Type: "teleport_candidate"},
				},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name: "delay action without seconds",
			requestBody: web.CreateWorkflowRequest{
				Name:        "Interview follow-up",
				TriggerType: "manual",
				Owner:       "test-user",
				Actions: []web.ActionStepRequest{
					{Type: "delay", Config: map[string]any{}},
				},
			},
			expectedStatus: http.StatusBadRequest,
		},
		{
			name:           "invalid JSON",
			requestBody:    "not-json",
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			app, _ := setupTestApp(t)

			resp, body := doJSON(t, app, http.MethodPost, "/workflows", tt.requestBody)
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.validateResult != nil {
				tt.validateResult(t, body)
			}
		})
	}
}

func TestAPIHandlers_UpdateWorkflow_ActionsChangeBumpsVersion(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	saveActiveDefinition(t, store, "wf-update", models.TriggerTypeManual, nil)

	actions := []web.ActionStepRequest{
		{Type: "create_task", Config: map[string]any{"title": "Review resume"}},
	}

	resp, body := doJSON(t, app, http.MethodPatch, "/workflows/wf-update", web.UpdateWorkflowRequest{
		Actions: &actions,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var def models.WorkflowDefinition

	require.NoError(t, json.Unmarshal(body, &def))
	assert.Equal(t, 2, def.Version)
	assert.Len(t, def.Actions, 1)
}

func TestAPIHandlers_UpdateWorkflow_MetadataOnlyKeepsVersion(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	saveActiveDefinition(t, store, "wf-meta", models.TriggerTypeManual, nil)

	name := "Renamed workflow"

	resp, body := doJSON(t, app, http.MethodPatch, "/workflows/wf-meta", web.UpdateWorkflowRequest{
		Name: &name,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var def models.WorkflowDefinition

	require.NoError(t, json.Unmarshal(body, &def))
	assert.Equal(t, 1, def.Version)
	assert.Equal(t, "Renamed workflow", def.Name)
}

func TestAPIHandlers_UpdateWorkflow_ArchivedIsImmutable(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	require.NoError(t, store.SaveDefinition(context.Background(), &models.WorkflowDefinition{
		ID:          "wf-archived",
		Name:        "Archived workflow",
		Status:      models.WorkflowStatusArchived,
		Version:     3,
		TriggerType: models.TriggerTypeManual,
	}))

	name := "Should not apply"

	resp, _ := doJSON(t, app, http.MethodPatch, "/workflows/wf-archived", web.UpdateWorkflowRequest{
		Name: &name,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_GetWorkflow_NotFound(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/workflows/wf-missing", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_DeleteWorkflow_DraftIsHardDeleted(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, store.SaveDefinition(ctx, &models.WorkflowDefinition{
		ID:          "wf-draft",
		Name:        "Draft workflow",
		Status:      models.WorkflowStatusDraft,
		Version:     1,
		TriggerType: models.TriggerTypeManual,
	}))

	resp, _ := doJSON(t, app, http.MethodDelete, "/workflows/wf-draft", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	_, err := store.DefinitionByID(ctx, "wf-draft")
	assert.Error(t, err)
}

func TestAPIHandlers_DeleteWorkflow_ActiveIsArchived(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	saveActiveDefinition(t, store, "wf-live", models.TriggerTypeManual, nil)

	resp, _ := doJSON(t, app, http.MethodDelete, "/workflows/wf-live", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	def, err := store.DefinitionByID(context.Background(), "wf-live")
	require.NoError(t, err)
	assert.Equal(t, models.WorkflowStatusArchived, def.Status)
}

func TestAPIHandlers_TriggerWorkflow(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	saveActiveDefinition(t, store, "wf-run", models.TriggerTypeManual, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/workflows/wf-run/run", web.TriggerRunRequest{
		Data: map[string]any{"requested_by": "ops"},
	})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var run models.WorkflowRun

	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, models.RunStatusPending, run.Status)
	assert.Equal(t, "ops", run.TriggerData["requested_by"])
}

func TestAPIHandlers_TriggerWorkflow_DraftIsNotExecutable(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)

	require.NoError(t, store.SaveDefinition(context.Background(), &models.WorkflowDefinition{
		ID:          "wf-draft-run",
		Name:        "Draft workflow",
		Status:      models.WorkflowStatusDraft,
		Version:     1,
		TriggerType: models.TriggerTypeManual,
	}))

	resp, _ := doJSON(t, app, http.MethodPost, "/workflows/wf-draft-run/run", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_ReceiveWebhook(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	saveActiveDefinition(t, store, "wf-hook", models.TriggerTypeWebhook,
		map[string]any{"webhookId": "hook-1"})

	resp, body := doJSON(t, app, http.MethodPost, "/webhook/hook-1",
		map[string]any{"candidate": map[string]any{"name": "Ada"}})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var result map[string]any

	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "wf-hook", result["workflow_id"])
	assert.NotEmpty(t, result["run_id"])
}

func TestAPIHandlers_ReceiveWebhook_UnknownID(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/webhook/hook-missing", map[string]any{})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_ResolveApproval(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	ctx := context.Background()
	saveActiveDefinition(t, store, "wf-approval", models.TriggerTypeManual, nil)

	def, err := store.DefinitionByID(ctx, "wf-approval")
	require.NoError(t, err)

	run := models.NewWorkflowRun(def, nil)
	run.Status = models.RunStatusPaused
	require.NoError(t, store.SaveRun(ctx, run))

	resp, body := doJSON(t, app, http.MethodPost, "/runs/"+run.ID+"/approval",
		web.ApprovalResolutionRequest{Status: "approved"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var resolved models.WorkflowRun

	require.NoError(t, json.Unmarshal(body, &resolved))
	assert.Equal(t, "approved", resolved.Variables["approval_status"])
}

func TestAPIHandlers_ResolveApproval_RejectsWrongState(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	ctx := context.Background()
	saveActiveDefinition(t, store, "wf-noapproval", models.TriggerTypeManual, nil)

	def, err := store.DefinitionByID(ctx, "wf-noapproval")
	require.NoError(t, err)

	run := models.NewWorkflowRun(def, nil)
	require.NoError(t, store.SaveRun(ctx, run))

	resp, _ := doJSON(t, app, http.MethodPost, "/runs/"+run.ID+"/approval",
		web.ApprovalResolutionRequest{Status: "approved"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIHandlers_CreateSchedule(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	saveActiveDefinition(t, store, "wf-sched", models.TriggerTypeSchedule, nil)

	resp, body := doJSON(t, app, http.MethodPost, "/schedules", web.CreateScheduleRequest{
		WorkflowID:     "wf-sched",
		ScheduleType:   "recurring",
		CronExpression: "0 9 * * 1",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var schedule models.WorkflowSchedule

	require.NoError(t, json.Unmarshal(body, &schedule))
	assert.True(t, schedule.IsActive)
	assert.False(t, schedule.NextRunAt.IsZero())
}

func TestAPIHandlers_CreateSchedule_BadCron(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	saveActiveDefinition(t, store, "wf-badcron", models.TriggerTypeSchedule, nil)

	resp, _ := doJSON(t, app, http.MethodPost, "/schedules", web.CreateScheduleRequest{
		WorkflowID:     "wf-badcron",
		ScheduleType:   "recurring",
		CronExpression: "every monday at nine",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPIHandlers_CreateSchedule_UnknownWorkflow(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/schedules", web.CreateScheduleRequest{
		WorkflowID:     "wf-missing",
		ScheduleType:   "recurring",
		CronExpression: "0 9 * * 1",
	})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPIHandlers_InstantiateTemplate(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTemplate(ctx, &models.WorkflowTemplate{
		ID:          "tpl-1",
		Name:        "Offer follow-up",
		TriggerType: models.TriggerTypeEvent,
		TriggerConfig: map[string]any{
			"eventType": "offer_sent",
		},
		Actions: []*models.ActionStep{
			{Type: models.ActionTypeSendEmail, Config: map[string]any{"to": "{{trigger.entity.email}}"}},
		},
	}))

	resp, body := doJSON(t, app, http.MethodPost, "/templates/tpl-1/instantiate",
		web.InstantiateTemplateRequest{Owner: "ada"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var def models.WorkflowDefinition

	require.NoError(t, json.Unmarshal(body, &def))
	assert.Equal(t, models.WorkflowStatusDraft, def.Status)
	assert.Equal(t, "Offer follow-up", def.Name)
	assert.Equal(t, "ada", def.Owner)

	tmpl, err := store.TemplateByID(ctx, "tpl-1")
	require.NoError(t, err)
	assert.Equal(t, 1, tmpl.UsageCount)
}

func TestAPIHandlers_GetWorkflowRuns_ReturnsHistory(t *testing.T) {
	t.Parallel()

	app, store := setupTestApp(t)
	ctx := context.Background()
	saveActiveDefinition(t, store, "wf-history", models.TriggerTypeManual, nil)

	def, err := store.DefinitionByID(ctx, "wf-history")
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, store.SaveRun(ctx, models.NewWorkflowRun(def, nil)))
	}

	resp, body := doJSON(t, app, http.MethodGet, "/workflows/wf-history/runs?limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result struct {
		Runs       []models.WorkflowRun `json:"runs"`
		TotalCount int                  `json:"total_count"`
	}

	require.NoError(t, json.Unmarshal(body, &result))
	assert.Len(t, result.Runs, 2)
	assert.Equal(t, 2, result.TotalCount)
}

func TestAPIHandlers_HealthCheck(t *testing.T) {
	t.Parallel()

	app, _ := setupTestApp(t)

	resp, body := doJSON(t, app, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var result map[string]any

	require.NoError(t, json.Unmarshal(body, &result))
	assert.Equal(t, "healthy", result["status"])
}
