package web

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/flowhire/flowhire/pkg/engine"
	"github.com/flowhire/flowhire/pkg/ledger"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/flowhire/flowhire/pkg/trigger"
	"github.com/flowhire/flowhire/pkg/webhook"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
)

type APIHandlers struct {
	persistence persistence.Persistence
	ledger      *ledger.Ledger
	matcher     *trigger.Matcher
	approvals   *engine.ApprovalService
	dispatcher  *webhook.Dispatcher
	validator   *validator.Validate
	logger      *slog.Logger
}

func NewAPIHandlers(
	p persistence.Persistence,
	runLedger *ledger.Ledger,
	matcher *trigger.Matcher,
	approvals *engine.ApprovalService,
	dispatcher *webhook.Dispatcher,
	validate *validator.Validate,
	logger *slog.Logger,
) *APIHandlers {
	return &APIHandlers{
		persistence: p,
		ledger:      runLedger,
		matcher:     matcher,
		approvals:   approvals,
		dispatcher:  dispatcher,
		validator:   validate,
		logger:      logger.With("module", "api"),
	}
}

func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	definitions, err := h.persistence.Definitions(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	if statusStr := c.Query("status"); statusStr != "" {
		status := models.WorkflowStatus(statusStr)
		filtered := definitions[:0]

		for _, def := range definitions {
			if def.Status == status {
				filtered = append(filtered, def)
			}
		}

		definitions = filtered
	}

	return c.JSON(fiber.Map{
		"workflows":   definitions,
		"total_count": len(definitions),
	})
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	def, err := h.persistence.DefinitionByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(def)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	triggerType := models.TriggerType(req.TriggerType)
	if err := validateTriggerConfig(triggerType, req.TriggerConfig); err != nil {
		return badRequest(c, err.Error())
	}

	actions, err := buildActions(req.Actions)
	if err != nil {
		return badRequest(c, err.Error())
	}

	now := time.Now().UTC()
	def := &models.WorkflowDefinition{
		ID:            uuid.NewString(),
		Name:          req.Name,
		Description:   req.Description,
		Status:        models.WorkflowStatusDraft,
		Version:       1,
		TriggerType:   triggerType,
		TriggerConfig: req.TriggerConfig,
		Actions:       actions,
		Variables:     req.Variables,
		Owner:         req.Owner,
		WorkspaceID:   req.WorkspaceID,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := h.persistence.SaveDefinition(c.Context(), def); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (h *APIHandlers) UpdateWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req UpdateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def, err := h.persistence.DefinitionByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	if def.Status == models.WorkflowStatusArchived {
		return conflict(c, "archived workflows are not editable")
	}

	if req.Name != nil {
		def.Name = *req.Name
	}

	if req.Description != nil {
		def.Description = *req.Description
	}

	if req.Status != nil {
		def.Status = models.WorkflowStatus(*req.Status)
	}

	if req.Variables != nil {
		def.Variables = req.Variables
	}

	// Program or trigger edits invalidate running snapshots, so they bump the
	// version. Metadata edits do not.
	bump := false

	if req.TriggerConfig != nil {
		if err := validateTriggerConfig(def.TriggerType, req.TriggerConfig); err != nil {
			return badRequest(c, err.Error())
		}

		def.TriggerConfig = req.TriggerConfig
		bump = true
	}

	if req.Actions != nil {
		actions, err := buildActions(*req.Actions)
		if err != nil {
			return badRequest(c, err.Error())
		}

		def.Actions = actions
		bump = true
	}

	if bump {
		def.BumpVersion()
	} else {
		def.UpdatedAt = time.Now().UTC()
	}

	if err := h.persistence.SaveDefinition(c.Context(), def); err != nil {
		return internalError(c, err)
	}

	return c.JSON(def)
}

// DeleteWorkflow hard-deletes drafts; anything that may have produced runs is
// archived instead so the run history keeps a definition to point at.
func (h *APIHandlers) DeleteWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	def, err := h.persistence.DefinitionByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	if def.Status == models.WorkflowStatusDraft {
		if err := h.persistence.DeleteDefinition(c.Context(), id); err != nil {
			return handleError(c, err)
		}

		return c.SendStatus(fiber.StatusNoContent)
	}

	def.Status = models.WorkflowStatusArchived
	def.UpdatedAt = time.Now().UTC()

	if err := h.persistence.SaveDefinition(c.Context(), def); err != nil {
		return internalError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *APIHandlers) TriggerWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	var req TriggerRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	run, err := h.matcher.TriggerManual(c.Context(), id, req.Data)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *APIHandlers) GetWorkflowRuns(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Workflow ID is required")
	}

	limit := 0

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil {
			return badRequest(c, "Invalid limit parameter")
		}

		limit = parsed
	}

	runs, err := h.ledger.History(c.Context(), id, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"runs":        runs,
		"total_count": len(runs),
	})
}

func (h *APIHandlers) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	run, err := h.persistence.RunByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(run)
}

func (h *APIHandlers) ResolveApproval(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Run ID is required")
	}

	var req ApprovalResolutionRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	run, err := h.approvals.Resolve(c.Context(), id, req.Status)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(run)
}

func (h *APIHandlers) GetSchedules(c fiber.Ctx) error {
	schedules, err := h.persistence.Schedules(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"schedules":   schedules,
		"total_count": len(schedules),
	})
}

func (h *APIHandlers) GetSchedule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Schedule ID is required")
	}

	schedule, err := h.persistence.ScheduleByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(schedule)
}

func (h *APIHandlers) CreateSchedule(c fiber.Ctx) error {
	var req CreateScheduleRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	if _, err := h.persistence.DefinitionByID(c.Context(), req.WorkflowID); err != nil {
		return handleError(c, err)
	}

	var nextRunAt time.Time
	if req.NextRunAt != nil {
		nextRunAt = req.NextRunAt.UTC()
	}

	schedule, err := models.NewWorkflowSchedule(
		uuid.NewString(),
		req.WorkflowID,
		models.ScheduleType(req.ScheduleType),
		req.CronExpression,
		req.IntervalSeconds,
		req.Timezone,
		nextRunAt,
	)
	if err != nil {
		return handleError(c, err)
	}

	if err := h.persistence.SaveSchedule(c.Context(), schedule); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(schedule)
}

func (h *APIHandlers) DeleteSchedule(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Schedule ID is required")
	}

	if err := h.persistence.DeleteSchedule(c.Context(), id); err != nil {
		return handleError(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// ReceiveWebhook is the public intake endpoint. The payload is forwarded
// unvalidated as the run's trigger data.
func (h *APIHandlers) ReceiveWebhook(c fiber.Ctx) error {
	webhookID := c.Params("webhookId")
	if webhookID == "" {
		return badRequest(c, "Webhook ID is required")
	}

	payload := map[string]any{}

	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&payload); err != nil {
			return badRequest(c, "Invalid JSON payload")
		}
	}

	run, err := h.dispatcher.Receive(c.Context(), webhookID, payload)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"run_id":      run.ID,
		"workflow_id": run.WorkflowID,
		"status":      run.Status,
	})
}

func (h *APIHandlers) GetTemplates(c fiber.Ctx) error {
	templates, err := h.persistence.Templates(c.Context())
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"templates":   templates,
		"total_count": len(templates),
	})
}

func (h *APIHandlers) InstantiateTemplate(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "Template ID is required")
	}

	var req InstantiateTemplateRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	tmpl, err := h.persistence.TemplateByID(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}

	def := tmpl.Instantiate(req.Name, req.Owner, req.WorkspaceID)

	if err := h.persistence.SaveDefinition(c.Context(), def); err != nil {
		return internalError(c, err)
	}

	if err := h.persistence.SaveTemplate(c.Context(), tmpl); err != nil {
		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(def)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	status := "healthy"
	httpStatus := http.StatusOK

	if err := h.persistence.HealthCheck(c.Context()); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusInternalServerError
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":    status,
		"timestamp": time.Now().UTC(),
	})
}

func buildActions(steps []ActionStepRequest) ([]*models.ActionStep, error) {
	actions := make([]*models.ActionStep, 0, len(steps))

	for _, step := range steps {
		actionType, err := models.ParseActionType(step.Type)
		if err != nil {
			return nil, err
		}

		action := &models.ActionStep{Type: actionType, Config: step.Config}
		if err := action.Validate(); err != nil {
			return nil, err
		}

		actions = append(actions, action)
	}

	return actions, nil
}
