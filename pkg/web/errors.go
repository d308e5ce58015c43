package web

import (
	"errors"

	"github.com/flowhire/flowhire/pkg/engine"
	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/flowhire/flowhire/pkg/trigger"
	"github.com/flowhire/flowhire/pkg/webhook"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(400).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func notFound(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(404).
		WithInstance(c.Path()).
		WithType("not_found").
		WithDetail(detail)

	return c.Status(fiber.StatusNotFound).JSON(problem)
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(409).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return c.Status(fiber.StatusConflict).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(500).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// handleError maps domain errors to problem responses.
func handleError(c fiber.Ctx, err error) error {
	switch {
	case persistence.IsDefinitionNotFound(err):
		return notFound(c, "workflow not found")
	case persistence.IsRunNotFound(err):
		return notFound(c, "run not found")
	case persistence.IsScheduleNotFound(err):
		return notFound(c, "schedule not found")
	case persistence.IsTemplateNotFound(err):
		return notFound(c, "template not found")
	case errors.Is(err, webhook.ErrNoWebhookRoute):
		return notFound(c, "no workflow registered for this webhook")
	case errors.Is(err, trigger.ErrWorkflowNotExecutable):
		return conflict(c, "workflow is not active")
	case errors.Is(err, engine.ErrNotAwaitingApproval):
		return conflict(c, "run is not awaiting approval")
	case persistence.IsClaimConflict(err):
		return conflict(c, "run is claimed by another worker")
	case errors.Is(err, models.ErrInvalidSchedule):
		return badRequest(c, err.Error())
	default:
		return internalError(c, err)
	}
}
