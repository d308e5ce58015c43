// Package persistence provides the storage abstraction for workflow
// definitions, runs, schedules and templates. The engine is storage-agnostic;
// implementations only need to honor the query and claim semantics below.
package persistence

import (
	"context"
	"time"

	"github.com/flowhire/flowhire/pkg/models"
)

type Persistence interface {
	Definitions(ctx context.Context) ([]*models.WorkflowDefinition, error)
	DefinitionByID(ctx context.Context, id string) (*models.WorkflowDefinition, error)
	// ActiveDefinitionsByTriggerType returns only active definitions, the sole
	// population eligible for trigger matching.
	ActiveDefinitionsByTriggerType(ctx context.Context, triggerType models.TriggerType) ([]*models.WorkflowDefinition, error)
	SaveDefinition(ctx context.Context, def *models.WorkflowDefinition) error
	DeleteDefinition(ctx context.Context, id string) error

	SaveRun(ctx context.Context, run *models.WorkflowRun) error
	RunByID(ctx context.Context, id string) (*models.WorkflowRun, error)
	// RunsByWorkflow returns runs newest-first, capped at limit when limit > 0.
	RunsByWorkflow(ctx context.Context, workflowID string, limit int) ([]*models.WorkflowRun, error)
	// PausedRunsDue returns paused runs whose ResumeAt is set and not after
	// now. Approval pauses carry no ResumeAt and are never returned.
	PausedRunsDue(ctx context.Context, now time.Time) ([]*models.WorkflowRun, error)
	// ClaimRun atomically stamps an unclaimed run in the expected status with
	// the caller's claim token. A run already claimed, or no longer in the
	// expected status, yields ErrClaimConflict. At most one caller wins.
	ClaimRun(ctx context.Context, id string, expected models.RunStatus, token string) (*models.WorkflowRun, error)

	Schedules(ctx context.Context) ([]*models.WorkflowSchedule, error)
	ScheduleByID(ctx context.Context, id string) (*models.WorkflowSchedule, error)
	SaveSchedule(ctx context.Context, schedule *models.WorkflowSchedule) error
	DeleteSchedule(ctx context.Context, id string) error
	// DueSchedules returns active schedules with NextRunAt <= now.
	DueSchedules(ctx context.Context, now time.Time) ([]*models.WorkflowSchedule, error)

	Templates(ctx context.Context) ([]*models.WorkflowTemplate, error)
	TemplateByID(ctx context.Context, id string) (*models.WorkflowTemplate, error)
	SaveTemplate(ctx context.Context, template *models.WorkflowTemplate) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
