package memory

import (
	"context"
	"testing"
	"time"

	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeDefinition(id string, triggerType models.TriggerType, createdAt time.Time) *models.WorkflowDefinition {
	return &models.WorkflowDefinition{
		ID:          id,
		Name:        "Definition " + id,
		Status:      models.WorkflowStatusActive,
		Version:     1,
		TriggerType: triggerType,
		CreatedAt:   createdAt,
	}
}

func TestActiveDefinitionsByTriggerType_FiltersStatusAndType(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()
	now := time.Now().UTC()

	require.NoError(t, store.SaveDefinition(ctx, activeDefinition("wf-event", models.TriggerTypeEvent, now)))
	require.NoError(t, store.SaveDefinition(ctx, activeDefinition("wf-webhook", models.TriggerTypeWebhook, now)))

	draft := activeDefinition("wf-draft", models.TriggerTypeEvent, now)
	draft.Status = models.WorkflowStatusDraft
	require.NoError(t, store.SaveDefinition(ctx, draft))

	defs, err := store.ActiveDefinitionsByTriggerType(ctx, models.TriggerTypeEvent)
	require.NoError(t, err)
	require.Len(t, defs, 1)
	assert.Equal(t, "wf-event", defs[0].ID)
}

func TestDefinitions_SortedByCreation(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()
	now := time.Now().UTC()

	require.NoError(t, store.SaveDefinition(ctx, activeDefinition("wf-new", models.TriggerTypeEvent, now.Add(time.Hour))))
	require.NoError(t, store.SaveDefinition(ctx, activeDefinition("wf-old", models.TriggerTypeEvent, now)))

	defs, err := store.Definitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, 2)
	assert.Equal(t, "wf-old", defs[0].ID)
}

func TestReadsReturnCopies(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	def := activeDefinition("wf-copy", models.TriggerTypeEvent, time.Now().UTC())
	def.Variables = map[string]any{"team": "recruiting"}
	require.NoError(t, store.SaveDefinition(ctx, def))

	loaded, err := store.DefinitionByID(ctx, "wf-copy")
	require.NoError(t, err)

	loaded.Variables["team"] = "mutated"

	reloaded, err := store.DefinitionByID(ctx, "wf-copy")
	require.NoError(t, err)
	assert.Equal(t, "recruiting", reloaded.Variables["team"])
}

func TestClaimRun_ExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	def := activeDefinition("wf-claim", models.TriggerTypeEvent, time.Now().UTC())
	run := models.NewWorkflowRun(def, nil)
	require.NoError(t, store.SaveRun(ctx, run))

	claimed, err := store.ClaimRun(ctx, run.ID, models.RunStatusPending, "worker-a")
	require.NoError(t, err)
	assert.Equal(t, "worker-a", claimed.ClaimToken)

	_, err = store.ClaimRun(ctx, run.ID, models.RunStatusPending, "worker-b")
	assert.True(t, persistence.IsClaimConflict(err))
}

func TestClaimRun_RejectsUnexpectedStatus(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	def := activeDefinition("wf-claim2", models.TriggerTypeEvent, time.Now().UTC())
	run := models.NewWorkflowRun(def, nil)
	run.Status = models.RunStatusRunning
	require.NoError(t, store.SaveRun(ctx, run))

	_, err := store.ClaimRun(ctx, run.ID, models.RunStatusPending, "worker-a")
	assert.True(t, persistence.IsClaimConflict(err))
}

func TestPausedRunsDue_SkipsApprovalPauses(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()
	now := time.Now().UTC()

	def := activeDefinition("wf-due", models.TriggerTypeEvent, now)

	due := models.NewWorkflowRun(def, nil)
	due.Status = models.RunStatusPaused
	past := now.Add(-time.Minute)
	due.ResumeAt = &past
	require.NoError(t, store.SaveRun(ctx, due))

	future := models.NewWorkflowRun(def, nil)
	future.Status = models.RunStatusPaused
	later := now.Add(time.Hour)
	future.ResumeAt = &later
	require.NoError(t, store.SaveRun(ctx, future))

	approval := models.NewWorkflowRun(def, nil)
	approval.Status = models.RunStatusPaused
	require.NoError(t, store.SaveRun(ctx, approval))

	runs, err := store.PausedRunsDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, due.ID, runs[0].ID)
}

func TestRunsByWorkflow_NewestFirstAndLimited(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()
	now := time.Now().UTC()

	def := activeDefinition("wf-runs", models.TriggerTypeEvent, now)

	var newest *models.WorkflowRun

	for i := 0; i < 3; i++ {
		run := models.NewWorkflowRun(def, nil)
		run.StartedAt = now.Add(time.Duration(i) * time.Second)
		require.NoError(t, store.SaveRun(ctx, run))
		newest = run
	}

	runs, err := store.RunsByWorkflow(ctx, "wf-runs", 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newest.ID, runs[0].ID)
}

func TestDueSchedules_OnlyActiveAndDue(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()
	now := time.Now().UTC()

	due := &models.WorkflowSchedule{
		ID:           "sched-due",
		WorkflowID:   "wf-1",
		ScheduleType: models.ScheduleTypeOnce,
		NextRunAt:    now.Add(-time.Minute),
		IsActive:     true,
	}
	require.NoError(t, store.SaveSchedule(ctx, due))

	inactive := &models.WorkflowSchedule{
		ID:           "sched-inactive",
		WorkflowID:   "wf-1",
		ScheduleType: models.ScheduleTypeOnce,
		NextRunAt:    now.Add(-time.Minute),
		IsActive:     false,
	}
	require.NoError(t, store.SaveSchedule(ctx, inactive))

	schedules, err := store.DueSchedules(ctx, now)
	require.NoError(t, err)
	require.Len(t, schedules, 1)
	assert.Equal(t, "sched-due", schedules[0].ID)
}

func TestNotFoundErrors(t *testing.T) {
	ctx := context.Background()
	store := NewPersistence()

	_, err := store.DefinitionByID(ctx, "nope")
	assert.True(t, persistence.IsDefinitionNotFound(err))

	_, err = store.RunByID(ctx, "nope")
	assert.True(t, persistence.IsRunNotFound(err))

	_, err = store.ScheduleByID(ctx, "nope")
	assert.True(t, persistence.IsScheduleNotFound(err))

	_, err = store.TemplateByID(ctx, "nope")
	assert.True(t, persistence.IsTemplateNotFound(err))
}
