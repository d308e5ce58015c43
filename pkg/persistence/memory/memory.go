// Package memory provides an in-memory persistence implementation. It backs
// tests and single-process deployments; every read and write deep-copies so
// callers never share mutable state with the store.
package memory

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/persistence"
)

// Persistence implements persistence.Persistence with mutex-guarded maps.
type Persistence struct {
	mu          sync.RWMutex
	definitions map[string]*models.WorkflowDefinition
	runs        map[string]*models.WorkflowRun
	schedules   map[string]*models.WorkflowSchedule
	templates   map[string]*models.WorkflowTemplate
}

// NewPersistence creates an empty in-memory store.
func NewPersistence() *Persistence {
	return &Persistence{
		definitions: make(map[string]*models.WorkflowDefinition),
		runs:        make(map[string]*models.WorkflowRun),
		schedules:   make(map[string]*models.WorkflowSchedule),
		templates:   make(map[string]*models.WorkflowTemplate),
	}
}

func (p *Persistence) Definitions(_ context.Context) ([]*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*models.WorkflowDefinition, 0, len(p.definitions))
	for _, def := range p.definitions {
		out = append(out, clone(def))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (p *Persistence) DefinitionByID(_ context.Context, id string) (*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	def, ok := p.definitions[id]
	if !ok {
		return nil, persistence.NewDefinitionError("GetByID", id, persistence.ErrDefinitionNotFound)
	}

	return clone(def), nil
}

func (p *Persistence) ActiveDefinitionsByTriggerType(_ context.Context, triggerType models.TriggerType) ([]*models.WorkflowDefinition, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*models.WorkflowDefinition

	for _, def := range p.definitions {
		if def.Status == models.WorkflowStatusActive && def.TriggerType == triggerType {
			out = append(out, clone(def))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (p *Persistence) SaveDefinition(_ context.Context, def *models.WorkflowDefinition) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.definitions[def.ID] = clone(def)

	return nil
}

func (p *Persistence) DeleteDefinition(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.definitions[id]; !ok {
		return persistence.NewDefinitionError("Delete", id, persistence.ErrDefinitionNotFound)
	}

	delete(p.definitions, id)

	return nil
}

func (p *Persistence) SaveRun(_ context.Context, run *models.WorkflowRun) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.runs[run.ID] = clone(run)

	return nil
}

func (p *Persistence) RunByID(_ context.Context, id string) (*models.WorkflowRun, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	run, ok := p.runs[id]
	if !ok {
		return nil, persistence.NewRunError("GetByID", id, persistence.ErrRunNotFound)
	}

	return clone(run), nil
}

func (p *Persistence) RunsByWorkflow(_ context.Context, workflowID string, limit int) ([]*models.WorkflowRun, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*models.WorkflowRun

	for _, run := range p.runs {
		if run.WorkflowID == workflowID {
			out = append(out, clone(run))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}

	return out, nil
}

func (p *Persistence) PausedRunsDue(_ context.Context, now time.Time) ([]*models.WorkflowRun, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*models.WorkflowRun

	for _, run := range p.runs {
		if run.Status != models.RunStatusPaused || run.ResumeAt == nil {
			continue
		}

		if !run.ResumeAt.After(now) {
			out = append(out, clone(run))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ResumeAt.Before(*out[j].ResumeAt) })

	return out, nil
}

func (p *Persistence) ClaimRun(_ context.Context, id string, expected models.RunStatus, token string) (*models.WorkflowRun, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	run, ok := p.runs[id]
	if !ok {
		return nil, persistence.NewRunError("Claim", id, persistence.ErrRunNotFound)
	}

	if run.Status != expected || run.ClaimToken != "" {
		return nil, persistence.NewRunError("Claim", id, persistence.ErrClaimConflict)
	}

	run.ClaimToken = token

	return clone(run), nil
}

func (p *Persistence) Schedules(_ context.Context) ([]*models.WorkflowSchedule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*models.WorkflowSchedule, 0, len(p.schedules))
	for _, schedule := range p.schedules {
		out = append(out, clone(schedule))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (p *Persistence) ScheduleByID(_ context.Context, id string) (*models.WorkflowSchedule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	schedule, ok := p.schedules[id]
	if !ok {
		return nil, &persistence.ScheduleError{Op: "GetByID", ScheduleID: id, Err: persistence.ErrScheduleNotFound}
	}

	return clone(schedule), nil
}

func (p *Persistence) SaveSchedule(_ context.Context, schedule *models.WorkflowSchedule) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.schedules[schedule.ID] = clone(schedule)

	return nil
}

func (p *Persistence) DeleteSchedule(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, ok := p.schedules[id]; !ok {
		return &persistence.ScheduleError{Op: "Delete", ScheduleID: id, Err: persistence.ErrScheduleNotFound}
	}

	delete(p.schedules, id)

	return nil
}

func (p *Persistence) DueSchedules(_ context.Context, now time.Time) ([]*models.WorkflowSchedule, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	var out []*models.WorkflowSchedule

	for _, schedule := range p.schedules {
		if schedule.IsDue(now) {
			out = append(out, clone(schedule))
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].NextRunAt.Before(out[j].NextRunAt) })

	return out, nil
}

func (p *Persistence) Templates(_ context.Context) ([]*models.WorkflowTemplate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]*models.WorkflowTemplate, 0, len(p.templates))
	for _, template := range p.templates {
		out = append(out, clone(template))
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })

	return out, nil
}

func (p *Persistence) TemplateByID(_ context.Context, id string) (*models.WorkflowTemplate, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	template, ok := p.templates[id]
	if !ok {
		return nil, persistence.ErrTemplateNotFound
	}

	return clone(template), nil
}

func (p *Persistence) SaveTemplate(_ context.Context, template *models.WorkflowTemplate) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.templates[template.ID] = clone(template)

	return nil
}

func (p *Persistence) HealthCheck(_ context.Context) error {
	return nil
}

func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// clone deep-copies an entity through its JSON form, the same representation
// durable backends store.
func clone[T any](in *T) *T {
	data, err := json.Marshal(in)
	if err != nil {
		panic(err)
	}

	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}

	return out
}
