// Package devlog is the development action provider: every effectful action
// kind is logged and acknowledged instead of reaching a real email, messenger
// or ATS integration. Deployments wire real adapters behind the same
// interface.
package devlog

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

type Provider struct {
	logger *slog.Logger
}

func NewProvider(logger *slog.Logger) *Provider {
	return &Provider{logger: logger.With("module", "devlog_provider")}
}

func (p *Provider) dispatch(kind string, config map[string]any) (map[string]any, error) {
	id := uuid.NewString()

	p.logger.Info("Action dispatched",
		"action", kind,
		"dispatch_id", id,
		"config", config)

	return map[string]any{
		"dispatch_id":   id,
		"action":        kind,
		"dispatched_at": time.Now().UTC().Format(time.RFC3339),
	}, nil
}

func (p *Provider) SendMessage(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("send_message", config)
}

func (p *Provider) SendEmail(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("send_email", config)
}

func (p *Provider) CreateTask(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("create_task", config)
}

func (p *Provider) APICall(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("api_call", config)
}

func (p *Provider) DatabaseUpdate(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("database_update", config)
}

func (p *Provider) NotifyTeam(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("notify_team", config)
}

func (p *Provider) AssignToUser(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("assign_to_user", config)
}

func (p *Provider) UpdateCandidate(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("update_candidate", config)
}

func (p *Provider) MoveStage(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("move_stage", config)
}

func (p *Provider) AssignTag(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("assign_tag", config)
}

func (p *Provider) ScheduleInterview(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("schedule_interview", config)
}

func (p *Provider) UpdateScore(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("update_score", config)
}

func (p *Provider) ApprovalRequest(ctx context.Context, config map[string]any) (map[string]any, error) {
	return p.dispatch("approval_request", config)
}
