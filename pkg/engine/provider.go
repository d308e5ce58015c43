package engine

import (
	"context"
	"fmt"

	"github.com/flowhire/flowhire/pkg/models"
)

// ActionProvider is the adapter interface for effectful action kinds. The
// engine never talks to email, messaging or ATS systems directly; it resolves
// the step config and delegates here. Each method returns the step output on
// success; an error marks the run failed and halts remaining steps.
//
// Providers receive config with all {{dotted.path}} placeholders already
// resolved. The engine does not retry or compensate dispatched effects.
type ActionProvider interface {
	SendMessage(ctx context.Context, config map[string]any) (map[string]any, error)
	SendEmail(ctx context.Context, config map[string]any) (map[string]any, error)
	CreateTask(ctx context.Context, config map[string]any) (map[string]any, error)
	APICall(ctx context.Context, config map[string]any) (map[string]any, error)
	DatabaseUpdate(ctx context.Context, config map[string]any) (map[string]any, error)
	NotifyTeam(ctx context.Context, config map[string]any) (map[string]any, error)
	AssignToUser(ctx context.Context, config map[string]any) (map[string]any, error)
	UpdateCandidate(ctx context.Context, config map[string]any) (map[string]any, error)
	MoveStage(ctx context.Context, config map[string]any) (map[string]any, error)
	AssignTag(ctx context.Context, config map[string]any) (map[string]any, error)
	ScheduleInterview(ctx context.Context, config map[string]any) (map[string]any, error)
	UpdateScore(ctx context.Context, config map[string]any) (map[string]any, error)
	ApprovalRequest(ctx context.Context, config map[string]any) (map[string]any, error)
}

// dispatch routes an effectful action kind to its provider method. Control
// kinds never reach here; unknown kinds are rejected at save time, so hitting
// one at dispatch is a programming error surfaced as an explicit failure.
func dispatch(ctx context.Context, provider ActionProvider, actionType models.ActionType, config map[string]any) (map[string]any, error) {
	switch actionType {
	case models.ActionTypeSendMessage:
		return provider.SendMessage(ctx, config)
	case models.ActionTypeSendEmail:
		return provider.SendEmail(ctx, config)
	case models.ActionTypeCreateTask:
		return provider.CreateTask(ctx, config)
	case models.ActionTypeAPICall:
		return provider.APICall(ctx, config)
	case models.ActionTypeDatabaseUpdate:
		return provider.DatabaseUpdate(ctx, config)
	case models.ActionTypeNotifyTeam:
		return provider.NotifyTeam(ctx, config)
	case models.ActionTypeAssignToUser:
		return provider.AssignToUser(ctx, config)
	case models.ActionTypeUpdateCandidate:
		return provider.UpdateCandidate(ctx, config)
	case models.ActionTypeMoveStage:
		return provider.MoveStage(ctx, config)
	case models.ActionTypeAssignTag:
		return provider.AssignTag(ctx, config)
	case models.ActionTypeScheduleInterview:
		return provider.ScheduleInterview(ctx, config)
	case models.ActionTypeUpdateScore:
		return provider.UpdateScore(ctx, config)
	case models.ActionTypeApprovalRequest:
		return provider.ApprovalRequest(ctx, config)
	default:
		return nil, fmt.Errorf("action type %q has no provider method", actionType)
	}
}
