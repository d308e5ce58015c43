package models

import "fmt"

// ActionType is the closed set of step kinds a workflow program may contain.
// condition and delay are control-flow pseudo-actions handled inside the
// executor; every other kind is delegated to the action provider.
type ActionType string

const (
	ActionTypeCondition ActionType = "condition"
	ActionTypeDelay     ActionType = "delay"

	ActionTypeSendMessage       ActionType = "send_message"
	ActionTypeSendEmail         ActionType = "send_email"
	ActionTypeCreateTask        ActionType = "create_task"
	ActionTypeAPICall           ActionType = "api_call"
	ActionTypeDatabaseUpdate    ActionType = "database_update"
	ActionTypeNotifyTeam        ActionType = "notify_team"
	ActionTypeAssignToUser      ActionType = "assign_to_user"
	ActionTypeUpdateCandidate   ActionType = "update_candidate"
	ActionTypeMoveStage         ActionType = "move_stage"
	ActionTypeAssignTag         ActionType = "assign_tag"
	ActionTypeScheduleInterview ActionType = "schedule_interview"
	ActionTypeUpdateScore       ActionType = "update_score"
	ActionTypeApprovalRequest   ActionType = "approval_request"
)

var actionTypes = map[ActionType]bool{
	ActionTypeCondition:         true,
	ActionTypeDelay:             true,
	ActionTypeSendMessage:       true,
	ActionTypeSendEmail:         true,
	ActionTypeCreateTask:        true,
	ActionTypeAPICall:           true,
	ActionTypeDatabaseUpdate:    true,
	ActionTypeNotifyTeam:        true,
	ActionTypeAssignToUser:      true,
	ActionTypeUpdateCandidate:   true,
	ActionTypeMoveStage:         true,
	ActionTypeAssignTag:         true,
	ActionTypeScheduleInterview: true,
	ActionTypeUpdateScore:       true,
	ActionTypeApprovalRequest:   true,
}

// ParseActionType validates an action kind string. Unknown kinds are rejected
// here, at validation time, never at execution time.
func ParseActionType(s string) (ActionType, error) {
	t := ActionType(s)
	if !actionTypes[t] {
		return "", fmt.Errorf("unknown action type %q", s)
	}

	return t, nil
}

// ActionStep is one unit of a workflow's action program. String-valued config
// fields may contain {{dotted.path}} placeholders resolved at dispatch time.
type ActionStep struct {
	Type   ActionType     `json:"type"   validate:"required"`
	Config map[string]any `json:"config"`
}

// IsControl reports whether the step is handled by the executor itself
// instead of being dispatched to the action provider.
func (s *ActionStep) IsControl() bool {
	return s.Type == ActionTypeCondition || s.Type == ActionTypeDelay
}

// Validate checks the step's type and, for control steps, the shape of the
// config the executor depends on.
func (s *ActionStep) Validate() error {
	if _, err := ParseActionType(string(s.Type)); err != nil {
		return err
	}

	if s.Type == ActionTypeDelay {
		if _, ok := numeric(s.Config["seconds"]); !ok {
			return fmt.Errorf("delay step requires a numeric %q config field", "seconds")
		}
	}

	return nil
}

func numeric(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}
