package models

// ConditionOperator is the comparison applied between a resolved field and
// the condition's value.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorContains    ConditionOperator = "contains"
	OperatorNotContains ConditionOperator = "not_contains"
	OperatorIn          ConditionOperator = "in"
	OperatorNotIn       ConditionOperator = "not_in"
)

// ConditionLogic combines a condition with the NEXT condition in a flat list.
// There is no grouping or precedence; evaluation is a left-to-right fold.
type ConditionLogic string

const (
	LogicAnd ConditionLogic = "and"
	LogicOr  ConditionLogic = "or"
)

// ConditionNode is one comparison in a condition step's flat condition list.
type ConditionNode struct {
	Field    string            `json:"field"    validate:"required"`
	Operator ConditionOperator `json:"operator" validate:"required"`
	Value    any               `json:"value"`
	Logic    ConditionLogic    `json:"logic,omitempty"`
}
