// Package conditions evaluates workflow condition lists against a run's
// context. Evaluation is fail-closed: missing fields, type mismatches and
// malformed values resolve to false and are logged, they never abort a run.
package conditions

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/flowhire/flowhire/pkg/models"
	"github.com/flowhire/flowhire/pkg/template"
)

type Evaluator struct {
	logger *slog.Logger
}

func NewEvaluator(logger *slog.Logger) *Evaluator {
	return &Evaluator{
		logger: logger.With("module", "condition_evaluator"),
	}
}

// Evaluate folds the flat condition list left to right. Each node's Logic tag
// combines it with the NEXT node; there is no grouping or precedence. An
// empty list is vacuously true.
func (e *Evaluator) Evaluate(nodes []models.ConditionNode, ctx map[string]any) bool {
	if len(nodes) == 0 {
		return true
	}

	result := e.evaluateNode(nodes[0], ctx)

	for i := 1; i < len(nodes); i++ {
		logic := nodes[i-1].Logic
		next := e.evaluateNode(nodes[i], ctx)

		if logic == models.LogicOr {
			result = result || next
		} else {
			result = result && next
		}
	}

	return result
}

func (e *Evaluator) evaluateNode(node models.ConditionNode, ctx map[string]any) bool {
	fieldValue, ok := template.Lookup(ctx, node.Field)
	if !ok {
		e.logger.Debug("Condition field did not resolve, evaluating to false",
			"field", node.Field,
			"operator", node.Operator)

		return false
	}

	switch node.Operator {
	case models.OperatorEquals:
		return looseEquals(fieldValue, node.Value)
	case models.OperatorNotEquals:
		return !looseEquals(fieldValue, node.Value)
	case models.OperatorGreaterThan, models.OperatorLessThan:
		left, leftOK := asNumber(fieldValue)
		right, rightOK := asNumber(node.Value)

		if !leftOK || !rightOK {
			e.logger.Debug("Non-numeric operand in ordered comparison, evaluating to false",
				"field", node.Field,
				"operator", node.Operator)

			return false
		}

		if node.Operator == models.OperatorGreaterThan {
			return left > right
		}

		return left < right
	case models.OperatorContains:
		return e.contains(node, fieldValue)
	case models.OperatorNotContains:
		if !e.containable(fieldValue) {
			return false
		}

		return !e.contains(node, fieldValue)
	case models.OperatorIn:
		return e.memberOf(node, fieldValue)
	case models.OperatorNotIn:
		list, ok := e.valueList(node)
		if !ok {
			return false
		}

		return !memberOfList(fieldValue, list)
	default:
		e.logger.Warn("Unknown condition operator, evaluating to false",
			"operator", node.Operator)

		return false
	}
}

// contains handles substring search on strings and membership on arrays.
func (e *Evaluator) contains(node models.ConditionNode, fieldValue any) bool {
	switch haystack := fieldValue.(type) {
	case string:
		return strings.Contains(haystack, template.Stringify(node.Value))
	case []any:
		return memberOfList(node.Value, haystack)
	default:
		e.logger.Debug("Contains operand is neither string nor array, evaluating to false",
			"field", node.Field)

		return false
	}
}

func (e *Evaluator) containable(fieldValue any) bool {
	switch fieldValue.(type) {
	case string, []any:
		return true
	default:
		return false
	}
}

func (e *Evaluator) memberOf(node models.ConditionNode, fieldValue any) bool {
	list, ok := e.valueList(node)
	if !ok {
		return false
	}

	return memberOfList(fieldValue, list)
}

// valueList normalizes an in/not_in condition value: an array is used as-is,
// a string is split on commas, anything else is malformed.
func (e *Evaluator) valueList(node models.ConditionNode) ([]any, bool) {
	switch v := node.Value.(type) {
	case []any:
		return v, true
	case string:
		parts := strings.Split(v, ",")
		list := make([]any, 0, len(parts))

		for _, part := range parts {
			list = append(list, strings.TrimSpace(part))
		}

		return list, true
	default:
		e.logger.Debug("in/not_in condition value is neither array nor string, evaluating to false",
			"field", node.Field)

		return nil, false
	}
}

func memberOfList(needle any, list []any) bool {
	for _, candidate := range list {
		if looseEquals(needle, candidate) {
			return true
		}
	}

	return false
}

// looseEquals is type-aware equality: operands that both parse as numbers are
// compared numerically (so "5" equals 5), everything else by textual form.
func looseEquals(a, b any) bool {
	leftNum, leftOK := asNumber(a)
	rightNum, rightOK := asNumber(b)

	if leftOK && rightOK {
		return leftNum == rightNum
	}

	return template.Stringify(a) == template.Stringify(b)
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()

		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)

		return f, err == nil
	default:
		return 0, false
	}
}
