// Package rules implements the structured predicate evaluator for workflow
// conditions. Evaluation is pure and fail-closed: malformed predicates and
// unknown operators are non-matches, never errors.
package rules

import (
	"fmt"
	"strings"

	"github.com/resolvd/resolvd/pkg/domain"
)

// Eval evaluates a condition tree against a flat context map.
// A field absent from the context evaluates as null. Compound conditions
// short-circuit: any stops at the first true, all at the first false.
func Eval(cond domain.Condition, ctx map[string]any) bool {
	if isEmpty(cond) {
		return true
	}

	if len(cond.All) > 0 {
		for _, c := range cond.All {
			if !Eval(c, ctx) {
				return false
			}
		}
		return true
	}

	if len(cond.Any) > 0 {
		for _, c := range cond.Any {
			if Eval(c, ctx) {
				return true
			}
		}
		return false
	}

	// A leaf with no field or no operator is treated as a catch-all, matching
	// how workflow authors write unconditional default rules.
	if cond.Field == "" || cond.Operator == "" {
		return true
	}

	actual := ctx[cond.Field]

	switch cond.Operator {
	case domain.OpIsNull:
		return isNull(actual)
	case domain.OpIsNotNull:
		return !isNull(actual)
	case domain.OpEquals:
		return equalValues(actual, cond.Value)
	case domain.OpNotEquals:
		return !equalValues(actual, cond.Value)
	case domain.OpIn:
		return inList(actual, cond.Value)
	case domain.OpNotIn:
		return !inList(actual, cond.Value)
	case domain.OpContains:
		if isNull(actual) {
			return false
		}
		return strings.Contains(stringify(actual), stringify(cond.Value))
	}

	// Unknown operator: fail closed.
	return false
}

func isEmpty(c domain.Condition) bool {
	return c.Field == "" && c.Operator == "" && len(c.All) == 0 && len(c.Any) == 0
}

func isNull(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// equalValues compares loosely across the types JSON decoding produces:
// same-type values compare directly, mixed types compare by stringified form
// so that a rule value "3" matches a numeric context value 3.
func equalValues(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if a == b {
		return true
	}
	return stringify(a) == stringify(b)
}

func inList(actual, value any) bool {
	list, ok := value.([]any)
	if !ok || len(list) == 0 {
		return false
	}
	for _, v := range list {
		if equalValues(actual, v) {
			return true
		}
	}
	return false
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		// Trim the ".0" JSON numbers pick up so 3 and 3.0 compare equal.
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%v", t)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// Truthy reports whether a context value counts as "present" for required
// field checks: non-empty strings, true booleans, non-zero numbers.
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case int:
		return t != 0
	default:
		return true
	}
}
