// Package validator performs semantic checks on workflow definitions beyond
// what decoding catches: duplicate rule ids, malformed condition trees,
// incoherent action payloads, unreachable rules, and dangling route targets.
package validator

import (
	"fmt"

	"github.com/resolvd/resolvd/pkg/domain"
)

var knownOperators = map[string]bool{
	domain.OpIsNull:    true,
	domain.OpIsNotNull: true,
	domain.OpEquals:    true,
	domain.OpNotEquals: true,
	domain.OpIn:        true,
	domain.OpNotIn:     true,
	domain.OpContains:  true,
}

// Validate checks a single definition and returns every problem found.
func Validate(def *domain.WorkflowDefinition) []string {
	var problems []string
	report := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf("%s: ", def.WorkflowName)+fmt.Sprintf(format, args...))
	}

	seen := make(map[string]bool)
	for i, rule := range def.Rules {
		if seen[rule.ID] {
			report("duplicate rule id %q", rule.ID)
		}
		seen[rule.ID] = true

		checkCondition(rule.Condition, rule.ID, report)
		checkPayload(rule, report)

		// A catch-all rule shadows everything declared after it.
		if isCatchAll(rule.Condition) && i < len(def.Rules)-1 {
			report("rule %q matches unconditionally, %d later rule(s) are unreachable", rule.ID, len(def.Rules)-1-i)
		}
	}

	if def.Fallback != nil {
		if !def.Fallback.Action.Valid() {
			report("fallback has unknown action %q", def.Fallback.Action)
		}
		if def.Fallback.Action == domain.ActionRespond && def.Fallback.ResponseTemplate == "" {
			report("fallback responds without a response_template")
		}
	}

	return problems
}

// ValidateSet validates each definition and additionally resolves
// route_to_workflow targets against the full set.
func ValidateSet(defs map[string]*domain.WorkflowDefinition) []string {
	var problems []string
	for _, def := range defs {
		problems = append(problems, Validate(def)...)
		for _, rule := range def.Rules {
			if rule.Action != domain.ActionRouteToWorkflow || rule.TargetWorkflow == "" {
				continue
			}
			if _, ok := defs[rule.TargetWorkflow]; !ok {
				problems = append(problems,
					fmt.Sprintf("%s: rule %q routes to unknown workflow %q", def.WorkflowName, rule.ID, rule.TargetWorkflow))
			}
		}
	}
	return problems
}

func checkCondition(c domain.Condition, ruleID string, report func(string, ...any)) {
	if len(c.All) > 0 && len(c.Any) > 0 {
		report("rule %q condition mixes all and any in one node", ruleID)
	}
	for _, sub := range c.All {
		checkCondition(sub, ruleID, report)
	}
	for _, sub := range c.Any {
		checkCondition(sub, ruleID, report)
	}
	if len(c.All) > 0 || len(c.Any) > 0 {
		return
	}
	if c.Field == "" {
		return // catch-all leaf
	}
	if c.Operator == "" {
		report("rule %q condition on %q has no operator", ruleID, c.Field)
		return
	}
	if !knownOperators[c.Operator] {
		report("rule %q condition on %q uses unknown operator %q", ruleID, c.Field, c.Operator)
	}
	switch c.Operator {
	case domain.OpIn, domain.OpNotIn:
		if _, ok := c.Value.([]any); !ok {
			report("rule %q operator %q on %q requires a list value", ruleID, c.Operator, c.Field)
		}
	case domain.OpEquals, domain.OpNotEquals, domain.OpContains:
		if c.Value == nil {
			report("rule %q operator %q on %q requires a value", ruleID, c.Operator, c.Field)
		}
	}
}

func checkPayload(rule domain.Rule, report func(string, ...any)) {
	switch rule.Action {
	case domain.ActionCallTool:
		if len(rule.ToolPlan) == 0 {
			report("rule %q calls tools but declares no tool_plan", rule.ID)
		}
		for _, entry := range rule.ToolPlan {
			if entry.ToolName == "" {
				report("rule %q has a tool_plan entry without tool_name", rule.ID)
			}
		}
	case domain.ActionRespond:
		if rule.ResponseTemplate == "" {
			report("rule %q responds without a response_template", rule.ID)
		}
	case domain.ActionRouteToWorkflow:
		if rule.TargetWorkflow == "" {
			report("rule %q routes without a target_workflow", rule.ID)
		}
	}
}

func isCatchAll(c domain.Condition) bool {
	return c.Field == "" && len(c.All) == 0 && len(c.Any) == 0
}
