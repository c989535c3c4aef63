// Package graph renders workflow definitions as Mermaid flowcharts, for
// documentation and for inspecting what a policy document actually declares.
package graph

import (
	"fmt"
	"strings"

	"github.com/resolvd/resolvd/pkg/domain"
)

// Overlay highlights rules a concrete session actually hit.
type Overlay struct {
	AppliedRules []string
	CurrentRule  string
}

// GenerateMermaid produces Mermaid flowchart syntax for one workflow.
// Shapes follow the rule action:
//   - entry point: ((circle))
//   - call_tool: [[subroutine]]
//   - ask_clarifying: [/parallelogram/]
//   - escalate: {{hexagon}}
//   - respond and everything else: [rectangle]
//
// Rules chain in evaluation order via "no match" edges; each rule's match
// edge is labeled with a short condition summary.
func GenerateMermaid(def *domain.WorkflowDefinition, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	entryID := sanitizeMermaidID(def.WorkflowName)
	sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", entryID, def.WorkflowName))

	prev := entryID
	prevLabel := ""
	for _, rule := range def.Rules {
		safeID := sanitizeMermaidID(rule.ID)

		opener, closer := "[", "]"
		switch rule.Action {
		case domain.ActionCallTool:
			opener, closer = "[[", "]]"
		case domain.ActionAskClarifying:
			opener, closer = "[/", "/]"
		case domain.ActionEscalate:
			opener, closer = "{{", "}}"
		}

		label := rule.ID
		if summary := summarizeCondition(rule.Condition); summary != "" {
			label = fmt.Sprintf("%s <br/> %s", rule.ID, summary)
		}
		sb.WriteString(fmt.Sprintf("    %s%s\"%s\"%s\n", safeID, opener, label, closer))

		arrow := "-->"
		if prevLabel != "" {
			arrow = fmt.Sprintf("-- \"%s\" -->", prevLabel)
		}
		sb.WriteString(fmt.Sprintf("    %s %s %s\n", prev, arrow, safeID))

		// Cross-workflow routing renders as a dotted jump.
		if rule.Action == domain.ActionRouteToWorkflow && rule.TargetWorkflow != "" {
			safeTarget := sanitizeMermaidID(rule.TargetWorkflow)
			sb.WriteString(fmt.Sprintf("    %s((\"%s\"))\n", safeTarget, rule.TargetWorkflow))
			sb.WriteString(fmt.Sprintf("    %s -.-> %s\n", safeID, safeTarget))
		}

		prev = safeID
		prevLabel = "no match"
	}

	if def.Fallback != nil {
		sb.WriteString(fmt.Sprintf("    fallback{{\"fallback: %s\"}}\n", def.Fallback.Action))
		sb.WriteString(fmt.Sprintf("    %s -- \"no match\" --> fallback\n", prev))
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef applied fill:#e1f5fe,stroke:#01579b,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef current fill:#ffeb3b,stroke:#fbc02d,stroke-width:4px,color:#000;\n")

		appliedSet := make(map[string]bool)
		for _, id := range overlay.AppliedRules {
			safeID := sanitizeMermaidID(id)
			if safeID != "" && !appliedSet[safeID] {
				appliedSet[safeID] = true
				sb.WriteString(fmt.Sprintf("    class %s applied;\n", safeID))
			}
		}
		if overlay.CurrentRule != "" {
			sb.WriteString(fmt.Sprintf("    class %s current;\n", sanitizeMermaidID(overlay.CurrentRule)))
		}
	}

	return sb.String()
}

// summarizeCondition flattens a condition tree into a short edge label.
func summarizeCondition(c domain.Condition) string {
	switch {
	case len(c.All) > 0:
		parts := make([]string, 0, len(c.All))
		for _, sub := range c.All {
			parts = append(parts, summarizeCondition(sub))
		}
		return strings.Join(parts, " AND ")
	case len(c.Any) > 0:
		parts := make([]string, 0, len(c.Any))
		for _, sub := range c.Any {
			parts = append(parts, summarizeCondition(sub))
		}
		return strings.Join(parts, " OR ")
	case c.Field == "":
		return ""
	case c.Operator == domain.OpIsNull, c.Operator == domain.OpIsNotNull:
		return fmt.Sprintf("%s %s", c.Field, c.Operator)
	default:
		value := strings.ReplaceAll(fmt.Sprintf("%v", c.Value), "\"", "'")
		return fmt.Sprintf("%s %s %s", c.Field, c.Operator, value)
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return s
}
