package domain

import "time"

// PolicyOverride is an admin-installed runtime patch for one (workflow, rule)
// pair. It mutates the Decision after rule match, never the rule definition,
// so deactivating an override instantly reverts behavior.
type PolicyOverride struct {
	OverrideID string `json:"override_id"`
	Workflow   string `json:"workflow"`
	RuleID     string `json:"rule_id"`

	OverrideAction Action `json:"override_action"`

	// Note records the admin instruction that motivated the override, kept
	// for the audit trail.
	Note string `json:"note,omitempty"`

	ContextUpdates           map[string]any `json:"context_updates,omitempty"`
	ToolParamOverrides       map[string]any `json:"tool_param_overrides,omitempty"`
	EscalationReason         string         `json:"escalation_reason,omitempty"`
	ResponseTemplateOverride string         `json:"response_template_override,omitempty"`

	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// Key returns the (workflow, rule) lookup key used by the engine hot path.
func (o PolicyOverride) Key() string {
	return o.Workflow + "\x00" + o.RuleID
}

// OverrideKey builds the same key from parts.
func OverrideKey(workflow, ruleID string) string {
	return workflow + "\x00" + ruleID
}
