package domain

// Action is the discriminant of the Decision variant.
type Action string

const (
	ActionAskClarifying   Action = "ask_clarifying"
	ActionCallTool        Action = "call_tool"
	ActionRespond         Action = "respond"
	ActionEscalate        Action = "escalate"
	ActionRouteToWorkflow Action = "route_to_workflow"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	switch a {
	case ActionAskClarifying, ActionCallTool, ActionRespond, ActionEscalate, ActionRouteToWorkflow:
		return true
	}
	return false
}

// AskClarifying asks the customer for missing required fields.
type AskClarifying struct {
	MissingFields []string `json:"missing_fields"`
	Questions     []string `json:"questions,omitempty"`
}

// ResolvedToolCall is one tool invocation with parameters resolved against
// the evaluation context at decision time. ParamsSource is kept so the
// orchestrator can re-resolve against the current context before executing.
type ResolvedToolCall struct {
	ToolName     string            `json:"tool_name"`
	Params       map[string]any    `json:"params"`
	ParamsSource map[string]string `json:"params_source,omitempty"`

	// Overrides carries tool_param_overrides from an applied policy override.
	// They win on key collision, including after re-resolution.
	Overrides map[string]any `json:"overrides,omitempty"`
}

// CallTool runs the plan entries sequentially.
type CallTool struct {
	Plan []ResolvedToolCall `json:"plan"`
}

// Respond generates a customer-facing reply. Body is Template with {field}
// tokens interpolated from the evaluation context.
type Respond struct {
	Template string `json:"template"`
	Body     string `json:"body"`
}

// Escalate hands the session to a human.
type Escalate struct {
	Reason   string `json:"reason"`
	Priority string `json:"priority,omitempty"`
}

// RouteToWorkflow rewrites the session intent and re-evaluates.
type RouteToWorkflow struct {
	TargetWorkflow string `json:"target_workflow"`
}

// Decision is the engine's structured output: a tagged union over the five
// actions. Exactly one payload pointer matching Action is non-nil.
type Decision struct {
	WorkflowID    string   `json:"workflow_id"`
	RuleID        string   `json:"rule_id,omitempty"`
	Action        Action   `json:"next_action"`
	PolicyApplied []string `json:"policy_applied"`

	AskClarifying *AskClarifying   `json:"ask_clarifying,omitempty"`
	CallTool      *CallTool        `json:"call_tool,omitempty"`
	Respond       *Respond         `json:"respond,omitempty"`
	Escalate      *Escalate        `json:"escalate,omitempty"`
	Route         *RouteToWorkflow `json:"route_to_workflow,omitempty"`

	// ContextUpdates holds rule set_context effects plus any override
	// context patch, already visible to the evaluation context that produced
	// this decision. The orchestrator persists them into the case context.
	ContextUpdates map[string]any `json:"context_updates,omitempty"`

	OverrideApplied bool   `json:"override_applied"`
	OverrideID      string `json:"override_id,omitempty"`
	TraceNote       string `json:"trace_note,omitempty"`
}
