package domain

// Condition is a node in the structured predicate tree evaluated against a
// flat context map. A leaf carries Field/Operator/Value; a compound carries
// All or Any. The zero value (no field, no branches) always matches, which is
// how catch-all rules are written.
type Condition struct {
	Field    string      `json:"field,omitempty" mapstructure:"field"`
	Operator string      `json:"operator,omitempty" mapstructure:"operator"`
	Value    any         `json:"value,omitempty" mapstructure:"value"`
	All      []Condition `json:"all,omitempty" mapstructure:"all"`
	Any      []Condition `json:"any,omitempty" mapstructure:"any"`
}

// Condition operators. Anything else evaluates as non-match (fail-closed).
const (
	OpIsNull    = "is_null"
	OpIsNotNull = "is_not_null"
	OpEquals    = "equals"
	OpNotEquals = "not_equals"
	OpIn        = "in"
	OpNotIn     = "not_in"
	OpContains  = "contains"
)

// ToolPlanEntry declares one tool invocation inside a rule. ParamsSource maps
// a parameter name to either a literal value or a "context.<field>" reference
// resolved against the live evaluation context.
type ToolPlanEntry struct {
	ToolName     string            `json:"tool_name" mapstructure:"tool_name"`
	ParamsSource map[string]string `json:"params_source,omitempty" mapstructure:"params_source"`
}

// Rule is a single (condition, action, payload) triple within a workflow.
// Rules are evaluated in declared order; the first satisfied condition wins.
type Rule struct {
	ID        string    `json:"id" mapstructure:"id"`
	Condition Condition `json:"condition,omitempty" mapstructure:"condition"`
	Action    Action    `json:"action" mapstructure:"action"`

	// Action payloads. Which of these apply depends on Action.
	ClarifyingQuestions []string        `json:"clarifying_questions,omitempty" mapstructure:"clarifying_questions"`
	ToolPlan            []ToolPlanEntry `json:"tool_plan,omitempty" mapstructure:"tool_plan"`
	ResponseTemplate    string          `json:"response_template,omitempty" mapstructure:"response_template"`
	EscalationReason    string          `json:"escalation_reason,omitempty" mapstructure:"escalation_reason"`
	TargetWorkflow      string          `json:"target_workflow,omitempty" mapstructure:"target_workflow"`

	// SetContext patches the live context when this rule matches. The engine
	// folds it into the evaluation context and surfaces it on the Decision so
	// the orchestrator can persist it into the case context.
	SetContext map[string]any `json:"set_context,omitempty" mapstructure:"set_context"`

	// PolicyTag is the audit label recorded in Decision.PolicyApplied.
	// Defaults to the rule ID when empty.
	PolicyTag string   `json:"policy_tag,omitempty" mapstructure:"policy_tag"`
	Tags      []string `json:"tags,omitempty" mapstructure:"tags"`
}

// Fallback declares what a workflow does when no rule matches. A workflow
// without a fallback escalates instead of guessing.
type Fallback struct {
	Action           Action `json:"action" mapstructure:"action"`
	ResponseTemplate string `json:"response_template,omitempty" mapstructure:"response_template"`
	EscalationReason string `json:"escalation_reason,omitempty" mapstructure:"escalation_reason"`
	PolicyTag        string `json:"policy_tag,omitempty" mapstructure:"policy_tag"`
}

// WorkflowDefinition is a named, ordered rule list keyed by customer intent.
// Definitions are externally authored JSON documents, hot-reloadable.
type WorkflowDefinition struct {
	WorkflowName   string    `json:"workflow_name" mapstructure:"workflow_name"`
	RequiredFields []string  `json:"required_fields,omitempty" mapstructure:"required_fields"`
	Rules          []Rule    `json:"rules" mapstructure:"rules"`
	Fallback       *Fallback `json:"fallback,omitempty" mapstructure:"fallback"`
}
