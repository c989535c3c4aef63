package dsl

import (
	"github.com/resolvd/resolvd/pkg/adapters/memory"
	"github.com/resolvd/resolvd/pkg/domain"
)

// WorkflowBuilder assembles one workflow definition.
type WorkflowBuilder struct {
	def domain.WorkflowDefinition
}

// Workflow starts a builder for the named workflow (the customer intent).
func Workflow(name string) *WorkflowBuilder {
	return &WorkflowBuilder{
		def: domain.WorkflowDefinition{WorkflowName: name},
	}
}

// Require declares required case-context fields.
func (w *WorkflowBuilder) Require(fields ...string) *WorkflowBuilder {
	w.def.RequiredFields = append(w.def.RequiredFields, fields...)
	return w
}

// Rule opens a rule builder. Rules evaluate in the order they are added.
func (w *WorkflowBuilder) Rule(id string) *RuleBuilder {
	return &RuleBuilder{
		workflow: w,
		rule:     domain.Rule{ID: id},
	}
}

// Fallback sets the no-match fallback.
func (w *WorkflowBuilder) Fallback(action domain.Action, template string) *WorkflowBuilder {
	w.def.Fallback = &domain.Fallback{Action: action, ResponseTemplate: template}
	return w
}

// FallbackEscalate sets an escalating fallback with the given reason.
func (w *WorkflowBuilder) FallbackEscalate(reason string) *WorkflowBuilder {
	w.def.Fallback = &domain.Fallback{Action: domain.ActionEscalate, EscalationReason: reason}
	return w
}

// Definition returns a snapshot of the assembled definition. Further builder
// calls do not affect it.
func (w *WorkflowBuilder) Definition() *domain.WorkflowDefinition {
	def := w.def
	def.Rules = append([]domain.Rule(nil), w.def.Rules...)
	def.RequiredFields = append([]string(nil), w.def.RequiredFields...)
	return &def
}

// BuildLoader compiles the builders into an in-memory workflow loader.
func BuildLoader(workflows ...*WorkflowBuilder) *memory.Loader {
	defs := make([]*domain.WorkflowDefinition, len(workflows))
	for i, w := range workflows {
		defs[i] = w.Definition()
	}
	return memory.NewLoader(defs...)
}

// RuleBuilder assembles one rule. Finish with Done (or any terminal action
// helper, which returns the workflow builder directly).
type RuleBuilder struct {
	workflow *WorkflowBuilder
	rule     domain.Rule
}

// When sets the rule condition. Without When the rule is a catch-all.
func (r *RuleBuilder) When(c domain.Condition) *RuleBuilder {
	r.rule.Condition = c
	return r
}

// Set patches the case context when the rule matches.
func (r *RuleBuilder) Set(key string, value any) *RuleBuilder {
	if r.rule.SetContext == nil {
		r.rule.SetContext = map[string]any{}
	}
	r.rule.SetContext[key] = value
	return r
}

// Tag sets the audit policy tag recorded on matching decisions.
func (r *RuleBuilder) Tag(tag string) *RuleBuilder {
	r.rule.PolicyTag = tag
	return r
}

// AskClarifying makes the rule ask the given questions.
func (r *RuleBuilder) AskClarifying(questions ...string) *RuleBuilder {
	r.rule.Action = domain.ActionAskClarifying
	r.rule.ClarifyingQuestions = questions
	return r
}

// CallTool makes the rule invoke a tool. Param values prefixed "context." are
// resolved against the live evaluation context.
func (r *RuleBuilder) CallTool(name string, params map[string]string) *RuleBuilder {
	r.rule.Action = domain.ActionCallTool
	r.rule.ToolPlan = append(r.rule.ToolPlan, domain.ToolPlanEntry{
		ToolName:     name,
		ParamsSource: params,
	})
	return r
}

// Respond makes the rule answer with the interpolated template.
func (r *RuleBuilder) Respond(template string) *RuleBuilder {
	r.rule.Action = domain.ActionRespond
	r.rule.ResponseTemplate = template
	return r
}

// Escalate makes the rule hand the session to a human.
func (r *RuleBuilder) Escalate(reason string) *RuleBuilder {
	r.rule.Action = domain.ActionEscalate
	r.rule.EscalationReason = reason
	return r
}

// RouteTo makes the rule switch to another workflow.
func (r *RuleBuilder) RouteTo(workflow string) *RuleBuilder {
	r.rule.Action = domain.ActionRouteToWorkflow
	r.rule.TargetWorkflow = workflow
	return r
}

// Done appends the rule and returns to the workflow builder.
func (r *RuleBuilder) Done() *WorkflowBuilder {
	r.workflow.def.Rules = append(r.workflow.def.Rules, r.rule)
	return r.workflow
}
