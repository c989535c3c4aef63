// Package engine implements the deterministic workflow decision engine. It
// interprets JSON-declared policy documents against session state and emits
// structured Decisions. No LLM or network calls happen here: Evaluate is a
// pure function of (workflow definitions, override store, session state), so
// identical inputs always yield an identical Decision and traces replay.
package engine

import (
	"errors"
	"log/slog"
	"time"

	"github.com/resolvd/resolvd/internal/logging"
	"github.com/resolvd/resolvd/internal/rules"
	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/ports"
)

// OverrideLookup is the engine's read view of the policy override store.
// Lookup must return a consistent snapshot copy of the active override for
// (workflow, rule), if any.
type OverrideLookup interface {
	Lookup(workflow, ruleID string) (domain.PolicyOverride, bool)
}

// Engine evaluates workflow rules against session state.
type Engine struct {
	loader    ports.WorkflowLoader
	overrides OverrideLookup
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures the Engine.
type Option func(*Engine)

// WithOverrides wires the policy override store into rule evaluation.
func WithOverrides(o OverrideLookup) Option {
	return func(e *Engine) { e.overrides = o }
}

// WithLogger sets a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// WithClock injects the time source used for derived fields. Tests pin it to
// make promise-deadline evaluation reproducible.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New creates an engine over the given workflow loader.
func New(loader ports.WorkflowLoader, opts ...Option) *Engine {
	e := &Engine{
		loader: loader,
		logger: logging.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate resolves the session's workflow, scans its rules in declared
// order, and returns the Decision of the first satisfied rule with any active
// policy override applied. It never returns an error and never panics:
// unresolvable situations degrade to an escalate Decision.
func (e *Engine) Evaluate(session *domain.Session) domain.Decision {
	intent := session.Intent
	if intent == "" {
		intent = domain.IntentUnknown
	}

	wf, err := e.loader.Get(intent)
	if err != nil {
		if !errors.Is(err, domain.ErrWorkflowNotFound) {
			e.logger.Warn("workflow lookup failed", "intent", intent, "err", err)
		}
		return escalateDecision(intent, "", "no_matching_workflow", "no_matching_workflow", "")
	}

	ctx := e.Context(session)

	for _, rule := range wf.Rules {
		if rules.Eval(rule.Condition, ctx) {
			return e.buildDecision(wf, rule, ctx)
		}
	}

	return e.fallbackDecision(wf, ctx)
}

// Context flattens the session into the evaluation context map. Derived
// fields are computed live on every call, never cached: contact_day defaults
// from the first customer message and promise_deadline_passed is recomputed
// from the stored deadline and the injected clock.
func (e *Engine) Context(session *domain.Session) map[string]any {
	cc := session.CaseContext
	ctx := map[string]any{
		"order_id":            cc.OrderID,
		"tracking_number":     cc.TrackingNumber,
		"item_name":           cc.ItemName,
		"refund_reason":       cc.RefundReason,
		"order_date":          cc.OrderDate,
		"shipping_status":     cc.ShippingStatus,
		"promise_given":       cc.PromiseGiven,
		"promise_type":        cc.PromiseType,
		"promise_date":        cc.PromiseDate,
		"customer_id":         session.CustomerInfo.CustomerID,
		"customer_email":      session.CustomerInfo.Email,
		"customer_first_name": session.CustomerInfo.FirstName,
		"intent":              session.Intent,
		"confidence":          session.Confidence,
		"needs_human":         needsHuman(session),
	}
	for k, v := range cc.Evidence {
		ctx[k] = v
	}
	for k, v := range cc.Extra {
		ctx[k] = v
	}

	ctx["contact_day"] = ContactDay(session, e.now())
	ctx["promise_deadline_passed"] = PromiseDeadlinePassed(cc.PromiseDate, e.now())

	return ctx
}

// needsHuman surfaces the classifier's explicit human request, recorded by
// the orchestrator in the extras, as a first-class context field.
func needsHuman(session *domain.Session) bool {
	v, ok := session.CaseContext.Extra["needs_human"]
	return ok && rules.Truthy(v)
}

// buildDecision assembles the Decision for a matched rule, applying any
// active policy override. Overrides mutate the decision and the live context,
// never the rule definition.
func (e *Engine) buildDecision(wf *domain.WorkflowDefinition, rule domain.Rule, ctx map[string]any) domain.Decision {
	action := rule.Action
	d := domain.Decision{
		WorkflowID:    wf.WorkflowName,
		RuleID:        rule.ID,
		PolicyApplied: []string{policyTag(rule)},
	}

	// Rule set_context effects are visible to the rest of this evaluation
	// and surfaced for the orchestrator to persist.
	if len(rule.SetContext) > 0 {
		d.ContextUpdates = map[string]any{}
		for k, v := range rule.SetContext {
			ctx[k] = v
			d.ContextUpdates[k] = v
		}
	}

	var override domain.PolicyOverride
	var hasOverride bool
	if e.overrides != nil {
		override, hasOverride = e.overrides.Lookup(wf.WorkflowName, rule.ID)
	}
	if hasOverride {
		action = override.OverrideAction
		d.OverrideApplied = true
		d.OverrideID = override.OverrideID
		d.TraceNote = overrideTraceNote(override)
		if len(override.ContextUpdates) > 0 {
			if d.ContextUpdates == nil {
				d.ContextUpdates = map[string]any{}
			}
			for k, v := range override.ContextUpdates {
				ctx[k] = v
				d.ContextUpdates[k] = v
			}
		}
	}

	if !action.Valid() {
		e.logger.Warn("rule declares unknown action, escalating",
			"workflow", wf.WorkflowName, "rule", rule.ID, "action", string(action))
		return escalateDecision(wf.WorkflowName, rule.ID, "invalid_rule_action", policyTag(rule), "")
	}

	d.Action = action
	switch action {
	case domain.ActionAskClarifying:
		d.AskClarifying = &domain.AskClarifying{
			MissingFields: missingFields(wf.RequiredFields, ctx),
			Questions:     append([]string(nil), rule.ClarifyingQuestions...),
		}

	case domain.ActionCallTool:
		plan := make([]domain.ResolvedToolCall, 0, len(rule.ToolPlan))
		for _, tp := range rule.ToolPlan {
			params := ResolveParams(tp.ParamsSource, ctx)
			var paramOverrides map[string]any
			if hasOverride && len(override.ToolParamOverrides) > 0 {
				paramOverrides = map[string]any{}
				for k, v := range override.ToolParamOverrides {
					params[k] = v
					paramOverrides[k] = v
				}
			}
			plan = append(plan, domain.ResolvedToolCall{
				ToolName:     tp.ToolName,
				Params:       params,
				ParamsSource: tp.ParamsSource,
				Overrides:    paramOverrides,
			})
		}
		d.CallTool = &domain.CallTool{Plan: plan}

	case domain.ActionRespond:
		template := rule.ResponseTemplate
		if hasOverride && override.ResponseTemplateOverride != "" {
			template = override.ResponseTemplateOverride
		}
		d.Respond = &domain.Respond{
			Template: template,
			Body:     Interpolate(template, ctx),
		}

	case domain.ActionEscalate:
		reason := rule.EscalationReason
		if hasOverride && override.EscalationReason != "" {
			reason = override.EscalationReason
		}
		if reason == "" {
			reason = "Rule triggered escalation"
		}
		d.Escalate = &domain.Escalate{Reason: reason}

	case domain.ActionRouteToWorkflow:
		if rule.TargetWorkflow == "" {
			return escalateDecision(wf.WorkflowName, rule.ID, "invalid_route_target", policyTag(rule), d.OverrideID)
		}
		d.Route = &domain.RouteToWorkflow{TargetWorkflow: rule.TargetWorkflow}
	}

	return d
}

// fallbackDecision handles the no-rule-matched case. A workflow may declare
// its own fallback; otherwise the engine escalates rather than guessing.
func (e *Engine) fallbackDecision(wf *domain.WorkflowDefinition, ctx map[string]any) domain.Decision {
	fb := wf.Fallback
	if fb == nil {
		return escalateDecision(wf.WorkflowName, "", "no_matching_rule", "no_matching_rule", "")
	}

	tag := fb.PolicyTag
	if tag == "" {
		tag = "workflow_fallback"
	}

	switch fb.Action {
	case domain.ActionRespond:
		return domain.Decision{
			WorkflowID:    wf.WorkflowName,
			Action:        domain.ActionRespond,
			PolicyApplied: []string{tag},
			Respond: &domain.Respond{
				Template: fb.ResponseTemplate,
				Body:     Interpolate(fb.ResponseTemplate, ctx),
			},
		}
	default:
		reason := fb.EscalationReason
		if reason == "" {
			reason = "no_matching_rule"
		}
		return escalateDecision(wf.WorkflowName, "", reason, tag, "")
	}
}

func escalateDecision(workflowID, ruleID, reason, tag, overrideID string) domain.Decision {
	return domain.Decision{
		WorkflowID:      workflowID,
		RuleID:          ruleID,
		Action:          domain.ActionEscalate,
		PolicyApplied:   []string{tag},
		Escalate:        &domain.Escalate{Reason: reason},
		OverrideApplied: overrideID != "",
		OverrideID:      overrideID,
	}
}

func policyTag(rule domain.Rule) string {
	if rule.PolicyTag != "" {
		return rule.PolicyTag
	}
	if rule.ID != "" {
		return rule.ID
	}
	return "unknown"
}

func overrideTraceNote(o domain.PolicyOverride) string {
	note := o.Note
	if r := []rune(note); len(r) > 100 {
		note = string(r[:100])
	}
	return "Policy override '" + o.OverrideID + "' applied: " + note
}

// missingFields checks the workflow's required-field list against the current
// context so clarifying prompts never reflect stale gaps.
func missingFields(required []string, ctx map[string]any) []string {
	missing := []string{}
	for _, f := range required {
		if !rules.Truthy(ctx[f]) {
			missing = append(missing, f)
		}
	}
	return missing
}

// ResolveParams resolves a tool plan's params_source against the live
// context: "context.<field>" substitutes the context value, anything else is
// a literal.
func ResolveParams(source map[string]string, ctx map[string]any) map[string]any {
	params := make(map[string]any, len(source))
	for name, src := range source {
		if field, ok := cutContextRef(src); ok {
			params[name] = ctx[field]
		} else {
			params[name] = src
		}
	}
	return params
}

func cutContextRef(s string) (string, bool) {
	const prefix = "context."
	if len(s) > len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):], true
	}
	return "", false
}
