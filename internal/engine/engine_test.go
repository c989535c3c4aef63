package engine_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/internal/engine"
	"github.com/resolvd/resolvd/pkg/adapters/memory"
	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/override"
)

// Tuesday. Keeps contact-day and deadline evaluation reproducible.
var testNow = time.Date(2026, 2, 3, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func wismoWorkflow() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		WorkflowName:   "WISMO",
		RequiredFields: []string{"order_id"},
		Rules: []domain.Rule{
			{
				ID:                  "need_order_id",
				Condition:           domain.Condition{Field: "order_id", Operator: domain.OpIsNull},
				Action:              domain.ActionAskClarifying,
				ClarifyingQuestions: []string{"Could you share your order number?"},
			},
			{
				ID: "promise_breached",
				Condition: domain.Condition{All: []domain.Condition{
					{Field: "promise_given", Operator: domain.OpEquals, Value: true},
					{Field: "promise_deadline_passed", Operator: domain.OpEquals, Value: true},
				}},
				Action:           domain.ActionEscalate,
				EscalationReason: "Delivery promise deadline has passed",
				PolicyTag:        "promise_breached",
			},
			{
				ID:        "check_status",
				Condition: domain.Condition{Field: "shipping_status", Operator: domain.OpIsNull},
				Action:    domain.ActionCallTool,
				ToolPlan: []domain.ToolPlanEntry{{
					ToolName:     "check_order_status",
					ParamsSource: map[string]string{"order_id": "context.order_id", "channel": "chat"},
				}},
				PolicyTag: "lookup_order",
			},
			{
				ID: "friday_promise",
				Condition: domain.Condition{All: []domain.Condition{
					{Field: "promise_given", Operator: domain.OpNotEquals, Value: true},
					{Field: "contact_day", Operator: domain.OpIn, Value: []any{"Mon", "Tue", "Wed"}},
				}},
				Action:           domain.ActionRespond,
				ResponseTemplate: "Your order {order_id} is {shipping_status}. Please allow until Friday.",
				SetContext:       map[string]any{"promise_given": true},
				PolicyTag:        "friday_promise",
			},
			{
				ID: "next_week_promise",
				Condition: domain.Condition{All: []domain.Condition{
					{Field: "promise_given", Operator: domain.OpNotEquals, Value: true},
					{Field: "contact_day", Operator: domain.OpIn, Value: []any{"Thu", "Fri", "Sat", "Sun"}},
				}},
				Action:           domain.ActionRespond,
				ResponseTemplate: "Your order {order_id} is {shipping_status}. Please allow until early next week.",
				SetContext:       map[string]any{"promise_given": true},
				PolicyTag:        "next_week_promise",
			},
		},
		Fallback: &domain.Fallback{
			Action:           domain.ActionEscalate,
			EscalationReason: "WISMO case outside automated policy",
			PolicyTag:        "wismo_fallback",
		},
	}
}

func orderModificationWorkflow() *domain.WorkflowDefinition {
	return &domain.WorkflowDefinition{
		WorkflowName:   "ORDER_MODIFICATION",
		RequiredFields: []string{"order_id"},
		Rules: []domain.Rule{
			{
				ID:        "address_change_allowed",
				Condition: domain.Condition{Field: "shipping_status", Operator: domain.OpIn, Value: []any{"processing", "pending"}},
				Action:    domain.ActionCallTool,
				ToolPlan: []domain.ToolPlanEntry{{
					ToolName:     "update_shipping_address",
					ParamsSource: map[string]string{"order_id": "context.order_id"},
				}},
				PolicyTag: "address_change_allowed",
			},
		},
	}
}

func wismoSession(contactDay string) *domain.Session {
	sess := domain.NewSession(domain.CustomerInfo{FirstName: "Alex", Email: "alex@example.com"}, testNow)
	sess.Intent = "WISMO"
	sess.CaseContext.OrderID = "12345"
	sess.CaseContext.ShippingStatus = "shipped"
	sess.CaseContext.ContactDay = contactDay
	return sess
}

func TestEvaluate_FridayPromise(t *testing.T) {
	eng := engine.New(memory.NewLoader(wismoWorkflow()), engine.WithClock(fixedClock))

	d := eng.Evaluate(wismoSession("Mon"))

	assert.Equal(t, domain.ActionRespond, d.Action)
	assert.Equal(t, "friday_promise", d.RuleID)
	assert.Contains(t, d.PolicyApplied, "friday_promise")
	require.NotNil(t, d.Respond)
	assert.Contains(t, d.Respond.Body, "Friday")
	assert.Contains(t, d.Respond.Body, "12345")
	assert.Equal(t, map[string]any{"promise_given": true}, d.ContextUpdates)
}

func TestEvaluate_NextWeekPromise(t *testing.T) {
	eng := engine.New(memory.NewLoader(wismoWorkflow()), engine.WithClock(fixedClock))

	d := eng.Evaluate(wismoSession("Thu"))

	assert.Equal(t, domain.ActionRespond, d.Action)
	assert.Contains(t, d.PolicyApplied, "next_week_promise")
}

func TestEvaluate_Deterministic(t *testing.T) {
	eng := engine.New(memory.NewLoader(wismoWorkflow()), engine.WithClock(fixedClock))
	sess := wismoSession("Mon")

	first := eng.Evaluate(sess)
	second := eng.Evaluate(sess)

	assert.Equal(t, first, second)
	// Evaluate never mutates the session; set_context only surfaces on the
	// Decision for the orchestrator to persist.
	assert.False(t, sess.CaseContext.PromiseGiven)
}

func TestEvaluate_AskClarifyingWhenOrderIDMissing(t *testing.T) {
	eng := engine.New(memory.NewLoader(wismoWorkflow()), engine.WithClock(fixedClock))
	sess := wismoSession("Mon")
	sess.CaseContext.OrderID = ""

	d := eng.Evaluate(sess)

	assert.Equal(t, domain.ActionAskClarifying, d.Action)
	require.NotNil(t, d.AskClarifying)
	assert.Equal(t, []string{"order_id"}, d.AskClarifying.MissingFields)
	assert.Equal(t, []string{"Could you share your order number?"}, d.AskClarifying.Questions)
}

func TestEvaluate_ToolParamResolution(t *testing.T) {
	eng := engine.New(memory.NewLoader(wismoWorkflow()), engine.WithClock(fixedClock))
	sess := wismoSession("Mon")
	sess.CaseContext.ShippingStatus = ""

	d := eng.Evaluate(sess)

	assert.Equal(t, domain.ActionCallTool, d.Action)
	require.NotNil(t, d.CallTool)
	require.Len(t, d.CallTool.Plan, 1)
	call := d.CallTool.Plan[0]
	assert.Equal(t, "check_order_status", call.ToolName)
	assert.Equal(t, "12345", call.Params["order_id"], "context reference resolves to context value")
	assert.Equal(t, "chat", call.Params["channel"], "non-reference stays literal")
}

func TestEvaluate_PromiseDeadlinePassed(t *testing.T) {
	eng := engine.New(memory.NewLoader(wismoWorkflow()), engine.WithClock(fixedClock))
	sess := wismoSession("Mon")
	sess.CaseContext.PromiseGiven = true
	sess.CaseContext.PromiseDate = "2026-01-30" // before testNow

	d := eng.Evaluate(sess)

	assert.Equal(t, domain.ActionEscalate, d.Action)
	assert.Equal(t, "promise_breached", d.RuleID)
	require.NotNil(t, d.Escalate)
	assert.Equal(t, "Delivery promise deadline has passed", d.Escalate.Reason)
}

func TestEvaluate_PromiseStillPendingFallsThrough(t *testing.T) {
	eng := engine.New(memory.NewLoader(wismoWorkflow()), engine.WithClock(fixedClock))
	sess := wismoSession("Mon")
	sess.CaseContext.PromiseGiven = true
	sess.CaseContext.PromiseDate = "2026-02-06" // Friday, still ahead

	d := eng.Evaluate(sess)

	// promise_given blocks the promise rules, nothing else matches.
	assert.Equal(t, domain.ActionEscalate, d.Action)
	assert.Contains(t, d.PolicyApplied, "wismo_fallback")
	assert.Equal(t, "WISMO case outside automated policy", d.Escalate.Reason)
}

func TestEvaluate_NoWorkflowForIntent(t *testing.T) {
	eng := engine.New(memory.NewLoader(), engine.WithClock(fixedClock))
	sess := wismoSession("Mon")
	sess.Intent = "SOMETHING_ELSE"

	d := eng.Evaluate(sess)

	assert.Equal(t, domain.ActionEscalate, d.Action)
	assert.Equal(t, "no_matching_workflow", d.Escalate.Reason)
}

func TestEvaluate_NoMatchingRuleWithoutFallback(t *testing.T) {
	wf := wismoWorkflow()
	wf.Fallback = nil
	wf.Rules = wf.Rules[:1] // only need_order_id
	eng := engine.New(memory.NewLoader(wf), engine.WithClock(fixedClock))

	d := eng.Evaluate(wismoSession("Mon"))

	assert.Equal(t, domain.ActionEscalate, d.Action)
	assert.Equal(t, "no_matching_rule", d.Escalate.Reason)
}

func TestEvaluate_FallbackRespond(t *testing.T) {
	wf := wismoWorkflow()
	wf.Rules = wf.Rules[:1]
	wf.Fallback = &domain.Fallback{
		Action:           domain.ActionRespond,
		ResponseTemplate: "We are looking into order {order_id}.",
		PolicyTag:        "wismo_default_reply",
	}
	eng := engine.New(memory.NewLoader(wf), engine.WithClock(fixedClock))

	d := eng.Evaluate(wismoSession("Mon"))

	assert.Equal(t, domain.ActionRespond, d.Action)
	assert.Contains(t, d.PolicyApplied, "wismo_default_reply")
	assert.Equal(t, "We are looking into order 12345.", d.Respond.Body)
}

func TestEvaluate_OverrideSwapsActionAndReverts(t *testing.T) {
	overrides := override.NewStore()
	eng := engine.New(memory.NewLoader(orderModificationWorkflow()),
		engine.WithOverrides(overrides),
		engine.WithClock(fixedClock),
	)

	sess := domain.NewSession(domain.CustomerInfo{}, testNow)
	sess.Intent = "ORDER_MODIFICATION"
	sess.CaseContext.OrderID = "99999"
	sess.CaseContext.ShippingStatus = "processing"

	base := eng.Evaluate(sess)
	assert.Equal(t, domain.ActionCallTool, base.Action)
	assert.False(t, base.OverrideApplied)

	o, err := overrides.Add(context.Background(), domain.PolicyOverride{
		Workflow:         "ORDER_MODIFICATION",
		RuleID:           "address_change_allowed",
		OverrideAction:   domain.ActionEscalate,
		EscalationReason: "Address changes suspended during carrier incident",
		Note:             "carrier outage",
		Active:           true,
	})
	require.NoError(t, err)

	overridden := eng.Evaluate(sess)
	assert.Equal(t, domain.ActionEscalate, overridden.Action)
	assert.True(t, overridden.OverrideApplied)
	assert.Equal(t, o.OverrideID, overridden.OverrideID)
	assert.Equal(t, "Address changes suspended during carrier incident", overridden.Escalate.Reason)
	assert.Contains(t, overridden.TraceNote, o.OverrideID)

	// Deactivating restores the original behavior, no restart needed.
	_, err = overrides.Toggle(context.Background(), o.OverrideID)
	require.NoError(t, err)

	restored := eng.Evaluate(sess)
	assert.Equal(t, base.Action, restored.Action)
	assert.False(t, restored.OverrideApplied)
}

func TestEvaluate_OverrideToolParams(t *testing.T) {
	overrides := override.NewStore()
	eng := engine.New(memory.NewLoader(orderModificationWorkflow()),
		engine.WithOverrides(overrides),
		engine.WithClock(fixedClock),
	)

	_, err := overrides.Add(context.Background(), domain.PolicyOverride{
		Workflow:           "ORDER_MODIFICATION",
		RuleID:             "address_change_allowed",
		OverrideAction:     domain.ActionCallTool,
		ToolParamOverrides: map[string]any{"require_signature": true},
		Active:             true,
	})
	require.NoError(t, err)

	sess := domain.NewSession(domain.CustomerInfo{}, testNow)
	sess.Intent = "ORDER_MODIFICATION"
	sess.CaseContext.OrderID = "99999"
	sess.CaseContext.ShippingStatus = "pending"

	d := eng.Evaluate(sess)

	require.Equal(t, domain.ActionCallTool, d.Action)
	require.Len(t, d.CallTool.Plan, 1)
	call := d.CallTool.Plan[0]
	assert.Equal(t, "99999", call.Params["order_id"])
	assert.Equal(t, true, call.Params["require_signature"])
	assert.Equal(t, map[string]any{"require_signature": true}, call.Overrides)
}

func TestEvaluate_OverrideContextUpdates(t *testing.T) {
	overrides := override.NewStore()
	wf := wismoWorkflow()
	eng := engine.New(memory.NewLoader(wf),
		engine.WithOverrides(overrides),
		engine.WithClock(fixedClock),
	)

	_, err := overrides.Add(context.Background(), domain.PolicyOverride{
		Workflow:       "WISMO",
		RuleID:         "friday_promise",
		OverrideAction: domain.ActionRespond,
		ContextUpdates: map[string]any{"goodwill_credit": true},
		Active:         true,
	})
	require.NoError(t, err)

	d := eng.Evaluate(wismoSession("Mon"))

	assert.Equal(t, true, d.ContextUpdates["goodwill_credit"])
	assert.Equal(t, true, d.ContextUpdates["promise_given"], "rule set_context survives alongside override patch")
}

func TestEvaluate_InvalidRuleActionEscalates(t *testing.T) {
	wf := &domain.WorkflowDefinition{
		WorkflowName: "WISMO",
		Rules: []domain.Rule{
			{ID: "broken", Action: domain.Action("transmogrify")},
		},
	}
	eng := engine.New(memory.NewLoader(wf), engine.WithClock(fixedClock))

	d := eng.Evaluate(wismoSession("Mon"))

	assert.Equal(t, domain.ActionEscalate, d.Action)
	assert.Equal(t, "invalid_rule_action", d.Escalate.Reason)
}

func TestContext_DerivedFields(t *testing.T) {
	eng := engine.New(memory.NewLoader(), engine.WithClock(fixedClock))

	sess := domain.NewSession(domain.CustomerInfo{FirstName: "Alex"}, testNow)
	sess.Messages = append(sess.Messages,
		domain.NewMessage(domain.RoleAgent, "Hello", testNow),
		// Monday
		domain.NewMessage(domain.RoleCustomer, "where is my order", time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC)),
	)
	sess.CaseContext.PromiseDate = "2026-02-02"
	sess.CaseContext.Evidence = map[string]bool{"item_photo": true}
	sess.CaseContext.Extra = map[string]any{"custom_flag": "yes"}

	ctx := eng.Context(sess)

	assert.Equal(t, "Mon", ctx["contact_day"], "derived from first customer message")
	assert.Equal(t, true, ctx["promise_deadline_passed"], "recomputed live against the clock")
	assert.Equal(t, true, ctx["item_photo"])
	assert.Equal(t, "yes", ctx["custom_flag"])
	assert.Equal(t, "Alex", ctx["customer_first_name"])
}
