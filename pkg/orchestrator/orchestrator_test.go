package orchestrator_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/resolvd/resolvd/internal/engine"
	"github.com/resolvd/resolvd/pkg/adapters/memory"
	"github.com/resolvd/resolvd/pkg/adapters/mock"
	redisAdapter "github.com/resolvd/resolvd/pkg/adapters/redis"
	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/orchestrator"
	"github.com/resolvd/resolvd/pkg/override"
	"github.com/resolvd/resolvd/pkg/session"
)

// Monday morning.
var testNow = time.Date(2026, 2, 2, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return testNow }

func testWorkflows() *memory.Loader {
	wismo := &domain.WorkflowDefinition{
		WorkflowName:   domain.IntentWISMO,
		RequiredFields: []string{"order_id"},
		Rules: []domain.Rule{
			{
				ID:                  "need_order_id",
				Condition:           domain.Condition{Field: "order_id", Operator: domain.OpIsNull},
				Action:              domain.ActionAskClarifying,
				ClarifyingQuestions: []string{"Could you share your order number?"},
			},
			{
				ID:        "check_status",
				Condition: domain.Condition{Field: "shipping_status", Operator: domain.OpIsNull},
				Action:    domain.ActionCallTool,
				ToolPlan: []domain.ToolPlanEntry{{
					ToolName:     "check_order_status",
					ParamsSource: map[string]string{"order_id": "context.order_id"},
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
		},
		Fallback: &domain.Fallback{
			Action:           domain.ActionEscalate,
			EscalationReason: "WISMO case outside automated policy",
		},
	}

	orderMod := &domain.WorkflowDefinition{
		WorkflowName:   domain.IntentOrderModification,
		RequiredFields: []string{"order_id"},
		Rules: []domain.Rule{
			{
				ID:        "check_order_state",
				Condition: domain.Condition{Field: "shipping_status", Operator: domain.OpIsNull},
				Action:    domain.ActionCallTool,
				ToolPlan: []domain.ToolPlanEntry{{
					ToolName:     "check_order_status",
					ParamsSource: map[string]string{"order_id": "context.order_id"},
				}},
			},
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

	refund := &domain.WorkflowDefinition{
		WorkflowName: domain.IntentRefundStandard,
		Rules: []domain.Rule{
			{
				ID:     "issue_credit",
				Action: domain.ActionCallTool,
				ToolPlan: []domain.ToolPlanEntry{{
					ToolName:     "issue_store_credit",
					ParamsSource: map[string]string{"order_id": "context.order_id"},
				}},
				PolicyTag: "store_credit",
			},
		},
	}

	unknown := &domain.WorkflowDefinition{
		WorkflowName: domain.IntentUnknown,
		Rules: []domain.Rule{
			{
				ID:               "customer_wants_human",
				Condition:        domain.Condition{Field: "needs_human", Operator: domain.OpEquals, Value: true},
				Action:           domain.ActionEscalate,
				EscalationReason: "Customer asked for a human agent",
			},
			{
				ID:               "clarify_request",
				Action:           domain.ActionRespond,
				ResponseTemplate: "Could you tell me a bit more about your issue?",
			},
		},
	}

	return memory.NewLoader(wismo, orderMod, refund, unknown)
}

type fixture struct {
	orch      *orchestrator.Orchestrator
	sessions  *session.Manager
	overrides *override.Store
	tools     *mock.ToolExecutor
}

func newFixture(t *testing.T, opts ...orchestrator.Option) *fixture {
	t.Helper()

	overrides := override.NewStore()
	eng := engine.New(testWorkflows(),
		engine.WithOverrides(overrides),
		engine.WithClock(fixedClock),
	)
	sessions := session.NewManager(memory.NewStore(), session.WithClock(fixedClock))
	tools := mock.NewToolExecutor()

	base := []orchestrator.Option{
		orchestrator.WithClassifier(mock.NewClassifier()),
		orchestrator.WithResponder(mock.NewResponder()),
		orchestrator.WithToolExecutor(tools),
		orchestrator.WithClock(fixedClock),
	}
	orch := orchestrator.New(sessions, eng, append(base, opts...)...)

	return &fixture{orch: orch, sessions: sessions, overrides: overrides, tools: tools}
}

func (f *fixture) start(t *testing.T) *domain.Session {
	t.Helper()
	sess, err := f.orch.Start(context.Background(), domain.CustomerInfo{
		FirstName:  "Alex",
		Email:      "alex@example.com",
		CustomerID: "cust_001",
	})
	require.NoError(t, err)
	return sess
}

func TestStart_AppendsGreeting(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	assert.Equal(t, domain.StatusActive, sess.Status)
	require.Len(t, sess.Messages, 1)
	assert.Equal(t, domain.RoleAgent, sess.Messages[0].Role)
	assert.Contains(t, sess.Messages[0].Content, "Alex")
}

func TestProcessMessage_WISMOPipeline(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)
	ctx := context.Background()

	// Turn 1: order lookup through the tool.
	result, err := f.orch.ProcessMessage(ctx, sess.ID, "Where is my order 12345? It has not arrived.")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusActive, result.Status)
	assert.Equal(t, domain.IntentWISMO, result.Intent)
	assert.NotEmpty(t, result.Reply)

	stored, err := f.orch.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "12345", stored.CaseContext.OrderID, "classifier entity persisted")
	assert.Equal(t, "shipped", stored.CaseContext.ShippingStatus, "tool output written back")
	assert.Equal(t, "Mon", stored.CaseContext.ContactDay)
	require.Len(t, stored.ToolHistory, 1)
	assert.True(t, stored.ToolHistory[0].Success)

	types := traceTypes(stored.Trace)
	assert.Contains(t, types, domain.TraceCustomerMessage)
	assert.Contains(t, types, domain.TraceClassification)
	assert.Contains(t, types, domain.TraceWorkflowDecision)
	assert.Contains(t, types, domain.TraceToolCall)
	assert.Contains(t, types, domain.TraceAgentResponse)

	// Turn 2: with status known, Monday contact gets the Friday promise.
	result, err = f.orch.ProcessMessage(ctx, sess.ID, "The delivery is still late, any update?")
	require.NoError(t, err)
	assert.Contains(t, result.Reply, "Friday")

	stored, err = f.orch.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, stored.CaseContext.PromiseGiven)
	assert.Equal(t, engine.PromiseFriday, stored.CaseContext.PromiseType)
	assert.Equal(t, "2026-02-06", stored.CaseContext.PromiseDate, "deadline from the contact-day calendar")
}

func TestProcessMessage_AsksForOrderID(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	result, err := f.orch.ProcessMessage(context.Background(), sess.ID, "My delivery is late")
	require.NoError(t, err)

	assert.Contains(t, result.Reply, "order number")
	assert.Equal(t, domain.StatusActive, result.Status)
}

func TestProcessMessage_EscalationLock(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)
	ctx := context.Background()

	result, err := f.orch.ProcessMessage(ctx, sess.ID, "I want to speak to someone right now")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEscalated, result.Status)
	require.NotNil(t, result.Escalation)
	assert.True(t, strings.HasPrefix(result.Escalation.EscalationID, "esc_"))
	assert.Equal(t, "cust_001", result.Escalation.CustomerID)
	assert.NotEmpty(t, result.Escalation.ConversationSummary)

	locked, err := f.orch.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	frozenTraceLen := len(locked.Trace)
	frozenMsgLen := len(locked.Messages)
	frozenTools := len(locked.ToolHistory)

	// Follow-up messages get the canned reply and mutate nothing.
	for i := 0; i < 2; i++ {
		result, err = f.orch.ProcessMessage(ctx, sess.ID, "hello? where is my order 12345?")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusEscalated, result.Status)
		assert.Nil(t, result.Escalation)
		assert.Contains(t, result.Reply, "specialist team")
	}

	after, err := f.orch.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, frozenTraceLen, len(after.Trace), "trace frozen after escalation")
	assert.Equal(t, frozenMsgLen, len(after.Messages), "messages frozen after escalation")
	assert.Equal(t, frozenTools, len(after.ToolHistory), "tool history frozen after escalation")
}

func TestProcessMessage_UrgencyRaisesPriority(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)

	result, err := f.orch.ProcessMessage(context.Background(), sess.ID,
		"I need a real person immediately, this is urgent")
	require.NoError(t, err)

	require.NotNil(t, result.Escalation)
	assert.Equal(t, domain.PriorityHigh, result.Escalation.Priority)
}

func TestProcessMessage_ToolFailureEscalates(t *testing.T) {
	f := newFixture(t)
	f.tools.FailTool("check_order_status", true)
	sess := f.start(t)

	result, err := f.orch.ProcessMessage(context.Background(), sess.ID, "Where is my order 12345?")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEscalated, result.Status)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, "Tool execution failed after retry", result.Escalation.Reason)
	assert.Equal(t, domain.PriorityMedium, result.Escalation.Priority)
	assert.Contains(t, result.Escalation.AttemptedActions[0], "check_order_status")
	assert.Contains(t, result.Escalation.AttemptedActions[0], "failed")
}

func TestProcessMessage_RoutingLoopGuard(t *testing.T) {
	ping := &domain.WorkflowDefinition{
		WorkflowName: "PING",
		Rules:        []domain.Rule{{ID: "go", Action: domain.ActionRouteToWorkflow, TargetWorkflow: "PONG"}},
	}
	pong := &domain.WorkflowDefinition{
		WorkflowName: "PONG",
		Rules:        []domain.Rule{{ID: "back", Action: domain.ActionRouteToWorkflow, TargetWorkflow: "PING"}},
	}

	eng := engine.New(memory.NewLoader(ping, pong), engine.WithClock(fixedClock))
	sessions := session.NewManager(memory.NewStore(), session.WithClock(fixedClock))
	// No classifier: the preset intent drives workflow selection.
	orch := orchestrator.New(sessions, eng,
		orchestrator.WithResponder(mock.NewResponder()),
		orchestrator.WithClock(fixedClock),
	)
	ctx := context.Background()

	sess, err := orch.Start(ctx, domain.CustomerInfo{FirstName: "Alex"})
	require.NoError(t, err)
	_, err = sessions.Update(ctx, sess.ID, func(s *domain.Session) error {
		s.Intent = "PING"
		return nil
	})
	require.NoError(t, err)

	result, err := orch.ProcessMessage(ctx, sess.ID, "hello")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEscalated, result.Status)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, "routing_loop", result.Escalation.Reason)
	assert.Equal(t, domain.PriorityHigh, result.Escalation.Priority)
}

func TestProcessMessage_OverrideChangesOutcome(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Admin suspends automated address changes.
	_, err := f.overrides.Add(ctx, domain.PolicyOverride{
		Workflow:         domain.IntentOrderModification,
		RuleID:           "address_change_allowed",
		OverrideAction:   domain.ActionEscalate,
		EscalationReason: "Address changes require manual review this week",
		Note:             "fraud spike",
		Active:           true,
	})
	require.NoError(t, err)

	sess := f.start(t)
	// Order 99999 is in processing, which normally allows the change.
	_, err = f.sessions.Update(ctx, sess.ID, func(s *domain.Session) error {
		s.CaseContext.OrderID = "99999"
		s.CaseContext.ShippingStatus = "processing"
		return nil
	})
	require.NoError(t, err)

	result, err := f.orch.ProcessMessage(ctx, sess.ID, "Please change my address for order 99999")
	require.NoError(t, err)

	assert.Equal(t, domain.StatusEscalated, result.Status)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, "Address changes require manual review this week", result.Escalation.Reason)

	stored, err := f.orch.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	found := false
	for _, ev := range stored.Trace {
		if ev.Type == domain.TraceWorkflowDecision && ev.Data["override_applied"] == true {
			found = true
			assert.NotEmpty(t, ev.Data["override_id"])
		}
	}
	assert.True(t, found, "override application is recorded in the trace")
	assert.Empty(t, stored.ToolHistory, "overridden rule never reaches the tool")
}

func TestProcessMessage_NonShippingToolStatusIsScoped(t *testing.T) {
	f := newFixture(t)
	sess := f.start(t)
	ctx := context.Background()

	// The store-credit tool reports the status of the credit, not of the
	// shipment.
	result, err := f.orch.ProcessMessage(ctx, sess.ID, "I want a refund for order 12345")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentRefundStandard, result.Intent)

	stored, err := f.orch.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, stored.ToolHistory, 1)
	assert.Equal(t, "issue_store_credit", stored.ToolHistory[0].ToolName)
	assert.Empty(t, stored.CaseContext.ShippingStatus, "credit status must not become shipping state")
	assert.Equal(t, "issued", stored.CaseContext.Extra["issue_store_credit_status"])

	// A later shipping question still runs the order lookup.
	_, err = f.orch.ProcessMessage(ctx, sess.ID, "Also, where is my order 12345?")
	require.NoError(t, err)

	stored, err = f.orch.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, stored.ToolHistory, 2)
	assert.Equal(t, "check_order_status", stored.ToolHistory[1].ToolName)
	assert.Equal(t, "shipped", stored.CaseContext.ShippingStatus)
}

func TestEscalation_PolicyTagsSurviveStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	store := redisAdapter.NewFromClient(backend.NewClient(&backend.Options{Addr: mr.Addr()}))

	eng := engine.New(testWorkflows(), engine.WithClock(fixedClock))
	sessions := session.NewManager(store, session.WithClock(fixedClock))
	orch := orchestrator.New(sessions, eng,
		orchestrator.WithClassifier(mock.NewClassifier()),
		orchestrator.WithResponder(mock.NewResponder()),
		orchestrator.WithToolExecutor(mock.NewToolExecutor()),
		orchestrator.WithClock(fixedClock),
	)
	ctx := context.Background()

	sess, err := orch.Start(ctx, domain.CustomerInfo{FirstName: "Alex", CustomerID: "cust_001"})
	require.NoError(t, err)

	// Turn 1 records the lookup policy tag, then the session round-trips
	// through redis as JSON before the escalation reads it back.
	_, err = orch.ProcessMessage(ctx, sess.ID, "Where is my order 12345? It has not arrived.")
	require.NoError(t, err)

	result, err := orch.RequestEscalation(ctx, sess.ID, "VIP customer", "")
	require.NoError(t, err)
	require.NotNil(t, result.Escalation)

	assert.Contains(t, result.Escalation.AttemptedActions, "check_order_status [ok]")
	assert.Contains(t, result.Escalation.AttemptedActions, "Policy: lookup_order")
}

func TestResolve(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := f.start(t)
	resolved, err := f.orch.Resolve(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)

	// Escalated sessions cannot be resolved.
	other := f.start(t)
	_, err = f.orch.RequestEscalation(ctx, other.ID, "", "")
	require.NoError(t, err)
	_, err = f.orch.Resolve(ctx, other.ID)
	assert.ErrorIs(t, err, domain.ErrSessionLocked)
}

func TestRequestEscalation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sess := f.start(t)

	result, err := f.orch.RequestEscalation(ctx, sess.ID, "VIP customer", domain.PriorityHigh)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, result.Status)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, "VIP customer", result.Escalation.Reason)
	assert.Equal(t, domain.PriorityHigh, result.Escalation.Priority)

	// Idempotent: a second request returns the lock reply, no new payload.
	again, err := f.orch.RequestEscalation(ctx, sess.ID, "again", "")
	require.NoError(t, err)
	assert.Nil(t, again.Escalation)
	assert.Contains(t, again.Reply, "specialist team")
}

func TestProcessMessage_UnknownSession(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.ProcessMessage(context.Background(), "missing-id", "hello")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}

func traceTypes(trace []domain.TraceEvent) []domain.TraceEventType {
	out := make([]domain.TraceEventType, 0, len(trace))
	for _, ev := range trace {
		out = append(out, ev.Type)
	}
	return out
}
