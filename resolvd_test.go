package resolvd_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	resolvd "github.com/resolvd/resolvd"
	"github.com/resolvd/resolvd/pkg/adapters/memory"
	"github.com/resolvd/resolvd/pkg/domain"
)

func testLoader() *memory.Loader {
	return memory.NewLoader(&domain.WorkflowDefinition{
		WorkflowName: domain.IntentWISMO,
		Rules: []domain.Rule{
			{
				ID:                  "need_order_id",
				Condition:           domain.Condition{Field: "order_id", Operator: domain.OpIsNull},
				Action:              domain.ActionAskClarifying,
				ClarifyingQuestions: []string{"Could you share your order number?"},
			},
			{
				ID:               "acknowledge",
				Action:           domain.ActionRespond,
				ResponseTemplate: "Order {order_id} is on our radar.",
			},
		},
	})
}

func TestNew_RequiresWorkflowSource(t *testing.T) {
	_, err := resolvd.New("")
	require.Error(t, err)

	desk, err := resolvd.New("", resolvd.WithLoader(testLoader()))
	require.NoError(t, err)
	assert.NotNil(t, desk)
}

func TestDesk_ConversationRoundTrip(t *testing.T) {
	desk, err := resolvd.New("", resolvd.WithLoader(testLoader()))
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := desk.Start(ctx, domain.CustomerInfo{FirstName: "Alex", Email: "alex@example.com"})
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	// No order number yet: the policy asks for it.
	result, err := desk.ProcessMessage(ctx, sess.ID, "Where is my order? It's late.")
	require.NoError(t, err)
	assert.Equal(t, domain.IntentWISMO, result.Intent)
	assert.Contains(t, result.Reply, "order number")
	assert.Equal(t, domain.StatusActive, result.Status)

	// With the order number the catch-all rule answers.
	result, err = desk.ProcessMessage(ctx, sess.ID, "Still no delivery, it's order 12345")
	require.NoError(t, err)
	assert.Contains(t, result.Reply, "12345")

	trace, err := desk.GetTrace(ctx, sess.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, trace)
}

func TestDesk_OverrideRedirectsDecision(t *testing.T) {
	desk, err := resolvd.New("", resolvd.WithLoader(testLoader()))
	require.NoError(t, err)
	ctx := context.Background()

	_, err = desk.Overrides().Add(ctx, domain.PolicyOverride{
		Workflow:         domain.IntentWISMO,
		RuleID:           "acknowledge",
		OverrideAction:   domain.ActionEscalate,
		EscalationReason: "All WISMO replies under manual review",
		Active:           true,
	})
	require.NoError(t, err)

	sess, err := desk.Start(ctx, domain.CustomerInfo{FirstName: "Alex"})
	require.NoError(t, err)

	result, err := desk.ProcessMessage(ctx, sess.ID, "Where is my order 12345?")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, result.Status)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, "All WISMO replies under manual review", result.Escalation.Reason)
}

func TestDesk_EscalationLocksSession(t *testing.T) {
	desk, err := resolvd.New("", resolvd.WithLoader(testLoader()))
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := desk.Start(ctx, domain.CustomerInfo{FirstName: "Alex"})
	require.NoError(t, err)

	result, err := desk.RequestEscalation(ctx, sess.ID, "Customer asked for a human", "high")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, result.Status)
	require.NotNil(t, result.Escalation)
	assert.Equal(t, domain.PriorityHigh, result.Escalation.Priority)

	// Follow-up messages get the handoff reply, no further automation.
	followUp, err := desk.ProcessMessage(ctx, sess.ID, "Any update?")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEscalated, followUp.Status)
	assert.Nil(t, followUp.Escalation)

	_, err = desk.Resolve(ctx, sess.ID)
	assert.ErrorIs(t, err, domain.ErrSessionLocked)
}

func TestDesk_Resolve(t *testing.T) {
	desk, err := resolvd.New("", resolvd.WithLoader(testLoader()))
	require.NoError(t, err)
	ctx := context.Background()

	sess, err := desk.Start(ctx, domain.CustomerInfo{})
	require.NoError(t, err)

	resolved, err := desk.Resolve(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusResolved, resolved.Status)
}

func TestDesk_FileLoaderReload(t *testing.T) {
	dir := t.TempDir()
	doc := `{
  "workflow_name": "WISMO",
  "rules": [{"id": "hold", "action": "respond", "response_template": "Hang tight."}]
}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "wismo.json"), []byte(doc), 0o644))

	desk, err := resolvd.New(dir)
	require.NoError(t, err)
	require.NoError(t, desk.Reload())
}

func TestDesk_MemoryLoaderCannotReload(t *testing.T) {
	desk, err := resolvd.New("", resolvd.WithLoader(testLoader()))
	require.NoError(t, err)
	assert.Error(t, desk.Reload())

	_, err = desk.Watch(context.Background())
	assert.Error(t, err)
}
