package orchestrator

import (
	"fmt"
	"strings"

	"github.com/resolvd/resolvd/pkg/domain"
)

// Urgency markers scanned in recent customer messages for priority.
var urgencyKeywords = []string{"urgent", "immediately", "right away", "asap", "fraud"}

// escalate locks the session, assembles the handoff payload, and appends the
// canned customer notice. The lock is terminal: no further tool invocation or
// tool-history mutation may happen afterwards.
func (o *Orchestrator) escalate(sess *domain.Session, reason, priorityOverride string) (string, *domain.EscalationPayload) {
	priority := priorityOverride
	if !domain.ValidPriority(priority) {
		priority = o.computePriority(sess)
	}

	payload := domain.NewEscalationPayload(
		sess.CustomerInfo.CustomerID,
		reason,
		domain.SummarizeConversation(sess, 5),
		attemptedActions(sess),
		priority,
		o.now(),
	)

	sess.Status = domain.StatusEscalated
	sess.AppendTrace(domain.TraceEscalation, "escalation", map[string]any{
		"reason":  reason,
		"payload": payload,
	}, o.now().UTC())

	o.appendAgentReply(sess, "escalation", escalationReply)
	o.metrics.ObserveEscalation(priority)
	o.logger.Info("session escalated",
		"session_id", sess.ID, "reason", reason, "priority", priority,
		"escalation_id", payload.EscalationID)

	return escalationReply, &payload
}

// computePriority ranks the escalation: urgency keyword in recent customer
// text, then repeated tool failures, then the medium default. An explicit
// override is handled by the caller and wins over all of these.
func (o *Orchestrator) computePriority(sess *domain.Session) string {
	msgs := sess.Messages
	if len(msgs) > 10 {
		msgs = msgs[len(msgs)-10:]
	}
	for _, m := range msgs {
		if m.Role != domain.RoleCustomer {
			continue
		}
		lower := strings.ToLower(m.Content)
		for _, kw := range urgencyKeywords {
			if strings.Contains(lower, kw) {
				return domain.PriorityHigh
			}
		}
	}

	if sess.FailedToolCount() >= o.failureThreshold {
		return domain.PriorityHigh
	}

	return domain.PriorityMedium
}

// attemptedActions derives the handoff action list from the tool history plus
// the policy tags recorded in workflow-decision trace events.
func attemptedActions(sess *domain.Session) []string {
	actions := []string{}

	for _, t := range sess.ToolHistory {
		status := "ok"
		if !t.Success {
			status = "failed"
		}
		actions = append(actions, fmt.Sprintf("%s [%s]", t.ToolName, status))
	}

	for _, e := range sess.Trace {
		if e.Type != domain.TraceWorkflowDecision {
			continue
		}
		tags := policyTags(e.Data["policy_applied"])
		if len(tags) == 0 {
			continue
		}
		actions = append(actions, "Policy: "+strings.Join(tags, ", "))
	}

	return actions
}

// policyTags reads the trace field in both of its shapes: []string for events
// appended in this process, []any for events that round-tripped through a
// JSON-backed session store.
func policyTags(v any) []string {
	switch tags := v.(type) {
	case []string:
		return tags
	case []any:
		out := make([]string, 0, len(tags))
		for _, tag := range tags {
			if s, ok := tag.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
