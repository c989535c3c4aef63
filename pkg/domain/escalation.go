package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Escalation priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// ValidPriority reports whether p is a known priority level.
func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// EscalationPayload is the structured handoff record for the human team.
// Construction always yields a schema-valid payload: required fields are
// populated and priority is one of low/medium/high.
type EscalationPayload struct {
	EscalationID        string   `json:"escalation_id"`
	CustomerID          string   `json:"customer_id"`
	Reason              string   `json:"reason"`
	ConversationSummary string   `json:"conversation_summary"`
	AttemptedActions    []string `json:"attempted_actions"`
	Priority            string   `json:"priority"`
	CreatedAt           string   `json:"created_at"` // ISO-8601
}

// NewEscalationID returns a fresh id of the fixed "esc_<8 hex>" format.
func NewEscalationID() string {
	return "esc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// NewEscalationPayload assembles a schema-valid payload at the given time.
func NewEscalationPayload(customerID, reason, summary string, attempted []string, priority string, at time.Time) EscalationPayload {
	if reason == "" {
		reason = "Requires human review"
	}
	if !ValidPriority(priority) {
		priority = PriorityMedium
	}
	if attempted == nil {
		attempted = []string{}
	}
	return EscalationPayload{
		EscalationID:        NewEscalationID(),
		CustomerID:          customerID,
		Reason:              reason,
		ConversationSummary: summary,
		AttemptedActions:    attempted,
		Priority:            priority,
		CreatedAt:           at.UTC().Format(time.RFC3339),
	}
}

// SummarizeConversation renders the last n messages, each truncated to 100
// runes, as the escalation summary.
func SummarizeConversation(s *Session, n int) string {
	msgs := s.Messages
	if len(msgs) > n {
		msgs = msgs[len(msgs)-n:]
	}
	parts := make([]string, 0, len(msgs)+1)
	if s.Intent != "" && s.Intent != IntentUnknown {
		parts = append(parts, fmt.Sprintf("Topic: %s", s.Intent))
	}
	for _, m := range msgs {
		who := "Bot"
		if m.Role == RoleCustomer {
			who = "Customer"
		}
		content := m.Content
		if r := []rune(content); len(r) > 100 {
			content = string(r[:100]) + "..."
		}
		parts = append(parts, fmt.Sprintf("%s: %s", who, content))
	}
	return strings.Join(parts, "\n")
}
