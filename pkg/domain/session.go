package domain

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus defines the lifecycle state of a support session.
type SessionStatus string

const (
	StatusActive    SessionStatus = "active"
	StatusEscalated SessionStatus = "escalated" // Terminal: human handoff, automation locked
	StatusResolved  SessionStatus = "resolved"  // Terminal
)

// Well-known customer intents. Intents are open-ended strings so that new
// workflow documents can be dropped in without touching code; these constants
// cover the workflows shipped in workflows/.
const (
	IntentWISMO             = "WISMO"
	IntentWrongMissing      = "WRONG_MISSING"
	IntentRefundStandard    = "REFUND_STANDARD"
	IntentOrderModification = "ORDER_MODIFICATION"
	IntentUnknown           = "UNKNOWN"
)

// MessageRole identifies the sender of a conversation message.
type MessageRole string

const (
	RoleCustomer MessageRole = "customer"
	RoleAgent    MessageRole = "agent"
	RoleSystem   MessageRole = "system"
)

// Message is a single entry in the conversation record.
type Message struct {
	ID        string      `json:"id"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewMessage creates a message stamped with the given time.
func NewMessage(role MessageRole, content string, at time.Time) Message {
	return Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Timestamp: at,
	}
}

// TraceEventType categorizes entries in the session audit log.
type TraceEventType string

const (
	TraceCustomerMessage  TraceEventType = "customer_message"
	TraceClassification   TraceEventType = "classification"
	TraceWorkflowDecision TraceEventType = "workflow_decision"
	TraceToolCall         TraceEventType = "tool_call"
	TraceAgentResponse    TraceEventType = "agent_response"
	TraceEscalation       TraceEventType = "escalation"
	TraceError            TraceEventType = "error"
)

// TraceEvent is one entry in the append-only, ordered audit log.
type TraceEvent struct {
	ID        string         `json:"id"`
	Type      TraceEventType `json:"type"`
	Agent     string         `json:"agent,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// CustomerInfo identifies the customer behind a session.
type CustomerInfo struct {
	Email      string `json:"email"`
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	CustomerID string `json:"customer_id"`
}

// CaseContext is the accumulated fact base for one session. Fields are filled
// or overwritten turn over turn by the classifier (entities), tool results,
// and rule set_context effects; they are never cleared implicitly.
type CaseContext struct {
	OrderID        string          `json:"order_id,omitempty"`
	TrackingNumber string          `json:"tracking_number,omitempty"`
	ItemName       string          `json:"item_name,omitempty"`
	RefundReason   string          `json:"refund_reason,omitempty"`
	OrderDate      string          `json:"order_date,omitempty"`
	ShippingStatus string          `json:"shipping_status,omitempty"`
	Evidence       map[string]bool `json:"evidence,omitempty"`
	PromiseGiven   bool            `json:"promise_given,omitempty"`
	PromiseType    string          `json:"promise_type,omitempty"`
	PromiseDate    string          `json:"promise_date,omitempty"` // YYYY-MM-DD
	ContactDay     string          `json:"contact_day,omitempty"`  // Mon..Sun, set once on first message
	Extra          map[string]any  `json:"extra,omitempty"`
}

// ToolRecord is one entry in the append-only tool invocation history.
type ToolRecord struct {
	ToolName  string         `json:"tool_name"`
	Params    map[string]any `json:"params,omitempty"`
	Response  map[string]any `json:"response,omitempty"`
	Success   bool           `json:"success"`
	Error     string         `json:"error,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Session is the complete state of one customer interaction.
type Session struct {
	ID           string        `json:"id"`
	CustomerInfo CustomerInfo  `json:"customer_info"`
	Status       SessionStatus `json:"status"`
	Intent       string        `json:"intent,omitempty"`
	Confidence   float64       `json:"confidence"`
	Messages     []Message     `json:"messages"`
	CaseContext  CaseContext   `json:"case_context"`
	ToolHistory  []ToolRecord  `json:"tool_history"`
	Trace        []TraceEvent  `json:"trace"`
	CreatedAt    time.Time     `json:"created_at"`
	UpdatedAt    time.Time     `json:"updated_at"`
}

// NewSession creates an active session for the given customer.
func NewSession(info CustomerInfo, at time.Time) *Session {
	return &Session{
		ID:           uuid.NewString(),
		CustomerInfo: info,
		Status:       StatusActive,
		Intent:       IntentUnknown,
		CaseContext:  CaseContext{Evidence: map[string]bool{}},
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

// AppendTrace adds an audit event to the session log.
func (s *Session) AppendTrace(eventType TraceEventType, agent string, data map[string]any, at time.Time) {
	s.Trace = append(s.Trace, TraceEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Agent:     agent,
		Data:      data,
		Timestamp: at,
	})
}

// FirstCustomerMessage returns the earliest customer message, if any.
func (s *Session) FirstCustomerMessage() (Message, bool) {
	for _, m := range s.Messages {
		if m.Role == RoleCustomer {
			return m, true
		}
	}
	return Message{}, false
}

// FailedToolCount reports how many tool invocations have failed so far.
func (s *Session) FailedToolCount() int {
	n := 0
	for _, t := range s.ToolHistory {
		if !t.Success {
			n++
		}
	}
	return n
}

// Clone returns a deep copy so stores can hand out isolated snapshots.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Messages = append([]Message(nil), s.Messages...)
	cp.ToolHistory = make([]ToolRecord, len(s.ToolHistory))
	for i, t := range s.ToolHistory {
		cp.ToolHistory[i] = t
		cp.ToolHistory[i].Params = copyMap(t.Params)
		cp.ToolHistory[i].Response = copyMap(t.Response)
	}
	cp.Trace = make([]TraceEvent, len(s.Trace))
	for i, e := range s.Trace {
		cp.Trace[i] = e
		cp.Trace[i].Data = copyMap(e.Data)
	}
	cp.CaseContext.Extra = copyMap(s.CaseContext.Extra)
	if s.CaseContext.Evidence != nil {
		cp.CaseContext.Evidence = make(map[string]bool, len(s.CaseContext.Evidence))
		for k, v := range s.CaseContext.Evidence {
			cp.CaseContext.Evidence[k] = v
		}
	}
	return &cp
}

func copyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
