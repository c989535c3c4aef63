package ports

import (
	"context"

	"github.com/resolvd/resolvd/pkg/domain"
)

// Entities are the structured fields a classifier may extract from a message.
type Entities struct {
	OrderID        string `json:"order_id,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	ItemName       string `json:"item_name,omitempty"`
}

// Classification is the classifier's verdict for one customer message.
type Classification struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"` // [0,1]
	Entities   Entities `json:"entities"`
	NeedsHuman bool     `json:"needs_human"`
	Reasoning  string   `json:"reasoning,omitempty"`
}

// Classifier performs natural-language intent classification and entity
// extraction. Implementations are expected to be blocking network calls with
// their own timeouts; failures are recoverable, never fatal to the pipeline.
type Classifier interface {
	Classify(ctx context.Context, message string, cc domain.CaseContext) (Classification, error)
}

// Reply is a generated customer-facing response.
type Reply struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Responder generates natural-language replies from a session and decision.
type Responder interface {
	Generate(ctx context.Context, session *domain.Session, decision domain.Decision, toolResults []ToolResult) (Reply, error)
}

// ToolResult is the outcome of one tool execution. Validation and retry are
// internal to the executor; ShouldEscalate surfaces unrecoverable failures.
type ToolResult struct {
	ToolName       string         `json:"tool_name"`
	Success        bool           `json:"success"`
	Data           map[string]any `json:"data,omitempty"`
	Error          string         `json:"error,omitempty"`
	ShouldEscalate bool           `json:"should_escalate"`
}

// ToolExecutor runs side-effecting tools against backend systems.
type ToolExecutor interface {
	Execute(ctx context.Context, toolName string, params map[string]any) (ToolResult, error)
}
