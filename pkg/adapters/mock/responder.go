package mock

import (
	"context"
	"fmt"
	"strings"

	"github.com/resolvd/resolvd/pkg/domain"
	"github.com/resolvd/resolvd/pkg/ports"
)

// Responder is a template-passthrough response generator. It returns the
// engine's interpolated template when present, or a summary of the last tool
// result otherwise.
type Responder struct{}

// NewResponder creates the template responder.
func NewResponder() *Responder {
	return &Responder{}
}

// Generate renders a reply without any LLM involvement.
func (r *Responder) Generate(ctx context.Context, session *domain.Session, decision domain.Decision, toolResults []ports.ToolResult) (ports.Reply, error) {
	if decision.Respond != nil && decision.Respond.Body != "" {
		return ports.Reply{Body: decision.Respond.Body}, nil
	}

	if len(toolResults) > 0 {
		last := toolResults[len(toolResults)-1]
		if last.Success && len(last.Data) > 0 {
			return ports.Reply{Body: summarizeData(last.Data)}, nil
		}
	}

	return ports.Reply{Body: "Thank you for contacting us. How can we assist you further?"}, nil
}

func summarizeData(data map[string]any) string {
	parts := []string{"Here is what we found:"}
	for _, key := range []string{"status", "current_status", "tracking_number", "estimated_delivery", "carrier", "shipping_carrier"} {
		if v, ok := data[key]; ok && v != nil && v != "" {
			parts = append(parts, fmt.Sprintf("%s: %v", strings.ReplaceAll(key, "_", " "), v))
		}
	}
	if len(parts) == 1 {
		return "We have completed the requested action on your order."
	}
	return strings.Join(parts, " ")
}
