package mock

import (
	"context"
	"fmt"
	"sync"

	"github.com/resolvd/resolvd/pkg/ports"
)

// ToolExecutor serves canned tool responses from a small in-memory order
// database. FailTools lets tests and demos force specific tools to fail with
// should_escalate, exercising the orchestrator's failure paths.
type ToolExecutor struct {
	mu        sync.Mutex
	orders    map[string]map[string]any
	failTools map[string]bool
	calls     int
}

// NewToolExecutor creates the executor with the demo order database.
func NewToolExecutor() *ToolExecutor {
	return &ToolExecutor{
		orders: map[string]map[string]any{
			"12345": {
				"order_id":           "12345",
				"status":             "shipped",
				"order_date":         "2026-02-01",
				"shipping_carrier":   "FedEx",
				"tracking_number":    "FX123456789",
				"estimated_delivery": "2026-02-07",
			},
			"54321": {
				"order_id":           "54321",
				"status":             "delivered",
				"order_date":         "2026-01-25",
				"shipping_carrier":   "UPS",
				"tracking_number":    "UP987654321",
				"estimated_delivery": "2026-01-30",
			},
			"99999": {
				"order_id":           "99999",
				"status":             "processing",
				"order_date":         "2026-02-05",
				"estimated_delivery": "2026-02-10",
			},
		},
		failTools: map[string]bool{},
	}
}

// FailTool forces the named tool to fail with should_escalate.
func (t *ToolExecutor) FailTool(name string, fail bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failTools[name] = fail
}

// Calls reports the number of executions performed.
func (t *ToolExecutor) Calls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

// Execute serves a canned response for the known tools.
func (t *ToolExecutor) Execute(ctx context.Context, toolName string, params map[string]any) (ports.ToolResult, error) {
	t.mu.Lock()
	t.calls++
	forcedFail := t.failTools[toolName]
	t.mu.Unlock()

	if forcedFail {
		return ports.ToolResult{
			ToolName:       toolName,
			Success:        false,
			Error:          "simulated backend failure",
			ShouldEscalate: true,
		}, nil
	}

	switch toolName {
	case "check_order_status":
		orderID := fmt.Sprintf("%v", params["order_id"])
		t.mu.Lock()
		order, ok := t.orders[orderID]
		t.mu.Unlock()
		if !ok {
			return ports.ToolResult{
				ToolName: toolName,
				Success:  false,
				Error:    fmt.Sprintf("order %s not found", orderID),
			}, nil
		}
		return ports.ToolResult{ToolName: toolName, Success: true, Data: copyData(order)}, nil

	case "get_shipping_info":
		tracking := fmt.Sprintf("%v", params["tracking_number"])
		return ports.ToolResult{
			ToolName: toolName,
			Success:  true,
			Data: map[string]any{
				"tracking_number": tracking,
				"current_status":  "in_transit",
				"last_location":   "Regional distribution center",
			},
		}, nil

	case "issue_store_credit":
		return ports.ToolResult{
			ToolName: toolName,
			Success:  true,
			Data: map[string]any{
				"credit_id": "cr_mock0001",
				"amount":    params["amount"],
				"status":    "issued",
			},
		}, nil

	case "update_shipping_address":
		return ports.ToolResult{
			ToolName: toolName,
			Success:  true,
			Data: map[string]any{
				"order_id": params["order_id"],
				"status":   "address_updated",
			},
		}, nil
	}

	return ports.ToolResult{
		ToolName: toolName,
		Success:  false,
		Error:    fmt.Sprintf("unknown tool: %s", toolName),
	}, nil
}

func copyData(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
