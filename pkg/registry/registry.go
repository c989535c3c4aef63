// Package registry provides a tool executor backed by locally registered Go
// functions. Hosts register their real backend calls (order lookups, credit
// issuance) by name; the orchestrator dispatches to them through the
// ports.ToolExecutor interface.
package registry

import (
	"context"
	"fmt"
	"sync"

	"github.com/resolvd/resolvd/pkg/ports"
)

// ToolFunc is one registered tool implementation. It receives the resolved
// rule parameters and returns the data to fold back into the case context.
// A returned error marks the tool result failed without aborting the pipeline.
type ToolFunc func(ctx context.Context, params map[string]any) (map[string]any, error)

// Registry manages the available tools. It implements ports.ToolExecutor.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]ToolFunc
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		tools: make(map[string]ToolFunc),
	}
}

// Register adds a tool under the given name. An existing tool with the same
// name is overwritten.
func (r *Registry) Register(name string, fn ToolFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[name] = fn
}

// Names returns the registered tool names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	return names
}

// Execute looks up a tool by name and runs it. An unknown tool yields a
// failed result flagged for escalation, since a workflow that names a tool
// nobody registered is a deployment mistake no retry will fix.
func (r *Registry) Execute(ctx context.Context, toolName string, params map[string]any) (ports.ToolResult, error) {
	r.mu.RLock()
	fn, ok := r.tools[toolName]
	r.mu.RUnlock()

	if !ok {
		return ports.ToolResult{
			ToolName:       toolName,
			Success:        false,
			Error:          fmt.Sprintf("tool not registered: %s", toolName),
			ShouldEscalate: true,
		}, nil
	}

	data, err := fn(ctx, params)
	if err != nil {
		return ports.ToolResult{
			ToolName: toolName,
			Success:  false,
			Error:    err.Error(),
		}, nil
	}
	return ports.ToolResult{
		ToolName: toolName,
		Success:  true,
		Data:     data,
	}, nil
}
