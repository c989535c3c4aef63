package ports

import (
	"context"

	"github.com/resolvd/resolvd/pkg/domain"
)

// WorkflowLoader defines how the engine retrieves workflow definitions.
// This decouples the policy documents' storage (files, memory, config
// service) from the evaluator.
type WorkflowLoader interface {
	// Get returns the workflow definition for an intent.
	// Returns domain.ErrWorkflowNotFound if no document covers the intent.
	Get(intent string) (*domain.WorkflowDefinition, error)

	// List returns the names of all loaded workflows.
	List() ([]string, error)
}

// Reloadable is implemented by loaders that can re-read their backing store,
// enabling hot reload of externally authored policy documents.
type Reloadable interface {
	Reload() error
}

// Watchable is implemented by loaders that can notify about backend changes.
type Watchable interface {
	// Watch returns a channel signaled when the underlying documents change.
	Watch(ctx context.Context) (<-chan struct{}, error)
}
