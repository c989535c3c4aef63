package memory

import (
	"sync"

	"github.com/resolvd/resolvd/pkg/domain"
)

// Loader implements ports.WorkflowLoader over an in-memory map, primarily
// for tests and embedded use.
type Loader struct {
	mu        sync.RWMutex
	workflows map[string]*domain.WorkflowDefinition
}

// NewLoader creates a loader from the given definitions, keyed by
// workflow_name.
func NewLoader(defs ...*domain.WorkflowDefinition) *Loader {
	l := &Loader{workflows: make(map[string]*domain.WorkflowDefinition)}
	for _, d := range defs {
		l.workflows[d.WorkflowName] = d
	}
	return l
}

// Put registers or replaces a workflow definition.
func (l *Loader) Put(def *domain.WorkflowDefinition) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.workflows[def.WorkflowName] = def
}

// Get returns the definition for an intent.
func (l *Loader) Get(intent string) (*domain.WorkflowDefinition, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	def, ok := l.workflows[intent]
	if !ok {
		return nil, domain.ErrWorkflowNotFound
	}
	return def, nil
}

// List returns the loaded workflow names.
func (l *Loader) List() ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	names := make([]string, 0, len(l.workflows))
	for name := range l.workflows {
		names = append(names, name)
	}
	return names, nil
}
